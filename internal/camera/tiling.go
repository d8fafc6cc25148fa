package camera

import "math"

// MaxTiles bounds the instance grid per dimension.
const MaxTiles = 1024

// TileCount returns T for a T×T grid of texture instances covering the
// view at zoom.
func TileCount(zoom float64) int {
	if zoom <= 0 || math.IsNaN(zoom) {
		zoom = MinZoom
	}
	visible := 2.0 / zoom
	tiles := int(math.Ceil(visible/2.0)) + 6
	minT := 5
	if zoom < 0.1 {
		minT = 7
	}
	return min(max(tiles, minT, 1), MaxTiles)
}

// TileOffset returns the world offset of instance (i, j) in a T×T grid.
func TileOffset(i, j, t int) (float64, float64) {
	return float64(2*i - t + 1), float64(2*j - t + 1)
}
