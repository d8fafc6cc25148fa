package physics

import "math"

// Grid is a uniform spatial index over [-1, 1]² stored as a counting
// sort: the bodies of cell c are Index[Start[c]:Start[c+1]].
type Grid struct {
	Cell       float32
	Cols, Rows int
	Start      []uint32
	Index      []uint32

	cellOf []uint32
}

// GridDims returns the column and row count for cell size cell.
func GridDims(cell float32) (int, int) {
	if cell <= 0 || cell != cell {
		return 1, 1
	}
	n := int(math.Ceil(float64(2 / cell)))
	n = min(max(n, 1), 4096)
	return n, n
}

// Build indexes bodies with square cells of side cell.
func (g *Grid) Build(bodies []Body, cell float32) {
	g.Cell = cell
	g.Cols, g.Rows = GridDims(cell)
	cells := g.Cols * g.Rows
	g.Start = resize(g.Start, cells+1)
	clear(g.Start)
	g.Index = resize(g.Index, len(bodies))
	g.cellOf = resize(g.cellOf, len(bodies))
	for i := range bodies {
		c := g.CellOf(bodies[i].X, bodies[i].Y)
		g.cellOf[i] = uint32(c)
		g.Start[c+1]++
	}
	for c := range cells {
		g.Start[c+1] += g.Start[c]
	}
	fill := make([]uint32, cells)
	for i, c := range g.cellOf {
		g.Index[g.Start[c]+fill[c]] = uint32(i)
		fill[c]++
	}
}

// CellOf returns the cell holding (x, y), clamped to the grid.
func (g *Grid) CellOf(x, y float32) int {
	cx, cy := g.coord(x, g.Cols), g.coord(y, g.Rows)
	return cy*g.Cols + cx
}

func (g *Grid) coord(v float32, n int) int {
	if v != v {
		return 0
	}
	i := int(math.Floor(float64((v + 1) / 2 * float32(n))))
	return min(max(i, 0), n-1)
}

// Pairs calls fn once for every pair of bodies in the same or adjacent
// cells, with i < j.
func (g *Grid) Pairs(bodies []Body, fn func(i, j int)) {
	for cy := range g.Rows {
		for cx := range g.Cols {
			c := cy*g.Cols + cx
			for _, ii := range g.Index[g.Start[c]:g.Start[c+1]] {
				i := int(ii)
				// Visit each neighbour cell once per pair: self, then the
				// four cells after c in scan order.
				for _, off := range [5][2]int{{0, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}} {
					nx, ny := cx+off[0], cy+off[1]
					if nx < 0 || nx >= g.Cols || ny >= g.Rows {
						continue
					}
					n := ny*g.Cols + nx
					for _, jj := range g.Index[g.Start[n]:g.Start[n+1]] {
						j := int(jj)
						if n == c && j <= i {
							continue
						}
						fn(min(i, j), max(i, j))
					}
				}
			}
		}
	}
}

// Density returns, per body, the sum of (1 - (d/radius)²)³ over every body
// within radius, itself included. g must be built with cell ≥ radius.
func (g *Grid) Density(bodies []Body, radius float32) []float32 {
	out := make([]float32, len(bodies))
	if radius <= 0 {
		return out
	}
	r2 := radius * radius
	for i := range bodies {
		b := &bodies[i]
		c := int(g.cellOf[i])
		cx, cy := c%g.Cols, c/g.Cols
		var sum float32
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := cx+dx, cy+dy
				if nx < 0 || ny < 0 || nx >= g.Cols || ny >= g.Rows {
					continue
				}
				n := ny*g.Cols + nx
				for _, jj := range g.Index[g.Start[n]:g.Start[n+1]] {
					o := &bodies[jj]
					ddx, ddy := o.X-b.X, o.Y-b.Y
					q := (ddx*ddx + ddy*ddy) / r2
					if q < 1 {
						k := 1 - q
						sum += k * k * k
					}
				}
			}
		}
		out[i] = sum
	}
	return out
}

func resize(s []uint32, n int) []uint32 {
	if cap(s) < n {
		return make([]uint32, n)
	}
	return s[:n]
}
