package gpu

import (
	"context"
	"fmt"
	"math"

	"github.com/gogpu/simviz"
	"github.com/gogpu/wgpu"
)

// limitSafety keeps scaled allocations slightly below the device limit.
const limitSafety = 0.95

// FitToLimits bounds a w×h field of bytesPerCell cells by limit bytes.
// When the field fits it is returned unchanged. Otherwise both sides are
// scaled by k = sqrt(limit / required) * 0.95 and floored.
func FitToLimits(w, h uint32, bytesPerCell, limit uint64) (uint32, uint32, bool) {
	required := uint64(w) * uint64(h) * bytesPerCell
	if required <= limit || required == 0 {
		return w, h, false
	}
	k := math.Sqrt(float64(limit)/float64(required)) * limitSafety
	nw := max(uint32(math.Floor(float64(w)*k)), 1)
	nh := max(uint32(math.Floor(float64(h)*k)), 1)
	return nw, nh, true
}

// FitTextureDimension clamps each side to the 2D texture limit.
func FitTextureDimension(w, h, limit uint32) (uint32, uint32) {
	if limit == 0 {
		return w, h
	}
	return min(w, limit), min(h, limit)
}

// ScaleNearest resamples a row-major field of texel-sized cells from
// sw×sh to dw×dh by nearest neighbour.
func ScaleNearest(src []byte, sw, sh, dw, dh, texel int) ([]byte, error) {
	if sw <= 0 || sh <= 0 || dw <= 0 || dh <= 0 || texel <= 0 {
		return nil, fmt.Errorf("gpu: scale %dx%d -> %dx%d: invalid size", sw, sh, dw, dh)
	}
	if len(src) < sw*sh*texel {
		return nil, fmt.Errorf("gpu: scale source has %d bytes, want %d", len(src), sw*sh*texel)
	}
	dst := make([]byte, dw*dh*texel)
	for y := range dh {
		sy := min(y*sh/dh, sh-1)
		for x := range dw {
			sx := min(x*sw/dw, sw-1)
			si := (sy*sw + sx) * texel
			di := (y*dw + x) * texel
			copy(dst[di:di+texel], src[si:si+texel])
		}
	}
	return dst, nil
}

// RescaleTexture reads tex back at its old size, scales it and writes it
// into dst at the new size. Failures are ResourceScalingFailure.
func RescaleTexture(ctx context.Context, c *Context, src *wgpu.Texture, sw, sh uint32, dst *wgpu.Texture, dw, dh uint32, format wgpu.TextureFormat) error {
	data, err := ReadTexture(ctx, c, src, sw, sh, format)
	if err != nil {
		return simviz.Wrap(simviz.KindResourceScalingFailure, err, "read field")
	}
	scaled, err := ScaleNearest(data, int(sw), int(sh), int(dw), int(dh), BytesPerTexel(format))
	if err != nil {
		return simviz.Wrap(simviz.KindResourceScalingFailure, err, "scale field")
	}
	if err := UploadTexture(c.queue, dst, dw, dh, format, scaled); err != nil {
		return simviz.Wrap(simviz.KindResourceScalingFailure, err, "write field")
	}
	return nil
}

// RescaleBuffer does the same for a row-major storage buffer field.
func RescaleBuffer(ctx context.Context, c *Context, src *wgpu.Buffer, sw, sh uint32, dst *wgpu.Buffer, dw, dh uint32, cell int) error {
	data, err := ReadBuffer(ctx, c, src, uint64(sw)*uint64(sh)*uint64(cell))
	if err != nil {
		return simviz.Wrap(simviz.KindResourceScalingFailure, err, "read field")
	}
	scaled, err := ScaleNearest(data, int(sw), int(sh), int(dw), int(dh), cell)
	if err != nil {
		return simviz.Wrap(simviz.KindResourceScalingFailure, err, "scale field")
	}
	if err := c.queue.WriteBuffer(dst, 0, scaled); err != nil {
		return simviz.Wrap(simviz.KindResourceScalingFailure, err, "write field")
	}
	return nil
}
