package gpu

import (
	"context"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/simviz"
	"github.com/gogpu/wgpu"
)

// copyRowAlignment is the bytes-per-row alignment of texture to buffer copies.
const copyRowAlignment = 256

// Image is tightly packed RGBA8 pixel data read from the GPU.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// RGBA returns the image as *image.RGBA without copying.
func (im *Image) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    im.Pix,
		Stride: im.Width * 4,
		Rect:   image.Rect(0, 0, im.Width, im.Height),
	}
}

// ReadBuffer copies size bytes of src into a staging buffer and blocks
// until they are mapped.
func ReadBuffer(ctx context.Context, c *Context, src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  align4(size),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, simviz.Wrap(simviz.KindOf(err), err, "create readback buffer")
	}
	defer staging.Release()

	enc, err := c.CreateCommandEncoder("readback")
	if err != nil {
		return nil, err
	}
	enc.CopyBufferToBuffer(src, 0, staging, 0, align4(size))
	if err := c.FinishAndSubmit(enc); err != nil {
		return nil, err
	}
	return mapRead(ctx, staging, size)
}

// ReadTexture copies a whole 2D texture into host memory with tightly
// packed rows. BGRA8 data is swizzled to RGBA.
func ReadTexture(ctx context.Context, c *Context, tex *wgpu.Texture, w, h uint32, format wgpu.TextureFormat) ([]byte, error) {
	bpt := uint32(BytesPerTexel(format))
	rowBytes := w * bpt
	padded := (rowBytes + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
	size := uint64(padded) * uint64(h)

	staging, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback_texture",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, simviz.Wrap(simviz.KindOf(err), err, "create readback buffer")
	}
	defer staging.Release()

	enc, err := c.CreateCommandEncoder("readback_texture")
	if err != nil {
		return nil, err
	}
	enc.CopyTextureToBuffer(tex, staging, []wgpu.BufferTextureCopy{{
		BufferLayout: wgpu.ImageDataLayout{BytesPerRow: padded, RowsPerImage: h},
		TextureBase:  wgpu.ImageCopyTexture{Texture: tex},
		Size:         wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	if err := c.FinishAndSubmit(enc); err != nil {
		return nil, err
	}
	raw, err := mapRead(ctx, staging, size)
	if err != nil {
		return nil, err
	}
	out := UnpadRows(raw, int(rowBytes), int(padded), int(h))
	if format == gputypes.TextureFormatBGRA8Unorm || format == gputypes.TextureFormatBGRA8UnormSrgb {
		for i := 0; i+3 < len(out); i += 4 {
			out[i], out[i+2] = out[i+2], out[i]
		}
	}
	return out, nil
}

func mapRead(ctx context.Context, buf *wgpu.Buffer, size uint64) ([]byte, error) {
	mapSize := align4(size)
	if err := buf.Map(ctx, wgpu.MapModeRead, 0, mapSize); err != nil {
		return nil, simviz.Wrap(simviz.KindOf(err), err, "map readback buffer")
	}
	defer func() { _ = buf.Unmap() }()
	rng, err := buf.MappedRange(0, mapSize)
	if err != nil {
		return nil, fmt.Errorf("gpu: mapped range: %w", err)
	}
	out := make([]byte, size)
	copy(out, rng.Bytes())
	return out, nil
}

// UnpadRows removes the per-row padding of a texture copy.
func UnpadRows(data []byte, rowBytes, paddedRow, rows int) []byte {
	if rowBytes == paddedRow {
		return data[:rowBytes*rows]
	}
	out := make([]byte, rowBytes*rows)
	for y := range rows {
		copy(out[y*rowBytes:(y+1)*rowBytes], data[y*paddedRow:y*paddedRow+rowBytes])
	}
	return out
}
