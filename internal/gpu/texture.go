package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

// BytesPerTexel returns the size of one texel for the formats used by the
// simulations. Unknown formats report 4.
func BytesPerTexel(f wgpu.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatR16Float:
		return 2
	case gputypes.TextureFormatR32Float, gputypes.TextureFormatRG16Float,
		gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatRGBA8UnormSrgb, gputypes.TextureFormatBGRA8UnormSrgb:
		return 4
	case gputypes.TextureFormatRG32Float, gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}

// FieldUsage is the usage set of a simulation field texture: written by
// compute, sampled by render, copyable for resize scaling.
const FieldUsage = wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding |
	wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst

// TrailUsage is the usage set of a trail texture drawn by render passes.
const TrailUsage = wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
	wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst

// NewTexture2D creates a single-mip 2D texture and its default view.
func (o *Owner) NewTexture2D(label string, w, h uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.Texture, *wgpu.TextureView, error) {
	if w == 0 || h == 0 {
		return nil, nil, fmt.Errorf("gpu: texture %q has zero size %dx%d", label, w, h)
	}
	tex, err := o.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := o.CreateTextureView(tex, nil)
	if err != nil {
		o.Release(tex)
		return nil, nil, err
	}
	return tex, view, nil
}

// UploadTexture writes tightly packed texel data covering the whole texture.
func UploadTexture(q *wgpu.Queue, tex *wgpu.Texture, w, h uint32, format wgpu.TextureFormat, data []byte) error {
	bpt := uint32(BytesPerTexel(format))
	if uint64(len(data)) != uint64(w)*uint64(h)*uint64(bpt) {
		return fmt.Errorf("gpu: upload %dx%d texels: have %d bytes, want %d", w, h, len(data), w*h*bpt)
	}
	err := q.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: tex},
		data,
		&wgpu.ImageDataLayout{BytesPerRow: w * bpt, RowsPerImage: h},
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("gpu: write texture: %w", err)
	}
	return nil
}

// SamplerRepeat returns a sampler descriptor with repeat addressing, used
// by infinite tiling. Linear filtering requires a filterable format.
func SamplerRepeat(label string, linear bool) *wgpu.SamplerDescriptor {
	filter := gputypes.FilterModeNearest
	if linear {
		filter = gputypes.FilterModeLinear
	}
	return &wgpu.SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeRepeat,
		AddressModeV: gputypes.AddressModeRepeat,
		AddressModeW: gputypes.AddressModeRepeat,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	}
}

// SamplerClamp returns a clamp-to-edge sampler descriptor.
func SamplerClamp(label string, linear bool) *wgpu.SamplerDescriptor {
	d := SamplerRepeat(label, linear)
	d.AddressModeU = gputypes.AddressModeClampToEdge
	d.AddressModeV = gputypes.AddressModeClampToEdge
	d.AddressModeW = gputypes.AddressModeClampToEdge
	return d
}
