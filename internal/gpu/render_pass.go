package gpu

import (
	"fmt"
	"image/color"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

// ClearColor converts an 8-bit color into a clear value.
func ClearColor(c color.RGBA) wgpu.Color {
	return wgpu.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
}

// BeginRender starts a render pass with a single color attachment and no
// depth. A nil clear loads the existing contents.
func BeginRender(enc *wgpu.CommandEncoder, label string, view *wgpu.TextureView, clear *wgpu.Color) (*wgpu.RenderPassEncoder, error) {
	att := wgpu.RenderPassColorAttachment{
		View:    view,
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if clear != nil {
		att.LoadOp = gputypes.LoadOpClear
		att.ClearValue = *clear
	}
	pass, err := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{att},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: begin render pass %q: %w", label, err)
	}
	return pass, nil
}

// Draw is one draw call in a render pass.
type Draw struct {
	Pipeline  *wgpu.RenderPipeline
	Groups    []*wgpu.BindGroup
	Vertex    *wgpu.Buffer
	Vertices  uint32
	Instances uint32
}

// RunRender records draws into one render pass targeting view. Draws with
// zero instances are skipped.
func RunRender(enc *wgpu.CommandEncoder, label string, view *wgpu.TextureView, clear *wgpu.Color, draws ...Draw) error {
	pass, err := BeginRender(enc, label, view, clear)
	if err != nil {
		return err
	}
	for _, d := range draws {
		if d.Instances == 0 || d.Vertices == 0 {
			continue
		}
		pass.SetPipeline(d.Pipeline)
		for i, g := range d.Groups {
			pass.SetBindGroup(uint32(i), g, nil)
		}
		if d.Vertex != nil {
			pass.SetVertexBuffer(0, d.Vertex, 0)
		}
		pass.Draw(d.Vertices, d.Instances, 0, 0)
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("gpu: end render pass %q: %w", label, err)
	}
	return nil
}
