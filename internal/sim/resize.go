package sim

import (
	"context"
	"time"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
)

// ReadbackTimeout bounds the blocking readback used to carry a field
// across a resize.
const ReadbackTimeout = 5 * time.Second

// FitField bounds a field of bytesPerCell cells to the device limits. It
// logs when the field had to be scaled down.
func (b *Base) FitField(w, h uint32, bytesPerCell uint64) (uint32, uint32) {
	lim := b.GPU.Limits()
	fw, fh := gpu.FitTextureDimension(w, h, lim.MaxTextureDimension2D)
	fw, fh, scaled := gpu.FitToLimits(fw, fh, bytesPerCell, b.GPU.StorageLimit())
	if scaled || fw != w || fh != h {
		simviz.Logger().Info("field scaled to device limits",
			"sim", b.kind, "requested_w", w, "requested_h", h, "w", fw, "h", fh)
	}
	return fw, fh
}

// ResizeTextures allocates a new pair at w×h and carries the current field
// over with nearest-neighbour scaling. If scaling fails the new field stays
// cleared and the failure is logged; the returned flag reports whether the
// contents survived. The old pair is released either way.
func (b *Base) ResizeTextures(old *gpu.PingPongTextures, w, h uint32) (*gpu.PingPongTextures, bool, error) {
	next, err := gpu.NewPingPongTextures(b.Owner, old.Label, w, h, old.Format, old.Usage)
	if err != nil {
		return nil, false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), ReadbackTimeout)
	defer cancel()
	err = gpu.RescaleTexture(ctx, b.GPU, old.CurrentTexture(), old.Width, old.Height,
		next.CurrentTexture(), w, h, old.Format)
	old.Release()
	if err != nil {
		simviz.Logger().Warn("field cleared on resize", "sim", b.kind, "err", err)
		return next, false, nil
	}
	return next, true, nil
}

// ResizeBuffers does the same for a ping-pong pair of row-major buffer
// fields with cell-byte cells.
func (b *Base) ResizeBuffers(old *gpu.PingPongBuffers, ow, oh, w, h uint32, cell int) (*gpu.PingPongBuffers, bool, error) {
	next, err := gpu.NewPingPongBuffers(b.Owner, old.Label, uint64(w)*uint64(h)*uint64(cell), old.Usage)
	if err != nil {
		return nil, false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), ReadbackTimeout)
	defer cancel()
	err = gpu.RescaleBuffer(ctx, b.GPU, old.Current(), ow, oh, next.Current(), w, h, cell)
	old.Release()
	if err != nil {
		simviz.Logger().Warn("field cleared on resize", "sim", b.kind, "err", err)
		return next, false, nil
	}
	return next, true, nil
}

// Resized applies the common part of a surface resize: the camera aspect
// and the recorded size. It reports false when the change is too small to
// reallocate anything.
func (b *Base) Resized(w, h uint32) bool {
	if w == 0 || h == 0 {
		return false
	}
	b.SetViewport(w, h)
	if !b.AcceptResize(w, h) {
		return false
	}
	b.Width, b.Height = w, h
	return true
}
