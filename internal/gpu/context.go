package gpu

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/simviz"
	"github.com/gogpu/wgpu"
)

// Options configures a Context.
type Options struct {
	// DisplayHandle and WindowHandle are the native handles of the window
	// the surface is created for. When WindowHandle is zero the context
	// renders offscreen.
	DisplayHandle uintptr
	WindowHandle  uintptr

	// Width and Height are the initial surface or offscreen size in pixels.
	Width  uint32
	Height uint32

	// PresentMode requests a present mode. Fifo is used when the adapter
	// does not list it.
	PresentMode wgpu.PresentMode

	PowerPreference      wgpu.PowerPreference
	ForceFallbackAdapter bool
}

// SurfaceConfig is the active presentation configuration.
type SurfaceConfig struct {
	Width       uint32
	Height      uint32
	Format      wgpu.TextureFormat
	PresentMode wgpu.PresentMode
	AlphaMode   gputypes.CompositeAlphaMode
}

// Context owns the instance, adapter, device, queue and the presentation
// target. Lock and Unlock guard every use of the device; callers holding
// the manager lock acquire it second.
type Context struct {
	sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface
	info     wgpu.AdapterInfo
	limits   wgpu.Limits
	config   SurfaceConfig
	ledger   Ledger

	offscreen     *wgpu.Texture
	offscreenView *wgpu.TextureView

	shaders *ShaderManager
}

// New creates a context. The context renders to a window surface when
// opts.WindowHandle is set and to an RGBA8 texture otherwise.
func New(opts Options) (*Context, error) {
	if opts.Width == 0 || opts.Height == 0 {
		return nil, fmt.Errorf("gpu: invalid size %dx%d", opts.Width, opts.Height)
	}

	instance, err := wgpu.CreateInstance(&wgpu.InstanceDescriptor{Backends: wgpu.BackendsAll})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	c := &Context{instance: instance}

	if opts.WindowHandle != 0 {
		c.surface, err = instance.CreateSurface(opts.DisplayHandle, opts.WindowHandle)
		if err != nil {
			c.Release()
			return nil, fmt.Errorf("gpu: create surface: %w", err)
		}
	}

	c.adapter, err = instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference:      opts.PowerPreference,
		ForceFallbackAdapter: opts.ForceFallbackAdapter,
		CompatibleSurface:    c.surface,
	})
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("gpu: request adapter: %w", err)
	}
	c.info = c.adapter.Info()

	c.device, err = c.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "simviz",
		RequiredLimits: c.adapter.Limits(),
	})
	if err != nil {
		c.Release()
		return nil, simviz.Wrap(simviz.KindOf(err), err, "request device")
	}
	c.queue = c.device.Queue()
	c.limits = c.device.Limits()
	c.shaders = NewShaderManager(c.device)

	if c.surface != nil {
		caps := c.adapter.GetSurfaceCapabilities(c.surface)
		c.config = SurfaceConfig{
			Width:       opts.Width,
			Height:      opts.Height,
			Format:      chooseFormat(caps),
			PresentMode: choosePresentMode(caps, opts.PresentMode),
			AlphaMode:   gputypes.CompositeAlphaModeAuto,
		}
		if err := c.configure(); err != nil {
			c.Release()
			return nil, err
		}
	} else {
		c.config = SurfaceConfig{
			Width:       opts.Width,
			Height:      opts.Height,
			Format:      gputypes.TextureFormatRGBA8Unorm,
			PresentMode: wgpu.PresentModeFifo,
			AlphaMode:   gputypes.CompositeAlphaModeAuto,
		}
		if err := c.allocateOffscreen(); err != nil {
			c.Release()
			return nil, err
		}
	}

	slogger().Info("gpu: adapter selected",
		"name", c.info.Name,
		"type", c.info.DeviceType,
		"format", c.config.Format,
		"present", c.config.PresentMode,
		"offscreen", c.surface == nil,
		"size", fmt.Sprintf("%dx%d", c.config.Width, c.config.Height))
	return c, nil
}

func chooseFormat(caps *wgpu.SurfaceCapabilities) wgpu.TextureFormat {
	if caps == nil || len(caps.Formats) == 0 {
		return gputypes.TextureFormatBGRA8Unorm
	}
	for _, want := range []wgpu.TextureFormat{gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatRGBA8Unorm} {
		for _, f := range caps.Formats {
			if f == want {
				return f
			}
		}
	}
	return caps.Formats[0]
}

func choosePresentMode(caps *wgpu.SurfaceCapabilities, want wgpu.PresentMode) wgpu.PresentMode {
	if want == wgpu.PresentModeFifo || caps == nil {
		return wgpu.PresentModeFifo
	}
	for _, m := range caps.PresentModes {
		if m == want {
			return m
		}
	}
	return wgpu.PresentModeFifo
}

func (c *Context) configure() error {
	err := c.surface.Configure(c.device, &wgpu.SurfaceConfiguration{
		Width:       c.config.Width,
		Height:      c.config.Height,
		Format:      c.config.Format,
		Usage:       wgpu.TextureUsageRenderAttachment,
		PresentMode: c.config.PresentMode,
		AlphaMode:   c.config.AlphaMode,
	})
	if err != nil {
		return simviz.Wrap(simviz.KindOf(err), err, "configure surface %dx%d", c.config.Width, c.config.Height)
	}
	return nil
}

func (c *Context) allocateOffscreen() error {
	if c.offscreenView != nil {
		c.offscreenView.Release()
		c.offscreen.Release()
	}
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "offscreen",
		Size:          wgpu.Extent3D{Width: c.config.Width, Height: c.config.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        c.config.Format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return simviz.Wrap(simviz.KindOf(err), err, "create offscreen target")
	}
	view, err := c.device.CreateTextureView(tex, nil)
	if err != nil {
		tex.Release()
		return simviz.Wrap(simviz.KindOf(err), err, "create offscreen view")
	}
	c.offscreen, c.offscreenView = tex, view
	return nil
}

// Frame is one acquired presentation target.
type Frame struct {
	View   *wgpu.TextureView
	Width  uint32
	Height uint32
	Format wgpu.TextureFormat

	ctx     *Context
	texture *wgpu.SurfaceTexture
}

// Present queues the frame for display. Offscreen frames are kept in the
// offscreen texture for Snapshot.
func (f *Frame) Present() error {
	if f.texture == nil {
		return nil
	}
	defer f.View.Release()
	if err := f.ctx.surface.Present(f.texture); err != nil {
		return simviz.Wrap(simviz.KindOf(err), err, "present")
	}
	return nil
}

// Discard drops an acquired frame without presenting it.
func (f *Frame) Discard() {
	if f.texture == nil {
		return
	}
	f.View.Release()
	f.ctx.surface.DiscardTexture()
}

// AcquireFrame returns the next target. Errors carry SurfaceLost,
// SurfaceOutdated, Timeout, OutOfMemory or DeviceLost kinds.
func (c *Context) AcquireFrame() (*Frame, error) {
	frame := &Frame{
		Width:  c.config.Width,
		Height: c.config.Height,
		Format: c.config.Format,
		ctx:    c,
	}
	if c.surface == nil {
		frame.View = c.offscreenView
		return frame, nil
	}
	st, suboptimal, err := c.surface.GetCurrentTexture()
	if err != nil {
		return nil, simviz.Wrap(simviz.KindOf(err), err, "acquire surface texture")
	}
	if suboptimal {
		slogger().Debug("gpu: suboptimal surface texture")
	}
	view, err := st.CreateView(nil)
	if err != nil {
		c.surface.DiscardTexture()
		return nil, simviz.Wrap(simviz.KindOf(err), err, "create surface view")
	}
	frame.View = view
	frame.texture = st
	return frame, nil
}

// Reconfigure records the latest size and reconfigures the target.
// Zero sizes are ignored (minimized windows).
func (c *Context) Reconfigure(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if width == c.config.Width && height == c.config.Height {
		return nil
	}
	c.config.Width, c.config.Height = width, height
	if c.surface == nil {
		return c.allocateOffscreen()
	}
	slogger().Debug("gpu: reconfigure surface", "width", width, "height", height)
	return c.configure()
}

// Recover reconfigures the surface with the latest size after a
// SurfaceLost or SurfaceOutdated error.
func (c *Context) Recover() error {
	if c.surface == nil {
		return nil
	}
	slogger().Warn("gpu: surface reconfigure after loss",
		"width", c.config.Width, "height", c.config.Height)
	return c.configure()
}

// CreateCommandEncoder creates an encoder on the device.
func (c *Context) CreateCommandEncoder(label string) (*wgpu.CommandEncoder, error) {
	enc, err := c.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, simviz.Wrap(simviz.KindOf(err), err, "create command encoder %q", label)
	}
	return enc, nil
}

// Submit finishes nothing itself; it submits already finished buffers.
func (c *Context) Submit(cbs ...*wgpu.CommandBuffer) error {
	if _, err := c.queue.Submit(cbs...); err != nil {
		return simviz.Wrap(simviz.KindOf(err), err, "submit")
	}
	return nil
}

// FinishAndSubmit finishes enc and submits the resulting buffer.
func (c *Context) FinishAndSubmit(enc *wgpu.CommandEncoder) error {
	cb, err := enc.Finish()
	if err != nil {
		return simviz.Wrap(simviz.KindOf(err), err, "finish encoder")
	}
	return c.Submit(cb)
}

// Device returns the logical device.
func (c *Context) Device() *wgpu.Device { return c.device }

// Queue returns the device queue.
func (c *Context) Queue() *wgpu.Queue { return c.queue }

// Limits returns the device limits.
func (c *Context) Limits() wgpu.Limits { return c.limits }

// StorageLimit returns the largest storage buffer binding the device
// accepts, bounded by the maximum buffer size.
func (c *Context) StorageLimit() uint64 {
	return min(c.limits.MaxStorageBufferBindingSize, c.limits.MaxBufferSize)
}

// AdapterInfo returns the adapter description.
func (c *Context) AdapterInfo() wgpu.AdapterInfo { return c.info }

// SurfaceConfig returns the current presentation configuration.
func (c *Context) SurfaceConfig() SurfaceConfig { return c.config }

// Offscreen reports whether the context renders to a texture.
func (c *Context) Offscreen() bool { return c.surface == nil }

// Ledger returns the live-resource counters of every owner created by
// NewOwner.
func (c *Context) Ledger() *Ledger { return &c.ledger }

// NewOwner creates a resource owner recording into the context ledger.
func (c *Context) NewOwner() *Owner { return NewOwner(c.device, &c.ledger) }

// Shaders returns the shader module cache.
func (c *Context) Shaders() *ShaderManager { return c.shaders }

// Snapshot reads the offscreen target back as RGBA.
func (c *Context) Snapshot(ctx context.Context) (*Image, error) {
	if c.surface != nil {
		return nil, errors.New("gpu: snapshot requires an offscreen context")
	}
	data, err := ReadTexture(ctx, c, c.offscreen, c.config.Width, c.config.Height, c.config.Format)
	if err != nil {
		return nil, err
	}
	return &Image{Width: int(c.config.Width), Height: int(c.config.Height), Pix: data}, nil
}

// Release frees everything the context created.
func (c *Context) Release() {
	if c.shaders != nil {
		c.shaders.Release()
		c.shaders = nil
	}
	if c.offscreenView != nil {
		c.offscreenView.Release()
		c.offscreen.Release()
		c.offscreenView, c.offscreen = nil, nil
	}
	if c.surface != nil {
		c.surface.Release()
		c.surface = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}

// Provider adapts a Context to gpucontext.DeviceProvider for host
// integrations that share the device.
func (c *Context) Provider() gpucontext.DeviceProvider { return provider{c} }

type provider struct{ c *Context }

func (p provider) Device() gpucontext.Device { return p.c.device }
func (p provider) Queue() gpucontext.Queue   { return p.c.queue }
func (p provider) Adapter() gpucontext.Adapter {
	return p.c.adapter
}
func (p provider) SurfaceFormat() gputypes.TextureFormat { return p.c.config.Format }

func (p provider) AdapterInfo() gpucontext.AdapterInfo {
	t := gpucontext.AdapterTypeUnknown
	switch p.c.info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		t = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		t = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		t = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: p.c.info.Name, Type: t}
}
