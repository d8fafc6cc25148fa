package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu"
)

// Dispatch errors.
var (
	// ErrWorkgroupCountZero is returned when any workgroup dimension is zero.
	ErrWorkgroupCountZero = errors.New("gpu: workgroup count must be greater than zero")

	// ErrWorkgroupCountExceedsLimit is returned when a dimension exceeds the device limit.
	ErrWorkgroupCountExceedsLimit = errors.New("gpu: workgroup count exceeds device limit")

	// ErrNilComputePipeline is returned when a step has no pipeline.
	ErrNilComputePipeline = errors.New("gpu: compute pipeline is nil")
)

// MaxWorkgroupsPerDimension is the WebGPU default limit per dispatch axis.
const MaxWorkgroupsPerDimension = 65535

// WorkgroupCount returns ceil(n / size), the groups needed to cover n items.
func WorkgroupCount(n, size uint32) uint32 {
	if size == 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Split2D spreads groups over two axes when a 1D dispatch would exceed
// limit. Shaders recover the linear index as id.x + id.y * x * workgroup
// size and discard indices past the item count.
func Split2D(groups, limit uint32) (x, y uint32) {
	if limit == 0 {
		limit = MaxWorkgroupsPerDimension
	}
	if groups <= limit {
		return groups, 1
	}
	y = WorkgroupCount(groups, limit)
	x = WorkgroupCount(groups, y)
	return x, y
}

// ComputeStep is one dispatch in a compute pass.
type ComputeStep struct {
	Label    string
	Pipeline *wgpu.ComputePipeline
	Groups   []*wgpu.BindGroup
	X, Y, Z  uint32
}

func (s ComputeStep) validate(limit uint32) error {
	if s.Pipeline == nil {
		return fmt.Errorf("%w: step %q", ErrNilComputePipeline, s.Label)
	}
	for _, n := range [3]uint32{s.X, max(s.Y, 1), max(s.Z, 1)} {
		if n == 0 {
			return fmt.Errorf("%w: step %q", ErrWorkgroupCountZero, s.Label)
		}
		if n > limit {
			return fmt.Errorf("%w: step %q dispatches %d > %d", ErrWorkgroupCountExceedsLimit, s.Label, n, limit)
		}
	}
	return nil
}

// RunCompute records the steps into one compute pass. Steps with zero
// groups are skipped so empty populations dispatch nothing.
func (c *Context) RunCompute(enc *wgpu.CommandEncoder, label string, steps ...ComputeStep) error {
	limit := c.limits.MaxComputeWorkgroupsPerDimension
	if limit == 0 {
		limit = MaxWorkgroupsPerDimension
	}
	pass, err := enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("gpu: begin compute pass %q: %w", label, err)
	}
	for _, s := range steps {
		if s.X == 0 {
			continue
		}
		if err := s.validate(limit); err != nil {
			_ = pass.End()
			return err
		}
		pass.SetPipeline(s.Pipeline)
		for i, g := range s.Groups {
			pass.SetBindGroup(uint32(i), g, nil)
		}
		pass.Dispatch(s.X, max(s.Y, 1), max(s.Z, 1))
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("gpu: end compute pass %q: %w", label, err)
	}
	return nil
}
