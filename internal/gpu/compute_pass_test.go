package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/wgpu"
)

// =============================================================================
// Workgroup math
// =============================================================================

func TestWorkgroupCount(t *testing.T) {
	tests := []struct {
		name    string
		n, size uint32
		want    uint32
	}{
		{"exact", 256, 64, 4},
		{"round up", 257, 64, 5},
		{"fewer than one group", 3, 64, 1},
		{"empty", 0, 64, 0},
		{"zero size", 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WorkgroupCount(tt.n, tt.size); got != tt.want {
				t.Errorf("WorkgroupCount(%d, %d) = %d, want %d", tt.n, tt.size, got, tt.want)
			}
		})
	}
}

func TestSplit2D(t *testing.T) {
	tests := []struct {
		name          string
		groups, limit uint32
	}{
		{"fits", 1000, 65535},
		{"at limit", 65535, 65535},
		{"one over", 65536, 65535},
		{"large", 1 << 22, 65535},
		{"default limit", 70000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Split2D(tt.groups, tt.limit)
			limit := tt.limit
			if limit == 0 {
				limit = MaxWorkgroupsPerDimension
			}
			if x > limit || y > limit {
				t.Errorf("Split2D(%d) = %d x %d exceeds %d", tt.groups, x, y, limit)
			}
			if uint64(x)*uint64(y) < uint64(tt.groups) {
				t.Errorf("Split2D(%d) = %d x %d covers too few groups", tt.groups, x, y)
			}
		})
	}
}

// =============================================================================
// ComputeStep validation
// =============================================================================

func TestComputeStepValidate(t *testing.T) {
	pipeline := &wgpu.ComputePipeline{}
	tests := []struct {
		name string
		step ComputeStep
		want error
	}{
		{"valid 1D", ComputeStep{Label: "a", Pipeline: pipeline, X: 4}, nil},
		{"valid 3D", ComputeStep{Label: "b", Pipeline: pipeline, X: 4, Y: 4, Z: 2}, nil},
		{"nil pipeline", ComputeStep{Label: "c", X: 1}, ErrNilComputePipeline},
		{"zero x", ComputeStep{Label: "d", Pipeline: pipeline}, ErrWorkgroupCountZero},
		{"over limit", ComputeStep{Label: "e", Pipeline: pipeline, X: 100, Y: 70000}, ErrWorkgroupCountExceedsLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.validate(MaxWorkgroupsPerDimension)
			if tt.want == nil {
				if err != nil {
					t.Errorf("validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
