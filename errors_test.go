package simviz

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/wgpu"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"structured", InvalidSetting("feed_rate", "out of range"), KindInvalidSetting},
		{"wrapped structured", fmt.Errorf("apply: %w", PresetNotFound("Mitosis")), KindPresetNotFound},
		{"surface lost", wgpu.ErrSurfaceLost, KindSurfaceLost},
		{"surface outdated wrapped", fmt.Errorf("acquire: %w", wgpu.ErrSurfaceOutdated), KindSurfaceOutdated},
		{"oom", wgpu.ErrOutOfMemory, KindOutOfMemory},
		{"device lost", wgpu.ErrDeviceLost, KindDeviceLost},
		{"timeout", wgpu.ErrTimeout, KindTimeout},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorIsSentinel(t *testing.T) {
	err := fmt.Errorf("start: %w", Errorf(KindShaderCompilation, "line %d", 3))
	if !errors.Is(err, ErrShaderCompilation) {
		t.Error("errors.Is(err, ErrShaderCompilation) = false")
	}
	if errors.Is(err, ErrPipelineCreation) {
		t.Error("errors.Is(err, ErrPipelineCreation) = true, want false")
	}
	if errors.Is(ErrShaderCompilation, err) {
		t.Error("a sentinel must not match a detailed error as target")
	}
}

func TestKindPolicy(t *testing.T) {
	tests := []struct {
		kind      Kind
		transient bool
		fatal     bool
	}{
		{KindSurfaceLost, true, false},
		{KindSurfaceOutdated, true, false},
		{KindTimeout, true, false},
		{KindOutOfMemory, false, true},
		{KindDeviceLost, false, true},
		{KindInvalidSetting, false, false},
		{KindResourceScalingFailure, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Transient(); got != tt.transient {
				t.Errorf("Transient() = %v, want %v", got, tt.transient)
			}
			if got := tt.kind.Fatal(); got != tt.fatal {
				t.Errorf("Fatal() = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := InvalidSetting("kill_rate", "expected number, got %s", "string")
	want := `InvalidSetting "kill_rate": expected number, got string`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if Kind(200).String() != "Kind(200)" {
		t.Errorf("unknown kind String() = %q", Kind(200).String())
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
	e := Classify(wgpu.ErrDeviceLost)
	if e.Kind != KindDeviceLost || !errors.Is(e, wgpu.ErrDeviceLost) {
		t.Errorf("Classify(ErrDeviceLost) = %+v", e)
	}
	orig := Serialization("bad tree", nil)
	if Classify(orig) != orig {
		t.Error("Classify should return structured errors unchanged")
	}
	if Wrap(KindInternal, nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}
