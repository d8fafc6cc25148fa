package gpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/simviz"
)

const reflectTestShader = `
struct Params {
    width: u32,
    height: u32,
    scale: f32,
    _pad: u32,
}

struct Agent {
    pos: vec2<f32>,
    heading: f32,
    speed: f32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> agents: array<Agent>;
@group(1) @binding(0) var<storage, read> field: array<f32>;
@group(1) @binding(1) var out_tex: texture_storage_2d<rgba8unorm, write>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let i = id.x;
    if i >= arrayLength(&agents) {
        return;
    }
    var a = agents[i];
    a.pos = a.pos + vec2<f32>(cos(a.heading), sin(a.heading)) * a.speed * params.scale;
    agents[i] = a;
    textureStore(out_tex, vec2<i32>(i32(i % params.width), 0), vec4<f32>(field[i], 0.0, 0.0, 1.0));
}
`

func TestReflect(t *testing.T) {
	got, err := Reflect(reflectTestShader)
	if err != nil {
		t.Fatalf("Reflect() error = %v", err)
	}
	want := []Reflected{
		{Binding: Binding{0, 0, 16}, Name: "params"},
		{Binding: Binding{0, 1, 16}, Name: "agents", Storage: true, Runtime: true},
		{Binding: Binding{1, 0, 4}, Name: "field", Storage: true, Runtime: true},
	}
	if len(got) != len(want) {
		t.Fatalf("Reflect() = %+v, want %d buffers", got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestValidateLayout(t *testing.T) {
	tests := []struct {
		name    string
		expect  []Binding
		wantErr bool
	}{
		{"match", []Binding{{0, 0, 16}, {0, 1, 16}, {1, 0, 4}}, false},
		{"none", nil, false},
		{"uniform too small", []Binding{{0, 0, 12}}, true},
		{"element size", []Binding{{0, 1, 32}}, true},
		{"undeclared", []Binding{{2, 0, 4}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLayout(reflectTestShader, tt.expect)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLayout() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, simviz.ErrBufferSizeMismatch) {
				t.Errorf("error kind = %v, want BufferSizeMismatch", simviz.KindOf(err))
			}
		})
	}
}

func TestValidateLayoutMessage(t *testing.T) {
	err := ValidateLayout(reflectTestShader, []Binding{{0, 0, 20}})
	if err == nil || !strings.Contains(err.Error(), "host 20 bytes, shader 16 bytes") {
		t.Errorf("error = %v", err)
	}
}

func TestReflectSyntaxError(t *testing.T) {
	_, err := Reflect("fn main( {")
	if !errors.Is(err, simviz.ErrShaderCompilation) {
		t.Errorf("Reflect() error = %v, want ShaderCompilation", err)
	}
}
