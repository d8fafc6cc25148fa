package gpu

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/simviz"
	"github.com/gogpu/wgpu"
)

// Binding identifies a buffer binding and the host size of its element.
// For runtime-sized storage arrays Size is the size of one element.
type Binding struct {
	Group   uint32
	Binding uint32
	Size    uint64
}

func (b Binding) String() string {
	return fmt.Sprintf("@group(%d) @binding(%d)", b.Group, b.Binding)
}

// Reflected describes a uniform or storage buffer declared by a shader.
type Reflected struct {
	Binding
	Name    string
	Storage bool
	// Runtime is set for runtime-sized arrays; Size is then the stride.
	Runtime bool
}

// Reflect parses WGSL and lists its uniform and storage buffer bindings
// sorted by group and binding. Textures and samplers are skipped.
func Reflect(src string) ([]Reflected, error) {
	module, err := compile(src)
	if err != nil {
		return nil, err
	}
	var out []Reflected
	for _, g := range module.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		if g.Space != ir.SpaceUniform && g.Space != ir.SpaceStorage {
			continue
		}
		r := Reflected{
			Binding: Binding{Group: g.Binding.Group, Binding: g.Binding.Binding},
			Name:    g.Name,
			Storage: g.Space == ir.SpaceStorage,
		}
		inner := module.Types[g.Type].Inner
		if arr, ok := inner.(ir.ArrayType); ok && arr.Size.Constant == nil {
			r.Runtime = true
			r.Size = uint64(arr.Stride)
		} else {
			r.Size = uint64(ir.TypeSize(module, g.Type))
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Binding.Binding < out[j].Binding.Binding
	})
	return out, nil
}

func compile(src string) (*ir.Module, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, simviz.Wrap(simviz.KindShaderCompilation, err, "parse")
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, simviz.Wrap(simviz.KindShaderCompilation, err, "lower")
	}
	return module, nil
}

// ValidateLayout checks every expected binding against the shader. A
// binding the shader does not declare, or one whose size differs, fails
// with BufferSizeMismatch.
func ValidateLayout(src string, expect []Binding) error {
	if len(expect) == 0 {
		return nil
	}
	decl, err := Reflect(src)
	if err != nil {
		return err
	}
	byKey := make(map[[2]uint32]Reflected, len(decl))
	for _, r := range decl {
		byKey[[2]uint32{r.Group, r.Binding.Binding}] = r
	}
	var problems []string
	for _, e := range expect {
		r, ok := byKey[[2]uint32{e.Group, e.Binding}]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s not declared", e))
		case r.Size != e.Size:
			problems = append(problems, fmt.Sprintf("%s %s: host %d bytes, shader %d bytes", e, r.Name, e.Size, r.Size))
		}
	}
	if len(problems) > 0 {
		return simviz.Errorf(simviz.KindBufferSizeMismatch, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// ShaderManager caches shader modules by source hash. Modules live as long
// as the manager.
type ShaderManager struct {
	device *wgpu.Device

	mu      sync.Mutex
	modules map[uint64]*wgpu.ShaderModule
}

// NewShaderManager creates an empty cache for device.
func NewShaderManager(device *wgpu.Device) *ShaderManager {
	return &ShaderManager{device: device, modules: make(map[uint64]*wgpu.ShaderModule)}
}

// Module returns the module for src, compiling it on first use. WGSL is
// validated through naga first so syntax errors surface as
// ShaderCompilation with line information.
func (m *ShaderManager) Module(label, src string) (*wgpu.ShaderModule, error) {
	key := xxhash.Sum64String(src)

	m.mu.Lock()
	defer m.mu.Unlock()
	if mod, ok := m.modules[key]; ok {
		return mod, nil
	}
	module, err := compile(src)
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", label, err)
	}
	if verrs, err := naga.Validate(module); err != nil || len(verrs) > 0 {
		// The device compiler has the final word; naga findings are advisory.
		slogger().Warn("gpu: shader validation", "label", label, "err", err, "issues", len(verrs))
	}
	mod, err := m.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{Label: label, WGSL: src})
	if err != nil {
		return nil, simviz.Wrap(simviz.KindShaderCompilation, err, "create module %q", label)
	}
	m.modules[key] = mod
	slogger().Debug("gpu: shader compiled", "label", label, "bytes", len(src))
	return mod, nil
}

// Len returns the number of cached modules.
func (m *ShaderManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.modules)
}

// Release frees every cached module.
func (m *ShaderManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, mod := range m.modules {
		mod.Release()
		delete(m.modules, k)
	}
}
