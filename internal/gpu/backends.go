//go:build !(js && wasm)

package gpu

import (
	// Registers Vulkan, Metal, DX12 and GLES per platform plus the software
	// rasterizer, which serves headless runs without a GPU.
	_ "github.com/gogpu/wgpu/hal/allbackends"
)
