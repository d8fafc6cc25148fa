// Package simviz is the runtime core of a GPU-accelerated 2D simulation
// visualizer.
//
// # Overview
//
// simviz hosts a family of 2D simulations (slime-mold agents, Gray-Scott
// reaction-diffusion, particle life, fluid advection, moiré and flow fields,
// pellets, space colonization, ecosystem agents, wanderers) behind one
// uniform contract. Every simulation composes compute and render passes
// against a shared GPU context, ping-pong resources and a camera with
// infinite tiling, and exposes the same settings/state surface to a host.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/simviz/internal/gpu"
//		"github.com/gogpu/simviz/internal/manager"
//		_ "github.com/gogpu/simviz/internal/sims/all"
//	)
//
//	c, _ := gpu.New(gpu.Options{Width: 1280, Height: 720})
//	m, _ := manager.New(manager.Options{GPU: c})
//	_ = m.Start("gray_scott")
//	_ = m.StartRenderLoop(emitter)
//
// # Architecture
//
// The module is organized into:
//   - simviz: logging and the error taxonomy shared by every package
//   - internal/gpu: device, surface, ping-pong resources, pipeline builders
//   - internal/camera: 2D orthographic camera and tiling math
//   - internal/lut: 256-entry color schemes and GPU upload
//   - internal/sim: the Simulation contract, settings helpers, tiling renderer
//   - internal/sims/...: the simulations
//   - internal/manager: the simulation manager and the render loop
//   - internal/host: the JSON-lines command surface and window event binding
//   - internal/preset, internal/mask: preset files and image masks
//   - cmd/simviz: the headless command
//
// # Coordinate System
//
// World space is the normalized square [-1,1]² with Y up. Screen space is
// pixels with the origin at the top-left and Y down. Texture space is
// [0,1]², reached from world space by (u,v) = ((x+1)/2, (y+1)/2).
package simviz

// Version information
const (
	// Version is the current version of the module
	Version = "0.4.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 4

	// VersionPatch is the patch version
	VersionPatch = 0
)
