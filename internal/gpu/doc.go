// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpu owns the GPU device, queue and surface shared by every
// simulation, and provides the resource discipline simulations build on.
//
// # Components
//
//   - [Context]: device, queue, adapter info and the presentation target
//     (a window surface or an offscreen texture). Hands out per-frame
//     targets through [Context.AcquireFrame].
//   - [Owner]: a per-simulation ledger of every GPU object it created.
//     Releasing the owner releases all of them and keeps the context's
//     live-resource counters exact.
//   - [Pair], [PingPongTextures], [PingPongBuffers], [BindGroupPair]:
//     two resources with alternating read/write roles. [Pair.Swap] is the
//     only role mutation.
//   - [ComputePipelineBuilder], [RenderPipelineBuilder]: fluent pipeline
//     construction. Every uniform and storage binding a pipeline declares
//     is checked against the WGSL source through naga reflection before
//     the pipeline is created.
//   - [FitToLimits], [ScaleNearest]: resize helpers that bound allocations
//     by device limits and carry fields across reallocation.
//
// # Locking
//
// Context embeds the "gpu" lock of the runtime. Callers that also hold the
// simulation manager lock must acquire the manager first.
//
// # Errors
//
// Errors carry a [simviz.Kind]: surface acquisition failures are transient,
// OutOfMemory and DeviceLost are fatal, shader and pipeline failures map to
// ShaderCompilation, PipelineCreation and BufferSizeMismatch.
package gpu
