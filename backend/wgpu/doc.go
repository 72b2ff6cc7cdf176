// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu provides the "wgpu" ggshader backend on top of the
// gogpu/wgpu HAL.
//
// WGSL has no default uniform block. Every uniform is a member of a
// var<uniform> buffer, so the device gives block members locations of
// their own and packs plain uniform writes into a staging copy of the
// block. Flush uploads the blocks that changed:
//
//	sys.Bind(sh, false)
//	dev.Flush()
//	// record the render pass, binding dev.BlockBuffer(h, "params")
//
// Uniform buffer groups are uploaded to shared device buffers and bound
// by binding point, so one buffer can back the same block of many
// programs.
//
// The Vulkan HAL backend is imported unless built with the nogpu tag.
// Use NewFromProvider to share a device with a gogpu window instead of
// opening a standalone one.
package wgpu
