// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend provides a pluggable graphics API abstraction for
// ggshader.
//
// A backend owns one ggshader.Device. The shader system only ever talks to
// that device, so the same programs and uniform groups run on OpenGL, on
// WebGPU, or headless in tests and tools.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// Import the backends you want to make available:
//
//	import (
//		_ "github.com/gogpu/ggshader/backend/opengl"
//		_ "github.com/gogpu/ggshader/backend/headless"
//	)
//
// # Backend Selection
//
// Use Default() to get the best available backend, or Get() to request
// a specific backend by name:
//
//	// Get the default (best available) backend
//	b := backend.Default()
//
//	// Or request a specific backend
//	b := backend.Get(backend.BackendHeadless)
//
// InitDefault walks the priority list and returns the first backend whose
// Init succeeds, which makes headless a fallback when no GL context is
// current.
//
// # Usage with System
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	sys, err := backend.NewSystem(b)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sys.Destroy()
//
// # Available Backends
//
//   - "gl": OpenGL 3.3 core via go-gl (needs a current context)
//   - "wgpu": Pure Go WebGPU via gogpu/wgpu, uniforms in uniform buffers
//   - "headless": CPU-only reflection and state recording (always available)
package backend
