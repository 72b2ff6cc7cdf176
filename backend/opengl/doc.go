// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package opengl provides the "gl" ggshader backend on OpenGL 3.3 core
// through go-gl.
//
// GLSL programs are introspected with the GL program interface queries.
// WGSL programs are translated to GLSL 3.30 with naga, and the names GL
// reports (generated block names, combined texture-sampler uniforms) are
// mapped back to the WGSL variable names, so the same uniform groups work
// on both languages.
//
// Init needs a current context, created by the windowing layer:
//
//	glfw.MakeContextCurrent(window)
//	b := backend.Get(backend.BackendGL)
//	if err := b.Init(); err != nil {
//		// fall back to another backend
//	}
//
// After a context loss, call Forget on the device, create the new context
// and pass a new identity to System.ContextChange.
//
// The package is empty of GL code when built with the nogpu tag.
package opengl
