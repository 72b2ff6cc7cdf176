// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ggshader binds shader programs and synchronizes uniforms for a GPU
// 2D renderer.
//
// # Overview
//
// A renderer draws thousands of objects per frame, each with a shader and a
// handful of uniforms. ggshader keeps that cheap: programs are compiled once
// per GPU context, the active program is switched only when it changes, and
// uniform groups are uploaded through routines generated once per uniform
// shape instead of dispatching on every uniform's type every frame.
//
// # Quick Start
//
//	import "github.com/gogpu/ggshader"
//
//	sys, err := ggshader.NewSystem(dev)
//	if err != nil {
//	    return err
//	}
//
//	prog := ggshader.NewProgram("sprite", ggshader.Source{
//	    Vertex:   vert,
//	    Fragment: frag,
//	})
//	group := ggshader.NewUniformGroup(false)
//	group.SetAff3("uTransform", xf)
//	group.SetTexture("uTexture", tex)
//
//	sh := ggshader.NewShader(prog, group)
//	if _, err := sys.Bind(sh, false); err != nil {
//	    return err
//	}
//
// # Architecture
//
//   - Program, CompiledProgram: source and its per-context compiled form
//   - UniformGroup, Shader: values and their usage site
//   - Signature, SyncRoutine, SyncCache: shape keys and cached upload plans
//   - System: binding, synchronization and context lifecycle
//   - Registry: instance and context identities, shared routine cache
//
// The GPU is reached through the Device interface. Implementations live in
// backend/opengl (OpenGL 3.3), backend/wgpu (gogpu/wgpu HAL) and
// backend/headless (recording, for tests and tools).
//
// # Context Loss
//
// Compiled programs are keyed by ContextID. After a context is lost and
// restored, call System.ContextChange with a new identity; each program is
// recompiled the next time it is bound.
//
// # Threading
//
// A System and the groups it synchronizes belong to the goroutine that owns
// the GPU context. SyncCache and Registry may be shared.
package ggshader

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
