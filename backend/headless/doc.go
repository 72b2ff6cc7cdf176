// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package headless implements a ggshader device without a GPU.
//
// The device reflects program sources the way a driver linker would:
// GLSL declarations (default block uniforms, structs, std140 uniform
// blocks and vertex inputs) are scanned from the source text, and WGSL
// modules are parsed with naga. Uniform writes, texture bindings and
// uniform buffer uploads are stored per program, so tests and tools can
// read back exactly what a frame left on the device.
//
// Lose simulates a lost context. Pair it with System.ContextChange and a
// fresh ContextID to exercise recompilation.
//
// Importing the package registers the "headless" backend.
package headless
