// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgslreflect reports the uniform interface of WGSL shaders.
//
// Sources are parsed and lowered with naga. Uniform buffer structs are
// flattened into "block.member" entries carrying the byte offsets naga
// computed, sampled textures are reported as sampler uniforms, and the
// vertex entry point inputs are reported as attributes. Backends use the
// result to answer ActiveUniforms and ActiveAttributes for WGSL programs.
package wgslreflect
