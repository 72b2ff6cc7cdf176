// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

// Shader pairs a Program with the UniformGroup it is drawn with. Many
// shaders may share one Program; binding them one after another never
// recompiles or switches programs.
type Shader struct {
	program  *Program
	uniforms *UniformGroup
}

// NewShader creates a shader. A nil group is replaced by an empty,
// non-static one.
func NewShader(p *Program, uniforms *UniformGroup) *Shader {
	if uniforms == nil {
		uniforms = NewUniformGroup(false)
	}
	return &Shader{program: p, uniforms: uniforms}
}

// Program returns the shader's program.
func (s *Shader) Program() *Program { return s.program }

// Uniforms returns the shader's uniform group.
func (s *Shader) Uniforms() *UniformGroup { return s.uniforms }

// HasUniform reports whether name is set in the shader's group or in any
// group nested in it.
func (s *Shader) HasUniform(name string) bool {
	return hasUniform(s.uniforms, name, make(map[*UniformGroup]bool))
}

func hasUniform(g *UniformGroup, name string, seen map[*UniformGroup]bool) bool {
	if g == nil || seen[g] {
		return false
	}
	seen[g] = true
	if g.Has(name) {
		return true
	}
	for i := range g.values {
		if uv := &g.values[i]; uv.kind == valueGroup && hasUniform(uv.group, name, seen) {
			return true
		}
	}
	return false
}
