// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package opengl

import (
	"fmt"
	"strings"

	"github.com/gogpu/ggshader"
	"github.com/gogpu/ggshader/internal/wgslreflect"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"
)

// translation is a WGSL program rewritten as GLSL 3.30 stages, with the
// names needed to report GL introspection results under WGSL names.
type translation struct {
	vertex   string
	fragment string

	attributes []ggshader.AttributeInfo

	// blocks maps the block names GL may report to the WGSL variable.
	blocks map[string]string

	// samplers maps combined texture-sampler names to the texture.
	samplers map[string]string
}

// translateWGSL reflects and translates a WGSL program. Both entry points
// may live in vertex, in which case fragment is empty.
func translateWGSL(vertex, fragment string) (*translation, error) {
	r, err := wgslreflect.ReflectProgram(vertex, fragment)
	if err != nil {
		return nil, err
	}
	if r.Vertex == "" {
		return nil, fmt.Errorf("wgsl: no vertex entry point")
	}
	vm, err := wgslreflect.Parse(vertex)
	if err != nil {
		return nil, err
	}
	fm := vm
	if fragment != "" && fragment != vertex {
		if fm, err = wgslreflect.Parse(fragment); err != nil {
			return nil, err
		}
	}

	t := &translation{
		attributes: r.Attributes,
		blocks:     make(map[string]string),
		samplers:   make(map[string]string),
	}
	var pairs []string
	t.vertex, pairs, err = compileStage(vm, r.Vertex)
	if err != nil {
		return nil, fmt.Errorf("vertex shader: %w", err)
	}
	var fpairs []string
	t.fragment, fpairs, err = compileStage(fm, r.Fragment)
	if err != nil {
		return nil, fmt.Errorf("fragment shader: %w", err)
	}
	pairs = append(pairs, fpairs...)

	t.addBlocks(vm)
	if fm != vm {
		t.addBlocks(fm)
	}
	for _, pair := range pairs {
		if tex := pairTexture(pair, r.Textures); tex != "" {
			t.samplers[pair] = tex
		}
	}
	return t, nil
}

func compileStage(m *ir.Module, entry string) (string, []string, error) {
	src, info, err := glsl.Compile(m, glsl.Options{
		LangVersion: glsl.Version330,
		EntryPoint:  entry,
	})
	if err != nil {
		return "", nil, err
	}
	return src, info.TextureSamplerPairs, nil
}

// addBlocks records the names a var<uniform> struct can take in GLSL:
// the variable itself, its struct type and the generated "_Type_ubo".
func (t *translation) addBlocks(m *ir.Module) {
	for _, gv := range m.GlobalVariables {
		if gv.Space != ir.SpaceUniform || int(gv.Type) >= len(m.Types) {
			continue
		}
		t.blocks[gv.Name] = gv.Name
		typ := m.Types[gv.Type]
		if _, ok := typ.Inner.(ir.StructType); ok && typ.Name != "" {
			t.blocks[typ.Name] = gv.Name
			t.blocks["_"+typ.Name+"_ubo"] = gv.Name
		}
	}
}

// pairTexture returns the texture of a "texture_sampler" pair, preferring
// the longest matching texture name.
func pairTexture(pair string, textures []wgslreflect.Texture) string {
	best := ""
	for _, tex := range textures {
		if strings.HasPrefix(pair, tex.Name+"_") && len(tex.Name) > len(best) {
			best = tex.Name
		}
	}
	return best
}

// rename maps a GL-reported uniform to its WGSL name. Members of a struct
// declared as a plain uniform already carry the WGSL name.
func (t *translation) rename(u ggshader.UniformInfo) ggshader.UniformInfo {
	if u.Block != "" {
		if v, ok := t.blocks[u.Block]; ok {
			u.Name = v + "." + strings.TrimPrefix(u.Name, u.Block+".")
			u.Block = v
		}
		return u
	}
	if tex, ok := t.samplers[u.Name]; ok {
		u.Name = tex
	}
	return u
}
