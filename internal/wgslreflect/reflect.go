// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgslreflect

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/ggshader"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// ErrNoEntryPoint is returned when a module declares neither a vertex nor
// a fragment entry point.
var ErrNoEntryPoint = errors.New("wgslreflect: no vertex or fragment entry point")

// ErrNoFragment is returned by ReflectProgram when no module declares a
// fragment entry point.
var ErrNoFragment = errors.New("wgslreflect: no fragment entry point")

// Block is a uniform buffer declared with var<uniform>.
type Block struct {
	Name    string
	Group   uint32
	Binding uint32
	Size    int
}

// Texture is a sampled texture resource.
type Texture struct {
	Name    string
	Group   uint32
	Binding uint32
	Type    ggshader.UniformType
}

// Reflection is the uniform interface of a WGSL module.
type Reflection struct {
	// Uniforms lists uniform buffer members as "block.member" with their
	// byte offsets, followed by textures as sampler uniforms.
	Uniforms []ggshader.UniformInfo

	// Attributes lists the vertex entry point inputs with their locations.
	Attributes []ggshader.AttributeInfo

	Blocks   []Block
	Textures []Texture

	// Vertex and Fragment name the first entry point of each stage.
	Vertex   string
	Fragment string

	Module *ir.Module
}

// Parse parses and lowers WGSL source into naga IR.
func Parse(source string) (*ir.Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("wgslreflect: parse: %w", err)
	}
	module, err := naga.Lower(ast)
	if err != nil {
		return nil, fmt.Errorf("wgslreflect: lower: %w", err)
	}
	return module, nil
}

// Reflect parses source and reports its uniform interface.
func Reflect(source string) (*Reflection, error) {
	module, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return ReflectModule(module)
}

// ReflectProgram reflects a program whose stages live in one module
// (fragment empty or equal to vertex) or in two. Uniforms and blocks of the
// fragment module that the vertex module already declares are reported once.
func ReflectProgram(vertex, fragment string) (*Reflection, error) {
	r, err := Reflect(vertex)
	if err != nil {
		return nil, err
	}
	if fragment == "" || fragment == vertex {
		if r.Fragment == "" {
			return nil, ErrNoFragment
		}
		return r, nil
	}
	fr, err := Reflect(fragment)
	if err != nil {
		return nil, err
	}
	if fr.Fragment == "" {
		return nil, ErrNoFragment
	}
	r.Fragment = fr.Fragment

	seen := make(map[string]bool, len(r.Uniforms))
	for _, u := range r.Uniforms {
		seen[u.Name] = true
	}
	for _, u := range fr.Uniforms {
		if !seen[u.Name] {
			r.Uniforms = append(r.Uniforms, u)
		}
	}
	blocks := make(map[string]bool, len(r.Blocks))
	for _, b := range r.Blocks {
		blocks[b.Name] = true
	}
	for _, b := range fr.Blocks {
		if !blocks[b.Name] {
			r.Blocks = append(r.Blocks, b)
		}
	}
	for _, tex := range fr.Textures {
		if !seen[tex.Name] {
			r.Textures = append(r.Textures, tex)
		}
	}
	return r, nil
}

// ReflectModule reports the uniform interface of an already lowered module.
func ReflectModule(m *ir.Module) (*Reflection, error) {
	r := &Reflection{Module: m}
	for _, ep := range m.EntryPoints {
		switch ep.Stage {
		case ir.StageVertex:
			if r.Vertex == "" {
				r.Vertex = ep.Name
				r.Attributes = vertexInputs(m, &ep.Function)
			}
		case ir.StageFragment:
			if r.Fragment == "" {
				r.Fragment = ep.Name
			}
		}
	}
	if r.Vertex == "" && r.Fragment == "" {
		return nil, ErrNoEntryPoint
	}

	for _, gv := range m.GlobalVariables {
		if gv.Binding == nil || int(gv.Type) >= len(m.Types) {
			continue
		}
		switch gv.Space {
		case ir.SpaceUniform:
			r.reflectBlock(m, gv)
		case ir.SpaceHandle:
			img, ok := m.Types[gv.Type].Inner.(ir.ImageType)
			if !ok {
				continue
			}
			typ := imageType(img)
			if typ == ggshader.TypeUnknown {
				continue
			}
			r.Textures = append(r.Textures, Texture{
				Name:    gv.Name,
				Group:   gv.Binding.Group,
				Binding: gv.Binding.Binding,
				Type:    typ,
			})
		}
	}

	sort.SliceStable(r.Textures, func(i, j int) bool {
		a, b := r.Textures[i], r.Textures[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Binding < b.Binding
	})
	for _, tex := range r.Textures {
		r.Uniforms = append(r.Uniforms, ggshader.UniformInfo{Name: tex.Name, Type: tex.Type, Size: 1})
	}
	return r, nil
}

func (r *Reflection) reflectBlock(m *ir.Module, gv ir.GlobalVariable) {
	block := Block{Name: gv.Name, Group: gv.Binding.Group, Binding: gv.Binding.Binding}
	inner := m.Types[gv.Type].Inner
	st, ok := inner.(ir.StructType)
	if !ok {
		// A bare var<uniform> is a block with a single member at offset 0.
		info, size, ok := memberInfo(m, gv.Type)
		if !ok {
			return
		}
		info.Name = gv.Name
		info.Block = gv.Name
		block.Size = size
		r.Blocks = append(r.Blocks, block)
		r.Uniforms = append(r.Uniforms, info)
		return
	}
	block.Size = int(st.Span)
	r.Blocks = append(r.Blocks, block)
	r.appendMembers(m, gv.Name, gv.Name+".", 0, st)
}

func (r *Reflection) appendMembers(m *ir.Module, block, prefix string, base uint32, st ir.StructType) {
	for _, member := range st.Members {
		if int(member.Type) >= len(m.Types) {
			continue
		}
		if nested, ok := m.Types[member.Type].Inner.(ir.StructType); ok {
			r.appendMembers(m, block, prefix+member.Name+".", base+member.Offset, nested)
			continue
		}
		info, _, ok := memberInfo(m, member.Type)
		if !ok {
			continue
		}
		info.Name = prefix + member.Name
		info.Block = block
		info.Offset = int(base + member.Offset)
		r.Uniforms = append(r.Uniforms, info)
	}
}

// memberInfo maps a uniform-space type to its ggshader type and std140 size.
func memberInfo(m *ir.Module, h ir.TypeHandle) (ggshader.UniformInfo, int, bool) {
	switch t := m.Types[h].Inner.(type) {
	case ir.ArrayType:
		if t.Size.Constant == nil || int(t.Base) >= len(m.Types) {
			return ggshader.UniformInfo{}, 0, false
		}
		typ := valueType(m.Types[t.Base].Inner)
		if typ == ggshader.TypeUnknown {
			return ggshader.UniformInfo{}, 0, false
		}
		n := int(*t.Size.Constant)
		info := ggshader.UniformInfo{Type: typ, Size: n, IsArray: true}
		_, size := ggshader.LayoutStd140([]ggshader.UniformInfo{info})
		return info, size, true
	default:
		typ := valueType(t)
		if typ == ggshader.TypeUnknown {
			return ggshader.UniformInfo{}, 0, false
		}
		info := ggshader.UniformInfo{Type: typ, Size: 1}
		_, size := ggshader.LayoutStd140([]ggshader.UniformInfo{info})
		return info, size, true
	}
}

var (
	floatVectors = [...]ggshader.UniformType{ggshader.TypeFloat, ggshader.TypeVec2, ggshader.TypeVec3, ggshader.TypeVec4}
	intVectors   = [...]ggshader.UniformType{ggshader.TypeInt, ggshader.TypeIVec2, ggshader.TypeIVec3, ggshader.TypeIVec4}
	uintVectors  = [...]ggshader.UniformType{ggshader.TypeUint, ggshader.TypeUVec2, ggshader.TypeUVec3, ggshader.TypeUVec4}
	boolVectors  = [...]ggshader.UniformType{ggshader.TypeBool, ggshader.TypeBVec2, ggshader.TypeBVec3, ggshader.TypeBVec4}
)

func vectorOf(kind ir.ScalarKind, n int) ggshader.UniformType {
	if n < 1 || n > 4 {
		return ggshader.TypeUnknown
	}
	switch kind {
	case ir.ScalarFloat:
		return floatVectors[n-1]
	case ir.ScalarSint:
		return intVectors[n-1]
	case ir.ScalarUint:
		return uintVectors[n-1]
	case ir.ScalarBool:
		return boolVectors[n-1]
	}
	return ggshader.TypeUnknown
}

func valueType(inner ir.TypeInner) ggshader.UniformType {
	switch t := inner.(type) {
	case ir.ScalarType:
		return vectorOf(t.Kind, 1)
	case ir.VectorType:
		return vectorOf(t.Scalar.Kind, int(t.Size))
	case ir.MatrixType:
		if t.Scalar.Kind != ir.ScalarFloat || t.Columns != t.Rows {
			return ggshader.TypeUnknown
		}
		switch t.Columns {
		case ir.Vec2:
			return ggshader.TypeMat2
		case ir.Vec3:
			return ggshader.TypeMat3
		case ir.Vec4:
			return ggshader.TypeMat4
		}
	}
	return ggshader.TypeUnknown
}

func imageType(img ir.ImageType) ggshader.UniformType {
	if img.Class != ir.ImageClassSampled || img.Multisampled {
		return ggshader.TypeUnknown
	}
	switch {
	case img.Dim == ir.Dim2D && img.Arrayed:
		return ggshader.TypeSampler2DArray
	case img.Dim == ir.Dim2D:
		return ggshader.TypeSampler2D
	case img.Dim == ir.DimCube && !img.Arrayed:
		return ggshader.TypeSamplerCube
	}
	return ggshader.TypeUnknown
}

// vertexInputs lists @location arguments of a vertex entry point, including
// the members of struct arguments.
func vertexInputs(m *ir.Module, fn *ir.Function) []ggshader.AttributeInfo {
	var out []ggshader.AttributeInfo
	add := func(name string, h ir.TypeHandle, b *ir.Binding) {
		if b == nil || int(h) >= len(m.Types) {
			return
		}
		loc, ok := (*b).(ir.LocationBinding)
		if !ok {
			return
		}
		out = append(out, ggshader.AttributeInfo{
			Name:     name,
			Type:     valueType(m.Types[h].Inner),
			Size:     1,
			Location: int(loc.Location),
		})
	}
	for _, arg := range fn.Arguments {
		if int(arg.Type) >= len(m.Types) {
			continue
		}
		if st, ok := m.Types[arg.Type].Inner.(ir.StructType); ok && arg.Binding == nil {
			for _, member := range st.Members {
				add(member.Name, member.Type, member.Binding)
			}
			continue
		}
		add(arg.Name, arg.Type, arg.Binding)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}
