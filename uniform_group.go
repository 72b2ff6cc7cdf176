// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"slices"
	"sync/atomic"

	"golang.org/x/image/math/f32"
)

// groupIDs issues UniformGroup identities. Programs record per-group sync
// state by identity so they never hold a reference to a group.
//
// Unlike system ids and context identities, which Registry issues, group
// ids come from one process-wide counter: groups are created before and
// independently of any Registry, are shared between systems of different
// registries, and only need to be distinct from each other.
var groupIDs atomic.Uint64

// UniformGroup is an ordered set of named uniform values shared by any number
// of shaders. Every mutation bumps the group's dirty id; a static group is
// uploaded to a program again only when that id changes.
//
// Values are normalized when set: numbers and vectors to float32, int32 or
// uint32 buffers, f32 matrices to column-major float32, textures and nested
// groups by reference.
//
// UniformGroup is not safe for concurrent use.
type UniformGroup struct {
	id     uint64
	names  []string
	index  map[string]int
	values []uniformValue

	static  bool
	ubo     bool
	dirtyID uint64
	shape   uint64 // bumped when members are added, removed or change kind

	buffer *UniformBuffer
}

// NewUniformGroup creates an empty group synchronized through per-uniform
// uploads.
func NewUniformGroup(static bool) *UniformGroup {
	return &UniformGroup{
		id:     groupIDs.Add(1),
		index:  make(map[string]int),
		static: static,
	}
}

// NewUniformBufferGroup creates an empty group synchronized as a uniform
// block: its values are packed into one UniformBuffer when it is nested in
// another group under the block's name.
func NewUniformBufferGroup(static bool) *UniformGroup {
	g := NewUniformGroup(static)
	g.ubo = true
	g.buffer = &UniformBuffer{}
	return g
}

// Set stores v under name, appending name if it is new. Supported values are
// float32, float64, int, int32, uint32, bool, slices of those, [N]float32,
// f32.Vec2/3/4, f32.Mat3, f32.Mat4, f32.Aff3, Texture, []Texture and
// *UniformGroup. Other values return ErrUnsupportedValue and leave the group
// unchanged.
func (g *UniformGroup) Set(name string, v any) error {
	if i, ok := g.index[name]; ok {
		uv := &g.values[i]
		prev := uv.kind
		if err := uv.assign(v); err != nil {
			return err
		}
		g.touch(prev != uv.kind)
		return nil
	}
	var uv uniformValue
	if err := uv.assign(v); err != nil {
		return err
	}
	g.append(name, uv)
	g.touch(true)
	return nil
}

// SetFloat stores a float uniform.
func (g *UniformGroup) SetFloat(name string, v float32) {
	uv, prev := g.slot(name)
	uv.setFloats(1)[0] = v
	g.touch(prev != valueFloat)
}

// SetVec2 stores a vec2 uniform.
func (g *UniformGroup) SetVec2(name string, v f32.Vec2) {
	uv, prev := g.slot(name)
	copy(uv.setFloats(2), v[:])
	g.touch(prev != valueFloat)
}

// SetVec3 stores a vec3 uniform.
func (g *UniformGroup) SetVec3(name string, v f32.Vec3) {
	uv, prev := g.slot(name)
	copy(uv.setFloats(3), v[:])
	g.touch(prev != valueFloat)
}

// SetVec4 stores a vec4 uniform.
func (g *UniformGroup) SetVec4(name string, v f32.Vec4) {
	uv, prev := g.slot(name)
	copy(uv.setFloats(4), v[:])
	g.touch(prev != valueFloat)
}

// SetMat3 stores a row-major f32.Mat3 as a column-major mat3 uniform.
func (g *UniformGroup) SetMat3(name string, m f32.Mat3) {
	uv, prev := g.slot(name)
	transposeInto(uv.setFloats(9), m[:], 3)
	g.touch(prev != valueFloat)
}

// SetAff3 stores a 2D affine transform as a mat3 uniform.
func (g *UniformGroup) SetAff3(name string, m f32.Aff3) {
	uv, prev := g.slot(name)
	aff3Into(uv.setFloats(9), m)
	g.touch(prev != valueFloat)
}

// SetMat4 stores a row-major f32.Mat4 as a column-major mat4 uniform.
func (g *UniformGroup) SetMat4(name string, m f32.Mat4) {
	uv, prev := g.slot(name)
	transposeInto(uv.setFloats(16), m[:], 4)
	g.touch(prev != valueFloat)
}

// SetInt stores an int uniform.
func (g *UniformGroup) SetInt(name string, v int32) {
	uv, prev := g.slot(name)
	uv.setInts(1)[0] = v
	g.touch(prev != valueInt)
}

// SetTexture stores a texture for a sampler uniform.
func (g *UniformGroup) SetTexture(name string, tex Texture) {
	uv, prev := g.slot(name)
	uv.reset(valueTexture)
	uv.tex = tex
	g.touch(prev != valueTexture)
}

// SetGroup nests child under name. Nested uniform buffer groups are
// synchronized as uniform blocks named name.
func (g *UniformGroup) SetGroup(name string, child *UniformGroup) {
	uv, prev := g.slot(name)
	uv.reset(valueGroup)
	uv.group = child
	g.touch(prev != valueGroup)
}

// Group returns the nested group stored under name.
func (g *UniformGroup) Group(name string) (*UniformGroup, bool) {
	i, ok := g.index[name]
	if !ok || g.values[i].kind != valueGroup {
		return nil, false
	}
	return g.values[i].group, true
}

// Has reports whether the group has a member called name.
func (g *UniformGroup) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Names returns the member names in declaration order.
func (g *UniformGroup) Names() []string {
	return append([]string(nil), g.names...)
}

// Len returns the number of members.
func (g *UniformGroup) Len() int { return len(g.names) }

// Delete removes name from the group. It reports whether name was present.
func (g *UniformGroup) Delete(name string) bool {
	i, ok := g.index[name]
	if !ok {
		return false
	}
	g.names = slices.Delete(g.names, i, i+1)
	g.values = slices.Delete(g.values, i, i+1)
	delete(g.index, name)
	for k := i; k < len(g.names); k++ {
		g.index[g.names[k]] = k
	}
	g.touch(true)
	return true
}

// Update marks the group dirty after values were changed in place, for
// example a texture whose contents were replaced.
func (g *UniformGroup) Update() { g.dirtyID++ }

// DirtyID returns the mutation counter.
func (g *UniformGroup) DirtyID() uint64 { return g.dirtyID }

// IsStatic reports whether the group is static.
func (g *UniformGroup) IsStatic() bool { return g.static }

// SetStatic marks the group static. A static group is uploaded once per
// program and again only after a mutation.
func (g *UniformGroup) SetStatic(static bool) { g.static = static }

// IsBuffer reports whether the group is a uniform buffer group.
func (g *UniformGroup) IsBuffer() bool { return g.ubo }

// Buffer returns the packed block storage of a uniform buffer group, or nil.
func (g *UniformGroup) Buffer() *UniformBuffer { return g.buffer }

// slot returns the value of name, appending an empty member when absent,
// together with its kind before the caller overwrites it. The pointer is
// valid until the next append. Callers must touch the group.
func (g *UniformGroup) slot(name string) (*uniformValue, valueKind) {
	if i, ok := g.index[name]; ok {
		return &g.values[i], g.values[i].kind
	}
	g.append(name, uniformValue{})
	return &g.values[len(g.values)-1], valueNone
}

func (g *UniformGroup) append(name string, uv uniformValue) {
	g.index[name] = len(g.names)
	g.names = append(g.names, name)
	g.values = append(g.values, uv)
}

// touch records a mutation; shapeChanged also invalidates routines bound to
// the previous member layout.
func (g *UniformGroup) touch(shapeChanged bool) {
	g.dirtyID++
	if shapeChanged {
		g.shape++
	}
}

// inject nests child under name unless it is already there. It returns
// whether the group changed.
func (g *UniformGroup) inject(name string, child *UniformGroup) bool {
	if i, ok := g.index[name]; ok {
		if uv := &g.values[i]; uv.kind == valueGroup && uv.group == child {
			return false
		}
	}
	g.SetGroup(name, child)
	return true
}

// valueAt resolves a member path through nested groups. It returns nil when
// the path no longer matches the group.
func (g *UniformGroup) valueAt(path []int) *uniformValue {
	cur := g
	for depth, i := range path {
		if i >= len(cur.values) {
			return nil
		}
		uv := &cur.values[i]
		if depth == len(path)-1 {
			return uv
		}
		if uv.kind != valueGroup {
			return nil
		}
		cur = uv.group
	}
	return nil
}
