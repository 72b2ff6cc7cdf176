// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// mockCall is one recorded device call.
type mockCall struct {
	op   string
	loc  Location
	f    []float32
	i    []int32
	u    []uint32
	unit int
	tex  uint32
}

// mockDevice records every call and serves a fixed uniform table.
type mockDevice struct {
	uniforms   []UniformInfo
	attributes []AttributeInfo
	locations  map[string]Location
	failLog    string

	nextHandle ProgramHandle
	linked     []map[string]uint32
	deleted    []ProgramHandle
	calls      []mockCall
	logger     *slog.Logger
}

// newMockDevice creates a device reporting uniforms. Default block uniforms
// get consecutive locations.
func newMockDevice(uniforms ...UniformInfo) *mockDevice {
	m := &mockDevice{
		uniforms:  uniforms,
		locations: make(map[string]Location),
	}
	next := Location(0)
	for _, u := range uniforms {
		name, _ := normalizeUniformName(u.Name)
		if u.Block != "" {
			continue
		}
		m.locations[name] = next
		next++
	}
	return m
}

func (m *mockDevice) SetLogger(l *slog.Logger) { m.logger = l }

func (m *mockDevice) CompileProgram(src Source, attrs map[string]uint32) (ProgramHandle, error) {
	m.linked = append(m.linked, attrs)
	if m.failLog != "" {
		return NoProgram, errors.New(m.failLog)
	}
	m.nextHandle++
	m.calls = append(m.calls, mockCall{op: "compile"})
	return m.nextHandle, nil
}

func (m *mockDevice) ActiveUniforms(ProgramHandle) []UniformInfo { return m.uniforms }

func (m *mockDevice) ActiveAttributes(ProgramHandle) []AttributeInfo { return m.attributes }

func (m *mockDevice) UniformLocation(_ ProgramHandle, name string) (Location, bool) {
	loc, ok := m.locations[name]
	return loc, ok
}

func (m *mockDevice) UseProgram(p ProgramHandle) {
	m.calls = append(m.calls, mockCall{op: "use", unit: int(p)})
}

func (m *mockDevice) DeleteProgram(p ProgramHandle) { m.deleted = append(m.deleted, p) }

func (m *mockDevice) BindTexture(tex Texture, unit int) {
	m.calls = append(m.calls, mockCall{op: "texture", unit: unit, tex: tex.TextureID()})
}

func (m *mockDevice) fv(op string, loc Location, v []float32) {
	m.calls = append(m.calls, mockCall{op: op, loc: loc, f: slices.Clone(v)})
}

func (m *mockDevice) iv(op string, loc Location, v []int32) {
	m.calls = append(m.calls, mockCall{op: op, loc: loc, i: slices.Clone(v)})
}

func (m *mockDevice) uiv(op string, loc Location, v []uint32) {
	m.calls = append(m.calls, mockCall{op: op, loc: loc, u: slices.Clone(v)})
}

func (m *mockDevice) Uniform1fv(loc Location, v []float32)       { m.fv("1f", loc, v) }
func (m *mockDevice) Uniform2fv(loc Location, v []float32)       { m.fv("2f", loc, v) }
func (m *mockDevice) Uniform3fv(loc Location, v []float32)       { m.fv("3f", loc, v) }
func (m *mockDevice) Uniform4fv(loc Location, v []float32)       { m.fv("4f", loc, v) }
func (m *mockDevice) Uniform1iv(loc Location, v []int32)         { m.iv("1i", loc, v) }
func (m *mockDevice) Uniform2iv(loc Location, v []int32)         { m.iv("2i", loc, v) }
func (m *mockDevice) Uniform3iv(loc Location, v []int32)         { m.iv("3i", loc, v) }
func (m *mockDevice) Uniform4iv(loc Location, v []int32)         { m.iv("4i", loc, v) }
func (m *mockDevice) Uniform1uiv(loc Location, v []uint32)       { m.uiv("1ui", loc, v) }
func (m *mockDevice) Uniform2uiv(loc Location, v []uint32)       { m.uiv("2ui", loc, v) }
func (m *mockDevice) Uniform3uiv(loc Location, v []uint32)       { m.uiv("3ui", loc, v) }
func (m *mockDevice) Uniform4uiv(loc Location, v []uint32)       { m.uiv("4ui", loc, v) }
func (m *mockDevice) UniformMatrix2fv(loc Location, v []float32) { m.fv("mat2", loc, v) }
func (m *mockDevice) UniformMatrix3fv(loc Location, v []float32) { m.fv("mat3", loc, v) }
func (m *mockDevice) UniformMatrix4fv(loc Location, v []float32) { m.fv("mat4", loc, v) }

// count returns how many calls of op were recorded.
func (m *mockDevice) count(op string) int {
	n := 0
	for _, c := range m.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

// ops returns the recorded operations, skipping compiles.
func (m *mockDevice) ops() []string {
	var out []string
	for _, c := range m.calls {
		if c.op == "compile" {
			continue
		}
		out = append(out, c.op)
	}
	return out
}

func (m *mockDevice) last(op string) (mockCall, bool) {
	for k := len(m.calls) - 1; k >= 0; k-- {
		if m.calls[k].op == op {
			return m.calls[k], true
		}
	}
	return mockCall{}, false
}

func (m *mockDevice) clearCalls() { m.calls = nil }

// mockBufferDevice adds uniform block support.
type mockBufferDevice struct {
	*mockDevice
	blocks map[string]bool
	writes [][]byte
	bound  map[int]*UniformBuffer

	blockBindings []string
	bufferBinds   int
}

func newMockBufferDevice(uniforms ...UniformInfo) *mockBufferDevice {
	d := &mockBufferDevice{
		mockDevice: newMockDevice(uniforms...),
		blocks:     make(map[string]bool),
		bound:      make(map[int]*UniformBuffer),
	}
	for _, u := range uniforms {
		if u.Block != "" {
			d.blocks[u.Block] = true
		}
	}
	return d
}

func (d *mockBufferDevice) UniformBlockBinding(_ ProgramHandle, block string, binding int) bool {
	if !d.blocks[block] {
		return false
	}
	d.blockBindings = append(d.blockBindings, fmt.Sprintf("%s=%d", block, binding))
	return true
}

func (d *mockBufferDevice) WriteUniformBuffer(buf *UniformBuffer) {
	d.writes = append(d.writes, slices.Clone(buf.Bytes()))
}

func (d *mockBufferDevice) BindUniformBuffer(buf *UniformBuffer, binding int) {
	d.bound[binding] = buf
	d.bufferBinds++
}

// mockTexture is a texture with a fixed id.
type mockTexture uint32

func (t mockTexture) TextureID() uint32 { return uint32(t) }
