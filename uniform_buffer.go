// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// UniformBuffer is the CPU copy of a uniform block. Devices implementing
// BufferDevice own the GPU side and key it by the buffer pointer.
type UniformBuffer struct {
	data    []byte
	version uint64
}

// Bytes returns the packed std140 contents. The slice is owned by the buffer.
func (b *UniformBuffer) Bytes() []byte { return b.data }

// Size returns the block size in bytes.
func (b *UniformBuffer) Size() int { return len(b.data) }

// Version is incremented every time packing changes the contents.
func (b *UniformBuffer) Version() uint64 { return b.version }

// LayoutStd140 assigns std140 offsets to block members in declaration order
// and returns them together with the block size, rounded up to 16 bytes.
func LayoutStd140(members []UniformInfo) (offsets []int, size int) {
	offsets = make([]int, len(members))
	off := 0
	for k, m := range members {
		align, sz := std140Member(m)
		off = alignUp(off, align)
		offsets[k] = off
		off += sz
	}
	return offsets, alignUp(off, 16)
}

// std140Member returns the base alignment and total size of a member.
func std140Member(m UniformInfo) (align, size int) {
	n := max(m.Size, 1)
	if m.IsArray || n > 1 || m.Type.IsMatrix() {
		return 16, 16 * elementRows(m.Type) * n
	}
	switch m.Type.Components() {
	case 1:
		return 4, 4
	case 2:
		return 8, 8
	case 3:
		return 16, 12
	default:
		return 16, 16
	}
}

// elementRows returns how many vec4 slots one element occupies: the column
// count for matrices, one otherwise.
func elementRows(t UniformType) int {
	if t.IsMatrix() {
		return matrixDim(t)
	}
	return 1
}

// bufferField is one member of a packed block.
type bufferField struct {
	name   string // member name inside the group
	typ    UniformType
	size   int
	array  bool
	offset int
}

// bufferLayout is the packing plan of a uniform buffer group for one block
// layout. It is shared by every program reporting the same block layout.
type bufferLayout struct {
	signature string
	fields    []bufferField
	size      int
}

// bufferSignature keys a block layout by the block name and the type and
// offset of every group member the program declares in the block.
func bufferSignature(g *UniformGroup, uniforms map[string]*UniformData, block string) string {
	var b strings.Builder
	b.WriteString("ubo-")
	writeName(&b, block)
	for _, name := range g.names {
		ud, ok := uniforms[block+"."+name]
		if !ok {
			continue
		}
		b.WriteByte('-')
		writeName(&b, name)
		writeType(&b, ud)
		b.WriteByte('@')
		b.WriteString(strconv.Itoa(ud.Offset))
	}
	return b.String()
}

// newBufferLayout builds the packing plan of g for block. Members the
// program does not declare in the block are not packed.
func newBufferLayout(sig string, g *UniformGroup, uniforms map[string]*UniformData, block string) *bufferLayout {
	l := &bufferLayout{signature: sig}
	for _, name := range g.names {
		ud, ok := uniforms[block+"."+name]
		if !ok {
			continue
		}
		f := bufferField{
			name:   name,
			typ:    ud.Type,
			size:   max(ud.Size, 1),
			array:  ud.IsArray,
			offset: ud.Offset,
		}
		l.fields = append(l.fields, f)
		_, sz := std140Member(UniformInfo{Type: f.typ, Size: f.size, IsArray: f.array})
		l.size = max(l.size, f.offset+sz)
	}
	l.size = alignUp(l.size, 16)
	return l
}

// pack writes the values of g into buf and reports whether any byte changed.
func (l *bufferLayout) pack(g *UniformGroup, buf *UniformBuffer) bool {
	changed := false
	if len(buf.data) != l.size {
		buf.data = make([]byte, l.size)
		changed = true
	}
	w := wordWriter{data: buf.data}
	var (
		fs []float32
		is []int32
		us []uint32
	)
	for _, f := range l.fields {
		i, ok := g.index[f.name]
		if !ok {
			continue
		}
		uv := &g.values[i]
		n := f.typ.Components() * f.size
		per := slotWidth(f.typ)
		switch f.typ.Kind() {
		case KindFloat:
			w.floats(f.offset, limit(uv.floats(&fs), n), per)
		case KindUint:
			w.uints(f.offset, limit(uv.uints(&us), n), per)
		default:
			w.ints(f.offset, limit(uv.ints(&is), n), per)
		}
	}
	if w.changed {
		changed = true
	}
	if changed {
		buf.version++
	}
	return changed
}

// slotWidth returns how many components share one 16-byte slot: a matrix
// column, or one vector or scalar element.
func slotWidth(t UniformType) int {
	if t.IsMatrix() {
		return matrixDim(t)
	}
	return max(t.Components(), 1)
}

func limit[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// wordWriter stores 32-bit words little-endian and records changes.
type wordWriter struct {
	data    []byte
	changed bool
}

func (w *wordWriter) put(off int, bits uint32) {
	if off+4 > len(w.data) {
		return
	}
	if binary.LittleEndian.Uint32(w.data[off:]) != bits {
		binary.LittleEndian.PutUint32(w.data[off:], bits)
		w.changed = true
	}
}

// floats writes src starting at off, per components to each 16-byte slot.
func (w *wordWriter) floats(off int, src []float32, per int) {
	for k, v := range src {
		w.put(slotOffset(off, k, per), math.Float32bits(v))
	}
}

func (w *wordWriter) ints(off int, src []int32, per int) {
	for k, v := range src {
		w.put(slotOffset(off, k, per), uint32(v))
	}
}

func (w *wordWriter) uints(off int, src []uint32, per int) {
	for k, v := range src {
		w.put(slotOffset(off, k, per), v)
	}
}

// slotOffset maps component k to its byte offset.
func slotOffset(off, k, per int) int {
	return off + (k/per)*16 + (k%per)*4
}

func alignUp(n, a int) int {
	return (n + a - 1) / a * a
}
