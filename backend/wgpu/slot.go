// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/ggshader"
)

// slot maps one uniform location to bytes of a block staging copy.
// Textures have a slot with no block; their unit writes are dropped since
// WGSL binds textures through bind groups.
type slot struct {
	block  *block
	offset int
	count  int // scalar components the uniform holds

	// per components are packed together, then the next run starts
	// stride bytes later.
	per    int
	stride int
}

func newSlot(u ggshader.UniformInfo, b *block) slot {
	s := slot{
		block:  b,
		offset: u.Offset,
		count:  u.Type.Components() * max(u.Size, 1),
		per:    max(u.Type.Components(), 1),
		stride: 16,
	}
	switch u.Type {
	case ggshader.TypeMat2:
		s.per, s.stride = 2, 8
	case ggshader.TypeMat3:
		s.per = 3
	case ggshader.TypeMat4:
		s.per = 4
	}
	return s
}

func (s *slot) put(k int, bits uint32) {
	if k >= s.count {
		return
	}
	off := s.offset + (k/s.per)*s.stride + (k%s.per)*4
	data := s.block.staging
	if off < 0 || off+4 > len(data) {
		return
	}
	if binary.LittleEndian.Uint32(data[off:]) != bits {
		binary.LittleEndian.PutUint32(data[off:], bits)
		s.block.dirty = true
	}
}

func (s *slot) floats(v []float32) {
	if s.block == nil {
		return
	}
	for k, f := range v {
		s.put(k, math.Float32bits(f))
	}
}

func (s *slot) ints(v []int32) {
	if s.block == nil {
		return
	}
	for k, i := range v {
		s.put(k, uint32(i))
	}
}

func (s *slot) uints(v []uint32) {
	if s.block == nil {
		return
	}
	for k, u := range v {
		s.put(k, u)
	}
}

func alignUp(n, a int) int {
	return (n + a - 1) / a * a
}
