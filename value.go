// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"fmt"

	"golang.org/x/image/math/f32"
)

// valueKind is the normalized storage kind of a uniform value.
type valueKind uint8

const (
	valueNone valueKind = iota
	valueFloat
	valueInt
	valueUint
	valueTexture
	valueTextures
	valueGroup
)

func (k valueKind) String() string {
	switch k {
	case valueFloat:
		return "float"
	case valueInt:
		return "int"
	case valueUint:
		return "uint"
	case valueTexture:
		return "texture"
	case valueTextures:
		return "textures"
	case valueGroup:
		return "group"
	default:
		return "none"
	}
}

// uniformValue is a group member after normalization. Exactly one of the
// payload fields is meaningful, selected by kind. Buffers are reused across
// assignments of the same size.
type uniformValue struct {
	kind  valueKind
	f     []float32
	i     []int32
	u     []uint32
	tex   Texture
	texs  []Texture
	group *UniformGroup
}

// assign normalizes v into the receiver. On error the receiver is left
// untouched.
func (uv *uniformValue) assign(v any) error {
	switch x := v.(type) {
	case float32:
		uv.setFloats(1)[0] = x
	case float64:
		uv.setFloats(1)[0] = float32(x)
	case int:
		uv.setInts(1)[0] = int32(x)
	case int32:
		uv.setInts(1)[0] = x
	case uint32:
		uv.setUints(1)[0] = x
	case bool:
		uv.setInts(1)[0] = boolInt(x)

	case []float32:
		copy(uv.setFloats(len(x)), x)
	case []float64:
		dst := uv.setFloats(len(x))
		for k, e := range x {
			dst[k] = float32(e)
		}
	case []int32:
		copy(uv.setInts(len(x)), x)
	case []int:
		dst := uv.setInts(len(x))
		for k, e := range x {
			dst[k] = int32(e)
		}
	case []uint32:
		copy(uv.setUints(len(x)), x)
	case []bool:
		dst := uv.setInts(len(x))
		for k, e := range x {
			dst[k] = boolInt(e)
		}

	case [2]float32:
		copy(uv.setFloats(2), x[:])
	case [3]float32:
		copy(uv.setFloats(3), x[:])
	case [4]float32:
		copy(uv.setFloats(4), x[:])
	case f32.Vec2:
		copy(uv.setFloats(2), x[:])
	case f32.Vec3:
		copy(uv.setFloats(3), x[:])
	case f32.Vec4:
		copy(uv.setFloats(4), x[:])
	case f32.Mat3:
		transposeInto(uv.setFloats(9), x[:], 3)
	case f32.Mat4:
		transposeInto(uv.setFloats(16), x[:], 4)
	case f32.Aff3:
		aff3Into(uv.setFloats(9), x)

	case *UniformGroup:
		if x == nil {
			return fmt.Errorf("%w: nil *UniformGroup", ErrUnsupportedValue)
		}
		uv.reset(valueGroup)
		uv.group = x
	case []Texture:
		uv.reset(valueTextures)
		uv.texs = append(uv.texs[:0], x...)
	case Texture:
		uv.reset(valueTexture)
		uv.tex = x

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

// reset switches the kind and drops references that would keep other
// objects alive. Numeric buffers are kept for reuse.
func (uv *uniformValue) reset(k valueKind) {
	uv.kind = k
	uv.tex = nil
	uv.group = nil
	if k != valueTextures {
		clear(uv.texs)
		uv.texs = uv.texs[:0]
	}
}

func (uv *uniformValue) setFloats(n int) []float32 {
	uv.reset(valueFloat)
	uv.f = resize(uv.f, n)
	return uv.f
}

func (uv *uniformValue) setInts(n int) []int32 {
	uv.reset(valueInt)
	uv.i = resize(uv.i, n)
	return uv.i
}

func (uv *uniformValue) setUints(n int) []uint32 {
	uv.reset(valueUint)
	uv.u = resize(uv.u, n)
	return uv.u
}

// floats returns the value as float32 components, converting through
// scratch when the value is stored as another kind. It returns nil for
// non-numeric values.
func (uv *uniformValue) floats(scratch *[]float32) []float32 {
	switch uv.kind {
	case valueFloat:
		return uv.f
	case valueInt:
		dst := resize(*scratch, len(uv.i))
		for k, e := range uv.i {
			dst[k] = float32(e)
		}
		*scratch = dst
		return dst
	case valueUint:
		dst := resize(*scratch, len(uv.u))
		for k, e := range uv.u {
			dst[k] = float32(e)
		}
		*scratch = dst
		return dst
	default:
		return nil
	}
}

// ints is floats for int32 components.
func (uv *uniformValue) ints(scratch *[]int32) []int32 {
	switch uv.kind {
	case valueInt:
		return uv.i
	case valueFloat:
		dst := resize(*scratch, len(uv.f))
		for k, e := range uv.f {
			dst[k] = int32(e)
		}
		*scratch = dst
		return dst
	case valueUint:
		dst := resize(*scratch, len(uv.u))
		for k, e := range uv.u {
			dst[k] = int32(e)
		}
		*scratch = dst
		return dst
	default:
		return nil
	}
}

// uints is floats for uint32 components.
func (uv *uniformValue) uints(scratch *[]uint32) []uint32 {
	switch uv.kind {
	case valueUint:
		return uv.u
	case valueFloat:
		dst := resize(*scratch, len(uv.f))
		for k, e := range uv.f {
			dst[k] = uint32(e)
		}
		*scratch = dst
		return dst
	case valueInt:
		dst := resize(*scratch, len(uv.i))
		for k, e := range uv.i {
			dst[k] = uint32(e)
		}
		*scratch = dst
		return dst
	default:
		return nil
	}
}

// resize returns s with length n, reusing its backing array when possible.
func resize[T any](s []T, n int) []T {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]T, n)
}

// copyChanged copies src into dst and reports whether any element of dst
// changed.
func copyChanged[T comparable](dst, src []T) bool {
	n := min(len(dst), len(src))
	changed := false
	for k := 0; k < n; k++ {
		if dst[k] != src[k] {
			dst[k] = src[k]
			changed = true
		}
	}
	return changed
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// transposeInto writes the row-major n×n matrix src into dst column-major.
func transposeInto(dst, src []float32, n int) {
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			dst[c*n+r] = src[r*n+c]
		}
	}
}

// aff3Into expands the row-major 2×3 affine matrix m into a column-major
// mat3 with bottom row [0 0 1].
func aff3Into(dst []float32, m f32.Aff3) {
	dst[0], dst[1], dst[2] = m[0], m[3], 0
	dst[3], dst[4], dst[5] = m[1], m[4], 0
	dst[6], dst[7], dst[8] = m[2], m[5], 1
}
