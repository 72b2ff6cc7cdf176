// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"strconv"
	"strings"
)

// UniformType is the introspected type of a uniform. String returns the
// GLSL type name, which is also the tag used in uniform signatures.
type UniformType uint8

// Uniform types.
const (
	TypeUnknown UniformType = iota

	TypeFloat
	TypeVec2
	TypeVec3
	TypeVec4

	TypeInt
	TypeIVec2
	TypeIVec3
	TypeIVec4

	TypeUint
	TypeUVec2
	TypeUVec3
	TypeUVec4

	TypeBool
	TypeBVec2
	TypeBVec3
	TypeBVec4

	TypeMat2
	TypeMat3
	TypeMat4

	TypeSampler2D
	TypeSamplerCube
	TypeSampler2DArray

	typeCount
)

var typeNames = [typeCount]string{
	TypeUnknown:        "unknown",
	TypeFloat:          "float",
	TypeVec2:           "vec2",
	TypeVec3:           "vec3",
	TypeVec4:           "vec4",
	TypeInt:            "int",
	TypeIVec2:          "ivec2",
	TypeIVec3:          "ivec3",
	TypeIVec4:          "ivec4",
	TypeUint:           "uint",
	TypeUVec2:          "uvec2",
	TypeUVec3:          "uvec3",
	TypeUVec4:          "uvec4",
	TypeBool:           "bool",
	TypeBVec2:          "bvec2",
	TypeBVec3:          "bvec3",
	TypeBVec4:          "bvec4",
	TypeMat2:           "mat2",
	TypeMat3:           "mat3",
	TypeMat4:           "mat4",
	TypeSampler2D:      "sampler2D",
	TypeSamplerCube:    "samplerCube",
	TypeSampler2DArray: "sampler2DArray",
}

// String returns the GLSL name of t.
func (t UniformType) String() string {
	if t >= typeCount {
		return "UniformType(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// ParseUniformType maps a GLSL type name to a UniformType.
// Unknown names yield TypeUnknown.
func ParseUniformType(name string) UniformType {
	for t, n := range typeNames {
		if n == name {
			return UniformType(t)
		}
	}
	return TypeUnknown
}

// ScalarKind is the component kind of a uniform type.
type ScalarKind uint8

// Scalar kinds.
const (
	KindFloat ScalarKind = iota
	KindInt
	KindUint
	KindBool
)

// Kind returns the component kind. Samplers are int: they carry a texture
// unit index.
func (t UniformType) Kind() ScalarKind {
	switch {
	case t >= TypeInt && t <= TypeIVec4, t.IsSampler():
		return KindInt
	case t >= TypeUint && t <= TypeUVec4:
		return KindUint
	case t >= TypeBool && t <= TypeBVec4:
		return KindBool
	default:
		return KindFloat
	}
}

// Components returns the number of scalar components of one element.
func (t UniformType) Components() int {
	switch t {
	case TypeFloat, TypeInt, TypeUint, TypeBool:
		return 1
	case TypeVec2, TypeIVec2, TypeUVec2, TypeBVec2:
		return 2
	case TypeVec3, TypeIVec3, TypeUVec3, TypeBVec3:
		return 3
	case TypeVec4, TypeIVec4, TypeUVec4, TypeBVec4, TypeMat2:
		return 4
	case TypeMat3:
		return 9
	case TypeMat4:
		return 16
	case TypeSampler2D, TypeSamplerCube, TypeSampler2DArray:
		return 1
	default:
		return 0
	}
}

// IsMatrix reports whether t is a square float matrix.
func (t UniformType) IsMatrix() bool {
	return t == TypeMat2 || t == TypeMat3 || t == TypeMat4
}

// IsSampler reports whether t is a texture sampler.
func (t UniformType) IsSampler() bool {
	return t == TypeSampler2D || t == TypeSamplerCube || t == TypeSampler2DArray
}

// UniformInfo is declared or introspected uniform metadata.
type UniformInfo struct {
	Name    string
	Type    UniformType
	Size    int  // array length, 1 for non-arrays
	IsArray bool // declared as an array, even of length 1

	// Block is the uniform block the uniform belongs to, empty for the
	// default block. Block members are named "block.member".
	Block string

	// Offset is the byte offset of a block member inside its block.
	Offset int
}

// AttributeInfo is declared or introspected vertex attribute metadata.
type AttributeInfo struct {
	Name     string
	Type     UniformType
	Size     int
	Location int
}

// normalizeUniformName strips the "[0]" suffix drivers report for arrays.
func normalizeUniformName(raw string) (name string, isArray bool) {
	if i := strings.IndexByte(raw, '['); i >= 0 && strings.HasSuffix(raw, "]") {
		return raw[:i], true
	}
	return raw, false
}

// defaultUniformValue fills the last-known value buffers of a freshly
// compiled uniform: zeros for scalars and vectors, identity for matrices,
// unit 0 for samplers.
func defaultUniformValue(t UniformType, size int) (f []float32, i []int32, u []uint32) {
	if size < 1 {
		size = 1
	}
	n := t.Components() * size
	switch t.Kind() {
	case KindInt, KindBool:
		return nil, make([]int32, n), nil
	case KindUint:
		return nil, nil, make([]uint32, n)
	}
	f = make([]float32, n)
	if t.IsMatrix() {
		dim := matrixDim(t)
		for e := 0; e < size; e++ {
			m := f[e*dim*dim:]
			for k := 0; k < dim; k++ {
				m[k*dim+k] = 1
			}
		}
	}
	return f, nil, nil
}

// matrixDim returns the column count of a square matrix type.
func matrixDim(t UniformType) int {
	switch t {
	case TypeMat2:
		return 2
	case TypeMat3:
		return 3
	case TypeMat4:
		return 4
	default:
		return 0
	}
}
