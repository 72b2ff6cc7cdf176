// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package opengl

import (
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/ggshader"
)

var glTypes = map[uint32]ggshader.UniformType{
	gl.FLOAT:             ggshader.TypeFloat,
	gl.FLOAT_VEC2:        ggshader.TypeVec2,
	gl.FLOAT_VEC3:        ggshader.TypeVec3,
	gl.FLOAT_VEC4:        ggshader.TypeVec4,
	gl.INT:               ggshader.TypeInt,
	gl.INT_VEC2:          ggshader.TypeIVec2,
	gl.INT_VEC3:          ggshader.TypeIVec3,
	gl.INT_VEC4:          ggshader.TypeIVec4,
	gl.UNSIGNED_INT:      ggshader.TypeUint,
	gl.UNSIGNED_INT_VEC2: ggshader.TypeUVec2,
	gl.UNSIGNED_INT_VEC3: ggshader.TypeUVec3,
	gl.UNSIGNED_INT_VEC4: ggshader.TypeUVec4,
	gl.BOOL:              ggshader.TypeBool,
	gl.BOOL_VEC2:         ggshader.TypeBVec2,
	gl.BOOL_VEC3:         ggshader.TypeBVec3,
	gl.BOOL_VEC4:         ggshader.TypeBVec4,
	gl.FLOAT_MAT2:        ggshader.TypeMat2,
	gl.FLOAT_MAT3:        ggshader.TypeMat3,
	gl.FLOAT_MAT4:        ggshader.TypeMat4,
	gl.SAMPLER_2D:        ggshader.TypeSampler2D,
	gl.SAMPLER_CUBE:      ggshader.TypeSamplerCube,
	gl.SAMPLER_2D_ARRAY:  ggshader.TypeSampler2DArray,
}

// uniformType maps a GL type enum to a UniformType; unsupported types
// such as non-square matrices map to TypeUnknown.
func uniformType(xtype uint32) ggshader.UniformType {
	return glTypes[xtype]
}

// textureTarget returns the bind target of a sampler type.
func textureTarget(t ggshader.UniformType) uint32 {
	switch t {
	case ggshader.TypeSamplerCube:
		return gl.TEXTURE_CUBE_MAP
	case ggshader.TypeSampler2DArray:
		return gl.TEXTURE_2D_ARRAY
	default:
		return gl.TEXTURE_2D
	}
}
