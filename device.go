// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

// ContextID identifies one live GPU context. A new identity is issued every
// time a context is created or restored after loss; compiled programs are
// only valid under the identity they were built for.
type ContextID uint32

// ProgramHandle is an opaque device handle of a linked program.
type ProgramHandle uint32

// NoProgram is the zero handle; devices never return it for a live program.
const NoProgram ProgramHandle = 0

// Location is the device storage location of a uniform.
type Location int32

// NoLocation marks a uniform the compiler optimized out.
const NoLocation Location = -1

// SourceLanguage selects the shading language of a Source.
type SourceLanguage uint8

const (
	// GLSL sources are handed to the device as is.
	GLSL SourceLanguage = iota

	// WGSL sources are reflected with naga; GL devices translate them to GLSL.
	WGSL
)

// String returns the language name.
func (l SourceLanguage) String() string {
	switch l {
	case GLSL:
		return "glsl"
	case WGSL:
		return "wgsl"
	default:
		return "unknown"
	}
}

// Source is the vertex and fragment text of a program.
type Source struct {
	Vertex   string
	Fragment string
	Language SourceLanguage
}

// Texture is a texture source the device can bind to a texture unit.
type Texture interface {
	TextureID() uint32
}

// UniformWriter is the set of typed uniform upload primitives. Slices hold
// the flattened value; matrices are column-major.
type UniformWriter interface {
	Uniform1fv(loc Location, v []float32)
	Uniform2fv(loc Location, v []float32)
	Uniform3fv(loc Location, v []float32)
	Uniform4fv(loc Location, v []float32)

	Uniform1iv(loc Location, v []int32)
	Uniform2iv(loc Location, v []int32)
	Uniform3iv(loc Location, v []int32)
	Uniform4iv(loc Location, v []int32)

	Uniform1uiv(loc Location, v []uint32)
	Uniform2uiv(loc Location, v []uint32)
	Uniform3uiv(loc Location, v []uint32)
	Uniform4uiv(loc Location, v []uint32)

	UniformMatrix2fv(loc Location, v []float32)
	UniformMatrix3fv(loc Location, v []float32)
	UniformMatrix4fv(loc Location, v []float32)
}

// Device is the GPU context collaborator the shader system drives. All
// calls happen on the thread that owns the context, in issue order.
type Device interface {
	// CompileProgram compiles and links src. attributeLocations pins
	// vertex attributes to indices; it may be nil. The error text is the
	// driver log.
	CompileProgram(src Source, attributeLocations map[string]uint32) (ProgramHandle, error)

	// ActiveUniforms reports the uniforms the linker kept, with raw names
	// (arrays may be reported as "name[0]").
	ActiveUniforms(p ProgramHandle) []UniformInfo

	// ActiveAttributes reports the vertex attributes the linker kept.
	ActiveAttributes(p ProgramHandle) []AttributeInfo

	// UniformLocation resolves a uniform name; ok is false when the
	// uniform does not exist in the default uniform block.
	UniformLocation(p ProgramHandle, name string) (loc Location, ok bool)

	// UseProgram makes p the active program.
	UseProgram(p ProgramHandle)

	// DeleteProgram releases p.
	DeleteProgram(p ProgramHandle)

	// BindTexture binds tex to a texture unit.
	BindTexture(tex Texture, unit int)

	UniformWriter
}

// BufferDevice is implemented by devices that support uniform blocks.
type BufferDevice interface {
	// UniformBlockBinding assigns binding to the named uniform block of p.
	// It returns false when p has no such block.
	UniformBlockBinding(p ProgramHandle, block string, binding int) bool

	// WriteUniformBuffer uploads the current bytes of buf.
	WriteUniformBuffer(buf *UniformBuffer)

	// BindUniformBuffer binds buf to a uniform block binding point.
	BindUniformBuffer(buf *UniformBuffer, binding int)
}
