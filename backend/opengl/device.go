// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package opengl

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/ggshader"
)

// TargetedTexture is a texture bound to a target other than
// GL_TEXTURE_2D.
type TargetedTexture interface {
	ggshader.Texture
	TextureTarget() uint32
}

type program struct {
	id         uint32
	uniforms   []ggshader.UniformInfo
	attributes []ggshader.AttributeInfo

	// glNames maps reported names back to the names GL knows, for
	// programs translated from WGSL.
	glNames map[string]string
}

func (p *program) glName(name string) string {
	if n, ok := p.glNames[name]; ok {
		return n
	}
	return name
}

type ubo struct {
	id   uint32
	size int
}

// Device is a ggshader.Device on the current OpenGL 3.3 core context.
// Every call must happen on the thread that owns the context.
type Device struct {
	logger *slog.Logger

	programs map[ggshader.ProgramHandle]*program
	buffers  map[*ggshader.UniformBuffer]*ubo
}

// New creates a device on the current context. gl.Init must have
// succeeded.
func New() *Device {
	return &Device{
		logger:   ggshader.Logger(),
		programs: make(map[ggshader.ProgramHandle]*program),
		buffers:  make(map[*ggshader.UniformBuffer]*ubo),
	}
}

// SetLogger sets the device logger. Systems call it on creation.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = ggshader.Logger()
	}
	d.logger = l
}

// CompileProgram compiles and links src. WGSL sources are translated to
// GLSL 3.30 with naga first.
func (d *Device) CompileProgram(src ggshader.Source, attributeLocations map[string]uint32) (ggshader.ProgramHandle, error) {
	var (
		tr       *translation
		vertex   = src.Vertex
		fragment = src.Fragment
	)
	if src.Language == ggshader.WGSL {
		var err error
		if tr, err = translateWGSL(src.Vertex, src.Fragment); err != nil {
			return ggshader.NoProgram, err
		}
		vertex, fragment = tr.vertex, tr.fragment
	}

	vs, err := compileShader(vertex, gl.VERTEX_SHADER)
	if err != nil {
		return ggshader.NoProgram, fmt.Errorf("vertex shader: %w", err)
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(fragment, gl.FRAGMENT_SHADER)
	if err != nil {
		return ggshader.NoProgram, fmt.Errorf("fragment shader: %w", err)
	}
	defer gl.DeleteShader(fs)

	id := gl.CreateProgram()
	gl.AttachShader(id, vs)
	gl.AttachShader(id, fs)
	if tr == nil {
		for name, loc := range attributeLocations {
			gl.BindAttribLocation(id, loc, gl.Str(name+"\x00"))
		}
	}
	gl.LinkProgram(id)
	gl.DetachShader(id, vs)
	gl.DetachShader(id, fs)

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		log := programLog(id)
		gl.DeleteProgram(id)
		return ggshader.NoProgram, errors.New(log)
	}

	prog := &program{id: id, uniforms: activeUniforms(id)}
	if tr != nil {
		prog.attributes = slices.Clone(tr.attributes)
		prog.glNames = make(map[string]string)
		for k, u := range prog.uniforms {
			renamed := tr.rename(u)
			if renamed.Name != u.Name {
				prog.glNames[renamed.Name] = u.Name
			}
			if renamed.Block != u.Block {
				prog.glNames[renamed.Block] = u.Block
			}
			prog.uniforms[k] = renamed
		}
	} else {
		prog.attributes = activeAttributes(id)
	}

	h := ggshader.ProgramHandle(id)
	d.programs[h] = prog
	d.logger.Debug("gl: program linked", "id", id, "uniforms", len(prog.uniforms))
	return h, nil
}

func compileShader(src string, typ uint32) (uint32, error) {
	id := gl.CreateShader(typ)
	csources, free := gl.Strs(src + "\x00")
	gl.ShaderSource(id, 1, csources, nil)
	free()
	gl.CompileShader(id)

	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(id, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(id, logLength, nil, gl.Str(log))
		gl.DeleteShader(id)
		return 0, errors.New(strings.TrimRight(log, "\x00"))
	}
	return id, nil
}

func programLog(id uint32) string {
	var logLength int32
	gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &logLength)
	log := strings.Repeat("\x00", int(logLength+1))
	gl.GetProgramInfoLog(id, logLength, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

// activeUniforms introspects the uniforms of a linked program. Block
// members are named "Block.member" with their std140 offsets.
func activeUniforms(id uint32) []ggshader.UniformInfo {
	var count, maxLen int32
	gl.GetProgramiv(id, gl.ACTIVE_UNIFORMS, &count)
	gl.GetProgramiv(id, gl.ACTIVE_UNIFORM_MAX_LENGTH, &maxLen)
	blocks := blockNames(id)

	buf := make([]uint8, maxLen+1)
	infos := make([]ggshader.UniformInfo, 0, count)
	for i := uint32(0); i < uint32(count); i++ {
		var length, size int32
		var xtype uint32
		gl.GetActiveUniform(id, i, int32(len(buf)), &length, &size, &xtype, &buf[0])
		info := ggshader.UniformInfo{
			Name: string(buf[:length]),
			Type: uniformType(xtype),
			Size: int(size),
		}

		var blockIndex, offset int32
		index := i
		gl.GetActiveUniformsiv(id, 1, &index, gl.UNIFORM_BLOCK_INDEX, &blockIndex)
		if blockIndex >= 0 && int(blockIndex) < len(blocks) {
			gl.GetActiveUniformsiv(id, 1, &index, gl.UNIFORM_OFFSET, &offset)
			info.Block = blocks[blockIndex]
			info.Offset = int(offset)
			if !strings.HasPrefix(info.Name, info.Block+".") {
				info.Name = info.Block + "." + info.Name
			}
		}
		infos = append(infos, info)
	}
	return infos
}

func blockNames(id uint32) []string {
	var count, maxLen int32
	gl.GetProgramiv(id, gl.ACTIVE_UNIFORM_BLOCKS, &count)
	gl.GetProgramiv(id, gl.ACTIVE_UNIFORM_BLOCK_MAX_NAME_LENGTH, &maxLen)
	buf := make([]uint8, maxLen+1)
	names := make([]string, count)
	for i := range names {
		var length int32
		gl.GetActiveUniformBlockName(id, uint32(i), int32(len(buf)), &length, &buf[0])
		names[i] = string(buf[:length])
	}
	return names
}

func activeAttributes(id uint32) []ggshader.AttributeInfo {
	var count, maxLen int32
	gl.GetProgramiv(id, gl.ACTIVE_ATTRIBUTES, &count)
	gl.GetProgramiv(id, gl.ACTIVE_ATTRIBUTE_MAX_LENGTH, &maxLen)
	buf := make([]uint8, maxLen+1)
	attrs := make([]ggshader.AttributeInfo, 0, count)
	for i := uint32(0); i < uint32(count); i++ {
		var length, size int32
		var xtype uint32
		gl.GetActiveAttrib(id, i, int32(len(buf)), &length, &size, &xtype, &buf[0])
		name := string(buf[:length])
		if strings.HasPrefix(name, "gl_") {
			continue
		}
		attrs = append(attrs, ggshader.AttributeInfo{
			Name:     name,
			Type:     uniformType(xtype),
			Size:     int(size),
			Location: int(gl.GetAttribLocation(id, gl.Str(name+"\x00"))),
		})
	}
	return attrs
}

// ActiveUniforms reports the uniforms the linker kept.
func (d *Device) ActiveUniforms(p ggshader.ProgramHandle) []ggshader.UniformInfo {
	if prog, ok := d.programs[p]; ok {
		return slices.Clone(prog.uniforms)
	}
	return nil
}

// ActiveAttributes reports the vertex attributes the linker kept.
func (d *Device) ActiveAttributes(p ggshader.ProgramHandle) []ggshader.AttributeInfo {
	if prog, ok := d.programs[p]; ok {
		return slices.Clone(prog.attributes)
	}
	return nil
}

// UniformLocation resolves a default block uniform of p.
func (d *Device) UniformLocation(p ggshader.ProgramHandle, name string) (ggshader.Location, bool) {
	prog, ok := d.programs[p]
	if !ok {
		return ggshader.NoLocation, false
	}
	loc := gl.GetUniformLocation(prog.id, gl.Str(prog.glName(name)+"\x00"))
	if loc < 0 {
		return ggshader.NoLocation, false
	}
	return ggshader.Location(loc), true
}

// UseProgram makes p current.
func (d *Device) UseProgram(p ggshader.ProgramHandle) {
	gl.UseProgram(uint32(p))
}

// DeleteProgram deletes p.
func (d *Device) DeleteProgram(p ggshader.ProgramHandle) {
	if _, ok := d.programs[p]; !ok {
		return
	}
	gl.DeleteProgram(uint32(p))
	delete(d.programs, p)
}

// BindTexture binds tex to unit. Textures implementing TargetedTexture
// choose their target; others bind to GL_TEXTURE_2D.
func (d *Device) BindTexture(tex ggshader.Texture, unit int) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	if tex == nil {
		gl.BindTexture(gl.TEXTURE_2D, 0)
		return
	}
	target := textureTarget(ggshader.TypeSampler2D)
	if tt, ok := tex.(TargetedTexture); ok {
		target = tt.TextureTarget()
	}
	gl.BindTexture(target, tex.TextureID())
}

func (d *Device) Uniform1fv(loc ggshader.Location, v []float32) {
	if len(v) > 0 {
		gl.Uniform1fv(int32(loc), int32(len(v)), &v[0])
	}
}

func (d *Device) Uniform2fv(loc ggshader.Location, v []float32) {
	if len(v) >= 2 {
		gl.Uniform2fv(int32(loc), int32(len(v)/2), &v[0])
	}
}

func (d *Device) Uniform3fv(loc ggshader.Location, v []float32) {
	if len(v) >= 3 {
		gl.Uniform3fv(int32(loc), int32(len(v)/3), &v[0])
	}
}

func (d *Device) Uniform4fv(loc ggshader.Location, v []float32) {
	if len(v) >= 4 {
		gl.Uniform4fv(int32(loc), int32(len(v)/4), &v[0])
	}
}

func (d *Device) Uniform1iv(loc ggshader.Location, v []int32) {
	if len(v) > 0 {
		gl.Uniform1iv(int32(loc), int32(len(v)), &v[0])
	}
}

func (d *Device) Uniform2iv(loc ggshader.Location, v []int32) {
	if len(v) >= 2 {
		gl.Uniform2iv(int32(loc), int32(len(v)/2), &v[0])
	}
}

func (d *Device) Uniform3iv(loc ggshader.Location, v []int32) {
	if len(v) >= 3 {
		gl.Uniform3iv(int32(loc), int32(len(v)/3), &v[0])
	}
}

func (d *Device) Uniform4iv(loc ggshader.Location, v []int32) {
	if len(v) >= 4 {
		gl.Uniform4iv(int32(loc), int32(len(v)/4), &v[0])
	}
}

func (d *Device) Uniform1uiv(loc ggshader.Location, v []uint32) {
	if len(v) > 0 {
		gl.Uniform1uiv(int32(loc), int32(len(v)), &v[0])
	}
}

func (d *Device) Uniform2uiv(loc ggshader.Location, v []uint32) {
	if len(v) >= 2 {
		gl.Uniform2uiv(int32(loc), int32(len(v)/2), &v[0])
	}
}

func (d *Device) Uniform3uiv(loc ggshader.Location, v []uint32) {
	if len(v) >= 3 {
		gl.Uniform3uiv(int32(loc), int32(len(v)/3), &v[0])
	}
}

func (d *Device) Uniform4uiv(loc ggshader.Location, v []uint32) {
	if len(v) >= 4 {
		gl.Uniform4uiv(int32(loc), int32(len(v)/4), &v[0])
	}
}

func (d *Device) UniformMatrix2fv(loc ggshader.Location, v []float32) {
	if len(v) >= 4 {
		gl.UniformMatrix2fv(int32(loc), int32(len(v)/4), false, &v[0])
	}
}

func (d *Device) UniformMatrix3fv(loc ggshader.Location, v []float32) {
	if len(v) >= 9 {
		gl.UniformMatrix3fv(int32(loc), int32(len(v)/9), false, &v[0])
	}
}

func (d *Device) UniformMatrix4fv(loc ggshader.Location, v []float32) {
	if len(v) >= 16 {
		gl.UniformMatrix4fv(int32(loc), int32(len(v)/16), false, &v[0])
	}
}

// UniformBlockBinding assigns binding to block of p.
func (d *Device) UniformBlockBinding(p ggshader.ProgramHandle, block string, binding int) bool {
	prog, ok := d.programs[p]
	if !ok {
		return false
	}
	index := gl.GetUniformBlockIndex(prog.id, gl.Str(prog.glName(block)+"\x00"))
	if index == gl.INVALID_INDEX {
		return false
	}
	gl.UniformBlockBinding(prog.id, index, uint32(binding))
	return true
}

// WriteUniformBuffer uploads buf, reallocating its GL buffer when it
// grows.
func (d *Device) WriteUniformBuffer(buf *ggshader.UniformBuffer) {
	data := buf.Bytes()
	if len(data) == 0 {
		return
	}
	b := d.buffers[buf]
	if b == nil {
		b = &ubo{}
		gl.GenBuffers(1, &b.id)
		d.buffers[buf] = b
	}
	gl.BindBuffer(gl.UNIFORM_BUFFER, b.id)
	if b.size < len(data) {
		gl.BufferData(gl.UNIFORM_BUFFER, len(data), gl.Ptr(data), gl.DYNAMIC_DRAW)
		b.size = len(data)
	} else {
		gl.BufferSubData(gl.UNIFORM_BUFFER, 0, len(data), gl.Ptr(data))
	}
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
}

// BindUniformBuffer binds buf to binding. Buffers never written are
// skipped.
func (d *Device) BindUniformBuffer(buf *ggshader.UniformBuffer, binding int) {
	b := d.buffers[buf]
	if b == nil {
		return
	}
	gl.BindBufferBase(gl.UNIFORM_BUFFER, uint32(binding), b.id)
}

// Close deletes every program and uniform buffer created by d.
func (d *Device) Close() {
	for h := range d.programs {
		gl.DeleteProgram(uint32(h))
	}
	clear(d.programs)
	for buf, b := range d.buffers {
		gl.DeleteBuffers(1, &b.id)
		delete(d.buffers, buf)
	}
}

// Forget drops every program and buffer without GL calls, after the
// context that owned them was lost.
func (d *Device) Forget() {
	clear(d.programs)
	clear(d.buffers)
}
