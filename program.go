// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// Program is a vertex and fragment source pair with optional declared
// uniform and attribute metadata. It owns one CompiledProgram per context
// identity, created on first bind under that identity.
//
// Two Programs with identical source are distinct: compiled programs are
// keyed by *Program, not by source text.
type Program struct {
	name   string
	source Source

	uniforms   map[string]UniformInfo
	attributes map[string]AttributeInfo

	// attributesDeclared selects sorted-name attribute locations over the
	// locations the device reported on first compile.
	attributesDeclared bool

	compiled map[ContextID]*CompiledProgram
}

// ProgramOption configures a Program during creation.
type ProgramOption func(*Program)

// WithUniforms declares the program's uniforms. Without it, uniforms are
// introspected from the device on first compile.
func WithUniforms(uniforms ...UniformInfo) ProgramOption {
	return func(p *Program) {
		if p.uniforms == nil {
			p.uniforms = make(map[string]UniformInfo, len(uniforms))
		}
		for _, u := range uniforms {
			if u.Size < 1 {
				u.Size = 1
			}
			p.uniforms[u.Name] = u
		}
	}
}

// WithAttributes declares the program's vertex attributes. Declared
// attributes are bound to locations 0..n-1 in name order.
func WithAttributes(attributes ...AttributeInfo) ProgramOption {
	return func(p *Program) {
		if p.attributes == nil {
			p.attributes = make(map[string]AttributeInfo, len(attributes))
		}
		for _, a := range attributes {
			p.attributes[a.Name] = a
		}
		p.attributesDeclared = true
	}
}

// NewProgram creates a program. name is used in logs and compile errors.
//
// Example:
//
//	p := ggshader.NewProgram("sprite", ggshader.Source{
//	    Vertex:   spriteVert,
//	    Fragment: spriteFrag,
//	}, ggshader.WithAttributes(
//	    ggshader.AttributeInfo{Name: "aPosition", Type: ggshader.TypeVec2},
//	    ggshader.AttributeInfo{Name: "aUV", Type: ggshader.TypeVec2},
//	))
func NewProgram(name string, src Source, opts ...ProgramOption) *Program {
	p := &Program{
		name:     name,
		source:   src,
		compiled: make(map[ContextID]*CompiledProgram),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the program name.
func (p *Program) Name() string { return p.name }

// Source returns the program source.
func (p *Program) Source() Source { return p.source }

// Uniform returns the declared or introspected metadata of a uniform.
func (p *Program) Uniform(name string) (UniformInfo, bool) {
	u, ok := p.uniforms[name]
	return u, ok
}

// UniformNames returns the known uniform names, sorted. It is empty for an
// introspected program that was never compiled.
func (p *Program) UniformNames() []string {
	return slices.Sorted(maps.Keys(p.uniforms))
}

// Attributes returns the known vertex attributes, sorted by name.
func (p *Program) Attributes() []AttributeInfo {
	out := make([]AttributeInfo, 0, len(p.attributes))
	for _, name := range slices.Sorted(maps.Keys(p.attributes)) {
		out = append(out, p.attributes[name])
	}
	return out
}

// Compiled returns the compiled program for a context identity.
func (p *Program) Compiled(id ContextID) (*CompiledProgram, bool) {
	cp, ok := p.compiled[id]
	return cp, ok
}

// attributeLocations returns the locations to pin when linking: declared
// attributes get 0..n-1 in name order, introspected ones keep the location
// the device chose the first time.
func (p *Program) attributeLocations() map[string]uint32 {
	locs := make(map[string]uint32, len(p.attributes))
	if p.attributesDeclared {
		for k, name := range slices.Sorted(maps.Keys(p.attributes)) {
			locs[name] = uint32(k)
		}
		return locs
	}
	for name, a := range p.attributes {
		if a.Location >= 0 {
			locs[name] = uint32(a.Location)
		}
	}
	return locs
}

// CompiledProgram is a Program linked for one context identity. It holds
// the uniform table the sync routines write through, the dirty ids of the
// groups synchronized against it and its bound routines.
type CompiledProgram struct {
	handle  ProgramHandle
	context ContextID
	program *Program

	uniforms map[string]*UniformData

	dirty map[uint64]uint64        // group id -> dirty id at last sync
	bound map[uint64]*boundRoutine // group id -> routine bound to uniforms

	blocks map[string]int // uniform block -> binding point
}

// Handle returns the device program handle.
func (cp *CompiledProgram) Handle() ProgramHandle { return cp.handle }

// Context returns the context identity the program was compiled for.
func (cp *CompiledProgram) Context() ContextID { return cp.context }

// Program returns the source program.
func (cp *CompiledProgram) Program() *Program { return cp.program }

// Uniform returns the uniform table entry of name.
func (cp *CompiledProgram) Uniform(name string) (*UniformData, bool) {
	ud, ok := cp.uniforms[name]
	return ud, ok
}

// UniformNames returns the names in the uniform table, sorted.
func (cp *CompiledProgram) UniformNames() []string {
	return slices.Sorted(maps.Keys(cp.uniforms))
}

// UniformData is one entry of a compiled program's uniform table: the
// introspected type, the device location and the last value uploaded.
type UniformData struct {
	Name     string
	Type     UniformType
	Size     int
	IsArray  bool
	Block    string
	Offset   int
	Location Location

	f []float32
	i []int32
	u []uint32

	scratchF []float32
	scratchI []int32
	scratchU []uint32
}

func newUniformData(info UniformInfo) *UniformData {
	ud := &UniformData{
		Name:     info.Name,
		Type:     info.Type,
		Size:     max(info.Size, 1),
		IsArray:  info.IsArray,
		Block:    info.Block,
		Offset:   info.Offset,
		Location: NoLocation,
	}
	ud.f, ud.i, ud.u = defaultUniformValue(ud.Type, ud.Size)
	return ud
}

// Floats returns the last float value uploaded, nil for int and uint types.
func (ud *UniformData) Floats() []float32 { return ud.f }

// Ints returns the last int, bool or sampler value uploaded.
func (ud *UniformData) Ints() []int32 { return ud.i }

// Uints returns the last uint value uploaded.
func (ud *UniformData) Uints() []uint32 { return ud.u }

// compileProgram links p on dev for context id and builds its uniform
// table. Device failures are returned as *CompileError and are not retried.
func compileProgram(dev Device, p *Program, id ContextID) (*CompiledProgram, error) {
	handle, err := dev.CompileProgram(p.source, p.attributeLocations())
	if err != nil {
		return nil, &CompileError{Program: p.name, Log: err.Error(), Err: err}
	}

	if p.uniforms == nil {
		p.uniforms = introspectUniforms(dev.ActiveUniforms(handle))
	}
	if p.attributes == nil {
		p.attributes = introspectAttributes(dev.ActiveAttributes(handle))
	}

	cp := &CompiledProgram{
		handle:   handle,
		context:  id,
		program:  p,
		uniforms: make(map[string]*UniformData, len(p.uniforms)),
		dirty:    make(map[uint64]uint64),
		bound:    make(map[uint64]*boundRoutine),
		blocks:   make(map[string]int),
	}
	missing := 0
	for name, info := range p.uniforms {
		ud := newUniformData(info)
		if loc, ok := dev.UniformLocation(handle, name); ok {
			ud.Location = loc
		} else {
			missing++
		}
		cp.uniforms[name] = ud
	}

	Logger().Debug("ggshader: program compiled",
		slog.String("program", p.name),
		slog.Uint64("context", uint64(id)),
		slog.Int("uniforms", len(cp.uniforms)),
		slog.Int("optimized_out", missing))
	return cp, nil
}

// introspectUniforms normalizes the device's active uniform list into
// program metadata.
func introspectUniforms(active []UniformInfo) map[string]UniformInfo {
	out := make(map[string]UniformInfo, len(active))
	for _, u := range active {
		name, isArray := normalizeUniformName(u.Name)
		if strings.HasPrefix(name, "gl_") {
			continue
		}
		u.Name = name
		u.IsArray = u.IsArray || isArray
		if u.Size < 1 {
			u.Size = 1
		}
		out[name] = u
	}
	return out
}

func introspectAttributes(active []AttributeInfo) map[string]AttributeInfo {
	out := make(map[string]AttributeInfo, len(active))
	for _, a := range active {
		if strings.HasPrefix(a.Name, "gl_") {
			continue
		}
		out[a.Name] = a
	}
	return out
}
