// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/gogpu/ggshader"
	"github.com/gogpu/ggshader/internal/wgslreflect"
)

// Counters are cumulative call counts of a Device.
type Counters struct {
	Compiles        int
	ProgramSwitches int
	UniformCalls    int
	TextureBinds    int
	BufferWrites    int
	BufferBinds     int

	// InvalidOps counts calls a GL driver would reject, such as uniform
	// writes with no program in use.
	InvalidOps int
}

type value struct {
	f []float32
	i []int32
	u []uint32
}

type program struct {
	handle     ggshader.ProgramHandle
	uniforms   []ggshader.UniformInfo
	attributes []ggshader.AttributeInfo
	locations  map[string]ggshader.Location
	values     map[ggshader.Location]*value

	blockSizes    map[string]int
	blockBindings map[string]int
}

// Device is a CPU-only ggshader.Device. It reflects GLSL and WGSL sources,
// keeps the uniform state a driver would keep and records call counts.
// It is not safe for concurrent use.
type Device struct {
	logger *slog.Logger

	failMarker   string
	optimizedOut map[string]bool

	next     ggshader.ProgramHandle
	programs map[ggshader.ProgramHandle]*program
	current  *program

	units    map[int]uint32
	buffers  map[*ggshader.UniformBuffer][]byte
	bindings map[int]*ggshader.UniformBuffer

	counters Counters
}

// Option configures a Device.
type Option func(*Device)

// WithFailingSource makes CompileProgram fail for sources containing marker.
func WithFailingSource(marker string) Option {
	return func(d *Device) {
		d.failMarker = marker
	}
}

// WithOptimizedOut drops the named uniforms from reflection, as a linker
// does for uniforms no stage reads.
func WithOptimizedOut(names ...string) Option {
	return func(d *Device) {
		for _, n := range names {
			d.optimizedOut[n] = true
		}
	}
}

// New creates a headless device.
func New(opts ...Option) *Device {
	d := &Device{
		logger:       ggshader.Logger(),
		optimizedOut: make(map[string]bool),
	}
	d.clear()
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) clear() {
	d.programs = make(map[ggshader.ProgramHandle]*program)
	d.current = nil
	d.units = make(map[int]uint32)
	d.buffers = make(map[*ggshader.UniformBuffer][]byte)
	d.bindings = make(map[int]*ggshader.UniformBuffer)
}

// SetLogger sets the device logger. Systems call it on creation.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = ggshader.Logger()
	}
	d.logger = l
}

// Lose drops every program, binding and buffer, as a lost context does.
// Handles are never reused after a loss.
func (d *Device) Lose() {
	d.logger.Debug("headless: context lost", "programs", len(d.programs))
	d.clear()
}

// Counters returns the call counts so far.
func (d *Device) Counters() Counters { return d.counters }

// Programs returns the number of live programs.
func (d *Device) Programs() int { return len(d.programs) }

// Current returns the program in use, or NoProgram.
func (d *Device) Current() ggshader.ProgramHandle {
	if d.current == nil {
		return ggshader.NoProgram
	}
	return d.current.handle
}

// CompileProgram reflects src. GLSL sources need a main() in both stages;
// WGSL sources are parsed with naga and may put both entry points in Vertex.
func (d *Device) CompileProgram(src ggshader.Source, attributeLocations map[string]uint32) (ggshader.ProgramHandle, error) {
	if d.failMarker != "" && (strings.Contains(src.Vertex, d.failMarker) || strings.Contains(src.Fragment, d.failMarker)) {
		return ggshader.NoProgram, fmt.Errorf("0:1(1): error: forced failure at %q", d.failMarker)
	}
	if src.Vertex == "" {
		return ggshader.NoProgram, errors.New("vertex shader: empty source")
	}

	var (
		uniforms   []ggshader.UniformInfo
		attributes []ggshader.AttributeInfo
		blocks     = make(map[string]int)
	)
	switch src.Language {
	case ggshader.WGSL:
		r, err := wgslreflect.ReflectProgram(src.Vertex, src.Fragment)
		if err != nil {
			return ggshader.NoProgram, err
		}
		uniforms, attributes = r.Uniforms, r.Attributes
		for _, b := range r.Blocks {
			blocks[b.Name] = b.Size
		}
	default:
		if src.Fragment == "" {
			return ggshader.NoProgram, errors.New("fragment shader: empty source")
		}
		gi, err := reflectGLSL(src.Vertex, src.Fragment)
		if err != nil {
			return ggshader.NoProgram, err
		}
		uniforms, attributes, blocks = gi.uniforms, gi.attributes, gi.blocks
		bindAttributes(attributes, attributeLocations)
	}

	d.next++
	p := &program{
		handle:        d.next,
		attributes:    attributes,
		locations:     make(map[string]ggshader.Location),
		values:        make(map[ggshader.Location]*value),
		blockSizes:    blocks,
		blockBindings: make(map[string]int),
	}
	for _, u := range uniforms {
		name := strings.TrimSuffix(u.Name, "[0]")
		if d.optimizedOut[name] {
			continue
		}
		p.uniforms = append(p.uniforms, u)
		if u.Block == "" {
			p.locations[name] = ggshader.Location(len(p.locations))
		}
	}
	d.programs[p.handle] = p
	d.counters.Compiles++
	d.logger.Debug("headless: program linked",
		"handle", p.handle, "language", src.Language, "uniforms", len(p.uniforms), "blocks", len(blocks))
	return p.handle, nil
}

// bindAttributes applies requested locations, then numbers the remaining
// inputs in declaration order, skipping taken indices.
func bindAttributes(attrs []ggshader.AttributeInfo, requested map[string]uint32) {
	taken := make(map[int]bool)
	for k := range attrs {
		if loc, ok := requested[attrs[k].Name]; ok {
			attrs[k].Location = int(loc)
		}
		if attrs[k].Location >= 0 {
			taken[attrs[k].Location] = true
		}
	}
	next := 0
	for k := range attrs {
		if attrs[k].Location >= 0 {
			continue
		}
		for taken[next] {
			next++
		}
		attrs[k].Location = next
		taken[next] = true
	}
}

// ActiveUniforms reports the reflected uniforms of p.
func (d *Device) ActiveUniforms(p ggshader.ProgramHandle) []ggshader.UniformInfo {
	if prog, ok := d.programs[p]; ok {
		return slices.Clone(prog.uniforms)
	}
	return nil
}

// ActiveAttributes reports the vertex inputs of p.
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
	loc, ok := prog.locations[name]
	if !ok {
		return ggshader.NoLocation, false
	}
	return loc, true
}

// UseProgram makes p current. Unknown handles unbind.
func (d *Device) UseProgram(p ggshader.ProgramHandle) {
	d.counters.ProgramSwitches++
	d.current = d.programs[p]
}

// DeleteProgram releases p.
func (d *Device) DeleteProgram(p ggshader.ProgramHandle) {
	if d.current != nil && d.current.handle == p {
		d.current = nil
	}
	delete(d.programs, p)
}

// BindTexture records tex on unit.
func (d *Device) BindTexture(tex ggshader.Texture, unit int) {
	d.counters.TextureBinds++
	if tex == nil {
		delete(d.units, unit)
		return
	}
	d.units[unit] = tex.TextureID()
}

// TextureAt returns the texture id bound to unit, or 0.
func (d *Device) TextureAt(unit int) uint32 { return d.units[unit] }

// target returns the value slot of loc in the current program.
func (d *Device) target(loc ggshader.Location) *value {
	d.counters.UniformCalls++
	if d.current == nil {
		d.counters.InvalidOps++
		return nil
	}
	if loc < 0 {
		return nil
	}
	v, ok := d.current.values[loc]
	if !ok {
		v = &value{}
		d.current.values[loc] = v
	}
	return v
}

func (d *Device) storeFloats(loc ggshader.Location, src []float32) {
	if v := d.target(loc); v != nil {
		v.f = append(v.f[:0], src...)
	}
}

func (d *Device) storeInts(loc ggshader.Location, src []int32) {
	if v := d.target(loc); v != nil {
		v.i = append(v.i[:0], src...)
	}
}

func (d *Device) storeUints(loc ggshader.Location, src []uint32) {
	if v := d.target(loc); v != nil {
		v.u = append(v.u[:0], src...)
	}
}

func (d *Device) Uniform1fv(loc ggshader.Location, v []float32)       { d.storeFloats(loc, v) }
func (d *Device) Uniform2fv(loc ggshader.Location, v []float32)       { d.storeFloats(loc, v) }
func (d *Device) Uniform3fv(loc ggshader.Location, v []float32)       { d.storeFloats(loc, v) }
func (d *Device) Uniform4fv(loc ggshader.Location, v []float32)       { d.storeFloats(loc, v) }
func (d *Device) Uniform1iv(loc ggshader.Location, v []int32)         { d.storeInts(loc, v) }
func (d *Device) Uniform2iv(loc ggshader.Location, v []int32)         { d.storeInts(loc, v) }
func (d *Device) Uniform3iv(loc ggshader.Location, v []int32)         { d.storeInts(loc, v) }
func (d *Device) Uniform4iv(loc ggshader.Location, v []int32)         { d.storeInts(loc, v) }
func (d *Device) Uniform1uiv(loc ggshader.Location, v []uint32)       { d.storeUints(loc, v) }
func (d *Device) Uniform2uiv(loc ggshader.Location, v []uint32)       { d.storeUints(loc, v) }
func (d *Device) Uniform3uiv(loc ggshader.Location, v []uint32)       { d.storeUints(loc, v) }
func (d *Device) Uniform4uiv(loc ggshader.Location, v []uint32)       { d.storeUints(loc, v) }
func (d *Device) UniformMatrix2fv(loc ggshader.Location, v []float32) { d.storeFloats(loc, v) }
func (d *Device) UniformMatrix3fv(loc ggshader.Location, v []float32) { d.storeFloats(loc, v) }
func (d *Device) UniformMatrix4fv(loc ggshader.Location, v []float32) { d.storeFloats(loc, v) }

func (d *Device) lookup(p ggshader.ProgramHandle, name string) *value {
	prog, ok := d.programs[p]
	if !ok {
		return nil
	}
	loc, ok := prog.locations[name]
	if !ok {
		return nil
	}
	return prog.values[loc]
}

// Floats returns the float data last written to name in p.
func (d *Device) Floats(p ggshader.ProgramHandle, name string) []float32 {
	if v := d.lookup(p, name); v != nil {
		return slices.Clone(v.f)
	}
	return nil
}

// Ints returns the int data last written to name in p.
func (d *Device) Ints(p ggshader.ProgramHandle, name string) []int32 {
	if v := d.lookup(p, name); v != nil {
		return slices.Clone(v.i)
	}
	return nil
}

// Uints returns the uint data last written to name in p.
func (d *Device) Uints(p ggshader.ProgramHandle, name string) []uint32 {
	if v := d.lookup(p, name); v != nil {
		return slices.Clone(v.u)
	}
	return nil
}

// UniformBlockBinding assigns binding to block of p.
func (d *Device) UniformBlockBinding(p ggshader.ProgramHandle, block string, binding int) bool {
	prog, ok := d.programs[p]
	if !ok {
		return false
	}
	if _, ok := prog.blockSizes[block]; !ok {
		return false
	}
	prog.blockBindings[block] = binding
	return true
}

// WriteUniformBuffer stores a copy of the bytes of buf.
func (d *Device) WriteUniformBuffer(buf *ggshader.UniformBuffer) {
	d.counters.BufferWrites++
	d.buffers[buf] = append(d.buffers[buf][:0], buf.Bytes()...)
}

// BindUniformBuffer binds buf to binding.
func (d *Device) BindUniformBuffer(buf *ggshader.UniformBuffer, binding int) {
	d.counters.BufferBinds++
	d.bindings[binding] = buf
}

// BlockData returns the uploaded bytes visible to block of p through its
// binding, or nil when nothing is bound.
func (d *Device) BlockData(p ggshader.ProgramHandle, block string) []byte {
	prog, ok := d.programs[p]
	if !ok {
		return nil
	}
	binding, ok := prog.blockBindings[block]
	if !ok {
		return nil
	}
	buf, ok := d.bindings[binding]
	if !ok {
		return nil
	}
	return slices.Clone(d.buffers[buf])
}

// Blocks returns the uniform block names of p in sorted order.
func (d *Device) Blocks(p ggshader.ProgramHandle) []string {
	prog, ok := d.programs[p]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(prog.blockSizes))
}
