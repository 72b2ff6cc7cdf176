// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/ggshader"
	"github.com/gogpu/ggshader/internal/wgslreflect"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrGLSLSource is returned by CompileProgram for GLSL sources.
var ErrGLSLSource = errors.New("wgpu: GLSL sources are not supported, use WGSL")

// block is the CPU staging copy of one var<uniform> buffer of a program.
type block struct {
	name    string
	group   uint32
	binding uint32
	staging []byte
	buffer  hal.Buffer
	dirty   bool
}

type program struct {
	handle     ggshader.ProgramHandle
	vertex     hal.ShaderModule
	fragment   hal.ShaderModule
	reflection *wgslreflect.Reflection

	locations map[string]ggshader.Location
	slots     []slot
	blocks    map[string]*block
	order     []*block

	// blockBindings holds the binding points assigned by UniformBlockBinding.
	blockBindings map[string]int
}

// shared is the device buffer backing one ggshader.UniformBuffer.
type shared struct {
	buffer hal.Buffer
	size   int
}

// Device is a ggshader.Device on a gogpu/wgpu HAL device. Programs are
// WGSL shader modules; every uniform lives in a var<uniform> buffer, so
// uniform writes land in a per-block staging copy that Flush uploads.
// It is not safe for concurrent use.
type Device struct {
	device hal.Device
	queue  hal.Queue
	label  string
	format gputypes.TextureFormat
	logger *slog.Logger

	next     ggshader.ProgramHandle
	programs map[ggshader.ProgramHandle]*program
	current  *program

	units    map[int]uint32
	buffers  map[*ggshader.UniformBuffer]*shared
	bindings map[int]*ggshader.UniformBuffer

	// err is the first resource error raised by a call with no error
	// result.
	err error
}

// Option configures a Device.
type Option func(*Device)

// WithLabel sets the label prefix of the created HAL resources.
func WithLabel(label string) Option {
	return func(d *Device) {
		d.label = label
	}
}

// WithSurfaceFormat sets the format reported by SurfaceFormat.
func WithSurfaceFormat(f gputypes.TextureFormat) Option {
	return func(d *Device) {
		d.format = f
	}
}

// New wraps a HAL device and queue. The caller keeps ownership of both.
func New(device hal.Device, queue hal.Queue, opts ...Option) *Device {
	d := &Device{
		device:   device,
		queue:    queue,
		label:    "ggshader",
		format:   gputypes.TextureFormatBGRA8Unorm,
		logger:   ggshader.Logger(),
		programs: make(map[ggshader.ProgramHandle]*program),
		units:    make(map[int]uint32),
		buffers:  make(map[*ggshader.UniformBuffer]*shared),
		bindings: make(map[int]*ggshader.UniformBuffer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewFromProvider shares the device of an external provider such as a
// gogpu window. The provider must also expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	opts = append([]Option{WithSurfaceFormat(provider.SurfaceFormat())}, opts...)
	return New(device, queue, opts...), nil
}

// SetLogger sets the device logger. Systems call it on creation.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = ggshader.Logger()
	}
	d.logger = l
}

// SurfaceFormat returns the format of the presented surface.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.format }

// Err returns and clears the first resource error raised since the last
// call.
func (d *Device) Err() error {
	err := d.err
	d.err = nil
	return err
}

func (d *Device) fail(err error) {
	d.logger.Warn("wgpu: resource error", "error", err)
	if d.err == nil {
		d.err = err
	}
}

// CompileProgram creates the shader modules of src and one uniform buffer
// per var<uniform> block. A single module may hold both entry points, in
// which case Fragment is empty.
func (d *Device) CompileProgram(src ggshader.Source, _ map[string]uint32) (ggshader.ProgramHandle, error) {
	if src.Language != ggshader.WGSL {
		return ggshader.NoProgram, ErrGLSLSource
	}
	r, err := wgslreflect.ReflectProgram(src.Vertex, src.Fragment)
	if err != nil {
		return ggshader.NoProgram, err
	}

	prog := &program{
		reflection:    r,
		locations:     make(map[string]ggshader.Location),
		blocks:        make(map[string]*block, len(r.Blocks)),
		blockBindings: make(map[string]int),
	}
	if err := d.createModules(prog, src); err != nil {
		return ggshader.NoProgram, err
	}
	for _, b := range r.Blocks {
		size := alignUp(max(b.Size, 16), 16)
		buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: d.label + "_" + b.Name,
			Size:  uint64(size),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			d.release(prog)
			return ggshader.NoProgram, fmt.Errorf("create uniform buffer %s: %w", b.Name, err)
		}
		blk := &block{
			name:    b.Name,
			group:   b.Group,
			binding: b.Binding,
			staging: make([]byte, size),
			buffer:  buf,
			dirty:   true,
		}
		prog.blocks[b.Name] = blk
		prog.order = append(prog.order, blk)
	}
	for _, u := range r.Uniforms {
		s := newSlot(u, prog.blocks[u.Block])
		prog.locations[u.Name] = ggshader.Location(len(prog.slots))
		prog.slots = append(prog.slots, s)
	}

	d.next++
	prog.handle = d.next
	d.programs[prog.handle] = prog
	d.logger.Debug("wgpu: program created",
		"handle", prog.handle,
		"blocks", len(prog.order),
		"textures", len(r.Textures))
	return prog.handle, nil
}

func (d *Device) createModules(prog *program, src ggshader.Source) error {
	vs, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  d.label + "_vertex",
		Source: hal.ShaderSource{WGSL: src.Vertex},
	})
	if err != nil {
		return fmt.Errorf("create vertex module: %w", err)
	}
	prog.vertex = vs
	prog.fragment = vs
	if src.Fragment == "" || src.Fragment == src.Vertex {
		return nil
	}
	fs, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  d.label + "_fragment",
		Source: hal.ShaderSource{WGSL: src.Fragment},
	})
	if err != nil {
		d.device.DestroyShaderModule(vs)
		prog.vertex, prog.fragment = nil, nil
		return fmt.Errorf("create fragment module: %w", err)
	}
	prog.fragment = fs
	return nil
}

func (d *Device) release(prog *program) {
	for _, b := range prog.order {
		if b.buffer != nil {
			d.device.DestroyBuffer(b.buffer)
			b.buffer = nil
		}
	}
	if prog.fragment != nil && prog.fragment != prog.vertex {
		d.device.DestroyShaderModule(prog.fragment)
	}
	if prog.vertex != nil {
		d.device.DestroyShaderModule(prog.vertex)
	}
	prog.vertex, prog.fragment = nil, nil
}

// ActiveUniforms reports the block members and textures of p.
func (d *Device) ActiveUniforms(p ggshader.ProgramHandle) []ggshader.UniformInfo {
	if prog, ok := d.programs[p]; ok {
		return slices.Clone(prog.reflection.Uniforms)
	}
	return nil
}

// ActiveAttributes reports the vertex inputs of p with their @location.
func (d *Device) ActiveAttributes(p ggshader.ProgramHandle) []ggshader.AttributeInfo {
	if prog, ok := d.programs[p]; ok {
		return slices.Clone(prog.reflection.Attributes)
	}
	return nil
}

// UniformLocation resolves a block member or texture of p. Block members
// have locations too: writes to them go to the block's staging copy.
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
	d.current = d.programs[p]
}

// Current returns the program in use, or NoProgram.
func (d *Device) Current() ggshader.ProgramHandle {
	if d.current == nil {
		return ggshader.NoProgram
	}
	return d.current.handle
}

// DeleteProgram destroys the modules and uniform buffers of p.
func (d *Device) DeleteProgram(p ggshader.ProgramHandle) {
	prog, ok := d.programs[p]
	if !ok {
		return
	}
	if d.current == prog {
		d.current = nil
	}
	d.release(prog)
	delete(d.programs, p)
}

// BindTexture records the texture bound to unit.
func (d *Device) BindTexture(tex ggshader.Texture, unit int) {
	if tex == nil {
		delete(d.units, unit)
		return
	}
	d.units[unit] = tex.TextureID()
}

// TextureAt returns the texture id bound to unit, 0 when none.
func (d *Device) TextureAt(unit int) uint32 { return d.units[unit] }

func (d *Device) target(loc ggshader.Location) *slot {
	if d.current == nil {
		d.fail(errors.New("wgpu: uniform write with no program in use"))
		return nil
	}
	if loc < 0 || int(loc) >= len(d.current.slots) {
		return nil
	}
	return &d.current.slots[loc]
}

func (d *Device) storeFloats(loc ggshader.Location, v []float32) {
	if s := d.target(loc); s != nil {
		s.floats(v)
	}
}

func (d *Device) storeInts(loc ggshader.Location, v []int32) {
	if s := d.target(loc); s != nil {
		s.ints(v)
	}
}

func (d *Device) storeUints(loc ggshader.Location, v []uint32) {
	if s := d.target(loc); s != nil {
		s.uints(v)
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

// Flush uploads the staging copy of every changed block and returns the
// number of buffers written. Call it before submitting draws.
func (d *Device) Flush() int {
	n := 0
	for _, prog := range d.programs {
		for _, b := range prog.order {
			if !b.dirty || b.buffer == nil {
				continue
			}
			d.queue.WriteBuffer(b.buffer, 0, b.staging)
			b.dirty = false
			n++
		}
	}
	if n > 0 {
		d.logger.Debug("wgpu: flushed uniform blocks", "buffers", n)
	}
	return n
}

// Staging returns the CPU copy of block of p, or nil.
func (d *Device) Staging(p ggshader.ProgramHandle, name string) []byte {
	prog, ok := d.programs[p]
	if !ok {
		return nil
	}
	b, ok := prog.blocks[name]
	if !ok {
		return nil
	}
	return slices.Clone(b.staging)
}

// UniformBlockBinding assigns binding to block of p.
func (d *Device) UniformBlockBinding(p ggshader.ProgramHandle, name string, binding int) bool {
	prog, ok := d.programs[p]
	if !ok {
		return false
	}
	if _, ok := prog.blocks[name]; !ok {
		return false
	}
	prog.blockBindings[name] = binding
	return true
}

// WriteUniformBuffer uploads buf to its device buffer, creating or
// growing the buffer as needed.
func (d *Device) WriteUniformBuffer(buf *ggshader.UniformBuffer) {
	data := buf.Bytes()
	if len(data) == 0 {
		return
	}
	sb := d.buffers[buf]
	if sb == nil || sb.size < len(data) {
		if sb != nil {
			d.device.DestroyBuffer(sb.buffer)
		}
		size := alignUp(len(data), 16)
		hb, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: d.label + "_ubo",
			Size:  uint64(size),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			delete(d.buffers, buf)
			d.fail(fmt.Errorf("create uniform buffer: %w", err))
			return
		}
		sb = &shared{buffer: hb, size: size}
		d.buffers[buf] = sb
	}
	d.queue.WriteBuffer(sb.buffer, 0, data)
}

// BindUniformBuffer binds buf to binding.
func (d *Device) BindUniformBuffer(buf *ggshader.UniformBuffer, binding int) {
	d.bindings[binding] = buf
}

// BlockBuffer returns the device buffer a render pass binds for block of
// p: the shared buffer bound to the block's binding point when there is
// one, the program's own buffer otherwise.
func (d *Device) BlockBuffer(p ggshader.ProgramHandle, name string) hal.Buffer {
	prog, ok := d.programs[p]
	if !ok {
		return nil
	}
	b, ok := prog.blocks[name]
	if !ok {
		return nil
	}
	if binding, ok := prog.blockBindings[name]; ok {
		if ub := d.bindings[binding]; ub != nil {
			if sb := d.buffers[ub]; sb != nil {
				return sb.buffer
			}
		}
	}
	return b.buffer
}

// Modules returns the vertex and fragment modules of p. They are the same
// module when both entry points share one source.
func (d *Device) Modules(p ggshader.ProgramHandle) (vertex, fragment hal.ShaderModule, ok bool) {
	prog, ok := d.programs[p]
	if !ok {
		return nil, nil, false
	}
	return prog.vertex, prog.fragment, true
}

// EntryPoints returns the vertex and fragment entry point names of p.
func (d *Device) EntryPoints(p ggshader.ProgramHandle) (vertex, fragment string) {
	if prog, ok := d.programs[p]; ok {
		return prog.reflection.Vertex, prog.reflection.Fragment
	}
	return "", ""
}

// Close destroys every program and uniform buffer. The HAL device itself
// is left to its owner.
func (d *Device) Close() {
	for h, prog := range d.programs {
		d.release(prog)
		delete(d.programs, h)
	}
	for buf, sb := range d.buffers {
		d.device.DestroyBuffer(sb.buffer)
		delete(d.buffers, buf)
	}
	clear(d.bindings)
	d.current = nil
}
