// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// GlobalsName is the reserved member name under which the global uniform
// group is injected into every bound shader's group.
const GlobalsName = "globals"

// System binds shaders on one device and keeps its uniforms in sync. It
// compiles programs lazily per context identity, switches the active
// program only when it changes and uploads uniform groups through cached
// sync routines.
//
// System is not safe for concurrent use: all calls must come from the
// goroutine that owns the device's context.
type System struct {
	id      uint64
	dev     Device
	context ContextID
	globals *UniformGroup
	cache   *SyncCache

	ownsCache bool

	shader   *Shader
	compiled *CompiledProgram

	// uploads maps a buffer group id to the buffer version last written
	// under the current context.
	uploads map[uint64]uint64

	env       syncEnv
	stats     Stats
	destroyed bool
}

// Stats counts the device work a System issued.
type Stats struct {
	// Compiles is the number of programs compiled.
	Compiles uint64
	// ProgramSwitches is the number of UseProgram calls.
	ProgramSwitches uint64
	// Syncs is the number of group synchronizations that ran a routine.
	Syncs uint64
	// SkippedSyncs is the number of static group synchronizations skipped
	// because the group was unchanged.
	SkippedSyncs uint64
	// BufferUploads is the number of uniform buffer writes.
	BufferUploads uint64
	// Cache describes the routine cache.
	Cache CacheStats
}

// NewSystem creates a System driving dev. It returns
// ErrEnvironmentUnsupported when dev is nil.
func NewSystem(dev Device, opts ...SystemOption) (*System, error) {
	if dev == nil {
		return nil, ErrEnvironmentUnsupported
	}
	o := defaultSystemOptions()
	for _, opt := range opts {
		opt(&o)
	}
	owns := o.cache == nil
	if owns {
		o.cache = NewSyncCache()
	}

	s := &System{
		id:        o.id,
		dev:       dev,
		context:   o.context,
		globals:   o.globals,
		cache:     o.cache,
		ownsCache: owns,
		uploads:   make(map[uint64]uint64),
	}
	s.env = syncEnv{sys: s, dev: dev}
	propagateLogger(dev, Logger())

	Logger().Info("ggshader: system created",
		slog.Uint64("system", s.id),
		slog.Uint64("context", uint64(s.context)))
	return s, nil
}

// ID returns the instance id issued by the Registry, 0 for systems created
// directly.
func (s *System) ID() uint64 { return s.id }

// Context returns the current context identity.
func (s *System) Context() ContextID { return s.context }

// Globals returns the global uniform group, or nil.
func (s *System) Globals() *UniformGroup { return s.globals }

// Shader returns the bound shader, or nil.
func (s *System) Shader() *Shader { return s.shader }

// CompiledProgram returns the bound compiled program, or nil.
func (s *System) CompiledProgram() *CompiledProgram { return s.compiled }

// Stats returns the work counters.
func (s *System) Stats() Stats {
	st := s.stats
	st.Cache = s.cache.Stats()
	return st
}

// Bind makes sh the active shader. The shader's program is compiled for the
// current context on first use and made active only if another compiled
// program is active. Unless skipSync is set, the shader's uniform group is
// then synchronized.
//
// The returned CompiledProgram may be used for manual uploads. A compile
// failure is returned as *CompileError and leaves the bound state untouched.
func (s *System) Bind(sh *Shader, skipSync bool) (*CompiledProgram, error) {
	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.globals != nil {
		sh.uniforms.inject(GlobalsName, s.globals)
	}

	p := sh.program
	cp, ok := p.compiled[s.context]
	if !ok {
		var err error
		cp, err = compileProgram(s.dev, p, s.context)
		if err != nil {
			Logger().Warn("ggshader: program compile failed",
				slog.String("program", p.name),
				slog.String("err", err.Error()))
			return nil, err
		}
		p.compiled[s.context] = cp
		s.stats.Compiles++
	}

	s.shader = sh
	if s.compiled != cp {
		s.compiled = cp
		s.dev.UseProgram(cp.handle)
		s.stats.ProgramSwitches++
	}

	if skipSync {
		return cp, nil
	}
	s.env.reset()
	if err := s.syncUniformGroup(sh.uniforms, cp); err != nil {
		return cp, err
	}
	return cp, nil
}

// SetUniforms uploads values to the bound program outside of any group.
// Names are applied in sorted order; names the program does not have are
// ignored. It returns ErrInvalidState when no shader is bound.
func (s *System) SetUniforms(values map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.env.reset()
	g := NewUniformGroup(false)
	for _, name := range slices.Sorted(maps.Keys(values)) {
		if err := g.Set(name, values[name]); err != nil {
			return fmt.Errorf("ggshader: set uniform %q: %w", name, err)
		}
	}

	cp := s.compiled
	r := s.cache.GetOrCreate(g, cp.uniforms)
	s.env.program = cp
	s.stats.Syncs++
	r.bind(g, cp.uniforms).run(&s.env, g)
	return s.takeErr()
}

// SyncUniformGroup uploads g to the bound program unless g is static and
// has not changed since it was last uploaded to that program. Texture units
// and block bindings are handed out from 0 again on every call. It returns
// ErrInvalidState when no shader is bound.
func (s *System) SyncUniformGroup(g *UniformGroup) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.env.reset()
	return s.syncUniformGroup(g, s.compiled)
}

// SyncUniforms uploads g to cp unconditionally. cp must be the active
// program.
func (s *System) SyncUniforms(g *UniformGroup, cp *CompiledProgram) error {
	if s.destroyed {
		return ErrDestroyed
	}
	if cp == nil {
		return ErrInvalidState
	}
	s.env.reset()
	return s.syncUniforms(g, cp)
}

// SyncUniformBufferGroup packs the uniform buffer group g, uploads it when
// its bytes changed and binds it to the bound program's uniform block
// called name. Devices without uniform block support return
// ErrUniformBuffersUnsupported.
func (s *System) SyncUniformBufferGroup(g *UniformGroup, name string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.env.reset()
	return s.syncUniformBufferGroup(g, name, s.compiled)
}

func (s *System) syncUniformGroup(g *UniformGroup, cp *CompiledProgram) error {
	if last, ok := cp.dirty[g.id]; ok && g.static && last == g.dirtyID {
		s.stats.SkippedSyncs++
		return nil
	}
	cp.dirty[g.id] = g.dirtyID
	return s.syncUniforms(g, cp)
}

func (s *System) syncUniforms(g *UniformGroup, cp *CompiledProgram) error {
	b := cp.bound[g.id]
	if b == nil || !b.valid(g, cp.uniforms) {
		r := s.cache.GetOrCreate(g, cp.uniforms)
		b = r.bind(g, cp.uniforms)
		cp.bound[g.id] = b
	}

	prev := s.env.program
	s.env.program = cp
	s.stats.Syncs++
	b.run(&s.env, g)
	s.env.program = prev
	return s.takeErr()
}

func (s *System) syncUniformBufferGroup(g *UniformGroup, name string, cp *CompiledProgram) error {
	bd, ok := s.dev.(BufferDevice)
	if !ok {
		return ErrUniformBuffersUnsupported
	}
	if !g.ubo {
		return fmt.Errorf("ggshader: group %q is not a uniform buffer group: %w", name, ErrInvalidState)
	}

	if last, ok := cp.dirty[g.id]; !ok || !g.static || last != g.dirtyID {
		cp.dirty[g.id] = g.dirtyID
		layout := s.cache.layout(g, cp.uniforms, name)
		layout.pack(g, g.buffer)
	}
	if v, ok := s.uploads[g.id]; !ok || v != g.buffer.version {
		bd.WriteUniformBuffer(g.buffer)
		s.uploads[g.id] = g.buffer.version
		s.stats.BufferUploads++
	}

	binding := s.env.uboCount
	s.env.uboCount++
	if cur, ok := cp.blocks[name]; !ok || cur != binding {
		if !bd.UniformBlockBinding(cp.handle, name, binding) {
			return nil
		}
		cp.blocks[name] = binding
	}
	bd.BindUniformBuffer(g.buffer, binding)
	return nil
}

// takeErr returns and clears the first error recorded by nested steps.
func (s *System) takeErr() error {
	err := s.env.err
	s.env.err = nil
	return err
}

func (s *System) ready() error {
	if s.destroyed {
		return ErrDestroyed
	}
	if s.compiled == nil {
		return ErrInvalidState
	}
	return nil
}

// ContextChange switches the system to a new or restored context. Bound
// state is cleared so the next Bind compiles each program for the new
// identity. Calling it again with the same device and identity does
// nothing.
func (s *System) ContextChange(dev Device, id ContextID) {
	if dev == nil {
		dev = s.dev
	}
	if dev == s.dev && id == s.context {
		return
	}
	Logger().Debug("ggshader: context changed",
		slog.Uint64("system", s.id),
		slog.Uint64("from", uint64(s.context)),
		slog.Uint64("to", uint64(id)))

	s.dev = dev
	s.context = id
	s.env = syncEnv{sys: s, dev: dev}
	clear(s.uploads)
	s.Reset()
	propagateLogger(dev, Logger())
}

// Reset forgets the bound shader and program without touching any cache.
// The next Bind issues UseProgram again.
func (s *System) Reset() {
	s.shader = nil
	s.compiled = nil
}

// DisposeShader clears the bound state if sh is the bound shader.
func (s *System) DisposeShader(sh *Shader) {
	if s.shader == sh {
		s.Reset()
	}
}

// DestroyProgram releases p's handle for the current context and drops
// that compiled program. Programs compiled under other contexts belong to
// the systems driving them and are left alone.
func (s *System) DestroyProgram(p *Program) {
	cp, ok := p.compiled[s.context]
	if !ok {
		return
	}
	s.dev.DeleteProgram(cp.handle)
	delete(p.compiled, s.context)
	if s.compiled == cp {
		s.Reset()
	}
}

// Destroy releases the system's bound state. Programs and their GPU handles
// are left to their owners; the routine cache is cleared only when the
// system created it. Later calls return ErrDestroyed.
func (s *System) Destroy() {
	if s.destroyed {
		return
	}
	s.Reset()
	if s.ownsCache {
		s.cache.Clear()
	}
	s.globals = nil
	s.uploads = nil
	s.destroyed = true
	Logger().Info("ggshader: system destroyed", slog.Uint64("system", s.id))
}
