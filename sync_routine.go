// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"slices"
	"strings"
)

// SyncRoutine is the upload plan for one uniform shape. It is a list of
// steps chosen once, when the shape is first seen, so synchronizing a group
// never dispatches on uniform types again.
//
// A routine holds no program state: it is shared by every program whose
// uniforms give the same Signature, and bound to a program's uniform table
// before it runs.
type SyncRoutine struct {
	signature string
	steps     []syncStep
}

// Signature returns the shape key the routine was generated for.
func (r *SyncRoutine) Signature() string { return r.signature }

// Len returns the number of upload steps.
func (r *SyncRoutine) Len() int { return len(r.steps) }

// Uniforms returns the program uniform names the routine writes, in step
// order. Nested group steps are reported by member name.
func (r *SyncRoutine) Uniforms() []string {
	out := make([]string, len(r.steps))
	for k, s := range r.steps {
		out[k] = s.name
	}
	return out
}

// syncStep uploads one member. path locates the value inside the group
// (more than one index for flattened struct fields); name is the program
// uniform it writes. Group steps have no uniform data.
type syncStep struct {
	name      string
	path      []int
	needsData bool
	exec      stepFunc
}

type stepFunc func(env *syncEnv, ud *UniformData, v *uniformValue)

// syncEnv is the state threaded through one synchronization pass: texture
// units and uniform block bindings are handed out in step order.
type syncEnv struct {
	sys          *System
	dev          Device
	program      *CompiledProgram
	textureCount int
	uboCount     int
	err          error
}

func (env *syncEnv) reset() {
	env.textureCount = 0
	env.uboCount = 0
	env.err = nil
}

func (env *syncEnv) fail(err error) {
	if env.err == nil {
		env.err = err
	}
}

// GenerateSyncRoutine builds the routine for g against a program's uniform
// table. Members the program does not declare produce no step. Most callers
// use SyncCache.GetOrCreate, which generates once per signature.
func GenerateSyncRoutine(g *UniformGroup, uniforms map[string]*UniformData) *SyncRoutine {
	return generateSyncRoutine(Signature(g, uniforms), g, uniforms)
}

func generateSyncRoutine(sig string, g *UniformGroup, uniforms map[string]*UniformData) *SyncRoutine {
	r := &SyncRoutine{signature: sig}
	r.appendSteps(g, nil, "", uniforms)
	return r
}

func (r *SyncRoutine) appendSteps(g *UniformGroup, path []int, prefix string, uniforms map[string]*UniformData) {
	for i, name := range g.names {
		full := prefix + name
		p := append(slices.Clip(path), i)

		if uv := &g.values[i]; uv.kind == valueGroup {
			switch {
			case uv.group.ubo:
				r.steps = append(r.steps, syncStep{name: full, path: p, exec: bufferGroupStep(full)})
			case hasStructFields(uniforms, full):
				r.appendSteps(uv.group, p, full+".", uniforms)
			default:
				r.steps = append(r.steps, syncStep{name: full, path: p, exec: groupStep})
			}
			continue
		}

		ud, ok := uniforms[full]
		if !ok {
			continue
		}
		if exec := uploadStep(ud); exec != nil {
			r.steps = append(r.steps, syncStep{name: full, path: p, needsData: true, exec: exec})
		}
	}
}

// uploadStep picks the upload for a uniform's introspected type. It returns
// nil for types that cannot be uploaded.
func uploadStep(ud *UniformData) stepFunc {
	t := ud.Type
	if n := t.Components(); n < 1 {
		return nil
	}
	switch {
	case t.IsSampler() && ud.IsArray:
		return samplerArrayStep
	case t.IsSampler():
		return samplerStep
	case t.IsMatrix():
		return matrixStep(matrixUploads[matrixDim(t)])
	case ud.IsArray || ud.Size > 1:
		return arrayStep(t)
	default:
		return cachedStep(t)
	}
}

var (
	floatUploads = [...]func(UniformWriter, Location, []float32){
		1: UniformWriter.Uniform1fv,
		2: UniformWriter.Uniform2fv,
		3: UniformWriter.Uniform3fv,
		4: UniformWriter.Uniform4fv,
	}
	intUploads = [...]func(UniformWriter, Location, []int32){
		1: UniformWriter.Uniform1iv,
		2: UniformWriter.Uniform2iv,
		3: UniformWriter.Uniform3iv,
		4: UniformWriter.Uniform4iv,
	}
	uintUploads = [...]func(UniformWriter, Location, []uint32){
		1: UniformWriter.Uniform1uiv,
		2: UniformWriter.Uniform2uiv,
		3: UniformWriter.Uniform3uiv,
		4: UniformWriter.Uniform4uiv,
	}
	matrixUploads = [...]func(UniformWriter, Location, []float32){
		2: UniformWriter.UniformMatrix2fv,
		3: UniformWriter.UniformMatrix3fv,
		4: UniformWriter.UniformMatrix4fv,
	}
)

// cachedStep uploads a single scalar or vector only when it differs from
// the last value uploaded.
func cachedStep(t UniformType) stepFunc {
	n := t.Components()
	switch t.Kind() {
	case KindUint:
		upload := uintUploads[n]
		return func(env *syncEnv, ud *UniformData, v *uniformValue) {
			if copyChanged(ud.u, v.uints(&ud.scratchU)) {
				upload(env.dev, ud.Location, ud.u)
			}
		}
	case KindInt, KindBool:
		upload := intUploads[n]
		return func(env *syncEnv, ud *UniformData, v *uniformValue) {
			if copyChanged(ud.i, v.ints(&ud.scratchI)) {
				upload(env.dev, ud.Location, ud.i)
			}
		}
	default:
		upload := floatUploads[n]
		return func(env *syncEnv, ud *UniformData, v *uniformValue) {
			if copyChanged(ud.f, v.floats(&ud.scratchF)) {
				upload(env.dev, ud.Location, ud.f)
			}
		}
	}
}

// arrayStep uploads the whole flattened array every time.
func arrayStep(t UniformType) stepFunc {
	n := t.Components()
	switch t.Kind() {
	case KindUint:
		upload := uintUploads[n]
		return func(env *syncEnv, ud *UniformData, v *uniformValue) {
			copy(ud.u, v.uints(&ud.scratchU))
			upload(env.dev, ud.Location, ud.u)
		}
	case KindInt, KindBool:
		upload := intUploads[n]
		return func(env *syncEnv, ud *UniformData, v *uniformValue) {
			copy(ud.i, v.ints(&ud.scratchI))
			upload(env.dev, ud.Location, ud.i)
		}
	default:
		upload := floatUploads[n]
		return func(env *syncEnv, ud *UniformData, v *uniformValue) {
			copy(ud.f, v.floats(&ud.scratchF))
			upload(env.dev, ud.Location, ud.f)
		}
	}
}

// matrixStep uploads a matrix or matrix array every time.
func matrixStep(upload func(UniformWriter, Location, []float32)) stepFunc {
	return func(env *syncEnv, ud *UniformData, v *uniformValue) {
		src := v.floats(&ud.scratchF)
		if src == nil {
			return
		}
		copy(ud.f, src)
		upload(env.dev, ud.Location, ud.f)
	}
}

// samplerStep binds a texture to the next free unit and points the sampler
// at it. An integer value selects a unit directly without binding. The unit
// index is uploaded only when it changed.
func samplerStep(env *syncEnv, ud *UniformData, v *uniformValue) {
	var unit int32
	switch v.kind {
	case valueTexture:
		unit = int32(env.textureCount)
		env.dev.BindTexture(v.tex, env.textureCount)
		env.textureCount++
	case valueInt, valueUint, valueFloat:
		units := v.ints(&ud.scratchI)
		if len(units) == 0 {
			return
		}
		unit = units[0]
	default:
		return
	}
	if ud.i[0] != unit {
		ud.i[0] = unit
		env.dev.Uniform1iv(ud.Location, ud.i[:1])
	}
}

// samplerArrayStep binds a texture list to consecutive units.
func samplerArrayStep(env *syncEnv, ud *UniformData, v *uniformValue) {
	changed := false
	switch v.kind {
	case valueTextures:
		for k, tex := range v.texs {
			if k >= len(ud.i) {
				break
			}
			unit := int32(env.textureCount)
			env.dev.BindTexture(tex, env.textureCount)
			env.textureCount++
			if ud.i[k] != unit {
				ud.i[k] = unit
				changed = true
			}
		}
	case valueTexture:
		unit := int32(env.textureCount)
		env.dev.BindTexture(v.tex, env.textureCount)
		env.textureCount++
		if ud.i[0] != unit {
			ud.i[0] = unit
			changed = true
		}
	case valueInt, valueUint, valueFloat:
		changed = copyChanged(ud.i, v.ints(&ud.scratchI))
	default:
		return
	}
	if changed {
		env.dev.Uniform1iv(ud.Location, ud.i)
	}
}

// groupStep synchronizes a nested group with its own dirty tracking.
func groupStep(env *syncEnv, _ *UniformData, v *uniformValue) {
	if err := env.sys.syncUniformGroup(v.group, env.program); err != nil {
		env.fail(err)
	}
}

// bufferGroupStep synchronizes a nested uniform buffer group as the block
// called name.
func bufferGroupStep(name string) stepFunc {
	return func(env *syncEnv, _ *UniformData, v *uniformValue) {
		if err := env.sys.syncUniformBufferGroup(v.group, name, env.program); err != nil {
			env.fail(err)
		}
	}
}

// boundRoutine is a routine resolved against one program's uniform table.
// It stays valid while the group keeps the member layout it was bound for.
// Groups are recorded by id and shape version only, so a program never
// keeps a group alive.
type boundRoutine struct {
	routine *SyncRoutine
	data    []*UniformData // per step; nil for group steps and optimized-out uniforms
	ids     []uint64
	shapes  []uint64
}

func (r *SyncRoutine) bind(g *UniformGroup, uniforms map[string]*UniformData) *boundRoutine {
	b := &boundRoutine{
		routine: r,
		data:    make([]*UniformData, len(r.steps)),
	}
	for k, s := range r.steps {
		if !s.needsData {
			continue
		}
		if ud := uniforms[s.name]; ud != nil && ud.Location != NoLocation {
			b.data[k] = ud
		}
	}
	b.track(g, uniforms, "")
	return b
}

// track records the shape of g and of every group flattened into it, in
// visiting order.
func (b *boundRoutine) track(g *UniformGroup, uniforms map[string]*UniformData, prefix string) {
	b.ids = append(b.ids, g.id)
	b.shapes = append(b.shapes, g.shape)
	for i, name := range g.names {
		uv := &g.values[i]
		if uv.kind != valueGroup || uv.group.ubo {
			continue
		}
		if full := prefix + name; hasStructFields(uniforms, full) {
			b.track(uv.group, uniforms, full+".")
		}
	}
}

// valid reports whether g and the groups flattened into it are the ones
// the routine was bound for, with the same member layout.
func (b *boundRoutine) valid(g *UniformGroup, uniforms map[string]*UniformData) bool {
	k := 0
	return b.matches(g, uniforms, "", &k) && k == len(b.ids)
}

func (b *boundRoutine) matches(g *UniformGroup, uniforms map[string]*UniformData, prefix string, k *int) bool {
	if *k >= len(b.ids) || b.ids[*k] != g.id || b.shapes[*k] != g.shape {
		return false
	}
	*k++
	for i, name := range g.names {
		uv := &g.values[i]
		if uv.kind != valueGroup || uv.group.ubo {
			continue
		}
		if full := prefix + name; hasStructFields(uniforms, full) {
			if !b.matches(uv.group, uniforms, full+".", k) {
				return false
			}
		}
	}
	return true
}

func (b *boundRoutine) run(env *syncEnv, g *UniformGroup) {
	for k, s := range b.routine.steps {
		ud := b.data[k]
		if s.needsData && ud == nil {
			continue
		}
		v := g.valueAt(s.path)
		if v == nil {
			continue
		}
		s.exec(env, ud, v)
	}
}

// describe renders the step list, for debug logs.
func (r *SyncRoutine) describe() string {
	return strings.Join(r.Uniforms(), ",")
}
