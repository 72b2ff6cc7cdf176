// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"encoding/binary"
	"errors"
	"math"
	"runtime"
	"slices"
	"testing"
	"weak"

	"golang.org/x/image/math/f32"
)

func newTestSystem(t *testing.T, dev Device, opts ...SystemOption) *System {
	t.Helper()
	sys, err := NewSystem(dev, opts...)
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	return sys
}

func testSource(name string) Source {
	return Source{Vertex: name + ".vert", Fragment: name + ".frag"}
}

func mustBind(t *testing.T, sys *System, sh *Shader) *CompiledProgram {
	t.Helper()
	cp, err := sys.Bind(sh, false)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return cp
}

func TestNewSystemNilDevice(t *testing.T) {
	_, err := NewSystem(nil)
	if !errors.Is(err, ErrEnvironmentUnsupported) {
		t.Fatalf("NewSystem(nil) error = %v, want ErrEnvironmentUnsupported", err)
	}
}

func TestNewSystemPropagatesLogger(t *testing.T) {
	dev := newMockDevice()
	newTestSystem(t, dev)
	if dev.logger != Logger() {
		t.Error("device did not receive the package logger")
	}
}

func TestBindSwitchesOnlyOnProgramChange(t *testing.T) {
	dev := newMockDevice()
	sys := newTestSystem(t, dev)
	a := NewShader(NewProgram("a", testSource("a")), nil)
	b := NewShader(NewProgram("b", testSource("b")), nil)

	tests := []struct {
		shader   *Shader
		switches int
	}{
		{a, 1},
		{a, 1},
		{b, 2},
		{a, 3},
	}
	for k, tt := range tests {
		mustBind(t, sys, tt.shader)
		if got := dev.count("use"); got != tt.switches {
			t.Errorf("bind %d: UseProgram calls = %d, want %d", k+1, got, tt.switches)
		}
	}
	if st := sys.Stats(); st.ProgramSwitches != 3 || st.Compiles != 2 {
		t.Errorf("Stats = %+v, want 3 switches and 2 compiles", st)
	}
}

func TestBindSharedProgram(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uAlpha", Type: TypeFloat})
	sys := newTestSystem(t, dev)
	p := NewProgram("shared", testSource("shared"))
	first := NewShader(p, nil)
	second := NewShader(p, nil)

	cp1 := mustBind(t, sys, first)
	cp2 := mustBind(t, sys, second)

	if cp1 != cp2 {
		t.Error("shaders sharing a program got different compiled programs")
	}
	if got := dev.count("compile"); got != 1 {
		t.Errorf("compiles = %d, want 1", got)
	}
	if got := dev.count("use"); got != 1 {
		t.Errorf("UseProgram calls = %d, want 1", got)
	}
	if sys.Shader() != second {
		t.Error("bound shader was not updated")
	}
}

func TestContextChangeRecompiles(t *testing.T) {
	dev := newMockDevice()
	sys := newTestSystem(t, dev, WithContextID(1))
	p := NewProgram("p", testSource("p"))
	sh := NewShader(p, nil)

	old := mustBind(t, sys, sh)

	// Repeating the current identity is a no-op.
	sys.ContextChange(dev, 1)
	if sys.CompiledProgram() != old {
		t.Fatal("ContextChange with the same identity reset bound state")
	}

	sys.ContextChange(dev, 2)
	if sys.CompiledProgram() != nil {
		t.Fatal("ContextChange did not reset bound state")
	}

	fresh := mustBind(t, sys, sh)
	if fresh == old {
		t.Fatal("compiled program reused across context identities")
	}
	if fresh.Handle() == old.Handle() {
		t.Errorf("handle %d reused after context change", fresh.Handle())
	}
	if fresh.Context() != 2 {
		t.Errorf("Context() = %d, want 2", fresh.Context())
	}
	if got := dev.count("compile"); got != 2 {
		t.Errorf("compiles = %d, want 2", got)
	}
	if got := dev.count("use"); got != 2 {
		t.Errorf("UseProgram calls = %d, want 2", got)
	}
	if cp, ok := p.Compiled(1); !ok || cp != old {
		t.Error("entry for the old identity was dropped")
	}
}

func TestStaticGroupSyncsOnce(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uTransform", Type: TypeMat3})
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(true)
	g.SetAff3("uTransform", f32.Aff3{2, 0, 10, 0, 2, 20})
	sh := NewShader(NewProgram("static", testSource("static")), g)

	mustBind(t, sys, sh)
	if err := sys.SyncUniformGroup(g); err != nil {
		t.Fatalf("SyncUniformGroup: %v", err)
	}
	if got := dev.count("mat3"); got != 1 {
		t.Fatalf("matrix uploads = %d, want 1", got)
	}
	if st := sys.Stats(); st.SkippedSyncs != 1 {
		t.Errorf("SkippedSyncs = %d, want 1", st.SkippedSyncs)
	}

	g.SetAff3("uTransform", f32.Aff3{1, 0, 0, 0, 1, 0})
	if err := sys.SyncUniformGroup(g); err != nil {
		t.Fatalf("SyncUniformGroup: %v", err)
	}
	if got := dev.count("mat3"); got != 2 {
		t.Errorf("matrix uploads after mutation = %d, want 2", got)
	}
}

func TestDynamicGroupSyncsEveryTime(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uTransform", Type: TypeMat3})
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(false)
	g.SetMat3("uTransform", f32.Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1})
	sh := NewShader(NewProgram("dynamic", testSource("dynamic")), g)

	mustBind(t, sys, sh)
	for k := 0; k < 3; k++ {
		if err := sys.SyncUniformGroup(g); err != nil {
			t.Fatal(err)
		}
	}
	if got := dev.count("mat3"); got != 4 {
		t.Errorf("matrix uploads = %d, want 4", got)
	}
}

func TestMatrixThenSamplerRoutine(t *testing.T) {
	dev := newMockDevice(
		UniformInfo{Name: "uMatrix", Type: TypeMat4},
		UniformInfo{Name: "uSampler", Type: TypeSampler2D},
	)
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(false)
	g.SetMat4("uMatrix", f32.Mat4{1, 0, 0, 5, 0, 1, 0, 6, 0, 0, 1, 7, 0, 0, 0, 1})
	g.SetTexture("uSampler", mockTexture(42))
	sh := NewShader(NewProgram("sprite", testSource("sprite")), g)

	mustBind(t, sys, sh)

	want := []string{"use", "mat4", "texture"}
	if got := dev.ops(); !slices.Equal(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	m, _ := dev.last("mat4")
	// Translation lands in the last column.
	if m.f[12] != 5 || m.f[13] != 6 || m.f[14] != 7 {
		t.Errorf("matrix not column-major: %v", m.f)
	}
	tex, _ := dev.last("texture")
	if tex.unit != 0 || tex.tex != 42 {
		t.Errorf("texture call = %+v, want texture 42 on unit 0", tex)
	}
}

func TestSamplerUnitUploadedOnChange(t *testing.T) {
	dev := newMockDevice(
		UniformInfo{Name: "uFirst", Type: TypeSampler2D},
		UniformInfo{Name: "uSecond", Type: TypeSampler2D},
	)
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(false)
	g.SetTexture("uFirst", mockTexture(1))
	g.SetTexture("uSecond", mockTexture(2))
	sh := NewShader(NewProgram("two", testSource("two")), g)

	mustBind(t, sys, sh)
	if got := dev.count("texture"); got != 2 {
		t.Fatalf("texture binds = %d, want 2", got)
	}
	c, ok := dev.last("1i")
	if !ok || c.loc != 1 || c.i[0] != 1 {
		t.Fatalf("unit upload = %+v, want unit 1 at location 1", c)
	}

	// Same units on the next bind: textures rebound, units not re-uploaded.
	dev.clearCalls()
	mustBind(t, sys, sh)
	if got := dev.count("1i"); got != 0 {
		t.Errorf("unit uploads on rebind = %d, want 0", got)
	}
	if got := dev.count("texture"); got != 2 {
		t.Errorf("texture binds on rebind = %d, want 2", got)
	}
}

func TestCachedScalarSkipsUnchanged(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uAlpha", Type: TypeFloat})
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(false)
	g.SetFloat("uAlpha", 0.5)
	sh := NewShader(NewProgram("alpha", testSource("alpha")), g)

	mustBind(t, sys, sh)
	mustBind(t, sys, sh)
	if got := dev.count("1f"); got != 1 {
		t.Fatalf("float uploads = %d, want 1", got)
	}
	g.SetFloat("uAlpha", 0.25)
	mustBind(t, sys, sh)
	if got := dev.count("1f"); got != 2 {
		t.Errorf("float uploads after change = %d, want 2", got)
	}
}

func TestOptimizedOutUniformSkipped(t *testing.T) {
	dev := newMockDevice(
		UniformInfo{Name: "uUsed", Type: TypeVec4},
		UniformInfo{Name: "uUnused", Type: TypeVec4},
	)
	delete(dev.locations, "uUnused")
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(false)
	g.SetVec4("uUsed", f32.Vec4{1, 2, 3, 4})
	g.SetVec4("uUnused", f32.Vec4{1, 2, 3, 4})
	sh := NewShader(NewProgram("opt", testSource("opt")), g)

	cp := mustBind(t, sys, sh)
	if got := dev.count("4f"); got != 1 {
		t.Errorf("vec4 uploads = %d, want 1", got)
	}
	ud, ok := cp.Uniform("uUnused")
	if !ok || ud.Location != NoLocation {
		t.Errorf("uUnused = %+v, want NoLocation entry", ud)
	}
}

func TestSetUniformsIgnoresUnknownNames(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uAlpha", Type: TypeFloat})
	sys := newTestSystem(t, dev)
	sh := NewShader(NewProgram("p", testSource("p")), nil)
	mustBind(t, sys, sh)
	dev.clearCalls()

	err := sys.SetUniforms(map[string]any{
		"uAlpha":   0.5,
		"uMissing": f32.Vec4{1, 1, 1, 1},
	})
	if err != nil {
		t.Fatalf("SetUniforms: %v", err)
	}
	want := []string{"1f"}
	if got := dev.ops(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if c, _ := dev.last("1f"); c.f[0] != 0.5 {
		t.Errorf("uploaded %v, want 0.5", c.f)
	}
}

func TestSetUniformsUnsupportedValue(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uAlpha", Type: TypeFloat})
	sys := newTestSystem(t, dev)
	mustBind(t, sys, NewShader(NewProgram("p", testSource("p")), nil))

	err := sys.SetUniforms(map[string]any{"uAlpha": "half"})
	if !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("error = %v, want ErrUnsupportedValue", err)
	}
}

func TestOperationsWithoutBoundShader(t *testing.T) {
	sys := newTestSystem(t, newMockDevice())
	g := NewUniformGroup(false)

	if err := sys.SetUniforms(map[string]any{"uAlpha": 1}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetUniforms error = %v, want ErrInvalidState", err)
	}
	if err := sys.SyncUniformGroup(g); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SyncUniformGroup error = %v, want ErrInvalidState", err)
	}
	if err := sys.SyncUniforms(g, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SyncUniforms error = %v, want ErrInvalidState", err)
	}
}

func TestBindCompileError(t *testing.T) {
	dev := newMockDevice()
	dev.failLog = "ERROR: 0:3: 'vec5' : syntax error"
	sys := newTestSystem(t, dev)
	sh := NewShader(NewProgram("broken", testSource("broken")), nil)

	_, err := sys.Bind(sh, false)
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("Bind error = %v, want ErrCompile", err)
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Bind error %T is not *CompileError", err)
	}
	if ce.Program != "broken" || ce.Log != dev.failLog {
		t.Errorf("CompileError = %+v", ce)
	}
	if sys.Shader() != nil || dev.count("use") != 0 {
		t.Error("failed bind changed bound state")
	}
}

func TestGlobalsInjected(t *testing.T) {
	dev := newMockDevice(
		UniformInfo{Name: "uProjection", Type: TypeMat3},
		UniformInfo{Name: "uTint", Type: TypeVec4},
	)
	globals := NewUniformGroup(false)
	globals.SetAff3("uProjection", f32.Aff3{1, 0, 0, 0, 1, 0})
	sys := newTestSystem(t, dev, WithGlobalUniforms(globals))

	g := NewUniformGroup(false)
	g.SetVec4("uTint", f32.Vec4{1, 1, 1, 1})
	sh := NewShader(NewProgram("g", testSource("g")), g)

	mustBind(t, sys, sh)
	if nested, ok := g.Group(GlobalsName); !ok || nested != globals {
		t.Fatal("globals not injected")
	}
	if got := dev.count("mat3"); got != 1 {
		t.Errorf("projection uploads = %d, want 1", got)
	}

	shape := g.shape
	mustBind(t, sys, sh)
	if g.shape != shape {
		t.Error("re-injecting the same globals changed the group shape")
	}
}

func TestNestedGroupTracksOwnDirtyID(t *testing.T) {
	dev := newMockDevice(
		UniformInfo{Name: "uColor", Type: TypeVec4},
		UniformInfo{Name: "uTransform", Type: TypeMat3},
	)
	sys := newTestSystem(t, dev)
	inner := NewUniformGroup(true)
	inner.SetMat3("uTransform", f32.Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1})
	outer := NewUniformGroup(false)
	outer.SetVec4("uColor", f32.Vec4{1, 0, 0, 1})
	outer.SetGroup("local", inner)
	sh := NewShader(NewProgram("nested", testSource("nested")), outer)

	mustBind(t, sys, sh)
	mustBind(t, sys, sh)
	if got := dev.count("mat3"); got != 1 {
		t.Errorf("static nested uploads = %d, want 1", got)
	}
	inner.Update()
	mustBind(t, sys, sh)
	if got := dev.count("mat3"); got != 2 {
		t.Errorf("uploads after Update = %d, want 2", got)
	}
}

func TestStructGroupFlattened(t *testing.T) {
	dev := newMockDevice(
		UniformInfo{Name: "uLight.color", Type: TypeVec3},
		UniformInfo{Name: "uLight.radius", Type: TypeFloat},
	)
	sys := newTestSystem(t, dev)
	light := NewUniformGroup(false)
	light.SetVec3("color", f32.Vec3{1, 0.5, 0})
	light.SetFloat("radius", 4)
	g := NewUniformGroup(false)
	g.SetGroup("uLight", light)
	sh := NewShader(NewProgram("light", testSource("light")), g)

	cp := mustBind(t, sys, sh)

	r := sys.cache.GetOrCreate(g, cp.uniforms)
	if got, want := r.Uniforms(), []string{"uLight.color", "uLight.radius"}; !slices.Equal(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
	if got := dev.ops(); !slices.Equal(got, []string{"use", "3f", "1f"}) {
		t.Errorf("calls = %v", got)
	}

	// Adding a field to the nested group regenerates the bound routine.
	light.SetFloat("falloff", 1)
	if err := sys.SyncUniformGroup(g); err != nil {
		t.Fatal(err)
	}
	if b := cp.bound[g.id]; b.routine.Len() != 2 {
		t.Errorf("routine has %d steps, want 2 (falloff is not a program uniform)", b.routine.Len())
	}
}

func TestSyncCacheSharedAcrossPrograms(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uAlpha", Type: TypeFloat})
	reg := NewRegistry()
	sys, err := reg.NewSystem(dev)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b", "c"} {
		g := NewUniformGroup(false)
		g.SetFloat("uAlpha", 1)
		mustBind(t, sys, NewShader(NewProgram(name, testSource(name)), g))
	}
	st := reg.SyncCache().Stats()
	if st.Routines != 1 || st.Misses != 1 || st.Hits != 2 {
		t.Errorf("cache stats = %+v, want 1 routine, 1 miss, 2 hits", st)
	}
}

func TestDestroyProgram(t *testing.T) {
	dev := newMockDevice()
	sys := newTestSystem(t, dev)
	p := NewProgram("p", testSource("p"))
	sh := NewShader(p, nil)
	cp := mustBind(t, sys, sh)

	sys.DestroyProgram(p)
	if !slices.Equal(dev.deleted, []ProgramHandle{cp.Handle()}) {
		t.Errorf("deleted = %v, want [%d]", dev.deleted, cp.Handle())
	}
	if _, ok := p.Compiled(sys.Context()); ok {
		t.Error("compiled entry survived DestroyProgram")
	}
	if sys.CompiledProgram() != nil {
		t.Error("destroyed program still bound")
	}
	mustBind(t, sys, sh)
	if got := dev.count("compile"); got != 2 {
		t.Errorf("compiles = %d, want 2", got)
	}
}

func TestDisposeShader(t *testing.T) {
	sys := newTestSystem(t, newMockDevice())
	a := NewShader(NewProgram("a", testSource("a")), nil)
	b := NewShader(NewProgram("b", testSource("b")), nil)
	mustBind(t, sys, a)

	sys.DisposeShader(b)
	if sys.Shader() != a {
		t.Fatal("disposing an unbound shader cleared bound state")
	}
	sys.DisposeShader(a)
	if sys.Shader() != nil || sys.CompiledProgram() != nil {
		t.Error("disposing the bound shader kept bound state")
	}
}

func TestDestroy(t *testing.T) {
	sys := newTestSystem(t, newMockDevice())
	sh := NewShader(NewProgram("p", testSource("p")), nil)
	mustBind(t, sys, sh)

	sys.Destroy()
	sys.Destroy()
	if _, err := sys.Bind(sh, false); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Bind after Destroy error = %v, want ErrDestroyed", err)
	}
	if err := sys.SyncUniformGroup(sh.Uniforms()); !errors.Is(err, ErrDestroyed) {
		t.Errorf("SyncUniformGroup after Destroy error = %v, want ErrDestroyed", err)
	}
}

func TestBindSkipSync(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uAlpha", Type: TypeFloat})
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(false)
	g.SetFloat("uAlpha", 1)
	sh := NewShader(NewProgram("p", testSource("p")), g)

	if _, err := sys.Bind(sh, true); err != nil {
		t.Fatal(err)
	}
	if got := dev.count("1f"); got != 0 {
		t.Errorf("uploads with skipSync = %d, want 0", got)
	}
}

func TestUniformBufferGroup(t *testing.T) {
	dev := newMockBufferDevice(
		UniformInfo{Name: "uGlobals.uProjection", Type: TypeMat3, Block: "uGlobals", Offset: 0},
		UniformInfo{Name: "uGlobals.uAlpha", Type: TypeFloat, Block: "uGlobals", Offset: 48},
	)
	sys := newTestSystem(t, dev)
	ubo := NewUniformBufferGroup(false)
	ubo.SetAff3("uProjection", f32.Aff3{1, 0, 3, 0, 1, 4})
	ubo.SetFloat("uAlpha", 0.5)
	g := NewUniformGroup(false)
	g.SetGroup("uGlobals", ubo)
	sh := NewShader(NewProgram("ubo", testSource("ubo")), g)

	mustBind(t, sys, sh)

	if len(dev.writes) != 1 {
		t.Fatalf("buffer writes = %d, want 1", len(dev.writes))
	}
	data := dev.writes[0]
	if len(data) != 64 {
		t.Fatalf("block size = %d, want 64", len(data))
	}
	word := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	}
	// Third column of the mat3 starts at byte 32: translation then 1.
	if word(32) != 3 || word(36) != 4 || word(40) != 1 {
		t.Errorf("translation column = %v %v %v", word(32), word(36), word(40))
	}
	if word(48) != 0.5 {
		t.Errorf("uAlpha = %v, want 0.5", word(48))
	}
	if !slices.Equal(dev.blockBindings, []string{"uGlobals=0"}) {
		t.Errorf("block bindings = %v", dev.blockBindings)
	}
	if dev.bound[0] != ubo.Buffer() {
		t.Error("buffer not bound to binding 0")
	}

	// Unchanged contents are not rewritten; the block binding is cached.
	mustBind(t, sys, sh)
	if len(dev.writes) != 1 {
		t.Errorf("buffer writes after unchanged bind = %d, want 1", len(dev.writes))
	}
	if len(dev.blockBindings) != 1 {
		t.Errorf("block binding calls = %d, want 1", len(dev.blockBindings))
	}
	if dev.bufferBinds != 2 {
		t.Errorf("buffer binds = %d, want 2", dev.bufferBinds)
	}

	ubo.SetFloat("uAlpha", 1)
	mustBind(t, sys, sh)
	if len(dev.writes) != 2 {
		t.Errorf("buffer writes after change = %d, want 2", len(dev.writes))
	}
	if st := sys.Stats(); st.BufferUploads != 2 || st.Cache.Layouts != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestUniformBufferGroupReuploadedAfterContextChange(t *testing.T) {
	dev := newMockBufferDevice(
		UniformInfo{Name: "uGlobals.uAlpha", Type: TypeFloat, Block: "uGlobals"},
	)
	sys := newTestSystem(t, dev)
	ubo := NewUniformBufferGroup(true)
	ubo.SetFloat("uAlpha", 0.5)
	g := NewUniformGroup(false)
	g.SetGroup("uGlobals", ubo)
	sh := NewShader(NewProgram("ubo", testSource("ubo")), g)

	mustBind(t, sys, sh)
	sys.ContextChange(dev, sys.Context()+1)
	mustBind(t, sys, sh)

	if len(dev.writes) != 2 {
		t.Errorf("buffer writes across a context change = %d, want 2", len(dev.writes))
	}
	if !slices.Equal(dev.blockBindings, []string{"uGlobals=0", "uGlobals=0"}) {
		t.Errorf("block bindings = %v", dev.blockBindings)
	}
}

func TestUniformBufferGroupUnsupported(t *testing.T) {
	dev := newMockDevice()
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(false)
	g.SetGroup("uGlobals", NewUniformBufferGroup(false))
	sh := NewShader(NewProgram("p", testSource("p")), g)

	_, err := sys.Bind(sh, false)
	if !errors.Is(err, ErrUniformBuffersUnsupported) {
		t.Errorf("Bind error = %v, want ErrUniformBuffersUnsupported", err)
	}
}

func TestRegistryIdentities(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.NewSystem(newMockDevice())
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.NewSystem(newMockDevice())
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() == b.ID() || a.ID() == 0 {
		t.Errorf("system ids = %d, %d", a.ID(), b.ID())
	}
	if a.Context() == b.Context() {
		t.Errorf("systems share context identity %d", a.Context())
	}
	if a.cache != b.cache || a.cache != reg.SyncCache() {
		t.Error("registry systems do not share the routine cache")
	}
	if next := reg.NextContextID(); next == a.Context() || next == b.Context() {
		t.Errorf("NextContextID reissued %d", next)
	}

	// A registry-owned cache survives one system's Destroy.
	g := NewUniformGroup(false)
	g.SetFloat("uAlpha", 1)
	reg.SyncCache().GetOrCreate(g, nil)
	a.Destroy()
	if reg.SyncCache().Len() != 1 {
		t.Error("Destroy cleared the shared cache")
	}
}

func TestProgramIntrospection(t *testing.T) {
	dev := newMockDevice(
		UniformInfo{Name: "uColors[0]", Type: TypeVec4, Size: 4},
		UniformInfo{Name: "gl_DepthRange.near", Type: TypeFloat},
		UniformInfo{Name: "uTransform", Type: TypeMat3},
	)
	dev.attributes = []AttributeInfo{{Name: "aPosition", Type: TypeVec2, Location: 3}}
	sys := newTestSystem(t, dev)
	p := NewProgram("intro", testSource("intro"))

	cp := mustBind(t, sys, NewShader(p, nil))

	if got, want := p.UniformNames(), []string{"uColors", "uTransform"}; !slices.Equal(got, want) {
		t.Errorf("UniformNames = %v, want %v", got, want)
	}
	colors, _ := cp.Uniform("uColors")
	if !colors.IsArray || colors.Size != 4 || len(colors.Floats()) != 16 {
		t.Errorf("uColors = %+v", colors)
	}
	xf, _ := cp.Uniform("uTransform")
	if !slices.Equal(xf.Floats(), []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}) {
		t.Errorf("default mat3 = %v, want identity", xf.Floats())
	}

	// The second compile pins the locations the device chose first.
	sys.ContextChange(dev, 7)
	mustBind(t, sys, NewShader(p, nil))
	if got := dev.linked[1]["aPosition"]; got != 3 {
		t.Errorf("aPosition pinned to %d, want 3", got)
	}
}

func TestDeclaredAttributesSorted(t *testing.T) {
	dev := newMockDevice()
	sys := newTestSystem(t, dev)
	p := NewProgram("attrs", testSource("attrs"), WithAttributes(
		AttributeInfo{Name: "aUV", Type: TypeVec2},
		AttributeInfo{Name: "aColor", Type: TypeVec4},
		AttributeInfo{Name: "aPosition", Type: TypeVec2},
	))
	mustBind(t, sys, NewShader(p, nil))

	want := map[string]uint32{"aColor": 0, "aPosition": 1, "aUV": 2}
	got := dev.linked[0]
	for name, loc := range want {
		if got[name] != loc {
			t.Errorf("%s at %d, want %d", name, got[name], loc)
		}
	}
}

func TestUniformArrayUploadsWholeBuffer(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uWeights[0]", Type: TypeFloat, Size: 3})
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(false)
	if err := g.Set("uWeights", []float32{0.25, 0.5, 0.25}); err != nil {
		t.Fatal(err)
	}
	sh := NewShader(NewProgram("blur", testSource("blur")), g)

	mustBind(t, sys, sh)
	mustBind(t, sys, sh)
	if got := dev.count("1f"); got != 2 {
		t.Fatalf("array uploads = %d, want 2", got)
	}
	c, _ := dev.last("1f")
	if !slices.Equal(c.f, []float32{0.25, 0.5, 0.25}) {
		t.Errorf("uploaded %v", c.f)
	}
}

func TestTextureUnitsRestartEachSync(t *testing.T) {
	dev := newMockBufferDevice(
		UniformInfo{Name: "uSampler", Type: TypeSampler2D},
		UniformInfo{Name: "Block.x", Type: TypeFloat, Block: "Block"},
	)
	sys := newTestSystem(t, dev)
	g := NewUniformGroup(false)
	g.SetTexture("uSampler", mockTexture(7))
	sh := NewShader(NewProgram("p", testSource("p")), g)
	if _, err := sys.Bind(sh, true); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if err := sys.SyncUniformGroup(g); err != nil {
			t.Fatal(err)
		}
	}
	for range 2 {
		if err := sys.SetUniforms(map[string]any{"uSampler": mockTexture(8)}); err != nil {
			t.Fatal(err)
		}
	}
	var units []int
	for _, c := range dev.calls {
		if c.op == "texture" {
			units = append(units, c.unit)
		}
	}
	if want := []int{0, 0, 0, 0, 0}; !slices.Equal(units, want) {
		t.Errorf("texture units = %v, want %v", units, want)
	}

	ubo := NewUniformBufferGroup(false)
	ubo.SetFloat("x", 1)
	for range 3 {
		if err := sys.SyncUniformBufferGroup(ubo, "Block"); err != nil {
			t.Fatal(err)
		}
	}
	if !slices.Equal(dev.blockBindings, []string{"Block=0"}) {
		t.Errorf("block bindings = %v, want [Block=0]", dev.blockBindings)
	}
	if len(dev.bound) != 1 || dev.bound[0] != ubo.Buffer() {
		t.Errorf("bound buffers = %v, want the block buffer on binding 0", dev.bound)
	}
}

func TestNestedGroupContinuesTextureUnits(t *testing.T) {
	dev := newMockDevice(
		UniformInfo{Name: "uFirst", Type: TypeSampler2D},
		UniformInfo{Name: "uSecond", Type: TypeSampler2D},
	)
	sys := newTestSystem(t, dev)
	local := NewUniformGroup(false)
	local.SetTexture("uSecond", mockTexture(2))
	g := NewUniformGroup(false)
	g.SetTexture("uFirst", mockTexture(1))
	g.SetGroup("local", local)
	sh := NewShader(NewProgram("p", testSource("p")), g)

	for range 2 {
		dev.clearCalls()
		mustBind(t, sys, sh)
		var units []int
		for _, c := range dev.calls {
			if c.op == "texture" {
				units = append(units, c.unit)
			}
		}
		if !slices.Equal(units, []int{0, 1}) {
			t.Errorf("texture units = %v, want [0 1]", units)
		}
	}
}

func TestGroupsWithDashedNamesGetOwnRoutines(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "a", Type: TypeFloat})
	sys := newTestSystem(t, dev)
	dashed := NewUniformGroup(false)
	dashed.SetFloat("a-float", 1)
	plain := NewUniformGroup(false)
	plain.SetFloat("a", 2)
	mustBind(t, sys, NewShader(NewProgram("p", testSource("p")), dashed))

	if err := sys.SyncUniformGroup(plain); err != nil {
		t.Fatal(err)
	}
	c, ok := dev.last("1f")
	if !ok || c.f[0] != 2 {
		t.Errorf("upload = %+v, want a = 2", c)
	}
	if st := sys.Stats().Cache; st.Routines != 2 {
		t.Errorf("routines = %d, want 2", st.Routines)
	}
}

func TestDestroyProgramKeepsOtherContexts(t *testing.T) {
	reg := NewRegistry()
	devA, devB := newMockDevice(), newMockDevice()
	a, err := reg.NewSystem(devA)
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.NewSystem(devB)
	if err != nil {
		t.Fatal(err)
	}
	p := NewProgram("shared", testSource("shared"))
	mustBind(t, a, NewShader(p, nil))
	cpB := mustBind(t, b, NewShader(p, nil))

	a.DestroyProgram(p)
	if _, ok := p.Compiled(a.Context()); ok {
		t.Error("destroying system kept its compiled program")
	}
	if cp, ok := p.Compiled(b.Context()); !ok || cp != cpB {
		t.Fatal("DestroyProgram dropped another context's program")
	}
	if got := mustBind(t, b, NewShader(p, nil)); got != cpB {
		t.Error("rebind under the other context recompiled")
	}
	if devB.count("compile") != 1 || len(devB.deleted) != 0 {
		t.Errorf("other device: compiles = %d, deleted = %v", devB.count("compile"), devB.deleted)
	}
}

func TestBindSwitchesAfterProgramRecompiled(t *testing.T) {
	// Two systems driving one context share compiled programs.
	dev := newMockDevice(UniformInfo{Name: "uAlpha", Type: TypeFloat})
	a := newTestSystem(t, dev, WithContextID(1))
	b := newTestSystem(t, dev, WithContextID(1))
	p := NewProgram("shared", testSource("shared"))
	sh := NewShader(p, nil)
	mustBind(t, a, sh)
	old := mustBind(t, b, sh)

	a.DestroyProgram(p)
	fresh := mustBind(t, b, sh)
	if fresh == old || fresh.Handle() == old.Handle() {
		t.Fatal("program was not recompiled")
	}
	if b.CompiledProgram() != fresh {
		t.Error("bound compiled program still points at the destroyed one")
	}
	c, ok := dev.last("use")
	if !ok || ProgramHandle(c.unit) != fresh.Handle() {
		t.Errorf("last UseProgram = %+v, want handle %d", c, fresh.Handle())
	}
}

func TestProgramDoesNotRetainSyncedGroups(t *testing.T) {
	dev := newMockDevice(
		UniformInfo{Name: "uLight.color", Type: TypeVec3},
		UniformInfo{Name: "uAlpha", Type: TypeFloat},
	)
	sys := newTestSystem(t, dev)
	mustBind(t, sys, NewShader(NewProgram("p", testSource("p")), nil))

	group, light := syncShortLived(t, sys)
	runtime.GC()
	runtime.GC()
	if group.Value() != nil || light.Value() != nil {
		t.Error("synced groups are still reachable after their owner dropped them")
	}
}

func syncShortLived(t *testing.T, sys *System) (weak.Pointer[UniformGroup], weak.Pointer[UniformGroup]) {
	t.Helper()
	light := NewUniformGroup(false)
	light.SetVec3("color", f32.Vec3{1, 1, 1})
	g := NewUniformGroup(false)
	g.SetFloat("uAlpha", 1)
	g.SetGroup("uLight", light)
	if err := sys.SyncUniformGroup(g); err != nil {
		t.Fatal(err)
	}
	// A second sync goes through the bound routine.
	g.SetFloat("uAlpha", 0.5)
	if err := sys.SyncUniformGroup(g); err != nil {
		t.Fatal(err)
	}
	return weak.Make(g), weak.Make(light)
}

func TestBoundRoutineRebindsReplacedNestedGroup(t *testing.T) {
	dev := newMockDevice(UniformInfo{Name: "uLight.radius", Type: TypeFloat})
	sys := newTestSystem(t, dev)
	first := NewUniformGroup(false)
	first.SetFloat("radius", 1)
	g := NewUniformGroup(false)
	g.SetGroup("uLight", first)
	cp := mustBind(t, sys, NewShader(NewProgram("p", testSource("p")), g))
	bound := cp.bound[g.id]

	second := NewUniformGroup(false)
	second.SetFloat("radius", 3)
	g.SetGroup("uLight", second)
	if err := sys.SyncUniformGroup(g); err != nil {
		t.Fatal(err)
	}
	if cp.bound[g.id] == bound {
		t.Error("bound routine kept after the nested group was replaced")
	}
	if c, ok := dev.last("1f"); !ok || c.f[0] != 3 {
		t.Errorf("upload = %+v, want radius 3", c)
	}
}

func BenchmarkSyncUniformGroup(b *testing.B) {
	dev := newMockDevice(
		UniformInfo{Name: "uTransform", Type: TypeMat3},
		UniformInfo{Name: "uTint", Type: TypeVec4},
		UniformInfo{Name: "uSampler", Type: TypeSampler2D},
	)
	sys, _ := NewSystem(dev)
	g := NewUniformGroup(false)
	g.SetAff3("uTransform", f32.Aff3{1, 0, 0, 0, 1, 0})
	g.SetVec4("uTint", f32.Vec4{1, 1, 1, 1})
	g.SetTexture("uSampler", mockTexture(1))
	sh := NewShader(NewProgram("bench", testSource("bench")), g)
	if _, err := sys.Bind(sh, false); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dev.calls = dev.calls[:0]
		_ = sys.SyncUniformGroup(g)
	}
}
