// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/ggshader"
)

var (
	lineComment  = regexp.MustCompile(`//[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

	structDecl  = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}\s*;`)
	blockDecl   = regexp.MustCompile(`(?:layout\s*\([^)]*\)\s*)?uniform\s+(\w+)\s*\{([^}]*)\}\s*(\w+)?\s*;`)
	uniformDecl = regexp.MustCompile(`(?m)^\s*uniform\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+([^;{]+);`)
	inputDecl   = regexp.MustCompile(`(?m)^\s*(?:layout\s*\(\s*location\s*=\s*(\d+)\s*\)\s*)?(?:in|attribute)\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+(\w+)\s*;`)
	memberDecl  = regexp.MustCompile(`(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+([^;]+);`)
	declarator  = regexp.MustCompile(`^(\w+)\s*(?:\[\s*(\d+)\s*\])?$`)
	mainDecl    = regexp.MustCompile(`\bvoid\s+main\s*\(`)
)

// stripComments removes // and /* */ comments.
func stripComments(src string) string {
	return lineComment.ReplaceAllString(blockComment.ReplaceAllString(src, ""), "")
}

type glslField struct {
	typ  string
	name string
	size int
}

// parseFields parses a declaration list such as "vec3 color; float a, b[2];".
func parseFields(body string) ([]glslField, error) {
	var out []glslField
	for _, m := range memberDecl.FindAllStringSubmatch(body, -1) {
		for _, d := range strings.Split(m[2], ",") {
			dm := declarator.FindStringSubmatch(strings.TrimSpace(d))
			if dm == nil {
				return nil, fmt.Errorf("malformed declarator %q", strings.TrimSpace(d))
			}
			size := 1
			if dm[2] != "" {
				size, _ = strconv.Atoi(dm[2])
			}
			out = append(out, glslField{typ: m[1], name: dm[1], size: size})
		}
	}
	return out, nil
}

// glslInterface is what a linker would report for a GLSL program.
type glslInterface struct {
	uniforms   []ggshader.UniformInfo
	attributes []ggshader.AttributeInfo
	blocks     map[string]int
}

// reflectGLSL collects uniforms from both stages and inputs from the vertex
// stage. Uniforms declared in both stages are reported once.
func reflectGLSL(vertex, fragment string) (*glslInterface, error) {
	out := &glslInterface{blocks: make(map[string]int)}
	seen := make(map[string]bool)
	for stage, src := range []string{vertex, fragment} {
		src = stripComments(src)
		if !mainDecl.MatchString(src) {
			return nil, fmt.Errorf("%s shader: missing main()", stageName(stage))
		}
		structs := make(map[string][]glslField)
		for _, m := range structDecl.FindAllStringSubmatch(src, -1) {
			fields, err := parseFields(m[2])
			if err != nil {
				return nil, fmt.Errorf("%s shader: struct %s: %w", stageName(stage), m[1], err)
			}
			structs[m[1]] = fields
		}
		if err := out.addBlocks(src, seen); err != nil {
			return nil, fmt.Errorf("%s shader: %w", stageName(stage), err)
		}
		src = blockDecl.ReplaceAllString(src, "")
		for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
			fields, err := parseFields(m[1] + " " + m[2] + ";")
			if err != nil {
				return nil, fmt.Errorf("%s shader: %w", stageName(stage), err)
			}
			for _, f := range fields {
				out.addUniform(f, "", structs, seen)
			}
		}
		if stage == 0 {
			out.attributes = parseInputs(src)
		}
	}
	return out, nil
}

func (gi *glslInterface) addBlocks(src string, seen map[string]bool) error {
	for _, m := range blockDecl.FindAllStringSubmatch(src, -1) {
		block := m[1]
		if _, ok := gi.blocks[block]; ok {
			continue
		}
		fields, err := parseFields(m[2])
		if err != nil {
			return fmt.Errorf("uniform block %s: %w", block, err)
		}
		members := make([]ggshader.UniformInfo, 0, len(fields))
		for _, f := range fields {
			typ := ggshader.ParseUniformType(f.typ)
			if typ == ggshader.TypeUnknown {
				return fmt.Errorf("uniform block %s: unsupported member type %q", block, f.typ)
			}
			members = append(members, ggshader.UniformInfo{
				Name:    block + "." + f.name,
				Type:    typ,
				Size:    f.size,
				IsArray: f.size > 1,
				Block:   block,
			})
		}
		offsets, size := ggshader.LayoutStd140(members)
		for k := range members {
			members[k].Offset = offsets[k]
			seen[members[k].Name] = true
		}
		gi.blocks[block] = size
		gi.uniforms = append(gi.uniforms, members...)
	}
	return nil
}

func (gi *glslInterface) addUniform(f glslField, prefix string, structs map[string][]glslField, seen map[string]bool) {
	name := prefix + f.name
	if fields, ok := structs[f.typ]; ok {
		for _, sf := range fields {
			gi.addUniform(sf, name+".", structs, seen)
		}
		return
	}
	if seen[name] {
		return
	}
	seen[name] = true
	info := ggshader.UniformInfo{Name: name, Type: ggshader.ParseUniformType(f.typ), Size: f.size}
	if f.size > 1 {
		// Drivers report arrays by their first element.
		info.Name += "[0]"
	}
	gi.uniforms = append(gi.uniforms, info)
}

func parseInputs(src string) []ggshader.AttributeInfo {
	var out []ggshader.AttributeInfo
	for _, m := range inputDecl.FindAllStringSubmatch(src, -1) {
		loc := -1
		if m[1] != "" {
			loc, _ = strconv.Atoi(m[1])
		}
		out = append(out, ggshader.AttributeInfo{
			Name:     m[3],
			Type:     ggshader.ParseUniformType(m[2]),
			Size:     1,
			Location: loc,
		})
	}
	return out
}

func stageName(stage int) string {
	if stage == 0 {
		return "vertex"
	}
	return "fragment"
}
