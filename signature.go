// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"strconv"
	"strings"
)

// Signature derives the cache key of the sync routine for g against a
// program's uniform table. It depends only on member names, the
// introspected types the program reports for them and how nested groups
// are synchronized, never on values: two groups with the same shape always
// share a routine.
//
// Members are visited in declaration order. Each contributes its
// length-prefixed name, then its type (with array length) when the program
// declares it. Nested groups
// contribute "ubo" for uniform buffer groups, "struct{...}" with the nested
// shape when the program has "name.field" uniforms, and "group" otherwise.
func Signature(g *UniformGroup, uniforms map[string]*UniformData) string {
	var b strings.Builder
	b.WriteByte('u')
	writeSignature(&b, g, "", uniforms)
	return b.String()
}

func writeSignature(b *strings.Builder, g *UniformGroup, prefix string, uniforms map[string]*UniformData) {
	for i, name := range g.names {
		full := prefix + name
		b.WriteByte('-')
		writeName(b, name)

		if uv := &g.values[i]; uv.kind == valueGroup {
			switch {
			case uv.group.ubo:
				b.WriteString("-ubo")
			case hasStructFields(uniforms, full):
				b.WriteString("-struct{")
				writeSignature(b, uv.group, full+".", uniforms)
				b.WriteByte('}')
			default:
				b.WriteString("-group")
			}
			continue
		}

		ud, ok := uniforms[full]
		if !ok {
			continue
		}
		writeType(b, ud)
	}
}

// writeName writes name with its byte length so member names cannot run
// into the type tags that follow them.
func writeName(b *strings.Builder, name string) {
	b.WriteString(strconv.Itoa(len(name)))
	b.WriteByte(':')
	b.WriteString(name)
}

// writeType writes the introspected type, with the element count for
// anything uploaded as an array.
func writeType(b *strings.Builder, ud *UniformData) {
	b.WriteByte('-')
	b.WriteString(ud.Type.String())
	if ud.IsArray || ud.Size > 1 {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(ud.Size))
		b.WriteByte(']')
	}
}

// hasStructFields reports whether the program has uniforms below name,
// either struct fields or block members.
func hasStructFields(uniforms map[string]*UniformData, name string) bool {
	prefix := name + "."
	for k := range uniforms {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
