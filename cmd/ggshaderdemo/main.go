// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command ggshaderdemo drives a ggshader System through a frame loop on the
// headless backend and prints the device work it issued. Use -lose to
// simulate context losses and watch programs and static groups restore.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/ggshader"
	"github.com/gogpu/ggshader/backend/headless"
	"golang.org/x/image/math/f32"
)

const spriteVert = `#version 330 core
layout(location = 0) in vec2 aPosition;
uniform mat3 uProjection;
uniform vec2 uOffset;

void main() {
    gl_Position = vec4((uProjection * vec3(aPosition + uOffset, 1.0)).xy, 0.0, 1.0);
}
`

const spriteFrag = `#version 330 core
uniform sampler2D uTexture;
uniform vec4 uTint;

layout(std140) uniform Globals {
    vec2 resolution;
    float time;
};

out vec4 fragColor;

void main() {
    fragColor = texture(uTexture, gl_FragCoord.xy / resolution) * uTint;
}
`

type texture uint32

func (t texture) TextureID() uint32 { return uint32(t) }

func main() {
	var (
		frames  = flag.Int("frames", 120, "frames to run")
		sprites = flag.Int("sprites", 8, "sprites drawn per frame")
		lose    = flag.Int("lose", 0, "simulate a context loss every n frames (0 disables)")
		limit   = flag.Int("routines", 0, "sync routine cache limit (0 is unbounded)")
		verbose = flag.Bool("v", false, "log to stderr")
	)
	flag.Parse()

	if *verbose {
		ggshader.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	dev := headless.New()
	reg := ggshader.NewRegistry(ggshader.WithRoutineLimit(*limit))

	globals := ggshader.NewUniformBufferGroup(false)
	globals.SetVec2("resolution", f32.Vec2{800, 600})

	sys, err := reg.NewSystem(dev)
	if err != nil {
		log.Fatalf("Failed to create system: %v", err)
	}
	defer sys.Destroy()

	program := ggshader.NewProgram("sprite", ggshader.Source{Vertex: spriteVert, Fragment: spriteFrag})

	// The camera never changes after setup.
	camera := ggshader.NewUniformGroup(true)
	camera.SetMat3("uProjection", f32.Mat3{2.0 / 800, 0, 0, 0, -2.0 / 600, 0, -1, 1, 1})

	shaders := make([]*ggshader.Shader, *sprites)
	for i := range shaders {
		g := ggshader.NewUniformGroup(false)
		g.SetGroup("camera", camera)
		g.SetGroup("Globals", globals)
		g.SetTexture("uTexture", texture(i%2+1))
		g.SetVec4("uTint", f32.Vec4{1, float32(i) / float32(*sprites), 0.5, 1})
		shaders[i] = ggshader.NewShader(program, g)
	}

	for frame := 0; frame < *frames; frame++ {
		if *lose > 0 && frame > 0 && frame%*lose == 0 {
			dev.Lose()
			sys.ContextChange(dev, reg.NextContextID())
		}
		globals.SetFloat("time", float32(frame)/60)
		for i, sh := range shaders {
			angle := float64(frame+i) / 20
			sh.Uniforms().SetVec2("uOffset", f32.Vec2{
				float32(400 + 200*math.Cos(angle)),
				float32(300 + 200*math.Sin(angle)),
			})
			if _, err := sys.Bind(sh, false); err != nil {
				log.Fatalf("Frame %d: %v", frame, err)
			}
		}
	}

	st := sys.Stats()
	c := dev.Counters()
	fmt.Printf("frames:            %d\n", *frames)
	fmt.Printf("context:           %d\n", sys.Context())
	fmt.Printf("compiles:          %d\n", st.Compiles)
	fmt.Printf("syncs:             %d (skipped %d)\n", st.Syncs, st.SkippedSyncs)
	fmt.Printf("buffer uploads:    %d\n", st.BufferUploads)
	fmt.Printf("routines:          %d\n", st.Cache.Routines)
	fmt.Printf("uniform calls:     %d\n", c.UniformCalls)
	fmt.Printf("texture binds:     %d\n", c.TextureBinds)
}
