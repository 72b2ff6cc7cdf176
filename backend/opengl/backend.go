// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package opengl

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/ggshader"
	"github.com/gogpu/ggshader/backend"
)

// ErrNoContext is returned by Init when no GL context is current.
var ErrNoContext = errors.New("gl: no current context")

func init() {
	backend.Register(backend.BackendGL, func() backend.ShaderBackend {
		return &Backend{}
	})
}

// Backend is the "gl" registry entry. It drives the GL context current
// on the calling thread; Init fails when there is none.
type Backend struct {
	dev *Device
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendGL }

// Init loads the GL function pointers and checks for a current context.
func (b *Backend) Init() error {
	if b.dev != nil {
		return nil
	}
	if err := gl.Init(); err != nil {
		return fmt.Errorf("gl: init: %w", err)
	}
	version := gl.GetString(gl.VERSION)
	if version == nil {
		return ErrNoContext
	}
	b.dev = New()
	ggshader.Logger().Info("gl: context ready", "version", gl.GoStr(version))
	return nil
}

// Close deletes the programs and buffers created through the device.
func (b *Backend) Close() {
	if b.dev != nil {
		b.dev.Close()
		b.dev = nil
	}
}

// Device returns the device, nil before Init.
func (b *Backend) Device() ggshader.Device {
	if b.dev == nil {
		return nil
	}
	return b.dev
}

// GL returns the concrete device, nil before Init.
func (b *Backend) GL() *Device { return b.dev }
