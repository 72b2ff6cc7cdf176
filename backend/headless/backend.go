// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"github.com/gogpu/ggshader"
	"github.com/gogpu/ggshader/backend"
)

// init registers the headless backend on package import.
func init() {
	backend.Register(backend.BackendHeadless, func() backend.ShaderBackend {
		return NewBackend()
	})
}

// Backend is the headless ShaderBackend. Init never fails.
type Backend struct {
	opts []Option
	dev  *Device
}

// NewBackend creates a headless backend whose device is built with opts.
func NewBackend(opts ...Option) *Backend {
	return &Backend{opts: opts}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendHeadless }

// Init creates the device.
func (b *Backend) Init() error {
	if b.dev == nil {
		b.dev = New(b.opts...)
	}
	return nil
}

// Close drops the device.
func (b *Backend) Close() { b.dev = nil }

// Device returns the device, or nil before Init.
func (b *Backend) Device() ggshader.Device {
	if b.dev == nil {
		return nil
	}
	return b.dev
}

// Headless returns the concrete device for inspection, or nil before Init.
func (b *Backend) Headless() *Device { return b.dev }
