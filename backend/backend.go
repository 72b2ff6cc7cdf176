// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"

	"github.com/gogpu/ggshader"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend name constants.
const (
	// BackendGL is the name of the OpenGL 3.3 core backend.
	BackendGL = "gl"
	// BackendWGPU is the name of the Pure Go WebGPU backend (gogpu/wgpu).
	BackendWGPU = "wgpu"
	// BackendHeadless is the name of the CPU-only recording backend.
	BackendHeadless = "headless"
)

// ShaderBackend is the interface for shader backends.
// It abstracts the graphics API a ggshader.System drives, allowing the
// library to run on OpenGL, WebGPU or without any GPU at all.
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type ShaderBackend interface {
	// Name returns the backend identifier (e.g., "gl", "wgpu").
	Name() string

	// Init initializes the backend.
	// This should be called before Device.
	Init() error

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()

	// Device returns the device shader systems drive, or nil before Init.
	Device() ggshader.Device
}

// NewSystem creates a shader system over an initialized backend.
func NewSystem(b ShaderBackend, opts ...ggshader.SystemOption) (*ggshader.System, error) {
	if b == nil {
		return nil, ErrBackendNotAvailable
	}
	dev := b.Device()
	if dev == nil {
		return nil, ErrNotInitialized
	}
	return ggshader.NewSystem(dev, opts...)
}
