// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"errors"
	"fmt"
)

var (
	// ErrEnvironmentUnsupported is returned by NewSystem when the host cannot
	// run uniform synchronization (no device to issue uploads to).
	ErrEnvironmentUnsupported = errors.New("ggshader: environment does not support uniform sync")

	// ErrCompile matches every *CompileError via errors.Is.
	ErrCompile = errors.New("ggshader: program compilation failed")

	// ErrInvalidState is returned when an operation needs a bound shader
	// and none is bound.
	ErrInvalidState = errors.New("ggshader: invalid state")

	// ErrDestroyed is returned by a System after Destroy.
	ErrDestroyed = errors.New("ggshader: system destroyed")

	// ErrUniformBuffersUnsupported is returned when a uniform buffer group is
	// synchronized on a device that does not implement BufferDevice.
	ErrUniformBuffersUnsupported = errors.New("ggshader: device does not support uniform buffers")

	// ErrUnsupportedValue is returned when a Go value cannot be stored as a
	// uniform.
	ErrUnsupportedValue = errors.New("ggshader: unsupported uniform value")
)

// CompileError reports a program the device refused to compile or link.
// Log holds the text reported by the GPU driver. Compile errors are not
// retried: the same source fails the same way.
type CompileError struct {
	// Program is the name of the program that failed.
	Program string

	// Log is the driver's compile or link log.
	Log string

	// Err is the error returned by the device.
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("ggshader: compile program %q: %s", e.Program, e.Log)
}

// Unwrap returns the device error.
func (e *CompileError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCompile.
func (e *CompileError) Is(target error) bool { return target == ErrCompile }
