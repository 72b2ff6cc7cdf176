// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"slices"
	"sync"

	"github.com/gogpu/ggshader"
)

// BackendFactory creates a new backend instance.
type BackendFactory func() ShaderBackend

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for backend selection (first available wins).
	// GL > WGPU > Headless (Headless is the fallback without a GPU).
	backendPriority = []string{BackendGL, BackendWGPU, BackendHeadless}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names, known backends first in
// priority order, then the rest sorted by name.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return orderedNames()
}

// orderedNames must be called with registryMu held.
func orderedNames() []string {
	names := make([]string, 0, len(backends))
	for _, name := range backendPriority {
		if _, ok := backends[name]; ok {
			names = append(names, name)
		}
	}
	var rest []string
	for name := range backends {
		if !slices.Contains(backendPriority, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) ShaderBackend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available backend based on priority.
// Priority order: gl > wgpu > headless
// Returns nil if no backends are registered.
func Default() ShaderBackend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range orderedNames() {
		if b := backends[name](); b != nil {
			return b
		}
	}
	return nil
}

// MustDefault returns the default backend or panics.
func MustDefault() ShaderBackend {
	b := Default()
	if b == nil {
		panic("backend: no backend available")
	}
	return b
}

// InitDefault initializes the best backend whose Init succeeds, walking the
// priority order. A GL backend without a current context fails Init and the
// next backend is tried. The returned error joins every Init failure.
func InitDefault() (ShaderBackend, error) {
	registryMu.RLock()
	names := orderedNames()
	factories := make([]BackendFactory, len(names))
	for k, name := range names {
		factories[k] = backends[name]
	}
	registryMu.RUnlock()

	if len(factories) == 0 {
		return nil, ErrBackendNotAvailable
	}

	var errs []error
	for k, factory := range factories {
		b := factory()
		if b == nil {
			continue
		}
		if err := b.Init(); err != nil {
			ggshader.Logger().Debug("backend: init failed", "backend", names[k], "error", err)
			errs = append(errs, err)
			continue
		}
		ggshader.Logger().Info("backend: initialized", "backend", names[k])
		return b, nil
	}
	return nil, errors.Join(append([]error{ErrBackendNotAvailable}, errs...)...)
}
