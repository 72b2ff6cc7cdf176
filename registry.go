// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import "sync"

// Registry is the process-wide owner of shader systems. It issues system
// instance ids and context identities, and shares one sync routine cache
// between the systems it creates so a uniform shape is generated once per
// process.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu          sync.Mutex
	nextSystem  uint64
	nextContext ContextID
	cache       *SyncCache
}

// NewRegistry creates a registry with an empty routine cache configured by
// opts.
func NewRegistry(opts ...SyncCacheOption) *Registry {
	return &Registry{cache: NewSyncCache(opts...)}
}

// NewSystem creates a System with a fresh instance id, a fresh context
// identity and the registry's routine cache. opts are applied afterwards
// and may override them.
func (r *Registry) NewSystem(dev Device, opts ...SystemOption) (*System, error) {
	r.mu.Lock()
	r.nextSystem++
	id := r.nextSystem
	r.mu.Unlock()

	base := []SystemOption{
		withID(id),
		WithContextID(r.NextContextID()),
		WithSyncCache(r.cache),
	}
	return NewSystem(dev, append(base, opts...)...)
}

// NextContextID issues a new context identity. Call it whenever a context
// is created or restored after loss and pass the result to
// System.ContextChange.
func (r *Registry) NextContextID() ContextID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextContext++
	return r.nextContext
}

// SyncCache returns the shared routine cache.
func (r *Registry) SyncCache() *SyncCache { return r.cache }
