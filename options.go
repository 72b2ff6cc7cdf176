// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

// SystemOption configures a System during creation.
//
// Example:
//
//	globals := ggshader.NewUniformGroup(false)
//	sys, err := ggshader.NewSystem(dev,
//	    ggshader.WithGlobalUniforms(globals),
//	    ggshader.WithContextID(1),
//	)
type SystemOption func(*systemOptions)

// systemOptions holds optional configuration for System creation.
type systemOptions struct {
	globals *UniformGroup
	context ContextID
	cache   *SyncCache
	id      uint64
}

// defaultSystemOptions returns the default system options.
func defaultSystemOptions() systemOptions {
	return systemOptions{
		context: 1,
	}
}

// WithGlobalUniforms sets the group injected into every bound shader under
// GlobalsName, typically holding the projection and world transforms.
func WithGlobalUniforms(g *UniformGroup) SystemOption {
	return func(o *systemOptions) {
		o.globals = g
	}
}

// WithContextID sets the initial context identity. Systems sharing Programs
// must use distinct identities; Registry.NextContextID issues them.
func WithContextID(id ContextID) SystemOption {
	return func(o *systemOptions) {
		o.context = id
	}
}

// WithSyncCache shares a routine cache between systems.
func WithSyncCache(c *SyncCache) SystemOption {
	return func(o *systemOptions) {
		o.cache = c
	}
}

// withID sets the system instance id. Registry uses it.
func withID(id uint64) SystemOption {
	return func(o *systemOptions) {
		o.id = id
	}
}
