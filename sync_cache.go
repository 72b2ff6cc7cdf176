// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggshader

import (
	"log/slog"

	"github.com/gogpu/ggshader/internal/cache"
)

// SyncCache maps uniform signatures to generated sync routines, and block
// layout signatures to packing plans. One cache serves every program of a
// System, and may be shared between systems through a Registry.
//
// SyncCache is safe for concurrent use.
type SyncCache struct {
	routines *cache.Cache[string, *SyncRoutine]
	layouts  *cache.Cache[string, *bufferLayout]
}

// SyncCacheOption configures a SyncCache during creation.
type SyncCacheOption func(*syncCacheOptions)

type syncCacheOptions struct {
	routineLimit int
	layoutLimit  int
}

// WithRoutineLimit bounds the number of cached routines. Past the limit the
// least recently used routines are dropped; programs already bound to them
// keep working and the shape is regenerated on its next miss. 0, the
// default, keeps every routine.
func WithRoutineLimit(n int) SyncCacheOption {
	return func(o *syncCacheOptions) {
		o.routineLimit = max(n, 0)
	}
}

// WithLayoutLimit bounds the number of cached uniform block layouts the
// same way.
func WithLayoutLimit(n int) SyncCacheOption {
	return func(o *syncCacheOptions) {
		o.layoutLimit = max(n, 0)
	}
}

// NewSyncCache creates an empty cache, unbounded unless limited by opts.
// The number of distinct uniform shapes in a renderer is usually small and
// fixed by its shaders.
func NewSyncCache(opts ...SyncCacheOption) *SyncCache {
	var o syncCacheOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &SyncCache{
		routines: cache.New[string, *SyncRoutine](o.routineLimit),
		layouts:  cache.New[string, *bufferLayout](o.layoutLimit),
	}
}

// GetOrCreate returns the routine for the shape of g against a program's
// uniform table, generating it on first use.
func (c *SyncCache) GetOrCreate(g *UniformGroup, uniforms map[string]*UniformData) *SyncRoutine {
	sig := Signature(g, uniforms)
	return c.routines.GetOrCreate(sig, func() *SyncRoutine {
		r := generateSyncRoutine(sig, g, uniforms)
		Logger().Debug("ggshader: sync routine generated",
			slog.String("signature", sig),
			slog.String("steps", r.describe()))
		return r
	})
}

// Routine returns the cached routine for a signature.
func (c *SyncCache) Routine(sig string) (*SyncRoutine, bool) {
	return c.routines.Get(sig)
}

// Add stores a routine built with GenerateSyncRoutine under its signature,
// replacing any routine cached for that shape. It lets a renderer generate
// its routines while loading instead of on the first frame.
func (c *SyncCache) Add(r *SyncRoutine) {
	c.routines.Set(r.signature, r)
}

// Forget drops the routine cached for sig. It reports whether one was
// cached.
func (c *SyncCache) Forget(sig string) bool {
	return c.routines.Delete(sig)
}

// layout returns the packing plan of buffer group g for block.
func (c *SyncCache) layout(g *UniformGroup, uniforms map[string]*UniformData, block string) *bufferLayout {
	sig := bufferSignature(g, uniforms, block)
	return c.layouts.GetOrCreate(sig, func() *bufferLayout {
		return newBufferLayout(sig, g, uniforms, block)
	})
}

// Len returns the number of cached routines.
func (c *SyncCache) Len() int { return c.routines.Len() }

// Clear drops every routine and layout and resets the statistics.
func (c *SyncCache) Clear() {
	c.routines.Clear()
	c.layouts.Clear()
}

// Stats returns routine cache statistics.
func (c *SyncCache) Stats() CacheStats {
	s := c.routines.Stats()
	return CacheStats{
		Routines: s.Len,
		Layouts:  c.layouts.Len(),
		Limit:    s.Capacity,
		Hits:     s.Hits,
		Misses:   s.Misses,
		HitRate:  s.HitRate,
	}
}

// CacheStats describes a SyncCache.
type CacheStats struct {
	// Routines is the number of generated sync routines.
	Routines int
	// Layouts is the number of uniform block packing plans.
	Layouts int
	// Limit is the routine soft limit, 0 when unbounded.
	Limit int
	// Hits is the number of routine lookups served from the cache.
	Hits uint64
	// Misses is the number of routines generated.
	Misses uint64
	// HitRate is Hits / (Hits + Misses).
	HitRate float64
}
