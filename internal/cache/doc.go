// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides the generic keyed cache behind ggshader's
// process-wide caches.
//
// The shader system stores one generated uniform sync routine per uniform
// signature and reuses it for every program sharing that shape, so the
// cache is normally unbounded. A soft limit can be set for hosts that
// generate an unbounded number of shapes; entries past the limit are
// evicted oldest-access first.
//
//	c := cache.New[string, *Routine](0)
//	r := c.GetOrCreate(sig, func() *Routine { return generate(sig) })
//	st := c.Stats() // Len, Hits, Misses
//
// # Thread Safety
//
// Cache is safe for concurrent use so that several shader systems can share
// one instance. It must not be copied after creation.
package cache
