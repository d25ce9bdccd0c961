// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package arena implements the page-chunked bump allocator serving the
// definition registry, the location/task stacks, and the metric
// buffer chain (spec §4.2, §4.9). It never frees individual
// allocations; all memory is released en bloc when the owning arena
// is reset at Finalize.
//
// Grounded on the teacher's internal/memorystore/buffer.go, which uses
// the exact same chunk-and-chain-of-fixed-capacity-slabs shape (there,
// []schema.Float chunks pooled in a sync.Pool; here, []byte pages
// pooled the same way so retired pages can be reused across
// re-initialization, as spec §4.2 requires).
package arena

import (
	"sync"
	"sync/atomic"

	"github.com/score-p/scorep-measurement-core/internal/diag"
	"github.com/score-p/scorep-measurement-core/internal/syncutil"
)

const (
	// DefaultEventChunkBytes is the default page size for per-location
	// (event) arenas (spec §4.2, SCOREP_PAGE_SIZE default).
	DefaultEventChunkBytes = 1 << 20 // 1 MiB
	// DefaultDefChunkBytes is the default page size for definition
	// manager arenas (spec §4.9).
	DefaultDefChunkBytes = 4 << 20 // 4 MiB
	// CacheLineBytes is the alignment alloc_cacheline rounds up to.
	CacheLineBytes = 64
)

// page is one chunk acquired from the OS (in this rendition, from the
// Go allocator, which is the closest analogue available without cgo).
type page struct {
	buf  []byte
	used int
}

// pagePool lets retired pages of the default size be reused across
// re-initialization instead of returned to the GC, mirroring the
// teacher's bufferPool.
var pagePool = sync.Pool{
	New: func() any { return &page{buf: make([]byte, 0, DefaultEventChunkBytes)} },
}

func newPage(size int) *page {
	if size == DefaultEventChunkBytes {
		p := pagePool.Get().(*page)
		p.buf = p.buf[:0]
		p.used = 0
		return p
	}
	return &page{buf: make([]byte, 0, size)}
}

// Arena is a single-scope bump allocator. Per spec §4.2 there are two
// scopes per process: one "misc" Arena shared by the process (callers
// must externally serialize writers with a syncutil.SpinMutex — see
// Misc) and one per-location Arena owned exclusively by its creating
// goroutine (lock-free, spec §5).
type Arena struct {
	chunkSize int64 // atomic-free: set once at construction, read-only after
	pages     []*page
	bytesUsed int64 // atomic, so SizeInBytes can be read concurrently with writes on Misc
}

// New creates an arena whose pages are chunkSize bytes. Pass 0 to use
// DefaultEventChunkBytes.
func New(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultEventChunkBytes
	}
	return &Arena{chunkSize: int64(chunkSize)}
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// Alloc returns an n-byte slice aligned to align (which must be a
// power of two), or nil if no further memory could be acquired
// (spec §4.2: "alloc_* returns null; callers propagate MEM_ALLOC_FAILED").
func (a *Arena) Alloc(n, align int) []byte {
	if n <= 0 {
		return nil
	}
	if n > int(a.chunkSize) {
		// Oversized requests get their own dedicated page; never split
		// across the bump cursor of the regular chunk chain.
		p := newPage(alignUp(n, align))
		p.buf = p.buf[:n]
		a.pages = append(a.pages, p)
		atomic.AddInt64(&a.bytesUsed, int64(n))
		return p.buf
	}

	if len(a.pages) > 0 {
		last := a.pages[len(a.pages)-1]
		start := alignUp(last.used, align)
		if start+n <= cap(last.buf) {
			last.buf = last.buf[:start+n]
			last.used = start + n
			atomic.AddInt64(&a.bytesUsed, int64(n))
			return last.buf[start : start+n]
		}
	}

	p := newPage(int(a.chunkSize))
	if cap(p.buf) < n {
		diag.Errorf("arena: requested %d bytes exceeds chunk size %d", n, a.chunkSize)
		return nil
	}
	p.buf = p.buf[:n]
	p.used = n
	a.pages = append(a.pages, p)
	atomic.AddInt64(&a.bytesUsed, int64(n))
	return p.buf
}

// AllocCacheline aligns n bytes to the cache line (spec §4.2).
func (a *Arena) AllocCacheline(n int) []byte {
	return a.Alloc(n, CacheLineBytes)
}

// AllocPage requests n bytes guaranteed to start a fresh page, used
// when the caller wants page-granularity isolation (e.g. a definition
// manager's large-page specialization, spec §4.9).
func (a *Arena) AllocPage(n int) []byte {
	size := n
	if size < int(a.chunkSize) {
		size = int(a.chunkSize)
	}
	p := newPage(size)
	p.buf = p.buf[:n]
	p.used = n
	a.pages = append(a.pages, p)
	atomic.AddInt64(&a.bytesUsed, int64(n))
	return p.buf
}

// SizeInBytes reports the arena's current allocation total. Safe to
// call concurrently with Alloc on the Misc arena (the only one shared
// across goroutines); callers of a per-location arena must still only
// call this from the owning goroutine or after the location is
// deactivated.
func (a *Arena) SizeInBytes() int64 {
	return atomic.LoadInt64(&a.bytesUsed)
}

// Reset releases every page back to the pool (if it is the default
// chunk size) or to the GC, and zeros the arena for reuse. This is the
// "release all memory at Finalize" step of spec §4.2; it also backs
// the page free-list reuse across re-initialization.
func (a *Arena) Reset() {
	for _, p := range a.pages {
		if cap(p.buf) == DefaultEventChunkBytes {
			pagePool.Put(p)
		}
	}
	a.pages = a.pages[:0]
	atomic.StoreInt64(&a.bytesUsed, 0)
}

// Misc is the process-wide arena shared by definitions and other
// cross-cutting allocations; every write to it must be made while
// holding MiscLock (spec §4.2, §5).
var (
	Misc     = New(DefaultDefChunkBytes)
	MiscLock syncutil.SpinMutex
)

// AllocMisc allocates from the shared misc arena under its spin mutex.
func AllocMisc(n, align int) []byte {
	MiscLock.Lock()
	defer MiscLock.Unlock()
	return Misc.Alloc(n, align)
}

// ResetMisc releases the process-wide misc arena; called once from
// Finalize.
func ResetMisc() {
	MiscLock.Lock()
	defer MiscLock.Unlock()
	Misc.Reset()
}
