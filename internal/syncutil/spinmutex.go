// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package syncutil provides the atomics-adjacent synchronization
// primitives the measurement core is built from: a spin mutex and a
// writer-preferring reader-writer lock (spec §2, §4.3, §5), layered
// directly on sync/atomic. No third-party atomics/spinlock library
// appears anywhere in the reference corpus, and these primitives are
// thin enough (a handful of CAS loops) that reaching for one would add
// a dependency without removing any real complexity; see DESIGN.md.
package syncutil

import (
	"runtime"
	"sync/atomic"
)

// SpinMutex protects the misc arena (spec §4.2, §5): writes are rare
// enough, and critical sections short enough, that spinning beats the
// cost of parking a goroutine.
type SpinMutex struct {
	locked atomic.Bool
}

func (m *SpinMutex) Lock() {
	for !m.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (m *SpinMutex) Unlock() {
	m.locked.Store(false)
}

// TryLock attempts to acquire the lock without spinning, reporting
// whether it succeeded.
func (m *SpinMutex) TryLock() bool {
	return m.locked.CompareAndSwap(false, true)
}
