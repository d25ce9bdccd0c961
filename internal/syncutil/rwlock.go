package syncutil

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// RWLock is the writer-preferring reader-writer lock spec §5 describes:
// readers never block each other and simply leave if a writer is
// pending; a waiting writer blocks further readers from being admitted
// so it can never starve behind a constant stream of new readers. One
// instance guards one definition kind's hash table (spec §4.3).
type RWLock struct {
	readers       atomic.Int32
	writerPending atomic.Bool
	outer         sync.Mutex // admits only one pending writer at a time
}

// RLock is the hot path: admit unless a writer is pending or arrives
// between the check and the increment.
func (l *RWLock) RLock() {
	for {
		if l.writerPending.Load() {
			runtime.Gosched()
			continue
		}
		l.readers.Add(1)
		if l.writerPending.Load() {
			l.readers.Add(-1)
			continue
		}
		return
	}
}

func (l *RWLock) RUnlock() {
	l.readers.Add(-1)
}

// Lock acquires the outer mutex first so only one writer is ever
// pending, flags the lock so no further readers are admitted, then
// spins (a CAS-free busy loop suffices: once writerPending is visible,
// a reader that still increments readers sees the flag and takes its
// increment back, so the count only falls back toward zero) until the
// last already-admitted reader departs.
func (l *RWLock) Lock() {
	l.outer.Lock()
	l.writerPending.Store(true)
	for l.readers.Load() > 0 {
		runtime.Gosched()
	}
}

func (l *RWLock) Unlock() {
	l.writerPending.Store(false)
	l.outer.Unlock()
}
