// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gate implements the re-entrancy and phase gate every adapter
// entry point must traverse (spec §4.1). It fails with nothing: it is a
// counter, not a resource.
//
// Every "thread" the spec refers to is, in this Go rendition, a
// goroutine that has pinned itself to an OS thread with
// runtime.LockOSThread (the natural Go analogue of a CPU-thread
// location, see internal/location). The gate keys its per-thread
// counter on the OS thread id, matching the TLS-fallback the spec's
// design notes (§9) call for explicitly.
package gate

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/score-p/scorep-measurement-core/internal/diag"
	"golang.org/x/sys/unix"
)

// Phase is the process-wide measurement-phase variable (spec §3).
type Phase int32

const (
	PhasePre Phase = iota
	PhaseWithin
	PhasePost
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "PRE"
	case PhaseWithin:
		return "WITHIN"
	case PhasePost:
		return "POST"
	default:
		return "UNKNOWN"
	}
}

// phase carries acquire/release semantics: written once by the
// lifecycle coordinator, read by every thread.
var phase atomic.Int32

func CurrentPhase() Phase {
	return Phase(phase.Load())
}

// SetPhase is called only by the lifecycle coordinator (internal/measurement).
func SetPhase(p Phase) {
	phase.Store(int32(p))
}

// threadState is the per-OS-thread counter plus its signal-context flag.
type threadState struct {
	inMeasurement int32
	inSignal      atomic.Bool
}

var (
	statesMu sync.RWMutex
	states   = map[int]*threadState{}
)

func tid() int {
	return unix.Gettid()
}

func stateFor(id int) *threadState {
	statesMu.RLock()
	s, ok := states[id]
	statesMu.RUnlock()
	if ok {
		return s
	}

	statesMu.Lock()
	defer statesMu.Unlock()
	if s, ok := states[id]; ok {
		return s
	}
	s = &threadState{}
	states[id] = s
	return s
}

// ForgetThread releases the bookkeeping for the calling OS thread. Call
// this when a location is deactivated and its OS thread is about to be
// reused for something unrelated (spec §4.4's "reattach" policy keeps
// the same thread id, so this is only needed on true thread exit).
func ForgetThread() {
	id := tid()
	statesMu.Lock()
	delete(states, id)
	statesMu.Unlock()
}

// Enter implements the gate's entry sequence (spec §4.1 steps 1-3):
// atomically post-increment the counter, and report whether the call
// originated inside already-wrapped measurement code (pre-value
// non-zero) plus whether events should be generated at all (phase is
// WITHIN and this is not a re-entrant call).
//
// Adapters call Enter at the very top of every wrapper and must call
// Exit on every return path, typically via defer.
func Enter() (nested bool, recordEvents bool) {
	s := stateFor(tid())
	pre := atomic.AddInt32(&s.inMeasurement, 1) - 1
	nested = pre != 0
	recordEvents = !nested && CurrentPhase() == PhaseWithin
	return nested, recordEvents
}

// Exit implements step 4: atomically post-decrement.
func Exit() {
	s := stateFor(tid())
	atomic.AddInt32(&s.inMeasurement, -1)
}

// CallWrapped forces the counter to zero across fn so inner wrappers
// re-arm, then restores the previous value. Adapters use this
// immediately before calling into the library they wrap.
func CallWrapped(fn func()) {
	s := stateFor(tid())
	saved := atomic.SwapInt32(&s.inMeasurement, 0)
	defer atomic.StoreInt32(&s.inMeasurement, saved)
	fn()
}

// InMeasurement reports the current thread's nesting counter, mostly
// useful for tests and assertions.
func InMeasurement() int32 {
	return atomic.LoadInt32(&stateFor(tid()).inMeasurement)
}

// MarkSignalContext flags the calling OS thread as executing inside an
// asynchronous sample handler (spec §4.1, §9). Code paths entered with
// the flag set must use pre-allocated, lock-free storage only.
func MarkSignalContext(inSignal bool) {
	s := stateFor(tid())
	s.inSignal.Store(inSignal)
	diag.MarkSignalContext(inSignal)
}

// InSignalContext reports the calling thread's signal-context flag.
func InSignalContext() bool {
	return stateFor(tid()).inSignal.Load()
}

func init() {
	diag.SetSignalContextHook(InSignalContext)
	// Pin this goroutine's carrier OS thread only if the caller already
	// did; the gate itself never calls LockOSThread, that decision
	// belongs to internal/location when a location is created.
	runtime.KeepAlive(tid)
}
