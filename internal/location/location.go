// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package location implements per-thread location state, the region
// stack, and the task stack (spec §4.4): the mutable, non-definition
// state that lives alongside a defs.Location definition.
//
// Grounded on the teacher's internal/memorystore/buffer.go for the
// arena-owning, single-writer-goroutine shape, and on pkg/log's
// severity ladder (via internal/diag) for the fatal-overflow path.
package location

import (
	"sync"

	"github.com/score-p/scorep-measurement-core/internal/arena"
	"github.com/score-p/scorep-measurement-core/internal/defs"
	"github.com/score-p/scorep-measurement-core/internal/diag"
)

// DefaultMaxStackDepth bounds the region stack (spec: "bounded by a
// configured maximum depth. Overflow is fatal").
const DefaultMaxStackDepth = 1024

// ClockOffset is the per-location clock-offset triple (spec §3, §4.7).
type ClockOffset struct {
	OffsetTime float64 // time at which the offset was measured
	Offset     float64 // offset to rank 0's clock
	StdDev     float64 // reserved for future use; always 0 here
}

// MetricValue is one slot of a location's last-read metric vector.
type MetricValue struct {
	SamplingSet defs.Handle
	Value       uint64
}

// Location is the per-thread mutable state spec §3 describes as "not a
// definition; lives in its own arena". One Location is created per
// observed CPU thread or accelerator stream (spec §4.4).
type Location struct {
	Handle       defs.Handle // the corresponding defs.Location definition
	Arena        *arena.Arena
	LocalID      uint64 // dense, monotonic, process-local id
	Paradigm     string
	StartRoutine uintptr // identifies the thread's entry point, for reuse matching

	mu          sync.Mutex
	regionStack []defs.Handle
	maxDepth    int
	stackHash   uint32 // Jenkins hash over the active stack, recomputed in full on every change

	currentTask *Task

	metricValues []MetricValue
	substrateBlobs map[int][]byte // one opaque blob per registered substrate id

	Clock ClockOffset

	active bool // false once deactivated, eligible for reuse
}

// New creates a location for a freshly observed thread or stream.
// Installing it into the caller's TLS slot and invoking the
// on_new_location/on_activate substrate hooks (spec §4.4 steps 3-4) is
// the Manager's responsibility (see Manager.Acquire), not this
// constructor's.
func New(handle defs.Handle, localID uint64, paradigm string, startRoutine uintptr) *Location {
	return &Location{
		Handle:         handle,
		Arena:          arena.New(arena.DefaultEventChunkBytes),
		LocalID:        localID,
		Paradigm:       paradigm,
		StartRoutine:   startRoutine,
		maxDepth:       DefaultMaxStackDepth,
		substrateBlobs: make(map[int][]byte),
		active:         true,
	}
}

// jenkinsMix folds one more region handle into a running one-at-a-time
// Jenkins hash (the "xor-shift mix" step). recomputeHash applies it to
// every entry of the active stack on each enter, exit and task switch,
// so the cost of a hash update grows with stack depth.
func jenkinsMix(hash uint32, h defs.Handle) uint32 {
	v := uint32(h)
	for i := 0; i < 4; i++ {
		hash += (v >> (8 * uint(i))) & 0xff
		hash += hash << 10
		hash ^= hash >> 6
	}
	return hash
}

func jenkinsFinalize(hash uint32) uint32 {
	hash += hash << 3
	hash ^= hash >> 11
	hash += hash << 15
	return hash
}

// EnterRegion pushes region onto the current task's (or, if no task is
// active, the location's own) region stack and recomputes the stack
// hash over the whole stack. Overflow beyond maxDepth is fatal (spec §4.4).
func (l *Location) EnterRegion(region defs.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stack := l.stack()
	if len(*stack) >= l.maxDepth {
		diag.Abort("location: region stack overflow, max depth ", l.maxDepth)
	}
	*stack = append(*stack, region)
	l.recomputeHash()
}

// ExitRegion pops the top of the current stack. If top does not match
// region, the call is either tolerated (an implicit multi-pop, when
// tolerant is true — the caller-selected behavior for ExitRegion) or
// fatal (Task_ExitAllRegions semantics, tolerant false), per spec §4.4.
func (l *Location) ExitRegion(region defs.Handle, tolerant bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stack := l.stack()
	if len(*stack) == 0 {
		if tolerant {
			return
		}
		diag.Abort("location: exit on empty region stack")
	}
	top := (*stack)[len(*stack)-1]
	if top != region {
		if !tolerant {
			diag.Abort("location: mismatched region exit")
		}
		// Implicit multi-pop: drop everything above (and including)
		// the matching entry, if present; otherwise leave the stack
		// alone, tolerating a stray exit.
		for i := len(*stack) - 1; i >= 0; i-- {
			if (*stack)[i] == region {
				*stack = (*stack)[:i]
				l.recomputeHash()
				return
			}
		}
		return
	}
	*stack = (*stack)[:len(*stack)-1]
	l.recomputeHash()
}

func (l *Location) recomputeHash() {
	stack := l.stack()
	h := uint32(0)
	for _, r := range *stack {
		h = jenkinsMix(h, r)
	}
	l.stackHash = jenkinsFinalize(h)
}

func (l *Location) stack() *[]defs.Handle {
	if l.currentTask != nil {
		return &l.currentTask.regionStack
	}
	return &l.regionStack
}

// StackHash returns the current region-stack's 32-bit Jenkins hash,
// the call-site identity adapters consult (spec §4.4, §4.10).
func (l *Location) StackHash() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stackHash
}

// StackDepth reports how many regions are currently on the active stack.
func (l *Location) StackDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(*l.stack())
}

// ExitAllRegions unwinds the active stack completely (used at task
// completion or thread exit); mismatched exits here are never fatal.
func (l *Location) ExitAllRegions() {
	l.mu.Lock()
	defer l.mu.Unlock()
	stack := l.stack()
	*stack = (*stack)[:0]
	l.stackHash = 0
}

// RecordMetric updates (or appends) the last-read value for a sampling set.
func (l *Location) RecordMetric(set defs.Handle, value uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.metricValues {
		if l.metricValues[i].SamplingSet == set {
			l.metricValues[i].Value = value
			return
		}
	}
	l.metricValues = append(l.metricValues, MetricValue{SamplingSet: set, Value: value})
}

// SubstrateBlob returns the opaque per-substrate slot for substrateID,
// lazily allocating size bytes on first use.
func (l *Location) SubstrateBlob(substrateID, size int) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.substrateBlobs[substrateID]; ok {
		return b
	}
	b := l.Arena.AllocCacheline(size)
	l.substrateBlobs[substrateID] = b
	return b
}

// Deactivate releases the location for possible reuse (spec §4.4: "a
// new team-begin can either create a fresh location or reattach to a
// previously deactivated one").
func (l *Location) Deactivate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
}

func (l *Location) reactivate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = true
}

func (l *Location) isActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
