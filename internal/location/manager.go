package location

import (
	"sync"
	"sync/atomic"

	"github.com/score-p/scorep-measurement-core/internal/defs"
	"golang.org/x/sys/unix"
)

// ReusePolicy selects how Manager.Acquire matches a parked, deactivated
// location for reattachment (spec §4.4: "matched by (paradigm,
// start_routine) or by (paradigm), per user policy").
type ReusePolicy int

const (
	// ReuseNone always creates a fresh location.
	ReuseNone ReusePolicy = iota
	// ReuseByParadigm reattaches to any deactivated location sharing
	// the requested paradigm.
	ReuseByParadigm
	// ReuseByParadigmAndRoutine reattaches only if paradigm and
	// start routine both match.
	ReuseByParadigmAndRoutine
)

// Hooks are the substrate callbacks Manager.Acquire invokes on
// creation and (re)activation (spec §4.4 steps 3-4). A nil hook is
// skipped.
type Hooks struct {
	OnNewLocation func(*Location)
	OnActivate    func(*Location)
}

// Manager owns the set of known locations for one process and installs
// the active location into a per-OS-thread TLS slot, the same
// unix.Gettid()-keyed-map emulation internal/gate uses.
type Manager struct {
	defsManager *defs.Manager
	policy      ReusePolicy
	hooks       Hooks

	mu        sync.RWMutex
	locations []*Location          // every location ever created, dense by LocalID
	byTID     map[int]*Location    // current TLS installation per OS thread
	nextID    atomic.Uint64
}

// NewManager builds a location manager backed by defsManager (for
// allocating the defs.Location definition each new Location wraps).
func NewManager(defsManager *defs.Manager, policy ReusePolicy, hooks Hooks) *Manager {
	return &Manager{
		defsManager: defsManager,
		policy:      policy,
		hooks:       hooks,
		byTID:       make(map[int]*Location),
	}
}

func tid() int { return unix.Gettid() }

// Current returns the location installed in the calling OS thread's TLS
// slot, or nil if none has been acquired yet.
func (m *Manager) Current() *Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byTID[tid()]
}

// Acquire installs a location for the calling OS thread, reusing a
// deactivated one per m.policy when possible, else creating a fresh
// one (spec §4.4 creation sequence).
func (m *Manager) Acquire(group defs.Handle, locType defs.LocationType, name defs.Handle, paradigm string, startRoutine uintptr) *Location {
	if loc := m.Current(); loc != nil {
		return loc
	}

	if m.policy != ReuseNone {
		if loc := m.findReusable(paradigm, startRoutine); loc != nil {
			loc.reactivate()
			m.install(loc)
			if m.hooks.OnActivate != nil {
				m.hooks.OnActivate(loc)
			}
			return loc
		}
	}

	handle := m.defsManager.NewLocation(group, locType, name, paradigm)
	id := m.nextID.Add(1) - 1
	loc := New(handle, id, paradigm, startRoutine)

	m.mu.Lock()
	m.locations = append(m.locations, loc)
	m.mu.Unlock()

	m.install(loc)
	if m.hooks.OnNewLocation != nil {
		m.hooks.OnNewLocation(loc)
	}
	if m.hooks.OnActivate != nil {
		m.hooks.OnActivate(loc)
	}
	return loc
}

func (m *Manager) findReusable(paradigm string, startRoutine uintptr) *Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations {
		if loc.isActive() || loc.Paradigm != paradigm {
			continue
		}
		if m.policy == ReuseByParadigmAndRoutine && loc.StartRoutine != startRoutine {
			continue
		}
		return loc
	}
	return nil
}

func (m *Manager) install(loc *Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTID[tid()] = loc
}

// Release deactivates the calling thread's current location and clears
// its TLS installation, leaving it a candidate for reuse.
func (m *Manager) Release() {
	m.mu.Lock()
	loc := m.byTID[tid()]
	delete(m.byTID, tid())
	m.mu.Unlock()
	if loc != nil {
		loc.Deactivate()
	}
}

// All returns every location ever created, dense by LocalID, for
// write-out at Finalize.
func (m *Manager) All() []*Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Location, len(m.locations))
	copy(out, m.locations)
	return out
}
