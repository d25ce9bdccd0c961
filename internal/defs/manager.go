package defs

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/score-p/scorep-measurement-core/internal/arena"
	"github.com/score-p/scorep-measurement-core/internal/gate"
	"github.com/score-p/scorep-measurement-core/internal/hashtable"
)

// Manager owns one definition registry: one Chaining table per kind,
// plus the arena backing variable-length payloads (strings, member
// lists). A process runs one local Manager per rank; unification (see
// unify.go) merges several local Managers into one unified Manager.
type Manager struct {
	Arena *arena.Arena

	strings             *hashtable.Chaining[StringRecord]
	systemTreeNodes     *hashtable.Chaining[SystemTreeNodeRecord]
	locationGroups      *hashtable.Chaining[LocationGroupRecord]
	locations           *hashtable.Chaining[LocationRecord]
	sourceFiles         *hashtable.Chaining[SourceFileRecord]
	regions             *hashtable.Chaining[RegionRecord]
	groups              *hashtable.Chaining[GroupLikeRecord]
	comms               *hashtable.Chaining[GroupLikeRecord]
	rmaWins             *hashtable.Chaining[GroupLikeRecord]
	metrics             *hashtable.Chaining[MetricRecord]
	samplingSets        *hashtable.Chaining[MetricRecord]
	parameters          *hashtable.Chaining[ParameterRecord]
	attributes          *hashtable.Chaining[AttributeRecord]
	callingContexts     *hashtable.Chaining[CallingContextRecord]
	interruptGenerators *hashtable.Chaining[InterruptGeneratorRecord]

	payloadMu sync.Mutex
	payloads  map[payloadKey][]byte

	// Pre-allocated degrade-to handles (spec §5): a signal-context
	// caller that would need to register a new definition gets one of
	// these instead of ever taking a writer lock.
	unknownString         Handle
	unknownSourceFile     Handle
	unknownRegion         Handle
	unknownCallingContext Handle
	unknownSystemTreeNode Handle
}

type payloadKey struct {
	kind   Kind
	handle Handle
}

// NewManager builds an empty registry backed by its own arena (spec
// §4.9: definitions and their payloads are arena-allocated, never
// individually freed).
func NewManager() *Manager {
	m := &Manager{
		Arena:               arena.New(int(arena.DefaultDefChunkBytes)),
		strings:             hashtable.NewChaining[StringRecord](),
		systemTreeNodes:     hashtable.NewChaining[SystemTreeNodeRecord](),
		locationGroups:      hashtable.NewChaining[LocationGroupRecord](),
		locations:           hashtable.NewChaining[LocationRecord](),
		sourceFiles:         hashtable.NewChaining[SourceFileRecord](),
		regions:             hashtable.NewChaining[RegionRecord](),
		groups:              hashtable.NewChaining[GroupLikeRecord](),
		comms:               hashtable.NewChaining[GroupLikeRecord](),
		rmaWins:             hashtable.NewChaining[GroupLikeRecord](),
		metrics:             hashtable.NewChaining[MetricRecord](),
		samplingSets:        hashtable.NewChaining[MetricRecord](),
		parameters:          hashtable.NewChaining[ParameterRecord](),
		attributes:          hashtable.NewChaining[AttributeRecord](),
		callingContexts:     hashtable.NewChaining[CallingContextRecord](),
		interruptGenerators: hashtable.NewChaining[InterruptGeneratorRecord](),
		payloads:            make(map[payloadKey][]byte),
	}

	// Built while constructing the manager, never from a signal handler,
	// so these go through the normal insertion path.
	m.unknownString = m.InternString("<unknown>")
	m.unknownSourceFile = m.NewSourceFile(m.unknownString)
	m.unknownRegion = m.NewRegion(m.unknownString, m.unknownString, Invalid, 0, 0, "", RegionRole("unknown"), 0)
	m.unknownCallingContext = m.NewCallingContext(m.unknownRegion, Invalid, Invalid)
	m.unknownSystemTreeNode = m.NewSystemTreeNode(Invalid, m.unknownString, m.unknownString, 0)

	return m
}

// UnknownString, UnknownSourceFile, UnknownRegion, UnknownCallingContext,
// and UnknownSystemTreeNode are the pre-allocated degrade-to handles a
// signal-context caller receives instead of registering a new
// definition (spec §5).
func (m *Manager) UnknownString() Handle         { return m.unknownString }
func (m *Manager) UnknownSourceFile() Handle     { return m.unknownSourceFile }
func (m *Manager) UnknownRegion() Handle         { return m.unknownRegion }
func (m *Manager) UnknownCallingContext() Handle { return m.unknownCallingContext }
func (m *Manager) UnknownSystemTreeNode() Handle { return m.unknownSystemTreeNode }

// getOrInsertSignalSafe is GetOrInsert's signal-context-aware wrapper
// (spec §5): outside a signal handler it behaves exactly like
// GetOrInsert. Inside one, it never takes the writer lock — a hit on
// the read-only probe returns the existing handle, a miss degrades to
// unknown rather than registering a new definition.
func getOrInsertSignalSafe[T any](t *hashtable.Chaining[T], hash uint64, equal func(T) bool, create func() T, unknown Handle) Handle {
	if gate.InSignalContext() {
		if idx, ok := t.Find(hash, equal); ok {
			return handleFromIdx(idx)
		}
		return unknown
	}
	idx, _ := t.GetOrInsert(hash, equal, create)
	return handleFromIdx(idx)
}

func hashHandles(seed uint64, handles ...Handle) uint64 {
	var buf [4]byte
	d := xxhash.New()
	var seedBuf [8]byte
	binary.LittleEndian.PutUint64(seedBuf[:], seed)
	d.Write(seedBuf[:])
	for _, h := range handles {
		binary.LittleEndian.PutUint32(buf[:], uint32(h))
		d.Write(buf[:])
	}
	return d.Sum64()
}

// InternString deduplicates s, copying its bytes into the arena on a
// miss (spec §4.3's canonical get-or-insert example). Called from a
// signal context for a string that was never interned before, it
// degrades to UnknownString instead of registering a new one (spec §5).
func (m *Manager) InternString(s string) Handle {
	hash := xxhash.Sum64String(s)
	equal := func(r StringRecord) bool { return string(r.Bytes) == s }
	create := func() StringRecord {
		buf := m.Arena.AllocCacheline(len(s))
		n := copy(buf, s)
		return StringRecord{Bytes: buf[:n]}
	}
	return getOrInsertSignalSafe(m.strings, hash, equal, create, m.unknownString)
}

// String returns the bytes interned at h, or "" if h is invalid. The
// unknown handle yields "<unknown>".
func (m *Manager) String(h Handle) string {
	if h == Invalid {
		return ""
	}
	return m.strings.At(idxFromHandle(h)).String()
}

func (m *Manager) NewSystemTreeNode(parent, class, name Handle, domain uint64) Handle {
	hash := hashHandles(uint64(KindSystemTreeNode), parent, class, name, Handle(domain))
	equal := func(r SystemTreeNodeRecord) bool {
		return r.Parent == parent && r.Class == class && r.Name == name && r.Domain == domain
	}
	create := func() SystemTreeNodeRecord {
		return SystemTreeNodeRecord{Parent: parent, Class: class, Name: name, Domain: domain}
	}
	return getOrInsertSignalSafe(m.systemTreeNodes, hash, equal, create, m.unknownSystemTreeNode)
}

func (m *Manager) SystemTreeNode(h Handle) SystemTreeNodeRecord {
	return m.systemTreeNodes.At(idxFromHandle(h))
}

func (m *Manager) NewLocationGroup(parent Handle, typ LocationGroupType, name Handle) Handle {
	hash := hashHandles(uint64(KindLocationGroup), parent, Handle(typ), name)
	idx, _ := m.locationGroups.GetOrInsert(hash,
		func(r LocationGroupRecord) bool { return r.Parent == parent && r.Type == typ && r.Name == name },
		func() LocationGroupRecord { return LocationGroupRecord{Parent: parent, Type: typ, Name: name} })
	return handleFromIdx(idx)
}

func (m *Manager) LocationGroup(h Handle) LocationGroupRecord {
	return m.locationGroups.At(idxFromHandle(h))
}

// NewLocation always appends a fresh location (spec Open Question (a)
// resolves in favor of "each call creates a new Location", matching
// the common case of one location per OS thread ever observed).
func (m *Manager) NewLocation(group Handle, typ LocationType, name Handle, paradigm string) Handle {
	rec := LocationRecord{Group: group, Type: typ, Name: name, Paradigm: paradigm}
	hash := hashHandles(uint64(KindLocation), group, Handle(typ), name)
	// Locations are never deduplicated (each represents a distinct OS
	// thread/stream instance): the equal func always reports "no
	// match", forcing GetOrInsert's create path on every call.
	i, _ := m.locations.GetOrInsert(hash, func(LocationRecord) bool { return false }, func() LocationRecord { return rec })
	return handleFromIdx(i)
}

func (m *Manager) Location(h Handle) LocationRecord {
	return m.locations.At(idxFromHandle(h))
}

func (m *Manager) NewSourceFile(name Handle) Handle {
	hash := hashHandles(uint64(KindSourceFile), name)
	equal := func(r SourceFileRecord) bool { return r.Name == name }
	create := func() SourceFileRecord { return SourceFileRecord{Name: name} }
	return getOrInsertSignalSafe(m.sourceFiles, hash, equal, create, m.unknownSourceFile)
}

func (m *Manager) SourceFile(h Handle) SourceFileRecord {
	return m.sourceFiles.At(idxFromHandle(h))
}

func (m *Manager) NewRegion(name, canonicalName, file Handle, beginLine, endLine uint32, paradigm string, role RegionRole, flags RegionFlag) Handle {
	hash := hashHandles(uint64(KindRegion), name, canonicalName, file, Handle(beginLine), Handle(endLine))
	equal := func(r RegionRecord) bool {
		return r.Name == name && r.CanonicalName == canonicalName && r.File == file &&
			r.BeginLine == beginLine && r.EndLine == endLine && r.Paradigm == paradigm
	}
	create := func() RegionRecord {
		return RegionRecord{
			Name: name, CanonicalName: canonicalName, File: file,
			BeginLine: beginLine, EndLine: endLine, Paradigm: paradigm, Role: role, Flags: flags,
		}
	}
	return getOrInsertSignalSafe(m.regions, hash, equal, create, m.unknownRegion)
}

func (m *Manager) Region(h Handle) RegionRecord {
	return m.regions.At(idxFromHandle(h))
}

func groupLikeTable(m *Manager, kind Kind) *hashtable.Chaining[GroupLikeRecord] {
	switch kind {
	case KindGroup:
		return m.groups
	case KindComm:
		return m.comms
	case KindRmaWin:
		return m.rmaWins
	default:
		return nil
	}
}

// NewGroupLike backs NewGroup/NewComm/NewRmaWin: spec §3 gives Group,
// Comm, and RmaWin the same attribute shape, so one implementation
// serves all three, keyed by kind.
func (m *Manager) NewGroupLike(kind Kind, members []Handle, parent Handle, flags uint32) Handle {
	t := groupLikeTable(m, kind)
	hash := hashHandles(uint64(kind), append(append([]Handle{}, members...), parent, Handle(flags))...)
	idx, _ := t.GetOrInsert(hash,
		func(r GroupLikeRecord) bool { return sameMembers(r.Members, members) && r.Parent == parent && r.Flags == flags },
		func() GroupLikeRecord {
			cp := make([]Handle, len(members))
			copy(cp, members)
			return GroupLikeRecord{Members: cp, Parent: parent, Flags: flags}
		})
	return handleFromIdx(idx)
}

func (m *Manager) GroupLike(kind Kind, h Handle) GroupLikeRecord {
	return groupLikeTable(m, kind).At(idxFromHandle(h))
}

func sameMembers(a, b []Handle) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func metricTable(m *Manager, kind Kind) *hashtable.Chaining[MetricRecord] {
	if kind == KindSamplingSet {
		return m.samplingSets
	}
	return m.metrics
}

// NewMetricLike backs NewMetric/NewSamplingSet: spec §3 gives both the
// same name/unit/type/base/exponent/mode/member-list shape.
func (m *Manager) NewMetricLike(kind Kind, name, unit Handle, typ MetricValueType, base uint32, exponent int32, mode MetricMode, members []Handle) Handle {
	t := metricTable(m, kind)
	hash := hashHandles(uint64(kind), append([]Handle{name, unit, Handle(base), Handle(exponent), Handle(len(mode))}, members...)...)
	idx, _ := t.GetOrInsert(hash,
		func(r MetricRecord) bool {
			return r.Name == name && r.Unit == unit && r.Type == typ && r.Base == base &&
				r.Exponent == exponent && r.Mode == mode && sameMembers(r.Members, members)
		},
		func() MetricRecord {
			cp := make([]Handle, len(members))
			copy(cp, members)
			return MetricRecord{Name: name, Unit: unit, Type: typ, Base: base, Exponent: exponent, Mode: mode, Members: cp}
		})
	return handleFromIdx(idx)
}

func (m *Manager) MetricLike(kind Kind, h Handle) MetricRecord {
	return metricTable(m, kind).At(idxFromHandle(h))
}

func (m *Manager) NewParameter(name Handle, typ ParameterType) Handle {
	hash := hashHandles(uint64(KindParameter), name, Handle(typ))
	idx, _ := m.parameters.GetOrInsert(hash,
		func(r ParameterRecord) bool { return r.Name == name && r.Type == typ },
		func() ParameterRecord { return ParameterRecord{Name: name, Type: typ} })
	return handleFromIdx(idx)
}

func (m *Manager) Parameter(h Handle) ParameterRecord {
	return m.parameters.At(idxFromHandle(h))
}

func (m *Manager) NewAttribute(name, description Handle, typ string) Handle {
	hash := hashHandles(uint64(KindAttribute), name, description)
	idx, _ := m.attributes.GetOrInsert(hash,
		func(r AttributeRecord) bool { return r.Name == name && r.Description == description && r.Type == typ },
		func() AttributeRecord { return AttributeRecord{Name: name, Description: description, Type: typ} })
	return handleFromIdx(idx)
}

func (m *Manager) Attribute(h Handle) AttributeRecord {
	return m.attributes.At(idxFromHandle(h))
}

// NewCallingContext appends a node to the CCT; parent must already
// exist (Invalid for a root), matching the root-first growth spec
// §4.4 describes for the per-thread calling-context stack.
func (m *Manager) NewCallingContext(region, sourceLocation, parent Handle) Handle {
	hash := hashHandles(uint64(KindCallingContext), region, sourceLocation, parent)
	equal := func(r CallingContextRecord) bool {
		return r.Region == region && r.SourceLocation == sourceLocation && r.Parent == parent
	}
	create := func() CallingContextRecord {
		return CallingContextRecord{Region: region, SourceLocation: sourceLocation, Parent: parent}
	}
	return getOrInsertSignalSafe(m.callingContexts, hash, equal, create, m.unknownCallingContext)
}

func (m *Manager) CallingContext(h Handle) CallingContextRecord {
	return m.callingContexts.At(idxFromHandle(h))
}

func (m *Manager) NewInterruptGenerator(name Handle, mode MetricMode, base uint32, exponent int32, period uint64) Handle {
	hash := hashHandles(uint64(KindInterruptGenerator), name, Handle(base), Handle(exponent), Handle(period))
	idx, _ := m.interruptGenerators.GetOrInsert(hash,
		func(r InterruptGeneratorRecord) bool {
			return r.Name == name && r.Mode == mode && r.Base == base && r.Exponent == exponent && r.Period == period
		},
		func() InterruptGeneratorRecord {
			return InterruptGeneratorRecord{Name: name, Mode: mode, Base: base, Exponent: exponent, Period: period}
		})
	return handleFromIdx(idx)
}

func (m *Manager) InterruptGenerator(h Handle) InterruptGeneratorRecord {
	return m.interruptGenerators.At(idxFromHandle(h))
}

// Count reports how many definitions of kind exist, for write-out and tests.
func (m *Manager) Count(kind Kind) int {
	switch kind {
	case KindString:
		return m.strings.Len()
	case KindSystemTreeNode:
		return m.systemTreeNodes.Len()
	case KindLocationGroup:
		return m.locationGroups.Len()
	case KindLocation:
		return m.locations.Len()
	case KindSourceFile:
		return m.sourceFiles.Len()
	case KindRegion:
		return m.regions.Len()
	case KindGroup:
		return m.groups.Len()
	case KindComm:
		return m.comms.Len()
	case KindRmaWin:
		return m.rmaWins.Len()
	case KindMetric:
		return m.metrics.Len()
	case KindSamplingSet:
		return m.samplingSets.Len()
	case KindParameter:
		return m.parameters.Len()
	case KindAttribute:
		return m.attributes.Len()
	case KindCallingContext:
		return m.callingContexts.Len()
	case KindInterruptGenerator:
		return m.interruptGenerators.Len()
	default:
		return 0
	}
}

// GetPayload returns the arena-backed payload byte slice co-allocated
// with a definition for opaque per-substrate data (spec §4.9), lazily
// allocating size bytes on first access.
func (m *Manager) GetPayload(kind Kind, h Handle, size int) []byte {
	key := payloadKey{kind: kind, handle: h}
	m.payloadMu.Lock()
	defer m.payloadMu.Unlock()
	if buf, ok := m.payloads[key]; ok {
		return buf
	}
	buf := m.Arena.AllocCacheline(size)
	m.payloads[key] = buf
	return buf
}
