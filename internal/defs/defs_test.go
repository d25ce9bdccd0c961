package defs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/score-p/scorep-measurement-core/internal/gate"
)

func TestInternStringDeduplicates(t *testing.T) {
	m := NewManager()
	base := m.Count(KindString) // NewManager pre-interns the unknown string
	h1 := m.InternString("main")
	h2 := m.InternString("main")
	h3 := m.InternString("worker")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Equal(t, base+2, m.Count(KindString))
	assert.Equal(t, "main", m.String(h1))
}

func TestInternStringInterleaved(t *testing.T) {
	m := NewManager()
	base := m.Count(KindString) // NewManager pre-interns the unknown string
	a := m.InternString("alpha")
	b := m.InternString("beta")
	assert.Equal(t, a, m.InternString("alpha"))
	assert.Equal(t, b, m.InternString("beta"))
	assert.Equal(t, a, m.InternString("alpha"))
	assert.Equal(t, base+2, m.Count(KindString))
}

func TestRegionGetOrInsertIsIdempotent(t *testing.T) {
	m := NewManager()
	base := m.Count(KindRegion) // NewManager pre-allocates the unknown region
	name := m.InternString("compute")
	file := m.NewSourceFile(m.InternString("main.c"))

	r1 := m.NewRegion(name, name, file, 10, 20, "user", RegionRole("function"), 0)
	r2 := m.NewRegion(name, name, file, 10, 20, "user", RegionRole("function"), 0)
	assert.Equal(t, r1, r2)
	assert.Equal(t, base+1, m.Count(KindRegion))

	r3 := m.NewRegion(name, name, file, 10, 21, "user", RegionRole("function"), 0)
	assert.NotEqual(t, r1, r3)
}

func TestLocationsAreNeverDeduplicated(t *testing.T) {
	m := NewManager()
	group := m.NewLocationGroup(Invalid, LocationGroupProcess, m.InternString("proc 0"))
	name := m.InternString("master thread")
	l1 := m.NewLocation(group, LocationCPUThread, name, "pthread")
	l2 := m.NewLocation(group, LocationCPUThread, name, "pthread")
	assert.NotEqual(t, l1, l2)
	assert.Equal(t, 2, m.Count(KindLocation))
}

func TestCallingContextRootFirst(t *testing.T) {
	m := NewManager()
	region := m.NewRegion(m.InternString("main"), m.InternString("main"), Invalid, 0, 0, "user", "", 0)
	loc := m.InternString("main.c:10")

	root := m.NewCallingContext(region, loc, Invalid)
	child := m.NewCallingContext(region, loc, root)
	assert.NotEqual(t, root, child)
	assert.Equal(t, root, m.CallingContext(child).Parent)
}

func TestUnifyMergesTwoRanksAndPreservesHandleMapping(t *testing.T) {
	rank0 := NewManager()
	rank1 := NewManager()

	s0 := rank0.InternString("shared")
	own0 := rank0.InternString("only-rank-0")
	file0 := rank0.NewSourceFile(rank0.InternString("a.c"))
	region0 := rank0.NewRegion(s0, s0, file0, 1, 5, "user", "function", 0)

	s1 := rank1.InternString("shared")
	file1 := rank1.NewSourceFile(rank1.InternString("a.c"))
	region1 := rank1.NewRegion(s1, s1, file1, 1, 5, "user", "function", 0)

	unified, mapping := Unify([]*Manager{rank0, rank1})

	// The string "shared" unifies to one handle regardless of rank.
	u0 := mapping[0].Map(KindString, s0)
	u1 := mapping[1].Map(KindString, s1)
	assert.Equal(t, u0, u1)
	assert.Equal(t, "shared", unified.String(u0))

	// "only-rank-0" is still present, but has no counterpart on rank 1.
	assert.NotEqual(t, Invalid, mapping[0].Map(KindString, own0))

	// The identical regions on both ranks unify to the same handle.
	ur0 := mapping[0].Map(KindRegion, region0)
	ur1 := mapping[1].Map(KindRegion, region1)
	assert.Equal(t, ur0, ur1)
	// One region beyond the pre-allocated unknown region every manager has.
	assert.Equal(t, NewManager().Count(KindRegion)+1, unified.Count(KindRegion))
}

func TestUnifyIsIdempotentOnARepeatedCall(t *testing.T) {
	local := NewManager()
	local.InternString("x")
	u1, _ := Unify([]*Manager{local})
	u2, _ := Unify([]*Manager{local})
	assert.Equal(t, u1.Count(KindString), u2.Count(KindString))
}

func TestSignalContextHitReturnsExistingHandleWithoutInserting(t *testing.T) {
	m := NewManager()
	known := m.InternString("already-registered")
	before := m.Count(KindString)

	gate.MarkSignalContext(true)
	defer gate.MarkSignalContext(false)

	got := m.InternString("already-registered")
	assert.Equal(t, known, got)
	assert.Equal(t, before, m.Count(KindString))
}

func TestSignalContextMissDegradesToUnknownHandle(t *testing.T) {
	m := NewManager()
	before := m.Count(KindString)

	gate.MarkSignalContext(true)
	defer gate.MarkSignalContext(false)

	got := m.InternString("never-seen-before")
	assert.Equal(t, m.UnknownString(), got)
	assert.Equal(t, before, m.Count(KindString))
}

func TestSignalContextDegradesRegionAndCallingContextAndSourceFileAndSystemTreeNode(t *testing.T) {
	m := NewManager()
	name := m.InternString("compute")
	file := m.NewSourceFile(name)
	region := m.NewRegion(name, name, file, 1, 2, "user", RegionRole("function"), 0)
	otherName := m.InternString("other.c")
	cctxBefore := m.Count(KindCallingContext)
	regionBefore := m.Count(KindRegion)
	fileBefore := m.Count(KindSourceFile)
	nodeBefore := m.Count(KindSystemTreeNode)

	gate.MarkSignalContext(true)
	defer gate.MarkSignalContext(false)

	// Hits on already-registered definitions still resolve normally.
	assert.Equal(t, region, m.NewRegion(name, name, file, 1, 2, "user", RegionRole("function"), 0))
	assert.Equal(t, file, m.NewSourceFile(name))

	// Misses degrade to the pre-allocated unknown handles instead of inserting.
	assert.Equal(t, m.UnknownRegion(), m.NewRegion(name, name, file, 99, 100, "user", RegionRole("function"), 0))
	assert.Equal(t, m.UnknownCallingContext(), m.NewCallingContext(region, name, Invalid))
	assert.Equal(t, m.UnknownSourceFile(), m.NewSourceFile(otherName))
	assert.Equal(t, m.UnknownSystemTreeNode(), m.NewSystemTreeNode(Invalid, name, name, 1))

	assert.Equal(t, regionBefore, m.Count(KindRegion))
	assert.Equal(t, cctxBefore, m.Count(KindCallingContext))
	assert.Equal(t, fileBefore, m.Count(KindSourceFile))
	assert.Equal(t, nodeBefore, m.Count(KindSystemTreeNode))
}

func TestPayloadIsStableAcrossRepeatedLookups(t *testing.T) {
	m := NewManager()
	h := m.InternString("region-payload-owner")
	p1 := m.GetPayload(KindRegion, h, 32)
	p1[0] = 0xAB
	p2 := m.GetPayload(KindRegion, h, 32)
	assert.Equal(t, byte(0xAB), p2[0])
}
