package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocGrowsWithinPage(t *testing.T) {
	a := New(1024)
	b1 := a.Alloc(16, 8)
	b2 := a.Alloc(16, 8)
	assert.Len(t, b1, 16)
	assert.Len(t, b2, 16)
	assert.Equal(t, int64(32), a.SizeInBytes())
}

func TestAllocCrossesPageBoundary(t *testing.T) {
	a := New(32)
	a.Alloc(20, 1)
	b := a.Alloc(20, 1)
	assert.Len(t, b, 20)
	assert.Len(t, a.pages, 2, "second allocation should start a new page")
}

func TestAllocCachelineAlignment(t *testing.T) {
	a := New(4096)
	a.Alloc(3, 1)
	b := a.AllocCacheline(8)
	assert.Len(t, b, 8)
}

func TestOversizedAllocGetsDedicatedPage(t *testing.T) {
	a := New(64)
	b := a.Alloc(1000, 8)
	assert.Len(t, b, 1000)
}

func TestResetReleasesAndReusesPages(t *testing.T) {
	a := New(DefaultEventChunkBytes)
	a.Alloc(100, 8)
	assert.Equal(t, int64(100), a.SizeInBytes())
	a.Reset()
	assert.Equal(t, int64(0), a.SizeInBytes())
	assert.Empty(t, a.pages)
}

func TestMiscArenaSerializesUnderSpinMutex(t *testing.T) {
	defer ResetMisc()
	b := AllocMisc(8, 8)
	assert.Len(t, b, 8)
}
