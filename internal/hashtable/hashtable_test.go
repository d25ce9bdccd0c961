package hashtable

import (
	"sync"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
)

func hashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

func TestChainingGetOrInsertDeduplicates(t *testing.T) {
	c := NewChaining[string]()

	i1, isNew1 := c.GetOrInsert(hashString("foo"), func(v string) bool { return v == "foo" }, func() string { return "foo" })
	assert.True(t, isNew1)

	i2, isNew2 := c.GetOrInsert(hashString("foo"), func(v string) bool { return v == "foo" }, func() string { return "foo" })
	assert.False(t, isNew2)
	assert.Equal(t, i1, i2)
	assert.Equal(t, 1, c.Len())
}

func TestChainingInterleavedStrings(t *testing.T) {
	c := NewChaining[string]()
	insert := func(s string) int {
		i, _ := c.GetOrInsert(hashString(s), func(v string) bool { return v == s }, func() string { return s })
		return i
	}

	hFoo := insert("foo")
	hBar := insert("bar")
	assert.Equal(t, hFoo, insert("foo"))
	assert.Equal(t, hBar, insert("bar"))
	assert.Equal(t, hFoo, insert("foo"))
	assert.Equal(t, hBar, insert("bar"))

	assert.Equal(t, 2, c.Len())
	assert.NotEqual(t, hFoo, hBar)
}

func TestChainingConcurrentInsertGrowsCountByAtMostOne(t *testing.T) {
	c := NewChaining[string]()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrInsert(hashString("shared"), func(v string) bool { return v == "shared" }, func() string { return "shared" })
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

func TestChainingForEachVisitsInsertionOrder(t *testing.T) {
	c := NewChaining[int]()
	for i := 0; i < 5; i++ {
		c.GetOrInsert(uint64(i), func(v int) bool { return v == i }, func() int { return i })
	}
	var seen []int
	c.ForEach(func(idx int, v *int) { seen = append(seen, *v) })
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
}

func TestMonotonicInsertLookup(t *testing.T) {
	m := NewMonotonic[uint64, uint32](4, func(k uint64) uint64 { return k })
	m.Insert(42, 100)
	v, ok := m.Lookup(42)
	assert.True(t, ok)
	assert.Equal(t, uint32(100), v)

	_, ok = m.Lookup(7)
	assert.False(t, ok)
}

func TestMonotonicLatestInsertWinsOnReusedKey(t *testing.T) {
	m := NewMonotonic[uint64, uint32](2, func(k uint64) uint64 { return k })
	m.Insert(1, 10)
	m.Insert(1, 20)
	v, ok := m.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, uint32(20), v)
}
