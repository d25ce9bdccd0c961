package location

import (
	"runtime"
	"testing"

	"github.com/score-p/scorep-measurement-core/internal/defs"
	"github.com/stretchr/testify/assert"
)

func pinThread(t *testing.T) {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)
}

func TestEnterExitMaintainsStackHash(t *testing.T) {
	loc := New(defs.Handle(1), 0, "pthread", 0)
	assert.Equal(t, 0, loc.StackDepth())
	assert.Equal(t, uint32(0), loc.StackHash())

	loc.EnterRegion(defs.Handle(10))
	h1 := loc.StackHash()
	assert.Equal(t, 1, loc.StackDepth())

	loc.EnterRegion(defs.Handle(20))
	h2 := loc.StackHash()
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, loc.StackDepth())

	loc.ExitRegion(defs.Handle(20), false)
	assert.Equal(t, h1, loc.StackHash())
	assert.Equal(t, 1, loc.StackDepth())

	loc.ExitRegion(defs.Handle(10), false)
	assert.Equal(t, uint32(0), loc.StackHash())
	assert.Equal(t, 0, loc.StackDepth())
}

func TestExitRegionTolerantMultiPop(t *testing.T) {
	loc := New(defs.Handle(1), 0, "pthread", 0)
	loc.EnterRegion(defs.Handle(1))
	loc.EnterRegion(defs.Handle(2))
	loc.EnterRegion(defs.Handle(3))

	loc.ExitRegion(defs.Handle(1), true) // implicit multi-pop down to and including region 1
	assert.Equal(t, 0, loc.StackDepth())
}

func TestExitAllRegionsResetsHash(t *testing.T) {
	loc := New(defs.Handle(1), 0, "pthread", 0)
	loc.EnterRegion(defs.Handle(5))
	loc.EnterRegion(defs.Handle(6))
	loc.ExitAllRegions()
	assert.Equal(t, 0, loc.StackDepth())
	assert.Equal(t, uint32(0), loc.StackHash())
}

func TestTaskSwitchIsolatesStacks(t *testing.T) {
	loc := New(defs.Handle(1), 0, "pthread", 0)
	loc.EnterRegion(defs.Handle(1))

	free := &taskFreeList{}
	task := loc.CreateTask(1, 1, free)
	prev := loc.SwitchTask(task)
	assert.Nil(t, prev)
	assert.Equal(t, 0, loc.StackDepth())

	loc.EnterRegion(defs.Handle(99))
	assert.Equal(t, 1, loc.StackDepth())

	loc.SwitchTask(nil)
	assert.Equal(t, 1, loc.StackDepth()) // back to the location's own stack

	loc.CompleteTask(task, free)
	assert.Equal(t, 1, len(free.tasks))
}

func TestRecordMetricUpdatesInPlace(t *testing.T) {
	loc := New(defs.Handle(1), 0, "pthread", 0)
	loc.RecordMetric(defs.Handle(7), 100)
	loc.RecordMetric(defs.Handle(7), 200)
	loc.RecordMetric(defs.Handle(8), 1)
	assert.Len(t, loc.metricValues, 2)
	assert.EqualValues(t, 200, loc.metricValues[0].Value)
}

func TestManagerAcquireCreatesOneLocationPerThread(t *testing.T) {
	pinThread(t)
	dm := defs.NewManager()
	m := NewManager(dm, ReuseNone, Hooks{})
	group := dm.NewLocationGroup(defs.Invalid, defs.LocationGroupProcess, dm.InternString("proc"))
	name := dm.InternString("main thread")

	loc1 := m.Acquire(group, defs.LocationCPUThread, name, "pthread", 0)
	loc2 := m.Acquire(group, defs.LocationCPUThread, name, "pthread", 0)
	assert.Same(t, loc1, loc2) // same OS thread, second call returns the installed location
	assert.Len(t, m.All(), 1)
}

func TestManagerReuseByParadigmReattachesDeactivatedLocation(t *testing.T) {
	pinThread(t)
	dm := defs.NewManager()
	m := NewManager(dm, ReuseByParadigm, Hooks{})
	group := dm.NewLocationGroup(defs.Invalid, defs.LocationGroupProcess, dm.InternString("proc"))
	name := dm.InternString("worker")

	loc1 := m.Acquire(group, defs.LocationCPUThread, name, "omp", 0)
	m.Release()
	loc2 := m.Acquire(group, defs.LocationCPUThread, name, "omp", 0)
	assert.Same(t, loc1, loc2)
	assert.Len(t, m.All(), 1)
}
