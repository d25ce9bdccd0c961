package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/score-p/scorep-measurement-core/internal/defs"
	"github.com/score-p/scorep-measurement-core/internal/dispatch"
)

func TestEnterIncrementsVisitsPerRegionAndLocation(t *testing.T) {
	s := New(nil)
	sub := s.AsDispatchSubstrate()

	sub.Callbacks[dispatch.EventEnter](dispatch.Event{LocationID: 1, Payload: defs.Handle(7)})
	sub.Callbacks[dispatch.EventEnter](dispatch.Event{LocationID: 1, Payload: defs.Handle(7)})
	sub.Callbacks[dispatch.EventEnter](dispatch.Event{LocationID: 2, Payload: defs.Handle(7)})

	records := s.Records()
	assert.Len(t, records, 2)

	var loc1, loc2 *Record
	for i := range records {
		switch records[i].Location {
		case 1:
			loc1 = &records[i]
		case 2:
			loc2 = &records[i]
		}
	}
	require.NotNil(t, loc1)
	require.NotNil(t, loc2)
	assert.Equal(t, int64(2), loc1.Visits)
	assert.Equal(t, int64(1), loc2.Visits)
}

func TestProfileSubstrateReceivesWhileOff(t *testing.T) {
	s := New(nil)
	assert.True(t, s.AsDispatchSubstrate().ReceiveWhileOff)
}

func TestFlushWritesReadableAvroOCF(t *testing.T) {
	s := New(nil)
	s.onEnter(defs.Handle(3), 1)
	s.onEnter(defs.Handle(3), 1)

	path := filepath.Join(t.TempDir(), "scorep.cubex")
	require.NoError(t, s.Flush(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	reader, err := goavro.NewOCFReader(f)
	require.NoError(t, err)

	var count int
	for reader.Scan() {
		rec, err := reader.Read()
		require.NoError(t, err)
		m, ok := rec.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, int64(3), m["region"])
		assert.Equal(t, int64(2), m["visits"])
		count++
	}
	assert.Equal(t, 1, count)
}

func TestHoistPhasesFlagsPhaseRegionsAndLeavesOthersAlone(t *testing.T) {
	dm := defs.NewManager()
	name := dm.InternString("solve")
	phaseRegion := dm.NewRegion(name, name, defs.Invalid, 0, 0, "user", defs.RegionRoleDynamicLoopPhase, 0)
	plainRegion := dm.NewRegion(dm.InternString("helper"), dm.InternString("helper"), defs.Invalid, 0, 0, "user", "", 0)

	s := New(dm)
	s.onEnter(phaseRegion, 1)
	s.onEnter(plainRegion, 1)

	byRegion := make(map[defs.Handle]Record)
	for _, r := range s.Records() {
		byRegion[r.Region] = r
	}
	assert.True(t, byRegion[phaseRegion].IsPhase)
	assert.False(t, byRegion[plainRegion].IsPhase)
}
