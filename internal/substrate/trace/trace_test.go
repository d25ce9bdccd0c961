package trace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/score-p/scorep-measurement-core/internal/defs"
	"github.com/score-p/scorep-measurement-core/internal/dispatch"
)

func setupRoot(t *testing.T) string {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "traces"), 0o755))
	return root
}

func TestEnterExitAppendRecordsToLocationFile(t *testing.T) {
	root := setupRoot(t)
	s := New(root)
	sub := s.AsDispatchSubstrate()

	sub.Callbacks[dispatch.EventEnter](dispatch.Event{LocationID: 5, Payload: defs.Handle(11)})
	sub.Callbacks[dispatch.EventExit](dispatch.Event{LocationID: 5, Payload: defs.Handle(11)})

	assert.Equal(t, uint64(2), s.EventCount(5))
	require.NoError(t, s.Close())

	info, err := os.Stat(filepath.Join(root, "traces", "5.trace"))
	require.NoError(t, err)
	assert.Equal(t, int64(18), info.Size())
}

func TestSeparateLocationsGetSeparateFiles(t *testing.T) {
	root := setupRoot(t)
	s := New(root)
	sub := s.AsDispatchSubstrate()

	sub.Callbacks[dispatch.EventEnter](dispatch.Event{LocationID: 1, Payload: defs.Handle(1)})
	sub.Callbacks[dispatch.EventEnter](dispatch.Event{LocationID: 2, Payload: defs.Handle(1)})
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(root, "traces", "1.trace"))
	assert.FileExists(t, filepath.Join(root, "traces", "2.trace"))
}

func TestEventCountIsZeroForUnknownLocation(t *testing.T) {
	s := New(setupRoot(t))
	assert.Equal(t, uint64(0), s.EventCount(42))
}

func TestTraceSubstrateDoesNotReceiveWhileOff(t *testing.T) {
	s := New(setupRoot(t))
	assert.False(t, s.AsDispatchSubstrate().ReceiveWhileOff)
}
