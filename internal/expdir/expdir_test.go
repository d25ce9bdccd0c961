package expdir

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCreateMakesTracesDirectory(t *testing.T) {
	root := t.TempDir()
	d, err := Create(root, false)
	assert.NoError(t, err)
	defer d.Close()

	_, err = os.Stat(filepath.Join(root, "traces"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "profile"))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateWithProfileMakesProfileDirectory(t *testing.T) {
	root := t.TempDir()
	d, err := Create(root, true)
	assert.NoError(t, err)
	defer d.Close()

	_, err = os.Stat(filepath.Join(root, "profile"))
	assert.NoError(t, err)
}

func TestRecordAndListFiles(t *testing.T) {
	root := t.TempDir()
	d, err := Create(root, false)
	assert.NoError(t, err)
	defer d.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, d.RecordFile("traces/0.otf2", "trace", 1024, now))
	assert.NoError(t, d.RecordFile("scorep.cubex", "profile", 2048, now))

	files, err := d.Files()
	assert.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, "scorep.cubex", files[0].Path)
}

func TestWriteConfigDump(t *testing.T) {
	root := t.TempDir()
	d, err := Create(root, false)
	assert.NoError(t, err)
	defer d.Close()

	assert.NoError(t, d.WriteConfigDump("ENABLE_TRACING=false\n"))
	content, err := os.ReadFile(filepath.Join(root, "scorep.cfg"))
	assert.NoError(t, err)
	assert.Contains(t, string(content), "ENABLE_TRACING")
}
