package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRejectsUnknownToken(t *testing.T) {
	_, err := Parse(strings.NewReader("SCOREP_REGION_NAMES_BEGIN\nBOGUS foo\nSCOREP_REGION_NAMES_END\n"))
	assert.Error(t, err)
}

func TestParseRejectsUnterminatedBlock(t *testing.T) {
	_, err := Parse(strings.NewReader("SCOREP_REGION_NAMES_BEGIN\nINCLUDE foo\n"))
	assert.Error(t, err)
}

func TestParseIgnoresCommentsAndBlankLines(t *testing.T) {
	f, err := Parse(strings.NewReader(`
# a comment
SCOREP_REGION_NAMES_BEGIN
  # nested comment
  INCLUDE main

SCOREP_REGION_NAMES_END
`))
	assert.NoError(t, err)
	assert.False(t, f.MatchRegion("main", "main", ""))
	assert.True(t, f.MatchRegion("other", "other", ""))
}

// Scenario 4 from spec §8: a region block with only an EXCLUDE
// pattern "filtered*" filters matching regions out and lets
// everything else through.
func TestFilterMatchingSeedScenario(t *testing.T) {
	f, err := Parse(strings.NewReader("SCOREP_REGION_NAMES_BEGIN\nEXCLUDE filtered*\nSCOREP_REGION_NAMES_END\n"))
	assert.NoError(t, err)

	assert.True(t, f.MatchRegion("filtered1", "filtered1", ""))
	assert.False(t, f.MatchRegion("filter_not1", "filter_not1", ""))
}

func TestFileFilteringOverridesRegionBlock(t *testing.T) {
	f, err := Parse(strings.NewReader(`
SCOREP_FILE_NAMES_BEGIN
EXCLUDE *.excluded.c
SCOREP_FILE_NAMES_END
SCOREP_REGION_NAMES_BEGIN
INCLUDE main
SCOREP_REGION_NAMES_END
`))
	assert.NoError(t, err)
	// main passes the region block, but its file fails the file block,
	// so the region is filtered out regardless.
	assert.True(t, f.MatchRegion("main", "main", "bad.excluded.c"))
	assert.False(t, f.MatchRegion("main", "main", "good.c"))
}

func TestMatchEitherNameSucceeds(t *testing.T) {
	f, err := Parse(strings.NewReader("SCOREP_REGION_NAMES_BEGIN\nINCLUDE MyNamespace::*\nSCOREP_REGION_NAMES_END\n"))
	assert.NoError(t, err)
	assert.False(t, f.MatchRegion("MyNamespace::foo", "_ZN11MyNamespace3fooEv", ""))
	assert.True(t, f.MatchRegion("other", "_ZOther", ""))
}

func TestResultsAreMemoizedAndStable(t *testing.T) {
	f, err := Parse(strings.NewReader("SCOREP_REGION_NAMES_BEGIN\nEXCLUDE slow_*\nSCOREP_REGION_NAMES_END\n"))
	assert.NoError(t, err)
	first := f.MatchRegion("slow_path", "slow_path", "")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, f.MatchRegion("slow_path", "slow_path", ""))
	}
}

func TestEmptyFilterRecordsEverything(t *testing.T) {
	f := New()
	assert.False(t, f.MatchRegion("anything", "anything", "anything.c"))
	assert.False(t, f.MatchFile("anything.c"))
}
