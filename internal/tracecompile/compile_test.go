package tracecompile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileMergesAndSortsAcrossSources(t *testing.T) {
	candidates := []RawRecord{
		{TraceID: "t1", RawTimestamp: "2025-07-24T10:00:02Z", Message: "second", SourceFile: "b.log"},
		{TraceID: "t1", RawTimestamp: "2025-07-24T10:00:01Z", Message: "first", SourceFile: "a.log"},
		{TraceID: "t2", RawTimestamp: "2025-07-24T10:00:01Z", Message: "other trace", SourceFile: "a.log"},
	}

	bundle, err := Compile("t1", candidates)
	require.NoError(t, err)
	assert.Equal(t, "t1", bundle.TraceID)
	require.Len(t, bundle.Entries, 2)
	assert.Equal(t, "first", bundle.Entries[0].Message)
	assert.Equal(t, "second", bundle.Entries[1].Message)
	assert.Equal(t, []string{"a.log", "b.log"}, bundle.SourceFiles)
	assert.Equal(t, 2, bundle.TotalEntries)
	assert.Len(t, bundle.Timeline, 2)
}

func TestCompileNullTimestampSortsEarliest(t *testing.T) {
	candidates := []RawRecord{
		{TraceID: "t1", RawTimestamp: "2025-07-24T10:00:01Z", Message: "has timestamp", SourceFile: "a.log"},
		{TraceID: "t1", RawTimestamp: "unparseable", Message: "no timestamp", SourceFile: "a.log"},
	}

	bundle, err := Compile("t1", candidates)
	require.NoError(t, err)
	require.Len(t, bundle.Entries, 2)
	assert.Equal(t, "no timestamp", bundle.Entries[0].Message)
	assert.Nil(t, bundle.Entries[0].Timestamp)
}

func TestCompileNoMatchesReturnsError(t *testing.T) {
	_, err := Compile("missing", []RawRecord{{TraceID: "other"}})
	assert.Error(t, err)
}
