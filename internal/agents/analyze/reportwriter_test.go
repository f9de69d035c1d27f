package analyze

import (
	"os"
	"testing"

	"logforensics/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTraceReportIncludesGeneratedAndCompletedLines(t *testing.T) {
	w, err := NewReportWriter(t.TempDir())
	require.NoError(t, err)

	bundle := types.TraceBundle{
		TraceID:      "t-1",
		Entries:      []types.LogEntry{{Message: "failed", SourceFile: "a.log"}},
		TotalEntries: 1,
		SourceFiles:  []string{"a.log"},
	}
	analysis := types.TraceAnalysis{RelevanceScore: 80, KeyFinding: "timeout", ConfidenceLevel: "HIGH"}

	path, err := w.WriteTraceReport("req-1", types.SearchParameters{TimeFrame: "2025-07-24"}, bundle, analysis)
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "Generated:")
	assert.Contains(t, string(contents), "Analysis completed:")
	assert.Contains(t, string(contents), "timeout")
}

func TestWriteMasterReportListsRankingAndFileIndex(t *testing.T) {
	w, err := NewReportWriter(t.TempDir())
	require.NoError(t, err)

	bundles := []types.TraceBundle{{TraceID: "t-1"}, {TraceID: "t-2"}}
	analyses := map[string]types.TraceAnalysis{
		"t-1": {RelevanceScore: 90, KeyFinding: "high"},
		"t-2": {RelevanceScore: 10, KeyFinding: "low", ConfidenceLevel: "LOW"},
	}
	ranked := RankByRelevance(analyses)

	path, err := w.WriteMasterReport("req-2", types.SearchParameters{}, "dispute text", bundles, analyses, ranked, types.NeutralQualityAssessment())
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "1. t-1")
	assert.Contains(t, string(contents), "t-2 ->")
	assert.Contains(t, string(contents), "Gaps")
}

func TestTraceReportPathSanitizesTraceID(t *testing.T) {
	w, err := NewReportWriter(t.TempDir())
	require.NoError(t, err)
	path := w.TraceReportPath("req", "a/b c")
	assert.Contains(t, path, "trace_a_b_c.txt")
}
