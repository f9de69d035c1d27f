// Package tracecompile implements C5: for each discovered trace ID, scan
// every candidate source, collect the matching entries, merge them into a
// single timestamp-sorted TraceBundle, and project a timeline. Grounded on
// spec.md section 4.5; ordering reuses types.LogEntry.Before's total order
// (null timestamps sort earliest, ties break on insertion order).
package tracecompile

import (
	"sort"

	apperrors "logforensics/internal/errors"
	"logforensics/pkg/types"
)

// RawRecord is one candidate record discovered by C3/C4 before timestamp
// lifting and ordering: a single line (or XML row, or JSON-stream value)
// attributed to a trace ID and a source file.
type RawRecord struct {
	TraceID      string
	RawTimestamp string
	Level        string
	Service      string
	Message      string
	Raw          string
	SourceFile   string
}

// Compile implements C5's bundle builder: given traceID and every candidate
// record across all scanned sources, returns the TraceBundle containing
// only the records whose TraceID matches, in total chronological order.
// Returns an error if no record matches traceID — spec.md's invariant that
// "empty bundles are never materialized" is the caller's responsibility to
// check for via the returned error.
func Compile(traceID string, candidates []RawRecord) (types.TraceBundle, error) {
	entries := make([]types.LogEntry, 0)
	sourceSet := make(map[string]struct{})

	for _, c := range candidates {
		if c.TraceID != traceID {
			continue
		}
		entries = append(entries, types.LogEntry{
			Timestamp:  LiftTimestamp(c.RawTimestamp),
			TraceID:    c.TraceID,
			Level:      c.Level,
			Service:    c.Service,
			Message:    c.Message,
			Raw:        c.Raw,
			SourceFile: c.SourceFile,
		})
		sourceSet[c.SourceFile] = struct{}{}
	}

	if len(entries) == 0 {
		return types.TraceBundle{}, apperrors.FramingError("Compile", "no entries found for trace "+traceID)
	}

	for i := range entries {
		entries[i].SetSeq(i)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Before(entries[j])
	})
	// Re-stamp seq after sorting so ties among already-sorted entries are
	// resolved by their final position, matching the "insertion order" the
	// invariant describes once the merge is complete.
	for i := range entries {
		entries[i].SetSeq(i)
	}

	timeline := make([]types.TimelineEvent, len(entries))
	for i, e := range entries {
		timeline[i] = types.TimelineEvent{
			Seq:              i,
			Timestamp:        e.Timestamp,
			Level:            e.Level,
			OperationSummary: OperationSummary(e.Message),
			Source:           e.SourceFile,
		}
	}

	sourceFiles := make([]string, 0, len(sourceSet))
	for f := range sourceSet {
		sourceFiles = append(sourceFiles, f)
	}
	sort.Strings(sourceFiles)

	return types.TraceBundle{
		TraceID:      traceID,
		Entries:      entries,
		Timeline:     timeline,
		SourceFiles:  sourceFiles,
		TotalEntries: len(entries),
	}, nil
}
