package analyze

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "logforensics/internal/errors"
	"logforensics/pkg/types"
)

// ReportWriter renders and persists C9's two artifact kinds: one
// comprehensive report per trace, and one master summary per request. It
// deliberately never reaches into TraceBundle/TraceAnalysis construction —
// rendering consumes read-only structs handed to it, per spec.md section
// 9's cyclic-reference redesign guidance ("decouple data model from
// rendering; report writer consumes read-only structs; no
// back-references").
type ReportWriter struct {
	outputDir string
}

// NewReportWriter constructs a ReportWriter rooted at outputDir, creating it
// if necessary.
func NewReportWriter(outputDir string) (*ReportWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, apperrors.IOError("NewReportWriter", err.Error()).Wrap(err)
	}
	return &ReportWriter{outputDir: outputDir}, nil
}

// TraceReportPath returns where a given trace's report would be written,
// without writing it — used by the relevance analyzer (C10) to locate the
// file to sample from.
func (w *ReportWriter) TraceReportPath(requestID, traceID string) string {
	return filepath.Join(w.outputDir, requestID, "trace_"+sanitize(traceID)+".txt")
}

func (w *ReportWriter) masterReportPath(requestID string) string {
	return filepath.Join(w.outputDir, requestID, "master_summary.txt")
}

// WriteTraceReport renders and persists the comprehensive per-trace report:
// executive summary, parameters, detailed analysis, chronological timeline,
// full entries, and technical metrics. It ends with the "Analysis
// completed:" line and begins with a "Generated:" line, both of which C1
// strips before hashing so cached reruns of the upstream LLM calls don't
// see a spurious cache miss from the template alone changing (spec.md
// section 4.9).
func (w *ReportWriter) WriteTraceReport(requestID string, params types.SearchParameters, bundle types.TraceBundle, analysis types.TraceAnalysis) (string, error) {
	path := w.TraceReportPath(requestID, bundle.TraceID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.IOError("WriteTraceReport", err.Error()).Wrap(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "=== TRACE REPORT: %s ===\n\n", bundle.TraceID)

	b.WriteString("-- Executive Summary --\n")
	fmt.Fprintf(&b, "Relevance score: %d\n", analysis.RelevanceScore)
	fmt.Fprintf(&b, "Transaction outcome: %s\n", analysis.TransactionOutcome)
	fmt.Fprintf(&b, "Key finding: %s\n", analysis.KeyFinding)
	fmt.Fprintf(&b, "Primary issue: %s\n\n", analysis.PrimaryIssue)

	b.WriteString("-- Parameters --\n")
	fmt.Fprintf(&b, "Time frame: %s\n", params.TimeFrame)
	fmt.Fprintf(&b, "Domain: %s\n", params.Domain)
	fmt.Fprintf(&b, "Query keys: %s\n\n", strings.Join(params.QueryKeys, ", "))

	b.WriteString("-- Detailed Analysis --\n")
	fmt.Fprintf(&b, "Request summary: %s\n", analysis.RequestSummary)
	fmt.Fprintf(&b, "Failure point: %s\n", analysis.FailurePoint)
	fmt.Fprintf(&b, "Customer claim assessment: %s\n", analysis.CustomerClaimAssessment)
	fmt.Fprintf(&b, "Root cause analysis: %s\n", analysis.RootCauseAnalysis)
	fmt.Fprintf(&b, "Recommendation: %s\n", analysis.Recommendation)
	fmt.Fprintf(&b, "Confidence level: %s\n", analysis.ConfidenceLevel)
	fmt.Fprintf(&b, "Technical details: %s\n\n", analysis.TechnicalDetails)

	b.WriteString("-- Evidence --\n")
	for _, e := range analysis.EvidenceFound {
		fmt.Fprintf(&b, "  - %s\n", e)
	}
	b.WriteString("\n-- Critical Indicators --\n")
	for _, c := range analysis.CriticalIndicators {
		fmt.Fprintf(&b, "  - %s\n", c)
	}

	b.WriteString("\n-- Chronological Timeline --\n")
	fmt.Fprintf(&b, "  - Timestamp: %s\n", analysis.TimelineSummary)
	for _, ev := range bundle.Timeline {
		fmt.Fprintf(&b, "  [%d] %s %s (%s)\n", ev.Seq, formatTimestamp(ev.Timestamp), ev.Level, ev.Source)
		if ev.OperationSummary != "" {
			fmt.Fprintf(&b, "      -> %s\n", ev.OperationSummary)
		}
	}

	b.WriteString("\n-- Full Entries --\n")
	for _, e := range bundle.Entries {
		fmt.Fprintf(&b, "[%s] [%s] %s: %s\n", formatTimestamp(e.Timestamp), e.Level, e.SourceFile, e.Message)
	}

	b.WriteString("\n-- Technical Metrics --\n")
	fmt.Fprintf(&b, "Total entries: %d\n", bundle.TotalEntries)
	fmt.Fprintf(&b, "Source files: %s\n", strings.Join(bundle.SourceFiles, ", "))

	fmt.Fprintf(&b, "\nAnalysis completed: %s\n", time.Now().UTC().Format(time.RFC3339))

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", apperrors.IOError("WriteTraceReport", err.Error()).Wrap(err)
	}
	return path, nil
}

// WriteMasterReport renders and persists the master summary: relevance
// ranking, aggregate statistics, coverage gaps, and a file index pointing
// back at every per-trace report.
func (w *ReportWriter) WriteMasterReport(requestID string, params types.SearchParameters, disputeText string, bundles []types.TraceBundle, analyses map[string]types.TraceAnalysis, ranked []string, quality types.QualityAssessment) (string, error) {
	path := w.masterReportPath(requestID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.IOError("WriteMasterReport", err.Error()).Wrap(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("=== MASTER SUMMARY ===\n\n")
	fmt.Fprintf(&b, "Dispute: %s\n", disputeText)
	fmt.Fprintf(&b, "Time frame: %s | Domain: %s | Query keys: %s\n\n", params.TimeFrame, params.Domain, strings.Join(params.QueryKeys, ", "))

	fmt.Fprintf(&b, "-- Statistics --\n")
	fmt.Fprintf(&b, "Traces analyzed: %d\n", len(bundles))
	fmt.Fprintf(&b, "Overall quality: completeness=%d relevance=%d coverage=%d status=%s\n\n",
		quality.Completeness, quality.Relevance, quality.Coverage, quality.Status)

	b.WriteString("-- Relevance Ranking --\n")
	for i, id := range ranked {
		analysis := analyses[id]
		fmt.Fprintf(&b, "%d. %s — score %d — %s\n", i+1, id, analysis.RelevanceScore, analysis.KeyFinding)
	}

	if gaps := coverageGaps(bundles, analyses); len(gaps) > 0 {
		b.WriteString("\n-- Gaps --\n")
		for _, g := range gaps {
			fmt.Fprintf(&b, "  - %s\n", g)
		}
	}

	b.WriteString("\n-- File Index --\n")
	for _, bundle := range bundles {
		fmt.Fprintf(&b, "  %s -> %s\n", bundle.TraceID, w.TraceReportPath(requestID, bundle.TraceID))
	}

	fmt.Fprintf(&b, "\nAnalysis completed: %s\n", time.Now().UTC().Format(time.RFC3339))

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", apperrors.IOError("WriteMasterReport", err.Error()).Wrap(err)
	}
	return path, nil
}

// coverageGaps flags traces with no analysis or a LOW-confidence one
// (which includes the default skeleton fallback) — a gap the master report
// surfaces so a reviewer knows which traces need a human look.
func coverageGaps(bundles []types.TraceBundle, analyses map[string]types.TraceAnalysis) []string {
	var gaps []string
	for _, bundle := range bundles {
		a, ok := analyses[bundle.TraceID]
		if !ok || a.ConfidenceLevel == "LOW" {
			gaps = append(gaps, fmt.Sprintf("trace %s: analysis unavailable or low confidence", bundle.TraceID))
		}
	}
	return gaps
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

func sanitize(traceID string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	return replacer.Replace(traceID)
}
