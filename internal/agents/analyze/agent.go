// Package analyze implements C9: per-trace LLM analysis, one overall
// quality assessment per request, and report writing. Report rendering
// lives in reportwriter.go, deliberately kept apart from the analysis
// logic so templates never reach into TraceBundle/TraceAnalysis internals
// directly — the cyclic-reference redesign spec.md section 9 calls for.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"logforensics/internal/agents/parameter"
	"logforensics/internal/cache"
	"logforensics/internal/llm"
	"logforensics/pkg/types"

	"github.com/sirupsen/logrus"
)

const (
	maxSampleMessages     = 10
	minSampleMessageLen   = 20
	maxTimelineSampleSize = 15
)

// Agent is C9.
type Agent struct {
	llmProvider llm.Provider
	gateway     *cache.Gateway
	prompts     *llm.Prompts
	modelID     string
	logger      *logrus.Logger
}

// NewAgent constructs the analyze agent.
func NewAgent(provider llm.Provider, gateway *cache.Gateway, prompts *llm.Prompts, modelID string, logger *logrus.Logger) *Agent {
	return &Agent{llmProvider: provider, gateway: gateway, prompts: prompts, modelID: modelID, logger: logger}
}

// rawTraceAnalysis is the tolerant-parsed shape of the LLM's per-trace
// analysis response.
type rawTraceAnalysis struct {
	RelevanceScore          int      `json:"relevance_score"`
	RequestSummary          string   `json:"request_summary"`
	TransactionOutcome      string   `json:"transaction_outcome"`
	FailurePoint            string   `json:"failure_point"`
	KeyFinding              string   `json:"key_finding"`
	PrimaryIssue            string   `json:"primary_issue"`
	ConfidenceLevel         string   `json:"confidence_level"`
	EvidenceFound           []string `json:"evidence_found"`
	CriticalIndicators      []string `json:"critical_indicators"`
	TimelineSummary         string   `json:"timeline_summary"`
	CustomerClaimAssessment string   `json:"customer_claim_assessment"`
	RootCauseAnalysis       string   `json:"root_cause_analysis"`
	Recommendation          string   `json:"recommendation"`
	TechnicalDetails        string   `json:"technical_details"`
}

// AnalyzeTrace renders a prompt from the bundle, the dispute text, and the
// extracted parameters, calls the LLM through the cache gateway, and
// tolerantly parses the result. hasSourceFiles selects between the
// "trace_analysis" (file-backed) and "trace_entries_analysis" (file-less,
// e.g. remote-log) cache types, per spec.md section 4.9.
func (a *Agent) AnalyzeTrace(ctx context.Context, disputeText string, params types.SearchParameters, bundle types.TraceBundle, hasSourceFiles bool, policy types.CachePolicy) (types.TraceAnalysis, error) {
	cacheType := "trace_entries_analysis"
	if hasSourceFiles {
		cacheType = "trace_analysis"
	}

	samples := sampleMessages(bundle.Entries)
	timeline := sampleTimeline(bundle.Timeline)

	rendered := a.prompts.Render("trace_analysis", map[string]string{
		"dispute_text": disputeText,
		"time_frame":   params.TimeFrame,
		"domain":       params.Domain,
		"query_keys":   strings.Join(params.QueryKeys, ", "),
		"trace_id":     bundle.TraceID,
		"total_entries": fmt.Sprintf("%d", bundle.TotalEntries),
		"samples":      strings.Join(samples, "\n"),
		"timeline":     strings.Join(timeline, "\n"),
	})
	messages := []types.ChatMessage{{Role: "user", Content: rendered}}

	compute := func(ctx context.Context) ([]byte, bool, error) {
		resp, err := a.llmProvider.Chat(ctx, a.modelID, messages, nil)
		if err != nil {
			return nil, false, err
		}
		return []byte(resp.Message.Content), true, nil
	}

	raw, _, err := a.gateway.Cached(ctx, cacheType, a.modelID, messages, nil, time.Hour, policy, compute)
	if err != nil {
		a.logger.WithError(err).WithField("trace_id", bundle.TraceID).Warn("analyze: LLM call failed, using default skeleton")
		return types.DefaultTraceAnalysis(), nil
	}

	analysis, ok := parseTraceAnalysis(string(raw))
	if !ok {
		a.logger.WithField("trace_id", bundle.TraceID).Warn("analyze: could not parse LLM JSON, using default skeleton")
		return types.DefaultTraceAnalysis(), nil
	}
	return analysis, nil
}

// AssessQuality performs one overall quality assessment per request,
// independent of any single trace.
func (a *Agent) AssessQuality(ctx context.Context, disputeText string, params types.SearchParameters, bundles []types.TraceBundle, policy types.CachePolicy) types.QualityAssessment {
	rendered := a.prompts.Render("quality_assessment", map[string]string{
		"dispute_text": disputeText,
		"time_frame":   params.TimeFrame,
		"domain":       params.Domain,
		"trace_count":  fmt.Sprintf("%d", len(bundles)),
	})
	messages := []types.ChatMessage{{Role: "user", Content: rendered}}

	compute := func(ctx context.Context) ([]byte, bool, error) {
		resp, err := a.llmProvider.Chat(ctx, a.modelID, messages, nil)
		if err != nil {
			return nil, false, err
		}
		return []byte(resp.Message.Content), true, nil
	}

	raw, _, err := a.gateway.Cached(ctx, "quality_assessment", a.modelID, messages, nil, time.Hour, policy, compute)
	if err != nil {
		a.logger.WithError(err).Warn("analyze: quality assessment LLM call failed, using neutral assessment")
		return types.NeutralQualityAssessment()
	}

	assessment, ok := parseQualityAssessment(string(raw))
	if !ok {
		a.logger.Warn("analyze: could not parse quality assessment JSON, using neutral assessment")
		return types.NeutralQualityAssessment()
	}
	return assessment
}

func parseTraceAnalysis(text string) (types.TraceAnalysis, bool) {
	candidate, ok := parameter.ExtractJSON(text)
	if !ok {
		return types.TraceAnalysis{}, false
	}
	var raw rawTraceAnalysis
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return types.TraceAnalysis{}, false
	}
	return types.TraceAnalysis{
		RelevanceScore:          raw.RelevanceScore,
		RequestSummary:          raw.RequestSummary,
		TransactionOutcome:      raw.TransactionOutcome,
		FailurePoint:            raw.FailurePoint,
		KeyFinding:              raw.KeyFinding,
		PrimaryIssue:            raw.PrimaryIssue,
		ConfidenceLevel:         raw.ConfidenceLevel,
		EvidenceFound:           raw.EvidenceFound,
		CriticalIndicators:      raw.CriticalIndicators,
		TimelineSummary:         raw.TimelineSummary,
		CustomerClaimAssessment: raw.CustomerClaimAssessment,
		RootCauseAnalysis:       raw.RootCauseAnalysis,
		Recommendation:          raw.Recommendation,
		TechnicalDetails:        raw.TechnicalDetails,
	}, true
}

func parseQualityAssessment(text string) (types.QualityAssessment, bool) {
	candidate, ok := parameter.ExtractJSON(text)
	if !ok {
		return types.QualityAssessment{}, false
	}
	var q types.QualityAssessment
	if err := json.Unmarshal([]byte(candidate), &q); err != nil {
		return types.QualityAssessment{}, false
	}
	return q, true
}

// sampleMessages picks up to maxSampleMessages non-trivial (length >
// minSampleMessageLen) log messages, per spec.md section 4.9 step 1.
func sampleMessages(entries []types.LogEntry) []string {
	var samples []string
	for _, e := range entries {
		if len(e.Message) <= minSampleMessageLen {
			continue
		}
		samples = append(samples, e.Message)
		if len(samples) >= maxSampleMessages {
			break
		}
	}
	return samples
}

// sampleTimeline picks up to maxTimelineSampleSize timeline events.
func sampleTimeline(timeline []types.TimelineEvent) []string {
	limit := len(timeline)
	if limit > maxTimelineSampleSize {
		limit = maxTimelineSampleSize
	}
	lines := make([]string, 0, limit)
	for _, ev := range timeline[:limit] {
		lines = append(lines, fmt.Sprintf("[%d] %s %s", ev.Seq, ev.Level, ev.OperationSummary))
	}
	return lines
}

// RankByRelevance sorts trace IDs by their analysis's relevance score,
// descending, for the master report's relevance ranking section.
func RankByRelevance(analyses map[string]types.TraceAnalysis) []string {
	ids := make([]string, 0, len(analyses))
	for id := range analyses {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return analyses[ids[i]].RelevanceScore > analyses[ids[j]].RelevanceScore
	})
	return ids
}
