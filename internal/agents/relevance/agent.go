package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"logforensics/internal/agents/parameter"
	"logforensics/internal/cache"
	"logforensics/internal/llm"
	"logforensics/internal/metrics"
	"logforensics/pkg/types"

	"github.com/sirupsen/logrus"
)

const (
	maxSampleEntries  = 10
	maxTimelineEvents = 15
)

// Agent is C10: applies the ignore-saturation pre-filter, then scores
// surviving traces against the request via an LLM call routed through C1,
// and aggregates everything into five relevance buckets plus a
// natural-language summary, per spec.md section 4.10.
type Agent struct {
	llmProvider llm.Provider
	gateway     *cache.Gateway
	prompts     *llm.Prompts
	modelID     string
	saturation  float64
	logger      *logrus.Logger
}

// NewAgent constructs the relevance analyzer.
func NewAgent(provider llm.Provider, gateway *cache.Gateway, prompts *llm.Prompts, modelID string, saturation float64, logger *logrus.Logger) *Agent {
	return &Agent{llmProvider: provider, gateway: gateway, prompts: prompts, modelID: modelID, saturation: saturation, logger: logger}
}

// rawRelevance is the tolerant-parsed shape of the LLM's relevance-scoring
// response, per spec.md section 4.10's expected JSON.
type rawRelevance struct {
	RelevanceScore          int      `json:"relevance_score"`
	ConfidenceScore         int      `json:"confidence_score"`
	MatchingElements        []string `json:"matching_elements"`
	NonMatchingElements     []string `json:"non_matching_elements"`
	KeyFindings             []string `json:"key_findings"`
	DomainMatch             bool     `json:"domain_match"`
	TimeMatch               bool     `json:"time_match"`
	KeywordMatches          []string `json:"keyword_matches"`
	ImportantPatternMatches []string `json:"important_pattern_matches"`
	Recommendation          string   `json:"recommendation"`
	Reasoning               string   `json:"reasoning"`
}

// Score evaluates one trace bundle. If the ignore-saturation pre-filter
// fires, the LLM is never called and the result is classified ignored
// immediately. rules should already be narrowed to the ones matching the
// request's domain/query keys via SelectRules.
func (a *Agent) Score(ctx context.Context, disputeText string, params types.SearchParameters, bundle types.TraceBundle, filePath string, rules []types.ContextRule, policy types.CachePolicy) types.RelevanceResult {
	start := time.Now()

	if pattern, ignored := PreFilter(bundle, rules, a.saturation); ignored {
		metrics.RecordRelevanceIgnoredByRule()
		return types.RelevanceResult{
			FilePath:         filePath,
			TraceID:          bundle.TraceID,
			Level:            types.LevelIgnored,
			RelevanceScore:   0,
			ConfidenceScore:  100,
			Recommendation:   "Skip: ignore pattern saturation reached.",
			AppliedRules:     ruleIDs(rules),
			IgnoredPatterns:  []string{pattern},
			ProcessingTimeMS: time.Since(start).Milliseconds(),
		}
	}

	samples := sampleEntries(bundle.Entries)
	important, ignorePatterns := splitPatterns(rules)

	rendered := a.prompts.Render("relevance_scoring", map[string]string{
		"dispute_text":    disputeText,
		"time_frame":      params.TimeFrame,
		"domain":          params.Domain,
		"query_keys":      strings.Join(params.QueryKeys, ", "),
		"trace_id":        bundle.TraceID,
		"important_terms": strings.Join(important, ", "),
		"ignore_terms":    strings.Join(ignorePatterns, ", "),
		"services":        strings.Join(bundleServices(bundle.Entries), ", "),
		"samples":         strings.Join(samples, "\n"),
		"timeline":        strings.Join(timelineSummary(bundle.Timeline), "\n"),
	})
	messages := []types.ChatMessage{{Role: "user", Content: rendered}}

	compute := func(ctx context.Context) ([]byte, bool, error) {
		resp, err := a.llmProvider.Chat(ctx, a.modelID, messages, nil)
		if err != nil {
			return nil, false, err
		}
		return []byte(resp.Message.Content), true, nil
	}

	raw, _, err := a.gateway.Cached(ctx, "relevance_analysis", a.modelID, messages, nil, time.Hour, policy, compute)
	if err != nil {
		a.logger.WithError(err).WithField("trace_id", bundle.TraceID).Warn("relevance: LLM call failed, marking unknown")
		return unknownResult(filePath, bundle.TraceID, rules, start)
	}

	parsed, ok := parseRelevance(string(raw))
	if !ok {
		a.logger.WithField("trace_id", bundle.TraceID).Warn("relevance: could not parse LLM JSON, marking unknown")
		return unknownResult(filePath, bundle.TraceID, rules, start)
	}

	score := types.ClampScore(parsed.RelevanceScore)
	return types.RelevanceResult{
		FilePath:            filePath,
		TraceID:             bundle.TraceID,
		Level:               types.BucketScore(score),
		RelevanceScore:      score,
		ConfidenceScore:     types.ClampScore(parsed.ConfidenceScore),
		MatchingElements:    parsed.MatchingElements,
		NonMatchingElements: parsed.NonMatchingElements,
		KeyFindings:         parsed.KeyFindings,
		Recommendation:      parsed.Recommendation,
		AppliedRules:        ruleIDs(rules),
		IgnoredPatterns:     nil,
		ProcessingTimeMS:    time.Since(start).Milliseconds(),
	}
}

func unknownResult(filePath, traceID string, rules []types.ContextRule, start time.Time) types.RelevanceResult {
	return types.RelevanceResult{
		FilePath:         filePath,
		TraceID:          traceID,
		Level:            types.LevelUnknown,
		AppliedRules:     ruleIDs(rules),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
}

func parseRelevance(text string) (rawRelevance, bool) {
	candidate, ok := parameter.ExtractJSON(text)
	if !ok {
		return rawRelevance{}, false
	}
	var raw rawRelevance
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return rawRelevance{}, false
	}
	return raw, true
}

func sampleEntries(entries []types.LogEntry) []string {
	limit := len(entries)
	if limit > maxSampleEntries {
		limit = maxSampleEntries
	}
	samples := make([]string, 0, limit)
	for _, e := range entries[:limit] {
		samples = append(samples, fmt.Sprintf("[%s] %s: %s", e.Level, e.SourceFile, e.Message))
	}
	return samples
}

// bundleServices collects the distinct service names seen across the
// bundle's entries, in first-seen order.
func bundleServices(entries []types.LogEntry) []string {
	seen := make(map[string]struct{})
	var services []string
	for _, e := range entries {
		if e.Service == "" {
			continue
		}
		if _, ok := seen[e.Service]; ok {
			continue
		}
		seen[e.Service] = struct{}{}
		services = append(services, e.Service)
	}
	return services
}

func timelineSummary(events []types.TimelineEvent) []string {
	limit := len(events)
	if limit > maxTimelineEvents {
		limit = maxTimelineEvents
	}
	lines := make([]string, 0, limit)
	for _, ev := range events[:limit] {
		ts := "unknown"
		if ev.Timestamp != nil {
			ts = ev.Timestamp.UTC().Format(time.RFC3339)
		}
		lines = append(lines, fmt.Sprintf("%d. [%s] %s %s", ev.Seq, ts, ev.Level, ev.OperationSummary))
	}
	return lines
}

func ruleIDs(rules []types.ContextRule) []string {
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	return ids
}

func splitPatterns(rules []types.ContextRule) (important, ignore []string) {
	for _, r := range rules {
		important = append(important, r.Important...)
		ignore = append(ignore, r.Ignore...)
	}
	return important, ignore
}

// BucketCounts groups results by level, per spec.md's five-bucket
// aggregation for the relevance summary.
func BucketCounts(results []types.RelevanceResult) map[types.RelevanceLevel]int {
	counts := make(map[types.RelevanceLevel]int)
	for _, r := range results {
		counts[r.Level]++
	}
	return counts
}

// Summarize produces the natural-language relevance summary spec.md section
// 4.10 expects to accompany the per-trace results: total traces examined,
// per-bucket counts, and the highest-scoring trace if any survived scoring.
func Summarize(results []types.RelevanceResult) string {
	if len(results) == 0 {
		return "No traces were evaluated for relevance."
	}
	counts := BucketCounts(results)
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluated %d trace(s): %d highly relevant, %d relevant, %d potentially relevant, %d not relevant, %d ignored, %d unknown.",
		len(results), counts[types.LevelHighlyRelevant], counts[types.LevelRelevant],
		counts[types.LevelPotentiallyRelevant], counts[types.LevelNotRelevant],
		counts[types.LevelIgnored], counts[types.LevelUnknown])

	top := topResult(results)
	if top != nil {
		fmt.Fprintf(&b, " Highest-scoring trace: %s (score %d).", top.TraceID, top.RelevanceScore)
	}
	return b.String()
}

func topResult(results []types.RelevanceResult) *types.RelevanceResult {
	var top *types.RelevanceResult
	for i := range results {
		if top == nil || results[i].RelevanceScore > top.RelevanceScore {
			top = &results[i]
		}
	}
	return top
}
