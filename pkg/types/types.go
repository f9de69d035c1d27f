// Package types holds the shared data model for the log-analysis pipeline:
// search parameters, project registry entries, log entries, trace bundles,
// cache keys/entries/policies, context rules, and relevance results. Every
// component (C1-C11) exchanges values of these types rather than ad-hoc maps.
package types

import "time"

// SearchParameters is produced once per request by the parameter agent and
// is immutable thereafter. time_frame is a single calendar date, never a
// range; query_keys are lowercase snake_case tokens drawn from an allow-list.
type SearchParameters struct {
	TimeFrame  string   `json:"time_frame,omitempty"` // ISO date, e.g. "2025-07-24"; empty means absent
	Domain     string   `json:"domain"`
	QueryKeys  []string `json:"query_keys"`
	RawPrompt  string   `json:"raw_prompt,omitempty"`
	RequestID  string   `json:"request_id,omitempty"`
}

// HasTimeFrame reports whether a time frame was extracted.
func (p SearchParameters) HasTimeFrame() bool {
	return p.TimeFrame != ""
}

// Ready reports whether the pipeline may proceed past parameter extraction:
// time_frame must be present and query_keys non-empty.
func (p SearchParameters) Ready() bool {
	return p.HasTimeFrame() && len(p.QueryKeys) > 0
}

// LogSourceKind distinguishes file-backed projects from remote (Loki-style) ones.
type LogSourceKind string

const (
	LogSourceFile   LogSourceKind = "file"
	LogSourceRemote LogSourceKind = "remote"
)

// EnvDescriptor carries either a filesystem root (file-based projects) or a
// namespace label (remote projects); exactly one is meaningful depending on
// the owning ProjectDescriptor's LogSourceKind.
type EnvDescriptor struct {
	Code            string `yaml:"code" json:"code"`
	FilesystemRoot  string `yaml:"filesystem_root,omitempty" json:"filesystem_root,omitempty"`
	NamespaceLabel  string `yaml:"namespace_label,omitempty" json:"namespace_label,omitempty"`
}

// ProjectDescriptor resolves (project, env) to a log source and its concrete
// location, loaded from a config/YAML registry rather than a database.
type ProjectDescriptor struct {
	Code          string                   `yaml:"code" json:"code"`
	Name          string                   `yaml:"name" json:"name"`
	LogSourceKind LogSourceKind            `yaml:"log_source_kind" json:"log_source_kind"`
	Environments  map[string]EnvDescriptor `yaml:"environments" json:"environments"`
}

// Env looks up an environment by code.
func (p ProjectDescriptor) Env(code string) (EnvDescriptor, bool) {
	e, ok := p.Environments[code]
	return e, ok
}

// LogEntry is one parsed log record. Timestamp may be nil when parsing
// failed; such entries sort earliest within a TraceBundle.
type LogEntry struct {
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	TraceID    string     `json:"trace_id,omitempty"`
	Level      string     `json:"level,omitempty"`
	Service    string     `json:"service,omitempty"`
	Message    string     `json:"message"`
	Raw        string     `json:"raw"`
	SourceFile string     `json:"source_file"`

	// seq preserves insertion order for stable tie-breaking when timestamps
	// compare equal (including both being nil). Set by the trace compiler.
	seq int
}

// SetSeq records the entry's insertion order. Exported only to tracecompile.
func (e *LogEntry) SetSeq(n int) { e.seq = n }

// Seq returns the entry's insertion order.
func (e *LogEntry) Seq() int { return e.seq }

// Before implements the bundle's total order: nil timestamps sort earliest;
// ties break on insertion order (stable).
func (e LogEntry) Before(other LogEntry) bool {
	switch {
	case e.Timestamp == nil && other.Timestamp == nil:
		return e.seq < other.seq
	case e.Timestamp == nil:
		return true
	case other.Timestamp == nil:
		return false
	case !e.Timestamp.Equal(*other.Timestamp):
		return e.Timestamp.Before(*other.Timestamp)
	default:
		return e.seq < other.seq
	}
}

// TimelineEvent is a thin projection of a LogEntry used for report rendering
// without re-walking the full entry list.
type TimelineEvent struct {
	Seq              int        `json:"seq"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
	Level            string     `json:"level,omitempty"`
	OperationSummary string     `json:"operation_summary,omitempty"`
	Source           string     `json:"source"`
}

// TraceBundle is the complete chronological set of records for a single
// trace, across every source file that mentioned it. Invariant: every
// Entries[i].TraceID equals TraceID; Entries is never empty (empty bundles
// are never materialized).
type TraceBundle struct {
	TraceID      string          `json:"trace_id"`
	Entries      []LogEntry      `json:"entries"`
	Timeline     []TimelineEvent `json:"timeline"`
	SourceFiles  []string        `json:"source_files"`
	TotalEntries int             `json:"total_entries"`
}

// CachePolicy mirrors HTTP cache-control semantics for a single gateway call.
type CachePolicy struct {
	Enabled         bool   `json:"enabled"`
	NoCache         bool   `json:"no_cache"`
	NoStore         bool   `json:"no_store"`
	TTLSeconds      *int64 `json:"ttl_seconds,omitempty"`
	SMaxAgeSeconds  *int64 `json:"s_maxage_seconds,omitempty"`
	Namespace       string `json:"namespace,omitempty"`
}

// CacheStatus is the diagnostic outcome of a single cached() call.
type CacheStatus string

const (
	StatusHitL1     CacheStatus = "HIT_L1"
	StatusHitL2     CacheStatus = "HIT_L2"
	StatusMiss      CacheStatus = "MISS"
	StatusBypass    CacheStatus = "BYPASS"
	StatusCoalesced CacheStatus = "COALESCED"
)

// CacheDiagnostics is returned alongside the value from cached().
type CacheDiagnostics struct {
	Status    CacheStatus `json:"status"`
	KeyPrefix string      `json:"key_prefix"` // first 12 hex chars of the key, for logs
}

// CacheEntry is what L1/L2 actually store: the computed bytes plus its
// creation time, so freshness (TTL, s_maxage) can be re-evaluated on read.
type CacheEntry struct {
	CreatedAt time.Time `json:"created_at"`
	ValueBytes []byte   `json:"value_bytes"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (c CacheEntry) Expired(now time.Time) bool {
	if c.TTL <= 0 {
		return false
	}
	return now.Sub(c.CreatedAt) > c.TTL
}

// StaleForSharedHit reports whether the entry is too old to satisfy an
// s_maxage_seconds constraint on a cache hit.
func (c CacheEntry) StaleForSharedHit(now time.Time, sMaxAgeSeconds int64) bool {
	if sMaxAgeSeconds <= 0 {
		return false
	}
	return now.Sub(c.CreatedAt) > time.Duration(sMaxAgeSeconds)*time.Second
}

// LokiCacheEntry points to an on-disk file holding a cached Loki query
// result. A stale pointer (file missing) is self-healing: the caller treats
// it as a miss and removes the entry.
type LokiCacheEntry struct {
	FilePath    string    `json:"file_path"`
	CreatedAt   time.Time `json:"created_at"`
	ResultCount int       `json:"result_count"`
	FileSize    int64     `json:"file_size"`
}

// ContextRule associates "important" and "ignore" substrings with a domain
// tag, used to pre-filter traces before LLM relevance scoring.
type ContextRule struct {
	ID          string   `json:"id"`
	ContextTag  string   `json:"context_tag"`
	Important   []string `json:"important"`
	Ignore      []string `json:"ignore"`
	Description string   `json:"description"`
}

// RelevanceLevel buckets a numeric relevance score (or a pre-filter decision).
type RelevanceLevel string

const (
	LevelHighlyRelevant     RelevanceLevel = "highly_relevant"
	LevelRelevant           RelevanceLevel = "relevant"
	LevelPotentiallyRelevant RelevanceLevel = "potentially_relevant"
	LevelNotRelevant        RelevanceLevel = "not_relevant"
	LevelIgnored            RelevanceLevel = "ignored"
	LevelUnknown            RelevanceLevel = "unknown"
)

// BucketScore maps a numeric score to a RelevanceLevel using the spec's fixed
// thresholds. It never returns LevelIgnored; that level is assigned only by
// the pre-filter.
func BucketScore(score int) RelevanceLevel {
	switch {
	case score >= 80:
		return LevelHighlyRelevant
	case score >= 60:
		return LevelRelevant
	case score >= 40:
		return LevelPotentiallyRelevant
	default:
		return LevelNotRelevant
	}
}

// RelevanceResult is the per-trace verdict of the relevance analyzer.
type RelevanceResult struct {
	FilePath           string         `json:"file_path"`
	TraceID            string         `json:"trace_id"`
	Level              RelevanceLevel `json:"level"`
	RelevanceScore     int            `json:"relevance_score"`
	ConfidenceScore    int            `json:"confidence_score"`
	MatchingElements   []string       `json:"matching_elements"`
	NonMatchingElements []string      `json:"non_matching_elements"`
	KeyFindings        []string       `json:"key_findings"`
	Recommendation     string         `json:"recommendation"`
	AppliedRules       []string       `json:"applied_rules"`
	IgnoredPatterns    []string       `json:"ignored_patterns"`
	ProcessingTimeMS   int64          `json:"processing_time_ms"`
}

// ClampScore clamps a raw score (from LLM output) to [0, 100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ChatMessage is one message in an LLM chat exchange.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions configures a single provider call. Timeout is consumed by the
// provider and must never reach cache-key hashing.
type ChatOptions struct {
	Timeout     time.Duration `json:"-"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatResponse is the uniform envelope every provider translates its wire
// format into.
type ChatResponse struct {
	Message ChatMessage `json:"message"`
}

// Plan is the structured output of the planning agent (C8).
type Plan struct {
	Goal             string   `json:"goal"`
	CanProceed       bool     `json:"can_proceed"`
	BlockingQuestions []string `json:"blocking_questions"`
	Assumptions      []string `json:"assumptions"`
	Steps            []string `json:"steps"`
	ExpectedArtifacts []string `json:"expected_artifacts"`
	ReplanTriggers   []string `json:"replan_triggers"`
	Warnings         []string `json:"warnings"`
}

// TraceAnalysis is the per-trace analysis result produced by the analyze
// agent (C9), tolerant-parsed from LLM JSON with a default skeleton fallback.
type TraceAnalysis struct {
	RelevanceScore           int      `json:"relevance_score"`
	RequestSummary           string   `json:"request_summary"`
	TransactionOutcome       string   `json:"transaction_outcome"`
	FailurePoint             string   `json:"failure_point"`
	KeyFinding               string   `json:"key_finding"`
	PrimaryIssue             string   `json:"primary_issue"`
	ConfidenceLevel          string   `json:"confidence_level"`
	EvidenceFound            []string `json:"evidence_found"`
	CriticalIndicators       []string `json:"critical_indicators"`
	TimelineSummary          string   `json:"timeline_summary"`
	CustomerClaimAssessment  string   `json:"customer_claim_assessment"`
	RootCauseAnalysis        string   `json:"root_cause_analysis"`
	Recommendation           string   `json:"recommendation"`
	TechnicalDetails         string   `json:"technical_details"`
}

// DefaultTraceAnalysis is the fallback skeleton used when LLM JSON cannot be
// parsed, per spec ERROR HANDLING (LLM error -> default skeleton, LOW confidence).
func DefaultTraceAnalysis() TraceAnalysis {
	return TraceAnalysis{
		RelevanceScore:  0,
		RequestSummary:  "Analysis unavailable",
		ConfidenceLevel: "LOW",
	}
}

// QualityAssessment is the single overall-quality result per request.
type QualityAssessment struct {
	Completeness int    `json:"completeness"`
	Relevance    int    `json:"relevance"`
	Coverage     int    `json:"coverage"`
	Status       string `json:"status"`
}

// NeutralQualityAssessment is the fallback when the quality-assessment LLM
// call fails.
func NeutralQualityAssessment() QualityAssessment {
	return QualityAssessment{Completeness: 50, Relevance: 50, Coverage: 50, Status: "unknown"}
}
