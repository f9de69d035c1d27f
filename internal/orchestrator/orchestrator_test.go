package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"logforensics/internal/agents/analyze"
	"logforensics/internal/agents/parameter"
	"logforensics/internal/agents/planning"
	"logforensics/internal/agents/relevance"
	"logforensics/internal/cache"
	"logforensics/internal/config"
	"logforensics/internal/llm"
	"logforensics/internal/logquery"
	"logforensics/internal/obstracing"
	"logforensics/internal/project"
	"logforensics/pkg/types"
	"logforensics/pkg/workerpool"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func testGateway() *cache.Gateway {
	return cache.NewGateway(cache.Config{
		Enabled:      true,
		Namespace:    "test",
		L1Size:       64,
		L1DefaultTTL: time.Minute,
	}, nil, quietLogger())
}

// markerProvider returns a fixed response per marker substring found in the
// outgoing prompt, letting one stub stand in for four different agents'
// distinct prompt templates.
type markerProvider struct {
	responses map[string]string
}

func (m *markerProvider) Chat(ctx context.Context, modelID string, messages []types.ChatMessage, options *types.ChatOptions) (types.ChatResponse, error) {
	content := messages[0].Content
	for marker, response := range m.responses {
		if strings.Contains(content, marker) {
			return types.ChatResponse{Message: types.ChatMessage{Role: "assistant", Content: response}}, nil
		}
	}
	return types.ChatResponse{Message: types.ChatMessage{Role: "assistant", Content: "{}"}}, nil
}

func (m *markerProvider) IsAvailable(ctx context.Context) bool { return true }
func (m *markerProvider) ProviderName() string                 { return "stub" }

var _ llm.Provider = (*markerProvider)(nil)

const xmlLogBody = `<log-row><request-id>t-1</request-id><timestamp>2025-07-24 10:00:00</timestamp><level>ERROR</level><service>payments</service><message>bKash payment failed: timeout</message></log-row>
<log-row><request-id>t-1</request-id><timestamp>2025-07-24 10:00:05</timestamp><level>INFO</level><service>payments</service><message>retry scheduled</message></log-row>`

func setupOrchestrator(t *testing.T, logRoot string) *Orchestrator {
	t.Helper()

	registryPath := filepath.Join(t.TempDir(), "projects.yaml")
	registryYAML := `
projects:
  - code: NCC
    name: National Clearing Company
    log_source_kind: file
    environments:
      prod:
        filesystem_root: ` + logRoot + `
`
	require.NoError(t, os.WriteFile(registryPath, []byte(registryYAML), 0o644))
	registry, err := project.Load(registryPath)
	require.NoError(t, err)

	provider := &markerProvider{responses: map[string]string{
		"PARAM_MARKER":      `{"time_frame":"2025-07-24","domain":"bkash","query_keys":["failed"]}`,
		"TRACE_MARKER":      `{"relevance_score":80,"key_finding":"timeout during retry","confidence_level":"HIGH"}`,
		"QUALITY_MARKER":    `{"completeness":90,"relevance":85,"coverage":80,"status":"good"}`,
		"RELEVANCE_MARKER":  `{"relevance_score":75,"confidence_score":70,"key_findings":["timeout"],"recommendation":"review"}`,
	}}

	gateway := testGateway()
	prompts := llm.NewPrompts(nil, map[string]string{
		"parameter_extraction": "PARAM_MARKER $prompt",
		"trace_analysis":       "TRACE_MARKER $trace_id",
		"quality_assessment":   "QUALITY_MARKER $trace_count",
		"relevance_scoring":    "RELEVANCE_MARKER $trace_id",
	}, 0)

	paramAgent := parameter.NewAgent(provider, gateway, prompts, "default", quietLogger())
	planAgent := planning.NewAgent()
	analyzeAgent := analyze.NewAgent(provider, gateway, prompts, "default", quietLogger())
	relevanceAgent := relevance.NewAgent(provider, gateway, prompts, "default", 0.30, quietLogger())

	reportWriter, err := analyze.NewReportWriter(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)

	tracing, err := obstracing.NewManager(config.TracingConfig{Enabled: false}, quietLogger())
	require.NoError(t, err)

	pool := workerpool.NewWorkerPool(workerpool.WorkerPoolConfig{MaxWorkers: 2, QueueSize: 10, ShutdownTimeout: 5 * time.Second}, quietLogger())
	require.NoError(t, pool.Start())
	t.Cleanup(func() { pool.Stop() })

	contextRulesPath := filepath.Join(t.TempDir(), "context_rules.csv")

	return New(registry, paramAgent, planAgent, analyzeAgent, relevanceAgent, reportWriter, nil, contextRulesPath, tracing, pool, quietLogger())
}

// setupRemoteOrchestrator mirrors setupOrchestrator but wires a remote
// (Loki-style) project backed by lokiURL instead of a file-based one, so the
// acquireFromRemote path (and its logqueryClient dependency, left nil by
// setupOrchestrator) gets exercised too.
func setupRemoteOrchestrator(t *testing.T, lokiURL string) *Orchestrator {
	t.Helper()

	registryPath := filepath.Join(t.TempDir(), "projects.yaml")
	registryYAML := `
projects:
  - code: NCC
    name: National Clearing Company
    log_source_kind: remote
    environments:
      prod:
        namespace_label: ncc
`
	require.NoError(t, os.WriteFile(registryPath, []byte(registryYAML), 0o644))
	registry, err := project.Load(registryPath)
	require.NoError(t, err)

	provider := &markerProvider{responses: map[string]string{
		"PARAM_MARKER":     `{"time_frame":"2025-07-24","domain":"bkash","query_keys":["bkash"]}`,
		"TRACE_MARKER":     `{"relevance_score":80,"key_finding":"timeout during retry","confidence_level":"HIGH"}`,
		"QUALITY_MARKER":   `{"completeness":90,"relevance":85,"coverage":80,"status":"good"}`,
		"RELEVANCE_MARKER": `{"relevance_score":75,"confidence_score":70,"key_findings":["timeout"],"recommendation":"review"}`,
	}}

	gateway := testGateway()
	prompts := llm.NewPrompts(nil, map[string]string{
		"parameter_extraction": "PARAM_MARKER $prompt",
		"trace_analysis":       "TRACE_MARKER $trace_id",
		"quality_assessment":   "QUALITY_MARKER $trace_count",
		"relevance_scoring":    "RELEVANCE_MARKER $trace_id",
	}, 0)

	paramAgent := parameter.NewAgent(provider, gateway, prompts, "default", quietLogger())
	planAgent := planning.NewAgent()
	analyzeAgent := analyze.NewAgent(provider, gateway, prompts, "default", quietLogger())
	relevanceAgent := relevance.NewAgent(provider, gateway, prompts, "default", 0.30, quietLogger())

	reportWriter, err := analyze.NewReportWriter(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)

	tracing, err := obstracing.NewManager(config.TracingConfig{Enabled: false}, quietLogger())
	require.NoError(t, err)

	pool := workerpool.NewWorkerPool(workerpool.WorkerPoolConfig{MaxWorkers: 2, QueueSize: 10, ShutdownTimeout: 5 * time.Second}, quietLogger())
	require.NoError(t, pool.Start())
	t.Cleanup(func() { pool.Stop() })

	contextRulesPath := filepath.Join(t.TempDir(), "context_rules.csv")

	resultCache, err := logquery.NewResultCache(filepath.Join(t.TempDir(), "loki-cache"), nil)
	require.NoError(t, err)
	logqueryClient := logquery.NewClient(lokiURL, resultCache, time.Minute, time.Minute, quietLogger())

	return New(registry, paramAgent, planAgent, analyzeAgent, relevanceAgent, reportWriter, logqueryClient, contextRulesPath, tracing, pool, quietLogger())
}

func drain(events <-chan Event) []Event {
	var all []Event
	for e := range events {
		all = append(all, e)
	}
	return all
}

func eventNames(events []Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

func TestRunHappyPathEmitsAllStagesAndDone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app-2025-07-24.log"), []byte(xmlLogBody), 0o644))

	o := setupOrchestrator(t, dir)
	events := drain(o.Run(t.Context(), "req-1", Request{
		Prompt:      "Investigate failed bKash payments on 2025-07-24",
		ProjectCode: "NCC",
		EnvCode:     "prod",
		CachePolicy: types.CachePolicy{Enabled: true},
	}))

	names := eventNames(events)
	assert.Contains(t, names, EventExtractedParameters)
	assert.Contains(t, names, EventFoundFiles)
	assert.Contains(t, names, EventFoundTraceIDs)
	assert.Contains(t, names, EventCompiledTraces)
	assert.Contains(t, names, EventCompiledSummary)
	assert.Contains(t, names, EventVerificationResults)
	assert.Equal(t, EventDone, names[len(names)-1])

	last := events[len(events)-1]
	payload, ok := last.Data.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "complete", payload["status"])
}

func TestRunSkipsAcquisitionWhenParametersNotReady(t *testing.T) {
	dir := t.TempDir()
	o := setupOrchestrator(t, dir)
	// The shared stub answers every parameter prompt with a date and query
	// keys; this stub answers "{}" so the prompt alone decides readiness.
	o.parameter = parameter.NewAgent(&markerProvider{}, testGateway(), nil, "default", quietLogger())

	events := drain(o.Run(t.Context(), "req-2", Request{
		Prompt:      "Find errors",
		ProjectCode: "NCC",
		EnvCode:     "prod",
		CachePolicy: types.CachePolicy{Enabled: true},
	}))

	names := eventNames(events)
	assert.Contains(t, names, EventError)
	assert.NotContains(t, names, EventFoundFiles)
	assert.Equal(t, EventDone, names[len(names)-1])

	last := events[len(events)-1]
	payload := last.Data.(map[string]string)
	assert.Equal(t, "error", payload["status"])
}

func TestRunEmitsDoneWithoutErrorWhenNoFilesMatch(t *testing.T) {
	dir := t.TempDir() // empty: no log files for the requested date
	o := setupOrchestrator(t, dir)

	events := drain(o.Run(t.Context(), "req-3", Request{
		Prompt:      "Investigate failed bKash payments on 2025-07-24",
		ProjectCode: "NCC",
		EnvCode:     "prod",
		CachePolicy: types.CachePolicy{Enabled: true},
	}))

	names := eventNames(events)
	assert.Contains(t, names, EventFoundFiles)
	assert.NotContains(t, names, EventFoundTraceIDs)
	last := events[len(events)-1]
	payload := last.Data.(map[string]string)
	assert.Equal(t, "complete", payload["status"])
}

func TestRunEmitsErrorForUnknownProject(t *testing.T) {
	o := setupOrchestrator(t, t.TempDir())

	events := drain(o.Run(t.Context(), "req-4", Request{
		Prompt:      "Investigate failed bKash payments on 2025-07-24",
		ProjectCode: "UNKNOWN",
		EnvCode:     "prod",
	}))

	names := eventNames(events)
	assert.Contains(t, names, EventError)
	assert.Equal(t, EventDone, names[len(names)-1])
}

func TestRunRemoteProjectScopesQueryToNamespaceLabel(t *testing.T) {
	var mu sync.Mutex
	var capturedQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		capturedQuery = r.URL.Query().Get("query")
		mu.Unlock()
		w.Write([]byte(`{"status":"success","data":{"result":[{"stream":{"trace_id":"t-1"},"values":[["1700000000000000000","bKash payment failed: timeout"]]}]}}`))
	}))
	defer srv.Close()

	o := setupRemoteOrchestrator(t, srv.URL)
	events := drain(o.Run(t.Context(), "req-5", Request{
		Prompt:      "Investigate failed bKash payments on 2025-07-24",
		ProjectCode: "NCC",
		EnvCode:     "prod",
		CachePolicy: types.CachePolicy{Enabled: true},
	}))

	names := eventNames(events)
	assert.Contains(t, names, EventFoundFiles)
	assert.Contains(t, names, EventFoundTraceIDs)
	assert.Equal(t, EventDone, names[len(names)-1])

	mu.Lock()
	query := capturedQuery
	mu.Unlock()
	require.NotEmpty(t, query, "orchestrator must have issued a remote query")
	assert.Contains(t, query, `service_namespace="ncc"`,
		"remote query must be scoped to the environment's namespace label")
}
