// Package orchestrator implements C11: the six-stage forward-only state
// machine that sequences C7 -> C2/C3 -> C4 -> C5 -> C9 -> C10 and streams a
// progress event after every stage, grounded on spec.md section 4.11's
// S0..S6 diagram. Event names and payload shapes match section 6's external
// interface so internal/transport can format them as server-sent events
// without any further translation.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"logforensics/internal/agents/analyze"
	"logforensics/internal/agents/parameter"
	"logforensics/internal/agents/planning"
	"logforensics/internal/agents/relevance"
	apperrors "logforensics/internal/errors"
	"logforensics/internal/logfile"
	"logforensics/internal/logquery"
	"logforensics/internal/metrics"
	"logforensics/internal/obstracing"
	"logforensics/internal/project"
	"logforensics/internal/tracecompile"
	"logforensics/internal/traceextract"
	"logforensics/pkg/types"
	"logforensics/pkg/workerpool"

	"github.com/sirupsen/logrus"
)

// Event names, verbatim from spec.md section 6's external interface.
const (
	EventExtractedParameters = "Extracted Parameters"
	EventFoundFiles          = "Found relevant files"
	EventFoundTraceIDs       = "Found trace id(s)"
	EventCompiledTraces      = "Compiled Request Traces"
	EventCompiledSummary     = "Compiled Summary"
	EventVerificationResults = "Verification Results"
	EventDone                = "done"
	EventError               = "error"
)

// Event is one (step_name, payload) pair the orchestrator yields; transport
// formats Data as the SSE data field.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// Request is everything needed to drive one pipeline run.
type Request struct {
	Prompt      string
	ProjectCode string
	EnvCode     string
	Domain      string // request-level domain hint; merged in only if C7 extracted none
	CachePolicy types.CachePolicy
}

// Orchestrator is C11.
type Orchestrator struct {
	registry         *project.Registry
	parameter        *parameter.Agent
	planning         *planning.Agent
	analyze          *analyze.Agent
	relevance        *relevance.Agent
	reports          *analyze.ReportWriter
	logqueryClient   *logquery.Client
	contextRulesPath string
	tracing          *obstracing.Manager
	pool             *workerpool.WorkerPool
	logger           *logrus.Logger
}

// New constructs the orchestrator from its fully-wired dependencies; cmd/server
// owns construction of each of these (agents, gateway, registry, pool).
func New(
	registry *project.Registry,
	parameterAgent *parameter.Agent,
	planningAgent *planning.Agent,
	analyzeAgent *analyze.Agent,
	relevanceAgent *relevance.Agent,
	reports *analyze.ReportWriter,
	logqueryClient *logquery.Client,
	contextRulesPath string,
	tracing *obstracing.Manager,
	pool *workerpool.WorkerPool,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:         registry,
		parameter:        parameterAgent,
		planning:         planningAgent,
		analyze:          analyzeAgent,
		relevance:        relevanceAgent,
		reports:          reports,
		logqueryClient:   logqueryClient,
		contextRulesPath: contextRulesPath,
		tracing:          tracing,
		pool:             pool,
		logger:           logger,
	}
}

// acquiredBody is one candidate source the pipeline read, either a file on
// disk or a downloaded Loki response, paired with its decoded text.
type acquiredBody struct {
	sourceFile string
	content    string
}

// run carries per-request mutable state so Orchestrator itself stays
// stateless and safe for concurrent requests, per spec.md section 5's
// "independent requests run in parallel" scheduling model.
type run struct {
	o         *Orchestrator
	requestID string
	policy    types.CachePolicy
	events    chan Event
	errored   bool
}

// Run starts the pipeline for req and returns a channel of events, closed
// once the terminal "done" event has been sent. The caller (internal/transport)
// ranges over the channel and formats each Event as an SSE frame.
func (o *Orchestrator) Run(ctx context.Context, requestID string, req Request) <-chan Event {
	r := &run{o: o, requestID: requestID, policy: req.CachePolicy, events: make(chan Event, 16)}
	go r.execute(ctx, req)
	return r.events
}

func (r *run) execute(ctx context.Context, req Request) {
	defer close(r.events)
	defer func() {
		status := "complete"
		if r.errored {
			status = "error"
		}
		metrics.RecordOrchestratorRun(status)
		r.emit(EventDone, map[string]string{"status": status})
	}()

	params, proj, env, ok := r.stageExtractParameters(ctx, req)
	if !ok {
		return
	}

	bodies, ok := r.stageAcquireLogs(ctx, params, proj, env)
	if !ok {
		return
	}
	if len(bodies) == 0 {
		return // nothing to do; terminal done already deferred above
	}

	candidates, traceIDs, ok := r.stageExtractTraceIDs(ctx, bodies)
	if !ok {
		return
	}
	if len(traceIDs) == 0 {
		return
	}

	bundles, ok := r.stageCompileBundles(ctx, candidates, traceIDs)
	if !ok {
		return
	}
	if len(bundles) == 0 {
		return
	}

	analyses, ok := r.stageAnalyze(ctx, req.Prompt, params, bundles, proj)
	if !ok {
		return
	}

	r.stageScoreRelevance(ctx, req.Prompt, params, bundles, analyses)
}

func (r *run) emit(name string, data interface{}) {
	select {
	case r.events <- Event{Name: name, Data: data}:
	default:
		// The channel is buffered generously relative to the number of
		// stages; a full buffer means nobody is draining it, so drop
		// rather than block the pipeline.
		r.o.logger.WithField("event", name).Warn("orchestrator: event channel full, dropping event")
	}
}

func (r *run) emitError(err error) {
	r.errored = true
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.WrapError(err, apperrors.KindIO, "orchestrator", "execute", err.Error())
	}
	r.o.logger.WithFields(logrus.Fields(appErr.ToMap())).Warn("orchestrator: stage failed")
	r.emit(EventError, map[string]string{"kind": string(appErr.Kind), "code": appErr.Code, "message": appErr.Message})
}

func (r *run) stage(ctx context.Context, name string) (context.Context, func(errp *error)) {
	start := time.Now()
	ctx, endSpan := r.o.tracing.Stage(ctx, name)
	return ctx, func(errp *error) {
		endSpan(errp)
		metrics.RecordOrchestratorStage(name, time.Since(start))
	}
}

// stageExtractParameters is S0 -> S1: extract_parameters (C7). If the
// extracted parameters aren't ready to proceed (missing time_frame or
// query_keys), the planning agent (C8) is used only to render helpful
// blocking questions for the error payload; acquisition is never attempted,
// per spec.md section 4's worked scenario for an under-specified prompt.
func (r *run) stageExtractParameters(ctx context.Context, req Request) (types.SearchParameters, types.ProjectDescriptor, types.EnvDescriptor, bool) {
	ctx, end := r.stage(ctx, "extract_parameters")
	var err error
	defer func() { end(&err) }()

	proj, env, resolveErr := r.o.registry.ResolveEnv(req.ProjectCode, req.EnvCode)
	if resolveErr != nil {
		err = apperrors.InputError("stageExtractParameters", resolveErr.Error())
		r.emitError(err)
		return types.SearchParameters{}, types.ProjectDescriptor{}, types.EnvDescriptor{}, false
	}

	params, extractErr := r.o.parameter.Extract(ctx, req.Prompt, r.policy)
	if extractErr != nil {
		err = extractErr
		r.emitError(err)
		return types.SearchParameters{}, types.ProjectDescriptor{}, types.EnvDescriptor{}, false
	}
	params.RequestID = r.requestID
	if params.Domain == "" {
		params.Domain = req.Domain
	}

	if !params.Ready() {
		plan := r.o.planning.Plan(params, proj)
		err = apperrors.InputError("stageExtractParameters", "insufficient parameters: "+strings.Join(plan.BlockingQuestions, " "))
		r.emitError(err)
		return types.SearchParameters{}, types.ProjectDescriptor{}, types.EnvDescriptor{}, false
	}

	r.emit(EventExtractedParameters, params)
	return params, proj, env, true
}

// stageAcquireLogs is S1 -> S2: search_files (C3) for file-backed projects,
// fetch_logs (C2) for remote ones.
func (r *run) stageAcquireLogs(ctx context.Context, params types.SearchParameters, proj types.ProjectDescriptor, env types.EnvDescriptor) ([]acquiredBody, bool) {
	ctx, end := r.stage(ctx, "acquire_logs")
	var err error
	defer func() { end(&err) }()

	var bodies []acquiredBody
	switch proj.LogSourceKind {
	case types.LogSourceFile:
		bodies, err = r.acquireFromFiles(env.FilesystemRoot, params)
	default:
		bodies, err = r.acquireFromRemote(ctx, params, env)
	}
	if err != nil {
		r.emitError(err)
		return nil, false
	}

	names := make([]string, len(bodies))
	for i, b := range bodies {
		names[i] = b.sourceFile
	}
	r.emit(EventFoundFiles, map[string]interface{}{"files": names, "count": len(names)})
	return bodies, true
}

func (r *run) acquireFromFiles(root string, params types.SearchParameters) ([]acquiredBody, error) {
	paths, err := logfile.Discover(root, params.TimeFrame)
	if err != nil {
		return nil, err
	}
	bodies := make([]acquiredBody, 0, len(paths))
	for _, path := range paths {
		content, readErr := logfile.ReadFullContent(path)
		if readErr != nil {
			r.o.logger.WithError(readErr).WithField("path", path).Warn("orchestrator: skipping unreadable file")
			continue
		}
		bodies = append(bodies, acquiredBody{sourceFile: path, content: content})
	}
	return bodies, nil
}

// acquireFromRemote fetches the single Loki-style range query that covers
// params.TimeFrame, scoped to env's namespace label via the
// "service_namespace" filter, per spec.md section 4's worked scenario 1
// selector: `{service_namespace="ncc"} |= "bkash"`.
func (r *run) acquireFromRemote(ctx context.Context, params types.SearchParameters, env types.EnvDescriptor) ([]acquiredBody, error) {
	filters := map[string]string{}
	if env.NamespaceLabel != "" {
		filters["service_namespace"] = env.NamespaceLabel
	}
	path, err := r.o.logqueryClient.Query(ctx, logquery.Params{
		Filters:     filters,
		SearchTerms: params.QueryKeys,
		Date:        params.TimeFrame,
	})
	if err != nil {
		return nil, err
	}
	content, err := logfile.ReadFullContent(path)
	if err != nil {
		return nil, err
	}
	return []acquiredBody{{sourceFile: path, content: content}}, nil
}

// stageExtractTraceIDs is S2 -> S3: extract_trace_ids (C4), and in the same
// pass builds the RawRecord candidates C5 will need in S4 so every source
// body is only parsed once.
func (r *run) stageExtractTraceIDs(ctx context.Context, bodies []acquiredBody) ([]tracecompile.RawRecord, []string, bool) {
	_, end := r.stage(ctx, "extract_trace_ids")
	var err error
	defer func() { end(&err) }()

	var allResults []traceextract.Result
	var candidates []tracecompile.RawRecord
	for _, body := range bodies {
		allResults = append(allResults, traceextract.ExtractAll(body.content)...)
		candidates = append(candidates, recordsFor(body.content, body.sourceFile)...)
	}
	traceIDs := traceextract.Unique(allResults)

	r.emit(EventFoundTraceIDs, map[string]interface{}{"trace_ids": traceIDs, "count": len(traceIDs)})
	return candidates, traceIDs, true
}

// recordsFor dispatches to the JSON-stream or XML-row candidate builder
// based on the same "does this look like a Loki response" heuristic
// internal/traceextract uses per call.
func recordsFor(content, sourceFile string) []tracecompile.RawRecord {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, `"result"`) {
		return tracecompile.CandidatesFromJSONStream(content, sourceFile)
	}
	return tracecompile.CandidatesFromXMLRows(content, sourceFile)
}

// stageCompileBundles is S3 -> S4: compile_bundles (C5).
func (r *run) stageCompileBundles(ctx context.Context, candidates []tracecompile.RawRecord, traceIDs []string) ([]types.TraceBundle, bool) {
	_, end := r.stage(ctx, "compile_bundles")
	var err error
	defer func() { end(&err) }()

	bundles := make([]types.TraceBundle, 0, len(traceIDs))
	for _, traceID := range traceIDs {
		bundle, compileErr := tracecompile.Compile(traceID, candidates)
		if compileErr != nil {
			r.o.logger.WithError(compileErr).WithField("trace_id", traceID).Warn("orchestrator: skipping trace with no matching entries")
			continue
		}
		bundles = append(bundles, bundle)
	}

	r.emit(EventCompiledTraces, map[string]interface{}{"trace_count": len(bundles)})
	return bundles, true
}

// stageAnalyze is S4 -> S5: analyze_and_write_reports (C9). Per-trace
// analysis runs over the bounded worker pool (spec.md section 5: "per-trace
// analysis and per-trace relevance scoring are both parallelizable over a
// bounded worker pool").
func (r *run) stageAnalyze(ctx context.Context, disputeText string, params types.SearchParameters, bundles []types.TraceBundle, proj types.ProjectDescriptor) (map[string]types.TraceAnalysis, bool) {
	ctx, end := r.stage(ctx, "analyze_and_write_reports")
	var err error
	defer func() { end(&err) }()

	hasSourceFiles := proj.LogSourceKind == types.LogSourceFile
	analyses := make(map[string]types.TraceAnalysis, len(bundles))
	var mu sync.Mutex
	var wg sync.WaitGroup

	runOne := func(taskCtx context.Context, bundle types.TraceBundle) {
		analysis, analyzeErr := r.o.analyze.AnalyzeTrace(taskCtx, disputeText, params, bundle, hasSourceFiles, r.policy)
		if analyzeErr != nil {
			analysis = types.DefaultTraceAnalysis()
		}
		mu.Lock()
		analyses[bundle.TraceID] = analysis
		mu.Unlock()
		if _, writeErr := r.o.reports.WriteTraceReport(r.requestID, params, bundle, analysis); writeErr != nil {
			r.o.logger.WithError(writeErr).WithField("trace_id", bundle.TraceID).Warn("orchestrator: failed to write trace report")
		}
	}

	for _, bundle := range bundles {
		bundle := bundle
		wg.Add(1)
		task := workerpool.Task{
			ID: "analyze-" + bundle.TraceID,
			Execute: func(taskCtx context.Context) error {
				defer wg.Done()
				runOne(taskCtx, bundle)
				return nil
			},
		}
		if submitErr := r.o.pool.SubmitTask(task); submitErr != nil {
			r.o.logger.WithError(submitErr).WithField("trace_id", bundle.TraceID).Warn("orchestrator: worker pool rejected analyze task, running inline")
			runOne(ctx, bundle)
			wg.Done()
		}
	}
	wg.Wait()

	quality := r.o.analyze.AssessQuality(ctx, disputeText, params, bundles, r.policy)
	ranked := analyze.RankByRelevance(analyses)
	if _, writeErr := r.o.reports.WriteMasterReport(r.requestID, params, disputeText, bundles, analyses, ranked, quality); writeErr != nil {
		err = writeErr
		r.emitError(err)
		return analyses, false
	}

	r.emit(EventCompiledSummary, map[string]interface{}{"ranked_trace_ids": ranked, "quality": quality})
	return analyses, true
}

// stageScoreRelevance is S5 -> S6: score_relevance (C10).
func (r *run) stageScoreRelevance(ctx context.Context, disputeText string, params types.SearchParameters, bundles []types.TraceBundle, analyses map[string]types.TraceAnalysis) {
	ctx, end := r.stage(ctx, "score_relevance")
	var err error
	defer func() { end(&err) }()

	rules, loadErr := relevance.LoadContextRules(r.o.contextRulesPath)
	if loadErr != nil {
		err = loadErr
		r.emitError(err)
		return
	}
	selected := relevance.SelectRules(rules, params.Domain, params.QueryKeys)

	results := make([]types.RelevanceResult, len(bundles))
	var mu sync.Mutex
	var wg sync.WaitGroup

	runOne := func(taskCtx context.Context, i int, bundle types.TraceBundle) {
		filePath := r.o.reports.TraceReportPath(r.requestID, bundle.TraceID)
		result := r.o.relevance.Score(taskCtx, disputeText, params, bundle, filePath, selected, r.policy)
		mu.Lock()
		results[i] = result
		mu.Unlock()
	}

	for i, bundle := range bundles {
		i, bundle := i, bundle
		wg.Add(1)
		task := workerpool.Task{
			ID: "relevance-" + bundle.TraceID,
			Execute: func(taskCtx context.Context) error {
				defer wg.Done()
				runOne(taskCtx, i, bundle)
				return nil
			},
		}
		if submitErr := r.o.pool.SubmitTask(task); submitErr != nil {
			runOne(ctx, i, bundle)
			wg.Done()
		}
	}
	wg.Wait()

	summary := relevance.Summarize(results)
	r.emit(EventVerificationResults, map[string]interface{}{
		"results": results,
		"buckets": relevance.BucketCounts(results),
		"summary": summary,
	})
}
