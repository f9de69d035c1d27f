package server

import (
	"context"
	"encoding/json"
	"net/http"

	"logforensics/internal/orchestrator"
	"logforensics/internal/transport"
	"logforensics/pkg/types"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// registerRoutes wires the chat/stream/plan endpoints plus cache
// administration, mirroring the teacher's registerHandlers grouping of
// business routes ahead of operational ones.
func (a *App) registerRoutes(router *mux.Router) {
	router.HandleFunc("/api/chat", a.handleChatSubmit).Methods(http.MethodPost)
	router.HandleFunc("/api/stream/{requestId}", a.handleStream).Methods(http.MethodGet)
	router.HandleFunc("/api/plan", a.handlePlanPreview).Methods(http.MethodPost)

	router.HandleFunc("/cache/ping", a.handleCachePing).Methods(http.MethodGet)
	router.HandleFunc("/cache/stats", a.handleCacheStats).Methods(http.MethodGet)
	router.HandleFunc("/cache/delete", a.handleCacheDelete).Methods(http.MethodPost)
	router.HandleFunc("/cache/clear-l1", a.handleCacheClearL1).Methods(http.MethodPost)

	router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
}

type chatRequest struct {
	Prompt      string             `json:"prompt"`
	ProjectCode string             `json:"project_code"`
	EnvCode     string             `json:"env_code"`
	Domain      string             `json:"domain"`
	Cache       *types.CachePolicy `json:"cache,omitempty"`
}

// cachePolicyOrDefault treats an omitted cache block as caching enabled with
// every other knob at its zero value.
func cachePolicyOrDefault(p *types.CachePolicy) types.CachePolicy {
	if p == nil {
		return types.CachePolicy{Enabled: true}
	}
	return *p
}

type chatResponse struct {
	RequestID string `json:"request_id"`
	StreamURL string `json:"stream_url"`
}

// handleChatSubmit starts one orchestrator run and hands the client a
// request ID plus the URL to stream its events from, per spec.md section
// 6's two-step submit-then-stream interface.
func (a *App) handleChatSubmit(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" || req.ProjectCode == "" || req.EnvCode == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt, project_code, and env_code are required")
		return
	}

	requestID := uuid.New().String()
	// The run outlives this POST: it is consumed by a later GET on the
	// stream URL, so it must not die with the submit request's context.
	runCtx := context.WithoutCancel(r.Context())
	events := a.orchestrator.Run(runCtx, requestID, orchestrator.Request{
		Prompt:      req.Prompt,
		ProjectCode: req.ProjectCode,
		EnvCode:     req.EnvCode,
		Domain:      req.Domain,
		CachePolicy: cachePolicyOrDefault(req.Cache),
	})

	a.runsMu.Lock()
	a.runs[requestID] = events
	a.runsMu.Unlock()

	writeJSON(w, http.StatusAccepted, chatResponse{
		RequestID: requestID,
		StreamURL: "/api/stream/" + requestID,
	})
}

// handleStream formats one run's events as server-sent events. Each
// requestId may only be streamed once: the channel is a single-consumer
// pipe, not a replayable log.
func (a *App) handleStream(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]

	a.runsMu.Lock()
	events, ok := a.runs[requestID]
	delete(a.runs, requestID)
	a.runsMu.Unlock()

	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown or already-consumed request id")
		return
	}

	transport.StreamEvents(w, r, events, a.logger)
}

type planRequest struct {
	Prompt      string `json:"prompt"`
	ProjectCode string `json:"project_code"`
	EnvCode     string `json:"env_code"`
}

// handlePlanPreview exposes C8 standalone: extract parameters, resolve the
// project, and return the plan without running the rest of the pipeline.
func (a *App) handlePlanPreview(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proj, _, err := a.registry.ResolveEnv(req.ProjectCode, req.EnvCode)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	params, err := a.parameter.Extract(r.Context(), req.Prompt, types.CachePolicy{Enabled: true})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	plan := a.planning.Plan(params, proj)
	writeJSON(w, http.StatusOK, plan)
}

func (a *App) handleCachePing(w http.ResponseWriter, r *http.Request) {
	if err := a.gateway.PingL2(r.Context()); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.gateway.StatsSnapshot())
}

type cacheDeleteRequest struct {
	Key string `json:"key"`
}

func (a *App) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	var req cacheDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeJSONError(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := a.gateway.Delete(r.Context(), req.Key); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *App) handleCacheClearL1(w http.ResponseWriter, r *http.Request) {
	a.gateway.ClearL1()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
