package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"logforensics/internal/cache"
	"logforensics/internal/orchestrator"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func testApp(t *testing.T) *App {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	gateway := cache.NewGateway(cache.Config{
		Enabled:      true,
		Namespace:    "test",
		L1Size:       16,
		L1DefaultTTL: time.Minute,
	}, nil, logger)

	app := &App{
		logger:  logger,
		gateway: gateway,
		runs:    make(map[string]<-chan orchestrator.Event),
	}
	router := mux.NewRouter()
	app.registerRoutes(router)
	app.httpServer = &http.Server{Handler: router}
	return app
}

func TestHandleHealthReturnsOK(t *testing.T) {
	app := testApp(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	app.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleChatSubmitRejectsMissingFields(t *testing.T) {
	app := testApp(t)
	body := strings.NewReader(`{"prompt": "find errors"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()

	app.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d for missing project_code/env_code", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleChatSubmitRejectsMalformedBody(t *testing.T) {
	app := testApp(t)
	body := strings.NewReader(`not json`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()

	app.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d for malformed body", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleStreamReturns404ForUnknownRequestID(t *testing.T) {
	app := testApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/stream/does-not-exist", nil)
	rec := httptest.NewRecorder()

	app.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d for unknown request id", rec.Code, http.StatusNotFound)
	}
}

func TestHandleStreamConsumesRunOnlyOnce(t *testing.T) {
	app := testApp(t)
	events := make(chan orchestrator.Event)
	close(events)
	app.runs["req-1"] = events

	first := httptest.NewRecorder()
	app.httpServer.Handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/stream/req-1", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first stream: status = %d, want %d", first.Code, http.StatusOK)
	}

	second := httptest.NewRecorder()
	app.httpServer.Handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/stream/req-1", nil))
	if second.Code != http.StatusNotFound {
		t.Errorf("second stream: status = %d, want %d (already consumed)", second.Code, http.StatusNotFound)
	}
}

func TestHandleCacheStatsReturnsOK(t *testing.T) {
	app := testApp(t)
	req := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
	rec := httptest.NewRecorder()

	app.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleCacheClearL1ReturnsOK(t *testing.T) {
	app := testApp(t)
	req := httptest.NewRequest(http.MethodPost, "/cache/clear-l1", nil)
	rec := httptest.NewRecorder()

	app.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleCacheDeleteRequiresKey(t *testing.T) {
	app := testApp(t)
	req := httptest.NewRequest(http.MethodPost, "/cache/delete", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	app.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d when key is missing", rec.Code, http.StatusBadRequest)
	}
}
