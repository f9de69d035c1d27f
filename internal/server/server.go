// Package server wires C1-C11 into one running process: configuration,
// logging, the LLM cache gateway, the Loki query client, every agent, the
// worker pool, tracing, metrics, and the HTTP/SSE transport. Grounded on the
// teacher's internal/app package (App struct plus initCoreServices /
// initHTTPServer / initMetricsServer / Start / Stop sequencing).
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"logforensics/internal/agents/analyze"
	"logforensics/internal/agents/parameter"
	"logforensics/internal/agents/planning"
	"logforensics/internal/agents/relevance"
	"logforensics/internal/cache"
	"logforensics/internal/config"
	"logforensics/internal/llm"
	"logforensics/internal/logquery"
	"logforensics/internal/metrics"
	"logforensics/internal/obstracing"
	"logforensics/internal/orchestrator"
	"logforensics/internal/project"
	"logforensics/pkg/workerpool"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ShutdownTimeout bounds how long Stop waits for in-flight requests and
// background workers to drain.
const ShutdownTimeout = 15 * time.Second

// App is the fully-wired process: every component plus the two HTTP
// servers (API and metrics), mirroring the teacher's App struct.
type App struct {
	config *config.Config
	logger *logrus.Logger

	registry     *project.Registry
	gateway      *cache.Gateway
	resultCache  *logquery.ResultCache
	logquery     *logquery.Client
	provider     llm.Provider
	prompts      *llm.Prompts
	pool         *workerpool.WorkerPool
	tracing      *obstracing.Manager
	orchestrator *orchestrator.Orchestrator
	parameter    *parameter.Agent
	planning     *planning.Agent
	registryWatch *config.Watcher

	httpServer    *http.Server
	metricsServer *metrics.Server

	runs   map[string]<-chan orchestrator.Event
	runsMu sync.Mutex
}

// New loads configuration and constructs every component, but starts
// nothing; Start begins serving.
func New(configFile string) (*App, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	if level, parseErr := logrus.ParseLevel(cfg.LogLevel); parseErr == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})

	registry, err := project.Load(cfg.Projects.RegistryFile)
	if err != nil {
		return nil, fmt.Errorf("load project registry: %w", err)
	}

	var l2 cache.L2Store // nil: no L2 backend wired for this deployment shape
	gateway := cache.NewGateway(cache.Config{
		Enabled:        cfg.Cache.Enabled,
		Namespace:      cfg.Cache.Namespace,
		GatewayVersion: cfg.Cache.GatewayVersion,
		PromptVersion:  cfg.Cache.PromptVersion,
		L1Size:         cfg.Cache.L1Size,
		L1DefaultTTL:   cfg.Cache.L1DefaultTTL,
		L2AutoProbe:    cfg.Cache.L2AutoProbe,
	}, l2, logger)

	resultCache, err := logquery.NewResultCache(cfg.Loki.CacheDir, nil)
	if err != nil {
		return nil, fmt.Errorf("init loki result cache: %w", err)
	}
	logqueryClient := logquery.NewClient(cfg.Loki.Endpoint, resultCache, cfg.Loki.BroadQueryTTL, cfg.Loki.TraceQueryTTL, logger)

	provider, err := buildProvider(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}

	prompts := llm.NewPrompts(nil, defaultPromptTemplates(), 5*time.Minute)

	paramAgent := parameter.NewAgent(provider, gateway, prompts, cfg.LLM.ModelID, logger)
	planAgent := planning.NewAgent()
	analyzeAgent := analyze.NewAgent(provider, gateway, prompts, cfg.LLM.ModelID, logger)
	relevanceAgent := relevance.NewAgent(provider, gateway, prompts, cfg.LLM.ModelID, cfg.Relevance.IgnoreSaturation, logger)

	reportWriter, err := analyze.NewReportWriter(cfg.Reports.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("init report writer: %w", err)
	}

	tracing, err := obstracing.NewManager(cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	pool := workerpool.NewWorkerPool(workerpool.WorkerPoolConfig{
		MaxWorkers: 8,
		QueueSize:  64,
	}, logger)

	orch := orchestrator.New(registry, paramAgent, planAgent, analyzeAgent, relevanceAgent, reportWriter, logqueryClient, cfg.Relevance.ContextRulesCSV, tracing, pool, logger)

	registryWatch, err := config.NewWatcher([]string{cfg.Projects.RegistryFile}, 2*time.Second, func(path string) {
		if reloadErr := registry.Reload(path); reloadErr != nil {
			logger.WithError(reloadErr).WithField("file", path).Warn("failed to reload project registry")
			return
		}
		logger.WithField("file", path).Info("project registry reloaded")
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init registry watcher: %w", err)
	}

	app := &App{
		config:       cfg,
		logger:       logger,
		registry:     registry,
		gateway:      gateway,
		resultCache:  resultCache,
		logquery:     logqueryClient,
		provider:     provider,
		prompts:      prompts,
		pool:         pool,
		tracing:      tracing,
		orchestrator: orch,
		parameter:    paramAgent,
		planning:     planAgent,
		registryWatch: registryWatch,
		runs:         make(map[string]<-chan orchestrator.Event),
	}

	router := mux.NewRouter()
	app.registerRoutes(router)
	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	if cfg.Metrics.Enabled {
		app.metricsServer = metrics.NewServer(cfg.Metrics.Addr, logger)
	}

	return app, nil
}

func buildProvider(cfg config.LLMProviderConfig, logger *logrus.Logger) (llm.Provider, error) {
	switch cfg.Selector {
	case "remote":
		headers := map[string]string{}
		return llm.NewOpenAIProvider(cfg.RemoteURL, cfg.RemoteAPIKey, headers, logger), nil
	case "local", "":
		return llm.NewLocalProvider(cfg.LocalURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm selector %q", cfg.Selector)
	}
}

// defaultPromptTemplates seeds C6's four prompt slots so the process works
// out of the box even with no external prompt source configured.
func defaultPromptTemplates() map[string]string {
	return map[string]string{
		"parameter_extraction": parameterExtractionPrompt,
		"trace_analysis":       traceAnalysisPrompt,
		"quality_assessment":   qualityAssessmentPrompt,
		"relevance_scoring":    relevanceScoringPrompt,
	}
}

// Start begins serving HTTP and the background worker pool, mirroring the
// teacher's App.Start ordering: background services first, HTTP servers
// last so they never field requests against a half-initialized pipeline.
func (a *App) Start() error {
	a.logger.Info("starting log-analysis server")

	if err := a.pool.Start(); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	a.registryWatch.Start()

	if a.metricsServer != nil {
		if err := a.metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	go func() {
		a.logger.WithField("addr", a.httpServer.Addr).Info("starting HTTP server")
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()

	a.logger.Info("log-analysis server started")
	return nil
}

// Stop performs graceful shutdown: HTTP first (stop taking new work), then
// the worker pool (drain in-flight tasks), then tracing (flush spans).
func (a *App) Stop(ctx context.Context) error {
	a.logger.Info("shutting down log-analysis server")

	a.registryWatch.Stop()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("HTTP server shutdown error")
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			a.logger.WithError(err).Warn("metrics server shutdown error")
		}
	}
	if err := a.pool.Stop(); err != nil {
		a.logger.WithError(err).Warn("worker pool shutdown error")
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("tracing shutdown error")
	}

	a.logger.Info("log-analysis server stopped")
	return nil
}
