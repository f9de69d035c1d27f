// Package config loads and validates process configuration: YAML file plus
// environment-variable overrides, the same LoadConfig -> applyDefaults ->
// applyEnvironmentOverrides -> ValidateConfig pipeline the teacher uses for
// its own types.Config, fail-fast before any component starts. Hot-reload of
// the project registry file uses fsnotify (see Watcher), mirroring the
// teacher's pkg/hotreload watcher-over-a-channel pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "logforensics/internal/errors"

	"gopkg.in/yaml.v2"
)

// ServerConfig configures the HTTP/SSE transport.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TracingConfig configures the OTel OTLP exporter.
type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	ServiceName    string `yaml:"service_name"`
}

// LLMProviderConfig configures one of the two concrete LLM providers.
type LLMProviderConfig struct {
	Selector     string        `yaml:"selector"` // "local" | "remote"
	LocalURL     string        `yaml:"local_url"`
	RemoteURL    string        `yaml:"remote_url"`
	RemoteAPIKey string        `yaml:"remote_api_key"`
	ModelID      string        `yaml:"model_id"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CacheConfig configures C1, the LLM cache gateway.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Namespace      string        `yaml:"namespace"`
	L1Size         int           `yaml:"l1_size"`
	L1DefaultTTL   time.Duration `yaml:"l1_default_ttl"`
	L2Enabled      bool          `yaml:"l2_enabled"`
	L2URL          string        `yaml:"l2_url"`
	L2AutoProbe    bool          `yaml:"l2_auto_probe"`
	GatewayVersion string        `yaml:"gateway_version"`
	PromptVersion  string        `yaml:"prompt_version"`
}

// LokiCacheConfig configures C2's result cache.
type LokiCacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	CacheDir       string        `yaml:"cache_dir"`
	BroadQueryTTL  time.Duration `yaml:"broad_query_ttl"`
	TraceQueryTTL  time.Duration `yaml:"trace_query_ttl"`
	Endpoint       string        `yaml:"endpoint"`
}

// RelevanceConfig configures C10's pre-filter and batch size.
type RelevanceConfig struct {
	ContextRulesCSV    string  `yaml:"context_rules_csv"`
	IgnoreSaturation   float64 `yaml:"ignore_saturation"` // fraction of lines, e.g. 0.30
	BatchSize          int     `yaml:"batch_size"`
}

// ProjectsConfig points to the YAML-backed ProjectDescriptor registry.
type ProjectsConfig struct {
	RegistryFile string `yaml:"registry_file"`
}

// ReportsConfig configures where C9 writes analysis artifacts.
type ReportsConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Config is the top-level process configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Tracing   TracingConfig     `yaml:"tracing"`
	LLM       LLMProviderConfig `yaml:"llm"`
	Cache     CacheConfig       `yaml:"cache"`
	Loki      LokiCacheConfig   `yaml:"loki"`
	Relevance RelevanceConfig   `yaml:"relevance"`
	Projects  ProjectsConfig    `yaml:"projects"`
	Reports   ReportsConfig     `yaml:"reports"`
	LogLevel  string            `yaml:"log_level"`

	loadedFromFile bool
}

// LoadConfig loads config from configFile (if non-empty), applies defaults,
// applies environment overrides, and validates. It never panics; validation
// errors are returned to the caller so the process can fail fast at startup.
func LoadConfig(configFile string) (*Config, error) {
	config := &Config{}

	if configFile != "" {
		if err := loadConfigFile(configFile, config); err != nil {
			fmt.Printf("warning: failed to load config file %s: %v\n", configFile, err)
		} else {
			config.loadedFromFile = true
			fmt.Printf("loaded configuration from file: %s\n", configFile)
		}
	}

	applyDefaults(config)
	applyEnvironmentOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadConfigFile(filename string, config *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

// applyDefaults fills zero-valued fields with sane defaults, the same
// shape as the teacher's applyDefaults over types.Config.
func applyDefaults(c *Config) {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "logforensics"
	}
	if c.LLM.Selector == "" {
		c.LLM.Selector = "local"
	}
	if c.LLM.LocalURL == "" {
		c.LLM.LocalURL = "http://127.0.0.1:11434/v1/chat/completions"
	}
	if c.LLM.ModelID == "" {
		c.LLM.ModelID = "default"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.Cache.Namespace == "" {
		c.Cache.Namespace = "default"
	}
	if c.Cache.L1Size == 0 {
		c.Cache.L1Size = 2048
	}
	if c.Cache.L1DefaultTTL == 0 {
		c.Cache.L1DefaultTTL = 30 * time.Minute
	}
	if c.Cache.GatewayVersion == "" {
		c.Cache.GatewayVersion = "v1"
	}
	if c.Cache.PromptVersion == "" {
		c.Cache.PromptVersion = "v1"
	}
	if c.Loki.CacheDir == "" {
		c.Loki.CacheDir = "./data/loki-cache"
	}
	if c.Loki.BroadQueryTTL == 0 {
		c.Loki.BroadQueryTTL = 4 * time.Hour
	}
	if c.Loki.TraceQueryTTL == 0 {
		c.Loki.TraceQueryTTL = 6 * time.Hour
	}
	if c.Relevance.ContextRulesCSV == "" {
		c.Relevance.ContextRulesCSV = "./data/context_rules.csv"
	}
	if c.Relevance.IgnoreSaturation == 0 {
		c.Relevance.IgnoreSaturation = 0.30
	}
	if c.Relevance.BatchSize == 0 {
		c.Relevance.BatchSize = 10
	}
	if c.Projects.RegistryFile == "" {
		c.Projects.RegistryFile = "./data/projects.yaml"
	}
	if c.Reports.OutputDir == "" {
		c.Reports.OutputDir = "./data/reports"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// applyEnvironmentOverrides overrides config fields from the process
// environment, taking precedence over both file and defaults.
func applyEnvironmentOverrides(c *Config) {
	c.Server.Host = getEnvString("LOGFORENSICS_SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("LOGFORENSICS_SERVER_PORT", c.Server.Port)
	c.Metrics.Addr = getEnvString("LOGFORENSICS_METRICS_ADDR", c.Metrics.Addr)
	c.Metrics.Enabled = getEnvBool("LOGFORENSICS_METRICS_ENABLED", c.Metrics.Enabled)
	c.Tracing.Enabled = getEnvBool("LOGFORENSICS_TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.OTLPEndpoint = getEnvString("LOGFORENSICS_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)

	c.LLM.Selector = getEnvString("LOGFORENSICS_LLM_SELECTOR", c.LLM.Selector)
	c.LLM.LocalURL = getEnvString("LOGFORENSICS_LLM_LOCAL_URL", c.LLM.LocalURL)
	c.LLM.RemoteURL = getEnvString("LOGFORENSICS_LLM_REMOTE_URL", c.LLM.RemoteURL)
	c.LLM.RemoteAPIKey = getEnvString("LOGFORENSICS_LLM_API_KEY", c.LLM.RemoteAPIKey)
	c.LLM.ModelID = getEnvString("LOGFORENSICS_LLM_MODEL_ID", c.LLM.ModelID)
	c.LLM.Timeout = getEnvDuration("LOGFORENSICS_LLM_TIMEOUT", c.LLM.Timeout)

	c.Cache.Enabled = getEnvBool("LOGFORENSICS_CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Namespace = getEnvString("LOGFORENSICS_CACHE_NAMESPACE", c.Cache.Namespace)
	c.Cache.L1Size = getEnvInt("LOGFORENSICS_CACHE_L1_SIZE", c.Cache.L1Size)
	c.Cache.L1DefaultTTL = getEnvDuration("LOGFORENSICS_CACHE_L1_TTL", c.Cache.L1DefaultTTL)
	c.Cache.L2Enabled = getEnvBool("LOGFORENSICS_CACHE_L2_ENABLED", c.Cache.L2Enabled)
	c.Cache.L2URL = getEnvString("LOGFORENSICS_CACHE_L2_URL", c.Cache.L2URL)
	c.Cache.L2AutoProbe = getEnvBool("LOGFORENSICS_CACHE_L2_AUTOPROBE", c.Cache.L2AutoProbe)
	c.Cache.GatewayVersion = getEnvString("LOGFORENSICS_CACHE_GATEWAY_VERSION", c.Cache.GatewayVersion)
	c.Cache.PromptVersion = getEnvString("LOGFORENSICS_CACHE_PROMPT_VERSION", c.Cache.PromptVersion)

	c.Loki.Enabled = getEnvBool("LOGFORENSICS_LOKI_ENABLED", c.Loki.Enabled)
	c.Loki.Endpoint = getEnvString("LOGFORENSICS_LOKI_ENDPOINT", c.Loki.Endpoint)
	c.Loki.CacheDir = getEnvString("LOGFORENSICS_LOKI_CACHE_DIR", c.Loki.CacheDir)
	c.Loki.BroadQueryTTL = getEnvDuration("LOGFORENSICS_LOKI_BROAD_TTL", c.Loki.BroadQueryTTL)
	c.Loki.TraceQueryTTL = getEnvDuration("LOGFORENSICS_LOKI_TRACE_TTL", c.Loki.TraceQueryTTL)

	c.Relevance.ContextRulesCSV = getEnvString("LOGFORENSICS_CONTEXT_RULES_CSV", c.Relevance.ContextRulesCSV)
	c.Relevance.BatchSize = getEnvInt("LOGFORENSICS_RELEVANCE_BATCH_SIZE", c.Relevance.BatchSize)

	c.Projects.RegistryFile = getEnvString("LOGFORENSICS_PROJECTS_REGISTRY", c.Projects.RegistryFile)
	c.Reports.OutputDir = getEnvString("LOGFORENSICS_REPORTS_DIR", c.Reports.OutputDir)
	c.LogLevel = getEnvString("LOGFORENSICS_LOG_LEVEL", c.LogLevel)
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// ConfigValidator accumulates validation errors across config sections
// before failing, mirroring the teacher's ConfigValidator.
type ConfigValidator struct {
	config *Config
	errs   []*apperrors.AppError
}

// ValidateConfig runs every section validator and fails fast with an
// aggregated error if any section is invalid.
func ValidateConfig(config *Config) error {
	v := &ConfigValidator{config: config}
	return v.Validate()
}

func (v *ConfigValidator) Validate() error {
	v.validateServer()
	v.validateLLM()
	v.validateCache()
	v.validateRelevance()

	if len(v.errs) == 0 {
		return nil
	}
	return v.buildValidationError()
}

func (v *ConfigValidator) addError(component, operation, message string) {
	v.errs = append(v.errs, apperrors.InputError(operation, fmt.Sprintf("%s: %s", component, message)))
}

func (v *ConfigValidator) validateServer() {
	if v.config.Server.Port <= 0 || v.config.Server.Port > 65535 {
		v.addError("server", "validateServer", "port must be between 1 and 65535")
	}
}

func (v *ConfigValidator) validateLLM() {
	switch v.config.LLM.Selector {
	case "local", "remote":
	default:
		v.addError("llm", "validateLLM", "selector must be 'local' or 'remote'")
	}
	if v.config.LLM.Selector == "remote" && v.config.LLM.RemoteURL == "" {
		v.addError("llm", "validateLLM", "remote_url is required when selector is 'remote'")
	}
}

func (v *ConfigValidator) validateCache() {
	if v.config.Cache.L1Size <= 0 {
		v.addError("cache", "validateCache", "l1_size must be positive")
	}
	if v.config.Cache.L2Enabled && v.config.Cache.L2URL == "" {
		v.addError("cache", "validateCache", "l2_url is required when l2_enabled is true")
	}
}

func (v *ConfigValidator) validateRelevance() {
	if v.config.Relevance.IgnoreSaturation <= 0 || v.config.Relevance.IgnoreSaturation >= 1 {
		v.addError("relevance", "validateRelevance", "ignore_saturation must be in (0, 1)")
	}
	if v.config.Relevance.BatchSize <= 0 {
		v.addError("relevance", "validateRelevance", "batch_size must be positive")
	}
}

func (v *ConfigValidator) buildValidationError() error {
	msgs := make([]string, 0, len(v.errs))
	for _, e := range v.errs {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("%d config error(s): %s", len(v.errs), strings.Join(msgs, "; "))
}
