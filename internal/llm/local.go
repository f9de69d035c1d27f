package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	apperrors "logforensics/internal/errors"
	"logforensics/internal/metrics"
	"logforensics/pkg/types"

	"github.com/sirupsen/logrus"
)

// LocalProvider talks to an unauthenticated local inference daemon over
// HTTP POST, per spec.md section 4.6.
type LocalProvider struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider constructs a LocalProvider targeting baseURL.
func NewLocalProvider(baseURL string, logger *logrus.Logger) *LocalProvider {
	return &LocalProvider{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

type localChatRequest struct {
	Model       string             `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
}

type localChatResponse struct {
	Message types.ChatMessage `json:"message"`
}

// Chat implements Provider.
func (p *LocalProvider) Chat(ctx context.Context, modelID string, messages []types.ChatMessage, options *types.ChatOptions) (types.ChatResponse, error) {
	start := time.Now()
	reqBody := localChatRequest{Model: modelID, Messages: messages}
	if options != nil {
		reqBody.Temperature = options.Temperature
		reqBody.MaxTokens = options.MaxTokens
	}

	if options != nil && options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		metrics.RecordLLMCall(p.ProviderName(), "error", time.Since(start))
		return types.ChatResponse{}, apperrors.LLMError("Chat", err.Error()).Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(raw))
	if err != nil {
		metrics.RecordLLMCall(p.ProviderName(), "error", time.Since(start))
		return types.ChatResponse{}, apperrors.LLMError("Chat", err.Error()).Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		metrics.RecordLLMCall(p.ProviderName(), "error", time.Since(start))
		return types.ChatResponse{}, apperrors.LLMError("Chat", err.Error()).Wrap(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordLLMCall(p.ProviderName(), "error", time.Since(start))
		return types.ChatResponse{}, apperrors.LLMError("Chat", err.Error()).Wrap(err)
	}
	if resp.StatusCode >= 400 {
		metrics.RecordLLMCall(p.ProviderName(), "error", time.Since(start))
		return types.ChatResponse{}, apperrors.LLMError("Chat", "local provider returned "+resp.Status+": "+string(body))
	}

	var parsed localChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.RecordLLMCall(p.ProviderName(), "error", time.Since(start))
		return types.ChatResponse{}, apperrors.LLMError("Chat", "invalid response envelope").Wrap(err)
	}

	metrics.RecordLLMCall(p.ProviderName(), "success", time.Since(start))
	return types.ChatResponse{Message: parsed.Message}, nil
}

// IsAvailable sends a GET to the configured baseURL with a short timeout and
// reports true for any status below 500.
func (p *LocalProvider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// ProviderName implements Provider.
func (p *LocalProvider) ProviderName() string { return "local" }
