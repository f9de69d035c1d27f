package llm

import (
	"context"
	"net/http"
	"time"

	apperrors "logforensics/internal/errors"
	"logforensics/internal/metrics"
	"logforensics/pkg/types"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIProvider wraps github.com/sashabaranov/go-openai for a remote
// OpenAI-compatible gateway: bearer auth plus extra routing headers the
// gateway requires to select a backend, per spec.md section 4.6.
type OpenAIProvider struct {
	client *openai.Client
	logger *logrus.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider constructs an OpenAIProvider targeting baseURL with
// apiKey bearer auth. extraHeaders are attached to every outbound request,
// e.g. a gateway-specific routing header.
func NewOpenAIProvider(baseURL, apiKey string, extraHeaders map[string]string, logger *logrus.Logger) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{
		Timeout:   60 * time.Second,
		Transport: &headerRoundTripper{headers: extraHeaders, base: http.DefaultTransport},
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

// headerRoundTripper injects a fixed set of headers on every request,
// used for gateway routing headers beyond the bearer token go-openai
// already sets.
type headerRoundTripper struct {
	headers map[string]string
	base    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	return h.base.RoundTrip(req)
}

// Chat implements Provider.
func (p *OpenAIProvider) Chat(ctx context.Context, modelID string, messages []types.ChatMessage, options *types.ChatOptions) (types.ChatResponse, error) {
	start := time.Now()

	if options != nil && options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: toOpenAIMessages(messages),
	}
	if options != nil {
		req.Temperature = float32(options.Temperature)
		req.MaxTokens = options.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.RecordLLMCall(p.ProviderName(), "error", time.Since(start))
		return types.ChatResponse{}, apperrors.LLMError("Chat", err.Error()).Wrap(err)
	}
	if len(resp.Choices) == 0 {
		metrics.RecordLLMCall(p.ProviderName(), "error", time.Since(start))
		return types.ChatResponse{}, apperrors.LLMError("Chat", "no choices returned")
	}

	metrics.RecordLLMCall(p.ProviderName(), "success", time.Since(start))
	choice := resp.Choices[0].Message
	return types.ChatResponse{Message: types.ChatMessage{Role: choice.Role, Content: choice.Content}}, nil
}

func toOpenAIMessages(messages []types.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// IsAvailable probes the gateway with a minimal models-list call.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := p.client.ListModels(probeCtx)
	return err == nil
}

// ProviderName implements Provider.
func (p *OpenAIProvider) ProviderName() string { return "remote" }
