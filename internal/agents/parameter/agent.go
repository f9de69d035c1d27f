// Package parameter implements C7: turning a natural-language prompt into
// types.SearchParameters via an LLM call constrained to JSON-only output
// drawn from fixed allow-lists, with tolerant JSON extraction and a regex
// fallback when the LLM's output can't be parsed at all.
package parameter

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"logforensics/internal/cache"
	"logforensics/internal/llm"
	"logforensics/pkg/types"

	"github.com/sirupsen/logrus"
)

const cacheType = "parameter_extraction"

const defaultPromptTemplate = `Extract search parameters from the following request. Respond with JSON only, no narration.
Allowed domains: $domains
Allowed query_keys: $query_keys

Request: $prompt

Return: {"time_frame": "YYYY-MM-DD or null", "domain": "string", "query_keys": ["..."]}`

// Agent is C7.
type Agent struct {
	llmProvider llm.Provider
	gateway     *cache.Gateway
	prompts     *llm.Prompts
	modelID     string
	logger      *logrus.Logger
}

// NewAgent constructs the parameter agent.
func NewAgent(provider llm.Provider, gateway *cache.Gateway, prompts *llm.Prompts, modelID string, logger *logrus.Logger) *Agent {
	if prompts == nil {
		prompts = llm.NewPrompts(nil, map[string]string{"parameter_extraction": defaultPromptTemplate}, 0)
	}
	return &Agent{llmProvider: provider, gateway: gateway, prompts: prompts, modelID: modelID, logger: logger}
}

// rawParameters is the tolerant-parsed shape of the LLM's JSON response.
type rawParameters struct {
	TimeFrame string   `json:"time_frame"`
	Domain    string   `json:"domain"`
	QueryKeys []string `json:"query_keys"`
}

// Extract implements C7's operation: prompt -> SearchParameters.
func (a *Agent) Extract(ctx context.Context, prompt string, policy types.CachePolicy) (types.SearchParameters, error) {
	rendered := a.prompts.Render("parameter_extraction", map[string]string{
		"prompt":     prompt,
		"domains":    strings.Join(AllowedDomains, ", "),
		"query_keys": strings.Join(AllowedQueryKeys, ", "),
	})
	messages := []types.ChatMessage{{Role: "user", Content: rendered}}

	compute := func(ctx context.Context) ([]byte, bool, error) {
		resp, err := a.llmProvider.Chat(ctx, a.modelID, messages, nil)
		if err != nil {
			return nil, false, err
		}
		return []byte(resp.Message.Content), true, nil
	}

	raw, _, err := a.gateway.Cached(ctx, cacheType, a.modelID, messages, nil, 30*time.Minute, policy, compute)
	if err != nil {
		return a.regexFallback(prompt), nil
	}

	params, ok := a.parseResponse(string(raw))
	if !ok {
		return a.regexFallback(prompt), nil
	}
	return a.postProcess(params, prompt), nil
}

func (a *Agent) parseResponse(text string) (types.SearchParameters, bool) {
	candidate, ok := ExtractJSON(text)
	if !ok {
		return types.SearchParameters{}, false
	}
	var raw rawParameters
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return types.SearchParameters{}, false
	}

	params := types.SearchParameters{TimeFrame: raw.TimeFrame}
	if domain, ok := NormalizeDomain(raw.Domain); ok {
		params.Domain = domain
	}
	for _, qk := range raw.QueryKeys {
		if normalized, ok := NormalizeQueryKey(qk); ok {
			params.QueryKeys = appendUnique(params.QueryKeys, normalized)
		}
	}
	return params, true
}

// postProcess implements the LLM-path normalization steps: ISO date
// normalization and the literal domain-keyword merge.
func (a *Agent) postProcess(params types.SearchParameters, prompt string) types.SearchParameters {
	if params.TimeFrame != "" {
		if normalized, ok := NormalizeDate(params.TimeFrame); ok {
			params.TimeFrame = normalized
		}
	}
	if params.TimeFrame == "" {
		if date, ok := NormalizeDate(prompt); ok {
			params.TimeFrame = date
		}
	}

	for _, domain := range literalKeywordsInPrompt(prompt, AllowedDomains) {
		if params.Domain == "" {
			params.Domain = domain
		}
	}

	params.RawPrompt = prompt
	return params
}

// regexFallback implements spec.md section 4.7's fallback when JSON parsing
// fails entirely: scan the raw prompt directly for a date, domain keywords,
// and allow-listed query keys (standing in for "long numeric identifiers",
// none of which this domain's query-key allow-list otherwise captures).
func (a *Agent) regexFallback(prompt string) types.SearchParameters {
	params := types.SearchParameters{RawPrompt: prompt}
	if date, ok := NormalizeDate(prompt); ok {
		params.TimeFrame = date
	}
	for _, domain := range literalKeywordsInPrompt(prompt, AllowedDomains) {
		if params.Domain == "" {
			params.Domain = domain
		}
	}
	for _, qk := range literalKeywordsInPrompt(prompt, AllowedQueryKeys) {
		params.QueryKeys = appendUnique(params.QueryKeys, qk)
	}
	for _, id := range longNumericIdentifiers(prompt) {
		a.logger.WithField("identifier", id).Debug("parameter agent: found long numeric identifier in regex fallback")
	}
	return params
}

var longNumericPattern = regexp.MustCompile(`\b\d{8,}\b`)

func longNumericIdentifiers(prompt string) []string {
	return longNumericPattern.FindAllString(prompt, -1)
}

func appendUnique(keys []string, candidate string) []string {
	for _, k := range keys {
		if k == candidate {
			return keys
		}
	}
	return append(keys, candidate)
}
