package parameter

import "strings"

// AllowedDomains and AllowedQueryKeys are the fixed allow-lists the
// parameter agent draws from, per spec.md section 4.7. The pipeline's seed
// scenarios are mobile-financial-services dispute investigations (bKash,
// Nagad, Rocket, NPSB settlement), so the lists are scoped to that domain;
// see DESIGN.md for this Open-Question resolution.
var AllowedDomains = []string{"MFS", "BKASH", "NAGAD", "ROCKET", "NPSB"}

var AllowedQueryKeys = []string{
	"bkash", "nagad", "rocket", "npsb",
	"failed", "timeout", "declined", "reversed",
	"heartbeat", "transaction", "settlement", "reconciliation",
}

// NormalizeDomain upper-cases and validates a candidate domain token against
// AllowedDomains, returning ("", false) when it isn't recognized.
func NormalizeDomain(candidate string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(candidate))
	for _, d := range AllowedDomains {
		if d == upper {
			return d, true
		}
	}
	return "", false
}

// NormalizeQueryKey lower-cases and validates a candidate query key against
// AllowedQueryKeys.
func NormalizeQueryKey(candidate string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(candidate))
	for _, k := range AllowedQueryKeys {
		if k == lower {
			return k, true
		}
	}
	return "", false
}

// literalKeywordsInPrompt returns every allow-listed domain/query-key token
// that appears literally (case-insensitively) in prompt, used both by the
// LLM post-processing merge step and the regex fallback.
func literalKeywordsInPrompt(prompt string, allowList []string) []string {
	lowerPrompt := strings.ToLower(prompt)
	var found []string
	for _, candidate := range allowList {
		if strings.Contains(lowerPrompt, strings.ToLower(candidate)) {
			found = append(found, candidate)
		}
	}
	return found
}
