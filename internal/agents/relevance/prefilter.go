package relevance

import (
	"strings"

	"logforensics/pkg/types"
)

// defaultIgnoreSaturation is the fraction of a trace's lines that must
// case-insensitively match an ignore pattern before the trace is disposed
// of without an LLM call, per spec.md section 4.10.
const defaultIgnoreSaturation = 0.30

// PreFilter reports whether bundle should be classified ignored outright:
// for some single ignore pattern drawn from rules, the count of lines
// (case-insensitive) containing that pattern is at least saturation
// fraction of the bundle's total line count. saturation <= 0 falls back to
// defaultIgnoreSaturation.
func PreFilter(bundle types.TraceBundle, rules []types.ContextRule, saturation float64) (matchedPattern string, ignored bool) {
	if saturation <= 0 {
		saturation = defaultIgnoreSaturation
	}
	total := len(bundle.Entries)
	if total == 0 {
		return "", false
	}

	for _, rule := range rules {
		for _, pattern := range rule.Ignore {
			if pattern == "" {
				continue
			}
			if float64(countMatches(bundle.Entries, pattern))/float64(total) >= saturation {
				return pattern, true
			}
		}
	}
	return "", false
}

func countMatches(entries []types.LogEntry, pattern string) int {
	needle := strings.ToLower(pattern)
	count := 0
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Message), needle) || strings.Contains(strings.ToLower(e.Raw), needle) {
			count++
		}
	}
	return count
}
