// Package logquery implements C2: translating query parameters into a
// Loki-style selector expression, executing a ranged query against the
// remote log backend, and caching the result on disk. Grounded on the
// teacher's internal/sinks/loki_sink.go: same http.Client construction
// (connection-limited transport) and same circuit.Breaker wrapping, adapted
// from push-batches to ranged GET queries.
package logquery

import (
	"fmt"
	"strings"
)

// BuildSelector constructs the LogQL-style selector expression described in
// spec.md section 4.2: "{k1="v1",k2="v2",…}" followed by pipeline stages
// separated by "|". A stage that begins with a negation token ("!=", "!~")
// is appended without the "|" prefix (it attaches directly to the label
// matcher list). A trace_id, when given, is appended as an equality stage.
// Search terms become "|= "term"" stages; multiple terms collapse into a
// single "|= "a" or "b"" expression with quotes escaped.
func BuildSelector(filters map[string]string, pipeline []string, searchTerms []string, traceID string) string {
	var b strings.Builder

	b.WriteByte('{')
	first := true
	for _, k := range sortedFilterKeys(filters) {
		if !first {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, filters[k])
		first = false
	}
	b.WriteByte('}')

	for _, stage := range pipeline {
		if isNegationStage(stage) {
			b.WriteString(stage)
		} else {
			b.WriteString(" | ")
			b.WriteString(stage)
		}
	}

	if traceID != "" {
		fmt.Fprintf(&b, " | trace_id=%q", traceID)
	}

	if len(searchTerms) > 0 {
		b.WriteString(` |= `)
		b.WriteString(searchExpression(searchTerms))
	}

	return b.String()
}

func isNegationStage(stage string) bool {
	trimmed := strings.TrimSpace(stage)
	return strings.HasPrefix(trimmed, "!=") || strings.HasPrefix(trimmed, "!~")
}

// searchExpression renders one or more search terms as a single
// |= "a" or "b" quoted-and-escaped expression.
func searchExpression(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = escapedQuote(t)
	}
	return strings.Join(quoted, ` or `)
}

func escapedQuote(term string) string {
	escaped := strings.ReplaceAll(term, `"`, `\"`)
	return `"` + escaped + `"`
}

// sortedFilterKeys returns filter map keys in a deterministic order so the
// rendered selector (and therefore the cache key) is stable across calls.
func sortedFilterKeys(filters map[string]string) []string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	// simple insertion sort: filter maps are small (a handful of labels)
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
