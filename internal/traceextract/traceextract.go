// Package traceextract implements C4: discovering trace identifiers inside
// either XML-row-framed log exports or JSON-stream query responses.
// Grounded on the teacher's internal/sinks framing code for "keep regexes
// close to the framing code, compile once" (spec.md section 9) — regexes
// here are package-level vars, not recompiled per call.
package traceextract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Result is one discovered trace occurrence: its ID, the byte offset the
// enclosing record started at, and a short excerpt of the record for
// diagnostics.
type Result struct {
	TraceID    string
	Offset     int
	RowExcerpt string
}

var (
	logRowPattern    = regexp.MustCompile(`(?s)<log-row>.*?</log-row>`)
	requestIDPattern = regexp.MustCompile(`(?s)<request-id>(.*?)</request-id>`)
)

const excerptMaxLen = 160

// Extract implements extract(text, offset?) -> trace_id?. A negative offset
// is treated as "no offset supplied" per spec.md section 4.4's edge
// behavior. Empty input returns ("", false).
func Extract(text string, offset int) (string, bool) {
	if text == "" {
		return "", false
	}
	if looksLikeJSONStream(text) {
		return extractJSONStream(text)
	}
	return extractXMLRow(text, offset)
}

// ExtractAll implements extract_all(text) -> list<(trace_id, offset, row_excerpt)>.
func ExtractAll(text string) []Result {
	if text == "" {
		return nil
	}
	if looksLikeJSONStream(text) {
		return extractAllJSONStream(text)
	}
	return extractAllXMLRows(text)
}

// Unique implements unique(results) -> set<trace_id>, returning the distinct
// trace IDs in first-seen order.
func Unique(results []Result) []string {
	seen := make(map[string]struct{}, len(results))
	var ordered []string
	for _, r := range results {
		if _, ok := seen[r.TraceID]; ok {
			continue
		}
		seen[r.TraceID] = struct{}{}
		ordered = append(ordered, r.TraceID)
	}
	return ordered
}

// extractXMLRow returns the request-id of the <log-row> enclosing offset
// (the first if multiple rows contain it), falling back to the first
// record's trace id if none encloses the offset or no offset was supplied
// (offset < 0).
func extractXMLRow(text string, offset int) (string, bool) {
	rows := rowSpans(text)
	if len(rows) == 0 {
		return "", false
	}

	if offset >= 0 {
		for _, loc := range rows {
			if offset >= loc[0] && offset < loc[1] {
				if id, ok := requestIDFrom(text[loc[0]:loc[1]]); ok {
					return id, true
				}
				break
			}
		}
	}

	// Fall back to the first record that actually carries a request-id
	// (malformed records — missing closing tag — are already dropped by
	// rowSpans).
	for _, loc := range rows {
		if id, ok := requestIDFrom(text[loc[0]:loc[1]]); ok {
			return id, true
		}
	}
	return "", false
}

func requestIDFrom(row string) (string, bool) {
	m := requestIDPattern.FindStringSubmatch(row)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// rowSpans returns the [start, end) span of every complete <log-row> record.
// An opening tag with no closing tag of its own is skipped: a match that
// starts at it is cut back to the last opening tag inside the match.
func rowSpans(text string) [][]int {
	rows := logRowPattern.FindAllStringIndex(text, -1)
	for _, loc := range rows {
		if i := strings.LastIndex(text[loc[0]:loc[1]], "<log-row>"); i > 0 {
			loc[0] += i
		}
	}
	return rows
}

func extractAllXMLRows(text string) []Result {
	rows := rowSpans(text)
	results := make([]Result, 0, len(rows))
	for _, loc := range rows {
		row := text[loc[0]:loc[1]]
		id, ok := requestIDFrom(row)
		if !ok {
			continue
		}
		results = append(results, Result{
			TraceID:    id,
			Offset:     loc[0],
			RowExcerpt: excerpt(row),
		})
	}
	return results
}

// jsonStreamResponse mirrors the shape consumed by internal/logquery.Client:
// data.result[] entries each carry a stream label map and value pairs.
type jsonStreamResponse struct {
	Data struct {
		Result []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string        `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

func looksLikeJSONStream(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, `"result"`)
}

func extractJSONStream(text string) (string, bool) {
	var parsed jsonStreamResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return "", false
	}
	for _, entry := range parsed.Data.Result {
		if id, ok := entry.Stream["trace_id"]; ok && id != "" {
			return id, true
		}
	}
	return "", false
}

func extractAllJSONStream(text string) []Result {
	var parsed jsonStreamResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil
	}
	var results []Result
	offset := 0
	for _, entry := range parsed.Data.Result {
		id, ok := entry.Stream["trace_id"]
		if !ok || id == "" {
			continue
		}
		for _, v := range entry.Values {
			excerptText := v[1]
			results = append(results, Result{
				TraceID:    id,
				Offset:     offset,
				RowExcerpt: excerpt(excerptText),
			})
			offset += len(excerptText) + 1
		}
	}
	return results
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= excerptMaxLen {
		return s
	}
	return s[:excerptMaxLen]
}
