package tracecompile

import (
	"encoding/json"
	"regexp"
	"strings"
)

// CandidatesFromXMLRows scans text for <log-row> records and turns each
// into a RawRecord candidate, pulling the sibling fields C5 needs to
// compile a bundle (timestamp, level, service, message) alongside the
// <request-id> C4 already keys on. This is the C5 half of the XML framing
// spec.md section 4.4 describes: C4 only has to find the trace id, C5 has
// to turn the same record into an ordered, attributed LogEntry.
func CandidatesFromXMLRows(text, sourceFile string) []RawRecord {
	rows := logRowPattern.FindAllString(text, -1)
	candidates := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		// An unclosed <log-row> before this record is not part of it.
		if i := strings.LastIndex(row, "<log-row>"); i > 0 {
			row = row[i:]
		}
		id, ok := firstSubmatch(requestIDPattern, row)
		if !ok {
			continue
		}
		candidates = append(candidates, RawRecord{
			TraceID:      id,
			RawTimestamp: firstSubmatchOrEmpty(timestampPattern, row),
			Level:        firstSubmatchOrEmpty(levelPattern, row),
			Service:      firstSubmatchOrEmpty(servicePattern, row),
			Message:      firstSubmatchOrEmpty(messagePattern, row),
			Raw:          row,
			SourceFile:   sourceFile,
		})
	}
	return candidates
}

// CandidatesFromJSONStream turns a Loki-shaped query_range response (the
// same data.result[].stream + values shape internal/logquery.Client
// downloads and internal/traceextract parses for trace IDs) into RawRecord
// candidates, one per [timestamp, message] value.
func CandidatesFromJSONStream(text, sourceFile string) []RawRecord {
	var parsed jsonStreamResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil
	}

	var candidates []RawRecord
	for _, entry := range parsed.Data.Result {
		traceID, ok := entry.Stream["trace_id"]
		if !ok || traceID == "" {
			continue
		}
		for _, v := range entry.Values {
			candidates = append(candidates, RawRecord{
				TraceID:      traceID,
				RawTimestamp: v[0],
				Level:        entry.Stream["level"],
				Service:      entry.Stream["service"],
				Message:      v[1],
				Raw:          v[1],
				SourceFile:   sourceFile,
			})
		}
	}
	return candidates
}

type jsonStreamResponse struct {
	Data struct {
		Result []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// logRowPattern/requestIDPattern mirror internal/traceextract's framing
// regexes; kept package-local rather than exported from traceextract so C5
// doesn't reach into C4's internals, per spec.md section 9's preference
// for framing regexes living close to the code that uses them.
var (
	logRowPattern    = regexp.MustCompile(`(?s)<log-row>.*?</log-row>`)
	requestIDPattern = regexp.MustCompile(`(?s)<request-id>(.*?)</request-id>`)
	timestampPattern = regexp.MustCompile(`(?s)<timestamp>(.*?)</timestamp>`)
	levelPattern     = regexp.MustCompile(`(?s)<level>(.*?)</level>`)
	servicePattern   = regexp.MustCompile(`(?s)<service>(.*?)</service>`)
	messagePattern   = regexp.MustCompile(`(?s)<message>(.*?)</message>`)
)

func firstSubmatch(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func firstSubmatchOrEmpty(re *regexp.Regexp, s string) string {
	v, _ := firstSubmatch(re, s)
	return v
}
