package logfile

import (
	"regexp"
	"strings"

	apperrors "logforensics/internal/errors"
)

// Match is one search hit: the line, the context window surrounding it, and
// its position in the decoded content.
type Match struct {
	Line       string
	LineNumber int // 1-based
	ByteOffset int
	Before     []string
	After      []string
}

// TraceMatch extends Match with the trace identifier enclosing the hit, as
// discovered by a TraceIDFinder (C4).
type TraceMatch struct {
	Match
	TraceID string
}

// TraceIDFinder mirrors C4's extract(text, offset) -> trace_id? operation,
// decoupling this package from internal/traceextract so either can be built
// independently; the orchestrator wires a concrete extractor in.
type TraceIDFinder func(text string, offset int) (traceID string, ok bool)

// compilePatterns compiles each pattern as a case-insensitive regular
// expression, per spec.md section 4.3.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, apperrors.InputError("compilePatterns", "invalid pattern: "+p).Wrap(err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Search implements C3's search(path, patterns, context_lines) -> list<line>,
// returning one Match per line that matches any pattern, with contextLines
// of surrounding context before and after.
func Search(path string, patterns []string, contextLines int) ([]Match, error) {
	content, err := ReadFullContent(path)
	if err != nil {
		return nil, err
	}
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}
	return searchLines(content, compiled, contextLines), nil
}

func searchLines(content string, compiled []*regexp.Regexp, contextLines int) []Match {
	lines := strings.Split(content, "\n")
	offsets := lineByteOffsets(lines)

	var matches []Match
	for i, line := range lines {
		if !matchesAny(line, compiled) {
			continue
		}
		matches = append(matches, Match{
			Line:       line,
			LineNumber: i + 1,
			ByteOffset: offsets[i],
			Before:     contextWindow(lines, i-contextLines, i),
			After:      contextWindow(lines, i+1, i+1+contextLines),
		})
	}
	return matches
}

// SearchWithTraceIDs is C3's search_with_trace_ids(path, patterns) variant:
// for each matching line it also resolves the enclosing trace identifier via
// finder, looking backward from the match's byte offset as C4 does when
// called with an explicit offset.
func SearchWithTraceIDs(path string, patterns []string, finder TraceIDFinder) ([]TraceMatch, error) {
	content, err := ReadFullContent(path)
	if err != nil {
		return nil, err
	}
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}

	matches := searchLines(content, compiled, 0)
	results := make([]TraceMatch, 0, len(matches))
	for _, m := range matches {
		traceID, _ := finder(content, m.ByteOffset)
		results = append(results, TraceMatch{Match: m, TraceID: traceID})
	}
	return results, nil
}

func matchesAny(line string, compiled []*regexp.Regexp) bool {
	for _, re := range compiled {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func contextWindow(lines []string, start, end int) []string {
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return nil
	}
	window := make([]string, end-start)
	copy(window, lines[start:end])
	return window
}

// lineByteOffsets returns, for each line index, its starting byte offset
// within the joined content (accounting for the '\n' separators stripped by
// strings.Split).
func lineByteOffsets(lines []string) []int {
	offsets := make([]int, len(lines))
	pos := 0
	for i, line := range lines {
		offsets[i] = pos
		pos += len(line) + 1
	}
	return offsets
}
