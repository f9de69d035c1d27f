package parameter

import (
	"regexp"
	"strings"
)

var (
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFencePattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ExtractJSON implements spec.md section 9's "centralize the strip
// think-blocks, find balanced braces, parse routine": it removes any
// <think>...</think> narration, prefers the contents of the first fenced
// code block if present, then scans for the first balanced {...} span.
func ExtractJSON(text string) (string, bool) {
	cleaned := thinkBlockPattern.ReplaceAllString(text, "")

	if m := codeFencePattern.FindStringSubmatch(cleaned); m != nil {
		if candidate, ok := firstBalancedObject(m[1]); ok {
			return candidate, true
		}
	}
	return firstBalancedObject(cleaned)
}

// firstBalancedObject scans s for the first top-level {...} span with
// balanced braces, tolerant of braces appearing inside string literals.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
