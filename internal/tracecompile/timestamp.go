package tracecompile

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LiftTimestamp implements spec.md section 4.5's timestamp lifting:
// nanosecond integer epochs are divided by 10^9; textual dates are parsed
// with dayfirst precedence and fuzzy tolerance (leading/trailing narration
// around the date is ignored); unparseable input returns nil, which sorts
// earliest per types.LogEntry.Before.
func LiftTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, ok := liftNanosEpoch(raw); ok {
		return &t
	}
	if t, ok := liftTextual(raw); ok {
		return &t
	}
	return nil
}

var nanosPattern = regexp.MustCompile(`^\d{15,19}$`)

func liftNanosEpoch(raw string) (time.Time, bool) {
	if !nanosPattern.MatchString(raw) {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, nanos).UTC(), true
}

// dayfirstLayouts are tried in order; each pairs a day-before-month layout
// with its ISO counterpart isn't needed since Go's layout already encodes
// field order explicitly.
var dayfirstLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006T15:04:05",
	"02/01/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"02.01.2006 15:04:05",
	"02.01.2006",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// datePattern matches the first date-or-datetime-like substring in raw,
// implementing the "fuzzy tolerance" requirement: surrounding narration
// ("Generated at 24.07.2025 for trace X") is ignored.
var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]?\d{0,2}:?\d{0,2}:?\d{0,2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?|\d{2}[./-]\d{2}[./-]\d{4}([ T]\d{2}:\d{2}:\d{2})?`)

func liftTextual(raw string) (time.Time, bool) {
	candidate := raw
	if m := datePattern.FindString(raw); m != "" {
		candidate = m
	}
	for _, layout := range dayfirstLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
