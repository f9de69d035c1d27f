package parameter

import (
	"regexp"
	"time"
)

// ddmmyyyyPattern matches DD.MM.YYYY (and DD/MM/YYYY, DD-MM-YYYY) dates, the
// shape spec.md section 4.7 names for dayfirst normalization and the regex
// fallback.
var ddmmyyyyPattern = regexp.MustCompile(`\b(\d{2})[./-](\d{2})[./-](\d{4})\b`)

// isoDatePattern matches dates already in ISO form, left untouched.
var isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

// NormalizeDate converts a dayfirst DD.MM.YYYY-shaped date (or an already
// ISO yyyy-mm-dd date) found in raw into ISO form. Returns ("", false) when
// no recognizable date is present.
func NormalizeDate(raw string) (string, bool) {
	if m := isoDatePattern.FindStringSubmatch(raw); m != nil {
		if _, err := time.Parse("2006-01-02", m[0]); err == nil {
			return m[0], true
		}
	}
	if m := ddmmyyyyPattern.FindStringSubmatch(raw); m != nil {
		day, month, year := m[1], m[2], m[3]
		candidate := year + "-" + month + "-" + day
		if _, err := time.Parse("2006-01-02", candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
