// Package relevance implements C10: a rule-driven pre-filter over
// ContextRules followed by LLM relevance scoring for traces the pre-filter
// doesn't dispose of. Context rules are loaded from a CSV file, grounded on
// spec.md section 6's persisted-state contract ("context rules as a CSV
// (id, context, important, ignore, description) with an auto-created
// default if missing").
package relevance

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	apperrors "logforensics/internal/errors"
	"logforensics/pkg/types"
)

const csvHeaderCount = 5

// defaultRules seeds a context_rules.csv when none exists yet, scoped to
// the mobile-financial-services domain the parameter agent's allow-list
// (internal/agents/parameter.AllowedDomains) already assumes.
var defaultRules = []types.ContextRule{
	{ID: "mfs-heartbeat", ContextTag: "mfs", Important: []string{"transaction", "settlement"}, Ignore: []string{"HEARTBEAT", "keepalive"}, Description: "MFS heartbeat/keepalive noise suppression"},
	{ID: "bkash-failure", ContextTag: "bkash", Important: []string{"failed", "declined", "timeout"}, Description: "bKash failure-path patterns"},
	{ID: "npsb-settlement", ContextTag: "npsb", Important: []string{"settlement", "reconciliation"}, Description: "NPSB settlement/reconciliation patterns"},
}

// LoadContextRules reads rules from path, a CSV with header
// "id,context,important,ignore,description" where important/ignore are
// comma-separated inside a quoted field. If the file doesn't exist, a
// default rule set is written there and returned, matching spec.md's
// "auto-created default if missing".
func LoadContextRules(path string) ([]types.ContextRule, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefaultRules(path); err != nil {
			return nil, err
		}
		return defaultRules, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOError("LoadContextRules", err.Error()).Wrap(err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.InputError("LoadContextRules", "invalid context rules CSV: "+err.Error()).Wrap(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	rules := make([]types.ContextRule, 0, len(rows)-1)
	for _, row := range rows[1:] { // skip header
		if len(row) < csvHeaderCount {
			continue
		}
		rules = append(rules, types.ContextRule{
			ID:          row[0],
			ContextTag:  row[1],
			Important:   splitList(row[2]),
			Ignore:      splitList(row[3]),
			Description: row[4],
		})
	}
	return rules, nil
}

func writeDefaultRules(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.IOError("writeDefaultRules", err.Error()).Wrap(err)
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.IOError("writeDefaultRules", err.Error()).Wrap(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	_ = w.Write([]string{"id", "context", "important", "ignore", "description"})
	for _, r := range defaultRules {
		_ = w.Write([]string{r.ID, r.ContextTag, strings.Join(r.Important, ","), strings.Join(r.Ignore, ","), r.Description})
	}
	return nil
}

func splitList(field string) []string {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SelectRules returns the rules whose context_tag matches domain or any of
// queryKeys, case-insensitive containment checked in either direction
// ("mfs" matches a domain of "MFS Settlement" and a domain of "mfs"
// matches a context_tag of "MFS"), per spec.md section 4.10.
func SelectRules(rules []types.ContextRule, domain string, queryKeys []string) []types.ContextRule {
	var selected []types.ContextRule
	for _, rule := range rules {
		if ruleMatches(rule, domain, queryKeys) {
			selected = append(selected, rule)
		}
	}
	return selected
}

func ruleMatches(rule types.ContextRule, domain string, queryKeys []string) bool {
	tag := strings.ToLower(rule.ContextTag)
	if tag == "" {
		return false
	}
	if containsEitherWay(tag, strings.ToLower(domain)) {
		return true
	}
	for _, qk := range queryKeys {
		if containsEitherWay(tag, strings.ToLower(qk)) {
			return true
		}
	}
	return false
}

func containsEitherWay(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
