package relevance

import (
	"testing"

	"logforensics/pkg/types"

	"github.com/stretchr/testify/assert"
)

func bundleWithMessages(messages ...string) types.TraceBundle {
	entries := make([]types.LogEntry, len(messages))
	for i, m := range messages {
		entries[i] = types.LogEntry{Message: m}
	}
	return types.TraceBundle{TraceID: "t-1", Entries: entries}
}

func TestPreFilterIgnoresWhenSaturationReached(t *testing.T) {
	bundle := bundleWithMessages("HEARTBEAT ok", "HEARTBEAT ok", "HEARTBEAT ok", "payment processed")
	rules := []types.ContextRule{{ID: "r1", ContextTag: "mfs", Ignore: []string{"HEARTBEAT"}}}

	pattern, ignored := PreFilter(bundle, rules, 0.30)
	assert.True(t, ignored)
	assert.Equal(t, "HEARTBEAT", pattern)
}

func TestPreFilterDoesNotIgnoreBelowSaturation(t *testing.T) {
	bundle := bundleWithMessages("HEARTBEAT ok", "payment processed", "payment settled", "ledger updated")
	rules := []types.ContextRule{{ID: "r1", ContextTag: "mfs", Ignore: []string{"HEARTBEAT"}}}

	_, ignored := PreFilter(bundle, rules, 0.30)
	assert.False(t, ignored)
}

func TestPreFilterReturnsFalseForEmptyBundle(t *testing.T) {
	bundle := types.TraceBundle{TraceID: "t-1"}
	rules := []types.ContextRule{{ID: "r1", Ignore: []string{"HEARTBEAT"}}}

	_, ignored := PreFilter(bundle, rules, 0.30)
	assert.False(t, ignored)
}

func TestPreFilterUsesDefaultSaturationWhenZero(t *testing.T) {
	bundle := bundleWithMessages("HEARTBEAT", "HEARTBEAT", "HEARTBEAT", "payment")
	rules := []types.ContextRule{{ID: "r1", Ignore: []string{"HEARTBEAT"}}}

	_, ignored := PreFilter(bundle, rules, 0)
	assert.True(t, ignored)
}

func TestPreFilterIsCaseInsensitive(t *testing.T) {
	bundle := bundleWithMessages("heartbeat ok", "heartbeat ok")
	rules := []types.ContextRule{{ID: "r1", Ignore: []string{"HEARTBEAT"}}}

	_, ignored := PreFilter(bundle, rules, 0.5)
	assert.True(t, ignored)
}
