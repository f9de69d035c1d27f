package cache

import (
	"testing"

	"logforensics/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeKeyDeterministic(t *testing.T) {
	messages := []types.ChatMessage{{Role: "user", Content: "find failed transactions"}}
	k1, err := ComputeKey("trace_analysis", "default", "model-a", messages, nil, "v1", "v1")
	require.NoError(t, err)
	k2, err := ComputeKey("trace_analysis", "default", "model-a", messages, nil, "v1", "v1")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestComputeKeyTimestampStripping(t *testing.T) {
	base := "Summary of trace.\nSome finding.\n"
	m1 := []types.ChatMessage{{Role: "user", Content: base + "Generated: 2025-07-24T10:00:00Z\n"}}
	m2 := []types.ChatMessage{{Role: "user", Content: base + "Generated: 2025-07-24T11:30:00Z\n"}}

	k1, err := ComputeKey("relevance_analysis", "default", "model-a", m1, nil, "v1", "v1")
	require.NoError(t, err)
	k2, err := ComputeKey("relevance_analysis", "default", "model-a", m2, nil, "v1", "v1")
	require.NoError(t, err)

	assert.Equal(t, k1, k2, "Generated: lines should be stripped before hashing for relevance_analysis")
}

func TestComputeKeyTimestampNotStrippedForOtherCacheTypes(t *testing.T) {
	base := "Summary of trace.\n"
	m1 := []types.ChatMessage{{Role: "user", Content: base + "Generated: 2025-07-24T10:00:00Z\n"}}
	m2 := []types.ChatMessage{{Role: "user", Content: base + "Generated: 2025-07-24T11:30:00Z\n"}}

	k1, err := ComputeKey("trace_analysis", "default", "model-a", m1, nil, "v1", "v1")
	require.NoError(t, err)
	k2, err := ComputeKey("trace_analysis", "default", "model-a", m2, nil, "v1", "v1")
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2, "timestamp stripping is scoped to relevance_analysis only")
}

func TestComputeKeyIgnoresTimeoutOption(t *testing.T) {
	messages := []types.ChatMessage{{Role: "user", Content: "hello"}}
	k1, err := ComputeKey("trace_analysis", "default", "model-a", messages, map[string]interface{}{"timeout": "5s"}, "v1", "v1")
	require.NoError(t, err)
	k2, err := ComputeKey("trace_analysis", "default", "model-a", messages, map[string]interface{}{"timeout": "30s"}, "v1", "v1")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestComputeKeyVersionBump(t *testing.T) {
	messages := []types.ChatMessage{{Role: "user", Content: "hello"}}
	k1, err := ComputeKey("trace_analysis", "default", "model-a", messages, nil, "v1", "v1")
	require.NoError(t, err)
	k2, err := ComputeKey("trace_analysis", "default", "model-a", messages, nil, "v2", "v1")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2, "bumping gateway_version must invalidate the key")
}
