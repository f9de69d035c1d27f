package logquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDeterministic(t *testing.T) {
	filters := map[string]string{"service_namespace": "ncc"}
	k1, err := CacheKey(filters, []string{"json"}, []string{"bkash"}, "", "2025-07-24", "", "", "")
	require.NoError(t, err)
	k2, err := CacheKey(filters, []string{"json"}, []string{"bkash"}, "", "2025-07-24", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 20)
}

func TestCacheKeyDiffersOnTraceID(t *testing.T) {
	filters := map[string]string{"app": "x"}
	k1, err := CacheKey(filters, nil, nil, "trace-a", "2025-07-24", "", "", "")
	require.NoError(t, err)
	k2, err := CacheKey(filters, nil, nil, "trace-b", "2025-07-24", "", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestCacheFileNamePrefix(t *testing.T) {
	assert.Equal(t, "loki_abc123.json", CacheFileName("abc123"))
}
