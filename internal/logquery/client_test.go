package logquery

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestClientCachesNonEmptyResult(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(`{"status":"success","data":{"result":[{"stream":{"trace_id":"t1"},"values":[["1","hello"]]}]}}`))
	}))
	defer srv.Close()

	cache, err := NewResultCache(t.TempDir(), nil)
	require.NoError(t, err)
	client := NewClient(srv.URL, cache, time.Hour, time.Hour, quietLogger())

	params := Params{Filters: map[string]string{"app": "x"}, Date: "2025-07-24"}

	path1, err := client.Query(t.Context(), params)
	require.NoError(t, err)
	assert.NotEmpty(t, path1)

	path2, err := client.Query(t.Context(), params)
	require.NoError(t, err)
	assert.Equal(t, path1, path2)

	assert.Equal(t, int64(1), calls, "second identical query should hit the disk cache, not the backend")
}

func TestClientDoesNotCacheEmptyResult(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(`{"status":"success","data":{"result":[]}}`))
	}))
	defer srv.Close()

	cache, err := NewResultCache(t.TempDir(), nil)
	require.NoError(t, err)
	client := NewClient(srv.URL, cache, time.Hour, time.Hour, quietLogger())

	params := Params{Filters: map[string]string{"app": "x"}, Date: "2025-07-24"}

	_, err = client.Query(t.Context(), params)
	require.NoError(t, err)
	_, err = client.Query(t.Context(), params)
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls, "empty results must never be served from cache")
}

func TestClientForceRefreshBypassesCache(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		if atomic.LoadInt64(&calls) == 1 {
			w.Write([]byte(`{"status":"success","data":{"result":[]}}`))
			return
		}
		w.Write([]byte(`{"status":"success","data":{"result":[{"stream":{"trace_id":"t1"},"values":[["1","hello"]]}]}}`))
	}))
	defer srv.Close()

	cache, err := NewResultCache(t.TempDir(), nil)
	require.NoError(t, err)
	client := NewClient(srv.URL, cache, time.Hour, time.Hour, quietLogger())

	params := Params{Filters: map[string]string{"app": "x"}, Date: "2025-07-24"}

	_, err = client.Query(t.Context(), params)
	require.NoError(t, err)

	refresh := params
	refresh.ForceRefresh = true
	path2, err := client.Query(t.Context(), refresh)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls, "forced refresh downloads again")

	path3, err := client.Query(t.Context(), params)
	require.NoError(t, err)
	assert.Equal(t, path2, path3)
	assert.Equal(t, int64(2), calls, "the refreshed non-empty result is cached and reused")

	_, err = client.Query(t.Context(), refresh)
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls, "forced refresh bypasses even a fresh cached entry")
}

func TestClientPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	cache, err := NewResultCache(t.TempDir(), nil)
	require.NoError(t, err)
	client := NewClient(srv.URL, cache, time.Hour, time.Hour, quietLogger())

	_, err = client.Query(t.Context(), Params{Filters: map[string]string{"app": "x"}, Date: "2025-07-24"})
	assert.Error(t, err)
}
