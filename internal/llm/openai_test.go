package llm

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripperInjectsHeaders(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Route-To")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rt := &headerRoundTripper{headers: map[string]string{"X-Route-To": "backend-a"}, base: http.DefaultTransport}
	client := &http.Client{Transport: rt}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "backend-a", gotHeader)
}

func TestNewOpenAIProviderReportsName(t *testing.T) {
	p := NewOpenAIProvider("https://example.invalid/v1", "key", nil, quietLogger())
	assert.Equal(t, "remote", p.ProviderName())
}
