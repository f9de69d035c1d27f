package logquery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "logforensics/internal/errors"
	"logforensics/internal/metrics"
	"logforensics/pkg/circuit"

	"github.com/sirupsen/logrus"
)

// QueryResponse is the JSON-stream shape documented in spec.md section 4.4:
// data.result[] entries each carry a stream label set and [timestamp,
// message] value pairs.
type QueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string        `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// Params is one query's full parameter set. Every field except
// ForceRefresh participates in the cache key.
type Params struct {
	Filters     map[string]string
	Pipeline    []string
	SearchTerms []string
	TraceID     string
	Date        string
	Time        string
	EndDate     string
	EndTime     string

	// ForceRefresh bypasses both cache tiers and downloads again; the
	// fresh result is still stored under the same key.
	ForceRefresh bool
}

// Client is C2: it builds selectors, executes ranged queries against the log
// backend over HTTP, and transparently caches non-empty results to disk.
// The http.Client and circuit.Breaker construction is grounded on the
// teacher's internal/sinks/loki_sink.go NewLokiSink, adapted from a
// push-oriented sink to a query client.
type Client struct {
	endpoint string
	http     *http.Client
	breaker  *circuit.Breaker
	cache    *ResultCache
	logger   *logrus.Logger

	broadTTL time.Duration
	traceTTL time.Duration
}

// NewClient constructs a Client. endpoint is the log backend's query_range
// base URL; cache is the on-disk result cache; broadTTL/traceTTL are the
// differentiated TTLs described in spec.md section 4.2 (trace-scoped queries
// cache longer than broad sweeps).
func NewClient(endpoint string, cache *ResultCache, broadTTL, traceTTL time.Duration, logger *logrus.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
	breaker := circuit.NewBreaker(circuit.BreakerConfig{
		Name:             "logquery",
		FailureThreshold: 10,
		SuccessThreshold: 3,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 5,
	}, logger)

	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Transport: transport, Timeout: 30 * time.Second},
		breaker:  breaker,
		cache:    cache,
		logger:   logger,
		broadTTL: broadTTL,
		traceTTL: traceTTL,
	}
}

// Query executes (or reuses a cached result for) p, returning the path to a
// local file containing the raw JSON response.
func (c *Client) Query(ctx context.Context, p Params) (string, error) {
	key, err := CacheKey(p.Filters, p.Pipeline, p.SearchTerms, p.TraceID, p.Date, p.Time, p.EndDate, p.EndTime)
	if err != nil {
		return "", apperrors.AcquisitionError("Query", err.Error()).Wrap(err)
	}

	ttl := c.broadTTL
	if p.TraceID != "" {
		ttl = c.traceTTL
	}

	if !p.ForceRefresh {
		if entry, ok := c.cache.Lookup(key); ok && !c.cache.Expired(entry, ttl) {
			metrics.RecordLokiQueryHit("disk")
			metrics.RecordLokiBytesSaved(entry.FileSize)
			return entry.FilePath, nil
		}
	}
	metrics.RecordLokiQueryMiss()

	window, err := ResolveWindow(p.Date, p.Time, p.EndDate, p.EndTime, time.Now())
	if err != nil {
		return "", apperrors.InputError("Query", "invalid time window: "+err.Error())
	}
	selector := BuildSelector(p.Filters, p.Pipeline, p.SearchTerms, p.TraceID)

	raw, err := c.execute(ctx, selector, window)
	if err != nil {
		return "", err
	}

	var parsed QueryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperrors.AcquisitionError("Query", "invalid JSON response").Wrap(err)
	}
	metrics.RecordLokiDownload()

	// spec.md: "empty Loki result is not cached" — a response with
	// data.result == [] is returned to the caller but never persisted, so
	// the next identical call downloads again.
	if len(parsed.Data.Result) == 0 {
		return c.writeUncached(key, raw)
	}

	entry, err := c.cache.Store(key, raw, len(parsed.Data.Result))
	if err != nil {
		return "", apperrors.IOError("Query", err.Error()).Wrap(err)
	}
	return entry.FilePath, nil
}

// writeUncached stages an empty-result response to a scratch file outside
// the cache index, so the caller still gets a file path without the
// ResultCache treating the response as a hit on the next call.
func (c *Client) writeUncached(key string, raw []byte) (string, error) {
	path := c.cache.dir + "/" + "loki_" + key + ".empty.json"
	if err := writeFile(path, raw); err != nil {
		return "", apperrors.IOError("Query", err.Error()).Wrap(err)
	}
	return path, nil
}

func (c *Client) execute(ctx context.Context, selector string, window Window) ([]byte, error) {
	var body []byte
	err := c.breaker.Execute(func() error {
		req, err := c.buildRequest(ctx, selector, window)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.RecordLokiError(classifyQueryError(0).String())
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.RecordLokiError(classifyQueryError(0).String())
			return err
		}
		if resp.StatusCode >= 400 {
			class := classifyQueryError(resp.StatusCode)
			metrics.RecordLokiError(class.String())
			return fmt.Errorf("log backend returned %d: %s", resp.StatusCode, string(data))
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, apperrors.AcquisitionError("execute", err.Error()).Wrap(err)
	}
	return body, nil
}

func (c *Client) buildRequest(ctx context.Context, selector string, window Window) (*http.Request, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("query", selector)
	q.Set("start", strconv.FormatInt(window.Start.UnixNano(), 10))
	q.Set("end", strconv.FormatInt(window.End.UnixNano(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
