package logquery

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// keyPayload mirrors spec.md section 4.2's cache-key fields exactly; field
// order here doesn't matter for the hash since it round-trips through
// canonicalJSON's sorted-map encoding.
type keyPayload struct {
	Filters  map[string]string `json:"filters"`
	Pipeline []string          `json:"pipeline"`
	Search   []string          `json:"search"`
	TraceID  string            `json:"trace_id"`
	Date     string            `json:"date"`
	Time     string            `json:"time"`
	EndDate  string            `json:"end_date"`
	EndTime  string            `json:"end_time"`
}

// CacheKey computes the 20-hex-character cache key described in spec.md
// section 4.2, and the "loki_{key}.json" filename derived from it.
func CacheKey(filters map[string]string, pipeline, search []string, traceID, date, timeOfDay, endDate, endTimeOfDay string) (string, error) {
	payload := keyPayload{
		Filters:  filters,
		Pipeline: pipeline,
		Search:   search,
		TraceID:  traceID,
		Date:     date,
		Time:     timeOfDay,
		EndDate:  endDate,
		EndTime:  endTimeOfDay,
	}
	raw, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:20], nil
}

// CacheFileName returns the on-disk filename for a given cache key.
func CacheFileName(key string) string {
	return "loki_" + key + ".json"
}

// canonicalJSON marshals v with map keys sorted, so the same logical payload
// always produces identical bytes regardless of map iteration order.
func canonicalJSON(v interface{}) ([]byte, error) {
	generic, err := toGenericallyOrdered(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// toGenericallyOrdered round-trips v through encoding/json so nested maps
// become map[string]interface{}, which Go's json.Marshal always emits with
// keys sorted lexicographically.
func toGenericallyOrdered(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}
