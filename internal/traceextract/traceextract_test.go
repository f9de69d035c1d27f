package traceextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const xmlSample = `<log-row><request-id>trace-1</request-id><message>first</message></log-row>` +
	`<log-row><request-id>trace-2</request-id><message>second</message></log-row>`

func TestExtractEmptyInput(t *testing.T) {
	id, ok := Extract("", -1)
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestExtractXMLNoOffsetReturnsFirstRecord(t *testing.T) {
	id, ok := Extract(xmlSample, -1)
	assert.True(t, ok)
	assert.Equal(t, "trace-1", id)
}

func TestExtractXMLOffsetWithinSecondRecord(t *testing.T) {
	offset := len(`<log-row><request-id>trace-1</request-id><message>first</message></log-row>`) + 5
	id, ok := Extract(xmlSample, offset)
	assert.True(t, ok)
	assert.Equal(t, "trace-2", id)
}

func TestExtractXMLSkipsMalformedRecord(t *testing.T) {
	malformed := `<log-row><request-id>trace-bad</request-id><message>no close`
	text := malformed + xmlSample
	id, ok := Extract(text, -1)
	assert.True(t, ok)
	assert.Equal(t, "trace-1", id)
}

func TestExtractJSONStream(t *testing.T) {
	text := `{"status":"success","data":{"result":[{"stream":{"trace_id":"abc"},"values":[["1","hello"]]}]}}`
	id, ok := Extract(text, -1)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}

func TestExtractAllXML(t *testing.T) {
	results := ExtractAll(xmlSample)
	assert.Len(t, results, 2)
	assert.Equal(t, "trace-1", results[0].TraceID)
	assert.Equal(t, "trace-2", results[1].TraceID)
}

func TestUniquePreservesFirstSeenOrder(t *testing.T) {
	results := []Result{{TraceID: "a"}, {TraceID: "b"}, {TraceID: "a"}}
	assert.Equal(t, []string{"a", "b"}, Unique(results))
}

func TestExtractNegativeOffsetTreatedAsNone(t *testing.T) {
	id, ok := Extract(xmlSample, -5)
	assert.True(t, ok)
	assert.Equal(t, "trace-1", id)
}
