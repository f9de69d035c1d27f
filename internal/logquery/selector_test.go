package logquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSelectorBasic(t *testing.T) {
	sel := BuildSelector(map[string]string{"service_namespace": "ncc"}, nil, []string{"bkash"}, "")
	assert.Equal(t, `{service_namespace="ncc"} |= "bkash"`, sel)
}

func TestBuildSelectorMultipleFiltersSorted(t *testing.T) {
	sel := BuildSelector(map[string]string{"b": "2", "a": "1"}, nil, nil, "")
	assert.Equal(t, `{a="1",b="2"}`, sel)
}

func TestBuildSelectorWithTraceID(t *testing.T) {
	sel := BuildSelector(map[string]string{"app": "x"}, nil, nil, "abc123")
	assert.Equal(t, `{app="x"} | trace_id="abc123"`, sel)
}

func TestBuildSelectorMultipleSearchTerms(t *testing.T) {
	sel := BuildSelector(map[string]string{"app": "x"}, nil, []string{"a", "b"}, "")
	assert.Equal(t, `{app="x"} |= "a" or "b"`, sel)
}

func TestBuildSelectorNegationStage(t *testing.T) {
	sel := BuildSelector(map[string]string{"app": "x"}, []string{`!= "noise"`}, nil, "")
	assert.Equal(t, `{app="x"}!= "noise"`, sel)
}

func TestBuildSelectorPipelineStage(t *testing.T) {
	sel := BuildSelector(map[string]string{"app": "x"}, []string{"json"}, nil, "")
	assert.Equal(t, `{app="x"} | json`, sel)
}

func TestBuildSelectorEscapesQuotes(t *testing.T) {
	sel := BuildSelector(map[string]string{"app": "x"}, nil, []string{`say "hi"`}, "")
	assert.Equal(t, `{app="x"} |= "say \"hi\""`, sel)
}
