package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	templates map[string]string
}

func (s stubSource) Resolve(name string) (string, bool) {
	t, ok := s.templates[name]
	return t, ok
}

func TestPromptsRenderFromSource(t *testing.T) {
	p := NewPrompts(stubSource{templates: map[string]string{"greet": "Hello $name"}}, nil, time.Minute)
	assert.Equal(t, "Hello Alice", p.Render("greet", map[string]string{"name": "Alice"}))
}

func TestPromptsFallsBackToDefault(t *testing.T) {
	p := NewPrompts(stubSource{templates: map[string]string{}}, map[string]string{"greet": "Hi $name"}, time.Minute)
	assert.Equal(t, "Hi Bob", p.Render("greet", map[string]string{"name": "Bob"}))
}

func TestPromptsUnresolvedVarLeftUntouched(t *testing.T) {
	p := NewPrompts(nil, map[string]string{"greet": "Hi $name, welcome to $place"}, time.Minute)
	assert.Equal(t, "Hi Bob, welcome to $place", p.Render("greet", map[string]string{"name": "Bob"}))
}

func TestPromptsNoSourceNoDefaultRendersEmpty(t *testing.T) {
	p := NewPrompts(nil, nil, time.Minute)
	assert.Equal(t, "", p.Render("missing", nil))
}

func TestPromptsCachesRenderedResult(t *testing.T) {
	calls := 0
	source := countingSource{resolve: func(name string) (string, bool) {
		calls++
		return "Hello $name", true
	}}
	p := NewPrompts(source, nil, time.Minute)
	p.Render("greet", map[string]string{"name": "A"})
	p.Render("greet", map[string]string{"name": "A"})
	assert.Equal(t, 1, calls, "second render of the same (name, vars) should hit the TTL cache")
}

type countingSource struct {
	resolve func(string) (string, bool)
}

func (c countingSource) Resolve(name string) (string, bool) { return c.resolve(name) }
