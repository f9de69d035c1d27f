package llm

import (
	"regexp"
	"sync"
	"time"
)

// PromptSource is the "prompt lookup interface" spec.md's redesign section
// calls for in place of monkey-patchable, database-loaded prompts: a
// resolve(name) -> template? boundary that can be backed by a database, a
// file, or nothing at all.
type PromptSource interface {
	Resolve(name string) (template string, ok bool)
}

// Prompts renders named templates by resolving them through an optional
// PromptSource, falling back to a built-in default when the source has
// nothing for that name (or no source is configured). Rendered prompts are
// cached with a TTL so repeated renders of the same (name, vars) pair don't
// re-resolve or re-substitute on every call.
type Prompts struct {
	source   PromptSource
	defaults map[string]string
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]renderedPrompt
}

type renderedPrompt struct {
	text      string
	expiresAt time.Time
}

// NewPrompts constructs a Prompts renderer. source may be nil, meaning only
// defaults are ever used.
func NewPrompts(source PromptSource, defaults map[string]string, ttl time.Duration) *Prompts {
	return &Prompts{
		source:   source,
		defaults: defaults,
		ttl:      ttl,
		cache:    make(map[string]renderedPrompt),
	}
}

var varPattern = regexp.MustCompile(`\$(\w+)`)

// Render resolves the named template (source first, then built-in default)
// and substitutes $name tokens from vars.
func (p *Prompts) Render(name string, vars map[string]string) string {
	cacheKey := name + "|" + cacheKeyForVars(vars)

	p.mu.Lock()
	if entry, ok := p.cache[cacheKey]; ok && time.Now().Before(entry.expiresAt) {
		p.mu.Unlock()
		return entry.text
	}
	p.mu.Unlock()

	template, ok := "", false
	if p.source != nil {
		template, ok = p.source.Resolve(name)
	}
	if !ok {
		template, ok = p.defaults[name]
	}
	if !ok {
		template = ""
	}

	rendered := substitute(template, vars)

	if p.ttl > 0 {
		p.mu.Lock()
		p.cache[cacheKey] = renderedPrompt{text: rendered, expiresAt: time.Now().Add(p.ttl)}
		p.mu.Unlock()
	}
	return rendered
}

func substitute(template string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1:]
		if v, ok := vars[name]; ok {
			return v
		}
		return token
	})
}

// cacheKeyForVars builds a deterministic cache-key suffix from vars. Var
// maps are small (a handful of substitution points per prompt), so a simple
// sorted-concatenation is sufficient.
func cacheKeyForVars(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	var b []byte
	for _, k := range keys {
		b = append(b, k...)
		b = append(b, '=')
		b = append(b, vars[k]...)
		b = append(b, ';')
	}
	return string(b)
}
