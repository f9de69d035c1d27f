// Package llm implements C6: a single chat abstraction over two concrete
// providers (a local inference daemon and a remote OpenAI-compatible
// gateway), grounded on the teacher's provider-wrapping style seen across
// the pack's agent/provider packages (one interface, one struct per
// backend, config-driven construction).
package llm

import (
	"context"

	"logforensics/pkg/types"
)

// Provider is C6's uniform chat abstraction. options may be nil, in which
// case provider defaults apply. options.Timeout is consumed by the provider
// for its own context deadline and must never be forwarded to C1's
// cache-key hashing.
type Provider interface {
	Chat(ctx context.Context, modelID string, messages []types.ChatMessage, options *types.ChatOptions) (types.ChatResponse, error)
	// IsAvailable is a cheap health probe; it must not block on a full chat
	// round-trip.
	IsAvailable(ctx context.Context) bool
	// ProviderName returns a stable identifier used in metrics labels.
	ProviderName() string
}
