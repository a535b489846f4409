package resilience

import (
	"context"
	"log/slog"

	"github.com/rostrumlabs/rostrum/pkg/provider/embeddings"
)

// EmbedFallback implements [embeddings.Provider] with automatic failover across
// multiple embedding backends, e.g. a hosted endpoint with a local Ollama
// fallback serving the same model. Each backend has its own circuit breaker.
type EmbedFallback struct {
	group *FallbackGroup[embeddings.Provider]
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*EmbedFallback)(nil)

// NewEmbedFallback creates an [EmbedFallback] with primary as the preferred
// backend.
func NewEmbedFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbedFallback {
	return &EmbedFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional embedding provider as a fallback.
// A fallback whose vector dimension differs from the primary's is rejected
// and logged: vectors from different models must never be mixed in one
// index, so failing over to such a backend would corrupt searches.
func (f *EmbedFallback) AddFallback(name string, provider embeddings.Provider) {
	primary := f.group.entries[0].value.Dimensions()
	if got := provider.Dimensions(); got != primary {
		slog.Error("embedding fallback rejected: dimension mismatch",
			"provider", name,
			"primary_dimensions", primary,
			"fallback_dimensions", got,
		)
		return
	}
	f.group.AddFallback(name, provider)
}

// States reports the breaker state of each backend by name.
func (f *EmbedFallback) States() map[string]State {
	return f.group.States()
}

// Embed computes one embedding using the first healthy provider.
func (f *EmbedFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch computes a batch of embeddings using the first healthy provider.
func (f *EmbedFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions reports the primary's vector dimension. AddFallback only admits
// backends with the same dimension, so this holds for every entry.
func (f *EmbedFallback) Dimensions() int {
	return f.group.entries[0].value.Dimensions()
}

// ModelID reports the primary's model identifier.
func (f *EmbedFallback) ModelID() string {
	return f.group.entries[0].value.ModelID()
}
