// Package embeddings defines the Provider interface for vector embedding backends.
//
// An embeddings provider maps text to dense float32 vectors (OpenAI
// text-embedding-3, a local Ollama model, and so on). The session archive uses
// these vectors to index delivered feedback so the coach can recall what it has
// already told a speaker in earlier sessions.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the dimensionality
// reported by Dimensions. Vectors from different instances must not be mixed in
// one similarity computation unless both use the same model and space.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns a
	// float32 slice of length Dimensions() or an error if the request fails or
	// ctx is cancelled.
	//
	// Text passes through verbatim; any model-specific prompt formatting (such
	// as a "query: " prefix for retrieval models) is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of texts in a single
	// provider call. The returned slice has the same length as texts and the
	// i-th element corresponds to texts[i].
	//
	// On error the entire result is nil; partial results are not returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// provider. The value is determined by the underlying model and is constant
	// for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, such as
	// "text-embedding-3-small". Used for logging and for verifying that a
	// stored index was built with the same model.
	ModelID() string
}
