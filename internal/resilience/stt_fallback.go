package resilience

import (
	"context"

	"github.com/rostrumlabs/rostrum/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// transcription backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// States reports the breaker state of each backend by name.
func (f *STTFallback) States() map[string]State {
	return f.group.States()
}

// StartSession opens a transcription session against the first healthy
// backend. Only session setup is covered by failover; once a session is
// established, mid-stream errors are handled by the reconnector.
func (f *STTFallback) StartSession(ctx context.Context, cfg stt.Config) (stt.Session, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Session, error) {
		return p.StartSession(ctx, cfg)
	})
}
