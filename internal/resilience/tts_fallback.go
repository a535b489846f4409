package resilience

import (
	"context"
	"log/slog"

	"github.com/rostrumlabs/rostrum/pkg/audio"
	"github.com/rostrumlabs/rostrum/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// synthesis backends. Each backend has its own circuit breaker.
//
// All backends in the group should emit the same PCM format; the playback
// mixer converts from the format reported by [TTSFallback.OutputFormat],
// which is always the primary's.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback. A fallback
// whose output format differs from the primary's is still registered, but the
// mismatch is logged: audio it synthesises will be converted as if it were in
// the primary's format.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	primary := f.group.entries[0].value.OutputFormat()
	if got := provider.OutputFormat(); got != primary {
		slog.Warn("tts fallback output format differs from primary",
			"provider", name,
			"primary_format", primary,
			"fallback_format", got,
		)
	}
	f.group.AddFallback(name, provider)
}

// States reports the breaker state of each backend by name.
func (f *TTSFallback) States() map[string]State {
	return f.group.States()
}

// SynthesizeStream consumes text fragments and returns a channel of audio bytes,
// trying the first healthy provider. Only the initial stream setup is covered by
// failover; mid-stream errors are the caller's responsibility.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (<-chan []byte, error) {
		return p.SynthesizeStream(ctx, text, voice)
	})
}

// OutputFormat reports the primary's PCM format. This does not participate in
// failover because the playback path resolves the format once at startup.
func (f *TTSFallback) OutputFormat() audio.Format {
	return f.group.entries[0].value.OutputFormat()
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// CloneVoice creates a new voice profile using the first healthy provider.
func (f *TTSFallback) CloneVoice(ctx context.Context, samples [][]byte) (*tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*tts.VoiceProfile, error) {
		return p.CloneVoice(ctx, samples)
	})
}
