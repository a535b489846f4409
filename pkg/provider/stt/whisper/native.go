package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/rostrumlabs/rostrum/pkg/audio"
	"github.com/rostrumlabs/rostrum/pkg/dsp"
	"github.com/rostrumlabs/rostrum/pkg/provider/stt"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// NativeOption configures a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the default transcription language (e.g., "en").
// A session's Config.Language takes precedence when set.
func WithNativeLanguage(language string) NativeOption {
	return func(p *NativeProvider) {
		p.language = language
	}
}

// WithNativeSampleRate sets the sample rate windows are resampled to before
// inference. The Go bindings expect 16 kHz audio; override only for custom
// whisper.cpp builds.
func WithNativeSampleRate(rate int) NativeOption {
	return func(p *NativeProvider) {
		p.sampleRate = rate
	}
}

// WithNativeSilenceFloor sets the normalized RMS floor below which windows
// are skipped without running inference. Zero disables the gate.
func WithNativeSilenceFloor(floor float64) NativeOption {
	return func(p *NativeProvider) {
		p.silenceFloor = floor
	}
}

// NativeProvider runs whisper.cpp in-process through its Go bindings (CGO).
// No server round-trip: windows are handed straight to the inference runtime.
// Building it requires the whisper.cpp static library; see the bindings'
// README for the required CGO flags.
type NativeProvider struct {
	model        whisperlib.Model
	language     string
	sampleRate   int
	silenceFloor float64
}

var _ stt.Provider = (*NativeProvider)(nil)

// NewNative loads a whisper.cpp model from the given GGML model file (e.g.,
// "models/ggml-base.en.bin") and returns a provider backed by it. The model
// stays resident until Close.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whisper: model path is empty")
	}

	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:        model,
		language:     defaultLanguage,
		sampleRate:   defaultSampleRate,
		silenceFloor: defaultSilenceFloor,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Close releases the loaded model. The provider is unusable afterwards.
func (p *NativeProvider) Close() error {
	if p.model == nil {
		return nil
	}
	err := p.model.Close()
	p.model = nil
	return err
}

// StartSession opens a transcription session against the loaded model.
// Config.Keywords is ignored: the bindings expose no vocabulary hint API.
func (p *NativeProvider) StartSession(ctx context.Context, cfg stt.Config) (stt.Session, error) {
	if p.model == nil {
		return nil, fmt.Errorf("whisper: model is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: start session: %w", err)
	}

	s := &nativeSession{
		provider:   p,
		sampleRate: p.sampleRate,
		language:   p.language,
	}
	if cfg.SampleRate > 0 {
		s.sampleRate = cfg.SampleRate
	}
	if cfg.Language != "" {
		s.language = cfg.Language
	}
	return s, nil
}

type nativeSession struct {
	provider   *NativeProvider
	sampleRate int
	language   string
	closed     atomic.Bool
}

var _ stt.Session = (*nativeSession)(nil)

// Transcribe runs inference on one utterance window. Empty or near-silent
// windows are skipped and yield an empty-text Transcript with a nil error.
func (s *nativeSession) Transcribe(_ context.Context, window types.AudioWindow) (types.Transcript, error) {
	if s.closed.Load() {
		return types.Transcript{}, fmt.Errorf("whisper: %w", stt.ErrSessionClosed)
	}

	transcript := types.Transcript{
		IsFinal:   true,
		Timestamp: window.Timestamp,
		Duration:  window.Duration(),
	}
	if len(window.Samples) == 0 {
		return transcript, nil
	}
	if s.provider.silenceFloor > 0 && dsp.RMS(window.Samples) < s.provider.silenceFloor {
		return transcript, nil
	}

	samples := window.Samples
	if window.SampleRate != s.sampleRate && window.SampleRate > 0 {
		samples = audio.ResampleFloat32(samples, window.SampleRate, s.sampleRate)
	}

	text, err := s.infer(samples)
	if err != nil {
		return types.Transcript{}, err
	}
	transcript.Text = text
	return transcript, nil
}

// SetKeywords reports that keyword boosting is unavailable in the bindings.
func (s *nativeSession) SetKeywords(_ []types.KeywordBoost) error {
	if s.closed.Load() {
		return fmt.Errorf("whisper: %w", stt.ErrSessionClosed)
	}
	return fmt.Errorf("whisper: %w", stt.ErrNotSupported)
}

// Close marks the session closed. The shared model stays loaded; it belongs
// to the provider.
func (s *nativeSession) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *nativeSession) infer(samples []float32) (string, error) {
	// Each context is NOT safe for concurrent use, but the model can be
	// shared across goroutines, so a fresh context per call keeps sessions
	// independent.
	wctx, err := s.provider.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: set language failed, using model default",
			"language", s.language,
			"error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
