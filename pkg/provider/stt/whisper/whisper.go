// Package whisper implements the stt.Provider interface backed by a
// whisper.cpp server (the `server` example binary from the whisper.cpp
// project). It is the self-hosted alternative to cloud transcription: audio
// never leaves the machine, at the cost of running inference locally.
//
// Each Transcribe call wraps one utterance window in a minimal WAV container
// and POSTs it to the server's /inference endpoint. The server is stateless,
// so a session here is cheap: it only pins the audio format and language
// resolved at StartSession time.
//
// Usage:
//
//	provider := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	session, err := provider.StartSession(ctx, stt.Config{SampleRate: 16000})
//	if err != nil { ... }
//	defer session.Close()
//
//	transcript, err := session.Transcribe(ctx, window)
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/audio"
	"github.com/rostrumlabs/rostrum/pkg/dsp"
	"github.com/rostrumlabs/rostrum/pkg/provider/stt"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// defaultSilenceFloor is the normalized RMS below which a window is
	// treated as silence and skipped. Whisper models hallucinate plausible
	// text ("thank you", "you") when fed silence or room noise, so windows
	// under the floor never reach the server.
	defaultSilenceFloor = 0.009

	requestTimeout = 30 * time.Second
)

// Option configures a Provider.
type Option func(*Provider)

// WithModel sets the model name passed to the server. Most whisper.cpp server
// builds load a single model at startup and ignore this field; it matters for
// multi-model deployments.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default transcription language (e.g., "en", "de").
// A session's Config.Language takes precedence when set.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the default sample rate windows are resampled to before
// submission. Whisper models are trained on 16 kHz audio; override only for
// servers that resample internally.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithSilenceFloor sets the normalized RMS floor below which windows are
// skipped without contacting the server. Zero disables the gate.
func WithSilenceFloor(floor float64) Option {
	return func(p *Provider) {
		p.silenceFloor = floor
	}
}

// WithHTTPClient replaces the HTTP client used for inference requests.
// Intended for tests and for callers that need custom transport settings.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// Provider implements stt.Provider against a whisper.cpp server.
type Provider struct {
	serverURL    string
	model        string
	language     string
	sampleRate   int
	silenceFloor float64
	httpClient   *http.Client
}

var _ stt.Provider = (*Provider)(nil)

// New creates a whisper provider that sends inference requests to the given
// server base URL (e.g., "http://localhost:8080"). The URL must not have a
// trailing slash.
func New(serverURL string, opts ...Option) *Provider {
	p := &Provider{
		serverURL:    serverURL,
		language:     defaultLanguage,
		sampleRate:   defaultSampleRate,
		silenceFloor: defaultSilenceFloor,
		httpClient:   &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StartSession opens a transcription session. Config.SampleRate and
// Config.Language override the provider defaults when set; Config.Keywords is
// ignored because the whisper.cpp server has no keyword-boost API.
func (p *Provider) StartSession(ctx context.Context, cfg stt.Config) (stt.Session, error) {
	if p.serverURL == "" {
		return nil, fmt.Errorf("whisper: server URL is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: start session: %w", err)
	}

	s := &session{
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

// session implements stt.Session. The whisper.cpp server is stateless, so the
// session holds no connection; it carries the resolved format and a closed
// flag.
type session struct {
	provider   *Provider
	sampleRate int
	language   string
	closed     atomic.Bool
}

var _ stt.Session = (*session)(nil)

// Transcribe sends one utterance window to the server and returns its
// transcript. Empty or near-silent windows are skipped locally and yield an
// empty-text Transcript with a nil error.
func (s *session) Transcribe(ctx context.Context, window types.AudioWindow) (types.Transcript, error) {
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
	pcm := audio.Float32ToPCM16(samples)

	text, err := s.infer(ctx, encodeWAV(pcm, s.sampleRate))
	if err != nil {
		return types.Transcript{}, err
	}

	// The server reports only the text, no confidence or word timings.
	transcript.Text = strings.TrimSpace(text)
	return transcript, nil
}

// SetKeywords reports that keyword boosting is unavailable: the whisper.cpp
// server exposes no vocabulary hint API.
func (s *session) SetKeywords(_ []types.KeywordBoost) error {
	if s.closed.Load() {
		return fmt.Errorf("whisper: %w", stt.ErrSessionClosed)
	}
	return fmt.Errorf("whisper: %w", stt.ErrNotSupported)
}

// Close marks the session closed. Safe to call multiple times.
func (s *session) Close() error {
	s.closed.Store(true)
	return nil
}

// infer POSTs WAV data to the server's /inference endpoint and returns the
// transcribed text.
func (s *session) infer(ctx context.Context, wavData []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("whisper: write form file: %w", err)
	}
	if s.language != "" {
		if err := writer.WriteField("language", s.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if s.provider.model != "" {
		if err := writer.WriteField("model", s.provider.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.provider.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.provider.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper: server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: decode response: %w", err)
	}
	return result.Text, nil
}

// encodeWAV wraps raw 16-bit mono PCM in a minimal RIFF/WAV container, the
// input format the whisper.cpp server expects.
func encodeWAV(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 0, 44+dataSize)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataSize))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16) // fmt chunk size
	buf = binary.LittleEndian.AppendUint16(buf, 1)  // PCM format
	buf = binary.LittleEndian.AppendUint16(buf, numChannels)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, bitsPerSample)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataSize))
	return append(buf, pcm...)
}
