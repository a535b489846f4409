// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
//
// The provider holds one WebSocket connection per session. Each Transcribe
// call sends the window's PCM followed by a Finalize control message and
// waits for the response batch that ends with from_finalize set, so one
// window maps to one authoritative transcript even when the service splits it
// into several results. A KeepAlive ticker holds the socket open across the
// speaker's pauses between windows.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/rostrumlabs/rostrum/pkg/audio"
	"github.com/rostrumlabs/rostrum/pkg/provider/stt"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// keepAliveInterval must stay well under the ~10 s idle window after
	// which Deepgram closes a silent connection.
	keepAliveInterval = 5 * time.Second
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz for the provider-level default.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartSession opens a transcription session with Deepgram. It respects
// cfg.SampleRate, cfg.Language, and cfg.Keywords; keywords are fixed for the
// lifetime of the session because the service only accepts them at connect
// time.
func (p *Provider) StartSession(ctx context.Context, cfg stt.Config) (stt.Session, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	// The session lives within ctx; the derived cancel lets Close unblock
	// the read loop even when the service never closes its side.
	readCtx, readCancel := context.WithCancel(ctx)

	sess := &session{
		conn:       conn,
		sampleRate: sr,
		finals:     make(chan result, 16),
		done:       make(chan struct{}),
		readCancel: readCancel,
	}

	sess.wg.Add(2)
	go sess.readLoop(readCtx)
	go sess.keepAliveLoop(readCtx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.Config) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	// One authoritative transcript per window; interim results would only
	// duplicate text the caller has to de-correlate.
	q.Set("interim_results", "false")
	// Windows arrive as raw PCM, so the service needs the format spelled out.
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("channels", "1")

	for _, kw := range cfg.Keywords {
		// Deepgram keyword format: word:boost (e.g., "basically:3").
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// result is one parsed Results message plus the flag that marks the end of a
// Finalize response batch.
type result struct {
	transcript   types.Transcript
	fromFinalize bool
}

// session is a live Deepgram connection. It implements stt.Session.
type session struct {
	conn       *websocket.Conn
	sampleRate int
	finals     chan result
	readCancel context.CancelFunc

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	// mu serializes Transcribe calls: the response stream carries no request
	// correlation, so exactly one window may be in flight at a time.
	mu sync.Mutex

	// writeMu guards conn.Write, which allows only one concurrent writer.
	writeMu sync.Mutex

	kwMu     sync.RWMutex
	keywords []types.KeywordBoost // stored for reference; Deepgram doesn't support mid-stream updates
}

var _ stt.Session = (*session)(nil)

// Transcribe sends one utterance window and waits for the service's response
// batch for it.
func (s *session) Transcribe(ctx context.Context, window types.AudioWindow) (types.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return types.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrSessionClosed)
	default:
	}

	transcript := types.Transcript{
		IsFinal:   true,
		Timestamp: window.Timestamp,
		Duration:  window.Duration(),
	}
	if len(window.Samples) == 0 {
		return transcript, nil
	}

	samples := window.Samples
	if window.SampleRate != s.sampleRate && window.SampleRate > 0 {
		samples = audio.ResampleFloat32(samples, window.SampleRate, s.sampleRate)
	}

	if err := s.write(ctx, websocket.MessageBinary, audio.Float32ToPCM16(samples)); err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: send audio: %w", err)
	}
	// Finalize forces the service to flush everything buffered for this
	// window. The response batch ends with a from_finalize result.
	if err := s.write(ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`)); err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: send finalize: %w", err)
	}

	var (
		parts      []string
		words      []types.WordDetail
		confidence float64
	)
	for {
		select {
		case res, ok := <-s.finals:
			if !ok {
				return types.Transcript{}, errors.New("deepgram: connection closed while awaiting transcript")
			}
			if res.transcript.Text != "" {
				parts = append(parts, res.transcript.Text)
				words = append(words, res.transcript.Words...)
				confidence += res.transcript.Confidence
			}
			if res.fromFinalize {
				transcript.Text = strings.Join(parts, " ")
				transcript.Words = words
				if len(parts) > 0 {
					transcript.Confidence = confidence / float64(len(parts))
				}
				return transcript, nil
			}
		case <-ctx.Done():
			return types.Transcript{}, fmt.Errorf("deepgram: await transcript: %w", ctx.Err())
		case <-s.done:
			return types.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrSessionClosed)
		}
	}
}

// SetKeywords records the new keyword list. Deepgram fixes keywords at
// connect time, so this returns stt.ErrNotSupported.
func (s *session) SetKeywords(keywords []types.KeywordBoost) error {
	select {
	case <-s.done:
		return fmt.Errorf("deepgram: %w", stt.ErrSessionClosed)
	default:
	}
	s.kwMu.Lock()
	s.keywords = keywords
	s.kwMu.Unlock()
	return fmt.Errorf("deepgram: %w", stt.ErrNotSupported)
}

// Close terminates the session cleanly.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		// Send a close message to Deepgram to flush pending audio.
		_ = s.write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.readCancel()
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// write serializes writes to the connection; the WebSocket library permits
// only one writer at a time and the keepalive ticker runs concurrently with
// Transcribe.
func (s *session) write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, typ, data)
}

// keepAliveLoop pings the service across the speaker's pauses. Without it,
// Deepgram drops connections that carry no audio for about ten seconds.
func (s *session) keepAliveLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.write(ctx, websocket.MessageText, []byte(`{"type":"KeepAlive"}`)); err != nil {
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readLoop receives JSON messages from Deepgram and routes parsed results to
// the waiting Transcribe call.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.finals)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation; exit gracefully.
			return
		}

		res, ok := parseResponse(msg)
		if !ok {
			continue
		}

		select {
		case s.finals <- res:
		case <-s.done:
		}
	}
}

// parseResponse parses a raw Deepgram WebSocket message into a result.
// Returns (zero, false) for messages that carry nothing to route (metadata
// events, unparseable payloads, empty non-finalize results).
func parseResponse(data []byte) (result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, false
	}
	if resp.Type != "Results" {
		return result{}, false
	}

	res := result{fromFinalize: resp.FromFinalize}
	if len(resp.Channel.Alternatives) == 0 {
		// A Finalize flush with nothing buffered still ends a batch.
		return res, resp.FromFinalize
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]types.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, types.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}

	res.transcript = types.Transcript{
		Text:       alt.Transcript,
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
		Words:      words,
	}
	return res, true
}
