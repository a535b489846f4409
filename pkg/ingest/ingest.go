// Package ingest accepts a capture client's media over a single WebSocket and
// adapts it to the pipeline's audio and video streams.
//
// The protocol has three parts. First a text hello message negotiates the
// formats: audio as 20 ms Opus frames or raw little-endian PCM16, video as
// JPEG stills or absent. The server acknowledges with a ready message carrying
// the assigned client ID. After that, all media flows as binary frames with a
// 9-byte header (kind byte plus capture timestamp in microseconds): audio and
// video from the client, synthesized coach speech back from the server in the
// same codec the client negotiated for its own audio.
//
// One capture client is active at a time. Further connection attempts are
// rejected with 409 until the active client disconnects; a client that drops
// mid-session can therefore reconnect as soon as the server notices the dead
// socket.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/rostrumlabs/rostrum/pkg/audio"
)

// helloTimeout bounds how long a fresh socket may sit silent before the
// handshake is abandoned.
const helloTimeout = 5 * time.Second

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithAllowedOrigins sets the Origin patterns accepted from browser capture
// clients (e.g., "coach.example.com", "*.example.com"). Non-browser clients
// that send no Origin header are always accepted.
func WithAllowedOrigins(patterns ...string) Option {
	return func(s *Server) {
		s.originPatterns = patterns
	}
}

// Server accepts capture clients and hands them to the session layer.
// Safe for concurrent use.
type Server struct {
	originPatterns []string

	mu       sync.Mutex
	active   *Client
	onClient func(*Client)
	onEvent  func(audio.Event)
}

// NewServer creates a media ingest server.
func NewServer(opts ...Option) *Server {
	s := &Server{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnClient registers cb to be called with each capture client once its
// handshake completes. Only one callback may be registered; subsequent calls
// replace the previous one.
func (s *Server) OnClient(cb func(*Client)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClient = cb
}

// OnSpeakerEvent registers cb as the callback for speaker lifecycle events.
// Only one callback may be registered; subsequent calls replace the previous
// one.
func (s *Server) OnSpeakerEvent(cb func(audio.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = cb
}

// ActiveClient returns the currently connected capture client, or nil.
func (s *Server) ActiveClient() *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Handler returns the http.Handler serving the media endpoint:
//
//	GET /v1/media — WebSocket upgrade for the capture protocol
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/media", s.handleMedia)
	return mux
}

// handleMedia upgrades the socket, runs the hello handshake, and then blocks
// demuxing media until the client disconnects.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	busy := s.active != nil
	s.mu.Unlock()
	if busy {
		http.Error(w, "a capture client is already connected", http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		return
	}

	hello, err := readHello(r.Context(), conn)
	if err != nil {
		reject(r.Context(), conn, err)
		return
	}

	client, err := newClient(uuid.NewString(), hello, conn)
	if err != nil {
		reject(r.Context(), conn, err)
		return
	}

	// Recheck under the lock; two sockets may have passed the early test.
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		reject(r.Context(), conn, fmt.Errorf("ingest: a capture client is already connected"))
		return
	}
	s.active = client
	onClient, onEvent := s.onClient, s.onEvent
	s.mu.Unlock()

	if err := writeJSON(r.Context(), conn, readyMessage{Type: "ready", ClientID: client.id}); err != nil {
		s.clearActive(client)
		client.Close()
		return
	}

	slog.Info("ingest: capture client connected",
		"client", client.id,
		"name", hello.Name,
		"codec", hello.Audio.Codec,
		"sample_rate", hello.Audio.SampleRate,
		"channels", hello.Audio.Channels,
		"video", hello.Video.Format,
	)
	if onEvent != nil {
		go onEvent(audio.Event{Type: audio.EventConnect, SpeakerID: client.id, Name: client.name})
	}
	if onClient != nil {
		go onClient(client)
	}

	client.readLoop(r.Context())

	client.Close()
	s.clearActive(client)

	slog.Info("ingest: capture client disconnected", "client", client.id)
	s.mu.Lock()
	onEvent = s.onEvent
	s.mu.Unlock()
	if onEvent != nil {
		go onEvent(audio.Event{Type: audio.EventDisconnect, SpeakerID: client.id, Name: client.name})
	}
}

// clearActive removes the client from the active slot if it still holds it.
func (s *Server) clearActive(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == c {
		s.active = nil
	}
}

// readHello reads and validates the handshake message.
func readHello(ctx context.Context, conn *websocket.Conn) (helloMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return helloMessage{}, fmt.Errorf("ingest: read hello: %w", err)
	}
	if typ != websocket.MessageText {
		return helloMessage{}, fmt.Errorf("ingest: hello must be a text message")
	}

	var hello helloMessage
	if err := json.Unmarshal(data, &hello); err != nil {
		return helloMessage{}, fmt.Errorf("ingest: decode hello: %w", err)
	}
	if err := hello.validate(); err != nil {
		return helloMessage{}, err
	}
	return hello, nil
}

// reject reports a handshake failure to the client and closes the socket.
func reject(ctx context.Context, conn *websocket.Conn, cause error) {
	_ = writeJSON(ctx, conn, errorMessage{Type: "error", Message: cause.Error()})
	conn.Close(websocket.StatusPolicyViolation, "handshake rejected")
}

// writeJSON marshals v and sends it as a text frame.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
