package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/rostrumlabs/rostrum/pkg/audio"
	"github.com/rostrumlabs/rostrum/pkg/provider/pose"
)

// ErrClientClosed is returned by writes to a capture client whose socket has
// been torn down.
var ErrClientClosed = errors.New("ingest: client is closed")

const (
	audioChannelBuffer = 64
	videoChannelBuffer = 8

	// writeTimeout bounds each speech write so a stalled client cannot block
	// the mixer's playback loop.
	writeTimeout = 5 * time.Second
)

// Client is an accepted capture stream: the speaker's microphone and camera
// coming in, coach speech going back out, all on one socket.
//
// The audio and video channels are closed when the client disconnects.
// Client is safe for concurrent use.
type Client struct {
	id   string
	name string
	conn *websocket.Conn

	audio audioConfig
	video videoConfig

	frames   chan audio.AudioFrame
	videoCh  chan pose.Frame
	videoSeq uint64

	sink *speechSink

	done chan struct{}
	once sync.Once

	writeMu sync.Mutex
}

// newClient wires up a client for an accepted, hello-validated socket.
func newClient(id string, hello helloMessage, conn *websocket.Conn) (*Client, error) {
	c := &Client{
		id:      id,
		name:    hello.Name,
		conn:    conn,
		audio:   hello.Audio,
		video:   hello.Video,
		frames:  make(chan audio.AudioFrame, audioChannelBuffer),
		videoCh: make(chan pose.Frame, videoChannelBuffer),
		done:    make(chan struct{}),
	}

	sink := &speechSink{
		client: c,
		conv:   audio.FormatConverter{Target: audio.Format{SampleRate: hello.Audio.SampleRate, Channels: hello.Audio.Channels}},
	}
	if hello.Audio.Codec == CodecOpus {
		enc, err := newOpusEncoder(hello.Audio.SampleRate, hello.Audio.Channels)
		if err != nil {
			return nil, err
		}
		sink.enc = enc
	}
	c.sink = sink

	return c, nil
}

// ID returns the server-assigned client identifier.
func (c *Client) ID() string { return c.id }

// Name returns the display name from the hello message, if any.
func (c *Client) Name() string { return c.name }

// Format reports the microphone PCM format negotiated in the hello message.
// Frames from [Client.Source] carry this format after decoding.
func (c *Client) Format() audio.Format {
	return audio.Format{SampleRate: c.audio.SampleRate, Channels: c.audio.Channels}
}

// Source returns the microphone stream. Closing the source closes the whole
// client; a capture client has no audio-less mode.
func (c *Client) Source() audio.Source { return clientSource{c} }

// VideoFrames returns the camera stream. When the consumer lags, the oldest
// buffered frame is evicted first; pose estimation wants the newest view.
func (c *Client) VideoFrames() <-chan pose.Frame { return c.videoCh }

// Sink returns the coach speech return leg.
func (c *Client) Sink() audio.Sink { return c.sink }

// Done is closed when the client's socket tears down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close tears down the socket. The media channels close once the read loop
// observes the closed connection. Safe to call more than once.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close(websocket.StatusNormalClosure, "session ended")
	})
	return nil
}

// readLoop demuxes incoming binary frames until the socket fails or closes.
// It owns the media channels and closes them on exit.
func (c *Client) readLoop(ctx context.Context) {
	defer close(c.frames)
	defer close(c.videoCh)

	var dec *opusDecoder
	if c.audio.Codec == CodecOpus {
		var err error
		if dec, err = newOpusDecoder(c.audio.SampleRate, c.audio.Channels); err != nil {
			slog.Error("ingest: opus decoder unavailable, dropping client", "client", c.id, "error", err)
			return
		}
	}

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			// Normal close, network failure, or context cancellation.
			return
		}
		if typ != websocket.MessageBinary {
			// Control messages after hello carry nothing actionable yet.
			continue
		}

		kind, ts, payload, err := parseMediaFrame(data)
		if err != nil {
			slog.Warn("ingest: dropping malformed media frame", "client", c.id, "error", err)
			continue
		}

		switch kind {
		case kindAudio:
			c.handleAudio(dec, ts, payload)
		case kindVideo:
			c.handleVideo(ts, payload)
		default:
			slog.Warn("ingest: dropping media frame of unknown kind", "client", c.id, "kind", kind)
		}
	}
}

// handleAudio decodes one audio frame and delivers it, dropping the frame if
// the consumer has fallen behind.
func (c *Client) handleAudio(dec *opusDecoder, ts time.Duration, payload []byte) {
	data := payload
	if dec != nil {
		var err error
		if data, err = dec.decode(payload); err != nil {
			slog.Warn("ingest: dropping undecodable audio frame", "client", c.id, "error", err)
			return
		}
	}

	frame := audio.AudioFrame{
		Data:       data,
		SampleRate: c.audio.SampleRate,
		Channels:   c.audio.Channels,
		Timestamp:  ts,
	}

	select {
	case c.frames <- frame:
	default:
		// Consumer lagging — drop rather than block the socket.
	}
}

// handleVideo delivers one camera frame, evicting the oldest buffered frame
// when the consumer has fallen behind.
func (c *Client) handleVideo(ts time.Duration, payload []byte) {
	c.videoSeq++
	frame := pose.Frame{
		Seq:       c.videoSeq,
		Timestamp: ts,
		Width:     c.video.Width,
		Height:    c.video.Height,
		Data:      payload,
	}

	select {
	case c.videoCh <- frame:
	default:
		select {
		case <-c.videoCh:
		default:
		}
		select {
		case c.videoCh <- frame:
		default:
		}
	}
}

// writeBinary sends one framed binary message; the WebSocket library permits
// only one concurrent writer.
func (c *Client) writeBinary(kind byte, ts time.Duration, payload []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageBinary, encodeMediaFrame(kind, ts, payload))
}

// ---- source adapter ----

// clientSource adapts a Client to the audio.Source interface.
type clientSource struct {
	c *Client
}

func (s clientSource) Frames() <-chan audio.AudioFrame { return s.c.frames }

func (s clientSource) Close() error { return s.c.Close() }

var _ audio.Source = (clientSource{})

// ---- speech sink ----

// speechSink adapts the socket's return leg to the audio.Sink interface.
// Frames are converted to the client's negotiated format; with the Opus codec
// they are re-chunked to exact 20 ms frames before encoding, carrying any
// partial frame over to the next write.
type speechSink struct {
	client *Client

	mu      sync.Mutex
	conv    audio.FormatConverter
	enc     *opusEncoder // nil when the client negotiated raw PCM
	pending []byte
	closed  bool
}

// Write converts and delivers one frame of coach speech.
func (s *speechSink) Write(frame audio.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("ingest: write speech: %w", ErrClientClosed)
	}

	out := s.conv.Convert(frame)
	if len(out.Data) == 0 {
		return nil
	}

	if s.enc == nil {
		if err := s.client.writeBinary(kindSpeech, frame.Timestamp, out.Data); err != nil {
			return fmt.Errorf("ingest: write speech: %w", err)
		}
		return nil
	}

	s.pending = append(s.pending, out.Data...)
	fb := s.enc.frameBytes()
	for len(s.pending) >= fb {
		pkt, err := s.enc.encode(s.pending[:fb])
		s.pending = s.pending[fb:]
		if err != nil {
			slog.Warn("ingest: opus encode error, skipping chunk", "client", s.client.id, "error", err)
			continue
		}
		if err := s.client.writeBinary(kindSpeech, frame.Timestamp, pkt); err != nil {
			return fmt.Errorf("ingest: write speech: %w", err)
		}
	}
	return nil
}

// Close flushes any partial Opus frame padded with silence. The socket stays
// open; it belongs to the client, not the playback path. Safe to call more
// than once.
func (s *speechSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.enc != nil && len(s.pending) > 0 {
		fb := s.enc.frameBytes()
		chunk := append(s.pending, make([]byte, fb-len(s.pending))...)
		s.pending = nil
		if pkt, err := s.enc.encode(chunk); err == nil {
			_ = s.client.writeBinary(kindSpeech, 0, pkt)
		}
	}
	return nil
}

var _ audio.Sink = (*speechSink)(nil)
