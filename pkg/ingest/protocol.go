package ingest

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Binary media frames carry a fixed 9-byte header: one kind byte followed by
// the capture timestamp in microseconds since stream start, big endian. The
// payload encoding is fixed by the hello handshake.
const (
	kindAudio  = 0x01 // client -> server, Opus packet or raw PCM16
	kindVideo  = 0x02 // client -> server, encoded JPEG frame
	kindSpeech = 0x03 // server -> client, coach speech in the negotiated codec

	mediaHeaderLen = 9
)

// Audio codecs accepted in the hello handshake.
const (
	CodecOpus  = "opus"
	CodecPCM16 = "pcm16"
)

// VideoJPEG is the only video format accepted in the hello handshake.
const VideoJPEG = "jpeg"

// helloMessage is the first text frame a capture client must send.
type helloMessage struct {
	Type  string      `json:"type"`
	Name  string      `json:"name,omitempty"`
	Audio audioConfig `json:"audio"`
	Video videoConfig `json:"video,omitempty"`
}

// audioConfig describes the capture client's audio encoding.
type audioConfig struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// videoConfig describes the capture client's video encoding. A zero value
// means the client sends no video.
type videoConfig struct {
	Format string `json:"format,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// readyMessage acknowledges a valid hello.
type readyMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

// errorMessage rejects an invalid hello before the socket is closed.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// validate checks the negotiated formats. Video is optional; audio is not.
func (h helloMessage) validate() error {
	if h.Type != "hello" {
		return fmt.Errorf("ingest: first message type %q, want hello", h.Type)
	}
	switch h.Audio.Codec {
	case CodecOpus, CodecPCM16:
	default:
		return fmt.Errorf("ingest: unsupported audio codec %q", h.Audio.Codec)
	}
	if h.Audio.SampleRate <= 0 {
		return fmt.Errorf("ingest: audio sample rate must be positive, got %d", h.Audio.SampleRate)
	}
	if h.Audio.Channels != 1 && h.Audio.Channels != 2 {
		return fmt.Errorf("ingest: audio channels must be 1 or 2, got %d", h.Audio.Channels)
	}
	if h.Video != (videoConfig{}) {
		if h.Video.Format != VideoJPEG {
			return fmt.Errorf("ingest: unsupported video format %q", h.Video.Format)
		}
		if h.Video.Width <= 0 || h.Video.Height <= 0 {
			return fmt.Errorf("ingest: video dimensions must be positive, got %dx%d", h.Video.Width, h.Video.Height)
		}
	}
	return nil
}

// encodeMediaFrame prepends the media header to payload.
func encodeMediaFrame(kind byte, ts time.Duration, payload []byte) []byte {
	buf := make([]byte, mediaHeaderLen+len(payload))
	buf[0] = kind
	binary.BigEndian.PutUint64(buf[1:mediaHeaderLen], uint64(ts.Microseconds()))
	copy(buf[mediaHeaderLen:], payload)
	return buf
}

// parseMediaFrame splits a binary message into its header fields and payload.
// The payload aliases data; it is not copied.
func parseMediaFrame(data []byte) (kind byte, ts time.Duration, payload []byte, err error) {
	if len(data) < mediaHeaderLen {
		return 0, 0, nil, fmt.Errorf("ingest: media frame of %d bytes is shorter than the %d-byte header", len(data), mediaHeaderLen)
	}
	micros := binary.BigEndian.Uint64(data[1:mediaHeaderLen])
	return data[0], time.Duration(micros) * time.Microsecond, data[mediaHeaderLen:], nil
}
