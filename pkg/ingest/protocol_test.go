package ingest

import (
	"strings"
	"testing"
	"time"
)

func TestHelloValidate(t *testing.T) {
	valid := helloMessage{
		Type:  "hello",
		Name:  "Maya",
		Audio: audioConfig{Codec: CodecPCM16, SampleRate: 16000, Channels: 1},
		Video: videoConfig{Format: VideoJPEG, Width: 640, Height: 480},
	}

	tests := []struct {
		name    string
		mutate  func(*helloMessage)
		wantErr string
	}{
		{"valid", func(h *helloMessage) {}, ""},
		{"valid opus", func(h *helloMessage) { h.Audio.Codec = CodecOpus; h.Audio.SampleRate = 48000; h.Audio.Channels = 2 }, ""},
		{"valid without video", func(h *helloMessage) { h.Video = videoConfig{} }, ""},
		{"wrong type", func(h *helloMessage) { h.Type = "hi" }, "type"},
		{"unknown codec", func(h *helloMessage) { h.Audio.Codec = "mp3" }, "codec"},
		{"zero sample rate", func(h *helloMessage) { h.Audio.SampleRate = 0 }, "sample rate"},
		{"three channels", func(h *helloMessage) { h.Audio.Channels = 3 }, "channels"},
		{"unknown video format", func(h *helloMessage) { h.Video.Format = "h264" }, "format"},
		{"video without dimensions", func(h *helloMessage) { h.Video.Width = 0 }, "dimensions"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := valid
			tc.mutate(&h)
			err := h.validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validate() = nil, want error mentioning %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("validate() = %q, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestMediaFrameRoundTrip(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := encodeMediaFrame(kindSpeech, 1500*time.Millisecond, payload)

	kind, ts, got, err := parseMediaFrame(data)
	if err != nil {
		t.Fatalf("parseMediaFrame: %v", err)
	}
	if kind != kindSpeech {
		t.Errorf("kind = %#x, want %#x", kind, kindSpeech)
	}
	if ts != 1500*time.Millisecond {
		t.Errorf("timestamp = %v, want 1.5s", ts)
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %v, want %v", got, payload)
	}
}

func TestMediaFrameEmptyPayload(t *testing.T) {
	data := encodeMediaFrame(kindAudio, 0, nil)
	if len(data) != mediaHeaderLen {
		t.Fatalf("encoded length = %d, want %d", len(data), mediaHeaderLen)
	}
	kind, ts, payload, err := parseMediaFrame(data)
	if err != nil {
		t.Fatalf("parseMediaFrame: %v", err)
	}
	if kind != kindAudio || ts != 0 || len(payload) != 0 {
		t.Errorf("parsed (%#x, %v, %v), want (%#x, 0, empty)", kind, ts, payload, kindAudio)
	}
}

func TestParseMediaFrameTooShort(t *testing.T) {
	if _, _, _, err := parseMediaFrame([]byte{0x01, 0x02}); err == nil {
		t.Error("parseMediaFrame should reject frames shorter than the header")
	}
}
