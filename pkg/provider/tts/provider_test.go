package tts_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rostrumlabs/rostrum/pkg/provider/tts"
	"github.com/rostrumlabs/rostrum/pkg/provider/tts/mock"
)

func TestSynthesize_CollectsAllChunks(t *testing.T) {
	p := &mock.Provider{
		SynthesizeChunks: [][]byte{
			{0x01, 0x02},
			{0x03, 0x04},
			{0x05},
		},
	}

	voice := tts.VoiceProfile{ID: "coach", Provider: "mock"}
	pcm, err := tts.Synthesize(context.Background(), p, "Good pacing throughout.", voice)
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}

	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	if !bytes.Equal(pcm, want) {
		t.Errorf("pcm = %v, want %v", pcm, want)
	}

	if len(p.SynthesizeStreamCalls) != 1 {
		t.Fatalf("got %d SynthesizeStream calls, want 1", len(p.SynthesizeStreamCalls))
	}
	if got := p.SynthesizeStreamCalls[0].Voice.ID; got != "coach" {
		t.Errorf("voice.ID = %q, want %q", got, "coach")
	}
}

func TestSynthesize_PropagatesError(t *testing.T) {
	wantErr := errors.New("backend offline")
	p := &mock.Provider{SynthesizeErr: wantErr}

	if _, err := tts.Synthesize(context.Background(), p, "Hello", tts.VoiceProfile{ID: "v"}); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestSynthesize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &mock.Provider{SynthesizeChunks: [][]byte{{0x01}}}

	if _, err := tts.Synthesize(ctx, p, "Hello", tts.VoiceProfile{ID: "v"}); err == nil {
		t.Error("Synthesize with cancelled context expected error, got nil")
	}
}
