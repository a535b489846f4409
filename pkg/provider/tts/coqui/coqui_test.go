package coqui

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/provider/tts"
)

// ---- test helpers ----

// buildTestWAV wraps pcm in a canonical 44-byte RIFF/WAVE header with the
// given sample rate and channel count (16-bit samples).
func buildTestWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	blockAlign := channels * 2
	byteRate := sampleRate * blockAlign

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// drainAudio reads the audio channel until it closes and returns the
// concatenated PCM. Fails the test if the channel does not close in time.
func drainAudio(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	var out []byte
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, chunk...)
		case <-timeout:
			t.Fatal("timed out waiting for audio channel to close")
		}
	}
}

// sendFragments writes all fragments to the channel and closes it.
func sendFragments(ch chan<- string, fragments ...string) {
	for _, f := range fragments {
		ch <- f
	}
	close(ch)
}

func mustNew(t *testing.T, serverURL string, opts ...Option) *Provider {
	t.Helper()
	p, err := New(serverURL, opts...)
	if err != nil {
		t.Fatalf("New(%q) returned error: %v", serverURL, err)
	}
	return p
}

func voiceWithID(id string) tts.VoiceProfile {
	return tts.VoiceProfile{ID: id, Name: id, Provider: "coqui"}
}

// ---- constructor tests ----

func TestNew_EmptyURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") expected error, got nil")
	}
}

func TestNew_Defaults(t *testing.T) {
	p := mustNew(t, "http://localhost:5002/")

	if p.serverURL != "http://localhost:5002" {
		t.Errorf("serverURL = %q, want trailing slash trimmed", p.serverURL)
	}
	if p.language != "en" {
		t.Errorf("language = %q, want %q", p.language, "en")
	}
	if p.apiMode != APIModeStandard {
		t.Errorf("apiMode = %q, want %q", p.apiMode, APIModeStandard)
	}
	if p.outputRate != 22050 {
		t.Errorf("outputRate = %d, want 22050", p.outputRate)
	}
	if p.httpClient.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", p.httpClient.Timeout, defaultTimeout)
	}
}

func TestNew_Options(t *testing.T) {
	p := mustNew(t, "http://localhost:8002",
		WithLanguage("de"),
		WithTimeout(5*time.Second),
		WithAPIMode(APIModeXTTS),
		WithOutputSampleRate(48000),
	)

	if p.language != "de" {
		t.Errorf("language = %q, want %q", p.language, "de")
	}
	if p.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", p.httpClient.Timeout)
	}
	if p.apiMode != APIModeXTTS {
		t.Errorf("apiMode = %q, want %q", p.apiMode, APIModeXTTS)
	}
	if p.outputRate != 48000 {
		t.Errorf("outputRate = %d, want 48000", p.outputRate)
	}
}

func TestOutputFormat(t *testing.T) {
	p := mustNew(t, "http://localhost:5002")
	if f := p.OutputFormat(); f.SampleRate != 22050 || f.Channels != 1 {
		t.Errorf("OutputFormat() = %+v, want {22050 1}", f)
	}

	p = mustNew(t, "http://localhost:5002", WithOutputSampleRate(48000))
	if f := p.OutputFormat(); f.SampleRate != 48000 || f.Channels != 1 {
		t.Errorf("OutputFormat() = %+v, want {48000 1}", f)
	}
}

// ---- SynthesizeStream tests ----

func TestSynthesizeStream_XTTS(t *testing.T) {
	wantPCM := bytes.Repeat([]byte{0x42}, 200)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ttsEndpoint {
			t.Errorf("request path = %q, want %q", r.URL.Path, ttsEndpoint)
		}
		if r.Method != http.MethodPost {
			t.Errorf("request method = %q, want POST", r.Method)
		}

		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if req.Text != "Great pacing on that opener." {
			t.Errorf("request text = %q", req.Text)
		}
		if req.SpeakerWav != "coach_emma" {
			t.Errorf("request speaker_wav = %q, want %q", req.SpeakerWav, "coach_emma")
		}
		if req.Language != "en" {
			t.Errorf("request language = %q, want %q", req.Language, "en")
		}

		w.Header().Set("Content-Type", "audio/wav")
		w.Write(buildTestWAV(wantPCM, 22050, 1))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))

	text := make(chan string, 1)
	sendFragments(text, "Great pacing on that opener.")

	audioCh, err := p.SynthesizeStream(context.Background(), text, voiceWithID("coach_emma"))
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	got := drainAudio(t, audioCh)
	if !bytes.Equal(got, wantPCM) {
		t.Errorf("audio = %d bytes, want %d bytes of 0x42", len(got), len(wantPCM))
	}
}

func TestSynthesizeStream_Standard(t *testing.T) {
	wantPCM := bytes.Repeat([]byte{0x17}, 100)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiTTSEndpoint {
			t.Errorf("request path = %q, want %q", r.URL.Path, apiTTSEndpoint)
		}
		if r.Method != http.MethodGet {
			t.Errorf("request method = %q, want GET", r.Method)
		}

		q := r.URL.Query()
		if got := q.Get("text"); got != "Slow down a little." {
			t.Errorf("text param = %q", got)
		}
		if got := q.Get("speaker_id"); got != "p225" {
			t.Errorf("speaker_id param = %q, want %q", got, "p225")
		}
		if got := q.Get("language_id"); got != "en" {
			t.Errorf("language_id param = %q, want %q", got, "en")
		}

		w.Header().Set("Content-Type", "audio/wav")
		w.Write(buildTestWAV(wantPCM, 22050, 1))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)

	text := make(chan string, 1)
	sendFragments(text, "Slow down a little.")

	audioCh, err := p.SynthesizeStream(context.Background(), text, voiceWithID("p225"))
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	if got := drainAudio(t, audioCh); !bytes.Equal(got, wantPCM) {
		t.Errorf("audio = %d bytes, want %d", len(got), len(wantPCM))
	}
}

func TestSynthesizeStream_StandardEmptyVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("speaker_id") {
			t.Error("speaker_id param present, want omitted for empty voice")
		}
		w.Write(buildTestWAV(bytes.Repeat([]byte{0x01}, 50), 22050, 1))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)

	text := make(chan string, 1)
	sendFragments(text, "Nice recovery.")

	audioCh, err := p.SynthesizeStream(context.Background(), text, voiceWithID(""))
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}
	drainAudio(t, audioCh)
}

func TestSynthesizeStream_XTTSEmptyVoice(t *testing.T) {
	p := mustNew(t, "http://localhost:8002", WithAPIMode(APIModeXTTS))

	text := make(chan string)
	if _, err := p.SynthesizeStream(context.Background(), text, voiceWithID("")); err == nil {
		t.Fatal("SynthesizeStream with empty voice in XTTS mode expected error, got nil")
	}
}

func TestSynthesizeStream_ResamplesToOutputRate(t *testing.T) {
	// Server responds at 44100 Hz; default output rate is 22050, so the
	// emitted PCM must contain half as many samples.
	srcPCM := make([]byte, 400) // 200 samples of a constant value
	for i := 0; i < len(srcPCM); i += 2 {
		binary.LittleEndian.PutUint16(srcPCM[i:], 0x1000)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buildTestWAV(srcPCM, 44100, 1))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)

	text := make(chan string, 1)
	sendFragments(text, "Strong close.")

	audioCh, err := p.SynthesizeStream(context.Background(), text, voiceWithID(""))
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	got := drainAudio(t, audioCh)
	if len(got) != 200 {
		t.Fatalf("resampled audio = %d bytes, want 200", len(got))
	}
	// Linear interpolation of a constant signal preserves the value.
	for i := 0; i < len(got); i += 2 {
		if v := binary.LittleEndian.Uint16(got[i:]); v != 0x1000 {
			t.Fatalf("sample %d = %#x, want 0x1000", i/2, v)
		}
	}
}

func TestSynthesizeStream_DownmixesStereo(t *testing.T) {
	// 100 stereo frames (L == R) at the output rate become 100 mono samples.
	srcPCM := make([]byte, 400)
	for i := 0; i < len(srcPCM); i += 2 {
		binary.LittleEndian.PutUint16(srcPCM[i:], 0x0200)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buildTestWAV(srcPCM, 22050, 2))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)

	text := make(chan string, 1)
	sendFragments(text, "Good eye contact.")

	audioCh, err := p.SynthesizeStream(context.Background(), text, voiceWithID(""))
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	got := drainAudio(t, audioCh)
	if len(got) != 200 {
		t.Fatalf("downmixed audio = %d bytes, want 200", len(got))
	}
	for i := 0; i < len(got); i += 2 {
		if v := binary.LittleEndian.Uint16(got[i:]); v != 0x0200 {
			t.Fatalf("sample %d = %#x, want 0x0200", i/2, v)
		}
	}
}

func TestSynthesizeStream_OrderPreserved(t *testing.T) {
	// The first sentence's request is slow, the second fast. The output must
	// still arrive in sentence order.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		marker := byte(0x0B)
		if req.Text == "First point." {
			marker = 0x0A
			time.Sleep(100 * time.Millisecond)
		}
		w.Write(buildTestWAV(bytes.Repeat([]byte{marker, 0x00}, 10), 22050, 1))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))

	text := make(chan string, 2)
	sendFragments(text, "First point. Second point.")

	audioCh, err := p.SynthesizeStream(context.Background(), text, voiceWithID("coach"))
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	got := drainAudio(t, audioCh)
	if len(got) != 40 {
		t.Fatalf("audio = %d bytes, want 40", len(got))
	}
	if got[0] != 0x0A {
		t.Errorf("first sentence marker = %#x, want 0x0A", got[0])
	}
	if got[20] != 0x0B {
		t.Errorf("second sentence marker = %#x, want 0x0B", got[20])
	}
}

func TestSynthesizeStream_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)

	text := make(chan string, 1)
	sendFragments(text, "Hello there.")

	audioCh, err := p.SynthesizeStream(context.Background(), text, voiceWithID(""))
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	// The stream stops without emitting audio.
	if got := drainAudio(t, audioCh); len(got) != 0 {
		t.Errorf("audio = %d bytes, want 0 after server error", len(got))
	}
}

func TestSynthesizeStream_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
		w.Write(buildTestWAV([]byte{0x00, 0x00}, 22050, 1))
	}))
	defer srv.Close()
	defer close(release)

	p := mustNew(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	text := make(chan string, 1)
	sendFragments(text, "This will be cancelled.")

	audioCh, err := p.SynthesizeStream(ctx, text, voiceWithID(""))
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	got := drainAudio(t, audioCh)
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("stream took %v to close after cancellation", elapsed)
	}
	if len(got) != 0 {
		t.Errorf("audio = %d bytes, want 0 after cancellation", len(got))
	}
}

func TestSentenceAccumulation(t *testing.T) {
	var mu sync.Mutex
	var received []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		received = append(received, req.Text)
		mu.Unlock()
		w.Write(buildTestWAV([]byte{0x00, 0x00}, 22050, 1))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))

	text := make(chan string, 4)
	sendFragments(text,
		"Your opening landed well. Watch the",
		" filler words in the middle section? Try",
		" a pause instead",
	)

	audioCh, err := p.SynthesizeStream(context.Background(), text, voiceWithID("coach"))
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}
	drainAudio(t, audioCh)

	want := []string{
		"Your opening landed well.",
		"Watch the filler words in the middle section?",
		"Try a pause instead",
	}
	wantSet := make(map[string]bool, len(want))
	for _, s := range want {
		wantSet[s] = true
	}

	// Requests may reach the server out of order due to concurrent dispatch,
	// so compare as a set.
	mu.Lock()
	defer mu.Unlock()
	if len(received) != len(want) {
		t.Fatalf("server received %d sentences %q, want %d", len(received), received, len(want))
	}
	for _, s := range received {
		if !wantSet[s] {
			t.Errorf("unexpected sentence %q", s)
		}
	}
}

// ---- findSentenceBoundary tests ----

func TestFindSentenceBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"period followed by space", "Hello world. Next", 11},
		{"terminator at end", "Hello!", 5},
		{"question followed by space", "Ready? Go", 5},
		{"no boundary", "no terminator here", -1},
		{"decimal number", "rate of 3.14 words", -1},
		{"abbreviation then sentence end", "e.g. something", 3},
		{"empty string", "", -1},
		{"lone terminator", "?", 0},
		{"first of several", "One. Two. Three.", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findSentenceBoundary(tt.input); got != tt.want {
				t.Errorf("findSentenceBoundary(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// ---- ListVoices tests ----

func TestListVoices_XTTS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != studioSpeakersEndpoint {
			t.Errorf("request path = %q, want %q", r.URL.Path, studioSpeakersEndpoint)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Bella": {}, "Aaron": {}, "Clara": {}}`))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))

	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices returned error: %v", err)
	}

	wantIDs := []string{"Aaron", "Bella", "Clara"}
	if len(voices) != len(wantIDs) {
		t.Fatalf("got %d voices, want %d", len(voices), len(wantIDs))
	}
	for i, want := range wantIDs {
		if voices[i].ID != want {
			t.Errorf("voices[%d].ID = %q, want %q (sorted)", i, voices[i].ID, want)
		}
		if voices[i].Provider != "coqui" {
			t.Errorf("voices[%d].Provider = %q, want %q", i, voices[i].Provider, "coqui")
		}
		if voices[i].Metadata["type"] != "studio" {
			t.Errorf("voices[%d] metadata type = %q, want %q", i, voices[i].Metadata["type"], "studio")
		}
	}
}

func TestListVoices_StandardMultiSpeaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != detailsEndpoint {
			t.Errorf("request path = %q, want %q", r.URL.Path, detailsEndpoint)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model_name": "vctk-vits", "language": "en", "speakers": ["p270", "p225"]}`))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)

	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices returned error: %v", err)
	}

	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	if voices[0].ID != "p225" || voices[1].ID != "p270" {
		t.Errorf("voice IDs = [%q %q], want sorted [p225 p270]", voices[0].ID, voices[1].ID)
	}
	if voices[0].Metadata["model_name"] != "vctk-vits" {
		t.Errorf("metadata model_name = %q, want %q", voices[0].Metadata["model_name"], "vctk-vits")
	}
}

func TestListVoices_StandardSingleSpeaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model_name": "ljspeech-glow-tts", "language": "en"}`))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)

	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices returned error: %v", err)
	}

	if len(voices) != 1 {
		t.Fatalf("got %d voices, want 1", len(voices))
	}
	if voices[0].ID != "ljspeech-glow-tts" {
		t.Errorf("voice ID = %q, want model name", voices[0].ID)
	}
	if voices[0].Metadata["type"] != "single-speaker" {
		t.Errorf("metadata type = %q, want %q", voices[0].Metadata["type"], "single-speaker")
	}
}

func TestListVoices_StandardMissingModelName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)

	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices returned error: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "default" {
		t.Errorf("voices = %+v, want single default profile", voices)
	}
}

func TestListVoices_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))

	if _, err := p.ListVoices(context.Background()); err == nil {
		t.Fatal("ListVoices expected error on 503, got nil")
	}
}

// ---- CloneVoice tests ----

func TestCloneVoice(t *testing.T) {
	sampleA := buildTestWAV(bytes.Repeat([]byte{0x11}, 32), 22050, 1)
	sampleB := buildTestWAV(bytes.Repeat([]byte{0x22}, 32), 22050, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != cloneSpeakerEndpoint {
			t.Errorf("request path = %q, want %q", r.URL.Path, cloneSpeakerEndpoint)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
		}
		files := r.MultipartForm.File["wav_files"]
		if len(files) != 2 {
			t.Errorf("got %d wav_files, want 2", len(files))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name": "cloned_coach", "status": "created"}`))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))

	profile, err := p.CloneVoice(context.Background(), [][]byte{sampleA, sampleB})
	if err != nil {
		t.Fatalf("CloneVoice returned error: %v", err)
	}

	if profile.ID != "cloned_coach" {
		t.Errorf("profile.ID = %q, want %q", profile.ID, "cloned_coach")
	}
	if profile.Provider != "coqui" {
		t.Errorf("profile.Provider = %q, want %q", profile.Provider, "coqui")
	}
	if profile.Metadata["type"] != "cloned" {
		t.Errorf("metadata type = %q, want %q", profile.Metadata["type"], "cloned")
	}
}

func TestCloneVoice_StandardModeUnsupported(t *testing.T) {
	p := mustNew(t, "http://localhost:5002")

	if _, err := p.CloneVoice(context.Background(), [][]byte{{0x00}}); err == nil {
		t.Fatal("CloneVoice in standard mode expected error, got nil")
	}
}

func TestCloneVoice_NoSamples(t *testing.T) {
	p := mustNew(t, "http://localhost:8002", WithAPIMode(APIModeXTTS))

	if _, err := p.CloneVoice(context.Background(), nil); err == nil {
		t.Fatal("CloneVoice with no samples expected error, got nil")
	}
}

func TestCloneVoice_MissingName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "created"}`))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))

	if _, err := p.CloneVoice(context.Background(), [][]byte{{0x00}}); err == nil {
		t.Fatal("CloneVoice expected error for response without name, got nil")
	}
}

// ---- parseWAV tests ----

func TestParseWAV(t *testing.T) {
	t.Parallel()

	t.Run("canonical header", func(t *testing.T) {
		wav := buildTestWAV(bytes.Repeat([]byte{0x42}, 100), 22050, 1)
		info, err := parseWAV(wav)
		if err != nil {
			t.Fatalf("parseWAV returned error: %v", err)
		}
		if info.DataOffset != 44 {
			t.Errorf("DataOffset = %d, want 44", info.DataOffset)
		}
		if info.SampleRate != 22050 {
			t.Errorf("SampleRate = %d, want 22050", info.SampleRate)
		}
		if info.Channels != 1 {
			t.Errorf("Channels = %d, want 1", info.Channels)
		}
	})

	t.Run("stereo format", func(t *testing.T) {
		wav := buildTestWAV(bytes.Repeat([]byte{0x00}, 100), 44100, 2)
		info, err := parseWAV(wav)
		if err != nil {
			t.Fatalf("parseWAV returned error: %v", err)
		}
		if info.SampleRate != 44100 || info.Channels != 2 {
			t.Errorf("format = %d Hz %d ch, want 44100 Hz 2 ch", info.SampleRate, info.Channels)
		}
	})

	t.Run("extra chunk before data", func(t *testing.T) {
		// RIFF header, fmt chunk, then a LIST chunk the parser must skip.
		var buf bytes.Buffer
		buf.WriteString("RIFF")
		binary.Write(&buf, binary.LittleEndian, uint32(0))
		buf.WriteString("WAVE")
		buf.WriteString("fmt ")
		binary.Write(&buf, binary.LittleEndian, uint32(16))
		binary.Write(&buf, binary.LittleEndian, uint16(1))
		binary.Write(&buf, binary.LittleEndian, uint16(1))
		binary.Write(&buf, binary.LittleEndian, uint32(22050))
		binary.Write(&buf, binary.LittleEndian, uint32(44100))
		binary.Write(&buf, binary.LittleEndian, uint16(2))
		binary.Write(&buf, binary.LittleEndian, uint16(16))
		buf.WriteString("LIST")
		binary.Write(&buf, binary.LittleEndian, uint32(7)) // odd size exercises padding
		buf.Write([]byte("INFOxyz"))
		buf.WriteByte(0) // pad byte
		buf.WriteString("data")
		binary.Write(&buf, binary.LittleEndian, uint32(4))
		wantOffset := buf.Len()
		buf.Write([]byte{0x01, 0x02, 0x03, 0x04})

		info, err := parseWAV(buf.Bytes())
		if err != nil {
			t.Fatalf("parseWAV returned error: %v", err)
		}
		if info.DataOffset != wantOffset {
			t.Errorf("DataOffset = %d, want %d", info.DataOffset, wantOffset)
		}
		if info.SampleRate != 22050 {
			t.Errorf("SampleRate = %d, want 22050", info.SampleRate)
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, err := parseWAV([]byte("RIFF")); err == nil {
			t.Error("parseWAV expected error for truncated input, got nil")
		}
	})

	t.Run("not RIFF", func(t *testing.T) {
		if _, err := parseWAV([]byte("OGGSxxxxxxxxxxxxxxxx")); err == nil {
			t.Error("parseWAV expected error for non-RIFF input, got nil")
		}
	})

	t.Run("missing data chunk", func(t *testing.T) {
		var buf bytes.Buffer
		buf.WriteString("RIFF")
		binary.Write(&buf, binary.LittleEndian, uint32(0))
		buf.WriteString("WAVE")
		buf.WriteString("fmt ")
		binary.Write(&buf, binary.LittleEndian, uint32(16))
		buf.Write(make([]byte, 16))
		if _, err := parseWAV(buf.Bytes()); err == nil {
			t.Error("parseWAV expected error for missing data chunk, got nil")
		}
	})
}
