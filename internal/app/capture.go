package app

import (
	"context"
	"encoding/binary"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rostrumlabs/rostrum/internal/command"
	"github.com/rostrumlabs/rostrum/internal/flow"
	"github.com/rostrumlabs/rostrum/internal/observe"
	"github.com/rostrumlabs/rostrum/internal/session"
	"github.com/rostrumlabs/rostrum/internal/transcript"
	"github.com/rostrumlabs/rostrum/internal/vision"
	"github.com/rostrumlabs/rostrum/internal/voice"
	"github.com/rostrumlabs/rostrum/pkg/audio"
	audiomixer "github.com/rostrumlabs/rostrum/pkg/audio/mixer"
	"github.com/rostrumlabs/rostrum/pkg/memory"
	"github.com/rostrumlabs/rostrum/pkg/provider/stt"
	"github.com/rostrumlabs/rostrum/pkg/provider/vad"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

const (
	// vadFrameMs is the detector frame size cut from the capture stream.
	vadFrameMs = 20

	// analysisWindowMs is the span of one voice analysis window.
	analysisWindowMs = 100

	// minUtteranceMs drops segments too short to transcribe meaningfully
	// (lip smacks, chair squeaks that fooled the detector).
	minUtteranceMs = 300

	// maxUtteranceSec force-flushes marathon monologues so the coach gets
	// a word in and the buffer stays bounded.
	maxUtteranceSec = 30

	// utteranceQueueLen bounds utterances waiting for transcription.
	// Overflow drops the oldest speech first.
	utteranceQueueLen = 4
)

// capturePipelineConfig carries the per-session pieces the capture loops
// feed. Vision, VAD, STT, and Commands may be nil; the affected branch is
// skipped.
type capturePipelineConfig struct {
	Client CaptureClient
	Format audio.Format

	Voice  *voice.Analyzer
	Vision *vision.Analyzer
	VAD    vad.SessionHandle
	STT    stt.Session
	Flow   *flow.Manager
	Mixer  *audiomixer.PriorityMixer

	Buffer  *transcript.Buffer
	Log     *session.TranscriptLog
	Fillers *transcript.Detector
	Stats   *observe.PipelineStats

	// Commands intercepts control phrases on STT finals; Controls is the
	// session surface they act on.
	Commands *command.Filter
	Controls command.Controls

	SpeakerID   string
	SpeakerName string

	// Workers tracks the pipeline's goroutines; session stop waits on it.
	Workers *sync.WaitGroup
}

// capturePipeline owns the per-session media loops. Microphone frames are
// downmixed once, then fan out three ways: exact 20 ms frames into the VAD,
// 100 ms windows into the voice analyzer, and VAD-gated utterance windows
// into transcription. Camera frames go straight to the vision analyzer.
//
// All loop state is owned by the audio goroutine; only the utterance channel
// crosses into the transcription worker.
type capturePipeline struct {
	client CaptureClient
	format audio.Format

	voice    *voice.Analyzer
	vision   *vision.Analyzer
	vad      vad.SessionHandle
	stt      stt.Session
	flow     *flow.Manager
	mixer    *audiomixer.PriorityMixer
	buffer   *transcript.Buffer
	translog *session.TranscriptLog
	fillers  *transcript.Detector
	stats    *observe.PipelineStats
	commands *command.Filter
	controls command.Controls
	workers  *sync.WaitGroup

	speakerID   string
	speakerName string

	window        []float32
	windowStart   time.Duration
	windowSamples int

	vadPending    []byte
	vadFrameBytes int

	inSpeech        bool
	utterance       []float32
	utteranceStart  time.Duration
	minUtterSamples int
	maxUtterSamples int

	utterCh chan types.AudioWindow
}

func newCapturePipeline(cfg capturePipelineConfig) *capturePipeline {
	rate := cfg.Format.SampleRate
	if rate <= 0 {
		rate = 48000
	}
	return &capturePipeline{
		client:          cfg.Client,
		format:          audio.Format{SampleRate: rate, Channels: cfg.Format.Channels},
		voice:           cfg.Voice,
		vision:          cfg.Vision,
		vad:             cfg.VAD,
		stt:             cfg.STT,
		flow:            cfg.Flow,
		mixer:           cfg.Mixer,
		buffer:          cfg.Buffer,
		translog:        cfg.Log,
		fillers:         cfg.Fillers,
		stats:           cfg.Stats,
		commands:        cfg.Commands,
		controls:        cfg.Controls,
		workers:         cfg.Workers,
		speakerID:       cfg.SpeakerID,
		speakerName:     cfg.SpeakerName,
		windowSamples:   rate * analysisWindowMs / 1000,
		vadFrameBytes:   rate * vadFrameMs / 1000 * 2,
		minUtterSamples: rate * minUtteranceMs / 1000,
		maxUtterSamples: rate * maxUtteranceSec,
		utterCh:         make(chan types.AudioWindow, utteranceQueueLen),
	}
}

// runAudio consumes microphone frames until the context is cancelled or the
// stream closes. Runs on its own goroutine.
func (cp *capturePipeline) runAudio(ctx context.Context) {
	if cp.stt != nil {
		cp.workers.Add(1)
		go func() {
			defer cp.workers.Done()
			cp.runUtterances(ctx)
		}()
	}

	frames := cp.client.Source().Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			cp.handleFrame(frame)
		}
	}
}

func (cp *capturePipeline) handleFrame(frame audio.AudioFrame) {
	mono := downmixPCM(frame.Data, frame.Channels)
	if len(mono) < 2 {
		return
	}
	samples := pcmSamples(mono)

	if cp.vad != nil {
		cp.detectSpeech(frame.Timestamp, mono)
	}
	if cp.inSpeech {
		cp.utterance = append(cp.utterance, samples...)
		if len(cp.utterance) >= cp.maxUtterSamples {
			cp.sendUtterance(frame.Timestamp)
		}
	}
	cp.accumulate(frame.Timestamp, samples)
}

// detectSpeech cuts the mono stream into the exact frame size the VAD
// session was opened with and reacts to segment boundaries.
func (cp *capturePipeline) detectSpeech(ts time.Duration, mono []byte) {
	cp.vadPending = append(cp.vadPending, mono...)
	for len(cp.vadPending) >= cp.vadFrameBytes {
		chunk := cp.vadPending[:cp.vadFrameBytes]
		cp.vadPending = cp.vadPending[cp.vadFrameBytes:]

		event, err := cp.vad.ProcessFrame(chunk)
		if err != nil {
			slog.Debug("vad frame rejected", "error", err)
			continue
		}
		switch event.Type {
		case vad.VADSpeechStart:
			// The presenter talking over the coach cancels playback.
			cp.mixer.BargeIn()
			cp.inSpeech = true
			cp.utterance = cp.utterance[:0]
			cp.utteranceStart = ts
		case vad.VADSpeechEnd:
			cp.inSpeech = false
			cp.sendUtterance(ts)
		}
	}
}

// sendUtterance hands the accumulated segment to the transcription worker.
// Segments below the minimum length are discarded.
func (cp *capturePipeline) sendUtterance(end time.Duration) {
	if len(cp.utterance) < cp.minUtterSamples || cp.stt == nil {
		cp.utterance = cp.utterance[:0]
		return
	}

	win := types.AudioWindow{
		Samples:    append([]float32(nil), cp.utterance...),
		SampleRate: cp.format.SampleRate,
		Timestamp:  cp.utteranceStart,
	}
	cp.utterance = cp.utterance[:0]
	cp.utteranceStart = end

	select {
	case cp.utterCh <- win:
	default:
		slog.Debug("transcription backlog full, dropping utterance",
			"duration", win.Duration())
	}
}

// accumulate grows the analysis window and emits it to the voice analyzer
// every 100 ms. ProcessWindow is called from this goroutine only, per the
// analyzer's contract.
func (cp *capturePipeline) accumulate(ts time.Duration, samples []float32) {
	if len(cp.window) == 0 {
		cp.windowStart = ts
	}
	cp.window = append(cp.window, samples...)

	for len(cp.window) >= cp.windowSamples {
		win := types.AudioWindow{
			Samples:    append([]float32(nil), cp.window[:cp.windowSamples]...),
			SampleRate: cp.format.SampleRate,
			Timestamp:  cp.windowStart,
		}
		cp.window = cp.window[cp.windowSamples:]
		cp.windowStart += analysisWindowMs * time.Millisecond
		cp.voice.ProcessWindow(win)
	}
}

// runUtterances serializes transcription: provider sessions expect windows
// submitted one at a time.
func (cp *capturePipeline) runUtterances(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case win := <-cp.utterCh:
			cp.handleUtterance(ctx, win)
		}
	}
}

func (cp *capturePipeline) handleUtterance(ctx context.Context, win types.AudioWindow) {
	start := time.Now()
	result, err := cp.stt.Transcribe(ctx, win)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("transcription failed", "error", err)
		cp.stats.IncrErrors()
		return
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		// Silence or non-speech, per the provider contract.
		return
	}
	cp.stats.RecordCapture(time.Since(start))

	// Control phrases steer the session; they never reach the transcript
	// or the coaching cycle.
	if cp.commands != nil {
		handled, err := cp.commands.Check(ctx, text, cp.controls)
		if err != nil {
			cp.stats.IncrErrors()
		}
		if handled {
			return
		}
	}

	fs := cp.fillers.Analyze(text)
	cp.buffer.Add(transcript.Entry{
		Text:       text,
		Confidence: result.Confidence,
	})
	cp.translog.Append(memory.TranscriptEntry{
		SpeakerID:   cp.speakerID,
		SpeakerName: cp.speakerName,
		Text:        text,
		RawText:     result.Text,
		FillerCount: fs.FillerWords,
		Timestamp:   time.Now().UTC(),
		Duration:    win.Duration(),
	})

	// Runs the full analyze, respond, deliver cycle synchronously. The flow
	// manager drops the input when a cycle is already in flight.
	cp.flow.HandleUserInput(ctx, text)
}

// runVision feeds camera frames to the vision analyzer until the context is
// cancelled or the stream closes. Runs on its own goroutine.
func (cp *capturePipeline) runVision(ctx context.Context) {
	frames := cp.client.VideoFrames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			cp.vision.HandleFrame(ctx, frame)
		}
	}
}

// downmixPCM converts little-endian int16 PCM to mono by averaging the
// channels. Mono input passes through; a trailing partial sample is dropped.
func downmixPCM(data []byte, channels int) []byte {
	if channels <= 1 {
		return data[:len(data)&^1]
	}

	frameBytes := channels * 2
	frames := len(data) / frameBytes
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			off := i*frameBytes + ch*2
			sum += int(int16(binary.LittleEndian.Uint16(data[off:])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/channels)))
	}
	return out
}

// pcmSamples converts mono little-endian int16 PCM to [-1, 1) samples.
func pcmSamples(mono []byte) []float32 {
	out := make([]float32, len(mono)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(mono[i*2:]))) / 32768
	}
	return out
}
