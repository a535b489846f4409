package audio

import "time"

// AudioFrame represents a single frame of audio data flowing through the pipeline.
// Frames are the atomic unit of audio transport: captured from the speaker's
// microphone stream, segmented into analysis windows, and played back through
// the coach's output sink.
type AudioFrame struct {
	// PCM audio data. Sample rate and channel count are determined by the pipeline config.
	Data []byte

	// SampleRate in Hz (e.g., 48000 for Opus capture, 16000 for STT).
	SampleRate int

	// Channels: 1 for mono (analysis input), 2 for stereo (playback output).
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}
