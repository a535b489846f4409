package ingest

import (
	"fmt"

	"layeh.com/gopus"
)

// Capture clients send 20 ms Opus frames; the frame size in samples per
// channel follows from the negotiated sample rate.
const opusFrameMs = 20

// opusDecoder wraps a gopus decoder for the capture client's audio stream.
// A single decoder instance maintains state across consecutive frames and
// must only be fed one client's packets.
type opusDecoder struct {
	dec       *gopus.Decoder
	frameSize int
}

// newOpusDecoder creates a decoder for the negotiated audio format.
func newOpusDecoder(sampleRate, channels int) (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("ingest: create opus decoder: %w", err)
	}
	return &opusDecoder{
		dec:       dec,
		frameSize: sampleRate * opusFrameMs / 1000,
	}, nil
}

// decode decodes one Opus packet into interleaved little-endian int16 PCM.
func (d *opusDecoder) decode(pkt []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(pkt, d.frameSize, false)
	if err != nil {
		return nil, fmt.Errorf("ingest: opus decode: %w", err)
	}
	return int16sToBytes(pcm), nil
}

// opusEncoder wraps a gopus encoder for the coach speech return leg.
type opusEncoder struct {
	enc       *gopus.Encoder
	frameSize int
	channels  int
}

// newOpusEncoder creates an encoder for the negotiated audio format.
func newOpusEncoder(sampleRate, channels int) (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("ingest: create opus encoder: %w", err)
	}
	return &opusEncoder{
		enc:       enc,
		frameSize: sampleRate * opusFrameMs / 1000,
		channels:  channels,
	}, nil
}

// frameBytes is the exact PCM input size for one Opus frame.
func (e *opusEncoder) frameBytes() int {
	return e.frameSize * e.channels * 2
}

// encode encodes exactly one frame of interleaved little-endian int16 PCM
// into an Opus packet. len(pcmBytes) must equal frameBytes.
func (e *opusEncoder) encode(pcmBytes []byte) ([]byte, error) {
	pkt, err := e.enc.Encode(bytesToInt16s(pcmBytes), e.frameSize, len(pcmBytes))
	if err != nil {
		return nil, fmt.Errorf("ingest: opus encode: %w", err)
	}
	return pkt, nil
}

// int16sToBytes converts int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// bytesToInt16s converts little-endian bytes to int16 PCM samples.
func bytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
