package pose

import "time"

// Frame is one captured video frame handed to an estimation session.
// The pipeline treats the pixel payload as opaque; only the backend decodes
// it.
type Frame struct {
	// Seq is a monotonically increasing frame counter within the stream.
	Seq uint64

	// Timestamp marks when the frame was captured, relative to stream start.
	Timestamp time.Duration

	// Width and Height are the frame dimensions in pixels. Keypoint
	// coordinates returned for this frame are in this pixel space.
	Width  int
	Height int

	// Data is the encoded frame payload (JPEG from the ingest client).
	Data []byte
}
