// Package pose defines the Estimator interface for body-pose and face-landmark
// estimation backends.
//
// An estimator wraps a pretrained landmark model (MoveNet, BlazePose,
// MediaPipe face mesh, or similar) running out of process and surfaces it as
// a per-session RPC: the caller submits one video frame and receives the
// keypoint sets detected in it. Model loading, GPU scheduling, and frame
// decoding all live behind this interface; the analysis pipeline only ever
// sees named keypoints.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle may be called from one goroutine at a time unless
// the implementation documents otherwise.
package pose

import (
	"context"
	"errors"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

// ErrSessionClosed is returned by estimation calls after Close. Backends wrap
// it with their own prefix; match with errors.Is.
var ErrSessionClosed = errors.New("pose: session is closed")

// Config holds the parameters for an estimation session.
type Config struct {
	// MaxPeople caps how many keypoint sets a single frame may return.
	// The analysis pipeline scores the first (most confident) person;
	// values above 1 only matter for diagnostic consumers. Default 1.
	MaxPeople int

	// MinKeypointScore is the confidence floor below which the backend may
	// omit a keypoint entirely. Range [0, 1]. Default 0 (return everything,
	// let the scorer apply its own threshold).
	MinKeypointScore float64
}

// SessionHandle is an active estimation session for a single video stream.
//
// Both estimation calls are synchronous RPCs: they block until the backend
// has processed the frame or ctx is done. Implementations must return
// detections ordered most confident first.
type SessionHandle interface {
	// EstimatePoses returns one body KeypointSet per person detected in the
	// frame, using the 17-point COCO naming convention. An empty slice (not
	// an error) means no person was found.
	EstimatePoses(ctx context.Context, frame Frame) ([]types.KeypointSet, error)

	// EstimateFaces returns one face KeypointSet per face detected in the
	// frame, using the reduced face-landmark names in pkg/types. An empty
	// slice means no face was found.
	EstimateFaces(ctx context.Context, frame Frame) ([]types.KeypointSet, error)

	// Close releases the session's resources. Calling Close more than once
	// is safe and returns nil.
	Close() error
}

// Provider is the factory for estimation sessions, implemented by each
// landmark backend.
type Provider interface {
	// NewSession opens an estimation session. The session is immediately
	// ready to accept frames.
	NewSession(ctx context.Context, cfg Config) (SessionHandle, error)
}
