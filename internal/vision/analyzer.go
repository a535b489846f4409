// Package vision implements the streaming vision analyzer: it consumes video
// frames, obtains body and face keypoint sets from an external estimation
// session, scores them with geometric heuristics, and publishes exponentially
// smoothed posture, gesture, eye-contact, emotion, engagement and
// body-presence snapshots.
//
// The analyzer is passive: the session's vision loop calls HandleFrame for
// every captured frame, and the analyzer decides internally whether the frame
// is processed (fixed sampling interval, overlap guard) or dropped. Frames
// are never queued.
package vision

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/provider/pose"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// DefaultInterval is the minimum spacing between processed frames. Frames
// arriving faster are dropped to bound estimation cost, regardless of the
// capture frame rate.
const DefaultInterval = 100 * time.Millisecond

// DefaultAlpha is the exponential smoothing factor applied to every published
// dimension.
const DefaultAlpha = 0.3

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithInterval sets the frame sampling interval.
func WithInterval(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithAlpha sets the smoothing factor in (0, 1].
func WithAlpha(alpha float64) Option {
	return func(a *Analyzer) {
		if alpha > 0 && alpha <= 1 {
			a.alpha = alpha
		}
	}
}

// WithScorer replaces the default geometry scorer.
func WithScorer(s *Scorer) Option {
	return func(a *Analyzer) {
		a.scorer = s
	}
}

// WithOnUpdate registers the snapshot publication callback. The callback
// receives a value copy after every processed frame and must not block.
func WithOnUpdate(fn func(types.VisionMetrics)) Option {
	return func(a *Analyzer) {
		a.onUpdate = fn
	}
}

// WithOnError registers the estimation error callback.
func WithOnError(fn func(error)) Option {
	return func(a *Analyzer) {
		a.onError = fn
	}
}

// Stats counts the analyzer's frame handling for diagnostics.
type Stats struct {
	Processed uint64
	Dropped   uint64
}

// Analyzer is the streaming vision analyzer. One instance is created per
// coaching session and discarded on session end. HandleFrame must be called
// from a single goroutine; Snapshot and FrameStats may be called from any.
type Analyzer struct {
	session  pose.SessionHandle
	scorer   *Scorer
	interval time.Duration
	alpha    float64

	onUpdate func(types.VisionMetrics)
	onError  func(error)

	busy atomic.Bool

	processed atomic.Uint64
	dropped   atomic.Uint64

	mu            sync.RWMutex
	metrics       types.VisionMetrics
	lastProcessed time.Duration
	hasProcessed  bool
}

// New creates an Analyzer reading keypoints from the given estimation
// session. The session is owned by the caller and must outlive the analyzer.
func New(session pose.SessionHandle, opts ...Option) *Analyzer {
	a := &Analyzer{
		session:  session,
		scorer:   NewScorer(),
		interval: DefaultInterval,
		alpha:    DefaultAlpha,
		onUpdate: func(types.VisionMetrics) {},
		onError:  func(error) {},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// HandleFrame runs one vision tick for the frame: throttle check, keypoint
// estimation, geometric scoring, smoothing, publication. Frames inside the
// sampling interval or arriving while a previous estimation is still in
// flight are dropped. Estimation errors go to the error callback and the
// loop simply resumes with the next frame.
func (a *Analyzer) HandleFrame(ctx context.Context, frame pose.Frame) {
	a.mu.RLock()
	tooSoon := a.hasProcessed && frame.Timestamp-a.lastProcessed < a.interval
	a.mu.RUnlock()
	if tooSoon {
		a.dropped.Add(1)
		return
	}

	// Overlap guard: a frame arriving while estimation for a previous frame
	// is still awaited is dropped, never queued.
	if !a.busy.CompareAndSwap(false, true) {
		a.dropped.Add(1)
		return
	}
	defer a.busy.Store(false)

	poses, err := a.session.EstimatePoses(ctx, frame)
	if err != nil {
		a.onError(err)
		return
	}
	faces, err := a.session.EstimateFaces(ctx, frame)
	if err != nil {
		a.onError(err)
		return
	}

	a.mu.Lock()
	a.lastProcessed = frame.Timestamp
	a.hasProcessed = true
	a.mu.Unlock()

	a.process(poses, faces)
	a.processed.Add(1)
}

// process scores the first detected person/face and folds the results into
// the smoothed snapshot set. Missing detections yield zero scores for the
// affected modality so the displayed values decay instead of going stale.
func (a *Analyzer) process(poses, faces []types.KeypointSet) {
	var (
		posture, gestures, presence DimensionScore
		eye, emotion                DimensionScore
		mood                        types.Emotion
		notes                       []string
	)

	if len(poses) > 0 {
		body := poses[0]
		posture = a.scorer.Posture(body)
		if posture.Incomplete {
			notes = append(notes, NoteIncompletePose)
		}
		gestures = a.scorer.Gestures(body)
		presence = a.scorer.BodyPresence(body, posture)
	}
	if len(faces) > 0 {
		face := faces[0]
		eye = a.scorer.EyeContact(face)
		mood, emotion = a.scorer.Emotion(face)
	}

	engagement := DimensionScore{
		Score:      (gestures.Score + eye.Score) / 2,
		Confidence: (gestures.Confidence + eye.Confidence) / 2,
	}

	now := time.Now().UnixMilli()

	a.mu.Lock()
	a.metrics.Posture.Smooth(posture.Score, posture.Confidence, a.alpha, now)
	a.metrics.Gestures.Smooth(gestures.Score, gestures.Confidence, a.alpha, now)
	a.metrics.EyeContact.Smooth(eye.Score, eye.Confidence, a.alpha, now)
	a.metrics.Emotion.Smooth(emotion.Score, emotion.Confidence, a.alpha, now)
	a.metrics.Engagement.Smooth(engagement.Score, engagement.Confidence, a.alpha, now)
	a.metrics.BodyPresence.Smooth(presence.Score, presence.Confidence, a.alpha, now)
	a.metrics.Mood = mood
	a.metrics.Notes = notes
	out := a.snapshotLocked()
	a.mu.Unlock()

	a.onUpdate(out)
}

// Snapshot returns a value copy of the current smoothed metrics.
func (a *Analyzer) Snapshot() types.VisionMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

func (a *Analyzer) snapshotLocked() types.VisionMetrics {
	out := a.metrics
	out.Notes = append([]string(nil), a.metrics.Notes...)
	return out
}

// FrameStats returns processed/dropped frame counts for diagnostics.
func (a *Analyzer) FrameStats() Stats {
	return Stats{
		Processed: a.processed.Load(),
		Dropped:   a.dropped.Load(),
	}
}
