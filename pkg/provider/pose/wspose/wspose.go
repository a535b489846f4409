// Package wspose provides a pose.Provider backed by a landmark-estimation
// sidecar reached over WebSocket.
//
// The sidecar owns the model runtime (MoveNet, BlazePose, a face mesh) and its
// GPU; this client only moves frames and keypoints. One socket is opened per
// session. Each estimation call sends a single JSON message carrying the
// base64-encoded JPEG frame and a request sequence number, then waits for the
// response echoing that number. The response stream carries no other
// correlation, so exactly one request may be in flight per session; calls are
// serialized internally.
//
// Session parameters (model variant, person cap, keypoint score floor) are
// fixed at connect time via query parameters.
package wspose

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/rostrumlabs/rostrum/pkg/provider/pose"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

const estimatePath = "/v1/estimate"

const (
	kindPose = "pose"
	kindFace = "face"
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel selects the model variant the sidecar should run for this client
// (e.g., "movenet-lightning", "movenet-thunder"). Empty leaves the sidecar's
// default in place.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// Provider implements pose.Provider against a WebSocket estimation sidecar.
type Provider struct {
	serverURL string
	model     string
}

var _ pose.Provider = (*Provider)(nil)

// New creates a Provider for the sidecar at serverURL (e.g.,
// "ws://localhost:9090"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("wspose: serverURL must not be empty")
	}
	p := &Provider{serverURL: serverURL}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// NewSession dials the sidecar and returns a ready session. Invalid session
// parameters surface on the first estimation call; the sidecar accepts the
// socket before it validates them.
func (p *Provider) NewSession(ctx context.Context, cfg pose.Config) (pose.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("wspose: build URL: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("wspose: dial: %w", err)
	}

	// The session lives within ctx; the derived cancel lets Close unblock the
	// read loop even when the sidecar never closes its side.
	readCtx, readCancel := context.WithCancel(ctx)

	sess := &session{
		conn:       conn,
		results:    make(chan estimateResponse, 16),
		done:       make(chan struct{}),
		readCancel: readCancel,
	}

	sess.wg.Add(1)
	go sess.readLoop(readCtx)

	return sess, nil
}

// buildURL constructs the sidecar endpoint URL for the given config.
func (p *Provider) buildURL(cfg pose.Config) (string, error) {
	u, err := url.Parse(p.serverURL)
	if err != nil {
		return "", err
	}
	u.Path = estimatePath

	q := u.Query()
	if p.model != "" {
		q.Set("model", p.model)
	}
	if cfg.MaxPeople > 0 {
		q.Set("max_people", strconv.Itoa(cfg.MaxPeople))
	}
	if cfg.MinKeypointScore > 0 {
		q.Set("min_keypoint_score", strconv.FormatFloat(cfg.MinKeypointScore, 'g', -1, 64))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// estimateRequest is one frame submitted to the sidecar.
type estimateRequest struct {
	Seq   uint64 `json:"seq"`
	Kind  string `json:"kind"`
	Image string `json:"image"`
}

// wireKeypoint is a single landmark in the sidecar's response.
type wireKeypoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// wireDetection is one detected person or face.
type wireDetection struct {
	Score     float64                 `json:"score"`
	Keypoints map[string]wireKeypoint `json:"keypoints"`
}

// estimateResponse is the sidecar's answer to one estimateRequest.
type estimateResponse struct {
	Seq        uint64          `json:"seq"`
	Error      string          `json:"error,omitempty"`
	Detections []wireDetection `json:"detections"`
}

// session is a live sidecar connection. It implements pose.SessionHandle.
type session struct {
	conn       *websocket.Conn
	results    chan estimateResponse
	readCancel context.CancelFunc

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	// mu serializes estimation calls; seq counts requests under it. With one
	// request in flight, a mismatched echo can only be a leftover from an
	// abandoned call and is skipped.
	mu  sync.Mutex
	seq uint64
}

var _ pose.SessionHandle = (*session)(nil)

// EstimatePoses submits the frame for body-keypoint estimation.
func (s *session) EstimatePoses(ctx context.Context, frame pose.Frame) ([]types.KeypointSet, error) {
	return s.estimate(ctx, kindPose, frame)
}

// EstimateFaces submits the frame for face-landmark estimation.
func (s *session) EstimateFaces(ctx context.Context, frame pose.Frame) ([]types.KeypointSet, error) {
	return s.estimate(ctx, kindFace, frame)
}

func (s *session) estimate(ctx context.Context, kind string, frame pose.Frame) ([]types.KeypointSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return nil, fmt.Errorf("wspose: %w", pose.ErrSessionClosed)
	default:
	}
	if len(frame.Data) == 0 {
		return nil, errors.New("wspose: frame has no data")
	}

	s.seq++
	payload, err := json.Marshal(estimateRequest{
		Seq:   s.seq,
		Kind:  kind,
		Image: base64.StdEncoding.EncodeToString(frame.Data),
	})
	if err != nil {
		return nil, fmt.Errorf("wspose: encode request: %w", err)
	}
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return nil, fmt.Errorf("wspose: send frame: %w", err)
	}

	for {
		select {
		case resp, ok := <-s.results:
			if !ok {
				return nil, errors.New("wspose: connection closed while awaiting detections")
			}
			if resp.Seq != s.seq {
				// Echo of a request abandoned by an earlier cancelled call.
				continue
			}
			if resp.Error != "" {
				return nil, fmt.Errorf("wspose: sidecar: %s", resp.Error)
			}
			return toKeypointSets(resp.Detections), nil
		case <-ctx.Done():
			return nil, fmt.Errorf("wspose: await detections: %w", ctx.Err())
		case <-s.done:
			return nil, fmt.Errorf("wspose: %w", pose.ErrSessionClosed)
		}
	}
}

// Close terminates the session cleanly.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.readCancel()
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// readLoop receives JSON messages from the sidecar and routes them to the
// waiting estimation call.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation; exit gracefully.
			return
		}

		var resp estimateResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}

		select {
		case s.results <- resp:
		case <-s.done:
		}
	}
}

// toKeypointSets converts wire detections into the pipeline's keypoint sets,
// most confident detection first.
func toKeypointSets(detections []wireDetection) []types.KeypointSet {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})

	sets := make([]types.KeypointSet, 0, len(detections))
	for _, det := range detections {
		set := make(types.KeypointSet, len(det.Keypoints))
		for name, kp := range det.Keypoints {
			set[name] = types.Keypoint{Name: name, X: kp.X, Y: kp.Y, Score: kp.Score}
		}
		sets = append(sets, set)
	}
	return sets
}
