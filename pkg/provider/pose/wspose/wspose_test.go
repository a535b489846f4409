package wspose_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/rostrumlabs/rostrum/pkg/provider/pose"
	"github.com/rostrumlabs/rostrum/pkg/provider/pose/wspose"
)

// ---- helpers ----

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startSidecar launches a test WebSocket server standing in for the estimation
// sidecar. The handler receives the accepted connection; the server is closed
// when the test finishes.
func startSidecar(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// sidecarRequest mirrors the client's wire request for server-side decoding.
type sidecarRequest struct {
	Seq   uint64 `json:"seq"`
	Kind  string `json:"kind"`
	Image string `json:"image"`
}

// readRequest reads one text frame and decodes it as a sidecarRequest.
func readRequest(t *testing.T, conn *websocket.Conn) sidecarRequest {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Errorf("readRequest: %v", err)
		return sidecarRequest{}
	}
	var req sidecarRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Errorf("readRequest unmarshal: %v", err)
	}
	return req
}

// writeJSON marshals v and sends it as a text frame.
func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("writeJSON: %v (may be expected on close)", err)
	}
}

// hold blocks until the peer closes the connection.
func hold(conn *websocket.Conn) {
	<-conn.CloseRead(context.Background()).Done()
}

func testFrame() pose.Frame {
	return pose.Frame{
		Seq:       7,
		Timestamp: 3 * time.Second,
		Width:     640,
		Height:    480,
		Data:      []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x13, 0x37},
	}
}

func newSession(t *testing.T, srv *httptest.Server, cfg pose.Config, opts ...wspose.Option) pose.SessionHandle {
	t.Helper()
	p, err := wspose.New(wsURL(srv), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sess, err := p.NewSession(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// ---- constructor ----

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()
	if _, err := wspose.New(""); err == nil {
		t.Error("expected error for empty serverURL")
	}
}

func TestNewSession_DialError(t *testing.T) {
	t.Parallel()
	p, err := wspose.New("ws://127.0.0.1:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := p.NewSession(ctx, pose.Config{}); err == nil {
		t.Error("expected dial error for unreachable sidecar")
	}
}

// ---- connect parameters ----

func TestNewSession_SendsQueryParams(t *testing.T) {
	t.Parallel()

	got := make(chan *http.Request, 1)
	srv := startSidecar(t, func(conn *websocket.Conn, r *http.Request) {
		got <- r
		hold(conn)
	})

	newSession(t, srv, pose.Config{MaxPeople: 2, MinKeypointScore: 0.3}, wspose.WithModel("movenet-thunder"))

	select {
	case r := <-got:
		if r.URL.Path != "/v1/estimate" {
			t.Errorf("path = %q, want /v1/estimate", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("model") != "movenet-thunder" {
			t.Errorf("model = %q, want movenet-thunder", q.Get("model"))
		}
		if q.Get("max_people") != "2" {
			t.Errorf("max_people = %q, want 2", q.Get("max_people"))
		}
		if q.Get("min_keypoint_score") != "0.3" {
			t.Errorf("min_keypoint_score = %q, want 0.3", q.Get("min_keypoint_score"))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for connection")
	}
}

func TestNewSession_OmitsUnsetParams(t *testing.T) {
	t.Parallel()

	got := make(chan *http.Request, 1)
	srv := startSidecar(t, func(conn *websocket.Conn, r *http.Request) {
		got <- r
		hold(conn)
	})

	newSession(t, srv, pose.Config{})

	select {
	case r := <-got:
		q := r.URL.Query()
		for _, key := range []string{"model", "max_people", "min_keypoint_score"} {
			if _, ok := q[key]; ok {
				t.Errorf("query contains %q, want it omitted", key)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for connection")
	}
}

// ---- estimation round trips ----

func TestEstimatePoses_RoundTrip(t *testing.T) {
	t.Parallel()

	frame := testFrame()
	reqCh := make(chan sidecarRequest, 1)

	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		req := readRequest(t, conn)
		reqCh <- req
		// Two people, lower confidence listed first; the client must reorder.
		writeJSON(t, conn, map[string]any{
			"seq": req.Seq,
			"detections": []map[string]any{
				{
					"score": 0.55,
					"keypoints": map[string]any{
						"nose": map[string]any{"x": 10.0, "y": 20.0, "score": 0.8},
					},
				},
				{
					"score": 0.91,
					"keypoints": map[string]any{
						"nose":          map[string]any{"x": 300.0, "y": 120.0, "score": 0.97},
						"left_shoulder": map[string]any{"x": 250.0, "y": 260.0, "score": 0.94},
					},
				},
			},
		})
		hold(conn)
	})

	sess := newSession(t, srv, pose.Config{})
	sets, err := sess.EstimatePoses(context.Background(), frame)
	if err != nil {
		t.Fatalf("EstimatePoses: %v", err)
	}

	req := <-reqCh
	if req.Kind != "pose" {
		t.Errorf("request kind = %q, want pose", req.Kind)
	}
	if req.Seq != 1 {
		t.Errorf("request seq = %d, want 1", req.Seq)
	}
	img, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		t.Fatalf("decode request image: %v", err)
	}
	if string(img) != string(frame.Data) {
		t.Errorf("request image = %v, want %v", img, frame.Data)
	}

	if len(sets) != 2 {
		t.Fatalf("got %d keypoint sets, want 2", len(sets))
	}
	nose, ok := sets[0]["nose"]
	if !ok {
		t.Fatal("first set has no nose keypoint")
	}
	if nose.X != 300 || nose.Y != 120 {
		t.Errorf("first set should be the most confident detection, got nose at (%g, %g)", nose.X, nose.Y)
	}
	if nose.Name != "nose" {
		t.Errorf("keypoint Name = %q, want nose", nose.Name)
	}
	if nose.Score != 0.97 {
		t.Errorf("keypoint Score = %g, want 0.97", nose.Score)
	}
	if _, ok := sets[0]["left_shoulder"]; !ok {
		t.Error("first set missing left_shoulder")
	}
}

func TestEstimateFaces_SendsFaceKind(t *testing.T) {
	t.Parallel()

	reqCh := make(chan sidecarRequest, 1)
	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		req := readRequest(t, conn)
		reqCh <- req
		writeJSON(t, conn, map[string]any{
			"seq": req.Seq,
			"detections": []map[string]any{
				{
					"score": 0.88,
					"keypoints": map[string]any{
						"left_eye_outer": map[string]any{"x": 120.0, "y": 80.0, "score": 0.9},
					},
				},
			},
		})
		hold(conn)
	})

	sess := newSession(t, srv, pose.Config{})
	sets, err := sess.EstimateFaces(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("EstimateFaces: %v", err)
	}

	if req := <-reqCh; req.Kind != "face" {
		t.Errorf("request kind = %q, want face", req.Kind)
	}
	if len(sets) != 1 {
		t.Fatalf("got %d keypoint sets, want 1", len(sets))
	}
	if _, ok := sets[0]["left_eye_outer"]; !ok {
		t.Error("set missing left_eye_outer")
	}
}

func TestEstimate_EmptyDetections(t *testing.T) {
	t.Parallel()

	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		req := readRequest(t, conn)
		writeJSON(t, conn, map[string]any{"seq": req.Seq, "detections": []any{}})
		hold(conn)
	})

	sess := newSession(t, srv, pose.Config{})
	sets, err := sess.EstimatePoses(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("EstimatePoses: %v", err)
	}
	if len(sets) != 0 {
		t.Errorf("got %d keypoint sets, want 0 for an empty frame", len(sets))
	}
}

func TestEstimate_SidecarError(t *testing.T) {
	t.Parallel()

	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		req := readRequest(t, conn)
		writeJSON(t, conn, map[string]any{"seq": req.Seq, "error": "model not loaded"})
		hold(conn)
	})

	sess := newSession(t, srv, pose.Config{})
	_, err := sess.EstimatePoses(context.Background(), testFrame())
	if err == nil {
		t.Fatal("expected error from sidecar")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error = %v, want it to carry the sidecar message", err)
	}
}

func TestEstimate_SkipsStaleResponse(t *testing.T) {
	t.Parallel()

	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		req := readRequest(t, conn)
		// A leftover response from an abandoned request arrives first.
		writeJSON(t, conn, map[string]any{"seq": uint64(99), "error": "stale"})
		writeJSON(t, conn, map[string]any{
			"seq": req.Seq,
			"detections": []map[string]any{
				{"score": 0.9, "keypoints": map[string]any{"nose": map[string]any{"x": 1.0, "y": 2.0, "score": 0.9}}},
			},
		})
		hold(conn)
	})

	sess := newSession(t, srv, pose.Config{})
	sets, err := sess.EstimatePoses(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("EstimatePoses: %v", err)
	}
	if len(sets) != 1 {
		t.Errorf("got %d keypoint sets, want 1 from the matching response", len(sets))
	}
}

// ---- edge cases ----

func TestEstimate_EmptyFrame(t *testing.T) {
	t.Parallel()

	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		hold(conn)
	})

	sess := newSession(t, srv, pose.Config{})
	if _, err := sess.EstimatePoses(context.Background(), pose.Frame{}); err == nil {
		t.Error("expected error for a frame with no data")
	}
}

func TestEstimate_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		readRequest(t, conn)
		// Never respond; the client's context must unblock the call.
		hold(conn)
	})

	sess := newSession(t, srv, pose.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := sess.EstimatePoses(ctx, testFrame())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestEstimate_AfterClose(t *testing.T) {
	t.Parallel()

	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		hold(conn)
	})

	sess := newSession(t, srv, pose.Config{})
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := sess.EstimatePoses(context.Background(), testFrame()); !errors.Is(err, pose.ErrSessionClosed) {
		t.Errorf("error = %v, want pose.ErrSessionClosed", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		hold(conn)
	})

	sess := newSession(t, srv, pose.Config{})
	if err := sess.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestConcurrentEstimates_DoNotRace(t *testing.T) {
	t.Parallel()

	srv := startSidecar(t, func(conn *websocket.Conn, _ *http.Request) {
		ctx := context.Background()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var req sidecarRequest
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			resp, _ := json.Marshal(map[string]any{"seq": req.Seq, "detections": []any{}})
			if err := conn.Write(ctx, websocket.MessageText, resp); err != nil {
				return
			}
		}
	})

	sess := newSession(t, srv, pose.Config{})

	const goroutines = 8
	const callsPerGoroutine = 4

	var wg sync.WaitGroup
	for range goroutines {
		wg.Go(func() {
			for range callsPerGoroutine {
				if _, err := sess.EstimatePoses(context.Background(), testFrame()); err != nil {
					t.Errorf("EstimatePoses: %v", err)
					return
				}
			}
		})
	}
	wg.Wait()
}
