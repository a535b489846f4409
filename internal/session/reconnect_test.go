package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// closeCounter is an io.Closer that counts Close calls.
type closeCounter struct {
	closed atomic.Int32
}

func (c *closeCounter) Close() error {
	c.closed.Add(1)
	return nil
}

// scriptedDialer returns closers from a list in call order, repeating the
// last entry once exhausted.
type scriptedDialer struct {
	mu      sync.Mutex
	closers []io.Closer
	calls   int
}

func (d *scriptedDialer) dial(_ context.Context) (io.Closer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.calls
	d.calls++
	if idx < len(d.closers) {
		return d.closers[idx], nil
	}
	return d.closers[len(d.closers)-1], nil
}

// failNTimesDialer fails the first N dials, then succeeds.
type failNTimesDialer struct {
	failTimes int
	conn      io.Closer
	count     *atomic.Int32
}

func (d *failNTimesDialer) dial(_ context.Context) (io.Closer, error) {
	n := d.count.Add(1)
	if int(n) <= d.failTimes {
		return nil, errors.New("dial failed")
	}
	return d.conn, nil
}

func TestReconnector_Connect(t *testing.T) {
	t.Run("successful initial dial", func(t *testing.T) {
		conn := &closeCounter{}
		dialer := &scriptedDialer{closers: []io.Closer{conn}}

		r := NewReconnector(ReconnectorConfig{
			Name: "stt",
			Dial: dialer.dial,
		})

		got, err := r.Connect(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != conn {
			t.Error("expected returned connection to match dialed one")
		}
		if r.Connection() != conn {
			t.Error("expected stored connection to match dialed one")
		}
		if dialer.calls != 1 {
			t.Errorf("expected 1 dial, got %d", dialer.calls)
		}
	})

	t.Run("dial failure", func(t *testing.T) {
		r := NewReconnector(ReconnectorConfig{
			Name: "stt",
			Dial: func(context.Context) (io.Closer, error) {
				return nil, errors.New("auth failed")
			},
		})

		_, err := r.Connect(context.Background())
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if r.Connection() != nil {
			t.Error("expected nil connection after failure")
		}
	})
}

func TestReconnector_Defaults(t *testing.T) {
	r := NewReconnector(ReconnectorConfig{
		Name: "pose",
		Dial: func(context.Context) (io.Closer, error) { return &closeCounter{}, nil },
	})

	if r.maxRetries != 10 {
		t.Errorf("expected default maxRetries=10, got %d", r.maxRetries)
	}
	if r.backoff != 1*time.Second {
		t.Errorf("expected default backoff=1s, got %v", r.backoff)
	}
	if r.maxBackoff != 30*time.Second {
		t.Errorf("expected default maxBackoff=30s, got %v", r.maxBackoff)
	}
}

func TestReconnector_ReconnectOnDisconnect(t *testing.T) {
	conn1 := &closeCounter{}
	conn2 := &closeCounter{}

	var reconnected atomic.Pointer[io.Closer]

	dialer := &scriptedDialer{closers: []io.Closer{conn1, conn2}}

	r := NewReconnector(ReconnectorConfig{
		Name:       "stt",
		Dial:       dialer.dial,
		MaxRetries: 3,
		Backoff:    1 * time.Millisecond,
		MaxBackoff: 10 * time.Millisecond,
		OnReconnect: func(c io.Closer) {
			reconnected.Store(&c)
		},
	})

	// Initial dial.
	_, err := r.Connect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := t.Context()

	r.Monitor(ctx)

	// Simulate disconnect.
	r.NotifyDisconnect()

	// Wait for the redial.
	time.Sleep(50 * time.Millisecond)

	gotPtr := reconnected.Load()
	if gotPtr == nil {
		t.Fatal("expected OnReconnect to be called")
	}
	if *gotPtr != conn2 {
		t.Error("expected OnReconnect to be called with the new connection")
	}

	// The dropped connection is closed to release its resources.
	if conn1.closed.Load() != 1 {
		t.Errorf("expected old connection closed once, got %d", conn1.closed.Load())
	}

	_ = r.Stop()
}

func TestReconnector_ExponentialBackoff(t *testing.T) {
	var dialCount atomic.Int32

	dialer := &failNTimesDialer{
		failTimes: 3,
		conn:      &closeCounter{},
		count:     &dialCount,
	}

	var reconnected atomic.Bool

	r := NewReconnector(ReconnectorConfig{
		Name:       "stt",
		Dial:       dialer.dial,
		MaxRetries: 5,
		Backoff:    1 * time.Millisecond,
		MaxBackoff: 10 * time.Millisecond,
		OnReconnect: func(io.Closer) {
			reconnected.Store(true)
		},
	})

	// Set the initial connection directly.
	r.mu.Lock()
	r.conn = &closeCounter{}
	r.mu.Unlock()

	ctx := t.Context()

	r.Monitor(ctx)
	r.NotifyDisconnect()

	// Wait for the retries to complete.
	time.Sleep(200 * time.Millisecond)

	if !reconnected.Load() {
		t.Error("expected successful reconnection after failures")
	}

	attempts := dialCount.Load()
	// Should have had 3 failures + 1 success = 4 total attempts.
	if attempts < 4 {
		t.Errorf("expected at least 4 dial attempts, got %d", attempts)
	}

	_ = r.Stop()
}

func TestReconnector_MaxRetriesExhausted(t *testing.T) {
	var dialAttempts atomic.Int32

	var reconnected atomic.Bool
	r := NewReconnector(ReconnectorConfig{
		Name: "pose",
		Dial: func(context.Context) (io.Closer, error) {
			dialAttempts.Add(1)
			return nil, errors.New("permanently down")
		},
		MaxRetries: 2,
		Backoff:    1 * time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
		OnReconnect: func(io.Closer) {
			reconnected.Store(true)
		},
	})

	r.mu.Lock()
	r.conn = &closeCounter{}
	r.mu.Unlock()

	ctx := t.Context()

	r.Monitor(ctx)
	r.NotifyDisconnect()

	// Wait for the retries to exhaust.
	time.Sleep(100 * time.Millisecond)

	if reconnected.Load() {
		t.Error("expected OnReconnect NOT to be called when all retries fail")
	}

	if got := dialAttempts.Load(); got != 2 {
		t.Errorf("expected 2 dial attempts, got %d", got)
	}

	_ = r.Stop()
}

func TestReconnector_Stop(t *testing.T) {
	conn := &closeCounter{}

	r := NewReconnector(ReconnectorConfig{
		Name: "stt",
		Dial: func(context.Context) (io.Closer, error) { return conn, nil },
	})

	_, _ = r.Connect(context.Background())

	err := r.Stop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Connection() != nil {
		t.Error("expected nil connection after Stop")
	}

	if conn.closed.Load() != 1 {
		t.Errorf("expected 1 Close call, got %d", conn.closed.Load())
	}

	// Double stop should not panic.
	err = r.Stop()
	if err != nil {
		t.Fatalf("unexpected error on double Stop: %v", err)
	}
}

func TestReconnector_NotifyDisconnectNonBlocking(t *testing.T) {
	r := NewReconnector(ReconnectorConfig{
		Name: "stt",
		Dial: func(context.Context) (io.Closer, error) { return &closeCounter{}, nil },
	})

	// Multiple calls should not block.
	r.NotifyDisconnect()
	r.NotifyDisconnect()
	r.NotifyDisconnect()
}
