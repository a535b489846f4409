package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/provider/stt"
	sttmock "github.com/rostrumlabs/rostrum/pkg/provider/stt/mock"
)

func TestSTTFallback_PrimarySuccess(t *testing.T) {
	sess := &sttmock.Session{}
	primary := &sttmock.Provider{Session: sess}
	secondary := &sttmock.Provider{}

	f := NewSTTFallback(primary, "deepgram", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	got, err := f.StartSession(context.Background(), stt.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sess {
		t.Error("expected the primary's session")
	}
	if len(secondary.StartSessionCalls) != 0 {
		t.Errorf("fallback should not be tried, got %d calls", len(secondary.StartSessionCalls))
	}
}

func TestSTTFallback_FailoverToSecondary(t *testing.T) {
	sess := &sttmock.Session{}
	primary := &sttmock.Provider{StartSessionErr: errors.New("quota exceeded")}
	secondary := &sttmock.Provider{Session: sess}

	f := NewSTTFallback(primary, "deepgram", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	got, err := f.StartSession(context.Background(), stt.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sess {
		t.Error("expected the fallback's session")
	}
	if len(primary.StartSessionCalls) != 1 {
		t.Errorf("expected primary attempted once, got %d", len(primary.StartSessionCalls))
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	primary := &sttmock.Provider{StartSessionErr: errors.New("down")}
	secondary := &sttmock.Provider{StartSessionErr: errors.New("also down")}

	f := NewSTTFallback(primary, "deepgram", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	_, err := f.StartSession(context.Background(), stt.Config{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &sttmock.Provider{StartSessionErr: errors.New("down")}
	secondary := &sttmock.Provider{}

	f := NewSTTFallback(primary, "deepgram", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  1,
			ResetTimeout: time.Hour,
		},
	})
	f.AddFallback("whisper", secondary)

	// First call trips the primary's breaker and lands on the fallback.
	_, err := f.StartSession(context.Background(), stt.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The primary recovers, but its breaker is still open, so it is skipped.
	primary.StartSessionErr = nil

	_, err = f.StartSession(context.Background(), stt.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(primary.StartSessionCalls) != 1 {
		t.Errorf("expected primary skipped while open, got %d calls", len(primary.StartSessionCalls))
	}
	if len(secondary.StartSessionCalls) != 2 {
		t.Errorf("expected fallback used twice, got %d calls", len(secondary.StartSessionCalls))
	}

	if f.States()["deepgram"] != StateOpen {
		t.Errorf("expected deepgram breaker open, got %v", f.States()["deepgram"])
	}
}
