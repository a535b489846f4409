package observe

import (
	"testing"
	"time"
)

func TestNewPipelineStats_DefaultWindowSize(t *testing.T) {
	t.Parallel()

	ps := NewPipelineStats(0)
	// Should use default window size (100), not panic.
	ps.RecordCapture(10 * time.Millisecond)

	snap := ps.Snapshot()
	if snap.Capture.P50 != 10*time.Millisecond {
		t.Errorf("Capture P50 = %v, want 10ms", snap.Capture.P50)
	}
}

func TestPipelineStats_RecordAndSnapshot(t *testing.T) {
	t.Parallel()

	ps := NewPipelineStats(100)

	// Record samples.
	for i := 1; i <= 100; i++ {
		ps.RecordCapture(time.Duration(i) * time.Millisecond)
	}
	ps.RecordAnalysis(50 * time.Millisecond)
	ps.RecordResponse(500 * time.Millisecond)
	ps.RecordEndToEnd(1000 * time.Millisecond)

	ps.IncrResponses()
	ps.IncrResponses()
	ps.IncrResponses()
	ps.IncrErrors()

	snap := ps.Snapshot()

	if snap.Responses != 3 {
		t.Errorf("Responses = %d, want 3", snap.Responses)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}

	// Capture: 100 samples from 1ms to 100ms.
	// P50 should be around 50ms, P95 around 95ms.
	if snap.Capture.P50 != 50*time.Millisecond {
		t.Errorf("Capture P50 = %v, want 50ms", snap.Capture.P50)
	}
	if snap.Capture.P95 != 95*time.Millisecond {
		t.Errorf("Capture P95 = %v, want 95ms", snap.Capture.P95)
	}

	// Single samples in the remaining stages.
	if snap.Analysis.P50 != 50*time.Millisecond {
		t.Errorf("Analysis P50 = %v, want 50ms", snap.Analysis.P50)
	}
	if snap.Response.P50 != 500*time.Millisecond {
		t.Errorf("Response P50 = %v, want 500ms", snap.Response.P50)
	}
	if snap.EndToEnd.P50 != 1000*time.Millisecond {
		t.Errorf("EndToEnd P50 = %v, want 1000ms", snap.EndToEnd.P50)
	}
}

func TestPipelineStats_EmptySnapshot(t *testing.T) {
	t.Parallel()

	ps := NewPipelineStats(10)
	snap := ps.Snapshot()

	if snap.Capture.P50 != 0 || snap.Capture.P95 != 0 {
		t.Errorf("empty Capture = %+v, want zero", snap.Capture)
	}
	if snap.Responses != 0 {
		t.Errorf("empty Responses = %d, want 0", snap.Responses)
	}
	if snap.Errors != 0 {
		t.Errorf("empty Errors = %d, want 0", snap.Errors)
	}
}

func TestPipelineStats_RingBufferWrap(t *testing.T) {
	t.Parallel()

	// Small buffer to force wrap-around.
	ps := NewPipelineStats(3)

	ps.RecordCapture(10 * time.Millisecond)
	ps.RecordCapture(20 * time.Millisecond)
	ps.RecordCapture(30 * time.Millisecond)
	// Wrap around: overwrites first entry.
	ps.RecordCapture(40 * time.Millisecond)

	snap := ps.Snapshot()
	// Buffer now contains [40, 20, 30] (40 overwrote 10 at pos 0).
	// Sorted: [20, 30, 40].
	// P50 of 3 elements: ceil(0.5 * 3) - 1 = 1 => index 1 => 30ms.
	if snap.Capture.P50 != 30*time.Millisecond {
		t.Errorf("Capture P50 after wrap = %v, want 30ms", snap.Capture.P50)
	}
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sorted []time.Duration
		p      float64
		want   time.Duration
	}{
		{"empty", nil, 0.5, 0},
		{"single element p50", []time.Duration{100 * time.Millisecond}, 0.5, 100 * time.Millisecond},
		{"single element p95", []time.Duration{100 * time.Millisecond}, 0.95, 100 * time.Millisecond},
		{"two elements p50", []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, 0.5, 10 * time.Millisecond},
		{"two elements p95", []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, 0.95, 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := percentile(tt.sorted, tt.p)
			if got != tt.want {
				t.Errorf("percentile(%v, %.2f) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}
