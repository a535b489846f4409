package observe

import (
	"math"
	"sort"
	"sync"
	"time"
)

// PipelineStats collects pipeline latency samples and counter values for the
// session-end report and the MCP stats tool. It maintains a bounded ring
// buffer of recent latency observations per stage from which percentiles are
// computed on demand.
//
// The stages follow the coaching pipeline: capture (media arrival to
// transcript or keypoints), analysis (analyzer tick to scored result),
// response (scored result to first byte of spoken feedback), and the
// end-to-end path from utterance end to playback start.
//
// Thread-safe for concurrent use.
type PipelineStats struct {
	mu sync.Mutex

	capture  latencyBuffer
	analysis latencyBuffer
	response latencyBuffer
	endToEnd latencyBuffer

	responses int64
	errors    int64
}

// NewPipelineStats creates a PipelineStats with the given window size
// (maximum number of latency samples retained per stage).
func NewPipelineStats(windowSize int) *PipelineStats {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &PipelineStats{
		capture:  newLatencyBuffer(windowSize),
		analysis: newLatencyBuffer(windowSize),
		response: newLatencyBuffer(windowSize),
		endToEnd: newLatencyBuffer(windowSize),
	}
}

// RecordCapture records a capture-stage latency sample.
func (ps *PipelineStats) RecordCapture(d time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.capture.add(d)
}

// RecordAnalysis records an analysis-stage latency sample.
func (ps *PipelineStats) RecordAnalysis(d time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.analysis.add(d)
}

// RecordResponse records a response-stage latency sample.
func (ps *PipelineStats) RecordResponse(d time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.response.add(d)
}

// RecordEndToEnd records an end-to-end latency sample.
func (ps *PipelineStats) RecordEndToEnd(d time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.endToEnd.add(d)
}

// IncrResponses increments the delivered coach response counter.
func (ps *PipelineStats) IncrResponses() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.responses++
}

// IncrErrors increments the pipeline error counter.
func (ps *PipelineStats) IncrErrors() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.errors++
}

// LatencyPercentiles holds p50 and p95 values for a latency stage.
type LatencyPercentiles struct {
	P50 time.Duration
	P95 time.Duration
}

// Snapshot captures a point-in-time view of all pipeline statistics.
type Snapshot struct {
	Capture   LatencyPercentiles
	Analysis  LatencyPercentiles
	Response  LatencyPercentiles
	EndToEnd  LatencyPercentiles
	Responses int64
	Errors    int64
}

// Snapshot returns a point-in-time view of all pipeline statistics.
func (ps *PipelineStats) Snapshot() Snapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	return Snapshot{
		Capture:   ps.capture.percentiles(),
		Analysis:  ps.analysis.percentiles(),
		Response:  ps.response.percentiles(),
		EndToEnd:  ps.endToEnd.percentiles(),
		Responses: ps.responses,
		Errors:    ps.errors,
	}
}

// latencyBuffer is a bounded ring buffer of duration samples.
type latencyBuffer struct {
	data []time.Duration
	size int
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{
		data: make([]time.Duration, size),
		size: size,
	}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos >= lb.size {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) percentiles() LatencyPercentiles {
	n := lb.pos
	if lb.full {
		n = lb.size
	}
	if n == 0 {
		return LatencyPercentiles{}
	}

	// Copy and sort the valid samples.
	sorted := make([]time.Duration, n)
	if lb.full {
		copy(sorted, lb.data)
	} else {
		copy(sorted, lb.data[:n])
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyPercentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
	}
}

// percentile returns the value at the given percentile (0.0-1.0) from a
// sorted slice of durations using nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
