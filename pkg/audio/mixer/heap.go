// Package mixer provides a concrete [audio.Mixer] implementation backed by a
// priority queue. It schedules coach utterances for playback, supports
// priority-based preemption, speaker barge-in interrupts, and configurable
// inter-utterance silence gaps with jitter.
package mixer

import "github.com/rostrumlabs/rostrum/pkg/audio"

// entry wraps an [audio.Utterance] with scheduling metadata for the
// priority queue. The seq field provides FIFO ordering within the same
// priority level.
type entry struct {
	utterance *audio.Utterance
	priority  int
	seq       uint64 // monotonic insertion order for FIFO tie-breaking
}

// utteranceHeap implements [container/heap.Interface] as a max-heap ordered by
// priority (descending), with FIFO tie-breaking on seq (ascending).
type utteranceHeap []entry

func (h utteranceHeap) Len() int { return len(h) }

// Less reports whether element i should be dequeued before element j.
// Higher priority wins; equal priority falls back to insertion order.
func (h utteranceHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h utteranceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push appends x to the heap. Called by [container/heap.Push]; callers must
// not invoke this directly.
func (h *utteranceHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

// Pop removes and returns the last element. Called by [container/heap.Pop];
// callers must not invoke this directly.
func (h *utteranceHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
