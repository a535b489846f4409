// Package transcript keeps the recent speech record of a coaching session
// and derives signals from it: a bounded utterance buffer feeding prompt
// context, and a filler-word detector feeding the fluency dimension.
package transcript

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBufferSize bounds the utterance buffer entry count.
	DefaultBufferSize = 50

	// DefaultBufferAge bounds how long utterances stay relevant.
	DefaultBufferAge = 5 * time.Minute
)

// Entry is a single final transcript stored in the [Buffer]. Partial
// transcripts never enter the buffer; the ingest side only forwards finals.
type Entry struct {
	// Text is the transcript text.
	Text string

	// Confidence is the STT confidence for the utterance, 0 when unknown.
	Confidence float64

	// Timestamp records when the utterance was finalized.
	Timestamp time.Time
}

// Buffer maintains the recent utterances of a session. It enforces both a
// maximum entry count and a maximum age; entries exceeding either limit are
// evicted automatically on every [Buffer.Add] call.
//
// All methods are safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	maxSize int
	maxAge  time.Duration
	now     func() time.Time
}

// NewBuffer creates a buffer that retains at most maxSize entries and
// evicts entries older than maxAge. Non-positive arguments fall back to the
// defaults.
func NewBuffer(maxSize int, maxAge time.Duration) *Buffer {
	if maxSize <= 0 {
		maxSize = DefaultBufferSize
	}
	if maxAge <= 0 {
		maxAge = DefaultBufferAge
	}
	return &Buffer{
		entries: make([]Entry, 0, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Add appends an entry and evicts entries that exceed the configured
// maximum size or age. Entries with empty text are ignored.
func (b *Buffer) Add(entry Entry) {
	if strings.TrimSpace(entry.Text) == "" {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = b.now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, entry)
	b.evict()
}

// Recent returns up to maxEntries entries within the configured age window,
// in chronological order (oldest first).
func (b *Buffer) Recent(maxEntries int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cutoff := b.now().Add(-b.maxAge)
	result := make([]Entry, 0, maxEntries)

	for i := len(b.entries) - 1; i >= 0 && len(result) < maxEntries; i-- {
		e := b.entries[i]
		if e.Timestamp.Before(cutoff) {
			continue
		}
		result = append(result, e)
	}

	// Reverse to chronological order.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// JoinRecent concatenates the text of up to maxEntries recent utterances,
// oldest first, separated by single spaces. Handy input for the filler
// detector and for prompt context.
func (b *Buffer) JoinRecent(maxEntries int) string {
	entries := b.Recent(maxEntries)
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Text)
	}
	return strings.Join(parts, " ")
}

// Len reports the current entry count, including entries that have aged
// out but not yet been evicted.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Clear empties the buffer. Session start calls this.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
}

// evict removes entries that are too old or exceed maxSize.
// Must be called with b.mu held.
//
// Survivors are copied to a fresh backing array so evicted entries do not
// pin memory for the lifetime of the session.
func (b *Buffer) evict() {
	cutoff := b.now().Add(-b.maxAge)

	start := 0
	for start < len(b.entries) && b.entries[start].Timestamp.Before(cutoff) {
		start++
	}

	keep := b.entries[start:]

	if len(keep) > b.maxSize {
		keep = keep[len(keep)-b.maxSize:]
	}

	if start > 0 || len(keep) < len(b.entries) {
		fresh := make([]Entry, len(keep), b.maxSize)
		copy(fresh, keep)
		b.entries = fresh
	}
}
