package session

import (
	"sync"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/memory"
)

// TranscriptLog accumulates the session's transcript in memory: the
// presenter's finalised utterances and the coach's spoken responses, in
// arrival order. The [Consolidator] drains it into the session archive;
// readers that want history go to the archive, not the log.
type TranscriptLog struct {
	mu      sync.Mutex
	entries []memory.TranscriptEntry
}

// NewTranscriptLog creates an empty log.
func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{}
}

// Append adds one entry to the log. A zero Timestamp is filled with the
// current time.
func (l *TranscriptLog) Append(entry memory.TranscriptEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of all logged entries in append order.
func (l *TranscriptLog) Entries() []memory.TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]memory.TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of logged entries.
func (l *TranscriptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
