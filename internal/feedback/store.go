package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

// Compile-time interface check.
var _ Sink = (*FileStore)(nil)

// Record is a single accepted feedback entry written to the file store.
// The analysis aggregate is flattened to the fields worth reviewing later.
type Record struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	SessionID        string    `json:"session_id,omitempty"`
	Message          string    `json:"message"`
	OverallScore     float64   `json:"overall_score"`
	PerformanceLevel string    `json:"performance_level"`
	Strengths        []string  `json:"strengths,omitempty"`
	ImprovementAreas []string  `json:"improvement_areas,omitempty"`
}

// FileStore persists accepted feedback as JSON lines in a local file,
// one session review log per run. Thread-safe for concurrent use.
type FileStore struct {
	mu        sync.Mutex
	path      string
	sessionID string
}

// NewFileStore creates a FileStore that writes to the given path.
// The file is created if it does not exist.
func NewFileStore(path, sessionID string) *FileStore {
	return &FileStore{path: path, sessionID: sessionID}
}

// SaveEntry appends a feedback entry to the file.
func (fs *FileStore) SaveEntry(entry types.FeedbackEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	record := Record{
		ID:               entry.ID,
		Timestamp:        entry.Timestamp.UTC(),
		SessionID:        fs.sessionID,
		Message:          entry.Message,
		OverallScore:     entry.Analysis.OverallScore,
		PerformanceLevel: entry.PerformanceLevel.String(),
		Strengths:        entry.Analysis.Strengths,
	}
	for _, imp := range entry.Analysis.Improvements {
		record.ImprovementAreas = append(record.ImprovementAreas, imp.Area)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write: %w", err)
	}
	return nil
}
