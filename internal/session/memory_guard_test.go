package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/memory"
	memorymock "github.com/rostrumlabs/rostrum/pkg/memory/mock"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

func TestArchiveGuard_WriteTranscript(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		archive := &memorymock.SessionArchive{}
		g := NewArchiveGuard(archive)

		entry := memory.TranscriptEntry{Text: "hello"}
		err := g.WriteTranscript(context.Background(), "s1", entry)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g.IsDegraded() {
			t.Error("should not be degraded after successful write")
		}
		if archive.CallCount("WriteTranscript") != 1 {
			t.Errorf("expected 1 WriteTranscript call, got %d", archive.CallCount("WriteTranscript"))
		}
	})

	t.Run("write failure is swallowed", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			WriteTranscriptErr: errors.New("disk full"),
		}
		g := NewArchiveGuard(archive)

		err := g.WriteTranscript(context.Background(), "s1", memory.TranscriptEntry{Text: "hello"})
		if err != nil {
			t.Fatalf("expected nil error (swallowed), got %v", err)
		}
		if !g.IsDegraded() {
			t.Error("should be degraded after failed write")
		}
	})

	t.Run("recovers from degraded after successful write", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			WriteTranscriptErr: errors.New("temporary failure"),
		}
		g := NewArchiveGuard(archive)

		// First call fails.
		_ = g.WriteTranscript(context.Background(), "s1", memory.TranscriptEntry{Text: "a"})
		if !g.IsDegraded() {
			t.Error("should be degraded")
		}

		// Fix the archive.
		archive.WriteTranscriptErr = nil

		// Second call succeeds.
		_ = g.WriteTranscript(context.Background(), "s1", memory.TranscriptEntry{Text: "b"})
		if g.IsDegraded() {
			t.Error("should have recovered from degraded state")
		}
	})
}

func TestArchiveGuard_SessionRows(t *testing.T) {
	t.Run("begin failure is swallowed", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			BeginSessionErr: errors.New("connection refused"),
		}
		g := NewArchiveGuard(archive)

		err := g.BeginSession(context.Background(), memory.SessionRecord{ID: "s1"})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if !g.IsDegraded() {
			t.Error("should be degraded after failed begin")
		}
	})

	t.Run("finish failure is swallowed", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			FinishSessionErr: errors.New("connection refused"),
		}
		g := NewArchiveGuard(archive)

		err := g.FinishSession(context.Background(), "s1", memory.SessionSummary{EndedAt: time.Now()})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if !g.IsDegraded() {
			t.Error("should be degraded after failed finish")
		}
	})

	t.Run("get failure reads as missing", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			GetSessionErr: errors.New("connection refused"),
		}
		g := NewArchiveGuard(archive)

		rec, err := g.GetSession(context.Background(), "s1")
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if rec != nil {
			t.Errorf("expected nil record, got %+v", rec)
		}
		if !g.IsDegraded() {
			t.Error("should be degraded after failed get")
		}
	})

	t.Run("get success passes the record through", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			GetSessionResult: &memory.SessionRecord{ID: "s1", SpeakerName: "Maya"},
		}
		g := NewArchiveGuard(archive)

		rec, err := g.GetSession(context.Background(), "s1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec == nil || rec.SpeakerName != "Maya" {
			t.Errorf("unexpected record: %+v", rec)
		}
	})

	t.Run("list failure returns empty slice", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			ListSessionsErr: errors.New("connection refused"),
		}
		g := NewArchiveGuard(archive)

		recs, err := g.ListSessions(context.Background(), 10)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if recs == nil || len(recs) != 0 {
			t.Errorf("expected empty slice, got %v", recs)
		}
	})
}

func TestArchiveGuard_Reads(t *testing.T) {
	t.Run("successful recent read", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			RecentTranscriptResult: []memory.TranscriptEntry{
				{Text: "hello"},
				{Text: "world"},
			},
		}
		g := NewArchiveGuard(archive)

		got, err := g.RecentTranscript(context.Background(), "s1", 5*time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 entries, got %d", len(got))
		}
		if g.IsDegraded() {
			t.Error("should not be degraded")
		}
	})

	t.Run("recent read failure returns empty slice", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			RecentTranscriptErr: errors.New("connection refused"),
		}
		g := NewArchiveGuard(archive)

		got, err := g.RecentTranscript(context.Background(), "s1", 5*time.Minute)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty slice, got %d entries", len(got))
		}
		if !g.IsDegraded() {
			t.Error("should be degraded after failed read")
		}
	})

	t.Run("search failure returns empty slice", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			SearchTranscriptErr: errors.New("index corrupted"),
		}
		g := NewArchiveGuard(archive)

		got, err := g.SearchTranscript(context.Background(), "pacing", memory.SearchOpts{})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty slice, got %d results", len(got))
		}
		if !g.IsDegraded() {
			t.Error("should be degraded after failed search")
		}
	})

	t.Run("feedback history failure returns empty slice", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			FeedbackHistoryErr: errors.New("connection refused"),
		}
		g := NewArchiveGuard(archive)

		got, err := g.FeedbackHistory(context.Background(), "s1", 0)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", got)
		}
		if !g.IsDegraded() {
			t.Error("should be degraded after failed read")
		}
	})
}

func TestArchiveGuard_WriteFeedback(t *testing.T) {
	t.Run("failure is swallowed", func(t *testing.T) {
		archive := &memorymock.SessionArchive{
			WriteFeedbackErr: errors.New("disk full"),
		}
		g := NewArchiveGuard(archive)

		err := g.WriteFeedback(context.Background(), "s1", types.FeedbackEntry{ID: "fb-1"})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if !g.IsDegraded() {
			t.Error("should be degraded after failed write")
		}
	})
}

func TestArchiveGuard_IsDegraded(t *testing.T) {
	t.Run("initially not degraded", func(t *testing.T) {
		g := NewArchiveGuard(&memorymock.SessionArchive{})
		if g.IsDegraded() {
			t.Error("should not be degraded initially")
		}
	})

	t.Run("mixed operations track degraded state", func(t *testing.T) {
		archive := &memorymock.SessionArchive{}
		g := NewArchiveGuard(archive)

		// Successful write, not degraded.
		_ = g.WriteTranscript(context.Background(), "s1", memory.TranscriptEntry{})
		if g.IsDegraded() {
			t.Error("should not be degraded after success")
		}

		// Failed search, degraded.
		archive.SearchTranscriptErr = errors.New("oops")
		_, _ = g.SearchTranscript(context.Background(), "q", memory.SearchOpts{})
		if !g.IsDegraded() {
			t.Error("should be degraded after failed search")
		}

		// Successful write recovers.
		archive.SearchTranscriptErr = nil
		_ = g.WriteTranscript(context.Background(), "s1", memory.TranscriptEntry{})
		if g.IsDegraded() {
			t.Error("should have recovered after successful write")
		}
	})
}

func TestArchiveGuard_ImplementsSessionArchive(t *testing.T) {
	// This is a compile-time check, but let's also verify at runtime.
	var _ memory.SessionArchive = NewArchiveGuard(&memorymock.SessionArchive{})
}
