// Package mcp exposes the live coaching session to external assistants over
// the Model Context Protocol, using the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// The server publishes four read-only tools backed by a [SessionSource]:
//
//   - get_live_analysis: the most recent scored aggregate for the session
//   - get_session_summary: who is presenting, for how long, and how it is going
//   - list_feedback: coaching feedback delivered so far, newest first
//   - get_pipeline_stats: per-stage latency percentiles of the pipeline
//
// Transport selection follows the config: [Server.Run] serves a single
// assistant over the process's stdin/stdout, [Server.HTTPHandler] returns a
// streamable-HTTP handler for mounting on the admin mux.
//
// All tools are reads over in-process state and never block on providers, so
// an assistant polling mid-session cannot disturb the pipeline.
package mcp

import (
	"context"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rostrumlabs/rostrum/internal/observe"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// SessionOverview describes the active session for the summary tool.
type SessionOverview struct {
	// SessionID is the unique session identifier.
	SessionID string

	// SpeakerID identifies the presenter (capture client ID).
	SpeakerID string

	// SpeakerName is the presenter's display name.
	SpeakerName string

	// StartedAt is when the session began.
	StartedAt time.Time

	// FeedbackCount is the number of feedback entries delivered so far.
	FeedbackCount int

	// TranscriptLen is the number of transcript entries logged so far.
	TranscriptLen int
}

// SessionSource is the session state the tool server reads from. The app's
// session manager implements it; all methods must be safe for concurrent use
// and must not block.
type SessionSource interface {
	// LiveAnalysis returns the most recent scored aggregate. ok is false
	// when no session is live or nothing has been scored yet.
	LiveAnalysis() (types.AnalysisResult, bool)

	// Overview describes the active session. ok is false when no session
	// is live.
	Overview() (SessionOverview, bool)

	// FeedbackLog returns up to limit delivered feedback entries, newest
	// first. limit <= 0 returns all.
	FeedbackLog(limit int) []types.FeedbackEntry

	// PipelineSnapshot returns the per-stage latency percentiles.
	PipelineSnapshot() observe.Snapshot
}

// Server is the MCP tool server. Create instances with [NewServer].
type Server struct {
	src SessionSource
	srv *mcpsdk.Server
}

// NewServer creates a tool server reading from src and registers the tool
// catalogue.
func NewServer(src SessionSource) *Server {
	s := &Server{
		src: src,
		srv: mcpsdk.NewServer(
			&mcpsdk.Implementation{Name: "rostrum", Version: "1.0.0"},
			nil,
		),
	}
	s.register()
	return s
}

// Run serves a single assistant over stdin/stdout until ctx is cancelled or
// the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx, &mcpsdk.StdioTransport{})
}

// HTTPHandler returns the streamable-HTTP handler for this server, for
// mounting on the admin mux at the configured path.
func (s *Server) HTTPHandler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.srv
	}, nil)
}
