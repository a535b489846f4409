package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rostrumlabs/rostrum/internal/observe"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// register adds the tool catalogue to the underlying SDK server. Input
// schemas are inferred from the typed handler signatures.
func (s *Server) register() {
	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "get_live_analysis",
		Description: "Latest scored analysis of the live coaching session: overall score, per-dimension scores, strengths, and improvement advice.",
	}, instrumented("get_live_analysis", s.getLiveAnalysis))

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "get_session_summary",
		Description: "Overview of the active session: presenter, elapsed time, feedback delivered, and the current performance level.",
	}, instrumented("get_session_summary", s.getSessionSummary))

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "list_feedback",
		Description: "Coaching feedback delivered in this session, newest first.",
	}, instrumented("list_feedback", s.listFeedback))

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "get_pipeline_stats",
		Description: "Per-stage latency percentiles (p50/p95) of the analysis pipeline plus response and error totals.",
	}, instrumented("get_pipeline_stats", s.getPipelineStats))
}

// instrumented wraps a tool handler with call counting and latency recording.
func instrumented[In, Out any](name string, h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, Out, error) {
		met := observe.DefaultMetrics()
		start := time.Now()

		res, out, err := h(ctx, req, in)

		met.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("tool", name)))
		status := "ok"
		if err != nil {
			status = "error"
		}
		met.RecordToolCall(ctx, name, status)

		return res, out, err
	}
}

// ── get_live_analysis ────────────────────────────────────────────────────────

type liveAnalysisInput struct{}

type improvementItem struct {
	Area     string  `json:"area"`
	Score    float64 `json:"score"`
	Message  string  `json:"message"`
	Priority string  `json:"priority"`
}

type liveAnalysisOutput struct {
	// Active is false when no session is live or nothing has been scored
	// yet; all other fields are then zero.
	Active       bool               `json:"active"`
	OverallScore float64            `json:"overall_score,omitempty"`
	Level        string             `json:"level,omitempty"`
	Dimensions   map[string]float64 `json:"dimensions,omitempty"`
	Strengths    []string           `json:"strengths,omitempty"`
	Improvements []improvementItem  `json:"improvements,omitempty"`

	// AgeMs is how long ago the aggregate was produced.
	AgeMs int64 `json:"age_ms,omitempty"`
}

func (s *Server) getLiveAnalysis(_ context.Context, _ *mcpsdk.CallToolRequest, _ liveAnalysisInput) (*mcpsdk.CallToolResult, liveAnalysisOutput, error) {
	res, ok := s.src.LiveAnalysis()
	if !ok {
		return nil, liveAnalysisOutput{}, nil
	}

	out := liveAnalysisOutput{
		Active:       true,
		OverallScore: res.OverallScore,
		Level:        types.PerformanceLevelFor(res.OverallScore).String(),
		Dimensions:   res.Dimensions,
		Strengths:    res.Strengths,
		AgeMs:        time.Since(res.Timestamp).Milliseconds(),
	}
	for _, imp := range res.Improvements {
		out.Improvements = append(out.Improvements, improvementItem{
			Area:     imp.Area,
			Score:    imp.Score,
			Message:  imp.Message,
			Priority: imp.Priority.String(),
		})
	}
	return nil, out, nil
}

// ── get_session_summary ──────────────────────────────────────────────────────

type sessionSummaryInput struct{}

type sessionSummaryOutput struct {
	// Active is false when no session is live.
	Active        bool      `json:"active"`
	SessionID     string    `json:"session_id,omitempty"`
	Speaker       string    `json:"speaker,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	ElapsedS      float64   `json:"elapsed_s,omitempty"`
	FeedbackCount int       `json:"feedback_count"`
	TranscriptLen int       `json:"transcript_entries"`

	// OverallScore and Level reflect the latest aggregate, when one exists.
	OverallScore float64 `json:"overall_score,omitempty"`
	Level        string  `json:"level,omitempty"`
}

func (s *Server) getSessionSummary(_ context.Context, _ *mcpsdk.CallToolRequest, _ sessionSummaryInput) (*mcpsdk.CallToolResult, sessionSummaryOutput, error) {
	ov, ok := s.src.Overview()
	if !ok {
		return nil, sessionSummaryOutput{}, nil
	}

	speaker := ov.SpeakerName
	if speaker == "" {
		speaker = ov.SpeakerID
	}
	out := sessionSummaryOutput{
		Active:        true,
		SessionID:     ov.SessionID,
		Speaker:       speaker,
		StartedAt:     ov.StartedAt,
		ElapsedS:      time.Since(ov.StartedAt).Seconds(),
		FeedbackCount: ov.FeedbackCount,
		TranscriptLen: ov.TranscriptLen,
	}
	if res, ok := s.src.LiveAnalysis(); ok {
		out.OverallScore = res.OverallScore
		out.Level = types.PerformanceLevelFor(res.OverallScore).String()
	}
	return nil, out, nil
}

// ── list_feedback ────────────────────────────────────────────────────────────

type listFeedbackInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of entries to return (newest first); 0 returns all"`
}

type feedbackItem struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`

	// Area is the highest-priority improvement area the feedback addressed.
	// Empty for pure encouragement.
	Area string `json:"area,omitempty"`
}

type listFeedbackOutput struct {
	Count   int            `json:"count"`
	Entries []feedbackItem `json:"entries"`
}

func (s *Server) listFeedback(_ context.Context, _ *mcpsdk.CallToolRequest, in listFeedbackInput) (*mcpsdk.CallToolResult, listFeedbackOutput, error) {
	entries := s.src.FeedbackLog(in.Limit)

	out := listFeedbackOutput{
		Count:   len(entries),
		Entries: make([]feedbackItem, 0, len(entries)),
	}
	for _, e := range entries {
		item := feedbackItem{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Message:   e.Message,
			Level:     e.PerformanceLevel.String(),
		}
		if len(e.Analysis.Improvements) > 0 {
			item.Area = e.Analysis.Improvements[0].Area
		}
		out.Entries = append(out.Entries, item)
	}
	return nil, out, nil
}

// ── get_pipeline_stats ───────────────────────────────────────────────────────

type pipelineStatsInput struct{}

type stageLatency struct {
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

type pipelineStatsOutput struct {
	Capture   stageLatency `json:"capture"`
	Analysis  stageLatency `json:"analysis"`
	Response  stageLatency `json:"response"`
	EndToEnd  stageLatency `json:"end_to_end"`
	Responses int64        `json:"responses"`
	Errors    int64        `json:"errors"`
}

func (s *Server) getPipelineStats(_ context.Context, _ *mcpsdk.CallToolRequest, _ pipelineStatsInput) (*mcpsdk.CallToolResult, pipelineStatsOutput, error) {
	snap := s.src.PipelineSnapshot()
	return nil, pipelineStatsOutput{
		Capture:   toStageLatency(snap.Capture),
		Analysis:  toStageLatency(snap.Analysis),
		Response:  toStageLatency(snap.Response),
		EndToEnd:  toStageLatency(snap.EndToEnd),
		Responses: snap.Responses,
		Errors:    snap.Errors,
	}, nil
}

func toStageLatency(p observe.LatencyPercentiles) stageLatency {
	return stageLatency{
		P50Ms: float64(p.P50) / float64(time.Millisecond),
		P95Ms: float64(p.P95) / float64(time.Millisecond),
	}
}
