// Package mock provides an in-memory mock implementation of [coach.Engine]
// for use in unit tests.
//
// The mock records every Respond call and returns configured values via
// exported fields. It is safe for concurrent use.
//
// Example:
//
//	e := &mock.Engine{
//	    RespondResult: types.CoachResponse{Message: "Slow down a touch."},
//	}
//	resp, err := e.Respond(ctx, analysis, "how was that?")
package mock

import (
	"context"
	"sync"

	"github.com/rostrumlabs/rostrum/internal/coach"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// Compile-time interface assertion.
var _ coach.Engine = (*Engine)(nil)

// RespondCall records the arguments of a single [Engine.Respond] call.
type RespondCall struct {
	// Analysis is the aggregate passed to Respond.
	Analysis types.AnalysisResult

	// UserText is the speaker text passed to Respond.
	UserText string
}

// Engine is a mock implementation of [coach.Engine].
// The *Result and *Error fields control return values; Call fields accumulate
// invocation records.
type Engine struct {
	mu sync.Mutex

	// RespondResult is returned by [Engine.Respond]. If its Analysis field
	// is zero, the analysis passed to Respond is attached instead.
	RespondResult types.CoachResponse

	// RespondError is the error returned by [Engine.Respond].
	RespondError error

	// RespondCalls records all Respond invocations.
	RespondCalls []RespondCall

	// ResetCount records how many times Reset was called.
	ResetCount int
}

// Respond implements [coach.Engine].
func (e *Engine) Respond(_ context.Context, analysis types.AnalysisResult, userText string) (types.CoachResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.RespondCalls = append(e.RespondCalls, RespondCall{Analysis: analysis, UserText: userText})

	resp := e.RespondResult
	if resp.Analysis.Timestamp.IsZero() && len(resp.Analysis.Dimensions) == 0 {
		resp.Analysis = analysis
	}
	return resp, e.RespondError
}

// Reset implements [coach.Engine].
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ResetCount++
}
