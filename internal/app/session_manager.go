package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rostrumlabs/rostrum/internal/coach"
	"github.com/rostrumlabs/rostrum/internal/coach/llmcoach"
	"github.com/rostrumlabs/rostrum/internal/command"
	"github.com/rostrumlabs/rostrum/internal/config"
	"github.com/rostrumlabs/rostrum/internal/feedback"
	"github.com/rostrumlabs/rostrum/internal/flow"
	"github.com/rostrumlabs/rostrum/internal/mcp"
	"github.com/rostrumlabs/rostrum/internal/observe"
	"github.com/rostrumlabs/rostrum/internal/rubric"
	"github.com/rostrumlabs/rostrum/internal/scoring"
	"github.com/rostrumlabs/rostrum/internal/session"
	"github.com/rostrumlabs/rostrum/internal/transcript"
	"github.com/rostrumlabs/rostrum/internal/vision"
	"github.com/rostrumlabs/rostrum/internal/voice"
	"github.com/rostrumlabs/rostrum/pkg/audio"
	audiomixer "github.com/rostrumlabs/rostrum/pkg/audio/mixer"
	"github.com/rostrumlabs/rostrum/pkg/memory"
	"github.com/rostrumlabs/rostrum/pkg/provider/pose"
	"github.com/rostrumlabs/rostrum/pkg/provider/stt"
	"github.com/rostrumlabs/rostrum/pkg/provider/tts"
	"github.com/rostrumlabs/rostrum/pkg/provider/vad"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

const (
	// sttSampleRate is the rate transcription sessions are opened at;
	// provider sessions resample utterance windows as needed.
	sttSampleRate = 16000

	// fillerKeywordBoost is the STT boost applied to the filler vocabulary
	// so engines do not silently clean up the disfluencies being counted.
	fillerKeywordBoost = 2

	// transcriptMaxEntries and transcriptMaxAge bound the rolling prompt
	// context buffer.
	transcriptMaxEntries = 200
	transcriptMaxAge     = 10 * time.Minute

	// recentUtterances is how many buffered utterances feed the fluency
	// dimension each analyzing cycle.
	recentUtterances = 20

	// coachSpeakerID marks coach lines in the transcript log.
	coachSpeakerID = "coach"

	// endSessionGrace bounds the final consolidation and archive flush when
	// a spoken command stops the session.
	endSessionGrace = 15 * time.Second
)

// SessionInfo describes the currently active coaching session.
type SessionInfo struct {
	SessionID   string
	SpeakerID   string
	SpeakerName string
	StartedAt   time.Time
}

// CaptureClient is the media connection a session runs on. [ingest.Client]
// implements it; tests substitute fakes.
type CaptureClient interface {
	// ID returns the stable client identifier.
	ID() string

	// Name returns the presenter's display name, possibly empty.
	Name() string

	// Format reports the microphone PCM format.
	Format() audio.Format

	// Source returns the microphone stream.
	Source() audio.Source

	// VideoFrames returns the camera stream. May be a nil channel when the
	// client sends no video.
	VideoFrames() <-chan pose.Frame

	// Sink returns the coach speech return leg.
	Sink() audio.Sink

	// Done is closed when the connection tears down.
	Done() <-chan struct{}

	// Close tears down the connection. Safe to call more than once.
	Close() error
}

// SessionManagerConfig carries the dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Config    *config.Config
	Providers *Providers
	Catalog   *rubric.Catalog

	// Archive is the durable session store, nil when memory is not
	// configured.
	Archive memory.SessionArchive

	// Index is the feedback vector index, nil when memory is not
	// configured.
	Index memory.FeedbackIndex

	Stats   *observe.PipelineStats
	Metrics *observe.Metrics
}

// SessionManager starts and stops coaching sessions. At most one session is
// active at a time; a second capture client is rejected until the first
// session ends.
//
// It also implements [mcp.SessionSource], exposing the live session to
// assistant tools.
type SessionManager struct {
	mu     sync.Mutex
	active bool
	info   SessionInfo
	client CaptureClient

	flowMgr      *flow.Manager
	history      *feedback.History
	translog     *session.TranscriptLog
	consolidator *session.Consolidator
	cancel       context.CancelFunc
	loops        *sync.WaitGroup
	closers      []func() error

	// analysisMu guards the last completed aggregate separately from mu:
	// flow callbacks write it mid-cycle while Stop may hold mu.
	analysisMu   sync.Mutex
	lastAnalysis types.AnalysisResult
	hasAnalysis  bool

	cfg       *config.Config
	providers *Providers
	catalog   *rubric.Catalog
	archive   memory.SessionArchive
	index     memory.FeedbackIndex
	stats     *observe.PipelineStats
	metrics   *observe.Metrics
}

var _ mcp.SessionSource = (*SessionManager)(nil)

// NewSessionManager creates a session manager. Archive and Index may be nil;
// sessions then run without durable memory or cross-session recall.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	sm := &SessionManager{
		cfg:       cfg.Config,
		providers: cfg.Providers,
		catalog:   cfg.Catalog,
		archive:   cfg.Archive,
		index:     cfg.Index,
		stats:     cfg.Stats,
		metrics:   cfg.Metrics,
	}
	if sm.providers == nil {
		sm.providers = &Providers{}
	}
	if sm.stats == nil {
		sm.stats = observe.NewPipelineStats(0)
	}
	if sm.metrics == nil {
		sm.metrics = observe.DefaultMetrics()
	}
	return sm
}

// SetConfig swaps the configuration used by the next session. The active
// session keeps the configuration it started with.
func (sm *SessionManager) SetConfig(cfg *config.Config) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cfg = cfg
}

// Start assembles the full pipeline for one capture client and begins
// coaching. It fails when a session is already active or when a required
// provider session cannot be opened; resources created before the failure
// are closed again.
func (sm *SessionManager) Start(ctx context.Context, client CaptureClient) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.active {
		return fmt.Errorf("session: a session is already active (id=%s)", sm.info.SessionID)
	}

	cfg := sm.cfg
	providers := sm.providers
	format := client.Format()

	speaker := client.Name()
	if speaker == "" {
		speaker = client.ID()
	}
	now := time.Now().UTC()
	sessionID := fmt.Sprintf("session-%s-%s", sanitizeName(speaker), now.Format("20060102T1504Z"))

	var closers []func() error
	fail := func(err error) error {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return err
	}

	// ── event bus and voice analysis ─────────────────────────────────────
	events := flow.NewEvents()
	events.OnAnalysisComplete(func(result types.AnalysisResult) {
		sm.analysisMu.Lock()
		sm.lastAnalysis = result
		sm.hasAnalysis = true
		sm.analysisMu.Unlock()
	})
	events.OnError(func(err error) {
		slog.Warn("pipeline error", "session_id", sessionID, "error", err)
		sm.stats.IncrErrors()
	})

	voiceAn := voice.New(
		voice.WithAlpha(cfg.Analysis.Voice.Alpha),
		voice.WithVolumeCalibration(cfg.Analysis.Voice.VolumeCalibration),
		voice.WithPitchRange(cfg.Analysis.Voice.PitchMinHz, cfg.Analysis.Voice.PitchMaxHz),
		voice.WithOnAnalysis(events.PublishVoiceAnalysis),
		voice.WithOnError(events.PublishError),
	)

	// ── vision analysis ──────────────────────────────────────────────────
	var visionAn *vision.Analyzer
	if providers.Pose != nil {
		poseSess, err := providers.Pose.NewSession(ctx, pose.Config{})
		if err != nil {
			return fail(fmt.Errorf("session: open pose estimation: %w", err))
		}
		closers = append(closers, poseSess.Close)
		visionAn = vision.New(poseSess,
			vision.WithInterval(time.Duration(cfg.Analysis.Vision.IntervalMs)*time.Millisecond),
			vision.WithAlpha(cfg.Analysis.Vision.Alpha),
			vision.WithOnUpdate(events.PublishAnalysisUpdate),
			vision.WithOnError(events.PublishError),
		)
	} else {
		slog.Info("no pose provider, coaching on voice alone", "session_id", sessionID)
	}

	// ── transcription and segmentation ───────────────────────────────────
	buffer := transcript.NewBuffer(transcriptMaxEntries, transcriptMaxAge)
	fillers := transcript.NewDetector()
	translog := session.NewTranscriptLog()

	var sttSess stt.Session
	if providers.STT != nil {
		var err error
		sttSess, err = providers.STT.StartSession(ctx, stt.Config{
			SampleRate: sttSampleRate,
			Keywords:   fillerKeywords(fillers),
		})
		if err != nil {
			return fail(fmt.Errorf("session: open transcription: %w", err))
		}
		closers = append(closers, sttSess.Close)
	} else {
		slog.Warn("no stt provider, transcription disabled", "session_id", sessionID)
	}

	var vadSess vad.SessionHandle
	if providers.VAD != nil {
		var err error
		vadSess, err = providers.VAD.NewSession(vad.Config{
			SampleRate:  format.SampleRate,
			FrameSizeMs: vadFrameMs,
		})
		if err != nil {
			return fail(fmt.Errorf("session: open voice activity detection: %w", err))
		}
		closers = append(closers, vadSess.Close)
	} else {
		slog.Warn("no vad engine, utterance segmentation disabled", "session_id", sessionID)
	}

	// ── feedback gating and scoring ──────────────────────────────────────
	histOpts := []feedback.Option{
		feedback.WithLimit(cfg.Feedback.HistoryLimit),
		feedback.WithOverlapLimit(cfg.Feedback.OverlapLimit),
		feedback.WithRepeatWindow(time.Duration(cfg.Feedback.RepeatWindowS) * time.Second),
		feedback.WithRateCap(cfg.Feedback.RateCap, time.Duration(cfg.Feedback.RateWindowS)*time.Second),
	}
	if cfg.Feedback.PersistPath != "" {
		histOpts = append(histOpts, feedback.WithSink(feedback.NewFileStore(cfg.Feedback.PersistPath, sessionID)))
	}
	history := feedback.NewHistory(histOpts...)
	scorer := scoring.NewEngine(sm.catalog)

	// ── spoken session commands ──────────────────────────────────────────
	controls := &sessionControls{manager: sm, history: history}
	commands := command.New()

	// ── coach speech return leg ──────────────────────────────────────────
	sink := client.Sink()
	mixer := audiomixer.New(func(frame audio.AudioFrame) {
		// Write failures mean the client is gone; playback ends with it.
		if err := sink.Write(frame); err != nil {
			slog.Debug("coach speech write failed", "error", err)
		}
	})
	closers = append(closers, mixer.Close)

	// ── coach engine ─────────────────────────────────────────────────────
	var recalls coach.RecallSource
	if sm.index != nil && providers.Embeddings != nil {
		recalls = session.NewRecaller(providers.Embeddings, sm.index, sessionID)
	}

	var coachEng coach.Engine
	if providers.LLM != nil {
		coachOpts := []llmcoach.Option{
			llmcoach.WithHistory(history),
			llmcoach.WithTranscript(buffer),
			llmcoach.WithMaxTurns(cfg.Coach.MaxTurns),
			llmcoach.WithTemperature(cfg.Coach.Temperature),
		}
		if recalls != nil {
			coachOpts = append(coachOpts, llmcoach.WithRecalls(recalls))
		}
		coachEng = llmcoach.New(providers.LLM, sm.catalog, coachOpts...)
	} else {
		slog.Warn("no llm provider, falling back to rubric feedback lines", "session_id", sessionID)
	}

	// ── feedback cycle ───────────────────────────────────────────────────
	// One cycle runs at a time, so the three hooks share state without
	// locking: analyze records the input and start time, deliver reads them.
	cs := &cycleState{}

	analyze := func(ctx context.Context, userText string) (types.AnalysisResult, error) {
		cs.input = userText
		cs.started = time.Now()

		snap := scoring.Snapshot{Voice: voiceAn.Snapshot()}
		if visionAn != nil {
			snap.Vision = visionAn.Snapshot()
		}
		if recent := buffer.JoinRecent(recentUtterances); recent != "" {
			fs := fillers.Analyze(recent)
			if fs.TotalWords > 0 {
				snap.FillerRatio = fs.Ratio
				snap.HasTranscript = true
			}
		}

		result := scorer.Aggregate(snap)
		sm.stats.RecordAnalysis(time.Since(cs.started))
		return result, nil
	}

	respond := func(ctx context.Context, analysis types.AnalysisResult, userText string) (types.CoachResponse, error) {
		if controls.feedbackPaused() {
			// Analysis keeps flowing while paused; the coach stays quiet.
			slog.Debug("feedback paused, skipping response", "session_id", sessionID)
			return types.CoachResponse{Analysis: analysis}, nil
		}
		if coachEng == nil {
			return ruleBasedResponse(analysis), nil
		}
		start := time.Now()
		resp, err := coachEng.Respond(ctx, analysis, userText)
		if err != nil {
			return resp, err
		}
		sm.stats.RecordResponse(time.Since(start))
		return resp, nil
	}

	persona := sm.catalog.Persona()
	deliver := func(ctx context.Context, resp types.CoachResponse) error {
		if resp.Message == "" {
			// A paused cycle produces an empty response.
			return nil
		}
		entry, err := history.Accept(cs.input, resp.Message, resp.Analysis)
		if err != nil {
			sm.metrics.RecordFeedbackSuppressed(ctx, suppressReason(err))
			slog.Debug("feedback suppressed", "session_id", sessionID, "reason", err)
			return nil
		}
		sm.metrics.RecordFeedback(ctx, improvementArea(resp.Analysis), entry.PerformanceLevel.String())

		translog.Append(memory.TranscriptEntry{
			SpeakerID:   coachSpeakerID,
			SpeakerName: persona.Name,
			Text:        resp.Message,
			IsCoach:     true,
			Timestamp:   time.Now().UTC(),
		})

		if providers.TTS != nil {
			if err := speakFeedback(ctx, providers.TTS, mixer, cfg, entry, resp); err != nil {
				return err
			}
		}

		sm.stats.IncrResponses()
		sm.stats.RecordEndToEnd(time.Since(cs.started))
		return nil
	}

	flowMgr := flow.NewManager(events, analyze, respond, deliver,
		flow.WithCooldown(time.Duration(cfg.Analysis.RespondCooldownMs)*time.Millisecond))

	// ── session memory ───────────────────────────────────────────────────
	sessionCtx, cancel := context.WithCancel(context.Background())

	var consolidator *session.Consolidator
	if sm.archive != nil {
		_ = sm.archive.BeginSession(ctx, memory.SessionRecord{
			ID:          sessionID,
			SpeakerID:   client.ID(),
			SpeakerName: speaker,
			StartedAt:   now,
		})
		consolidator = session.NewConsolidator(session.ConsolidatorConfig{
			Archive:   sm.archive,
			Index:     sm.index,
			Embedder:  providers.Embeddings,
			Log:       translog,
			Feedback:  history,
			SessionID: sessionID,
			Interval:  time.Duration(cfg.Memory.ConsolidateIntervalS) * time.Second,
		})
		consolidator.Start(sessionCtx)
	}

	// ── capture loops ────────────────────────────────────────────────────
	loops := &sync.WaitGroup{}
	pipeline := newCapturePipeline(capturePipelineConfig{
		Client:      client,
		Format:      format,
		Voice:       voiceAn,
		Vision:      visionAn,
		VAD:         vadSess,
		STT:         sttSess,
		Flow:        flowMgr,
		Mixer:       mixer,
		Buffer:      buffer,
		Log:         translog,
		Fillers:     fillers,
		Stats:       sm.stats,
		Commands:    commands,
		Controls:    controls,
		SpeakerID:   client.ID(),
		SpeakerName: speaker,
		Workers:     loops,
	})

	loops.Add(1)
	go func() {
		defer loops.Done()
		pipeline.runAudio(sessionCtx)
	}()
	if visionAn != nil {
		loops.Add(1)
		go func() {
			defer loops.Done()
			pipeline.runVision(sessionCtx)
		}()
	}

	flowMgr.Start()

	sm.active = true
	sm.info = SessionInfo{
		SessionID:   sessionID,
		SpeakerID:   client.ID(),
		SpeakerName: speaker,
		StartedAt:   now,
	}
	sm.client = client
	sm.flowMgr = flowMgr
	sm.history = history
	sm.translog = translog
	sm.consolidator = consolidator
	sm.cancel = cancel
	sm.loops = loops
	sm.closers = closers

	slog.Info("session started",
		"session_id", sessionID,
		"speaker", speaker,
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
		"video", visionAn != nil)
	return nil
}

// Stop ends the active session: a final consolidation runs, the recap is
// written to the archive, and all per-session resources are closed.
func (sm *SessionManager) Stop(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.stopLocked(ctx)
}

// StopClient ends the active session if it belongs to the given client.
// Called on client disconnect; a no-op when another session took over.
func (sm *SessionManager) StopClient(ctx context.Context, client CaptureClient) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.active || sm.client != client {
		return nil
	}
	return sm.stopLocked(ctx)
}

func (sm *SessionManager) stopLocked(ctx context.Context) error {
	if !sm.active {
		return errors.New("session: no active session to stop")
	}
	info := sm.info

	// Flush session memory before tearing the pipeline down.
	if sm.consolidator != nil {
		if err := sm.consolidator.ConsolidateNow(ctx); err != nil {
			slog.Warn("final consolidation failed", "session_id", info.SessionID, "error", err)
		}
		sm.consolidator.Stop()
	}
	if sm.archive != nil {
		sm.finishArchive(ctx, info)
	}

	sm.flowMgr.End()
	sm.cancel()
	sm.loops.Wait()

	for i := len(sm.closers) - 1; i >= 0; i-- {
		if err := sm.closers[i](); err != nil {
			slog.Warn("session cleanup failed", "session_id", info.SessionID, "error", err)
		}
	}
	_ = sm.client.Close()

	sm.active = false
	sm.info = SessionInfo{}
	sm.client = nil
	sm.flowMgr = nil
	sm.history = nil
	sm.translog = nil
	sm.consolidator = nil
	sm.cancel = nil
	sm.loops = nil
	sm.closers = nil

	sm.analysisMu.Lock()
	sm.lastAnalysis = types.AnalysisResult{}
	sm.hasAnalysis = false
	sm.analysisMu.Unlock()

	slog.Info("session stopped", "session_id", info.SessionID,
		"duration", time.Since(info.StartedAt).Round(time.Second))
	return nil
}

// finishArchive writes the recap and closing metrics onto the session row.
func (sm *SessionManager) finishArchive(ctx context.Context, info SessionInfo) {
	sm.analysisMu.Lock()
	last := sm.lastAnalysis
	sm.analysisMu.Unlock()

	digest := session.Digest{
		SessionID:    info.SessionID,
		SpeakerName:  info.SpeakerName,
		StartedAt:    info.StartedAt,
		Duration:     time.Since(info.StartedAt),
		OverallScore: last.OverallScore,
		Dimensions:   last.Dimensions,
		Feedback:     sm.history.Entries(),
	}

	var recap string
	if sm.providers.LLM != nil {
		var err error
		recap, err = session.NewLLMSummariser(sm.providers.LLM).Summarise(ctx, digest)
		if err != nil {
			slog.Warn("recap generation failed", "session_id", info.SessionID, "error", err)
		}
	}

	_ = sm.archive.FinishSession(ctx, info.SessionID, memory.SessionSummary{
		EndedAt:       time.Now().UTC(),
		Summary:       recap,
		OverallScore:  digest.OverallScore,
		Dimensions:    digest.Dimensions,
		FeedbackCount: len(digest.Feedback),
	})
}

// IsActive reports whether a session is currently running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.active
}

// Info returns the active session's details. ok is false when no session is
// running.
func (sm *SessionManager) Info() (SessionInfo, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.info, sm.active
}

// ─────────────────────────────────────────────────────────────────────────────
// mcp.SessionSource
// ─────────────────────────────────────────────────────────────────────────────

// LiveAnalysis returns the most recent scored aggregate of the active
// session.
func (sm *SessionManager) LiveAnalysis() (types.AnalysisResult, bool) {
	sm.analysisMu.Lock()
	defer sm.analysisMu.Unlock()
	if !sm.hasAnalysis {
		return types.AnalysisResult{}, false
	}
	return sm.lastAnalysis, true
}

// Overview describes the active session.
func (sm *SessionManager) Overview() (mcp.SessionOverview, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.active {
		return mcp.SessionOverview{}, false
	}
	return mcp.SessionOverview{
		SessionID:     sm.info.SessionID,
		SpeakerID:     sm.info.SpeakerID,
		SpeakerName:   sm.info.SpeakerName,
		StartedAt:     sm.info.StartedAt,
		FeedbackCount: sm.history.Len(),
		TranscriptLen: sm.translog.Len(),
	}, true
}

// FeedbackLog returns up to limit delivered feedback entries, newest first.
func (sm *SessionManager) FeedbackLog(limit int) []types.FeedbackEntry {
	sm.mu.Lock()
	history := sm.history
	sm.mu.Unlock()
	if history == nil {
		return nil
	}

	entries := history.Entries()
	out := make([]types.FeedbackEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// PipelineSnapshot returns the per-stage latency percentiles.
func (sm *SessionManager) PipelineSnapshot() observe.Snapshot {
	return sm.stats.Snapshot()
}

// ─────────────────────────────────────────────────────────────────────────────
// spoken session controls
// ─────────────────────────────────────────────────────────────────────────────

// sessionControls adapts the live session to [command.Controls]. The paused
// flag is read by the respond hook each cycle, so pausing keeps analysis and
// transcripts flowing while the coach stays quiet.
type sessionControls struct {
	manager *SessionManager
	history *feedback.History
	paused  atomic.Bool
}

var _ command.Controls = (*sessionControls)(nil)

// EndSession stops the session on a fresh goroutine. The caller is the
// session's own transcription worker, which the stop path joins.
func (c *sessionControls) EndSession(context.Context) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), endSessionGrace)
		defer cancel()
		if err := c.manager.Stop(ctx); err != nil {
			slog.Warn("spoken end-session failed", "error", err)
		}
	}()
	return nil
}

func (c *sessionControls) PauseFeedback()  { c.paused.Store(true) }
func (c *sessionControls) ResumeFeedback() { c.paused.Store(false) }

func (c *sessionControls) ClearHistory() { c.history.Clear() }

func (c *sessionControls) feedbackPaused() bool { return c.paused.Load() }

// ─────────────────────────────────────────────────────────────────────────────
// cycle helpers
// ─────────────────────────────────────────────────────────────────────────────

// cycleState carries per-cycle values between the analyze and deliver hooks.
// The flow manager runs one cycle at a time, so no locking is needed.
type cycleState struct {
	input   string
	started time.Time
}

// speakFeedback synthesizes the accepted feedback line and queues it on the
// mixer. The synthesis stream is handed to the mixer unconsumed; playback
// pulls it.
func speakFeedback(ctx context.Context, provider tts.Provider, mixer *audiomixer.PriorityMixer, cfg *config.Config, entry types.FeedbackEntry, resp types.CoachResponse) error {
	text := make(chan string, 1)
	text <- resp.Message
	close(text)

	stream, err := provider.SynthesizeStream(ctx, text, configVoiceProfile(cfg))
	if err != nil {
		return fmt.Errorf("session: synthesize feedback: %w", err)
	}

	format := provider.OutputFormat()
	priority := feedbackPriority(resp.Analysis)
	mixer.Enqueue(&audio.Utterance{
		FeedbackID: entry.ID,
		Audio:      stream,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Priority:   priority,
	}, priority)
	return nil
}

// configVoiceProfile builds the coach voice from configuration.
func configVoiceProfile(cfg *config.Config) tts.VoiceProfile {
	return tts.VoiceProfile{
		ID:          cfg.Coach.Voice.VoiceID,
		Provider:    cfg.Coach.Voice.Provider,
		PitchShift:  cfg.Coach.Voice.PitchShift,
		SpeedFactor: cfg.Coach.Voice.SpeedFactor,
	}
}

// feedbackPriority maps the analysis onto a mixer priority tier: corrections
// preempt, encouragement waits its turn.
func feedbackPriority(analysis types.AnalysisResult) int {
	if len(analysis.Improvements) == 0 {
		return audio.PriorityEncouragement
	}
	if analysis.Improvements[0].Priority == types.PriorityHigh {
		return audio.PriorityCorrection
	}
	return audio.PriorityAdvice
}

// ruleBasedResponse builds a coach response straight from the rubric
// messages when no LLM is configured.
func ruleBasedResponse(analysis types.AnalysisResult) types.CoachResponse {
	msg := ""
	switch {
	case len(analysis.Improvements) > 0:
		msg = analysis.Improvements[0].Message
	case len(analysis.Strengths) > 0:
		msg = analysis.Strengths[0]
	default:
		msg = "Keep going, you're doing fine."
	}
	return types.CoachResponse{Message: msg, Analysis: analysis}
}

// improvementArea names the dominant improvement area for metrics, or
// "encouragement" when the feedback carried none.
func improvementArea(analysis types.AnalysisResult) string {
	if len(analysis.Improvements) > 0 {
		return analysis.Improvements[0].Area
	}
	return "encouragement"
}

// suppressReason maps a history rejection onto a metrics label.
func suppressReason(err error) string {
	switch {
	case errors.Is(err, feedback.ErrDuplicateMessage):
		return "duplicate"
	case errors.Is(err, feedback.ErrTooSimilar):
		return "similar"
	case errors.Is(err, feedback.ErrInputRepeated):
		return "input-repeated"
	case errors.Is(err, feedback.ErrRateLimited):
		return "rate-limited"
	default:
		return "other"
	}
}

// fillerKeywords boosts the filler vocabulary in STT recognition.
func fillerKeywords(detector *transcript.Detector) []types.KeywordBoost {
	vocab := detector.Vocabulary()
	boosts := make([]types.KeywordBoost, 0, len(vocab))
	for _, word := range vocab {
		boosts = append(boosts, types.KeywordBoost{Keyword: word, Boost: fillerKeywordBoost})
	}
	return boosts
}

// sanitizeName converts a display name into a session ID fragment.
func sanitizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
