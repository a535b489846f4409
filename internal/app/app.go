// Package app wires the Rostrum subsystems into a running coaching server:
// the capture ingest endpoint, the analysis and feedback pipeline, session
// memory, the MCP tool surface, and the admin endpoints.
//
// [New] builds the long-lived pieces from configuration, [App.Run] serves
// until the context is cancelled, and [App.Shutdown] tears everything down.
// Per-session state (analyzers, provider sessions, the coach engine) is owned
// by the [SessionManager] and lives only while a capture client is connected.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rostrumlabs/rostrum/internal/config"
	"github.com/rostrumlabs/rostrum/internal/health"
	"github.com/rostrumlabs/rostrum/internal/mcp"
	"github.com/rostrumlabs/rostrum/internal/observe"
	"github.com/rostrumlabs/rostrum/internal/rubric"
	"github.com/rostrumlabs/rostrum/internal/session"
	"github.com/rostrumlabs/rostrum/pkg/ingest"
	"github.com/rostrumlabs/rostrum/pkg/memory"
	"github.com/rostrumlabs/rostrum/pkg/memory/postgres"
	"github.com/rostrumlabs/rostrum/pkg/provider/embeddings"
	"github.com/rostrumlabs/rostrum/pkg/provider/llm"
	"github.com/rostrumlabs/rostrum/pkg/provider/pose"
	"github.com/rostrumlabs/rostrum/pkg/provider/stt"
	"github.com/rostrumlabs/rostrum/pkg/provider/tts"
	"github.com/rostrumlabs/rostrum/pkg/provider/vad"
)

const (
	// serverDrainTimeout bounds how long the HTTP listeners get to finish
	// in-flight requests once the run context is cancelled.
	serverDrainTimeout = 5 * time.Second

	// sessionStopTimeout bounds the teardown of a session whose capture
	// client disconnected on its own.
	sessionStopTimeout = 10 * time.Second

	// defaultEmbeddingDims matches OpenAI text-embedding-3-small, the most
	// common index shape.
	defaultEmbeddingDims = 1536
)

// Providers carries the external service implementations the pipeline runs
// on. Any field may be nil; the affected stage then runs degraded (no
// transcription without STT, no spoken feedback without TTS, and so on).
type Providers struct {
	STT        stt.Provider
	TTS        tts.Provider
	LLM        llm.Provider
	Embeddings embeddings.Provider
	VAD        vad.Engine
	Pose       pose.Provider
}

// App owns the long-lived subsystems of a Rostrum server.
//
// Create instances with [New], start serving with [App.Run], and stop with
// [App.Shutdown]. All exported methods are safe for concurrent use.
type App struct {
	cfg       *config.Config
	providers *Providers

	catalog   *rubric.Catalog
	guard     *session.ArchiveGuard
	archive   memory.SessionArchive
	index     memory.FeedbackIndex
	stats     *observe.PipelineStats
	metrics   *observe.Metrics
	ingestSrv *ingest.Server
	sessions  *SessionManager
	mcpSrv    *mcp.Server

	mediaHandler http.Handler
	adminHandler http.Handler

	// rawArchive holds an archive injected for tests, consumed by initMemory.
	rawArchive memory.SessionArchive

	// closers are run in order by Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option configures optional [App] behavior, mainly test doubles.
type Option func(*App)

// WithArchive injects a session archive, bypassing the Postgres store the
// configuration would otherwise create. The archive is still wrapped in the
// degradation guard.
func WithArchive(archive memory.SessionArchive) Option {
	return func(a *App) { a.rawArchive = archive }
}

// WithFeedbackIndex injects a feedback vector index, bypassing the Postgres
// store.
func WithFeedbackIndex(index memory.FeedbackIndex) Option {
	return func(a *App) { a.index = index }
}

// WithCatalog injects a pre-built rubric catalog, bypassing the rubric file
// the configuration names.
func WithCatalog(catalog *rubric.Catalog) Option {
	return func(a *App) { a.catalog = catalog }
}

// New builds the application from a validated configuration. Providers may
// be nil or partially filled; missing providers degrade the corresponding
// pipeline stage rather than failing startup.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if providers == nil {
		providers = &Providers{}
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		metrics:   observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}

	// ── 1. coaching rubric ───────────────────────────────────────────────
	if err := a.initRubric(); err != nil {
		return nil, fmt.Errorf("app: init rubric: %w", err)
	}

	// ── 2. session memory ────────────────────────────────────────────────
	if err := a.initMemory(ctx); err != nil {
		return nil, fmt.Errorf("app: init memory: %w", err)
	}

	// ── 3. capture ingest ────────────────────────────────────────────────
	a.stats = observe.NewPipelineStats(0)
	a.ingestSrv = ingest.NewServer()

	// ── 4. session manager ───────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Config:    cfg,
		Providers: providers,
		Catalog:   a.catalog,
		Archive:   a.archive,
		Index:     a.index,
		Stats:     a.stats,
		Metrics:   a.metrics,
	})

	// ── 5. assistant tools ───────────────────────────────────────────────
	if cfg.MCP.Enabled {
		a.mcpSrv = mcp.NewServer(a.sessions)
	}

	// ── 6. HTTP surfaces ─────────────────────────────────────────────────
	a.buildHandlers()

	return a, nil
}

func (a *App) initRubric() error {
	if a.catalog != nil {
		return nil
	}
	file, err := loadRubricFile(a.cfg)
	if err != nil {
		return err
	}
	catalog, err := rubric.NewCatalog(file)
	if err != nil {
		return err
	}
	a.catalog = catalog
	return nil
}

func (a *App) initMemory(ctx context.Context) error {
	raw := a.rawArchive
	if raw == nil {
		dsn := a.cfg.Memory.PostgresDSN
		if dsn == "" {
			slog.Info("no postgres dsn configured, running without session memory")
			return nil
		}
		dims := a.cfg.Memory.EmbeddingDimensions
		if dims <= 0 {
			dims = defaultEmbeddingDims
		}
		store, err := postgres.NewStore(ctx, dsn, dims)
		if err != nil {
			return fmt.Errorf("connect session archive: %w", err)
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		if a.index == nil {
			a.index = store
		}
		raw = store
	}

	// The guard keeps a flaky archive from taking sessions down with it:
	// writes are logged and swallowed, reads degrade to empty results.
	a.guard = session.NewArchiveGuard(raw)
	a.archive = a.guard
	return nil
}

func (a *App) buildHandlers() {
	instrument := observe.Middleware(a.metrics)

	admin := http.NewServeMux()
	var checkers []health.Checker
	if a.guard != nil {
		checkers = append(checkers, health.Checker{
			Name: "archive",
			Check: func(context.Context) error {
				if a.guard.IsDegraded() {
					return errors.New("session archive degraded")
				}
				return nil
			},
		})
	}
	health.New(checkers...).Register(admin)
	admin.Handle("/metrics", promhttp.Handler())
	if a.mcpSrv != nil && a.cfg.MCP.Transport == mcp.TransportStreamableHTTP {
		admin.Handle(a.cfg.MCP.Path, a.mcpSrv.HTTPHandler())
	}

	a.adminHandler = instrument(admin)
	a.mediaHandler = instrument(a.ingestSrv.Handler())
}

// Run serves the media and admin listeners until ctx is cancelled and then
// drains them. A connecting capture client starts a coaching session; its
// disconnect ends it.
func (a *App) Run(ctx context.Context) error {
	a.ingestSrv.OnClient(func(client *ingest.Client) {
		a.handleClient(ctx, client)
	})

	mediaSrv := &http.Server{
		Addr:              a.cfg.Server.IngestAddr,
		Handler:           a.mediaHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	adminSrv := &http.Server{
		Addr:              a.cfg.Server.AdminAddr,
		Handler:           a.adminHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tlsCfg := a.cfg.Server.TLS
		slog.Info("media endpoint listening", "addr", mediaSrv.Addr, "tls", tlsCfg != nil)
		var err error
		if tlsCfg != nil {
			err = mediaSrv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = mediaSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: media server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("admin endpoint listening", "addr", adminSrv.Addr)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: admin server: %w", err)
		}
		return nil
	})

	if a.mcpSrv != nil && a.cfg.MCP.Transport == mcp.TransportStdio {
		g.Go(func() error {
			// An assistant detaching must not take the server down.
			if err := a.mcpSrv.Run(runCtx); err != nil && runCtx.Err() == nil {
				slog.Warn("mcp stdio transport ended", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-runCtx.Done()

		// Stop the session first so its websocket closes; draining would
		// otherwise wait out the timeout on the hijacked connection.
		if a.sessions.IsActive() {
			stopCtx, cancel := context.WithTimeout(context.Background(), sessionStopTimeout)
			if err := a.sessions.Stop(stopCtx); err != nil {
				slog.Warn("stopping session on shutdown failed", "error", err)
			}
			cancel()
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), serverDrainTimeout)
		defer cancel()
		if err := mediaSrv.Shutdown(drainCtx); err != nil {
			_ = mediaSrv.Close()
		}
		if err := adminSrv.Shutdown(drainCtx); err != nil {
			_ = adminSrv.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *App) handleClient(ctx context.Context, client *ingest.Client) {
	if err := a.sessions.Start(ctx, client); err != nil {
		slog.Warn("rejecting capture client", "client_id", client.ID(), "error", err)
		_ = client.Close()
		return
	}

	go func() {
		<-client.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), sessionStopTimeout)
		defer cancel()
		if err := a.sessions.StopClient(stopCtx, client); err != nil {
			slog.Warn("session teardown after disconnect failed",
				"client_id", client.ID(), "error", err)
		}
	}()
}

// Shutdown stops the active session, if any, and closes the app's long-lived
// resources. Safe to call more than once; only the first call does work.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if a.sessions != nil && a.sessions.IsActive() {
			if err := a.sessions.Stop(ctx); err != nil {
				slog.Warn("shutdown: stopping session failed", "error", err)
				firstErr = err
			}
		}

		for _, closer := range a.closers {
			if ctx.Err() != nil {
				slog.Warn("shutdown deadline exceeded, abandoning remaining cleanup")
				break
			}
			if err := closer(); err != nil {
				slog.Warn("shutdown: cleanup failed", "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	})
	return firstErr
}

// ApplyConfig applies a validated configuration change to the running app.
// Rubric and persona changes take effect immediately; voice, feedback gating,
// and analysis tuning are staged and picked up at the next session start.
func (a *App) ApplyConfig(diff config.ConfigDiff, next *config.Config) {
	if diff.RubricPathChanged || diff.Coach.PersonaChanged {
		file, err := loadRubricFile(next)
		if err == nil {
			err = a.catalog.Replace(file)
		}
		if err != nil {
			slog.Error("config reload: rubric rejected, keeping previous", "error", err)
		} else {
			slog.Info("rubric reloaded", "path", next.Coach.RubricPath)
		}
	}
	if diff.FeedbackChanged || diff.Coach.VoiceChanged || diff.Coach.MaxTurnsChanged || diff.Coach.TemperatureChanged {
		slog.Info("coach and feedback settings staged for the next session")
	}
	a.sessions.SetConfig(next)
	a.cfg = next
}

// loadRubricFile reads the configured rubric file, or the embedded defaults
// when none is configured, and overlays the configured persona style.
func loadRubricFile(cfg *config.Config) (*rubric.File, error) {
	var (
		file *rubric.File
		err  error
	)
	if cfg.Coach.RubricPath != "" {
		file, err = rubric.LoadFile(cfg.Coach.RubricPath)
	} else {
		file, err = rubric.DefaultFile()
	}
	if err != nil {
		return nil, err
	}
	if cfg.Coach.Persona != "" {
		file.Persona.Style = cfg.Coach.Persona
	}
	return file, nil
}
