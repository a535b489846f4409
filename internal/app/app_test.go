package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rostrumlabs/rostrum/internal/app"
	"github.com/rostrumlabs/rostrum/internal/config"
	memorymock "github.com/rostrumlabs/rostrum/pkg/memory/mock"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	// Ephemeral ports so parallel tests do not fight over listeners.
	cfg.Server.IngestAddr = "127.0.0.1:0"
	cfg.Server.AdminAddr = "127.0.0.1:0"
	return cfg
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()

	if _, err := app.New(context.Background(), nil, nil); err == nil {
		t.Fatal("New(nil config) succeeded, want error")
	}
}

func TestNew_WithoutSessionMemory(t *testing.T) {
	t.Parallel()

	// No Postgres DSN configured: the app must come up with memory disabled
	// rather than fail.
	a, err := app.New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_BadRubricPath(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Coach.RubricPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := app.New(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("New() with missing rubric file succeeded, want error")
	}
	if !strings.Contains(err.Error(), "init rubric") {
		t.Errorf("New() error = %q, want rubric init failure", err)
	}
}

func TestNew_WithInjectedArchive(t *testing.T) {
	t.Parallel()

	archive := &memorymock.SessionArchive{}
	index := &memorymock.FeedbackIndex{}

	a, err := app.New(context.Background(), testConfig(), nil,
		app.WithArchive(archive),
		app.WithFeedbackIndex(index),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	// Give the listeners a moment to bind, then trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestApp_ShutdownTwice(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v, want nil no-op", err)
	}
}

func TestApp_ApplyConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	a, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	next := testConfig()
	next.Coach.Persona = "warm, direct debate coach"
	a.ApplyConfig(config.Diff(cfg, next), next)

	// A broken rubric path on reload must keep the previous rubric and not
	// take the app down.
	bad := testConfig()
	bad.Coach.RubricPath = filepath.Join(t.TempDir(), "missing.yaml")
	a.ApplyConfig(config.Diff(next, bad), bad)
}
