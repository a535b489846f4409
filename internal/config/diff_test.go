package config_test

import (
	"testing"

	"github.com/rostrumlabs/rostrum/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Coach: config.CoachConfig{
			Persona:  "calm mentor",
			MaxTurns: 6,
		},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.CoachChanged {
		t.Error("expected CoachChanged=false for identical configs")
	}
	if d.RubricPathChanged {
		t.Error("expected RubricPathChanged=false for identical configs")
	}
	if d.FeedbackChanged {
		t.Error("expected FeedbackChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_CoachPersonaChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Coach: config.CoachConfig{Persona: "drill sergeant"}}
	new := &config.Config{Coach: config.CoachConfig{Persona: "gentle mentor"}}

	d := config.Diff(old, new)
	if !d.CoachChanged {
		t.Error("expected CoachChanged=true")
	}
	if !d.Coach.PersonaChanged {
		t.Error("expected PersonaChanged=true")
	}
	if d.Coach.VoiceChanged {
		t.Error("expected VoiceChanged=false")
	}
}

func TestDiff_CoachVoiceChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Coach: config.CoachConfig{Voice: config.VoiceConfig{VoiceID: "v1"}},
	}
	new := &config.Config{
		Coach: config.CoachConfig{Voice: config.VoiceConfig{VoiceID: "v2"}},
	}

	d := config.Diff(old, new)
	if !d.CoachChanged {
		t.Error("expected CoachChanged=true")
	}
	if !d.Coach.VoiceChanged {
		t.Error("expected VoiceChanged=true")
	}
	if d.Coach.PersonaChanged {
		t.Error("expected PersonaChanged=false")
	}
}

func TestDiff_CoachTuningChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Coach: config.CoachConfig{MaxTurns: 6, Temperature: 0.7}}
	new := &config.Config{Coach: config.CoachConfig{MaxTurns: 10, Temperature: 0.2}}

	d := config.Diff(old, new)
	if !d.CoachChanged {
		t.Error("expected CoachChanged=true")
	}
	if !d.Coach.MaxTurnsChanged {
		t.Error("expected MaxTurnsChanged=true")
	}
	if !d.Coach.TemperatureChanged {
		t.Error("expected TemperatureChanged=true")
	}
}

func TestDiff_RubricPathChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Coach: config.CoachConfig{RubricPath: "/etc/rostrum/rubric.yaml"}}
	new := &config.Config{Coach: config.CoachConfig{RubricPath: "/etc/rostrum/rubric-v2.yaml"}}

	d := config.Diff(old, new)
	if !d.RubricPathChanged {
		t.Error("expected RubricPathChanged=true")
	}
	// A rubric swap alone is not a coach prompt change.
	if d.Coach.PersonaChanged {
		t.Error("expected PersonaChanged=false")
	}
}

func TestDiff_FeedbackChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Feedback: config.FeedbackConfig{RateCap: 3, RateWindowS: 10}}
	new := &config.Config{Feedback: config.FeedbackConfig{RateCap: 5, RateWindowS: 10}}

	d := config.Diff(old, new)
	if !d.FeedbackChanged {
		t.Error("expected FeedbackChanged=true")
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:   config.ServerConfig{LogLevel: config.LogInfo},
		Coach:    config.CoachConfig{Persona: "p1", RubricPath: "a.yaml"},
		Feedback: config.FeedbackConfig{HistoryLimit: 200},
	}
	new := &config.Config{
		Server:   config.ServerConfig{LogLevel: config.LogWarn},
		Coach:    config.CoachConfig{Persona: "p2", RubricPath: "b.yaml"},
		Feedback: config.FeedbackConfig{HistoryLimit: 50},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.CoachChanged {
		t.Error("expected CoachChanged=true")
	}
	if !d.RubricPathChanged {
		t.Error("expected RubricPathChanged=true")
	}
	if !d.FeedbackChanged {
		t.Error("expected FeedbackChanged=true")
	}
}
