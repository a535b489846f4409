package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/rostrumlabs/rostrum/internal/mcp"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"deepgram", "whisper", "whisper-native"},
	"tts":        {"elevenlabs", "coqui"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
	"vad":        {"energy"},
	"pose":       {"wspose"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
// Called by [LoadFromReader] before [Validate].
func ApplyDefaults(cfg *Config) {
	if cfg.Server.IngestAddr == "" {
		cfg.Server.IngestAddr = ":8080"
	}
	if cfg.Server.AdminAddr == "" {
		cfg.Server.AdminAddr = ":9090"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Analysis.Voice.Alpha == 0 {
		cfg.Analysis.Voice.Alpha = 0.3
	}
	if cfg.Analysis.Voice.PitchMinHz == 0 {
		cfg.Analysis.Voice.PitchMinHz = 50
	}
	if cfg.Analysis.Voice.PitchMaxHz == 0 {
		cfg.Analysis.Voice.PitchMaxHz = 500
	}
	if cfg.Analysis.Vision.IntervalMs == 0 {
		cfg.Analysis.Vision.IntervalMs = 100
	}
	if cfg.Analysis.Vision.Alpha == 0 {
		cfg.Analysis.Vision.Alpha = 0.3
	}
	if cfg.Analysis.RespondCooldownMs == 0 {
		cfg.Analysis.RespondCooldownMs = 2000
	}

	if cfg.Feedback.HistoryLimit == 0 {
		cfg.Feedback.HistoryLimit = 200
	}
	if cfg.Feedback.OverlapLimit == 0 {
		cfg.Feedback.OverlapLimit = 0.8
	}
	if cfg.Feedback.RepeatWindowS == 0 {
		cfg.Feedback.RepeatWindowS = 5
	}
	if cfg.Feedback.RateCap == 0 {
		cfg.Feedback.RateCap = 3
	}
	if cfg.Feedback.RateWindowS == 0 {
		cfg.Feedback.RateWindowS = 10
	}

	if cfg.Coach.MaxTurns == 0 {
		cfg.Coach.MaxTurns = 6
	}
	if cfg.Coach.Temperature == 0 {
		cfg.Coach.Temperature = 0.7
	}

	if cfg.Memory.ConsolidateIntervalS == 0 {
		cfg.Memory.ConsolidateIntervalS = 30
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions == 0 {
		cfg.Memory.EmbeddingDimensions = 1536
	}

	if cfg.MCP.Enabled && cfg.MCP.Transport == "" {
		cfg.MCP.Transport = mcp.TransportStreamableHTTP
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = "/mcp"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation and fallback shape checks.
	providerKinds := []struct {
		kind  string
		entry *ProviderEntry
	}{
		{"stt", &cfg.Providers.STT},
		{"tts", &cfg.Providers.TTS},
		{"llm", &cfg.Providers.LLM},
		{"embeddings", &cfg.Providers.Embeddings},
		{"vad", &cfg.Providers.VAD},
		{"pose", &cfg.Providers.Pose},
	}
	for _, pk := range providerKinds {
		validateProviderName(pk.kind, pk.entry.Name)
		for i, fb := range pk.entry.Fallbacks {
			prefix := fmt.Sprintf("providers.%s.fallbacks[%d]", pk.kind, i)
			if fb.Name == "" {
				errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			} else {
				validateProviderName(pk.kind, fb.Name)
			}
			if len(fb.Fallbacks) > 0 {
				errs = append(errs, fmt.Errorf("%s must not declare nested fallbacks", prefix))
			}
		}
	}

	// Provider availability warnings
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; presenter speech will not be transcribed")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; the coach will not be able to generate responses")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; coach feedback will be text-only")
	}

	// Embeddings ↔ memory dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 1536")
	}

	// Memory availability
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; session archive and cross-session recall will not be available")
	}

	// Analysis
	if a := cfg.Analysis.Voice.Alpha; a < 0 || a > 1 {
		errs = append(errs, fmt.Errorf("analysis.voice.alpha %.2f is out of range (0, 1]", a))
	}
	if a := cfg.Analysis.Vision.Alpha; a < 0 || a > 1 {
		errs = append(errs, fmt.Errorf("analysis.vision.alpha %.2f is out of range (0, 1]", a))
	}
	if lo, hi := cfg.Analysis.Voice.PitchMinHz, cfg.Analysis.Voice.PitchMaxHz; lo >= hi {
		errs = append(errs, fmt.Errorf("analysis.voice pitch range [%.0f, %.0f] is inverted", lo, hi))
	}
	if cfg.Analysis.Vision.IntervalMs < 0 {
		errs = append(errs, fmt.Errorf("analysis.vision.interval_ms %d must not be negative", cfg.Analysis.Vision.IntervalMs))
	}
	if cfg.Analysis.RespondCooldownMs < 0 {
		errs = append(errs, fmt.Errorf("analysis.respond_cooldown_ms %d must not be negative", cfg.Analysis.RespondCooldownMs))
	}

	// Feedback
	if v := cfg.Feedback.OverlapLimit; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("feedback.overlap_limit %.2f is out of range [0, 1]", v))
	}
	if cfg.Feedback.RepeatWindowS < 0 {
		errs = append(errs, fmt.Errorf("feedback.repeat_window_s %d must not be negative", cfg.Feedback.RepeatWindowS))
	}
	if cfg.Feedback.RateCap < 0 || cfg.Feedback.RateWindowS < 0 {
		errs = append(errs, fmt.Errorf("feedback rate cap %d per %ds must not be negative", cfg.Feedback.RateCap, cfg.Feedback.RateWindowS))
	}

	// Coach
	if sf := cfg.Coach.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("coach.voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}
	if ps := cfg.Coach.Voice.PitchShift; ps < -10 || ps > 10 {
		errs = append(errs, fmt.Errorf("coach.voice.pitch_shift %.2f is out of range [-10, 10]", ps))
	}
	if tm := cfg.Coach.Temperature; tm < 0 || tm > 2 {
		errs = append(errs, fmt.Errorf("coach.temperature %.2f is out of range [0, 2]", tm))
	}
	if cfg.Coach.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("coach.max_turns %d must not be negative", cfg.Coach.MaxTurns))
	}

	// Coach voice provider ↔ TTS provider cross-validation
	if vp := cfg.Coach.Voice.Provider; vp != "" && cfg.Providers.TTS.Name != "" && vp != cfg.Providers.TTS.Name {
		matchesFallback := false
		for _, fb := range cfg.Providers.TTS.Fallbacks {
			if fb.Name == vp {
				matchesFallback = true
				break
			}
		}
		if !matchesFallback {
			slog.Warn("coach voice provider does not match any configured TTS provider",
				"voice_provider", vp,
				"tts_provider", cfg.Providers.TTS.Name,
			)
		}
	}

	// MCP
	if cfg.MCP.Enabled {
		if cfg.MCP.Transport != "" && !cfg.MCP.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("mcp.transport %q is invalid; valid values: stdio, streamable-http", cfg.MCP.Transport))
		}
		if cfg.MCP.Transport == mcp.TransportStreamableHTTP && cfg.MCP.Path == "" {
			errs = append(errs, fmt.Errorf("mcp.path is required when transport is streamable-http"))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
