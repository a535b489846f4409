package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider,
// analysis, and network changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CoachChanged is true if any coach field below changed.
	CoachChanged bool
	Coach        CoachDiff

	// RubricPathChanged signals the rubric file should be reloaded.
	RubricPathChanged bool

	// FeedbackChanged is true if any dedupe or throttle knob changed.
	FeedbackChanged bool
}

// CoachDiff describes what changed in the coach block between two configs.
type CoachDiff struct {
	PersonaChanged     bool
	VoiceChanged       bool
	MaxTurnsChanged    bool
	TemperatureChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Coach
	d.Coach = diffCoach(&old.Coach, &new.Coach)
	d.CoachChanged = d.Coach.PersonaChanged || d.Coach.VoiceChanged ||
		d.Coach.MaxTurnsChanged || d.Coach.TemperatureChanged

	// Rubric
	if old.Coach.RubricPath != new.Coach.RubricPath {
		d.RubricPathChanged = true
	}

	// Feedback throttling
	if old.Feedback != new.Feedback {
		d.FeedbackChanged = true
	}

	return d
}

// diffCoach compares two coach configs.
func diffCoach(old, new *CoachConfig) CoachDiff {
	cd := CoachDiff{}

	if old.Persona != new.Persona {
		cd.PersonaChanged = true
	}
	if old.Voice != new.Voice {
		cd.VoiceChanged = true
	}
	if old.MaxTurns != new.MaxTurns {
		cd.MaxTurnsChanged = true
	}
	if old.Temperature != new.Temperature {
		cd.TemperatureChanged = true
	}

	return cd
}
