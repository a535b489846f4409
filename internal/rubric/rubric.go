// Package rubric holds the coaching rubric: per-dimension message pools,
// scoring thresholds, and the coach persona. Rubrics load from YAML with a
// validated embedded default, and are served through a thread-safe catalog
// that config reloads can swap atomically.
package rubric

import (
	"fmt"
	"sync"
)

// File is the top-level structure of a rubric YAML file.
//
// Example:
//
//	rubric:
//	  name: "Interview coaching defaults"
//	persona:
//	  name: "Rostrum"
//	  style: "You are an encouraging, direct speech coach."
//	thresholds:
//	  strength: 80
//	  improvement: 70
//	dimensions:
//	  - name: volume
//	    label: "Volume"
//	    strengths: ["Strong, confident volume."]
//	    advice: ["Project your voice a little more."]
type File struct {
	Rubric     Meta           `yaml:"rubric"`
	Persona    Persona        `yaml:"persona"`
	Thresholds Thresholds     `yaml:"thresholds"`
	Dimensions []DimensionDef `yaml:"dimensions"`
}

// Meta holds top-level metadata for a rubric.
type Meta struct {
	// Name is the rubric's display name.
	Name string `yaml:"name"`

	// Description is a free-text summary.
	Description string `yaml:"description"`
}

// Persona configures the coach's voice in generated responses.
type Persona struct {
	// Name is the coach's self-reference in prompts and UI.
	Name string `yaml:"name"`

	// Style is the system-prompt fragment describing tone and approach.
	Style string `yaml:"style"`

	// MaxResponseSentences bounds generated response length.
	MaxResponseSentences int `yaml:"max_response_sentences"`
}

// Thresholds are the score boundaries the aggregation engine cuts on.
// Ordering must satisfy high_priority < medium_priority <= improvement
// <= strength <= 100.
type Thresholds struct {
	// Strength is the minimum score that earns a strength message.
	Strength float64 `yaml:"strength"`

	// Improvement is the score below which a dimension needs advice.
	Improvement float64 `yaml:"improvement"`

	// MediumPriority is the score below which advice is medium priority.
	MediumPriority float64 `yaml:"medium_priority"`

	// HighPriority is the score below which advice is high priority.
	HighPriority float64 `yaml:"high_priority"`
}

// withDefaults fills zero-valued thresholds with the built-in boundaries,
// letting rubric files override only what they care about.
func (t Thresholds) withDefaults() Thresholds {
	if t.Strength == 0 {
		t.Strength = 80
	}
	if t.Improvement == 0 {
		t.Improvement = 70
	}
	if t.MediumPriority == 0 {
		t.MediumPriority = 60
	}
	if t.HighPriority == 0 {
		t.HighPriority = 50
	}
	return t
}

// DimensionDef is the rubric entry for one scored dimension.
type DimensionDef struct {
	// Name is the dimension identifier shared with the analyzers,
	// e.g. "volume" or "eyeContact".
	Name string `yaml:"name"`

	// Label is the human-readable form used in prompts and summaries.
	Label string `yaml:"label"`

	// Strengths is the message pool used when the dimension scores high.
	Strengths []string `yaml:"strengths"`

	// Advice is the message pool used when the dimension needs work.
	Advice []string `yaml:"advice"`
}

// Catalog is a validated, thread-safe rubric lookup. The zero value is empty;
// use NewCatalog or Default. Replace swaps the whole contents atomically,
// which is how configuration reloads apply.
type Catalog struct {
	mu         sync.RWMutex
	persona    Persona
	thresholds Thresholds
	dims       map[string]DimensionDef
	order      []string
}

// NewCatalog validates file and builds a catalog from it.
func NewCatalog(file *File) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(file); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace validates file and swaps the catalog contents in one step.
// On error the previous contents stay in place.
func (c *Catalog) Replace(file *File) error {
	if file == nil {
		return fmt.Errorf("rubric: file must not be nil")
	}
	thresholds := file.Thresholds.withDefaults()
	if err := Validate(file, thresholds); err != nil {
		return fmt.Errorf("rubric: invalid rubric %q: %w", file.Rubric.Name, err)
	}

	dims := make(map[string]DimensionDef, len(file.Dimensions))
	order := make([]string, 0, len(file.Dimensions))
	for _, d := range file.Dimensions {
		dims[d.Name] = d
		order = append(order, d.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.persona = file.Persona
	c.thresholds = thresholds
	c.dims = dims
	c.order = order
	return nil
}

// Dimension looks up the rubric entry for name.
func (c *Catalog) Dimension(name string) (DimensionDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.dims[name]
	return d, ok
}

// Persona returns the configured coach persona.
func (c *Catalog) Persona() Persona {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.persona
}

// Thresholds returns the scoring boundaries.
func (c *Catalog) Thresholds() Thresholds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.thresholds
}

// Names lists the dimension names in rubric file order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
