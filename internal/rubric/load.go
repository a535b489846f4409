package rubric

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// LoadFile reads and parses a rubric YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rubric: open rubric file %q: %w", path, err)
	}
	defer f.Close()

	rf, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("rubric: parse rubric file %q: %w", path, err)
	}
	return rf, nil
}

// LoadFromReader parses rubric YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadFromReader(r io.Reader) (*File, error) {
	var rf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown top-level keys to catch typos
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("rubric: decode rubric yaml: %w", err)
	}
	return &rf, nil
}

// DefaultFile parses the embedded default rubric into a fresh [File], for
// callers that overlay configured values before building a catalog.
func DefaultFile() (*File, error) {
	rf, err := LoadFromReader(bytes.NewReader(defaultsYAML))
	if err != nil {
		return nil, fmt.Errorf("rubric: embedded defaults: %w", err)
	}
	return rf, nil
}

// Default builds a catalog from the embedded default rubric.
func Default() (*Catalog, error) {
	rf, err := DefaultFile()
	if err != nil {
		return nil, err
	}
	return NewCatalog(rf)
}
