// Package experiment reads the YAML file passed to `verdict run --config`.
// The file is read once when a run starts; resumes use the snapshot stored
// on the run.
package experiment

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/verdict/internal/classifier"
	"github.com/JaimeStill/verdict/internal/config"
	"github.com/JaimeStill/verdict/internal/ingest"
)

// Experiment describes one classification run over one source.
type Experiment struct {
	Name       string              `yaml:"name"`
	Source     ingest.Source       `yaml:"source"`
	Classifier classifier.Config   `yaml:"classifier"`
	Engine     config.EngineConfig `yaml:"engine"`
	Evaluation Evaluation          `yaml:"evaluation"`
}

// Evaluation selects how results are aggregated at finalize.
type Evaluation struct {
	Aggregator string `yaml:"aggregator"`
}

// Load reads and validates the experiment at path. A relative source path is
// resolved against the experiment file's directory.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment: %w", err)
	}

	var e Experiment
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("parse experiment %s: %w", path, err)
	}

	if e.Source.Path != "" && !filepath.IsAbs(e.Source.Path) {
		e.Source.Path = filepath.Join(filepath.Dir(path), e.Source.Path)
	}

	if err := e.Finalize(); err != nil {
		return nil, fmt.Errorf("experiment %s: %w", path, err)
	}
	return &e, nil
}

// Finalize fills defaults and validates every section.
func (e *Experiment) Finalize() error {
	if e.Source.Name == "" && e.Name != "" {
		e.Source.Name = e.Name
	}
	if e.Name == "" {
		e.Name = e.Source.Name
	}
	if err := e.Source.Finalize(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := e.Classifier.Finalize(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	return nil
}
