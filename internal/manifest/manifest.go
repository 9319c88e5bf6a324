// Package manifest is the declarative pipeline manifest SPEC_FULL.md §6
// adds on top of the original spec: a YAML file naming the worker pool's
// tuning knobs and which registered pipelines (internal/pipeline.Register)
// an embedder's deployment wants available, so pipeline wiring can live
// in a config file instead of Go source for simple deployments. Parsed
// with gopkg.in/yaml.v3, following the same load-then-validate shape the
// teacher uses for its JSON internal/config.
package manifest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/distilled/internal/config"
	"github.com/oriys/distilled/internal/pipeline"
)

// PipelineKind distinguishes a manifest entry's expected descriptor
// shape, used only for validation — the actual typed Descriptor still
// has to be registered from Go code via pipeline.Register, since a YAML
// file cannot carry Go generic type parameters.
type PipelineKind string

const (
	KindMap       PipelineKind = "map"
	KindMapReduce PipelineKind = "reduce"
)

// PipelineEntry names one pipeline the manifest expects to find in the
// pipeline registry.
type PipelineEntry struct {
	Name string       `yaml:"name"`
	Kind PipelineKind `yaml:"kind"`
}

// Manifest is the top-level YAML document.
type Manifest struct {
	Workers        int             `yaml:"workers"`
	BatchSize      int             `yaml:"batchSize"`
	DefaultTimeout time.Duration   `yaml:"defaultTimeout"`
	PreopenDirs    []string        `yaml:"preopenDirs"`
	Pipelines      []PipelineEntry `yaml:"pipelines"`
}

// Load reads and parses a Manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks the manifest is internally consistent: positive
// worker/batch sizes when set, known pipeline kinds, and no duplicate
// pipeline names.
func (m *Manifest) Validate() error {
	if m.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", m.Workers)
	}
	if m.BatchSize < 0 {
		return fmt.Errorf("batchSize must not be negative, got %d", m.BatchSize)
	}
	seen := make(map[string]struct{}, len(m.Pipelines))
	for _, p := range m.Pipelines {
		if p.Name == "" {
			return fmt.Errorf("pipeline entry with an empty name")
		}
		if p.Kind != KindMap && p.Kind != KindMapReduce {
			return fmt.Errorf("pipeline %q: unknown kind %q (want %q or %q)", p.Name, p.Kind, KindMap, KindMapReduce)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("pipeline %q listed more than once", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// WorkerConfig translates the manifest's tuning knobs into a
// config.WorkerConfig, falling back to spec.md defaults for any unset
// (zero) field.
func (m *Manifest) WorkerConfig() config.WorkerConfig {
	cfg := config.DefaultWorkerConfig()
	if m.Workers > 0 {
		cfg.WorkerCount = m.Workers
	}
	if m.BatchSize > 0 {
		cfg.BatchSize = m.BatchSize
	}
	if m.DefaultTimeout > 0 {
		cfg.DefaultTimeout = m.DefaultTimeout
	}
	if len(m.PreopenDirs) > 0 {
		cfg.PreopenDirs = m.PreopenDirs
	}
	return cfg
}

// ResolvePipelines checks that every pipeline named in the manifest is
// present in the registry (internal/pipeline.Register), returning an
// error naming the first one that is missing. It does not type-check
// In/Out — that still happens at the pipeline.Lookup call site, which
// knows the concrete types.
func (m *Manifest) ResolvePipelines() error {
	registered := make(map[string]struct{})
	for _, name := range pipeline.Names() {
		registered[name] = struct{}{}
	}
	for _, p := range m.Pipelines {
		if _, ok := registered[p.Name]; !ok {
			return fmt.Errorf("manifest names pipeline %q, but nothing is registered under that name", p.Name)
		}
	}
	return nil
}
