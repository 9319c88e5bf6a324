// Package config holds the host-side knobs for the worker pool and
// sandbox bridge: worker count, batch size, timeouts, and WASI preopen
// directories. Modeled on the teacher's Config/DefaultConfig pattern
// (internal/wasm.Config) and its JSON load path (internal/config.config.go).
package config

import (
	"encoding/json"
	"os"
	"time"
)

// WorkerConfig holds runtime configuration for the worker pool and
// sandbox bridge.
type WorkerConfig struct {
	// WorkerCount is the number of sandbox instances (and worker
	// goroutines) to run. Spec.md §4.D default: 4.
	WorkerCount int `json:"worker_count"`
	// BatchSize is the number of input records partitioned into a single
	// Request. Spec.md §4.E default: 2.
	BatchSize int `json:"batch_size"`
	// RequestChannelSize is the buffer depth of the shared request
	// channel; 0 means unbounded (spec.md §5: "it is unbounded by
	// default").
	RequestChannelSize int `json:"request_channel_size"`
	// DefaultTimeout is carried through config and manifest loading only:
	// neither the runner nor the worker pool applies it, so a caller's
	// Wait is bounded solely by the context the caller passes in.
	DefaultTimeout time.Duration `json:"default_timeout"`
	// PreopenDirs lists host directories mounted read-only into the
	// sandbox, each at the same path inside the guest (default empty).
	PreopenDirs []string `json:"preopen_dirs"`
}

// DefaultWorkerConfig returns the spec-mandated defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		WorkerCount:        4,
		BatchSize:          2,
		RequestChannelSize: 0,
		DefaultTimeout:     30 * time.Second,
		PreopenDirs:        nil,
	}
}

// LoadWorkerConfig reads a WorkerConfig from a JSON file, falling back to
// defaults for any zero field.
func LoadWorkerConfig(path string) (WorkerConfig, error) {
	cfg := DefaultWorkerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 4
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func (c WorkerConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
