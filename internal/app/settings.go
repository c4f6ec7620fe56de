package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings models the optional YAML settings file. Every key mirrors a
// command-line flag; flags given explicitly win over the file.
type Settings struct {
	Plans             []string `yaml:"plans,omitempty"`
	Workers           *int     `yaml:"workers,omitempty"`
	MaxWorkersPerNuma *int     `yaml:"max_workers_per_numa,omitempty"`
	LogLevel          string   `yaml:"log_level,omitempty"`
	LogFormat         string   `yaml:"log_format,omitempty"`
	StatusPort        *int     `yaml:"status_port,omitempty"`
	Output            string   `yaml:"output,omitempty"`
	Metrics           struct {
		Namespace string `yaml:"namespace,omitempty"`
	} `yaml:"metrics,omitempty"`
}

// LoadSettings reads a settings file. Unknown keys are rejected so typos do
// not go unnoticed. An empty file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return &s, nil
}

// ApplyTo copies every value present in the file into cfg, except for the
// flags named in explicit.
func (s *Settings) ApplyTo(cfg *Config, explicit map[string]bool) {
	if len(s.Plans) > 0 && !explicit["plans"] {
		cfg.PlanPaths = append([]string(nil), s.Plans...)
	}
	if s.Workers != nil && !explicit["workers"] {
		cfg.WorkerCount = *s.Workers
	}
	if s.MaxWorkersPerNuma != nil && !explicit["max-workers-per-numa"] {
		cfg.MaxWorkersPerNuma = *s.MaxWorkersPerNuma
	}
	if s.LogLevel != "" && !explicit["log-level"] {
		cfg.LogLevel = s.LogLevel
	}
	if s.LogFormat != "" && !explicit["log-format"] {
		cfg.LogFormat = s.LogFormat
	}
	if s.StatusPort != nil && !explicit["status-port"] {
		cfg.StatusPort = *s.StatusPort
	}
	if s.Output != "" && !explicit["output"] {
		cfg.OutputPath = s.Output
	}
	if s.Metrics.Namespace != "" {
		cfg.MetricsNamespace = s.Metrics.Namespace
	}
}
