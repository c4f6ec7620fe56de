package app

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PlanName   string
	InputPath  string // YAML or JSON; empty means a null input
	OutputPath string // defaults to InputPath + ConvertedSuffix
	PlanPaths  []string

	LogFormat         string
	LogLevel          string
	StatusPort        int
	WorkerCount       int
	MaxWorkersPerNuma int
	MetricsNamespace  string
}

// ConvertedSuffix is appended to the input path to name the result file.
const ConvertedSuffix = ".converted"

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PlanName == "" {
		return nil, errors.New("a plan name is required")
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.MaxWorkersPerNuma < 1 {
		return nil, fmt.Errorf("max workers per NUMA node must be at least 1, got %d", cfg.MaxWorkersPerNuma)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("status port %d is out of range", cfg.StatusPort)
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format '%s': must be 'text' or 'json'", cfg.LogFormat)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	if cfg.OutputPath == "" && cfg.InputPath != "" {
		cfg.OutputPath = cfg.InputPath + ConvertedSuffix
	}
	return &cfg, nil
}
