package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PlanAndInput(t *testing.T) {
	t.Setenv(WorkersEnv, "")

	// --- Arrange ---
	out := &bytes.Buffer{}

	// --- Act ---
	cfg, shouldExit, err := Parse([]string{"-plans", "plans, more", "-log-level", "DEBUG", "groth16", "proof.json"}, out)

	// --- Assert ---
	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, "groth16", cfg.PlanName)
	assert.Equal(t, "proof.json", cfg.InputPath)
	assert.Equal(t, "proof.json.converted", cfg.OutputPath)
	assert.Equal(t, []string{"plans", "more"}, cfg.PlanPaths)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1, cfg.WorkerCount)
	assert.Equal(t, 2, cfg.MaxWorkersPerNuma)
}

func TestParse_WorkersFromEnvironment(t *testing.T) {
	t.Setenv(WorkersEnv, "6")

	cfg, _, err := Parse([]string{"numa_echo"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.WorkerCount)

	cfg, _, err = Parse([]string{"-workers", "3", "numa_echo"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.WorkerCount, "the flag wins over the environment")
}

func TestParse_InvalidWorkersEnvironment(t *testing.T) {
	t.Setenv(WorkersEnv, "many")

	_, _, err := Parse([]string{"numa_echo"}, &bytes.Buffer{})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, WorkersEnv)
}

func TestParse_SettingsFile(t *testing.T) {
	t.Setenv(WorkersEnv, "")

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 5\nlog_format: json\nstatus_port: 9100\n"), 0o600))

	// --- Act ---
	cfg, _, err := Parse([]string{"-config", path, "-status-port", "9200", "numa_echo"}, &bytes.Buffer{})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 9200, cfg.StatusPort)
}

func TestParse_ExitsAndErrors(t *testing.T) {
	t.Setenv(WorkersEnv, "")

	testCases := []struct {
		name       string
		args       []string
		shouldExit bool
		wantCode   int
		wantMsg    string
		wantOut    string
	}{
		{name: "help", args: []string{"-h"}, shouldExit: true, wantOut: "Usage:"},
		{name: "no plan", args: []string{}, shouldExit: true, wantOut: "PLAN [INPUT_FILE]"},
		{name: "unknown flag", args: []string{"-nope", "p"}, wantCode: 2, wantMsg: "flag provided but not defined"},
		{name: "too many args", args: []string{"p", "in", "extra"}, wantCode: 2, wantMsg: "too many arguments: extra"},
		{name: "bad format", args: []string{"-log-format", "xml", "p"}, wantCode: 2, wantMsg: "invalid log format"},
		{name: "bad workers", args: []string{"-workers", "0", "p"}, wantCode: 2, wantMsg: "worker count"},
		{name: "missing settings", args: []string{"-config", "/nonexistent/settings.yaml", "p"}, wantCode: 2, wantMsg: "read settings"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			out := &bytes.Buffer{}

			// --- Act ---
			cfg, shouldExit, err := Parse(tc.args, out)

			// --- Assert ---
			assert.Nil(t, cfg)
			assert.Equal(t, tc.shouldExit, shouldExit)
			if tc.wantOut != "" {
				assert.Contains(t, out.String(), tc.wantOut)
			}
			if tc.wantCode == 0 {
				require.NoError(t, err)
				return
			}
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, tc.wantCode, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}

func TestParseWatch(t *testing.T) {
	t.Parallel()

	// --- Act ---
	opts, shouldExit, err := ParseWatch([]string{"-url", "http://node-3:9100", "-timeout", "2s", "-insecure"}, &bytes.Buffer{})

	// --- Assert ---
	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, "http://node-3:9100", opts.URL)
	assert.Equal(t, 2*time.Second, opts.ConnectTimeout)
	assert.True(t, opts.InsecureSkipVerify)
}

func TestParseWatch_Errors(t *testing.T) {
	t.Parallel()

	_, shouldExit, err := ParseWatch([]string{"-h"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, shouldExit)

	_, _, err = ParseWatch([]string{"extra"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected arguments")

	_, _, err = ParseWatch([]string{"-timeout", "0s"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")
}
