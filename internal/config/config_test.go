package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full.toml"))
	require.NoError(t, err)

	assert.Equal(t, Config{
		Workers:  2,
		MaxSteps: 500,
		LogLevel: slog.LevelDebug,
		Database: "runs.db",
		Metrics:  true,
	}, cfg)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "partial.toml"))
	require.NoError(t, err)

	want := Default()
	want.MaxSteps = 50
	assert.Equal(t, want, cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		msg  string
	}{
		{"invalid value", "invalid.toml", "workers must be at least 1"},
		{"unknown key", "unknown.toml", "unknown key"},
		{"missing file", "missing.toml", "load config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(filepath.Join("testdata", tt.file))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoad_BadLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scp.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "loud"`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestDefault_Valid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
