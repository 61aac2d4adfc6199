package main

import (
	"log/slog"
	"testing"

	"github.com/example/go-onnx-infer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, c := range cases {
		got, err := parseLogLevel(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseLogLevel_Unknown(t *testing.T) {
	_, err := parseLogLevel("verbose")
	assert.Error(t, err)
}

func TestRequireConfig_NotLoaded(t *testing.T) {
	activeCfg = config.Config{}

	_, err := requireConfig()
	assert.Error(t, err)
}

func TestRequireConfig_Loaded(t *testing.T) {
	activeCfg = config.Config{Paths: config.PathsConfig{ManifestPath: "models/manifest.json"}}

	cfg, err := requireConfig()
	require.NoError(t, err)
	assert.Equal(t, "models/manifest.json", cfg.Paths.ManifestPath)
}
