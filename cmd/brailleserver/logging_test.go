package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edequartel/BrailleServer/config"
)

func TestSetupLoggerHonorsLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "warn"

	logger := setupLogger(cfg)
	require.NotNil(t, logger)

	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelWarn))
	assert.True(t, logger.Enabled(ctx, slog.LevelError))
}

func TestSetupLoggerFormats(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		cfg := config.DefaultConfig()
		cfg.LogFormat = format
		require.NotNil(t, setupLogger(cfg))
	}
}
