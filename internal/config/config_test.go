package config

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("UPLOAD_DIR", "")
	t.Setenv("CLEANUP_MODE", "")

	cfg := Load()
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, "uploads", cfg.UploadDir)
	require.Equal(t, "direct", cfg.CleanupMode)
	require.Equal(t, 12*time.Hour, cfg.SessionTTL)
	require.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("MAX_UPLOAD_MB", "3")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,,")

	cfg := Load()
	require.True(t, cfg.Production())
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, 3, cfg.MaxUploadMB)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("COOKIE_SECURE", "maybe")
	t.Setenv("MAX_UPLOAD_MB", "lots")

	cfg := Load()
	require.Equal(t, 12*time.Hour, cfg.SessionTTL)
	require.False(t, cfg.CookieSecure)
	require.Equal(t, 10, cfg.MaxUploadMB)
}

func TestLoggerLevel(t *testing.T) {
	cfg := App{LogLevel: "warn"}
	log := cfg.Logger()
	require.False(t, log.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, log.Enabled(context.Background(), slog.LevelWarn))

	cfg.LogLevel = "chatty"
	require.True(t, cfg.Logger().Enabled(context.Background(), slog.LevelInfo))
}
