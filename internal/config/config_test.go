package config_test

import (
	"testing"
	"time"

	"github.com/alkime/onboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "onboard.db", cfg.DBPath)
	assert.Equal(t, 800*time.Millisecond, cfg.ThinkDelay)
	assert.Equal(t, 120*time.Millisecond, cfg.WordInterval)
	assert.Equal(t, "alloy", cfg.TTSVoice)
	assert.Empty(t, cfg.FlowFile)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("THINK_DELAY", "2s")
	t.Setenv("DB_PATH", "/tmp/flows.db")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.ThinkDelay)
	assert.Equal(t, "/tmp/flows.db", cfg.DBPath)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("THINK_DELAY", "soon")

	_, err := config.LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment variables")
}

func TestBuildCSP(t *testing.T) {
	strict := config.BuildCSP("strict")
	assert.Contains(t, strict, "object-src 'none'")
	assert.NotContains(t, strict, "unsafe-inline'; img-src")

	relaxed := config.BuildCSP("relaxed")
	assert.Contains(t, relaxed, "script-src 'self' 'unsafe-inline'")
}
