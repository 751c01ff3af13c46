package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Second, cfg.ActiveSpeakerInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("MEETSYNC_REGION", "eu-central-1")
	t.Setenv("MEETSYNC_BACKEND_URL", "https://meetings.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", cfg.Region)
	assert.Equal(t, "https://meetings.example.com", cfg.BackendURL)
}

func TestDefaultMatchesLoadWithNoSources(t *testing.T) {
	def := Default()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, def.Region, cfg.Region)
	assert.Equal(t, def.ActiveSpeakerInterval, cfg.ActiveSpeakerInterval)
}
