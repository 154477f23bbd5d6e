package config

import (
	"testing"
	"time"

	"jobtrends/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "jobs", cfg.EnrichedTable)
	assert.Equal(t, 720, cfg.LookbackHours)
	assert.Equal(t, 720*time.Hour, cfg.Lookback())
	assert.Equal(t, "weekly", cfg.Granularity)
	assert.Equal(t, "technology", cfg.AggDimension)
	assert.Equal(t, 25, cfg.WriteChunkSize)
	assert.Equal(t, "trends.aggregate", cfg.TriggerSubject)
	assert.Equal(t, "trends.detail", cfg.DetailSubject)
	assert.Zero(t, cfg.RunInterval)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GRANULARITY", "daily")
	t.Setenv("FORCE_PERIOD", "2025-11-01")
	t.Setenv("AGG_DIMENSION", "both")
	t.Setenv("LOOKBACK_HOURS", "24")
	t.Setenv("MAX_RETRIES", "4")
	t.Setenv("RETRY_DELAY", "2s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "daily", cfg.Granularity)
	assert.Equal(t, "2025-11-01", cfg.ForcePeriod)
	assert.Equal(t, "both", cfg.AggDimension)
	assert.Equal(t, 24*time.Hour, cfg.Lookback())

	policy := cfg.RetryPolicy()
	assert.Equal(t, 4, policy.Attempts)
	assert.Equal(t, 2*time.Second, policy.InitialBackoff)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"chunk above write limit", "WRITE_CHUNK_SIZE", "26"},
		{"unknown granularity", "GRANULARITY", "monthly"},
		{"unknown dimension", "AGG_DIMENSION", "industry"},
		{"zero lookback", "LOOKBACK_HOURS", "0"},
		{"missing postgres dsn", "POSTGRES_DSN", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeInvalidInput))
		})
	}
}
