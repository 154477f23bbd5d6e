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

	assert.Equal(t, "postings.raw", cfg.RawPostingsSubject)
	assert.Equal(t, 100, cfg.LookupChunkSize)
	assert.Equal(t, 10, cfg.LookupConcurrency)
	assert.Equal(t, "new", cfg.ArchivePolicy)
	assert.Equal(t, "us", cfg.HomeCountry)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LOOKUP_CHUNK_SIZE", "25")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY", "1s")
	t.Setenv("OPERATION_TIMEOUT", "3s")
	t.Setenv("ARCHIVE_POLICY", "changed-only")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.LookupChunkSize)
	assert.Equal(t, "changed-only", cfg.ArchivePolicy)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 5, policy.Attempts)
	assert.Equal(t, time.Second, policy.InitialBackoff)
	assert.Equal(t, 3*time.Second, policy.Timeout)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"chunk size above store limit", "LOOKUP_CHUNK_SIZE", "5000"},
		{"zero concurrency", "LOOKUP_CONCURRENCY", "0"},
		{"unknown archive policy", "ARCHIVE_POLICY", "sometimes"},
		{"bad home country", "HOME_COUNTRY", "usa"},
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
