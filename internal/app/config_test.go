package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8444", cfg.AppAddr)
	assert.Equal(t, 100, cfg.MaxConcurrent)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("ARKIVO_STORE_BACKEND", "sqlite")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsMemoryInProduction(t *testing.T) {
	t.Setenv("ARKIVO_APP_ENV", "production")
	t.Setenv("ARKIVO_STORE_BACKEND", "memory")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigMemoryBackendInDevelopment(t *testing.T) {
	t.Setenv("ARKIVO_STORE_BACKEND", "memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreBackend)
}
