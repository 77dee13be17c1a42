package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "a-secret-that-is-at-least-32-characters-long")
	t.Setenv("DB_URL", "postgres://localhost/auction")
}

func TestValidateEnvSucceedsWithDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := ValidateEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.CacheAddr)
	assert.Equal(t, 15, cfg.RosterSize)
	assert.Equal(t, 3, cfg.MinParticipants)
}

func TestValidateEnvRejectsMissingJWTSecret(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/auction")

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestValidateEnvRejectsShortJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")
	t.Setenv("DB_URL", "postgres://localhost/auction")

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestValidateEnvRejectsInvalidCacheAddr(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CACHE_ADDR", "not-a-host-port")

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_ADDR must be in format")
}

func TestValidateEnvRelaxedRoomModeUsesRelaxedRosterSize(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ROOM_MODE_RELAXED", "true")

	cfg, err := ValidateEnv()
	require.NoError(t, err)
	assert.True(t, cfg.RoomMode)
	assert.Equal(t, 11, cfg.RosterSize)
}

func TestValidateEnvAggregatesMultipleErrors(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
	assert.Contains(t, err.Error(), "PORT must be a valid port number")
	assert.Contains(t, err.Error(), "DB_URL is required")
}

func TestRedactSecretShowsOnlyPrefix(t *testing.T) {
	assert.Equal(t, "***", RedactSecret("short"))
	assert.Equal(t, "12345678***", RedactSecret("123456789012"))
}
