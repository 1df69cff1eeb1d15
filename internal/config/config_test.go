package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no .env is picked up.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	for _, key := range []string{"DATABASE_URI", "TELEGRAM_TOKEN", "SCHEDULE", "SCAN_PAGE_SIZE", "TIMEZONE", "CHAT_CACHE_SIZE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "@every 1m", cfg.Schedule)
	assert.Equal(t, 100, cfg.ScanPageSize)
	assert.Equal(t, int64(10000), cfg.ChatCacheSize)
	assert.Equal(t, "America/Sao_Paulo", cfg.Location.String())
	assert.Error(t, cfg.RequireDatabase())
	assert.Error(t, cfg.RequireTelegram())
}

func TestLoad_FromEnvFile(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DATABASE_URI", "")
	t.Setenv("SCAN_PAGE_SIZE", "")
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"),
		[]byte("DATABASE_URI=postgres://localhost/ledger\nSCAN_PAGE_SIZE=25\n"), 0o600))
	// godotenv does not override variables that are already set, even empty ones.
	require.NoError(t, os.Unsetenv("DATABASE_URI"))
	require.NoError(t, os.Unsetenv("SCAN_PAGE_SIZE"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/ledger", cfg.DatabaseURI)
	assert.Equal(t, 25, cfg.ScanPageSize)
	assert.NoError(t, cfg.RequireDatabase())
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"SCAN_PAGE_SIZE":  "zero",
		"CHAT_CACHE_SIZE": "-5",
		"TIMEZONE":        "Mars/Olympus",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}
