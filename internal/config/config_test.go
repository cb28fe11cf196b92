package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinysubs/pkg/address"
	"tinysubs/pkg/hash"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DATABASE_URL", "file:ledger.db")
	t.Setenv("OWNER_ADDRESS", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, address.MustParse("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"), cfg.Owner)
	assert.Equal(t, uint64(250), cfg.PlatformFeeBPS)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 300, cfg.RateLimitPerMinute)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("PLATFORM_FEE_BPS", "1000")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, uint64(1000), cfg.PlatformFeeBPS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadErrors(t *testing.T) {
	setRequired(t)
	t.Setenv("OWNER_ADDRESS", "alice")
	_, err := Load()
	assert.ErrorContains(t, err, "OWNER_ADDRESS")

	setRequired(t)
	t.Setenv("PLATFORM_FEE_BPS", "-1")
	_, err = Load()
	assert.ErrorContains(t, err, "PLATFORM_FEE_BPS")

	setRequired(t)
	t.Setenv("PLATFORM_FEE_BPS", "")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRejectsPlaintextMetricsPassword(t *testing.T) {
	setRequired(t)
	t.Setenv("METRICS_PASSWORD_HASH", "hunter2")
	_, err := Load()
	assert.ErrorContains(t, err, "METRICS_PASSWORD_HASH")

	h, err := hash.HashPassword("hunter2")
	require.NoError(t, err)
	t.Setenv("METRICS_PASSWORD_HASH", h)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, h, cfg.MetricsPasswordHash)
}
