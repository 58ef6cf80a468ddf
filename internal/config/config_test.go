package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE", "postgres")
	t.Setenv("LEDGER_BACKEND", "postgres")
	t.Setenv("DELIVERY_MODE", "smtp")
	t.Setenv("DISPATCH_INTERVAL", "")
	t.Setenv("DB_USER", "user")
	t.Setenv("DB_PASSWORD", "pass")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_NAME", "mailer")
	t.Setenv("DB_SSLMODE", "disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.Interval)
	assert.Equal(t, "postgres://user:pass@db:5432/mailer?sslmode=disable", cfg.Database.DSN())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("LEDGER_BACKEND", "postgres")
	t.Setenv("DELIVERY_MODE", "mock")
	t.Setenv("DISPATCH_INTERVAL", "250ms")
	t.Setenv("DISPATCH_WORKERS", "3")
	t.Setenv("ROLE_LIMIT_AGENT", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.LedgerBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatch.Interval)
	assert.Equal(t, 3, cfg.Dispatch.Workers)
	assert.Equal(t, 20, cfg.Quota.AgentLimit)
}

func TestLoadRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown store", key: "STORE", val: "mongo"},
		{name: "unknown delivery mode", key: "DELIVERY_MODE", val: "carrier-pigeon"},
		{name: "unparsable interval", key: "DISPATCH_INTERVAL", val: "soon"},
		{name: "zero workers", key: "DISPATCH_WORKERS", val: "0"},
		{name: "non numeric limit", key: "ROLE_LIMIT_MANAGER", val: "lots"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STORE", "memory")
			t.Setenv("LEDGER_BACKEND", "postgres")
			t.Setenv("DELIVERY_MODE", "mock")
			t.Setenv(tc.key, tc.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
