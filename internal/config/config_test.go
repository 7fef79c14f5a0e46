package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 1500*time.Millisecond, cfg.Redis.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.Inventory.ReservationTTL)
	assert.Equal(t, 20*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, "NGN", cfg.Payment.Currency)
	assert.Equal(t, 168*time.Hour, cfg.Fees.HoldPeriod)

	buyer, err := cfg.Fees.Buyer()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.5").Equal(buyer.ProcessingFeePct))

	payout, err := cfg.Fees.Payout()
	require.NoError(t, err)
	assert.Equal(t, 100, payout.FreeTicketThreshold)
	assert.True(t, decimal.NewFromInt(5).Equal(payout.PlatformFeePct))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://ti3ckets.com,https://admin.ti3ckets.com")
	t.Setenv("PLATFORM_FEE_PCT", "7.5")
	t.Setenv("RESERVATION_TTL", "5m")
	t.Setenv("CACHE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://ti3ckets.com", "https://admin.ti3ckets.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Inventory.ReservationTTL)
	assert.Equal(t, "memory", cfg.Redis.CacheBackend)

	buyer, err := cfg.Fees.Buyer()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7.5").Equal(buyer.PlatformFeePct))
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7070"
fees:
  free_ticket_threshold: 50
  minimum_payout: "2500.00"
payment:
  currency: GHS
`), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "GHS", cfg.Payment.Currency)

	minimum, err := cfg.Fees.Minimum()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2500").Equal(minimum))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad money", key: "PROCESSING_FEE_FIXED", val: "ten"},
		{name: "negative money", key: "MINIMUM_PAYOUT", val: "-1"},
		{name: "short signing secret", key: "TICKET_SIGNING_SECRET", val: "short"},
		{name: "unknown cache backend", key: "CACHE_BACKEND", val: "memcached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_PATH", "")
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestParseEnvFile(t *testing.T) {
	t.Setenv("TI3_ALREADY_SET", "keep")
	os.Unsetenv("TI3_PLAIN")
	os.Unsetenv("TI3_QUOTED")
	os.Unsetenv("TI3_EXPORTED")
	t.Cleanup(func() {
		os.Unsetenv("TI3_PLAIN")
		os.Unsetenv("TI3_QUOTED")
		os.Unsetenv("TI3_EXPORTED")
	})

	input := "\ufeff# comment\nTI3_PLAIN=value\nTI3_QUOTED=\"with spaces\"\nexport TI3_EXPORTED='x'\nTI3_ALREADY_SET=override\nnot a pair\n"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, parseEnvFile(logger, strings.NewReader(input)))

	assert.Equal(t, "value", os.Getenv("TI3_PLAIN"))
	assert.Equal(t, "with spaces", os.Getenv("TI3_QUOTED"))
	assert.Equal(t, "x", os.Getenv("TI3_EXPORTED"))
	assert.Equal(t, "keep", os.Getenv("TI3_ALREADY_SET"))
}
