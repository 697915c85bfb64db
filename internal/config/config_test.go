package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadExpandsEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COURTSIDE_TEST_DB", filepath.Join(dir, "nested", "test.db"))
	t.Setenv("COURTSIDE_TEST_TOKEN", "secret-token")

	path := writeConfig(t, `
database:
  path: ${COURTSIDE_TEST_DB}
telegram:
  enabled: true
  bot_token: ${COURTSIDE_TEST_TOKEN}
scheduling:
  timezone: UTC
  invite_ttl_hours: 12
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "nested", "test.db"), cfg.Database.Path)
	assert.DirExists(t, filepath.Join(dir, "nested"))
	assert.Equal(t, "secret-token", cfg.Telegram.BotToken)
	assert.Equal(t, filepath.Join(dir, "nested", "backups"), cfg.Backup.StoragePath)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 8090, cfg.Monitoring.HealthCheckPort)
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)

	assert.Equal(t, 12*time.Hour, cfg.InviteTTL())
	assert.Equal(t, 366, cfg.RecurrenceHardCap())
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, 100, cfg.SweepBatchSize())
	assert.Equal(t, time.Duration(0), cfg.ProfileCacheTTL())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	path := writeConfig(t, `
database:
  path: `+filepath.Join(t.TempDir(), "x.db")+`
scheduling:
  timezone: Mars/Olympus_Mons
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCalendarHoursAndRateLimit(t *testing.T) {
	var cfg Config
	first, last := cfg.CalendarHours()
	assert.Equal(t, 0, first)
	assert.Equal(t, 23, last)

	cfg.Scheduling.CalendarFirstHour = 7
	cfg.Scheduling.CalendarLastHour = 22
	first, last = cfg.CalendarHours()
	assert.Equal(t, 7, first)
	assert.Equal(t, 22, last)

	rps, burst := cfg.RateLimit()
	assert.Zero(t, rps)
	assert.Zero(t, burst)

	cfg.HTTP.RateLimitRPS = 5
	rps, burst = cfg.RateLimit()
	assert.Equal(t, 5.0, rps)
	assert.Equal(t, 11, burst)
}
