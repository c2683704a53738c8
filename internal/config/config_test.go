package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"babycare-backend/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "babycare", cfg.Database.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	assert.Equal(t, "babycare/+/events", cfg.Ingest.Topic)
	assert.Equal(t, "babycare:events", cfg.Ingest.Stream)
	assert.Equal(t, int64(10), cfg.Ingest.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Ingest.PendingInterval)
	assert.Equal(t, time.Minute, cfg.Ingest.ClaimMinIdle)

	assert.True(t, cfg.Push.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Cache.CleanupInterval)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 60*time.Second, cfg.Cache.SnapshotTTL)

	assert.Equal(t, stats.DefaultIdleGap, cfg.Stats.IdleGap)
	assert.Equal(t, stats.DefaultHistogramPeriods, cfg.Stats.HistogramPeriods)
	assert.Equal(t, stats.DefaultCorrelationDays, cfg.Stats.CorrelationDays)
	require.NotNil(t, cfg.Stats.Location)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("MQTT_QOS", "2")
	t.Setenv("INGEST_BATCH_SIZE", "50")
	t.Setenv("INGEST_PENDING_INTERVAL", "5s")
	t.Setenv("CACHE_CLEANUP_INTERVAL", "90")
	t.Setenv("STATS_INTERVAL", "15s")
	t.Setenv("PUSH_ENABLED", "false")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, byte(2), cfg.MQTT.QoS)
	assert.Equal(t, int64(50), cfg.Ingest.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Ingest.PendingInterval)
	assert.Equal(t, 90*time.Second, cfg.Cache.CleanupInterval)
	assert.Equal(t, 15*time.Second, cfg.Worker.Interval)
	assert.False(t, cfg.Push.Enabled)
	assert.Equal(t, time.UTC, cfg.Stats.Location)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	os.Clearenv()
	t.Setenv("INGEST_BATCH_SIZE", "many")
	t.Setenv("CACHE_MAX_ENTRIES", "-3")
	t.Setenv("STATS_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(10), cfg.Ingest.BatchSize)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 30*time.Second, cfg.Worker.Interval)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	os.Clearenv()
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_StatsFile(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "stats.yaml")
	content := "idle_gap: 10m\nhistogram_periods: 6\ncorrelation_weight: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("STATS_CONFIG_FILE", path)
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Stats.IdleGap)
	assert.Equal(t, 6, cfg.Stats.HistogramPeriods)
	assert.Equal(t, 4, cfg.Stats.CorrelationWeight)
	// 未出现的键保持默认
	assert.Equal(t, stats.DefaultHistogramWeight, cfg.Stats.HistogramWeight)
	assert.Equal(t, stats.DefaultCorrelationDays, cfg.Stats.CorrelationDays)
}

func TestLoad_StatsFileErrors(t *testing.T) {
	os.Clearenv()
	t.Setenv("STATS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("idle_gap: [oops"), 0o600))
	t.Setenv("STATS_CONFIG_FILE", bad)
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_InvalidDatabasePort(t *testing.T) {
	os.Clearenv()
	t.Setenv("DB_PORT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid database config")
}
