package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.CacheTTL)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, "trade_ingestion", cfg.Kafka.Topic)
	assert.Equal(t, "tradestream-workers", cfg.Kafka.GroupID)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "trade.outcomes", cfg.Redis.Channel)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 2*time.Second, cfg.Worker.RetryDelay)
	assert.Equal(t, 3*time.Second, cfg.Sweep.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
http:
  addr: ":9000"
postgres:
  dsn: "postgres://localhost/trades"
kafka:
  brokers: "kafka-1:9092, kafka-2:9092"
sweep:
  interval: 30s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://localhost/trades", cfg.Postgres.DSN)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.BrokerList())
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, "trade_ingestion", cfg.Kafka.Topic)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRADESTREAM_HTTP_ADDR", ":7777")
	t.Setenv("TRADESTREAM_POSTGRES_DSN", "postgres://env/trades")
	t.Setenv("TRADESTREAM_KAFKA_BROKERS", "broker:9092")
	t.Setenv("TRADESTREAM_REDIS_ADDR", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://env/trades", cfg.Postgres.DSN)
	assert.Equal(t, []string{"broker:9092"}, cfg.Kafka.BrokerList())
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
