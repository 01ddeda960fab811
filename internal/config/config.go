// Package config loads the typed runtime configuration: defaults, an
// optional YAML file and TRADESTREAM_* environment overrides, in that
// order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the runtime configuration shared by all binaries.
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Log        LogConfig        `mapstructure:"log"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr     string        `mapstructure:"addr"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// PostgresConfig configures the projection, exception and journal stores.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ClickHouseConfig configures the outcome audit store. An empty DSN
// disables auditing.
type ClickHouseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig configures the outcome stream and the API read cache. An
// empty address disables both.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// KafkaConfig configures the candidate topic. Brokers is comma-separated;
// empty means the API submits candidates in process instead.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// Enabled reports whether a Kafka submission path is configured.
func (k KafkaConfig) Enabled() bool {
	return strings.TrimSpace(k.Brokers) != ""
}

// BrokerList splits the comma-separated broker addresses.
func (k KafkaConfig) BrokerList() []string {
	var list []string
	for _, b := range strings.Split(k.Brokers, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			list = append(list, b)
		}
	}
	return list
}

// WorkerConfig configures the processing worker.
type WorkerConfig struct {
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// SweepConfig configures the expiry sweeper.
type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig configures logging. Format is "json" or "console".
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. An explicit path must exist; with an empty
// path a ./config.yaml is used when present and silently skipped when
// not. Environment variables use underscores for nesting, e.g.
// TRADESTREAM_POSTGRES_DSN, TRADESTREAM_KAFKA_BROKERS.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cache_ttl", 5*time.Second)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("clickhouse.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "trade.outcomes")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "trade_ingestion")
	v.SetDefault("kafka.group_id", "tradestream-workers")
	v.SetDefault("worker.retry_delay", 2*time.Second)
	v.SetDefault("sweep.interval", 3*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvPrefix("TRADESTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
