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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: "postgres://localhost/db"
kafka:
  brokers: ["k1:9092", "k2:9092"]
gateway:
  mode: outbox
orchestrator:
  cooldown: 3s
  stale_after: 1m
  streaming_base: "rtmp://media/live"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/db", cfg.Postgres.DSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, GatewayOutbox, cfg.Gateway.Mode)
	assert.Equal(t, 3*time.Second, cfg.Orchestrator.Cooldown)
	assert.Equal(t, time.Minute, cfg.Orchestrator.StaleAfter)
	assert.Equal(t, "rtmp://media/live", cfg.Orchestrator.StreamingBase)

	// defaults
	assert.Equal(t, ":8002", cfg.HTTP.Addr)
	assert.Equal(t, "worker-commands", cfg.Kafka.CommandTopic)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.WatchInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: "postgres://localhost/db"
gateway:
  endpoint: "http://worker:8003"
orchestrator:
  cooldown: 3s
`)
	t.Setenv("COOLDOWN", "45s")
	t.Setenv("KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Orchestrator.Cooldown)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoadConfig_DefaultPathIsOptional(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://env/db")
	t.Setenv("WORKER_ENDPOINT", "http://worker:8003")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Postgres.DSN)
	assert.Equal(t, GatewayHTTP, cfg.Gateway.Mode)
	assert.Equal(t, 15*time.Second, cfg.Orchestrator.Cooldown)
}

func TestLoadConfig_ExplicitPathMustExist(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, `
gateway:
  mode: carrier-pigeon
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.dsn is required")
	assert.Contains(t, err.Error(), `unknown gateway.mode "carrier-pigeon"`)
}

func TestValidate_KafkaModesNeedBrokers(t *testing.T) {
	cfg := &Config{}
	cfg.Postgres.DSN = "postgres://localhost/db"
	cfg.Gateway.Mode = GatewayKafka

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.brokers is required in kafka mode")

	cfg.Kafka.Brokers = []string{"k:9092"}
	assert.NoError(t, cfg.Validate())
}
