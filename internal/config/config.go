package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const defaultPath = "internal/config/local.yaml"

const (
	GatewayHTTP   = "http"
	GatewayKafka  = "kafka"
	GatewayOutbox = "outbox"
)

// Config структура конфига
type Config struct {
	HTTP struct {
		Addr      string `yaml:"addr" env:"HTTP_ADDR"`
		PublicURL string `yaml:"public_url" env:"PUBLIC_URL"`
	} `yaml:"http"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
		Bucket    string `yaml:"bucket" env:"MINIO_BUCKET"`
		UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	} `yaml:"minio"`

	Kafka struct {
		Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		GroupID      string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
		CommandTopic string   `yaml:"command_topic" env:"COMMAND_TOPIC"`
		ResultTopic  string   `yaml:"result_topic" env:"RESULT_TOPIC"`
	} `yaml:"kafka"`

	Redis struct {
		Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
		Password string        `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int           `yaml:"db" env:"REDIS_DB"`
		Key      string        `yaml:"key" env:"REDIS_REARM_KEY"`
		Poll     time.Duration `yaml:"poll" env:"REDIS_POLL"`
	} `yaml:"redis"`

	Gateway struct {
		Mode     string        `yaml:"mode" env:"GATEWAY_MODE"`
		Endpoint string        `yaml:"endpoint" env:"WORKER_ENDPOINT"`
		Timeout  time.Duration `yaml:"timeout" env:"WORKER_TIMEOUT"`
	} `yaml:"gateway"`

	Orchestrator struct {
		Cooldown       time.Duration `yaml:"cooldown" env:"COOLDOWN"`
		StreamingBase  string        `yaml:"streaming_base" env:"STREAMING_BASE"`
		WatchInterval  time.Duration `yaml:"watch_interval" env:"WATCH_INTERVAL"`
		StaleAfter     time.Duration `yaml:"stale_after" env:"STALE_AFTER"`
		OutboxInterval time.Duration `yaml:"outbox_interval" env:"OUTBOX_INTERVAL"`
	} `yaml:"orchestrator"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
	} `yaml:"log"`
}

// LoadConfig reads the YAML file, then environment variables override it.
// Without a filename the bundled local.yaml is used when present.
func LoadConfig(filename string) (*Config, error) {
	cfg := &Config{}

	path := filename
	if path == "" {
		path = defaultPath
	}

	// Читаем YAML
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Парсим YAML в структуру
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case filename == "" && errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// Парсим переменные окружения с приоритетом
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8002"
	}
	if c.HTTP.PublicURL == "" {
		c.HTTP.PublicURL = "http://localhost:8002"
	}
	if c.Minio.Bucket == "" {
		c.Minio.Bucket = "results"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "orchestrator"
	}
	if c.Kafka.CommandTopic == "" {
		c.Kafka.CommandTopic = "worker-commands"
	}
	if c.Kafka.ResultTopic == "" {
		c.Kafka.ResultTopic = "algorithm-results"
	}
	if c.Redis.Poll == 0 {
		c.Redis.Poll = time.Second
	}
	if c.Gateway.Mode == "" {
		c.Gateway.Mode = GatewayHTTP
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = 10 * time.Second
	}
	if c.Orchestrator.Cooldown == 0 {
		c.Orchestrator.Cooldown = 15 * time.Second
	}
	if c.Orchestrator.WatchInterval == 0 {
		c.Orchestrator.WatchInterval = 30 * time.Second
	}
	if c.Orchestrator.OutboxInterval == 0 {
		c.Orchestrator.OutboxInterval = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if !slices.Contains([]string{GatewayHTTP, GatewayKafka, GatewayOutbox}, c.Gateway.Mode) {
		errs = append(errs, fmt.Errorf("unknown gateway.mode %q", c.Gateway.Mode))
	}
	if c.Gateway.Mode == GatewayHTTP && c.Gateway.Endpoint == "" {
		errs = append(errs, errors.New("gateway.endpoint is required in http mode"))
	}
	if c.Gateway.Mode != GatewayHTTP && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("kafka.brokers is required in %s mode", c.Gateway.Mode))
	}
	if c.Orchestrator.Cooldown < 0 || c.Orchestrator.StaleAfter < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	return errors.Join(errs...)
}
