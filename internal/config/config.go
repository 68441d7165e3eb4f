package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Log       LogConfig       `yaml:"log"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig with an empty Addr disables the api cache and the redis serial counter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	CallbackTopic string   `yaml:"callback_topic"`
	GroupID       string   `yaml:"group_id"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LedgerConfig tunes the transaction ledger core.
type LedgerConfig struct {
	HandlerTimeout   time.Duration `yaml:"handler_timeout"`
	SerialPrefix     string        `yaml:"serial_prefix"`
	SerialCounter    bool          `yaml:"serial_counter"`
	TransactionTypes []string      `yaml:"transaction_types"`
	OutboxBatch      int           `yaml:"outbox_batch"`
	PollInterval     time.Duration `yaml:"poll_interval"`
}

const (
	defaultPort           = 8080
	defaultHandlerTimeout = 5 * time.Second
	defaultOutboxBatch    = 100
	defaultPollInterval   = time.Second
	defaultLogLevel       = "info"
)

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes yaml bytes, then applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Ledger.HandlerTimeout <= 0 {
		c.Ledger.HandlerTimeout = defaultHandlerTimeout
	}
	if c.Ledger.OutboxBatch <= 0 {
		c.Ledger.OutboxBatch = defaultOutboxBatch
	}
	if c.Ledger.PollInterval <= 0 {
		c.Ledger.PollInterval = defaultPollInterval
	}
}
