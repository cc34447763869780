package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/orderdesk/internal/service/auth"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	envPrefix = "ORDERDESK"
)

var defaultConfigFiles = []string{"orderdesk.yaml", "/etc/orderdesk/config.yaml"}

// Config описывает настройки API-процесса и outbox relay.
// Источники по возрастанию приоритета: значения по умолчанию, YAML, переменные ORDERDESK_*.
type Config struct {
	HTTPAddr    string `default:":8080" env:"HTTP_ADDR" yaml:"http_addr" usage:"API listen address"`
	MetricsAddr string `default:":9090" env:"METRICS_ADDR" yaml:"metrics_addr" usage:"metrics and health listen address"`

	StorageDriver       string `default:"memory" env:"STORAGE_DRIVER" yaml:"storage_driver" usage:"memory or postgres"`
	PostgresDSN         string `env:"POSTGRES_DSN" yaml:"postgres_dsn" usage:"PostgreSQL connection string"`
	PostgresAutoMigrate bool   `default:"true" env:"POSTGRES_AUTO_MIGRATE" yaml:"postgres_auto_migrate"`
	PostgresMaxConns    int    `default:"20" env:"POSTGRES_MAX_CONNS" yaml:"postgres_max_conns"`

	AuthEnabled bool          `default:"true" env:"AUTH_ENABLED" yaml:"auth_enabled" usage:"protect /orders with bearer tokens"`
	JWTSecret   string        `env:"JWT_SECRET" yaml:"jwt_secret" usage:"HS256 signing key, at least 32 bytes"`
	JWTIssuer   string        `default:"orderdesk" env:"JWT_ISSUER" yaml:"jwt_issuer"`
	TokenTTL    time.Duration `default:"1h" env:"TOKEN_TTL" yaml:"token_ttl"`
	BcryptCost  int           `default:"10" env:"BCRYPT_COST" yaml:"bcrypt_cost"`

	LogLevel        string        `default:"info" env:"LOG_LEVEL" yaml:"log_level"`
	LogFormat       string        `default:"text" env:"LOG_FORMAT" yaml:"log_format" usage:"text or json"`
	ShutdownTimeout time.Duration `default:"5s" env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`

	OutboxEnabled      bool          `default:"true" env:"OUTBOX_ENABLED" yaml:"outbox_enabled"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaClientID      string        `default:"orderdesk-relay" env:"KAFKA_CLIENT_ID" yaml:"kafka_client_id"`
	KafkaTopic         string        `default:"orderdesk.order.events" env:"KAFKA_TOPIC" yaml:"kafka_topic"`
	KafkaDLQTopic      string        `default:"orderdesk.order.events.dlq" env:"KAFKA_DLQ_TOPIC" yaml:"kafka_dlq_topic"`
	OutboxPollInterval time.Duration `default:"1s" env:"OUTBOX_POLL_INTERVAL" yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `default:"100" env:"OUTBOX_BATCH_SIZE" yaml:"outbox_batch_size"`
	OutboxMaxAttempts  int           `default:"3" env:"OUTBOX_MAX_ATTEMPTS" yaml:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `default:"50ms" env:"OUTBOX_RETRY_DELAY" yaml:"outbox_retry_delay"`
	OutboxMaxDelay     time.Duration `default:"5s" env:"OUTBOX_MAX_RETRY_DELAY" yaml:"outbox_max_retry_delay"`
}

// DefaultConfig возвращает значения по умолчанию из тегов структуры.
func DefaultConfig() Config {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFiles: true,
		SkipEnv:   true,
		SkipFlags: true,
	})
	if err := loader.Load(); err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return cfg
}

// LoadConfig читает конфигурацию из YAML-файлов и окружения.
// Без аргументов используются orderdesk.yaml и /etc/orderdesk/config.yaml, если они есть.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = defaultConfigFiles
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:        true,
		EnvPrefix:        envPrefix,
		AllowUnknownEnvs: true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
			".yml":  aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	brokers := c.KafkaBrokers[:0]
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.KafkaBrokers = brokers
}

// Validate проверяет настройки API-процесса.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres storage requires POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.AuthEnabled {
		if len(c.JWTSecret) < auth.MinSecretLen {
			errs = append(errs, fmt.Errorf("auth requires JWT_SECRET of at least %d bytes", auth.MinSecretLen))
		}
		if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
			errs = append(errs, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
		}
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateRelay проверяет настройки процесса outbox relay.
func (c Config) ValidateRelay() error {
	var errs []error

	if c.StorageDriver != StorageDriverPostgres {
		errs = append(errs, errors.New("outbox relay requires the postgres storage driver"))
	}
	if c.PostgresDSN == "" {
		errs = append(errs, errors.New("outbox relay requires POSTGRES_DSN"))
	}
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("outbox relay requires KAFKA_BROKERS"))
	}
	if c.KafkaTopic == "" {
		errs = append(errs, errors.New("outbox relay requires KAFKA_TOPIC"))
	}

	return errors.Join(errs...)
}
