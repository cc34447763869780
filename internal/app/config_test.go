package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.True(t, cfg.PostgresAutoMigrate)
	assert.True(t, cfg.AuthEnabled)
	assert.True(t, cfg.OutboxEnabled)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "orderdesk.order.events", cfg.KafkaTopic)
	assert.Positive(t, cfg.OutboxPollInterval)
	assert.Positive(t, cfg.OutboxBatchSize)
	assert.Positive(t, cfg.OutboxMaxAttempts)
}

func TestConfig_RelaySettingsMatchRelayDefaults(t *testing.T) {
	assert.Equal(t, outbox.DefaultSettings(), DefaultConfig().relaySettings())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orderdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":7070"
storage_driver: postgres
postgres_dsn: postgres://orderdesk:orderdesk@db:5432/orderdesk
token_ttl: 30m
auth_enabled: false
`), 0o600))

	t.Setenv("ORDERDESK_HTTP_ADDR", ":6060")
	t.Setenv("ORDERDESK_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":6060", cfg.HTTPAddr)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://orderdesk:orderdesk@db:5432/orderdesk", cfg.PostgresDSN)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.False(t, cfg.AuthEnabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadConfig_MissingFilesUseDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().HTTPAddr, cfg.HTTPAddr)
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.JWTSecret = testSecret
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"unsupported driver":   func(c *Config) { c.StorageDriver = "sqlite" },
		"postgres without dsn": func(c *Config) { c.StorageDriver = StorageDriverPostgres },
		"short secret":         func(c *Config) { c.JWTSecret = "short" },
		"bcrypt cost":          func(c *Config) { c.BcryptCost = 99 },
		"shutdown timeout":     func(c *Config) { c.ShutdownTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("unprotected variant needs no secret", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AuthEnabled = false
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_ValidateRelay(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ValidateRelay()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")

	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = "postgres://localhost/orderdesk"
	cfg.KafkaBrokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.ValidateRelay())
}

func TestConfigureLogging(t *testing.T) {
	cfg := DefaultConfig()

	cfg.LogLevel, cfg.LogFormat = "debug", "json"
	assert.NoError(t, ConfigureLogging(cfg))

	cfg.LogLevel = "loud"
	assert.Error(t, ConfigureLogging(cfg))

	cfg.LogLevel, cfg.LogFormat = "info", "xml"
	assert.Error(t, ConfigureLogging(cfg))

	cfg.LogFormat = "text"
	assert.NoError(t, ConfigureLogging(cfg))
}
