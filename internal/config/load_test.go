package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	return fromViper(newViper())
}

// chdir switches into dir for the duration of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeEnvFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_FromConfigsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, filepath.Join(dir, "configs", "bloodbank_test.env"),
		"APP_NAME=central-bank\nSERVER_PORT=9090\nKAFKA_BROKERS=kafka1:9092,kafka2:9092\n"+
			"ELIGIBILITY_COOLDOWN_MONTHS=4\nBANK_ASSIGNMENT_FULFILLS=true\nSTORAGE_DRIVER=memory\n")
	chdir(t, dir)

	cfg, err := LoadConfig("bloodbank_test")
	require.NoError(t, err)

	assert.Equal(t, "central-bank", cfg.Application.Name)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "kafka1:9092,kafka2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Eligibility.CooldownMonths)
	assert.True(t, cfg.Workflow.BankAssignmentFulfills)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)

	// untouched keys keep their defaults
	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "bloodbank_events", cfg.Kafka.EventsTopic)
	assert.Equal(t, int32(20), cfg.Postgres.MaxConns)
	assert.Equal(t, uint64(100), cfg.MongoDB.MaxPoolSize)
	assert.Equal(t, 7*24*time.Hour, cfg.Outbox.Retention)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, filepath.Join(dir, "bloodbank_env.env"), "SERVER_PORT=9090\nELIGIBILITY_MIN_WEIGHT_KG=55\n")
	chdir(t, dir)
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadConfig("bloodbank_env")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 55.0, cfg.Eligibility.MinWeightKg)
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("missing_service")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("WORKER_POOL_SIZE", "0")

	cfg, err := LoadConfig("missing_service")
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "invalid configuration: WORKER_POOL_SIZE must be greater than 0")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event_processor.env")
	writeEnvFile(t, path, "OUTBOX_BATCH_SIZE=25\nKAFKA_DLQ_TOPIC=\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Outbox.BatchSize)
	assert.Empty(t, cfg.Kafka.DLQTopic)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := defaultConfig()

	require.NoError(t, cfg.validate())
	assert.Equal(t, 3, cfg.Eligibility.CooldownMonths)
	assert.Equal(t, 18, cfg.Eligibility.MinAge)
	assert.Equal(t, 65, cfg.Eligibility.MaxAge)
	assert.False(t, cfg.Workflow.BankAssignmentFulfills)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
}

func TestConfig_Validate_CollectsAllViolations(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Port = 0
	cfg.Storage.Driver = "sqlite"
	cfg.Auth.JWTSecret = "short"
	cfg.Eligibility.CooldownMonths = 0
	cfg.Eligibility.MaxAge = 10
	cfg.Redis.URL = "redis://localhost:6379/0"
	cfg.Redis.IdempotencyTTL = 0
	cfg.Kafka.DLQTopic = cfg.Kafka.EventsTopic
	cfg.Kafka.MinBytes = cfg.Kafka.MaxBytes + 1

	err := cfg.validate()
	require.Error(t, err)
	for _, msg := range []string{
		"SERVER_PORT must be greater than 0",
		"STORAGE_DRIVER must be one of postgres, memory",
		"AUTH_JWT_SECRET must be at least 16 characters",
		"ELIGIBILITY_COOLDOWN_MONTHS must be greater than 0",
		"ELIGIBILITY_MIN_AGE must be positive and not above ELIGIBILITY_MAX_AGE",
		"REDIS_IDEMPOTENCY_TTL must be greater than 0",
		"KAFKA_DLQ_TOPIC must differ from KAFKA_EVENTS_TOPIC",
		"KAFKA_CONSUMER_MIN_BYTES must not exceed KAFKA_CONSUMER_MAX_BYTES",
	} {
		assert.Contains(t, err.Error(), msg)
	}
}

func TestConfig_Validate_RedisOptional(t *testing.T) {
	cfg := defaultConfig()
	cfg.Redis.PoolSize = 0
	cfg.Redis.IdempotencyTTL = 0

	assert.NoError(t, cfg.validate(), "redis settings are ignored while REDIS_URL is empty")
}

func TestFromViper_ReadsEveryDefault(t *testing.T) {
	v := viper.New()
	for key := range defaults {
		assert.True(t, newViper().IsSet(key), key)
	}
	assert.Zero(t, fromViper(v).Server.Port, "a bare viper has no defaults")
}
