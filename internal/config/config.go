// Package config loads the settings of the blood bank binaries from an optional
// <service>.env file layered under environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the resolved settings of one binary. Both the API gateway and the event
// processor load the same shape; sections a binary does not use are still validated.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Storage     StorageConfig
	Auth        AuthConfig
	Eligibility EligibilityConfig
	Workflow    WorkflowConfig
}

type ApplicationConfig struct {
	Env  string
	Name string
}

type LoggingConfig struct {
	Level string
}

// ServerConfig is the HTTP listener. The event processor serves /metrics on it.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// KafkaConfig describes the event topic that the outbox relays into and the
// activity projection consumes from
type KafkaConfig struct {
	Brokers           string // Comma separated host:port list
	EventsTopic       string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64  // -1 starts a new group at the newest offset
	DLQTopic          string // Empty disables dead-lettering
}

// PostgresConfig is the system of record for stock, bags, requests and the outbox
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string // Applied on startup when set
}

// MongoDBConfig holds the activity log store
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains Redis configuration. An empty URL disables Redis.
type RedisConfig struct {
	URL            string
	PoolSize       int
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdempotencyTTL time.Duration // How long an Idempotency-Key is remembered
	KeyPrefix      string
}

type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int           // Publish attempts before a message is parked as failed
	Retention        time.Duration // Processed messages older than this are purged; 0 keeps them
}

// WorkerPoolConfig bounds concurrent activity projections
type WorkerPoolConfig struct {
	Size int
}

// StorageConfig selects the store behind the inventory ledger
type StorageConfig struct {
	Driver string // "postgres" or "memory"
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// AuthConfig contains bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string // Optional; when set the iss claim must match
}

// EligibilityConfig contains donor eligibility thresholds
type EligibilityConfig struct {
	CooldownMonths int // Whole calendar months required since the last donation
	MinAge         int
	MaxAge         int
	MinWeightKg    float64
}

// WorkflowConfig contains blood request workflow policy
type WorkflowConfig struct {
	BankAssignmentFulfills bool // Bank assignment moves a request straight to fulfilled
}

type violations []string

func (v *violations) add(format string, args ...interface{}) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v *violations) positive(key string, value float64) {
	if value <= 0 {
		v.add("%s must be greater than 0", key)
	}
}

func (v *violations) required(key, value string) {
	if strings.TrimSpace(value) == "" {
		v.add("%s is required", key)
	}
}

func (c ServerConfig) check(v *violations) {
	v.positive("SERVER_PORT", float64(c.Port))
	v.positive("SERVER_SHUTDOWN_TIMEOUT", c.ShutdownTimeout.Seconds())
	v.positive("SERVER_READ_TIMEOUT", c.ReadTimeout.Seconds())
	v.positive("SERVER_WRITE_TIMEOUT", c.WriteTimeout.Seconds())
	v.positive("SERVER_IDLE_TIMEOUT", c.IdleTimeout.Seconds())
}

func (c KafkaConfig) check(v *violations) {
	v.required("KAFKA_BROKERS", c.Brokers)
	v.required("KAFKA_EVENTS_TOPIC", c.EventsTopic)
	v.required("KAFKA_CONSUMER_GROUP", c.ConsumerGroup)
	v.positive("KAFKA_CONSUMER_MIN_BYTES", float64(c.MinBytes))
	v.positive("KAFKA_CONSUMER_MAX_BYTES", float64(c.MaxBytes))
	v.positive("KAFKA_CONSUMER_MAX_WAIT", c.MaxWait.Seconds())
	if c.MinBytes > c.MaxBytes {
		v.add("KAFKA_CONSUMER_MIN_BYTES must not exceed KAFKA_CONSUMER_MAX_BYTES")
	}
	if c.DLQTopic != "" && c.DLQTopic == c.EventsTopic {
		v.add("KAFKA_DLQ_TOPIC must differ from KAFKA_EVENTS_TOPIC")
	}
}

func (c PostgresConfig) check(v *violations) {
	v.required("POSTGRES_URL", c.URL)
	v.positive("POSTGRES_MAX_CONNS", float64(c.MaxConns))
	v.positive("POSTGRES_MIN_CONNS", float64(c.MinConns))
	v.positive("POSTGRES_MAX_CONN_LIFETIME", c.ConnMaxLifetime.Seconds())
	v.positive("POSTGRES_MAX_CONN_IDLE_TIME", c.ConnMaxIdleTime.Seconds())
}

func (c MongoDBConfig) check(v *violations) {
	v.required("MONGO_URI", c.URI)
	v.required("MONGO_DATABASE", c.Database)
	v.positive("MONGO_TIMEOUT", c.Timeout.Seconds())
	v.positive("MONGO_MAX_POOL_SIZE", float64(c.MaxPoolSize))
	v.positive("MONGO_MIN_POOL_SIZE", float64(c.MinPoolSize))
	v.positive("MONGO_MAX_CONN_IDLE_TIME", c.MaxConnIdleTime.Seconds())
}

func (c RedisConfig) check(v *violations) {
	if c.URL == "" {
		return
	}
	v.positive("REDIS_POOL_SIZE", float64(c.PoolSize))
	v.positive("REDIS_IDEMPOTENCY_TTL", c.IdempotencyTTL.Seconds())
}

func (c EligibilityConfig) check(v *violations) {
	v.positive("ELIGIBILITY_COOLDOWN_MONTHS", float64(c.CooldownMonths))
	if c.MinAge <= 0 || c.MaxAge < c.MinAge {
		v.add("ELIGIBILITY_MIN_AGE must be positive and not above ELIGIBILITY_MAX_AGE")
	}
	v.positive("ELIGIBILITY_MIN_WEIGHT_KG", c.MinWeightKg)
}

// validate reports every invalid setting at once rather than stopping at the first
func (c *Config) validate() error {
	var v violations

	c.Server.check(&v)
	c.Kafka.check(&v)
	if c.Storage.Driver != StorageDriverPostgres && c.Storage.Driver != StorageDriverMemory {
		v.add("STORAGE_DRIVER must be one of %s, %s", StorageDriverPostgres, StorageDriverMemory)
	}
	c.Postgres.check(&v)
	c.MongoDB.check(&v)
	c.Redis.check(&v)
	if len(c.Auth.JWTSecret) < 16 {
		v.add("AUTH_JWT_SECRET must be at least 16 characters")
	}
	c.Eligibility.check(&v)
	v.positive("OUTBOX_POLLING_INTERVAL", c.Outbox.PollingInterval.Seconds())
	v.positive("OUTBOX_BATCH_SIZE", float64(c.Outbox.BatchSize))
	v.positive("OUTBOX_MAX_RETRY_ATTEMPTS", float64(c.Outbox.MaxRetryAttempts))
	if c.Outbox.Retention < 0 {
		v.add("OUTBOX_RETENTION must not be negative")
	}
	v.positive("WORKER_POOL_SIZE", float64(c.WorkerPool.Size))

	if len(v) > 0 {
		return errors.New(strings.Join(v, ", "))
	}
	return nil
}
