// Package config provides configuration structures and validation for the wallet services.
// It handles environment-based configuration for the HTTP API, the ledger projector,
// database connections, message queues, session and payment webhook settings.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete configuration shared by both binaries.
// It is validated once during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Ledger      LedgerConfig
	Auth        AuthConfig
	Webhook     WebhookConfig
	Loan        LoanConfig
	CORS        CORSConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// IsProduction reports whether the service runs with production safeguards
func (a ApplicationConfig) IsProduction() bool {
	return a.Env == "production"
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	LedgerEventTopic  string // Topic carrying committed ledger entries
	NumPartitions     int    // Number of partitions for topics
	ReplicationFactor int    // Replication factor for topics
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for Dead Letter Queue
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int // Maximum number of retry attempts for outbox messages
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// LedgerConfig contains balance mutation settings
type LedgerConfig struct {
	Currency        string        // ISO code every account is opened in
	MutationTimeout time.Duration // Upper bound for one atomic balance change
}

// AuthConfig contains session settings
type AuthConfig struct {
	JWTSecret         string
	Issuer            string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	RefreshCookieName string
	RefreshCookiePath string
	CookieDomain      string
	CookieSecure      bool
	BcryptCost        int
}

// WebhookConfig contains payment gateway callback settings
type WebhookConfig struct {
	GatewaySecret           string        // Shared secret for the generic x-gateway-signature scheme
	ProviderSecret          string        // Secret for the provider-specific scheme
	ProviderSignatureHeader string        // Header carrying the provider signature
	IdempotencyLease        time.Duration // How long a pending key blocks duplicates
	IdempotencyRetention    time.Duration // How long finalized keys are kept
	PurgeInterval           time.Duration
}

// SignatureRequired reports whether at least one webhook secret is configured
func (w WebhookConfig) SignatureRequired() bool {
	return w.GatewaySecret != "" || w.ProviderSecret != ""
}

// LoanConfig contains loan overlay settings
type LoanConfig struct {
	DefaultRateBps int64 // Interest in basis points applied to new loans
	MaxPrincipal   int64 // Largest loan in minor units
	Term           time.Duration
}

// CORSConfig contains browser access settings
type CORSConfig struct {
	AllowedOrigins []string
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.LedgerEventTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_LEDGER_EVENT_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Ledger config
	if len(c.Ledger.Currency) != 3 {
		validationErrors = append(validationErrors, "LEDGER_CURRENCY must be a 3-letter code")
	}
	if c.Ledger.MutationTimeout <= 0 {
		validationErrors = append(validationErrors, "LEDGER_MUTATION_TIMEOUT must be greater than 0")
	}

	// Validate Auth config
	if len(c.Auth.JWTSecret) < 32 {
		validationErrors = append(validationErrors, "AUTH_JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		validationErrors = append(validationErrors, "AUTH_ACCESS_TOKEN_TTL must be greater than 0")
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		validationErrors = append(validationErrors, "AUTH_REFRESH_TOKEN_TTL must be greater than AUTH_ACCESS_TOKEN_TTL")
	}
	if c.Auth.RefreshCookieName == "" {
		validationErrors = append(validationErrors, "AUTH_REFRESH_COOKIE_NAME is required")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		validationErrors = append(validationErrors, "AUTH_BCRYPT_COST must be between 4 and 31")
	}

	// Validate Webhook config
	if c.Application.IsProduction() && !c.Webhook.SignatureRequired() {
		validationErrors = append(validationErrors, "WEBHOOK_GATEWAY_SECRET or WEBHOOK_PROVIDER_SECRET is required in production")
	}
	if c.Webhook.ProviderSignatureHeader == "" {
		validationErrors = append(validationErrors, "WEBHOOK_PROVIDER_SIGNATURE_HEADER is required")
	}
	if c.Webhook.IdempotencyLease <= 0 {
		validationErrors = append(validationErrors, "WEBHOOK_IDEMPOTENCY_LEASE must be greater than 0")
	}
	if c.Webhook.IdempotencyRetention <= 0 {
		validationErrors = append(validationErrors, "WEBHOOK_IDEMPOTENCY_RETENTION must be greater than 0")
	}
	if c.Webhook.PurgeInterval <= 0 {
		validationErrors = append(validationErrors, "WEBHOOK_PURGE_INTERVAL must be greater than 0")
	}

	// Validate Loan config
	if c.Loan.DefaultRateBps < 0 {
		validationErrors = append(validationErrors, "LOAN_DEFAULT_RATE_BPS must not be negative")
	}
	if c.Loan.MaxPrincipal <= 0 {
		validationErrors = append(validationErrors, "LOAN_MAX_PRINCIPAL must be greater than 0")
	}
	if c.Loan.Term <= 0 {
		validationErrors = append(validationErrors, "LOAN_TERM must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
