package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

type Config struct {
	AppName                       string `env:"APP_NAME" envDefault:"fern-api"`
	Version                       string `env:"APP_VERSION" envDefault:"dev"`
	Port                          int    `env:"PORT" envDefault:"3000"`
	LogLevel                      string `env:"LOG_LEVEL" envDefault:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" envDefault:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" envDefault:"30"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" envDefault:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" envDefault:"60"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" envDefault:"64000"`
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" envDefault:"10"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" envDefault:"5"`

	// Database driver: postgres, pgx, mysql or sqlite
	DatabaseDriver string `env:"DB_DRIVER" envDefault:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" envDefault:"localhost"`
	// Database port
	DatabasePort string `env:"DB_PORT" envDefault:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" envDefault:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" envDefault:""`
	// Database name, or the file path for sqlite
	DatabaseName string `env:"DB_NAME" envDefault:"fern"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" envDefault:"disable"`
	// Full DSN, overrides the fields above
	DatabaseDSN string `env:"DB_DSN" envDefault:""`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	// Migration Folder Path, one sub folder per dialect
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" envDefault:"db/migrations"`
	// Database Migration Version
	DatabaseMigrationVersion uint `env:"DB_MIGRATION_VERSION" envDefault:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" envDefault:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" envDefault:"true"`

	// Record every executed statement in the edit journal
	JournalEnabled bool `env:"JOURNAL_ENABLED" envDefault:"true"`
	// Run all actions of one command in a single transaction
	PersistTransactional bool `env:"PERSIST_TRANSACTIONAL" envDefault:"false"`
	// Idle sessions are closed after this long
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// Serialise saves across replicas through Redis
	RedisEnabled bool `env:"REDIS_ENABLED" envDefault:"false"`
	// Redis host
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" envDefault:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" envDefault:"0"`
	// Save lock expiry
	SaveLockTTL time.Duration `env:"SAVE_LOCK_TTL" envDefault:"2m"`
	// How long a save waits for a busy lock
	SaveLockWait time.Duration `env:"SAVE_LOCK_WAIT" envDefault:"10s"`

	// Publish session events to Kafka
	KafkaEnabled bool `env:"KAFKA_ENABLED" envDefault:"false"`
	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	// Kafka topic for session events
	KafkaTopic string `env:"KAFKA_TOPIC" envDefault:"fern.sessions"`
	// Kafka producer batch size
	KafkaBatchSize int `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	// Kafka producer batch timeout
	KafkaBatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"100ms"`
	// Kafka required acks (-1 all, 0 none, 1 leader)
	KafkaRequiredAcks int `env:"KAFKA_REQUIRED_ACKS" envDefault:"1"`
	// Kafka compression: snappy, gzip, lz4, zstd or none
	KafkaCompression string `env:"KAFKA_COMPRESSION" envDefault:"snappy"`

	// Enable OTLP tracing export
	OTLPEnabled bool `env:"OTLP_ENABLED" envDefault:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" envDefault:"grpc"`
	// Disable TLS for OTLP
	OTLPInsecure bool `env:"OTLP_INSECURE" envDefault:"true"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}
	return cfg, nil
}

func (c *Config) Database() database.Config {
	return database.Config{
		Driver:          c.DatabaseDriver,
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		DSN:             c.DatabaseDSN,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Migration() *database.MigrationConfig {
	return &database.MigrationConfig{
		FolderPath:   c.DatabaseMigrationFolderPath,
		Version:      c.DatabaseMigrationVersion,
		Force:        c.DatabaseMigrationForce,
		AutoRollback: c.DatabaseMigrationAutoRollback,
	}
}

func (c *Config) Redis() redis.Config {
	return redis.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) Kafka() kafka.ProducerConfig {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return kafka.ProducerConfig{
		Brokers:      brokers,
		Topic:        c.KafkaTopic,
		BatchSize:    c.KafkaBatchSize,
		BatchTimeout: c.KafkaBatchTimeout,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

func (c *Config) Tracing() tracing.Options {
	return tracing.Options{
		ServiceName: c.AppName,
		OTLPEnabled: c.OTLPEnabled,
		OTLP: exporters.OTLPConfig{
			Endpoint: c.OTLPEndpoint,
			Protocol: c.OTLPProtocol,
			Insecure: c.OTLPInsecure,
		},
	}
}
