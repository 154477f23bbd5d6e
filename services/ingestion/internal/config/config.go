package config

import (
	"time"

	common "jobtrends/common/config"
	"jobtrends/common/retry"
)

type Config struct {
	NATSURL            string        `validate:"required"`
	NATSConnTimeout    time.Duration `validate:"gt=0"`
	RawPostingsSubject string        `validate:"required"`
	PersistedSubject   string
	QueueGroup         string `validate:"required"`

	RedisAddr     string `validate:"required"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
	IdentityTTL   time.Duration

	ClickHouseDSN          string `validate:"required"`
	ClickHouseMaxOpenConns int    `validate:"min=1"`
	ClickHouseMaxIdleConns int    `validate:"gte=0"`
	ClickHouseConnMaxLife  time.Duration
	ClickHouseDatabase     string
	ClickHouseUsername     string
	ClickHousePassword     string

	HomeCountry string `validate:"required,len=2"`

	LookupChunkSize    int `validate:"min=1,max=1000"`
	LookupConcurrency  int `validate:"min=1"`
	HashWorkers        int `validate:"min=1"`
	PersistConcurrency int `validate:"min=1"`

	MaxRetries       int           `validate:"min=1"`
	RetryDelay       time.Duration `validate:"gte=0"`
	OperationTimeout time.Duration `validate:"gte=0"`

	ArchivePolicy string `validate:"oneof=none new new-only changed changed-only all"`
	ArchiveBucket string

	BatchSize     int           `validate:"min=1"`
	FlushInterval time.Duration `validate:"gt=0"`

	OTELCollectorURL string
	LogLevel         string `validate:"oneof=debug info warn error"`
	LogDevelopment   bool
}

func LoadConfig() (*Config, error) {
	config := &Config{
		NATSURL:            common.String("NATS_URL", "nats://localhost:4222"),
		NATSConnTimeout:    common.Duration("NATS_CONN_TIMEOUT", 10*time.Second),
		RawPostingsSubject: common.String("RAW_POSTINGS_SUBJECT", "postings.raw"),
		PersistedSubject:   common.String("PERSISTED_POSTINGS_SUBJECT", "postings.persisted"),
		QueueGroup:         common.String("QUEUE_GROUP", "ingestion"),

		RedisAddr:     common.String("REDIS_ADDR", "localhost:6379"),
		RedisPassword: common.String("REDIS_PASSWORD", ""),
		RedisDB:       common.Int("REDIS_DB", 0),
		IdentityTTL:   common.Duration("IDENTITY_TTL", 0),

		ClickHouseDSN:          common.String("CLICKHOUSE_DSN", "localhost:9000"),
		ClickHouseMaxOpenConns: common.Int("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		ClickHouseMaxIdleConns: common.Int("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ClickHouseConnMaxLife:  common.Duration("CLICKHOUSE_CONN_MAX_LIFE", time.Hour),
		ClickHouseDatabase:     common.String("CLICKHOUSE_DATABASE", "jobtrends"),
		ClickHouseUsername:     common.String("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     common.String("CLICKHOUSE_PASSWORD", ""),

		HomeCountry: common.String("HOME_COUNTRY", "us"),

		LookupChunkSize:    common.Int("LOOKUP_CHUNK_SIZE", 100),
		LookupConcurrency:  common.Int("LOOKUP_CONCURRENCY", 10),
		HashWorkers:        common.Int("HASH_WORKERS", 4),
		PersistConcurrency: common.Int("PERSIST_CONCURRENCY", 10),

		MaxRetries:       common.Int("MAX_RETRIES", 3),
		RetryDelay:       common.Duration("RETRY_DELAY", 200*time.Millisecond),
		OperationTimeout: common.Duration("OPERATION_TIMEOUT", 10*time.Second),

		ArchivePolicy: common.String("ARCHIVE_POLICY", "new"),
		ArchiveBucket: common.String("ARCHIVE_BUCKET", "raw-postings"),

		BatchSize:     common.Int("BATCH_SIZE", 500),
		FlushInterval: common.Duration("FLUSH_INTERVAL", 30*time.Second),

		OTELCollectorURL: common.String("OTEL_COLLECTOR_URL", ""),
		LogLevel:         common.String("LOG_LEVEL", "info"),
		LogDevelopment:   common.Bool("LOG_DEVELOPMENT", false),
	}

	if err := common.Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Attempts = c.MaxRetries
	if c.RetryDelay > 0 {
		p.InitialBackoff = c.RetryDelay
	}
	p.Timeout = c.OperationTimeout
	return p
}
