package config

import (
	"time"

	common "jobtrends/common/config"
	"jobtrends/common/retry"
)

type Config struct {
	PostgresDSN           string `validate:"required"`
	PostgresMaxConns      int    `validate:"min=1"`
	EnrichedTable         string `validate:"required"`
	TechnologiesTable     string `validate:"required"`
	JobsTechnologiesTable string `validate:"required"`

	ClickHouseDSN          string `validate:"required"`
	ClickHouseMaxOpenConns int    `validate:"min=1"`
	ClickHouseMaxIdleConns int    `validate:"gte=0"`
	ClickHouseConnMaxLife  time.Duration
	ClickHouseDatabase     string
	ClickHouseUsername     string
	ClickHousePassword     string

	NATSURL         string        `validate:"required"`
	NATSConnTimeout time.Duration `validate:"gt=0"`
	TriggerSubject  string        `validate:"required"`
	DetailSubject   string        `validate:"required"`
	QueueGroup      string        `validate:"required"`

	LookbackHours      int    `validate:"min=1"`
	Granularity        string `validate:"oneof=weekly daily"`
	ForcePeriod        string
	AggDimension       string        `validate:"oneof=technology skill both"`
	AggregationWorkers int           `validate:"min=1"`
	WriteChunkSize     int           `validate:"min=1,max=25"`
	RunInterval        time.Duration `validate:"gte=0"`

	MaxRetries       int           `validate:"min=1"`
	RetryDelay       time.Duration `validate:"gte=0"`
	OperationTimeout time.Duration `validate:"gte=0"`

	OTELCollectorURL string
	LogLevel         string `validate:"oneof=debug info warn error"`
	LogDevelopment   bool
}

func LoadConfig() (*Config, error) {
	config := &Config{
		PostgresDSN:           common.String("POSTGRES_DSN", "postgres://localhost:5432/jobtrends?sslmode=disable"),
		PostgresMaxConns:      common.Int("POSTGRES_MAX_CONNS", 5),
		EnrichedTable:         common.String("ENRICHED_TABLE", "jobs"),
		TechnologiesTable:     common.String("TECHNOLOGIES_TABLE", "technologies"),
		JobsTechnologiesTable: common.String("JOBS_TECHNOLOGIES_TABLE", "jobs_technologies"),

		ClickHouseDSN:          common.String("CLICKHOUSE_DSN", "localhost:9000"),
		ClickHouseMaxOpenConns: common.Int("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		ClickHouseMaxIdleConns: common.Int("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ClickHouseConnMaxLife:  common.Duration("CLICKHOUSE_CONN_MAX_LIFE", time.Hour),
		ClickHouseDatabase:     common.String("CLICKHOUSE_DATABASE", "jobtrends"),
		ClickHouseUsername:     common.String("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     common.String("CLICKHOUSE_PASSWORD", ""),

		NATSURL:         common.String("NATS_URL", "nats://localhost:4222"),
		NATSConnTimeout: common.Duration("NATS_CONN_TIMEOUT", 10*time.Second),
		TriggerSubject:  common.String("TRIGGER_SUBJECT", "trends.aggregate"),
		DetailSubject:   common.String("DETAIL_SUBJECT", "trends.detail"),
		QueueGroup:      common.String("QUEUE_GROUP", "trends"),

		LookbackHours:      common.Int("LOOKBACK_HOURS", 720),
		Granularity:        common.String("GRANULARITY", "weekly"),
		ForcePeriod:        common.String("FORCE_PERIOD", ""),
		AggDimension:       common.String("AGG_DIMENSION", "technology"),
		AggregationWorkers: common.Int("AGGREGATION_WORKERS", 4),
		WriteChunkSize:     common.Int("WRITE_CHUNK_SIZE", 25),
		RunInterval:        common.Duration("RUN_INTERVAL", 0),

		MaxRetries:       common.Int("MAX_RETRIES", 3),
		RetryDelay:       common.Duration("RETRY_DELAY", 200*time.Millisecond),
		OperationTimeout: common.Duration("OPERATION_TIMEOUT", 30*time.Second),

		OTELCollectorURL: common.String("OTEL_COLLECTOR_URL", ""),
		LogLevel:         common.String("LOG_LEVEL", "info"),
		LogDevelopment:   common.Bool("LOG_DEVELOPMENT", false),
	}

	if err := common.Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
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
