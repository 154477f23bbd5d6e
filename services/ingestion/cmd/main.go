package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"jobtrends/common/archive"
	"jobtrends/common/canonical"
	"jobtrends/common/config"
	"jobtrends/common/database"
	"jobtrends/common/identity"
	"jobtrends/common/kv"
	"jobtrends/common/kv/redis"
	"jobtrends/common/telemetry"
	ingestconfig "jobtrends/services/ingestion/internal/config"
	"jobtrends/services/ingestion/internal/events"
	"jobtrends/services/ingestion/internal/gate"
	"jobtrends/services/ingestion/internal/messaging"
	"jobtrends/services/ingestion/internal/pipeline"
	"jobtrends/services/ingestion/internal/scheduler"
	"jobtrends/services/ingestion/internal/store"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const serviceName = "jobtrends-ingestion"

func newLogger(cfg *ingestconfig.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

func newNATSConnection(cfg *ingestconfig.Config, logger *zap.Logger, lc fx.Lifecycle) (*nats.Conn, error) {
	nc, err := messaging.Connect(cfg.NATSURL, cfg.NATSConnTimeout, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return nc.Drain()
		},
	})
	return nc, nil
}

func newClickHouseConnection(cfg *ingestconfig.Config, logger *zap.Logger) (clickhouse.Conn, error) {
	db, err := database.New(context.Background(), database.Options{
		DSN:             cfg.ClickHouseDSN,
		MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
		MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
		Username:        cfg.ClickHouseUsername,
		Password:        cfg.ClickHousePassword,
		Database:        cfg.ClickHouseDatabase,
	}, logger)
	if err != nil {
		return nil, err
	}
	return db.Conn(), nil
}

func newKVStore(cfg *ingestconfig.Config, lc fx.Lifecycle) kv.Store {
	opts := kv.DefaultOptions()
	opts.RedisURL = cfg.RedisAddr
	opts.RedisPassword = cfg.RedisPassword
	opts.RedisDB = cfg.RedisDB
	opts.DefaultTTL = cfg.IdentityTTL

	s := redis.New(opts)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})
	return s
}

func newIdentityStore(cfg *ingestconfig.Config, s kv.Store, logger *zap.Logger) *store.IdentityStore {
	return store.NewIdentityStore(s, cfg.IdentityTTL, logger)
}

func newGate(cfg *ingestconfig.Config, ids *store.IdentityStore, logger *zap.Logger) *gate.Gate {
	return gate.New(ids, gate.Options{
		ChunkSize:   cfg.LookupChunkSize,
		Concurrency: cfg.LookupConcurrency,
		Retry:       cfg.RetryPolicy(),
	}, logger)
}

func newArchiver(cfg *ingestconfig.Config, nc *nats.Conn, logger *zap.Logger) (archive.Archiver, error) {
	policy, err := archive.ParsePolicy(cfg.ArchivePolicy)
	if err != nil {
		return nil, err
	}
	if policy == archive.PolicyNone {
		return nil, nil
	}
	return archive.NewObjectStore(nc, cfg.ArchiveBucket, logger)
}

func newPipeline(
	cfg *ingestconfig.Config,
	g *gate.Gate,
	ids *store.IdentityStore,
	conn clickhouse.Conn,
	nc *nats.Conn,
	archiver archive.Archiver,
	logger *zap.Logger,
) (*pipeline.Pipeline, error) {
	policy, err := archive.ParsePolicy(cfg.ArchivePolicy)
	if err != nil {
		return nil, err
	}

	var publisher pipeline.Publisher
	if cfg.PersistedSubject != "" {
		publisher = messaging.NewPublisher(logger, nc, cfg.PersistedSubject)
	}

	hasher := identity.Hasher{Locale: canonical.Locale{HomeCountry: cfg.HomeCountry}}
	return pipeline.New(g, hasher, ids, store.NewPostingSink(conn, logger), publisher, archiver, pipeline.Options{
		HashWorkers:        cfg.HashWorkers,
		PersistConcurrency: cfg.PersistConcurrency,
		Retry:              cfg.RetryPolicy(),
		ArchivePolicy:      policy,
	}, logger), nil
}

func newCollector(cfg *ingestconfig.Config, nc *nats.Conn, logger *zap.Logger) *events.Collector {
	return events.NewCollector(logger, nc, cfg.RawPostingsSubject, cfg.QueueGroup, cfg.BatchSize)
}

func newScheduler(cfg *ingestconfig.Config, collector *events.Collector, p *pipeline.Pipeline, logger *zap.Logger) *scheduler.JobScheduler {
	return scheduler.NewJobScheduler(collector, p, cfg.FlushInterval, logger)
}

func startTracing(cfg *ingestconfig.Config, logger *zap.Logger, lc fx.Lifecycle) error {
	shutdown, err := telemetry.InitTracer(context.Background(), telemetry.Options{
		ServiceName:  serviceName,
		CollectorURL: cfg.OTELCollectorURL,
	}, logger)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			shutdown(ctx)
			return nil
		},
	})
	return nil
}

func startScheduler(s *scheduler.JobScheduler, logger *zap.Logger, lc fx.Lifecycle) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := s.Start(ctx); err != nil && err != context.Canceled {
					logger.Error("job scheduler failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			s.Stop()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			ingestconfig.LoadConfig,
			newLogger,
			newNATSConnection,
			newClickHouseConnection,
			newKVStore,
			newIdentityStore,
			newGate,
			newArchiver,
			newPipeline,
			newCollector,
			newScheduler,
		),
		fx.Invoke(
			startTracing,
			func(collector *events.Collector, lc fx.Lifecycle) error {
				return collector.RegisterSubscriptions(lc)
			},
			startScheduler,
		),
	)

	startCtx := context.Background()
	if err := app.Start(startCtx); err != nil {
		log.Fatal(err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	stopCtx := context.Background()
	if err := app.Stop(stopCtx); err != nil {
		log.Fatal(err)
	}
}
