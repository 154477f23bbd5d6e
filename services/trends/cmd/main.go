package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobtrends/common/config"
	"jobtrends/common/database"
	"jobtrends/common/errors"
	"jobtrends/common/salary"
	"jobtrends/common/telemetry"
	trendsconfig "jobtrends/services/trends/internal/config"
	"jobtrends/services/trends/internal/enriched"
	"jobtrends/services/trends/internal/events"
	"jobtrends/services/trends/internal/processor"
	"jobtrends/services/trends/internal/slicer"
	"jobtrends/services/trends/internal/slices"
	"jobtrends/services/trends/internal/store"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	goflags "github.com/jessevdk/go-flags"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const serviceName = "jobtrends-trends"

type options struct {
	Once        bool   `long:"once" description:"run every aggregation once and exit"`
	Period      string `long:"period" description:"period to slice, YYYY-Www or YYYY-MM-DD (overrides FORCE_PERIOD)"`
	Granularity string `long:"granularity" choice:"weekly" choice:"daily" description:"override GRANULARITY"`
	Dimension   string `long:"dimension" choice:"technology" choice:"skill" choice:"both" description:"override AGG_DIMENSION"`
}

func loadConfig(opts *options) func() (*trendsconfig.Config, error) {
	return func() (*trendsconfig.Config, error) {
		cfg, err := trendsconfig.LoadConfig()
		if err != nil {
			return nil, err
		}
		if opts.Granularity != "" {
			cfg.Granularity = opts.Granularity
		}
		if opts.Dimension != "" {
			cfg.AggDimension = opts.Dimension
		}
		if opts.Period != "" {
			cfg.ForcePeriod = opts.Period
		}
		return cfg, nil
	}
}

func newLogger(cfg *trendsconfig.Config) (*zap.Logger, error) {
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

func newNATSConnection(cfg *trendsconfig.Config, lc fx.Lifecycle) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(cfg.NATSConnTimeout),
		nats.Name("trends-service"),
		nats.RetryOnFailedConnect(true),
	}
	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, errors.Unavailable("connect to nats", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return nc.Drain()
		},
	})
	return nc, nil
}

func newClickHouseConnection(cfg *trendsconfig.Config, logger *zap.Logger) (clickhouse.Conn, error) {
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

func newPostgresPool(cfg *trendsconfig.Config, logger *zap.Logger, lc fx.Lifecycle) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, errors.InvalidInput("parse POSTGRES_DSN", err)
	}
	pc.MaxConns = int32(cfg.PostgresMaxConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errors.Unavailable("create postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, enriched.Classify("ping postgres", err)
	}
	logger.Info("connected to postgres", zap.String("database", pc.ConnConfig.Database))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func newSource(cfg *trendsconfig.Config, pool *pgxpool.Pool, logger *zap.Logger) (enriched.Source, error) {
	return enriched.NewPostgresSource(pool, enriched.Tables{
		Jobs:             cfg.EnrichedTable,
		JobsTechnologies: cfg.JobsTechnologiesTable,
		Technologies:     cfg.TechnologiesTable,
	}, logger)
}

func newTrendStore(cfg *trendsconfig.Config, conn clickhouse.Conn, logger *zap.Logger) *store.TrendStore {
	return store.NewTrendStore(conn, store.Options{
		ChunkSize: cfg.WriteChunkSize,
		Retry:     cfg.RetryPolicy(),
	}, logger)
}

func newProcessor(cfg *trendsconfig.Config, source enriched.Source, trendStore *store.TrendStore, logger *zap.Logger) (*processor.TrendProcessor, error) {
	dim, ok := slices.ParseDimension(cfg.AggDimension)
	if !ok {
		return nil, errors.InvalidInput("unknown aggregation dimension "+cfg.AggDimension, nil)
	}
	return processor.NewTrendProcessor(source, trendStore, processor.Options{
		Lookback:    cfg.Lookback(),
		Granularity: slices.Granularity(cfg.Granularity),
		ForcePeriod: cfg.ForcePeriod,
		Dimension:   dim,
		Workers:     cfg.AggregationWorkers,
		Blender:     salary.NewBlender(),
	}, logger), nil
}

func newSlicer(trendStore *store.TrendStore, logger *zap.Logger) *slicer.Service {
	return slicer.NewService(trendStore, logger)
}

func newHandler(cfg *trendsconfig.Config, nc *nats.Conn, p *processor.TrendProcessor, s *slicer.Service, logger *zap.Logger) *events.Handler {
	return events.NewHandler(logger, nc, p, s, cfg.TriggerSubject, cfg.DetailSubject, cfg.QueueGroup, 0)
}

func startTracing(cfg *trendsconfig.Config, logger *zap.Logger, lc fx.Lifecycle) error {
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

func logReports(logger *zap.Logger, reports []*processor.Report) {
	for _, r := range reports {
		if r == nil {
			continue
		}
		logger.Info("aggregation report",
			zap.String("kind", r.Kind),
			zap.String("period", r.Period),
			zap.Int("postings", r.Postings),
			zap.Int("records", r.Records),
			zap.Int("slices", r.Slices),
			zap.Int("totals", r.Totals),
			zap.Int("failed_chunks", r.FailedChunks),
			zap.Strings("errors", r.Errors),
			zap.Duration("duration", r.Duration))
	}
}

// startInterval reruns every aggregation on RUN_INTERVAL until stop.
func startInterval(cfg *trendsconfig.Config, p *processor.TrendProcessor, logger *zap.Logger, lc fx.Lifecycle) {
	if cfg.RunInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.RunInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						reports, err := p.RunAll(ctx, "", time.Now())
						logReports(logger, reports)
						if err != nil {
							logger.Error("scheduled aggregation failed", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func runOnce(opts *options, p *processor.TrendProcessor, logger *zap.Logger, shutdowner fx.Shutdowner) {
	reports, err := p.RunAll(context.Background(), opts.Period, time.Now())
	logReports(logger, reports)
	code := 0
	if err != nil {
		logger.Error("aggregation failed", zap.Error(err))
		code = 1
	}
	if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}

	var opts options
	if _, err := goflags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return
		}
		log.Fatalf("failed to parse flags: %v", err)
	}

	provides := fx.Provide(
		loadConfig(&opts),
		newLogger,
		newClickHouseConnection,
		newPostgresPool,
		newSource,
		newTrendStore,
		newProcessor,
	)

	if opts.Once {
		app := fx.New(
			provides,
			fx.Invoke(
				startTracing,
				func(p *processor.TrendProcessor, logger *zap.Logger, shutdowner fx.Shutdowner, lc fx.Lifecycle) {
					lc.Append(fx.Hook{
						OnStart: func(context.Context) error {
							go runOnce(&opts, p, logger, shutdowner)
							return nil
						},
					})
				},
			),
		)
		app.Run()
		return
	}

	app := fx.New(
		provides,
		fx.Provide(
			newNATSConnection,
			newSlicer,
			newHandler,
		),
		fx.Invoke(
			startTracing,
			func(handler *events.Handler, lc fx.Lifecycle) error {
				return handler.RegisterSubscriptions(lc)
			},
			startInterval,
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
