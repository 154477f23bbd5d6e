package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"jobtrends/common/archive"
	"jobtrends/common/canonical"
	"jobtrends/common/config"
	"jobtrends/common/database"
	"jobtrends/common/identity"
	"jobtrends/common/kv"
	"jobtrends/common/kv/memory"
	"jobtrends/common/kv/redis"
	ingestconfig "jobtrends/services/ingestion/internal/config"
	"jobtrends/services/ingestion/internal/gate"
	"jobtrends/services/ingestion/internal/messaging"
	"jobtrends/services/ingestion/internal/models"
	"jobtrends/services/ingestion/internal/pipeline"
	"jobtrends/services/ingestion/internal/store"

	goflags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type options struct {
	File          string        `short:"f" long:"file" required:"true" description:"JSON file with one raw posting or an array of them"`
	Memory        bool          `long:"memory" description:"keep identity records in memory instead of Redis"`
	NoSink        bool          `long:"no-sink" description:"skip the ClickHouse postings insert"`
	ArchivePolicy string        `long:"archive-policy" description:"override ARCHIVE_POLICY (none, new, changed, all)"`
	Timeout       time.Duration `long:"timeout" default:"5m" description:"overall run timeout"`
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load env file: %v", err)
	}

	var opts options
	if _, err := goflags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return
		}
		log.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := ingestconfig.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if opts.ArchivePolicy != "" {
		cfg.ArchivePolicy = opts.ArchivePolicy
	}
	policy, err := archive.ParsePolicy(cfg.ArchivePolicy)
	if err != nil {
		log.Fatalf("invalid archive policy: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	data, err := os.ReadFile(opts.File)
	if err != nil {
		logger.Fatal("failed to read postings file", zap.String("file", opts.File), zap.Error(err))
	}
	raws, err := models.DecodeRawPostings(data)
	if err != nil {
		logger.Fatal("failed to decode postings", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	var kvStore kv.Store
	if opts.Memory {
		kvStore = memory.New()
	} else {
		kvOpts := kv.DefaultOptions()
		kvOpts.RedisURL = cfg.RedisAddr
		kvOpts.RedisPassword = cfg.RedisPassword
		kvOpts.RedisDB = cfg.RedisDB
		kvOpts.DefaultTTL = cfg.IdentityTTL
		kvStore = redis.New(kvOpts)
	}
	defer kvStore.Close()

	var sink pipeline.PostingSink
	if !opts.NoSink {
		db, err := database.New(ctx, database.Options{
			DSN:      cfg.ClickHouseDSN,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		}, logger)
		if err != nil {
			logger.Fatal("failed to connect to clickhouse", zap.Error(err))
		}
		defer db.Close()
		sink = store.NewPostingSink(db.Conn(), logger)
	}

	var archiver archive.Archiver
	if policy != archive.PolicyNone {
		nc, err := messaging.Connect(cfg.NATSURL, cfg.NATSConnTimeout, logger)
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer nc.Close()
		objects, err := archive.NewObjectStore(nc, cfg.ArchiveBucket, logger)
		if err != nil {
			logger.Fatal("failed to open archive bucket", zap.Error(err))
		}
		archiver = objects
	}

	ids := store.NewIdentityStore(kvStore, cfg.IdentityTTL, logger)
	g := gate.New(ids, gate.Options{
		ChunkSize:   cfg.LookupChunkSize,
		Concurrency: cfg.LookupConcurrency,
		Retry:       cfg.RetryPolicy(),
	}, logger)

	hasher := identity.Hasher{Locale: canonical.Locale{HomeCountry: cfg.HomeCountry}}
	p := pipeline.New(g, hasher, ids, sink, nil, archiver, pipeline.Options{
		HashWorkers:        cfg.HashWorkers,
		PersistConcurrency: cfg.PersistConcurrency,
		Retry:              cfg.RetryPolicy(),
		ArchivePolicy:      policy,
	}, logger)

	summary, err := p.Run(ctx, raws)
	if summary != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(summary); encErr != nil {
			logger.Error("failed to write summary", zap.Error(encErr))
		}
	}
	if err != nil {
		logger.Fatal("ingestion run failed", zap.Error(err))
	}
}
