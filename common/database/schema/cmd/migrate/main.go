package main

import (
	"context"
	"log"
	"time"

	"jobtrends/common/config"
	"jobtrends/common/database"
	"jobtrends/common/database/schema"
	"jobtrends/common/database/schema/migrations"

	goflags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type options struct {
	DSN      string        `long:"dsn" env:"CLICKHOUSE_DSN" default:"localhost:9000" description:"ClickHouse host list"`
	Database string        `long:"database" env:"CLICKHOUSE_DATABASE" default:"jobtrends" description:"ClickHouse database"`
	Username string        `long:"username" env:"CLICKHOUSE_USERNAME" default:"default" description:"ClickHouse user"`
	Password string        `long:"password" env:"CLICKHOUSE_PASSWORD" description:"ClickHouse password"`
	Timeout  time.Duration `long:"timeout" default:"2m" description:"overall migration timeout"`
	Down     int           `long:"down" description:"roll back the migration with this version"`
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

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	db, err := database.New(ctx, database.Options{
		DSN:      opts.DSN,
		Database: opts.Database,
		Username: opts.Username,
		Password: opts.Password,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to clickhouse", zap.Error(err))
	}
	defer db.Close()

	migrator := schema.NewMigrator(db.Conn(), logger)

	if opts.Down > 0 {
		for _, migration := range migrations.All() {
			if migration.Version != opts.Down {
				continue
			}
			if err := migrator.RollbackMigration(ctx, migration); err != nil {
				logger.Fatal("failed to roll back migration", zap.Int("version", migration.Version), zap.Error(err))
			}
			logger.Info("rolled back migration", zap.Int("version", migration.Version))
			return
		}
		logger.Fatal("unknown migration version", zap.Int("version", opts.Down))
	}

	applied, err := migrator.Migrate(ctx, migrations.All())
	if err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	logger.Info("all migrations completed successfully", zap.Int("applied", applied))
}
