package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"propertyhub-payments/internal/config"
	"propertyhub-payments/internal/infra/db/mongodb"
	pg "propertyhub-payments/internal/infra/db/postgres"
	"propertyhub-payments/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	sqlPath := flag.String("sql", "deploy/postgres/init.sql", "schema file applied for storage.driver=postgres")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Storage.Driver {
	case "postgres":
		schema, err := os.ReadFile(*sqlPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *sqlPath).Msg("read schema")
		}
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		if _, err := pool.Exec(ctx, string(schema)); err != nil {
			logger.Fatal().Err(err).Msg("apply schema")
		}
		logger.Info().Str("path", *sqlPath).Msg("postgres schema applied")

	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			logger.Fatal().Err(err).Msg("mongo")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		if err := mongodb.EnsureIndexes(ctx, client.Database(cfg.Mongo.Database)); err != nil {
			logger.Fatal().Err(err).Msg("ensure indexes")
		}
		logger.Info().Str("database", cfg.Mongo.Database).Msg("mongo indexes ensured")

	default:
		logger.Info().Str("driver", cfg.Storage.Driver).Msg("nothing to migrate")
	}
}
