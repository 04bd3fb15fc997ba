package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"propertyhub-payments/internal/config"
	"propertyhub-payments/internal/domain/ports/repository"
	"propertyhub-payments/internal/infra/db/memory"
	"propertyhub-payments/internal/infra/db/mongodb"
	pg "propertyhub-payments/internal/infra/db/postgres"
)

// stores is the storage backend selected by storage.driver.
type stores struct {
	tm       repository.TransactionManager
	payments repository.PaymentRepository
	ledger   repository.SubscriptionLedger
	notes    repository.CreditNoteRepository
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second)
		logger.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("storage: postgres")
		return &stores{
			tm:       pg.NewTxManager(pool),
			payments: pg.NewPaymentRepo(pool),
			ledger:   pg.NewSubscriptionLedger(pool),
			notes:    pg.NewCreditNoteRepo(pool),
			close:    pool.Close,
		}, nil

	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		logger.Info().Str("database", cfg.Mongo.Database).Msg("storage: mongo")
		return &stores{
			tm:       mongodb.NewTxManager(client),
			payments: mongodb.NewPaymentRepo(db),
			ledger:   mongodb.NewSubscriptionLedger(db),
			notes:    mongodb.NewCreditNoteRepo(db),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil

	case "memory":
		logger.Warn().Msg("storage: memory; data is lost on restart")
		s := memory.NewStore()
		return &stores{
			tm:       s.TxManager(),
			payments: s.Payments(),
			ledger:   s.Subscriptions(),
			notes:    s.CreditNotes(),
			close:    func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
