package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"propertyhub-payments/internal/config"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/adapter"
	payAdapters "propertyhub-payments/internal/infra/adapters/payment"
	"propertyhub-payments/internal/infra/adapters/rent"
	"propertyhub-payments/internal/infra/api"
	"propertyhub-payments/internal/infra/logging"
	"propertyhub-payments/internal/infra/metrics"
	red "propertyhub-payments/internal/infra/redis"
	"propertyhub-payments/internal/infra/sched"
	"propertyhub-payments/internal/infra/scheduler"
	"propertyhub-payments/internal/infra/security"
	"propertyhub-payments/internal/infra/worker"
	"propertyhub-payments/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (debug in error responses, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	metrics.SetBuildInfo(version, commit, gw.Mode())

	var (
		locker  adapter.Locker
		limiter adapter.RateLimiter
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		locker = red.NewLocker(rc)
		limiter = red.NewRateLimiter(rc)
		logger.Info().Msg("redis: refund locks and rate limiting enabled")
	} else {
		logger.Warn().Msg("redis not configured: refund locking and rate limiting disabled")
	}

	gwCfg := cfg.Payment.Gateway
	verifier := security.NewSignatureVerifier(gwCfg.KeySecret, gwCfg.WebhookSecret, gw.Mode() == "mock")
	plans := model.NewPriceTable(cfg.Payment.Plans)
	rentRecorder := rent.NewLogRecorder(logger)

	fulfiller := usecase.NewFulfiller(st.tm, st.payments, st.ledger, plans, logger)
	orderUC := usecase.NewOrderUseCase(st.payments, gw, plans, cfg.Payment.Currency, logger)
	verifyUC := usecase.NewVerifyUseCase(st.payments, verifier, fulfiller, rentRecorder, logger)
	webhookUC := usecase.NewWebhookUseCase(st.payments, verifier, fulfiller, rentRecorder, logger)
	refundUC := usecase.NewRefundUseCase(st.tm, st.payments, st.notes, gw, locker, logger)
	offlineUC := usecase.NewOfflineUseCase(st.payments, cfg.Payment.Currency, logger)
	queryUC := usecase.NewQueryUseCase(st.payments, st.ledger, plans)

	pool := worker.NewPool(cfg.Scheduler.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	sc := scheduler.New(logger)
	if err := sc.Add(cfg.Scheduler.ReconcileCron,
		sched.NewPaymentReconciler(fulfiller, pool, cfg.Scheduler.StaleAfter, cfg.Scheduler.BatchSize, logger)); err != nil {
		return err
	}
	if err := sc.Add(cfg.Scheduler.ExpiryCron,
		sched.NewExpiryWorker(usecase.NewExpiryMarker(st.ledger, logger), logger)); err != nil {
		return err
	}
	sc.Start(ctx)

	srv := api.NewServer(orderUC, verifyUC, webhookUC, refundUC, offlineUC, queryUC,
		api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		limiter,
		api.Options{
			Port:               cfg.HTTP.Port,
			RequestTimeout:     cfg.HTTP.RequestTimeout,
			SignatureHeader:    gwCfg.SignatureHeader,
			GatewayMode:        gw.Mode(),
			RateLimitPerMinute: cfg.RateLimit.PerMinute,
			Dev:                cfg.Runtime.Dev,
		},
		logger,
	)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	sc.Stop(shutdownCtx)
	logger.Info().Msg("stopped")
	return nil
}

func newGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	g := cfg.Payment.Gateway
	if g.Mode == "live" {
		gw, err := payAdapters.NewRazorpayGateway(payAdapters.RazorpayOptions{
			BaseURL:         g.BaseURL,
			KeyID:           g.KeyID,
			KeySecret:       g.KeySecret,
			Timeout:         g.Timeout,
			BreakerFailures: g.BreakerFailures,
			BreakerCooldown: g.BreakerCooldown,
		})
		if err != nil {
			return nil, fmt.Errorf("gateway: %w", err)
		}
		logger.Info().Str("base_url", g.BaseURL).Str("key_id", logging.Redact(g.KeyID, cfg.Runtime.Dev)).Msg("gateway: live")
		return gw, nil
	}
	logger.Warn().Msg("gateway: mock (no live credentials configured)")
	return payAdapters.NewMockGateway(g.KeyID), nil
}
