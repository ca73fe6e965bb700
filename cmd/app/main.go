// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutoring-payments/internal/config"
	"tutoring-payments/internal/domain/model"
	"tutoring-payments/internal/domain/ports/adapter"
	payAdapters "tutoring-payments/internal/infra/adapters/payment"
	"tutoring-payments/internal/infra/api"
	"tutoring-payments/internal/infra/api/apiv1"
	pg "tutoring-payments/internal/infra/db/postgres"
	"tutoring-payments/internal/infra/kafka"
	"tutoring-payments/internal/infra/logging"
	"tutoring-payments/internal/infra/metrics"
	red "tutoring-payments/internal/infra/redis"
	"tutoring-payments/internal/infra/sched"
	"tutoring-payments/internal/infra/worker"
	"tutoring-payments/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop fallbacks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	if cfg.Database.Migrate {
		if err := pg.Migrate(cfg.Database.URL, logger); err != nil {
			logger.Fatal().Err(err).Msg("migrations")
		}
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	walletRepo := pg.NewWalletRepo(pool)
	refundRepo := pg.NewRefundRepo(pool)
	invoiceRepo := pg.NewInvoiceRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	profileRepo := pg.NewProfileRepo(pool)
	sessionRepo := pg.NewSessionRepo(pool)
	inboxRepo := pg.NewGatewayEventRepo(pool)
	outboxRepo := pg.NewOutboxRepo(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	switch cfg.Gateway.Provider {
	case "card":
		gateway, err = payAdapters.NewCardGateway(cfg.Gateway)
		if err != nil {
			logger.Fatal().Err(err).Msg("card gateway")
		}
	default:
		logger.Warn().Msg("payment gateway: noop (charges never settle on their own)")
		gateway = payAdapters.NewNoopPaymentGateway()
	}
	logger.Info().
		Str("gateway", gateway.Name()).
		Str("base_url", cfg.Gateway.BaseURL).
		Str("api_key", logging.Redact(cfg.Gateway.APIKey, cfg.Runtime.Dev)).
		Str("webhook_secret", logging.Redact(cfg.Gateway.WebhookSecret, cfg.Runtime.Dev)).
		Msg("payment gateway configured")

	// ---- Use cases ----
	walletUC := usecase.NewWalletUseCase(walletRepo, tm, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, profileRepo, outboxRepo, tm, logger)
	paymentUC := usecase.NewPaymentUseCase(usecase.PaymentDeps{
		Payments:      paymentRepo,
		Invoices:      invoiceRepo,
		Inbox:         inboxRepo,
		Outbox:        outboxRepo,
		Sessions:      sessionRepo,
		Wallets:       walletUC,
		Subscriptions: subUC,
		Gateway:       gateway,
		Locker:        locker,
		TM:            tm,
	}, cfg.Ledger, cfg.Redis.LockTTL, logger)
	refundUC := usecase.NewRefundUseCase(refundRepo, paymentRepo, outboxRepo, tm, logger)

	// ---- Event publisher ----
	var publisher adapter.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		topicCtx, topicCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := kafka.EnsureTopics(topicCtx, cfg.Kafka.Brokers, model.AllTopics, logger); err != nil {
			logger.Warn().Err(err).Msg("kafka topics not ensured; relying on auto creation")
		}
		topicCancel()
		publisher = kafka.NewPublisher(cfg.Kafka, logger)
	} else {
		logger.Warn().Msg("kafka.brokers empty; outbox events go to the log")
		publisher = kafka.NewLogPublisher(logger)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("close publisher")
		}
	}()

	// ---- Background workers ----
	workers := worker.NewPool(2, logger)
	workers.Start(ctx)
	defer workers.Stop()

	outbox := worker.NewOutboxProcessor(outboxRepo, publisher, tm, cfg.Scheduler.OutboxInterval, cfg.Kafka.BatchSize, logger)
	go outbox.Start(ctx, workers)

	reconciler := sched.NewPaymentReconciler(paymentUC, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.StaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subRepo, subUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP ----
	v1 := apiv1.NewServer(apiv1.Deps{
		Payments:      paymentUC,
		Wallets:       walletUC,
		Refunds:       refundUC,
		Subscriptions: subUC,
		Auth:          apiv1.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Verifier:      payAdapters.NewWebhookVerifier(cfg.Gateway.WebhookSecret, cfg.Gateway.SignatureTolerance),
	}, logger)
	router := api.NewRouter(v1, logger, map[string]api.Pinger{"postgres": pool, "redis": redisClient})
	server := api.NewServer(cfg.HTTP, router, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	logger.Info().Msg("bye")
}
