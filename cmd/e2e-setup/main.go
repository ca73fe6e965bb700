package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tutoring-payments/internal/config"
	"tutoring-payments/internal/infra/api/apiv1"
	"tutoring-payments/internal/infra/db/postgres"
	"tutoring-payments/internal/infra/logging"
	"tutoring-payments/internal/infra/redis"
	"tutoring-payments/internal/usecase"
)

const (
	demoStudent = "student-demo"
	demoTutor   = "tutor-demo"
	demoAdmin   = "admin-demo"
)

// This script is for setting up a clean, predictable database state
// for manual end-to-end testing against a local stack.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := postgres.Migrate(cfg.Database.URL, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}
	pool, err := postgres.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClient.Close()

	logger.Info().Msg("--- Starting E2E Environment Setup ---")

	logger.Info().Msg("[1/4] Wiping Redis (payment locks)...")
	if err := redisClient.FlushDB(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to flush redis")
	}

	logger.Info().Msg("[2/4] Wiping ledger tables...")
	if _, err := pool.Exec(ctx, `
		TRUNCATE
			outbox, gateway_events, invoices, invoice_sequences, refunds,
			wallet_transactions, wallets, subscriptions, payments,
			tutor_profiles, tutoring_sessions
		CASCADE;
	`); err != nil {
		logger.Fatal().Err(err).Msg("failed to truncate tables")
	}

	logger.Info().Msg("[3/4] Seeding tutor, sessions and a funded wallet...")
	if err := seedMarketplace(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("seed marketplace rows")
	}
	quiet := zerolog.Nop()
	wallets := usecase.NewWalletUseCase(postgres.NewWalletRepo(pool), postgres.NewTxManager(pool), &quiet)
	if _, err := wallets.Credit(ctx, demoStudent, decimal.NewFromInt(500), "e2e seed balance", "seed"); err != nil {
		logger.Fatal().Err(err).Msg("fund demo wallet")
	}

	logger.Info().Msg("[4/4] Minting bearer tokens (24h)...")
	auth := apiv1.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	for _, who := range []struct{ id, role string }{
		{demoStudent, apiv1.RoleUser},
		{demoTutor, apiv1.RoleUser},
		{demoAdmin, apiv1.RoleAdmin},
	} {
		tok, err := auth.Mint(who.id, who.role, 24*time.Hour)
		if err != nil {
			logger.Fatal().Err(err).Msg("mint token")
		}
		fmt.Printf("%s (%s):\n  %s\n", who.id, who.role, tok)
	}

	logger.Info().Msg("--- E2E Environment Setup Complete ---")
}

// seedMarketplace inserts the rows owned by the surrounding marketplace:
// one tutor profile and three sessions the demo student can pay for.
func seedMarketplace(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx,
		`INSERT INTO tutor_profiles (tutor_id) VALUES ($1)`, demoTutor); err != nil {
		return fmt.Errorf("tutor profile: %w", err)
	}
	sessions := []struct {
		id, title string
		amount    string
	}{
		{"session-algebra", "Algebra basics", "50.00"},
		{"session-physics", "Mechanics revision", "75.00"},
		{"session-essay", "Essay feedback", "30.00"},
	}
	for _, s := range sessions {
		if _, err := pool.Exec(ctx,
			`INSERT INTO tutoring_sessions (id, student_id, tutor_id, title, total_amount, status)
			 VALUES ($1, $2, $3, $4, $5, 'pending')`,
			s.id, demoStudent, demoTutor, s.title, s.amount); err != nil {
			return fmt.Errorf("session %s: %w", s.id, err)
		}
	}
	return nil
}
