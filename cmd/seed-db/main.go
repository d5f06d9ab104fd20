package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/xenking/laundry-billing/internal/domain/auth"
	"github.com/xenking/laundry-billing/internal/handler"
	"github.com/xenking/laundry-billing/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		databaseURL  string
		seedFile     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/seed.yaml", "path to seed YAML file")
	flag.StringVar(&apiKey, "api-key", "", "API key for the seeded staff member (or LAUNDRY_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or LAUNDRY_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("LAUNDRY_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or LAUNDRY_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("LAUNDRY_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedFile, apiKey, pepper string) error {
	seed, err := readSeed(seedFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	tariffs := postgres.NewTariffRepository(pool)
	for _, b := range seed.Branches {
		if err := seedBranch(ctx, tariffs, b); err != nil {
			return errors.Wrapf(err, "seed branch %s", b.ID)
		}
	}

	return seedAPIKey(ctx, pool, seed.Staff, apiKey, pepper)
}

func seedBranch(ctx context.Context, repo *postgres.TariffRepository, b branchSeed) error {
	if err := repo.SaveBranch(ctx, postgres.Branch{ID: b.ID, Name: b.Name, Address: b.Address, Phone: b.Phone}); err != nil {
		return err
	}
	slog.Info("upserted branch", slog.String("id", b.ID), slog.String("name", b.Name))

	if err := repo.SaveSettings(ctx, b.ID, b.Settings.toDomain()); err != nil {
		return err
	}

	items, err := b.catalog()
	if err != nil {
		return err
	}
	if err := repo.SaveCatalogItems(ctx, b.ID, items); err != nil {
		return err
	}
	slog.Info("upserted catalog items", slog.String("branch", b.ID), slog.Int("count", len(items)))

	rates, err := b.rates()
	if err != nil {
		return err
	}
	if err := repo.SaveSpecialRates(ctx, b.ID, rates); err != nil {
		return err
	}
	slog.Info("upserted special rates", slog.String("branch", b.ID), slog.Int("count", len(rates)))

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, staff staffSeed, apiKey, pepper string) error {
	role, err := auth.ParseRole(staff.Role)
	if err != nil {
		return errors.Wrapf(err, "staff %s", staff.StaffID)
	}

	info := auth.APIKeyInfo{
		ID:       staff.KeyID,
		KeyHash:  handler.HashAPIKey(apiKey, []byte(pepper)),
		Name:     staff.Name,
		StaffID:  staff.StaffID,
		BranchID: staff.BranchID,
		Role:     role,
	}
	if err := postgres.NewAPIKeyRepository(pool).Save(ctx, info); err != nil {
		return errors.Wrap(err, "upsert API key")
	}

	slog.Info("upserted API key",
		slog.String("id", info.ID),
		slog.String("staff", info.StaffID),
		slog.String("branch", info.BranchID),
	)
	return nil
}
