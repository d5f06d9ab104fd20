package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/laundry-billing/internal/cache"
	"github.com/xenking/laundry-billing/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		dataDir     string
		databaseURL string
		redisAddr   string
	)

	flag.StringVar(&dataDir, "data-dir", "data/rates", "directory containing *.csv.gz rate sheets")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisAddr, "redis-addr", "", "Redis address whose tariff cache is cleared after import (or LAUNDRY_REDIS_ADDR env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if redisAddr == "" {
		redisAddr = os.Getenv("LAUNDRY_REDIS_ADDR")
	}

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
		if err != nil {
			slog.Error("list rate sheets failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		sort.Strings(matches)
		files = matches
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, redisAddr); err != nil {
		slog.Error("rates ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("rates ingest completed successfully")
}

func run(ctx context.Context, files []string, databaseURL, redisAddr string) error {
	if len(files) == 0 {
		return errors.New("no rate sheets to import")
	}

	slog.Info("reading rate sheets", slog.Int("files", len(files)))

	sheets, err := readSheets(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read rate sheets")
	}

	byBranch := merge(sheets)
	if len(byBranch) == 0 {
		slog.Info("no rates to write")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewTariffRepository(pool)

	var store cache.Store = cache.NoopStore{}
	if redisAddr != "" {
		rs := cache.NewRedisStore(cache.RedisConfig{Addr: redisAddr})
		defer func() { _ = rs.Close() }()
		store = rs
	}

	branches := make([]string, 0, len(byBranch))
	for b := range byBranch {
		branches = append(branches, b)
	}
	sort.Strings(branches)

	for _, branch := range branches {
		rates := byBranch[branch]
		if err := repo.SaveSpecialRates(ctx, branch, rates); err != nil {
			return errors.Wrapf(err, "save rates for branch %s", branch)
		}
		slog.Info("upserted special rates", slog.String("branch", branch), slog.Int("count", len(rates)))

		// A stale cache only delays the new rates by one TTL.
		if err := cache.InvalidateBranch(ctx, store, branch); err != nil {
			slog.Warn("tariff cache invalidation failed",
				slog.String("branch", branch),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("import summary", slog.String("branches", strings.Join(branches, ",")))
	return nil
}
