// Command coupon-ingest imports partner coupon lists. Each input is a gzip
// file with one CODE:PERCENT per line; a code is imported when at least
// --min-sources files list it.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/pickle-storefront/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		batchSize   int
		dryRun      bool
		cfg         ingestConfig
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory with *.gz code lists, used when no files are given")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&cfg.MinSources, "min-sources", 2, "number of files a code must appear in")
	flag.UintVar(&cfg.BloomCapacity, "bloom-capacity", 10_000_000, "expected codes per file")
	flag.Float64Var(&cfg.BloomFPR, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.IntVar(&batchSize, "batch-size", 1000, "coupons per upsert statement")
	flag.BoolVar(&dryRun, "dry-run", false, "collect and report codes without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, flag.Args(), dataDir, databaseURL, batchSize, dryRun, cfg); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, files []string, dataDir, databaseURL string, batchSize int, dryRun bool, cfg ingestConfig) error {
	if len(files) == 0 {
		var err error
		if files, err = filepath.Glob(filepath.Join(dataDir, "*.gz")); err != nil {
			return errors.Wrap(err, "list data dir")
		}
	}
	slog.Info("scanning code lists", slog.Int("files", len(files)), slog.Int("min_sources", cfg.MinSources))

	rules, err := collect(ctx, files, cfg)
	if err != nil {
		return errors.Wrap(err, "collect codes")
	}
	if len(rules) == 0 || dryRun {
		slog.Info("nothing to write", slog.Int("codes", len(rules)), slog.Bool("dry_run", dryRun))
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	n, err := upsertBatched(ctx, postgres.NewCouponRepository(pool), rules, batchSize)
	if err != nil {
		return errors.Wrap(err, "write coupons")
	}
	slog.Info("coupons written", slog.Int64("rows", n))
	return nil
}
