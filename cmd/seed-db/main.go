// Command seed-db applies the schema and loads the starter pickle catalog.
// Reruns skip products whose slug already exists. Coupons are not seeded:
// the built-in codes apply whenever COUPON_CODES is unset.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/pickle-storefront/internal/domain/product"
	"github.com/xenking/pickle-storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to the catalog JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}
	catalog, err := parseCatalog(data)
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

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), catalog); err != nil {
		return errors.Wrap(err, "seed products")
	}
	return nil
}

func seedProducts(ctx context.Context, repo product.Repository, catalog []product.Product) error {
	existing, err := repo.List(ctx, product.Filter{IncludeInactive: true})
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	seeded := make(map[string]bool, len(existing))
	for _, p := range existing {
		seeded[p.Slug] = true
	}

	now := time.Now()
	for i := range catalog {
		p := &catalog[i]
		if seeded[p.Slug] {
			slog.Info("product exists, skipping", slog.String("slug", p.Slug))
			continue
		}
		p.ID = uuid.NewString()
		p.CreatedAt = now
		if err := repo.Create(ctx, p); err != nil {
			return errors.Wrapf(err, "create product %s", p.Slug)
		}
		slog.Info("created product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}
