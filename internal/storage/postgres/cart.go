package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pickle-storefront/internal/domain/cart"
)

const (
	getCartSQL = `SELECT items, version, updated_at FROM carts WHERE user_id = $1`

	insertCartSQL = `INSERT INTO carts (user_id, items, version, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id) DO NOTHING`

	updateCartSQL = `UPDATE carts SET items = $2, version = version + 1, updated_at = $4
		WHERE user_id = $1 AND version = $3`

	clearCartSQL = `UPDATE carts SET items = '[]', version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository with a version column used for
// optimistic concurrency.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the stored cart or an empty one with version 0.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID}

	var items []byte
	err := r.pool.QueryRow(ctx, getCartSQL, userID).Scan(&items, &c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, nil
		}
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}

	if c.Items, err = decodeCartItems(items); err != nil {
		return nil, errors.Wrapf(err, "cart %s items", userID)
	}
	return c, nil
}

// Save writes c when the stored version equals c.Version.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items := encodeCartItems(c.Items)

	var (
		tag pgconn.CommandTag
		err error
	)
	if c.Version == 0 {
		tag, err = r.pool.Exec(ctx, insertCartSQL, c.UserID, items, c.UpdatedAt)
	} else {
		tag, err = r.pool.Exec(ctx, updateCartSQL, c.UserID, items, c.Version, c.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("saving cart for %q: %w", c.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrVersionConflict
	}

	c.Version++
	return nil
}
