package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pickle-storefront/internal/domain/wishlist"
)

const (
	getWishlistSQL = `SELECT product_ids FROM wishlists WHERE user_id = $1`

	saveWishlistSQL = `INSERT INTO wishlists (user_id, product_ids) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET product_ids = EXCLUDED.product_ids`
)

var _ wishlist.Repository = (*WishlistRepository)(nil)

// WishlistRepository implements wishlist.Repository backed by PostgreSQL.
type WishlistRepository struct {
	pool *pgxpool.Pool
}

// NewWishlistRepository returns a WishlistRepository that uses the given pool.
func NewWishlistRepository(pool *pgxpool.Pool) *WishlistRepository {
	return &WishlistRepository{pool: pool}
}

// Get returns the stored wishlist or an empty one.
func (r *WishlistRepository) Get(ctx context.Context, userID string) (*wishlist.Wishlist, error) {
	w := &wishlist.Wishlist{UserID: userID}
	err := r.pool.QueryRow(ctx, getWishlistSQL, userID).Scan(&w.ProductIDs)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting wishlist for %q: %w", userID, err)
	}
	return w, nil
}

// Save replaces the stored wishlist.
func (r *WishlistRepository) Save(ctx context.Context, w *wishlist.Wishlist) error {
	if _, err := r.pool.Exec(ctx, saveWishlistSQL, w.UserID, nonNil(w.ProductIDs)); err != nil {
		return fmt.Errorf("saving wishlist for %q: %w", w.UserID, err)
	}
	return nil
}
