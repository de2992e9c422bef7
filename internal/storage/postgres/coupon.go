package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pickle-storefront/internal/domain/coupon"
)

const (
	listCouponsSQL = `SELECT code, percent, description FROM coupons ORDER BY code`

	upsertCouponSQL = `INSERT INTO coupons (code, percent, description, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (code) DO UPDATE
		SET percent = EXCLUDED.percent, description = EXCLUDED.description, updated_at = now()`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// List returns all stored coupon rules.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (coupon.Rule, error) {
		var rule coupon.Rule
		err := row.Scan(&rule.Code, &rule.Percent, &rule.Description)
		return rule, err
	})
}

// Upsert inserts or updates rules in one batch and returns the number of
// rows written.
func (r *CouponRepository) Upsert(ctx context.Context, rules []coupon.Rule) (int64, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rule := range rules {
		batch.Queue(upsertCouponSQL, rule.Code, rule.Percent, rule.Description)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	var n int64
	for _, rule := range rules {
		tag, err := br.Exec()
		if err != nil {
			return n, fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
		}
		n += tag.RowsAffected()
	}
	return n, nil
}
