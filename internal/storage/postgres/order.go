package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pickle-storefront/internal/domain/cart"
	"github.com/xenking/pickle-storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, shipping_info, payment_method, payment_status, upi_id,
		items_price, shipping_price, tax_price, discount_price, total_price, coupon_code,
		status, tracking_history, delivered_at, created_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	lockOrderSQL = getOrderSQL + ` FOR UPDATE`

	listUserOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text = '' OR status = $1) AND ($2::text = '' OR user_id = $2)
		ORDER BY created_at DESC, id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, tracking_history = $3, delivered_at = $4
		WHERE id = $1`

	revenueSQL = `SELECT date_trunc($2, created_at AT TIME ZONE 'UTC') AS bucket,
			sum(total_price)::bigint, count(*)
		FROM orders
		WHERE created_at >= $1 AND status <> $3
		GROUP BY bucket
		ORDER BY bucket`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateFromCart inserts the order and empties the owner's cart in a single
// transaction. The cart update is guarded by cartVersion so an order is
// never created from a cart that changed after it was priced.
func (r *OrderRepository) CreateFromCart(ctx context.Context, o *order.Order, cartVersion int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, encodeOrderItems(o.Items), encodeShipping(o.ShippingInfo),
			string(o.PaymentMethod), string(o.PaymentInfo.Status), o.PaymentInfo.UPIID,
			o.ItemsPrice, o.ShippingPrice, o.TaxPrice, o.DiscountPrice, o.TotalPrice, o.CouponCode,
			string(o.Status), encodeTracking(o.TrackingHistory), o.DeliveredAt, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}

		tag, err := tx.Exec(ctx, clearCartSQL, o.UserID, cartVersion)
		if err != nil {
			return fmt.Errorf("clearing cart for %q: %w", o.UserID, err)
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrVersionConflict
		}
		return nil
	})
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns a user's orders newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listUserOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns orders matching f newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), f.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Update locks the order row, applies fn and writes back the status fields.
func (r *OrderRepository) Update(ctx context.Context, id string, apply func(o *order.Order) error) (*order.Order, error) {
	var updated order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockOrderSQL, id)
		if err != nil {
			return fmt.Errorf("locking order %q: %w", id, err)
		}
		o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}

		if err := apply(&o); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, updateOrderStatusSQL, o.ID, string(o.Status), encodeTracking(o.TrackingHistory), o.DeliveredAt)
		if err != nil {
			return fmt.Errorf("updating order %q: %w", id, err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Revenue buckets non-cancelled order totals with date_trunc in UTC.
func (r *OrderRepository) Revenue(ctx context.Context, since time.Time, g order.Granularity) ([]order.RevenuePoint, error) {
	rows, err := r.pool.Query(ctx, revenueSQL, since, string(g), string(order.StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("querying revenue: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.RevenuePoint, error) {
		var p order.RevenuePoint
		if err := row.Scan(&p.Start, &p.Revenue, &p.Orders); err != nil {
			return p, err
		}
		p.Start = time.Date(p.Start.Year(), p.Start.Month(), p.Start.Day(), 0, 0, 0, 0, time.UTC)
		return p, nil
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                        order.Order
		items, shipping, history []byte
		method, payStatus, state string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items, &shipping, &method, &payStatus, &o.PaymentInfo.UPIID,
		&o.ItemsPrice, &o.ShippingPrice, &o.TaxPrice, &o.DiscountPrice, &o.TotalPrice, &o.CouponCode,
		&state, &history, &o.DeliveredAt, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentInfo.Status = order.PaymentStatus(payStatus)
	o.Status = order.Status(state)

	if o.Items, err = decodeOrderItems(items); err != nil {
		return o, errors.Wrapf(err, "order %s items", o.ID)
	}
	if o.ShippingInfo, err = decodeShipping(shipping); err != nil {
		return o, errors.Wrapf(err, "order %s shipping", o.ID)
	}
	if o.TrackingHistory, err = decodeTracking(history); err != nil {
		return o, errors.Wrapf(err, "order %s tracking", o.ID)
	}
	return o, nil
}
