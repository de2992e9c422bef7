package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pickle-storefront/internal/domain/product"
)

const (
	productColumns = `id, name, slug, description, category, price, discount_percent,
		images, variants, tags, ratings, reviews, is_active, created_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE ($1::text = '' OR lower(category) = lower($1))
		  AND ($2::text = '' OR name ILIKE $2 OR description ILIKE $2)
		  AND (is_active OR $3::bool)
		ORDER BY created_at DESC, id`

	topProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE is_active ORDER BY ratings DESC, created_at DESC LIMIT $1`

	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	updateProductSQL = `UPDATE products SET name = $2, slug = $3, description = $4, category = $5,
		price = $6, discount_percent = $7, images = $8, variants = $9, tags = $10,
		ratings = $11, reviews = $12, is_active = $13
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	countProductsSQL = `SELECT count(*), count(*) FILTER (WHERE is_active) FROM products`

	categoriesSQL = `SELECT category, count(*) FROM products
		WHERE is_active
		GROUP BY category
		ORDER BY lower(category), category`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns products matching f, newest first.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	search := ""
	if f.Search != "" {
		search = likePattern(f.Search)
	}
	rows, err := r.pool.Query(ctx, listProductsSQL, f.Category, search, f.IncludeInactive)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Top returns up to limit active products ordered by rating.
func (r *ProductRepository) Top(ctx context.Context, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, topProductsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Slug, p.Description, p.Category, p.Price, p.DiscountPercent,
		nonNil(p.Images), encodeVariants(p.Variants), nonNil(p.Tags), p.Ratings,
		encodeReviews(p.Reviews), p.IsActive, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "products_slug_key") {
			return errSlugTaken()
		}
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites all mutable columns of a product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Slug, p.Description, p.Category, p.Price, p.DiscountPercent,
		nonNil(p.Images), encodeVariants(p.Variants), nonNil(p.Tags), p.Ratings,
		encodeReviews(p.Reviews), p.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err, "products_slug_key") {
			return errSlugTaken()
		}
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Count returns the number of products in the catalog and how many of them
// are active.
func (r *ProductRepository) Count(ctx context.Context) (product.Counts, error) {
	var c product.Counts
	if err := r.pool.QueryRow(ctx, countProductsSQL).Scan(&c.Total, &c.Active); err != nil {
		return c, fmt.Errorf("counting products: %w", err)
	}
	return c, nil
}

func (r *ProductRepository) Categories(ctx context.Context) ([]product.CategorySummary, error) {
	rows, err := r.pool.Query(ctx, categoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.CategorySummary, error) {
		var c product.CategorySummary
		err := row.Scan(&c.Name, &c.Products)
		return c, err
	})
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p                 product.Product
		variants, reviews []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Category, &p.Price, &p.DiscountPercent,
		&p.Images, &variants, &p.Tags, &p.Ratings, &reviews, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if p.Variants, err = decodeVariants(variants); err != nil {
		return p, errors.Wrapf(err, "product %s variants", p.ID)
	}
	if p.Reviews, err = decodeReviews(reviews); err != nil {
		return p, errors.Wrapf(err, "product %s reviews", p.ID)
	}
	return p, nil
}

// uniqueViolation is the SQLSTATE of a unique constraint failure.
const uniqueViolation = "23505"

func errSlugTaken() error {
	return &product.ValidationError{Field: "slug", Reason: "already exists"}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
