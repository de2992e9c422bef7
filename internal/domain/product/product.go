package product

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// PackSize is the jar size a variant is sold in.
type PackSize string

const (
	PackSize250g PackSize = "250g"
	PackSize500g PackSize = "500g"
	PackSize1kg  PackSize = "1kg"
)

// Valid reports whether p is one of the sizes the store sells.
func (p PackSize) Valid() bool {
	switch p {
	case PackSize250g, PackSize500g, PackSize1kg:
		return true
	}
	return false
}

// Limits enforced by Validate.
const (
	MaxNameLength      = 100
	MaxPrice           = 99999
	MaxDiscountPercent = 90
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID              string
	Name            string
	Slug            string
	Description     string
	Category        string
	Price           int64
	DiscountPercent int
	Images          []string
	Variants        []Variant
	Tags            []string
	Ratings         decimal.Decimal
	Reviews         []Review
	IsActive        bool
	CreatedAt       time.Time
}

// Variant is a purchasable pack size of a product with its own price.
type Variant struct {
	PackSize PackSize
	Price    int64
	Stock    int
}

// Review is a customer rating. Each user has at most one review per product.
type Review struct {
	UserID    string
	Name      string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// ValidationError reports the first invalid field of a product.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Variant returns the variant sold in size.
func (p *Product) Variant(size PackSize) (Variant, bool) {
	for _, v := range p.Variants {
		if v.PackSize == size {
			return v, true
		}
	}
	return Variant{}, false
}

// Validate checks catalog invariants. It fills Slug from Name when empty.
func (p *Product) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return &ValidationError{Field: "name", Reason: "required"}
	case len(p.Name) > MaxNameLength:
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("longer than %d characters", MaxNameLength)}
	case p.Category == "":
		return &ValidationError{Field: "category", Reason: "required"}
	case p.Price < 0 || p.Price > MaxPrice:
		return &ValidationError{Field: "price", Reason: fmt.Sprintf("must be within [0, %d]", MaxPrice)}
	case p.DiscountPercent < 0 || p.DiscountPercent > MaxDiscountPercent:
		return &ValidationError{Field: "discountPercentage", Reason: fmt.Sprintf("must be within [0, %d]", MaxDiscountPercent)}
	case len(p.Variants) == 0:
		return &ValidationError{Field: "variants", Reason: "at least one variant is required"}
	}

	seen := make(map[PackSize]bool, len(p.Variants))
	for _, v := range p.Variants {
		if !v.PackSize.Valid() {
			return &ValidationError{Field: "variants.packSize", Reason: fmt.Sprintf("unknown pack size %q", v.PackSize)}
		}
		if seen[v.PackSize] {
			return &ValidationError{Field: "variants.packSize", Reason: fmt.Sprintf("duplicate pack size %q", v.PackSize)}
		}
		seen[v.PackSize] = true
		if v.Price < 0 {
			return &ValidationError{Field: "variants.price", Reason: "must not be negative"}
		}
		if v.Stock < 0 {
			return &ValidationError{Field: "variants.stock", Reason: "must not be negative"}
		}
	}

	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	return nil
}

// UpsertReview replaces the review by the same user or appends a new one and
// recomputes the average rating.
func (p *Product) UpsertReview(r Review) error {
	if r.Rating < 1 || r.Rating > 5 {
		return &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}

	replaced := false
	for i := range p.Reviews {
		if p.Reviews[i].UserID == r.UserID {
			p.Reviews[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		p.Reviews = append(p.Reviews, r)
	}

	sum := decimal.Zero
	for _, rv := range p.Reviews {
		sum = sum.Add(decimal.NewFromInt(int64(rv.Rating)))
	}
	p.Ratings = sum.Div(decimal.NewFromInt(int64(len(p.Reviews)))).Round(2)
	return nil
}

// Slugify lower-cases s and joins alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Filter narrows a catalog listing.
type Filter struct {
	Category string
	// Search is matched case-insensitively against name and description.
	Search          string
	IncludeInactive bool
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Top(ctx context.Context, limit int) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (Counts, error)
	// Categories lists the categories of active products with their
	// product counts, ordered by name.
	Categories(ctx context.Context) ([]CategorySummary, error)
}

// Counts is the catalog size for the admin dashboard.
type Counts struct {
	Total  int
	Active int
}

// CategorySummary is one storefront category derived from the catalog.
type CategorySummary struct {
	Name     string
	Slug     string
	Products int
}

// SummarizeCategories groups active products by category, ordered by name
// case-insensitively.
func SummarizeCategories(ps []Product) []CategorySummary {
	idx := make(map[string]int)
	var out []CategorySummary
	for _, p := range ps {
		if !p.IsActive {
			continue
		}
		i, ok := idx[p.Category]
		if !ok {
			i = len(out)
			idx[p.Category] = i
			out = append(out, CategorySummary{Name: p.Category})
		}
		out[i].Products++
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
