// Package cart holds the per-user shopping cart and its mutations.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/pickle-storefront/internal/domain/product"
)

var (
	// ErrItemNotFound is returned when an item id is not in the cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrPackSizeUnavailable is returned when the product has no variant of
	// the requested pack size.
	ErrPackSizeUnavailable = errors.New("selected pack size is unavailable")
	// ErrInvalidQuantity is returned for negative quantities and for lines
	// that would exceed MaxQuantity.
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
	// ErrVersionConflict is returned by Repository.Save when the stored cart
	// changed since it was read.
	ErrVersionConflict = errors.New("cart was modified concurrently")
)

// MaxQuantity caps the units of a single cart line.
const MaxQuantity = 99

// Item is a cart position. Price is the variant price captured when the item
// was added and is not refreshed afterwards.
type Item struct {
	ID          string
	ProductID   string
	ProductName string
	PackSize    product.PackSize
	Quantity    int
	Price       int64
}

// Cart is the mutable collection of items belonging to one user. Version
// increases by one on every successful save.
type Cart struct {
	UserID    string
	Items     []Item
	Version   int64
	UpdatedAt time.Time
}

// Subtotal is the sum of price times quantity over all items.
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, it := range c.Items {
		sum += it.Price * int64(it.Quantity)
	}
	return sum
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) find(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

func (c *Cart) findLine(productID string, size product.PackSize) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].PackSize == size {
			return i
		}
	}
	return -1
}

// Repository persists carts with optimistic concurrency.
type Repository interface {
	// Get returns the user's cart, or an empty cart with Version 0 when the
	// user has none yet.
	Get(ctx context.Context, userID string) (*Cart, error)
	// Save stores c if the stored version still equals c.Version and then
	// increments c.Version. Otherwise it returns ErrVersionConflict.
	Save(ctx context.Context, c *Cart) error
}

// ProductReader is the slice of the catalog the cart needs.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}
