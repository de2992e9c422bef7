package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
	"github.com/xenking/pickle-storefront/internal/domain/product"
)

// DefaultMaxAttempts bounds how often a mutation is re-applied after a
// version conflict.
const DefaultMaxAttempts = 3

// Service applies cart mutations for the calling user. Every mutation reads
// the cart, applies a delta and saves it conditionally on the version read,
// so concurrent requests from the same user cannot overwrite each other.
type Service struct {
	carts       Repository
	products    ProductReader
	now         func() time.Time
	maxAttempts int
}

// NewService creates a cart Service.
func NewService(carts Repository, products ProductReader) *Service {
	return &Service{
		carts:       carts,
		products:    products,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
}

// Get returns the caller's cart.
func (s *Service) Get(ctx context.Context, id auth.Identity) (*Cart, error) {
	if id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	return s.carts.Get(ctx, id.UserID)
}

// Add puts quantity units of the product's size variant into the cart,
// merging with an existing line of the same product and size. A zero
// quantity adds one unit.
func (s *Service) Add(ctx context.Context, id auth.Identity, productID string, size product.PackSize, quantity int) (*Cart, error) {
	if id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	if quantity < 0 || quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		quantity = 1
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, product.ErrNotFound
	}
	variant, ok := p.Variant(size)
	if !ok {
		return nil, ErrPackSizeUnavailable
	}

	return s.mutate(ctx, id.UserID, func(c *Cart) error {
		if i := c.findLine(p.ID, size); i >= 0 {
			if c.Items[i].Quantity+quantity > MaxQuantity {
				return ErrInvalidQuantity
			}
			c.Items[i].Quantity += quantity
			return nil
		}
		c.Items = append(c.Items, Item{
			ID:          uuid.New().String(),
			ProductID:   p.ID,
			ProductName: p.Name,
			PackSize:    size,
			Quantity:    quantity,
			Price:       variant.Price,
		})
		return nil
	})
}

// UpdateQuantity sets the quantity of an item. A quantity of zero or less
// removes the item.
func (s *Service) UpdateQuantity(ctx context.Context, id auth.Identity, itemID string, quantity int) (*Cart, error) {
	if id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	if quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, id.UserID, func(c *Cart) error {
		i := c.find(itemID)
		if i < 0 {
			return ErrItemNotFound
		}
		if quantity <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
		c.Items[i].Quantity = quantity
		return nil
	})
}

// Remove deletes an item from the cart.
func (s *Service) Remove(ctx context.Context, id auth.Identity, itemID string) (*Cart, error) {
	return s.UpdateQuantity(ctx, id, itemID, 0)
}

func (s *Service) mutate(ctx context.Context, userID string, apply func(c *Cart) error) (*Cart, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		c, err := s.carts.Get(ctx, userID)
		if err != nil {
			return nil, errors.Wrap(err, "get cart")
		}
		if err := apply(c); err != nil {
			return nil, err
		}
		c.UpdatedAt = s.now()

		err = s.carts.Save(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, errors.Wrap(err, "save cart")
		}
		lastErr = err
	}
	return nil, lastErr
}
