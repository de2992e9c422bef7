// Package wishlist keeps the set of products a user has saved for later.
package wishlist

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
	"github.com/xenking/pickle-storefront/internal/domain/product"
)

// Wishlist is the ordered set of saved product ids of one user.
type Wishlist struct {
	UserID     string
	ProductIDs []string
}

// Contains reports whether productID is saved.
func (w *Wishlist) Contains(productID string) bool {
	for _, id := range w.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// Toggle adds productID if absent and removes it otherwise. It reports
// whether the product is saved afterwards.
func (w *Wishlist) Toggle(productID string) bool {
	for i, id := range w.ProductIDs {
		if id == productID {
			w.ProductIDs = append(w.ProductIDs[:i], w.ProductIDs[i+1:]...)
			return false
		}
	}
	w.ProductIDs = append(w.ProductIDs, productID)
	return true
}

// Repository persists wishlists.
type Repository interface {
	// Get returns the user's wishlist, empty when none is stored.
	Get(ctx context.Context, userID string) (*Wishlist, error)
	Save(ctx context.Context, w *Wishlist) error
}

// ProductReader checks that saved products exist.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Service manages the caller's wishlist.
type Service struct {
	lists    Repository
	products ProductReader
}

// NewService creates a wishlist Service.
func NewService(lists Repository, products ProductReader) *Service {
	return &Service{lists: lists, products: products}
}

// Get returns the caller's wishlist.
func (s *Service) Get(ctx context.Context, id auth.Identity) (*Wishlist, error) {
	if id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	return s.lists.Get(ctx, id.UserID)
}

// Toggle saves or unsaves a product for the caller.
func (s *Service) Toggle(ctx context.Context, id auth.Identity, productID string) (*Wishlist, error) {
	if id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	w, err := s.lists.Get(ctx, id.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get wishlist")
	}
	w.Toggle(productID)
	if err := s.lists.Save(ctx, w); err != nil {
		return nil, errors.Wrap(err, "save wishlist")
	}
	return w, nil
}
