package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
)

// TopLimit is the number of products returned by Service.Top.
const TopLimit = 8

// Service implements catalog browsing and administration.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns active products matching f. Administrators may include
// inactive ones.
func (s *Service) List(ctx context.Context, id auth.Identity, f Filter) ([]Product, error) {
	if !id.IsAdmin() {
		f.IncludeInactive = false
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, f)
}

// Top returns the best rated active products.
func (s *Service) Top(ctx context.Context) ([]Product, error) {
	return s.repo.Top(ctx, TopLimit)
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, id auth.Identity, p *Product) error {
	if err := id.RequireAdmin(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = uuid.New().String()
	p.CreatedAt = s.now()
	p.Ratings = p.Ratings.Round(2)
	return s.repo.Create(ctx, p)
}

// Update replaces the editable fields of an existing product. Reviews and
// ratings are preserved.
func (s *Service) Update(ctx context.Context, id auth.Identity, productID string, in *Product) (*Product, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	cur, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	in.ID = cur.ID
	in.CreatedAt = cur.CreatedAt
	in.Reviews = cur.Reviews
	in.Ratings = cur.Ratings
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, in); err != nil {
		return nil, errors.Wrapf(err, "update product %s", productID)
	}
	return in, nil
}

// Count returns the catalog size and how many products are active.
func (s *Service) Count(ctx context.Context, id auth.Identity) (Counts, error) {
	if err := id.RequireAdmin(); err != nil {
		return Counts{}, err
	}
	return s.repo.Count(ctx)
}

// Categories lists the storefront categories of active products.
func (s *Service) Categories(ctx context.Context) ([]CategorySummary, error) {
	cs, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	for i := range cs {
		cs[i].Slug = Slugify(cs[i].Name)
	}
	return cs, nil
}

// Delete removes a product from the catalog.
func (s *Service) Delete(ctx context.Context, id auth.Identity, productID string) error {
	if err := id.RequireAdmin(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, productID)
}

// Review adds or replaces the caller's review of a product.
func (s *Service) Review(ctx context.Context, id auth.Identity, productID, name string, rating int, comment string) (*Product, error) {
	if id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	err = p.UpsertReview(Review{
		UserID:    id.UserID,
		Name:      name,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "save review for %s", productID)
	}
	return p, nil
}
