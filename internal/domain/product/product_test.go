package product

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
)

// --- Mock implementations ---

type mockRepo struct {
	products map[string]*Product
	updated  *Product
	created  *Product
	lastList Filter
}

func newMockRepo(ps ...Product) *mockRepo {
	m := &mockRepo{products: make(map[string]*Product)}
	for i := range ps {
		p := ps[i]
		m.products[p.ID] = &p
	}
	return m
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]Product, error) {
	m.lastList = f
	var out []Product
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockRepo) Top(_ context.Context, _ int) ([]Product, error) { return nil, nil }

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	m.created = p
	m.products[p.ID] = p
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Product) error {
	m.updated = p
	m.products[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockRepo) Count(_ context.Context) (Counts, error) {
	c := Counts{Total: len(m.products)}
	for _, p := range m.products {
		if p.IsActive {
			c.Active++
		}
	}
	return c, nil
}

func (m *mockRepo) Categories(_ context.Context) ([]CategorySummary, error) {
	ps := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		ps = append(ps, *p)
	}
	return SummarizeCategories(ps), nil
}

// --- Helpers ---

var (
	admin    = auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}
	customer = auth.Identity{UserID: "user-1", Role: auth.RoleUser}
)

func validProduct() Product {
	return Product{
		Name:     "Mango Pickle",
		Category: "mango",
		Price:    299,
		Variants: []Variant{
			{PackSize: PackSize250g, Price: 299, Stock: 10},
			{PackSize: PackSize500g, Price: 549, Stock: 5},
		},
		IsActive: true,
	}
}

// --- Tests ---

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *Product)
		wantField string
	}{
		{name: "valid", mutate: func(*Product) {}},
		{name: "missing name", mutate: func(p *Product) { p.Name = "  " }, wantField: "name"},
		{name: "negative price", mutate: func(p *Product) { p.Price = -1 }, wantField: "price"},
		{name: "discount above 90", mutate: func(p *Product) { p.DiscountPercent = 91 }, wantField: "discountPercentage"},
		{name: "no variants", mutate: func(p *Product) { p.Variants = nil }, wantField: "variants"},
		{
			name:      "unknown pack size",
			mutate:    func(p *Product) { p.Variants[0].PackSize = "2kg" },
			wantField: "variants.packSize",
		},
		{
			name:      "duplicate pack size",
			mutate:    func(p *Product) { p.Variants[1].PackSize = PackSize250g },
			wantField: "variants.packSize",
		},
		{name: "negative stock", mutate: func(p *Product) { p.Variants[0].Stock = -3 }, wantField: "variants.stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "mango-pickle", p.Slug)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestProduct_Variant(t *testing.T) {
	p := validProduct()

	v, ok := p.Variant(PackSize500g)
	require.True(t, ok)
	assert.Equal(t, int64(549), v.Price)

	_, ok = p.Variant(PackSize1kg)
	assert.False(t, ok)
}

func TestProduct_UpsertReview(t *testing.T) {
	p := validProduct()

	require.NoError(t, p.UpsertReview(Review{UserID: "u1", Rating: 5}))
	require.NoError(t, p.UpsertReview(Review{UserID: "u2", Rating: 4}))
	require.NoError(t, p.UpsertReview(Review{UserID: "u3", Rating: 4}))
	assert.True(t, decimal.RequireFromString("4.33").Equal(p.Ratings), "got %s", p.Ratings)

	// Same user replaces their review.
	require.NoError(t, p.UpsertReview(Review{UserID: "u1", Rating: 1}))
	assert.Len(t, p.Reviews, 3)
	assert.True(t, decimal.NewFromInt(3).Equal(p.Ratings), "got %s", p.Ratings)

	err := p.UpsertReview(Review{UserID: "u4", Rating: 6})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "lime-chilli-pickle", Slugify("Lime & Chilli  Pickle!"))
	assert.Equal(t, "garlic-500g", Slugify("  Garlic 500g"))
}

func TestService_AdminOnly(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p := validProduct()
	require.ErrorIs(t, svc.Create(ctx, customer, &p), auth.ErrForbidden)
	require.Nil(t, repo.created)

	require.NoError(t, svc.Create(ctx, admin, &p))
	require.NotNil(t, repo.created)
	assert.NotEmpty(t, p.ID)

	_, err := svc.Update(ctx, customer, p.ID, &Product{})
	require.ErrorIs(t, err, auth.ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, customer, p.ID), auth.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, admin, p.ID))
	require.ErrorIs(t, svc.Delete(ctx, admin, p.ID), ErrNotFound)
}

func TestService_UpdateKeepsReviews(t *testing.T) {
	existing := validProduct()
	existing.ID = "p1"
	existing.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing.Reviews = []Review{{UserID: "u1", Rating: 5}}
	existing.Ratings = decimal.NewFromInt(5)

	repo := newMockRepo(existing)
	svc := NewService(repo)

	in := validProduct()
	in.Name = "Mango Pickle Extra Hot"
	got, err := svc.Update(context.Background(), admin, "p1", &in)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.Len(t, got.Reviews, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(got.Ratings))
	assert.Equal(t, existing.CreatedAt, got.CreatedAt)
}

func TestService_List_HidesInactiveForCustomers(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	_, err := svc.List(context.Background(), customer, Filter{IncludeInactive: true, Search: " mango "})
	require.NoError(t, err)
	assert.False(t, repo.lastList.IncludeInactive)
	assert.Equal(t, "mango", repo.lastList.Search)

	_, err = svc.List(context.Background(), admin, Filter{IncludeInactive: true})
	require.NoError(t, err)
	assert.True(t, repo.lastList.IncludeInactive)
}

func TestService_Review(t *testing.T) {
	existing := validProduct()
	existing.ID = "p1"
	repo := newMockRepo(existing)
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	got, err := svc.Review(context.Background(), customer, "p1", "Asha", 4, "  tangy ")
	require.NoError(t, err)
	require.Len(t, got.Reviews, 1)
	assert.Equal(t, "tangy", got.Reviews[0].Comment)
	assert.True(t, decimal.NewFromInt(4).Equal(got.Ratings))

	_, err = svc.Review(context.Background(), customer, "missing", "Asha", 4, "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Review(context.Background(), auth.Identity{}, "p1", "", 4, "")
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestService_CountsAndCategories(t *testing.T) {
	repo := newMockRepo(
		Product{ID: "p1", Category: "Mango", IsActive: true},
		Product{ID: "p2", Category: "Mango", IsActive: true},
		Product{ID: "p3", Category: "lime & chilli", IsActive: true},
		Product{ID: "p4", Category: "Garlic", IsActive: false},
	)
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Count(ctx, customer)
	require.ErrorIs(t, err, auth.ErrForbidden)

	counts, err := svc.Count(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 4, Active: 3}, counts)

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CategorySummary{
		{Name: "lime & chilli", Slug: "lime-chilli", Products: 1},
		{Name: "Mango", Slug: "mango", Products: 2},
	}, cats)
}
