//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
	"github.com/xenking/pickle-storefront/internal/domain/cart"
	"github.com/xenking/pickle-storefront/internal/domain/coupon"
	"github.com/xenking/pickle-storefront/internal/domain/order"
	"github.com/xenking/pickle-storefront/internal/domain/product"
	"github.com/xenking/pickle-storefront/internal/domain/support"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "store",
				"POSTGRES_PASSWORD": "store",
				"POSTGRES_DB":       "store",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pg.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://store:store@%s:%s/store?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	// Migrations are idempotent.
	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations rerun: %v", err)
	}

	return m.Run()
}

// --- Helpers ---

func identity(userID string) auth.Identity {
	return auth.Identity{UserID: userID, Role: auth.RoleUser}
}

func adminIdentity() auth.Identity {
	return auth.Identity{UserID: "admin-" + uuid.NewString()[:8], Role: auth.RoleAdmin}
}

func seedProduct(t *testing.T, name, category string) *product.Product {
	t.Helper()
	p := &product.Product{
		ID:       uuid.New().String(),
		Name:     name,
		Category: category,
		Price:    299,
		Variants: []product.Variant{
			{PackSize: product.PackSize250g, Price: 299, Stock: 10},
			{PackSize: product.PackSize1kg, Price: 999, Stock: 2},
		},
		Tags:      []string{"spicy"},
		IsActive:  true,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, p.Validate())
	require.NoError(t, NewProductRepository(testPool).Create(context.Background(), p))
	return p
}

func newOrder(userID string) *order.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &order.Order{
		ID:     uuid.New().String(),
		UserID: userID,
		Items: []order.Item{
			{ProductID: "p1", Name: "Mango Pickle (250g)", PackSize: product.PackSize250g, Quantity: 2, Price: 299},
		},
		ShippingInfo: order.ShippingInfo{
			Address: "12 MG Road", City: "Pune", State: "MH", Country: "India", PinCode: "411001", PhoneNo: "9999999999",
		},
		PaymentMethod: order.PaymentCOD,
		PaymentInfo:   order.PaymentInfo{Status: order.PaymentStatusPending},
		ItemsPrice:    598,
		ShippingPrice: 60,
		TaxPrice:      30,
		TotalPrice:    688,
		Status:        order.StatusPending,
		TrackingHistory: []order.TrackingEntry{
			{Status: order.StatusPending, Note: "Order confirmed and pending dispatch", Timestamp: now},
		},
		CreatedAt: now,
	}
}

func fillCart(t *testing.T, userID string) *cart.Cart {
	t.Helper()
	repo := NewCartRepository(testPool)
	c, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	c.Items = []cart.Item{{ID: uuid.New().String(), ProductID: "p1", ProductName: "Mango Pickle", PackSize: product.PackSize250g, Quantity: 2, Price: 299}}
	c.UpdatedAt = time.Now()
	require.NoError(t, repo.Save(context.Background(), c))
	return c
}

// --- Tests ---

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)

	mango := seedProduct(t, "Raw Mango Pickle", "Mango")
	seedProduct(t, "Garlic Pickle", "Garlic")

	got, err := repo.GetByID(ctx, mango.ID)
	require.NoError(t, err)
	assert.Equal(t, mango.Variants, got.Variants)
	assert.Equal(t, []string{"spicy"}, got.Tags)
	assert.True(t, decimal.Zero.Equal(got.Ratings))

	list, err := repo.List(ctx, product.Filter{Category: "mango"})
	require.NoError(t, err)
	require.NotEmpty(t, list)
	for _, p := range list {
		assert.Equal(t, "Mango", p.Category)
	}

	list, err = repo.List(ctx, product.Filter{Search: "GARLIC"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Garlic Pickle", list[0].Name)

	require.NoError(t, got.UpsertReview(product.Review{UserID: "u1", Name: "A", Rating: 5, CreatedAt: time.Now().UTC()}))
	require.NoError(t, got.UpsertReview(product.Review{UserID: "u2", Name: "B", Rating: 4, CreatedAt: time.Now().UTC()}))
	require.NoError(t, repo.Update(ctx, got))

	top, err := repo.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, mango.ID, top[0].ID)
	assert.True(t, decimal.RequireFromString("4.5").Equal(top[0].Ratings), "ratings %s", top[0].Ratings)

	require.NoError(t, repo.Delete(ctx, mango.ID))
	_, err = repo.GetByID(ctx, mango.ID)
	require.ErrorIs(t, err, product.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, mango.ID), product.ErrNotFound)
}

func TestProductRepository_DuplicateSlug(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)

	name := "Slug Clash " + uuid.NewString()[:8]
	first := seedProduct(t, name, "Veg")

	dup := *first
	dup.ID = uuid.New().String()
	err := repo.Create(ctx, &dup)
	var verr *product.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "slug", verr.Field)

	other := seedProduct(t, "Other "+name, "Veg")
	other.Slug = first.Slug
	err = repo.Update(ctx, other)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "already exists", verr.Reason)
}

func TestProductRepository_CountsAndCategories(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)

	before, err := repo.Count(ctx)
	require.NoError(t, err)

	category := "Tangy " + uuid.NewString()[:8]
	seedProduct(t, "Tamarind "+uuid.NewString()[:8], category)
	seedProduct(t, "Gooseberry "+uuid.NewString()[:8], category)
	hidden := seedProduct(t, "Retired "+uuid.NewString()[:8], category)
	hidden.IsActive = false
	require.NoError(t, repo.Update(ctx, hidden))

	after, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Total+3, after.Total)
	assert.Equal(t, before.Active+2, after.Active)

	cats, err := repo.Categories(ctx)
	require.NoError(t, err)
	var found *product.CategorySummary
	for i := range cats {
		if cats[i].Name == category {
			found = &cats[i]
		}
	}
	require.NotNil(t, found, "category %q missing", category)
	assert.Equal(t, 2, found.Products)
}

func TestCartRepository_Versioning(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(testPool)
	userID := uuid.New().String()

	empty, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, empty.Version)
	assert.True(t, empty.IsEmpty())

	c := fillCart(t, userID)
	assert.Equal(t, int64(1), c.Version)

	// A writer holding the old version loses.
	stale := *empty
	stale.Items = []cart.Item{{ID: "x", ProductID: "p2", Quantity: 1, Price: 10}}
	require.ErrorIs(t, repo.Save(ctx, &stale), cart.ErrVersionConflict)

	stored, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, c.Items, stored.Items)
	assert.Equal(t, int64(1), stored.Version)
}

func TestCartService_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	p := seedProduct(t, "Lime Pickle "+uuid.NewString()[:8], "Lime")
	svc := cart.NewService(NewCartRepository(testPool), NewProductRepository(testPool))
	user := identity(uuid.New().String())

	// Two writers always settle within the default retry budget.
	const workers = 2
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, user, p.ID, product.PackSize250g, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := NewCartRepository(testPool).Get(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, workers, c.Items[0].Quantity)
}

func TestOrderRepository_CreateFromCart(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)
	carts := NewCartRepository(testPool)

	t.Run("creates order and clears cart", func(t *testing.T) {
		userID := uuid.New().String()
		c := fillCart(t, userID)
		o := newOrder(userID)

		require.NoError(t, repo.CreateFromCart(ctx, o, c.Version))

		got, err := repo.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.Items, got.Items)
		assert.Equal(t, o.ShippingInfo, got.ShippingInfo)
		assert.Equal(t, o.TotalPrice, got.TotalPrice)
		assert.Equal(t, order.PaymentStatusPending, got.PaymentInfo.Status)
		require.Len(t, got.TrackingHistory, 1)
		assert.True(t, o.TrackingHistory[0].Timestamp.Equal(got.TrackingHistory[0].Timestamp))

		after, err := carts.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, after.IsEmpty())
		assert.Equal(t, c.Version+1, after.Version)
	})

	t.Run("stale cart version writes nothing", func(t *testing.T) {
		userID := uuid.New().String()
		c := fillCart(t, userID)
		o := newOrder(userID)

		err := repo.CreateFromCart(ctx, o, c.Version-1)
		require.ErrorIs(t, err, cart.ErrVersionConflict)

		_, err = repo.GetByID(ctx, o.ID)
		require.ErrorIs(t, err, order.ErrNotFound)

		after, err := carts.Get(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, after.Items, 1)
	})
}

func TestOrderRepository_ListAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)
	userID := uuid.New().String()

	first := newOrder(userID)
	c := fillCart(t, userID)
	require.NoError(t, repo.CreateFromCart(ctx, first, c.Version))

	second := newOrder(userID)
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	c = fillCart(t, userID)
	require.NoError(t, repo.CreateFromCart(ctx, second, c.Version))

	mine, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	updated, err := repo.Update(ctx, first.ID, func(o *order.Order) error {
		return o.Transition(order.StatusDelivered, "handed over", now, false)
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, updated.Status)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)
	assert.True(t, now.Equal(*got.DeliveredAt))
	assert.Len(t, got.TrackingHistory, 2)

	delivered, err := repo.List(ctx, order.Filter{Status: order.StatusDelivered, UserID: userID})
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, first.ID, delivered[0].ID)

	_, err = repo.Update(ctx, "missing", func(*order.Order) error { return nil })
	require.ErrorIs(t, err, order.ErrNotFound)

	// A failing apply leaves the row untouched.
	_, err = repo.Update(ctx, second.ID, func(o *order.Order) error {
		return o.Transition(order.StatusDelivered, "", now, true)
	})
	require.ErrorIs(t, err, order.ErrIllegalTransition)
	got, err = repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
}

func TestOrderRepository_Revenue(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)
	userID := uuid.New().String()

	place := func(at time.Time, total int64, status order.Status) {
		o := newOrder(userID)
		o.CreatedAt = at
		o.TotalPrice = total
		o.Status = status
		c := fillCart(t, userID)
		require.NoError(t, repo.CreateFromCart(ctx, o, c.Version))
	}
	place(time.Date(2001, 3, 4, 10, 0, 0, 0, time.UTC), 100, order.StatusDelivered)
	place(time.Date(2001, 3, 4, 23, 30, 0, 0, time.UTC), 50, order.StatusPending)
	place(time.Date(2001, 3, 20, 8, 0, 0, 0, time.UTC), 70, order.StatusShipped)
	place(time.Date(2001, 3, 5, 8, 0, 0, 0, time.UTC), 999, order.StatusCancelled)
	place(time.Date(2001, 2, 27, 8, 0, 0, 0, time.UTC), 5, order.StatusDelivered)

	since := time.Date(2001, 3, 1, 0, 0, 0, 0, time.UTC)
	in2001 := func(ps []order.RevenuePoint) []order.RevenuePoint {
		var out []order.RevenuePoint
		for _, p := range ps {
			if p.Start.Year() == 2001 {
				out = append(out, p)
			}
		}
		return out
	}

	daily, err := repo.Revenue(ctx, since, order.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, []order.RevenuePoint{
		{Start: time.Date(2001, 3, 4, 0, 0, 0, 0, time.UTC), Revenue: 150, Orders: 2},
		{Start: time.Date(2001, 3, 20, 0, 0, 0, 0, time.UTC), Revenue: 70, Orders: 1},
	}, in2001(daily))

	monthly, err := repo.Revenue(ctx, since, order.GranularityMonth)
	require.NoError(t, err)
	assert.Equal(t, []order.RevenuePoint{
		{Start: time.Date(2001, 3, 1, 0, 0, 0, 0, time.UTC), Revenue: 220, Orders: 3},
	}, in2001(monthly))
}

func TestCouponRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testPool)

	n, err := repo.Upsert(ctx, []coupon.Rule{
		{Code: "PARTNER7", Percent: 7, Description: "7% off"},
		{Code: "PARTNER12", Percent: 12, Description: "12% off"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.Upsert(ctx, []coupon.Rule{{Code: "PARTNER7", Percent: 8, Description: "8% off"}})
	require.NoError(t, err)

	table, err := coupon.LoadTable(ctx, nil, repo)
	require.NoError(t, err)
	r, err := table.Lookup("partner7")
	require.NoError(t, err)
	assert.Equal(t, 8, r.Percent)

	_, err = repo.Upsert(ctx, []coupon.Rule{{Code: "bad-code", Percent: 10}})
	require.Error(t, err)
}

func TestSupportRepository(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()
	o := newOrder(userID)
	c := fillCart(t, userID)
	require.NoError(t, NewOrderRepository(testPool).CreateFromCart(ctx, o, c.Version))

	svc := support.NewService(NewSupportRepository(testPool), NewOrderRepository(testPool))
	tk, err := svc.Create(ctx, identity(userID), support.CreateRequest{OrderID: o.ID, Subject: "Leaky jar", Message: "Oil everywhere"})
	require.NoError(t, err)

	admin := adminIdentity()
	replied, err := svc.Reply(ctx, admin, tk.ID, "Refund issued", "closed")
	require.NoError(t, err)
	assert.Equal(t, support.StatusClosed, replied.Status)

	_, err = svc.Reply(ctx, admin, tk.ID, "Again", "")
	require.ErrorIs(t, err, support.ErrAlreadyReplied)

	mine, err := svc.ListMine(ctx, identity(userID))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Refund issued", mine[0].AdminReply)
}

func TestSupportRepository_ConcurrentReplies(t *testing.T) {
	ctx := context.Background()
	repo := NewSupportRepository(testPool)
	userID := uuid.New().String()
	o := newOrder(userID)
	c := fillCart(t, userID)
	require.NoError(t, NewOrderRepository(testPool).CreateFromCart(ctx, o, c.Version))

	tk := &support.Ticket{
		ID:        uuid.New().String(),
		UserID:    userID,
		OrderID:   o.ID,
		Subject:   "Missing jar",
		Message:   "Only one of two jars arrived",
		Status:    support.StatusOpen,
		CreatedAt: time.Now().UTC(),
	}

	before, err := repo.Count(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tk))

	const admins = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		saved   int
		already int
	)
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := time.Now().UTC()
			reply := *tk
			reply.AdminReply = fmt.Sprintf("answer %d", i)
			reply.RepliedBy = fmt.Sprintf("admin-%d", i)
			reply.RepliedAt = &now
			reply.Status = support.StatusReplied

			err := repo.SaveReply(ctx, &reply)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				saved++
			case errors.Is(err, support.ErrAlreadyReplied):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, saved)
	assert.Equal(t, admins-1, already)

	after, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Total+1, after.Total)
	assert.Equal(t, before.Open, after.Open)
}

func TestWishlistRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewWishlistRepository(testPool)
	userID := uuid.New().String()

	w, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, w.ProductIDs)

	w.Toggle("p1")
	w.Toggle("p2")
	require.NoError(t, repo.Save(ctx, w))

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, got.ProductIDs)
}
