package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
	"github.com/xenking/pickle-storefront/internal/domain/cart"
	"github.com/xenking/pickle-storefront/internal/domain/coupon"
	"github.com/xenking/pickle-storefront/internal/domain/pricing"
)

// InitialTrackingNote is recorded with the Pending entry of every new order.
const InitialTrackingNote = "Order confirmed and pending dispatch"

// CartReader reads the cart a checkout is built from.
type CartReader interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
}

// CouponLookup resolves coupon codes.
type CouponLookup interface {
	Lookup(code string) (coupon.Rule, error)
}

// Config holds order lifecycle settings.
type Config struct {
	// StrictTransitions rejects status changes that do not follow
	// Pending → Shipped → Delivered with Cancelled from non-terminal states.
	StrictTransitions bool
}

// Options carries optional telemetry providers.
type Options struct {
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

func (o *Options) setDefaults() {
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
}

// CheckoutRequest holds the input for converting a cart into an order.
type CheckoutRequest struct {
	ShippingInfo  ShippingInfo
	PaymentMethod string
	UPIID         string
	CouponCode    string
}

// Service encapsulates checkout and order lifecycle business logic.
type Service struct {
	carts   CartReader
	coupons CouponLookup
	pricing *pricing.Calculator
	orders  Repository
	cfg     Config
	now     func() time.Time

	tracer   trace.Tracer
	placed   metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	carts CartReader,
	coupons CouponLookup,
	calc *pricing.Calculator,
	orders Repository,
	cfg Config,
	opts Options,
) (*Service, error) {
	opts.setDefaults()
	meter := opts.MeterProvider.Meter("store/order")

	placed, err := meter.Int64Counter("store.orders.placed",
		metric.WithDescription("Orders created by checkout"))
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	rejected, err := meter.Int64Counter("store.checkout.rejected",
		metric.WithDescription("Checkouts rejected by validation"))
	if err != nil {
		return nil, errors.Wrap(err, "checkout rejected counter")
	}

	return &Service{
		carts:    carts,
		coupons:  coupons,
		pricing:  calc,
		orders:   orders,
		cfg:      cfg,
		now:      time.Now,
		tracer:   opts.TracerProvider.Tracer("store/order"),
		placed:   placed,
		rejected: rejected,
	}, nil
}

// Checkout prices the caller's cart, creates a Pending order and empties the
// cart. Validation failures leave both cart and orders untouched. Checkout is
// not idempotent: a repeated call after success sees an empty cart.
func (s *Service) Checkout(ctx context.Context, id auth.Identity, req CheckoutRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.String("user.id", id.UserID)))
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	o, c, err := s.prepare(ctx, id, req)
	if err != nil {
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(err))))
		return nil, err
	}

	if err := s.orders.CreateFromCart(ctx, o, c.Version); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(o.PaymentMethod))))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Int64("total", o.TotalPrice),
		zap.String("coupon", o.CouponCode),
	)
	return o, nil
}

func (s *Service) prepare(ctx context.Context, id auth.Identity, req CheckoutRequest) (*Order, *cart.Cart, error) {
	if id.UserID == "" {
		return nil, nil, auth.ErrUnauthenticated
	}
	method, err := ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, nil, err
	}
	shipping := req.ShippingInfo
	if err := shipping.Validate(); err != nil {
		return nil, nil, err
	}

	c, err := s.carts.Get(ctx, id.UserID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get cart")
	}
	if c.IsEmpty() {
		return nil, nil, ErrEmptyCart
	}

	var (
		code    = coupon.Normalize(req.CouponCode)
		percent int
	)
	if code != "" {
		rule, err := s.coupons.Lookup(code)
		if err != nil {
			return nil, nil, err
		}
		percent = rule.Percent
	}

	upiID := strings.TrimSpace(req.UPIID)
	if method.IsUPI() && upiID == "" {
		return nil, nil, ErrMissingPaymentDetail
	}

	items := make([]Item, len(c.Items))
	lines := make([]pricing.Line, len(c.Items))
	for i, it := range c.Items {
		items[i] = Item{
			ProductID: it.ProductID,
			Name:      fmt.Sprintf("%s (%s)", it.ProductName, it.PackSize),
			PackSize:  it.PackSize,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
		lines[i] = pricing.Line{UnitPrice: it.Price, Quantity: it.Quantity}
	}
	b, err := s.pricing.Compute(lines, percent)
	if err != nil {
		return nil, nil, err
	}

	paymentStatus := PaymentStatusInitiated
	if method == PaymentCOD {
		paymentStatus = PaymentStatusPending
	}

	now := s.now()
	o := &Order{
		ID:            uuid.New().String(),
		UserID:        id.UserID,
		Items:         items,
		ShippingInfo:  shipping,
		PaymentMethod: method,
		PaymentInfo:   PaymentInfo{Status: paymentStatus, UPIID: upiID},
		ItemsPrice:    b.ItemsPrice,
		ShippingPrice: b.ShippingPrice,
		TaxPrice:      b.TaxPrice,
		DiscountPrice: b.DiscountPrice,
		TotalPrice:    b.TotalPrice,
		CouponCode:    code,
		Status:        StatusPending,
		TrackingHistory: []TrackingEntry{
			{Status: StatusPending, Note: InitialTrackingNote, Timestamp: now},
		},
		CreatedAt: now,
	}
	return o, c, nil
}

func rejectReason(err error) string {
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return "invalid_coupon"
	case errors.Is(err, ErrMissingPaymentDetail):
		return "missing_payment_detail"
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	case errors.As(err, &vErr):
		return "invalid_shipping"
	default:
		return "other"
	}
}

// ListMine returns the caller's orders, newest first.
func (s *Service) ListMine(ctx context.Context, id auth.Identity) ([]Order, error) {
	if id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	return s.orders.ListByUser(ctx, id.UserID)
}

// Get returns an order visible to the caller: its owner or an administrator.
func (s *Service) Get(ctx context.Context, id auth.Identity, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !id.CanAccess(o.UserID) {
		return nil, auth.ErrForbidden
	}
	return o, nil
}

// List returns all orders matching f. Administrators only.
func (s *Service) List(ctx context.Context, id auth.Identity, f Filter) ([]Order, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.orders.List(ctx, f)
}

// UpdateStatus transitions an order and records a tracking entry.
// Administrators only.
func (s *Service) UpdateStatus(ctx context.Context, id auth.Identity, orderID, status, note string) (*Order, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	to, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus",
		trace.WithAttributes(attribute.String("order.id", orderID), attribute.String("order.status", string(to))))
	defer span.End()

	o, err := s.orders.Update(ctx, orderID, func(o *Order) error {
		return o.Transition(to, note, s.now(), s.cfg.StrictTransitions)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	zctx.From(ctx).Info("Order status updated",
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status)),
		zap.String("admin_id", id.UserID),
	)
	return o, nil
}

// Summary aggregates all orders for the dashboard. Administrators only.
func (s *Service) Summary(ctx context.Context, id auth.Identity) (*Summary, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	all, err := s.orders.List(ctx, Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	sum := Summarize(all)
	return &sum, nil
}
