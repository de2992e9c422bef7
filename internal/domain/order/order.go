package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/pickle-storefront/internal/domain/product"
)

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCOD        PaymentMethod = "cod"
	PaymentUPI        PaymentMethod = "upi"
	PaymentGPay       PaymentMethod = "gpay"
	PaymentPaytm      PaymentMethod = "paytm"
	PaymentGooglePay  PaymentMethod = "googlepay"
	PaymentAmazonPay  PaymentMethod = "amazonpay"
	PaymentCard       PaymentMethod = "card"
	PaymentNetBanking PaymentMethod = "netbanking"
)

// ParsePaymentMethod normalizes s and checks it against the accepted set.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case PaymentCOD, PaymentUPI, PaymentGPay, PaymentPaytm, PaymentGooglePay,
		PaymentAmazonPay, PaymentCard, PaymentNetBanking:
		return m, nil
	}
	return "", ErrInvalidPaymentMethod
}

// IsUPI reports whether m belongs to the UPI family, which needs a UPI id.
func (m PaymentMethod) IsUPI() bool {
	switch m {
	case PaymentUPI, PaymentGPay, PaymentPaytm, PaymentGooglePay, PaymentAmazonPay:
		return true
	}
	return false
}

// PaymentStatus tracks the payment side of an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusInitiated PaymentStatus = "initiated"
)

// PaymentInfo records the payment state at checkout.
type PaymentInfo struct {
	Status PaymentStatus
	UPIID  string
}

// ShippingInfo is the delivery address captured at checkout.
type ShippingInfo struct {
	Address string
	City    string
	State   string
	Country string
	PinCode string
	PhoneNo string
}

// Validate requires every address field to be present.
func (s *ShippingInfo) Validate() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"address", &s.Address},
		{"city", &s.City},
		{"state", &s.State},
		{"country", &s.Country},
		{"pinCode", &s.PinCode},
		{"phoneNo", &s.PhoneNo},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return &ValidationError{Field: "shippingInfo." + f.name, Reason: "required"}
		}
	}
	return nil
}

// ValidationError reports an invalid checkout field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Item is an order line snapshotted from the cart.
type Item struct {
	ProductID string
	Name      string
	PackSize  product.PackSize
	Quantity  int
	Price     int64
}

// TrackingEntry is one step of an order's status history.
type TrackingEntry struct {
	Status    Status
	Note      string
	Timestamp time.Time
}

// Order is an immutable record of a purchase plus its mutable fulfilment
// status. Prices never change after creation.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	ShippingInfo    ShippingInfo
	PaymentMethod   PaymentMethod
	PaymentInfo     PaymentInfo
	ItemsPrice      int64
	ShippingPrice   int64
	TaxPrice        int64
	DiscountPrice   int64
	TotalPrice      int64
	CouponCode      string
	Status          Status
	TrackingHistory []TrackingEntry
	DeliveredAt     *time.Time
	CreatedAt       time.Time
}

// Sentinel errors for checkout and order access.
var (
	ErrNotFound             = errors.New("order not found")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrMissingPaymentDetail = errors.New("UPI ID is required for selected online payment")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// Filter narrows an administrative order listing.
type Filter struct {
	Status Status
	UserID string
}

// Repository defines persistence operations for orders.
type Repository interface {
	// CreateFromCart stores o and empties the owner's cart in one
	// transaction. The cart is only cleared if its stored version still
	// equals cartVersion; otherwise nothing is written and
	// cart.ErrVersionConflict is returned.
	CreateFromCart(ctx context.Context, o *Order, cartVersion int64) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListByUser returns the user's orders newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	// Update loads the order exclusively, runs apply on it and persists
	// Status, TrackingHistory and DeliveredAt if apply succeeds.
	Update(ctx context.Context, id string, apply func(o *Order) error) (*Order, error)
	// Revenue buckets non-cancelled orders created at or after since, oldest
	// bucket first.
	Revenue(ctx context.Context, since time.Time, g Granularity) ([]RevenuePoint, error)
}
