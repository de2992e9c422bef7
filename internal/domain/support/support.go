// Package support implements customer tickets about orders and admin replies.
package support

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
	"github.com/xenking/pickle-storefront/internal/domain/order"
)

// Field limits.
const (
	MaxSubjectLength = 120
	MaxMessageLength = 1200
)

// Status of a ticket.
type Status string

const (
	StatusOpen    Status = "open"
	StatusReplied Status = "replied"
	StatusClosed  Status = "closed"
)

var (
	ErrNotFound = errors.New("support ticket not found")
	// ErrInvalidOrderReference is returned when the ticket names an order
	// that does not exist or belongs to someone else.
	ErrInvalidOrderReference = errors.New("order id is incorrect")
	ErrAlreadyReplied        = errors.New("ticket already replied")
	ErrEmptyReply            = errors.New("reply is required")
	ErrInvalidStatus         = errors.New("invalid ticket status")
)

// ValidationError reports an invalid ticket field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Ticket is a customer message about one of their orders.
type Ticket struct {
	ID         string
	UserID     string
	OrderID    string
	Subject    string
	Message    string
	Status     Status
	AdminReply string
	RepliedBy  string
	RepliedAt  *time.Time
	CreatedAt  time.Time
}

// Repository persists tickets.
type Repository interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id string) (*Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]Ticket, error)
	List(ctx context.Context) ([]Ticket, error)
	// SaveReply stores the reply fields of t only if the stored ticket has
	// no reply yet, and returns ErrAlreadyReplied otherwise.
	SaveReply(ctx context.Context, t *Ticket) error
	Count(ctx context.Context) (Counts, error)
}

// Counts is the ticket volume for the admin dashboard.
type Counts struct {
	Total int
	Open  int
}

// OrderReader verifies the order a ticket refers to.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
}

// Service manages tickets.
type Service struct {
	tickets Repository
	orders  OrderReader
	now     func() time.Time
}

// NewService creates a support Service.
func NewService(tickets Repository, orders OrderReader) *Service {
	return &Service{tickets: tickets, orders: orders, now: time.Now}
}

// CreateRequest is the input of Service.Create.
type CreateRequest struct {
	OrderID string
	Subject string
	Message string
}

// Create opens a ticket about one of the caller's orders.
func (s *Service) Create(ctx context.Context, id auth.Identity, req CreateRequest) (*Ticket, error) {
	if id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}

	t := &Ticket{
		OrderID: strings.TrimSpace(req.OrderID),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	switch {
	case t.OrderID == "":
		return nil, ErrInvalidOrderReference
	case t.Subject == "":
		return nil, &ValidationError{Field: "subject", Reason: "required"}
	case len(t.Subject) > MaxSubjectLength:
		return nil, &ValidationError{Field: "subject", Reason: fmt.Sprintf("longer than %d characters", MaxSubjectLength)}
	case t.Message == "":
		return nil, &ValidationError{Field: "message", Reason: "required"}
	case len(t.Message) > MaxMessageLength:
		return nil, &ValidationError{Field: "message", Reason: fmt.Sprintf("longer than %d characters", MaxMessageLength)}
	}

	o, err := s.orders.GetByID(ctx, t.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, ErrInvalidOrderReference
		}
		return nil, errors.Wrap(err, "get order")
	}
	if o.UserID != id.UserID {
		return nil, ErrInvalidOrderReference
	}

	t.ID = uuid.New().String()
	t.UserID = id.UserID
	t.Status = StatusOpen
	t.CreatedAt = s.now()
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, errors.Wrap(err, "create ticket")
	}
	return t, nil
}

// ListMine returns the caller's tickets, newest first.
func (s *Service) ListMine(ctx context.Context, id auth.Identity) ([]Ticket, error) {
	if id.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	return s.tickets.ListByUser(ctx, id.UserID)
}

// ListAll returns every ticket. Administrators only.
func (s *Service) ListAll(ctx context.Context, id auth.Identity) ([]Ticket, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.tickets.List(ctx)
}

// Count returns how many tickets exist and how many are open.
// Administrators only.
func (s *Service) Count(ctx context.Context, id auth.Identity) (Counts, error) {
	if err := id.RequireAdmin(); err != nil {
		return Counts{}, err
	}
	c, err := s.tickets.Count(ctx)
	if err != nil {
		return Counts{}, errors.Wrap(err, "count tickets")
	}
	return c, nil
}

// Reply records the admin answer. A ticket can be answered once; status
// defaults to replied.
func (s *Service) Reply(ctx context.Context, id auth.Identity, ticketID, reply, status string) (*Ticket, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, ErrEmptyReply
	}
	st := StatusReplied
	if status != "" {
		st = Status(strings.ToLower(strings.TrimSpace(status)))
		if st != StatusOpen && st != StatusReplied && st != StatusClosed {
			return nil, ErrInvalidStatus
		}
	}

	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.AdminReply != "" {
		return nil, ErrAlreadyReplied
	}

	now := s.now()
	t.AdminReply = reply
	t.Status = st
	t.RepliedBy = id.UserID
	t.RepliedAt = &now
	if err := s.tickets.SaveReply(ctx, t); err != nil {
		return nil, errors.Wrapf(err, "reply to ticket %s", ticketID)
	}
	return t, nil
}
