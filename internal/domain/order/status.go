package order

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusShipped, StatusDelivered, StatusCancelled}

var (
	// ErrInvalidStatus is returned for a status outside Statuses.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrIllegalTransition is returned in strict mode when the target status
	// is not reachable from the current one.
	ErrIllegalTransition = errors.New("illegal order status transition")
)

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

var transitions = map[Status][]Status{
	StatusPending: {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether to is a lifecycle successor of from.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the order to status, appends a tracking entry and stamps
// DeliveredAt when the order is delivered. With strict unset any known
// status is accepted, including repeats and moves out of terminal states.
func (o *Order) Transition(to Status, note string, now time.Time, strict bool) error {
	if _, err := ParseStatus(string(to)); err != nil {
		return err
	}
	if strict && !CanTransition(o.Status, to) {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", o.Status, to)
	}

	o.Status = to
	o.TrackingHistory = append(o.TrackingHistory, TrackingEntry{
		Status:    to,
		Note:      strings.TrimSpace(note),
		Timestamp: now,
	})
	if to == StatusDelivered {
		t := now
		o.DeliveredAt = &t
	}
	return nil
}
