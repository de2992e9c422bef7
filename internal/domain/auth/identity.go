package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Role is the coarse permission level carried by a session.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	// ErrUnauthenticated is returned when a request carries no usable identity.
	ErrUnauthenticated = errors.New("not authorized")
	// ErrForbidden is returned when the identity lacks the required role or
	// does not own the requested resource.
	ErrForbidden = errors.New("forbidden")
)

// Identity describes the caller of an operation. It is created per request by
// the transport layer and passed explicitly to domain services.
type Identity struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the identity has administrative rights.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccess reports whether the identity may read a resource owned by ownerID.
func (i Identity) CanAccess(ownerID string) bool {
	return i.IsAdmin() || (i.UserID != "" && i.UserID == ownerID)
}

// RequireAdmin returns ErrForbidden unless the identity is an administrator.
func (i Identity) RequireAdmin() error {
	if !i.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext extracts the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}
