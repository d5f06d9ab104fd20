// Package auth resolves staff API keys to the staff member and branch they
// act for.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// Role is the permission level of a staff member.
type Role string

const (
	// RoleAdmin is an owner or branch manager.
	RoleAdmin Role = "ADMIN"
	// RoleAuthUser is verified staff.
	RoleAuthUser Role = "AUTH_USER"
	// RoleUser is a trainee. It can take orders and hand them over.
	RoleUser Role = "USER"
)

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleAuthUser:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// Allows reports whether r grants at least the access of min.
func (r Role) Allows(min Role) bool {
	return r.Valid() && r.rank() >= min.rank()
}

// ParseRole converts a stored or configured role. Empty means RoleUser.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", errors.Errorf("unknown role %q", s)
	}
	return r, nil
}

// APIKeyInfo holds the identity bound to a validated API key.
type APIKeyInfo struct {
	ID       string
	KeyHash  string
	Name     string
	StaffID  string
	BranchID string
	Role     Role
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

type identityKey struct{}

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, info *APIKeyInfo) context.Context {
	return context.WithValue(ctx, identityKey{}, info)
}

// IdentityFromContext returns the caller identity, if any.
func IdentityFromContext(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(identityKey{}).(*APIKeyInfo)
	return info, ok && info != nil
}
