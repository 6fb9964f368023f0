// internal/membership/service.go
package membership

import (
	"context"
)

// Service defines the interface for the membership service.
type Service interface {
	Register(ctx context.Context, username, password string) (*Session, error)
	Authenticate(ctx context.Context, username, password string) (*Session, error)
	AuthenticateAdmin(ctx context.Context, username, password string) (*Session, error)
	// EnsureAdmin creates a privileged account unless one with the same
	// username exists. It reports whether a row was created.
	EnsureAdmin(ctx context.Context, username, password, role string) (bool, error)
}
