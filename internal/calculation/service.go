// internal/calculation/service.go
package calculation

import (
	"context"
)

// Service defines the interface for the calculation service.
type Service interface {
	Calculate(ctx context.Context, req Request) (*Result, error)
}

// AuditStore persists audit records.
type AuditStore interface {
	Append(ctx context.Context, rec AuditRecord) error
}
