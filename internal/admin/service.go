// internal/admin/service.go
package admin

import (
	"context"
)

// Service defines the interface for the admin console.
type Service interface {
	Stats(ctx context.Context) (*Stats, error)
	ListUsers(ctx context.Context, q PageQuery) (*Page[UserItem], error)
	ListCalculateLogs(ctx context.Context, q PageQuery) (*Page[LogItem], error)
	Settings(ctx context.Context) (map[string]Setting, error)
	PutSetting(ctx context.Context, key, value string) error
}
