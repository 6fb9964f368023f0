// internal/membership/store.go
package membership

import (
	"context"
	"errors"
	"fmt"

	"eternalflame/pkg/sqlgateway"
)

var errNotFound = errors.New("account not found")

// store persists accounts and privileged accounts through the gateway.
type store struct {
	gw *sqlgateway.Gateway
}

func (s *store) insertAccount(ctx context.Context, username, passwordHash string) (int64, error) {
	var id int64
	err := s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		var err error
		id, err = cur.Insert(ctx, fmt.Sprintf(
			"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, %s)",
			s.gw.Dialect().CurrentTimestamp(),
		), username, passwordHash)
		return err
	})
	return id, err
}

func (s *store) accountByUsername(ctx context.Context, username string) (*Account, string, error) {
	var (
		account *Account
		hash    string
	)
	err := s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		if err := cur.Query(ctx, "SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username); err != nil {
			return err
		}
		row, ok := cur.FetchOne()
		if !ok {
			return errNotFound
		}
		account = &Account{
			ID:        row.Int64("id"),
			Username:  row.String("username"),
			CreatedAt: row.Time("created_at"),
		}
		hash = row.String("password_hash")
		return nil
	})
	return account, hash, err
}

func (s *store) updateAccountHash(ctx context.Context, id int64, passwordHash string) error {
	return s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		_, err := cur.Execute(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
		return err
	})
}

func (s *store) insertAdmin(ctx context.Context, username, passwordHash, role string) (int64, error) {
	var id int64
	err := s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		var err error
		id, err = cur.Insert(ctx, fmt.Sprintf(
			"INSERT INTO admins (username, password_hash, role, created_at) VALUES (?, ?, ?, %s)",
			s.gw.Dialect().CurrentTimestamp(),
		), username, passwordHash, role)
		return err
	})
	return id, err
}

func (s *store) adminByUsername(ctx context.Context, username string) (*Admin, string, error) {
	var (
		admin *Admin
		hash  string
	)
	err := s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		if err := cur.Query(ctx, "SELECT id, username, password_hash, role, created_at FROM admins WHERE username = ?", username); err != nil {
			return err
		}
		row, ok := cur.FetchOne()
		if !ok {
			return errNotFound
		}
		admin = &Admin{
			ID:        row.Int64("id"),
			Username:  row.String("username"),
			Role:      row.String("role"),
			CreatedAt: row.Time("created_at"),
		}
		hash = row.String("password_hash")
		return nil
	})
	return admin, hash, err
}
