// internal/admin/implementation.go
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"eternalflame/internal/apperr"
	"eternalflame/pkg/sqlgateway"
)

const maxSettingKeyLen = 128

// service implements the Service interface.
type service struct {
	gw     *sqlgateway.Gateway
	logger zerolog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewService creates a new admin service. "Today" in the stats is the
// calendar day in loc.
func NewService(gw *sqlgateway.Gateway, loc *time.Location, logger zerolog.Logger) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		gw:     gw,
		logger: logger.With().Str("component", "admin").Logger(),
		loc:    loc,
		now:    time.Now,
	}
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	stats := &Stats{}
	err := s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		var err error
		if stats.TotalUsers, err = count(ctx, cur, "SELECT COUNT(*) AS n FROM users"); err != nil {
			return err
		}
		if stats.TotalCalculates, err = count(ctx, cur, "SELECT COUNT(*) AS n FROM calculate_logs"); err != nil {
			return err
		}
		stats.TodayCalculates, err = count(ctx, cur,
			"SELECT COUNT(*) AS n FROM calculate_logs WHERE created_at >= ?", sqlgateway.Timestamp(midnight))
		return err
	})
	if err != nil {
		return nil, storeError("stats", err)
	}
	return stats, nil
}

func (s *service) ListUsers(ctx context.Context, q PageQuery) (*Page[UserItem], error) {
	q = q.normalize()

	where, args := "", []any{}
	if search := strings.TrimSpace(q.Search); search != "" {
		where = " WHERE username LIKE ?"
		args = append(args, "%"+search+"%")
	}

	page := &Page[UserItem]{Items: []UserItem{}}
	err := s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		var err error
		if page.Total, err = count(ctx, cur, "SELECT COUNT(*) AS n FROM users"+where, args...); err != nil {
			return err
		}

		query := "SELECT id, username, created_at FROM users" + where + " ORDER BY id DESC LIMIT ? OFFSET ?"
		if err := cur.Query(ctx, query, append(args, q.PerPage, q.offset())...); err != nil {
			return err
		}
		for _, row := range cur.FetchAll() {
			page.Items = append(page.Items, UserItem{
				ID:        row.Int64("id"),
				Username:  row.String("username"),
				CreatedAt: row.Time("created_at"),
			})
		}
		return nil
	})
	if err != nil {
		return nil, storeError("list users", err)
	}
	return page, nil
}

func (s *service) ListCalculateLogs(ctx context.Context, q PageQuery) (*Page[LogItem], error) {
	q = q.normalize()

	page := &Page[LogItem]{Items: []LogItem{}}
	err := s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		var err error
		if page.Total, err = count(ctx, cur, "SELECT COUNT(*) AS n FROM calculate_logs"); err != nil {
			return err
		}

		if err := cur.Query(ctx, `
			SELECT id, user_id, pet_name, death_date, locale, created_at
			FROM calculate_logs
			ORDER BY id DESC
			LIMIT ? OFFSET ?
		`, q.PerPage, q.offset()); err != nil {
			return err
		}
		for _, row := range cur.FetchAll() {
			item := LogItem{
				ID:        row.Int64("id"),
				PetName:   row.String("pet_name"),
				EventDate: row.String("death_date"),
				Locale:    row.String("locale"),
				CreatedAt: row.Time("created_at"),
			}
			if !row.IsNull("user_id") {
				id := row.Int64("user_id")
				item.UserID = &id
			}
			page.Items = append(page.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, storeError("list calculate logs", err)
	}
	return page, nil
}

func (s *service) Settings(ctx context.Context) (map[string]Setting, error) {
	settings := map[string]Setting{}
	err := s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		if err := cur.Query(ctx, "SELECT setting_key, setting_value, updated_at FROM site_settings ORDER BY setting_key"); err != nil {
			return err
		}
		for _, row := range cur.FetchAll() {
			settings[row.String("setting_key")] = Setting{
				Value:     row.String("setting_value"),
				UpdatedAt: row.Time("updated_at"),
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError("settings", err)
	}
	return settings, nil
}

func (s *service) PutSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxSettingKeyLen {
		return apperr.Validation("setting_key_required")
	}

	d := s.gw.Dialect()
	query := fmt.Sprintf(
		"INSERT INTO site_settings (setting_key, setting_value, updated_at) VALUES (?, ?, %s)%s",
		d.CurrentTimestamp(),
		d.UpsertClause("setting_key", "setting_value", "updated_at"),
	)

	err := s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		_, err := cur.Execute(ctx, query, key, value)
		return err
	})
	if err != nil {
		return storeError("put setting", err)
	}

	s.logger.Info().Str("key", key).Msg("site setting updated")
	return nil
}

func count(ctx context.Context, cur *sqlgateway.Cursor, query string, args ...any) (int64, error) {
	if err := cur.Query(ctx, query, args...); err != nil {
		return 0, err
	}
	row, ok := cur.FetchOne()
	if !ok {
		return 0, fmt.Errorf("count: %w: no row", sqlgateway.ErrData)
	}
	return row.Int64("n"), nil
}

func storeError(op string, err error) error {
	if errors.Is(err, sqlgateway.ErrUnavailable) {
		return apperr.Unavailable("auth_db_unavailable", fmt.Errorf("%s: %w", op, err))
	}
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}
