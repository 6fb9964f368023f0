// internal/admin/domain.go
package admin

import (
	"time"
)

// Stats summarizes usage for the admin dashboard.
type Stats struct {
	TotalUsers      int64 `json:"total_users"`
	TodayCalculates int64 `json:"today_calculates"`
	TotalCalculates int64 `json:"total_calculates"`
}

// UserItem is one row of the account listing.
type UserItem struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// LogItem is one row of the calculation audit listing.
type LogItem struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	PetName   string    `json:"pet_name"`
	EventDate string    `json:"death_date"`
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"created_at"`
}

// Page is a slice of a listing plus the total number of matching rows.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// PageQuery selects a page of a listing. Page is 1-based.
type PageQuery struct {
	Page    int
	PerPage int
	Search  string
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func (q PageQuery) normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = defaultPerPage
	}
	q.PerPage = min(q.PerPage, maxPerPage)
	return q
}

func (q PageQuery) offset() int { return (q.Page - 1) * q.PerPage }

// Setting is a runtime-editable site setting.
type Setting struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
