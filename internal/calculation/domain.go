// internal/calculation/domain.go
package calculation

import "time"

// Request is one computation request as received from a caller.
type Request struct {
	EventDate      string
	Label          string
	Locale         string
	AcceptLanguage string
	// Token is the raw bearer token, if any. Invalid tokens are ignored.
	Token string
}

// Result is the response body of a computation.
type Result struct {
	ElapsedMonths     int             `json:"elapsedMonths"`
	EventDate         string          `json:"eventDate"`
	Label             string          `json:"label"`
	SuggestedQuantity int             `json:"suggestedQuantity"`
	Schedule          []ScheduleEntry `json:"schedule"`
	Explanation       string          `json:"explanation"`
	Locale            string          `json:"locale"`
}

// ScheduleEntry is one recommended date with its reason code and the
// localized description of that reason.
type ScheduleEntry struct {
	Date        string `json:"date"`
	Reason      string `json:"reason"`
	Description string `json:"desc"`
}

// AuditRecord is the append-only log row written for each computation.
type AuditRecord struct {
	ID        int64     `json:"id"`
	AccountID *int64    `json:"user_id"`
	Label     string    `json:"pet_name"`
	EventDate string    `json:"death_date"`
	Locale    string    `json:"locale"`
	Payload   string    `json:"result_json"`
	CreatedAt time.Time `json:"created_at"`
}
