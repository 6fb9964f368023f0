// internal/calculation/store.go
package calculation

import (
	"context"
	"fmt"

	"eternalflame/pkg/sqlgateway"
)

type auditStore struct {
	gw *sqlgateway.Gateway
}

// NewAuditStore appends audit records to calculate_logs.
func NewAuditStore(gw *sqlgateway.Gateway) AuditStore {
	return &auditStore{gw: gw}
}

func (s *auditStore) Append(ctx context.Context, rec AuditRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO calculate_logs (user_id, pet_name, death_date, locale, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, %s)
	`, s.gw.Dialect().CurrentTimestamp())

	var accountID any
	if rec.AccountID != nil {
		accountID = *rec.AccountID
	}

	return s.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		_, err := cur.Insert(ctx, query, accountID, rec.Label, rec.EventDate, rec.Locale, rec.Payload)
		return err
	})
}
