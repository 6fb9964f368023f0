package sqlgateway

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means no connection could be obtained from the backend.
	ErrUnavailable = errors.New("database unavailable")
	// ErrDuplicate means a statement violated a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate key")
	// ErrData covers every other statement failure.
	ErrData = errors.New("data error")
)

// classify wraps a driver error with exactly one of the gateway sentinels.
func classify(d Dialect, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrData) {
		return err
	}
	switch {
	case d.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicate, err)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrData, err)
	}
}
