package sqlgateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures everything that differs between SQL backends. Callers
// always write '?' placeholders; Rebind turns them into the native form.
type Dialect interface {
	Name() string
	DriverName() string
	Rebind(query string) string
	// CurrentTimestamp is a SQL expression yielding the current UTC time.
	CurrentTimestamp() string
	// UpsertClause returns the tail of an INSERT that updates updateColumns
	// when conflictColumn already exists.
	UpsertClause(conflictColumn string, updateColumns ...string) string
	// LastInsertID reports whether sql.Result.LastInsertId is supported.
	LastInsertID() bool
	IsUniqueViolation(err error) bool
}

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// DialectFor resolves a backend name to its dialect.
func DialectFor(backend string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendSQLite, "sqlite3", "":
		return sqliteDialect{}, nil
	case BackendPostgres, "postgresql", "pg":
		return postgresDialect{}, nil
	case BackendMySQL, "mariadb":
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database backend %q", backend)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return BackendSQLite }
func (sqliteDialect) DriverName() string { return "sqlite" }
func (sqliteDialect) Rebind(q string) string {
	return sqlx.Rebind(sqlx.QUESTION, q)
}
func (sqliteDialect) CurrentTimestamp() string { return "CURRENT_TIMESTAMP" }
func (sqliteDialect) UpsertClause(conflict string, cols ...string) string {
	return onConflictClause(conflict, cols)
}
func (sqliteDialect) LastInsertID() bool { return true }

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			msg := sqliteErr.Error()
			return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "PRIMARY KEY constraint")
		}
	}
	return false
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return BackendPostgres }
func (postgresDialect) DriverName() string { return "postgres" }
func (postgresDialect) Rebind(q string) string {
	return sqlx.Rebind(sqlx.DOLLAR, q)
}
func (postgresDialect) CurrentTimestamp() string { return "(NOW() AT TIME ZONE 'UTC')" }
func (postgresDialect) UpsertClause(conflict string, cols ...string) string {
	return onConflictClause(conflict, cols)
}
func (postgresDialect) LastInsertID() bool { return false }

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return BackendMySQL }
func (mysqlDialect) DriverName() string { return "mysql" }
func (mysqlDialect) Rebind(q string) string {
	return sqlx.Rebind(sqlx.QUESTION, q)
}
func (mysqlDialect) CurrentTimestamp() string { return "UTC_TIMESTAMP()" }

func (mysqlDialect) UpsertClause(_ string, cols ...string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

func (mysqlDialect) LastInsertID() bool { return true }

func (mysqlDialect) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

func onConflictClause(conflict string, cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", conflict, strings.Join(sets, ", "))
}
