package sqlgateway

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockGateway(t *testing.T, backend string) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d, err := DialectFor(backend)
	require.NoError(t, err)
	return New(db, d), mock
}

func TestDialectFor(t *testing.T) {
	for name, want := range map[string]string{
		"":           BackendSQLite,
		"SQLite":     BackendSQLite,
		"postgresql": BackendPostgres,
		"pg":         BackendPostgres,
		"mysql":      BackendMySQL,
		"mariadb":    BackendMySQL,
	} {
		d, err := DialectFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.Name(), name)
	}

	_, err := DialectFor("oracle")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "SELECT id FROM users WHERE username = ? AND id > ?"

	pg, _ := DialectFor(BackendPostgres)
	assert.Equal(t, "SELECT id FROM users WHERE username = $1 AND id > $2", pg.Rebind(q))

	for _, backend := range []string{BackendSQLite, BackendMySQL} {
		d, _ := DialectFor(backend)
		assert.Equal(t, q, d.Rebind(q), backend)
	}
}

func TestUpsertClauses(t *testing.T) {
	pg, _ := DialectFor(BackendPostgres)
	assert.Equal(t,
		" ON CONFLICT (setting_key) DO UPDATE SET setting_value = excluded.setting_value, updated_at = excluded.updated_at",
		pg.UpsertClause("setting_key", "setting_value", "updated_at"))

	my, _ := DialectFor(BackendMySQL)
	assert.Equal(t,
		" ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value)",
		my.UpsertClause("setting_key", "setting_value"))
}

func TestPostgresInsertReturnsID(t *testing.T) {
	gw, mock := newMockGateway(t, BackendPostgres)
	ctx := context.Background()

	mock.ExpectQuery("INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id").
		WithArgs("mochi", "h").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	var id int64
	err := gw.WithConnection(ctx, func(conn *Conn) error {
		var err error
		id, err = conn.Cursor().Insert(ctx, "INSERT INTO users (username, password_hash) VALUES (?, ?)", "mochi", "h")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLInsertUsesLastInsertID(t *testing.T) {
	gw, mock := newMockGateway(t, BackendMySQL)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO users (username, password_hash) VALUES (?, ?)").
		WithArgs("mochi", "h").
		WillReturnResult(sqlmock.NewResult(7, 1))

	var id int64
	err := gw.WithConnection(ctx, func(conn *Conn) error {
		var err error
		id, err = conn.Cursor().Insert(ctx, "INSERT INTO users (username, password_hash) VALUES (?, ?)", "mochi", "h")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueViolationPerBackend(t *testing.T) {
	tests := []struct {
		backend string
		err     error
	}{
		{BackendPostgres, &pq.Error{Code: "23505"}},
		{BackendMySQL, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			gw, mock := newMockGateway(t, tt.backend)
			ctx := context.Background()

			mock.ExpectExec(gw.Dialect().Rebind("INSERT INTO users (username, password_hash) VALUES (?, ?)")).
				WillReturnError(tt.err)

			err := gw.WithConnection(ctx, func(conn *Conn) error {
				_, err := conn.Cursor().Execute(ctx, "INSERT INTO users (username, password_hash) VALUES (?, ?)", "mochi", "h")
				return err
			})
			assert.ErrorIs(t, err, ErrDuplicate)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestOtherDriverErrorsAreDataErrors(t *testing.T) {
	gw, mock := newMockGateway(t, BackendPostgres)
	ctx := context.Background()

	mock.ExpectQuery("SELECT * FROM users WHERE id = $1").
		WillReturnError(&pq.Error{Code: "42P01", Message: "relation does not exist"})

	err := gw.WithConnection(ctx, func(conn *Conn) error {
		return conn.Cursor().Query(ctx, "SELECT * FROM users WHERE id = ?", 1)
	})
	assert.ErrorIs(t, err, ErrData)
	assert.False(t, errors.Is(err, ErrDuplicate))
}

func TestPostgresRowsNormalizeBytes(t *testing.T) {
	gw, mock := newMockGateway(t, BackendPostgres)
	ctx := context.Background()

	mock.ExpectQuery("SELECT username, role FROM admins").
		WillReturnRows(sqlmock.NewRows([]string{"username", "role"}).AddRow([]byte("root"), []byte("super")))

	err := gw.WithConnection(ctx, func(conn *Conn) error {
		cur := conn.Cursor()
		if err := cur.Query(ctx, "SELECT username, role FROM admins"); err != nil {
			return err
		}
		row, ok := cur.FetchOne()
		require.True(t, ok)
		v, _ := row.Value("role")
		assert.Equal(t, "super", v)
		assert.Equal(t, map[string]any{"username": "root", "role": "super"}, row.Map())
		return nil
	})
	require.NoError(t, err)
}
