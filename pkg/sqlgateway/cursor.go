package sqlgateway

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Result describes the effect of a write statement.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Cursor executes statements on a connection or inside a transaction and
// buffers the rows of the most recent query.
type Cursor struct {
	gw     *Gateway
	exec   execQuerier
	rows   []Row
	pos    int
	closed bool
}

// errCursorClosed is returned by statements issued after a scoped cursor
// has been released.
var errCursorClosed = fmt.Errorf("%w: cursor closed", ErrData)

// Close drops buffered rows and rejects further statements.
func (c *Cursor) Close() {
	c.reset()
	c.closed = true
}

// Execute runs a write statement.
func (c *Cursor) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	if c.closed {
		return Result{}, errCursorClosed
	}
	ctx, span := c.gw.startSpan(ctx, "sqlgateway.execute", query)
	defer span.End()

	c.reset()
	res, err := c.exec.ExecContext(ctx, c.gw.dialect.Rebind(query), args...)
	if err != nil {
		return Result{}, c.fail(span, "execute", err)
	}

	var out Result
	out.RowsAffected, _ = res.RowsAffected()
	if c.gw.dialect.LastInsertID() {
		out.LastInsertID, _ = res.LastInsertId()
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", out.RowsAffected))
	return out, nil
}

// Insert runs an INSERT and returns the generated id column on every backend.
func (c *Cursor) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	if c.closed {
		return 0, errCursorClosed
	}
	if c.gw.dialect.LastInsertID() {
		res, err := c.Execute(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertID, nil
	}

	if err := c.Query(ctx, query+" RETURNING id", args...); err != nil {
		return 0, err
	}
	row, ok := c.FetchOne()
	if !ok {
		return 0, fmt.Errorf("insert: %w: no id returned", ErrData)
	}
	return row.Int64("id"), nil
}

// Query runs a read statement and buffers every row for FetchOne/FetchAll.
func (c *Cursor) Query(ctx context.Context, query string, args ...any) error {
	if c.closed {
		return errCursorClosed
	}
	ctx, span := c.gw.startSpan(ctx, "sqlgateway.query", query)
	defer span.End()

	c.reset()
	rows, err := c.exec.QueryContext(ctx, c.gw.dialect.Rebind(query), args...)
	if err != nil {
		return c.fail(span, "query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return c.fail(span, "columns", err)
	}

	for rows.Next() {
		raw := make(map[string]any, len(columns))
		if err := sqlx.MapScan(rows, raw); err != nil {
			return c.fail(span, "scan", err)
		}
		c.rows = append(c.rows, newRow(columns, raw))
	}
	if err := rows.Err(); err != nil {
		return c.fail(span, "iterate", err)
	}

	span.SetAttributes(attribute.Int("db.rows_returned", len(c.rows)))
	return nil
}

// FetchOne returns the next buffered row.
func (c *Cursor) FetchOne() (Row, bool) {
	if c.pos >= len(c.rows) {
		return Row{}, false
	}
	row := c.rows[c.pos]
	c.pos++
	return row, true
}

// FetchAll returns every remaining buffered row.
func (c *Cursor) FetchAll() []Row {
	if c.pos >= len(c.rows) {
		return []Row{}
	}
	rest := c.rows[c.pos:]
	c.pos = len(c.rows)
	return rest
}

func (c *Cursor) reset() {
	c.rows = nil
	c.pos = 0
}

func (c *Cursor) fail(span trace.Span, op string, err error) error {
	err = classify(c.gw.dialect, op, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return err
}
