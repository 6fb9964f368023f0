package sqlgateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the backend once at startup.
type Config struct {
	Backend string
	// DSN is the connection string for postgres/mysql or the file path for sqlite.
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Gateway hands out scoped connections against a single backend.
type Gateway struct {
	db      *sql.DB
	dialect Dialect
	tracer  trace.Tracer
}

// Open creates a pooled handle. It does not contact the backend; availability
// is only checked when a connection is acquired.
func Open(cfg Config) (*Gateway, error) {
	dialect, err := DialectFor(cfg.Backend)
	if err != nil {
		return nil, err
	}

	dsn, err := dataSource(dialect, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name(), err)
	}

	if dialect.Name() == BackendSQLite {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(db, dialect), nil
}

// New wraps an existing handle.
func New(db *sql.DB, dialect Dialect) *Gateway {
	return &Gateway{
		db:      db,
		dialect: dialect,
		tracer:  otel.Tracer("eternalflame/sqlgateway"),
	}
}

func (g *Gateway) Dialect() Dialect { return g.dialect }

func (g *Gateway) Close() error { return g.db.Close() }

// Ping reports whether the backend currently accepts connections.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// Connect acquires a dedicated connection. The caller must Close it.
func (g *Gateway) Connect(ctx context.Context) (*Conn, error) {
	ctx, span := g.tracer.Start(ctx, "sqlgateway.connect",
		trace.WithAttributes(attribute.String("db.system", g.dialect.Name())),
	)
	defer span.End()

	conn, err := g.db.Conn(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("acquire connection: %w: %w", ErrUnavailable, err)
	}
	return &Conn{gw: g, conn: conn}, nil
}

// WithConnection runs fn with a connection that is released on every path.
func (g *Gateway) WithConnection(ctx context.Context, fn func(*Conn) error) error {
	conn, err := g.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// WithCursor leases a connection and runs fn with a cursor scoped to it.
func (g *Gateway) WithCursor(ctx context.Context, fn func(*Cursor) error) error {
	return g.WithConnection(ctx, func(conn *Conn) error {
		return conn.WithCursor(fn)
	})
}

func (g *Gateway) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("db.system", g.dialect.Name()),
			attribute.String("db.operation", statementVerb(query)),
		),
	)
}

// Conn is a single leased connection.
type Conn struct {
	gw     *Gateway
	conn   *sql.Conn
	mu     sync.Mutex
	closed bool
}

// Cursor returns an autocommit cursor on this connection.
func (c *Conn) Cursor() *Cursor {
	return &Cursor{gw: c.gw, exec: c.conn}
}

// WithCursor runs fn with an autocommit cursor that is closed when fn
// returns, on every path.
func (c *Conn) WithCursor(fn func(*Cursor) error) error {
	cur := c.Cursor()
	defer cur.Close()
	return fn(cur)
}

// Begin starts a transaction on this connection.
func (c *Conn) Begin(ctx context.Context) (*Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(c.gw.dialect, "begin transaction", err)
	}
	return &Tx{gw: c.gw, tx: tx}, nil
}

// InTx commits when fn returns nil and rolls back otherwise.
func (c *Conn) InTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close returns the connection to the pool. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Tx is an open transaction.
type Tx struct {
	gw *Gateway
	tx *sql.Tx
}

func (t *Tx) Cursor() *Cursor {
	return &Cursor{gw: t.gw, exec: t.tx}
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classify(t.gw.dialect, "commit transaction", err)
	}
	return nil
}

// Rollback is a no-op after Commit.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return classify(t.gw.dialect, "rollback transaction", err)
	}
	return nil
}

func dataSource(d Dialect, dsn string) (string, error) {
	if d.Name() != BackendSQLite {
		if dsn == "" {
			return "", fmt.Errorf("%s backend requires a DSN", d.Name())
		}
		return dsn, nil
	}

	if dsn == "" {
		dsn = filepath.Join("data", "dev.db")
	}
	if strings.Contains(dsn, "?") || dsn == ":memory:" {
		return dsn, nil
	}
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
}

func statementVerb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
