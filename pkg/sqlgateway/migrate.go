package sqlgateway

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	mmysql "github.com/golang-migrate/migrate/v4/database/mysql"
	mpostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the embedded schema for cfg.Backend. It uses its own
// handle because the migration drivers close the database they are given.
func Migrate(cfg Config, logger zerolog.Logger) error {
	dialect, err := DialectFor(cfg.Backend)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationsFS, "migrations/"+dialect.Name())
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	dsn, err := dataSource(dialect, cfg.DSN)
	if err != nil {
		return err
	}
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", dialect.Name(), err)
	}

	driver, err := migrationDriver(dialect, db)
	if err != nil {
		db.Close()
		return fmt.Errorf("init migration driver: %w: %w", ErrUnavailable, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect.Name(), driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info().
		Str("backend", dialect.Name()).
		Uint("version", version).
		Bool("dirty", dirty).
		Msg("migrations applied")
	return nil
}

func migrationDriver(d Dialect, db *sql.DB) (database.Driver, error) {
	switch d.Name() {
	case BackendPostgres:
		return mpostgres.WithInstance(db, &mpostgres.Config{})
	case BackendMySQL:
		return mmysql.WithInstance(db, &mmysql.Config{})
	default:
		return msqlite.WithInstance(db, &msqlite.Config{})
	}
}
