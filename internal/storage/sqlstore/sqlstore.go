// Package sqlstore implements the portfolio store on top of database/sql.
// It speaks to SQLite (the default local file) and PostgreSQL; queries are
// written once with $N placeholders, which both drivers accept.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/config"
	"github.com/IlyasAtabaev731/portfolio-tracker/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"log/slog"
	"strings"
)

var tableNames = []string{"users", "portfolios", "tickers", "positions"}

type Storage struct {
	db              *sql.DB
	driver          string
	dsn             string
	migrationsTable string
	logger          *slog.Logger
}

func New(cfg config.Storage, logger *slog.Logger) (*Storage, error) {
	dsn := cfg.DSN()

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database connection error: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// a single writer avoids SQLITE_BUSY between our own connections
		db.SetMaxOpenConns(1)
	}

	return &Storage{
		db:              db,
		driver:          cfg.Driver,
		dsn:             dsn,
		migrationsTable: cfg.MigrationsTable,
		logger:          logger,
	}, nil
}

func (s *Storage) Stop() error {
	return s.db.Close()
}

// Migrate applies every pending migration. Running it on an up-to-date
// schema is a no-op.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.sqlstore.Migrate"

	m, err := s.migrator()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer s.closeMigrator(m)

	stop := watchContext(ctx, m)
	defer stop()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MigrateDown rolls back every migration, dropping all tables.
func (s *Storage) MigrateDown(ctx context.Context) error {
	const op = "storage.sqlstore.MigrateDown"

	m, err := s.migrator()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer s.closeMigrator(m)

	stop := watchContext(ctx, m)
	defer stop()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// IsInitialized reports whether all four tables exist.
func (s *Storage) IsInitialized(ctx context.Context) (bool, error) {
	const op = "storage.sqlstore.IsInitialized"

	query := "SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ($1, $2, $3, $4)"
	if s.driver == config.DriverPostgres {
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name IN ($1, $2, $3, $4)`
	}

	rows, err := s.db.QueryContext(ctx, query, tableNames[0], tableNames[1], tableNames[2], tableNames[3])
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer s.closeRows(rows, "tables")

	existing := make(map[string]bool, len(tableNames))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	for _, name := range tableNames {
		if !existing[name] {
			return false, nil
		}
	}
	return true, nil
}

// migrator opens a dedicated connection for golang-migrate so that closing
// the migrator never closes the store's own pool.
func (s *Storage) migrator() (*migrate.Migrate, error) {
	fsys, err := migrations.FS(s.driver)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, err
	}

	var driver database.Driver
	switch s.driver {
	case config.DriverPostgres:
		driver, err = migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: s.migrationsTable})
	default:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: s.migrationsTable})
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m, err := migrate.NewWithInstance("iofs", source, s.driver, driver)
	if err != nil {
		_ = driver.Close()
		return nil, err
	}

	return m, nil
}

func (s *Storage) closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		s.logger.Error("Failed to close migrator", "source_error", srcErr, "db_error", dbErr)
	}
}

// watchContext asks the migrator to stop after the current migration once
// ctx is cancelled. The returned func releases the watcher.
func watchContext(ctx context.Context, m *migrate.Migrate) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (s *Storage) closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		s.logger.Error("Failed to close rows", slog.String("rows", what), "error", err)
	}
}

func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
