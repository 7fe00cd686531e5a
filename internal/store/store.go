package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/invtrack/internal/entity"
)

// Store provides transactional CRUD for the tables declared in a catalog.
type Store struct {
	db      *sql.DB
	dialect dialect
	catalog *entity.Catalog
	ids     IDGenerator
	logger  *slog.Logger
	metrics *Metrics

	// foreignKeys reports whether the engine enforces foreign keys. When it
	// does not, deletes cascade through the catalog's dependents explicitly.
	foreignKeys     bool
	wantForeignKeys bool
	seed            bool
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUID generator used for new records.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records commit cycles into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithForeignKeys turns SQLite foreign key enforcement on (default) or off.
// With enforcement off the store cascades deletes itself.
func WithForeignKeys(on bool) Option {
	return func(s *Store) { s.wantForeignKeys = on }
}

// WithSeed controls whether EnsureAll fills newly created tables with the
// catalog's sample rows. Enabled by default.
func WithSeed(on bool) Option {
	return func(s *Store) { s.seed = on }
}

func newStore(catalog *entity.Catalog, d dialect, opts []Option) *Store {
	s := &Store{
		dialect:         d,
		catalog:         catalog,
		ids:             UUIDGenerator{},
		wantForeignKeys: true,
		seed:            true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement (unless WithForeignKeys(false))
//
// Tables are not created here; call EnsureSchema or EnsureAll.
func Open(path string, catalog *entity.Catalog, opts ...Option) (*Store, error) {
	s := newStore(catalog, sqliteDialect{}, opts)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StoreError{Op: "connect", Err: err}
	}

	// Pragmas are per connection; keep exactly one so they always apply.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, s.wantForeignKeys); err != nil {
		db.Close()
		return nil, &StoreError{Op: "pragmas", Err: err}
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		db.Close()
		return nil, &StoreError{Op: "pragmas", Err: err}
	}
	s.foreignKeys = fk == 1
	s.db = db

	s.logger.Debug("database opened", "driver", DriverSQLite, "path", path, "foreign_keys", s.foreignKeys)
	return s, nil
}

// OpenPostgres connects to PostgreSQL through the pgx database/sql driver.
func OpenPostgres(dsn string, catalog *entity.Catalog, opts ...Option) (*Store, error) {
	s := newStore(catalog, postgresDialect{}, opts)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StoreError{Op: "connect", Err: err}
	}
	s.db = db
	s.foreignKeys = true

	s.logger.Debug("database opened", "driver", DriverPostgres)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Catalog returns the catalog the store was opened with.
func (s *Store) Catalog() *entity.Catalog {
	return s.catalog
}

// Driver returns the SQL engine name.
func (s *Store) Driver() string {
	return s.dialect.name()
}

// ForeignKeysEnforced reports whether the engine enforces foreign keys.
func (s *Store) ForeignKeysEnforced() bool {
	return s.foreignKeys
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, foreignKeys bool) error {
	fk := "OFF"
	if foreignKeys {
		fk = "ON"
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = " + fk,
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
