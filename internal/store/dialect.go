package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/invtrack/internal/entity"
)

// Driver names accepted by SchemaSQL and the CLI.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures the differences between the supported SQL engines.
type dialect interface {
	name() string
	placeholder(n int) string
	columnType(t entity.Type) string
	fetchOrder(e *entity.Entity) string
	tableExistsSQL() string
	classify(err error) (ConstraintKind, bool)
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "sqlite3", "":
		return sqliteDialect{}, nil
	case DriverPostgres, "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return DriverSQLite }

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) columnType(t entity.Type) string {
	if t == entity.TypeInteger {
		return "INTEGER"
	}
	return "TEXT"
}

// Rows come back in insertion order, as the editing surface displayed them.
func (sqliteDialect) fetchOrder(*entity.Entity) string {
	return "ORDER BY rowid"
}

func (sqliteDialect) tableExistsSQL() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (sqliteDialect) classify(err error) (ConstraintKind, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return "", false
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique:
		return ConstraintUnique, true
	case sqlite3.ErrConstraintPrimaryKey:
		return ConstraintPrimaryKey, true
	case sqlite3.ErrConstraintForeignKey:
		return ConstraintForeignKey, true
	case sqlite3.ErrConstraintNotNull:
		return ConstraintNotNull, true
	case sqlite3.ErrConstraintCheck:
		return ConstraintCheck, true
	}
	if se.Code == sqlite3.ErrConstraint {
		return ConstraintOther, true
	}
	return "", false
}

type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgres }

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) columnType(t entity.Type) string {
	if t == entity.TypeInteger {
		return "BIGINT"
	}
	return "TEXT"
}

// PostgreSQL has no stable insertion order, so reads follow the declared
// order fields, falling back to the primary key.
func (postgresDialect) fetchOrder(e *entity.Entity) string {
	cols := e.Order
	if len(cols) == 0 {
		cols = e.PrimaryKey
	}
	return "ORDER BY " + quoteIdents(cols)
}

func (postgresDialect) tableExistsSQL() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
}

func (postgresDialect) classify(err error) (ConstraintKind, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		if strings.HasSuffix(pgErr.ConstraintName, "_pkey") {
			return ConstraintPrimaryKey, true
		}
		return ConstraintUnique, true
	case "23503": // foreign_key_violation
		return ConstraintForeignKey, true
	case "23502": // not_null_violation
		return ConstraintNotNull, true
	case "23514": // check_violation
		return ConstraintCheck, true
	}
	if strings.HasPrefix(pgErr.Code, "23") {
		return ConstraintOther, true
	}
	return "", false
}
