package store

import (
	"errors"
	"fmt"
)

// ConstraintKind names the kind of integrity constraint that rejected a statement.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintPrimaryKey ConstraintKind = "primary_key"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintOther      ConstraintKind = "constraint"
)

// SchemaError reports a failed schema definition. The store cannot be used
// for the entity afterwards.
type SchemaError struct {
	Entity string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %v", e.Entity, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ConstraintViolation reports a uniqueness, key or not-null violation.
// The commit cycle that raised it was rolled back.
type ConstraintViolation struct {
	Entity string
	Op     string // "insert", "update" or "delete"
	Kind   ConstraintKind
	Err    error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("%s %s: %s constraint violated: %v", e.Op, e.Entity, e.Kind, e.Err)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// StaleSnapshotError reports that a change-set was built against a snapshot
// that no longer matches the stored table. Refetch and rebuild the edits.
type StaleSnapshotError struct {
	Entity   string
	Expected string
	Actual   string
	Reason   string
}

func (e *StaleSnapshotError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("stale snapshot of %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("stale snapshot of %s: token %s, table is at %s", e.Entity, short(e.Expected), short(e.Actual))
}

// FieldError reports a value that cannot be written to the named field.
type FieldError struct {
	Entity  string
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
}

// StoreError wraps failures of the connection or transaction itself.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsConstraintViolation reports whether err wraps a *ConstraintViolation.
func IsConstraintViolation(err error) bool {
	var cv *ConstraintViolation
	return errors.As(err, &cv)
}

// IsStaleSnapshot reports whether err wraps a *StaleSnapshotError.
func IsStaleSnapshot(err error) bool {
	var se *StaleSnapshotError
	return errors.As(err, &se)
}

// IsSchemaError reports whether err wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsFieldError reports whether err wraps a *FieldError.
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

func short(token string) string {
	if len(token) > 12 {
		return token[:12]
	}
	return token
}
