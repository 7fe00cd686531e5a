package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/invtrack/internal/entity"
)

// Update is a partial field update of one record.
type Update struct {
	ID     string
	Values Row
}

// Batch is the set of mutations of one commit cycle.
type Batch struct {
	Updates []Update
	Inserts []Row
	Deletes []string
}

// Empty reports whether the batch has nothing to apply.
func (b Batch) Empty() bool {
	return len(b.Updates) == 0 && len(b.Inserts) == 0 && len(b.Deletes) == 0
}

// Result counts what a commit cycle changed.
type Result struct {
	Updated     int      `json:"updated"`
	Inserted    int      `json:"inserted"`
	Deleted     int      `json:"deleted"`
	Missing     int      `json:"missing"` // updates that matched no row
	Skipped     int      `json:"skipped"` // updates with no fields to write
	InsertedIDs []string `json:"inserted_ids,omitempty"`
}

type statement struct {
	op   string
	sql  string
	args []any
}

// Insert adds rows, each with a freshly generated identifier, in one transaction.
// Identifiers supplied in the rows are ignored.
func (s *Store) Insert(ctx context.Context, name string, rows []Row) (Result, error) {
	return s.Apply(ctx, name, "", Batch{Inserts: rows})
}

// Update applies partial updates keyed by identifier in one transaction.
// An identifier that matches no row is not an error; it is counted in
// Result.Missing and logged.
func (s *Store) Update(ctx context.Context, name string, updates []Update) (Result, error) {
	return s.Apply(ctx, name, "", Batch{Updates: updates})
}

// Delete removes rows by identifier in one transaction. Dependent rows go
// with them through the engine's cascade, or through the store's own when
// foreign keys are not enforced.
func (s *Store) Delete(ctx context.Context, name string, ids []string) (Result, error) {
	return s.Apply(ctx, name, "", Batch{Deletes: ids})
}

// Apply runs one commit cycle: updates, then inserts, then deletes, inside a
// single transaction. Any failure rolls the whole cycle back and is returned
// unchanged in kind (*ConstraintViolation, *FieldError, *StaleSnapshotError,
// *StoreError).
//
// When token is not empty the table is re-read inside the transaction and
// must still hash to it, otherwise the cycle is rejected as stale.
//
// An empty batch is a no-op and is not checked against the token.
//
// Without enforced foreign keys the store checks references itself after the
// updates and after the inserts, and reports dangling ones as foreign-key
// violations.
func (s *Store) Apply(ctx context.Context, name, token string, b Batch) (res Result, err error) {
	e, err := s.catalog.Entity(name)
	if err != nil {
		return Result{}, err
	}
	if b.Empty() {
		return Result{}, nil
	}

	start := time.Now()
	defer func() { s.metrics.observe(e.Name, time.Since(start), res, err) }()

	// Build every statement before opening the transaction so field errors
	// never leave a half-built cycle behind.
	updates, err := s.prepareUpdates(e, b.Updates)
	if err != nil {
		return Result{}, err
	}
	inserts, ids, err := s.prepareInserts(e, b.Inserts)
	if err != nil {
		return Result{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, &StoreError{Op: "begin", Err: err}
	}
	defer tx.Rollback() // No-op if committed

	if token != "" {
		actual, err := s.tableToken(ctx, tx, e)
		if err != nil {
			return Result{}, &StoreError{Op: "verify snapshot", Err: err}
		}
		if actual != token {
			return Result{}, &StaleSnapshotError{Entity: e.Name, Expected: token, Actual: actual}
		}
	}

	var out Result

	for i, st := range updates {
		if st.sql == "" {
			s.logger.Debug("update has no fields, skipping", "entity", e.Name, "id", b.Updates[i].ID)
			out.Skipped++
			continue
		}
		n, err := s.exec(ctx, tx, e, st)
		if err != nil {
			return Result{}, err
		}
		if n == 0 {
			out.Missing++
			s.logger.Warn("update matched no row; snapshot and table have drifted",
				"entity", e.Name, "id", b.Updates[i].ID)
			continue
		}
		out.Updated++
	}
	if !s.foreignKeys && out.Updated > 0 {
		if err := s.checkReferences(ctx, tx, e, "update", true); err != nil {
			return Result{}, err
		}
	}

	for _, st := range inserts {
		if _, err := s.exec(ctx, tx, e, st); err != nil {
			return Result{}, err
		}
		out.Inserted++
	}
	out.InsertedIDs = ids
	if !s.foreignKeys && out.Inserted > 0 {
		if err := s.checkReferences(ctx, tx, e, "insert", false); err != nil {
			return Result{}, err
		}
	}

	for _, id := range b.Deletes {
		n, err := s.deleteOne(ctx, tx, e, id)
		if err != nil {
			return Result{}, err
		}
		out.Deleted += n
	}

	if err := tx.Commit(); err != nil {
		return Result{}, s.execError(e, "commit", err)
	}

	s.logger.Debug("commit cycle applied", "entity", e.Name,
		"updated", out.Updated, "inserted", out.Inserted, "deleted", out.Deleted, "missing", out.Missing)
	return out, nil
}

func (s *Store) prepareUpdates(e *entity.Entity, updates []Update) ([]statement, error) {
	stmts := make([]statement, len(updates))
	for i, u := range updates {
		if u.ID == "" {
			return nil, &FieldError{Entity: e.Name, Field: e.Identifier().Name, Message: "update without identifier"}
		}
		cols, args, err := columns(e, u.Values)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			continue
		}
		stmts[i] = statement{
			op:   "update",
			sql:  updateSQL(s.dialect, e, cols),
			args: append(args, u.ID),
		}
	}
	return stmts, nil
}

func (s *Store) prepareInserts(e *entity.Entity, rows []Row) ([]statement, []string, error) {
	stmts := make([]statement, 0, len(rows))
	ids := make([]string, 0, len(rows))
	idField := e.Identifier().Name
	for _, row := range rows {
		cols, args, err := columns(e, row)
		if err != nil {
			return nil, nil, err
		}
		id := s.ids.Generate()
		ids = append(ids, id)
		stmts = append(stmts, statement{
			op:   "insert",
			sql:  insertSQL(s.dialect, e, append([]string{idField}, cols...)),
			args: append([]any{id}, args...),
		})
	}
	return stmts, ids, nil
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, e *entity.Entity, st statement) (int64, error) {
	s.logger.Debug("exec", "entity", e.Name, "op", st.op, "sql", st.sql, "args", st.args)
	result, err := tx.ExecContext(ctx, st.sql, st.args...)
	if err != nil {
		return 0, s.execError(e, st.op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, &StoreError{Op: st.op + " " + e.Name + ": rows affected", Err: err}
	}
	return n, nil
}

func (s *Store) execError(e *entity.Entity, op string, err error) error {
	if kind, ok := s.dialect.classify(err); ok {
		return &ConstraintViolation{Entity: e.Name, Op: op, Kind: kind, Err: err}
	}
	return &StoreError{Op: op + " " + e.Name, Err: err}
}

// checkReferences stands in for the engine's foreign-key check when it is not
// enforced: every reference field of e must name an existing parent row and,
// when parents is set, no dependent of e may be left without its parent.
func (s *Store) checkReferences(ctx context.Context, tx *sql.Tx, e *entity.Entity, op string, parents bool) error {
	type link struct {
		child  *entity.Entity
		field  entity.Field
		parent *entity.Entity
	}
	var links []link
	for _, f := range e.References() {
		parent, err := s.catalog.Entity(f.References.Entity)
		if err != nil {
			return err
		}
		links = append(links, link{child: e, field: f, parent: parent})
	}
	if parents {
		for _, dep := range s.catalog.Dependents(e.Name) {
			links = append(links, link{child: dep.Entity, field: dep.Field, parent: e})
		}
	}

	for _, l := range links {
		q := orphanSQL(l.child, l.field, l.parent)
		s.logger.Debug("query", "entity", l.child.Name, "sql", q)
		var value any
		err := tx.QueryRowContext(ctx, q).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return &StoreError{Op: "check references " + l.child.Name, Err: err}
		}
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		return &ConstraintViolation{
			Entity: e.Name,
			Op:     op,
			Kind:   ConstraintForeignKey,
			Err: fmt.Errorf("%s.%s %v has no matching %s.%s",
				l.child.Name, l.field.Name, value, l.parent.Name, l.field.References.Field),
		}
	}
	return nil
}

// deleteOne deletes a row by identifier and returns the number of rows removed
// from e itself.
func (s *Store) deleteOne(ctx context.Context, tx *sql.Tx, e *entity.Entity, id string) (int, error) {
	if !s.foreignKeys {
		if err := s.cascade(ctx, tx, e, id); err != nil {
			return 0, err
		}
	}
	n, err := s.exec(ctx, tx, e, statement{op: "delete", sql: deleteSQL(s.dialect, e), args: []any{id}})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// cascade applies each dependent's on-delete action for one parent row.
func (s *Store) cascade(ctx context.Context, tx *sql.Tx, parent *entity.Entity, id string) error {
	for _, dep := range s.catalog.Dependents(parent.Name) {
		switch dep.Field.References.OnDelete {
		case entity.OnDeleteSetNull:
			st := statement{op: "delete", sql: dependentNullSQL(s.dialect, parent, dep), args: []any{id}}
			if _, err := s.exec(ctx, tx, dep.Entity, st); err != nil {
				return err
			}

		case entity.OnDeleteRestrict:
			childIDs, err := s.dependentIDs(ctx, tx, parent, dep, id)
			if err != nil {
				return err
			}
			if len(childIDs) > 0 {
				return &ConstraintViolation{
					Entity: parent.Name,
					Op:     "delete",
					Kind:   ConstraintForeignKey,
					Err:    fmt.Errorf("%d %s row(s) reference %s", len(childIDs), dep.Entity.Name, id),
				}
			}

		default:
			childIDs, err := s.dependentIDs(ctx, tx, parent, dep, id)
			if err != nil {
				return err
			}
			for _, childID := range childIDs {
				if _, err := s.deleteOne(ctx, tx, dep.Entity, childID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// dependentIDs reads every id first so the rows are closed before the
// connection is reused for the deletes.
func (s *Store) dependentIDs(ctx context.Context, tx *sql.Tx, parent *entity.Entity, dep entity.Dependent, id string) ([]string, error) {
	q := dependentIDsSQL(s.dialect, parent, dep)
	s.logger.Debug("query", "entity", dep.Entity.Name, "sql", q, "args", id)
	rows, err := tx.QueryContext(ctx, q, id)
	if err != nil {
		return nil, &StoreError{Op: "cascade " + dep.Entity.Name, Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var childID string
		if err := rows.Scan(&childID); err != nil {
			return nil, &StoreError{Op: "cascade " + dep.Entity.Name, Err: err}
		}
		ids = append(ids, childID)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "cascade " + dep.Entity.Name, Err: err}
	}
	return ids, nil
}
