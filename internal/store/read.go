package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/invtrack/internal/entity"
)

// FetchAll reads every row of the entity. Position in the returned snapshot
// is the fetch order.
//
// Returns an empty (not nil) record slice for an empty table.
func (s *Store) FetchAll(ctx context.Context, name string) (Snapshot, error) {
	e, err := s.catalog.Entity(name)
	if err != nil {
		return Snapshot{}, err
	}

	records, err := s.fetchRecords(ctx, s.db, e)
	if err != nil {
		return Snapshot{}, err
	}

	token, err := snapshotToken(e.Name, records)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Entity: e.Name, Token: token, Records: records}, nil
}

func (s *Store) fetchRecords(ctx context.Context, q querier, e *entity.Entity) ([]Record, error) {
	rows, err := q.QueryContext(ctx, selectSQL(s.dialect, e))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", e.Name, err)
	}
	defer rows.Close()

	idField := e.Identifier().Name
	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, e, idField)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", e.Name, err)
	}

	return records, nil
}

func scanRecord(rows *sql.Rows, e *entity.Entity, idField string) (Record, error) {
	dest := scanTargets(e)
	if err := rows.Scan(dest...); err != nil {
		return Record{}, fmt.Errorf("scan %s: %w", e.Name, err)
	}

	rec := Record{Values: make(Row, len(e.Fields)-1)}
	for i, f := range e.Fields {
		v := scannedValue(dest[i])
		if f.Name == idField {
			id, _ := v.(string)
			rec.ID = id
			continue
		}
		rec.Values[f.Name] = v
	}
	return rec, nil
}

// tableToken hashes the current contents of a table as seen by q.
func (s *Store) tableToken(ctx context.Context, q querier, e *entity.Entity) (string, error) {
	records, err := s.fetchRecords(ctx, q, e)
	if err != nil {
		return "", err
	}
	return snapshotToken(e.Name, records)
}

// Options returns the non-null values of a field in fetch order. It is the
// option source for single-select columns.
func (s *Store) Options(ctx context.Context, name, field string) ([]string, error) {
	e, err := s.catalog.Entity(name)
	if err != nil {
		return nil, err
	}
	f, ok := e.Field(field)
	if !ok {
		return nil, &FieldError{Entity: name, Field: field, Message: "unknown field"}
	}

	rows, err := s.db.QueryContext(ctx, optionsSQL(s.dialect, e, f.Name))
	if err != nil {
		return nil, fmt.Errorf("query options %s.%s: %w", name, field, err)
	}
	defer rows.Close()

	opts := []string{}
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan options %s.%s: %w", name, field, err)
		}
		if v.Valid {
			opts = append(opts, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate options %s.%s: %w", name, field, err)
	}
	return opts, nil
}
