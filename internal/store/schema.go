package store

import (
	"context"
	"fmt"
)

// EnsureSchema creates the entity's table if it does not exist yet.
// It reports whether the table was created by this call.
func (s *Store) EnsureSchema(ctx context.Context, name string) (created bool, err error) {
	e, err := s.catalog.Entity(name)
	if err != nil {
		return false, &SchemaError{Entity: name, Err: err}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, s.dialect.tableExistsSQL(), e.Name).Scan(&count); err != nil {
		return false, &SchemaError{Entity: name, Err: fmt.Errorf("check table: %w", err)}
	}

	ddl := createTableSQL(s.dialect, e)
	s.logger.Debug("ensure schema", "entity", name, "sql", ddl)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return false, &SchemaError{Entity: name, Err: err}
	}

	return count == 0, nil
}

// EnsureAll ensures every table of the catalog, referenced tables first,
// and seeds tables created by this call with the catalog's sample rows.
func (s *Store) EnsureAll(ctx context.Context) error {
	for _, e := range s.catalog.Entities() {
		created, err := s.EnsureSchema(ctx, e.Name)
		if err != nil {
			return err
		}
		if !created {
			continue
		}
		s.logger.Info("table created", "entity", e.Name)

		if !s.seed || len(e.Sample) == 0 {
			continue
		}
		rows := make([]Row, len(e.Sample))
		for i, sample := range e.Sample {
			rows[i] = Row(sample)
		}
		res, err := s.Insert(ctx, e.Name, rows)
		if err != nil {
			return fmt.Errorf("seed %s: %w", e.Name, err)
		}
		s.logger.Info("table seeded", "entity", e.Name, "rows", res.Inserted)
	}
	return nil
}
