package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/invtrack/internal/entity"
)

// Row maps field names to values. Text fields hold string, integer fields
// hold int64; SQL NULL is nil.
type Row map[string]any

// coerce converts a user supplied value to the field's storage type.
// Text is NFC normalized so that equal-looking names compare equal in
// UNIQUE and foreign key checks.
func coerce(e *entity.Entity, f entity.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case entity.TypeInteger:
		n, err := toInt64(v)
		if err != nil {
			return nil, &FieldError{Entity: e.Name, Field: f.Name, Message: err.Error()}
		}
		if f.Min != nil && n < *f.Min {
			return nil, &FieldError{Entity: e.Name, Field: f.Name, Message: fmt.Sprintf("%d is below minimum %d", n, *f.Min)}
		}
		if f.Max != nil && n > *f.Max {
			return nil, &FieldError{Entity: e.Name, Field: f.Name, Message: fmt.Sprintf("%d is above maximum %d", n, *f.Max)}
		}
		return n, nil
	default:
		s, err := toText(v)
		if err != nil {
			return nil, &FieldError{Entity: e.Name, Field: f.Name, Message: err.Error()}
		}
		return norm.NFC.String(s), nil
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		return n.Int64()
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot store %T as integer", v)
	}
}

func uintToInt64(n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("integer %d out of range", n)
	}
	return int64(n), nil
}

func floatToInt64(f float64) (int64, error) {
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int64(f), nil
}

func toText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", s), nil
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case json.Number:
		return s.String(), nil
	default:
		return "", fmt.Errorf("cannot store %T as text", v)
	}
}

// columns resolves the fields of a row against the entity, in declaration
// order, skipping the identifier. Unknown names are rejected so no user
// supplied key ever reaches a statement.
func columns(e *entity.Entity, row Row) ([]string, []any, error) {
	for name := range row {
		if _, ok := e.Field(name); !ok {
			return nil, nil, &FieldError{Entity: e.Name, Field: name, Message: "unknown field"}
		}
	}

	var (
		cols []string
		args []any
	)
	for _, f := range e.Fields {
		v, ok := row[f.Name]
		if !ok || f.Identifier {
			continue
		}
		val, err := coerce(e, f, v)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, f.Name)
		args = append(args, val)
	}
	return cols, args, nil
}

// scanTargets returns one destination per field for rows.Scan.
func scanTargets(e *entity.Entity) []any {
	dest := make([]any, len(e.Fields))
	for i, f := range e.Fields {
		if f.Type == entity.TypeInteger {
			dest[i] = new(sql.NullInt64)
		} else {
			dest[i] = new(sql.NullString)
		}
	}
	return dest
}

func scannedValue(dest any) any {
	switch v := dest.(type) {
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	}
	return nil
}
