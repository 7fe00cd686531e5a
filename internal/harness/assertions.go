package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/invtrack/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the entity's final rows to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Entity   string         // Entity the assertion inspected
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Records  []store.Record // Final rows for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s on %s\n", e.Type, e.Entity)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFinal rows:\n")
	for i, rec := range e.Records {
		fmt.Fprintf(&buf, "  [%d] %s %s\n", i, rec.ID, formatFields(rec.Values))
	}

	return buf.String()
}

func assertRowCount(records []store.Record, a Assertion) error {
	if len(records) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRowCount,
		Entity:   a.Entity,
		Expected: fmt.Sprintf("%d row(s)", a.Count),
		Actual:   fmt.Sprintf("%d row(s)", len(records)),
		Records:  records,
	}
}

// assertRow checks that some row matching where holds the expected values.
func assertRow(records []store.Record, a Assertion) error {
	matched := 0
	for _, rec := range records {
		if !matchRecord(rec, a.Where) {
			continue
		}
		matched++
		if matchRecord(rec, a.Expect) {
			return nil
		}
	}

	actual := "no row matches " + formatFields(a.Where)
	if matched > 0 {
		actual = fmt.Sprintf("%d row(s) match %s but none has %s", matched, formatFields(a.Where), formatFields(a.Expect))
	}
	return &AssertionError{
		Type:     AssertRow,
		Entity:   a.Entity,
		Expected: fmt.Sprintf("row %s with %s", formatFields(a.Where), formatFields(a.Expect)),
		Actual:   actual,
		Records:  records,
	}
}

func assertAbsent(records []store.Record, a Assertion) error {
	for _, rec := range records {
		if matchRecord(rec, a.Where) {
			return &AssertionError{
				Type:     AssertAbsent,
				Entity:   a.Entity,
				Expected: "no row matching " + formatFields(a.Where),
				Actual:   "found " + rec.ID,
				Records:  records,
			}
		}
	}
	return nil
}

// matchRecord checks that rec holds every expected field (subset match).
// The key "id" matches the identifier.
func matchRecord(rec store.Record, expected map[string]any) bool {
	for key, want := range expected {
		var got any
		if key == "id" {
			got = rec.ID
		} else {
			v, ok := rec.Values[key]
			if !ok {
				return false
			}
			got = v
		}
		if !valuesEqual(want, got) {
			return false
		}
	}
	return true
}

// valuesEqual compares a YAML-decoded expected value against a stored one.
// Stored integers are int64 while YAML yields int.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	switch exp := expected.(type) {
	case int:
		n, ok := actual.(int64)
		return ok && int64(exp) == n
	case int64:
		n, ok := actual.(int64)
		return ok && exp == n
	case string:
		s, ok := actual.(string)
		return ok && exp == s
	default:
		return fmt.Sprint(expected) == fmt.Sprint(actual)
	}
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// EvaluateAssertions evaluates all assertions against the result's final state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		records, ok := result.State[a.Entity]
		if !ok {
			errors = append(errors, fmt.Sprintf("assertion[%d]: unknown entity %q", i, a.Entity))
			continue
		}

		var err error
		switch a.Type {
		case AssertRowCount:
			err = assertRowCount(records, a)
		case AssertRow:
			err = assertRow(records, a)
		case AssertAbsent:
			err = assertAbsent(records, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
