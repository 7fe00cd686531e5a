package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/invtrack/internal/entity"
)

// SchemaSQL renders the CREATE TABLE statements for every entity of the
// catalog, parents first, for the named driver.
func SchemaSQL(driver string, c *entity.Catalog) (string, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, e := range c.Entities() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(createTableSQL(d, e))
		b.WriteString(";\n")
	}
	return b.String(), nil
}

func createTableSQL(d dialect, e *entity.Entity) string {
	var lines []string
	for _, f := range e.Fields {
		col := quoteIdent(f.Name) + " " + d.columnType(f.Type)
		if f.NotNull {
			col += " NOT NULL"
		}
		if f.Unique {
			col += " UNIQUE"
		}
		if f.Default != nil {
			col += " DEFAULT " + literal(f.Default)
		}
		lines = append(lines, col)
	}

	lines = append(lines, "PRIMARY KEY ("+quoteIdents(e.PrimaryKey)+")")

	for _, f := range e.References() {
		ref := f.References
		lines = append(lines, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE NO ACTION",
			quoteIdent(f.Name), quoteIdent(ref.Entity), quoteIdent(ref.Field), onDeleteSQL(ref.OnDelete)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdent(e.Name), strings.Join(lines, ",\n\t"))
}

func onDeleteSQL(action entity.OnDelete) string {
	switch action {
	case entity.OnDeleteRestrict:
		return "RESTRICT"
	case entity.OnDeleteSetNull:
		return "SET NULL"
	default:
		return "CASCADE"
	}
}

// literal renders a declared default. Defaults come from the catalog, never
// from user input; string quotes are still escaped.
func literal(v any) string {
	switch val := v.(type) {
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	default:
		return fmt.Sprintf("'%v'", val)
	}
}

func selectSQL(d dialect, e *entity.Entity) string {
	return fmt.Sprintf("SELECT %s FROM %s %s", quoteIdents(e.ColumnNames()), quoteIdent(e.Name), d.fetchOrder(e))
}

func optionsSQL(d dialect, e *entity.Entity, field string) string {
	return fmt.Sprintf("SELECT %s FROM %s %s", quoteIdent(field), quoteIdent(e.Name), d.fetchOrder(e))
}

func insertSQL(d dialect, e *entity.Entity, cols []string) string {
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(e.Name), quoteIdents(cols), strings.Join(marks, ", "))
}

// updateSQL binds the set columns first and the identifier last.
func updateSQL(d dialect, e *entity.Entity, cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quoteIdent(c) + " = " + d.placeholder(i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		quoteIdent(e.Name), strings.Join(sets, ", "), quoteIdent(e.Identifier().Name), d.placeholder(len(cols)+1))
}

func deleteSQL(d dialect, e *entity.Entity) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		quoteIdent(e.Name), quoteIdent(e.Identifier().Name), d.placeholder(1))
}

// referencedValueSQL selects the referenced field of one parent row.
func referencedValueSQL(d dialect, parent *entity.Entity, field string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		quoteIdent(field), quoteIdent(parent.Name), quoteIdent(parent.Identifier().Name), d.placeholder(1))
}

func dependentIDsSQL(d dialect, parent *entity.Entity, dep entity.Dependent) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		quoteIdent(dep.Entity.Identifier().Name), quoteIdent(dep.Entity.Name), quoteIdent(dep.Field.Name),
		referencedValueSQL(d, parent, dep.Field.References.Field))
}

func dependentNullSQL(d dialect, parent *entity.Entity, dep entity.Dependent) string {
	return fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s IN (%s)",
		quoteIdent(dep.Entity.Name), quoteIdent(dep.Field.Name), quoteIdent(dep.Field.Name),
		referencedValueSQL(d, parent, dep.Field.References.Field))
}

// orphanSQL finds one child row whose reference field names no parent row.
func orphanSQL(child *entity.Entity, field entity.Field, parent *entity.Entity) string {
	return fmt.Sprintf("SELECT c.%s FROM %s c WHERE c.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s p WHERE p.%s = c.%s) LIMIT 1",
		quoteIdent(field.Name), quoteIdent(child.Name), quoteIdent(field.Name),
		quoteIdent(parent.Name), quoteIdent(field.References.Field), quoteIdent(field.Name))
}
