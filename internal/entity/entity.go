package entity

// Type is the storage type of a field.
type Type string

const (
	TypeText    Type = "text"
	TypeInteger Type = "integer"
)

// Kind is the presentation kind of a field.
type Kind string

const (
	KindText         Kind = "text"
	KindNumber       Kind = "number"
	KindSingleSelect Kind = "single-select"
)

// OnDelete is the action taken on dependents when a referenced row is deleted.
type OnDelete string

const (
	OnDeleteCascade  OnDelete = "cascade"
	OnDeleteRestrict OnDelete = "restrict"
	OnDeleteSetNull  OnDelete = "set_null"
)

// Reference declares that a field holds a value of another entity's field.
type Reference struct {
	Entity   string
	Field    string
	OnDelete OnDelete
}

// Field is one declared column of an entity.
type Field struct {
	Name       string
	Label      string
	Type       Type
	Identifier bool
	Required   bool
	NotNull    bool
	Unique     bool
	Default    any // nil, int64 or string
	Min        *int64
	Max        *int64
	References *Reference
}

// Kind returns the presentation kind derived from the field declaration.
func (f Field) Kind() Kind {
	switch {
	case f.References != nil:
		return KindSingleSelect
	case f.Type == TypeInteger:
		return KindNumber
	default:
		return KindText
	}
}

// Entity is a logical table.
type Entity struct {
	Name       string
	Label      string
	Fields     []Field
	PrimaryKey []string
	// Order lists the fields used to order full-table reads on engines
	// without a stable insertion order.
	Order []string
	// Sample rows are inserted when the table is first created.
	Sample []map[string]any

	index map[string]int
}

// Field returns the named field.
func (e *Entity) Field(name string) (Field, bool) {
	i, ok := e.index[name]
	if !ok {
		return Field{}, false
	}
	return e.Fields[i], true
}

// Identifier returns the identifier field.
func (e *Entity) Identifier() Field {
	for _, f := range e.Fields {
		if f.Identifier {
			return f
		}
	}
	return Field{}
}

// ColumnNames returns every field name in declaration order.
func (e *Entity) ColumnNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// References returns the fields that reference other entities.
func (e *Entity) References() []Field {
	var refs []Field
	for _, f := range e.Fields {
		if f.References != nil {
			refs = append(refs, f)
		}
	}
	return refs
}

func (e *Entity) buildIndex() {
	e.index = make(map[string]int, len(e.Fields))
	for i, f := range e.Fields {
		e.index[f.Name] = i
	}
}
