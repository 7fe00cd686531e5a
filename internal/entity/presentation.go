package entity

import (
	"context"
	"fmt"
)

// OptionSource supplies the current values of a field, in fetch order.
// The store implements it; options are read when the presentation is built,
// never cached across commits.
type OptionSource interface {
	Options(ctx context.Context, entity, field string) ([]string, error)
}

// Column is the presentation contract for one field.
type Column struct {
	Label    string   `json:"label"`
	Editable bool     `json:"editable"`
	Required bool     `json:"required"`
	Default  any      `json:"default,omitempty"`
	Kind     Kind     `json:"kind"`
	Options  []string `json:"options,omitempty"`
	Min      *int64   `json:"min,omitempty"`
	Max      *int64   `json:"max,omitempty"`
}

// Presentation describes how an entity is rendered for editing.
type Presentation struct {
	Entity  string            `json:"entity"`
	Label   string            `json:"label"`
	Order   []string          `json:"order"`
	Columns map[string]Column `json:"columns"`
}

// Columns builds the presentation contract for an entity. Reference fields
// receive the referenced entity's current values as options and, unless a
// default is declared, the first option as default.
func (c *Catalog) Columns(ctx context.Context, e *Entity, src OptionSource) (Presentation, error) {
	p := Presentation{
		Entity:  e.Name,
		Label:   e.Label,
		Order:   e.ColumnNames(),
		Columns: make(map[string]Column, len(e.Fields)),
	}

	for _, f := range e.Fields {
		col := Column{
			Label:    f.Label,
			Editable: !f.Identifier,
			Required: f.Required,
			Default:  f.Default,
			Kind:     f.Kind(),
			Min:      f.Min,
			Max:      f.Max,
		}

		if ref := f.References; ref != nil {
			if src == nil {
				return Presentation{}, fmt.Errorf("columns %s.%s: no option source", e.Name, f.Name)
			}
			opts, err := src.Options(ctx, ref.Entity, ref.Field)
			if err != nil {
				return Presentation{}, fmt.Errorf("columns %s.%s: %w", e.Name, f.Name, err)
			}
			col.Options = opts
			if col.Default == nil && len(opts) > 0 {
				col.Default = opts[0]
			}
		}

		p.Columns[f.Name] = col
	}

	return p, nil
}
