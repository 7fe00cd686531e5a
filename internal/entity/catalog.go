package entity

import (
	_ "embed"
	"errors"
	"fmt"
)

//go:embed catalog.cue
var catalogCUE string

// ErrUnknownEntity is returned when a name does not match any declared entity.
var ErrUnknownEntity = errors.New("unknown entity")

// Catalog holds the compiled entity declarations.
type Catalog struct {
	entities []*Entity // dependency order
	byName   map[string]*Entity
}

// Dependent is a field of another entity that references an entity.
type Dependent struct {
	Entity *Entity
	Field  Field
}

// LoadCatalog compiles the embedded inventory tracker catalog.
func LoadCatalog() (*Catalog, error) {
	return CompileCatalog(catalogCUE)
}

// Source returns the embedded CUE catalog source.
func Source() string {
	return catalogCUE
}

func newCatalog(entities []*Entity) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		c.byName[e.Name] = e
	}

	for _, e := range entities {
		if err := c.validate(e); err != nil {
			return nil, err
		}
	}

	ordered, err := dependencyOrder(entities)
	if err != nil {
		return nil, err
	}
	c.entities = ordered
	return c, nil
}

func (c *Catalog) validate(e *Entity) error {
	var ids int
	for _, f := range e.Fields {
		if !f.Identifier {
			continue
		}
		ids++
		if f.Type != TypeText {
			return &CompileError{Entity: e.Name, Field: f.Name, Message: "identifier must be text"}
		}
	}
	if ids != 1 {
		return &CompileError{Entity: e.Name, Message: fmt.Sprintf("exactly one identifier field required, found %d", ids)}
	}

	if len(e.PrimaryKey) == 0 {
		return &CompileError{Entity: e.Name, Message: "primary key is empty"}
	}
	for _, name := range e.PrimaryKey {
		if _, ok := e.Field(name); !ok {
			return &CompileError{Entity: e.Name, Field: name, Message: "primary key field not declared"}
		}
	}
	for _, name := range e.Order {
		if _, ok := e.Field(name); !ok {
			return &CompileError{Entity: e.Name, Field: name, Message: "order field not declared"}
		}
	}

	for _, f := range e.References() {
		target, ok := c.byName[f.References.Entity]
		if !ok {
			return &CompileError{Entity: e.Name, Field: f.Name, Message: fmt.Sprintf("references unknown entity %q", f.References.Entity)}
		}
		tf, ok := target.Field(f.References.Field)
		if !ok {
			return &CompileError{Entity: e.Name, Field: f.Name, Message: fmt.Sprintf("references unknown field %s.%s", target.Name, f.References.Field)}
		}
		if !tf.Unique && !tf.Identifier {
			return &CompileError{Entity: e.Name, Field: f.Name, Message: fmt.Sprintf("referenced field %s.%s is not unique", target.Name, tf.Name)}
		}
	}

	for i, row := range e.Sample {
		for name := range row {
			f, ok := e.Field(name)
			if !ok {
				return &CompileError{Entity: e.Name, Field: name, Message: fmt.Sprintf("sample row %d uses undeclared field", i)}
			}
			if f.Identifier {
				return &CompileError{Entity: e.Name, Field: name, Message: fmt.Sprintf("sample row %d sets the identifier", i)}
			}
		}
	}
	return nil
}

// dependencyOrder sorts entities so referenced entities come first.
// Declaration order is kept among independent entities.
func dependencyOrder(entities []*Entity) ([]*Entity, error) {
	placed := make(map[string]bool, len(entities))
	ordered := make([]*Entity, 0, len(entities))

	for len(ordered) < len(entities) {
		progress := false
		for _, e := range entities {
			if placed[e.Name] {
				continue
			}
			ready := true
			for _, f := range e.References() {
				if !placed[f.References.Entity] {
					ready = false
					break
				}
			}
			if ready {
				placed[e.Name] = true
				ordered = append(ordered, e)
				progress = true
			}
		}
		if !progress {
			for _, e := range entities {
				if !placed[e.Name] {
					return nil, &CompileError{Entity: e.Name, Message: "reference cycle"}
				}
			}
		}
	}
	return ordered, nil
}

// Entity returns the named entity.
func (c *Catalog) Entity(name string) (*Entity, error) {
	e, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return e, nil
}

// Entities returns all entities, referenced entities first.
func (c *Catalog) Entities() []*Entity {
	out := make([]*Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// Names returns entity names in dependency order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entities))
	for i, e := range c.entities {
		names[i] = e.Name
	}
	return names
}

// Dependents returns every field, in any entity, that references the named entity.
func (c *Catalog) Dependents(name string) []Dependent {
	var deps []Dependent
	for _, e := range c.entities {
		for _, f := range e.References() {
			if f.References.Entity == name {
				deps = append(deps, Dependent{Entity: e, Field: f})
			}
		}
	}
	return deps
}
