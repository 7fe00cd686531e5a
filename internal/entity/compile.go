package entity

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports an invalid catalog declaration.
type CompileError struct {
	Entity  string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	where := "catalog"
	if e.Entity != "" {
		where = e.Entity
		if e.Field != "" {
			where += "." + e.Field
		}
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			where, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// CompileCatalog compiles CUE source declaring an `entity` struct into a Catalog.
func CompileCatalog(src string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("catalog.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{Message: "no entity declarations", Pos: v.Pos()}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var entities []*Entity
	for iter.Next() {
		e, err := compileEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	return newCatalog(entities)
}

func compileEntity(name string, v cue.Value) (*Entity, error) {
	e := &Entity{Name: name}

	label, err := stringAt(v, "label")
	if err != nil {
		return nil, err
	}
	e.Label = label

	if e.PrimaryKey, err = stringList(v, "primary_key"); err != nil {
		return nil, err
	}
	if e.Order, err = stringList(v, "order"); err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Entity: name, Message: "fields are required", Pos: v.Pos()}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(name, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		e.Fields = append(e.Fields, f)
	}
	if len(e.Fields) == 0 {
		return nil, &CompileError{Entity: name, Message: "at least one field is required", Pos: fieldsVal.Pos()}
	}

	if e.Sample, err = compileSample(name, v.LookupPath(cue.ParsePath("sample"))); err != nil {
		return nil, err
	}

	e.buildIndex()
	if len(e.PrimaryKey) == 0 {
		if id := e.Identifier(); id.Name != "" {
			e.PrimaryKey = []string{id.Name}
		}
	}
	return e, nil
}

func compileField(entityName, name string, v cue.Value) (Field, error) {
	f := Field{Name: name}

	typ, err := stringAt(v, "type")
	if err != nil {
		return f, err
	}
	f.Type = Type(typ)
	if f.Type != TypeText && f.Type != TypeInteger {
		return f, &CompileError{Entity: entityName, Field: name, Message: fmt.Sprintf("unknown type %q", typ), Pos: v.Pos()}
	}

	if f.Label, err = stringAt(v, "label"); err != nil {
		return f, err
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"identifier", &f.Identifier},
		{"required", &f.Required},
		{"not_null", &f.NotNull},
		{"unique", &f.Unique},
	}
	for _, flag := range flags {
		b, err := v.LookupPath(cue.ParsePath(flag.name)).Bool()
		if err != nil {
			return f, formatCUEError(err)
		}
		*flag.dst = b
	}
	if f.Identifier {
		f.NotNull = true
	}

	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() && dv.IsConcrete() {
		if f.Default, err = scalar(dv); err != nil {
			return f, err
		}
	}

	if f.Min, err = optionalInt(v, "min"); err != nil {
		return f, err
	}
	if f.Max, err = optionalInt(v, "max"); err != nil {
		return f, err
	}

	rv := v.LookupPath(cue.ParsePath("references"))
	if rv.Exists() && rv.LookupPath(cue.ParsePath("entity")).IsConcrete() {
		ref := &Reference{}
		if ref.Entity, err = stringAt(rv, "entity"); err != nil {
			return f, err
		}
		if ref.Field, err = stringAt(rv, "field"); err != nil {
			return f, err
		}
		onDelete, err := stringAt(rv, "on_delete")
		if err != nil {
			return f, err
		}
		ref.OnDelete = OnDelete(onDelete)
		f.References = ref
	}

	return f, nil
}

func compileSample(entityName string, v cue.Value) ([]map[string]any, error) {
	if !v.Exists() {
		return nil, nil
	}
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rows []map[string]any
	for list.Next() {
		iter, err := list.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		row := make(map[string]any)
		for iter.Next() {
			val, err := scalar(iter.Value())
			if err != nil {
				var ce *CompileError
				if errors.As(err, &ce) {
					ce.Entity = entityName
				}
				return nil, err
			}
			row[iter.Label()] = val
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func stringAt(v cue.Value, path string) (string, error) {
	s, err := v.LookupPath(cue.ParsePath(path)).String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, path string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(path))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func optionalInt(v cue.Value, path string) (*int64, error) {
	iv := v.LookupPath(cue.ParsePath(path))
	if !iv.Exists() || !iv.IsConcrete() {
		return nil, nil
	}
	n, err := iv.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &n, nil
}

// scalar converts a concrete CUE int or string into int64 or string.
func scalar(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	default:
		return nil, &CompileError{Message: fmt.Sprintf("unsupported value kind %s", v.Kind()), Pos: v.Pos()}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
