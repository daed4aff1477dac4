// Package validation checks domain objects against CUE constraints.
//
// Constraints are written as one top-level CUE struct per domain type,
// named after the type:
//
//	Person: {
//		name:   string & != ""
//		email?: =~"^[^@]+@[^@]+$"
//	}
//
// An object is validated by encoding its properties (references as nested
// structs, one level per object, cycles cut) and unifying them with the
// type's struct. Every CUE error becomes one domain.Violation whose path is
// the CUE path of the failing field.
package validation

import (
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rfsync/internal/domain"
)

// Validator implements domain.Validator.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so
// Validate serializes on an internal mutex.
type Validator struct {
	table *domain.Table

	mu      sync.Mutex
	ctx     *cue.Context
	schemas map[string]cue.Value
}

// SchemaError reports a CUE source that does not compile.
type SchemaError struct {
	File    string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// New compiles sources, a map from file name to CUE text, into a validator
// for the domain types of table. Top-level fields that do not name a
// domain type are an error.
func New(table *domain.Table, sources map[string]string) (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString("{}")
	for _, name := range slices.Sorted(maps.Keys(sources)) {
		v := ctx.CompileString(sources[name], cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, schemaError(name, err)
		}
		root = root.Unify(v)
	}
	// Conflicts between files surface on the fields, not the root.
	if err := root.Validate(); err != nil {
		return nil, schemaError("", err)
	}

	schemas := make(map[string]cue.Value)
	iter, err := root.Fields()
	if err != nil {
		return nil, schemaError("", err)
	}
	for iter.Next() {
		label := iter.Label()
		if _, ok := table.Domain(label); !ok {
			return nil, &SchemaError{File: "", Message: fmt.Sprintf("no domain type named %q", label), Pos: iter.Value().Pos()}
		}
		schemas[label] = iter.Value()
	}

	return &Validator{table: table, ctx: ctx, schemas: schemas}, nil
}

// LoadFS reads every .cue file in dir of fsys, for use with New.
func LoadFS(fsys fs.FS, dir string) (map[string]string, error) {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sources := make(map[string]string, len(matches))
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", m, err)
		}
		sources[m] = string(data)
	}
	return sources, nil
}

// Types returns the names of the domain types that have constraints.
func (v *Validator) Types() []string {
	return slices.Sorted(maps.Keys(v.schemas))
}

// Validate implements domain.Validator. Objects of types without
// constraints have no violations.
func (v *Validator) Validate(obj any) ([]domain.Violation, error) {
	dt, ok := v.table.DomainOf(obj)
	if !ok {
		return nil, nil
	}
	schema, ok := v.schemas[dt.Name]
	if !ok {
		return nil, nil
	}

	s := &snapshot{table: v.table, visited: map[any]bool{}, leaves: map[string]any{}}
	data, err := s.object(dt, obj, "")
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	value := v.ctx.Encode(data)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", dt.Name, err)
	}
	err = schema.Unify(value).Validate(cue.Concrete(true))
	if err == nil {
		return nil, nil
	}

	// A failed disjunction reports a summary plus one error per branch at
	// the same path. Keep one violation per path, the most specific one.
	var out []domain.Violation
	index := make(map[string]int)
	ranks := make(map[string]int)
	for _, e := range errors.Errors(err) {
		format, args := e.Msg()
		at := e.Path()
		// Paths may be rooted at the type's own field.
		if len(at) > 0 && at[0] == dt.Name {
			at = at[1:]
		}
		p := strings.Join(at, ".")
		rank := specificity(format)
		if i, ok := index[p]; ok {
			if rank <= ranks[p] {
				continue
			}
			out[i].Message = fmt.Sprintf(format, args...)
			out[i].Template = format
			ranks[p] = rank
			continue
		}
		index[p] = len(out)
		ranks[p] = rank
		out = append(out, domain.Violation{
			Message:  fmt.Sprintf(format, args...),
			Template: format,
			Path:     p,
			Leaf:     s.leaf(at),
		})
	}
	return out, nil
}

// specificity orders CUE error formats for one path. Disjunction summaries
// say nothing about the value; a conflict with a literal branch says less
// than a failed bound or pattern.
func specificity(format string) int {
	switch {
	case strings.Contains(format, "empty disjunction"):
		return 0
	case strings.HasPrefix(format, "conflicting values"):
		return 1
	default:
		return 2
	}
}

func schemaError(file string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{File: file, Message: err.Error()}
	}
	first := errs[0]
	se := &SchemaError{File: file, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}

// snapshot encodes a domain object as plain Go values CUE can encode.
type snapshot struct {
	table   *domain.Table
	visited map[any]bool
	leaves  map[string]any
}

func (s *snapshot) object(dt *domain.DomainType, obj any, prefix string) (map[string]any, error) {
	s.visited[obj] = true
	out := make(map[string]any, len(dt.Properties))
	for name, acc := range dt.Properties {
		raw, err := acc.Get(obj)
		if err != nil {
			return nil, fmt.Errorf("reading %s.%s: %w", dt.Name, name, err)
		}
		value, ok, err := s.value(raw, join(prefix, name))
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = value
		}
	}
	return out, nil
}

// value converts one property value. It reports false for values that are
// left out: nil, and objects already encoded higher up.
func (s *snapshot) value(v any, at string) (any, bool, error) {
	v = domain.NormalizeNil(v)
	switch val := v.(type) {
	case nil:
		return nil, false, nil
	case time.Time:
		return val.UnixMilli(), true, nil
	case int:
		return int64(val), true, nil
	case int32:
		return int64(val), true, nil
	}
	if domain.IsScalar(v) {
		return v, true, nil
	}
	if dt, ok := s.table.DomainOf(v); ok {
		if s.visited[v] {
			return nil, false, nil
		}
		s.leaves[at] = v
		nested, err := s.object(dt, v, at)
		return nested, err == nil, err
	}
	if elems, ok := domain.Elements(v); ok {
		list := make([]any, 0, len(elems))
		for i, e := range elems {
			item, ok, err := s.value(e, join(at, fmt.Sprint(i)))
			if err != nil {
				return nil, false, err
			}
			if ok {
				list = append(list, item)
			}
		}
		return list, true, nil
	}
	return nil, false, nil
}

// leaf returns the nested object owning the field at path, or nil when the
// field belongs to the validated object itself.
func (s *snapshot) leaf(p []string) any {
	for i := len(p) - 1; i > 0; i-- {
		if obj, ok := s.leaves[strings.Join(p[:i], ".")]; ok {
			return obj
		}
	}
	return nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
