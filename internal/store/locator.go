package store

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/service"
)

// DefaultTimeout bounds each store call made by a Locator.
const DefaultTimeout = 5 * time.Second

// Locator implements domain.Locator over a Store. Domain types it serves
// must construct objects implementing Entity.
type Locator struct {
	store   *Store
	timeout time.Duration
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) LocatorOption {
	return func(l *Locator) {
		l.timeout = d
	}
}

// NewLocator returns a locator reading and writing s.
func NewLocator(s *Store, opts ...LocatorOption) *Locator {
	l := &Locator{store: s, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the backing store.
func (l *Locator) Store() *Store {
	return l.store
}

func (l *Locator) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), l.timeout)
}

func (l *Locator) Create(dt *domain.DomainType) (any, error) {
	if dt.New == nil {
		return nil, fmt.Errorf("domain type %s has no constructor", dt.Name)
	}
	obj := dt.New()
	if _, ok := obj.(Entity); !ok {
		return nil, fmt.Errorf("domain type %s constructs %T, which is not a store entity", dt.Name, obj)
	}
	return obj, nil
}

func (l *Locator) Find(dt *domain.DomainType, id any) (any, error) {
	key, ok := toInt64(id)
	if !ok {
		return nil, fmt.Errorf("%s id %v is not an integer", dt.Name, id)
	}
	ctx, cancel := l.context()
	defer cancel()
	rec, found, err := l.store.Load(ctx, dt.Name, key)
	if err != nil || !found {
		return nil, err
	}
	return l.hydrate(dt, rec)
}

// ID is nil for entities that have never been saved, so the resolver
// treats them as unpersisted.
func (l *Locator) ID(obj any) (any, error) {
	e, err := entity(obj)
	if err != nil {
		return nil, err
	}
	if id, _ := e.Key(); id != 0 {
		return id, nil
	}
	return nil, nil
}

func (l *Locator) IDType(*domain.DomainType) domain.TypeRef {
	return domain.IntType
}

func (l *Locator) Version(obj any) (any, error) {
	e, err := entity(obj)
	if err != nil {
		return nil, err
	}
	if _, version := e.Key(); version != 0 {
		return version, nil
	}
	return nil, nil
}

// IsLive reports whether the entity's row still exists.
func (l *Locator) IsLive(obj any) (bool, error) {
	e, err := entity(obj)
	if err != nil {
		return false, err
	}
	id, _ := e.Key()
	if id == 0 {
		return false, nil
	}
	ctx, cancel := l.context()
	defer cancel()
	_, found, err := l.store.Load(ctx, e.Kind(), id)
	return found, err
}

// Save and Delete are for domain methods backed by this locator.
func (l *Locator) Save(e Entity) error {
	ctx, cancel := l.context()
	defer cancel()
	return l.store.Save(ctx, e)
}

func (l *Locator) Delete(e Entity) error {
	ctx, cancel := l.context()
	defer cancel()
	return l.store.Delete(ctx, e)
}

// List returns every stored entity of dt, ordered by id.
func (l *Locator) List(dt *domain.DomainType) ([]any, error) {
	ctx, cancel := l.context()
	defer cancel()
	recs, err := l.store.List(ctx, dt.Name)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(recs))
	for _, rec := range recs {
		obj, err := l.hydrate(dt, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (l *Locator) hydrate(dt *domain.DomainType, rec Record) (any, error) {
	obj, err := l.Create(dt)
	if err != nil {
		return nil, err
	}
	e := obj.(Entity)
	if err := e.Decode(rec.Payload); err != nil {
		return nil, fmt.Errorf("decode %s %d: %w", rec.Kind, rec.ID, err)
	}
	e.SetKey(rec.ID, rec.Version)
	return obj, nil
}

func entity(obj any) (Entity, error) {
	e, ok := obj.(Entity)
	if !ok {
		return nil, fmt.Errorf("%T is not a store entity", obj)
	}
	return e, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

// BatchLoader is a pipeline layer that loads the ids of types served by
// its locator with one query per kind. Other ids go to the next layer.
type BatchLoader struct {
	service.Decorator
	locator *Locator
}

// BatchLoader returns a new layer for service.WithDecorators.
func (l *Locator) BatchLoader() *BatchLoader {
	return &BatchLoader{locator: l}
}

func (b *BatchLoader) LoadDomainObjects(dts []*domain.DomainType, ids []any) ([]any, error) {
	if len(dts) != len(ids) {
		return nil, b.Die(fault.CodeBatch, nil, "size mismatch in parameters: %d types, %d ids", len(dts), len(ids))
	}

	out := make([]any, len(dts))
	byKind := make(map[string][]int)
	var rest []int
	for i, dt := range dts {
		loc, err := b.Top().ResolveLocator(dt)
		if err != nil {
			return nil, err
		}
		_, ok := toInt64(ids[i])
		if !ok || loc != domain.Locator(b.locator) {
			rest = append(rest, i)
			continue
		}
		byKind[dt.Name] = append(byKind[dt.Name], i)
	}

	ctx, cancel := b.locator.context()
	defer cancel()
	for _, kind := range slices.Sorted(maps.Keys(byKind)) {
		positions := byKind[kind]
		keys := make([]int64, len(positions))
		for j, pos := range positions {
			keys[j], _ = toInt64(ids[pos])
		}
		recs, err := b.locator.store.LoadMany(ctx, kind, keys)
		if err != nil {
			return nil, b.Die(fault.CodeBatch, err, "could not load %d %s objects", len(keys), kind)
		}
		for j, pos := range positions {
			rec, found := recs[keys[j]]
			if !found {
				continue
			}
			obj, err := b.locator.hydrate(dts[pos], rec)
			if err != nil {
				return nil, b.Die(fault.CodeBatch, err, "could not load %s %d", kind, keys[j])
			}
			out[pos] = obj
		}
	}

	if len(rest) > 0 {
		restTypes := make([]*domain.DomainType, len(rest))
		restIDs := make([]any, len(rest))
		for j, pos := range rest {
			restTypes[j] = dts[pos]
			restIDs[j] = ids[pos]
		}
		loaded, err := b.Next().LoadDomainObjects(restTypes, restIDs)
		if err != nil {
			return nil, err
		}
		if len(loaded) != len(rest) {
			return nil, b.Die(fault.CodeBatch, nil, "size mismatch in result: %d requested, %d loaded", len(rest), len(loaded))
		}
		for j, pos := range rest {
			out[pos] = loaded[j]
		}
	}

	slog.Debug("batch load",
		"kinds", len(byKind),
		"stored", len(dts)-len(rest),
		"delegated", len(rest),
	)
	return out, nil
}
