package graph

import (
	"log/slog"
	"reflect"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/proxy"
	"github.com/roach88/rfsync/internal/service"
)

// Resolver converts domain values into client values and back.
//
// Domain to client conversion is memoized per (object, requested type), so
// cyclic graphs terminate and one object resolves to one proxy. Property
// expansion is driven by requested paths and runs breadth first from a
// work queue, so the work done is bounded by what was requested rather
// than by the size of the domain graph.
type Resolver struct {
	state *State
	api   service.API

	resolved map[resolutionKey]*Resolution
	byClient map[*proxy.Proxy]*Resolution
	work     *workQueue
}

func newResolver(s *State) *Resolver {
	return &Resolver{
		state:    s,
		api:      s.api,
		resolved: make(map[resolutionKey]*Resolution),
		byClient: make(map[*proxy.Proxy]*Resolution),
		work:     newWorkQueue(),
	}
}

// Resolve converts v, declared as t, into a client value and populates the
// requested property paths. Scalar properties of every proxy reached are
// always populated.
func (r *Resolver) Resolve(v any, t domain.TypeRef, refs []string) (any, error) {
	res, err := r.ResolveClientValue(v, t)
	if err != nil {
		return nil, err
	}
	r.addPathsToResolution(res, "", ExpandPropertyRefs(refs))
	if err := r.drain(); err != nil {
		return nil, err
	}
	return res.client, nil
}

func (r *Resolver) drain() error {
	for {
		res, ok := r.work.TryDequeue()
		if !ok {
			return nil
		}
		if !res.hasWork() {
			continue
		}
		p := res.client.(*proxy.Proxy)
		// takeWork clears needsSimple, so read it first.
		needsSimple := res.needsSimple
		refs := res.takeWork()
		visitor := &propertyResolver{
			resolver:    r,
			owner:       res.key.obj,
			target:      p,
			valueOwner:  p.Type().Kind == domain.ValueProxy,
			needsSimple: needsSimple,
			refs:        refs,
		}
		if err := p.Accept(visitor); err != nil {
			return err
		}
	}
}

// ResolveClientValue returns the resolution of v as a value assignable to
// t. It does not drain pending property work; use Resolve for that.
func (r *Resolver) ResolveClientValue(v any, t domain.TypeRef) (*Resolution, error) {
	v = domain.NormalizeNil(v)
	if v == nil {
		return simpleResolution(nil), nil
	}

	if t.IsCollection() || (t.Kind == domain.KindAny && isSlice(v)) {
		return r.resolveCollection(v, t)
	}

	if domain.IsScalar(v) {
		if t.IsReference() {
			return nil, fault.Reportable(fault.CodeUnsupportedType, "Unsupported domain type %T", v)
		}
		return simpleResolution(v), nil
	}

	dt, err := r.api.DomainTypeOf(v)
	if err != nil {
		return nil, err
	}
	if dt == nil || t.IsScalar() {
		return nil, fault.Reportable(fault.CodeUnsupportedType, "Unsupported domain type %T", v)
	}

	var assignableTo string
	if t.Kind == domain.KindProxy || t.Kind == domain.KindEntityID {
		assignableTo = t.Name
	}
	key := resolutionKey{obj: v, assignableTo: assignableTo}
	if prev, ok := r.resolved[key]; ok {
		return prev, nil
	}

	pt, err := r.api.ResolveClientType(dt, assignableTo, true)
	if err != nil {
		return nil, err
	}
	return r.resolveClientProxy(v, pt, key)
}

func isSlice(v any) bool {
	return reflect.TypeOf(v).Kind() == reflect.Slice
}

func (r *Resolver) resolveCollection(v any, t domain.TypeRef) (*Resolution, error) {
	elems, ok := domain.Elements(v)
	if !ok {
		return nil, fault.Reportable(fault.CodeUnsupportedType, "Unsupported collection type %T", v)
	}
	out := make([]any, 0, len(elems))
	var seen map[any]bool
	if t.Kind == domain.KindSet {
		seen = make(map[any]bool, len(elems))
	}
	for _, e := range elems {
		res, err := r.ResolveClientValue(e, t.ElemType())
		if err != nil {
			return nil, err
		}
		c := res.client
		if seen != nil && (c == nil || reflect.TypeOf(c).Comparable()) {
			if seen[c] {
				continue
			}
			seen[c] = true
		}
		out = append(out, c)
	}
	return simpleResolution(out), nil
}

// resolveClientProxy produces the proxy for a domain object, assigning or
// promoting its id as needed.
func (r *Resolver) resolveClientProxy(obj any, pt *domain.ProxyType, key resolutionKey) (*Resolution, error) {
	token, err := r.api.ResolveTypeToken(pt)
	if err != nil {
		return nil, err
	}
	isEntity := pt.Kind == domain.EntityProxy
	id := r.state.StableID(obj)

	var version any
	switch {
	case id == nil || id.IsEphemeral():
		var domainID any
		if isEntity {
			if domainID, err = r.api.GetID(obj); err != nil {
				return nil, err
			}
			if version, err = r.api.GetVersion(obj); err != nil {
				return nil, err
			}
		}
		switch {
		case id == nil && domainID == nil:
			// An unpersisted object returned by server code. Its id is only
			// valid for this response.
			id = r.state.ids.AllocateSynthetic(token)
		case id == nil:
			flat, err := r.state.Flatten(domainID)
			if err != nil {
				return nil, err
			}
			if id, err = r.state.ids.Get(token, flat, 0); err != nil {
				return nil, fault.Unexpected(fault.CodeResolve, err, "cannot address %s", pt.Name)
			}
		case domainID != nil:
			flat, err := r.state.Flatten(domainID)
			if err != nil {
				return nil, err
			}
			r.state.ids.Promote(id, flat)
			slog.Debug("promoted ephemeral id", "id", id.String(), "client_id", id.ClientID())
		}
	case isEntity:
		if version, err = r.api.GetVersion(obj); err != nil {
			return nil, err
		}
	}

	p, err := r.state.ProxyFor(id, obj)
	if err != nil {
		return nil, err
	}
	p.MarkInResponse()
	if version != nil {
		flat, err := r.state.Flatten(version)
		if err != nil {
			return nil, err
		}
		p.SetVersion(ToBase64(flat))
	}
	return r.makeResolution(key, p), nil
}

func (r *Resolver) makeResolution(key resolutionKey, p *proxy.Proxy) *Resolution {
	if res, ok := r.resolved[key]; ok {
		return res
	}
	res := proxyResolution(key, p)
	r.byClient[p] = res
	r.work.Enqueue(res)
	r.resolved[key] = res
	return res
}

// addPathsToResolution hands paths relative to prefix to res, or to the
// members of a resolved collection.
func (r *Resolver) addPathsToResolution(res *Resolution, prefix string, refs []string) {
	if len(refs) == 0 {
		return
	}
	if res.key != nil {
		res.addPaths(prefix, refs)
		if res.hasWork() {
			r.work.Enqueue(res)
		}
		return
	}
	if list, ok := res.client.([]any); ok {
		for _, e := range list {
			p, ok := e.(*proxy.Proxy)
			if !ok {
				continue
			}
			if sub, ok := r.byClient[p]; ok {
				r.addPathsToResolution(sub, prefix, refs)
			}
		}
	}
}

// ResolveDomainValue returns the domain value behind a client value.
// With detectDead set, a proxy whose domain object is gone is a
// dead-entity error.
func (r *Resolver) ResolveDomainValue(v any, detectDead bool) (any, error) {
	switch val := v.(type) {
	case *proxy.Proxy:
		obj := val.Domain()
		if obj == nil && detectDead {
			return nil, fault.DeadEntity()
		}
		return obj, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			d, err := r.ResolveDomainValue(e, detectDead)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	}
	return v, nil
}

// propertyResolver copies one level of properties from a domain object to
// its proxy. It resolves referenced values but does not descend into them;
// the sub-resolutions go on the work queue.
type propertyResolver struct {
	resolver    *Resolver
	owner       any
	target      *proxy.Proxy
	valueOwner  bool
	needsSimple bool
	refs        []string
}

func (v *propertyResolver) VisitValue(prop domain.Property, _ any) error {
	if !v.needsSimple {
		return nil
	}
	value, err := v.resolver.api.GetProperty(v.owner, prop.Name)
	if err != nil {
		return err
	}
	v.target.Set(prop.Name, domain.NormalizeNil(value))
	return nil
}

// VisitReference sends a reference when the owner is a value proxy, when
// it was requested, or when it is a collection of scalars.
func (v *propertyResolver) VisitReference(prop domain.Property, _ any) error {
	scalars := prop.Type.IsCollection() && prop.Type.ElemType().IsScalar()
	if !v.valueOwner && !scalars && !matchesPropertyRef(v.refs, prop.Name) {
		return nil
	}
	value, err := v.resolver.api.GetProperty(v.owner, prop.Name)
	if err != nil {
		return err
	}
	if domain.NormalizeNil(value) == nil {
		return nil
	}
	res, err := v.resolver.ResolveClientValue(value, prop.Type)
	if err != nil {
		return err
	}
	v.resolver.addPathsToResolution(res, prop.Name, v.refs)
	v.target.Set(prop.Name, res.client)
	return nil
}
