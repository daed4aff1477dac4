// Package proxy holds the client-facing copies of domain objects built
// during one exchange.
//
// A Proxy is a property bag shaped by its domain.ProxyType. Besides its
// values it carries three request-scoped tags: the backing domain object
// (nil once the object is gone), whether it belongs to the outbound
// response graph, and the last version the client is known to hold.
package proxy

import (
	"fmt"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/ids"
)

// Proxy is one client-visible object. Values are client values: scalars,
// *Proxy references and []any collections.
type Proxy struct {
	id     *ids.ID
	typ    *domain.ProxyType
	domain any

	inResponse bool
	version    string

	values map[string]any
}

// New returns a proxy of type typ for id, tracking obj.
func New(id *ids.ID, typ *domain.ProxyType, obj any) *Proxy {
	return &Proxy{
		id:     id,
		typ:    typ,
		domain: domain.NormalizeNil(obj),
		values: make(map[string]any),
	}
}

// ID returns the proxy's id. The id may be promoted in place during the
// exchange.
func (p *Proxy) ID() *ids.ID { return p.id }

// Type returns the proxy type.
func (p *Proxy) Type() *domain.ProxyType { return p.typ }

// IsEntity reports whether the proxy carries identity.
func (p *Proxy) IsEntity() bool { return p.typ.Kind == domain.EntityProxy }

// Domain returns the backing domain object, or nil if there is none.
func (p *Proxy) Domain() any { return p.domain }

// InResponse reports whether the proxy is part of the response graph.
func (p *Proxy) InResponse() bool { return p.inResponse }

// MarkInResponse adds the proxy to the response graph.
func (p *Proxy) MarkInResponse() { p.inResponse = true }

// Version returns the base64 version tag, or "" if none is known.
func (p *Proxy) Version() string { return p.version }

// SetVersion replaces the version tag.
func (p *Proxy) SetVersion(v string) { p.version = v }

// Get returns a property value.
func (p *Proxy) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Set stores a property value. Setting nil removes the property.
func (p *Proxy) Set(name string, v any) {
	if v == nil {
		delete(p.values, name)
		return
	}
	p.values[name] = v
}

// Value is one set property.
type Value struct {
	domain.Property
	Value any
}

// Values returns the set properties in declaration order.
func (p *Proxy) Values() []Value {
	out := make([]Value, 0, len(p.values))
	for _, prop := range p.typ.Properties {
		if v, ok := p.values[prop.Name]; ok {
			out = append(out, Value{Property: prop, Value: v})
		}
	}
	return out
}

func (p *Proxy) String() string {
	return fmt.Sprintf("%s(%s)", p.typ.Name, p.id)
}
