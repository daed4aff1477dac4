// Package domain describes the server's domain model and how the client's
// proxy types, request contexts and operations map onto it.
//
// Everything is registered explicitly through a Builder; nothing is
// discovered by reflection. A built Table is immutable and safe to share
// between goroutines. To change the mapping, start a new Builder from the
// existing table with From and build a new Table.
package domain

import (
	"reflect"
	"slices"
	"strings"
)

// ProxyKind distinguishes identity-bearing proxies from value copies.
type ProxyKind int

const (
	EntityProxy ProxyKind = iota
	ValueProxy
)

func (k ProxyKind) String() string {
	if k == ValueProxy {
		return "value"
	}
	return "entity"
}

// Property is a client-visible property of a proxy type.
type Property struct {
	Name string
	Type TypeRef
}

// ProxyType is a client view of a domain type.
type ProxyType struct {
	// Token identifies the type on the wire. Defaults to Name.
	Token string

	// Name is how TypeRefs refer to this proxy.
	Name string

	Kind ProxyKind

	// Domain is the backing domain type name.
	Domain string

	// Locator names a registered Locator; empty uses the domain type's own
	// finder and id/version properties.
	Locator string

	// Supers lists proxy names this type is also assignable to.
	Supers []string

	// Properties in the order they are visited and sent.
	Properties []Property
}

// Property returns the named property.
func (p *ProxyType) Property(name string) (Property, bool) {
	for _, prop := range p.Properties {
		if prop.Name == name {
			return prop, true
		}
	}
	return Property{}, false
}

// Method is a callable domain or service method.
// For non-static methods Invoke receives the instance as receiver.
type Method struct {
	Name   string
	Static bool
	Params []TypeRef
	Return TypeRef
	Invoke func(receiver any, args []any) (any, error)
}

// DomainType is a server-side type.
type DomainType struct {
	Name string

	// Super names the parent domain type, if any. Build merges the
	// parent's properties, methods and finder into the subtype.
	Super string

	// GoType is the pointer type of instances.
	GoType reflect.Type

	// New constructs an empty instance; nil if the type cannot be
	// default-constructed.
	New func() any

	Properties map[string]Accessor

	// Methods are invoked by instance operations.
	Methods map[string]*Method

	// Find loads an instance by id, returning nil when absent.
	Find *Method

	// IDType is the declared type of the id property.
	IDType TypeRef

	// IDProperty and VersionProperty default to "id" and "version".
	IDProperty      string
	VersionProperty string
}

// Service groups static and service-instance methods behind a request context.
type Service struct {
	Name string

	// New constructs the service instance; nil requires a service locator
	// for non-static methods.
	New func() any

	Methods map[string]*Method
}

// Context is a client request context, backed by one service.
type Context struct {
	Name           string
	Service        string
	ServiceLocator string
}

// Operation is one client-visible method of a request context.
type Operation struct {
	// Token identifies the operation on the wire.
	Token string

	Context string

	// Method names the domain method: on the service, or on the receiver's
	// domain type for instance operations.
	Method string

	// Instance operations take the receiver proxy as parameter 0.
	Instance bool
	Receiver string

	Params []TypeRef
	Return TypeRef
}

// Factory is a request factory: the set of contexts one client build uses.
type Factory struct {
	Token    string
	Contexts []string
}

// Locator stands in for domain types that do not follow the default
// id/version/find convention.
type Locator interface {
	Create(dt *DomainType) (any, error)
	Find(dt *DomainType, id any) (any, error)
	ID(obj any) (any, error)
	IDType(dt *DomainType) TypeRef
	Version(obj any) (any, error)
	IsLive(obj any) (bool, error)
}

// ServiceLocator produces service instances for services that cannot be
// default-constructed.
type ServiceLocator interface {
	Instance(svc *Service) (any, error)
}

// Violation is one failed constraint reported by a Validator.
type Violation struct {
	Message  string
	Template string
	Path     string

	// Leaf is the domain object the violation is about, if other than the
	// validated root.
	Leaf any
}

// Validator checks a domain object.
type Validator interface {
	Validate(obj any) ([]Violation, error)
}

// Table is an immutable mapping of the domain model.
type Table struct {
	factories       map[string]*Factory
	proxies         map[string]*ProxyType
	proxyNames      map[string]*ProxyType
	domains         map[string]*DomainType
	goTypes         map[reflect.Type]*DomainType
	clientTypes     map[string][]*ProxyType
	services        map[string]*Service
	contexts        map[string]*Context
	operations      map[string]*Operation
	locators        map[string]Locator
	serviceLocators map[string]ServiceLocator
}

// Factory returns the request factory with the given token.
func (t *Table) Factory(token string) (*Factory, bool) {
	f, ok := t.factories[token]
	return f, ok
}

// ProxyByToken returns the proxy type with the given wire token.
func (t *Table) ProxyByToken(token string) (*ProxyType, bool) {
	p, ok := t.proxies[token]
	return p, ok
}

// Proxy returns the proxy type with the given name.
func (t *Table) Proxy(name string) (*ProxyType, bool) {
	p, ok := t.proxyNames[name]
	return p, ok
}

// Domain returns the domain type with the given name.
func (t *Table) Domain(name string) (*DomainType, bool) {
	d, ok := t.domains[name]
	return d, ok
}

// DomainOf returns the domain type of an instance.
func (t *Table) DomainOf(obj any) (*DomainType, bool) {
	if obj == nil {
		return nil, false
	}
	d, ok := t.goTypes[reflect.TypeOf(obj)]
	return d, ok
}

// ClientTypes returns the proxy types backed by the named domain type, in
// registration order.
func (t *Table) ClientTypes(domainName string) []*ProxyType {
	return t.clientTypes[domainName]
}

// Service returns the named service.
func (t *Table) Service(name string) (*Service, bool) {
	s, ok := t.services[name]
	return s, ok
}

// Context returns the named request context.
func (t *Table) Context(name string) (*Context, bool) {
	c, ok := t.contexts[name]
	return c, ok
}

// Operation returns the operation with the given token.
func (t *Table) Operation(token string) (*Operation, bool) {
	op, ok := t.operations[token]
	return op, ok
}

// Locator returns the named locator.
func (t *Table) Locator(name string) (Locator, bool) {
	l, ok := t.locators[name]
	return l, ok
}

// ServiceLocator returns the named service locator.
func (t *Table) ServiceLocator(name string) (ServiceLocator, bool) {
	l, ok := t.serviceLocators[name]
	return l, ok
}

// Assignable reports whether proxy type p may be used where a proxy named
// to is expected. An empty name accepts any proxy.
func (t *Table) Assignable(p *ProxyType, to string) bool {
	if to == "" || p.Name == to {
		return true
	}
	for _, super := range p.Supers {
		if sp, ok := t.proxyNames[super]; ok && t.Assignable(sp, to) {
			return true
		}
	}
	return false
}

// Proxies returns all proxy types sorted by name.
func (t *Table) Proxies() []*ProxyType {
	out := make([]*ProxyType, 0, len(t.proxyNames))
	for _, p := range t.proxyNames {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *ProxyType) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Operations returns all operations sorted by token.
func (t *Table) Operations() []*Operation {
	out := make([]*Operation, 0, len(t.operations))
	for _, op := range t.operations {
		out = append(out, op)
	}
	slices.SortFunc(out, func(a, b *Operation) int { return strings.Compare(a.Token, b.Token) })
	return out
}
