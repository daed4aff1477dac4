package domain

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Builder accumulates registrations and produces an immutable Table.
// Registration errors (duplicates, empty names) are collected and reported
// together by Build.
type Builder struct {
	factories       map[string]*Factory
	proxies         map[string]*ProxyType
	domains         map[string]*DomainType
	services        map[string]*Service
	contexts        map[string]*Context
	operations      map[string]*Operation
	locators        map[string]Locator
	serviceLocators map[string]ServiceLocator

	proxyOrder []string
	errs       []error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		factories:       make(map[string]*Factory),
		proxies:         make(map[string]*ProxyType),
		domains:         make(map[string]*DomainType),
		services:        make(map[string]*Service),
		contexts:        make(map[string]*Context),
		operations:      make(map[string]*Operation),
		locators:        make(map[string]Locator),
		serviceLocators: make(map[string]ServiceLocator),
	}
}

// From returns a builder pre-populated with everything in t. Building it
// produces a new Table; t itself is never modified.
func From(t *Table) *Builder {
	b := NewBuilder()
	maps.Copy(b.factories, t.factories)
	maps.Copy(b.domains, t.domains)
	maps.Copy(b.services, t.services)
	maps.Copy(b.contexts, t.contexts)
	maps.Copy(b.operations, t.operations)
	maps.Copy(b.locators, t.locators)
	maps.Copy(b.serviceLocators, t.serviceLocators)
	for _, domainName := range slices.Sorted(maps.Keys(t.clientTypes)) {
		for _, p := range t.clientTypes[domainName] {
			b.proxies[p.Name] = p
			b.proxyOrder = append(b.proxyOrder, p.Name)
		}
	}
	return b
}

func (b *Builder) fail(format string, args ...any) *Builder {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
	return b
}

// Factory registers a request factory and the contexts it uses.
func (b *Builder) Factory(token string, contexts ...string) *Builder {
	if token == "" {
		return b.fail("factory: empty token")
	}
	if _, dup := b.factories[token]; dup {
		return b.fail("factory %q: registered twice", token)
	}
	b.factories[token] = &Factory{Token: token, Contexts: slices.Clone(contexts)}
	return b
}

// Domain registers a domain type.
func (b *Builder) Domain(dt DomainType) *Builder {
	if dt.Name == "" {
		return b.fail("domain: empty name")
	}
	if _, dup := b.domains[dt.Name]; dup {
		return b.fail("domain %q: registered twice", dt.Name)
	}
	if dt.IDProperty == "" {
		dt.IDProperty = "id"
	}
	if dt.VersionProperty == "" {
		dt.VersionProperty = "version"
	}
	if dt.IDType.Kind == KindInvalid {
		dt.IDType = IntType
	}
	b.domains[dt.Name] = &dt
	return b
}

// Proxy registers a proxy type.
func (b *Builder) Proxy(pt ProxyType) *Builder {
	if pt.Name == "" {
		return b.fail("proxy: empty name")
	}
	if _, dup := b.proxies[pt.Name]; dup {
		return b.fail("proxy %q: registered twice", pt.Name)
	}
	if pt.Token == "" {
		pt.Token = pt.Name
	}
	b.proxies[pt.Name] = &pt
	b.proxyOrder = append(b.proxyOrder, pt.Name)
	return b
}

// Service registers a service.
func (b *Builder) Service(s Service) *Builder {
	if s.Name == "" {
		return b.fail("service: empty name")
	}
	if _, dup := b.services[s.Name]; dup {
		return b.fail("service %q: registered twice", s.Name)
	}
	b.services[s.Name] = &s
	return b
}

// Context registers a request context.
func (b *Builder) Context(c Context) *Builder {
	if c.Name == "" {
		return b.fail("context: empty name")
	}
	if _, dup := b.contexts[c.Name]; dup {
		return b.fail("context %q: registered twice", c.Name)
	}
	b.contexts[c.Name] = &c
	return b
}

// Operation registers a context operation. An empty token defaults to
// "Context::Method".
func (b *Builder) Operation(op Operation) *Builder {
	if op.Token == "" {
		op.Token = op.Context + "::" + op.Method
	}
	if op.Method == "" {
		return b.fail("operation %q: empty method", op.Token)
	}
	if _, dup := b.operations[op.Token]; dup {
		return b.fail("operation %q: registered twice", op.Token)
	}
	b.operations[op.Token] = &op
	return b
}

// Locator registers a named locator.
func (b *Builder) Locator(name string, l Locator) *Builder {
	if name == "" || l == nil {
		return b.fail("locator: empty name or nil locator")
	}
	b.locators[name] = l
	return b
}

// ServiceLocator registers a named service locator.
func (b *Builder) ServiceLocator(name string, l ServiceLocator) *Builder {
	if name == "" || l == nil {
		return b.fail("service locator: empty name or nil locator")
	}
	b.serviceLocators[name] = l
	return b
}

// Build validates cross references and returns the table.
func (b *Builder) Build() (*Table, error) {
	errs := slices.Clone(b.errs)

	t := &Table{
		factories:       maps.Clone(b.factories),
		proxies:         make(map[string]*ProxyType, len(b.proxies)),
		proxyNames:      maps.Clone(b.proxies),
		domains:         maps.Clone(b.domains),
		goTypes:         make(map[reflect.Type]*DomainType, len(b.domains)),
		clientTypes:     make(map[string][]*ProxyType),
		services:        maps.Clone(b.services),
		contexts:        maps.Clone(b.contexts),
		operations:      maps.Clone(b.operations),
		locators:        maps.Clone(b.locators),
		serviceLocators: maps.Clone(b.serviceLocators),
	}

	flat, inheritErrs := inherit(b.domains)
	errs = append(errs, inheritErrs...)
	t.domains = flat

	for _, name := range slices.Sorted(maps.Keys(t.domains)) {
		dt := t.domains[name]
		if dt.GoType == nil || dt.GoType.Kind() != reflect.Pointer {
			errs = append(errs, fmt.Errorf("domain %q: GoType must be a pointer type", name))
		} else if other, dup := t.goTypes[dt.GoType]; dup {
			errs = append(errs, fmt.Errorf("domain %q: GoType %s already used by %q", name, dt.GoType, other.Name))
		} else {
			t.goTypes[dt.GoType] = dt
		}
		if dt.Super != "" {
			if _, ok := t.domains[dt.Super]; !ok {
				errs = append(errs, fmt.Errorf("domain %q: unknown super %q", name, dt.Super))
			}
		}
	}

	for _, name := range b.proxyOrder {
		pt := t.proxyNames[name]
		if other, dup := t.proxies[pt.Token]; dup {
			errs = append(errs, fmt.Errorf("proxy %q: token %q already used by %q", name, pt.Token, other.Name))
			continue
		}
		t.proxies[pt.Token] = pt
		if _, ok := t.domains[pt.Domain]; !ok {
			errs = append(errs, fmt.Errorf("proxy %q: unknown domain type %q", name, pt.Domain))
		}
		if pt.Locator != "" {
			if _, ok := t.locators[pt.Locator]; !ok {
				errs = append(errs, fmt.Errorf("proxy %q: unknown locator %q", name, pt.Locator))
			}
		}
		for _, super := range pt.Supers {
			if _, ok := t.proxyNames[super]; !ok {
				errs = append(errs, fmt.Errorf("proxy %q: unknown super %q", name, super))
			}
		}
		for _, prop := range pt.Properties {
			if err := checkTypeRef(t, prop.Type); err != nil {
				errs = append(errs, fmt.Errorf("proxy %q property %q: %w", name, prop.Name, err))
			}
		}
		t.clientTypes[pt.Domain] = append(t.clientTypes[pt.Domain], pt)
	}
	errs = append(errs, checkSuperCycles(t)...)

	for _, name := range slices.Sorted(maps.Keys(t.contexts)) {
		c := t.contexts[name]
		if _, ok := t.services[c.Service]; !ok {
			errs = append(errs, fmt.Errorf("context %q: unknown service %q", name, c.Service))
		}
		if c.ServiceLocator != "" {
			if _, ok := t.serviceLocators[c.ServiceLocator]; !ok {
				errs = append(errs, fmt.Errorf("context %q: unknown service locator %q", name, c.ServiceLocator))
			}
		}
	}

	for _, token := range slices.Sorted(maps.Keys(t.operations)) {
		if err := checkOperation(t, t.operations[token]); err != nil {
			errs = append(errs, fmt.Errorf("operation %q: %w", token, err))
		}
	}

	for _, token := range slices.Sorted(maps.Keys(t.factories)) {
		for _, c := range t.factories[token].Contexts {
			if _, ok := t.contexts[c]; !ok {
				errs = append(errs, fmt.Errorf("factory %q: unknown context %q", token, c))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

func checkTypeRef(t *Table, ref TypeRef) error {
	switch ref.Kind {
	case KindInvalid:
		return fmt.Errorf("missing type")
	case KindProxy:
		if _, ok := t.proxyNames[ref.Name]; !ok {
			return fmt.Errorf("unknown proxy %q", ref.Name)
		}
	case KindEntityID:
		if ref.Name != "" {
			if _, ok := t.proxyNames[ref.Name]; !ok {
				return fmt.Errorf("unknown proxy %q", ref.Name)
			}
		}
	case KindList, KindSet:
		return checkTypeRef(t, ref.ElemType())
	}
	return nil
}

func checkOperation(t *Table, op *Operation) error {
	c, ok := t.contexts[op.Context]
	if !ok {
		return fmt.Errorf("unknown context %q", op.Context)
	}
	for i, p := range op.Params {
		if err := checkTypeRef(t, p); err != nil {
			return fmt.Errorf("param %d: %w", i, err)
		}
	}
	if op.Return.Kind != KindInvalid {
		if err := checkTypeRef(t, op.Return); err != nil {
			return fmt.Errorf("return: %w", err)
		}
	}
	if op.Instance {
		pt, ok := t.proxyNames[op.Receiver]
		if !ok {
			return fmt.Errorf("unknown receiver proxy %q", op.Receiver)
		}
		dt, ok := t.domains[pt.Domain]
		if !ok {
			return fmt.Errorf("receiver %q has unknown domain type", op.Receiver)
		}
		if _, ok := dt.Methods[op.Method]; !ok {
			return fmt.Errorf("domain type %q has no method %q", dt.Name, op.Method)
		}
		return nil
	}
	svc, ok := t.services[c.Service]
	if !ok {
		return fmt.Errorf("context %q has unknown service", c.Name)
	}
	if _, ok := svc.Methods[op.Method]; !ok {
		return fmt.Errorf("service %q has no method %q", svc.Name, op.Method)
	}
	return nil
}

func checkSuperCycles(t *Table) []error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(t.proxyNames)) {
		for _, s := range t.proxyNames[name].Supers {
			if reaches(t, s, name, map[string]bool{}) {
				errs = append(errs, fmt.Errorf("proxy %q: cyclic supers", name))
				break
			}
		}
	}
	return errs
}

func reaches(t *Table, from, target string, seen map[string]bool) bool {
	if from == target {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	p, ok := t.proxyNames[from]
	if !ok {
		return false
	}
	for _, s := range p.Supers {
		if reaches(t, s, target, seen) {
			return true
		}
	}
	return false
}

// inherit returns copies of the domain types with properties, methods and
// the finder of their supertypes merged in. A subtype's own entries win.
func inherit(domains map[string]*DomainType) (map[string]*DomainType, []error) {
	var errs []error
	out := make(map[string]*DomainType, len(domains))
	for _, name := range slices.Sorted(maps.Keys(domains)) {
		var chain []*DomainType
		seen := map[string]bool{}
		for cur := domains[name]; cur != nil; cur = domains[cur.Super] {
			if seen[cur.Name] {
				errs = append(errs, fmt.Errorf("domain %q: cyclic supers", name))
				chain = chain[:1]
				break
			}
			seen[cur.Name] = true
			chain = append(chain, cur)
			if cur.Super == "" {
				break
			}
		}

		merged := *domains[name]
		merged.Properties = make(map[string]Accessor)
		merged.Methods = make(map[string]*Method)
		for i := len(chain) - 1; i >= 0; i-- {
			maps.Copy(merged.Properties, chain[i].Properties)
			maps.Copy(merged.Methods, chain[i].Methods)
			if chain[i].Find != nil {
				merged.Find = chain[i].Find
			}
		}
		out[name] = &merged
	}
	return out, errs
}
