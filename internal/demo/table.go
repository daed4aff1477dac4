// Package demo is a small address book served through the request
// processor. People are stored in SQLite through store.Locator, validated
// against embedded CUE constraints and reached through one request
// factory.
package demo

import (
	"embed"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/store"
	"github.com/roach88/rfsync/internal/validation"
)

// Wire names.
const (
	Factory       = "AddressBookFactory"
	PersonRequest = "PersonRequest"
	PersonKind    = "Person"
	PersonToken   = "Person"
	AddressToken  = "Address"
)

//go:embed schemas/*.cue
var schemas embed.FS

// PersonService serves the non-static PersonRequest operations. It is
// produced per request by the context's service locator.
type PersonService struct {
	loc *store.Locator
	dt  *domain.DomainType
}

func (s *PersonService) all() ([]*Person, error) {
	objs, err := s.loc.List(s.dt)
	if err != nil {
		return nil, err
	}
	out := make([]*Person, len(objs))
	for i, o := range objs {
		out[i] = o.(*Person)
	}
	return out, nil
}

type serviceLocator struct {
	loc   *store.Locator
	table func() *domain.Table
}

func (l *serviceLocator) Instance(svc *domain.Service) (any, error) {
	if svc.Name != "PersonService" {
		return nil, fmt.Errorf("no instance for service %s", svc.Name)
	}
	dt, ok := l.table().Domain(PersonKind)
	if !ok {
		return nil, fmt.Errorf("domain type %s is not registered", PersonKind)
	}
	return &PersonService{loc: l.loc, dt: dt}, nil
}

// NewTable builds the address book's type mapping over loc.
func NewTable(loc *store.Locator) (*domain.Table, error) {
	person := domain.ProxyOf("PersonProxy")
	address := domain.ProxyOf("AddressProxy")
	people := domain.ListOf(person)

	var table *domain.Table
	sl := &serviceLocator{loc: loc, table: func() *domain.Table { return table }}

	persist := &domain.Method{Name: "persist", Return: domain.VoidType,
		Invoke: func(receiver any, _ []any) (any, error) {
			return nil, loc.Save(receiver.(*Person))
		}}
	remove := &domain.Method{Name: "remove", Return: domain.VoidType,
		Invoke: func(receiver any, _ []any) (any, error) {
			return nil, loc.Delete(receiver.(*Person))
		}}

	service := func(fn func(s *PersonService, args []any) (any, error)) func(any, []any) (any, error) {
		return func(receiver any, args []any) (any, error) {
			s, ok := receiver.(*PersonService)
			if !ok {
				return nil, fmt.Errorf("receiver %T is not a PersonService", receiver)
			}
			return fn(s, args)
		}
	}

	built, err := domain.NewBuilder().
		Domain(domain.DomainType{
			Name:   PersonKind,
			GoType: reflect.TypeFor[*Person](),
			New:    func() any { return &Person{} },
			Properties: map[string]domain.Accessor{
				"id":      domain.NonZero(domain.IntType, func(p *Person) int64 { return p.ID }),
				"version": domain.NonZero(domain.IntType, func(p *Person) int64 { return p.Version }),
				"name":    domain.Field(domain.StringType, func(p *Person) string { return p.Name }, func(p *Person, v string) { p.Name = v }),
				"email":   domain.Field(domain.StringType, func(p *Person) string { return p.Email }, func(p *Person, v string) { p.Email = v }),
				"phones":  domain.Field(domain.ListOf(domain.StringType), func(p *Person) []string { return p.Phones }, func(p *Person, v []string) { p.Phones = v }),
				"address": domain.Field(address, func(p *Person) *Address { return p.Address }, func(p *Person, v *Address) { p.Address = v }),
			},
			Methods: map[string]*domain.Method{"persist": persist, "remove": remove},
		}).
		Domain(domain.DomainType{
			Name:   "Address",
			GoType: reflect.TypeFor[*Address](),
			New:    func() any { return &Address{} },
			Properties: map[string]domain.Accessor{
				"street": domain.Field(domain.StringType, func(a *Address) string { return a.Street }, func(a *Address, v string) { a.Street = v }),
				"city":   domain.Field(domain.StringType, func(a *Address) string { return a.City }, func(a *Address, v string) { a.City = v }),
				"zip":    domain.Field(domain.StringType, func(a *Address) string { return a.Zip }, func(a *Address, v string) { a.Zip = v }),
			},
		}).
		Locator("sqlite", loc).
		ServiceLocator("people", sl).
		Proxy(domain.ProxyType{Token: PersonToken, Name: "PersonProxy", Domain: PersonKind, Locator: "sqlite", Properties: []domain.Property{
			{Name: "name", Type: domain.StringType},
			{Name: "email", Type: domain.StringType},
			{Name: "phones", Type: domain.ListOf(domain.StringType)},
			{Name: "address", Type: address},
		}}).
		Proxy(domain.ProxyType{Token: AddressToken, Name: "AddressProxy", Domain: "Address", Kind: domain.ValueProxy, Properties: []domain.Property{
			{Name: "street", Type: domain.StringType},
			{Name: "city", Type: domain.StringType},
			{Name: "zip", Type: domain.StringType},
		}}).
		Service(domain.Service{
			Name: "PersonService",
			Methods: map[string]*domain.Method{
				"all": {Name: "all", Return: people,
					Invoke: service(func(s *PersonService, _ []any) (any, error) {
						return s.all()
					})},
				"inCity": {Name: "inCity", Params: []domain.TypeRef{domain.StringType}, Return: people,
					Invoke: service(func(s *PersonService, args []any) (any, error) {
						city, _ := args[0].(string)
						all, err := s.all()
						if err != nil {
							return nil, err
						}
						return slices.DeleteFunc(all, func(p *Person) bool {
							return p.Address == nil || !strings.EqualFold(p.Address.City, city)
						}), nil
					})},
				"count": {Name: "count", Return: domain.IntType,
					Invoke: service(func(s *PersonService, _ []any) (any, error) {
						all, err := s.all()
						return len(all), err
					})},
				"draft": {Name: "draft", Params: []domain.TypeRef{domain.StringType}, Return: person,
					Invoke: service(func(_ *PersonService, args []any) (any, error) {
						name, _ := args[0].(string)
						return &Person{Name: name}, nil
					})},
			},
		}).
		Context(domain.Context{Name: PersonRequest, Service: "PersonService", ServiceLocator: "people"}).
		Operation(domain.Operation{Context: PersonRequest, Method: "all", Return: people}).
		Operation(domain.Operation{Context: PersonRequest, Method: "inCity", Params: []domain.TypeRef{domain.StringType}, Return: people}).
		Operation(domain.Operation{Context: PersonRequest, Method: "count", Return: domain.IntType}).
		Operation(domain.Operation{Context: PersonRequest, Method: "draft", Params: []domain.TypeRef{domain.StringType}, Return: person}).
		Operation(domain.Operation{Context: PersonRequest, Method: "persist", Instance: true, Receiver: "PersonProxy", Return: domain.VoidType}).
		Operation(domain.Operation{Context: PersonRequest, Method: "remove", Instance: true, Receiver: "PersonProxy", Return: domain.VoidType}).
		Factory(Factory, PersonRequest).
		Build()
	if err != nil {
		return nil, fmt.Errorf("address book table: %w", err)
	}
	table = built
	return table, nil
}

// NewValidator compiles the embedded constraints for table.
func NewValidator(table *domain.Table) (*validation.Validator, error) {
	sources, err := validation.LoadFS(schemas, "schemas")
	if err != nil {
		return nil, err
	}
	return validation.New(table, sources)
}
