// Package service mediates every interaction between the request processor
// and the domain environment.
//
// The API is served by a chain of layers. Each layer embeds Decorator,
// overrides the methods it handles and inherits delegation to the next layer
// for the rest. Calls a layer makes against the full API go through Top, so
// a layer closer to the caller (including user decorators) can override
// behavior built into a deeper one.
//
// The chain, outermost first:
//
//	cache -> user decorators -> locator -> default -> find -> resolver
//
// The cache memoizes idempotent lookups and is shared by all requests;
// every layer must therefore be safe for concurrent use.
package service

import (
	"github.com/roach88/rfsync/internal/domain"
)

// API is the accessor contract the processor consumes.
type API interface {
	// CreateDomainObject returns a new instance of the domain type.
	CreateDomainObject(dt *domain.DomainType) (any, error)

	// CreateServiceInstance returns the receiver for non-static service
	// methods of the context.
	CreateServiceInstance(c *domain.Context) (any, error)

	// GetID returns the persistent id of obj, or nil if it has none.
	GetID(obj any) (any, error)

	// GetIDType returns the declared type of the domain type's ids.
	GetIDType(dt *domain.DomainType) (domain.TypeRef, error)

	GetProperty(obj any, name string) (any, error)
	SetProperty(obj any, name string, expected domain.TypeRef, value any) error

	// GetVersion returns the version of obj, or nil if it has none.
	GetVersion(obj any) (any, error)

	// GetRequestReturnType returns the declared return type of an operation.
	GetRequestReturnType(op *domain.Operation) (domain.TypeRef, error)

	// Invoke calls m. For non-static methods args[0] is the receiver.
	Invoke(m *domain.Method, args []any) (any, error)

	// IsLive reports whether obj can still be loaded from the backing store.
	IsLive(obj any) (bool, error)

	// LoadDomainObject returns the object with the given id, or nil.
	LoadDomainObject(dt *domain.DomainType, id any) (any, error)

	// LoadDomainObjects returns one slot per requested id, in order. Slots
	// for objects that cannot be loaded are nil.
	LoadDomainObjects(dts []*domain.DomainType, ids []any) ([]any, error)

	// RequiresServiceLocator reports whether m needs a service instance as
	// its receiver when invoked for op.
	RequiresServiceLocator(op *domain.Operation, m *domain.Method) (bool, error)

	// ResolveClientType returns the proxy type used to send instances of dt
	// that is assignable to the named proxy ("" accepts any). A missing
	// mapping returns nil, or an error when required is set.
	ResolveClientType(dt *domain.DomainType, assignableTo string, required bool) (*domain.ProxyType, error)

	// ResolveDomainType returns the domain type backing a proxy type.
	ResolveDomainType(pt *domain.ProxyType) (*domain.DomainType, error)

	// DomainTypeOf returns the domain type of an instance, or nil if obj is
	// not a registered domain object.
	DomainTypeOf(obj any) (*domain.DomainType, error)

	ResolveDomainMethod(op string) (*domain.Method, error)

	// ResolveLocator returns the locator for dt, or nil if dt follows the
	// default id/version/find convention.
	ResolveLocator(dt *domain.DomainType) (domain.Locator, error)

	ResolveProxyType(token string) (*domain.ProxyType, error)
	ResolveRequestContext(op string) (*domain.Context, error)
	ResolveRequestContextMethod(op string) (*domain.Operation, error)
	ResolveRequestFactory(token string) (*domain.Factory, error)

	// ResolveService returns the service backing a request context.
	ResolveService(c *domain.Context) (*domain.Service, error)

	// ResolveServiceLocator returns the context's service locator, or nil.
	ResolveServiceLocator(c *domain.Context) (domain.ServiceLocator, error)

	ResolveTypeToken(pt *domain.ProxyType) (string, error)

	// Validate returns the violations of obj. No validator means no
	// violations.
	Validate(obj any) ([]domain.Violation, error)
}

// Layer is one link of the chain. Implement it by embedding Decorator.
type Layer interface {
	API
	decorator() *Decorator
}
