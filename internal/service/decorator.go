package service

import (
	"log/slog"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
)

// Decorator delegates every call to the next layer. Embed it to build a
// layer and override only the methods the layer handles.
type Decorator struct {
	next API
	top  API
}

func (d *Decorator) decorator() *Decorator { return d }

// Next returns the next deeper layer.
func (d *Decorator) Next() API {
	if d.next == nil {
		return terminal{}
	}
	return d.next
}

// Top returns the outermost layer. Layers call the public API through Top
// so that overrides closer to the caller still apply.
func (d *Decorator) Top() API {
	if d.top == nil {
		return terminal{}
	}
	return d.top
}

// Die logs full diagnostic detail and returns an UnexpectedError. The
// detail never reaches the client.
func (d *Decorator) Die(code fault.Code, cause error, format string, args ...any) error {
	err := fault.Unexpected(code, cause, format, args...)
	slog.Error("service layer failure",
		"code", string(code),
		"message", err.Message,
		"error", cause,
	)
	return err
}

// Report returns a ReportableError whose message is sent to the client.
func (d *Decorator) Report(code fault.Code, format string, args ...any) error {
	return fault.Reportable(code, format, args...)
}

func (d *Decorator) CreateDomainObject(dt *domain.DomainType) (any, error) {
	return d.Next().CreateDomainObject(dt)
}

func (d *Decorator) CreateServiceInstance(c *domain.Context) (any, error) {
	return d.Next().CreateServiceInstance(c)
}

func (d *Decorator) GetID(obj any) (any, error) {
	return d.Next().GetID(obj)
}

func (d *Decorator) GetIDType(dt *domain.DomainType) (domain.TypeRef, error) {
	return d.Next().GetIDType(dt)
}

func (d *Decorator) GetProperty(obj any, name string) (any, error) {
	return d.Next().GetProperty(obj, name)
}

func (d *Decorator) SetProperty(obj any, name string, expected domain.TypeRef, value any) error {
	return d.Next().SetProperty(obj, name, expected, value)
}

func (d *Decorator) GetVersion(obj any) (any, error) {
	return d.Next().GetVersion(obj)
}

func (d *Decorator) GetRequestReturnType(op *domain.Operation) (domain.TypeRef, error) {
	return d.Next().GetRequestReturnType(op)
}

func (d *Decorator) Invoke(m *domain.Method, args []any) (any, error) {
	return d.Next().Invoke(m, args)
}

func (d *Decorator) IsLive(obj any) (bool, error) {
	return d.Next().IsLive(obj)
}

func (d *Decorator) LoadDomainObject(dt *domain.DomainType, id any) (any, error) {
	return d.Next().LoadDomainObject(dt, id)
}

func (d *Decorator) LoadDomainObjects(dts []*domain.DomainType, ids []any) ([]any, error) {
	return d.Next().LoadDomainObjects(dts, ids)
}

func (d *Decorator) RequiresServiceLocator(op *domain.Operation, m *domain.Method) (bool, error) {
	return d.Next().RequiresServiceLocator(op, m)
}

func (d *Decorator) ResolveClientType(dt *domain.DomainType, assignableTo string, required bool) (*domain.ProxyType, error) {
	return d.Next().ResolveClientType(dt, assignableTo, required)
}

func (d *Decorator) ResolveDomainType(pt *domain.ProxyType) (*domain.DomainType, error) {
	return d.Next().ResolveDomainType(pt)
}

func (d *Decorator) DomainTypeOf(obj any) (*domain.DomainType, error) {
	return d.Next().DomainTypeOf(obj)
}

func (d *Decorator) ResolveDomainMethod(op string) (*domain.Method, error) {
	return d.Next().ResolveDomainMethod(op)
}

func (d *Decorator) ResolveLocator(dt *domain.DomainType) (domain.Locator, error) {
	return d.Next().ResolveLocator(dt)
}

func (d *Decorator) ResolveProxyType(token string) (*domain.ProxyType, error) {
	return d.Next().ResolveProxyType(token)
}

func (d *Decorator) ResolveRequestContext(op string) (*domain.Context, error) {
	return d.Next().ResolveRequestContext(op)
}

func (d *Decorator) ResolveRequestContextMethod(op string) (*domain.Operation, error) {
	return d.Next().ResolveRequestContextMethod(op)
}

func (d *Decorator) ResolveRequestFactory(token string) (*domain.Factory, error) {
	return d.Next().ResolveRequestFactory(token)
}

func (d *Decorator) ResolveService(c *domain.Context) (*domain.Service, error) {
	return d.Next().ResolveService(c)
}

func (d *Decorator) ResolveServiceLocator(c *domain.Context) (domain.ServiceLocator, error) {
	return d.Next().ResolveServiceLocator(c)
}

func (d *Decorator) ResolveTypeToken(pt *domain.ProxyType) (string, error) {
	return d.Next().ResolveTypeToken(pt)
}

func (d *Decorator) Validate(obj any) ([]domain.Violation, error) {
	return d.Next().Validate(obj)
}

// terminal sits below the deepest layer. Reaching it means no layer
// implements the call.
type terminal struct{}

func missing(method string) error {
	return fault.Unexpected(fault.CodeAccessor, nil, "no service layer implements %s", method)
}

func (terminal) CreateDomainObject(*domain.DomainType) (any, error) {
	return nil, missing("CreateDomainObject")
}

func (terminal) CreateServiceInstance(*domain.Context) (any, error) {
	return nil, missing("CreateServiceInstance")
}

func (terminal) GetID(any) (any, error) { return nil, missing("GetID") }

func (terminal) GetIDType(*domain.DomainType) (domain.TypeRef, error) {
	return domain.TypeRef{}, missing("GetIDType")
}

func (terminal) GetProperty(any, string) (any, error) { return nil, missing("GetProperty") }

func (terminal) SetProperty(any, string, domain.TypeRef, any) error {
	return missing("SetProperty")
}

func (terminal) GetVersion(any) (any, error) { return nil, missing("GetVersion") }

func (terminal) GetRequestReturnType(*domain.Operation) (domain.TypeRef, error) {
	return domain.TypeRef{}, missing("GetRequestReturnType")
}

func (terminal) Invoke(*domain.Method, []any) (any, error) { return nil, missing("Invoke") }

func (terminal) IsLive(any) (bool, error) { return false, missing("IsLive") }

func (terminal) LoadDomainObject(*domain.DomainType, any) (any, error) {
	return nil, missing("LoadDomainObject")
}

func (terminal) LoadDomainObjects([]*domain.DomainType, []any) ([]any, error) {
	return nil, missing("LoadDomainObjects")
}

func (terminal) RequiresServiceLocator(*domain.Operation, *domain.Method) (bool, error) {
	return false, missing("RequiresServiceLocator")
}

func (terminal) ResolveClientType(*domain.DomainType, string, bool) (*domain.ProxyType, error) {
	return nil, missing("ResolveClientType")
}

func (terminal) ResolveDomainType(*domain.ProxyType) (*domain.DomainType, error) {
	return nil, missing("ResolveDomainType")
}

func (terminal) DomainTypeOf(any) (*domain.DomainType, error) {
	return nil, missing("DomainTypeOf")
}

func (terminal) ResolveDomainMethod(string) (*domain.Method, error) {
	return nil, missing("ResolveDomainMethod")
}

func (terminal) ResolveLocator(*domain.DomainType) (domain.Locator, error) {
	return nil, missing("ResolveLocator")
}

func (terminal) ResolveProxyType(string) (*domain.ProxyType, error) {
	return nil, missing("ResolveProxyType")
}

func (terminal) ResolveRequestContext(string) (*domain.Context, error) {
	return nil, missing("ResolveRequestContext")
}

func (terminal) ResolveRequestContextMethod(string) (*domain.Operation, error) {
	return nil, missing("ResolveRequestContextMethod")
}

func (terminal) ResolveRequestFactory(string) (*domain.Factory, error) {
	return nil, missing("ResolveRequestFactory")
}

func (terminal) ResolveService(*domain.Context) (*domain.Service, error) {
	return nil, missing("ResolveService")
}

func (terminal) ResolveServiceLocator(*domain.Context) (domain.ServiceLocator, error) {
	return nil, missing("ResolveServiceLocator")
}

func (terminal) ResolveTypeToken(*domain.ProxyType) (string, error) {
	return "", missing("ResolveTypeToken")
}

func (terminal) Validate(any) ([]domain.Violation, error) { return nil, missing("Validate") }

var _ API = terminal{}

