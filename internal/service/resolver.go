package service

import (
	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
)

// resolverLayer answers every type, token and method mapping question from
// an immutable Table.
type resolverLayer struct {
	Decorator
	table *domain.Table
}

func (l *resolverLayer) ResolveProxyType(token string) (*domain.ProxyType, error) {
	pt, ok := l.table.ProxyByToken(token)
	if !ok {
		return nil, l.Die(fault.CodeResolve, nil, "no type for token %s", token)
	}
	return pt, nil
}

func (l *resolverLayer) ResolveTypeToken(pt *domain.ProxyType) (string, error) {
	return pt.Token, nil
}

func (l *resolverLayer) ResolveClientType(dt *domain.DomainType, assignableTo string, required bool) (*domain.ProxyType, error) {
	seen := map[string]bool{}
	for cur := dt; cur != nil && !seen[cur.Name]; {
		seen[cur.Name] = true
		for _, pt := range l.table.ClientTypes(cur.Name) {
			if l.table.Assignable(pt, assignableTo) {
				return pt, nil
			}
		}
		if cur.Super == "" {
			break
		}
		cur, _ = l.table.Domain(cur.Super)
	}
	if required {
		return nil, l.Die(fault.CodeResolve, nil, "the domain type %s cannot be sent to the client", dt.Name)
	}
	return nil, nil
}

func (l *resolverLayer) ResolveDomainType(pt *domain.ProxyType) (*domain.DomainType, error) {
	dt, ok := l.table.Domain(pt.Domain)
	if !ok {
		return nil, l.Die(fault.CodeResolve, nil, "could not resolve a domain type for client type %s", pt.Name)
	}
	return dt, nil
}

func (l *resolverLayer) DomainTypeOf(obj any) (*domain.DomainType, error) {
	dt, _ := l.table.DomainOf(obj)
	return dt, nil
}

func (l *resolverLayer) ResolveDomainMethod(op string) (*domain.Method, error) {
	operation, err := l.Top().ResolveRequestContextMethod(op)
	if err != nil {
		return nil, err
	}
	if operation.Instance {
		receiver, ok := l.table.Proxy(operation.Receiver)
		if !ok {
			return nil, l.Die(fault.CodeResolve, nil, "operation %s has unknown receiver %s", op, operation.Receiver)
		}
		dt, err := l.Top().ResolveDomainType(receiver)
		if err != nil {
			return nil, err
		}
		m, ok := dt.Methods[operation.Method]
		if !ok {
			return nil, l.Die(fault.CodeResolve, nil, "domain type %s has no method %s for operation %s", dt.Name, operation.Method, op)
		}
		return m, nil
	}

	c, err := l.Top().ResolveRequestContext(op)
	if err != nil {
		return nil, err
	}
	svc, err := l.Top().ResolveService(c)
	if err != nil {
		return nil, err
	}
	m, ok := svc.Methods[operation.Method]
	if !ok {
		return nil, l.Die(fault.CodeResolve, nil, "could not find method %s in service %s for operation %s", operation.Method, svc.Name, op)
	}
	return m, nil
}

func (l *resolverLayer) ResolveRequestContext(op string) (*domain.Context, error) {
	operation, ok := l.table.Operation(op)
	if !ok {
		return nil, l.Die(fault.CodeResolve, nil, "no request context for operation %s", op)
	}
	c, ok := l.table.Context(operation.Context)
	if !ok {
		return nil, l.Die(fault.CodeResolve, nil, "operation %s names unknown context %s", op, operation.Context)
	}
	return c, nil
}

func (l *resolverLayer) ResolveRequestContextMethod(op string) (*domain.Operation, error) {
	operation, ok := l.table.Operation(op)
	if !ok {
		return nil, l.Report(fault.CodeUnknownOperation, "Could not locate request context operation %s", op)
	}
	return operation, nil
}

func (l *resolverLayer) ResolveRequestFactory(token string) (*domain.Factory, error) {
	f, ok := l.table.Factory(token)
	if !ok {
		return nil, l.Die(fault.CodeEnvelope, nil, "unknown request factory %s", token)
	}
	return f, nil
}

func (l *resolverLayer) ResolveLocator(dt *domain.DomainType) (domain.Locator, error) {
	pt, err := l.Top().ResolveClientType(dt, "", false)
	if err != nil || pt == nil || pt.Locator == "" {
		return nil, err
	}
	loc, ok := l.table.Locator(pt.Locator)
	if !ok {
		return nil, l.Die(fault.CodeResolve, nil, "could not find the locator %s for proxy %s", pt.Locator, pt.Name)
	}
	return loc, nil
}

func (l *resolverLayer) ResolveServiceLocator(c *domain.Context) (domain.ServiceLocator, error) {
	if c.ServiceLocator == "" {
		return nil, nil
	}
	loc, ok := l.table.ServiceLocator(c.ServiceLocator)
	if !ok {
		return nil, l.Die(fault.CodeResolve, nil, "could not find the service locator %s for context %s", c.ServiceLocator, c.Name)
	}
	return loc, nil
}

func (l *resolverLayer) ResolveService(c *domain.Context) (*domain.Service, error) {
	svc, ok := l.table.Service(c.Service)
	if !ok {
		return nil, l.Die(fault.CodeResolve, nil, "the context %s did not specify a service type", c.Name)
	}
	return svc, nil
}
