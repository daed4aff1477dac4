package service

import (
	"reflect"
	"sync"

	"github.com/roach88/rfsync/internal/domain"
)

type cacheKey struct {
	method string
	a, b   any
}

// cacheLayer memoizes the idempotent lookups of the layers below it. The
// memo is shared by every request using the pipeline. Concurrent first
// lookups of one key may both compute; LoadOrStore keeps a single value.
// Errors are never cached, and neither is anything that touches domain
// state (Invoke, properties, loading).
type cacheLayer struct {
	Decorator
	memo sync.Map
}

func cached[T any](c *cacheLayer, key cacheKey, compute func() (T, error)) (T, error) {
	if v, ok := c.memo.Load(key); ok {
		t, _ := v.(T)
		return t, nil
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	actual, _ := c.memo.LoadOrStore(key, v)
	t, _ := actual.(T)
	return t, nil
}

func (c *cacheLayer) GetIDType(dt *domain.DomainType) (domain.TypeRef, error) {
	return cached(c, cacheKey{"GetIDType", dt, nil}, func() (domain.TypeRef, error) {
		return c.Next().GetIDType(dt)
	})
}

func (c *cacheLayer) GetRequestReturnType(op *domain.Operation) (domain.TypeRef, error) {
	return cached(c, cacheKey{"GetRequestReturnType", op, nil}, func() (domain.TypeRef, error) {
		return c.Next().GetRequestReturnType(op)
	})
}

func (c *cacheLayer) RequiresServiceLocator(op *domain.Operation, m *domain.Method) (bool, error) {
	return cached(c, cacheKey{"RequiresServiceLocator", op, m}, func() (bool, error) {
		return c.Next().RequiresServiceLocator(op, m)
	})
}

// ResolveClientType caches misses too. A cached miss is re-resolved
// uncached when the caller requires a mapping, so the failure is reported.
func (c *cacheLayer) ResolveClientType(dt *domain.DomainType, assignableTo string, required bool) (*domain.ProxyType, error) {
	pt, err := cached(c, cacheKey{"ResolveClientType", dt, assignableTo}, func() (*domain.ProxyType, error) {
		return c.Next().ResolveClientType(dt, assignableTo, false)
	})
	if err != nil {
		return nil, err
	}
	if pt == nil && required {
		return c.Next().ResolveClientType(dt, assignableTo, true)
	}
	return pt, nil
}

func (c *cacheLayer) ResolveDomainType(pt *domain.ProxyType) (*domain.DomainType, error) {
	return cached(c, cacheKey{"ResolveDomainType", pt, nil}, func() (*domain.DomainType, error) {
		return c.Next().ResolveDomainType(pt)
	})
}

// DomainTypeOf is keyed by the Go type, not the instance.
func (c *cacheLayer) DomainTypeOf(obj any) (*domain.DomainType, error) {
	if obj == nil {
		return c.Next().DomainTypeOf(obj)
	}
	return cached(c, cacheKey{"DomainTypeOf", reflect.TypeOf(obj), nil}, func() (*domain.DomainType, error) {
		return c.Next().DomainTypeOf(obj)
	})
}

func (c *cacheLayer) ResolveDomainMethod(op string) (*domain.Method, error) {
	return cached(c, cacheKey{"ResolveDomainMethod", op, nil}, func() (*domain.Method, error) {
		return c.Next().ResolveDomainMethod(op)
	})
}

func (c *cacheLayer) ResolveLocator(dt *domain.DomainType) (domain.Locator, error) {
	return cached(c, cacheKey{"ResolveLocator", dt, nil}, func() (domain.Locator, error) {
		return c.Next().ResolveLocator(dt)
	})
}

func (c *cacheLayer) ResolveProxyType(token string) (*domain.ProxyType, error) {
	return cached(c, cacheKey{"ResolveProxyType", token, nil}, func() (*domain.ProxyType, error) {
		return c.Next().ResolveProxyType(token)
	})
}

func (c *cacheLayer) ResolveRequestContext(op string) (*domain.Context, error) {
	return cached(c, cacheKey{"ResolveRequestContext", op, nil}, func() (*domain.Context, error) {
		return c.Next().ResolveRequestContext(op)
	})
}

func (c *cacheLayer) ResolveRequestContextMethod(op string) (*domain.Operation, error) {
	return cached(c, cacheKey{"ResolveRequestContextMethod", op, nil}, func() (*domain.Operation, error) {
		return c.Next().ResolveRequestContextMethod(op)
	})
}

func (c *cacheLayer) ResolveRequestFactory(token string) (*domain.Factory, error) {
	return cached(c, cacheKey{"ResolveRequestFactory", token, nil}, func() (*domain.Factory, error) {
		return c.Next().ResolveRequestFactory(token)
	})
}

func (c *cacheLayer) ResolveService(ctx *domain.Context) (*domain.Service, error) {
	return cached(c, cacheKey{"ResolveService", ctx, nil}, func() (*domain.Service, error) {
		return c.Next().ResolveService(ctx)
	})
}

func (c *cacheLayer) ResolveServiceLocator(ctx *domain.Context) (domain.ServiceLocator, error) {
	return cached(c, cacheKey{"ResolveServiceLocator", ctx, nil}, func() (domain.ServiceLocator, error) {
		return c.Next().ResolveServiceLocator(ctx)
	})
}

func (c *cacheLayer) ResolveTypeToken(pt *domain.ProxyType) (string, error) {
	return cached(c, cacheKey{"ResolveTypeToken", pt, nil}, func() (string, error) {
		return c.Next().ResolveTypeToken(pt)
	})
}
