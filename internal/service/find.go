package service

import (
	"fmt"

	"github.com/roach88/rfsync/internal/domain"
)

// FindOperation is the short operation token of the built-in find call.
// Its single parameter is an entity id; the result is the object, or null
// when the id no longer resolves.
const FindOperation = "find"

var (
	findContext = &domain.Context{Name: "FindRequest"}

	findOperation = &domain.Operation{
		Token:   FindOperation,
		Context: findContext.Name,
		Method:  "find",
		Params:  []domain.TypeRef{domain.IDOf("")},
		Return:  domain.AnyProxyType,
	}

	// The argument has already been resolved to its domain object.
	findMethod = &domain.Method{
		Name:   "find",
		Static: true,
		Params: []domain.TypeRef{domain.IDOf("")},
		Return: domain.AnyProxyType,
		Invoke: func(_ any, args []any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("find takes 1 argument, got %d", len(args))
			}
			return args[0], nil
		},
	}
)

// findLayer maps FindOperation without a table entry.
type findLayer struct {
	Decorator
}

func (l *findLayer) ResolveDomainMethod(op string) (*domain.Method, error) {
	if op == FindOperation {
		return findMethod, nil
	}
	return l.Decorator.ResolveDomainMethod(op)
}

func (l *findLayer) ResolveRequestContext(op string) (*domain.Context, error) {
	if op == FindOperation {
		return findContext, nil
	}
	return l.Decorator.ResolveRequestContext(op)
}

func (l *findLayer) ResolveRequestContextMethod(op string) (*domain.Operation, error) {
	if op == FindOperation {
		return findOperation, nil
	}
	return l.Decorator.ResolveRequestContextMethod(op)
}
