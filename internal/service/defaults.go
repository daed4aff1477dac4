package service

import (
	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
)

// defaultLayer implements the domain conventions: construction through
// DomainType.New, properties through registered accessors, ids and
// versions through the id and version properties, and loading through
// the domain type's finder.
type defaultLayer struct {
	Decorator
	validator domain.Validator
}

func (l *defaultLayer) typeOf(obj any) (*domain.DomainType, error) {
	dt, err := l.Top().DomainTypeOf(obj)
	if err != nil {
		return nil, err
	}
	if dt == nil {
		return nil, l.Die(fault.CodeResolve, nil, "%T is not a registered domain type", obj)
	}
	return dt, nil
}

func (l *defaultLayer) CreateDomainObject(dt *domain.DomainType) (any, error) {
	if dt.New == nil {
		return nil, l.Die(fault.CodeConstruct, nil, "could not create a new instance of domain type %s", dt.Name)
	}
	obj := domain.NormalizeNil(dt.New())
	if obj == nil {
		return nil, l.Die(fault.CodeConstruct, nil, "constructor of domain type %s returned nil", dt.Name)
	}
	return obj, nil
}

func (l *defaultLayer) CreateServiceInstance(c *domain.Context) (any, error) {
	svc, err := l.Top().ResolveService(c)
	if err != nil {
		return nil, err
	}
	if svc.New == nil {
		return nil, l.Die(fault.CodeConstruct, nil, "could not instantiate service %s: no constructor or service locator", svc.Name)
	}
	return svc.New(), nil
}

func (l *defaultLayer) GetID(obj any) (any, error) {
	dt, err := l.typeOf(obj)
	if err != nil {
		return nil, err
	}
	return l.Top().GetProperty(obj, dt.IDProperty)
}

func (l *defaultLayer) GetIDType(dt *domain.DomainType) (domain.TypeRef, error) {
	return dt.IDType, nil
}

func (l *defaultLayer) GetVersion(obj any) (any, error) {
	dt, err := l.typeOf(obj)
	if err != nil {
		return nil, err
	}
	return l.Top().GetProperty(obj, dt.VersionProperty)
}

func (l *defaultLayer) GetProperty(obj any, name string) (any, error) {
	dt, err := l.typeOf(obj)
	if err != nil {
		return nil, err
	}
	acc, ok := dt.Properties[name]
	if !ok || acc.Get == nil {
		return nil, l.Die(fault.CodeAccessor, nil, "could not determine getter for property %s on type %s", name, dt.Name)
	}
	v, err := acc.Get(obj)
	if err != nil {
		return nil, l.Die(fault.CodeAccessor, err, "could not retrieve property %s", name)
	}
	return v, nil
}

func (l *defaultLayer) SetProperty(obj any, name string, _ domain.TypeRef, value any) error {
	dt, err := l.typeOf(obj)
	if err != nil {
		return err
	}
	acc, ok := dt.Properties[name]
	if !ok || acc.Set == nil {
		return l.Die(fault.CodeAccessor, nil, "could not locate setter for property %s in type %s", name, dt.Name)
	}
	if err := acc.Set(obj, value); err != nil {
		return l.Die(fault.CodeAccessor, err, "could not set property %s", name)
	}
	return nil
}

func (l *defaultLayer) GetRequestReturnType(op *domain.Operation) (domain.TypeRef, error) {
	if op.Return.Kind == domain.KindInvalid {
		return domain.VoidType, nil
	}
	return op.Return, nil
}

// Invoke calls the method. Errors returned by domain code are reportable.
func (l *defaultLayer) Invoke(m *domain.Method, args []any) (any, error) {
	if m.Invoke == nil {
		return nil, l.Die(fault.CodeInvoke, nil, "method %s has no implementation", m.Name)
	}
	var (
		result any
		err    error
	)
	if m.Static {
		result, err = m.Invoke(nil, args)
	} else {
		if len(args) == 0 || args[0] == nil {
			return nil, l.Die(fault.CodeInvoke, nil, "could not invoke method %s without a receiver", m.Name)
		}
		result, err = m.Invoke(args[0], args[1:])
	}
	if err != nil {
		return nil, fault.Wrap(err)
	}
	return domain.NormalizeNil(result), nil
}

// IsLive reloads the object from the backing store.
func (l *defaultLayer) IsLive(obj any) (bool, error) {
	id, err := l.Top().GetID(obj)
	if err != nil {
		return false, err
	}
	dt, err := l.typeOf(obj)
	if err != nil {
		return false, err
	}
	find, err := l.finder(dt)
	if err != nil {
		return false, err
	}
	found, err := l.Top().Invoke(find, []any{id})
	if err != nil {
		return false, err
	}
	return found != nil, nil
}

func (l *defaultLayer) LoadDomainObject(dt *domain.DomainType, id any) (any, error) {
	if id == nil {
		return nil, l.Die(fault.CodeInvoke, nil, "cannot invoke find method of %s with a nil id", dt.Name)
	}
	find, err := l.finder(dt)
	if err != nil {
		return nil, err
	}
	return l.Top().Invoke(find, []any{id})
}

// LoadDomainObjects loads one object at a time.
func (l *defaultLayer) LoadDomainObjects(dts []*domain.DomainType, ids []any) ([]any, error) {
	if len(dts) != len(ids) {
		return nil, l.Die(fault.CodeBatch, nil, "size mismatch in parameters: %d types, %d ids", len(dts), len(ids))
	}
	out := make([]any, len(dts))
	for i, dt := range dts {
		obj, err := l.Top().LoadDomainObject(dt, ids[i])
		if err != nil {
			return nil, err
		}
		out[i] = obj
	}
	return out, nil
}

func (l *defaultLayer) Validate(obj any) ([]domain.Violation, error) {
	if l.validator == nil {
		return nil, nil
	}
	return l.validator.Validate(obj)
}

func (l *defaultLayer) finder(dt *domain.DomainType) (*domain.Method, error) {
	if dt.Find == nil {
		return nil, l.Die(fault.CodeAccessor, nil, "domain type %s has no find method", dt.Name)
	}
	return dt.Find, nil
}
