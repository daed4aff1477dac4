package service

import (
	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
)

// locatorLayer routes id, version, construction and loading through a
// domain.Locator for types whose proxy names one, and produces service
// instances through a context's ServiceLocator.
type locatorLayer struct {
	Decorator
}

func (l *locatorLayer) locatorOf(obj any) (domain.Locator, error) {
	dt, err := l.Top().DomainTypeOf(obj)
	if err != nil || dt == nil {
		return nil, err
	}
	return l.Top().ResolveLocator(dt)
}

func (l *locatorLayer) CreateDomainObject(dt *domain.DomainType) (any, error) {
	loc, err := l.Top().ResolveLocator(dt)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return l.Decorator.CreateDomainObject(dt)
	}
	obj, err := loc.Create(dt)
	if err != nil {
		return nil, l.Die(fault.CodeConstruct, err, "locator could not create %s", dt.Name)
	}
	return obj, nil
}

func (l *locatorLayer) CreateServiceInstance(c *domain.Context) (any, error) {
	sl, err := l.Top().ResolveServiceLocator(c)
	if err != nil {
		return nil, err
	}
	if sl == nil {
		return l.Decorator.CreateServiceInstance(c)
	}
	svc, err := l.Top().ResolveService(c)
	if err != nil {
		return nil, err
	}
	inst, err := sl.Instance(svc)
	if err != nil {
		return nil, l.Die(fault.CodeConstruct, err, "service locator could not instantiate %s", svc.Name)
	}
	return inst, nil
}

func (l *locatorLayer) GetID(obj any) (any, error) {
	loc, err := l.locatorOf(obj)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return l.Decorator.GetID(obj)
	}
	id, err := loc.ID(obj)
	if err != nil {
		return nil, l.Die(fault.CodeAccessor, err, "locator could not compute id of %T", obj)
	}
	return domain.NormalizeNil(id), nil
}

func (l *locatorLayer) GetIDType(dt *domain.DomainType) (domain.TypeRef, error) {
	loc, err := l.Top().ResolveLocator(dt)
	if err != nil {
		return domain.TypeRef{}, err
	}
	if loc == nil {
		return l.Decorator.GetIDType(dt)
	}
	return loc.IDType(dt), nil
}

func (l *locatorLayer) GetVersion(obj any) (any, error) {
	loc, err := l.locatorOf(obj)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return l.Decorator.GetVersion(obj)
	}
	v, err := loc.Version(obj)
	if err != nil {
		return nil, l.Die(fault.CodeAccessor, err, "locator could not compute version of %T", obj)
	}
	return domain.NormalizeNil(v), nil
}

func (l *locatorLayer) IsLive(obj any) (bool, error) {
	loc, err := l.locatorOf(obj)
	if err != nil {
		return false, err
	}
	if loc == nil {
		return l.Decorator.IsLive(obj)
	}
	live, err := loc.IsLive(obj)
	if err != nil {
		return false, l.Die(fault.CodeAccessor, err, "locator could not check liveness of %T", obj)
	}
	return live, nil
}

func (l *locatorLayer) LoadDomainObject(dt *domain.DomainType, id any) (any, error) {
	loc, err := l.Top().ResolveLocator(dt)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return l.Decorator.LoadDomainObject(dt, id)
	}
	obj, err := loc.Find(dt, id)
	if err != nil {
		return nil, l.Die(fault.CodeAccessor, err, "locator could not load %s %v", dt.Name, id)
	}
	return domain.NormalizeNil(obj), nil
}

// RequiresServiceLocator is true for non-static domain methods called
// through a plain (not instance) operation.
func (l *locatorLayer) RequiresServiceLocator(op *domain.Operation, m *domain.Method) (bool, error) {
	return !op.Instance && !m.Static, nil
}
