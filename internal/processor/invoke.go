package processor

import (
	"reflect"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/graph"
	"github.com/roach88/rfsync/internal/ir"
)

// outcome is the result of one invocation.
type outcome struct {
	op      *domain.Operation
	value   any
	refs    []string
	failure *ir.FailureMessage
}

// invoke runs every invocation in order, then resolves the successful
// results into returnState. Results and success flags are parallel to the
// invocations.
func (p *Processor) invoke(source, returnState *graph.State, invocations []ir.InvocationMessage) (ir.IRArray, []bool, error) {
	outcomes := make([]outcome, len(invocations))

	// Paths are grouped by result, so two calls returning the same object
	// both see everything requested for it.
	refs := make(map[any][]string)

	for i, inv := range invocations {
		op, value, err := p.invokeOne(source, inv)
		if err != nil {
			if !fault.IsReportable(err) {
				return nil, nil, err
			}
			outcomes[i] = outcome{failure: p.failure(err)}
			continue
		}
		outcomes[i] = outcome{op: op, value: value, refs: inv.PropertyRefs}
		if len(inv.PropertyRefs) > 0 {
			if key, ok := resultKey(value); ok {
				refs[key] = append(refs[key], inv.PropertyRefs...)
			}
		}
	}

	results := make(ir.IRArray, len(outcomes))
	codes := make([]bool, len(outcomes))
	for i, o := range outcomes {
		if o.failure != nil {
			results[i] = o.failure.ToIR()
			continue
		}
		t, err := p.api.GetRequestReturnType(o.op)
		if err != nil {
			return nil, nil, err
		}
		codes[i] = true
		if t.Kind == domain.KindVoid {
			results[i] = ir.IRNull{}
			continue
		}
		paths := o.refs
		if key, ok := resultKey(o.value); ok {
			paths = refs[key]
		}
		client, err := returnState.Resolver().Resolve(o.value, t, paths)
		if err != nil {
			return nil, nil, err
		}
		enc, err := returnState.EncodeValue(client)
		if err != nil {
			return nil, nil, err
		}
		results[i] = enc
	}
	return results, codes, nil
}

// invokeOne decodes the arguments of one invocation and calls its domain
// method.
func (p *Processor) invokeOne(state *graph.State, inv ir.InvocationMessage) (*domain.Operation, any, error) {
	op, err := p.api.ResolveRequestContextMethod(inv.Operation)
	if err != nil {
		return nil, nil, err
	}
	m, err := p.api.ResolveDomainMethod(inv.Operation)
	if err != nil {
		return nil, nil, err
	}
	args, err := p.decodeArguments(state, op, inv.Parameters)
	if err != nil {
		return nil, nil, err
	}

	needsService, err := p.api.RequiresServiceLocator(op, m)
	if err != nil {
		return nil, nil, err
	}
	if needsService {
		c, err := p.api.ResolveRequestContext(inv.Operation)
		if err != nil {
			return nil, nil, err
		}
		svc, err := p.api.CreateServiceInstance(c)
		if err != nil {
			return nil, nil, err
		}
		args = append([]any{svc}, args...)
	}

	value, err := p.api.Invoke(m, args)
	if err != nil {
		return nil, nil, err
	}
	return op, value, nil
}

// decodeArguments turns invocation parameters into domain values. An
// instance operation's receiver is parameter 0. References to objects that
// no longer exist are dead-entity errors, except where an entity id is
// expected: a stale id is a legitimate argument there.
func (p *Processor) decodeArguments(state *graph.State, op *domain.Operation, params ir.IRArray) ([]any, error) {
	types := op.Params
	if op.Instance {
		types = append([]domain.TypeRef{domain.ProxyOf(op.Receiver)}, op.Params...)
	}
	if len(params) != len(types) {
		return nil, fault.Reportable(fault.CodeBadArguments,
			"Operation %s expects %d arguments, got %d", op.Token, len(types), len(params))
	}

	args := make([]any, len(types))
	for i, t := range types {
		client, err := state.DecodeValue(t, params[i])
		if err != nil {
			return nil, err
		}
		value, err := state.Resolver().ResolveDomainValue(client, t.Kind != domain.KindEntityID)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}
	return args, nil
}

// sliceKey identifies a slice or map result by its backing storage.
type sliceKey struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

// resultKey returns the identity of an invocation result. Results without
// an identity (nil, and values that cannot be compared) report false.
func resultKey(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return sliceKey{typ: rv.Type(), ptr: rv.Pointer(), n: rv.Len()}, true
	}
	if !rv.Type().Comparable() {
		return nil, false
	}
	return v, true
}
