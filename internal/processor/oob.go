package processor

import (
	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/graph"
	"github.com/roach88/rfsync/internal/ir"
)

// EncodeOOB flattens composite values (ids or versions that are themselves
// domain objects) into a self-contained request payload: one invocation
// whose parameters reference the values, and the operations that carry
// their properties. The payload is deterministic, so equal values flatten
// to equal strings.
func (p *Processor) EncodeOOB(values []any) (string, error) {
	state := graph.NewState(p.api, p)

	params := make(ir.IRArray, len(values))
	for i, v := range values {
		v = domain.NormalizeNil(v)
		if v == nil {
			params[i] = ir.IRNull{}
			continue
		}
		t := domain.AnyType
		if !domain.IsScalar(v) {
			dt, err := p.api.DomainTypeOf(v)
			if err != nil {
				return "", err
			}
			if dt == nil {
				return "", fault.Reportable(fault.CodeUnsupportedType, "Unsupported domain type %T", v)
			}
			pt, err := p.api.ResolveClientType(dt, "", true)
			if err != nil {
				return "", err
			}
			t = domain.ProxyOf(pt.Name)
		}
		client, err := state.Resolver().Resolve(v, t, nil)
		if err != nil {
			return "", err
		}
		enc, err := state.EncodeValue(client)
		if err != nil {
			return "", err
		}
		params[i] = enc
	}

	ops, err := p.returnOperations(state, state.Proxies())
	if err != nil {
		return "", err
	}
	data, err := ir.EncodeRequest(ir.RequestMessage{
		Operations:  ops,
		Invocations: []ir.InvocationMessage{{Parameters: params}},
	})
	if err != nil {
		return "", fault.Unexpected(fault.CodeEnvelope, err, "cannot encode out-of-band message")
	}
	return string(data), nil
}

// DecodeOOB reverses EncodeOOB for a single value declared as t.
func (p *Processor) DecodeOOB(t domain.TypeRef, payload string) (any, error) {
	req, err := ir.DecodeRequest([]byte(payload))
	if err != nil {
		return nil, fault.Unexpected(fault.CodeEnvelope, err, "cannot decode out-of-band message")
	}
	if len(req.Invocations) != 1 || len(req.Invocations[0].Parameters) != 1 {
		return nil, fault.Unexpected(fault.CodeEnvelope, nil, "out-of-band message must carry exactly one value")
	}

	state := graph.NewState(p.api, p)
	if err := p.applyOperations(state, req.Operations); err != nil {
		return nil, err
	}
	client, err := state.DecodeValue(t, req.Invocations[0].Parameters[0])
	if err != nil {
		return nil, err
	}
	return state.Resolver().ResolveDomainValue(client, true)
}
