package processor

import (
	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/graph"
	"github.com/roach88/rfsync/internal/ids"
	"github.com/roach88/rfsync/internal/ir"
	"github.com/roach88/rfsync/internal/proxy"
)

// applyOperations loads or creates every object the client edited and
// copies the edited properties onto the domain objects.
func (p *Processor) applyOperations(state *graph.State, ops []ir.OperationMessage) error {
	if len(ops) == 0 {
		return nil
	}
	msgs := make([]ir.IDMessage, len(ops))
	for i, op := range ops {
		msgs[i] = op.IDMessage
	}
	proxies, err := state.ProxiesForMessages(msgs)
	if err != nil {
		return err
	}

	for i, px := range proxies {
		op := ops[i]
		px.SetVersion(op.Version)
		obj := px.Domain()
		if obj == nil || op.PropertyMap == nil {
			continue
		}
		applier := &propertyApplier{
			state:  state,
			target: obj,
			values: op.PropertyMap,
		}
		if err := px.Accept(applier); err != nil {
			return err
		}
	}
	return nil
}

// propertyApplier sets the properties present in a property map.
type propertyApplier struct {
	state  *graph.State
	target any
	values ir.IRObject
}

func (a *propertyApplier) VisitValue(prop domain.Property, _ any) error {
	raw, ok := a.values[prop.Name]
	if !ok {
		return nil
	}
	var value any
	if !ir.IsNull(raw) {
		v, err := domain.DecodeScalar(prop.Type, raw)
		if err != nil {
			return fault.Unexpected(fault.CodeEnvelope, err, "cannot decode property %s", prop.Name)
		}
		value = v
	}
	return a.state.API().SetProperty(a.target, prop.Name, prop.Type, value)
}

func (a *propertyApplier) VisitReference(prop domain.Property, _ any) error {
	raw, ok := a.values[prop.Name]
	if !ok {
		return nil
	}
	client, err := a.state.DecodeValue(prop.Type, raw)
	if err != nil {
		return err
	}
	value, err := a.state.Resolver().ResolveDomainValue(client, false)
	if err != nil {
		return err
	}
	return a.state.API().SetProperty(a.target, prop.Name, prop.Type, value)
}

// validate runs the validator over every tracked object that still exists.
func (p *Processor) validate(state *graph.State) ([]ir.ViolationMessage, error) {
	var out []ir.ViolationMessage
	for _, px := range state.Proxies() {
		obj := px.Domain()
		if obj == nil {
			continue
		}
		violations, err := p.api.Validate(obj)
		if err != nil {
			return nil, err
		}
		for _, v := range violations {
			out = append(out, violationMessage(state, px, v))
		}
	}
	return out, nil
}

func violationMessage(state *graph.State, root *proxy.Proxy, v domain.Violation) ir.ViolationMessage {
	msg := ir.ViolationMessage{
		Message:         v.Message,
		MessageTemplate: v.Template,
		Path:            v.Path,
		RootID:          violationID(state, root.ID()),
	}
	if v.Leaf != nil {
		if leaf := state.StableID(v.Leaf); leaf != nil {
			msg.LeafID = violationID(state, leaf)
		}
	}
	return msg
}

// violationID addresses the object a violation is about. The client id is
// always sent when there is one so the client can match objects it has not
// seen persisted yet.
func violationID(state *graph.State, id *ids.ID) *ir.IDMessage {
	m := state.EncodeID(id)
	if id.ClientID() != 0 {
		m.ClientID = id.ClientID()
	}
	return &m
}
