package processor

import (
	"encoding/base64"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/graph"
	"github.com/roach88/rfsync/internal/ids"
	"github.com/roach88/rfsync/internal/ir"
	"github.com/roach88/rfsync/internal/proxy"
)

// touched returns every proxy tracked by source or returnState, one per
// id, in first-seen order. Where both track an id the proxy from
// returnState is used.
func touched(source, returnState *graph.State) []*proxy.Proxy {
	var out []*proxy.Proxy
	index := make(map[ids.Key]int)
	for _, s := range []*graph.State{source, returnState} {
		for _, px := range s.Proxies() {
			key := px.ID().Key()
			if i, ok := index[key]; ok {
				out[i] = px
				continue
			}
			index[key] = len(out)
			out = append(out, px)
		}
	}
	return out
}

// returnOperations computes the write operation of every proxy in toProcess.
func (p *Processor) returnOperations(returnState *graph.State, toProcess []*proxy.Proxy) ([]ir.OperationMessage, error) {
	var out []ir.OperationMessage
	for _, px := range toProcess {
		msg, ok, err := p.returnOperation(returnState, px)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

// returnOperation builds one write operation. It reports false when the
// client already holds the object's current state.
func (p *Processor) returnOperation(returnState *graph.State, px *proxy.Proxy) (ir.OperationMessage, bool, error) {
	id := px.ID()
	obj := px.Domain()

	// An object created by the client may have been stored by an
	// invocation. Resolving it again promotes its id.
	if id.IsEphemeral() && px.IsEntity() && obj != nil {
		if _, err := returnState.Resolver().Resolve(obj, domain.ProxyOf(px.Type().Name), nil); err != nil {
			return ir.OperationMessage{}, false, err
		}
	}

	op, err := p.writeOperation(id, obj)
	if err != nil {
		return ir.OperationMessage{}, false, err
	}

	var version string
	if op == ir.WritePersist || op == ir.WriteUpdate {
		v, err := p.api.GetVersion(obj)
		if err != nil {
			return ir.OperationMessage{}, false, err
		}
		if v == nil {
			domainID, _ := p.api.GetID(obj)
			return ir.OperationMessage{}, false, fault.Unexpected(fault.CodeVersion, nil,
				"the persisted entity with id %v has a null version", domainID)
		}
		if version, err = returnState.Flatten(v); err != nil {
			return ir.OperationMessage{}, false, err
		}
		if op == ir.WriteUpdate && !px.InResponse() && sameVersion(px.Version(), version) {
			return ir.OperationMessage{}, false, nil
		}
	}

	msg := ir.OperationMessage{
		IDMessage: returnState.EncodeID(id),
		Operation: op,
	}
	if id.ClientID() != 0 {
		msg.ClientID = id.ClientID()
	}
	if version != "" {
		msg.Version = graph.ToBase64(version)
	}
	if px.InResponse() {
		props := make(ir.IRObject)
		for _, v := range px.Values() {
			enc, err := returnState.EncodeValue(v.Value)
			if err != nil {
				return ir.OperationMessage{}, false, err
			}
			props[v.Name] = enc
		}
		msg.PropertyMap = props
	}
	return msg, true, nil
}

// writeOperation classifies what happened to the object behind id.
func (p *Processor) writeOperation(id *ids.ID, obj any) (ir.WriteOperation, error) {
	if id.IsEphemeral() || id.IsSynthetic() || obj == nil {
		return ir.WriteNone, nil
	}
	live, err := p.api.IsLive(obj)
	if err != nil {
		return ir.WriteNone, err
	}
	switch {
	case !live:
		return ir.WriteDelete, nil
	case id.WasEphemeral():
		return ir.WritePersist, nil
	default:
		return ir.WriteUpdate, nil
	}
}

// sameVersion compares the version the client claimed, base64 encoded,
// with a flattened version payload.
func sameVersion(claimed, payload string) bool {
	if claimed == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(claimed)
	if err != nil {
		return false
	}
	return string(raw) == payload
}
