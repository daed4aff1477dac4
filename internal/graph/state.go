// Package graph converts between domain objects and the proxies a client
// sees, for one request/response exchange.
//
// A State owns the exchange's identity map: one proxy per object id, and a
// reverse map from domain object identity to id. A child State, used for
// values produced while invoking methods, shares the reverse map and the id
// factory with its parent but tracks its own proxies. Each State has a
// Resolver that walks domain graphs into proxies.
//
// States are request-local and not safe for concurrent use.
package graph

import (
	"encoding/base64"
	"fmt"
	"reflect"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/ids"
	"github.com/roach88/rfsync/internal/ir"
	"github.com/roach88/rfsync/internal/proxy"
	"github.com/roach88/rfsync/internal/service"
)

// Codec flattens composite values (ids or versions that are not scalars)
// into self-contained out-of-band payloads and back.
type Codec interface {
	EncodeOOB(values []any) (string, error)
	DecodeOOB(t domain.TypeRef, payload string) (any, error)
}

// State is the request-scoped identity map.
type State struct {
	api   service.API
	codec Codec
	ids   *ids.Factory

	// domainToID is keyed by domain object identity. Domain objects are
	// always pointers, so interface equality is pointer equality.
	domainToID map[any]*ids.ID

	beans map[ids.Key]*proxy.Proxy
	order []*proxy.Proxy

	resolver *Resolver
}

// NewState returns an empty state over api. codec may be nil when no
// domain type uses composite ids or versions.
func NewState(api service.API, codec Codec) *State {
	s := &State{
		api:        api,
		codec:      codec,
		ids:        ids.NewFactory(),
		domainToID: make(map[any]*ids.ID),
		beans:      make(map[ids.Key]*proxy.Proxy),
	}
	s.resolver = newResolver(s)
	return s
}

// Child returns a nested state sharing s's id factory and reverse map.
func (s *State) Child() *State {
	c := &State{
		api:        s.api,
		codec:      s.codec,
		ids:        s.ids,
		domainToID: s.domainToID,
		beans:      make(map[ids.Key]*proxy.Proxy),
	}
	c.resolver = newResolver(c)
	return c
}

// API returns the accessor pipeline.
func (s *State) API() service.API { return s.api }

// IDs returns the id factory.
func (s *State) IDs() *ids.Factory { return s.ids }

// Resolver returns the state's resolver.
func (s *State) Resolver() *Resolver { return s.resolver }

// Proxies returns the tracked proxies in the order they were created.
func (s *State) Proxies() []*proxy.Proxy { return s.order }

// Proxy returns the tracked proxy for id.
func (s *State) Proxy(id *ids.ID) (*proxy.Proxy, bool) {
	p, ok := s.beans[id.Key()]
	return p, ok
}

// StableID returns the id previously assigned to a domain object, or nil.
func (s *State) StableID(obj any) *ids.ID {
	if obj == nil || !reflect.TypeOf(obj).Comparable() {
		return nil
	}
	return s.domainToID[obj]
}

// ProxyFor returns the proxy for id, creating one that tracks obj if none
// exists yet. obj is remembered as the owner of id unless it already has
// one.
func (s *State) ProxyFor(id *ids.ID, obj any) (*proxy.Proxy, error) {
	if p, ok := s.beans[id.Key()]; ok {
		return p, nil
	}
	return s.track(id, obj)
}

func (s *State) track(id *ids.ID, obj any) (*proxy.Proxy, error) {
	pt, err := s.api.ResolveProxyType(id.Token())
	if err != nil {
		return nil, err
	}
	p := proxy.New(id, pt, obj)
	s.beans[id.Key()] = p
	s.order = append(s.order, p)
	if d := p.Domain(); d != nil && s.StableID(d) == nil && reflect.TypeOf(d).Comparable() {
		s.domainToID[d] = id
	}
	return p, nil
}

// IDFor returns the id addressed by an id message.
func (s *State) IDFor(m ir.IDMessage) (*ids.ID, error) {
	if m.Strength == ir.StrengthSynthetic {
		return s.ids.Synthetic(m.TypeToken, m.SyntheticID), nil
	}
	var serverID string
	if m.ServerID != "" {
		raw, err := base64.StdEncoding.DecodeString(m.ServerID)
		if err != nil {
			return nil, fault.Unexpected(fault.CodeEnvelope, err, "bad server id for %s", m.TypeToken)
		}
		serverID = string(raw)
	}
	id, err := s.ids.Get(m.TypeToken, serverID, m.ClientID)
	if err != nil {
		return nil, fault.Unexpected(fault.CodeEnvelope, err, "bad id reference")
	}
	return id, nil
}

// ProxiesForMessages returns the proxies addressed by id messages, loading
// or creating them as needed. The result has one proxy per message.
func (s *State) ProxiesForMessages(msgs []ir.IDMessage) ([]*proxy.Proxy, error) {
	list := make([]*ids.ID, len(msgs))
	for i, m := range msgs {
		id, err := s.IDFor(m)
		if err != nil {
			return nil, err
		}
		list[i] = id
	}
	return s.ProxiesForIDs(list)
}

// ProxiesForIDs returns the proxies for ids, creating missing ones.
//
// Ephemeral and synthetic ids get a fresh domain object. Persisted ids are
// decoded to domain ids and loaded in a single batched call; an id whose
// object cannot be loaded gets a proxy with no domain object.
func (s *State) ProxiesForIDs(list []*ids.ID) ([]*proxy.Proxy, error) {
	var (
		types  []*domain.DomainType
		keys   []any
		toLoad []*ids.ID
	)
	for _, id := range list {
		if _, ok := s.beans[id.Key()]; ok {
			continue
		}
		pt, err := s.api.ResolveProxyType(id.Token())
		if err != nil {
			return nil, err
		}
		dt, err := s.api.ResolveDomainType(pt)
		if err != nil {
			return nil, err
		}
		if id.IsEphemeral() || id.IsSynthetic() {
			obj, err := s.api.CreateDomainObject(dt)
			if err != nil {
				return nil, err
			}
			if _, err := s.track(id, obj); err != nil {
				return nil, err
			}
			continue
		}
		key, err := s.DecodeDomainID(dt, id.ServerID())
		if err != nil {
			return nil, err
		}
		types = append(types, dt)
		keys = append(keys, key)
		toLoad = append(toLoad, id)
	}

	if len(toLoad) > 0 {
		loaded, err := s.api.LoadDomainObjects(types, keys)
		if err != nil {
			return nil, err
		}
		if len(loaded) != len(toLoad) {
			return nil, fault.Unexpected(fault.CodeBatch, nil, "expected %d objects to be loaded, got %d", len(toLoad), len(loaded))
		}
		for i, id := range toLoad {
			if _, ok := s.beans[id.Key()]; ok {
				continue
			}
			if _, err := s.track(id, loaded[i]); err != nil {
				return nil, err
			}
		}
	}

	out := make([]*proxy.Proxy, len(list))
	for i, id := range list {
		out[i] = s.beans[id.Key()]
	}
	return out, nil
}

// Flatten turns a domain id or version into its wire payload. Scalars use
// canonical JSON; anything else becomes an out-of-band message.
func (s *State) Flatten(v any) (string, error) {
	if domain.IsScalar(v) || v == nil {
		enc, err := domain.EncodeScalar(v)
		if err != nil {
			return "", err
		}
		data, err := ir.MarshalCanonical(enc)
		if err != nil {
			return "", fmt.Errorf("flatten %T: %w", v, err)
		}
		return string(data), nil
	}
	if s.codec == nil {
		return "", fault.Unexpected(fault.CodeEnvelope, nil, "no out-of-band codec for %T", v)
	}
	return s.codec.EncodeOOB([]any{v})
}

// DecodeDomainID turns a flattened server id back into the domain id of dt.
func (s *State) DecodeDomainID(dt *domain.DomainType, payload string) (any, error) {
	t, err := s.api.GetIDType(dt)
	if err != nil {
		return nil, err
	}
	if t.IsScalar() {
		v, err := ir.UnmarshalIRValue([]byte(payload))
		if err != nil {
			return nil, fault.Unexpected(fault.CodeEnvelope, err, "bad server id payload for %s", dt.Name)
		}
		id, err := domain.DecodeScalar(t, v)
		if err != nil {
			return nil, fault.Unexpected(fault.CodeEnvelope, err, "bad server id for %s", dt.Name)
		}
		return id, nil
	}
	if s.codec == nil {
		return nil, fault.Unexpected(fault.CodeEnvelope, nil, "no out-of-band codec for ids of %s", dt.Name)
	}
	return s.codec.DecodeOOB(t, payload)
}

// EncodeID returns the wire address of id.
func (s *State) EncodeID(id *ids.ID) ir.IDMessage {
	m := ir.IDMessage{TypeToken: id.Token()}
	switch {
	case id.IsSynthetic():
		m.Strength = ir.StrengthSynthetic
		m.SyntheticID = id.SyntheticID()
	case id.IsEphemeral():
		m.Strength = ir.StrengthEphemeral
		m.ClientID = id.ClientID()
	default:
		m.ServerID = base64.StdEncoding.EncodeToString([]byte(id.ServerID()))
	}
	return m
}

// EncodeValue encodes a client value for the wire: proxies as id
// references, collections as arrays, scalars through the value codec.
func (s *State) EncodeValue(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case *proxy.Proxy:
		return s.EncodeID(val.ID()).ToIR(), nil
	case []any:
		arr := make(ir.IRArray, len(val))
		for i, e := range val {
			enc, err := s.EncodeValue(e)
			if err != nil {
				return nil, err
			}
			arr[i] = enc
		}
		return arr, nil
	}
	enc, err := domain.EncodeScalar(v)
	if err != nil {
		return nil, fault.Unexpected(fault.CodeEnvelope, err, "cannot encode client value")
	}
	return enc, nil
}

// DecodeValue decodes a wire value declared as t into a client value.
// References become proxies tracked by s.
func (s *State) DecodeValue(t domain.TypeRef, v ir.IRValue) (any, error) {
	if ir.IsNull(v) {
		return nil, nil
	}
	switch {
	case t.IsCollection():
		arr, ok := v.(ir.IRArray)
		if !ok {
			return nil, fault.Unexpected(fault.CodeEnvelope, nil, "expected array for %s, got %T", t, v)
		}
		out := make([]any, len(arr))
		for i, e := range arr {
			d, err := s.DecodeValue(t.ElemType(), e)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case t.IsReference():
		return s.decodeReference(v)
	case t.Kind == domain.KindAny:
		switch v.(type) {
		case ir.IRObject:
			return s.decodeReference(v)
		case ir.IRArray:
			return s.DecodeValue(domain.ListOf(domain.AnyType), v)
		}
	}
	d, err := domain.DecodeScalar(t, v)
	if err != nil {
		return nil, fault.Unexpected(fault.CodeEnvelope, err, "cannot decode value")
	}
	return d, nil
}

func (s *State) decodeReference(v ir.IRValue) (any, error) {
	m, err := ir.IDMessageFromIR(v)
	if err != nil {
		return nil, fault.Unexpected(fault.CodeEnvelope, err, "cannot decode reference")
	}
	ps, err := s.ProxiesForMessages([]ir.IDMessage{m})
	if err != nil {
		return nil, err
	}
	return ps[0], nil
}

// ToBase64 encodes a flattened payload as sent in version and server id
// fields.
func ToBase64(payload string) string {
	return base64.StdEncoding.EncodeToString([]byte(payload))
}
