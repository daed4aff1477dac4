package ids

import (
	"fmt"

	"github.com/roach88/rfsync/internal/ir"
)

type address struct {
	token string
	value string
}

type number struct {
	token string
	n     int64
}

// Factory creates and interns IDs for one exchange.
//
// Lookups are by (token, server address), (token, client number) and
// (token, synthetic number). Promotion adds the persisted lookup without
// disturbing the ephemeral one, so both forms resolve to the same *ID.
// A Factory is not safe for concurrent use.
type Factory struct {
	arena     []*ID
	persisted map[address]*ID
	ephemeral map[number]*ID
	synthetic map[number]*ID

	syntheticSeq *Sequence
	ephemeralSeq *Sequence
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{
		persisted:    make(map[address]*ID),
		ephemeral:    make(map[number]*ID),
		synthetic:    make(map[number]*ID),
		syntheticSeq: NewSequence(),
		ephemeralSeq: NewDescendingSequence(),
	}
}

func (f *Factory) add(id *ID) *ID {
	id.key = Key(len(f.arena))
	f.arena = append(f.arena, id)
	return id
}

// Get looks up or creates the id for a decoded address.
//
// A server address selects the persisted id; if only an ephemeral id with
// the given client number is known, that id is promoted and returned.
// Without a server address the ephemeral id for clientID is returned.
func (f *Factory) Get(token, serverID string, clientID int64) (*ID, error) {
	if token == "" {
		return nil, fmt.Errorf("ids: empty type token")
	}
	if serverID != "" {
		k := address{token, serverID}
		if id, ok := f.persisted[k]; ok {
			return id, nil
		}
		if id, ok := f.ephemeral[number{token, clientID}]; ok && clientID != 0 {
			f.Promote(id, serverID)
			return id, nil
		}
		id := f.add(&ID{token: token, strength: ir.StrengthPersisted, serverID: serverID})
		f.persisted[k] = id
		return id, nil
	}
	if clientID == 0 {
		return nil, fmt.Errorf("ids: %s id has neither a server address nor a client number", token)
	}
	k := number{token, clientID}
	if id, ok := f.ephemeral[k]; ok {
		return id, nil
	}
	id := f.add(&ID{token: token, strength: ir.StrengthEphemeral, clientID: clientID})
	f.ephemeral[k] = id
	return id, nil
}

// Synthetic looks up or creates the synthetic id with the given number.
func (f *Factory) Synthetic(token string, n int64) *ID {
	k := number{token, n}
	if id, ok := f.synthetic[k]; ok {
		return id
	}
	id := f.add(&ID{token: token, strength: ir.StrengthSynthetic, syntheticID: n})
	f.synthetic[k] = id
	return id
}

// AllocateSynthetic creates a synthetic id with a fresh number.
func (f *Factory) AllocateSynthetic(token string) *ID {
	for {
		n := f.syntheticSeq.Next()
		if _, taken := f.synthetic[number{token, n}]; !taken {
			return f.Synthetic(token, n)
		}
	}
}

// AllocateEphemeral creates an ephemeral id with a fresh, negative client
// number.
func (f *Factory) AllocateEphemeral(token string) *ID {
	n := f.ephemeralSeq.Next()
	id := f.add(&ID{token: token, strength: ir.StrengthEphemeral, clientID: n})
	f.ephemeral[number{token, n}] = id
	return id
}

// Promote records the server address of an ephemeral id. The id keeps its
// Key and client number and remembers that it was ephemeral. Promoting an
// id that is not ephemeral is a no-op.
func (f *Factory) Promote(id *ID, serverID string) {
	if !id.IsEphemeral() || serverID == "" {
		return
	}
	id.strength = ir.StrengthPersisted
	id.serverID = serverID
	id.wasEphemeral = true
	k := address{id.token, serverID}
	if _, exists := f.persisted[k]; !exists {
		f.persisted[k] = id
	}
}

// Lookup returns the id with the given key.
func (f *Factory) Lookup(k Key) (*ID, bool) {
	if int(k) < 0 || int(k) >= len(f.arena) {
		return nil, false
	}
	return f.arena[k], true
}

// Len returns the number of ids created.
func (f *Factory) Len() int {
	return len(f.arena)
}
