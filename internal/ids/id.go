// Package ids implements object identity for one request/response exchange.
//
// An ID addresses an object by proxy type token and one of three strengths
// (see ir.Strength). Ephemeral ids are promoted to persisted in place once
// the object acquires a backing-store address, so containers never hash the
// mutable address fields: they key by Key, an arena index assigned when the
// ID is created and never changed.
package ids

import (
	"fmt"

	"github.com/roach88/rfsync/internal/ir"
)

// Key is the immutable surrogate for an ID within one Factory.
type Key int

// ID is a single object address. IDs are only created by a Factory and are
// compared by pointer: a Factory never returns two IDs for the same address.
type ID struct {
	key          Key
	token        string
	strength     ir.Strength
	serverID     string
	clientID     int64
	syntheticID  int64
	wasEphemeral bool
}

// Key returns the arena index of the id.
func (id *ID) Key() Key { return id.key }

// Token returns the proxy type token.
func (id *ID) Token() string { return id.token }

// Strength returns the current strength.
func (id *ID) Strength() ir.Strength { return id.strength }

// IsEphemeral reports whether the id still carries only a client number.
func (id *ID) IsEphemeral() bool { return id.strength == ir.StrengthEphemeral }

// IsSynthetic reports whether the id is valid only within one response.
func (id *ID) IsSynthetic() bool { return id.strength == ir.StrengthSynthetic }

// IsPersisted reports whether the id carries a server address.
func (id *ID) IsPersisted() bool { return id.strength == ir.StrengthPersisted }

// ServerID returns the flattened server address payload, or "" if none.
func (id *ID) ServerID() string { return id.serverID }

// ClientID returns the client-assigned number, or 0 if none.
func (id *ID) ClientID() int64 { return id.clientID }

// SyntheticID returns the server-assigned response-local number.
func (id *ID) SyntheticID() int64 { return id.syntheticID }

// WasEphemeral reports whether the id was promoted from ephemeral.
func (id *ID) WasEphemeral() bool { return id.wasEphemeral }

func (id *ID) String() string {
	switch id.strength {
	case ir.StrengthEphemeral:
		return fmt.Sprintf("%s@c%d", id.token, id.clientID)
	case ir.StrengthSynthetic:
		return fmt.Sprintf("%s@s%d", id.token, id.syntheticID)
	default:
		return fmt.Sprintf("%s@%s", id.token, id.serverID)
	}
}
