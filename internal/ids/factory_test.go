package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rfsync/internal/ir"
)

func TestGetInternsPersisted(t *testing.T) {
	f := NewFactory()

	a, err := f.Get("Person", "42", 0)
	require.NoError(t, err)
	b, err := f.Get("Person", "42", 0)
	require.NoError(t, err)
	c, err := f.Get("Address", "42", 0)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c, "same address under another type is another object")
	assert.True(t, a.IsPersisted())
	assert.Equal(t, "42", a.ServerID())
	assert.Equal(t, 2, f.Len())
}

func TestGetInternsEphemeral(t *testing.T) {
	f := NewFactory()

	a, err := f.Get("Person", "", 7)
	require.NoError(t, err)
	b, err := f.Get("Person", "", 7)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.True(t, a.IsEphemeral())
	assert.Equal(t, int64(7), a.ClientID())
	assert.Equal(t, ir.StrengthEphemeral, a.Strength())
}

func TestGetRequiresAddress(t *testing.T) {
	f := NewFactory()

	_, err := f.Get("Person", "", 0)
	require.Error(t, err)

	_, err = f.Get("", "1", 0)
	require.Error(t, err)
}

func TestPromoteKeepsKey(t *testing.T) {
	f := NewFactory()
	id, err := f.Get("Person", "", 7)
	require.NoError(t, err)
	key := id.Key()

	f.Promote(id, "42")

	assert.True(t, id.IsPersisted())
	assert.True(t, id.WasEphemeral())
	assert.Equal(t, key, id.Key())
	assert.Equal(t, int64(7), id.ClientID())

	// Both the client number and the new address resolve to the same id.
	byAddress, err := f.Get("Person", "42", 0)
	require.NoError(t, err)
	byClient, err := f.Get("Person", "", 7)
	require.NoError(t, err)
	assert.Same(t, id, byAddress)
	assert.Same(t, id, byClient)

	looked, ok := f.Lookup(key)
	require.True(t, ok)
	assert.Same(t, id, looked)
}

func TestPromoteNonEphemeralIsNoop(t *testing.T) {
	f := NewFactory()
	id, err := f.Get("Person", "1", 0)
	require.NoError(t, err)

	f.Promote(id, "2")

	assert.Equal(t, "1", id.ServerID())
	assert.False(t, id.WasEphemeral())
}

func TestGetWithBothAddressesPromotesKnownEphemeral(t *testing.T) {
	f := NewFactory()
	eph, err := f.Get("Person", "", 3)
	require.NoError(t, err)

	id, err := f.Get("Person", "9", 3)
	require.NoError(t, err)

	assert.Same(t, eph, id)
	assert.True(t, id.WasEphemeral())
	assert.Equal(t, "9", id.ServerID())
}

func TestAllocateSyntheticUnique(t *testing.T) {
	f := NewFactory()
	taken := f.Synthetic("Address", 1)

	a := f.AllocateSynthetic("Address")
	b := f.AllocateSynthetic("Address")

	assert.NotSame(t, taken, a)
	assert.Equal(t, int64(2), a.SyntheticID())
	assert.Equal(t, int64(3), b.SyntheticID())
	assert.True(t, a.IsSynthetic())
	assert.Same(t, a, f.Synthetic("Address", 2))
}

func TestAllocateEphemeralNegative(t *testing.T) {
	f := NewFactory()

	a := f.AllocateEphemeral("Person")
	b := f.AllocateEphemeral("Person")

	assert.Equal(t, int64(-1), a.ClientID())
	assert.Equal(t, int64(-2), b.ClientID())

	found, err := f.Get("Person", "", -1)
	require.NoError(t, err)
	assert.Same(t, a, found)
}

func TestLookupOutOfRange(t *testing.T) {
	f := NewFactory()
	_, ok := f.Lookup(0)
	assert.False(t, ok)
	_, ok = f.Lookup(-1)
	assert.False(t, ok)
}

func TestIDString(t *testing.T) {
	f := NewFactory()
	p, _ := f.Get("Person", "42", 0)
	e, _ := f.Get("Person", "", 7)
	s := f.Synthetic("Address", 2)

	assert.Equal(t, "Person@42", p.String())
	assert.Equal(t, "Person@c7", e.String())
	assert.Equal(t, "Address@s2", s.String())
}

func TestSequence(t *testing.T) {
	up := NewSequence()
	assert.Equal(t, int64(0), up.Current())
	assert.Equal(t, int64(1), up.Next())
	assert.Equal(t, int64(2), up.Next())
	assert.Equal(t, int64(2), up.Current())

	down := NewDescendingSequence()
	assert.Equal(t, int64(-1), down.Next())
}
