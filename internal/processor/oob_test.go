package processor

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/ir"
	"github.com/roach88/rfsync/internal/service"
	"github.com/roach88/rfsync/internal/testutil"
)

// badge is keyed by a cover value rather than a number.
type badge struct {
	key     *testutil.Cover
	version int64
	label   string
}

// badgeTable extends the library with badges, stored by cover color.
func badgeTable(t *testing.T, badges ...*badge) *domain.Table {
	t.Helper()
	byColor := make(map[string]*badge)
	for _, b := range badges {
		byColor[b.key.Color] = b
	}
	cover := domain.ProxyOf("CoverProxy")
	find := &domain.Method{Name: "findBadge", Static: true, Params: []domain.TypeRef{cover},
		Invoke: func(_ any, args []any) (any, error) {
			c, _ := args[0].(*testutil.Cover)
			if c == nil {
				return nil, nil
			}
			if b, ok := byColor[c.Color]; ok {
				return b, nil
			}
			return nil, nil
		}}

	lib := testutil.NewLibrary()
	table, err := lib.Builder().
		Domain(domain.DomainType{
			Name:   "Badge",
			GoType: reflect.TypeFor[*badge](),
			New:    func() any { return &badge{} },
			IDType: cover,
			Properties: map[string]domain.Accessor{
				"id":      domain.ReadOnly(cover, func(b *badge) *testutil.Cover { return b.key }),
				"version": domain.NonZero(domain.IntType, func(b *badge) int64 { return b.version }),
				"label":   domain.Field(domain.StringType, func(b *badge) string { return b.label }, func(b *badge, v string) { b.label = v }),
			},
			Find: find,
		}).
		Proxy(domain.ProxyType{Token: "Badge", Name: "BadgeProxy", Domain: "Badge", Properties: []domain.Property{
			{Name: "label", Type: domain.StringType},
		}}).
		Service(domain.Service{Name: "Badges", Methods: map[string]*domain.Method{
			"badge": {Name: "badge", Static: true, Params: []domain.TypeRef{domain.StringType}, Return: domain.ProxyOf("BadgeProxy"),
				Invoke: func(_ any, args []any) (any, error) {
					color, _ := args[0].(string)
					return byColor[color], nil
				}},
		}}).
		Context(domain.Context{Name: "BadgeRequest", Service: "Badges"}).
		Operation(domain.Operation{Context: "BadgeRequest", Method: "badge", Params: []domain.TypeRef{domain.StringType}, Return: domain.ProxyOf("BadgeProxy")}).
		Factory("BadgeFactory", "BadgeRequest").
		Build()
	require.NoError(t, err)
	return table
}

func TestOOB_RoundTrip(t *testing.T) {
	p := New(service.New(badgeTable(t)))
	cover := &testutil.Cover{Color: "red", Pages: 3}

	payload, err := p.EncodeOOB([]any{cover})
	require.NoError(t, err)

	again, err := p.EncodeOOB([]any{&testutil.Cover{Color: "red", Pages: 3}})
	require.NoError(t, err)
	assert.Equal(t, payload, again, "equal values flatten to equal payloads")

	req, err := ir.DecodeRequest([]byte(payload))
	require.NoError(t, err)
	require.Len(t, req.Operations, 1)
	assert.Equal(t, ir.StrengthSynthetic, req.Operations[0].Strength)
	assert.Equal(t, ir.IRObject{"color": ir.IRString("red"), "pages": ir.IRInt(3)}, req.Operations[0].PropertyMap)

	got, err := p.DecodeOOB(domain.ProxyOf("CoverProxy"), payload)
	require.NoError(t, err)
	assert.Equal(t, cover, got)
}

func TestOOB_Errors(t *testing.T) {
	p := New(service.New(badgeTable(t)))

	_, err := p.EncodeOOB([]any{&struct{ X int }{}})
	require.Error(t, err)

	_, err = p.DecodeOOB(domain.ProxyOf("CoverProxy"), "nope")
	require.Error(t, err)

	_, err = p.DecodeOOB(domain.ProxyOf("CoverProxy"), `{"invocations":[]}`)
	require.Error(t, err)
}

func TestProcess_CompositeIDs(t *testing.T) {
	red := &badge{key: &testutil.Cover{Color: "red", Pages: 1}, version: 1, label: "first"}
	p := New(service.New(badgeTable(t, red)))

	lookup := ir.InvocationMessage{Operation: "BadgeRequest::badge", Parameters: ir.IRArray{ir.IRString("red")}}

	resp, err := p.Process(ir.RequestMessage{RequestFactory: "BadgeFactory", Invocations: []ir.InvocationMessage{lookup}})
	require.NoError(t, err)
	require.Len(t, resp.Operations, 1)
	op := resp.Operations[0]
	assert.Equal(t, ir.WriteUpdate, op.Operation)
	assert.Equal(t, ir.IRString("first"), op.PropertyMap["label"])
	require.NotEmpty(t, op.ServerID)

	// The server id round-trips: the client edits the badge by the address
	// it was sent.
	edit := ir.RequestMessage{
		RequestFactory: "BadgeFactory",
		Operations: []ir.OperationMessage{{
			IDMessage:   ir.IDMessage{TypeToken: "Badge", ServerID: op.ServerID},
			Version:     op.Version,
			PropertyMap: ir.IRObject{"label": ir.IRString("second")},
		}},
	}
	resp, err = p.Process(edit)
	require.NoError(t, err)
	assert.Equal(t, "second", red.label)
	assert.Empty(t, resp.Operations, "unchanged version and not in the response")

	resp, err = p.Process(ir.RequestMessage{
		RequestFactory: "BadgeFactory",
		Operations:     edit.Operations,
		Invocations:    []ir.InvocationMessage{lookup},
	})
	require.NoError(t, err)
	require.Len(t, resp.Operations, 1)
	assert.Equal(t, op.ServerID, resp.Operations[0].ServerID)
	assert.Equal(t, ir.IDMessage{TypeToken: "Badge", ServerID: op.ServerID}.ToIR(), resp.InvocationResults[0])
}
