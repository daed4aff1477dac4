package processor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rfsync/internal/domain"
	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/graph"
	"github.com/roach88/rfsync/internal/ir"
	"github.com/roach88/rfsync/internal/service"
	"github.com/roach88/rfsync/internal/testutil"
)

func newProcessor(t *testing.T, opts ...service.Option) (*testutil.Library, *Processor) {
	t.Helper()
	lib := testutil.NewLibrary()
	return lib, New(service.New(lib.Table, opts...))
}

func ref(token, serverID string) ir.IRObject {
	return ir.IDMessage{TypeToken: token, ServerID: graph.ToBase64(serverID)}.ToIR()
}

func ephRef(token string, clientID int64) ir.IRObject {
	return ir.IDMessage{TypeToken: token, Strength: ir.StrengthEphemeral, ClientID: clientID}.ToIR()
}

func call(op string, refs []string, params ...ir.IRValue) ir.InvocationMessage {
	return ir.InvocationMessage{Operation: op, Parameters: params, PropertyRefs: refs}
}

func request(ops []ir.OperationMessage, calls ...ir.InvocationMessage) ir.RequestMessage {
	return ir.RequestMessage{RequestFactory: testutil.LibraryFactory, Operations: ops, Invocations: calls}
}

func TestProcess_Envelope(t *testing.T) {
	_, p := newProcessor(t)

	_, err := p.Process(ir.RequestMessage{})
	require.Error(t, err)
	re, ok := fault.AsReportable(err)
	require.True(t, ok)
	assert.Equal(t, fault.CodeClientVersion, re.Code)

	_, err = p.Process(ir.RequestMessage{RequestFactory: "Elsewhere"})
	require.Error(t, err)
	assert.True(t, fault.IsUnexpected(err))
	assert.Equal(t, fault.CodeEnvelope, fault.CodeOf(err))
}

func TestProcessPayload(t *testing.T) {
	lib, p := newProcessor(t)
	lib.AddAuthor("Ada")

	out, err := p.ProcessPayload([]byte(`{}`))
	require.NoError(t, err)
	var resp ir.ResponseMessage
	require.NoError(t, json.Unmarshal(out, &resp))
	require.NotNil(t, resp.GeneralFailure)
	assert.Equal(t, "CLIENT_VERSION", resp.GeneralFailure.ExceptionType)
	assert.Equal(t, "Server Error: The client payload version is out of sync with the server", resp.GeneralFailure.Message)
	assert.True(t, resp.GeneralFailure.Fatal)

	_, err = p.ProcessPayload([]byte(`{"request_factory": "Elsewhere"}`))
	assert.True(t, fault.IsUnexpected(err))

	_, err = p.ProcessPayload([]byte(`not json`))
	assert.Equal(t, fault.CodeEnvelope, fault.CodeOf(err))

	out, err = p.ProcessPayload([]byte(`{"request_factory":"LibraryFactory","invocations":[{"operation":"CatalogRequest::author","parameters":[1]}]}`))
	require.NoError(t, err)
	resp = ir.ResponseMessage{}
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, []bool{true}, resp.StatusCodes)
	require.Len(t, resp.Operations, 1)
	assert.Equal(t, ir.WriteUpdate, resp.Operations[0].Operation)
}

func TestProcess_InvocationResultsAndUpdates(t *testing.T) {
	lib, p := newProcessor(t)
	ada := lib.AddAuthor("Ada")
	lib.AddBook("Notes", ada)

	resp, err := p.Process(request(nil, call("CatalogRequest::authors", []string{"books"})))
	require.NoError(t, err)

	assert.Empty(t, resp.Violations)
	assert.Equal(t, []bool{true}, resp.StatusCodes)
	assert.Equal(t, ir.IRArray{ir.IRArray{ref("Author", "1")}}, resp.InvocationResults)

	require.Len(t, resp.Operations, 2)
	author := resp.Operations[0]
	assert.Equal(t, ir.WriteUpdate, author.Operation)
	assert.Equal(t, "Author", author.TypeToken)
	assert.Equal(t, graph.ToBase64("1"), author.ServerID)
	assert.Equal(t, graph.ToBase64("1"), author.Version)
	assert.Zero(t, author.ClientID)
	assert.Equal(t, ir.IRString("Ada"), author.PropertyMap["name"])
	assert.Equal(t, ir.IRArray{ref("Book", "2")}, author.PropertyMap["books"])
	assert.NotContains(t, author.PropertyMap, "mentor")

	book := resp.Operations[1]
	assert.Equal(t, ir.WriteUpdate, book.Operation)
	assert.Equal(t, ir.IRString("Notes"), book.PropertyMap["title"])
	assert.NotContains(t, book.PropertyMap, "author", "only requested references are sent")
}

func TestProcess_PersistsEphemeralEntity(t *testing.T) {
	_, p := newProcessor(t)

	resp, err := p.Process(request(
		[]ir.OperationMessage{{
			IDMessage:   ir.IDMessage{TypeToken: "Author", Strength: ir.StrengthEphemeral, ClientID: 7},
			PropertyMap: ir.IRObject{"name": ir.IRString("Grace")},
		}},
		call("AuthorRequest::persist", nil, ephRef("Author", 7)),
		call("CatalogRequest::author", nil, ir.IRInt(1)),
	))
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true}, resp.StatusCodes)
	assert.Equal(t, ir.IRNull{}, resp.InvocationResults[0])
	// The stored object is addressed by its new server id from now on.
	assert.Equal(t, ref("Author", "1"), resp.InvocationResults[1])

	require.Len(t, resp.Operations, 1)
	op := resp.Operations[0]
	assert.Equal(t, ir.WritePersist, op.Operation)
	assert.Equal(t, ir.StrengthPersisted, op.Strength)
	assert.Equal(t, graph.ToBase64("1"), op.ServerID)
	assert.Equal(t, int64(7), op.ClientID)
	assert.Equal(t, graph.ToBase64("1"), op.Version)
	assert.Equal(t, ir.IRString("Grace"), op.PropertyMap["name"])
}

func TestProcess_UnstoredEphemeralEntity(t *testing.T) {
	_, p := newProcessor(t)

	resp, err := p.Process(request([]ir.OperationMessage{{
		IDMessage:   ir.IDMessage{TypeToken: "Author", Strength: ir.StrengthEphemeral, ClientID: 3},
		PropertyMap: ir.IRObject{"name": ir.IRString("Draft")},
	}}))
	require.NoError(t, err)

	require.Len(t, resp.Operations, 1)
	op := resp.Operations[0]
	assert.Equal(t, ir.WriteNone, op.Operation)
	assert.Equal(t, ir.StrengthEphemeral, op.Strength)
	assert.Equal(t, int64(3), op.ClientID)
	assert.Empty(t, op.ServerID)
	assert.Empty(t, op.Version)
	assert.Nil(t, op.PropertyMap)
}

func TestProcess_NoOpSuppression(t *testing.T) {
	lib, p := newProcessor(t)
	lib.AddAuthor("Ada")

	current := ir.OperationMessage{
		IDMessage: ir.IDMessage{TypeToken: "Author", ServerID: graph.ToBase64("1")},
		Version:   graph.ToBase64("1"),
	}
	resp, err := p.Process(request([]ir.OperationMessage{current}))
	require.NoError(t, err)
	assert.Empty(t, resp.Operations, "the client already has this version")

	stale := current
	stale.Version = graph.ToBase64("0")
	resp, err = p.Process(request([]ir.OperationMessage{stale}))
	require.NoError(t, err)
	require.Len(t, resp.Operations, 1)
	assert.Equal(t, ir.WriteUpdate, resp.Operations[0].Operation)
	assert.Nil(t, resp.Operations[0].PropertyMap)

	resp, err = p.Process(request([]ir.OperationMessage{current}, call("CatalogRequest::author", nil, ir.IRInt(1))))
	require.NoError(t, err)
	require.Len(t, resp.Operations, 1, "objects in the response are always sent")
	assert.Equal(t, ir.IRString("Ada"), resp.Operations[0].PropertyMap["name"])
}

func TestProcess_AppliesEdits(t *testing.T) {
	lib, p := newProcessor(t)
	ada := lib.AddAuthor("Ada")
	charles := lib.AddAuthor("Charles")

	resp, err := p.Process(request(
		[]ir.OperationMessage{{
			IDMessage: ir.IDMessage{TypeToken: "Author", ServerID: graph.ToBase64("1")},
			Version:   graph.ToBase64("1"),
			PropertyMap: ir.IRObject{
				"name":   ir.IRString("Ada L."),
				"mentor": ref("Author", "2"),
			},
		}},
		call("CatalogRequest::author", []string{"mentor"}, ir.IRInt(1)),
	))
	require.NoError(t, err)

	assert.Equal(t, "Ada L.", ada.Name)
	assert.Same(t, charles, ada.Mentor)

	require.NotEmpty(t, resp.Operations)
	op := resp.Operations[0]
	assert.Equal(t, ir.IRString("Ada L."), op.PropertyMap["name"])
	assert.Equal(t, ref("Author", "2"), op.PropertyMap["mentor"])
}

func TestProcess_Delete(t *testing.T) {
	lib, p := newProcessor(t)
	lib.AddAuthor("Ada")

	resp, err := p.Process(request(nil, call("AuthorRequest::remove", nil, ref("Author", "1"))))
	require.NoError(t, err)

	require.Len(t, resp.Operations, 1)
	op := resp.Operations[0]
	assert.Equal(t, ir.WriteDelete, op.Operation)
	assert.Equal(t, graph.ToBase64("1"), op.ServerID)
	assert.Empty(t, op.Version)
}

func TestProcess_InvocationFailuresAreIsolated(t *testing.T) {
	lib, p := newProcessor(t)
	lib.AddBook("Notes", lib.AddAuthor("Ada"))

	resp, err := p.Process(request(nil,
		call("CatalogRequest::fail", nil, ir.IRString("boom")),
		call("CatalogRequest::count", nil),
		call("CatalogRequest::missing", nil),
		call("CatalogRequest::author", nil),
		call("CatalogRequest::rename", nil, ref("Author", "99"), ir.IRString("x")),
		call("CatalogRequest::describe", nil, ref("Author", "99")),
	))
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, false, false, false, true}, resp.StatusCodes)
	assert.Equal(t, ir.IRObject{
		"exception_type": ir.IRString("*errors.errorString"),
		"message":        ir.IRString("Server Error: boom"),
		"fatal":          ir.IRBool(true),
	}, resp.InvocationResults[0])
	assert.Equal(t, ir.IRInt(1), resp.InvocationResults[1])
	assert.Equal(t, ir.IRString("UNKNOWN_OPERATION"), resp.InvocationResults[2].(ir.IRObject)["exception_type"])
	assert.Equal(t, ir.IRString("BAD_ARGUMENTS"), resp.InvocationResults[3].(ir.IRObject)["exception_type"])
	assert.Equal(t, ir.IRString("DEAD_ENTITY"), resp.InvocationResults[4].(ir.IRObject)["exception_type"])
	assert.Equal(t, ir.IRString("gone"), resp.InvocationResults[5])
}

func TestProcess_FindOperation(t *testing.T) {
	lib, p := newProcessor(t)
	lib.AddAuthor("Ada")

	resp, err := p.Process(request(nil,
		call(service.FindOperation, nil, ref("Author", "1")),
		call(service.FindOperation, nil, ref("Author", "5")),
	))
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true}, resp.StatusCodes)
	assert.Equal(t, ref("Author", "1"), resp.InvocationResults[0])
	assert.Equal(t, ir.IRNull{}, resp.InvocationResults[1])
}

func TestProcess_SyntheticResults(t *testing.T) {
	_, p := newProcessor(t)

	resp, err := p.Process(request(nil, call("CatalogRequest::draft", []string{"cover"}, ir.IRString("Plan"))))
	require.NoError(t, err)

	book := ir.IDMessage{TypeToken: "Book", Strength: ir.StrengthSynthetic, SyntheticID: 1}
	cover := ir.IDMessage{TypeToken: "Cover", Strength: ir.StrengthSynthetic, SyntheticID: 2}
	assert.Equal(t, book.ToIR(), resp.InvocationResults[0])

	require.Len(t, resp.Operations, 2)
	assert.Equal(t, book, resp.Operations[0].IDMessage)
	assert.Equal(t, ir.WriteNone, resp.Operations[0].Operation)
	assert.Equal(t, ir.IRString("Plan"), resp.Operations[0].PropertyMap["title"])
	assert.Equal(t, cover.ToIR(), resp.Operations[0].PropertyMap["cover"])

	assert.Equal(t, cover, resp.Operations[1].IDMessage)
	assert.Equal(t, ir.IRObject{"color": ir.IRString("red"), "pages": ir.IRInt(10)}, resp.Operations[1].PropertyMap)
}

func TestProcess_PropertyRefsGroupedByResult(t *testing.T) {
	lib, p := newProcessor(t)
	ada := lib.AddAuthor("Ada")
	ada.Mentor = lib.AddAuthor("Charles")
	lib.AddBook("Notes", ada)

	resp, err := p.Process(request(nil,
		call("CatalogRequest::author", []string{"mentor"}, ir.IRInt(1)),
		call("CatalogRequest::author", []string{"books"}, ir.IRInt(1)),
	))
	require.NoError(t, err)

	require.NotEmpty(t, resp.Operations)
	props := resp.Operations[0].PropertyMap
	assert.Contains(t, props, "mentor")
	assert.Contains(t, props, "books")
}

// authorRules rejects unnamed authors and authors whose mentor is unnamed.
type authorRules struct{}

func (authorRules) Validate(obj any) ([]domain.Violation, error) {
	a, ok := obj.(*testutil.Author)
	if !ok {
		return nil, nil
	}
	var out []domain.Violation
	if a.Mentor != nil && a.Mentor.Name == "" {
		out = append(out, domain.Violation{Message: "mentor needs a name", Template: "{mentor.required}", Path: "mentor.name", Leaf: a.Mentor})
	}
	if a.Name == "" {
		out = append(out, domain.Violation{Message: "name is required", Template: "{required}", Path: "name"})
	}
	return out, nil
}

func TestProcess_Violations(t *testing.T) {
	lib, p := newProcessor(t, service.WithValidator(authorRules{}))
	lib.AddAuthor("Ada")
	lib.AddAuthor("")

	resp, err := p.Process(request(
		[]ir.OperationMessage{
			{
				IDMessage:   ir.IDMessage{TypeToken: "Author", ServerID: graph.ToBase64("1")},
				PropertyMap: ir.IRObject{"mentor": ref("Author", "2")},
			},
			{
				IDMessage:   ir.IDMessage{TypeToken: "Author", Strength: ir.StrengthEphemeral, ClientID: 4},
				PropertyMap: ir.IRObject{"name": ir.IRString("Grace")},
			},
		},
		call("CatalogRequest::fail", nil, ir.IRString("never runs")),
	))
	require.NoError(t, err)

	assert.Empty(t, resp.InvocationResults)
	assert.Empty(t, resp.StatusCodes)
	assert.Empty(t, resp.Operations)
	require.Len(t, resp.Violations, 2)

	first := resp.Violations[0]
	assert.Equal(t, "mentor.name", first.Path)
	assert.Equal(t, "{mentor.required}", first.MessageTemplate)
	assert.Equal(t, &ir.IDMessage{TypeToken: "Author", ServerID: graph.ToBase64("1")}, first.RootID)
	assert.Equal(t, &ir.IDMessage{TypeToken: "Author", ServerID: graph.ToBase64("2")}, first.LeafID)

	second := resp.Violations[1]
	assert.Equal(t, "name", second.Path)
	assert.Equal(t, &ir.IDMessage{TypeToken: "Author", ServerID: graph.ToBase64("2")}, second.RootID)
	assert.Nil(t, second.LeafID)
}

func TestProcess_ExceptionHandler(t *testing.T) {
	lib := testutil.NewLibrary()
	p := New(service.New(lib.Table), WithExceptionHandler(ExceptionHandlerFunc(func(err error) ir.FailureMessage {
		return ir.FailureMessage{Message: "sorry: " + err.Error()}
	})))

	resp, err := p.Process(request(nil, call("CatalogRequest::fail", nil, ir.IRString("boom"))))
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"message": ir.IRString("sorry: boom"), "fatal": ir.IRBool(false)}, resp.InvocationResults[0])
}

func TestProcess_RequestIDs(t *testing.T) {
	lib := testutil.NewLibrary()
	gen := NewFixedGenerator("req-1")
	p := New(service.New(lib.Table), WithRequestIDs(gen))

	_, err := p.Process(request(nil))
	require.NoError(t, err)
	assert.Panics(t, func() { _, _ = p.Process(request(nil)) })
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
