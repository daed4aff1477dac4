package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrengthText(t *testing.T) {
	for _, s := range []Strength{StrengthPersisted, StrengthEphemeral, StrengthSynthetic} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var parsed Strength
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, s, parsed)
	}

	_, err := ParseStrength("durable")
	require.Error(t, err)

	s, err := ParseStrength("")
	require.NoError(t, err)
	assert.Equal(t, StrengthPersisted, s)
}

func TestIDMessageIRRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  IDMessage
		ir   IRObject
	}{
		{
			name: "persisted",
			msg:  IDMessage{TypeToken: "Person", ServerID: "MQ=="},
			ir:   IRObject{"type_token": IRString("Person"), "server_id": IRString("MQ==")},
		},
		{
			name: "ephemeral",
			msg:  IDMessage{TypeToken: "Person", Strength: StrengthEphemeral, ClientID: 7},
			ir: IRObject{
				"type_token": IRString("Person"),
				"strength":   IRString("ephemeral"),
				"client_id":  IRInt(7),
			},
		},
		{
			name: "synthetic",
			msg:  IDMessage{TypeToken: "Address", Strength: StrengthSynthetic, SyntheticID: 3},
			ir: IRObject{
				"type_token":   IRString("Address"),
				"strength":     IRString("synthetic"),
				"synthetic_id": IRInt(3),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ir, tt.msg.ToIR())

			decoded, err := IDMessageFromIR(tt.ir)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestIDMessageFromIRErrors(t *testing.T) {
	tests := []struct {
		name  string
		input IRValue
		want  string
	}{
		{"not an object", IRString("Person"), "expected object"},
		{"missing token", IRObject{"client_id": IRInt(1)}, "missing type_token"},
		{"bad strength", IRObject{"type_token": IRString("P"), "strength": IRString("x")}, "unknown strength"},
		{"bad client id", IRObject{"type_token": IRString("P"), "client_id": IRString("1")}, "client_id"},
		{"bad server id", IRObject{"type_token": IRString("P"), "server_id": IRInt(1)}, "server_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IDMessageFromIR(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeRequest(t *testing.T) {
	payload := `{
		"request_factory": "addressbook",
		"operations": [
			{"type_token": "Person", "strength": "ephemeral", "client_id": 7,
			 "property_map": {"name": "Ada", "score": 1.5}}
		],
		"invocations": [
			{"operation": "PersonRequest::persist",
			 "parameters": [{"type_token": "Person", "strength": "ephemeral", "client_id": 7}],
			 "property_refs": ["address"]}
		]
	}`

	req, err := DecodeRequest([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "addressbook", req.RequestFactory)
	require.Len(t, req.Operations, 1)
	op := req.Operations[0]
	assert.Equal(t, StrengthEphemeral, op.Strength)
	assert.Equal(t, int64(7), op.ClientID)
	assert.Equal(t, IRObject{"name": IRString("Ada"), "score": IRFloat(1.5)}, op.PropertyMap)

	require.Len(t, req.Invocations, 1)
	inv := req.Invocations[0]
	assert.Equal(t, "PersonRequest::persist", inv.Operation)
	assert.Equal(t, []string{"address"}, inv.PropertyRefs)
	require.Len(t, inv.Parameters, 1)
	ref, err := IDMessageFromIR(inv.Parameters[0])
	require.NoError(t, err)
	assert.Equal(t, int64(7), ref.ClientID)
}

func TestDecodeRequestMalformed(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"operations": 3}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request")
}

func TestEncodeResponseOmitsEmptySections(t *testing.T) {
	data, err := EncodeResponse(ResponseMessage{
		InvocationResults: IRArray{IRString("ok")},
		StatusCodes:       []bool{true},
		Operations: []OperationMessage{{
			IDMessage: IDMessage{TypeToken: "Person", ServerID: "MQ==", ClientID: 7},
			Operation: WritePersist,
			Version:   "MQ==",
		}},
	})
	require.NoError(t, err)

	expected := `{"invocation_results":["ok"],"status_codes":[true],"operations":[` +
		`{"type_token":"Person","server_id":"MQ==","client_id":7,"operation":"PERSIST","version":"MQ=="}]}`
	assert.JSONEq(t, expected, string(data))
	assert.NotContains(t, string(data), "violations")
	assert.NotContains(t, string(data), "general_failure")
}

func TestFailureMessageToIR(t *testing.T) {
	f := FailureMessage{ExceptionType: "user", Message: "boom", Fatal: true}
	assert.Equal(t, IRObject{
		"exception_type": IRString("user"),
		"message":        IRString("boom"),
		"fatal":          IRBool(true),
	}, f.ToIR())

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"exception_type":"user","message":"boom","fatal":true}`, string(data))
}
