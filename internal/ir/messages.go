package ir

import (
	"encoding/json"
	"fmt"
)

// Strength classifies how an object id is addressed.
type Strength int

const (
	// StrengthPersisted ids carry a server-assigned address.
	StrengthPersisted Strength = iota
	// StrengthEphemeral ids carry a client-assigned number, valid for one exchange.
	StrengthEphemeral
	// StrengthSynthetic ids carry a server-assigned number, valid for one response.
	StrengthSynthetic
)

var strengthNames = map[Strength]string{
	StrengthPersisted: "persisted",
	StrengthEphemeral: "ephemeral",
	StrengthSynthetic: "synthetic",
}

func (s Strength) String() string {
	if name, ok := strengthNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strength(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Strength) MarshalText() ([]byte, error) {
	name, ok := strengthNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown strength %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strength) UnmarshalText(text []byte) error {
	parsed, err := ParseStrength(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrength parses a strength name. The empty string is persisted.
func ParseStrength(name string) (Strength, error) {
	if name == "" {
		return StrengthPersisted, nil
	}
	for s, n := range strengthNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown strength %q", name)
}

// WriteOperation is the per-object change reported in a response.
// The zero value is None: nothing persisted to report.
type WriteOperation string

const (
	WriteNone    WriteOperation = ""
	WritePersist WriteOperation = "PERSIST"
	WriteUpdate  WriteOperation = "UPDATE"
	WriteDelete  WriteOperation = "DELETE"
)

// IDMessage addresses one object on the wire.
// Exactly one of ServerID (base64), ClientID or SyntheticID is meaningful,
// selected by Strength. ClientID is also sent alongside ServerID for an
// object that was ephemeral earlier in the same exchange.
type IDMessage struct {
	TypeToken   string   `json:"type_token"`
	Strength    Strength `json:"strength,omitempty"`
	ServerID    string   `json:"server_id,omitempty"`
	ClientID    int64    `json:"client_id,omitempty"`
	SyntheticID int64    `json:"synthetic_id,omitempty"`
}

// ToIR encodes the id as an object value, the form used for proxy
// references inside property maps, parameters and invocation results.
func (m IDMessage) ToIR() IRObject {
	obj := IRObject{"type_token": IRString(m.TypeToken)}
	if m.Strength != StrengthPersisted {
		obj["strength"] = IRString(m.Strength.String())
	}
	if m.ServerID != "" {
		obj["server_id"] = IRString(m.ServerID)
	}
	if m.ClientID != 0 {
		obj["client_id"] = IRInt(m.ClientID)
	}
	if m.SyntheticID != 0 {
		obj["synthetic_id"] = IRInt(m.SyntheticID)
	}
	return obj
}

// IDMessageFromIR decodes an id reference produced by ToIR.
func IDMessageFromIR(v IRValue) (IDMessage, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return IDMessage{}, fmt.Errorf("id reference: expected object, got %T", v)
	}
	var m IDMessage
	token, ok := obj["type_token"].(IRString)
	if !ok || token == "" {
		return IDMessage{}, fmt.Errorf("id reference: missing type_token")
	}
	m.TypeToken = string(token)
	if raw, ok := obj["strength"]; ok {
		name, ok := raw.(IRString)
		if !ok {
			return IDMessage{}, fmt.Errorf("id reference: strength must be a string")
		}
		s, err := ParseStrength(string(name))
		if err != nil {
			return IDMessage{}, fmt.Errorf("id reference: %w", err)
		}
		m.Strength = s
	}
	if raw, ok := obj["server_id"]; ok {
		sid, ok := raw.(IRString)
		if !ok {
			return IDMessage{}, fmt.Errorf("id reference: server_id must be a string")
		}
		m.ServerID = string(sid)
	}
	if raw, ok := obj["client_id"]; ok {
		cid, ok := raw.(IRInt)
		if !ok {
			return IDMessage{}, fmt.Errorf("id reference: client_id must be an integer")
		}
		m.ClientID = int64(cid)
	}
	if raw, ok := obj["synthetic_id"]; ok {
		sid, ok := raw.(IRInt)
		if !ok {
			return IDMessage{}, fmt.Errorf("id reference: synthetic_id must be an integer")
		}
		m.SyntheticID = int64(sid)
	}
	return m, nil
}

// OperationMessage carries one object's edit (client to server) or write
// operation (server to client).
type OperationMessage struct {
	IDMessage
	Operation   WriteOperation `json:"operation,omitempty"`
	PropertyMap IRObject       `json:"property_map,omitempty"`
	Version     string         `json:"version,omitempty"`
}

// InvocationMessage names one service call and its encoded arguments.
// For instance operations the receiver is the first parameter.
type InvocationMessage struct {
	Operation    string   `json:"operation"`
	Parameters   IRArray  `json:"parameters,omitempty"`
	PropertyRefs []string `json:"property_refs,omitempty"`
}

// RequestMessage is a decoded client payload.
type RequestMessage struct {
	RequestFactory string              `json:"request_factory,omitempty"`
	Operations     []OperationMessage  `json:"operations,omitempty"`
	Invocations    []InvocationMessage `json:"invocations,omitempty"`
}

func (r RequestMessage) toIRObject() (IRObject, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("request encoded as %T", v)
	}
	return obj, nil
}

// ViolationMessage reports one failed constraint on a tracked object.
type ViolationMessage struct {
	Message         string     `json:"message"`
	MessageTemplate string     `json:"message_template,omitempty"`
	Path            string     `json:"path"`
	RootID          *IDMessage `json:"root_id,omitempty"`
	LeafID          *IDMessage `json:"leaf_id,omitempty"`
}

// FailureMessage describes an error that is safe to show the client.
type FailureMessage struct {
	ExceptionType string `json:"exception_type,omitempty"`
	Message       string `json:"message"`
	StackTrace    string `json:"stack_trace,omitempty"`
	Fatal         bool   `json:"fatal"`
}

// ToIR encodes the failure as the invocation result of a failed call.
func (f FailureMessage) ToIR() IRObject {
	obj := IRObject{
		"message": IRString(f.Message),
		"fatal":   IRBool(f.Fatal),
	}
	if f.ExceptionType != "" {
		obj["exception_type"] = IRString(f.ExceptionType)
	}
	if f.StackTrace != "" {
		obj["stack_trace"] = IRString(f.StackTrace)
	}
	return obj
}

// ResponseMessage is the processor's reply. A response carries either
// Violations or invocation results and operations, never both.
type ResponseMessage struct {
	GeneralFailure    *FailureMessage    `json:"general_failure,omitempty"`
	Violations        []ViolationMessage `json:"violations,omitempty"`
	InvocationResults IRArray            `json:"invocation_results,omitempty"`
	StatusCodes       []bool             `json:"status_codes,omitempty"`
	Operations        []OperationMessage `json:"operations,omitempty"`
}

// DecodeRequest parses a JSON request payload.
func DecodeRequest(data []byte) (RequestMessage, error) {
	var req RequestMessage
	if err := json.Unmarshal(data, &req); err != nil {
		return RequestMessage{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// EncodeResponse renders a response payload. Object keys inside encoded
// values are emitted in canonical order so identical responses are
// byte-identical.
func EncodeResponse(resp ResponseMessage) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// EncodeRequest renders a request payload. Out-of-band values travel in
// this form.
func EncodeRequest(req RequestMessage) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}
