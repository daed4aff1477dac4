package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of requests sent to the address book, with
// expectations on each response and assertions on the final store.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed stores the sample people before the first step.
	Seed bool `yaml:"seed,omitempty"`

	// RequestID is the fixed request id stamped on every request's log
	// records. Defaults to testutil's "test-request".
	RequestID string `yaml:"request_id,omitempty"`

	// Steps are processed in order against one store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the responses and the final store.
	// Supported types: stored, stored_count, missing, operation
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one request payload. Exactly one of Request and Payload is set.
type Step struct {
	// Name labels the step in errors and golden snapshots.
	Name string `yaml:"name,omitempty"`

	// Request is the request message written as YAML, using the wire
	// field names (request_factory, operations, invocations).
	Request map[string]any `yaml:"request,omitempty"`

	// Payload is a raw JSON request, sent as is. Use it for payloads the
	// YAML form cannot express, such as malformed JSON.
	Payload string `yaml:"payload,omitempty"`

	// Expect checks the response. If nil, any response is accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected response contents. Only the fields that
// are set are checked.
type ExpectClause struct {
	// Status is the expected status code of every invocation.
	Status []bool `yaml:"status,omitempty"`

	// Results are the expected invocation results, compared as canonical
	// JSON. Ids are written as {type_token, server_id} objects.
	Results []any `yaml:"results,omitempty"`

	// Failure is the expected exception type of the general failure.
	Failure string `yaml:"failure,omitempty"`

	// Violations are the expected violation paths, in any order.
	Violations []string `yaml:"violations,omitempty"`

	// Operations is the expected number of write operations.
	Operations *int `yaml:"operations,omitempty"`
}

// Assertion validates a response or the final store.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stored": Load an entity and verify payload fields and version
	// - "stored_count": Check a kind holds exactly N entities
	// - "missing": Check an entity is not stored
	// - "operation": Check a step's response reports a write operation
	Type string `yaml:"type"`

	// Kind is the entity kind (used by stored, stored_count, missing).
	Kind string `yaml:"kind,omitempty"`

	// ID is the entity id (used by stored, missing).
	ID int64 `yaml:"id,omitempty"`

	// Version is the expected entity version (used by stored). Zero skips
	// the check.
	Version int64 `yaml:"version,omitempty"`

	// Expect contains expected payload fields (used by stored).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of entities (used by stored_count).
	Count int `yaml:"count,omitempty"`

	// Step is the zero-based step index (used by operation).
	Step int `yaml:"step,omitempty"`

	// Token and ServerID identify the object (used by operation).
	Token    string `yaml:"token,omitempty"`
	ServerID string `yaml:"server_id,omitempty"`

	// Write is the expected write operation: PERSIST, UPDATE, DELETE or
	// empty for none (used by operation).
	Write string `yaml:"write,omitempty"`
}

// Assertion type constants.
const (
	AssertStored      = "stored"
	AssertStoredCount = "stored_count"
	AssertMissing     = "missing"
	AssertOperation   = "operation"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch {
		case step.Request == nil && step.Payload == "":
			return fmt.Errorf("steps[%d]: request or payload is required", i)
		case step.Request != nil && step.Payload != "":
			return fmt.Errorf("steps[%d]: request and payload are mutually exclusive", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStored:
		if a.Kind == "" || a.ID == 0 {
			return fmt.Errorf("assertions[%d]: kind and id are required for stored", index)
		}
		if len(a.Expect) == 0 && a.Version == 0 {
			return fmt.Errorf("assertions[%d]: expect or version is required for stored", index)
		}
	case AssertStoredCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for stored_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for stored_count", index)
		}
	case AssertMissing:
		if a.Kind == "" || a.ID == 0 {
			return fmt.Errorf("assertions[%d]: kind and id are required for missing", index)
		}
	case AssertOperation:
		if a.Token == "" || a.ServerID == "" {
			return fmt.Errorf("assertions[%d]: token and server_id are required for operation", index)
		}
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, a.Step)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
