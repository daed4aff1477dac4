package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rfsync/internal/ir"
)

func countStep(expect *ExpectClause) Step {
	return Step{
		Name: "count",
		Request: map[string]any{
			"request_factory": "AddressBookFactory",
			"invocations": []any{
				map[string]any{"operation": "PersonRequest::count"},
			},
		},
		Expect: expect,
	}
}

func TestScenarioFiles(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Steps, len(scenario.Steps))
		})
	}
}

func TestRun_ExpectMismatch(t *testing.T) {
	zero := 0
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "every expectation is wrong",
		Seed:        true,
		Steps: []Step{countStep(&ExpectClause{
			Status:     []bool{false},
			Results:    []any{99},
			Failure:    "CLIENT_VERSION",
			Violations: []string{"name"},
			Operations: &zero,
		})},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "count: expected general failure CLIENT_VERSION, got none")
	assert.Contains(t, result.Errors[1], "expected status [false], got [true]")
	assert.Contains(t, result.Errors[2], "result 0: expected 99, got 3")
	assert.Contains(t, result.Errors[3], "expected violations at [name], got []")
}

func TestRun_AssertionFailures(t *testing.T) {
	scenario := &Scenario{
		Name:        "assertions",
		Description: "every assertion is wrong",
		Seed:        true,
		Steps:       []Step{countStep(nil)},
		Assertions: []Assertion{
			{Type: AssertStored, Kind: "Person", ID: 1, Expect: map[string]any{"name": "Nobody"}},
			{Type: AssertStored, Kind: "Person", ID: 1, Version: 7},
			{Type: AssertStored, Kind: "Person", ID: 1, Expect: map[string]any{"nickname": "Ada"}},
			{Type: AssertStored, Kind: "Person", ID: 9, Version: 1},
			{Type: AssertStoredCount, Kind: "Person", Count: 1},
			{Type: AssertMissing, Kind: "Person", ID: 1},
			{Type: AssertOperation, Step: 0, Token: "Person", ServerID: "MQ==", Write: "UPDATE"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], `expected "Nobody", got "Ada Lovelace"`)
	assert.Contains(t, result.Errors[1], "Person 1 at version 7")
	assert.Contains(t, result.Errors[2], `field "nickname" to exist`)
	assert.Contains(t, result.Errors[3], "not found")
	assert.Contains(t, result.Errors[4], "1 Person entities")
	assert.Contains(t, result.Errors[5], "Person 1 not to be stored")
	assert.Contains(t, result.Errors[6], "not found in response")
}

func TestRun_RawPayload(t *testing.T) {
	scenario := &Scenario{
		Name:        "raw",
		Description: "a raw JSON payload",
		Steps: []Step{{
			Payload: `{"request_factory":"AddressBookFactory","invocations":[{"operation":"PersonRequest::count"}]}`,
			Expect:  &ExpectClause{Results: []any{0}},
		}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "step 0", result.Steps[0].Name)
}

func TestRun_MalformedPayloadStops(t *testing.T) {
	scenario := &Scenario{
		Name:        "malformed",
		Description: "undecodable JSON is a server error",
		Steps:       []Step{{Payload: `{"request_factory":`}, countStep(nil)},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 0: server error")
}

func TestRun_WithDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.db")
	scenario := &Scenario{
		Name:        "file",
		Description: "seeding an existing file is idempotent",
		Seed:        true,
		Steps:       []Step{countStep(&ExpectClause{Results: []any{3}})},
	}

	for range 2 {
		result, err := Run(scenario, WithDatabase(path))
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
	}
}

func TestConvertToIRValue(t *testing.T) {
	v, err := convertToIRValue(map[string]any{
		"s": "x",
		"i": 2,
		"f": 1.5,
		"w": 3.0,
		"b": true,
		"n": nil,
		"a": []any{1, "two"},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{
		"s": ir.IRString("x"),
		"i": ir.IRInt(2),
		"f": ir.IRFloat(1.5),
		"w": ir.IRInt(3),
		"b": ir.IRBool(true),
		"n": ir.IRNull{},
		"a": ir.IRArray{ir.IRInt(1), ir.IRString("two")},
	}, v)

	_, err = convertToIRValue(struct{}{})
	require.Error(t, err)
}
