package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rfsync/internal/testutil"
)

const countPayload = `{"request_factory":"AddressBookFactory","invocations":[{"operation":"PersonRequest::count"}]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProcess_JSON(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "book.db")
	req := writeFile(t, dir, "count.json", countPayload)

	out, err := execute(t, "process", "--db", db, "--seed", "--format", "json", req)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			InvocationResults []int  `json:"invocation_results"`
			StatusCodes       []bool `json:"status_codes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []int{3}, resp.Data.InvocationResults)
	assert.Equal(t, []bool{true}, resp.Data.StatusCodes)
}

func TestProcess_TextFromStdin(t *testing.T) {
	db := filepath.Join(t.TempDir(), "book.db")
	payload := `{"request_factory":"AddressBookFactory","invocations":[{"operation":"PersonRequest::inCity","parameters":["arlington"]}]}`

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(payload))
	cmd.SetArgs([]string{"process", "--db", db, "--seed"})
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "Invocations: 1")
	assert.Contains(t, text, `[0] ok [{"server_id":"Mg==","type_token":"Person"}]`)
	assert.Contains(t, text, "UPDATE  Person Mg== version=MQ==")
}

func TestProcess_RequestIDs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "book.db")
	opts := &ProcessOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    db,
		RequestIDs:  testutil.NewFixedRequestIDs("cli"),
	}
	cmd := NewProcessCommand(opts.RootOptions)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(countPayload))

	require.NoError(t, runProcess(opts, "-", cmd))
	assert.Contains(t, out.String(), "[0] ok 0")
}

func TestProcess_Failures(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode int
		wantOut  string
	}{
		{
			name:     "stale client",
			payload:  `{"invocations":[{"operation":"PersonRequest::count"}]}`,
			wantCode: ExitFailure,
			wantOut:  "General failure [CLIENT_VERSION]",
		},
		{
			name: "violations",
			payload: `{"request_factory":"AddressBookFactory",` +
				`"operations":[{"type_token":"Person","strength":"ephemeral","client_id":1,"property_map":{"name":""}}],` +
				`"invocations":[{"operation":"PersonRequest::persist","parameters":[{"type_token":"Person","strength":"ephemeral","client_id":1}]}]}`,
			wantCode: ExitFailure,
			wantOut:  "Violations: 1\n  name: ",
		},
		{
			name:     "malformed",
			payload:  `{"request_factory":`,
			wantCode: ExitCommandError,
			wantOut:  "Error [E004]: server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			req := writeFile(t, dir, "req.json", tt.payload)

			out, err := execute(t, "process", "--db", filepath.Join(dir, "book.db"), "--seed", req)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestProcess_MissingFile(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "process", "--db", filepath.Join(dir, "book.db"), filepath.Join(dir, "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "failed to read request")
}

func TestProcess_RequiresDB(t *testing.T) {
	_, err := execute(t, "process", "req.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

func TestCheck_Text(t *testing.T) {
	out, err := execute(t, "check")
	require.NoError(t, err)

	assert.Contains(t, out, "Factory: AddressBookFactory (PersonRequest)")
	assert.Contains(t, out, "PersonProxy [entity, token Person] -> Person")
	assert.Contains(t, out, "AddressProxy [value, token Address] -> Address")
	assert.Contains(t, out, "PersonProxy.PersonRequest::persist() void")
	assert.Contains(t, out, "PersonRequest::inCity(string)")
	assert.Contains(t, out, "Constrained types: Person")
	assert.Contains(t, out, "Address book is consistent")
}

func TestCheck_JSON(t *testing.T) {
	out, err := execute(t, "check", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "AddressBookFactory", resp.Data.Factory)
	assert.Len(t, resp.Data.Proxies, 2)
	assert.Len(t, resp.Data.Operations, 6)
	assert.Equal(t, []string{"Person"}, resp.Data.Constrained)
}

func TestScenario_Directory(t *testing.T) {
	out, err := execute(t, "scenario", "../harness/testdata/scenarios")
	require.NoError(t, err, out)

	assert.Contains(t, out, "\u2713 count_people (golden match)")
	assert.Contains(t, out, "\u2713 stale_client (golden match)")
	assert.Contains(t, out, "\u2713 create_person\n")
	assert.Contains(t, out, "0 failed")
	assert.NotContains(t, out, "[0] {", "responses are printed for single scenarios only")
}

func TestScenario_SingleWithFilter(t *testing.T) {
	out, err := execute(t, "scenario", "../harness/testdata/scenarios", "--filter", "create_*", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data ScenarioRunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	sr := resp.Data.Scenarios[0]
	assert.Equal(t, "create_person", sr.Name)
	assert.True(t, sr.Pass)
	assert.Len(t, sr.Responses, 2)
}

func TestScenario_UpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scenarios/count.yaml", `
name: count_empty
description: "counts an empty book"
steps:
  - request:
      request_factory: AddressBookFactory
      invocations: [{operation: "PersonRequest::count"}]
`)
	scenarios := filepath.Join(dir, "scenarios")

	out, err := execute(t, "scenario", "--update", scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "count_empty (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "count_empty.golden"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"count_empty","steps":[{"name":"step 0","response":{"invocation_results":[0],"status_codes":[true]}}]}`,
		string(golden))

	out, err = execute(t, "scenario", scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "count_empty (golden match)")

	writeFile(t, dir, "golden/count_empty.golden", "{}")
	out, err = execute(t, "scenario", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "golden mismatch")
}

func TestScenario_Failures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")
	writeFile(t, dir, "wrong.yaml", `
name: wrong
description: "expects people that were never seeded"
steps:
  - request:
      request_factory: AddressBookFactory
      invocations: [{operation: "PersonRequest::count"}]
    expect:
      results: [3]
`)

	out, err := execute(t, "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "\u2717 wrong")
	assert.Contains(t, out, "result 0: expected 3, got 0")
	assert.Contains(t, out, "0 passed, 2 failed, 2 total")

	_, err = execute(t, "scenario", filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
