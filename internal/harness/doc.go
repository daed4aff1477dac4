// Package harness runs request scenarios against the address book.
//
// A scenario sends a sequence of request payloads through
// processor.ProcessPayload over one SQLite store, checks each response and
// finally asserts on the responses and the stored entities.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	seed: true
//	request_id: fixed-id
//	steps:
//	  - name: create
//	    request:
//	      request_factory: AddressBookFactory
//	      operations:
//	        - type_token: Person
//	          strength: ephemeral
//	          client_id: 1
//	          property_map: { name: "Edsger Dijkstra" }
//	      invocations:
//	        - operation: PersonRequest::persist
//	          parameters: [{ type_token: Person, strength: ephemeral, client_id: 1 }]
//	    expect:
//	      status: [true]
//	      operations: 1
//	assertions:
//	  - type: stored
//	    kind: Person
//	    id: 4
//	    expect: { name: "Edsger Dijkstra" }
//
// Server ids and versions are base64 on the wire: "MQ==" is id 1, "Mg=="
// is id 2 and so on.
//
// # Expect Clauses
//
//   - status: invocation status codes, in order
//   - results: invocation results, compared as canonical JSON
//   - failure: exception type of the general failure
//   - violations: violation paths, in any order
//   - operations: number of write operations
//
// # Assertion Types
//
//   - stored: Loads an entity and verifies its version and payload fields
//   - stored_count: Verifies a kind holds exactly N entities
//   - missing: Verifies an entity is not stored
//   - operation: Verifies a step's response reports a write operation
//
// # Deterministic Testing
//
// Every request in a scenario is stamped with the same fixed request id and
// each scenario gets a fresh in-memory database, so responses are
// byte-identical across runs and can be compared with golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/create_person.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
