package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/rfsync/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Steps    []StepResult // Responses for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Steps) > 0 {
		fmt.Fprintf(&buf, "\nResponses:\n")
		for i, step := range e.Steps {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", i, step.Name, step.Payload)
		}
	}

	return buf.String()
}

// AssertionContext provides what store assertions need.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions runs every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertStored:
			err = assertStored(actx, a)
		case AssertStoredCount:
			err = assertStoredCount(actx, a)
		case AssertMissing:
			err = assertMissing(actx, a)
		case AssertOperation:
			err = assertOperation(result.Steps, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

// assertStored loads one entity and checks its version and payload fields
// (subset semantics).
func assertStored(actx *AssertionContext, a Assertion) error {
	rec, found, err := actx.Store.Load(actx.Ctx, a.Kind, a.ID)
	if err != nil {
		return fmt.Errorf("load %s %d: %w", a.Kind, a.ID, err)
	}
	if !found {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("%s %d to be stored", a.Kind, a.ID),
			Actual:   "not found",
		}
	}

	if a.Version != 0 && rec.Version != a.Version {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("%s %d at version %d", a.Kind, a.ID, a.Version),
			Actual:   fmt.Sprintf("version %d", rec.Version),
		}
	}

	for _, key := range sortedKeys(a.Expect) {
		actual, exists := rec.Payload[key]
		if !exists {
			return &AssertionError{
				Type:     AssertStored,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields present: %v", rec.Payload.SortedKeys()),
			}
		}
		if msg := compareValue(a.Expect[key], actual); msg != "" {
			return &AssertionError{
				Type:     AssertStored,
				Expected: fmt.Sprintf("field %q to match", key),
				Actual:   msg,
			}
		}
	}

	return nil
}

// assertStoredCount checks the number of stored entities of one kind.
func assertStoredCount(actx *AssertionContext, a Assertion) error {
	recs, err := actx.Store.List(actx.Ctx, a.Kind)
	if err != nil {
		return fmt.Errorf("list %s: %w", a.Kind, err)
	}
	if len(recs) != a.Count {
		return &AssertionError{
			Type:     AssertStoredCount,
			Expected: fmt.Sprintf("%d %s entities", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d entities", len(recs)),
		}
	}
	return nil
}

// assertMissing checks that an entity is not stored.
func assertMissing(actx *AssertionContext, a Assertion) error {
	_, found, err := actx.Store.Load(actx.Ctx, a.Kind, a.ID)
	if err != nil {
		return fmt.Errorf("load %s %d: %w", a.Kind, a.ID, err)
	}
	if found {
		return &AssertionError{
			Type:     AssertMissing,
			Expected: fmt.Sprintf("%s %d not to be stored", a.Kind, a.ID),
			Actual:   "found",
		}
	}
	return nil
}

// assertOperation checks that a step's response reports the given write
// operation for one object.
func assertOperation(steps []StepResult, a Assertion) error {
	if a.Step >= len(steps) {
		return &AssertionError{
			Type:     AssertOperation,
			Expected: fmt.Sprintf("a response for step %d", a.Step),
			Actual:   fmt.Sprintf("%d responses", len(steps)),
			Steps:    steps,
		}
	}

	for _, op := range steps[a.Step].Response.Operations {
		if op.TypeToken != a.Token || op.ServerID != a.ServerID {
			continue
		}
		if string(op.Operation) != a.Write {
			return &AssertionError{
				Type:     AssertOperation,
				Expected: fmt.Sprintf("%s %s written as %q", a.Token, a.ServerID, a.Write),
				Actual:   fmt.Sprintf("written as %q", op.Operation),
				Steps:    steps,
			}
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertOperation,
		Expected: fmt.Sprintf("an operation for %s %s", a.Token, a.ServerID),
		Actual:   "not found in response",
		Steps:    steps,
	}
}

// sortedKeys returns map keys in order, for deterministic error messages.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
