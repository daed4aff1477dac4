package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/rfsync/internal/demo"
	"github.com/roach88/rfsync/internal/ir"
	"github.com/roach88/rfsync/internal/processor"
	"github.com/roach88/rfsync/internal/store"
	"github.com/roach88/rfsync/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against the address book with a fixed request id.
type Harness struct {
	store  *store.Store
	proc   *processor.Processor
	logger *slog.Logger
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
	dbPath string
}

// WithLogger sets the logger for harness progress records.
// Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDatabase runs the scenario against the SQLite file at path instead
// of a fresh in-memory database.
func WithDatabase(path string) Option {
	return func(o *options) {
		o.dbPath = path
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Open the store and seed it if asked
// 2. Send every step's payload through ProcessPayload
// 3. Check each step's expect clause
// 4. Evaluate assertions against the responses and the final store
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		dbPath: ":memory:",
	}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(o.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if scenario.Seed {
		if err := demo.Seed(ctx, st); err != nil {
			return nil, fmt.Errorf("failed to seed store: %w", err)
		}
	}

	proc, err := demo.New(st, processor.WithRequestIDs(testutil.NewFixedRequestIDs(scenario.RequestID)))
	if err != nil {
		return nil, fmt.Errorf("failed to build processor: %w", err)
	}

	h := &Harness{
		store:  st,
		proc:   proc,
		logger: o.logger,
	}

	result := NewResult()
	if err := h.executeSteps(scenario.Steps, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps sends every step and checks its expect clause.
//
// An unexpected server error stops the scenario: the transport would have
// answered it with a generic error and there is no response to check.
func (h *Harness) executeSteps(steps []Step, result *Result) error {
	for i, step := range steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step %d", i)
		}

		payload, err := requestPayload(step)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		out, err := h.proc.ProcessPayload(payload)
		if err != nil {
			return fmt.Errorf("%s: server error: %w", name, err)
		}

		var resp ir.ResponseMessage
		if err := json.Unmarshal(out, &resp); err != nil {
			return fmt.Errorf("%s: decode response: %w", name, err)
		}
		result.AddStep(name, out, resp)

		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, resp) {
				result.AddError(fmt.Sprintf("%s: %s", name, msg))
			}
		}

		h.logger.Info("step completed",
			"step", i,
			"name", name,
			"payload_hash", ir.PayloadHash(payload),
			"operations", len(resp.Operations),
			"violations", len(resp.Violations),
		)
	}
	return nil
}

// requestPayload renders a step's request as JSON.
func requestPayload(step Step) ([]byte, error) {
	if step.Payload != "" {
		return []byte(step.Payload), nil
	}
	req, err := convertToIRValue(step.Request)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	return ir.MarshalCanonical(req)
}

// checkExpect compares a response against an expect clause and returns
// one message per mismatch.
func checkExpect(e *ExpectClause, resp ir.ResponseMessage) []string {
	var errs []string

	if e.Failure != "" {
		switch {
		case resp.GeneralFailure == nil:
			errs = append(errs, fmt.Sprintf("expected general failure %s, got none", e.Failure))
		case resp.GeneralFailure.ExceptionType != e.Failure:
			errs = append(errs, fmt.Sprintf("expected general failure %s, got %s (%s)",
				e.Failure, resp.GeneralFailure.ExceptionType, resp.GeneralFailure.Message))
		}
	} else if resp.GeneralFailure != nil {
		errs = append(errs, fmt.Sprintf("unexpected general failure %s: %s",
			resp.GeneralFailure.ExceptionType, resp.GeneralFailure.Message))
	}

	if e.Status != nil && !slices.Equal(e.Status, resp.StatusCodes) {
		errs = append(errs, fmt.Sprintf("expected status %v, got %v", e.Status, resp.StatusCodes))
	}

	if e.Results != nil {
		if len(e.Results) != len(resp.InvocationResults) {
			errs = append(errs, fmt.Sprintf("expected %d results, got %d", len(e.Results), len(resp.InvocationResults)))
		} else {
			for i, want := range e.Results {
				if msg := compareValue(want, resp.InvocationResults[i]); msg != "" {
					errs = append(errs, fmt.Sprintf("result %d: %s", i, msg))
				}
			}
		}
	}

	if e.Violations != nil {
		paths := make([]string, len(resp.Violations))
		for i, v := range resp.Violations {
			paths[i] = v.Path
		}
		want := slices.Sorted(slices.Values(e.Violations))
		slices.Sort(paths)
		if !slices.Equal(want, paths) {
			errs = append(errs, fmt.Sprintf("expected violations at %v, got %v", want, paths))
		}
	}

	if e.Operations != nil && *e.Operations != len(resp.Operations) {
		errs = append(errs, fmt.Sprintf("expected %d operations, got %d", *e.Operations, len(resp.Operations)))
	}

	return errs
}

// compareValue compares an expected YAML value with an actual value by
// their canonical JSON. It returns "" when they match.
func compareValue(want any, got ir.IRValue) string {
	expected, err := convertToIRValue(want)
	if err != nil {
		return err.Error()
	}
	wantJSON, err := ir.MarshalCanonical(expected)
	if err != nil {
		return err.Error()
	}
	gotJSON, err := ir.MarshalCanonical(got)
	if err != nil {
		return err.Error()
	}
	if string(wantJSON) != string(gotJSON) {
		return fmt.Sprintf("expected %s, got %s", wantJSON, gotJSON)
	}
	return ""
}

// convertToIRValue converts a YAML-parsed value to an IRValue.
// YAML null becomes IRNull.
func convertToIRValue(val any) (ir.IRValue, error) {
	switch v := val.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(v), nil
	case int:
		return ir.IRInt(int64(v)), nil
	case int64:
		return ir.IRInt(v), nil
	case float64:
		if v == float64(int64(v)) {
			return ir.IRInt(int64(v)), nil
		}
		return ir.IRFloat(v), nil
	case bool:
		return ir.IRBool(v), nil
	case []any:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(ir.IRObject, len(v))
		for key, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			obj[key] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
