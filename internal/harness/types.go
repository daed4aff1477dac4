package harness

import "github.com/roach88/rfsync/internal/ir"

// StepResult is the outcome of one request in a scenario.
type StepResult struct {
	// Name is the step's name, or "step N" when the scenario left it empty.
	Name string `json:"name"`

	// Payload is the encoded response exactly as a client would receive it.
	Payload []byte `json:"-"`

	// Response is Payload decoded, for assertions.
	Response ir.ResponseMessage `json:"response"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Steps holds one entry per request, in order.
	// Used for assertions and golden comparison.
	Steps []StepResult `json:"steps"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records a processed request.
func (r *Result) AddStep(name string, payload []byte, resp ir.ResponseMessage) {
	r.Steps = append(r.Steps, StepResult{
		Name:     name,
		Payload:  payload,
		Response: resp,
	})
}
