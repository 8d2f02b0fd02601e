package harness

import (
	"github.com/roach88/scp/internal/interp"
)

// TraceEvent is one finished operator in a scenario trace.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	Operator string `json:"operator"`
	Outcome  string `json:"outcome"`
	Code     string `json:"code,omitempty"`
}

func traceEvent(s interp.Step) TraceEvent {
	return TraceEvent{
		Seq:      s.Seq,
		Kind:     s.Kind.String(),
		Operator: s.Operator,
		Outcome:  s.Outcome.String(),
		Code:     string(s.Code),
	}
}

// StepResult is the outcome of one flow step.
type StepResult struct {
	Program string `json:"program"`
	RunID   string `json:"run_id"`
	State   string `json:"state"`
	Output  string `json:"output,omitempty"`
	// Lines holds the formatted trace lines of this step.
	Lines []string `json:"lines"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every finished operator across all flow steps.
	Trace []TraceEvent `json:"trace"`

	// Steps holds one entry per flow step.
	Steps []StepResult `json:"steps"`

	// Output is everything printed by the programs.
	Output string `json:"output,omitempty"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
