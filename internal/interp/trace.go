package interp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/scp/internal/scp"
)

// Step records one finished operator activation.
type Step struct {
	Seq      int64
	Kind     scp.OperatorKind
	Operator string
	Outcome  Outcome
	Code     scp.ErrorCode
}

func (s Step) String() string {
	line := fmt.Sprintf("%03d %-14s %-12s %s", s.Seq, s.Kind, s.Operator, s.Outcome)
	if s.Code != "" {
		line += " " + string(s.Code)
	}
	return strings.TrimRight(line, " ")
}

// Trace collects steps in completion order.
type Trace struct {
	mu    sync.Mutex
	steps []Step
}

func NewTrace() *Trace { return &Trace{} }

func (t *Trace) Record(s Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, s)
}

// Steps returns a copy of the recorded steps.
func (t *Trace) Steps() []Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Step(nil), t.steps...)
}

// Format renders one step per line.
func (t *Trace) Format() string {
	var b strings.Builder
	for _, s := range t.Steps() {
		b.WriteString(s.String())
		b.WriteByte('\n')
	}
	return b.String()
}
