package interp

import (
	"fmt"
	"sync"

	"github.com/roach88/scp/internal/graph"
)

// DefaultMaxSteps bounds the operators one process may execute.
const DefaultMaxSteps = 10000

// StepsExceededError is reported when a process runs past its step quota.
type StepsExceededError struct {
	Process graph.Handle
	Steps   int
	Limit   int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("process %s exceeded max steps (%d > %d)", e.Process, e.Steps, e.Limit)
}

// quotas counts executed operators per process.
type quotas struct {
	mu    sync.Mutex
	limit int
	steps map[graph.Handle]int
}

func newQuotas(limit int) *quotas {
	return &quotas{limit: limit, steps: make(map[graph.Handle]int)}
}

// Check counts one step for process and fails once the limit is passed.
func (q *quotas) Check(process graph.Handle) error {
	if process.IsZero() || q.limit <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.steps[process]++
	if n := q.steps[process]; n > q.limit {
		return &StepsExceededError{Process: process, Steps: n, Limit: q.limit}
	}
	return nil
}

func (q *quotas) Forget(process graph.Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.steps, process)
}
