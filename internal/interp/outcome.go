package interp

import (
	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// Outcome is the result of one operator execution.
type Outcome uint8

const (
	Successful Outcome = iota + 1
	Unsuccessful
	Failed

	// suspended means the operator registered a subscription and will
	// finish later.
	suspended
)

func (o Outcome) String() string {
	switch o {
	case Successful:
		return "success"
	case Unsuccessful:
		return "unsuccess"
	case Failed:
		return "error"
	case suspended:
		return "suspended"
	}
	return "unknown"
}

func outcomeOf(ok bool) Outcome {
	if ok {
		return Successful
	}
	return Unsuccessful
}

func (rt *Runtime) marker(o Outcome) graph.Handle {
	switch o {
	case Successful:
		return rt.k.FinishedSuccessfully
	case Unsuccessful:
		return rt.k.FinishedUnsuccessfully
	}
	return rt.k.FinishedWithError
}

func (rt *Runtime) outcomeOfMarker(m graph.Handle) (Outcome, bool) {
	switch m {
	case rt.k.FinishedSuccessfully:
		return Successful, true
	case rt.k.FinishedUnsuccessfully:
		return Unsuccessful, true
	case rt.k.FinishedWithError:
		return Failed, true
	}
	return 0, false
}

func stateOutcome(s scp.State) Outcome {
	switch s {
	case scp.StateFinishedSuccessfully:
		return Successful
	case scp.StateFinishedUnsuccessfully:
		return Unsuccessful
	}
	return Failed
}
