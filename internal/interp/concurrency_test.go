package interp

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// fanOutProgram builds: gen X, then branches that each hang a new node off
// X, joined before return.
func fanOutProgram(f *fixture, branches int) graph.Handle {
	p := f.b.Program("fanout")
	x := p.Var("x")
	gen := p.Operator(scp.GenEl, "gen", scp.AssignVar(1, x, graph.NodeConst))
	join := p.Operator(scp.IfVarAssign, "join", scp.FixedVar(1, x))
	ret := p.Operator(scp.Return, "ret")
	p.Init(gen)
	for i := range branches {
		e, y := p.Var(fmt.Sprintf("e%d", i)), p.Var(fmt.Sprintf("y%d", i))
		b := p.Operator(scp.GenElStr3, fmt.Sprintf("branch%d", i),
			scp.FixedVar(1, x), scp.AssignVar(2, e, graph.ArcPosConstPerm), scp.AssignVar(3, y, graph.NodeConst))
		p.Then(gen, b)
		p.Then(b, join)
	}
	p.JoinAll(join)
	p.Then(join, ret)
	return f.build(p)
}

func TestRuntime_ConcurrentProcesses(t *testing.T) {
	const (
		processes = 16
		branches  = 4
	)
	f := setupRuntime(t, WithWorkers(8))
	prog := fanOutProgram(f, branches)
	before := f.g.Count()

	reqs := make([]graph.Handle, processes)
	var wg sync.WaitGroup
	errs := make(chan error, processes)
	for i := range processes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := f.rt.Invoke(prog, nil)
			if err != nil {
				errs <- err
				return
			}
			reqs[i] = req
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	f.idle()

	for _, req := range reqs {
		assert.Equal(t, scp.StateFinishedSuccessfully, f.rt.RequestState(req))
	}

	counts := map[scp.OperatorKind]int{}
	seqs := map[int64]bool{}
	steps := f.rt.Trace().Steps()
	for _, s := range steps {
		counts[s.Kind]++
		assert.False(t, seqs[s.Seq], "sequence %d reused", s.Seq)
		seqs[s.Seq] = true
	}
	assert.Equal(t, processes, counts[scp.GenEl])
	assert.Equal(t, processes*branches, counts[scp.GenElStr3])
	// Each join runs once, after all of its branches.
	assert.Equal(t, processes, counts[scp.IfVarAssign])
	assert.Equal(t, processes, counts[scp.Return])
	assert.Len(t, steps, processes*(branches+3))

	assert.Zero(t, f.rt.Subscriptions().Len())
	assert.Empty(t, f.rt.copies)
	assert.Empty(t, f.rt.running)
	assert.Empty(t, f.rt.Resolver().Members(f.k.Process))
	// Process-private elements are gone; each request leaves its own
	// bookkeeping behind.
	assert.Greater(t, f.g.Count(), before)
}
