package interp

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
	"github.com/roach88/scp/internal/testutil"
)

type fixture struct {
	t   *testing.T
	rt  *Runtime
	g   *graph.Store
	k   *scp.Keynodes
	b   *scp.Builder
	out *bytes.Buffer
}

func setupRuntime(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	g := graph.NewStore()
	out := &bytes.Buffer{}
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	base := []Option{
		WithWorkers(1),
		WithLogger(testutil.Logger(t)),
		WithOutput(out),
		WithMetrics(metrics),
		WithIDGenerator(NewSequentialGenerator("sub")),
	}
	rt, err := New(g, append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, rt.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		rt.Close()
		<-done
	})
	return &fixture{t: t, rt: rt, g: g, k: rt.Keynodes(), b: rt.Builder(), out: out}
}

func (f *fixture) idle() {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(f.t, f.rt.WaitIdle(ctx))
}

// run activates op outside any process and returns its finished state.
func (f *fixture) run(op graph.Handle) scp.State {
	f.t.Helper()
	require.NoError(f.t, f.rt.Activate(op))
	f.idle()
	return f.rt.Resolver().FinishState(op)
}

func (f *fixture) node(label string) graph.Handle {
	f.t.Helper()
	h, err := f.g.CreateNode(graph.NodeConst)
	require.NoError(f.t, err)
	f.g.SetLabel(h, label)
	return h
}

func (f *fixture) arc(t graph.Type, src, tgt graph.Handle) graph.Handle {
	f.t.Helper()
	h, err := f.g.CreateEdge(t, src, tgt)
	require.NoError(f.t, err)
	return h
}

func (f *fixture) value(v graph.Handle) graph.Handle {
	return f.rt.Resolver().VarValue(v)
}

func (f *fixture) build(p *scp.ProgramBuilder) graph.Handle {
	f.t.Helper()
	key, err := p.Build()
	require.NoError(f.t, err)
	return key
}

func (f *fixture) lastStep() Step {
	f.t.Helper()
	steps := f.rt.Trace().Steps()
	require.NotEmpty(f.t, steps)
	return steps[len(steps)-1]
}

func (f *fixture) invoke(program graph.Handle, args map[int]graph.Handle) graph.Handle {
	f.t.Helper()
	req, err := f.rt.Invoke(program, args)
	require.NoError(f.t, err)
	f.idle()
	return req
}

func (f *fixture) kinds() []scp.OperatorKind {
	var out []scp.OperatorKind
	for _, s := range f.rt.Trace().Steps() {
		out = append(out, s.Kind)
	}
	return out
}

// quintuples builds three arcs a -> b1, a -> b2, a -> b1, each tagged by
// rel, and returns them as rows of (a, arc, b, relation arc, rel).
func (f *fixture) quintuples() [][]graph.Handle {
	f.t.Helper()
	a, b1, b2, rel := f.node("a"), f.node("b1"), f.node("b2"), f.node("rel")
	var rows [][]graph.Handle
	for _, b := range []graph.Handle{b1, b2, b1} {
		e := f.arc(graph.ArcCommonConst, a, b)
		r := f.arc(graph.ArcPosConstPerm, rel, e)
		rows = append(rows, []graph.Handle{a, e, b, r, rel})
	}
	return rows
}

// quintupleFilters are the type filters ASSIGN positions use against
// quintuples.
var quintupleFilters = []graph.Type{0, graph.ArcCommon, 0, graph.ArcAccess, 0}

// shapeOperands declares one operand per position of shape: FIXED to
// fixed[i] for 'f', ASSIGN to a fresh variable for 'a'. It returns the
// specs and the variables, zero at FIXED positions.
func shapeOperands(p *scp.ProgramBuilder, shape string, fixed []graph.Handle, filters []graph.Type) ([]scp.OperandSpec, []graph.Handle) {
	specs := make([]scp.OperandSpec, len(shape))
	vars := make([]graph.Handle, len(shape))
	for i := range shape {
		if shape[i] == 'f' {
			specs[i] = scp.FixedConst(i+1, fixed[i])
			continue
		}
		vars[i] = p.Var(fmt.Sprintf("v%d", i+1))
		specs[i] = scp.AssignVar(i+1, vars[i], filters[i])
	}
	return specs, vars
}

// matching returns the rows agreeing with ref at every FIXED position of
// shape.
func matching(rows [][]graph.Handle, shape string, ref []graph.Handle) [][]graph.Handle {
	var out [][]graph.Handle
	for _, row := range rows {
		ok := true
		for i := range shape {
			if shape[i] == 'f' && row[i] != ref[i] {
				ok = false
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}
