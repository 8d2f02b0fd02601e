package interp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// genTypeReturn builds: gen X (node) -> ifType X -> return, with X an OUT
// parameter.
func genTypeReturn(f *fixture) graph.Handle {
	p := f.b.Program("genTypeReturn")
	x := p.Param(1, scp.Out, "X")
	gen := p.Operator(scp.GenEl, "gen", scp.AssignVar(1, x, graph.NodeConst))
	check := p.Operator(scp.IfType, "check", scp.FixedVar(1, x).WithType(graph.NodeConst))
	ret := p.Operator(scp.Return, "ret")
	p.Init(gen)
	p.Then(gen, check)
	p.Then(check, ret)
	return f.build(p)
}

func TestProcess_GenTypeReturn(t *testing.T) {
	f := setupRuntime(t)
	prog := genTypeReturn(f)
	x, err := f.g.CreateNode(graph.NodeVar)
	require.NoError(t, err)

	req := f.invoke(prog, map[int]graph.Handle{1: x})

	assert.Equal(t, scp.StateFinishedSuccessfully, f.rt.RequestState(req))
	v := f.value(x)
	require.False(t, v.IsZero())
	assert.Equal(t, graph.NodeConst, f.g.Type(v))
	assert.Equal(t, []scp.OperatorKind{scp.GenEl, scp.IfType, scp.Return}, f.kinds())
	assert.True(t, f.rt.Resolver().ProcessOfRequest(req).IsZero(), "process should be destroyed")
	assert.True(t, f.g.Exists(x))
}

func TestProcess_DestroyReclaimsCopies(t *testing.T) {
	f := setupRuntime(t)
	prog := genTypeReturn(f)
	x, err := f.g.CreateNode(graph.NodeVar)
	require.NoError(t, err)

	before := f.g.Count()
	req := f.invoke(prog, map[int]graph.Handle{1: x})

	// What remains:
	//   request node, its class arc, initiated and finished markers     4
	//   request -> program and request -> args, each with its role arc  4
	//   argument set node, args -> X with its role arc                  3
	//   the node generated for X, its binding arc and nrel_value tag    3
	assert.Equal(t, 14, f.g.Count()-before)
	v := f.value(x)
	require.False(t, v.IsZero())
	assert.True(t, f.g.Exists(req))
	assert.Equal(t, scp.StateFinishedSuccessfully, f.rt.RequestState(req))
	assert.Empty(t, f.rt.Resolver().Members(f.k.Process))
	assert.Empty(t, f.rt.copies)
	assert.Empty(t, f.rt.running)
}

func TestProcess_MissingInParamFailsRequest(t *testing.T) {
	f := setupRuntime(t)
	p := f.b.Program("needsInput")
	in := p.Param(1, scp.In, "in")
	op := p.Operator(scp.PrintEl, "print", scp.FixedConst(1, in))
	p.Init(op)
	prog := f.build(p)

	req := f.invoke(prog, nil)
	assert.Equal(t, scp.StateFinishedWithError, f.rt.RequestState(req))
	assert.True(t, f.rt.Resolver().ProcessOfRequest(req).IsZero())
	assert.Empty(t, f.rt.Trace().Steps())
}

func TestProcess_NoInitialOperator(t *testing.T) {
	f := setupRuntime(t)
	p := f.b.Program("noInit")
	p.Operator(scp.Return, "ret")
	prog := f.build(p)

	req := f.invoke(prog, nil)
	assert.Equal(t, scp.StateFinishedWithError, f.rt.RequestState(req))
}

func TestProcess_ElseAndGoto(t *testing.T) {
	f := setupRuntime(t)
	a, b := f.node("a"), f.node("b")
	yes, err := f.g.CreateLink("yes")
	require.NoError(t, err)
	no, err := f.g.CreateLink("no")
	require.NoError(t, err)

	p := f.b.Program("branch")
	coin := p.Operator(scp.IfCoin, "coin", scp.FixedConst(1, a), scp.FixedConst(2, b))
	onYes := p.Operator(scp.PrintEl, "onYes", scp.FixedConst(1, yes))
	onNo := p.Operator(scp.PrintEl, "onNo", scp.FixedConst(1, no))
	ret := p.Operator(scp.Return, "ret")
	p.Init(coin)
	p.Then(coin, onYes)
	p.Else(coin, onNo)
	p.Goto(onYes, ret)
	p.Goto(onNo, ret)
	prog := f.build(p)

	req := f.invoke(prog, nil)
	assert.Equal(t, scp.StateFinishedSuccessfully, f.rt.RequestState(req))
	assert.Equal(t, "no", f.out.String())
}

func TestProcess_ErrorArc(t *testing.T) {
	f := setupRuntime(t)
	n := f.node("n")
	p := f.b.Program("recover")
	bad := p.Operator(scp.GenEl, "bad", scp.FixedConst(1, n))
	ret := p.Operator(scp.Return, "ret")
	p.Init(bad)
	p.OnError(bad, ret)
	prog := f.build(p)

	req := f.invoke(prog, nil)
	assert.Equal(t, scp.StateFinishedSuccessfully, f.rt.RequestState(req))
	steps := f.rt.Trace().Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, Failed, steps[0].Outcome)
	assert.Equal(t, scp.CodeInvalidParams, steps[0].Code)
}

func TestProcess_UnhandledErrorFailsRequest(t *testing.T) {
	f := setupRuntime(t)
	n := f.node("n")
	p := f.b.Program("crash")
	bad := p.Operator(scp.GenEl, "bad", scp.FixedConst(1, n))
	ret := p.Operator(scp.Return, "ret")
	p.Init(bad)
	p.Then(bad, ret)
	prog := f.build(p)

	req := f.invoke(prog, nil)
	assert.Equal(t, scp.StateFinishedWithError, f.rt.RequestState(req))
	assert.True(t, f.rt.Resolver().ProcessOfRequest(req).IsZero())
	assert.Equal(t, []scp.OperatorKind{scp.GenEl}, f.kinds())
}

func TestProcess_JoinAllRunsOnce(t *testing.T) {
	f := setupRuntime(t)
	la, err := f.g.CreateLink("a")
	require.NoError(t, err)
	lb, err := f.g.CreateLink("b")
	require.NoError(t, err)

	p := f.b.Program("join")
	a := p.Operator(scp.PrintEl, "a", scp.FixedConst(1, la))
	b := p.Operator(scp.PrintEl, "b", scp.FixedConst(1, lb))
	join := p.Operator(scp.PrintNl, "join")
	ret := p.Operator(scp.Return, "ret")
	p.Init(a)
	p.Init(b)
	p.Goto(a, join)
	p.Goto(b, join)
	p.JoinAll(join)
	p.Then(join, ret)
	prog := f.build(p)

	req := f.invoke(prog, nil)
	assert.Equal(t, scp.StateFinishedSuccessfully, f.rt.RequestState(req))
	out := f.out.String()
	assert.Len(t, out, 3)
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, "a")
	assert.Contains(t, out, "b")

	joins := 0
	for _, s := range f.rt.Trace().Steps() {
		if s.Kind == scp.PrintNl {
			joins++
		}
	}
	assert.Equal(t, 1, joins)
}

func TestProcess_StepQuota(t *testing.T) {
	f := setupRuntime(t, WithMaxSteps(5))
	n := f.node("n")
	p := f.b.Program("loop")
	x := p.Var("x")
	spin := p.Operator(scp.VarAssign, "spin", scp.AssignVar(1, x, 0), scp.FixedConst(2, n))
	p.Init(spin)
	p.Goto(spin, spin)
	prog := f.build(p)

	req := f.invoke(prog, nil)
	assert.Equal(t, scp.StateFinishedWithError, f.rt.RequestState(req))
	steps := f.rt.Trace().Steps()
	require.Len(t, steps, 6)
	assert.Equal(t, scp.CodeExec, steps[5].Code)
}

func TestReturn_OutsideProcess(t *testing.T) {
	f := setupRuntime(t)
	p := f.b.Program("orphan")
	ret := p.Operator(scp.Return, "ret")
	f.build(p)

	assert.Equal(t, scp.StateFinishedWithError, f.run(ret))
	assert.Equal(t, scp.CodeExec, f.lastStep().Code)
}

func callee(f *fixture) graph.Handle {
	p := f.b.Program("callee")
	in := p.Param(1, scp.In, "in")
	out := p.Param(2, scp.Out, "out")
	assign := p.Operator(scp.VarAssign, "assign", scp.AssignVar(1, out, 0), scp.FixedConst(2, in))
	ret := p.Operator(scp.Return, "calleeRet")
	p.Init(assign)
	p.Then(assign, ret)
	return f.build(p)
}

func TestCall_WaitReturn(t *testing.T) {
	f := setupRuntime(t)
	target := callee(f)
	payload := f.node("payload")

	p := f.b.Program("caller")
	res := p.Param(1, scp.Out, "res")
	reqVar := p.Var("req")
	p.Const(payload)
	args := p.Args("args", scp.FixedConst(1, payload), scp.AssignVar(2, res, 0))
	call := p.Operator(scp.Call, "call",
		scp.FixedConst(1, target), scp.FixedConst(2, args), scp.AssignVar(3, reqVar, 0))
	wait := p.Operator(scp.WaitReturn, "wait", scp.FixedVar(1, reqVar))
	ret := p.Operator(scp.Return, "ret")
	p.Init(call)
	p.Then(call, wait)
	p.Then(wait, ret)
	prog := f.build(p)

	x, err := f.g.CreateNode(graph.NodeVar)
	require.NoError(t, err)
	req := f.invoke(prog, map[int]graph.Handle{1: x})

	assert.Equal(t, scp.StateFinishedSuccessfully, f.rt.RequestState(req))
	assert.Equal(t, payload, f.value(x))
	assert.Contains(t, f.kinds(), scp.WaitReturn)
	assert.Zero(t, f.rt.Subscriptions().Len())
	assert.True(t, f.g.Exists(payload))
}

func TestCall_MissingInParamWritesNothing(t *testing.T) {
	f := setupRuntime(t)
	target := callee(f)

	p := f.b.Program("caller")
	reqVar := p.Var("req")
	args := p.Args("args")
	call := p.Operator(scp.Call, "call",
		scp.FixedConst(1, target), scp.FixedConst(2, args), scp.AssignVar(3, reqVar, 0))
	f.build(p)

	parsed, err := scp.Parse(call, scp.Call, f.rt.Resolver().Operands(call))
	require.NoError(t, err)
	before := f.g.Count()
	_, err = f.rt.execute(context.Background(), parsed)
	require.Error(t, err)
	assert.True(t, scp.IsInvalidParams(err))
	assert.Equal(t, before, f.g.Count())

	assert.Equal(t, scp.StateFinishedWithError, f.run(call))
	assert.Equal(t, scp.CodeInvalidParams, f.lastStep().Code)
}

func TestCall_UnknownParameter(t *testing.T) {
	f := setupRuntime(t)
	target := callee(f)
	a := f.node("a")

	p := f.b.Program("caller")
	reqVar := p.Var("req")
	args := p.Args("args", scp.FixedConst(1, a), scp.FixedConst(7, a))
	call := p.Operator(scp.Call, "call",
		scp.FixedConst(1, target), scp.FixedConst(2, args), scp.AssignVar(3, reqVar, 0))
	f.build(p)

	assert.Equal(t, scp.StateFinishedWithError, f.run(call))
	assert.True(t, f.value(reqVar).IsZero())
}

func TestWaitReturnSet(t *testing.T) {
	tests := []struct {
		name    string
		markers func(k *scp.Keynodes) []graph.Handle
		want    scp.State
	}{
		{"all successful", func(k *scp.Keynodes) []graph.Handle {
			return []graph.Handle{k.FinishedSuccessfully, k.FinishedSuccessfully}
		}, scp.StateFinishedSuccessfully},
		{"one failed", func(k *scp.Keynodes) []graph.Handle {
			return []graph.Handle{k.FinishedSuccessfully, k.FinishedWithError}
		}, scp.StateFinishedUnsuccessfully},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupRuntime(t)
			prog := callee(f)
			set := f.node("requests")
			var reqs []graph.Handle
			for range 2 {
				req, _, err := f.b.Request(prog, nil)
				require.NoError(t, err)
				f.arc(graph.ArcPosConstPerm, set, req)
				reqs = append(reqs, req)
			}

			p := f.b.Program("waitAll")
			wait := p.Operator(scp.WaitReturnSet, "wait", scp.FixedConst(1, set))
			f.build(p)

			assert.Equal(t, scp.StateUnknown, f.run(wait))
			assert.Equal(t, 2, f.rt.Subscriptions().Len())

			markers := tt.markers(f.k)
			f.arc(graph.ArcPosConstPerm, markers[0], reqs[0])
			f.idle()
			assert.Equal(t, scp.StateUnknown, f.rt.Resolver().FinishState(wait))

			f.arc(graph.ArcPosConstPerm, markers[1], reqs[1])
			f.idle()
			assert.Equal(t, tt.want, f.rt.Resolver().FinishState(wait))
			assert.Zero(t, f.rt.Subscriptions().Len())

			var waits int
			for _, s := range f.rt.Trace().Steps() {
				if s.Kind == scp.WaitReturnSet {
					waits++
				}
			}
			assert.Equal(t, 1, waits)
		})
	}
}

func TestWaitReturnSet_AlreadyFinished(t *testing.T) {
	f := setupRuntime(t)
	prog := callee(f)
	empty, done := f.node("empty"), f.node("done")
	req, _, err := f.b.Request(prog, nil)
	require.NoError(t, err)
	f.arc(graph.ArcPosConstPerm, f.k.FinishedSuccessfully, req)
	f.arc(graph.ArcPosConstPerm, done, req)

	p := f.b.Program("waitAll")
	none := p.Operator(scp.WaitReturnSet, "none", scp.FixedConst(1, empty))
	finished := p.Operator(scp.WaitReturnSet, "finished", scp.FixedConst(1, done))
	f.build(p)

	assert.Equal(t, scp.StateFinishedSuccessfully, f.run(none))
	assert.Equal(t, scp.StateFinishedSuccessfully, f.run(finished))
	assert.Zero(t, f.rt.Subscriptions().Len())
}
