package interp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

func TestGenEl_AssignsNewNode(t *testing.T) {
	f := setupRuntime(t)
	p := f.b.Program("gen")
	x := p.Var("x")
	op := p.Operator(scp.GenEl, "gen", scp.AssignVar(1, x, graph.NodeConst|graph.NodeClass))
	f.build(p)

	require.Equal(t, scp.StateFinishedSuccessfully, f.run(op))
	v := f.value(x)
	require.False(t, v.IsZero())
	assert.Equal(t, graph.NodeConst|graph.NodeClass, f.g.Type(v))
}

func TestGenEl_InvalidOperands(t *testing.T) {
	f := setupRuntime(t)
	n := f.node("n")
	p := f.b.Program("gen")
	x := p.Var("x")
	fixed := p.Operator(scp.GenEl, "fixed", scp.FixedConst(1, n))
	arc := p.Operator(scp.GenEl, "arc", scp.AssignVar(1, x, graph.ArcPosConstPerm))
	constant := p.Operator(scp.GenEl, "const", scp.OperandSpec{Elem: n, Order: 1, Mode: scp.Assign, Quant: scp.Const})
	f.build(p)

	for _, op := range []graph.Handle{fixed, arc, constant} {
		assert.Equal(t, scp.StateFinishedWithError, f.run(op), f.g.Describe(op))
		assert.Equal(t, scp.CodeInvalidParams, f.lastStep().Code)
	}
}

func TestGenElStr3_AllCombinations(t *testing.T) {
	for _, fixedA := range []bool{true, false} {
		for _, fixedC := range []bool{true, false} {
			t.Run(fmt.Sprintf("a=%v c=%v", fixedA, fixedC), func(t *testing.T) {
				f := setupRuntime(t)
				a, c := f.node("a"), f.node("c")
				p := f.b.Program("gen3")
				va, ve, vc := p.Var("va"), p.Var("ve"), p.Var("vc")

				spec := func(order int, fixed bool, n, v graph.Handle) scp.OperandSpec {
					if fixed {
						return scp.FixedConst(order, n)
					}
					return scp.AssignVar(order, v, graph.NodeConst)
				}
				op := p.Operator(scp.GenElStr3, "gen3",
					spec(1, fixedA, a, va),
					scp.AssignVar(2, ve, graph.ArcPosConstPerm),
					spec(3, fixedC, c, vc),
				)
				f.build(p)

				require.Equal(t, scp.StateFinishedSuccessfully, f.run(op))
				e := f.value(ve)
				src, tgt, ok := f.g.Ends(e)
				require.True(t, ok)
				assert.Equal(t, graph.ArcPosConstPerm, f.g.Type(e))

				wantSrc, wantTgt := a, c
				if !fixedA {
					wantSrc = f.value(va)
					assert.NotEqual(t, a, wantSrc)
					assert.Equal(t, graph.NodeConst, f.g.Type(wantSrc))
				}
				if !fixedC {
					wantTgt = f.value(vc)
				}
				assert.Equal(t, wantSrc, src)
				assert.Equal(t, wantTgt, tgt)
			})
		}
	}
}

func TestGenElStr3_EdgeOperandMustBeAssignArc(t *testing.T) {
	f := setupRuntime(t)
	a, c := f.node("a"), f.node("c")
	p := f.b.Program("gen3")
	ve := p.Var("ve")
	notArc := p.Operator(scp.GenElStr3, "notArc",
		scp.FixedConst(1, a), scp.AssignVar(2, ve, graph.NodeConst), scp.FixedConst(3, c))
	fixedArc := p.Operator(scp.GenElStr3, "fixedArc",
		scp.FixedConst(1, a), scp.FixedConst(2, a), scp.FixedConst(3, c))
	f.build(p)

	assert.Equal(t, scp.StateFinishedWithError, f.run(notArc))
	assert.Equal(t, scp.StateFinishedWithError, f.run(fixedArc))
	assert.False(t, f.g.CheckEdge(a, c, 0))
}

func TestGenElStr5_AllCombinations(t *testing.T) {
	for mask := 0; mask < 8; mask++ {
		t.Run(fmt.Sprintf("mask=%03b", mask), func(t *testing.T) {
			f := setupRuntime(t)
			nodes := []graph.Handle{f.node("a"), f.node("c"), f.node("rel")}
			p := f.b.Program("gen5")
			vars := []graph.Handle{p.Var("va"), p.Var("vc"), p.Var("vrel")}
			ve, vr := p.Var("ve"), p.Var("vr")

			outer := make([]scp.OperandSpec, 3)
			for i, order := range []int{1, 3, 5} {
				if mask&(1<<i) != 0 {
					outer[i] = scp.FixedConst(order, nodes[i])
				} else {
					outer[i] = scp.AssignVar(order, vars[i], graph.NodeConst)
				}
			}
			op := p.Operator(scp.GenElStr5, "gen5",
				outer[0], scp.AssignVar(2, ve, graph.ArcCommonConst), outer[1],
				scp.AssignVar(4, vr, graph.ArcPosConstPerm), outer[2])
			f.build(p)

			require.Equal(t, scp.StateFinishedSuccessfully, f.run(op))
			e, r := f.value(ve), f.value(vr)
			got := make([]graph.Handle, 3)
			for i := range got {
				got[i] = nodes[i]
				if mask&(1<<i) == 0 {
					got[i] = f.value(vars[i])
				}
			}
			src, tgt, _ := f.g.Ends(e)
			assert.Equal(t, got[0], src)
			assert.Equal(t, got[1], tgt)
			rsrc, rtgt, _ := f.g.Ends(r)
			assert.Equal(t, got[2], rsrc)
			assert.Equal(t, e, rtgt)
		})
	}
}

func TestGen_InvalidEndpointCreatesNothing(t *testing.T) {
	f := setupRuntime(t)
	p := f.b.Program("gen")
	va, ve, vc, vr, vrel := p.Var("va"), p.Var("ve"), p.Var("vc"), p.Var("vr"), p.Var("vrel")
	gen3 := p.Operator(scp.GenElStr3, "gen3",
		scp.AssignVar(1, va, graph.NodeConst), scp.AssignVar(2, ve, graph.ArcPosConstPerm),
		scp.AssignVar(3, vc, graph.ArcPosConstPerm))
	gen5 := p.Operator(scp.GenElStr5, "gen5",
		scp.AssignVar(1, va, graph.NodeConst), scp.AssignVar(2, ve, graph.ArcCommonConst),
		scp.AssignVar(3, vc, graph.NodeConst), scp.AssignVar(4, vr, graph.ArcPosConstPerm),
		scp.AssignVar(5, vrel, graph.ArcCommonConst))
	f.build(p)

	for _, op := range []graph.Handle{gen3, gen5} {
		before := f.g.Count()
		assert.Equal(t, scp.StateFinishedWithError, f.run(op))
		assert.Equal(t, scp.CodeInvalidParams, f.lastStep().Code)
		// Only the finished marker is new.
		assert.Equal(t, before+1, f.g.Count())
		assert.True(t, f.value(va).IsZero())
	}
}

func TestGenBuilder_RollbackOnArcFailure(t *testing.T) {
	f := setupRuntime(t)
	gone := f.node("gone")
	f.g.Erase(gone)

	before := f.g.Count()
	gb := &builder{rt: f.rt, op: &scp.Operator{Kind: scp.GenElStr5}}
	src, err := gb.endpoint(&scp.Operand{Mode: scp.Assign, Quant: scp.Var, Type: graph.NodeConst, Order: 1})
	require.NoError(t, err)
	tgt, err := gb.endpoint(&scp.Operand{Mode: scp.Assign, Quant: scp.Var, Type: graph.NodeConst, Order: 3})
	require.NoError(t, err)
	e, err := gb.edge(graph.ArcCommonConst, src, tgt)
	require.NoError(t, err)
	assert.Equal(t, before+3, f.g.Count())

	// The relation endpoint no longer exists, so the second arc fails.
	_, err = gb.edge(graph.ArcPosConstPerm, gone, e)
	require.Error(t, err)

	gb.rollback()
	assert.Equal(t, before, f.g.Count())
	for _, h := range []graph.Handle{src, tgt, e} {
		assert.False(t, f.g.Exists(h))
	}
}
