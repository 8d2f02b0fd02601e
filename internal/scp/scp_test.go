package scp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/graph"
)

type testEnv struct {
	g *graph.Store
	k *Keynodes
	r *Resolver
	b *Builder
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	g := graph.NewStore()
	k, err := LoadKeynodes(g)
	require.NoError(t, err)
	return &testEnv{g: g, k: k, r: NewResolver(g, k), b: NewBuilder(g, k)}
}

func TestLoadKeynodes_Idempotent(t *testing.T) {
	env := setupEnv(t)
	before := env.g.Count()

	k2, err := LoadKeynodes(env.g)
	require.NoError(t, err)
	assert.Equal(t, before, env.g.Count())
	assert.Equal(t, env.k.Active, k2.Active)
	assert.Equal(t, env.k.Kinds[SearchSetStr3], k2.Kinds[SearchSetStr3])

	kind, ok := env.k.KindOf(env.k.Kinds[IfType])
	require.True(t, ok)
	assert.Equal(t, IfType, kind)
	ev, ok := env.k.EventOf(env.k.Events[graph.AddInputEdge])
	require.True(t, ok)
	assert.Equal(t, graph.AddInputEdge, ev)
}

func TestKind_Names(t *testing.T) {
	for _, k := range AllKinds() {
		got, ok := KindByName(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, got)
		assert.NotEqual(t, FamilyNone, k.Family(), k.String())
	}
	_, ok := KindByName("bogus")
	assert.False(t, ok)
	assert.Equal(t, "sys_wait", SysWait.String())
}

func TestModifierFor(t *testing.T) {
	assert.Equal(t, []string{"rrel_node", "rrel_const"}, ModifierFor(graph.NodeConst))
	assert.Equal(t, []string{"rrel_access", "rrel_const", "rrel_pos", "rrel_perm"}, ModifierFor(graph.ArcPosConstPerm))
	assert.Empty(t, ModifierFor(0))
}

func TestError_Helpers(t *testing.T) {
	err := NewInvalidParams(GenEl, "operand %d must be ASSIGN", 1)
	assert.True(t, IsInvalidParams(err))
	assert.False(t, IsInvalidType(err))
	assert.Equal(t, "INVALID_PARAMS: genEl: operand 1 must be ASSIGN", err.Error())

	wrapped := NewExecError(Return, graph.ErrNotFound, "no process")
	assert.True(t, IsExecError(wrapped))
	assert.ErrorIs(t, wrapped, graph.ErrNotFound)
}
