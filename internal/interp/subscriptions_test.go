package interp

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/graph"
)

func newTestTable(t *testing.T) (*SubscriptionTable, *graph.Store) {
	t.Helper()
	g := graph.NewStore()
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	return newSubscriptionTable(g, NewSequentialGenerator("sub"), m), g
}

func TestSubscriptionTable_RetireExactlyOnce(t *testing.T) {
	table, g := newTestTable(t)
	target, err := g.CreateNode(graph.NodeConst)
	require.NoError(t, err)

	id, err := table.add(subSysWait, graph.Handle{}, graph.Handle{}, target, graph.AddInputEdge, func(string, graph.Event) {})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id)
	assert.Equal(t, 1, g.Subscriptions())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if table.Retire(id) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Zero(t, table.Len())
	assert.Zero(t, g.Subscriptions())
}

func TestSubscriptionTable_EventRetiresEntry(t *testing.T) {
	table, g := newTestTable(t)
	a, err := g.CreateNode(graph.NodeConst)
	require.NoError(t, err)
	b, err := g.CreateNode(graph.NodeConst)
	require.NoError(t, err)

	fired := 0
	_, err = table.add(subWaitReturn, graph.Handle{}, graph.Handle{}, b, graph.AddInputEdge, func(id string, _ graph.Event) {
		if table.Retire(id) {
			fired++
		}
	})
	require.NoError(t, err)

	_, err = g.CreateEdge(graph.ArcPosConstPerm, a, b)
	require.NoError(t, err)
	_, err = g.CreateEdge(graph.ArcPosConstPerm, a, b)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Zero(t, table.Len())
}

func TestSubscriptionTable_MissingTarget(t *testing.T) {
	table, g := newTestTable(t)
	gone, err := g.CreateNode(graph.NodeConst)
	require.NoError(t, err)
	g.Erase(gone)

	_, err = table.add(subSysWait, graph.Handle{}, graph.Handle{}, gone, graph.AddInputEdge, func(string, graph.Event) {})
	require.ErrorIs(t, err, graph.ErrNotFound)
	assert.Zero(t, table.Len())
}

func TestSubscriptionTable_CancelOwner(t *testing.T) {
	table, g := newTestTable(t)
	target, err := g.CreateNode(graph.NodeConst)
	require.NoError(t, err)
	p1 := graph.HandleOf(100, 1)
	p2 := graph.HandleOf(101, 1)
	noop := func(string, graph.Event) {}

	for _, owner := range []graph.Handle{p1, p1, p2} {
		_, err := table.add(subSysWait, owner, graph.Handle{}, target, graph.AddInputEdge, noop)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, table.CancelOwner(p1))
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, table.CancelAll())
	assert.Zero(t, g.Subscriptions())
}
