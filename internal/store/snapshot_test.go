package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/interp"
	"github.com/roach88/scp/internal/scp"
)

func buildGraph(t *testing.T) *graph.Store {
	t.Helper()
	g := graph.NewStore()
	a, err := g.CreateNode(graph.NodeConst | graph.NodeClass)
	require.NoError(t, err)
	require.NoError(t, g.SetIdentifier(a, "concept_city"))
	b, err := g.CreateNode(graph.NodeConst)
	require.NoError(t, err)
	g.SetLabel(b, "paris")
	l, err := g.CreateLink("café")
	require.NoError(t, err)
	_, err = g.CreateEdge(graph.ArcPosConstPerm, a, b)
	require.NoError(t, err)
	_, err = g.CreateEdge(graph.ArcCommonConst, b, l)
	require.NoError(t, err)
	return g
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	g := buildGraph(t)

	id, err := s.SaveGraph(ctx, "base", g)
	require.NoError(t, err)
	assert.Positive(t, id)

	loaded, err := s.LoadGraph(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, g.Snapshot(), loaded.Snapshot())

	h, ok := loaded.Resolve("concept_city")
	require.True(t, ok)
	assert.Len(t, loaded.Outgoing(h, graph.ArcAccess), 1)
}

func TestSnapshot_EmptyContentIsKept(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	g := graph.NewStore()
	l, err := g.CreateLink("")
	require.NoError(t, err)

	_, err = s.SaveGraph(ctx, "empty", g)
	require.NoError(t, err)
	loaded, err := s.LoadGraph(ctx, "empty")
	require.NoError(t, err)

	c, ok := loaded.Content(l)
	assert.True(t, ok)
	assert.Equal(t, "", c)
}

func TestSnapshot_LatestWins(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	g := buildGraph(t)

	_, err := s.SaveGraph(ctx, "g", g)
	require.NoError(t, err)
	_, err = g.CreateNode(graph.NodeConst)
	require.NoError(t, err)
	_, err = s.SaveGraph(ctx, "g", g)
	require.NoError(t, err)

	records, err := s.LoadSnapshot(ctx, "g")
	require.NoError(t, err)
	assert.Len(t, records, g.Count())

	infos, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, infos[0].Count+1, infos[1].Count)
}

func TestSnapshot_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadSnapshot(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRun_WriteRead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := Run{ID: "run-1", Program: "genTypeReturn", State: "finished_successfully", Seq: 3}
	steps := []StepRecord{
		{Seq: 1, Kind: "genEl", Operator: "gen", Outcome: "success"},
		{Seq: 2, Kind: "ifType", Operator: "check", Outcome: "success"},
		{Seq: 3, Kind: "return", Operator: "ret", Outcome: "success"},
	}

	require.NoError(t, s.WriteRun(ctx, run, steps))
	// Rewriting the same run is ignored.
	require.NoError(t, s.WriteRun(ctx, run, steps[:1]))

	gotRun, gotSteps, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, gotRun)
	assert.Equal(t, steps, gotSteps)

	counts, err := s.CountStepsByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"genEl": 1, "ifType": 1, "return": 1}, counts)
}

func TestStepRecords(t *testing.T) {
	steps := []interp.Step{
		{Seq: 1, Kind: scp.GenEl, Operator: "gen", Outcome: interp.Successful},
		{Seq: 2, Kind: scp.Call, Operator: "call", Outcome: interp.Failed, Code: scp.CodeInvalidParams},
	}
	assert.Equal(t, []StepRecord{
		{Seq: 1, Kind: "genEl", Operator: "gen", Outcome: "success"},
		{Seq: 2, Kind: "call", Operator: "call", Outcome: "error", Code: "INVALID_PARAMS"},
	}, StepRecords(steps))
}

func TestRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
