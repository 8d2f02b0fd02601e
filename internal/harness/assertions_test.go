package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/store"
)

var sampleTrace = []TraceEvent{
	{Seq: 1, Kind: "ifType", Operator: "check", Outcome: "success"},
	{Seq: 2, Kind: "printNl", Operator: "say", Outcome: "success"},
	{Seq: 3, Kind: "printNl", Operator: "say", Outcome: "success"},
	{Seq: 4, Kind: "return", Operator: "done", Outcome: "success"},
}

func TestAssertTraceContains(t *testing.T) {
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{Kind: "printNl", Operator: "say"}))

	err := assertTraceContains(sampleTrace, Assertion{Kind: "ifType", Outcome: "unsuccess"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "step with kind ifType, outcome unsuccess", ae.Expected)
	assert.Contains(t, err.Error(), "[4] return done success")
}

func TestAssertTraceOrder(t *testing.T) {
	assert.NoError(t, assertTraceOrder(sampleTrace, Assertion{Operators: []string{"check", "done"}}))

	err := assertTraceOrder(sampleTrace, Assertion{Operators: []string{"say", "check"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "say (pos 2) should be before check (pos 1)")

	err = assertTraceOrder(sampleTrace, Assertion{Operators: []string{"check", "ghost"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing operator: ghost")
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Operator: "say", Count: 2}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Kind: "call", Count: 0}))

	err := assertTraceCount(sampleTrace, Assertion{Kind: "printNl", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 steps")
}

func TestAssertOutput(t *testing.T) {
	want := "hello\n"
	assert.NoError(t, assertOutput("hello\n", Assertion{Equals: &want}))
	err := assertOutput("bye\n", Assertion{Equals: &want})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bye\n"`)
}

func TestAssertFinalState(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	run := store.Run{ID: "r1", Program: "greet", State: "finished_successfully", Seq: 2}
	steps := []store.StepRecord{
		{Seq: 1, Kind: "printNl", Operator: "say", Outcome: "success"},
		{Seq: 2, Kind: "return", Operator: "done", Outcome: "success"},
	}
	require.NoError(t, st.WriteRun(ctx, run, steps))

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{
			name: "match",
			a:    Assertion{Table: "runs", Where: map[string]any{"id": "r1"}, Expect: map[string]any{"program": "greet", "seq": 2}},
		},
		{
			name: "float from yaml",
			a:    Assertion{Table: "steps", Where: map[string]any{"run_id": "r1", "seq": float64(2)}, Expect: map[string]any{"kind": "return"}},
		},
		{
			name:    "value mismatch",
			a:       Assertion{Table: "runs", Where: map[string]any{"id": "r1"}, Expect: map[string]any{"state": "running"}},
			wantErr: `field "state" = running`,
		},
		{
			name:    "row not found",
			a:       Assertion{Table: "runs", Where: map[string]any{"id": "r2"}, Expect: map[string]any{"state": "running"}},
			wantErr: "row not found",
		},
		{
			name:    "ambiguous",
			a:       Assertion{Table: "steps", Where: map[string]any{"run_id": "r1"}, Expect: map[string]any{"outcome": "success"}},
			wantErr: "multiple rows matched",
		},
		{
			name:    "missing column",
			a:       Assertion{Table: "runs", Where: map[string]any{"id": "r1"}, Expect: map[string]any{"colour": "red"}},
			wantErr: `field "colour" not present`,
		},
		{
			name:    "invalid table",
			a:       Assertion{Table: "runs; DROP TABLE runs", Expect: map[string]any{"id": "r1"}},
			wantErr: "invalid table name",
		},
		{
			name:    "invalid column",
			a:       Assertion{Table: "runs", Where: map[string]any{"id = id OR 1": 1}, Expect: map[string]any{"id": "r1"}},
			wantErr: "invalid column name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual("a", []byte("a")))
	assert.True(t, stateValuesEqual(2, int64(2)))
	assert.True(t, stateValuesEqual(true, int64(1)))
	assert.True(t, stateValuesEqual(nil, nil))
	assert.False(t, stateValuesEqual("", nil))
	assert.False(t, stateValuesEqual(2, "2"))
}

func TestEvaluateAssertions_WithoutContext(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Kind: "return"},
		{Type: AssertBound, Element: "x"},
		{Type: AssertFinalState, Table: "runs", Expect: map[string]any{"id": "r"}},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "bound requires a runtime")
	assert.Contains(t, errs[1], "final_state requires database context")
}
