package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/ir"
)

func TestAnalyzeReachability(t *testing.T) {
	p := validProgram()
	assert.Empty(t, AnalyzeReachability(p))

	p.Operators = append(p.Operators,
		ir.Operator{Name: "orphan", Kind: "return", Then: []string{"island"}},
		ir.Operator{Name: "island", Kind: "return"},
	)
	warnings := AnalyzeReachability(p)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"orphan"}, warnings[0].Path)
	assert.Equal(t, []string{"island"}, warnings[1].Path)
	assert.Equal(t, "copy", warnings[0].Program)
	assert.Equal(t, "warning", warnings[0].Level)
}

func TestAnalyzeReachability_ErrorArcs(t *testing.T) {
	p := validProgram()
	p.Operators[0].Then = nil
	p.Operators[0].Error = []string{"done"}
	assert.Empty(t, AnalyzeReachability(p))
}

// callProgram returns a program whose only operator calls each target.
func callProgram(name string, targets ...string) *ir.Program {
	p := &ir.Program{Name: name, Vars: []string{"req"}, Args: []ir.ArgSet{{Name: "none"}}}
	for i, target := range targets {
		p.Operators = append(p.Operators, ir.Operator{
			Name: "call" + target, Kind: "call", Init: i == 0,
			Operands: []ir.Operand{
				{Program: target, Order: 1, Mode: "fixed"},
				{Ref: "none", Order: 2, Mode: "fixed"},
				{Ref: "req", Order: 3, Mode: "assign"},
			},
		})
	}
	return p
}

func TestAnalyzeRecursion(t *testing.T) {
	tests := []struct {
		name  string
		progs []*ir.Program
		paths [][]string
	}{
		{
			name:  "no calls",
			progs: []*ir.Program{validProgram()},
		},
		{
			name:  "acyclic",
			progs: []*ir.Program{callProgram("a", "b"), callProgram("b", "c"), callProgram("c")},
		},
		{
			name:  "self call",
			progs: []*ir.Program{callProgram("loop", "loop")},
			paths: [][]string{{"loop", "loop"}},
		},
		{
			name:  "mutual",
			progs: []*ir.Program{callProgram("ping", "pong"), callProgram("pong", "ping")},
			paths: [][]string{{"ping", "pong", "ping"}},
		},
		{
			name: "three cycle and self loop",
			progs: []*ir.Program{
				callProgram("x", "y"), callProgram("y", "z"), callProgram("z", "x"),
				callProgram("solo", "solo"),
			},
			paths: [][]string{{"solo", "solo"}, {"x", "y", "z", "x"}},
		},
		{
			name:  "external program ignored",
			progs: []*ir.Program{callProgram("a", "system_program")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := AnalyzeRecursion(tt.progs)
			var paths [][]string
			for _, w := range warnings {
				paths = append(paths, w.Path)
			}
			assert.Equal(t, tt.paths, paths)
		})
	}
}

func TestAnalyzeRecursion_Levels(t *testing.T) {
	self := AnalyzeRecursion([]*ir.Program{callProgram("loop", "loop")})
	require.Len(t, self, 1)
	assert.Equal(t, "info", self[0].Level)
	assert.Equal(t, "program loop calls itself", self[0].Message)

	mutual := AnalyzeRecursion([]*ir.Program{callProgram("ping", "pong"), callProgram("pong", "ping")})
	require.Len(t, mutual, 1)
	assert.Equal(t, "warning", mutual[0].Level)
	assert.Equal(t, "mutually recursive programs: ping -> pong -> ping", mutual[0].Message)
}

func TestAnalyze_Combined(t *testing.T) {
	p := validProgram()
	p.Operators = append(p.Operators, ir.Operator{Name: "orphan", Kind: "return"})
	warnings := Analyze([]*ir.Program{p, callProgram("loop", "loop")})
	require.Len(t, warnings, 2)
	assert.Equal(t, "copy", warnings[0].Program)
	assert.Equal(t, "loop", warnings[1].Program)
}
