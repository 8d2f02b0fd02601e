package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Program {
	content := "<hello & bye>"
	return &Program{
		Name:   "greet",
		Params: []Param{{Name: "X", Order: 1, Dir: "out"}},
		Consts: []Const{{Name: "msg", Type: "link|const", Content: &content}},
		Operators: []Operator{
			{Name: "print", Kind: "printEl", Init: true, Operands: []Operand{{Ref: "msg", Order: 1, Mode: "fixed"}}, Then: []string{"ret"}},
			{Name: "ret", Kind: "return"},
		},
	}
}

func TestProgramID_Deterministic(t *testing.T) {
	a, err := ProgramID(sample())
	require.NoError(t, err)
	b, err := ProgramID(sample())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestProgramID_ChangesWithContent(t *testing.T) {
	p := sample()
	before := MustProgramID(p)
	p.Operators[0].Then = []string{"elsewhere"}

	assert.NotEqual(t, before, MustProgramID(p))
}

func TestProgramID_NFC(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	p1, p2 := sample(), sample()
	p1.Consts[0].Content = &composed
	p2.Consts[0].Content = &decomposed

	assert.Equal(t, MustProgramID(p1), MustProgramID(p2))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical(sample())
	require.NoError(t, err)

	assert.Contains(t, string(data), "<hello & bye>")
	assert.NotContains(t, string(data), `\u003c`)
}

func TestHashWithDomain_Separates(t *testing.T) {
	assert.NotEqual(t,
		hashWithDomain("a", []byte("bc")),
		hashWithDomain("ab", []byte("c")),
	)
}

func TestOperator_Successors(t *testing.T) {
	op := Operator{Then: []string{"a"}, Else: []string{"b"}, Goto: []string{"c"}, Error: []string{"d"}}
	assert.Equal(t, []string{"a", "b", "c", "d"}, op.Successors())
}
