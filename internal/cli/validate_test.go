package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scp/internal/compiler"
	"github.com/roach88/scp/internal/ir"
)

func TestValidateValid(t *testing.T) {
	out, err := execute(t, "validate", "testdata/greet.cue", "testdata/spin.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 3 program(s) valid")
}

func TestValidateUndefinedRef(t *testing.T) {
	out, err := execute(t, "validate", "testdata/invalid/undefined.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUndefinedRef)
	assert.Contains(t, out, "ghost")
}

func TestValidateJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", "testdata/invalid/undefined.cue")
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUndefinedRef, resp.Error.Code)
}

func TestValidatePrograms_LinkError(t *testing.T) {
	progs := []*ir.Program{{
		Name:   "lookup",
		Consts: []ir.Const{{Name: "c", ID: "no_such_identifier"}},
		Operators: []ir.Operator{
			{Name: "say", Kind: "printNl", Init: true, Operands: []ir.Operand{{Ref: "c", Order: 1, Mode: "fixed"}}, Then: []string{"done"}},
			{Name: "done", Kind: "return"},
		},
	}}
	errs := ValidatePrograms(progs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeLinkFailed, errs[0].Code)
	assert.Contains(t, errs[0].Message, "no_such_identifier")
}
