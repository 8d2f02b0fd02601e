package compiler

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scp/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// CompileFile reads a CUE file and compiles every program it declares.
func CompileFile(path string) ([]*ir.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return CompileSource(path, src)
}

// CompileSource compiles the programs declared under the top-level
// "program" struct of src, in declaration order. The source is unified with
// the embedded program schema first, so unknown fields and malformed values
// are reported with their CUE position.
func CompileSource(filename string, src []byte) ([]*ir.Program, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("program schema: %w", err)
	}
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("program"))
	if !root.Exists() {
		return nil, &CompileError{Field: "program", Message: "no programs declared", Pos: v.Pos()}
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var progs []*ir.Program
	for iter.Next() {
		p, err := CompileProgram(iter.Value())
		if err != nil {
			return nil, err
		}
		progs = append(progs, p)
	}
	return progs, nil
}

// CompileProgram converts one program struct into IR. The program name is
// the last selector of the value's path:
//
//	v := ctx.CompileString(`program: copy: { ... }`)
//	p, err := CompileProgram(v.LookupPath(cue.ParsePath("program.copy")))
func CompileProgram(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	p := &ir.Program{}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		p.Name = sels[len(sels)-1].Unquoted()
	}
	field := func(name string) string { return fmt.Sprintf("program.%s.%s", p.Name, name) }

	var err error
	if p.Params, err = parseParams(v); err != nil {
		return nil, err
	}
	if vars := v.LookupPath(cue.ParsePath("vars")); vars.Exists() {
		if err := vars.Decode(&p.Vars); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if p.Consts, err = parseConsts(v); err != nil {
		return nil, err
	}
	if p.Args, err = parseArgs(v); err != nil {
		return nil, err
	}
	if p.Operators, err = parseOperators(v); err != nil {
		return nil, err
	}
	if len(p.Operators) == 0 {
		return nil, &CompileError{Field: field("operators"), Message: "at least one operator is required", Pos: v.Pos()}
	}
	return p, nil
}

// parseParams decodes the parameter list. A parameter without an explicit
// order takes its 1-based list position.
func parseParams(v cue.Value) ([]ir.Param, error) {
	pv := v.LookupPath(cue.ParsePath("params"))
	if !pv.Exists() {
		return nil, nil
	}
	var params []ir.Param
	if err := pv.Decode(&params); err != nil {
		return nil, formatCUEError(err)
	}
	for i := range params {
		if params[i].Order == 0 {
			params[i].Order = i + 1
		}
	}
	return params, nil
}

func parseConsts(v cue.Value) ([]ir.Const, error) {
	cv := v.LookupPath(cue.ParsePath("consts"))
	if !cv.Exists() {
		return nil, nil
	}
	iter, err := cv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var consts []ir.Const
	for iter.Next() {
		var c ir.Const
		if err := iter.Value().Decode(&c); err != nil {
			return nil, formatCUEError(err)
		}
		c.Name = iter.Selector().Unquoted()
		consts = append(consts, c)
	}
	return consts, nil
}

func parseArgs(v cue.Value) ([]ir.ArgSet, error) {
	av := v.LookupPath(cue.ParsePath("args"))
	if !av.Exists() {
		return nil, nil
	}
	iter, err := av.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var sets []ir.ArgSet
	for iter.Next() {
		ops, err := parseOperands(iter.Value())
		if err != nil {
			return nil, err
		}
		sets = append(sets, ir.ArgSet{Name: iter.Selector().Unquoted(), Operands: ops})
	}
	return sets, nil
}

// parseOperands decodes an operand list. Position operands without an
// explicit order are numbered by their place among the position operands.
func parseOperands(v cue.Value) ([]ir.Operand, error) {
	var ops []ir.Operand
	if err := v.Decode(&ops); err != nil {
		return nil, formatCUEError(err)
	}
	pos := 0
	for i := range ops {
		if ops[i].Set != 0 {
			continue
		}
		pos++
		if ops[i].Order == 0 {
			ops[i].Order = pos
		}
	}
	return ops, nil
}

func parseOperators(v cue.Value) ([]ir.Operator, error) {
	ov := v.LookupPath(cue.ParsePath("operators"))
	if !ov.Exists() {
		return nil, nil
	}
	iter, err := ov.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var ops []ir.Operator
	for iter.Next() {
		opv := iter.Value()
		op := ir.Operator{Name: iter.Selector().Unquoted()}
		if op.Kind, err = opv.LookupPath(cue.ParsePath("kind")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if op.Init, err = optionalBool(opv, "init"); err != nil {
			return nil, err
		}
		if op.Join, err = optionalBool(opv, "join"); err != nil {
			return nil, err
		}
		if operands := opv.LookupPath(cue.ParsePath("operands")); operands.Exists() {
			if op.Operands, err = parseOperands(operands); err != nil {
				return nil, err
			}
		}
		for _, t := range []struct {
			name string
			dst  *[]string
		}{
			{"then", &op.Then},
			{"else", &op.Else},
			{"goto", &op.Goto},
			{"error", &op.Error},
		} {
			if *t.dst, err = parseTargets(opv, t.name); err != nil {
				return nil, err
			}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(name))
	if !bv.Exists() {
		return false, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// parseTargets reads a successor field, which is a single operator name or
// a list of them.
func parseTargets(v cue.Value, name string) ([]string, error) {
	tv := v.LookupPath(cue.MakePath(cue.Str(name)))
	if !tv.Exists() {
		return nil, nil
	}
	if s, err := tv.String(); err == nil {
		return []string{s}, nil
	}
	var out []string
	if err := tv.Decode(&out); err != nil {
		return nil, formatCUEError(err)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
