package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/ir"
	"github.com/roach88/scp/internal/scp"
)

// Validation error codes (E100-E199)
const (
	ErrNoOperators        = "E101" // program declares no operators
	ErrNoInit             = "E102" // no operator is marked init
	ErrUnknownKind        = "E103" // operator kind not recognised
	ErrInvalidType        = "E104" // invalid graph type string
	ErrDuplicateName      = "E105" // name declared twice in one program
	ErrUndefinedRef       = "E106" // operand references an undeclared name
	ErrUndefinedSuccessor = "E107" // then/else/goto/error target missing
	ErrInvalidMode        = "E108" // bad mode, quantifier or direction
	ErrOperandOrder       = "E109" // operand position invalid for the kind
	ErrOperandTarget      = "E110" // operand needs exactly one of ref/program
	ErrParamOrder         = "E111" // parameter order duplicated or out of range
	ErrUnknownProgram     = "E112" // operand names a program not in the set
)

// ValidationError represents a program validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateAll validates every program and the program references between
// them. Returns all errors found (does not fail-fast).
func ValidateAll(progs []*ir.Program) []ValidationError {
	known := make(map[string]bool, len(progs))
	for _, p := range progs {
		known[p.Name] = true
	}
	var errs []ValidationError
	for _, p := range progs {
		errs = append(errs, Validate(p)...)
		eachOperand(p, func(field string, o ir.Operand) {
			if o.Program != "" && !known[o.Program] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("program %q is not defined", o.Program),
					Code:    ErrUnknownProgram,
				})
			}
		})
	}
	return errs
}

// Validate checks one program against the operator table and its own
// declarations.
func Validate(p *ir.Program) []ValidationError {
	v := &validator{p: p, names: make(map[string]string)}
	v.declarations()
	v.operators()
	return v.errs
}

type validator struct {
	p     *ir.Program
	errs  []ValidationError
	names map[string]string // declared name -> what declared it
}

func (v *validator) field(format string, args ...any) string {
	return fmt.Sprintf("program.%s.", v.p.Name) + fmt.Sprintf(format, args...)
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

func (v *validator) declare(field, name, what string) {
	if prev, ok := v.names[name]; ok {
		v.add(field, ErrDuplicateName, "%q already declared as %s", name, prev)
		return
	}
	v.names[name] = what
}

func (v *validator) declarations() {
	p := v.p
	orders := make(map[int]string)
	for i, prm := range p.Params {
		f := v.field("params[%d]", i)
		v.declare(f, prm.Name, "param")
		if !ir.ValidDirections[prm.Dir] {
			v.add(f, ErrInvalidMode, "direction %q must be in or out", prm.Dir)
		}
		switch prev, dup := orders[prm.Order]; {
		case prm.Order < 1 || prm.Order > scp.MaxOperandOrder:
			v.add(f, ErrParamOrder, "order %d out of range 1..%d", prm.Order, scp.MaxOperandOrder)
		case dup:
			v.add(f, ErrParamOrder, "order %d already used by %q", prm.Order, prev)
		default:
			orders[prm.Order] = prm.Name
		}
	}
	for i, name := range p.Vars {
		v.declare(v.field("vars[%d]", i), name, "var")
	}
	for _, c := range p.Consts {
		f := v.field("consts.%s", c.Name)
		v.declare(f, c.Name, "const")
		if c.ID == "" {
			v.checkType(f, c.Type)
		}
	}
	for _, a := range p.Args {
		v.declare(v.field("args.%s", a.Name), a.Name, "args")
	}
	for _, op := range p.Operators {
		v.declare(v.field("operators.%s", op.Name), op.Name, "operator")
	}
	for _, a := range p.Args {
		for i, o := range a.Operands {
			f := v.field("args.%s[%d]", a.Name, i)
			v.operand(f, o)
			if o.Order < 1 || o.Order > scp.MaxOperandOrder {
				v.add(f, ErrOperandOrder, "argument order %d out of range 1..%d", o.Order, scp.MaxOperandOrder)
			}
		}
	}
}

func (v *validator) checkType(field, t string) {
	if _, ok := graph.ParseType(t); !ok {
		v.add(field, ErrInvalidType, "invalid type %q", t)
	}
}

// operand checks the parts of an operand that do not depend on its
// operator kind.
func (v *validator) operand(field string, o ir.Operand) {
	switch {
	case o.Ref == "" && o.Program == "":
		v.add(field, ErrOperandTarget, "operand needs a ref or a program")
	case o.Ref != "" && o.Program != "":
		v.add(field, ErrOperandTarget, "operand has both ref %q and program %q", o.Ref, o.Program)
	case o.Ref != "":
		what, ok := v.names[o.Ref]
		if !ok || what == "operator" {
			v.add(field, ErrUndefinedRef, "%q is not a param, var, const or args set", o.Ref)
		}
	}
	if !ir.ValidModes[o.Mode] {
		v.add(field, ErrInvalidMode, "mode %q must be fixed or assign", o.Mode)
	}
	if !ir.ValidQuants[o.Quant] {
		v.add(field, ErrInvalidMode, "quant %q must be const or var", o.Quant)
	}
	v.checkType(field, o.Type)
}

func (v *validator) operators() {
	p := v.p
	if len(p.Operators) == 0 {
		v.add(v.field("operators"), ErrNoOperators, "at least one operator is required")
		return
	}
	init := false
	for _, op := range p.Operators {
		f := v.field("operators.%s", op.Name)
		init = init || op.Init
		kind, ok := scp.KindByName(op.Kind)
		if !ok {
			v.add(f+".kind", ErrUnknownKind, "unknown operator kind %q", op.Kind)
		}
		positions := make(map[int]bool)
		for i, o := range op.Operands {
			of := fmt.Sprintf("%s.operands[%d]", f, i)
			v.operand(of, o)
			if !ok {
				continue
			}
			if o.Set != 0 {
				if !kind.AcceptsSets() || o.Set > kind.MaxOrder() {
					v.add(of, ErrOperandOrder, "%s does not accept set operand %d", op.Kind, o.Set)
				}
				continue
			}
			if o.Order < 1 || o.Order > kind.MaxOrder() {
				v.add(of, ErrOperandOrder, "order %d out of range 1..%d for %s", o.Order, kind.MaxOrder(), op.Kind)
				continue
			}
			if positions[o.Order] {
				v.add(of, ErrOperandOrder, "duplicate operand order %d", o.Order)
			}
			positions[o.Order] = true
		}
		if ok {
			for n := 1; n <= kind.Required(); n++ {
				if !positions[n] {
					v.add(f, ErrOperandOrder, "%s requires operand %d", op.Kind, n)
				}
			}
		}
		for _, next := range op.Successors() {
			if v.names[next] != "operator" {
				v.add(f, ErrUndefinedSuccessor, "successor %q is not an operator", next)
			}
		}
	}
	if !init {
		v.add(v.field("operators"), ErrNoInit, "no operator is marked init")
	}
}

// eachOperand visits every operand of p, argument sets first.
func eachOperand(p *ir.Program, fn func(field string, o ir.Operand)) {
	for _, a := range p.Args {
		for i, o := range a.Operands {
			fn(fmt.Sprintf("program.%s.args.%s[%d]", p.Name, a.Name, i), o)
		}
	}
	for _, op := range p.Operators {
		for i, o := range op.Operands {
			fn(fmt.Sprintf("program.%s.operators.%s.operands[%d]", p.Name, op.Name, i), o)
		}
	}
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
