package scp

import (
	"fmt"

	"github.com/roach88/scp/internal/graph"
)

// Mode is the binding mode of an operand.
type Mode uint8

const (
	// Assign operands receive a value produced by the operator.
	Assign Mode = iota
	// Fixed operands must already hold a value.
	Fixed
)

func (m Mode) String() string {
	if m == Fixed {
		return "fixed"
	}
	return "assign"
}

// Quantifier decides where an operand's value lives.
type Quantifier uint8

const (
	// Const operands are their own value.
	Const Quantifier = iota
	// Var operands hold their value through an nrel_value binding arc.
	Var
)

func (q Quantifier) String() string {
	if q == Var {
		return "var"
	}
	return "const"
}

// Operand is one classified argument slot of an operator.
type Operand struct {
	// Decl is the declaring access arc operator -> Elem.
	Decl graph.Handle
	Elem graph.Handle

	Mode  Mode
	Quant Quantifier
	Type  graph.Type
	Order int
	Erase bool

	// SetIndex is k for an rrel_set_k operand, zero otherwise.
	SetIndex int

	// Value is the resolved current value: Elem for Const operands, the
	// bound element for Var operands, zero when unbound.
	Value graph.Handle

	conflicts []string
}

func (o *Operand) IsFixed() bool  { return o.Mode == Fixed }
func (o *Operand) IsAssign() bool { return o.Mode == Assign }
func (o *Operand) IsVar() bool    { return o.Quant == Var }

// HasValue reports whether the operand currently resolves to an element.
func (o *Operand) HasValue() bool { return !o.Value.IsZero() }

func (o *Operand) String() string {
	return fmt.Sprintf("%d:%s/%s", o.Order, o.Mode, o.Quant)
}

// Shape is the FIXED/ASSIGN pattern of a run of operands, written as a
// string of 'f' and 'a' characters in order, e.g. "faf".
type Shape string

// ShapeOf builds the shape of the given operands. Missing operands are 'a'.
func ShapeOf(ops ...*Operand) Shape {
	b := make([]byte, len(ops))
	for i, o := range ops {
		if o != nil && o.IsFixed() {
			b[i] = 'f'
		} else {
			b[i] = 'a'
		}
	}
	return Shape(b)
}
