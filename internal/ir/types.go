package ir

// Program is a compiled SCP program definition.
type Program struct {
	Name      string     `json:"name"`
	Params    []Param    `json:"params,omitempty"`
	Vars      []string   `json:"vars,omitempty"`
	Consts    []Const    `json:"consts,omitempty"`
	Args      []ArgSet   `json:"args,omitempty"`
	Operators []Operator `json:"operators"`
}

// Param is a formal parameter. Order is 1-based.
type Param struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
	Dir   string `json:"dir"` // "in" or "out"
}

// Const is an element shared by every process of the program. An ID names
// an existing system identifier (keynodes, event kinds); otherwise a new
// element of Type is created, holding Content when it is a link.
type Const struct {
	Name    string  `json:"name"`
	ID      string  `json:"id,omitempty"`
	Type    string  `json:"type,omitempty"`
	Content *string `json:"content,omitempty"`
}

// ArgSet is an argument set passed to call.
type ArgSet struct {
	Name     string    `json:"name"`
	Operands []Operand `json:"operands"`
}

// Operator is one program statement.
type Operator struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Init     bool      `json:"init,omitempty"`
	Join     bool      `json:"join,omitempty"`
	Operands []Operand `json:"operands,omitempty"`
	Then     []string  `json:"then,omitempty"`
	Else     []string  `json:"else,omitempty"`
	Goto     []string  `json:"goto,omitempty"`
	Error    []string  `json:"error,omitempty"`
}

// Operand references a param, var, const or argument set by Ref, or a
// program by Program. Exactly one of Order and Set is non-zero.
type Operand struct {
	Ref     string `json:"ref,omitempty"`
	Program string `json:"program,omitempty"`
	Order   int    `json:"order,omitempty"`
	Set     int    `json:"set,omitempty"`
	Mode    string `json:"mode"`            // "fixed" or "assign"
	Quant   string `json:"quant,omitempty"` // "const" or "var"; inferred from Ref when empty
	Type    string `json:"type,omitempty"`  // graph type, e.g. "node|const"
	Erase   bool   `json:"erase,omitempty"`
}

// Valid modes and directions.
var (
	ValidModes      = map[string]bool{"fixed": true, "assign": true}
	ValidQuants     = map[string]bool{"": true, "const": true, "var": true}
	ValidDirections = map[string]bool{"in": true, "out": true}
)

// Successors returns every control-flow target of op in then, else, goto,
// error order.
func (op Operator) Successors() []string {
	out := make([]string, 0, len(op.Then)+len(op.Else)+len(op.Goto)+len(op.Error))
	out = append(out, op.Then...)
	out = append(out, op.Else...)
	out = append(out, op.Goto...)
	return append(out, op.Error...)
}
