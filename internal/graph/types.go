package graph

import "strings"

// Type is the element type bitmask.
type Type uint32

const (
	Node Type = 1 << iota
	Link
	EdgeCommon
	ArcCommon
	ArcAccess

	Const
	Var

	Pos
	Neg
	Fuz

	Temp
	Perm

	NodeTuple
	NodeStruct
	NodeRole
	NodeNoRole
	NodeClass
	NodeAbstract
	NodeMaterial
)

// Composite masks.
const (
	EdgeMask       = EdgeCommon | ArcCommon | ArcAccess
	ElementMask    = Node | Link | EdgeMask
	ConstancyMask  = Const | Var
	PolarityMask   = Pos | Neg | Fuz
	PermanencyMask = Temp | Perm
	NodeKindMask   = NodeTuple | NodeStruct | NodeRole | NodeNoRole | NodeClass | NodeAbstract | NodeMaterial

	NodeConst       = Node | Const
	NodeVar         = Node | Var
	LinkConst       = Link | Const
	ArcPosConstPerm = ArcAccess | Const | Pos | Perm
	ArcPosVarPerm   = ArcAccess | Var | Pos | Perm
	ArcCommonConst  = ArcCommon | Const
)

var typeNames = []struct {
	bit  Type
	name string
}{
	{Node, "node"},
	{Link, "link"},
	{EdgeCommon, "edge"},
	{ArcCommon, "arc"},
	{ArcAccess, "access"},
	{Const, "const"},
	{Var, "var"},
	{Pos, "pos"},
	{Neg, "neg"},
	{Fuz, "fuz"},
	{Temp, "temp"},
	{Perm, "perm"},
	{NodeTuple, "tuple"},
	{NodeStruct, "struct"},
	{NodeRole, "role"},
	{NodeNoRole, "norole"},
	{NodeClass, "class"},
	{NodeAbstract, "abstract"},
	{NodeMaterial, "material"},
}

// IsNode reports whether t describes a node or a link.
func (t Type) IsNode() bool { return t&(Node|Link) != 0 }

// IsLink reports whether t describes a link.
func (t Type) IsLink() bool { return t&Link != 0 }

// IsEdge reports whether t describes any kind of edge.
func (t Type) IsEdge() bool { return t&EdgeMask != 0 }

// Satisfies reports whether every bit of want is present in t. The zero mask
// is satisfied by every type.
func (t Type) Satisfies(want Type) bool { return t&want == want }

// Valid reports whether t names exactly one element class.
func (t Type) Valid() bool {
	switch t & ElementMask {
	case Node, Link, EdgeCommon, ArcCommon, ArcAccess:
		return true
	}
	return false
}

// String renders t as a '|'-joined list of bit names.
func (t Type) String() string {
	if t == 0 {
		return "none"
	}
	var parts []string
	for _, n := range typeNames {
		if t&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, bool) {
	if s == "" || s == "none" {
		return 0, true
	}
	var t Type
	for _, part := range strings.Split(s, "|") {
		found := false
		for _, n := range typeNames {
			if n.name == strings.TrimSpace(part) {
				t |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return t, true
}
