package scp

// OperatorKind enumerates the atomic operator types.
type OperatorKind uint8

const (
	KindUnknown OperatorKind = iota

	GenEl
	GenElStr3
	GenElStr5

	EraseEl
	EraseElStr3
	EraseElStr5
	EraseSetStr3
	EraseSetStr5

	SearchElStr3
	SearchElStr5
	SearchSetStr3
	SearchSetStr5

	IfType
	IfCoin
	IfVarAssign
	IfEq
	IfGr
	IfFormCont

	VarAssign
	VarErase

	Call
	Return
	WaitReturn
	WaitReturnSet
	SysWait

	PrintEl
	PrintNl
	Print
	ContAssign
	ContErase

	ContAdd
	ContSub
	ContMult
	ContDiv
	ContPow
	ContDivInt
	ContDivRem
)

// Family groups operator kinds by the interpreter that runs them.
type Family uint8

const (
	FamilyNone Family = iota
	FamilyGen
	FamilyErase
	FamilySearch
	FamilyCond
	FamilyVar
	FamilyProcess
	FamilyContent
)

func (f Family) String() string {
	switch f {
	case FamilyGen:
		return "gen"
	case FamilyErase:
		return "erase"
	case FamilySearch:
		return "search"
	case FamilyCond:
		return "cond"
	case FamilyVar:
		return "var"
	case FamilyProcess:
		return "process"
	case FamilyContent:
		return "content"
	}
	return "none"
}

type kindInfo struct {
	name     string
	family   Family
	required int  // operands 1..required must be present
	maxOrder int  // highest position operand
	sets     bool // accepts rrel_set_k operands
}

var kinds = map[OperatorKind]kindInfo{
	GenEl:     {"genEl", FamilyGen, 1, 1, false},
	GenElStr3: {"genElStr3", FamilyGen, 3, 3, false},
	GenElStr5: {"genElStr5", FamilyGen, 5, 5, false},

	EraseEl:      {"eraseEl", FamilyErase, 1, 1, false},
	EraseElStr3:  {"eraseElStr3", FamilyErase, 3, 3, false},
	EraseElStr5:  {"eraseElStr5", FamilyErase, 5, 5, false},
	EraseSetStr3: {"eraseSetStr3", FamilyErase, 3, 3, false},
	EraseSetStr5: {"eraseSetStr5", FamilyErase, 5, 5, false},

	SearchElStr3:  {"searchElStr3", FamilySearch, 3, 3, false},
	SearchElStr5:  {"searchElStr5", FamilySearch, 5, 5, false},
	SearchSetStr3: {"searchSetStr3", FamilySearch, 3, 3, true},
	SearchSetStr5: {"searchSetStr5", FamilySearch, 5, 5, true},

	IfType:      {"ifType", FamilyCond, 1, 1, false},
	IfCoin:      {"ifCoin", FamilyCond, 2, 2, false},
	IfVarAssign: {"ifVarAssign", FamilyCond, 1, 1, false},
	IfEq:        {"ifEq", FamilyCond, 2, 2, false},
	IfGr:        {"ifGr", FamilyCond, 2, 2, false},
	IfFormCont:  {"ifFormCont", FamilyCond, 1, 1, false},

	VarAssign: {"varAssign", FamilyVar, 2, 2, false},
	VarErase:  {"varErase", FamilyVar, 1, 1, false},

	Call:          {"call", FamilyProcess, 3, 3, false},
	Return:        {"return", FamilyProcess, 0, 0, false},
	WaitReturn:    {"waitReturn", FamilyProcess, 1, 1, false},
	WaitReturnSet: {"waitReturnSet", FamilyProcess, 1, 1, false},
	SysWait:       {"sys_wait", FamilyProcess, 2, 2, false},

	PrintEl:    {"printEl", FamilyContent, 1, 1, false},
	PrintNl:    {"printNl", FamilyContent, 0, 1, false},
	Print:      {"print", FamilyContent, 1, 1, false},
	ContAssign: {"contAssign", FamilyContent, 2, 2, false},
	ContErase:  {"contErase", FamilyContent, 1, 1, false},

	ContAdd:    {"contAdd", FamilyContent, 3, 3, false},
	ContSub:    {"contSub", FamilyContent, 3, 3, false},
	ContMult:   {"contMult", FamilyContent, 3, 3, false},
	ContDiv:    {"contDiv", FamilyContent, 3, 3, false},
	ContPow:    {"contPow", FamilyContent, 3, 3, false},
	ContDivInt: {"contDivInt", FamilyContent, 3, 3, false},
	ContDivRem: {"contDivRem", FamilyContent, 3, 3, false},
}

// AllKinds lists every known kind in declaration order.
func AllKinds() []OperatorKind {
	out := make([]OperatorKind, 0, len(kinds))
	for k := GenEl; k <= ContDivRem; k++ {
		out = append(out, k)
	}
	return out
}

// KindByName looks a kind up by its keynode identifier.
func KindByName(name string) (OperatorKind, bool) {
	for k, info := range kinds {
		if info.name == name {
			return k, true
		}
	}
	return KindUnknown, false
}

func (k OperatorKind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "unknown"
}

// Family returns the interpreter family of k.
func (k OperatorKind) Family() Family { return kinds[k].family }

// MaxOrder is the highest order a position operand of k may carry. Set
// operands of searchSet kinds use orders above it (see SetOrderBase).
func (k OperatorKind) MaxOrder() int { return kinds[k].maxOrder }

// Required is the number of leading positions that must carry an operand.
func (k OperatorKind) Required() int { return kinds[k].required }

// AcceptsSets reports whether k takes rrel_set_k operands.
func (k OperatorKind) AcceptsSets() bool { return kinds[k].sets }

// SetOrderBase is added to the index of an rrel_set_k marker to obtain the
// operand's order, so set operands occupy orders 6..10.
const SetOrderBase = 5

// MaxOperandOrder bounds every operand order.
const MaxOperandOrder = 10
