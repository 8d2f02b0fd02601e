package scp

import (
	"fmt"

	"github.com/roach88/scp/internal/graph"
)

// Keynodes are the well-known elements the interpreter recognises, bound to
// their system identifiers in the store.
type Keynodes struct {
	// Operator and request lifecycle markers.
	Active                 graph.Handle
	FinishedSuccessfully   graph.Handle
	FinishedUnsuccessfully graph.Handle
	FinishedWithError      graph.Handle
	AfterAllPrevious       graph.Handle

	// Control-flow relations.
	Then, Else, Goto, ErrorRel graph.Handle

	// Operand modifiers.
	Value    graph.Handle
	Order    [MaxOperandOrder + 1]graph.Handle
	SetOrder [MaxOperandOrder - SetOrderBase + 1]graph.Handle
	Fixed    graph.Handle
	Assign   graph.Handle
	ScpConst graph.Handle
	ScpVar   graph.Handle
	Set      graph.Handle
	Erase    graph.Handle
	Types    map[graph.Handle]graph.Type

	// Programs and processes.
	Program        graph.Handle
	Process        graph.Handle
	UselessProcess graph.Handle
	Params         graph.Handle
	In             graph.Handle
	Out            graph.Handle
	Init           graph.Handle
	Operators      graph.Handle
	ProcessRel     graph.Handle
	ProgramVars    graph.Handle
	ProgramConsts  graph.Handle
	Template       graph.Handle

	// Requests.
	Request   graph.Handle
	Initiated graph.Handle

	Kinds  map[OperatorKind]graph.Handle
	Events map[graph.EventKind]graph.Handle

	kindIndex map[graph.Handle]OperatorKind
}

// TypeModifier is a modifier keynode contributing type bits to an operand.
type TypeModifier struct {
	ID   string
	Bits graph.Type
}

// TypeModifiers lists the recognised type modifiers. Single-bit entries come
// first for each bit so that ModifierFor picks them.
var TypeModifiers = []TypeModifier{
	{"rrel_node", graph.Node},
	{"rrel_link", graph.Link},
	{"rrel_edge", graph.EdgeCommon},
	{"rrel_arc", graph.ArcCommon},
	{"rrel_access", graph.ArcAccess},
	{"rrel_const", graph.Const},
	{"rrel_var", graph.Var},
	{"rrel_pos", graph.Pos},
	{"rrel_neg", graph.Neg},
	{"rrel_fuz", graph.Fuz},
	{"rrel_temp", graph.Temp},
	{"rrel_perm", graph.Perm},
	{"rrel_tuple", graph.NodeTuple},
	{"rrel_struct", graph.NodeStruct},
	{"rrel_role_relation", graph.NodeRole},
	{"rrel_norole_relation", graph.NodeNoRole},
	{"rrel_class", graph.NodeClass},
	{"rrel_abstract", graph.NodeAbstract},
	{"rrel_material", graph.NodeMaterial},
	{"rrel_common", graph.ArcCommon},
	{"rrel_pos_const_perm", graph.ArcPosConstPerm},
}

// ModifierFor returns the identifiers of the single-bit modifiers that
// together encode t.
func ModifierFor(t graph.Type) []string {
	var ids []string
	for bit := graph.Type(1); bit != 0 && bit <= t; bit <<= 1 {
		if t&bit == 0 {
			continue
		}
		for _, m := range TypeModifiers {
			if m.Bits == bit {
				ids = append(ids, m.ID)
				break
			}
		}
	}
	return ids
}

// EventIdentifiers names the keynode of each event kind, as used by sys_wait
// operands and agent registrations.
var EventIdentifiers = map[graph.EventKind]string{
	graph.AddOutputEdge:    "sc_event_add_output_arc",
	graph.AddInputEdge:     "sc_event_add_input_arc",
	graph.RemoveOutputEdge: "sc_event_remove_output_arc",
	graph.RemoveInputEdge:  "sc_event_remove_input_arc",
	graph.EraseElement:     "sc_event_erase_element",
	graph.ContentChanged:   "sc_event_content_changed",
}

// LoadKeynodes resolves every keynode by identifier, creating the missing
// ones as const nodes.
func LoadKeynodes(g *graph.Store) (*Keynodes, error) {
	k := &Keynodes{
		Types:  make(map[graph.Handle]graph.Type, len(TypeModifiers)),
		Kinds:  make(map[OperatorKind]graph.Handle),
		Events: make(map[graph.EventKind]graph.Handle),
	}
	var err error
	get := func(id string, typ graph.Type) graph.Handle {
		if err != nil {
			return graph.Handle{}
		}
		var h graph.Handle
		h, err = ensureKeynode(g, id, typ)
		return h
	}
	class := graph.NodeConst | graph.NodeClass
	role := graph.NodeConst | graph.NodeRole
	norole := graph.NodeConst | graph.NodeNoRole

	k.Active = get("active_scp_operator", class)
	k.FinishedSuccessfully = get("question_finished_successfully", class)
	k.FinishedUnsuccessfully = get("question_finished_unsuccessfully", class)
	k.FinishedWithError = get("question_finished_with_error", class)
	k.AfterAllPrevious = get("scp_operator_executable_after_all_previous", class)

	k.Then = get("nrel_then", norole)
	k.Else = get("nrel_else", norole)
	k.Goto = get("nrel_goto", norole)
	k.ErrorRel = get("nrel_error", norole)

	k.Value = get("nrel_value", norole)
	for i := 1; i <= MaxOperandOrder; i++ {
		k.Order[i] = get(fmt.Sprintf("rrel_%d", i), role)
	}
	for i := 1; i < len(k.SetOrder); i++ {
		k.SetOrder[i] = get(fmt.Sprintf("rrel_set_%d", i), role)
	}
	k.Fixed = get("rrel_fixed", role)
	k.Assign = get("rrel_assign", role)
	k.ScpConst = get("rrel_scp_const", role)
	k.ScpVar = get("rrel_scp_var", role)
	k.Set = get("rrel_set", role)
	k.Erase = get("rrel_erase", role)
	for _, m := range TypeModifiers {
		k.Types[get(m.ID, role)] = m.Bits
	}

	k.Program = get("scp_program", class)
	k.Process = get("scp_process", class)
	k.UselessProcess = get("useless_scp_process", class)
	k.Params = get("rrel_params", role)
	k.In = get("rrel_in", role)
	k.Out = get("rrel_out", role)
	k.Init = get("rrel_init", role)
	k.Operators = get("rrel_operators", role)
	k.ProcessRel = get("nrel_scp_process", norole)
	k.ProgramVars = get("nrel_scp_program_var", norole)
	k.ProgramConsts = get("nrel_scp_program_const", norole)
	k.Template = get("nrel_template_of_scp_process_creation", norole)

	k.Request = get("question_scp_interpretation_request", class)
	k.Initiated = get("question_initiated", class)

	for _, kind := range AllKinds() {
		k.Kinds[kind] = get(kind.String(), class)
	}
	k.kindIndex = make(map[graph.Handle]OperatorKind, len(k.Kinds))
	for kind, h := range k.Kinds {
		k.kindIndex[h] = kind
	}
	for ev := graph.AddOutputEdge; ev <= graph.ContentChanged; ev++ {
		k.Events[ev] = get(EventIdentifiers[ev], class)
	}
	if err != nil {
		return nil, fmt.Errorf("load keynodes: %w", err)
	}
	return k, nil
}

func ensureKeynode(g *graph.Store, id string, typ graph.Type) (graph.Handle, error) {
	if h, ok := g.Resolve(id); ok {
		return h, nil
	}
	h, err := g.CreateNode(typ)
	if err != nil {
		return graph.Handle{}, err
	}
	if err := g.SetIdentifier(h, id); err != nil {
		g.Erase(h)
		// Lost a race with a concurrent loader.
		if existing, ok := g.Resolve(id); ok {
			return existing, nil
		}
		return graph.Handle{}, err
	}
	return h, nil
}

// KindOf returns the operator kind whose keynode is h.
func (k *Keynodes) KindOf(h graph.Handle) (OperatorKind, bool) {
	kind, ok := k.kindIndex[h]
	return kind, ok
}

// EventOf returns the event kind whose keynode is h.
func (k *Keynodes) EventOf(h graph.Handle) (graph.EventKind, bool) {
	for ev, eh := range k.Events {
		if eh == h {
			return ev, true
		}
	}
	return 0, false
}

// OrderOf returns n for the rrel_n keynode h.
func (k *Keynodes) OrderOf(h graph.Handle) (int, bool) {
	for i := 1; i <= MaxOperandOrder; i++ {
		if k.Order[i] == h {
			return i, true
		}
	}
	return 0, false
}
