package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Programs lists CUE program files to compile and link.
	Programs []string `yaml:"programs"`

	// Setup declares graph elements created before the flow. Flow
	// arguments and assertions refer to them by name.
	Setup []Element `yaml:"setup,omitempty"`

	// Flow invokes programs one after another. Each step waits until the
	// interpreter is idle before the next begins.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace, bindings and state.
	Assertions []Assertion `yaml:"assertions"`

	// MaxSteps overrides the per-process step quota when positive.
	MaxSteps int `yaml:"max_steps,omitempty"`
}

// Element is a graph element created during setup.
type Element struct {
	Name string `yaml:"name"`

	// Type is a graph type such as "node|const" or "link". Defaults to
	// "node|const".
	Type string `yaml:"type,omitempty"`

	// Content makes the element a link holding this text.
	Content *string `yaml:"content,omitempty"`

	// Identifier optionally binds a system identifier to the element.
	Identifier string `yaml:"identifier,omitempty"`
}

// FlowStep invokes one program.
type FlowStep struct {
	// Invoke names the program by its identifier.
	Invoke string `yaml:"invoke"`

	// Args maps parameter order to a setup element name.
	Args map[int]string `yaml:"args,omitempty"`

	// Expect checks the request once the step is idle. If nil the step is
	// not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected request behavior.
type ExpectClause struct {
	// State is the expected request state, e.g. "finished_successfully".
	State string `yaml:"state"`

	// Output is the exact text this step prints, when set.
	Output *string `yaml:"output,omitempty"`
}

// Assertion validates trace, bindings or persisted state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind, Operator and Outcome select trace steps (trace_contains,
	// trace_count). Empty fields match anything.
	Kind     string `yaml:"kind,omitempty"`
	Operator string `yaml:"operator,omitempty"`
	Outcome  string `yaml:"outcome,omitempty"`

	// Count is the expected number of matching steps (trace_count).
	Count int `yaml:"count,omitempty"`

	// Operators is the expected first-occurrence order (trace_order).
	Operators []string `yaml:"operators,omitempty"`

	// Element names a setup variable and Value the rendering of the
	// element it must be bound to (bound). An empty Value only requires a
	// binding.
	Element string `yaml:"element,omitempty"`
	Value   string `yaml:"value,omitempty"`

	// Equals is the expected full output (output).
	Equals *string `yaml:"equals,omitempty"`

	// Table, Where and Expect query the persisted store (final_state).
	// Where must match exactly one row; Expect is a subset match.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertBound         = "bound"
	AssertOutput        = "output"
	AssertFinalState    = "final_state"
)

var validStates = map[string]bool{
	scp.StateFinishedSuccessfully.String():   true,
	scp.StateFinishedUnsuccessfully.String(): true,
	scp.StateFinishedWithError.String():      true,
	scp.StateRunning.String():                true,
}

// LoadScenario reads and parses a scenario YAML file. Program paths are
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving program paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Programs {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Programs[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// name a step or assertion uses is declared in setup.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Programs) == 0 {
		return fmt.Errorf("programs list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, p := range s.Programs {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("program file not found: %s", p)
		}
	}

	declared := make(map[string]bool, len(s.Setup))
	for i, el := range s.Setup {
		if el.Name == "" {
			return fmt.Errorf("setup[%d]: name is required", i)
		}
		if declared[el.Name] {
			return fmt.Errorf("setup[%d]: duplicate element %q", i, el.Name)
		}
		declared[el.Name] = true
		if _, ok := graph.ParseType(el.Type); !ok {
			return fmt.Errorf("setup[%d]: invalid type %q", i, el.Type)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		for order, name := range step.Args {
			if order < 1 || order > scp.MaxOperandOrder {
				return fmt.Errorf("flow[%d]: argument order %d out of range", i, order)
			}
			if !declared[name] {
				return fmt.Errorf("flow[%d]: argument %d refers to undeclared element %q", i, order, name)
			}
		}
		if step.Expect != nil && !validStates[step.Expect.State] {
			return fmt.Errorf("flow[%d].expect: unknown state %q", i, step.Expect.State)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], declared); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, declared map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" && a.Operator == "" {
			return fmt.Errorf("assertions[%d]: kind or operator is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Operators) == 0 {
			return fmt.Errorf("assertions[%d]: operators list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" && a.Operator == "" {
			return fmt.Errorf("assertions[%d]: kind or operator is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertBound:
		if !declared[a.Element] {
			return fmt.Errorf("assertions[%d]: bound refers to undeclared element %q", index, a.Element)
		}
	case AssertOutput:
		if a.Equals == nil {
			return fmt.Errorf("assertions[%d]: equals is required for output", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
