package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/scp/internal/compiler"
	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/interp"
	"github.com/roach88/scp/internal/ir"
	"github.com/roach88/scp/internal/store"
)

// StepTimeout bounds how long a flow step may take to become idle.
const StepTimeout = 30 * time.Second

// Harness is the test execution engine for one scenario.
type Harness struct {
	store    *store.Store
	rt       *interp.Runtime
	g        *graph.Store
	out      *bytes.Buffer
	logger   *slog.Logger
	keys     map[string]graph.Handle
	elements map[string]graph.Handle
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes runtime logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh graph and a fresh in-memory database.
// Execution flow:
//  1. Compile, validate and link the scenario's programs
//  2. Create setup elements
//  3. Invoke each flow step and check its expect clause
//  4. Persist every run and the final graph
//  5. Evaluate assertions
//
// An error is returned when the scenario cannot run at all; failed
// expectations are reported through the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		g:        graph.NewStore(),
		out:      &bytes.Buffer{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		elements: make(map[string]graph.Handle),
	}
	for _, opt := range opts {
		opt(h)
	}

	rtOpts := []interp.Option{
		interp.WithWorkers(1),
		interp.WithLogger(h.logger),
		interp.WithOutput(h.out),
		interp.WithIDGenerator(interp.NewSequentialGenerator(scenario.Name)),
	}
	if scenario.MaxSteps > 0 {
		rtOpts = append(rtOpts, interp.WithMaxSteps(scenario.MaxSteps))
	}
	h.rt, err = interp.New(h.g, rtOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	if err := h.rt.Start(); err != nil {
		return nil, fmt.Errorf("failed to start runtime: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- h.rt.Run(runCtx) }()
	defer func() {
		cancel()
		h.rt.Close()
		<-done
	}()

	if err := h.load(scenario.Programs); err != nil {
		return nil, err
	}
	if err := h.setup(scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}
	for _, s := range h.rt.Trace().Steps() {
		result.Trace = append(result.Trace, traceEvent(s))
	}
	result.Output = h.out.String()

	if _, err := st.SaveGraph(ctx, scenario.Name, h.g); err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}

	actx := &AssertionContext{
		Store:    st,
		Ctx:      ctx,
		Graph:    h.g,
		Runtime:  h.rt,
		Elements: h.elements,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// load compiles every program file, validates them together and links
// them into the graph.
func (h *Harness) load(paths []string) error {
	var progs []*ir.Program
	for _, p := range paths {
		ps, err := compiler.CompileFile(p)
		if err != nil {
			return fmt.Errorf("compile %s: %w", p, err)
		}
		progs = append(progs, ps...)
	}
	if errs := compiler.ValidateAll(progs); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("invalid programs:\n%s", strings.Join(msgs, "\n"))
	}
	for _, w := range compiler.Analyze(progs) {
		h.logger.Warn("program analysis", "program", w.Program, "message", w.Message, "level", w.Level)
	}
	keys, err := compiler.Link(h.rt.Builder(), h.g, progs)
	if err != nil {
		return err
	}
	h.keys = keys
	return nil
}

// setup creates the scenario's named elements.
func (h *Harness) setup(elements []Element) error {
	for _, el := range elements {
		t, ok := graph.ParseType(el.Type)
		if !ok {
			return fmt.Errorf("element %s: invalid type %q", el.Name, el.Type)
		}
		var (
			e   graph.Handle
			err error
		)
		if el.Content != nil || t.IsLink() {
			content := ""
			if el.Content != nil {
				content = *el.Content
			}
			e, err = h.g.CreateLink(content)
		} else {
			if t == 0 {
				t = graph.NodeConst
			}
			e, err = h.g.CreateNode(t)
		}
		if err != nil {
			return fmt.Errorf("element %s: %w", el.Name, err)
		}
		h.g.SetLabel(e, el.Name)
		if el.Identifier != "" {
			if err := h.g.SetIdentifier(e, el.Identifier); err != nil {
				return fmt.Errorf("element %s: %w", el.Name, err)
			}
		}
		h.elements[el.Name] = e
	}
	return nil
}

// executeFlow invokes each step, waits for the interpreter to go idle and
// checks the step's expect clause. Each step is persisted as a run.
func (h *Harness) executeFlow(ctx context.Context, scenario *Scenario, result *Result) error {
	for i, step := range scenario.Flow {
		prog, ok := h.keys[step.Invoke]
		if !ok {
			if prog, ok = h.g.Resolve(step.Invoke); !ok {
				return fmt.Errorf("flow step %d: unknown program %q", i, step.Invoke)
			}
		}
		args := make(map[int]graph.Handle, len(step.Args))
		for order, name := range step.Args {
			e, ok := h.elements[name]
			if !ok {
				return fmt.Errorf("flow step %d: unknown element %q", i, name)
			}
			args[order] = e
		}

		traceBefore := len(h.rt.Trace().Steps())
		outBefore := h.out.Len()

		req, err := h.rt.Invoke(prog, args)
		if err != nil {
			return fmt.Errorf("flow step %d: invoke %s: %w", i, step.Invoke, err)
		}
		waitCtx, cancel := context.WithTimeout(ctx, StepTimeout)
		err = h.rt.WaitIdle(waitCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("flow step %d: wait for %s: %w", i, step.Invoke, err)
		}

		steps := h.rt.Trace().Steps()[traceBefore:]
		sr := StepResult{
			Program: step.Invoke,
			RunID:   fmt.Sprintf("%s-%d", scenario.Name, i+1),
			State:   h.rt.RequestState(req).String(),
			Output:  h.out.String()[outBefore:],
		}
		for _, s := range steps {
			sr.Lines = append(sr.Lines, s.String())
		}
		result.Steps = append(result.Steps, sr)

		var last int64
		if len(steps) > 0 {
			last = steps[len(steps)-1].Seq
		}
		run := store.Run{ID: sr.RunID, Program: step.Invoke, State: sr.State, Seq: last}
		if err := h.store.WriteRun(ctx, run, store.StepRecords(steps)); err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		if step.Expect != nil {
			if sr.State != step.Expect.State {
				result.AddError(fmt.Sprintf("flow[%d] %s: expected state %s, got %s",
					i, step.Invoke, step.Expect.State, sr.State))
			}
			if step.Expect.Output != nil && sr.Output != *step.Expect.Output {
				result.AddError(fmt.Sprintf("flow[%d] %s: expected output %q, got %q",
					i, step.Invoke, *step.Expect.Output, sr.Output))
			}
		}

		h.logger.Info("flow step completed",
			"step", i,
			"program", step.Invoke,
			"run_id", sr.RunID,
			"state", sr.State,
			"operators", len(steps),
		)
	}
	return nil
}
