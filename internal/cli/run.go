package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/scp/internal/compiler"
	"github.com/roach88/scp/internal/config"
	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/interp"
	"github.com/roach88/scp/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Program  string
	Args     []string // ORDER=TEXT
	Database string
	Workers  int
	MaxSteps int
	Timeout  time.Duration

	// IDs overrides the run ID generator (for testing). Defaults to UUIDv7.
	IDs interp.IDGenerator
}

// RunResult is the outcome of one program run.
type RunResult struct {
	RunID   string   `json:"run_id"`
	Program string   `json:"program"`
	State   string   `json:"state"`
	Trace   []string `json:"trace"`
	Output  string   `json:"output,omitempty"`
}

func (r RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s %s\n", r.RunID, r.Program, r.State)
	for _, line := range r.Trace {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if r.Output != "" {
		b.WriteString("--- output\n")
		b.WriteString(strings.TrimSuffix(r.Output, "\n"))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file-or-dir>...",
		Short: "Run a program",
		Long: `Compile and link the given programs, invoke one of them and wait
until interpretation is idle. The request outcome and trace are printed.

Arguments are links created from text and bound to parameters by order.
With --db the final graph and the trace are saved under the run ID.

Examples:
  scp run greet.cue --program greet
  scp run ./programs --program classify --arg 1=hello --db runs.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Program, "program", "p", "", "program to invoke (required)")
	_ = cmd.MarkFlagRequired("program")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "argument as ORDER=TEXT (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "save the run to this SQLite database")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "worker count (overrides config)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "per-process step quota (overrides config)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", time.Minute, "give up waiting after this long")

	return cmd
}

func runProgram(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.runConfig(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := newLogger(formatter.GetErrWriter(), cfg.LogLevel)

	args, err := parseRunArgs(opts.Args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --arg", err)
	}

	loadResult, loadErrors := LoadPrograms(paths)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "compilation", loadErrors)
	}
	progs := loadResult.Programs
	if errs := compiler.ValidateAll(progs); len(errs) > 0 {
		return outputValidationErrors(formatter, ValidationResult{Errors: errs})
	}
	for _, w := range compiler.Analyze(progs) {
		logger.Warn("program analysis", "program", w.Program, "message", w.Message)
	}

	var registry *prometheus.Registry
	rtOpts := []interp.Option{
		interp.WithWorkers(cfg.Workers),
		interp.WithMaxSteps(cfg.MaxSteps),
		interp.WithLogger(logger),
	}
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		m, err := interp.NewMetrics(registry)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		rtOpts = append(rtOpts, interp.WithMetrics(m))
	}
	var out bytes.Buffer
	rtOpts = append(rtOpts, interp.WithOutput(&out))

	g := graph.NewStore()
	rt, err := interp.New(g, rtOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create runtime", err)
	}
	keys, err := compiler.Link(rt.Builder(), g, progs)
	if err != nil {
		return outputCommandError(formatter, ErrCodeLinkFailed, err.Error())
	}
	prog, ok := keys[opts.Program]
	if !ok {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("unknown program %q", opts.Program))
	}
	argHandles := make(map[int]graph.Handle, len(args))
	for order, text := range args {
		h, err := g.CreateLink(text)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create argument", err)
		}
		g.SetLabel(h, fmt.Sprintf("arg%d", order))
		argHandles[order] = h
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(); err != nil {
		return WrapExitError(ExitCommandError, "failed to start runtime", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- rt.Run(runCtx) }()
	defer func() {
		cancel()
		rt.Close()
		if err := <-done; err != nil && err != context.Canceled {
			logger.Error("runtime stopped", "error", err)
		}
	}()

	logger.Debug("invoking program", "program", opts.Program, "args", len(argHandles))
	req, err := rt.Invoke(prog, argHandles)
	if err != nil {
		return WrapExitError(ExitFailure, "invoke failed", err)
	}
	waitCtx, cancelWait := context.WithTimeout(ctx, opts.Timeout)
	err = rt.WaitIdle(waitCtx)
	cancelWait()
	if err != nil {
		return WrapExitError(ExitFailure, "program did not finish", err)
	}

	ids := opts.IDs
	if ids == nil {
		ids = interp.UUIDv7Generator{}
	}
	steps := rt.Trace().Steps()
	result := RunResult{
		RunID:   ids.Generate(),
		Program: opts.Program,
		State:   rt.RequestState(req).String(),
		Output:  out.String(),
	}
	for _, s := range steps {
		result.Trace = append(result.Trace, s.String())
	}

	if cfg.Database != "" {
		if err := saveRun(ctx, cfg.Database, result, g, steps); err != nil {
			return WrapExitError(ExitCommandError, "failed to save run", err)
		}
		logger.Info("run saved", "db", cfg.Database, "run_id", result.RunID)
	}
	if registry != nil {
		if err := writeMetrics(formatter, registry); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if result.State != "finished_successfully" {
		return NewExitError(ExitFailure, fmt.Sprintf("program %s %s", opts.Program, result.State))
	}
	return nil
}

// runConfig layers command-line flags over the config file.
func (o *RunOptions) runConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = o.Workers
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = o.MaxSteps
	}
	if flags.Changed("db") {
		cfg.Database = o.Database
	}
	return cfg, cfg.Validate()
}

// parseRunArgs parses ORDER=TEXT pairs.
func parseRunArgs(raw []string) (map[int]string, error) {
	args := make(map[int]string, len(raw))
	for _, a := range raw {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected ORDER=TEXT", a)
		}
		order, err := strconv.Atoi(k)
		if err != nil || order < 1 {
			return nil, fmt.Errorf("%q: order must be a positive integer", a)
		}
		if _, dup := args[order]; dup {
			return nil, fmt.Errorf("%q: order %d given twice", a, order)
		}
		args[order] = v
	}
	return args, nil
}

// saveRun stores the final graph as a snapshot named after the run, and the
// trace as the run's steps.
func saveRun(ctx context.Context, path string, result RunResult, g *graph.Store, steps []interp.Step) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if _, err := st.SaveGraph(ctx, result.RunID, g); err != nil {
		return err
	}
	var last int64
	if len(steps) > 0 {
		last = steps[len(steps)-1].Seq
	}
	run := store.Run{ID: result.RunID, Program: result.Program, State: result.State, Seq: last}
	return st.WriteRun(ctx, run, store.StepRecords(steps))
}

// writeMetrics prints the registry in the Prometheus text format to the
// diagnostic writer.
func writeMetrics(formatter *OutputFormatter, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	w := formatter.GetErrWriter()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
