package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scp/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Kind     string // optional operator kind filter
}

// TraceStep is one persisted operator step.
type TraceStep struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	Operator string `json:"operator"`
	Outcome  string `json:"outcome"`
	Code     string `json:"code,omitempty"`
}

// TraceResult holds a stored run and its steps.
type TraceResult struct {
	RunID   string      `json:"run_id"`
	Program string      `json:"program"`
	State   string      `json:"state"`
	Steps   []TraceStep `json:"steps"`
	Stats   TraceStats  `json:"stats"`
}

// TraceStats counts steps by outcome.
type TraceStats struct {
	Total     int `json:"total"`
	Success   int `json:"success"`
	Unsuccess int `json:"unsuccess"`
	Error     int `json:"error"`
}

func (r TraceResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	fmt.Fprintf(&b, "Program: %s (%s)\n\n", r.Program, r.State)
	for _, s := range r.Steps {
		line := fmt.Sprintf("%03d %-14s %-12s %s", s.Seq, s.Kind, s.Operator, s.Outcome)
		if s.Code != "" {
			line += " " + s.Code
		}
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\n%d step(s): %d success, %d unsuccess, %d error",
		r.Stats.Total, r.Stats.Success, r.Stats.Unsuccess, r.Stats.Error)
	return b.String()
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the stored trace of a run",
		Long: `Show the operator steps recorded for a run saved with "scp run --db".

Examples:
  scp trace --db runs.db --run 0190f4c4-...
  scp trace --db runs.db --run 0190f4c4-... --kind call --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show steps of this operator kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, steps, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("run %s not found", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	return formatter.Success(buildTrace(run, steps, opts.Kind))
}

func buildTrace(run store.Run, steps []store.StepRecord, kind string) TraceResult {
	result := TraceResult{
		RunID:   run.ID,
		Program: run.Program,
		State:   run.State,
		Steps:   []TraceStep{},
	}
	for _, s := range steps {
		if kind != "" && s.Kind != kind {
			continue
		}
		result.Steps = append(result.Steps, TraceStep(s))
		result.Stats.Total++
		switch s.Outcome {
		case "success":
			result.Stats.Success++
		case "unsuccess":
			result.Stats.Unsuccess++
		case "error":
			result.Stats.Error++
		}
	}
	return result
}
