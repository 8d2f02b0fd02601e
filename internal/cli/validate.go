package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scp/internal/compiler"
	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/ir"
	"github.com/roach88/scp/internal/scp"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Programs []string                   `json:"programs,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.Warning         `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file-or-dir>...",
		Short: "Validate programs without running them",
		Long: `Validate CUE programs without running them.

Checks the program schema, references, operand orders and successors,
then links the programs into a scratch graph. Unreachable operators and
recursive calls are reported as warnings.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadPrograms(paths)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "validation", loadErrors)
	}
	formatter.VerboseLog("Found %d CUE file(s)", loadResult.FileCount)

	result := ValidationResult{Valid: true}
	for _, p := range loadResult.Programs {
		formatter.VerboseLog("Validating program: %s", p.Name)
		result.Programs = append(result.Programs, p.Name)
	}
	result.Errors = ValidatePrograms(loadResult.Programs)
	if len(result.Errors) > 0 {
		result.Valid = false
		return outputValidationErrors(formatter, result)
	}
	result.Warnings = compiler.Analyze(loadResult.Programs)
	return outputValidateSuccess(formatter, result)
}

// ValidatePrograms runs the static checks and then links progs into a
// scratch graph, so that unresolvable identifiers are reported too.
func ValidatePrograms(progs []*ir.Program) []compiler.ValidationError {
	if errs := compiler.ValidateAll(progs); len(errs) > 0 {
		return errs
	}
	g := graph.NewStore()
	k, err := scp.LoadKeynodes(g)
	if err != nil {
		return []compiler.ValidationError{{Field: "link", Message: err.Error(), Code: ErrCodeLinkFailed}}
	}
	if _, err := compiler.Link(scp.NewBuilder(g, k), g, progs); err != nil {
		return []compiler.ValidationError{{Field: "link", Message: err.Error(), Code: ErrCodeLinkFailed}}
	}
	return nil
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d program(s) valid\n", len(result.Programs))
	if len(result.Warnings) > 0 {
		fmt.Fprintln(formatter.Writer)
		for _, w := range result.Warnings {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", w.Level, w.Message)
		}
	}
	return nil
}

// outputValidationErrors reports invalid programs. Validation failures exit
// with ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	summary := fmt.Sprintf("validation failed with %d error(s)", len(errs))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, summary)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, summary)
}
