package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scp/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledProgram pairs a program with its content-addressed ID.
type CompiledProgram struct {
	ID      string      `json:"id"`
	Program *ir.Program `json:"program"`
}

// CompilationResult is the compile command's output document.
type CompilationResult struct {
	IRVersion string            `json:"ir_version"`
	Programs  []CompiledProgram `json:"programs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file-or-dir>...",
		Short: "Compile CUE programs to IR",
		Long: `Compile CUE program definitions to their IR.

Each program is checked against the program schema and listed with its
content-addressed ID. With --output the IR is written as JSON.

Examples:
  scp compile ./programs
  scp compile greet.cue -o greet.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadPrograms(paths)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "compilation", loadErrors)
	}
	formatter.VerboseLog("Compiled %d CUE file(s)", loadResult.FileCount)

	result := &CompilationResult{IRVersion: ir.IRVersion}
	for _, p := range loadResult.Programs {
		id, err := ir.ProgramID(p)
		if err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, err.Error())
		}
		formatter.VerboseLog("Compiled program: %s", p.Name)
		result.Programs = append(result.Programs, CompiledProgram{ID: id, Program: p})
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d program(s)\n\n", len(result.Programs))
	for _, cp := range result.Programs {
		fmt.Fprintf(formatter.Writer, "  %s: %d operator(s), id %s\n",
			cp.Program.Name, len(cp.Program.Operators), shortID(cp.ID))
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote IR to %s\n", opts.Output)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// outputCommandError reports a single error and exits with ExitCommandError.
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputLoadErrors reports every load error. Missing inputs are command
// errors; anything else means the programs are invalid.
func outputLoadErrors(formatter *OutputFormatter, what string, errs []error) error {
	exit := ExitFailure
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		code, message := ErrCodeGeneric, err.Error()
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			code, message = loadErr.Code, loadErr.Message
			switch code {
			case ErrCodeNotFound, ErrCodeScanError, ErrCodeNoFiles:
				exit = ExitCommandError
			}
		}
		cliErrors[i] = CLIError{Code: code, Message: message}
	}
	summary := fmt.Sprintf("%s failed with %d error(s)", what, len(errs))

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{Status: "error", Error: &cliErrors[0], Data: cliErrors}); err != nil {
			return err
		}
		return NewExitError(exit, summary)
	}

	fmt.Fprintf(formatter.Writer, "✗ %s\n\n", summary)
	for i, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", cliErrors[i].Code, cliErrors[i].Message)
	}
	return NewExitError(exit, summary)
}

// writeIRToFile writes result as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
