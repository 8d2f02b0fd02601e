package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue/token"

	"github.com/roach88/scp/internal/compiler"
	"github.com/roach88/scp/internal/ir"
)

// LoadResult holds the programs compiled from a set of CUE files.
type LoadResult struct {
	Programs  []*ir.Program
	Files     []string
	FileCount int
}

// LoadError is a load or compile failure with an error code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPrograms compiles every CUE file named by paths. A directory
// contributes all .cue files below it. Every file is compiled even after
// a failure so that all errors are reported at once.
func LoadPrograms(paths []string) (*LoadResult, []error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", p)}}
		}
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", p, err)}}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := FindCUEFiles(p)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found"}}
	}

	result := &LoadResult{Files: files, FileCount: len(files)}
	var errs []error
	for _, f := range files {
		progs, err := compiler.CompileFile(f)
		if err != nil {
			errs = append(errs, convertCompileError(err, f))
			continue
		}
		result.Programs = append(result.Programs, progs...)
	}
	if len(errs) == 0 && len(result.Programs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoPrograms, Message: "no programs found"})
	}
	return result, errs
}

// FindCUEFiles walks dir and returns its .cue files in lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError keeps the position of a compiler error.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: fmt.Sprintf("%s: %v", file, err),
	}
}

// Error code constants shared by all commands. Program validation errors
// use the compiler's E1xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build or schema check failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoPrograms  = "E008" // Files compiled but declared no programs
	ErrCodeLinkFailed  = "E009" // Programs could not be written into the graph
	ErrCodeStore       = "E010" // Database error
)
