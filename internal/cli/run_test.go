package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeBoth runs the root command and returns stdout and stderr.
func executeBoth(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(diag)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), diag.String(), err
}

func runJSON(t *testing.T, args ...string) (RunResult, error) {
	t.Helper()
	out, err := execute(t, append([]string{"--format", "json", "run"}, args...)...)
	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.Data, err
}

func TestRunGreet(t *testing.T) {
	out, err := execute(t, "run", "testdata/greet.cue", "--program", "greet")
	require.NoError(t, err)
	assert.Contains(t, out, "greet finished_successfully")
	assert.Contains(t, out, "001 printNl        say          success")
	assert.Contains(t, out, "002 return         done         success")
	assert.Contains(t, out, "--- output\nhello")
}

func TestRunWithArgument(t *testing.T) {
	result, err := runJSON(t, "testdata/greet.cue", "--program", "echo", "--arg", "1=hi there")
	require.NoError(t, err)
	assert.Equal(t, "echo", result.Program)
	assert.Equal(t, "finished_successfully", result.State)
	assert.Equal(t, "hi there\n", result.Output)
	assert.Len(t, result.Trace, 2)
	assert.NotEmpty(t, result.RunID)
}

func TestRunMissingArgument(t *testing.T) {
	result, err := runJSON(t, "testdata/greet.cue", "--program", "echo")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "finished_with_error", result.State)
	assert.Empty(t, result.Trace)
}

func TestRunStepQuota(t *testing.T) {
	result, err := runJSON(t, "testdata/spin.cue", "--program", "spin", "--max-steps", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finished_with_error")
	assert.Equal(t, "finished_with_error", result.State)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, "003 varAssign      spin         error EXEC_ERROR", result.Trace[2])
}

func TestRunUnknownProgram(t *testing.T) {
	out, err := execute(t, "run", "testdata/greet.cue", "--program", "nobody")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `unknown program "nobody"`)
}

func TestRunInvalidProgram(t *testing.T) {
	out, err := execute(t, "run", "testdata/invalid/undefined.cue", "--program", "broken")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
}

func TestRunSavesToDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	result, err := runJSON(t, "testdata/greet.cue", "--program", "greet", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "trace", "--db", db, "--run", result.RunID)
	require.NoError(t, err)
	var trace struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &trace))
	assert.Equal(t, "greet", trace.Data.Program)
	assert.Equal(t, "finished_successfully", trace.Data.State)
	assert.Equal(t, TraceStats{Total: 2, Success: 2}, trace.Data.Stats)
	assert.Equal(t, "printNl", trace.Data.Steps[0].Kind)

	out, err = execute(t, "trace", "--db", db, "--run", result.RunID, "--kind", "return")
	require.NoError(t, err)
	assert.Contains(t, out, "002 return         done         success")
	assert.NotContains(t, out, "printNl")
	assert.Contains(t, out, "1 step(s): 1 success, 0 unsuccess, 0 error")

	out, err = execute(t, "snapshot", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 snapshot(s)")
	assert.Contains(t, out, result.RunID)
	assert.Contains(t, out, "printNl")

	out, err = execute(t, "--format", "json", "snapshot", db, result.RunID)
	require.NoError(t, err)
	var detail struct {
		Data SnapshotDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Positive(t, detail.Data.Nodes)
	assert.Positive(t, detail.Data.Edges)
	assert.Positive(t, detail.Data.Links)
	assert.Positive(t, detail.Data.Identifiers)
}

func TestTraceUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	_, err := runJSON(t, "testdata/greet.cue", "--program", "greet", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "trace", "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "run missing not found")

	_, err = execute(t, "snapshot", db, "missing")
	require.Error(t, err)
}

func TestMissingDatabase(t *testing.T) {
	_, err := execute(t, "snapshot", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestRunConfigFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "from-config.db")
	cfg := filepath.Join(dir, "scp.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("workers = 2\nmetrics = true\ndatabase = \""+db+"\"\n"), 0o644))

	out, diag, err := executeBoth(t, "--config", cfg, "run", "testdata/greet.cue", "--program", "greet")
	require.NoError(t, err)
	assert.Contains(t, out, "greet finished_successfully")
	assert.Contains(t, diag, "scp_interp_operators_total")
	assert.Contains(t, diag, `kind="printNl"`)

	_, err = os.Stat(db)
	assert.NoError(t, err, "database from config should be written")
}

func TestRunInvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "testdata/greet.cue", "--program", "greet", "--workers", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "workers must be at least 1")
}

func TestParseRunArgs(t *testing.T) {
	args, err := parseRunArgs([]string{"1=a", "3=b=c", "2="})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "a", 2: "", 3: "b=c"}, args)

	for _, bad := range [][]string{{"x"}, {"0=a"}, {"one=a"}, {"1=a", "1=b"}} {
		_, err := parseRunArgs(bad)
		assert.Error(t, err, "%v", bad)
	}
}
