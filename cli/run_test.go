package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const linearProcedureYAML = `
name: linear
nodes:
  - name: a
    script: set_continue()
  - name: b
    script: set_complete()
flows:
  - name: a-to-b
    source: a
    target: b
`

func writeTempProcedure(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "procedure.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("writing temp procedure: %v", err)
	}
	return path
}

func TestRunCmd_DryRun(t *testing.T) {
	path := writeTempProcedure(t, linearProcedureYAML)

	cmd := NewRunCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{path, "--dry-run"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "linear: valid") {
		t.Fatalf("output = %q, want a dry-run validity summary", out.String())
	}
}

func TestRunCmd_FileNotFound(t *testing.T) {
	cmd := NewRunCmd()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.Execute()
	exitErr, ok := err.(*ExitError)
	if !ok {
		t.Fatalf("err = %v (%T), want *ExitError", err, err)
	}
	if exitErr.Code != exitFileNotFound {
		t.Fatalf("exit code = %d, want %d", exitErr.Code, exitFileNotFound)
	}
}

func TestRunCmd_InvalidProcedureReportsValidationExit(t *testing.T) {
	path := writeTempProcedure(t, `
name: broken
nodes:
  - name: a
flows:
  - name: a-to-nowhere
    source: a
    target: ghost
`)

	cmd := NewRunCmd()
	errOut := &bytes.Buffer{}
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	exitErr, ok := err.(*ExitError)
	if !ok {
		t.Fatalf("err = %v (%T), want *ExitError", err, err)
	}
	if exitErr.Code != exitValidation {
		t.Fatalf("exit code = %d, want %d", exitErr.Code, exitValidation)
	}
	if !strings.Contains(errOut.String(), "LD-005") {
		t.Errorf("stderr = %q, want it to mention the dangling flow diagnostic", errOut.String())
	}
}

func TestRunCmd_InputAndInputFileConflict(t *testing.T) {
	path := writeTempProcedure(t, linearProcedureYAML)

	cmd := NewRunCmd()
	cmd.SetArgs([]string{path, "--input", "{}", "--input-file", "x.json"})

	err := cmd.Execute()
	exitErr, ok := err.(*ExitError)
	if !ok {
		t.Fatalf("err = %v (%T), want *ExitError", err, err)
	}
	if exitErr.Code != exitInputParse {
		t.Fatalf("exit code = %d, want %d", exitErr.Code, exitInputParse)
	}
}

func TestRunCmd_RunsAndPrintsFinalState(t *testing.T) {
	path := writeTempProcedure(t, linearProcedureYAML)

	cmd := NewRunCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{path, "--input", `{"x": 1}`, "--format", "json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), `"x": 1`) {
		t.Fatalf("output = %q, want the initial state echoed back in the final state", out.String())
	}
}
