package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestValidateCmd_ValidProcedure(t *testing.T) {
	path := writeTempProcedure(t, linearProcedureYAML)

	cmd := NewValidateCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "Valid!") {
		t.Fatalf("output = %q, want a Valid! summary", out.String())
	}
}

func TestValidateCmd_DuplicateNodeNameIsAnError(t *testing.T) {
	path := writeTempProcedure(t, `
name: dup
nodes:
  - name: a
    script: set_complete()
  - name: a
    script: set_complete()
`)

	cmd := NewValidateCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	exitErr, ok := err.(*ExitError)
	if !ok {
		t.Fatalf("err = %v (%T), want *ExitError", err, err)
	}
	if exitErr.Code != exitValidation {
		t.Fatalf("exit code = %d, want %d", exitErr.Code, exitValidation)
	}
	if !strings.Contains(out.String(), "LD-002") {
		t.Errorf("output = %q, want it to mention the duplicate-name diagnostic", out.String())
	}
}

func TestValidateCmd_StrictTreatsWarningsAsErrors(t *testing.T) {
	path := writeTempProcedure(t, `
name: orphan
nodes:
  - name: a
    script: set_complete()
  - name: b
    script: set_complete()
flows:
  - name: x-to-y
    source: a
    target: a
`)

	cmd := NewValidateCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{path, "--strict"})

	err := cmd.Execute()
	exitErr, ok := err.(*ExitError)
	if !ok {
		t.Fatalf("err = %v (%T), want *ExitError for a warning under --strict", err, err)
	}
	if exitErr.Code != exitValidation {
		t.Fatalf("exit code = %d, want %d", exitErr.Code, exitValidation)
	}
}

func TestValidateCmd_JSONFormat(t *testing.T) {
	path := writeTempProcedure(t, linearProcedureYAML)

	cmd := NewValidateCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{path, "--format", "json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "[]") {
		t.Fatalf("output = %q, want an empty diagnostics array", out.String())
	}
}

func TestValidateCmd_FileNotFound(t *testing.T) {
	cmd := NewValidateCmd()
	cmd.SetArgs([]string{"/nonexistent/procedure.yaml"})

	err := cmd.Execute()
	exitErr, ok := err.(*ExitError)
	if !ok {
		t.Fatalf("err = %v (%T), want *ExitError", err, err)
	}
	if exitErr.Code != exitFileNotFound {
		t.Fatalf("exit code = %d, want %d", exitErr.Code, exitFileNotFound)
	}
}
