package loader

import (
	"errors"
	"testing"
)

const validYAML = `
name: approval
nodes:
  - name: start
    script: set_continue()
  - name: done
    script: set_complete()
flows:
  - name: to_done
    source: start
    target: done
`

func TestLoad_Valid(t *testing.T) {
	p, diags, err := Load([]byte(validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if HasErrors(diags) {
		t.Fatalf("unexpected error diagnostics: %+v", diags)
	}
	if p.Name != "approval" {
		t.Errorf("Name = %q, want %q", p.Name, "approval")
	}
	if len(p.Nodes) != 2 {
		t.Errorf("Nodes = %d, want 2", len(p.Nodes))
	}
	if len(p.Flows) != 1 {
		t.Errorf("Flows = %d, want 1", len(p.Flows))
	}

	n, err := p.Find("start")
	if err != nil {
		t.Fatalf("Find(start): %v", err)
	}
	if len(n.Outgoings()) != 1 {
		t.Errorf("start outgoings = %d, want 1", len(n.Outgoings()))
	}
}

func TestLoad_DuplicateNode(t *testing.T) {
	doc := `
name: p
nodes:
  - name: a
    script: ""
  - name: a
    script: ""
`
	_, diags, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !HasErrors(diags) {
		t.Fatal("expected error diagnostics")
	}
}

func TestLoad_DanglingFlow(t *testing.T) {
	doc := `
name: p
nodes:
  - name: a
    script: ""
flows:
  - name: f
    source: a
    target: nope
`
	_, diags, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("expected validation error")
	}
	found := false
	for _, d := range diags {
		if d.Code == "LD-005" {
			found = true
		}
	}
	if !found {
		t.Error("expected LD-005 diagnostic for dangling flow target")
	}
}

func TestLoad_OrphanWarning(t *testing.T) {
	doc := `
name: p
nodes:
  - name: a
    script: ""
  - name: b
    script: ""
  - name: c
    script: ""
flows:
  - name: f
    source: a
    target: b
`
	p, diags, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p == nil {
		t.Fatal("expected a built procedure")
	}
	found := false
	for _, d := range diags {
		if d.Code == "LD-006" {
			found = true
		}
	}
	if !found {
		t.Error("expected LD-006 orphan warning for node c")
	}
}

func TestDiagnosticError_SingleError(t *testing.T) {
	err := &DiagnosticError{
		Diagnostics: []Diagnostic{
			{Code: "LD-001", Severity: "error", Message: "test error"},
		},
	}
	if err.Error() != "donut: validation error: test error" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestDiagnosticError_MultipleErrors(t *testing.T) {
	err := &DiagnosticError{
		Diagnostics: []Diagnostic{
			{Code: "LD-001", Severity: "error", Message: "first error"},
			{Code: "LD-002", Severity: "error", Message: "second error"},
		},
	}
	got := err.Error()
	if got != "donut: 2 validation errors (first: first error)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDiagnosticError_Unwrap(t *testing.T) {
	loadErr := &DiagnosticError{
		Diagnostics: []Diagnostic{
			{Code: "LD-001", Severity: "error", Message: "test"},
		},
	}
	var diagErr *DiagnosticError
	if !errors.As(loadErr, &diagErr) {
		t.Error("should be unwrappable as *DiagnosticError")
	}
}

func TestLoadFile_NotFound(t *testing.T) {
	_, _, err := LoadFile("nonexistent.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
