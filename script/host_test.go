package script

import (
	"context"
	"testing"

	"github.com/ronbb/donut/graph"
	"github.com/ronbb/donut/variant"
)

func newExecContext(t *testing.T) graph.ExecContext {
	t.Helper()
	proc := graph.NewProcedure("p")
	a := graph.NewNode("a", "")
	b := graph.NewNode("b", "")
	if err := proc.AddNode(a); err != nil {
		t.Fatal(err)
	}
	if err := proc.AddNode(b); err != nil {
		t.Fatal(err)
	}
	return graph.ExecContext{Procedure: proc, State: variant.NewState(), Host: New()}
}

func TestHost_RunNode_SetContinue(t *testing.T) {
	ec := newExecContext(t)
	n, err := New().RunNode(context.Background(), "set_continue()", ec)
	if err != nil {
		t.Fatalf("RunNode: %v", err)
	}
	if n.Kind() != graph.NextContinue {
		t.Fatalf("kind = %v, want Continue", n.Kind())
	}
}

func TestHost_RunNode_SetOne(t *testing.T) {
	ec := newExecContext(t)
	n, err := New().RunNode(context.Background(), `set_one("b")`, ec)
	if err != nil {
		t.Fatalf("RunNode: %v", err)
	}
	if n.Kind() != graph.NextOne {
		t.Fatalf("kind = %v, want One", n.Kind())
	}
	if n.Target().Node().Name != "b" {
		t.Fatalf("target = %q, want b", n.Target().Node().Name)
	}
}

func TestHost_RunNode_SetOneUnknown(t *testing.T) {
	ec := newExecContext(t)
	if _, err := New().RunNode(context.Background(), `set_one("nope")`, ec); err == nil {
		t.Fatal("expected error for unknown target")
	}
}

func TestHost_RunNode_SetComplete(t *testing.T) {
	ec := newExecContext(t)
	n, err := New().RunNode(context.Background(), "set_complete()", ec)
	if err != nil {
		t.Fatalf("RunNode: %v", err)
	}
	if n.Kind() != graph.NextComplete {
		t.Fatalf("kind = %v, want Complete", n.Kind())
	}
}

func TestHost_RunNode_SetBubble(t *testing.T) {
	ec := newExecContext(t)
	n, err := New().RunNode(context.Background(), "set_bubble()", ec)
	if err != nil {
		t.Fatalf("RunNode: %v", err)
	}
	if n.Kind() != graph.NextBubble {
		t.Fatalf("kind = %v, want Bubble", n.Kind())
	}
}

func TestHost_RunNode_DefaultsToNull(t *testing.T) {
	ec := newExecContext(t)
	n, err := New().RunNode(context.Background(), "local x = 1", ec)
	if err != nil {
		t.Fatalf("RunNode: %v", err)
	}
	if n.Kind() != graph.NextNull {
		t.Fatalf("kind = %v, want Null", n.Kind())
	}
}

func TestHost_RunNode_StateRoundTrip(t *testing.T) {
	ec := newExecContext(t)
	_, err := New().RunNode(context.Background(), `set_state("count", 3)`, ec)
	if err != nil {
		t.Fatalf("RunNode: %v", err)
	}
	v, ok := ec.State.Get("count")
	if !ok {
		t.Fatal("expected count to be set")
	}
	i, ok := v.AsInteger()
	if !ok || i != 3 {
		t.Fatalf("count = %#v, want Integer(3)", v)
	}

	n, err := New().RunNode(context.Background(), `if get_state("count") == 3 then set_continue() end`, ec)
	if err != nil {
		t.Fatalf("RunNode: %v", err)
	}
	if n.Kind() != graph.NextContinue {
		t.Fatalf("kind = %v, want Continue", n.Kind())
	}
}

func TestHost_RunNode_ScriptError(t *testing.T) {
	ec := newExecContext(t)
	if _, err := New().RunNode(context.Background(), "this is not lua(", ec); err == nil {
		t.Fatal("expected script error")
	}
}

func TestHost_EvalCondition(t *testing.T) {
	ec := newExecContext(t)
	ok, err := New().EvalCondition(context.Background(), "set_result(true)", ec)
	if err != nil {
		t.Fatalf("EvalCondition: %v", err)
	}
	if !ok {
		t.Fatal("expected true")
	}

	ok, err = New().EvalCondition(context.Background(), "", ec)
	if err != nil {
		t.Fatalf("EvalCondition: %v", err)
	}
	if ok {
		t.Fatal("expected false when set_result is never called")
	}
}

func TestHost_RunNode_SetParallel(t *testing.T) {
	ec := newExecContext(t)
	n, err := New().RunNode(context.Background(), `set_parallel({"a", "b"})`, ec)
	if err != nil {
		t.Fatalf("RunNode: %v", err)
	}
	if n.Kind() != graph.NextParallel {
		t.Fatalf("kind = %v, want Parallel", n.Kind())
	}
	if len(n.Targets()) != 2 {
		t.Fatalf("targets = %d, want 2", len(n.Targets()))
	}
}
