package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ronbb/donut/variant"
)

// fakeScriptHost is a minimal graph.Host test double: node scripts are
// looked up by name in nodeFns, flow condition scripts by name in condFns.
type fakeScriptHost struct {
	nodeFns map[string]func() (Next, error)
	condFns map[string]func() (bool, error)
}

func (h *fakeScriptHost) RunNode(ctx context.Context, script string, ec ExecContext) (Next, error) {
	fn, ok := h.nodeFns[script]
	if !ok {
		return Null(), nil
	}
	return fn()
}

func (h *fakeScriptHost) EvalCondition(ctx context.Context, script string, ec ExecContext) (bool, error) {
	fn, ok := h.condFns[script]
	if !ok {
		return false, nil
	}
	return fn()
}

var _ Host = (*fakeScriptHost)(nil)

func TestExecutable_Equal_IdentityNotValue(t *testing.T) {
	a := NewNode("a", "")
	b := NewNode("a", "") // same name, distinct identity

	if Equal(NodeExec(a), NodeExec(b)) {
		t.Fatal("Equal should compare identity, not node name")
	}
	if !Equal(NodeExec(a), NodeExec(a)) {
		t.Fatal("Equal should hold for the same node")
	}
}

func TestExecutable_Outgoings_FlowWrapsSingleTarget(t *testing.T) {
	a := NewNode("a", "")
	b := NewNode("b", "")
	f := NewFlow("a->b", a, b, "")

	out := FlowExec(f).Outgoings()
	if len(out) != 1 || !Equal(out[0], NodeExec(b)) {
		t.Fatalf("Outgoings() = %+v, want [NodeExec(b)]", out)
	}
}

func TestExecutable_Outgoings_ProcedureIsEmpty(t *testing.T) {
	p := NewProcedure("p")
	if out := ProcedureExec(p).Outgoings(); out != nil {
		t.Fatalf("Outgoings() = %+v, want nil for a Procedure executable", out)
	}
}

func TestExecutable_Execute_ProcedureEntersStartNode(t *testing.T) {
	p := NewProcedure("p")
	a := NewNode("a", "")
	if err := p.AddNode(a); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	ec := ExecContext{Procedure: p, State: variant.NewState(), Host: &fakeScriptHost{}}

	n, err := ProcedureExec(p).Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n.Kind() != NextOne || !Equal(n.Target(), NodeExec(a)) {
		t.Fatalf("Execute() = %+v, want One(a)", n)
	}
}

func TestExecutable_Execute_NodeDispatchesToHostByScript(t *testing.T) {
	a := NewNode("a", "go-complete")
	host := &fakeScriptHost{nodeFns: map[string]func() (Next, error){
		"go-complete": func() (Next, error) { return Complete(), nil },
	}}
	ec := ExecContext{State: variant.NewState(), Host: host}

	n, err := NodeExec(a).Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n.Kind() != NextComplete {
		t.Fatalf("Execute() kind = %v, want Complete", n.Kind())
	}
}

func TestExecutable_Execute_FlowWithEmptyConditionDefaultsTrue(t *testing.T) {
	a := NewNode("a", "")
	b := NewNode("b", "")
	f := NewFlow("a->b", a, b, "")
	ec := ExecContext{State: variant.NewState(), Host: &fakeScriptHost{}}

	n, err := FlowExec(f).Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n.Kind() != NextContinue {
		t.Fatalf("Execute() kind = %v, want Continue for an unconditioned flow", n.Kind())
	}
}

func TestExecutable_Execute_FlowFalseConditionCompletes(t *testing.T) {
	a := NewNode("a", "")
	b := NewNode("b", "")
	f := NewFlow("a->b", a, b, "never")
	host := &fakeScriptHost{condFns: map[string]func() (bool, error){
		"never": func() (bool, error) { return false, nil },
	}}
	ec := ExecContext{State: variant.NewState(), Host: host}

	n, err := FlowExec(f).Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n.Kind() != NextComplete {
		t.Fatalf("Execute() kind = %v, want Complete for a false condition", n.Kind())
	}
}

func TestExecutable_Execute_DanglingWeakReferenceYieldsErrCanceled(t *testing.T) {
	build := func() Executable {
		n := NewNode("ephemeral", "")
		return NodeExec(n)
	}
	e := build()

	// The underlying *Node may or may not have been collected yet (GC
	// timing is not deterministic from here), but Execute must never
	// panic on a dangling weak reference — it must degrade to
	// ErrCanceled. We can't force collection deterministically in this
	// test without also keeping e.node's value alive via the Executable
	// itself, so this exercises the live path; cursor/dropped_procedure_test.go
	// exercises the actual GC-observed dangling path for Procedure.
	ec := ExecContext{State: variant.NewState(), Host: &fakeScriptHost{}}
	_, err := e.Execute(context.Background(), ec)
	if err != nil && !errors.Is(err, ErrCanceled) {
		t.Fatalf("Execute() error = %v, want nil or ErrCanceled", err)
	}
}

func TestExecutable_SelectionExecute_FirstTrueWithEarlierFalseWins(t *testing.T) {
	a := NewNode("a", "")
	t1 := NewNode("t1", "")
	t2 := NewNode("t2", "")
	t3 := NewNode("t3", "")
	f1 := NewFlow("f1", a, t1, "cond-false")
	f2 := NewFlow("f2", a, t2, "cond-true")
	f3 := NewFlow("f3", a, t3, "cond-true-slow")

	host := &fakeScriptHost{condFns: map[string]func() (bool, error){
		"cond-false": func() (bool, error) { return false, nil },
		"cond-true":  func() (bool, error) { return true, nil },
		"cond-true-slow": func() (bool, error) {
			time.Sleep(20 * time.Millisecond)
			return true, nil
		},
	}}
	ec := ExecContext{State: variant.NewState(), Host: host}

	n, err := SelectionExec([]*Flow{f1, f2, f3}).Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n.Kind() != NextOne || !Equal(n.Target(), FlowExec(f2)) {
		t.Fatalf("Execute() = %+v, want One(f2)", n)
	}
}

func TestExecutable_SelectionExecute_AllFalseCompletes(t *testing.T) {
	a := NewNode("a", "")
	t1 := NewNode("t1", "")
	f1 := NewFlow("f1", a, t1, "cond-false")
	host := &fakeScriptHost{condFns: map[string]func() (bool, error){
		"cond-false": func() (bool, error) { return false, nil },
	}}
	ec := ExecContext{State: variant.NewState(), Host: host}

	n, err := SelectionExec([]*Flow{f1}).Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n.Kind() != NextComplete {
		t.Fatalf("Execute() kind = %v, want Complete when every candidate resolves false", n.Kind())
	}
}

func TestExecutable_SelectionExecute_EmptySelectionCompletes(t *testing.T) {
	ec := ExecContext{State: variant.NewState(), Host: &fakeScriptHost{}}
	n, err := SelectionExec(nil).Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n.Kind() != NextComplete {
		t.Fatalf("Execute() kind = %v, want Complete for an empty selection", n.Kind())
	}
}
