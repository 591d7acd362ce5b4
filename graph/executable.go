package graph

import (
	"context"
	"fmt"
	"weak"
)

// ExecKind identifies which graph entity an Executable refers to.
type ExecKind int

const (
	ExecNode ExecKind = iota
	ExecFlow
	ExecProcedure
	ExecSelection
)

func (k ExecKind) String() string {
	switch k {
	case ExecNode:
		return "Node"
	case ExecFlow:
		return "Flow"
	case ExecProcedure:
		return "Procedure"
	case ExecSelection:
		return "Selection"
	default:
		return "Unknown"
	}
}

// Executable is a tagged, non-owning reference to one runnable graph
// entity, uniform under a single execute/outgoings contract (spec.md
// §3, §4.B–C). All variants hold weak references: the arena (Procedure)
// is the sole owner of Nodes and Flows, so an Executable keeps neither its
// referent nor the Procedure that owns it alive; once the referent is
// gone, Execute returns ErrCanceled.
type Executable struct {
	kind      ExecKind
	node      weak.Pointer[Node]
	flow      weak.Pointer[Flow]
	procedure weak.Pointer[Procedure]
	selection []weak.Pointer[Flow]
}

// NodeExec wraps a Node reference.
func NodeExec(n *Node) Executable { return Executable{kind: ExecNode, node: weak.Make(n)} }

// FlowExec wraps a Flow reference.
func FlowExec(f *Flow) Executable { return Executable{kind: ExecFlow, flow: weak.Make(f)} }

// ProcedureExec wraps a Procedure reference — the root executable.
func ProcedureExec(p *Procedure) Executable {
	return Executable{kind: ExecProcedure, procedure: weak.Make(p)}
}

// SelectionExec wraps an ordered set of candidate flows whose conditions
// will race (spec.md §3, §9 O4).
func SelectionExec(flows []*Flow) Executable {
	ptrs := make([]weak.Pointer[Flow], len(flows))
	for i, f := range flows {
		ptrs[i] = weak.Make(f)
	}
	return Executable{kind: ExecSelection, selection: ptrs}
}

// Kind reports which alternative is populated.
func (e Executable) Kind() ExecKind { return e.kind }

// Node upgrades a Node executable's weak reference; nil if not a Node
// executable or if the referent is no longer live.
func (e Executable) Node() *Node {
	if e.kind != ExecNode {
		return nil
	}
	return e.node.Value()
}

// Flow upgrades a Flow executable's weak reference; nil if not a Flow
// executable or if the referent is no longer live.
func (e Executable) Flow() *Flow {
	if e.kind != ExecFlow {
		return nil
	}
	return e.flow.Value()
}

// Procedure upgrades a Procedure executable's weak reference; nil if not
// a Procedure executable or if the referent is no longer live.
func (e Executable) Procedure() *Procedure {
	if e.kind != ExecProcedure {
		return nil
	}
	return e.procedure.Value()
}

// SelectionFlows upgrades every flow referenced by a Selection executable,
// in declaration order, skipping any that are no longer live. Returns nil
// for non-Selection executables.
func (e Executable) SelectionFlows() []*Flow {
	if e.kind != ExecSelection {
		return nil
	}
	out := make([]*Flow, 0, len(e.selection))
	for _, wp := range e.selection {
		if f := wp.Value(); f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Equal reports identity equality between two Executables: same kind,
// same referenced entity (for Selection, same flows in the same order).
// Per spec.md §3, equality is identity of the referenced entity, not
// value equality of its contents.
func Equal(a, b Executable) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case ExecNode:
		an, bn := a.node.Value(), b.node.Value()
		return an != nil && bn != nil && an == bn
	case ExecFlow:
		af, bf := a.flow.Value(), b.flow.Value()
		return af != nil && bf != nil && af == bf
	case ExecProcedure:
		ap, bp := a.procedure.Value(), b.procedure.Value()
		return ap != nil && bp != nil && ap == bp
	case ExecSelection:
		if len(a.selection) != len(b.selection) {
			return false
		}
		for i := range a.selection {
			af, bf := a.selection[i].Value(), b.selection[i].Value()
			if af == nil || bf == nil || af != bf {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Outgoings returns the ordered successors of e (spec.md §4.B–C). For a
// Node, its declared outgoings. For a Flow, a single-element list
// wrapping its target node. For a Procedure, empty. For a Selection, its
// contained flows wrapped as Flow executables.
func (e Executable) Outgoings() []Executable {
	switch e.kind {
	case ExecNode:
		n := e.Node()
		if n == nil {
			return nil
		}
		return n.Outgoings
	case ExecFlow:
		f := e.Flow()
		if f == nil {
			return nil
		}
		target := f.TargetNode()
		if target == nil {
			return nil
		}
		return []Executable{NodeExec(target)}
	case ExecProcedure:
		return nil
	case ExecSelection:
		flows := e.SelectionFlows()
		out := make([]Executable, len(flows))
		for i, f := range flows {
			out[i] = FlowExec(f)
		}
		return out
	default:
		return nil
	}
}

// Execute runs the underlying entity against ec, per spec.md §4.B–C.
func (e Executable) Execute(ctx context.Context, ec ExecContext) (Next, error) {
	switch e.kind {
	case ExecNode:
		n := e.Node()
		if n == nil {
			return Next{}, ErrCanceled
		}
		return ec.Host.RunNode(ctx, n.Script, ec)

	case ExecFlow:
		f := e.Flow()
		if f == nil {
			return Next{}, ErrCanceled
		}
		if f.ConditionScript == "" {
			return Continue(), nil
		}
		ok, err := ec.Host.EvalCondition(ctx, f.ConditionScript, ec)
		if err != nil {
			return Next{}, err
		}
		if ok {
			return Continue(), nil
		}
		return Complete(), nil

	case ExecProcedure:
		p := e.Procedure()
		if p == nil {
			return Next{}, ErrCanceled
		}
		start, ok := p.Start()
		if !ok {
			return Complete(), nil
		}
		return One(NodeExec(start)), nil

	case ExecSelection:
		return e.executeSelection(ctx, ec)

	default:
		return Next{}, fmt.Errorf("donut: invalid executable kind %v", e.kind)
	}
}

// executeSelection implements §9 O4: race the contained flows' condition
// scripts concurrently; the first flow in declaration order whose
// condition is known to be true (once every earlier candidate is known
// false) wins. Losing evaluations are canceled via ctx. All false (or no
// live candidates) yields Complete, matching the original scheduler's
// handle_next_operation Next::Select arm for an empty survivor set.
func (e Executable) executeSelection(ctx context.Context, ec ExecContext) (Next, error) {
	flows := e.SelectionFlows()
	if len(flows) == 0 {
		return Complete(), nil
	}

	type result struct {
		index int
		ok    bool
		err   error
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, len(flows))
	for i, f := range flows {
		i, f := i, f
		go func() {
			if f.ConditionScript == "" {
				results <- result{index: i, ok: true}
				return
			}
			ok, err := ec.Host.EvalCondition(raceCtx, f.ConditionScript, ec)
			results <- result{index: i, ok: ok, err: err}
		}()
	}

	done := make([]bool, len(flows))
	value := make([]bool, len(flows))
	var errs []error
	resolved := 0

	for resolved < len(flows) {
		r := <-results
		resolved++
		done[r.index] = true
		if r.err != nil {
			errs = append(errs, r.err)
		} else {
			value[r.index] = r.ok
		}

		// A winner exists once we can find, in declaration order, a done
		// index whose value is true with every earlier index already
		// resolved false. This is the deterministic tie-break the
		// Determinism section of spec.md §4.F requires.
		winner := -1
		for i := 0; i < len(flows); i++ {
			if !done[i] {
				break
			}
			if value[i] {
				winner = i
				break
			}
		}
		if winner >= 0 {
			cancel()
			return One(FlowExec(flows[winner])), nil
		}
	}

	if len(errs) > 0 {
		return Next{}, errs[0]
	}
	return Complete(), nil
}
