package graph

import "fmt"

// Procedure is an immutable, named graph of nodes and flows (spec.md §3).
// Once constructed it is not mutated; cursors and Executables hold
// non-owning (weak) references into it, so a Procedure may be collected
// once nothing strong references it, invalidating every Executable that
// pointed into it (spec.md §3 invariant 4, §8 scenario 6).
type Procedure struct {
	Name  string
	Nodes map[string]*Node
	Flows map[string]*Flow

	// order preserves declaration order for deterministic Start()
	// selection (§9 O1) — Go maps are unordered, so node identity order
	// must be tracked explicitly, the way the teacher's BasicGraph tracks
	// nodeOrder alongside its nodes map.
	order []string
}

// NewProcedure constructs an empty, named Procedure. Use AddNode/AddFlow
// to populate it before handing it to a Scheduler; Procedure is meant to
// be fully built by a loader (package loader) before it is shared.
func NewProcedure(name string) *Procedure {
	return &Procedure{
		Name:  name,
		Nodes: make(map[string]*Node),
		Flows: make(map[string]*Flow),
	}
}

// AddNode registers a node, preserving declaration order.
func (p *Procedure) AddNode(n *Node) error {
	if n == nil {
		return fmt.Errorf("donut: cannot add nil node to procedure %q", p.Name)
	}
	if _, exists := p.Nodes[n.Name]; exists {
		return fmt.Errorf("donut: duplicate node %q in procedure %q", n.Name, p.Name)
	}
	p.Nodes[n.Name] = n
	p.order = append(p.order, n.Name)
	return nil
}

// AddFlow registers a flow. Both endpoints must already be registered
// nodes, matching the loader contract of spec.md §6 (every Flow
// referenced in a Node's outgoings has that Node as its source_node, and
// symmetrically).
func (p *Procedure) AddFlow(f *Flow) error {
	if f == nil {
		return fmt.Errorf("donut: cannot add nil flow to procedure %q", p.Name)
	}
	if _, exists := p.Flows[f.Name]; exists {
		return fmt.Errorf("donut: duplicate flow %q in procedure %q", f.Name, p.Name)
	}
	src, dst := f.SourceNode(), f.TargetNode()
	if src == nil || dst == nil || p.Nodes[src.Name] != src || p.Nodes[dst.Name] != dst {
		return fmt.Errorf("donut: flow %q in procedure %q has a dangling endpoint", f.Name, p.Name)
	}
	p.Flows[f.Name] = f
	return nil
}

// Find resolves a node or flow by name, the way a node script's
// set_one(name) call does (spec.md §4.G). Nodes are checked before flows.
func (p *Procedure) Find(name string) (Executable, error) {
	if n, ok := p.Nodes[name]; ok {
		return NodeExec(n), nil
	}
	if f, ok := p.Flows[name]; ok {
		return FlowExec(f), nil
	}
	return Executable{}, &NotFoundError{Procedure: p.Name, Name: name}
}

// Start resolves the procedure's start node, per spec.md §9 O1: the first
// declared node with zero incomings. If no node has zero incomings (the
// graph is fully cyclic), the first declared node is used instead — this
// repository's documented policy decision for the open question.
func (p *Procedure) Start() (*Node, bool) {
	for _, name := range p.order {
		n := p.Nodes[name]
		if len(n.Incomings) == 0 {
			return n, true
		}
	}
	if len(p.order) > 0 {
		return p.Nodes[p.order[0]], true
	}
	return nil, false
}

// NodeOrder returns node names in declaration order.
func (p *Procedure) NodeOrder() []string {
	cp := make([]string, len(p.order))
	copy(cp, p.order)
	return cp
}
