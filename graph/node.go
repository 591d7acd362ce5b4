package graph

// Node is a vertex in a procedure graph. Nodes are immutable after the
// owning Procedure is constructed (spec.md §3).
type Node struct {
	Name   string
	Script string

	// RequireSuccessor opts a node into the strict NoNextNode error (§9 O3)
	// instead of the default silent-complete behavior when Continue finds
	// no outgoings. This is a SPEC_FULL addition (§9) gated per-node so the
	// default policy is unaffected for procedures that don't set it.
	RequireSuccessor bool

	// Incomings and Outgoings are ordered; declaration order is
	// significant for deterministic tie-breaks (spec.md §3, §9).
	Incomings []Executable
	Outgoings []Executable
}

// NewNode constructs a Node with the given name and script. Incomings and
// Outgoings are wired after construction via Procedure, once all nodes and
// flows referenced by them exist.
func NewNode(name, script string) *Node {
	return &Node{Name: name, Script: script}
}
