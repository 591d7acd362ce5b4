package graph

import "weak"

// Flow is an edge in a procedure graph, carrying an optional condition
// script (spec.md §3). SourceNode and TargetNode are non-owning: the
// Procedure's node map is the sole owner.
type Flow struct {
	Name            string
	ConditionScript string

	sourceNode weak.Pointer[Node]
	targetNode weak.Pointer[Node]
}

// NewFlow constructs a Flow between source and target, owned elsewhere
// (by the Procedure). conditionScript may be empty, meaning "always true"
// per spec.md §4.B–C (a Flow with no condition defaults its directive to
// Continue).
func NewFlow(name string, source, target *Node, conditionScript string) *Flow {
	return &Flow{
		Name:            name,
		ConditionScript: conditionScript,
		sourceNode:      weak.Make(source),
		targetNode:      weak.Make(target),
	}
}

// SourceNode upgrades the non-owning reference to the flow's source node.
// Returns nil if the node (or its owning procedure) is no longer live.
func (f *Flow) SourceNode() *Node { return f.sourceNode.Value() }

// TargetNode upgrades the non-owning reference to the flow's target node.
// Returns nil if the node (or its owning procedure) is no longer live.
func (f *Flow) TargetNode() *Node { return f.targetNode.Value() }
