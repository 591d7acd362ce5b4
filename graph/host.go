package graph

import (
	"context"

	"github.com/ronbb/donut/variant"
)

// Host is the script host adapter contract (spec.md §4.G / §6). It is a
// black box from the engine's point of view: given a node's script text
// and an ExecContext, it returns the directive the script requested;
// given a flow's condition script, it returns a boolean. Implementations
// must be re-entrant — scripts never hold a lock on the cursor across a
// blocking call.
type Host interface {
	// RunNode executes a node script and returns the directive it set.
	// Absence of any set_* call defaults to Null.
	RunNode(ctx context.Context, script string, ec ExecContext) (Next, error)

	// EvalCondition executes a flow's condition script and returns the
	// boolean it evaluated to.
	EvalCondition(ctx context.Context, script string, ec ExecContext) (bool, error)
}

// ExecContext is the "cursor handle" exposed to a script host invocation:
// enough of the owning cursor's state to satisfy the script host contract
// (context.get/set/remove/has and procedure.find) without graph importing
// package cursor.
type ExecContext struct {
	// Procedure is the governing procedure, used to resolve set_one(name)
	// lookups via Procedure.Find.
	Procedure *Procedure

	// State is the cursor's own State; node scripts mutate it via
	// set_state.
	State *variant.State

	// Host runs the node/flow scripts. Executable.Execute calls back into
	// it; Selection.Execute calls it once per racing flow.
	Host Host
}

// Find resolves name against the governing procedure, the way a node
// script's set_one(name) call does.
func (ec ExecContext) Find(name string) (Executable, error) {
	if ec.Procedure == nil {
		return Executable{}, &NotFoundError{Name: name}
	}
	return ec.Procedure.Find(name)
}
