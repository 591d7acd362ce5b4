package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the error taxonomy of spec.md §7. Callers match
// against these with errors.Is; the typed variants below carry the extra
// fields spec.md requires (procedure/name, procedure/node) and also satisfy
// errors.Is against these sentinels via Unwrap.
var (
	// ErrCanceled indicates a referenced entity is no longer live, or a
	// cursor was canceled mid-operation.
	ErrCanceled = errors.New("donut: canceled")

	// ErrScriptFailed indicates the script host returned an error while
	// running a node or flow script.
	ErrScriptFailed = errors.New("donut: script failed")
)

// NotFoundError reports that Procedure.Find could not resolve name.
type NotFoundError struct {
	Procedure string
	Name      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("donut: %q not found in procedure %q", e.Name, e.Procedure)
}

// Unwrap lets errors.Is(err, ErrCanceled) style checks compose if callers
// choose to wrap a NotFoundError under ErrCanceled; NotFoundError has no
// sentinel of its own to unwrap to, so this returns nil.
func (e *NotFoundError) Unwrap() error { return nil }

// NoNextNodeError reports a Continue on a node with empty outgoings where
// the node declared RequireSuccessor. By default (RequireSuccessor false)
// an empty-outgoings Continue silently completes the cursor instead of
// producing this error — see spec.md §9 O3.
type NoNextNodeError struct {
	Procedure string
	Node      string
}

func (e *NoNextNodeError) Error() string {
	return fmt.Sprintf("donut: node %q in procedure %q has no successor", e.Node, e.Procedure)
}

// ScriptFailedError carries the reason string from a failed script
// evaluation. errors.Is(err, ErrScriptFailed) succeeds for this type.
type ScriptFailedError struct {
	Reason string
}

func (e *ScriptFailedError) Error() string {
	return fmt.Sprintf("donut: script failed: %s", e.Reason)
}

func (e *ScriptFailedError) Is(target error) bool {
	return target == ErrScriptFailed
}

// NewScriptFailed wraps a reason string as a ScriptFailedError.
func NewScriptFailed(reason string) error {
	return &ScriptFailedError{Reason: reason}
}
