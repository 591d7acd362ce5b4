// Package events defines the structured, streamable records the scheduler
// emits as cursors execute, mirroring the shape of petalflow's runtime
// events but scoped to the cursor/directive lifecycle of this engine.
package events

import "time"

// Kind identifies the type of event emitted by the scheduler.
type Kind string

const (
	// KindProcedureStarted is emitted when a root cursor is created.
	KindProcedureStarted Kind = "procedure_started"

	// KindNodeEntered is emitted just before a cursor's current executable
	// (node, flow, procedure or selection) runs.
	KindNodeEntered Kind = "node_entered"

	// KindNodeDirective is emitted once a node or flow script returns its
	// directive, before the scheduler applies it.
	KindNodeDirective Kind = "node_directive"

	// KindFlowEvaluated names a flow's condition script resolving. The
	// scheduler does not emit it; a flow step is reported through
	// KindNodeEntered and KindNodeDirective.
	KindFlowEvaluated Kind = "flow_evaluated"

	// KindParallelFanOut is emitted when a Parallel directive spawns
	// children.
	KindParallelFanOut Kind = "parallel_fan_out"

	// KindParallelJoined is emitted when every child of a fan-out has
	// completed and the parent resumes.
	KindParallelJoined Kind = "parallel_joined"

	// KindSelectWon is emitted when a Select race resolves to a winner.
	KindSelectWon Kind = "select_won"

	// KindWaitScheduled is emitted when a cursor parks on a Wait deadline.
	KindWaitScheduled Kind = "wait_scheduled"

	// KindCursorCompleted is emitted when a cursor terminates normally.
	KindCursorCompleted Kind = "cursor_completed"

	// KindCursorBubbled is emitted when a cursor terminates via Bubble.
	KindCursorBubbled Kind = "cursor_bubbled"

	// KindCursorFailed is emitted when a cursor's loop exits on error.
	KindCursorFailed Kind = "cursor_failed"

	// KindProcedureFinished is emitted when the root cursor of a run
	// completes, independent of how many descendants it had.
	KindProcedureFinished Kind = "procedure_finished"
)

// String returns the event kind's string representation.
func (k Kind) String() string { return string(k) }

// Event is a structured record of one scheduler-observed occurrence.
type Event struct {
	Kind Kind

	// Seq is the sequence number an EventStore orders and pages events by.
	// The scheduler leaves it zero, and MemEventStore stores it as given.
	Seq uint64

	// RunID identifies the root cursor's run.
	RunID string

	// CursorID identifies the cursor the event concerns.
	CursorID string

	// ParentCursorID is empty for a root cursor.
	ParentCursorID string

	// Procedure is the governing procedure's name.
	Procedure string

	// Executable names the Node/Flow the event concerns, when applicable.
	Executable string

	Time    time.Time
	Elapsed time.Duration

	// Payload carries event-specific data; keep it small.
	Payload map[string]any

	// Err is populated for KindCursorFailed.
	Err error
}

// New constructs an Event stamped with t (the caller supplies the clock so
// schedulers stay testable without wall-clock dependence).
func New(t time.Time, kind Kind, runID, cursorID string) Event {
	return Event{Kind: kind, RunID: runID, CursorID: cursorID, Time: t, Payload: make(map[string]any)}
}

// WithParent sets the parent cursor ID.
func (e Event) WithParent(parentID string) Event {
	e.ParentCursorID = parentID
	return e
}

// WithProcedure sets the governing procedure's name.
func (e Event) WithProcedure(name string) Event {
	e.Procedure = name
	return e
}

// WithExecutable sets the Node/Flow name the event concerns.
func (e Event) WithExecutable(name string) Event {
	e.Executable = name
	return e
}

// WithElapsed sets the elapsed duration since the run or cursor started.
func (e Event) WithElapsed(d time.Duration) Event {
	e.Elapsed = d
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// WithErr sets the error on a KindCursorFailed event.
func (e Event) WithErr(err error) Event {
	e.Err = err
	return e
}
