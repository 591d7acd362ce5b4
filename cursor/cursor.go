// Package cursor implements the live-traversal node of a procedure graph
// (spec.md §3 component E): a position plus its subtree, signal channel,
// and cancellation handle. A cursor's mutable fields are guarded by its
// own lock; cursors hold no references to peer cursors except via the
// parent/children relation (weak to parent, owning to children).
package cursor

import (
	"context"
	"sync"
	"weak"

	"github.com/google/uuid"

	"github.com/ronbb/donut/graph"
	"github.com/ronbb/donut/variant"
)

// DefaultSignalCapacity is the recommended directive-channel buffer size
// (spec.md §5): bounded, ≥1, senders block rather than drop.
const DefaultSignalCapacity = 100

// Cursor is a live position in a procedure graph plus its subtree.
type Cursor struct {
	id        string
	procedure weak.Pointer[graph.Procedure]
	parent    weak.Pointer[Cursor]

	signals chan graph.Next
	ctx     context.Context
	cancel  context.CancelFunc

	mu         sync.RWMutex
	current    graph.Executable
	state      *variant.State
	children   []*Cursor
	isComplete bool
	bubbled    bool

	// fan tracks the origin node and the exact outgoing set most recently
	// fanned out via Parallel, so the join's implicit Continue (spec.md
	// §4.F) can compute what (if anything) remains instead of re-deriving
	// the same outgoings and re-spawning forever. See DESIGN.md.
	fan fanState
}

type fanState struct {
	active bool
	origin graph.Executable
	fanned []graph.Executable
}

// New constructs a root cursor positioned on root, owned by no parent,
// deriving its cancellation from parentCtx (typically context.Background()
// for a cursor started directly by a Scheduler).
func New(parentCtx context.Context, procedure *graph.Procedure, root graph.Executable, initial *variant.State, signalCapacity int) *Cursor {
	if signalCapacity < 1 {
		signalCapacity = DefaultSignalCapacity
	}
	if initial == nil {
		initial = variant.NewState()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	return &Cursor{
		id:        uuid.NewString(),
		procedure: weak.Make(procedure),
		signals:   make(chan graph.Next, signalCapacity),
		ctx:       ctx,
		cancel:    cancel,
		current:   root,
		state:     initial,
	}
}

// ID returns the cursor's opaque unique identifier.
func (c *Cursor) ID() string { return c.id }

// Procedure upgrades the cursor's non-owning reference to its governing
// procedure. Returns nil once the procedure is no longer live (spec.md §3
// invariant 4, §8 scenario 6).
func (c *Cursor) Procedure() *graph.Procedure { return c.procedure.Value() }

// Parent upgrades the cursor's non-owning reference to its parent.
// Returns nil for a root cursor or once the parent is gone.
func (c *Cursor) Parent() *Cursor { return c.parent.Value() }

// State returns the cursor's own State. Only this cursor's execution
// loop may mutate it.
func (c *Cursor) State() *variant.State { return c.state }

// Current returns the Executable the cursor is positioned on.
func (c *Cursor) Current() graph.Executable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SetCurrent repositions the cursor.
func (c *Cursor) SetCurrent(e graph.Executable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = e
}

// IsComplete reports the cursor's terminal flag (monotone: once true,
// never becomes false again — spec.md §3 invariant 3).
func (c *Cursor) IsComplete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isComplete
}

// Bubbled reports whether this cursor reached completion via a Bubble
// directive, as opposed to an ordinary Complete.
func (c *Cursor) Bubbled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bubbled
}

// Children returns a snapshot of the cursor's owned child cursors, in
// creation order.
func (c *Cursor) Children() []*Cursor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]*Cursor, len(c.children))
	copy(cp, c.children)
	return cp
}

// Context returns the cursor's cancellation context. Canceling it (via
// Complete, CompleteAndBubble, or an ancestor's cancellation) propagates
// to every descendant (spec.md §3 invariant 1).
func (c *Cursor) Context() context.Context { return c.ctx }

// Signals exposes the directive channel, receive side, and cancellation
// context (spec.md §4.E). The channel lets a child notify this cursor's
// loop (e.g. the last child of a Parallel fan-out pushing the join's
// implicit Continue) ahead of the next current.execute() step.
func (c *Cursor) Signals() (send chan<- graph.Next, recv <-chan graph.Next, ctx context.Context) {
	return c.signals, c.signals, c.ctx
}

// Push sends a directive onto this cursor's signal channel, blocking if
// it is full (spec.md §5 backpressure: the design intentionally does not
// drop directives). It no-ops once the cursor is already complete.
func (c *Cursor) Push(ctx context.Context, n graph.Next) {
	if c.IsComplete() {
		return
	}
	select {
	case c.signals <- n:
	case <-ctx.Done():
	case <-c.ctx.Done():
	}
}

// CreateChildren clones the cursor's State per child (snapshot semantics,
// spec.md §3 invariant 5), derives each child's cancellation from this
// cursor's, and installs the children in order (spec.md §4.E).
func (c *Cursor) CreateChildren(es []graph.Executable) []*Cursor {
	proc := c.Procedure()
	children := make([]*Cursor, len(es))

	c.mu.Lock()
	snapshot := c.state.Clone()
	for i, e := range es {
		child := New(c.ctx, proc, e, snapshot.Clone(), cap(c.signals))
		child.parent = weak.Make(c)
		children[i] = child
	}
	c.children = append(c.children, children...)
	c.mu.Unlock()

	return children
}

// BeginFan records that es is being fanned out via Parallel from this
// cursor's current executable, for the join's implicit-Continue
// computation.
func (c *Cursor) BeginFan(es []graph.Executable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fan = fanState{active: true, origin: c.current, fanned: append([]graph.Executable(nil), es...)}
}

// FanRemainder returns the outgoings of the fan's origin node that were
// not part of the most recent fan-out, consuming the fan state. Used by
// the scheduler to compute the join's implicit Continue (spec.md §4.F):
// when the origin's full outgoings were fanned (the common case), the
// remainder is empty and the join simply completes the cursor.
func (c *Cursor) FanRemainder() []graph.Executable {
	c.mu.Lock()
	fan := c.fan
	c.fan = fanState{}
	c.mu.Unlock()

	if !fan.active {
		return nil
	}
	all := fan.origin.Outgoings()
	remainder := make([]graph.Executable, 0, len(all))
	for _, cand := range all {
		used := false
		for _, f := range fan.fanned {
			if graph.Equal(cand, f) {
				used = true
				break
			}
		}
		if !used {
			remainder = append(remainder, cand)
		}
	}
	return remainder
}

// HasChildren reports whether the cursor currently owns any child that is
// not yet complete; used to implement invariant 2 (a cursor with live
// children is suspended on its own current until the fan-out's join
// pushes the post-join directive onto this cursor's signal channel).
func (c *Cursor) HasChildren() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, child := range c.children {
		if !child.IsComplete() {
			return true
		}
	}
	return false
}

// Complete sets is_complete and cancels this cursor's cancellation token,
// which propagates to every descendant (spec.md §4.E).
func (c *Cursor) Complete() {
	c.mu.Lock()
	c.isComplete = true
	c.mu.Unlock()
	c.cancel()
}

// CompleteAndBubble completes this cursor and its parent (if any),
// marking both as having bubbled so the parent's scheduler loop collapses
// the remaining siblings via the now-canceled shared parent context
// (spec.md §4.E, §8 scenario 5, testable property 7).
func (c *Cursor) CompleteAndBubble() {
	c.mu.Lock()
	c.isComplete = true
	c.bubbled = true
	c.mu.Unlock()
	c.cancel()

	if parent := c.Parent(); parent != nil {
		parent.mu.Lock()
		parent.isComplete = true
		parent.bubbled = true
		parent.mu.Unlock()
		parent.cancel()
	}
}

// RemoveChild drops a completed child from this cursor's owned children,
// matching the lifecycle rule of spec.md §3 (destroyed once complete and
// removed from its parent's children).
func (c *Cursor) RemoveChild(child *Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ch := range c.children {
		if ch == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return
		}
	}
}
