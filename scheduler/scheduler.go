// Package scheduler drives cursors concurrently over a procedure,
// applying each directive a node or flow script returns (spec.md §4.F).
// Its shape follows the teacher's WorkflowScheduler: a long-lived struct
// configured once, handed a unit of work, and run to completion while
// emitting structured events.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ronbb/donut/bus"
	"github.com/ronbb/donut/cursor"
	"github.com/ronbb/donut/events"
	"github.com/ronbb/donut/graph"
	"github.com/ronbb/donut/variant"
)

// DefaultSignalCapacity is used when Config.SignalCapacity is unset.
const DefaultSignalCapacity = cursor.DefaultSignalCapacity

// Config configures a Scheduler.
type Config struct {
	// Host runs node and flow scripts; required.
	Host graph.Host

	// Bus receives lifecycle events; optional (events are dropped if nil).
	Bus bus.EventBus

	// SignalCapacity is the per-cursor directive channel buffer size.
	// Default: cursor.DefaultSignalCapacity.
	SignalCapacity int

	// Now returns the current time; overridable for deterministic tests
	// of Wait directives. Default: time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// DefaultConfig returns a Config with every optional field defaulted.
func DefaultConfig(host graph.Host) Config {
	return Config{
		Host:           host,
		SignalCapacity: DefaultSignalCapacity,
		Now:            time.Now,
		Logger:         slog.Default(),
	}
}

// Scheduler runs procedures by driving one goroutine per live cursor
// (spec.md §4.E–F).
type Scheduler struct {
	host           graph.Host
	bus            bus.EventBus
	signalCapacity int
	now            func() time.Time
	logger         *slog.Logger
}

// New constructs a Scheduler from cfg, defaulting unset optional fields.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Host == nil {
		return nil, errors.New("donut: scheduler host is nil")
	}
	if cfg.SignalCapacity <= 0 {
		cfg.SignalCapacity = DefaultSignalCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		host:           cfg.Host,
		bus:            cfg.Bus,
		signalCapacity: cfg.SignalCapacity,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}, nil
}

// Run starts a procedure at its declared Start node and blocks until the
// root cursor (and every descendant) has completed. It returns the root
// cursor's final State and, if the run ended via an unrecovered script
// error, that error.
func (s *Scheduler) Run(ctx context.Context, procedure *graph.Procedure, initial *variant.State) (*variant.State, error) {
	root := cursor.New(ctx, procedure, graph.ProcedureExec(procedure), initial, s.signalCapacity)
	runID := uuid.NewString()
	runStart := s.now()

	s.emit(events.New(runStart, events.KindProcedureStarted, runID, root.ID()).WithProcedure(procedure.Name))

	err := s.loop(ctx, runID, root, runStart)

	s.emit(events.New(s.now(), events.KindProcedureFinished, runID, root.ID()).
		WithProcedure(procedure.Name).WithElapsed(s.now().Sub(runStart)).WithErr(err))
	return root.State(), err
}

// loop is the per-cursor execution task (spec.md §4.E, grounded on the
// original scheduler's loop_cursor): while not complete, either react to
// a directive pushed onto the cursor's own signal channel (the only way a
// suspended parent learns its fan-out has joined) or execute current and
// apply the directive it returns.
func (s *Scheduler) loop(ctx context.Context, runID string, c *cursor.Cursor, cursorStart time.Time) error {
	_, recv, cctx := c.Signals()

	for {
		if c.IsComplete() {
			return nil
		}

		if c.HasChildren() {
			// A cursor with live children is suspended on its own current
			// (invariant 2): it does not execute again until the fan-out's
			// join goroutine pushes the post-join directive.
			select {
			case <-ctx.Done():
				s.completeCanceled(runID, c, cursorStart)
				return nil
			case <-cctx.Done():
				s.completeCanceled(runID, c, cursorStart)
				return nil
			case n := <-recv:
				if err := s.apply(ctx, runID, c, n, cursorStart); err != nil {
					return err
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.completeCanceled(runID, c, cursorStart)
			return nil
		case <-cctx.Done():
			s.completeCanceled(runID, c, cursorStart)
			return nil
		case n := <-recv:
			if err := s.apply(ctx, runID, c, n, cursorStart); err != nil {
				return err
			}
			continue
		default:
		}

		current := c.Current()
		ec := graph.ExecContext{Procedure: c.Procedure(), State: c.State(), Host: s.host}

		s.emitFor(runID, c, events.KindNodeEntered, current)
		n, err := current.Execute(cctx, ec)
		if err != nil {
			if errors.Is(err, graph.ErrCanceled) {
				s.completeCanceled(runID, c, cursorStart)
				return nil
			}
			s.emit(events.New(s.now(), events.KindCursorFailed, runID, c.ID()).
				WithProcedure(procedureName(c)).WithErr(err).WithElapsed(s.now().Sub(cursorStart)))
			return err
		}
		s.emitFor(runID, c, events.KindNodeDirective, current)

		if err := s.apply(ctx, runID, c, n, cursorStart); err != nil {
			return err
		}
	}
}

// apply implements the directive-application rules of spec.md §4.F for
// each of the eight Next kinds.
func (s *Scheduler) apply(ctx context.Context, runID string, c *cursor.Cursor, n graph.Next, cursorStart time.Time) error {
	switch n.Kind() {
	case graph.NextNull:
		return nil

	case graph.NextContinue:
		outgoings := c.Current().Outgoings()
		switch len(outgoings) {
		case 0:
			if node := c.Current().Node(); node != nil && node.RequireSuccessor {
				return &graph.NoNextNodeError{Procedure: procedureName(c), Node: node.Name}
			}
			c.Complete()
			s.emit(events.New(s.now(), events.KindCursorCompleted, runID, c.ID()).WithProcedure(procedureName(c)).WithElapsed(s.now().Sub(cursorStart)))
			return nil
		case 1:
			c.SetCurrent(outgoings[0])
			return nil
		default:
			// Multiple declared outgoings: all-Flow fans out as a race
			// (Selection); anything mixed or non-Flow fans out as a true
			// concurrent join (Parallel) — spec.md §9 O2.
			if allFlows(outgoings) {
				c.SetCurrent(graph.SelectionExec(flowsOf(outgoings)))
			} else {
				s.fanOut(ctx, runID, c, outgoings)
			}
			return nil
		}

	case graph.NextOne:
		c.SetCurrent(n.Target())
		return nil

	case graph.NextParallel:
		s.fanOut(ctx, runID, c, n.Targets())
		return nil

	case graph.NextSelect:
		targets := n.Targets()
		if ready, ok := firstReady(targets); ok {
			c.SetCurrent(ready)
		} else {
			c.SetCurrent(graph.SelectionExec(flowsOf(targets)))
		}
		s.emit(events.New(s.now(), events.KindSelectWon, runID, c.ID()).WithProcedure(procedureName(c)))
		return nil

	case graph.NextWait:
		s.emit(events.New(s.now(), events.KindWaitScheduled, runID, c.ID()).WithProcedure(procedureName(c)).WithPayload("deadline", n.Deadline()))
		delay := n.Deadline().Sub(s.now())
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			s.completeCanceled(runID, c, cursorStart)
			return nil
		case <-c.Context().Done():
			s.completeCanceled(runID, c, cursorStart)
			return nil
		}
		c.SetCurrent(n.Target())
		return nil

	case graph.NextComplete:
		c.Complete()
		s.emit(events.New(s.now(), events.KindCursorCompleted, runID, c.ID()).WithProcedure(procedureName(c)).WithElapsed(s.now().Sub(cursorStart)))
		return nil

	case graph.NextBubble:
		c.CompleteAndBubble()
		s.emit(events.New(s.now(), events.KindCursorBubbled, runID, c.ID()).WithProcedure(procedureName(c)).WithElapsed(s.now().Sub(cursorStart)))
		return nil

	default:
		return nil
	}
}

// StartProcedure starts procedure at its declared Start node under initial
// state and blocks until the run completes, exactly as Run. It exists
// under this name for callers that start a procedure as a unit of work
// rather than drive it directly — the trigger package's cron-scheduled
// recurring invocations in particular.
func (s *Scheduler) StartProcedure(ctx context.Context, procedure *graph.Procedure, initial *variant.State) (*variant.State, error) {
	return s.Run(ctx, procedure, initial)
}

// fanOut spawns one child cursor per target, drives each child's full
// subtree concurrently, and once every child is complete pushes the
// join's resulting directive onto the parent's own signal channel
// (spec.md §4.F: the implicit Continue along whatever outgoings of the
// fan's origin were not part of the fan-out, or Bubble if any child
// bubbled). Running this asynchronously keeps the parent loop free to
// react to cancellation while the fan-out is in flight.
func (s *Scheduler) fanOut(ctx context.Context, runID string, c *cursor.Cursor, targets []graph.Executable) {
	c.BeginFan(targets)
	children := c.CreateChildren(targets)
	childIDs := make([]string, len(children))
	for i, child := range children {
		childIDs[i] = child.ID()
	}
	s.emit(events.New(s.now(), events.KindParallelFanOut, runID, c.ID()).
		WithProcedure(procedureName(c)).WithPayload("count", len(children)).WithPayload("children", childIDs))

	go func() {
		var wg sync.WaitGroup
		bubbled := make([]bool, len(children))
		childStart := s.now()
		for i, child := range children {
			wg.Add(1)
			go func(i int, child *cursor.Cursor) {
				defer wg.Done()
				s.loop(ctx, runID, child, childStart)
				bubbled[i] = child.Bubbled()
			}(i, child)
		}
		wg.Wait()

		s.emit(events.New(s.now(), events.KindParallelJoined, runID, c.ID()).WithProcedure(procedureName(c)))

		anyBubbled := false
		for _, b := range bubbled {
			if b {
				anyBubbled = true
				break
			}
		}

		if anyBubbled {
			c.Push(ctx, graph.Bubble())
			return
		}

		remainder := c.FanRemainder()
		switch len(remainder) {
		case 0:
			c.Push(ctx, graph.Complete())
		case 1:
			c.Push(ctx, graph.One(remainder[0]))
		default:
			c.Push(ctx, graph.Select(remainder))
		}
	}()
}

// completeCanceled marks c (and, transitively via c.Complete's cancel
// propagation, every live descendant) complete when the cursor's loop exits
// because its context was canceled rather than because a script produced a
// terminal directive (spec.md §4.F step 2: "On cancel.cancelled: call
// complete(), break."). Without this, a canceled cursor's is_complete stays
// false forever, which breaks cancellation transitivity and leaves a
// bubbled Parallel's surviving siblings permanently incomplete.
func (s *Scheduler) completeCanceled(runID string, c *cursor.Cursor, cursorStart time.Time) {
	if c.IsComplete() {
		return
	}
	c.Complete()
	s.emit(events.New(s.now(), events.KindCursorCompleted, runID, c.ID()).
		WithProcedure(procedureName(c)).WithElapsed(s.now().Sub(cursorStart)).WithPayload("canceled", true))
}

func (s *Scheduler) emit(e events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(e)
}

func (s *Scheduler) emitFor(runID string, c *cursor.Cursor, kind events.Kind, e graph.Executable) {
	if s.bus == nil {
		return
	}
	name := ""
	switch e.Kind() {
	case graph.ExecNode:
		if n := e.Node(); n != nil {
			name = n.Name
		}
	case graph.ExecFlow:
		if f := e.Flow(); f != nil {
			name = f.Name
		}
	}
	s.emit(events.New(s.now(), kind, runID, c.ID()).WithProcedure(procedureName(c)).WithExecutable(name))
}

func procedureName(c *cursor.Cursor) string {
	if p := c.Procedure(); p != nil {
		return p.Name
	}
	return ""
}

func flowsOf(es []graph.Executable) []*graph.Flow {
	out := make([]*graph.Flow, 0, len(es))
	for _, e := range es {
		if f := e.Flow(); f != nil {
			out = append(out, f)
		}
	}
	return out
}

// allFlows reports whether every executable in es is a Flow.
func allFlows(es []graph.Executable) bool {
	for _, e := range es {
		if e.Kind() != graph.ExecFlow {
			return false
		}
	}
	return true
}

// firstReady returns the first Node or Procedure executable in es, in
// declaration order (spec.md §9 O2/O4: pure Node or Procedure executables
// are immediately ready and the first one wins a Select outright, ahead of
// any Flow candidates that would otherwise need their condition scripts
// evaluated).
func firstReady(es []graph.Executable) (graph.Executable, bool) {
	for _, e := range es {
		if e.Kind() == graph.ExecNode || e.Kind() == graph.ExecProcedure {
			return e, true
		}
	}
	return graph.Executable{}, false
}
