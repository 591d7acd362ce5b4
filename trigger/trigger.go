// Package trigger recurrently invokes Scheduler.StartProcedure on a cron
// schedule, grounded on the teacher's server/cron.go UTC-only parser. It
// supplements the Rust source's unused Scheduler.providers field (spec.md
// §9, SPEC_FULL §12) without resurrecting the undefined Provider type
// itself.
package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ronbb/donut/graph"
	"github.com/ronbb/donut/scheduler"
	"github.com/ronbb/donut/variant"
)

// standardParser matches the teacher's standardCronParser: a standard
// 5-field expression (minute hour dom month dow), no seconds field.
var standardParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// ParseUTC parses a standard 5-field cron expression, rejecting any
// CRON_TZ= or TZ= prefix. A Trigger always fires against UTC wall-clock
// time, so a per-expression timezone would be silently ignored rather
// than honored — reject it instead of pretending to support it.
func ParseUTC(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("donut: cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("donut: cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("donut: invalid cron expression: %w", err)
	}
	return schedule, nil
}

// Config configures a Trigger.
type Config struct {
	// Expr is a standard 5-field, UTC-only cron expression.
	Expr string

	Scheduler *scheduler.Scheduler
	Procedure *graph.Procedure

	// Initial is cloned for every fire so no two runs share State (spec.md
	// §3 invariant 5). May be nil.
	Initial *variant.State

	// Now returns the current time; overridable for deterministic tests.
	// Default: time.Now.
	Now func() time.Time

	// OnError receives each run's error, if any. Default: discarded.
	OnError func(error)
}

// Trigger fires Scheduler.StartProcedure at every instant Expr schedules,
// until its Run's context is canceled.
type Trigger struct {
	schedule  cron.Schedule
	scheduler *scheduler.Scheduler
	procedure *graph.Procedure
	initial   *variant.State
	now       func() time.Time
	onError   func(error)
}

// New validates cfg and constructs a Trigger.
func New(cfg Config) (*Trigger, error) {
	schedule, err := ParseUTC(cfg.Expr)
	if err != nil {
		return nil, err
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("donut: trigger scheduler is nil")
	}
	if cfg.Procedure == nil {
		return nil, fmt.Errorf("donut: trigger procedure is nil")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	onError := cfg.OnError
	if onError == nil {
		onError = func(error) {}
	}
	return &Trigger{
		schedule:  schedule,
		scheduler: cfg.Scheduler,
		procedure: cfg.Procedure,
		initial:   cfg.Initial,
		now:       now,
		onError:   onError,
	}, nil
}

// Next reports the next UTC instant the trigger will fire, after from.
func (t *Trigger) Next(from time.Time) time.Time {
	return t.schedule.Next(from.UTC())
}

// Run blocks, starting procedure at every scheduled instant until ctx is
// canceled. Each fire is independent: one run's error (reported via
// Config.OnError) does not stop later fires.
func (t *Trigger) Run(ctx context.Context) {
	for {
		delay := t.Next(t.now()).Sub(t.now())
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		var initial *variant.State
		if t.initial != nil {
			initial = t.initial.Clone()
		}
		if _, err := t.scheduler.StartProcedure(ctx, t.procedure, initial); err != nil {
			t.onError(err)
		}
	}
}
