package scheduler

import (
	"context"
	"sync"

	"github.com/ronbb/donut/graph"
)

// fakeHost is a scripted graph.Host for tests: node/flow scripts are
// opaque keys looked up in a table supplied by the test, rather than Lua
// source. This mirrors the teacher's convention of exercising the
// scheduler against hand-built fakes instead of a real script engine
// where only the directive/condition contract is under test.
type fakeHost struct {
	mu sync.Mutex

	nodeScripts map[string]func(ctx context.Context, ec graph.ExecContext) (graph.Next, error)
	conditions  map[string]func(ctx context.Context, ec graph.ExecContext) (bool, error)

	// ran records every script key invoked, in call order.
	ran []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		nodeScripts: make(map[string]func(ctx context.Context, ec graph.ExecContext) (graph.Next, error)),
		conditions:  make(map[string]func(ctx context.Context, ec graph.ExecContext) (bool, error)),
	}
}

func (h *fakeHost) onNode(key string, fn func(ctx context.Context, ec graph.ExecContext) (graph.Next, error)) {
	h.nodeScripts[key] = fn
}

func (h *fakeHost) onCondition(key string, fn func(ctx context.Context, ec graph.ExecContext) (bool, error)) {
	h.conditions[key] = fn
}

func (h *fakeHost) record(key string) {
	h.mu.Lock()
	h.ran = append(h.ran, key)
	h.mu.Unlock()
}

func (h *fakeHost) calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := make([]string, len(h.ran))
	copy(cp, h.ran)
	return cp
}

func (h *fakeHost) RunNode(ctx context.Context, script string, ec graph.ExecContext) (graph.Next, error) {
	h.record(script)
	fn, ok := h.nodeScripts[script]
	if !ok {
		return graph.Null(), nil
	}
	return fn(ctx, ec)
}

func (h *fakeHost) EvalCondition(ctx context.Context, script string, ec graph.ExecContext) (bool, error) {
	h.record(script)
	fn, ok := h.conditions[script]
	if !ok {
		return false, nil
	}
	return fn(ctx, ec)
}

var _ graph.Host = (*fakeHost)(nil)

func setComplete(ctx context.Context, ec graph.ExecContext) (graph.Next, error) {
	return graph.Complete(), nil
}

func setContinue(ctx context.Context, ec graph.ExecContext) (graph.Next, error) {
	return graph.Continue(), nil
}
