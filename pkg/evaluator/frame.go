package evaluator

import (
	"fmt"
	"time"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/types"
)

// Reserved binding names for the evaluation entry/exit hooks used by the
// runtime bounds machinery.
const (
	entryCallbackKey = "__evaluate_entry"
	exitCallbackKey  = "__evaluate_exit"
)

type entryCallback func(node ast.Node, input any, env *Frame) error

type exitCallback func(node ast.Node, input any, env *Frame, result any) error

// Frame is one environment scope: a set of variable bindings chained to an
// enclosing frame. Lookups walk the chain outward.
type Frame struct {
	bindings map[string]any
	parent   *Frame

	// isParallelCall suppresses the runtime-bounds depth accounting for
	// sibling evaluations that do not grow the logical stack.
	isParallelCall bool
}

// NewFrame creates a frame enclosed by parent. A nil parent creates a root
// frame.
func NewFrame(parent *Frame) *Frame {
	return &Frame{
		bindings: map[string]any{},
		parent:   parent,
	}
}

// Bind associates a value with a name in this frame. Binding a function value
// names its signature so that validation errors can report the variable the
// function was bound to.
func (f *Frame) Bind(name string, value any) {
	f.bindings[name] = value
	switch fn := value.(type) {
	case *Function:
		if fn.sig != nil {
			fn.sig.SetFunctionName(name)
		}
	case *Lambda:
		if fn.sig != nil {
			fn.sig.SetFunctionName(name)
		}
	}
}

// Lookup resolves a name against this frame and its ancestors. An unbound
// name resolves to nil.
func (f *Frame) Lookup(name string) any {
	for env := f; env != nil; env = env.parent {
		if v, ok := env.bindings[name]; ok {
			return v
		}
	}
	return nil
}

// SetEvaluateEntryCallback installs cb to run on entry to every node
// evaluation under this frame.
func (f *Frame) SetEvaluateEntryCallback(cb func(node ast.Node, input any, env *Frame) error) {
	f.Bind(entryCallbackKey, entryCallback(cb))
}

// SetEvaluateExitCallback installs cb to run on exit from every node
// evaluation under this frame.
func (f *Frame) SetEvaluateExitCallback(cb func(node ast.Node, input any, env *Frame, result any) error) {
	f.Bind(exitCallbackKey, exitCallback(cb))
}

// SetRuntimeBounds protects evaluation under this frame against runaway
// expressions: evaluation fails once the wall clock exceeds timeout or the
// evaluation depth exceeds maxDepth.
func (f *Frame) SetRuntimeBounds(timeout time.Duration, maxDepth int) {
	newTimebox(f, timeout, maxDepth)
}

// timebox enforces the runtime bounds through the evaluation entry and exit
// hooks.
type timebox struct {
	timeout  time.Duration
	maxDepth int
	started  time.Time
	depth    int
}

func newTimebox(env *Frame, timeout time.Duration, maxDepth int) *timebox {
	tb := &timebox{
		timeout:  timeout,
		maxDepth: maxDepth,
		started:  time.Now(),
	}
	env.SetEvaluateEntryCallback(func(_ ast.Node, _ any, env *Frame) error {
		if env.isParallelCall {
			return nil
		}
		tb.depth++
		return tb.checkRunaway()
	})
	env.SetEvaluateExitCallback(func(_ ast.Node, _ any, env *Frame, _ any) error {
		if env.isParallelCall {
			return nil
		}
		tb.depth--
		return tb.checkRunaway()
	})
	return tb
}

func (tb *timebox) checkRunaway() error {
	if tb.maxDepth > 0 && tb.depth > tb.maxDepth {
		return types.NewError(types.ErrStackDepthExceeded,
			fmt.Sprintf("stack overflow: check for non-terminating recursive function; consider rewriting as tail-recursive (depth=%d, max=%d)", tb.depth, tb.maxDepth), -1)
	}
	if tb.timeout > 0 && time.Since(tb.started) > tb.timeout {
		return types.NewError(types.ErrTimeoutExceeded,
			fmt.Sprintf("expression evaluation timeout after %s: check for infinite loop", tb.timeout), -1)
	}
	return nil
}
