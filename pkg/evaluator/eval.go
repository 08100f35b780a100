package evaluator

import (
	"context"
	"time"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/types"
)

// Runtime is the state of one evaluation run: the owning Evaluator, the
// caller's context, the root execution frame and the evaluation timestamp
// ($now and $millis are fixed for the duration of a run). Each call to
// Evaluator.Eval creates its own Runtime, so concurrent evaluations never
// share mutable state.
type Runtime struct {
	ev        *Evaluator
	ctx       context.Context
	env       *Frame
	timestamp time.Time
}

// eval evaluates a node against the input item in the given environment.
func (rt *Runtime) eval(expr ast.Node, input any, env *Frame) (any, error) {
	if err := rt.ctx.Err(); err != nil {
		return nil, types.NewError(types.ErrTimeoutExceeded, "evaluation cancelled: "+err.Error(), -1).WithCause(err)
	}

	if cb, ok := env.Lookup(entryCallbackKey).(entryCallback); ok {
		if err := cb(expr, input, env); err != nil {
			return nil, err
		}
	}

	var result any
	var err error
	switch node := expr.(type) {
	case *ast.Path:
		result, err = rt.evaluatePath(node, input, env)
	case *ast.Binary:
		result, err = rt.evaluateBinary(node, input, env)
	case *ast.Negate:
		result, err = rt.evaluateNegate(node, input, env)
	case *ast.Name:
		result = lookupName(input, node.Value)
	case *ast.String:
		result = node.Value
	case *ast.Number:
		result = node.Value
	case *ast.Boolean:
		result = node.Value
	case *ast.NullLit:
		result = types.NullValue
	case *ast.Wildcard:
		result = rt.evaluateWildcard(node, input)
	case *ast.Descendant:
		result = rt.evaluateDescendants(input)
	case *ast.Parent:
		result = env.Lookup(node.Slot.Label)
	case *ast.Condition:
		result, err = rt.evaluateCondition(node, input, env)
	case *ast.Block:
		result, err = rt.evaluateBlock(node, input, env)
	case *ast.Bind:
		result, err = rt.evaluateBind(node, input, env)
	case *ast.Regex:
		result = node.Re
	case *ast.Variable:
		result = rt.evaluateVariable(node, input, env)
	case *ast.Lambda:
		result = rt.evaluateLambda(node, input, env)
	case *ast.ArrayCons:
		result, err = rt.evaluateArrayCons(node, input, env)
	case *ast.ObjectCons:
		result, err = rt.evaluateGroupExpression(node.Pairs, node.Position, input, env)
	case *ast.FuncCall:
		if node.IsPartial {
			result, err = rt.evaluatePartialApplication(node, input, env)
		} else {
			result, err = rt.evaluateFunction(node, input, env, nil, false)
		}
	case *ast.Apply:
		result, err = rt.evaluateApplyExpression(node, input, env)
	case *ast.Transform:
		result = rt.evaluateTransform(node, env)
	case *ast.ErrorNode:
		err = node.Err
	}
	if err != nil {
		return nil, err
	}

	meta := expr.NodeMeta()
	for _, stage := range meta.Predicates {
		result, err = rt.evaluateFilter(stage.Expr, result, env)
		if err != nil {
			return nil, err
		}
	}
	if _, isPath := expr.(*ast.Path); !isPath && meta.GroupBy != nil {
		result, err = rt.evaluateGroupExpression(meta.GroupBy.Pairs, meta.GroupBy.Position, result, env)
		if err != nil {
			return nil, err
		}
	}

	if cb, ok := env.Lookup(exitCallbackKey).(exitCallback); ok {
		if err := cb(expr, input, env, result); err != nil {
			return nil, err
		}
	}

	if seq, ok := result.(*types.Sequence); ok && seq.IsSeq && !seq.TupleStream {
		if meta.KeepArray {
			seq.KeepSingleton = true
		}
		switch {
		case len(seq.Values) == 0:
			result = nil
		case len(seq.Values) == 1 && !seq.KeepSingleton:
			result = seq.Values[0]
		}
	}
	return result, nil
}

func (rt *Runtime) evaluateCondition(node *ast.Condition, input any, env *Frame) (any, error) {
	cond, err := rt.eval(node.Cond, input, env)
	if err != nil {
		return nil, err
	}
	if boolize(cond) {
		return rt.eval(node.Then, input, env)
	}
	if node.Else != nil {
		return rt.eval(node.Else, input, env)
	}
	return nil, nil
}

// evaluateBlock runs the expressions in sequence inside a child frame; the
// block's value is the value of its last expression.
func (rt *Runtime) evaluateBlock(node *ast.Block, input any, env *Frame) (any, error) {
	frame := NewFrame(env)
	var result any
	var err error
	for _, ex := range node.Exprs {
		result, err = rt.eval(ex, input, frame)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (rt *Runtime) evaluateBind(node *ast.Bind, input any, env *Frame) (any, error) {
	value, err := rt.eval(node.RHS, input, env)
	if err != nil {
		return nil, err
	}
	env.Bind(node.LHS.Name, value)
	return value, nil
}

// evaluateVariable resolves a $-variable. The bare $ is the context item,
// unwrapped from the outer wrapper placed around top-level array inputs.
func (rt *Runtime) evaluateVariable(node *ast.Variable, input any, env *Frame) any {
	if node.Name == "" {
		if seq, ok := input.(*types.Sequence); ok && seq.OuterWrapper && len(seq.Values) > 0 {
			return seq.Values[0]
		}
		return input
	}
	return env.Lookup(node.Name)
}

// evaluateLambda closes the definition over the current environment and
// context item.
func (rt *Runtime) evaluateLambda(node *ast.Lambda, input any, env *Frame) *Lambda {
	return &Lambda{
		params: node.Params,
		body:   node.Body,
		input:  input,
		env:    env,
		sig:    node.Signature,
		thunk:  node.Thunk,
	}
}

// createFrameFromTuple creates a child frame with the tuple's bindings.
func (rt *Runtime) createFrameFromTuple(env *Frame, tuple map[string]any) *Frame {
	frame := NewFrame(env)
	for name, value := range tuple {
		frame.Bind(name, value)
	}
	return frame
}
