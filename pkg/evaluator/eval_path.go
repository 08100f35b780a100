package evaluator

import (
	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/types"
)

// evaluatePath drives the input sequence through the location steps. Steps
// that bind focus, index or ancestor variables switch the path into tuple
// stream mode, where each item travels with its accumulated bindings.
func (rt *Runtime) evaluatePath(expr *ast.Path, input any, env *Frame) (any, error) {
	var inputSequence any
	_, firstIsVar := expr.Steps[0].Expr.(*ast.Variable)
	if types.IsArray(input) && !firstIsVar {
		inputSequence = input
	} else {
		inputSequence = types.SequenceFrom(input)
	}

	var resultSequence any
	var tupleBindings []map[string]any
	isTupleStream := false

	for ii, step := range expr.Steps {
		if step.Tuple {
			isTupleStream = true
		}
		var err error
		if ii == 0 && stepCons(step) {
			// an array constructor in first position evaluates once
			// against the whole sequence
			resultSequence, err = rt.eval(step.Expr, inputSequence, env)
		} else if isTupleStream {
			tupleBindings, err = rt.evaluateTupleStep(step, inputSequence, tupleBindings, env)
		} else {
			resultSequence, err = rt.evaluateStep(step, inputSequence, env, ii == len(expr.Steps)-1)
		}
		if err != nil {
			return nil, err
		}
		if !isTupleStream && (resultSequence == nil || types.ArrayLen(resultSequence) == 0) {
			break
		}
		if step.Focus == "" {
			inputSequence = resultSequence
		}
	}

	if isTupleStream {
		if expr.Tuple {
			seq := types.NewSequence()
			seq.TupleStream = true
			for _, b := range tupleBindings {
				seq.Append(b)
			}
			resultSequence = seq
		} else {
			seq := types.NewSequence()
			for _, b := range tupleBindings {
				seq.Append(b["@"])
			}
			resultSequence = seq
		}
	}

	if expr.KeepSingletonArray {
		seq, ok := resultSequence.(*types.Sequence)
		if !ok {
			if vals, isArr := types.AsArray(resultSequence); isArr {
				seq = &types.Sequence{Values: vals}
			} else {
				seq = &types.Sequence{Values: []any{resultSequence}}
			}
		}
		if seq.Cons && !seq.IsSeq {
			seq = types.SequenceFrom(seq)
		}
		seq.KeepSingleton = true
		resultSequence = seq
	}

	if expr.GroupBy != nil {
		groupInput := resultSequence
		if isTupleStream {
			seq := types.NewSequence()
			seq.TupleStream = true
			for _, b := range tupleBindings {
				seq.Append(b)
			}
			groupInput = seq
		}
		var err error
		resultSequence, err = rt.evaluateGroupExpression(expr.GroupBy.Pairs, expr.GroupBy.Position, groupInput, env)
		if err != nil {
			return nil, err
		}
	}
	return resultSequence, nil
}

// stepCons reports whether the step expression is a constructed array (or a
// block that yields one).
func stepCons(step *ast.Step) bool {
	switch e := step.Expr.(type) {
	case *ast.ArrayCons:
		return e.Cons
	case *ast.Block:
		return e.Cons
	}
	return false
}

// evaluateStep maps one step over the items of the input sequence and
// flattens the per-item results into a new sequence. On the last step a lone
// plain-array result is returned as is, so that trailing steps can produce
// arrays without them being spliced.
func (rt *Runtime) evaluateStep(step *ast.Step, input any, env *Frame, lastStep bool) (any, error) {
	if step.Terms != nil {
		result, err := rt.evaluateSortExpression(step, input, env)
		if err != nil {
			return nil, err
		}
		return rt.evaluateStages(step.Stages, result, env)
	}

	result := types.NewSequence()
	items, _ := types.AsArray(input)
	for _, item := range items {
		res, err := rt.eval(step.Expr, item, env)
		if err != nil {
			return nil, err
		}
		for _, stage := range step.Stages {
			res, err = rt.evaluateFilter(stage.Expr, res, env)
			if err != nil {
				return nil, err
			}
		}
		if res != nil {
			result.Append(res)
		}
	}

	if lastStep && len(result.Values) == 1 {
		if only := result.Values[0]; types.IsArray(only) && !types.IsSequence(only) {
			return only, nil
		}
	}
	resultSequence := types.NewSequence()
	for _, res := range result.Values {
		cons := false
		if seq, ok := res.(*types.Sequence); ok && seq.Cons {
			cons = true
		}
		if !types.IsArray(res) || cons {
			resultSequence.Append(res)
		} else {
			vals, _ := types.AsArray(res)
			resultSequence.Values = append(resultSequence.Values, vals...)
		}
	}
	return resultSequence, nil
}

// evaluateStages applies the residual stages of a sort or tuple step: filter
// stages narrow the items, index stages record each item's position under the
// named binding.
func (rt *Runtime) evaluateStages(stages []*ast.Stage, input any, env *Frame) (any, error) {
	result := input
	for _, stage := range stages {
		switch stage.Kind {
		case ast.StageFilter:
			var err error
			result, err = rt.evaluateFilter(stage.Expr, result, env)
			if err != nil {
				return nil, err
			}
		case ast.StageIndex:
			vals, _ := types.AsArray(result)
			for ee, item := range vals {
				if tuple, ok := item.(map[string]any); ok {
					tuple[stage.Value] = float64(ee)
				}
			}
		}
	}
	return result, nil
}

// evaluateTupleStep maps one step over a tuple stream. Each output tuple
// carries the focus, index and ancestor bindings contributed by the step in
// addition to the bindings already accumulated.
func (rt *Runtime) evaluateTupleStep(step *ast.Step, input any, tupleBindings []map[string]any, env *Frame) ([]map[string]any, error) {
	if step.Terms != nil {
		var result any
		var err error
		if tupleBindings != nil {
			stream := types.NewSequence()
			stream.TupleStream = true
			for _, b := range tupleBindings {
				stream.Append(b)
			}
			result, err = rt.evaluateSortExpression(step, stream, env)
		} else {
			var sorted any
			sorted, err = rt.evaluateSortExpression(step, input, env)
			if err != nil {
				return nil, err
			}
			stream := types.NewSequence()
			stream.TupleStream = true
			vals, _ := types.AsArray(sorted)
			for ss, item := range vals {
				tuple := map[string]any{"@": item}
				if step.Index != "" {
					tuple[step.Index] = float64(ss)
				}
				stream.Append(tuple)
			}
			result = stream
		}
		if err != nil {
			return nil, err
		}
		result, err = rt.evaluateStages(step.Stages, result, env)
		if err != nil {
			return nil, err
		}
		return toTupleSlice(result), nil
	}

	if tupleBindings == nil {
		items, _ := types.AsArray(input)
		for _, item := range items {
			if item != nil {
				tupleBindings = append(tupleBindings, map[string]any{"@": item})
			}
		}
	}

	result := types.NewSequence()
	result.TupleStream = true
	for _, binding := range tupleBindings {
		stepEnv := rt.createFrameFromTuple(env, binding)
		res, err := rt.eval(step.Expr, binding["@"], stepEnv)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		resStream := false
		if seq, ok := res.(*types.Sequence); ok && seq.TupleStream {
			resStream = true
		}
		items, isArr := types.AsArray(res)
		if !isArr {
			items = []any{res}
		}
		for bb, item := range items {
			tuple := make(map[string]any, len(binding)+2)
			for k, v := range binding {
				tuple[k] = v
			}
			if resStream {
				if sub, ok := item.(map[string]any); ok {
					for k, v := range sub {
						tuple[k] = v
					}
				}
			} else {
				if step.Focus != "" {
					tuple[step.Focus] = item
					tuple["@"] = binding["@"]
				} else {
					tuple["@"] = item
				}
				if step.Index != "" {
					tuple[step.Index] = float64(bb)
				}
				if step.Ancestor != nil {
					tuple[step.Ancestor.Label] = binding["@"]
				}
			}
			result.Append(tuple)
		}
	}

	staged, err := rt.evaluateStages(step.Stages, result, env)
	if err != nil {
		return nil, err
	}
	return toTupleSlice(staged), nil
}

func toTupleSlice(v any) []map[string]any {
	vals, _ := types.AsArray(v)
	out := make([]map[string]any, 0, len(vals))
	for _, item := range vals {
		if tuple, ok := item.(map[string]any); ok {
			out = append(out, tuple)
		}
	}
	return out
}

// evaluateWildcard collects the values of all fields of the input item,
// flattening nested arrays.
func (rt *Runtime) evaluateWildcard(expr *ast.Wildcard, input any) any {
	results := types.NewSequence()
	if seq, ok := input.(*types.Sequence); ok && seq.OuterWrapper && len(seq.Values) > 0 {
		input = seq.Values[0]
	}
	switch src := input.(type) {
	case map[string]any:
		for _, key := range sortedKeys(src) {
			value := src[key]
			if types.IsArray(value) {
				flat := flatten(value, nil)
				results.Values = append(results.Values, flat...)
			} else {
				results.Append(value)
			}
		}
	default:
		if vals, ok := types.AsArray(input); ok {
			for _, value := range vals {
				if types.IsArray(value) {
					flat := flatten(value, nil)
					results.Values = append(results.Values, flat...)
				} else if obj, isObj := value.(map[string]any); isObj {
					sub, _ := types.AsArray(rt.evaluateWildcard(expr, obj))
					results.Values = append(results.Values, sub...)
				} else {
					results.Append(value)
				}
			}
		}
	}
	return results
}

// evaluateDescendants returns the input item and every value nested inside
// it, in document order.
func (rt *Runtime) evaluateDescendants(input any) any {
	if input == nil {
		return nil
	}
	results := types.NewSequence()
	rt.recurseDescendants(input, results)
	if len(results.Values) == 1 {
		return results.Values[0]
	}
	return results
}

func (rt *Runtime) recurseDescendants(input any, results *types.Sequence) {
	if !types.IsArray(input) {
		results.Append(input)
	}
	if vals, ok := types.AsArray(input); ok {
		for _, member := range vals {
			rt.recurseDescendants(member, results)
		}
	} else if obj, ok := input.(map[string]any); ok {
		for _, key := range sortedKeys(obj) {
			rt.recurseDescendants(obj[key], results)
		}
	}
}
