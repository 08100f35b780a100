package evaluator

import (
	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/types"
)

// evaluateFilter applies a predicate to the items of the input. A numeric
// predicate selects by position (negative offsets count from the end,
// fractional indexes truncate); any other predicate keeps the items it is
// truthy for, or the items whose position it selects when it evaluates to
// numbers.
func (rt *Runtime) evaluateFilter(predicate ast.Node, input any, env *Frame) (any, error) {
	results := types.NewSequence()
	isTuple := false
	if seq, ok := input.(*types.Sequence); ok && seq.TupleStream {
		results.TupleStream = true
		isTuple = true
	}
	if !types.IsArray(input) {
		input = types.SequenceFrom(input)
	}
	items, _ := types.AsArray(input)

	if num, ok := predicate.(*ast.Number); ok {
		index := int(num.Value)
		if index < 0 {
			index = len(items) + index
		}
		if index >= 0 && index < len(items) {
			item := items[index]
			if item != nil {
				if types.IsArray(item) {
					return item, nil
				}
				results.Append(item)
			}
		}
		return results, nil
	}

	for index, item := range items {
		context := item
		itemEnv := env
		if isTuple {
			if tuple, ok := item.(map[string]any); ok {
				context = tuple["@"]
				itemEnv = rt.createFrameFromTuple(env, tuple)
			}
		}
		res, err := rt.eval(predicate, context, itemEnv)
		if err != nil {
			return nil, err
		}
		if ok, err := types.IsNumeric(res); err != nil {
			return nil, err
		} else if ok {
			res = types.SequenceFrom(res)
		}
		if types.IsArrayOfNumbers(res) {
			rvals, _ := types.AsArray(res)
			for _, ires := range rvals {
				ii := int(ires.(float64))
				if ii < 0 {
					ii = len(items) + ii
				}
				if ii == index {
					results.Append(item)
				}
			}
		} else if boolize(res) {
			results.Append(item)
		}
	}
	return results, nil
}
