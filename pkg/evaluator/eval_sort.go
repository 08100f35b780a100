package evaluator

import (
	"sort"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/types"
)

// evaluateSortExpression orders the input by the step's sort terms. The sort
// is stable; items for which a term is absent sort after the rest. Tuple
// streams are sorted by the item travelling under "@", with each tuple's
// bindings in scope for the term expressions.
func (rt *Runtime) evaluateSortExpression(step *ast.Step, input any, env *Frame) (any, error) {
	if input == nil {
		return nil, nil
	}
	isTupleSort := false
	if seq, ok := input.(*types.Sequence); ok && seq.TupleStream {
		isTupleSort = true
	}
	items, ok := types.AsArray(input)
	if !ok {
		return input, nil
	}
	if len(items) <= 1 {
		return input, nil
	}

	termValue := func(term *ast.SortTerm, item any) (any, error) {
		context := item
		termEnv := env
		if isTupleSort {
			if tuple, isTuple := item.(map[string]any); isTuple {
				context = tuple["@"]
				termEnv = rt.createFrameFromTuple(env, tuple)
			}
		}
		return rt.eval(term.Expr, context, termEnv)
	}

	compare := func(a, b any) (int, error) {
		for _, term := range step.Terms {
			aa, err := termValue(term, a)
			if err != nil {
				return 0, err
			}
			bb, err := termValue(term, b)
			if err != nil {
				return 0, err
			}

			// absent values sort last regardless of direction
			if aa == nil {
				if bb == nil {
					continue
				}
				return 1, nil
			}
			if bb == nil {
				return -1, nil
			}

			comp, err := compareSortValues(aa, bb, step.Position)
			if err != nil {
				return 0, err
			}
			if comp == 0 {
				continue
			}
			if term.Descending {
				comp = -comp
			}
			return comp, nil
		}
		return 0, nil
	}

	sorted := make([]any, len(items))
	copy(sorted, items)
	var sortErr error
	sort.SliceStable(sorted, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		comp, err := compare(sorted[i], sorted[j])
		if err != nil {
			sortErr = err
			return false
		}
		return comp < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}

	result := types.SequenceOf(sorted)
	result.TupleStream = isTupleSort
	return result, nil
}

func compareSortValues(aa, bb any, pos int) (int, error) {
	an, aNum := aa.(float64)
	bn, bNum := bb.(float64)
	as, aStr := aa.(string)
	bs, bStr := bb.(string)

	if (!aNum && !aStr) || (!bNum && !bStr) {
		return 0, types.NewError(types.ErrSortNotComparable,
			"the expressions within an order-by clause must evaluate to numeric or string values", pos).WithValue(aa)
	}
	if aNum != bNum {
		return 0, types.NewError(types.ErrSortMixedTypes,
			"all the values in an order-by clause must be of the same data type", pos).WithValue(aa)
	}
	if aNum {
		switch {
		case an < bn:
			return -1, nil
		case an > bn:
			return 1, nil
		}
		return 0, nil
	}
	switch {
	case as < bs:
		return -1, nil
	case as > bs:
		return 1, nil
	}
	return 0, nil
}
