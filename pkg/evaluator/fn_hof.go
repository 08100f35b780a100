package evaluator

import (
	"regexp"

	"github.com/querata/querata/pkg/types"
)

// funcArity returns the number of parameters a function value declares.
func funcArity(fn any) int {
	switch f := fn.(type) {
	case *Lambda:
		return len(f.params)
	case *Function:
		return f.NumArgs()
	}
	return 1
}

// hofApply invokes a callback passed to a higher-order function, trimming the
// optional trailing arguments (index, array) to the callback's declared
// arity.
func (rt *Runtime) hofApply(fn any, args []any) (any, error) {
	if _, ok := fn.(*regexp.Regexp); !ok {
		if n := funcArity(fn); n < len(args) {
			args = args[:n]
		}
	}
	return rt.apply(fn, args, nil, rt.env)
}

func fnMap(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	fn := args[1]
	result := types.NewSequence()
	for i, item := range items {
		res, err := rt.hofApply(fn, []any{item, float64(i), items})
		if err != nil {
			return nil, err
		}
		if res != nil {
			result.Append(res)
		}
	}
	return result, nil
}

func fnFilter(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	fn := args[1]
	result := types.NewSequence()
	for i, item := range items {
		res, err := rt.hofApply(fn, []any{item, float64(i), items})
		if err != nil {
			return nil, err
		}
		if boolize(res) {
			result.Append(item)
		}
	}
	return result, nil
}

func fnSingle(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	var fn any
	if len(args) > 1 {
		fn = args[1]
	}

	found := false
	var match any
	for i, item := range items {
		keep := true
		if fn != nil {
			res, err := rt.hofApply(fn, []any{item, float64(i), items})
			if err != nil {
				return nil, err
			}
			keep = boolize(res)
		}
		if !keep {
			continue
		}
		if found {
			return nil, types.NewError(types.ErrSingleManyMatches,
				"the single function expected exactly 1 matching result, but the expression matched multiple", -1).WithValue(item)
		}
		found = true
		match = item
	}
	if !found {
		return nil, types.NewError(types.ErrSingleNoMatch,
			"the single function expected exactly 1 matching result, but the expression matched none", -1)
	}
	return match, nil
}

func fnReduce(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	fn := args[1]
	if funcArity(fn) < 2 {
		return nil, types.NewError(types.ErrReduceArity,
			"the second argument of the reduce function must be a function with at least two arguments", -1)
	}

	var acc any
	start := 0
	if len(args) > 2 && args[2] != nil {
		acc = args[2]
	} else {
		if len(items) == 0 {
			return nil, nil
		}
		acc = items[0]
		start = 1
	}
	for i := start; i < len(items); i++ {
		res, err := rt.hofApply(fn, []any{acc, items[i], float64(i), items})
		if err != nil {
			return nil, err
		}
		acc = res
	}
	return acc, nil
}
