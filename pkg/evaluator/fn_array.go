package evaluator

import (
	"math/rand"
	"sort"

	"github.com/querata/querata/pkg/types"
)

func fnAppend(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return args[1], nil
	}
	if args[1] == nil {
		return args[0], nil
	}
	first, ok := types.AsArray(args[0])
	if !ok {
		first = []any{args[0]}
	}
	second, ok := types.AsArray(args[1])
	if !ok {
		second = []any{args[1]}
	}
	out := make([]any, 0, len(first)+len(second))
	out = append(out, first...)
	out = append(out, second...)
	return out, nil
}

func fnReverse(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	out := make([]any, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out, nil
}

func fnSort(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	if len(items) <= 1 {
		return args[0], nil
	}
	sorted := make([]any, len(items))
	copy(sorted, items)

	var comparator func(a, b any) (bool, error)
	if len(args) > 1 && args[1] != nil {
		fn := args[1]
		comparator = func(a, b any) (bool, error) {
			res, err := rt.apply(fn, []any{a, b}, input, rt.env)
			if err != nil {
				return false, err
			}
			return boolize(res), nil
		}
	} else {
		comparator = func(a, b any) (bool, error) {
			an, aNum := a.(float64)
			bn, bNum := b.(float64)
			if aNum && bNum {
				return an > bn, nil
			}
			as, aStr := a.(string)
			bs, bStr := b.(string)
			if aStr && bStr {
				return as > bs, nil
			}
			return false, types.NewError(types.ErrSortNotComparable2,
				"the single argument form of the sort function can only be applied to an array of strings or an array of numbers", -1).WithValue(a)
		}
	}

	// comparator(a, b) answers "must a come after b", so i sorts strictly
	// before j exactly when comparator(j, i) holds; stable to preserve the
	// input order of equal items
	var sortErr error
	sort.SliceStable(sorted, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		after, err := comparator(sorted[j], sorted[i])
		if err != nil {
			sortErr = err
			return false
		}
		return after
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return sorted, nil
}

func fnShuffle(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	out := make([]any, len(items))
	copy(out, items)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out, nil
}

func fnDistinct(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, ok := types.AsArray(args[0])
	if !ok {
		return args[0], nil
	}
	out := []any{}
	for _, item := range items {
		seen := false
		for _, existing := range out {
			if deepEquals(existing, item) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, item)
		}
	}
	return out, nil
}

func fnZip(rt *Runtime, input any, args []any) (any, error) {
	length := -1
	columns := make([][]any, len(args))
	for i, arg := range args {
		items, ok := types.AsArray(arg)
		if !ok {
			items = []any{arg}
		}
		columns[i] = items
		if length < 0 || len(items) < length {
			length = len(items)
		}
	}
	if length <= 0 {
		return []any{}, nil
	}
	out := make([]any, length)
	for i := 0; i < length; i++ {
		row := make([]any, len(columns))
		for c, col := range columns {
			row[c] = col[i]
		}
		out[i] = row
	}
	return out, nil
}
