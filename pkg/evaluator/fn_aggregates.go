package evaluator

import (
	"github.com/querata/querata/pkg/types"
)

func fnSum(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	sum := 0.0
	for _, v := range items {
		sum += v.(float64)
	}
	return sum, nil
}

func fnCount(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return 0.0, nil
	}
	return float64(types.ArrayLen(args[0])), nil
}

func fnMax(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	if len(items) == 0 {
		return nil, nil
	}
	max := items[0].(float64)
	for _, v := range items[1:] {
		if n := v.(float64); n > max {
			max = n
		}
	}
	return max, nil
}

func fnMin(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	if len(items) == 0 {
		return nil, nil
	}
	min := items[0].(float64)
	for _, v := range items[1:] {
		if n := v.(float64); n < min {
			min = n
		}
	}
	return min, nil
}

func fnAverage(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	if len(items) == 0 {
		return nil, nil
	}
	sum := 0.0
	for _, v := range items {
		sum += v.(float64)
	}
	return sum / float64(len(items)), nil
}
