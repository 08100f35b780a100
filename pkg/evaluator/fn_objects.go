package evaluator

import (
	"regexp"

	"github.com/querata/querata/pkg/types"
)

func fnKeys(rt *Runtime, input any, args []any) (any, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		keys := sortedKeys(v)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	}
	if items, ok := types.AsArray(args[0]); ok {
		// the union of the keys of all object items, first occurrence wins
		merged := map[string]any{}
		for _, item := range items {
			if obj, isObj := item.(map[string]any); isObj {
				for k := range obj {
					merged[k] = nil
				}
			}
		}
		if len(merged) == 0 {
			return nil, nil
		}
		keys := sortedKeys(merged)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	}
	return nil, nil
}

func fnLookup(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	result := lookupName(args[0], args[1].(string))
	if seq, ok := result.(*types.Sequence); ok && len(seq.Values) == 0 {
		return nil, nil
	}
	return result, nil
}

func fnSpread(rt *Runtime, input any, args []any) (any, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := []any{}
		for _, k := range sortedKeys(v) {
			out = append(out, map[string]any{k: v[k]})
		}
		return out, nil
	}
	if items, ok := types.AsArray(args[0]); ok {
		out := []any{}
		for _, item := range items {
			res, err := fnSpread(rt, input, []any{item})
			if err != nil {
				return nil, err
			}
			if res != nil {
				spread, _ := types.AsArray(res)
				out = append(out, spread...)
			}
		}
		return out, nil
	}
	return args[0], nil
}

func fnMerge(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	items, _ := types.AsArray(args[0])
	out := map[string]any{}
	for _, item := range items {
		obj := item.(map[string]any)
		for k, v := range obj {
			out[k] = v
		}
	}
	return out, nil
}

func fnSift(rt *Runtime, input any, args []any) (any, error) {
	obj, ok := args[0].(map[string]any)
	if !ok {
		return nil, nil
	}
	fn := args[1]
	out := map[string]any{}
	for _, k := range sortedKeys(obj) {
		res, err := rt.hofApply(fn, []any{obj[k], k, obj})
		if err != nil {
			return nil, err
		}
		if boolize(res) {
			out[k] = obj[k]
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func fnEach(rt *Runtime, input any, args []any) (any, error) {
	obj, ok := args[0].(map[string]any)
	if !ok {
		return nil, nil
	}
	fn := args[1]
	result := types.NewSequence()
	for _, k := range sortedKeys(obj) {
		res, err := rt.hofApply(fn, []any{obj[k], k})
		if err != nil {
			return nil, err
		}
		if res != nil {
			result.Append(res)
		}
	}
	return result, nil
}

func fnType(rt *Runtime, input any, args []any) (any, error) {
	switch args[0].(type) {
	case nil:
		return nil, nil
	case *types.Null:
		return "null", nil
	case float64:
		return "number", nil
	case string:
		return "string", nil
	case bool:
		return "boolean", nil
	case map[string]any:
		return "object", nil
	case types.Callable, *regexp.Regexp:
		return "function", nil
	}
	if types.IsArray(args[0]) {
		return "array", nil
	}
	return "undefined", nil
}
