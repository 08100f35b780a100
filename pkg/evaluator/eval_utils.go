package evaluator

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"sort"

	"github.com/querata/querata/pkg/types"
)

// lookupName resolves a field reference against the input item. Arrays are
// mapped over; an explicit JSON null is surfaced as types.NullValue so that
// downstream operators can tell it apart from an absent field.
func lookupName(input any, key string) any {
	if obj, ok := input.(map[string]any); ok {
		value, present := obj[key]
		if !present {
			return nil
		}
		if value == nil {
			return types.NullValue
		}
		return value
	}
	if vals, ok := types.AsArray(input); ok {
		result := types.NewSequence()
		for _, item := range vals {
			res := lookupName(item, key)
			if res == nil {
				continue
			}
			if sub, isArr := types.AsArray(res); isArr {
				result.Values = append(result.Values, sub...)
			} else {
				result.Append(res)
			}
		}
		return result
	}
	return nil
}

// toBoolean converts a value to its effective boolean per the language's
// truthiness rules. Returns nil for an absent input.
func toBoolean(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return val
	case *types.Null:
		return false
	case string:
		return len(val) > 0
	case float64:
		return val != 0
	case map[string]any:
		return len(val) > 0
	}
	if vals, ok := types.AsArray(v); ok {
		switch len(vals) {
		case 0:
			return false
		case 1:
			b := toBoolean(vals[0])
			if b == nil {
				return false
			}
			return b
		default:
			for _, item := range vals {
				if b := toBoolean(item); b == true {
					return true
				}
			}
			return false
		}
	}
	if types.IsCallable(v) {
		return false
	}
	return false
}

// boolize is toBoolean with absent treated as false.
func boolize(v any) bool {
	b := toBoolean(v)
	if b == nil {
		return false
	}
	return b.(bool)
}

// deepEquals compares two values structurally. Array-like containers compare
// by their items regardless of representation.
func deepEquals(a, b any) bool {
	if _, ok := a.(*types.Null); ok {
		_, okb := b.(*types.Null)
		return okb
	}
	if avals, ok := types.AsArray(a); ok {
		bvals, okb := types.AsArray(b)
		if !okb || len(avals) != len(bvals) {
			return false
		}
		for i := range avals {
			if !deepEquals(avals[i], bvals[i]) {
				return false
			}
		}
		return true
	}
	if aobj, ok := a.(map[string]any); ok {
		bobj, okb := b.(map[string]any)
		if !okb || len(aobj) != len(bobj) {
			return false
		}
		for k, av := range aobj {
			bv, present := bobj[k]
			if !present || !deepEquals(av, bv) {
				return false
			}
		}
		return true
	}
	return a == b
}

// appendValues joins two values into an array, disregarding absent operands.
// A constructed array on the right is appended as a single item.
func appendValues(arg1, arg2 any) any {
	if arg1 == nil {
		return arg2
	}
	if arg2 == nil {
		return arg1
	}
	if !types.IsArray(arg1) {
		arg1 = types.SequenceFrom(arg1)
	}
	if types.ArrayLen(arg1) == 0 {
		if r, ok := arg2.(*types.Range); ok {
			return r
		}
	}
	vals1, _ := types.AsArray(arg1)
	out := make([]any, 0, len(vals1)+1)
	out = append(out, vals1...)
	if seq, ok := arg2.(*types.Sequence); ok && seq.Cons {
		out = append(out, seq)
	} else if types.IsArray(arg2) {
		vals2, _ := types.AsArray(arg2)
		out = append(out, vals2...)
	} else {
		out = append(out, arg2)
	}
	return out
}

// flatten appends the leaves of a nested array structure to acc.
func flatten(arg any, acc []any) []any {
	if vals, ok := types.AsArray(arg); ok {
		for _, item := range vals {
			acc = flatten(item, acc)
		}
		return acc
	}
	return append(acc, arg)
}

// sortedKeys returns the keys of a map in lexical order, for deterministic
// iteration.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// deepClone copies a value tree. Lazy and sequence containers materialize to
// plain arrays.
func deepClone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepClone(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepClone(item)
		}
		return out
	case *types.Sequence:
		out := make([]any, len(val.Values))
		for i, item := range val.Values {
			out[i] = deepClone(item)
		}
		return out
	case *types.Range:
		return val.Materialize()
	}
	return v
}

// jsonValue converts a result tree into plain JSON values for
// stringification: sequences and ranges become arrays, the null marker
// becomes nil, and function values become empty strings.
func jsonValue(v any) any {
	switch val := v.(type) {
	case *types.Null:
		return nil
	case *types.Sequence:
		out := make([]any, len(val.Values))
		for i, item := range val.Values {
			out[i] = jsonValue(item)
		}
		return out
	case *types.Range:
		return val.Materialize()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonValue(item)
		}
		return out
	case *regexp.Regexp:
		return ""
	case types.Callable:
		return ""
	}
	return v
}

// stringify renders a value the way the $string function does: strings pass
// through, functions become the empty string, everything else is serialized
// as JSON. An absent input yields ("", false).
func stringify(v any, prettify bool) (string, bool, error) {
	if v == nil {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	if types.IsCallable(v) {
		return "", true, nil
	}
	if n, ok := v.(float64); ok {
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return "", false, types.NewError(types.ErrNonFiniteString,
				"attempting to invoke string function on Infinity or NaN", -1).WithValue(v)
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if prettify {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(jsonValue(v)); err != nil {
		return "", false, err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), true, nil
}

// isWholeNumber reports whether a number has no fractional part.
func isWholeNumber(n float64) bool {
	return n == math.Trunc(n) && !math.IsInf(n, 0)
}
