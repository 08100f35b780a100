package evaluator

import (
	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/signature"
	"github.com/querata/querata/pkg/types"
)

// evaluateArrayCons builds an array from the constructor's item expressions.
// Nested constructors stay nested; everything else splices.
func (rt *Runtime) evaluateArrayCons(node *ast.ArrayCons, input any, env *Frame) (any, error) {
	var result any = &types.Sequence{}
	for idx, item := range node.Exprs {
		env.isParallelCall = idx > 0
		value, err := rt.eval(item, input, env)
		if err != nil {
			env.isParallelCall = false
			return nil, err
		}
		if value == nil {
			continue
		}
		if _, nested := item.(*ast.ArrayCons); nested {
			switch r := result.(type) {
			case *types.Sequence:
				r.Append(value)
			case []any:
				result = append(r, value)
			case *types.Range:
				result = append(r.Materialize(), value)
			}
		} else {
			result = appendValues(result, value)
		}
	}
	env.isParallelCall = false

	if node.Cons {
		seq, ok := result.(*types.Sequence)
		if !ok {
			vals, _ := types.AsArray(result)
			seq = &types.Sequence{Values: vals}
		}
		seq.Cons = true
		result = seq
	}
	return result, nil
}

// groupEntry accumulates the items gathered under one grouping key, together
// with the index of the key expression that produced the key.
type groupEntry struct {
	data      any
	exprIndex int
}

// evaluateGroupExpression evaluates an object constructor or grouping clause:
// each input item is assigned to the key its key expressions produce, then
// each group's value expression is evaluated with the group as context.
// Groups are emitted in the order their keys first appear.
func (rt *Runtime) evaluateGroupExpression(pairs []ast.Pair, pos int, input any, env *Frame) (any, error) {
	reduce := false
	if seq, ok := input.(*types.Sequence); ok && seq.TupleStream {
		reduce = true
	}
	if !types.IsArray(input) {
		input = types.SequenceFrom(input)
	}
	items, _ := types.AsArray(input)
	if len(items) == 0 {
		items = []any{nil}
	}

	groups := map[string]*groupEntry{}
	var order []string
	for _, item := range items {
		itemEnv := env
		context := item
		if reduce {
			if tuple, ok := item.(map[string]any); ok {
				itemEnv = rt.createFrameFromTuple(env, tuple)
				context = tuple["@"]
			}
		}
		for pairIndex, pair := range pairs {
			keyVal, err := rt.eval(pair.Key, context, itemEnv)
			if err != nil {
				return nil, err
			}
			key, isString := keyVal.(string)
			if keyVal != nil && !isString {
				return nil, types.NewError(types.ErrGroupKeyNotString,
					"key in object structure must evaluate to a string", pos).WithValue(keyVal)
			}
			if keyVal == nil {
				continue
			}
			if entry, exists := groups[key]; exists {
				if entry.exprIndex != pairIndex {
					// the same key is produced by two different expressions
					return nil, types.NewError(types.ErrAmbiguousGroup,
						"multiple key definitions evaluate to same key: "+key, pos).WithValue(key)
				}
				entry.data = appendValues(entry.data, item)
			} else {
				groups[key] = &groupEntry{data: item, exprIndex: pairIndex}
				order = append(order, key)
			}
		}
	}

	result := make(map[string]any, len(groups))
	for idx, key := range order {
		entry := groups[key]
		context := entry.data
		groupEnv := env
		if reduce {
			tuple := rt.reduceTupleStream(entry.data)
			if merged, ok := tuple.(map[string]any); ok {
				context = merged["@"]
				delete(merged, "@")
				groupEnv = rt.createFrameFromTuple(env, merged)
			}
		}
		groupEnv.isParallelCall = idx > 0
		res, err := rt.eval(pairs[entry.exprIndex].Value, context, groupEnv)
		groupEnv.isParallelCall = false
		if err != nil {
			return nil, err
		}
		if res != nil {
			result[key] = res
		}
	}
	return result, nil
}

// reduceTupleStream merges the tuples grouped under one key into a single
// tuple whose bindings hold the appended values.
func (rt *Runtime) reduceTupleStream(stream any) any {
	tuples, ok := types.AsArray(stream)
	if !ok || len(tuples) == 0 {
		return stream
	}
	first, ok := tuples[0].(map[string]any)
	if !ok {
		return stream
	}
	result := make(map[string]any, len(first))
	for k, v := range first {
		result[k] = v
	}
	for _, item := range tuples[1:] {
		tuple, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for k, v := range tuple {
			result[k] = appendValues(result[k], v)
		}
	}
	return result
}

var transformSignature = signature.MustParse("<(oa)-:o>", "transform")

// transformer is the function value produced by the |...| transform
// operator. Applying it deep-clones its argument and applies the update and
// delete clauses to every match of the pattern.
type transformer struct {
	rt   *Runtime
	expr *ast.Transform
	env  *Frame
}

// FunctionName implements types.Callable.
func (t *transformer) FunctionName() string { return "transform" }

func (rt *Runtime) evaluateTransform(node *ast.Transform, env *Frame) *transformer {
	return &transformer{rt: rt, expr: node, env: env}
}

func (t *transformer) call(args []any) (any, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, nil
	}
	result := deepClone(args[0])

	matches, err := t.rt.eval(t.expr.Pattern, result, t.env)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		return result, nil
	}
	items, ok := types.AsArray(matches)
	if !ok {
		items = []any{matches}
	}
	for _, item := range items {
		match, isObj := item.(map[string]any)
		if !isObj {
			continue
		}
		update, err := t.rt.eval(t.expr.Update, match, t.env)
		if err != nil {
			return nil, err
		}
		if update != nil {
			updates, isMap := update.(map[string]any)
			if !isMap {
				return nil, types.NewError(types.ErrTransformNotObject,
					"the insert/update clause of the transform expression must evaluate to an object", t.expr.Update.Pos()).WithValue(update)
			}
			for k, v := range updates {
				match[k] = v
			}
		}
		if t.expr.Delete != nil {
			deletions, err := t.rt.eval(t.expr.Delete, match, t.env)
			if err != nil {
				return nil, err
			}
			if deletions != nil {
				value := deletions
				keys, isArr := types.AsArray(deletions)
				if !isArr {
					keys = []any{deletions}
				}
				if !types.IsArrayOfStrings(keys) {
					return nil, types.NewError(types.ErrTransformBadDelete,
						"the delete clause of the transform expression must evaluate to a string or array of strings", t.expr.Delete.Pos()).WithValue(value)
				}
				for _, k := range keys {
					delete(match, k.(string))
				}
			}
		}
	}
	return result, nil
}
