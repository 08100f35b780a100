package evaluator_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/querata/querata/pkg/evaluator"
	"github.com/querata/querata/pkg/parser"
	"github.com/querata/querata/pkg/types"
)

// Helper functions

func eval(t *testing.T, query string, data any) any {
	t.Helper()

	expr, err := parser.Parse(query)
	if err != nil {
		t.Fatalf("Failed to parse %q: %v", query, err)
	}

	ev := evaluator.New()
	result, err := ev.Eval(context.Background(), expr, data)
	if err != nil {
		t.Fatalf("Failed to eval %q: %v", query, err)
	}

	return result
}

func evalError(t *testing.T, query string, data any) error {
	t.Helper()

	expr, err := parser.Parse(query)
	if err != nil {
		return err
	}

	ev := evaluator.New()
	_, err = ev.Eval(context.Background(), expr, data)
	if err == nil {
		t.Fatalf("expected error evaluating %q", query)
	}
	return err
}

func errCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var terr *types.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *types.Error, got %T: %v", err, err)
	}
	return terr.Code
}

func compareValue(t *testing.T, got, want any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

// Literals

func TestEvalLiterals(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"string", `"hello"`, "hello"},
		{"number int", "42", 42.0},
		{"number float", "3.14", 3.14},
		{"boolean true", "true", true},
		{"boolean false", "false", false},
		{"null", "null", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

// Arithmetic

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  float64
	}{
		{"addition", "2 + 3", 5},
		{"subtraction", "10 - 4", 6},
		{"multiplication", "6 * 7", 42},
		{"division", "5 / 2", 2.5},
		{"precedence", "2 + 3 * 4", 14},
		{"parens", "(2 + 3) * 4", 20},
		{"modulo", "7 % 2", 1},
		{"modulo negative dividend", "-7 % 2", -1},
		{"modulo negative divisor", "7 % -2", 1},
		{"modulo fractional truncates", "7.5 % 2", 1},
		{"unary minus", "-(3 + 2)", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestEvalArithmeticErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  types.ErrorCode
	}{
		{"left not number", `"1" + 1`, types.ErrLeftNotNumber},
		{"right not number", `1 + "1"`, types.ErrRightNotNumber},
		{"overflow", "1e308 * 10", types.ErrNumberOverflow},
		{"negate string", `-"x"`, types.ErrNegateNonNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evalError(t, tt.query, nil)
			if got := errCode(t, err); got != tt.code {
				t.Errorf("got code %s, want %s", got, tt.code)
			}
		})
	}
}

// Comparison and equality

func TestEvalComparison(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"less than", "1 < 2", true},
		{"greater than", "2 > 3", false},
		{"lte", "2 <= 2", true},
		{"gte", "1 >= 2", false},
		{"string order", `"abc" < "abd"`, true},
		{"equal numbers", "1 = 1", true},
		{"not equal", "1 != 2", true},
		{"deep equal arrays", "[1, 2] = [1, 2]", true},
		{"deep equal objects", `{"a": 1} = {"a": 1}`, true},
		{"null equals null", "null = null", true},
		{"missing never equal", "nothing = nothing", false},
		{"in array", "2 in [1, 2, 3]", true},
		{"in scalar", `"a" in "a"`, true},
		{"not in", "5 in [1, 2]", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestEvalComparisonErrors(t *testing.T) {
	err := evalError(t, `1 < "a"`, nil)
	if got := errCode(t, err); got != types.ErrCompareDiffTypes {
		t.Errorf("mixed comparison: got code %s, want %s", got, types.ErrCompareDiffTypes)
	}

	err = evalError(t, "true > false", nil)
	if got := errCode(t, err); got != types.ErrCompareNotOrderable {
		t.Errorf("boolean comparison: got code %s, want %s", got, types.ErrCompareNotOrderable)
	}
}

// Boolean operators

func TestEvalBooleanOperators(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"and true", "2 > 1 and 3 > 2", true},
		{"and false", "2 > 1 and 2 > 3", false},
		{"or true", "1 > 2 or 2 > 1", true},
		{"or false", "1 > 2 or 2 > 3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestEvalBooleanShortCircuit(t *testing.T) {
	// the right side must not be evaluated when the left side decides
	compareValue(t, eval(t, `false and $error("boom")`, nil), false)
	compareValue(t, eval(t, `true or $error("boom")`, nil), true)
}

// String concatenation

func TestEvalStringConcat(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"strings", `"foo" & "bar"`, "foobar"},
		{"string and number", `"n" & 1`, "n1"},
		{"numbers", "1 & 2", "12"},
		{"array operand", `[1, 2] & "!"`, "[1,2]!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

// Paths

func TestEvalPaths(t *testing.T) {
	data := map[string]any{
		"name": "one",
		"nested": map[string]any{
			"inner": map[string]any{"value": 42.0},
		},
		"items": []any{
			map[string]any{"n": 1.0},
			map[string]any{"n": 2.0},
			map[string]any{"n": 3.0},
		},
	}

	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"field", "name", "one"},
		{"nested field", "nested.inner.value", 42.0},
		{"map over array", "items.n", []any{1.0, 2.0, 3.0}},
		{"missing field", "nope", nil},
		{"missing nested", "nested.nope.value", nil},
		{"context root", "$.name", "one"},
		{"root variable", "$$.name", "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, data), tt.want)
		})
	}
}

func TestEvalPathOverArrayInput(t *testing.T) {
	data := []any{
		map[string]any{"n": 1.0},
		map[string]any{"n": 2.0},
	}
	compareValue(t, eval(t, "n", data), []any{1.0, 2.0})
	compareValue(t, eval(t, "$", data), []any{
		map[string]any{"n": 1.0},
		map[string]any{"n": 2.0},
	})
}

func TestEvalSingletonLaw(t *testing.T) {
	data := map[string]any{
		"a": []any{map[string]any{"b": 1.0}},
	}
	// a single result leaves its array wrapper behind
	compareValue(t, eval(t, "a.b", data), 1.0)
	// unless [] asks to keep it
	compareValue(t, eval(t, "a.b[]", data), []any{1.0})
}

// Filters

func TestEvalFilters(t *testing.T) {
	data := map[string]any{
		"items": []any{
			map[string]any{"name": "a", "price": 10.0},
			map[string]any{"name": "b", "price": 25.0},
			map[string]any{"name": "c", "price": 5.0},
		},
		"nums": []any{1.0, 2.0, 3.0, 4.0},
	}

	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"index", "nums[1]", 2.0},
		{"negative index", "nums[-1]", 4.0},
		{"fractional index truncates", "nums[1.7]", 2.0},
		{"out of range", "nums[9]", nil},
		{"predicate", "items[price > 8].name", []any{"a", "b"}},
		{"predicate single", "items[price > 20].name", "b"},
		{"predicate none", "items[price > 100]", nil},
		{"index expression", "nums[$ > 2]", []any{3.0, 4.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, data), tt.want)
		})
	}
}

func TestEvalFilterArrayOfArrays(t *testing.T) {
	// indexing an array of arrays yields the inner array untouched
	compareValue(t, eval(t, "$[0]", []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}), []any{1.0, 2.0})
}

// Ranges

func TestEvalRanges(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"simple", "[1..3]", []any{1.0, 2.0, 3.0}},
		{"empty when reversed", "[3..1]", []any{}},
		{"concatenated", "[1..2, 4..5]", []any{1.0, 2.0, 4.0, 5.0}},
		{"indexed", "[1..4][-2]", 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestEvalRangeErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  types.ErrorCode
	}{
		{"left not integer", `["x"..3]`, types.ErrRangeLeftNotInt},
		{"left fractional", "[1.5..3]", types.ErrRangeLeftNotInt},
		{"right not integer", `[1.."x"]`, types.ErrRangeRightNotInt},
		{"too large", "[1..100000000]", types.ErrRangeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evalError(t, tt.query, nil)
			if got := errCode(t, err); got != tt.code {
				t.Errorf("got code %s, want %s", got, tt.code)
			}
		})
	}
}

// Wildcard and descendants

func TestEvalWildcard(t *testing.T) {
	data := map[string]any{"b": 2.0, "a": 1.0}
	// field order is normalized, so wildcard results are deterministic
	compareValue(t, eval(t, "*", data), []any{1.0, 2.0})
}

func TestEvalDescendants(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": 1.0}}
	compareValue(t, eval(t, "$count(**)", data), 3.0)
}

// Conditionals, blocks, bindings

func TestEvalConditional(t *testing.T) {
	compareValue(t, eval(t, "true ? 1 : 2", nil), 1.0)
	compareValue(t, eval(t, "false ? 1 : 2", nil), 2.0)
	compareValue(t, eval(t, "false ? 1", nil), nil)
}

func TestEvalBlockAndBind(t *testing.T) {
	compareValue(t, eval(t, "(1; 2; 3)", nil), 3.0)
	compareValue(t, eval(t, "($x := 5; $x * 2)", nil), 10.0)
	compareValue(t, eval(t, "($x := 2; $y := $x + 1; $x * $y)", nil), 6.0)
}

func TestEvalCoalesceAndDefault(t *testing.T) {
	data := map[string]any{"present": false, "name": "x"}

	compareValue(t, eval(t, `missing ?? "fallback"`, data), "fallback")
	compareValue(t, eval(t, "present ?? true", data), false)
	compareValue(t, eval(t, `present ?: "default"`, data), "default")
	compareValue(t, eval(t, `name ?: "default"`, data), "x")
}

// Constructors

func TestEvalArrayConstructor(t *testing.T) {
	compareValue(t, eval(t, "[1, [2, 3], 4]", nil), []any{1.0, []any{2.0, 3.0}, 4.0})
	compareValue(t, eval(t, "[]", nil), []any{})
	compareValue(t, eval(t, `["a", 1 + 1]`, nil), []any{"a", 2.0})
}

func TestEvalObjectConstructor(t *testing.T) {
	got := eval(t, `{"a": 1, "b": [2, 3]}`, nil)
	compareValue(t, got, map[string]any{"a": 1.0, "b": []any{2.0, 3.0}})
}

func TestEvalObjectConstructorErrors(t *testing.T) {
	err := evalError(t, `{"a": 1, "a": 2}`, nil)
	if got := errCode(t, err); got != types.ErrAmbiguousGroup {
		t.Errorf("duplicate key: got code %s, want %s", got, types.ErrAmbiguousGroup)
	}

	err = evalError(t, `($k := 1; {$k: "v"})`, nil)
	if got := errCode(t, err); got != types.ErrGroupKeyNotString {
		t.Errorf("numeric key: got code %s, want %s", got, types.ErrGroupKeyNotString)
	}
}

func TestEvalGroupBy(t *testing.T) {
	data := map[string]any{
		"items": []any{
			map[string]any{"cat": "a", "price": 1.0},
			map[string]any{"cat": "b", "price": 2.0},
			map[string]any{"cat": "a", "price": 3.0},
		},
	}
	got := eval(t, "items{cat: $sum(price)}", data)
	compareValue(t, got, map[string]any{"a": 4.0, "b": 2.0})
}

// Order-by

func TestEvalSortClause(t *testing.T) {
	data := map[string]any{
		"items": []any{
			map[string]any{"sku": "a", "price": 3.0},
			map[string]any{"sku": "b", "price": 1.0},
			map[string]any{"sku": "c", "price": 2.0},
		},
	}

	compareValue(t, eval(t, "items^(price).sku", data), []any{"b", "c", "a"})
	compareValue(t, eval(t, "items^(>price).sku", data), []any{"a", "c", "b"})
}

func TestEvalSortStable(t *testing.T) {
	data := map[string]any{
		"items": []any{
			map[string]any{"sku": "first", "price": 1.0},
			map[string]any{"sku": "second", "price": 1.0},
		},
	}
	compareValue(t, eval(t, "items^(price).sku", data), []any{"first", "second"})
}

func TestEvalSortErrors(t *testing.T) {
	data := map[string]any{
		"items": []any{
			map[string]any{"v": 1.0},
			map[string]any{"v": "a"},
		},
	}
	err := evalError(t, "items^(v)", data)
	if got := errCode(t, err); got != types.ErrSortMixedTypes {
		t.Errorf("got code %s, want %s", got, types.ErrSortMixedTypes)
	}
}

// Focus, index and parent binding

func TestEvalFocusBinding(t *testing.T) {
	data := map[string]any{
		"orders": []any{
			map[string]any{"id": 1.0, "products": []any{
				map[string]any{"sku": "x"},
				map[string]any{"sku": "y"},
			}},
			map[string]any{"id": 2.0, "products": []any{
				map[string]any{"sku": "z"},
			}},
		},
	}

	got := eval(t, `orders@$o.products.{"order": $o.id, "sku": sku}`, data)
	compareValue(t, got, []any{
		map[string]any{"order": 1.0, "sku": "x"},
		map[string]any{"order": 1.0, "sku": "y"},
		map[string]any{"order": 2.0, "sku": "z"},
	})
}

func TestEvalIndexBinding(t *testing.T) {
	data := map[string]any{
		"items": []any{
			map[string]any{"n": "a"},
			map[string]any{"n": "b"},
		},
	}

	got := eval(t, `items#$i.{"idx": $i, "n": n}`, data)
	compareValue(t, got, []any{
		map[string]any{"idx": 0.0, "n": "a"},
		map[string]any{"idx": 1.0, "n": "b"},
	})
}

func TestEvalParentOperator(t *testing.T) {
	data := map[string]any{
		"orders": []any{
			map[string]any{"id": 1.0, "lines": []any{
				map[string]any{"sku": "x"},
			}},
			map[string]any{"id": 2.0, "lines": []any{
				map[string]any{"sku": "y"},
				map[string]any{"sku": "z"},
			}},
		},
	}

	got := eval(t, `orders.lines.{"sku": sku, "order": %.id}`, data)
	compareValue(t, got, []any{
		map[string]any{"sku": "x", "order": 1.0},
		map[string]any{"sku": "y", "order": 2.0},
		map[string]any{"sku": "z", "order": 2.0},
	})
}

// Evaluator options

func TestEvaluatorBindings(t *testing.T) {
	ev := evaluator.New(evaluator.WithBindings(map[string]any{"threshold": 2.0}))
	expr, err := parser.Parse("$filter(nums, function($v) { $v > $threshold })")
	if err != nil {
		t.Fatal(err)
	}
	data := map[string]any{"nums": []any{1.0, 2.0, 3.0, 4.0}}
	got, err := ev.Eval(context.Background(), expr, data)
	if err != nil {
		t.Fatal(err)
	}
	compareValue(t, got, []any{3.0, 4.0})
}

func TestEvaluatorCustomFunction(t *testing.T) {
	ev := evaluator.New(evaluator.WithFunction("twice", "<n:n>",
		func(rt *evaluator.Runtime, input any, args []any) (any, error) {
			return args[0].(float64) * 2, nil
		}))
	got, err := ev.EvalString(context.Background(), "$twice(21)", nil)
	if err != nil {
		t.Fatal(err)
	}
	compareValue(t, got, 42.0)
}

func TestEvaluatorCaching(t *testing.T) {
	ev := evaluator.New(evaluator.WithCacheSize(8))
	expr1, err := ev.Compile("1 + 1")
	if err != nil {
		t.Fatal(err)
	}
	expr2, err := ev.Compile("1 + 1")
	if err != nil {
		t.Fatal(err)
	}
	if expr1 != expr2 {
		t.Error("expected the cached expression pointer on recompilation")
	}
}

func TestEvaluatorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := evaluator.New()
	expr, err := parser.Parse("1 + 1")
	if err != nil {
		t.Fatal(err)
	}
	_, err = ev.Eval(ctx, expr, nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if got := errCode(t, err); got != types.ErrTimeoutExceeded {
		t.Errorf("got code %s, want %s", got, types.ErrTimeoutExceeded)
	}
}
