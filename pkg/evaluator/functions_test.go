package evaluator_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/querata/querata/pkg/types"
)

func TestFnAggregates(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"sum", "$sum([1, 2, 3])", 6.0},
		{"sum empty", "$sum([])", 0.0},
		{"sum missing", "$sum(nothing)", nil},
		{"count", "$count([1, 2, 3])", 3.0},
		{"count missing", "$count(nothing)", 0.0},
		{"count scalar", "$count(5)", 1.0},
		{"max", "$max([3, 1, 2])", 3.0},
		{"min", "$min([3, 1, 2])", 1.0},
		{"average", "$average([1, 2, 3])", 2.0},
		{"max empty", "$max([])", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestFnSumTypeError(t *testing.T) {
	err := evalError(t, `$sum([1, "x"])`, nil)
	if got := errCode(t, err); got != types.ErrArrayTypeMismatch {
		t.Errorf("got code %s, want %s", got, types.ErrArrayTypeMismatch)
	}
}

func TestFnString(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"number", "$string(5)", "5"},
		{"float", "$string(5.5)", "5.5"},
		{"boolean", "$string(true)", "true"},
		{"string passthrough", `$string("x")`, "x"},
		{"object", `$string({"a": 1})`, `{"a":1}`},
		{"array", "$string([1, 2])", "[1,2]"},
		{"function", "$string($sum)", ""},
		{"missing", "$string(nothing)", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestFnStringFunctions(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"substring", `$substring("hello", 1, 3)`, "ell"},
		{"substring to end", `$substring("hello", 2)`, "llo"},
		{"substring negative", `$substring("hello", -2)`, "lo"},
		{"substringBefore", `$substringBefore("hello world", " ")`, "hello"},
		{"substringBefore missing", `$substringBefore("hello", "x")`, "hello"},
		{"substringAfter", `$substringAfter("hello world", " ")`, "world"},
		{"lowercase", `$lowercase("HeLLo")`, "hello"},
		{"uppercase", `$uppercase("hello")`, "HELLO"},
		{"length", `$length("hello")`, 5.0},
		{"length unicode", `$length("héllo")`, 5.0},
		{"trim", `$trim("  a   b  ")`, "a b"},
		{"pad right", `$pad("foo", 5)`, "foo  "},
		{"pad left", `$pad("foo", -5, "#")`, "##foo"},
		{"contains", `$contains("abracadabra", "bra")`, true},
		{"contains regex", `$contains("abracadabra", /a.*a/)`, true},
		{"split", `$split("a,b,c", ",")`, []any{"a", "b", "c"}},
		{"split limit", `$split("so many words", " ", 2)`, []any{"so", "many"}},
		{"split regex", `$split("a1b2c", /\d/)`, []any{"a", "b", "c"}},
		{"join", `$join(["a", "b", "c"], "-")`, "a-b-c"},
		{"join default separator", `$join(["a", "b"])`, "ab"},
		{"replace literal", `$replace("John Smith", "John", "Mr")`, "Mr Smith"},
		{"replace regex", `$replace("abracadabra", /a.*?a/, "*")`, "*c*bra"},
		{"replace group refs", `$replace("265USD", /([0-9]+)USD/, "$$$1")`, "$265"},
		{"replace with function", `$replace("a1b2", /\d/, function($m) { "<" & $m.match & ">" })`, "a<1>b<2>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestFnStringFunctionErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  types.ErrorCode
	}{
		{"replace empty pattern", `$replace("abc", "", "x")`, types.ErrReplaceEmptyMatch},
		{"replace negative limit", `$replace("abc", "a", "x", -1)`, types.ErrReplaceBadLimit},
		{"replace function non-string", `$replace("a1", /\d/, function($m) { 42 })`, types.ErrReplaceNotString},
		{"split negative limit", `$split("a,b", ",", -1)`, types.ErrSplitBadLimit},
		{"match negative limit", `$match("ab", /a/, -1)`, types.ErrMatchBadLimit},
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

func TestFnMatch(t *testing.T) {
	got := eval(t, `$match("ababbabbcc", /a(b+)/)`, nil)
	compareValue(t, got, []any{
		map[string]any{"match": "ab", "index": 0.0, "groups": []any{"b"}},
		map[string]any{"match": "abb", "index": 2.0, "groups": []any{"bb"}},
		map[string]any{"match": "abb", "index": 5.0, "groups": []any{"bb"}},
	})

	compareValue(t, eval(t, `$count($match("xyz", /a/))`, nil), 0.0)
}

func TestFnNumeric(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"number from string", `$number("5")`, 5.0},
		{"number from float string", `$number("-1.5e2")`, -150.0},
		{"number from bool", "$number(true)", 1.0},
		{"abs", "$abs(-3.5)", 3.5},
		{"floor", "$floor(3.7)", 3.0},
		{"ceil", "$ceil(3.2)", 4.0},
		{"round", "$round(3.4)", 3.0},
		{"round half even down", "$round(2.5)", 2.0},
		{"round half even up", "$round(3.5)", 4.0},
		{"round negative half", "$round(-2.5)", -2.0},
		{"round precision", "$round(4.44, 1)", 4.4},
		{"sqrt", "$sqrt(16)", 4.0},
		{"power", "$power(2, 10)", 1024.0},
		{"formatBase binary", "$formatBase(100, 2)", "1100100"},
		{"formatBase hex", "$formatBase(255, 16)", "ff"},
		{"formatBase default", "$formatBase(42)", "42"},
		{"parseInteger", `$parseInteger("1,234")`, 1234.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestFnNumericErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  types.ErrorCode
	}{
		{"number cast", `$number("abc")`, types.ErrCastNumber},
		{"sqrt negative", "$sqrt(-1)", types.ErrSqrtNegative},
		{"power overflow", "$power(1e308, 2)", types.ErrPowerResult},
		{"formatBase radix", "$formatBase(10, 40)", types.ErrFormatBaseRadix},
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

func TestFnRandom(t *testing.T) {
	got := eval(t, "$random()", nil).(float64)
	if got < 0 || got >= 1 {
		t.Errorf("$random() = %v, want [0, 1)", got)
	}
}

func TestFnBoolean(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"empty string", `$boolean("")`, false},
		{"nonempty string", `$boolean("a")`, true},
		{"zero", "$boolean(0)", false},
		{"number", "$boolean(42)", true},
		{"empty array", "$boolean([])", false},
		{"array of zero", "$boolean([0])", false},
		{"array with truthy", "$boolean([0, 1])", true},
		{"empty object", "$boolean({})", false},
		{"object", `$boolean({"a": 1})`, true},
		{"function", "$boolean($sum)", false},
		{"not", "$not(false)", true},
		{"not missing", "$not(nothing)", nil},
		{"exists false", "$exists(nothing)", false},
		{"exists true", "$exists(1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestFnArrays(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"append arrays", "$append([1, 2], [3, 4])", []any{1.0, 2.0, 3.0, 4.0}},
		{"append scalar", "$append(1, [2, 3])", []any{1.0, 2.0, 3.0}},
		{"append missing", "$append(nothing, [1])", []any{1.0}},
		{"reverse", "$reverse([1, 2, 3])", []any{3.0, 2.0, 1.0}},
		{"sort numbers", "$sort([3, 1, 2])", []any{1.0, 2.0, 3.0}},
		{"sort strings", `$sort(["b", "c", "a"])`, []any{"a", "b", "c"}},
		{"sort comparator", "$sort([1, 3, 2], function($a, $b) { $a < $b })", []any{3.0, 2.0, 1.0}},
		{"distinct", "$distinct([1, 2, 1, 3, 2])", []any{1.0, 2.0, 3.0}},
		{"zip", "$zip([1, 2], [3, 4])", []any{[]any{1.0, 3.0}, []any{2.0, 4.0}}},
		{"zip uneven", "$zip([1, 2, 3], [4])", []any{[]any{1.0, 4.0}}},
		{"shuffle count", "$count($shuffle([1..5]))", 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestFnSortMixedError(t *testing.T) {
	err := evalError(t, `$sort([1, "a"])`, nil)
	if got := errCode(t, err); got != types.ErrSortNotComparable2 {
		t.Errorf("got code %s, want %s", got, types.ErrSortNotComparable2)
	}
}

func TestFnObjects(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"keys", `$keys({"b": 1, "a": 2})`, []any{"a", "b"}},
		{"keys of array", `$keys([{"a": 1}, {"b": 2}])`, []any{"a", "b"}},
		{"lookup", `$lookup({"a": 5}, "a")`, 5.0},
		{"lookup missing", `$lookup({"a": 5}, "b")`, nil},
		{"spread", `$spread({"a": 1, "b": 2})`, []any{
			map[string]any{"a": 1.0},
			map[string]any{"b": 2.0},
		}},
		{"merge", `$merge([{"a": 1}, {"b": 2}, {"a": 3}])`, map[string]any{"a": 3.0, "b": 2.0}},
		{"sift", `$sift({"a": 1, "b": 10}, function($v) { $v > 5 })`, map[string]any{"b": 10.0}},
		{"each", `$each({"a": 1, "b": 2}, function($v, $k) { $k & $v })`, []any{"a1", "b2"}},
		{"type null", "$type(null)", "null"},
		{"type number", "$type(1)", "number"},
		{"type string", `$type("x")`, "string"},
		{"type boolean", "$type(true)", "boolean"},
		{"type array", "$type([1])", "array"},
		{"type object", "$type({})", "object"},
		{"type function", "$type($sum)", "function"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestFnHigherOrder(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"map", "$map([1, 2, 3], function($v) { $v * 2 })", []any{2.0, 4.0, 6.0}},
		{"map with index", "$map([10, 20], function($v, $i) { $i })", []any{0.0, 1.0}},
		{"map with builtin", `$map(["a", "b"], $uppercase)`, []any{"A", "B"}},
		{"filter", "$filter([1, 2, 3, 4], function($v) { $v > 2 })", []any{3.0, 4.0}},
		{"single", "$single([1, 2, 3], function($v) { $v = 2 })", 2.0},
		{"reduce", "$reduce([1, 2, 3], function($a, $b) { $a + $b })", 6.0},
		{"reduce with init", "$reduce([1, 2, 3], function($a, $b) { $a + $b }, 10)", 16.0},
		{"reduce single item", "$reduce([5], function($a, $b) { $a + $b })", 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestFnHigherOrderErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  types.ErrorCode
	}{
		{"single no match", "$single([1, 2], function($v) { $v > 5 })", types.ErrSingleNoMatch},
		{"single many matches", "$single([1, 2], function($v) { $v > 0 })", types.ErrSingleManyMatches},
		{"reduce arity", "$reduce([1, 2], function($a) { $a })", types.ErrReduceArity},
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

func TestFnEncoding(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"base64encode", `$base64encode("hello")`, "aGVsbG8="},
		{"base64decode", `$base64decode("aGVsbG8=")`, "hello"},
		{"encodeUrlComponent", `$encodeUrlComponent("?x=test")`, "%3Fx%3Dtest"},
		{"encodeUrl", `$encodeUrl("https://e.com/?a=1&b=x y")`, "https://e.com/?a=1&b=x%20y"},
		{"decodeUrlComponent", `$decodeUrlComponent("%3Fx%3Dtest")`, "?x=test"},
		{"decodeUrl", `$decodeUrl("a%20b")`, "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareValue(t, eval(t, tt.query, nil), tt.want)
		})
	}
}

func TestFnDateTime(t *testing.T) {
	now := eval(t, "$now()", nil).(string)
	iso := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)
	if !iso.MatchString(now) {
		t.Errorf("$now() = %q, want ISO 8601 UTC with milliseconds", now)
	}

	millis := eval(t, "$millis()", nil).(float64)
	if millis <= 0 {
		t.Errorf("$millis() = %v, want positive", millis)
	}

	compareValue(t, eval(t, "$fromMillis(1510067557121)", nil), "2017-11-07T15:12:37.121Z")
	compareValue(t, eval(t, `$toMillis("2017-11-07T15:07:54.972Z")`, nil), 1510067274972.0)
}

func TestFnMisc(t *testing.T) {
	err := evalError(t, `$error("boom")`, nil)
	if got := errCode(t, err); got != types.ErrUserError {
		t.Errorf("error: got code %s, want %s", got, types.ErrUserError)
	}
	var terr *types.Error
	if errors.As(err, &terr) && terr.Message != "boom" {
		t.Errorf("error message = %q, want %q", terr.Message, "boom")
	}

	compareValue(t, eval(t, "$assert(true)", nil), nil)
	err = evalError(t, `$assert(1 > 2, "nope")`, nil)
	if got := errCode(t, err); got != types.ErrAssertFailed {
		t.Errorf("assert: got code %s, want %s", got, types.ErrAssertFailed)
	}

	compareValue(t, eval(t, `$eval("[1, 2]")`, nil), []any{1.0, 2.0})
	compareValue(t, eval(t, `$eval("a + 1", {"a": 5})`, nil), 6.0)

	data := map[string]any{"a": []any{1.0, map[string]any{"b": 2.0}}}
	compareValue(t, eval(t, "$clone($) = $", data), true)
}
