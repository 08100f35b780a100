package parser_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/parser"
	"github.com/querata/querata/pkg/types"
)

func parseErrorCode(t *testing.T, source string) types.ErrorCode {
	t.Helper()
	_, err := parser.Parse(source)
	if err == nil {
		t.Fatalf("expected parse error for %q", source)
	}
	var terr *types.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *types.Error for %q, got %T: %v", source, err, err)
	}
	return terr.Code
}

func TestParseValid(t *testing.T) {
	sources := []string{
		"a",
		"a.b.c",
		`"string"`,
		"3.14",
		"a[0].b",
		"items[price > 100]",
		"a.b^(>c).d",
		`{"key": value}`,
		"[1..10]",
		"($x := 1; $x)",
		"function($a, $b) { $a + $b }",
		"$map(items, function($v) { $v })",
		"a ~> $uppercase ~> $trim",
		"/[a-z]+/i",
		"orders@$o.lines#$i.{ }",
		"a.b.%.c",
		"a ?? b",
		"a ?: b",
		"| a | {} |",
	}

	for _, src := range sources {
		expr, err := parser.Parse(src)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", src, err)
			continue
		}
		if expr.AST() == nil {
			t.Errorf("Parse(%q) returned nil AST", src)
		}
		if expr.Source() != src {
			t.Errorf("Parse(%q).Source() = %q", src, expr.Source())
		}
	}
}

func TestParsePathStructure(t *testing.T) {
	expr, err := parser.Parse("a.b.c")
	if err != nil {
		t.Fatal(err)
	}
	path, ok := expr.AST().(*ast.Path)
	if !ok {
		t.Fatalf("expected *ast.Path, got %T", expr.AST())
	}
	if len(path.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(path.Steps))
	}
	for i, want := range []string{"a", "b", "c"} {
		name, ok := path.Steps[i].Expr.(*ast.Name)
		if !ok {
			t.Fatalf("step %d: expected *ast.Name, got %T", i, path.Steps[i].Expr)
		}
		if name.Value != want {
			t.Errorf("step %d: got %q, want %q", i, name.Value, want)
		}
	}
}

func TestParsePrecedence(t *testing.T) {
	expr, err := parser.Parse("1 + 2 * 3")
	if err != nil {
		t.Fatal(err)
	}
	add, ok := expr.AST().(*ast.Binary)
	if !ok || add.Op != "+" {
		t.Fatalf("expected + at the root, got %#v", expr.AST())
	}
	mul, ok := add.RHS.(*ast.Binary)
	if !ok || mul.Op != "*" {
		t.Fatalf("expected * as the right operand, got %#v", add.RHS)
	}
}

func TestParseAssignRightAssociative(t *testing.T) {
	expr, err := parser.Parse("$a := $b := $c := 1")
	if err != nil {
		t.Fatal(err)
	}
	// := nests to the right: $a := ($b := ($c := 1))
	outer, ok := expr.AST().(*ast.Bind)
	if !ok || outer.LHS.Name != "a" {
		t.Fatalf("expected bind of $a at the root, got %#v", expr.AST())
	}
	mid, ok := outer.RHS.(*ast.Bind)
	if !ok || mid.LHS.Name != "b" {
		t.Fatalf("expected bind of $b, got %#v", outer.RHS)
	}
	inner, ok := mid.RHS.(*ast.Bind)
	if !ok || inner.LHS.Name != "c" {
		t.Fatalf("expected bind of $c, got %#v", mid.RHS)
	}
}

func TestParseDeterministic(t *testing.T) {
	const src = `$map(items[price > 100].a.b^(>c).d, function($v) { $v })`
	first, err := parser.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	second, err := parser.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.AST(), second.AST()) {
		t.Error("parsing the same source twice produced different trees")
	}
}

func TestParseNumberLiteral(t *testing.T) {
	expr, err := parser.Parse("-3.5")
	if err != nil {
		t.Fatal(err)
	}
	num, ok := expr.AST().(*ast.Number)
	if !ok {
		t.Fatalf("expected negated literal to fold to *ast.Number, got %T", expr.AST())
	}
	if num.Value != -3.5 {
		t.Errorf("got %v, want -3.5", num.Value)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   types.ErrorCode
	}{
		{"unterminated string", `"abc`, types.ErrStringNotClosed},
		{"unterminated comment", "/* comment", types.ErrCommentNotClosed},
		{"unterminated regex", "/abc", types.ErrRegexNotClosed},
		{"missing close paren", "(1", types.ErrExpectedBeforeEnd},
		{"trailing token", "a b", types.ErrSyntaxError},
		{"literal step", "a.2", types.ErrLiteralStep},
		{"top-level parent", "%", types.ErrNoParent},
		{"bad lambda parameter", "function(x) { x }", types.ErrBadLambdaParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseErrorCode(t, tt.source); got != tt.code {
				t.Errorf("Parse(%q): got code %s, want %s", tt.source, got, tt.code)
			}
		})
	}
}

func TestParseRecovery(t *testing.T) {
	expr, err := parser.Parse("a b", parser.WithRecovery(true))
	if err != nil {
		t.Fatalf("recovery mode should collect instead of failing: %v", err)
	}
	if len(expr.Errors()) == 0 {
		t.Error("expected collected errors in recovery mode")
	}
}
