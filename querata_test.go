package querata_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/querata/querata"
	"github.com/querata/querata/pkg/evaluator"
	"github.com/querata/querata/pkg/types"
)

func TestEval(t *testing.T) {
	data := map[string]any{
		"items": []any{
			map[string]any{"name": "a", "price": 50.0},
			map[string]any{"name": "b", "price": 150.0},
			map[string]any{"name": "c", "price": 200.0},
		},
	}

	tests := []struct {
		name  string
		query string
		want  any
	}{
		{"arithmetic", "1 + 2", 3.0},
		{"path", "items[0].name", "a"},
		{"predicate", "items[price > 100].name", []any{"b", "c"}},
		{"undefined", "missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := querata.Eval(tt.query, data)
			if err != nil {
				t.Fatalf("Eval failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalWithOptions(t *testing.T) {
	got, err := querata.Eval("$base * 2", nil,
		evaluator.WithBindings(map[string]any{"base": 21.0}))
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if got != 42.0 {
		t.Errorf("got %v, want 42", got)
	}
}

func TestCompile(t *testing.T) {
	expr, err := querata.Compile("a.b")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if expr.Source() != "a.b" {
		t.Errorf("Source() = %q, want %q", expr.Source(), "a.b")
	}

	_, err = querata.Compile("a.2")
	if err == nil {
		t.Fatal("expected compile error")
	}
	var terr *types.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *types.Error, got %T: %v", err, err)
	}
	if terr.Code != types.ErrLiteralStep {
		t.Errorf("got code %s, want %s", terr.Code, types.ErrLiteralStep)
	}
}

func TestCompileOnceEvalMany(t *testing.T) {
	expr := querata.MustCompile("value * 2")
	ev := evaluator.New()
	for i, want := range []any{2.0, 4.0, 6.0} {
		got, err := ev.Eval(context.Background(), expr, map[string]any{"value": float64(i + 1)})
		if err != nil {
			t.Fatalf("Eval failed: %v", err)
		}
		if got != want {
			t.Errorf("run %d: got %v, want %v", i, got, want)
		}
	}
}

func TestMustCompilePanic(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "querata: Compile") {
			t.Errorf("unexpected panic value: %v", r)
		}
	}()
	querata.MustCompile(`"unterminated`)
}

func TestEvalWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := querata.EvalWithContext(ctx, "1 + 2", nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	var terr *types.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *types.Error, got %T: %v", err, err)
	}
	if terr.Code != types.ErrTimeoutExceeded {
		t.Errorf("got code %s, want %s", terr.Code, types.ErrTimeoutExceeded)
	}
}

func TestVersion(t *testing.T) {
	if querata.Version() == "" {
		t.Error("Version() returned empty string")
	}
}
