// Package querata implements a query and transformation language for
// JSON-like data: path navigation with predicates and sorting, grouping,
// lambdas and higher-order functions, regular expressions and a library of
// built-in functions.
//
// # Quick Start
//
//	// Compile and evaluate in one call
//	result, err := querata.Eval("items[price > 100].name", data)
//
//	// Compile once, evaluate many times
//	expr, err := querata.Compile("items[price > 100]")
//	ev := evaluator.New()
//	result1, _ := ev.Eval(ctx, expr, data1)
//	result2, _ := ev.Eval(ctx, expr, data2)
//
//	// With options
//	result, err := querata.Eval("items", data,
//	    evaluator.WithTimeout(5*time.Second),
//	    evaluator.WithMaxDepth(500),
//	)
//
// Inputs and results are plain Go values as produced by encoding/json:
// map[string]any, []any, float64, string, bool and nil. An expression whose
// result is undefined evaluates to nil.
//
// For detailed documentation, see:
//   - Parser: github.com/querata/querata/pkg/parser
//   - Evaluator: github.com/querata/querata/pkg/evaluator
//   - Types: github.com/querata/querata/pkg/types
package querata

import (
	"context"
	"fmt"

	"github.com/querata/querata/pkg/evaluator"
	"github.com/querata/querata/pkg/parser"
	"github.com/querata/querata/pkg/types"
)

// Version returns the current version of querata.
func Version() string {
	return "v0.1.0-dev"
}

// Compile compiles an expression for repeated evaluation.
//
// The compiled expression can be evaluated any number of times against
// different data and is safe for concurrent use.
func Compile(query string, opts ...parser.CompileOption) (*types.Expression, error) {
	return parser.Parse(query, opts...)
}

// MustCompile is like Compile but panics if the expression cannot be
// compiled. It simplifies safe initialization of global variables.
func MustCompile(query string) *types.Expression {
	expr, err := Compile(query)
	if err != nil {
		panic(fmt.Sprintf("querata: Compile(%q): %v", query, err))
	}
	return expr
}

// Eval compiles and evaluates an expression in a single call.
//
// For repeated evaluations of the same expression, use Compile with an
// evaluator.Evaluator instead.
func Eval(query string, data any, opts ...evaluator.EvalOption) (any, error) {
	return EvalWithContext(context.Background(), query, data, opts...)
}

// EvalWithContext evaluates an expression under the caller's context. The
// evaluation stops when the context is cancelled.
func EvalWithContext(ctx context.Context, query string, data any, opts ...evaluator.EvalOption) (any, error) {
	expr, err := Compile(query)
	if err != nil {
		return nil, err
	}
	ev := evaluator.New(opts...)
	return ev.Eval(ctx, expr, data)
}
