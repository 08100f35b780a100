// Package types defines the shared runtime types of querata:
//
//   - Expression: a compiled expression
//   - Null, Sequence, Range: the runtime value containers
//   - Error: structured errors with stable codes
package types

import "github.com/querata/querata/pkg/ast"

// Expression represents a compiled expression.
//
// An Expression can be evaluated any number of times against different
// inputs by passing it to an evaluator. It is immutable after compilation
// and safe for concurrent use by multiple goroutines.
type Expression struct {
	root   ast.Node
	source string
	errors []error
}

// NewExpression creates a new Expression from a processed AST.
func NewExpression(root ast.Node, source string) *Expression {
	return &Expression{
		root:   root,
		source: source,
	}
}

// AST returns the root node of the expression.
func (e *Expression) AST() ast.Node {
	return e.root
}

// Source returns the original source text of the expression.
func (e *Expression) Source() string {
	return e.source
}

// Errors returns any errors collected during parsing (in recovery mode).
func (e *Expression) Errors() []error {
	return e.errors
}

// AddError adds an error to the expression's error list.
func (e *Expression) AddError(err error) {
	e.errors = append(e.errors, err)
}

// String returns the expression source.
func (e *Expression) String() string {
	return e.source
}
