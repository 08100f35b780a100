// Package ast defines the syntax tree produced by the parser. The tree is a
// tagged union: Node is the closed interface and each expression kind is its
// own struct. The parser produces raw nodes; the semantic pass rewrites them
// into the evaluable forms (paths with steps, bind/sort/group attachments,
// resolved ancestry).
package ast

import "regexp"

// Node is implemented by every AST node.
type Node interface {
	Pos() int
	NodeMeta() *Meta
}

// Meta carries the attributes any expression kind can acquire during the
// semantic pass: posterior predicates, a grouping expression, singleton
// retention and unresolved parent slots.
type Meta struct {
	Position      int
	KeepArray     bool
	Predicates    []*Stage
	GroupBy       *GroupBy
	SeekingParent []*AncestorSlot
}

// Pos returns the source position of the node.
func (m *Meta) Pos() int { return m.Position }

// NodeMeta returns the shared node attributes.
func (m *Meta) NodeMeta() *Meta { return m }

// Validator checks an argument list against a function signature. It is
// satisfied by *signature.Signature; the indirection keeps this package free
// of dependencies.
type Validator interface {
	Validate(args []any, context any) ([]any, error)
	MinArgs() int
	SetFunctionName(name string)
}

// AncestorSlot identifies one parent (%) binding: the synthetic tuple label
// it resolves to, how many levels up it still has to travel, and its index in
// the parser's allocation order.
type AncestorSlot struct {
	Label string
	Level int
	Index int
}

// StageKind discriminates the stages attached to a path step.
type StageKind uint8

const (
	StageFilter StageKind = iota
	StageIndex
)

// Stage is a post-step operation: a filter predicate or a positional index
// binding.
type Stage struct {
	Kind     StageKind
	Expr     Node   // StageFilter: the predicate
	Value    string // StageIndex: the variable name
	Position int
}

// GroupBy is an object-grouping clause {key: value, ...} attached to an
// expression or path.
type GroupBy struct {
	Pairs    []Pair
	Position int
}

// Pair is one key/value expression pair of an object constructor or grouping
// clause.
type Pair struct {
	Key   Node
	Value Node
}

// SortTerm is one term of an order-by clause.
type SortTerm struct {
	Expr       Node
	Descending bool
}

// Step is one location step of a flattened path.
type Step struct {
	Expr          Node
	Stages        []*Stage
	Terms         []*SortTerm // sort step: Expr is nil
	Focus         string      // @$var binding
	Index         string      // #$var binding
	Tuple         bool
	Ancestor      *AncestorSlot
	KeepArray     bool
	SeekingParent []*AncestorSlot
	Position      int
}

// String is a string literal.
type String struct {
	Meta
	Value string
}

// Number is a numeric literal.
type Number struct {
	Meta
	Value float64
}

// Boolean is a boolean literal.
type Boolean struct {
	Meta
	Value bool
}

// NullLit is the null literal.
type NullLit struct {
	Meta
}

// Regex is a regular expression literal.
type Regex struct {
	Meta
	Pattern string
	Re      *regexp.Regexp
}

// Name is a field reference.
type Name struct {
	Meta
	Value string
}

// Variable is a $-variable reference. The empty name is the context
// reference $.
type Variable struct {
	Meta
	Name string
}

// Wildcard selects all field values (*).
type Wildcard struct {
	Meta
}

// Descendant selects all descendants (**).
type Descendant struct {
	Meta
}

// Parent is the parent operator (%). Slot is assigned during the semantic
// pass and resolved against an enclosing step.
type Parent struct {
	Meta
	Slot *AncestorSlot
}

// Binary is an infix operator expression. After the semantic pass only value
// operators survive (arithmetic, comparison, concatenation, range, and/or,
// in); the structural operators (".", "[", ":=", "@", "#", "~>") are
// rewritten into dedicated forms.
type Binary struct {
	Meta
	Op  string
	LHS Node
	RHS Node
}

// Negate is unary minus.
type Negate struct {
	Meta
	Expr Node
}

// ArrayCons is an array constructor. Cons is set when the constructor is a
// path step that must be treated as a single item.
type ArrayCons struct {
	Meta
	Exprs []Node
	Cons  bool
}

// ObjectCons is a standalone object constructor.
type ObjectCons struct {
	Meta
	Pairs []Pair
}

// ObjectInfix is the raw form of a grouping clause lhs{...} before the
// semantic pass attaches it to lhs.
type ObjectInfix struct {
	Meta
	LHS   Node
	Pairs []Pair
}

// OrderBy is the raw form of an order-by clause lhs^(...) before the
// semantic pass turns it into a sort step.
type OrderBy struct {
	Meta
	LHS   Node
	Terms []*SortTerm
}

// Block is a parenthesized expression sequence. Cons marks a block whose
// result is a constructed array; Tuple marks a block participating in a
// tuple stream for ancestry.
type Block struct {
	Meta
	Exprs []Node
	Cons  bool
	Tuple bool
}

// Condition is the ternary conditional.
type Condition struct {
	Meta
	Cond Node
	Then Node
	Else Node // nil when no else branch
}

// Bind is a variable assignment $name := value.
type Bind struct {
	Meta
	LHS *Variable
	RHS Node
}

// FuncCall is a function invocation or, when IsPartial, a partial
// application with placeholder arguments.
type FuncCall struct {
	Meta
	Proc      Node
	Args      []Node
	IsPartial bool
}

// Placeholder is the ? argument of a partial application.
type Placeholder struct {
	Meta
}

// Lambda is a function definition. Thunk marks a synthetic zero-argument
// wrapper created by tail-call optimization; its body is always a FuncCall.
type Lambda struct {
	Meta
	Params    []string
	Body      Node
	Signature Validator
	Thunk     bool
}

// Apply is the function application operator lhs ~> rhs.
type Apply struct {
	Meta
	LHS Node
	RHS Node
}

// Transform is the object transform |pattern|update,delete|.
type Transform struct {
	Meta
	Pattern Node
	Update  Node
	Delete  Node // nil when absent
}

// Path is a flattened location path.
type Path struct {
	Meta
	Steps              []*Step
	KeepSingletonArray bool
	Tuple              bool
}

// ErrorNode is a placeholder produced in recovery mode where parsing failed.
type ErrorNode struct {
	Meta
	Err error
}
