// Package parser compiles expression source text into the evaluable AST.
//
// The parser implements Vaughan Pratt's top-down operator precedence
// algorithm: a symbol table maps token identifiers to null/left denotation
// rules and a binding power, and expression(rbp) folds tokens while the
// lookahead binds tighter than rbp. Parsing is followed by a semantic pass
// (processAST) that flattens paths, attaches predicates, grouping and
// sorting, resolves parent ancestry and thunks tail calls.
package parser

import (
	"math"
	"strconv"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/types"
)

// compileOptions configures the parser.
type compileOptions struct {
	recover  bool
	maxDepth int
}

// CompileOption configures expression compilation.
type CompileOption func(*compileOptions)

// WithRecovery enables error recovery: instead of stopping at the first
// syntax error, the parser collects errors and substitutes error nodes. The
// collected errors are exposed via Expression.Errors.
func WithRecovery(recover bool) CompileOption {
	return func(o *compileOptions) {
		o.recover = recover
	}
}

// WithMaxDepth limits expression nesting depth. Zero means the default
// (1000).
func WithMaxDepth(depth int) CompileOption {
	return func(o *compileOptions) {
		o.maxDepth = depth
	}
}

const defaultMaxDepth = 1000

// tokenKind classifies the current lookahead token.
type tokenKind uint8

const (
	kindOperator tokenKind = iota
	kindName
	kindVariable
	kindString
	kindNumber
	kindValue
	kindRegex
	kindEnd
)

// tnode is the lookahead token paired with its symbol-table entry.
type tnode struct {
	sym      *symbol
	id       string
	kind     tokenKind
	value    any
	raw      string
	position int
}

// symbol is one symbol-table entry: a token identifier with its left binding
// power and denotation rules. Rules receive the parser state explicitly.
type symbol struct {
	id  string
	lbp int
	nud func(p *Parser, t *tnode) (ast.Node, error)
	led func(p *Parser, t *tnode, left ast.Node) (ast.Node, error)
}

// Parser holds the state of a single parse.
type Parser struct {
	source string
	lexer  *Lexer
	opts   compileOptions
	node   *tnode
	depth  int
	errors []error

	// ancestry bookkeeping for the parent operator
	ancestorLabel int
	ancestorIndex int
	ancestry      []*ast.Parent
}

// Parse compiles source into an Expression. In recovery mode the returned
// expression may carry collected errors.
func Parse(source string, opts ...CompileOption) (*types.Expression, error) {
	o := compileOptions{maxDepth: defaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxDepth <= 0 {
		o.maxDepth = defaultMaxDepth
	}
	p := &Parser{
		source: source,
		lexer:  NewLexer(source),
		opts:   o,
	}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}
	expr := types.NewExpression(root, source)
	for _, e := range p.errors {
		expr.AddError(e)
	}
	return expr, nil
}

func (p *Parser) parse() (ast.Node, error) {
	if err := p.advance("", false); err != nil {
		return nil, err
	}
	raw, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	if p.node.id != "(end)" {
		serr := types.Errorf(types.ErrSyntaxError, p.node.position,
			"syntax error: %q", p.node.raw).WithToken(p.node.raw)
		if _, herr := p.handleError(serr); herr != nil {
			return nil, herr
		}
	}

	result, err := p.processAST(raw)
	if err != nil {
		return nil, err
	}

	if _, isParent := result.(*ast.Parent); isParent || result.NodeMeta().SeekingParent != nil {
		return nil, types.NewError(types.ErrNoParent,
			"the object representing the 'parent' cannot be derived from this expression", result.Pos())
	}
	return result, nil
}

// handleError records err and substitutes an error node in recovery mode,
// and aborts the parse otherwise.
func (p *Parser) handleError(err *types.Error) (ast.Node, error) {
	if p.opts.recover {
		p.errors = append(p.errors, err)
		return &ast.ErrorNode{Meta: ast.Meta{Position: err.Position}, Err: err}, nil
	}
	return nil, err
}

func (p *Parser) endNode() *tnode {
	return &tnode{sym: symbolTable["(end)"], id: "(end)", kind: kindEnd, position: len(p.source)}
}

// advance moves to the next token, optionally checking that the current
// token is the expected one. The infix flag selects the lexer mode: in infix
// position a slash is division, in operand position it starts a regex.
func (p *Parser) advance(id string, infix bool) error {
	if id != "" && p.node.id != id {
		code := types.ErrExpectedToken
		msg := "expected " + id + ", got " + p.node.id
		if p.node.id == "(end)" {
			code = types.ErrExpectedBeforeEnd
			msg = "expected " + id + " before end of expression"
		}
		err := types.NewError(code, msg, p.node.position).WithToken(p.node.raw)
		if _, herr := p.handleError(err); herr != nil {
			return herr
		}
		return nil
	}

	tok := p.lexer.Next(!infix)
	switch tok.Type {
	case TokenError:
		lerr := p.lexer.Error()
		if terr, ok := lerr.(*types.Error); ok {
			if _, herr := p.handleError(terr); herr != nil {
				return herr
			}
		} else {
			return lerr
		}
		p.node = p.endNode()
		return nil
	case TokenEOF:
		p.node = p.endNode()
		return nil
	}

	n := &tnode{raw: tok.Value, position: tok.Position}
	switch tok.Type {
	case TokenName, TokenNameEsc:
		n.sym = symbolTable["(name)"]
		n.id = "(name)"
		n.kind = kindName
		n.value = tok.Value
	case TokenVariable:
		n.sym = symbolTable["(name)"]
		n.id = "(name)"
		n.kind = kindVariable
		n.value = tok.Value
	case TokenString:
		n.sym = symbolTable["(literal)"]
		n.id = "(literal)"
		n.kind = kindString
		n.value = tok.Value
	case TokenNumber:
		num, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil || math.IsInf(num, 0) || math.IsNaN(num) {
			nerr := types.Errorf(types.ErrNumberOutOfRange, tok.Position,
				"number out of range: %s", tok.Value).WithToken(tok.Value)
			if _, herr := p.handleError(nerr); herr != nil {
				return herr
			}
			num = 0
		}
		n.sym = symbolTable["(literal)"]
		n.id = "(literal)"
		n.kind = kindNumber
		n.value = num
	case TokenBoolean:
		n.sym = symbolTable["(literal)"]
		n.id = "(literal)"
		n.kind = kindValue
		n.value = tok.Value == "true"
	case TokenNull:
		n.sym = symbolTable["(literal)"]
		n.id = "(literal)"
		n.kind = kindValue
		n.value = nil
	case TokenRegex:
		n.sym = symbolTable["(regex)"]
		n.id = "(regex)"
		n.kind = kindRegex
		n.value = tok.Value
	default:
		// operator token
		id := tok.Type.String()
		sym := symbolTable[id]
		if sym == nil {
			oerr := types.Errorf(types.ErrUnknownOperator, tok.Position,
				"unknown operator: %s", tok.Value).WithToken(tok.Value)
			if _, herr := p.handleError(oerr); herr != nil {
				return herr
			}
			p.node = p.endNode()
			return nil
		}
		n.sym = sym
		n.id = id
		n.kind = kindOperator
		n.value = tok.Value
	}
	p.node = n
	return nil
}

// expression implements Pratt's algorithm.
func (p *Parser) expression(rbp int) (ast.Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.opts.maxDepth {
		return nil, types.NewError(types.ErrSyntaxError,
			"expression is too deeply nested", p.node.position)
	}

	t := p.node
	if err := p.advance("", true); err != nil {
		return nil, err
	}
	if t.sym.nud == nil {
		uerr := types.Errorf(types.ErrInvalidUnary, t.position,
			"the symbol %q cannot be used as a unary operator", t.id).WithToken(t.raw)
		return p.handleError(uerr)
	}
	left, err := t.sym.nud(p, t)
	if err != nil {
		return nil, err
	}
	for rbp < p.node.sym.lbp {
		t = p.node
		if err := p.advance("", false); err != nil {
			return nil, err
		}
		if t.sym.led == nil {
			return nil, types.Errorf(types.ErrSyntaxError, t.position,
				"syntax error: %q", t.id).WithToken(t.raw)
		}
		left, err = t.sym.led(p, t, left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}
