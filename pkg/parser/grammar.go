package parser

import (
	"regexp"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/signature"
	"github.com/querata/querata/pkg/types"
)

// Operator binding powers. Higher binds tighter; right-associative operators
// parse their right side with bp-1.
var bindingPowers = map[string]int{
	".":   75,
	"[":   80,
	"]":   0,
	"{":   70,
	"}":   0,
	"(":   80,
	")":   0,
	",":   0,
	"@":   80,
	"#":   80,
	";":   0,
	":":   0,
	"?":   20,
	"+":   50,
	"-":   50,
	"*":   60,
	"/":   60,
	"%":   60,
	"|":   0,
	"=":   40,
	"<":   40,
	">":   40,
	"^":   40,
	"**":  60,
	"..":  0,
	":=":  10,
	"!=":  40,
	"<=":  40,
	">=":  40,
	"~>":  40,
	"??":  40,
	"?:":  40,
	"and": 30,
	"or":  25,
	"in":  40,
	"&":   50,
}

// symbolTable is shared by all parsers; the rules are pure functions of the
// parser state passed to them.
var symbolTable map[string]*symbol

func init() { symbolTable = newSymbolTable() }

func newSymbolTable() map[string]*symbol {
	table := map[string]*symbol{}

	register := func(s *symbol) {
		if existing, ok := table[s.id]; ok {
			if s.lbp > existing.lbp {
				existing.lbp = s.lbp
			}
			if s.nud != nil {
				existing.nud = s.nud
			}
			if s.led != nil {
				existing.led = s.led
			}
			return
		}
		table[s.id] = s
	}

	terminal := func(id string, nud func(p *Parser, t *tnode) (ast.Node, error)) {
		register(&symbol{id: id, nud: nud})
	}

	// infix registers a plain left-associative binary operator.
	infix := func(id string) {
		bp := bindingPowers[id]
		register(&symbol{id: id, lbp: bp, led: func(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
			rhs, err := p.expression(bp)
			if err != nil {
				return nil, err
			}
			return &ast.Binary{Meta: ast.Meta{Position: t.position}, Op: id, LHS: left, RHS: rhs}, nil
		}})
	}

	// punctuation and closers: no denotation of their own
	for _, id := range []string{":", ";", ",", ")", "]", "}", ".."} {
		register(&symbol{id: id})
	}

	terminal("(end)", func(p *Parser, t *tnode) (ast.Node, error) {
		return p.handleError(types.NewError(types.ErrUnexpectedEnd,
			"unexpected end of expression", t.position))
	})

	terminal("(name)", func(p *Parser, t *tnode) (ast.Node, error) {
		if t.kind == kindVariable {
			return &ast.Variable{Meta: ast.Meta{Position: t.position}, Name: t.value.(string)}, nil
		}
		return &ast.Name{Meta: ast.Meta{Position: t.position}, Value: t.value.(string)}, nil
	})

	terminal("(literal)", func(p *Parser, t *tnode) (ast.Node, error) {
		switch t.kind {
		case kindString:
			return &ast.String{Meta: ast.Meta{Position: t.position}, Value: t.value.(string)}, nil
		case kindNumber:
			return &ast.Number{Meta: ast.Meta{Position: t.position}, Value: t.value.(float64)}, nil
		default:
			if b, ok := t.value.(bool); ok {
				return &ast.Boolean{Meta: ast.Meta{Position: t.position}, Value: b}, nil
			}
			return &ast.NullLit{Meta: ast.Meta{Position: t.position}}, nil
		}
	})

	terminal("(regex)", func(p *Parser, t *tnode) (ast.Node, error) {
		pattern := t.value.(string)
		if pattern == "" || pattern == "(?i)" || pattern == "(?m)" || pattern == "(?s)" {
			return p.handleError(types.NewError(types.ErrEmptyRegex,
				"empty regular expressions are not allowed", t.position))
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return p.handleError(types.Errorf(types.ErrRegexNotClosed, t.position,
				"invalid regular expression: %v", err).WithCause(err))
		}
		return &ast.Regex{Meta: ast.Meta{Position: t.position}, Pattern: pattern, Re: re}, nil
	})

	infix(".")
	infix("+")
	infix("/")
	infix("=")
	infix("<")
	infix(">")
	infix("!=")
	infix("<=")
	infix(">=")
	infix("&")
	infix("~>")

	// minus: infix subtraction and prefix negation
	infix("-")
	register(&symbol{id: "-", nud: func(p *Parser, t *tnode) (ast.Node, error) {
		expr, err := p.expression(70)
		if err != nil {
			return nil, err
		}
		return &ast.Negate{Meta: ast.Meta{Position: t.position}, Expr: expr}, nil
	}})

	// star: infix multiplication and field wildcard
	infix("*")
	register(&symbol{id: "*", nud: func(p *Parser, t *tnode) (ast.Node, error) {
		return &ast.Wildcard{Meta: ast.Meta{Position: t.position}}, nil
	}})

	// percent: infix modulo and parent operator
	infix("%")
	register(&symbol{id: "%", nud: func(p *Parser, t *tnode) (ast.Node, error) {
		return &ast.Parent{Meta: ast.Meta{Position: t.position}}, nil
	}})

	// descendant wildcard
	register(&symbol{id: "**", nud: func(p *Parser, t *tnode) (ast.Node, error) {
		return &ast.Descendant{Meta: ast.Meta{Position: t.position}}, nil
	}})

	// the keywords can also be used as field names
	for _, id := range []string{"and", "or", "in"} {
		infix(id)
		keyword := id
		register(&symbol{id: id, nud: func(p *Parser, t *tnode) (ast.Node, error) {
			return &ast.Name{Meta: ast.Meta{Position: t.position}, Value: keyword}, nil
		}})
	}

	// function invocation / lambda definition; parenthesized block
	register(&symbol{id: "(", lbp: bindingPowers["("], led: ledFunctionInvocation, nud: nudBlock})

	// array constructor; filter predicate
	register(&symbol{id: "[", lbp: bindingPowers["["], led: ledFilter, nud: nudArrayConstructor})

	// order-by
	register(&symbol{id: "^", lbp: bindingPowers["^"], led: ledOrderBy})

	// object constructor (prefix) and grouping clause (infix)
	register(&symbol{id: "{", lbp: bindingPowers["{"],
		nud: func(p *Parser, t *tnode) (ast.Node, error) { return objectParser(p, t, nil) },
		led: func(p *Parser, t *tnode, left ast.Node) (ast.Node, error) { return objectParser(p, t, left) },
	})

	// variable binding, right associative
	register(&symbol{id: ":=", lbp: bindingPowers[":="], led: func(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
		if _, ok := left.(*ast.Variable); !ok {
			return p.handleError(types.NewError(types.ErrBadBindTarget,
				"the left side of := must be a variable name (start with $)", left.Pos()))
		}
		rhs, err := p.expression(bindingPowers[":="] - 1)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Meta: ast.Meta{Position: t.position}, Op: ":=", LHS: left, RHS: rhs}, nil
	}})

	// focus and index variable binding
	for _, id := range []string{"@", "#"} {
		op := id
		register(&symbol{id: id, lbp: bindingPowers[id], led: func(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
			rhs, err := p.expression(bindingPowers[op])
			if err != nil {
				return nil, err
			}
			if _, ok := rhs.(*ast.Variable); !ok {
				return p.handleError(types.Errorf(types.ErrBadFocusTarget, rhs.Pos(),
					"the right side of %s must be a variable name (start with $)", op).WithToken(op))
			}
			return &ast.Binary{Meta: ast.Meta{Position: t.position}, Op: op, LHS: left, RHS: rhs}, nil
		}})
	}

	// ternary conditional
	register(&symbol{id: "?", lbp: bindingPowers["?"], led: func(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
		cond := &ast.Condition{Meta: ast.Meta{Position: t.position}, Cond: left}
		then, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		cond.Then = then
		if p.node.id == ":" {
			if err := p.advance(":", false); err != nil {
				return nil, err
			}
			els, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			cond.Else = els
		}
		return cond, nil
	}})

	// coalescing: lhs ?? rhs  =>  $exists(lhs) ? lhs : rhs
	register(&symbol{id: "??", lbp: bindingPowers["??"], led: func(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
		els, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		exists := &ast.FuncCall{
			Meta: ast.Meta{Position: t.position},
			Proc: &ast.Variable{Meta: ast.Meta{Position: t.position}, Name: "exists"},
			Args: []ast.Node{left},
		}
		return &ast.Condition{Meta: ast.Meta{Position: t.position}, Cond: exists, Then: left, Else: els}, nil
	}})

	// default: lhs ?: rhs  =>  lhs ? lhs : rhs
	register(&symbol{id: "?:", lbp: bindingPowers["?:"], led: func(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
		els, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		return &ast.Condition{Meta: ast.Meta{Position: t.position}, Cond: left, Then: left, Else: els}, nil
	}})

	// object transformer
	register(&symbol{id: "|", nud: func(p *Parser, t *tnode) (ast.Node, error) {
		pattern, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		if err := p.advance("|", false); err != nil {
			return nil, err
		}
		update, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		tr := &ast.Transform{Meta: ast.Meta{Position: t.position}, Pattern: pattern, Update: update}
		if p.node.id == "," {
			if err := p.advance(",", false); err != nil {
				return nil, err
			}
			tr.Delete, err = p.expression(0)
			if err != nil {
				return nil, err
			}
		}
		if err := p.advance("|", true); err != nil {
			return nil, err
		}
		return tr, nil
	}})

	// partial application placeholder; only valid inside an argument list,
	// which consumes it directly
	register(&symbol{id: "(error)", lbp: 10})

	return table
}

// ledFunctionInvocation parses arguments after '(' and recognizes lambda
// definitions written function($args){body} or λ($args){body}.
func ledFunctionInvocation(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
	call := &ast.FuncCall{Meta: ast.Meta{Position: t.position}, Proc: left}
	if p.node.id != ")" {
		for {
			if p.node.kind == kindOperator && p.node.id == "?" {
				// partial function application
				call.IsPartial = true
				call.Args = append(call.Args, &ast.Placeholder{Meta: ast.Meta{Position: p.node.position}})
				if err := p.advance("?", false); err != nil {
					return nil, err
				}
			} else {
				arg, err := p.expression(0)
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
			}
			if p.node.id != "," {
				break
			}
			if err := p.advance(",", false); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance(")", true); err != nil {
		return nil, err
	}

	name, isName := left.(*ast.Name)
	if !isName || (name.Value != "function" && name.Value != "λ") {
		return call, nil
	}

	// lambda definition: all arguments must be variables
	lambda := &ast.Lambda{Meta: ast.Meta{Position: t.position}}
	for _, arg := range call.Args {
		v, ok := arg.(*ast.Variable)
		if !ok {
			return p.handleError(types.NewError(types.ErrBadLambdaParam,
				"parameter of function definition must be a variable name (start with $)", arg.Pos()))
		}
		lambda.Params = append(lambda.Params, v.Name)
	}

	// optional signature
	if p.node.id == "<" {
		depth := 1
		sig := "<"
		for depth > 0 && p.node.id != "{" && p.node.id != "(end)" {
			if err := p.advance("", false); err != nil {
				return nil, err
			}
			tok := p.node
			if tok.id == ">" {
				depth--
			} else if tok.id == "<" {
				depth++
			}
			sig += tok.raw
		}
		if err := p.advance(">", false); err != nil {
			return nil, err
		}
		compiled, err := signature.Parse(sig, "lambda")
		if err != nil {
			if terr, ok := err.(*types.Error); ok {
				if _, herr := p.handleError(terr); herr != nil {
					return nil, herr
				}
			} else {
				return nil, err
			}
		}
		lambda.Signature = compiled
	}

	if err := p.advance("{", false); err != nil {
		return nil, err
	}
	body, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	lambda.Body = body
	if err := p.advance("}", false); err != nil {
		return nil, err
	}
	return lambda, nil
}

// nudBlock parses a parenthesized expression sequence.
func nudBlock(p *Parser, t *tnode) (ast.Node, error) {
	block := &ast.Block{Meta: ast.Meta{Position: t.position}}
	for p.node.id != ")" {
		expr, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		block.Exprs = append(block.Exprs, expr)
		if p.node.id != ";" {
			break
		}
		if err := p.advance(";", false); err != nil {
			return nil, err
		}
	}
	if err := p.advance(")", true); err != nil {
		return nil, err
	}
	return block, nil
}

// nudArrayConstructor parses an array constructor, with the range operator
// recognized between items.
func nudArrayConstructor(p *Parser, t *tnode) (ast.Node, error) {
	cons := &ast.ArrayCons{Meta: ast.Meta{Position: t.position}}
	if p.node.id != "]" {
		for {
			item, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			if p.node.id == ".." {
				// range operator
				rng := &ast.Binary{Meta: ast.Meta{Position: p.node.position}, Op: "..", LHS: item}
				if err := p.advance("..", false); err != nil {
					return nil, err
				}
				rng.RHS, err = p.expression(0)
				if err != nil {
					return nil, err
				}
				item = rng
			}
			cons.Exprs = append(cons.Exprs, item)
			if p.node.id != "," {
				break
			}
			if err := p.advance(",", false); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance("]", true); err != nil {
		return nil, err
	}
	return cons, nil
}

// ledFilter parses a predicate, or flags singleton retention for an empty
// pair of brackets.
func ledFilter(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
	if p.node.id == "]" {
		// empty predicate means maintain singleton arrays in the output
		step := left
		for {
			b, ok := step.(*ast.Binary)
			if !ok || b.Op != "[" {
				break
			}
			step = b.LHS
		}
		step.NodeMeta().KeepArray = true
		if err := p.advance("]", false); err != nil {
			return nil, err
		}
		return left, nil
	}
	rhs, err := p.expression(bindingPowers["]"])
	if err != nil {
		return nil, err
	}
	if err := p.advance("]", true); err != nil {
		return nil, err
	}
	return &ast.Binary{Meta: ast.Meta{Position: t.position}, Op: "[", LHS: left, RHS: rhs}, nil
}

// ledOrderBy parses the term list of an order-by clause.
func ledOrderBy(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
	if err := p.advance("(", false); err != nil {
		return nil, err
	}
	order := &ast.OrderBy{Meta: ast.Meta{Position: t.position}, LHS: left}
	for {
		term := &ast.SortTerm{}
		switch p.node.id {
		case "<":
			if err := p.advance("<", false); err != nil {
				return nil, err
			}
		case ">":
			term.Descending = true
			if err := p.advance(">", false); err != nil {
				return nil, err
			}
		}
		expr, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		term.Expr = expr
		order.Terms = append(order.Terms, term)
		if p.node.id != "," {
			break
		}
		if err := p.advance(",", false); err != nil {
			return nil, err
		}
	}
	if err := p.advance(")", false); err != nil {
		return nil, err
	}
	return order, nil
}

// objectParser parses the name/value pairs of an object constructor (left is
// nil) or a grouping clause (left is the grouped expression).
func objectParser(p *Parser, t *tnode, left ast.Node) (ast.Node, error) {
	var pairs []ast.Pair
	if p.node.id != "}" {
		for {
			key, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			if err := p.advance(":", false); err != nil {
				return nil, err
			}
			value, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, ast.Pair{Key: key, Value: value})
			if p.node.id != "," {
				break
			}
			if err := p.advance(",", false); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance("}", true); err != nil {
		return nil, err
	}
	if left == nil {
		return &ast.ObjectCons{Meta: ast.Meta{Position: t.position}, Pairs: pairs}, nil
	}
	return &ast.ObjectInfix{Meta: ast.Meta{Position: t.position}, LHS: left, Pairs: pairs}, nil
}
