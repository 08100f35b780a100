package parser

import (
	"strconv"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/types"
)

// toStep converts a processed node into a path step, transferring the
// attributes the node acquired during processing. When promotePredicates is
// set, posterior predicates become per-item stages (the node is being
// appended to a path, so its predicates now apply per step item).
func toStep(n ast.Node, promotePredicates bool) *ast.Step {
	m := n.NodeMeta()
	s := &ast.Step{
		Expr:          n,
		Position:      m.Position,
		KeepArray:     m.KeepArray,
		SeekingParent: m.SeekingParent,
	}
	m.SeekingParent = nil
	if promotePredicates && m.Predicates != nil {
		s.Stages = m.Predicates
		m.Predicates = nil
	}
	return s
}

// processAST rewrites the raw parse tree into its evaluable form: paths are
// flattened into step lists, string-literal steps become names, predicates
// and grouping/sorting clauses are attached where they apply, parent slots
// are resolved, and lambda bodies are tail-call optimized.
func (p *Parser) processAST(expr ast.Node) (ast.Node, error) {
	if expr == nil {
		return nil, nil
	}
	var result ast.Node
	var err error

	switch node := expr.(type) {
	case *ast.Binary:
		result, err = p.processBinary(node)

	case *ast.Negate:
		inner, perr := p.processAST(node.Expr)
		if perr != nil {
			return nil, perr
		}
		if num, ok := inner.(*ast.Number); ok {
			// constant-fold negated number literals
			result = &ast.Number{Meta: ast.Meta{Position: num.Position}, Value: -num.Value}
		} else {
			neg := &ast.Negate{Meta: ast.Meta{Position: node.Position}, Expr: inner}
			pushAncestry(neg, inner)
			result = neg
		}

	case *ast.ArrayCons:
		cons := &ast.ArrayCons{Meta: ast.Meta{Position: node.Position}, Cons: node.Cons}
		for _, item := range node.Exprs {
			value, perr := p.processAST(item)
			if perr != nil {
				return nil, perr
			}
			pushAncestry(cons, value)
			cons.Exprs = append(cons.Exprs, value)
		}
		result = cons

	case *ast.ObjectCons:
		obj := &ast.ObjectCons{Meta: ast.Meta{Position: node.Position}}
		for _, pair := range node.Pairs {
			key, perr := p.processAST(pair.Key)
			if perr != nil {
				return nil, perr
			}
			pushAncestry(obj, key)
			value, perr := p.processAST(pair.Value)
			if perr != nil {
				return nil, perr
			}
			pushAncestry(obj, value)
			obj.Pairs = append(obj.Pairs, ast.Pair{Key: key, Value: value})
		}
		result = obj

	case *ast.FuncCall:
		call := &ast.FuncCall{Meta: ast.Meta{Position: node.Position}, IsPartial: node.IsPartial}
		for _, arg := range node.Args {
			argAST, perr := p.processAST(arg)
			if perr != nil {
				return nil, perr
			}
			pushAncestry(call, argAST)
			call.Args = append(call.Args, argAST)
		}
		call.Proc, err = p.processAST(node.Proc)
		if err != nil {
			return nil, err
		}
		result = call

	case *ast.Lambda:
		lambda := &ast.Lambda{
			Meta:      ast.Meta{Position: node.Position},
			Params:    node.Params,
			Signature: node.Signature,
			Thunk:     node.Thunk,
		}
		body, perr := p.processAST(node.Body)
		if perr != nil {
			return nil, perr
		}
		lambda.Body = tailCallOptimize(body)
		result = lambda

	case *ast.Condition:
		cond := &ast.Condition{Meta: ast.Meta{Position: node.Position}}
		if cond.Cond, err = p.processAST(node.Cond); err != nil {
			return nil, err
		}
		pushAncestry(cond, cond.Cond)
		if cond.Then, err = p.processAST(node.Then); err != nil {
			return nil, err
		}
		pushAncestry(cond, cond.Then)
		if node.Else != nil {
			if cond.Else, err = p.processAST(node.Else); err != nil {
				return nil, err
			}
			pushAncestry(cond, cond.Else)
		}
		result = cond

	case *ast.Transform:
		tr := &ast.Transform{Meta: ast.Meta{Position: node.Position}}
		if tr.Pattern, err = p.processAST(node.Pattern); err != nil {
			return nil, err
		}
		if tr.Update, err = p.processAST(node.Update); err != nil {
			return nil, err
		}
		if node.Delete != nil {
			if tr.Delete, err = p.processAST(node.Delete); err != nil {
				return nil, err
			}
		}
		result = tr

	case *ast.Block:
		block := &ast.Block{Meta: ast.Meta{Position: node.Position}}
		for _, item := range node.Exprs {
			part, perr := p.processAST(item)
			if perr != nil {
				return nil, perr
			}
			pushAncestry(block, part)
			if consOf(part) {
				block.Cons = true
			}
			block.Exprs = append(block.Exprs, part)
		}
		result = block

	case *ast.Name:
		path := &ast.Path{Meta: ast.Meta{Position: node.Position}}
		path.Steps = []*ast.Step{toStep(node, false)}
		if node.KeepArray {
			path.KeepSingletonArray = true
		}
		result = path

	case *ast.Parent:
		parent := &ast.Parent{Meta: ast.Meta{Position: node.Position}}
		parent.Slot = &ast.AncestorSlot{
			Label: "!" + strconv.Itoa(p.ancestorLabel),
			Level: 1,
			Index: p.ancestorIndex,
		}
		p.ancestorLabel++
		p.ancestorIndex++
		p.ancestry = append(p.ancestry, parent)
		result = parent

	case *ast.OrderBy:
		result, err = p.processOrderBy(node)

	case *ast.ObjectInfix:
		result, err = p.processGroupClause(node)

	case *ast.ErrorNode:
		result = node

	default:
		// literals, wildcards, descendants, variables, regexes and
		// placeholders evaluate as themselves
		result = expr
	}
	if err != nil {
		return nil, err
	}

	if expr.NodeMeta().KeepArray {
		result.NodeMeta().KeepArray = true
	}
	return result, nil
}

func (p *Parser) processBinary(node *ast.Binary) (ast.Node, error) {
	switch node.Op {
	case ".":
		return p.processPath(node)
	case "[":
		return p.processPredicate(node)
	case ":=":
		lhs, err := p.processAST(node.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := p.processAST(node.RHS)
		if err != nil {
			return nil, err
		}
		bind := &ast.Bind{Meta: ast.Meta{Position: node.Position}, LHS: lhs.(*ast.Variable), RHS: rhs}
		pushAncestry(bind, rhs)
		return bind, nil
	case "@":
		return p.processFocusBind(node)
	case "#":
		return p.processIndexBind(node)
	case "~>":
		lhs, err := p.processAST(node.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := p.processAST(node.RHS)
		if err != nil {
			return nil, err
		}
		apply := &ast.Apply{Meta: ast.Meta{Position: node.Position}, LHS: lhs, RHS: rhs}
		apply.KeepArray = lhs.NodeMeta().KeepArray || rhs.NodeMeta().KeepArray
		return apply, nil
	default:
		lhs, err := p.processAST(node.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := p.processAST(node.RHS)
		if err != nil {
			return nil, err
		}
		bin := &ast.Binary{Meta: ast.Meta{Position: node.Position}, Op: node.Op, LHS: lhs, RHS: rhs}
		pushAncestry(bin, lhs)
		pushAncestry(bin, rhs)
		return bin, nil
	}
}

// processPath flattens a '.' chain into a path with a list of steps.
func (p *Parser) processPath(node *ast.Binary) (ast.Node, error) {
	lstep, err := p.processAST(node.LHS)
	if err != nil {
		return nil, err
	}

	path, ok := lstep.(*ast.Path)
	if !ok {
		path = &ast.Path{Meta: ast.Meta{Position: lstep.Pos()}}
		path.Steps = []*ast.Step{toStep(lstep, false)}
	}
	if parent, isParent := lstep.(*ast.Parent); isParent {
		path.SeekingParent = []*ast.AncestorSlot{parent.Slot}
	}

	rest, err := p.processAST(node.RHS)
	if err != nil {
		return nil, err
	}
	if restPath, isPath := rest.(*ast.Path); isPath {
		path.Steps = append(path.Steps, restPath.Steps...)
	} else {
		path.Steps = append(path.Steps, toStep(rest, true))
	}

	for _, step := range path.Steps {
		switch e := step.Expr.(type) {
		case *ast.Number, *ast.Boolean, *ast.NullLit:
			// don't allow steps to be numbers or the values true/false/null
			return nil, types.Errorf(types.ErrLiteralStep, step.Position,
				"the literal value at position %d cannot be used as a step within a path expression", step.Position)
		case *ast.String:
			step.Expr = &ast.Name{Meta: e.Meta, Value: e.Value}
		}
	}

	for _, step := range path.Steps {
		if step.KeepArray {
			path.KeepSingletonArray = true
			break
		}
	}
	if first, ok := path.Steps[0].Expr.(*ast.ArrayCons); ok {
		first.Cons = true
	}
	if last, ok := path.Steps[len(path.Steps)-1].Expr.(*ast.ArrayCons); ok {
		last.Cons = true
	}
	if err := p.resolveAncestry(path); err != nil {
		return nil, err
	}
	return path, nil
}

// processPredicate attaches a filter to the last step of a path, or as a
// posterior predicate of any other expression.
func (p *Parser) processPredicate(node *ast.Binary) (ast.Node, error) {
	result, err := p.processAST(node.LHS)
	if err != nil {
		return nil, err
	}

	var step *ast.Step
	path, isPath := result.(*ast.Path)
	if isPath {
		step = path.Steps[len(path.Steps)-1]
		if stepGroup(step) != nil {
			return nil, types.NewError(types.ErrPredicateAfterGroup,
				"a predicate cannot follow a grouping expression in a step", node.Position)
		}
	} else if result.NodeMeta().GroupBy != nil {
		return nil, types.NewError(types.ErrPredicateAfterGroup,
			"a predicate cannot follow a grouping expression in a step", node.Position)
	}

	predicate, err := p.processAST(node.RHS)
	if err != nil {
		return nil, err
	}
	if slots := predicate.NodeMeta().SeekingParent; slots != nil {
		for _, slot := range slots {
			if slot.Level == 1 {
				if isPath {
					if _, serr := p.seekParentStep(step, slot); serr != nil {
						return nil, serr
					}
				} else {
					if _, serr := p.seekParentNode(result, slot); serr != nil {
						return nil, serr
					}
				}
			} else {
				slot.Level--
			}
		}
		if isPath {
			pushAncestryStep(step, predicate)
		} else {
			pushAncestry(result, predicate)
		}
	}

	stage := &ast.Stage{Kind: ast.StageFilter, Expr: predicate, Position: node.Position}
	if node.KeepArray {
		if isPath {
			step.KeepArray = true
		} else {
			result.NodeMeta().KeepArray = true
		}
	}
	if isPath {
		step.Stages = append(step.Stages, stage)
	} else {
		result.NodeMeta().Predicates = append(result.NodeMeta().Predicates, stage)
	}
	return result, nil
}

// processGroupClause attaches a grouping expression to the node it follows.
func (p *Parser) processGroupClause(node *ast.ObjectInfix) (ast.Node, error) {
	result, err := p.processAST(node.LHS)
	if err != nil {
		return nil, err
	}
	if result.NodeMeta().GroupBy != nil {
		return nil, types.NewError(types.ErrDuplicateGroup,
			"each step can only have one grouping expression", node.Position)
	}
	group := &ast.GroupBy{Position: node.Position}
	for _, pair := range node.Pairs {
		key, perr := p.processAST(pair.Key)
		if perr != nil {
			return nil, perr
		}
		value, perr := p.processAST(pair.Value)
		if perr != nil {
			return nil, perr
		}
		group.Pairs = append(group.Pairs, ast.Pair{Key: key, Value: value})
	}
	result.NodeMeta().GroupBy = group
	return result, nil
}

// processOrderBy appends a sort step to the path being ordered.
func (p *Parser) processOrderBy(node *ast.OrderBy) (ast.Node, error) {
	result, err := p.processAST(node.LHS)
	if err != nil {
		return nil, err
	}
	path, ok := result.(*ast.Path)
	if !ok {
		path = &ast.Path{Meta: ast.Meta{Position: result.Pos()}}
		path.Steps = []*ast.Step{toStep(result, false)}
	}
	sortStep := &ast.Step{Position: node.Position}
	for _, term := range node.Terms {
		expr, perr := p.processAST(term.Expr)
		if perr != nil {
			return nil, perr
		}
		pushAncestryStep(sortStep, expr)
		sortStep.Terms = append(sortStep.Terms, &ast.SortTerm{Expr: expr, Descending: term.Descending})
	}
	path.Steps = append(path.Steps, sortStep)
	if err := p.resolveAncestry(path); err != nil {
		return nil, err
	}
	return path, nil
}

// processFocusBind attaches a focus variable binding (@$var) to a step.
func (p *Parser) processFocusBind(node *ast.Binary) (ast.Node, error) {
	result, err := p.processAST(node.LHS)
	if err != nil {
		return nil, err
	}
	path, ok := result.(*ast.Path)
	var step *ast.Step
	if ok {
		step = path.Steps[len(path.Steps)-1]
	} else {
		step = toStep(result, false)
		path = &ast.Path{Meta: ast.Meta{Position: result.Pos()}, Steps: []*ast.Step{step}}
		result = path
	}
	// a focus binding must precede any predicates and any sorting
	if step.Terms != nil {
		return nil, types.NewError(types.ErrFocusAfterSort,
			"a context variable binding must precede the 'order-by' clause on a step", node.Position)
	}
	if step.Stages != nil || (step.Expr != nil && step.Expr.NodeMeta().Predicates != nil) {
		return nil, types.NewError(types.ErrFocusAfterPredicate,
			"a context variable binding must precede any predicates on a step", node.Position)
	}
	if node.KeepArray {
		step.KeepArray = true
	}
	step.Focus = node.RHS.(*ast.Variable).Name
	step.Tuple = true
	return result, nil
}

// processIndexBind attaches an index variable binding (#$var) to a step.
func (p *Parser) processIndexBind(node *ast.Binary) (ast.Node, error) {
	result, err := p.processAST(node.LHS)
	if err != nil {
		return nil, err
	}
	path, ok := result.(*ast.Path)
	var step *ast.Step
	if ok {
		step = path.Steps[len(path.Steps)-1]
	} else {
		step = toStep(result, true)
		path = &ast.Path{Meta: ast.Meta{Position: result.Pos()}, Steps: []*ast.Step{step}}
		result = path
	}
	if step.Stages == nil {
		step.Index = node.RHS.(*ast.Variable).Name
	} else {
		// the index applies after the existing stages
		step.Stages = append(step.Stages, &ast.Stage{
			Kind:     ast.StageIndex,
			Value:    node.RHS.(*ast.Variable).Name,
			Position: node.Position,
		})
	}
	step.Tuple = true
	return result, nil
}

// consOf reports whether a processed block item is a constructed array.
func consOf(part ast.Node) bool {
	switch n := part.(type) {
	case *ast.ArrayCons:
		return n.Cons
	case *ast.Block:
		return n.Cons
	case *ast.Path:
		if first, ok := n.Steps[0].Expr.(*ast.ArrayCons); ok {
			return first.Cons
		}
	}
	return false
}

// stepGroup returns the grouping clause attached to a step's expression.
func stepGroup(step *ast.Step) *ast.GroupBy {
	if step.Expr == nil {
		return nil
	}
	return step.Expr.NodeMeta().GroupBy
}

// pushAncestry propagates unresolved parent slots from a processed child up
// to the node that contains it.
func pushAncestry(result ast.Node, value ast.Node) {
	if value == nil {
		return
	}
	vm := value.NodeMeta()
	parent, isParent := value.(*ast.Parent)
	if vm.SeekingParent == nil && !isParent {
		return
	}
	slots := vm.SeekingParent
	if isParent {
		slots = append(slots, parent.Slot)
	}
	rm := result.NodeMeta()
	rm.SeekingParent = append(rm.SeekingParent, slots...)
}

// pushAncestryStep is pushAncestry for slot carriers that are steps rather
// than nodes.
func pushAncestryStep(step *ast.Step, value ast.Node) {
	if value == nil {
		return
	}
	vm := value.NodeMeta()
	parent, isParent := value.(*ast.Parent)
	if vm.SeekingParent == nil && !isParent {
		return
	}
	slots := vm.SeekingParent
	if isParent {
		slots = append(slots, parent.Slot)
	}
	step.SeekingParent = append(step.SeekingParent, slots...)
}

// seekParentStep walks one step looking for the ancestor a slot refers to.
// Name and wildcard steps consume one level; parent steps add one; blocks
// and nested paths recurse into their final position.
func (p *Parser) seekParentStep(step *ast.Step, slot *ast.AncestorSlot) (*ast.AncestorSlot, error) {
	if step.Terms != nil {
		return nil, types.NewError(types.ErrNoParent,
			"the object representing the 'parent' cannot be derived from this expression", step.Position)
	}
	switch e := step.Expr.(type) {
	case *ast.Name, *ast.Wildcard:
		slot.Level--
		if slot.Level == 0 {
			if step.Ancestor != nil {
				// reuse the existing label
				p.ancestry[slot.Index].Slot.Label = step.Ancestor.Label
			}
			step.Ancestor = slot
			step.Tuple = true
		}
	case *ast.Parent:
		slot.Level++
	case *ast.Block:
		step.Tuple = true
		if len(e.Exprs) > 0 {
			return p.seekParentNode(e.Exprs[len(e.Exprs)-1], slot)
		}
	case *ast.Path:
		step.Tuple = true
		return p.seekParentPath(e, slot)
	default:
		return nil, types.NewError(types.ErrNoParent,
			"the object representing the 'parent' cannot be derived from this expression", step.Position)
	}
	return slot, nil
}

// seekParentNode is seekParentStep for slot targets in node position.
func (p *Parser) seekParentNode(node ast.Node, slot *ast.AncestorSlot) (*ast.AncestorSlot, error) {
	switch n := node.(type) {
	case *ast.Name, *ast.Wildcard:
		// a bare step outside a path cannot carry a binding; the level
		// still has to be consumed
		slot.Level--
	case *ast.Parent:
		slot.Level++
	case *ast.Block:
		n.Tuple = true
		if len(n.Exprs) > 0 {
			return p.seekParentNode(n.Exprs[len(n.Exprs)-1], slot)
		}
	case *ast.Path:
		return p.seekParentPath(n, slot)
	default:
		return nil, types.NewError(types.ErrNoParent,
			"the object representing the 'parent' cannot be derived from this expression", node.Pos())
	}
	return slot, nil
}

func (p *Parser) seekParentPath(path *ast.Path, slot *ast.AncestorSlot) (*ast.AncestorSlot, error) {
	path.Tuple = true
	index := len(path.Steps) - 1
	slot, err := p.seekParentStep(path.Steps[index], slot)
	if err != nil {
		return nil, err
	}
	index--
	for slot.Level > 0 && index >= 0 {
		slot, err = p.seekParentStep(path.Steps[index], slot)
		if err != nil {
			return nil, err
		}
		index--
	}
	return slot, nil
}

// resolveAncestry walks back from the last step of a path, resolving each
// pending parent slot against the preceding steps. Slots that cannot be
// resolved within the path are propagated to the path itself.
func (p *Parser) resolveAncestry(path *ast.Path) error {
	laststep := path.Steps[len(path.Steps)-1]
	slots := laststep.SeekingParent
	if parent, ok := laststep.Expr.(*ast.Parent); ok {
		slots = append(slots, parent.Slot)
	}
	for _, slot := range slots {
		index := len(path.Steps) - 2
		for slot.Level > 0 {
			if index < 0 {
				path.SeekingParent = append(path.SeekingParent, slot)
				break
			}
			step := path.Steps[index]
			index--
			// multiple contiguous steps that bind the focus are skipped
			for index >= 0 && step.Focus != "" && path.Steps[index].Focus != "" {
				step = path.Steps[index]
				index--
			}
			var err error
			slot, err = p.seekParentStep(step, slot)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// tailCallOptimize replaces function calls in tail position of a lambda body
// with zero-argument thunks, which the apply loop trampolines instead of
// recursing.
func tailCallOptimize(expr ast.Node) ast.Node {
	switch node := expr.(type) {
	case *ast.FuncCall:
		if !node.IsPartial && node.Predicates == nil {
			return &ast.Lambda{
				Meta:  ast.Meta{Position: node.Position},
				Thunk: true,
				Body:  node,
			}
		}
	case *ast.Condition:
		node.Then = tailCallOptimize(node.Then)
		if node.Else != nil {
			node.Else = tailCallOptimize(node.Else)
		}
	case *ast.Block:
		if n := len(node.Exprs); n > 0 {
			node.Exprs[n-1] = tailCallOptimize(node.Exprs[n-1])
		}
	}
	return expr
}
