package evaluator

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/parser"
	"github.com/querata/querata/pkg/types"
)

// chainAST is the composition lambda used when the left side of ~> is itself
// a function: (f ~> g) becomes a closure applying g after f.
var chainAST = sync.OnceValue(func() ast.Node {
	expr, err := parser.Parse("function($f, $g) { function($x){ $g($f($x)) } }")
	if err != nil {
		panic(fmt.Sprintf("evaluator: parsing chain lambda: %v", err))
	}
	return expr.AST()
})

// evaluateApplyExpression evaluates lhs ~> rhs: the left side becomes the
// first argument of the function on the right, or the two functions compose
// when both sides are functions.
func (rt *Runtime) evaluateApplyExpression(node *ast.Apply, input any, env *Frame) (any, error) {
	lhs, err := rt.eval(node.LHS, input, env)
	if err != nil {
		return nil, err
	}

	if call, ok := node.RHS.(*ast.FuncCall); ok && !call.IsPartial {
		return rt.evaluateFunction(call, input, env, lhs, true)
	}

	fn, err := rt.eval(node.RHS, input, env)
	if err != nil {
		return nil, err
	}
	if !types.IsCallable(fn) && !types.IsCallable(lhs) {
		return nil, types.NewError(types.ErrApplyNotFunction,
			"the right side of the function application operator ~> must be a function", node.Position).WithValue(fn)
	}
	if types.IsCallable(lhs) {
		chain, err := rt.eval(chainAST(), nil, env)
		if err != nil {
			return nil, err
		}
		return rt.apply(chain, []any{lhs, fn}, nil, env)
	}
	return rt.apply(fn, []any{lhs}, nil, env)
}

// evaluateFunction evaluates a function invocation. When hasContext is set,
// context is prepended to the argument list (the ~> form).
func (rt *Runtime) evaluateFunction(node *ast.FuncCall, input any, env *Frame, context any, hasContext bool) (any, error) {
	proc, err := rt.eval(node.Proc, input, env)
	if err != nil {
		return nil, err
	}

	procName := procedureName(node.Proc)
	if proc == nil {
		if name, fromPath := pathProcedureName(node.Proc); fromPath && env.Lookup(name) != nil {
			return nil, types.Errorf(types.ErrInvokeNonFunctionMaybe, node.Position,
				"attempted to invoke a non-function; did you mean $%s?", name).WithToken(name)
		}
	}

	args := make([]any, 0, len(node.Args)+1)
	if hasContext {
		args = append(args, context)
	}
	for _, argNode := range node.Args {
		arg, err := rt.eval(argNode, input, env)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	if proc == nil {
		return nil, types.Errorf(types.ErrInvokeNonFunction, node.Position,
			"attempted to invoke a non-function").WithToken(procName)
	}

	result, err := rt.apply(proc, args, input, env)
	if err != nil {
		var terr *types.Error
		if e, ok := err.(*types.Error); ok {
			terr = e
			if terr.Position < 0 {
				terr.Position = node.Position
			}
			if terr.Token == "" {
				terr.Token = procName
			}
		}
		return nil, err
	}
	return result, nil
}

// procedureName names the invocation target for diagnostics.
func procedureName(proc ast.Node) string {
	if name, ok := pathProcedureName(proc); ok {
		return name
	}
	if v, ok := proc.(*ast.Variable); ok {
		return v.Name
	}
	return ""
}

func pathProcedureName(proc ast.Node) (string, bool) {
	path, ok := proc.(*ast.Path)
	if !ok || len(path.Steps) == 0 {
		return "", false
	}
	name, ok := path.Steps[0].Expr.(*ast.Name)
	if !ok {
		return "", false
	}
	return name.Value, true
}

// apply invokes a function value. Thunks returned by tail calls are unwound
// iteratively, so mutually recursive functions run in constant stack space.
func (rt *Runtime) apply(proc any, args []any, input any, env *Frame) (any, error) {
	result, err := rt.applyInner(proc, args, input, env)
	if err != nil {
		return nil, err
	}
	for {
		lambda, ok := result.(*Lambda)
		if !ok || !lambda.thunk {
			return result, nil
		}
		call := lambda.body.(*ast.FuncCall)
		next, err := rt.eval(call.Proc, lambda.input, lambda.env)
		if err != nil {
			return nil, err
		}
		evaluatedArgs := make([]any, 0, len(call.Args))
		for _, argNode := range call.Args {
			arg, err := rt.eval(argNode, lambda.input, lambda.env)
			if err != nil {
				return nil, err
			}
			evaluatedArgs = append(evaluatedArgs, arg)
		}
		result, err = rt.applyInner(next, evaluatedArgs, input, env)
		if err != nil {
			return nil, err
		}
	}
}

func (rt *Runtime) applyInner(proc any, args []any, input any, env *Frame) (any, error) {
	validatedArgs := args
	var err error
	switch p := proc.(type) {
	case *Function:
		if p.sig != nil {
			validatedArgs, err = p.sig.Validate(args, input)
		}
	case *Lambda:
		if p.sig != nil {
			validatedArgs, err = p.sig.Validate(args, input)
		}
	case *transformer:
		validatedArgs, err = transformSignature.Validate(args, input)
	}
	if err != nil {
		return nil, err
	}

	switch p := proc.(type) {
	case *Lambda:
		return rt.applyProcedure(p, validatedArgs)
	case *Function:
		return p.fn(rt, input, validatedArgs)
	case *transformer:
		return p.call(validatedArgs)
	case *regexp.Regexp:
		matched := []any{}
		for _, arg := range validatedArgs {
			if s, ok := arg.(string); ok && p.FindStringIndex(s) != nil {
				matched = append(matched, s)
			}
		}
		return matched, nil
	}
	return nil, types.NewError(types.ErrInvokeNonFunction, "attempted to invoke a non-function", -1)
}

// applyProcedure binds the arguments to the closure's parameters in a child
// frame of its captured environment and evaluates the body.
func (rt *Runtime) applyProcedure(proc *Lambda, args []any) (any, error) {
	env := NewFrame(proc.env)
	for i, param := range proc.params {
		if i >= len(args) {
			break
		}
		env.Bind(param, args[i])
	}
	return rt.eval(proc.body, proc.input, env)
}

// evaluatePartialApplication evaluates a call with ? placeholders, producing
// a closure over the remaining parameters.
func (rt *Runtime) evaluatePartialApplication(node *ast.FuncCall, input any, env *Frame) (any, error) {
	evaluatedArgs := make([]any, len(node.Args))
	for i, argNode := range node.Args {
		if _, placeholder := argNode.(*ast.Placeholder); placeholder {
			evaluatedArgs[i] = argNode
			continue
		}
		arg, err := rt.eval(argNode, input, env)
		if err != nil {
			return nil, err
		}
		evaluatedArgs[i] = arg
	}

	proc, err := rt.eval(node.Proc, input, env)
	if err != nil {
		return nil, err
	}
	if proc == nil {
		if name, fromPath := pathProcedureName(node.Proc); fromPath && env.Lookup(name) != nil {
			return nil, types.Errorf(types.ErrPartialNonFuncMaybe, node.Position,
				"attempted to partially apply a non-function; did you mean $%s?", name).WithToken(name)
		}
	}

	switch p := proc.(type) {
	case *Lambda:
		return rt.partialApplyProcedure(p, evaluatedArgs), nil
	case *Function:
		return rt.partialApplyNativeFunction(p, evaluatedArgs, env)
	default:
		return nil, types.NewError(types.ErrPartialNonFunc,
			"attempted to partially apply a non-function", node.Position).WithToken(procedureName(node.Proc))
	}
}

// partialApplyProcedure binds the supplied arguments and closes over the
// remaining parameters.
func (rt *Runtime) partialApplyProcedure(proc *Lambda, args []any) *Lambda {
	parent := proc.env
	if parent == nil {
		parent = rt.env
	}
	env := NewFrame(parent)
	var unbound []string
	for i, param := range proc.params {
		var arg any
		if i < len(args) {
			arg = args[i]
		}
		if arg == nil || isPlaceholder(arg) {
			unbound = append(unbound, param)
		} else {
			env.Bind(param, arg)
		}
	}
	return &Lambda{
		params: unbound,
		body:   proc.body,
		input:  proc.input,
		env:    env,
	}
}

func isPlaceholder(arg any) bool {
	_, ok := arg.(*ast.Placeholder)
	return ok
}

// partialApplyNativeFunction wraps a built-in in a synthesized lambda so that
// it can be partially applied like any other closure.
func (rt *Runtime) partialApplyNativeFunction(native *Function, args []any, env *Frame) (any, error) {
	n := native.NumArgs()
	sigArgs := make([]string, n)
	for i := range sigArgs {
		sigArgs[i] = "$" + string(rune('a'+i))
	}
	paramList := strings.Join(sigArgs, ", ")
	body := "function(" + paramList + "){ $" + native.name + "(" + paramList + ") }"

	expr, err := parser.Parse(body)
	if err != nil {
		return nil, err
	}
	lambdaNode, ok := expr.AST().(*ast.Lambda)
	if !ok {
		return nil, types.NewError(types.ErrPartialNonFunc,
			"attempted to partially apply a non-function", -1).WithToken(native.name)
	}
	closure := rt.evaluateLambda(lambdaNode, nil, env)
	return rt.partialApplyProcedure(closure, args), nil
}
