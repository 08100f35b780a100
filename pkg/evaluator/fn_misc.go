package evaluator

import (
	"github.com/querata/querata/pkg/parser"
	"github.com/querata/querata/pkg/types"
)

func fnError(rt *Runtime, input any, args []any) (any, error) {
	message := "$error() function evaluated"
	if len(args) > 0 && args[0] != nil {
		message = args[0].(string)
	}
	return nil, types.NewError(types.ErrUserError, message, -1)
}

func fnAssert(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	if args[0].(bool) {
		return nil, nil
	}
	message := "$assert() statement failed"
	if len(args) > 1 && args[1] != nil {
		message = args[1].(string)
	}
	return nil, types.NewError(types.ErrAssertFailed, message, -1)
}

func fnEval(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	expr, err := parser.Parse(args[0].(string))
	if err != nil {
		return nil, err
	}
	focus := input
	if len(args) > 1 && args[1] != nil {
		focus = args[1]
	}
	return rt.eval(expr.AST(), focus, NewFrame(rt.env))
}

func fnClone(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return deepClone(args[0]), nil
}
