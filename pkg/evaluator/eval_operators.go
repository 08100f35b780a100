package evaluator

import (
	"math"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/types"
)

func (rt *Runtime) evaluateBinary(node *ast.Binary, input any, env *Frame) (any, error) {
	lhs, err := rt.eval(node.LHS, input, env)
	if err != nil {
		return nil, err
	}

	if node.Op == "and" || node.Op == "or" {
		return rt.evaluateBooleanExpression(lhs, func() (any, error) {
			return rt.eval(node.RHS, input, env)
		}, node.Op)
	}

	rhs, err := rt.eval(node.RHS, input, env)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case "+", "-", "*", "/", "%":
		return evaluateNumericExpression(lhs, rhs, node.Op, node.Position)
	case "=", "!=":
		return evaluateEqualityExpression(lhs, rhs, node.Op), nil
	case "<", "<=", ">", ">=":
		return evaluateComparisonExpression(lhs, rhs, node.Op, node.Position)
	case "&":
		return rt.evaluateStringConcat(lhs, rhs)
	case "..":
		return evaluateRangeExpression(lhs, rhs, node.Position)
	case "in":
		return evaluateIncludesExpression(lhs, rhs), nil
	}
	return nil, types.Errorf(types.ErrSyntaxError, node.Position, "unexpected operator %q", node.Op)
}

func evaluateNumericExpression(lhs, rhs any, op string, pos int) (any, error) {
	if lhs != nil {
		if ok, err := types.IsNumeric(lhs); err != nil {
			return nil, err
		} else if !ok {
			return nil, types.Errorf(types.ErrLeftNotNumber, pos,
				"the left side of the %q operator must evaluate to a number", op).WithToken(op).WithValue(lhs)
		}
	}
	if rhs != nil {
		if ok, err := types.IsNumeric(rhs); err != nil {
			return nil, err
		} else if !ok {
			return nil, types.Errorf(types.ErrRightNotNumber, pos,
				"the right side of the %q operator must evaluate to a number", op).WithToken(op).WithValue(rhs)
		}
	}
	if lhs == nil || rhs == nil {
		return nil, nil
	}

	l := lhs.(float64)
	r := rhs.(float64)
	var result float64
	switch op {
	case "+":
		result = l + r
	case "-":
		result = l - r
	case "*":
		result = l * r
	case "/":
		result = l / r
	case "%":
		result = math.Trunc(math.Mod(l, r))
	}
	if _, err := types.IsNumeric(result); err != nil {
		return nil, err
	}
	return result, nil
}

func evaluateEqualityExpression(lhs, rhs any, op string) any {
	// undefined on either side is not equal to anything, including undefined
	if lhs == nil || rhs == nil {
		return false
	}
	eq := deepEquals(lhs, rhs)
	if op == "!=" {
		return !eq
	}
	return eq
}

func evaluateComparisonExpression(lhs, rhs any, op string, pos int) (any, error) {
	if !isComparable(lhs) || !isComparable(rhs) {
		bad := lhs
		if bad == nil {
			bad = rhs
		}
		return nil, types.Errorf(types.ErrCompareNotOrderable, pos,
			"the expressions on either side of operator %q must evaluate to numeric or string values", op).
			WithToken(op).WithValue(bad)
	}
	if lhs == nil || rhs == nil {
		return nil, nil
	}

	if ln, lok := lhs.(float64); lok {
		rn, rok := rhs.(float64)
		if !rok {
			return nil, comparisonTypeError(lhs, pos)
		}
		return compareOrdered(ln, rn, op), nil
	}
	ls := lhs.(string)
	rs, rok := rhs.(string)
	if !rok {
		return nil, comparisonTypeError(lhs, pos)
	}
	return compareOrdered(ls, rs, op), nil
}

func comparisonTypeError(lhs any, pos int) error {
	return types.NewError(types.ErrCompareDiffTypes,
		"the values on either side of a comparison must be of the same data type", pos).WithValue(lhs)
}

func compareOrdered[T float64 | string](l, r T, op string) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	}
	return l >= r
}

func isComparable(v any) bool {
	switch v.(type) {
	case nil, string, float64:
		return true
	}
	return false
}

func evaluateIncludesExpression(lhs, rhs any) any {
	if lhs == nil || rhs == nil {
		return false
	}
	items, ok := types.AsArray(rhs)
	if !ok {
		items = []any{rhs}
	}
	for _, item := range items {
		if deepEquals(item, lhs) {
			return true
		}
	}
	return false
}

func (rt *Runtime) evaluateBooleanExpression(lhs any, evalRHS func() (any, error), op string) (any, error) {
	l := boolize(lhs)
	if op == "and" {
		if !l {
			return false, nil
		}
		rhs, err := evalRHS()
		if err != nil {
			return nil, err
		}
		return boolize(rhs), nil
	}
	if l {
		return true, nil
	}
	rhs, err := evalRHS()
	if err != nil {
		return nil, err
	}
	return boolize(rhs), nil
}

func (rt *Runtime) evaluateStringConcat(lhs, rhs any) (any, error) {
	lstr, _, err := stringify(lhs, false)
	if err != nil {
		return nil, err
	}
	rstr, _, err := stringify(rhs, false)
	if err != nil {
		return nil, err
	}
	return lstr + rstr, nil
}

// evaluateRangeExpression produces the inclusive integer range lhs..rhs as a
// lazily materialized array.
func evaluateRangeExpression(lhs, rhs any, pos int) (any, error) {
	if lhs != nil {
		if n, ok := lhs.(float64); !ok || !isWholeNumber(n) {
			return nil, types.NewError(types.ErrRangeLeftNotInt,
				"the left side of the range operator (..) must evaluate to an integer", pos).WithValue(lhs)
		}
	}
	if rhs != nil {
		if n, ok := rhs.(float64); !ok || !isWholeNumber(n) {
			return nil, types.NewError(types.ErrRangeRightNotInt,
				"the right side of the range operator (..) must evaluate to an integer", pos).WithValue(rhs)
		}
	}
	if lhs == nil || rhs == nil {
		return nil, nil
	}
	start := int64(lhs.(float64))
	end := int64(rhs.(float64))
	if start > end {
		return nil, nil
	}
	r, err := types.NewRange(start, end)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (rt *Runtime) evaluateNegate(node *ast.Negate, input any, env *Frame) (any, error) {
	result, err := rt.eval(node.Expr, input, env)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	if ok, err := types.IsNumeric(result); err != nil {
		return nil, err
	} else if !ok {
		return nil, types.NewError(types.ErrNegateNonNumber,
			"cannot negate a non-numeric value", node.Position).WithToken("-").WithValue(result)
	}
	return -result.(float64), nil
}
