package evaluator

import (
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/querata/querata/pkg/types"
)

func fnNumber(rt *Runtime, input any, args []any) (any, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			n, err := strconv.ParseInt(s[2:], 16, 64)
			if err == nil {
				return float64(n), nil
			}
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
			return nil, types.Errorf(types.ErrCastNumber, -1,
				"unable to cast value to a number: %q", v).WithValue(v)
		}
		return n, nil
	}
	return nil, types.NewError(types.ErrCastNumber, "unable to cast value to a number", -1).WithValue(args[0])
}

func fnFloor(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return math.Floor(args[0].(float64)), nil
}

func fnCeil(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return math.Ceil(args[0].(float64)), nil
}

// roundHalfEven rounds half to even, the IEEE 754 default the language
// mandates for $round.
func roundHalfEven(num float64, precision int) float64 {
	shift := math.Pow(10, float64(precision))
	return math.RoundToEven(num*shift) / shift
}

func fnRound(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	num := args[0].(float64)
	precision := 0
	if len(args) > 1 && args[1] != nil {
		precision = int(args[1].(float64))
	}
	return roundHalfEven(num, precision), nil
}

func fnAbs(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return math.Abs(args[0].(float64)), nil
}

func fnSqrt(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	num := args[0].(float64)
	if num < 0 {
		return nil, types.NewError(types.ErrSqrtNegative,
			"the sqrt function cannot be applied to a negative number", -1).WithValue(num)
	}
	return math.Sqrt(num), nil
}

func fnPower(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	base := args[0].(float64)
	exponent := args[1].(float64)
	result := math.Pow(base, exponent)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, types.Errorf(types.ErrPowerResult, -1,
			"the power function has resulted in a value that cannot be represented as a number: base=%v, exponent=%v",
			base, exponent).WithValue(base)
	}
	return result, nil
}

func fnRandom(rt *Runtime, input any, args []any) (any, error) {
	return rand.Float64(), nil
}

const baseDigits = "0123456789abcdefghijklmnopqrstuvwxyz"

func fnFormatBase(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	num := roundHalfEven(args[0].(float64), 0)
	radix := 10
	if len(args) > 1 && args[1] != nil {
		radix = int(args[1].(float64))
	}
	if radix < 2 || radix > 36 {
		return nil, types.NewError(types.ErrFormatBaseRadix,
			"the second argument of the formatBase function must be between 2 and 36", -1).WithValue(float64(radix))
	}
	return strconv.FormatInt(int64(num), radix), nil
}

func fnParseInteger(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := args[0].(string)
	// picture-based parsing is limited to digit patterns: grouping
	// separators are stripped before the numeric parse
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, types.Errorf(types.ErrParseIntRadix, -1,
			"unable to parse %q as an integer", args[0]).WithValue(args[0]).WithCause(err)
	}
	return math.Trunc(n), nil
}

func fnBoolean(rt *Runtime, input any, args []any) (any, error) {
	return toBoolean(args[0]), nil
}

func fnNot(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return !boolize(args[0]), nil
}

func fnExists(rt *Runtime, input any, args []any) (any, error) {
	return args[0] != nil, nil
}
