package types

import "fmt"

// ErrorCode identifies a querata error. The numbering follows the JSONata
// convention: S0xxx syntax, T0xxx signature, T1xxx/T2xxx type, D1xxx/D2xxx/D3xxx
// evaluation, U1xxx resource bounds.
type ErrorCode string

const (
	// S01xx: lexer errors
	ErrStringNotClosed     ErrorCode = "S0101"
	ErrNumberOutOfRange    ErrorCode = "S0102"
	ErrUnsupportedEscape   ErrorCode = "S0103"
	ErrInvalidUnicode      ErrorCode = "S0104"
	ErrQuotedNameNotClosed ErrorCode = "S0105"
	ErrCommentNotClosed    ErrorCode = "S0106"

	// S02xx: parser and semantic-pass errors
	ErrSyntaxError         ErrorCode = "S0201"
	ErrExpectedToken       ErrorCode = "S0202"
	ErrExpectedBeforeEnd   ErrorCode = "S0203"
	ErrUnknownOperator     ErrorCode = "S0204"
	ErrUnexpectedToken     ErrorCode = "S0205"
	ErrUnknownExpression   ErrorCode = "S0206"
	ErrUnexpectedEnd       ErrorCode = "S0207"
	ErrBadLambdaParam      ErrorCode = "S0208"
	ErrPredicateAfterGroup ErrorCode = "S0209"
	ErrDuplicateGroup      ErrorCode = "S0210"
	ErrInvalidUnary        ErrorCode = "S0211"
	ErrBadBindTarget       ErrorCode = "S0212"
	ErrLiteralStep         ErrorCode = "S0213"
	ErrBadFocusTarget      ErrorCode = "S0214"
	ErrFocusAfterPredicate ErrorCode = "S0215"
	ErrFocusAfterSort      ErrorCode = "S0216"
	ErrNoParent            ErrorCode = "S0217"

	// S03xx/S04xx: regex literals and signatures
	ErrEmptyRegex       ErrorCode = "S0301"
	ErrRegexNotClosed   ErrorCode = "S0302"
	ErrSignatureChoice  ErrorCode = "S0402"
	ErrExprHasErrors    ErrorCode = "S0500"

	// T04xx: signature validation
	ErrArgTypeMismatch     ErrorCode = "T0410"
	ErrContextTypeMismatch ErrorCode = "T0411"
	ErrArrayTypeMismatch   ErrorCode = "T0412"

	// T1xxx: invocation and object construction
	ErrGroupKeyNotString      ErrorCode = "T1003"
	ErrInvokeNonFunctionMaybe ErrorCode = "T1005"
	ErrInvokeNonFunction      ErrorCode = "T1006"
	ErrPartialNonFuncMaybe    ErrorCode = "T1007"
	ErrPartialNonFunc         ErrorCode = "T1008"
	ErrBadMatcherFunction     ErrorCode = "T1010"

	// T2xxx: operand type errors
	ErrLeftNotNumber       ErrorCode = "T2001"
	ErrRightNotNumber      ErrorCode = "T2002"
	ErrRangeLeftNotInt     ErrorCode = "T2003"
	ErrRangeRightNotInt    ErrorCode = "T2004"
	ErrApplyNotFunction    ErrorCode = "T2006"
	ErrSortMixedTypes      ErrorCode = "T2007"
	ErrSortNotComparable   ErrorCode = "T2008"
	ErrCompareDiffTypes    ErrorCode = "T2009"
	ErrCompareNotOrderable ErrorCode = "T2010"
	ErrTransformNotObject  ErrorCode = "T2011"
	ErrTransformBadDelete  ErrorCode = "T2012"
	ErrTransformClone      ErrorCode = "T2013"

	// D1xxx/D2xxx: evaluation errors
	ErrNumberOverflow  ErrorCode = "D1001"
	ErrNegateNonNumber ErrorCode = "D1002"
	ErrAmbiguousGroup  ErrorCode = "D1009"
	ErrRangeTooLarge   ErrorCode = "D2014"

	// D3xxx: built-in function errors
	ErrNonFiniteString    ErrorCode = "D3001"
	ErrReplaceEmptyMatch  ErrorCode = "D3010"
	ErrReplaceBadLimit    ErrorCode = "D3011"
	ErrReplaceNotString   ErrorCode = "D3012"
	ErrSplitBadLimit      ErrorCode = "D3020"
	ErrCastNumber         ErrorCode = "D3030"
	ErrMatchBadLimit      ErrorCode = "D3040"
	ErrReduceArity        ErrorCode = "D3050"
	ErrSqrtNegative       ErrorCode = "D3060"
	ErrPowerResult        ErrorCode = "D3061"
	ErrSortNotComparable2 ErrorCode = "D3070"
	ErrFormatBaseRadix    ErrorCode = "D3080"
	ErrParseIntRadix      ErrorCode = "D3100"
	ErrFourthRootNegative ErrorCode = "D3110"
	ErrUserError          ErrorCode = "D3137"
	ErrSingleManyMatches  ErrorCode = "D3138"
	ErrSingleNoMatch      ErrorCode = "D3139"
	ErrEncodeURI          ErrorCode = "D3140"
	ErrAssertFailed       ErrorCode = "D3141"

	// U1xxx: runtime bounds
	ErrStackDepthExceeded ErrorCode = "U1001"
	ErrTimeoutExceeded    ErrorCode = "U1002"
)

// Error is a structured querata error.
type Error struct {
	Code     ErrorCode
	Message  string
	Position int
	Token    string
	Value    any
	Err      error
}

// NewError creates a new error at the given source position.
func NewError(code ErrorCode, message string, position int) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Position: position,
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(code ErrorCode, position int, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Position: position,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Code, e.Position, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithToken adds token information to the error.
func (e *Error) WithToken(token string) *Error {
	e.Token = token
	return e
}

// WithValue attaches the offending value to the error.
func (e *Error) WithValue(v any) *Error {
	e.Value = v
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}
