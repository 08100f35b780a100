package evaluator

import (
	"sync"

	"github.com/querata/querata/pkg/ast"
	"github.com/querata/querata/pkg/signature"
)

// FunctionImpl is the implementation of a built-in function. Argument
// coercion and arity checking have already been performed against the
// function's signature by the time the implementation runs.
type FunctionImpl func(rt *Runtime, input any, args []any) (any, error)

// Function is a built-in function value: a name, a compiled signature and the
// native implementation.
type Function struct {
	name string
	sig  *signature.Signature
	fn   FunctionImpl
}

// NewFunction creates a function value from a signature definition string.
// It panics on a malformed signature, which is a programming error.
func NewFunction(name, sigStr string, fn FunctionImpl) *Function {
	var sig *signature.Signature
	if sigStr != "" {
		sig = signature.MustParse(sigStr, name)
	}
	return &Function{name: name, sig: sig, fn: fn}
}

// FunctionName returns the name the function was registered under.
func (f *Function) FunctionName() string { return f.name }

// NumArgs returns the declared number of parameters.
func (f *Function) NumArgs() int {
	if f.sig == nil {
		return 0
	}
	return f.sig.NumArgs()
}

// Lambda is a closure: a function defined by an expression, capturing the
// environment and context item at its point of definition. A thunk is the
// synthetic zero-argument closure wrapped around a call in tail position; the
// apply loop unwinds thunks iteratively instead of recursing.
type Lambda struct {
	params []string
	body   ast.Node
	input  any
	env    *Frame
	sig    ast.Validator
	thunk  bool
}

// FunctionName implements types.Callable.
func (l *Lambda) FunctionName() string { return "lambda" }

// RegisterFunction binds a named function with the given signature definition
// into env. Expressions evaluated under env can call it as $name(...).
func RegisterFunction(env *Frame, name, sigStr string, fn FunctionImpl) {
	env.Bind(name, NewFunction(name, sigStr, fn))
}

var (
	baseEnvOnce sync.Once
	baseEnv     *Frame
)

// baseEnvironment returns the shared root frame holding the built-in function
// library. Evaluations never bind into it; each run gets a child frame.
func baseEnvironment() *Frame {
	baseEnvOnce.Do(func() {
		baseEnv = NewFrame(nil)
		for _, def := range builtins {
			RegisterFunction(baseEnv, def.name, def.sig, def.fn)
		}
	})
	return baseEnv
}

type builtinDef struct {
	name string
	sig  string
	fn   FunctionImpl
}

var builtins = []builtinDef{
	// aggregation
	{"sum", "<a<n>:n>", fnSum},
	{"count", "<a:n>", fnCount},
	{"max", "<a<n>:n>", fnMax},
	{"min", "<a<n>:n>", fnMin},
	{"average", "<a<n>:n>", fnAverage},

	// strings
	{"string", "<x-b?:s>", fnString},
	{"substring", "<s-nn?:s>", fnSubstring},
	{"substringBefore", "<s-s:s>", fnSubstringBefore},
	{"substringAfter", "<s-s:s>", fnSubstringAfter},
	{"lowercase", "<s-:s>", fnLowercase},
	{"uppercase", "<s-:s>", fnUppercase},
	{"length", "<s-:n>", fnLength},
	{"trim", "<s-:s>", fnTrim},
	{"pad", "<s-ns?:s>", fnPad},
	{"match", "<s-f<s:o>n?:a<o>>", fnMatch},
	{"contains", "<s-(sf):b>", fnContains},
	{"replace", "<s-(sf)(sf)n?:s>", fnReplace},
	{"split", "<s-(sf)n?:a<s>>", fnSplit},
	{"join", "<a<s>s?:s>", fnJoin},

	// numbers
	{"number", "<(nsb)-:n>", fnNumber},
	{"floor", "<n-:n>", fnFloor},
	{"ceil", "<n-:n>", fnCeil},
	{"round", "<n-n?:n>", fnRound},
	{"abs", "<n-:n>", fnAbs},
	{"sqrt", "<n-:n>", fnSqrt},
	{"power", "<n-n:n>", fnPower},
	{"random", "<:n>", fnRandom},
	{"formatBase", "<n-n?:s>", fnFormatBase},
	{"parseInteger", "<s-s?:n>", fnParseInteger},

	// booleans
	{"boolean", "<x-:b>", fnBoolean},
	{"not", "<x-:b>", fnNot},
	{"exists", "<x:b>", fnExists},

	// arrays
	{"append", "<xx:a>", fnAppend},
	{"reverse", "<a:a>", fnReverse},
	{"sort", "<af?:a>", fnSort},
	{"shuffle", "<a:a>", fnShuffle},
	{"distinct", "<x:x>", fnDistinct},
	{"zip", "<a+>", fnZip},

	// objects
	{"keys", "<x-:a<s>>", fnKeys},
	{"lookup", "<x-s:x>", fnLookup},
	{"spread", "<x-:a<o>>", fnSpread},
	{"merge", "<a<o>:o>", fnMerge},
	{"sift", "<o-f?:o>", fnSift},
	{"each", "<o-f:a>", fnEach},
	{"type", "<x:s>", fnType},

	// higher-order
	{"map", "<af>", fnMap},
	{"filter", "<af>", fnFilter},
	{"single", "<af?>", fnSingle},
	{"reduce", "<afj?:j>", fnReduce},

	// encoding
	{"base64encode", "<s-:s>", fnBase64Encode},
	{"base64decode", "<s-:s>", fnBase64Decode},
	{"encodeUrlComponent", "<s-:s>", fnEncodeURLComponent},
	{"encodeUrl", "<s-:s>", fnEncodeURL},
	{"decodeUrlComponent", "<s-:s>", fnDecodeURLComponent},
	{"decodeUrl", "<s-:s>", fnDecodeURL},

	// date and time
	{"now", "<s?s?:s>", fnNow},
	{"millis", "<:n>", fnMillis},
	{"toMillis", "<s-s?:n>", fnToMillis},
	{"fromMillis", "<n-s?s?:s>", fnFromMillis},

	// miscellaneous
	{"error", "<s?:x>", fnError},
	{"assert", "<bs?:x>", fnAssert},
	{"eval", "<sx?:x>", fnEval},
	{"clone", "<(oa)-:o>", fnClone},
}
