// Package signature implements the function signature mini-language. A
// signature like "<a<n>fn?:n>" is compiled once into a regular expression
// over one-letter type codes; validating a call reduces to matching the
// codes of the supplied arguments against that pattern.
package signature

import (
	"regexp"
	"strings"

	"github.com/querata/querata/pkg/types"
)

// param is one compiled parameter of a signature.
type param struct {
	typ          string
	regex        string
	context      bool
	contextRegex string
	array        bool
	subtype      string
}

// Signature is a compiled function signature.
type Signature struct {
	params       []*param
	re           *regexp.Regexp
	pattern      string
	functionName string
}

// Parse compiles a signature string of the form "<params:return>". The
// return type is not enforced and is skipped.
func Parse(sig string, functionName string) (*Signature, error) {
	s := &Signature{functionName: functionName}
	if err := s.parse(sig); err != nil {
		return nil, err
	}
	return s, nil
}

// MustParse compiles a signature string and panics on error. It is intended
// for registering built-in functions with known-good signatures.
func MustParse(sig string, functionName string) *Signature {
	s, err := Parse(sig, functionName)
	if err != nil {
		panic(err)
	}
	return s
}

// SetFunctionName sets the name reported in validation errors.
func (s *Signature) SetFunctionName(name string) {
	s.functionName = name
}

// NumArgs returns the number of declared parameters.
func (s *Signature) NumArgs() int {
	return len(s.params)
}

// MinArgs returns the number of non-optional parameters.
func (s *Signature) MinArgs() int {
	n := 0
	for _, p := range s.params {
		if !strings.Contains(p.regex, "?") {
			n++
		}
	}
	return n
}

func (s *Signature) parse(sig string) error {
	cur := &param{}
	var prev *param
	next := func() {
		s.params = append(s.params, cur)
		prev = cur
		cur = &param{}
	}
	position := 1
	for position < len(sig) {
		symbol := sig[position]
		if symbol == ':' {
			break
		}
		switch symbol {
		case 's', 'n', 'b', 'l', 'o':
			cur.regex = "[" + string(symbol) + "m]"
			cur.typ = string(symbol)
			next()
		case 'a':
			// an undefined argument is also acceptable for an array
			cur.regex = "[asnblfom]"
			cur.typ = "a"
			cur.array = true
			next()
		case 'f':
			cur.regex = "f"
			cur.typ = "f"
			next()
		case 'j':
			cur.regex = "[asnblom]"
			cur.typ = "j"
			next()
		case 'x':
			cur.regex = "[asnblfom]"
			cur.typ = "x"
			next()
		case '-':
			if prev != nil {
				prev.context = true
				// capture the regex before the trailing ? so that the
				// context type check cannot match the empty string
				prev.contextRegex = prev.regex
				prev.regex += "?"
			}
		case '?', '+':
			if prev != nil {
				prev.regex += string(symbol)
			}
		case '(':
			end := findClosingBracket(sig, position, '(', ')')
			choice := sig[position+1 : end]
			if strings.Contains(choice, "<") {
				return types.NewError(types.ErrSignatureChoice,
					"choice groups containing parameterized types are not supported", position)
			}
			cur.regex = "[" + choice + "m]"
			cur.typ = "(" + choice + ")"
			position = end
			next()
		case '<':
			end := findClosingBracket(sig, position, '<', '>')
			if prev != nil && (prev.typ == "a" || prev.typ == "f") {
				prev.subtype = sig[position+1 : end]
			}
			position = end
		}
		position++
	}
	var b strings.Builder
	b.WriteByte('^')
	for _, p := range s.params {
		b.WriteString("(")
		b.WriteString(p.regex)
		b.WriteString(")")
	}
	b.WriteByte('$')
	s.pattern = b.String()
	re, err := regexp.Compile(s.pattern)
	if err != nil {
		return types.NewError(types.ErrSyntaxError, "invalid function signature: "+sig, -1).WithCause(err)
	}
	s.re = re
	return nil
}

func findClosingBracket(s string, start int, open, close byte) int {
	depth := 1
	position := start
	for position < len(s)-1 {
		position++
		switch s[position] {
		case close:
			depth--
			if depth == 0 {
				return position
			}
		case open:
			depth++
		}
	}
	return position
}

// typeCode returns the one-letter code of a runtime value.
func typeCode(v any) string {
	if v == nil {
		return "m"
	}
	switch v.(type) {
	case *types.Null:
		return "l"
	case string:
		return "s"
	case bool:
		return "b"
	case float64:
		return "n"
	case map[string]any:
		return "o"
	}
	if types.IsArray(v) {
		return "a"
	}
	if types.IsCallable(v) {
		return "f"
	}
	return "m"
}

// Validate checks the supplied arguments against the signature. It returns
// the validated argument list, with the context value substituted for
// omitted context-substitutable parameters and single values wrapped for
// array parameters.
func (s *Signature) Validate(args []any, context any) ([]any, error) {
	var supplied strings.Builder
	for _, arg := range args {
		supplied.WriteString(typeCode(arg))
	}
	suppliedSig := supplied.String()

	m := s.re.FindStringSubmatch(suppliedSig)
	if m == nil {
		return nil, s.validationError(args, suppliedSig)
	}

	validated := make([]any, 0, len(args))
	argIndex := 0
	for i, p := range s.params {
		var arg any
		if argIndex < len(args) {
			arg = args[argIndex]
		}
		match := m[i+1]
		if match == "" {
			if p.context && p.contextRegex != "" {
				contextType := typeCode(context)
				ok, err := regexp.MatchString(p.contextRegex, contextType)
				if err != nil || !ok {
					return nil, types.Errorf(types.ErrContextTypeMismatch, -1,
						"context value is not a compatible type with argument %d of function %s",
						argIndex+1, s.functionName).WithToken(s.functionName).WithValue(context)
				}
				validated = append(validated, context)
			} else {
				validated = append(validated, arg)
				argIndex++
			}
			continue
		}
		// the match can cover several arguments when the regex ends with +
		for _, single := range match {
			if p.typ == "a" {
				if single == 'm' {
					arg = nil
				} else {
					if argIndex < len(args) {
						arg = args[argIndex]
					} else {
						arg = nil
					}
					arrayOK := true
					if p.subtype != "" {
						if single != 'a' && match != p.subtype {
							arrayOK = false
						} else if single == 'a' {
							items, _ := types.AsArray(arg)
							if len(items) > 0 {
								itemType := typeCode(items[0])
								if itemType != string(p.subtype[0]) {
									arrayOK = false
								} else {
									for _, o := range items {
										if typeCode(o) != itemType {
											arrayOK = false
											break
										}
									}
								}
							}
						}
					}
					if !arrayOK {
						return nil, types.Errorf(types.ErrArrayTypeMismatch, -1,
							"argument %d of function %s must be an array of %s",
							argIndex+1, s.functionName, p.subtype).WithToken(s.functionName).WithValue(arg)
					}
					if single != 'a' {
						arg = []any{arg}
					}
				}
				validated = append(validated, arg)
				argIndex++
			} else {
				if argIndex < len(args) {
					arg = args[argIndex]
				} else {
					arg = nil
				}
				validated = append(validated, arg)
				argIndex++
			}
		}
	}
	return validated, nil
}

// validationError pinpoints the first offending argument by matching a
// growing anchored prefix of the signature pattern against the supplied
// type codes.
func (s *Signature) validationError(args []any, suppliedSig string) error {
	partial := "^"
	goodTo := 0
	for _, p := range s.params {
		partial += p.regex
		tester, err := regexp.Compile(partial)
		if err != nil {
			break
		}
		loc := tester.FindStringIndex(suppliedSig)
		if loc == nil {
			return s.argError(args, goodTo)
		}
		goodTo = loc[1]
	}
	// all parameters matched a prefix, so the arguments are extraneous
	return s.argError(args, goodTo)
}

func (s *Signature) argError(args []any, goodTo int) error {
	var bad any
	if goodTo < len(args) {
		bad = args[goodTo]
	}
	return types.Errorf(types.ErrArgTypeMismatch, -1,
		"argument %d of function %s does not match function signature",
		goodTo+1, s.functionName).WithToken(s.functionName).WithValue(bad)
}
