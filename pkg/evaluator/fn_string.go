package evaluator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/querata/querata/pkg/types"
)

func fnString(rt *Runtime, input any, args []any) (any, error) {
	prettify := false
	if len(args) > 1 && args[1] != nil {
		prettify = args[1].(bool)
	}
	s, ok, err := stringify(args[0], prettify)
	if err != nil || !ok {
		return nil, err
	}
	return s, nil
}

func fnSubstring(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	runes := []rune(args[0].(string))
	start := int(args[1].(float64))
	if start < 0 {
		start = len(runes) + start
		if start < 0 {
			start = 0
		}
	}
	if start >= len(runes) {
		return "", nil
	}
	end := len(runes)
	if len(args) > 2 && args[2] != nil {
		length := int(args[2].(float64))
		if length < 0 {
			length = 0
		}
		if start+length < end {
			end = start + length
		}
	}
	return string(runes[start:end]), nil
}

func fnSubstringBefore(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := args[0].(string)
	chars := args[1].(string)
	if i := strings.Index(s, chars); i >= 0 {
		return s[:i], nil
	}
	return s, nil
}

func fnSubstringAfter(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := args[0].(string)
	chars := args[1].(string)
	if i := strings.Index(s, chars); i >= 0 {
		return s[i+len(chars):], nil
	}
	return s, nil
}

func fnLowercase(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return strings.ToLower(args[0].(string)), nil
}

func fnUppercase(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return strings.ToUpper(args[0].(string)), nil
}

func fnLength(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return float64(utf8.RuneCountInString(args[0].(string))), nil
}

func fnTrim(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	// consecutive whitespace collapses to a single space before trimming
	collapsed := strings.Join(strings.Fields(args[0].(string)), " ")
	return collapsed, nil
}

func fnPad(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := args[0].(string)
	width := int(args[1].(float64))
	padChars := " "
	if len(args) > 2 && args[2] != nil && args[2].(string) != "" {
		padChars = args[2].(string)
	}

	size := width
	if size < 0 {
		size = -size
	}
	length := utf8.RuneCountInString(s)
	if length >= size {
		return s, nil
	}
	padRunes := []rune(padChars)
	filler := make([]rune, 0, size-length)
	for i := 0; len(filler) < size-length; i++ {
		filler = append(filler, padRunes[i%len(padRunes)])
	}
	if width < 0 {
		return string(filler) + s, nil
	}
	return s + string(filler), nil
}

// matchObject is the result shape shared by $match and function-valued
// replacements: the matched text, its character offset and the captured
// groups.
func matchObject(s string, loc []int) map[string]any {
	groups := []any{}
	for g := 1; g*2 < len(loc); g++ {
		if loc[g*2] < 0 {
			groups = append(groups, nil)
			continue
		}
		groups = append(groups, s[loc[g*2]:loc[g*2+1]])
	}
	return map[string]any{
		"match":  s[loc[0]:loc[1]],
		"index":  float64(utf8.RuneCountInString(s[:loc[0]])),
		"groups": groups,
	}
}

func fnMatch(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := args[0].(string)
	re, ok := args[1].(*regexp.Regexp)
	if !ok {
		return nil, types.NewError(types.ErrBadMatcherFunction,
			"the second argument of the match function must be a regular expression", -1).WithValue(args[1])
	}
	limit := -1
	if len(args) > 2 && args[2] != nil {
		limit = int(args[2].(float64))
		if limit < 0 {
			return nil, types.NewError(types.ErrMatchBadLimit,
				"the third argument of the match function must evaluate to a positive number", -1).WithValue(args[2])
		}
	}

	result := []any{}
	for _, loc := range re.FindAllStringSubmatchIndex(s, limit) {
		result = append(result, matchObject(s, loc))
	}
	return result, nil
}

func fnContains(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := args[0].(string)
	if re, ok := args[1].(*regexp.Regexp); ok {
		return re.FindStringIndex(s) != nil, nil
	}
	return strings.Contains(s, args[1].(string)), nil
}

// expandReplacement substitutes group references in a replacement template:
// $$ is a literal dollar, $0 the whole match and $N the N-th group. A
// reference past the last group consumes fewer digits when that yields a
// valid group, otherwise it expands to nothing.
func expandReplacement(template string, s string, loc []int) string {
	groupCount := len(loc)/2 - 1
	group := func(n int) string {
		if n == 0 {
			return s[loc[0]:loc[1]]
		}
		if n > groupCount || loc[n*2] < 0 {
			return ""
		}
		return s[loc[n*2]:loc[n*2+1]]
	}

	var b strings.Builder
	for i := 0; i < len(template); i++ {
		if template[i] != '$' || i+1 >= len(template) {
			b.WriteByte(template[i])
			continue
		}
		if template[i+1] == '$' {
			b.WriteByte('$')
			i++
			continue
		}
		j := i + 1
		for j < len(template) && template[j] >= '0' && template[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte('$')
			continue
		}
		digits := template[i+1 : j]
		for len(digits) > 1 {
			n := 0
			for _, d := range digits {
				n = n*10 + int(d-'0')
			}
			if n <= groupCount {
				break
			}
			digits = digits[:len(digits)-1]
		}
		n := 0
		for _, d := range digits {
			n = n*10 + int(d-'0')
		}
		b.WriteString(group(n))
		i += len(digits)
	}
	return b.String()
}

func fnReplace(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := args[0].(string)
	limit := -1
	if len(args) > 3 && args[3] != nil {
		limit = int(args[3].(float64))
		if limit < 0 {
			return nil, types.NewError(types.ErrReplaceBadLimit,
				"the fourth argument of the replace function must evaluate to a positive number", -1).WithValue(args[3])
		}
	}

	if pattern, ok := args[1].(string); ok {
		if pattern == "" {
			return nil, types.NewError(types.ErrReplaceEmptyMatch,
				"the second argument of the replace function cannot be an empty string", -1)
		}
		replacement, ok := args[2].(string)
		if !ok {
			return nil, types.NewError(types.ErrReplaceNotString,
				"attempted to replace a matched string with a non-string value", -1).WithValue(args[2])
		}
		return strings.Replace(s, pattern, replacement, limit), nil
	}

	re, ok := args[1].(*regexp.Regexp)
	if !ok {
		return nil, types.NewError(types.ErrBadMatcherFunction,
			"the second argument of the replace function must be a string or a regular expression", -1).WithValue(args[1])
	}

	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(s, limit) {
		b.WriteString(s[last:loc[0]])
		switch repl := args[2].(type) {
		case string:
			b.WriteString(expandReplacement(repl, s, loc))
		default:
			res, err := rt.apply(args[2], []any{matchObject(s, loc)}, input, rt.env)
			if err != nil {
				return nil, err
			}
			str, isStr := res.(string)
			if !isStr {
				return nil, types.NewError(types.ErrReplaceNotString,
					"attempted to replace a matched string with a non-string value", -1).WithValue(res)
			}
			b.WriteString(str)
		}
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func fnSplit(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := args[0].(string)
	limit := -1
	if len(args) > 2 && args[2] != nil {
		limit = int(args[2].(float64))
		if limit < 0 {
			return nil, types.NewError(types.ErrSplitBadLimit,
				"the third argument of the split function must evaluate to a positive number", -1).WithValue(args[2])
		}
	}

	var parts []string
	if re, ok := args[1].(*regexp.Regexp); ok {
		parts = re.Split(s, -1)
	} else {
		parts = strings.Split(s, args[1].(string))
	}
	if limit >= 0 && limit < len(parts) {
		parts = parts[:limit]
	}
	result := make([]any, len(parts))
	for i, p := range parts {
		result[i] = p
	}
	return result, nil
}

func fnJoin(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	separator := ""
	if len(args) > 1 && args[1] != nil {
		separator = args[1].(string)
	}
	items, _ := types.AsArray(args[0])
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.(string)
	}
	return strings.Join(parts, separator), nil
}
