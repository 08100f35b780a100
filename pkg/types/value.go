package types

import (
	"math"
	"regexp"
)

// Null represents an explicit JSON null, as distinct from an absent value
// (which is represented by a Go nil). Map lookups surface JSON nulls as
// NullValue so that downstream operators can tell the two apart; results are
// converted back to nil at the API boundary by ConvertNulls.
type Null struct{}

// NullValue is the singleton used for JSON null.
var NullValue = &Null{}

// MarshalJSON implements json.Marshaler.
func (n *Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (n *Null) String() string {
	return "null"
}

// Callable marks runtime values that can be invoked as functions: built-in
// functions, lambda closures and transform functions. Regular expressions are
// also applicable but are recognized structurally (*regexp.Regexp).
type Callable interface {
	FunctionName() string
}

// IsCallable reports whether v can be applied as a function.
func IsCallable(v any) bool {
	switch v.(type) {
	case Callable, *regexp.Regexp:
		return true
	}
	return false
}

// Sequence is the result container produced by path evaluation. The flags
// carry the singleton and construction semantics of the language:
//
//   - IsSeq marks a true result sequence, subject to the singleton law
//     (empty -> absent, single item -> the item).
//   - KeepSingleton suppresses singleton unwrapping ([] postfix).
//   - Cons marks an explicitly constructed array, which steps treat as a
//     single item rather than splicing.
//   - TupleStream marks a stream of tuple bindings rather than plain values.
//   - OuterWrapper marks the top-level wrapper placed around array inputs.
type Sequence struct {
	Values        []any
	IsSeq         bool
	KeepSingleton bool
	Cons          bool
	TupleStream   bool
	OuterWrapper  bool
}

// NewSequence creates an empty result sequence.
func NewSequence() *Sequence {
	return &Sequence{IsSeq: true}
}

// SequenceOf creates a result sequence over the given backing slice.
func SequenceOf(values []any) *Sequence {
	return &Sequence{Values: values, IsSeq: true}
}

// SequenceFrom creates a result sequence seeded with el. A one-element array
// is unwrapped into the sequence rather than nested.
func SequenceFrom(el any) *Sequence {
	if vals, ok := arrayValues(el); ok && len(vals) == 1 {
		return &Sequence{Values: []any{vals[0]}, IsSeq: true}
	}
	return &Sequence{Values: []any{el}, IsSeq: true}
}

// Append adds a value to the sequence.
func (s *Sequence) Append(v any) {
	s.Values = append(s.Values, v)
}

// Len returns the number of items in the sequence.
func (s *Sequence) Len() int {
	return len(s.Values)
}

// IsSequence reports whether v is a result sequence (as opposed to a plain or
// constructed array).
func IsSequence(v any) bool {
	s, ok := v.(*Sequence)
	return ok && s.IsSeq
}

// RangeCap is the maximum number of entries the range operator may produce.
const RangeCap = 1e7

// Range is the lazy result of the range operator a..b (inclusive). It
// materializes only when a consumer needs the actual items; size and indexed
// access work without allocation.
type Range struct {
	Start int64
	End   int64
}

// NewRange creates a range, enforcing the size cap.
func NewRange(start, end int64) (*Range, error) {
	if end-start+1 > RangeCap {
		return nil, Errorf(ErrRangeTooLarge, -1,
			"the size of the sequence allocated by the range operator must not exceed %d entries", int64(RangeCap))
	}
	return &Range{Start: start, End: end}, nil
}

// Size returns the number of entries in the range.
func (r *Range) Size() int {
	return int(r.End - r.Start + 1)
}

// Item returns the i-th entry of the range as a number.
func (r *Range) Item(i int) float64 {
	return float64(r.Start + int64(i))
}

// Materialize expands the range to a concrete slice.
func (r *Range) Materialize() []any {
	out := make([]any, r.Size())
	for i := range out {
		out[i] = r.Item(i)
	}
	return out
}

// arrayValues returns the backing values when v is array-like. Ranges are
// materialized.
func arrayValues(v any) ([]any, bool) {
	switch a := v.(type) {
	case []any:
		return a, true
	case *Sequence:
		return a.Values, true
	case *Range:
		return a.Materialize(), true
	}
	return nil, false
}

// AsArray returns the items of v when v is array-like ([]any, *Sequence or
// *Range), materializing lazily represented arrays.
func AsArray(v any) ([]any, bool) {
	return arrayValues(v)
}

// IsArray reports whether v is array-like, without materializing ranges.
func IsArray(v any) bool {
	switch v.(type) {
	case []any, *Sequence, *Range:
		return true
	}
	return false
}

// ArrayLen returns the length of an array-like value without materializing
// ranges. Returns 0 for non-arrays.
func ArrayLen(v any) int {
	switch a := v.(type) {
	case []any:
		return len(a)
	case *Sequence:
		return len(a.Values)
	case *Range:
		return a.Size()
	}
	return 0
}

// IsNumeric reports whether v is a valid finite number. Infinite values are
// an error by language definition.
func IsNumeric(v any) (bool, error) {
	n, ok := v.(float64)
	if !ok {
		return false, nil
	}
	if math.IsNaN(n) {
		return false, nil
	}
	if math.IsInf(n, 0) {
		return false, Errorf(ErrNumberOverflow, -1, "number out of range: %v", v).WithValue(v)
	}
	return true, nil
}

// IsArrayOfStrings reports whether v is an array whose items are all strings.
func IsArrayOfStrings(v any) bool {
	vals, ok := arrayValues(v)
	if !ok {
		return false
	}
	for _, item := range vals {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

// IsArrayOfNumbers reports whether v is an array whose items are all numbers.
func IsArrayOfNumbers(v any) bool {
	vals, ok := arrayValues(v)
	if !ok {
		return false
	}
	for _, item := range vals {
		if ok, _ := IsNumeric(item); !ok {
			return false
		}
	}
	return true
}

// ConvertNulls converts a result value for the API boundary: sequences and
// ranges become plain slices and NullValue becomes nil. Containers are
// rebuilt rather than mutated, so input subtrees shared into the result stay
// untouched.
func ConvertNulls(v any) any {
	switch val := v.(type) {
	case *Null:
		return nil
	case *Sequence:
		out := make([]any, len(val.Values))
		for i, item := range val.Values {
			out[i] = ConvertNulls(item)
		}
		return out
	case *Range:
		return val.Materialize()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ConvertNulls(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ConvertNulls(item)
		}
		return out
	}
	return v
}
