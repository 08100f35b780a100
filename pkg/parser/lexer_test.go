package parser_test

import (
	"errors"
	"testing"

	"github.com/querata/querata/pkg/parser"
	"github.com/querata/querata/pkg/types"
)

type lexerTestCase struct {
	name       string
	input      string
	allowRegex bool
	expected   []parser.Token
	errCode    types.ErrorCode // non-zero value expects a lexing error
}

func runLexerTests(t *testing.T, tests []lexerTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lex := parser.NewLexer(tt.input)
			for i, want := range tt.expected {
				got := lex.Next(tt.allowRegex)
				if got != want {
					t.Errorf("token %d: got %+v, want %+v", i, got, want)
				}
			}
			if tt.errCode != "" {
				got := lex.Next(tt.allowRegex)
				if got.Type != parser.TokenError {
					t.Fatalf("expected error token, got %+v", got)
				}
				var terr *types.Error
				if !errors.As(lex.Error(), &terr) {
					t.Fatalf("expected *types.Error, got %v", lex.Error())
				}
				if terr.Code != tt.errCode {
					t.Errorf("got code %s, want %s", terr.Code, tt.errCode)
				}
				return
			}
			if got := lex.Next(tt.allowRegex); got.Type != parser.TokenEOF {
				t.Errorf("expected EOF, got %+v", got)
			}
		})
	}
}

func TestLexerNames(t *testing.T) {
	runLexerTests(t, []lexerTestCase{
		{
			name:  "plain name",
			input: "abc",
			expected: []parser.Token{
				{Type: parser.TokenName, Value: "abc", Position: 0},
			},
		},
		{
			name:  "leading whitespace",
			input: "   abc",
			expected: []parser.Token{
				{Type: parser.TokenName, Value: "abc", Position: 3},
			},
		},
		{
			name:  "variable",
			input: "$var",
			expected: []parser.Token{
				{Type: parser.TokenVariable, Value: "var", Position: 1},
			},
		},
		{
			name:  "root variable",
			input: "$$",
			expected: []parser.Token{
				{Type: parser.TokenVariable, Value: "$", Position: 1},
			},
		},
		{
			name:  "escaped name",
			input: "`first name`",
			expected: []parser.Token{
				{Type: parser.TokenNameEsc, Value: "first name", Position: 1},
			},
		},
		{
			name:  "keywords",
			input: "true and false",
			expected: []parser.Token{
				{Type: parser.TokenBoolean, Value: "true", Position: 0},
				{Type: parser.TokenAnd, Value: "and", Position: 5},
				{Type: parser.TokenBoolean, Value: "false", Position: 9},
			},
		},
	})
}

func TestLexerStrings(t *testing.T) {
	runLexerTests(t, []lexerTestCase{
		{
			name:  "double quoted",
			input: `"hello"`,
			expected: []parser.Token{
				{Type: parser.TokenString, Value: "hello", Position: 1},
			},
		},
		{
			name:  "single quoted",
			input: `'world'`,
			expected: []parser.Token{
				{Type: parser.TokenString, Value: "world", Position: 1},
			},
		},
		{
			name:  "escape sequences",
			input: `"a\tb\n"`,
			expected: []parser.Token{
				{Type: parser.TokenString, Value: "a\tb\n", Position: 1},
			},
		},
		{
			name:  "unicode escape",
			input: `"\u00e9"`,
			expected: []parser.Token{
				{Type: parser.TokenString, Value: "é", Position: 1},
			},
		},
		{
			name:    "unterminated",
			input:   `"abc`,
			errCode: types.ErrStringNotClosed,
		},
		{
			name:    "bad escape",
			input:   `"a\qb"`,
			errCode: types.ErrUnsupportedEscape,
		},
	})
}

func TestLexerNumbers(t *testing.T) {
	runLexerTests(t, []lexerTestCase{
		{
			name:  "integer",
			input: "42",
			expected: []parser.Token{
				{Type: parser.TokenNumber, Value: "42", Position: 0},
			},
		},
		{
			name:  "decimal",
			input: "3.14",
			expected: []parser.Token{
				{Type: parser.TokenNumber, Value: "3.14", Position: 0},
			},
		},
		{
			name:  "scientific",
			input: "1e-10",
			expected: []parser.Token{
				{Type: parser.TokenNumber, Value: "1e-10", Position: 0},
			},
		},
		{
			name:  "number before range operator",
			input: "1..5",
			expected: []parser.Token{
				{Type: parser.TokenNumber, Value: "1", Position: 0},
				{Type: parser.TokenRange, Value: "..", Position: 1},
				{Type: parser.TokenNumber, Value: "5", Position: 3},
			},
		},
	})
}

func TestLexerOperators(t *testing.T) {
	runLexerTests(t, []lexerTestCase{
		{
			name:  "two-char symbols",
			input: ":= != <= >= ~> ** ?? ?:",
			expected: []parser.Token{
				{Type: parser.TokenAssign, Value: ":=", Position: 0},
				{Type: parser.TokenNotEqual, Value: "!=", Position: 3},
				{Type: parser.TokenLessEqual, Value: "<=", Position: 6},
				{Type: parser.TokenGreaterEqual, Value: ">=", Position: 9},
				{Type: parser.TokenApply, Value: "~>", Position: 12},
				{Type: parser.TokenDescendent, Value: "**", Position: 15},
				{Type: parser.TokenCoalesce, Value: "??", Position: 18},
				{Type: parser.TokenDefault, Value: "?:", Position: 21},
			},
		},
		{
			name:  "path symbols",
			input: "a.b@$v#$i",
			expected: []parser.Token{
				{Type: parser.TokenName, Value: "a", Position: 0},
				{Type: parser.TokenDot, Value: ".", Position: 1},
				{Type: parser.TokenName, Value: "b", Position: 2},
				{Type: parser.TokenFocus, Value: "@", Position: 3},
				{Type: parser.TokenVariable, Value: "v", Position: 5},
				{Type: parser.TokenIndex, Value: "#", Position: 6},
				{Type: parser.TokenVariable, Value: "i", Position: 8},
			},
		},
	})
}

func TestLexerRegexMode(t *testing.T) {
	runLexerTests(t, []lexerTestCase{
		{
			name:       "regex with flags",
			input:      "/ab+/i",
			allowRegex: true,
			expected: []parser.Token{
				{Type: parser.TokenRegex, Value: "(?i)ab+", Position: 1},
			},
		},
		{
			name:       "division when regex not allowed",
			input:      "/",
			allowRegex: false,
			expected: []parser.Token{
				{Type: parser.TokenDiv, Value: "/", Position: 0},
			},
		},
		{
			name:       "unterminated regex",
			input:      "/abc",
			allowRegex: true,
			errCode:    types.ErrRegexNotClosed,
		},
	})
}

func TestLexerComments(t *testing.T) {
	runLexerTests(t, []lexerTestCase{
		{
			name:  "comment between tokens",
			input: "a /* note */ b",
			expected: []parser.Token{
				{Type: parser.TokenName, Value: "a", Position: 0},
				{Type: parser.TokenName, Value: "b", Position: 13},
			},
		},
		{
			name:  "unterminated comment",
			input: "a /* note",
			expected: []parser.Token{
				{Type: parser.TokenName, Value: "a", Position: 0},
			},
			errCode: types.ErrCommentNotClosed,
		},
	})
}
