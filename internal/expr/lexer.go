package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrSyntax         = errors.New("expr: syntax error")
	ErrDivisionByZero = errors.New("expr: division by zero")
	ErrNotFinite      = errors.New("expr: result is not finite")
)

// SyntaxError reports where compilation failed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr: %s at %d", e.Msg, e.Pos)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokVar
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// lex splits src into tokens. Only numeric literals, [Name] placeholders,
// the four operators, parentheses and whitespace are accepted.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			lit := src[start:i]
			n, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("bad number %q", lit)}
			}
			toks = append(toks, token{kind: tokNumber, text: lit, num: n, pos: start})
		case c == '[':
			end := strings.IndexByte(src[i+1:], ']')
			if end < 0 {
				return nil, &SyntaxError{Pos: i, Msg: "unterminated placeholder"}
			}
			name := strings.TrimSpace(src[i+1 : i+1+end])
			if name == "" || strings.ContainsRune(name, '[') {
				return nil, &SyntaxError{Pos: i, Msg: "bad placeholder"}
			}
			toks = append(toks, token{kind: tokVar, text: name, pos: i})
			i += end + 2
		default:
			k, ok := operators[c]
			if !ok {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected %q", c)}
			}
			toks = append(toks, token{kind: k, text: string(c), pos: i})
			i++
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

var operators = map[byte]tokenKind{
	'+': tokPlus,
	'-': tokMinus,
	'*': tokStar,
	'/': tokSlash,
	'(': tokLParen,
	')': tokRParen,
}
