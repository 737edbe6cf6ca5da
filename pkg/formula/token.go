package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenString
	tokenIdent
	tokenKeyword
	tokenOp
)

var keywords = map[string]bool{
	"var":    true,
	"let":    true,
	"const":  true,
	"if":     true,
	"else":   true,
	"return": true,
	"true":   true,
	"false":  true,
}

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokenEOF:
		return "end of formula"
	case tokenNumber:
		return fmt.Sprintf("number %s", t.text)
	case tokenString:
		return fmt.Sprintf("string %q", t.text)
	default:
		return fmt.Sprintf("'%s'", t.text)
	}
}

// tokenize splits a formula into tokens. Line and block comments are skipped
// so annotated formulas keep working when copied from the editor.
func tokenize(source string) ([]token, error) {
	var tokens []token
	runes := []rune(source)
	i := 0

	for i < len(runes) {
		c := runes[i]

		if unicode.IsSpace(c) {
			i++
			continue
		}

		// Comments
		if c == '/' && i+1 < len(runes) {
			if runes[i+1] == '/' {
				for i < len(runes) && runes[i] != '\n' {
					i++
				}
				continue
			}
			if runes[i+1] == '*' {
				end := strings.Index(string(runes[i+2:]), "*/")
				if end < 0 {
					return nil, &EvalError{Msg: "unterminated block comment", Pos: i}
				}
				i += 2 + end + 2
				continue
			}
		}

		start := i

		// Numbers
		if unicode.IsDigit(c) || (c == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])) {
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &EvalError{Msg: fmt.Sprintf("malformed number %q", text), Pos: start}
			}
			tokens = append(tokens, token{kind: tokenNumber, text: text, num: num, pos: start})
			continue
		}

		// Identifiers and keywords
		if unicode.IsLetter(c) || c == '_' || c == '$' {
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '$') {
				i++
			}
			text := string(runes[start:i])
			kind := tokenIdent
			if keywords[text] {
				kind = tokenKeyword
			}
			tokens = append(tokens, token{kind: kind, text: text, pos: start})
			continue
		}

		// String literals
		if c == '"' || c == '\'' {
			quote := c
			i++
			var sb strings.Builder
			for i < len(runes) && runes[i] != quote {
				if runes[i] == '\\' && i+1 < len(runes) {
					i++
				}
				sb.WriteRune(runes[i])
				i++
			}
			if i >= len(runes) {
				return nil, &EvalError{Msg: "unterminated string literal", Pos: start}
			}
			i++
			tokens = append(tokens, token{kind: tokenString, text: sb.String(), pos: start})
			continue
		}

		// Operators and punctuation, longest match first
		if i+2 < len(runes) {
			// Strict JS equality collapses onto the plain comparison; the
			// formula language has no type coercion to be strict about.
			switch three := string(runes[i : i+3]); three {
			case "===":
				tokens = append(tokens, token{kind: tokenOp, text: "==", pos: start})
				i += 3
				continue
			case "!==":
				tokens = append(tokens, token{kind: tokenOp, text: "!=", pos: start})
				i += 3
				continue
			}
		}
		two := ""
		if i+1 < len(runes) {
			two = string(runes[i : i+2])
		}
		switch two {
		case "<=", ">=", "==", "!=", "&&", "||":
			tokens = append(tokens, token{kind: tokenOp, text: two, pos: start})
			i += 2
			continue
		case "**":
			// Exponentiation shows up in formulas written in the newer style;
			// it maps onto the same node as pow().
			tokens = append(tokens, token{kind: tokenOp, text: two, pos: start})
			i += 2
			continue
		}
		switch c {
		case '+', '-', '*', '/', '%', '<', '>', '!', '=', '(', ')', '{', '}', ',', ';', '?', ':', '.':
			tokens = append(tokens, token{kind: tokenOp, text: string(c), pos: start})
			i++
			continue
		}

		return nil, &EvalError{Msg: fmt.Sprintf("unexpected character %q", string(c)), Pos: start}
	}

	tokens = append(tokens, token{kind: tokenEOF, pos: len(runes)})
	return tokens, nil
}
