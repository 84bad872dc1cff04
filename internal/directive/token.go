package directive

import (
	"fmt"
	"strings"
)

type TokenType int

const (
	TokenIdentifier TokenType = iota
	TokenColumn
	TokenColumnList
	TokenText
	TokenTextList
	TokenNumber
	TokenBool
	TokenExpression
)

var tokenNames = map[TokenType]string{
	TokenIdentifier: "identifier",
	TokenColumn:     "column",
	TokenColumnList: "column-list",
	TokenText:       "text",
	TokenTextList:   "text-list",
	TokenNumber:     "number",
	TokenBool:       "bool",
	TokenExpression: "expression",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a typed literal from a recipe statement. Value holds the decoded
// form: string for identifier, column, text and expression; []string for
// lists; float64 for number; bool for bool.
type Token struct {
	Type  TokenType
	Text  string
	Value any
}

// Arguments are the tokens bound to a directive's parameters, kept both in
// statement order and by parameter name.
type Arguments struct {
	tokens []Token
	named  map[string]Token
}

func NewArguments() *Arguments {
	return &Arguments{named: map[string]Token{}}
}

// Bind appends tok under the parameter name.
func (a *Arguments) Bind(name string, tok Token) {
	a.tokens = append(a.tokens, tok)
	a.named[name] = tok
}

func (a *Arguments) Len() int { return len(a.tokens) }

// Tokens returns a copy of the bound tokens in order.
func (a *Arguments) Tokens() []Token { return append([]Token(nil), a.tokens...) }

func (a *Arguments) Has(name string) bool {
	_, ok := a.named[name]
	return ok
}

func (a *Arguments) Token(name string) (Token, bool) {
	t, ok := a.named[name]
	return t, ok
}

// String returns the string value of a column, text, identifier or
// expression argument; "" when absent.
func (a *Arguments) String(name string) string {
	if t, ok := a.named[name]; ok {
		if s, ok := t.Value.(string); ok {
			return s
		}
	}
	return ""
}

// Strings returns list values; a single value becomes a one-element list.
func (a *Arguments) Strings(name string) []string {
	t, ok := a.named[name]
	if !ok {
		return nil
	}
	switch v := t.Value.(type) {
	case []string:
		return append([]string(nil), v...)
	case string:
		return []string{v}
	}
	return nil
}

func (a *Arguments) Number(name string, def float64) float64 {
	if t, ok := a.named[name]; ok {
		if f, ok := t.Value.(float64); ok {
			return f
		}
	}
	return def
}

func (a *Arguments) Bool(name string, def bool) bool {
	if t, ok := a.named[name]; ok {
		if b, ok := t.Value.(bool); ok {
			return b
		}
	}
	return def
}

// Canonical renders the arguments back into recipe syntax.
func (a *Arguments) Canonical() string {
	parts := make([]string, len(a.tokens))
	for i, t := range a.tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}
