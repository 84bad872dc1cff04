package grammar

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"txservice/internal/directive"
)

const exprPrefix = "exp:{"

// splitStatements cuts recipe text at ';' and newlines that sit outside
// quoted text and braces. Comment lines ("//", or "#" not starting a pragma)
// are dropped.
func splitStatements(src string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		quote rune
		depth int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	rs := []rune(src)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		if quote != 0 {
			cur.WriteRune(c)
			switch {
			case c == '\\' && i+1 < len(rs):
				i++
				cur.WriteRune(rs[i])
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
			cur.WriteRune(c)
		case c == '{':
			depth++
			cur.WriteRune(c)
		case c == '}':
			if depth > 0 {
				depth--
			}
			cur.WriteRune(c)
		case depth > 0:
			cur.WriteRune(c)
		case c == ';' || c == '\n':
			flush()
		case strings.TrimSpace(cur.String()) == "" && isComment(rs[i:]):
			for i+1 < len(rs) && rs[i+1] != '\n' {
				i++
			}
		default:
			cur.WriteRune(c)
		}
	}
	pending := strings.TrimSpace(cur.String())
	switch {
	case quote != 0:
		return out, &ParseError{Index: len(out) + 1, Statement: pending, Reason: "unterminated quoted text", Err: ErrSyntax}
	case depth > 0:
		return out, &ParseError{Index: len(out) + 1, Statement: pending, Reason: "unbalanced '{' in expression", Err: ErrSyntax}
	}
	flush()
	return out, nil
}

func isComment(rs []rune) bool {
	s := string(rs[:min(len(rs), 8)])
	if strings.HasPrefix(s, "//") {
		return true
	}
	return strings.HasPrefix(s, "#") && !strings.HasPrefix(s, "#pragma")
}

func isPragma(stmt string) bool { return strings.HasPrefix(stmt, "#pragma") }

type lexer struct {
	src []rune
	pos int
}

// tokenize splits one statement into typed tokens.
func tokenize(stmt string) ([]directive.Token, error) {
	l := &lexer{src: []rune(stmt)}
	var toks []directive.Token
	for {
		l.skipSpace()
		if l.eof() {
			return toks, nil
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
}

func (l *lexer) eof() bool { return l.pos >= len(l.src) }

func (l *lexer) peek() rune {
	if l.eof() {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) skipSpace() {
	for !l.eof() && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) readWhile(ok func(rune) bool) string {
	start := l.pos
	for !l.eof() && ok(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

// list reports whether a ',' follows, consuming it and surrounding space.
func (l *lexer) list() bool {
	save := l.pos
	l.skipSpace()
	if l.peek() == ',' {
		l.pos++
		l.skipSpace()
		return true
	}
	l.pos = save
	return false
}

func (l *lexer) next() (directive.Token, error) {
	c := l.peek()
	switch {
	case strings.HasPrefix(string(l.src[l.pos:]), exprPrefix):
		return l.expression()
	case c == ':':
		return l.columns()
	case c == '\'' || c == '"':
		return l.texts()
	case isNumberStart(l.src[l.pos:]):
		return l.number()
	}
	return l.word()
}

func (l *lexer) columns() (directive.Token, error) {
	start := l.pos
	var names []string
	for {
		if l.peek() != ':' {
			return directive.Token{}, syntaxErr("expected ':' to start a column, found %q", string(l.peek()))
		}
		l.pos++
		name := l.readWhile(isNameRune)
		if name == "" {
			return directive.Token{}, syntaxErr("missing column name after ':'")
		}
		names = append(names, name)
		if !l.list() {
			break
		}
	}
	text := string(l.src[start:l.pos])
	if len(names) == 1 {
		return directive.Token{Type: directive.TokenColumn, Text: text, Value: names[0]}, nil
	}
	return directive.Token{Type: directive.TokenColumnList, Text: text, Value: names}, nil
}

func (l *lexer) texts() (directive.Token, error) {
	start := l.pos
	var vals []string
	for {
		s, err := l.quoted()
		if err != nil {
			return directive.Token{}, err
		}
		vals = append(vals, s)
		if !l.list() {
			break
		}
	}
	text := string(l.src[start:l.pos])
	if len(vals) == 1 {
		return directive.Token{Type: directive.TokenText, Text: text, Value: vals[0]}, nil
	}
	return directive.Token{Type: directive.TokenTextList, Text: text, Value: vals}, nil
}

func (l *lexer) quoted() (string, error) {
	q := l.peek()
	if q != '\'' && q != '"' {
		return "", syntaxErr("expected quoted text, found %q", string(q))
	}
	l.pos++
	var b strings.Builder
	for !l.eof() {
		c := l.src[l.pos]
		l.pos++
		switch {
		case c == q:
			return b.String(), nil
		case c == '\\' && !l.eof():
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(e)
			}
		default:
			b.WriteRune(c)
		}
	}
	return "", syntaxErr("unterminated quoted text")
}

func (l *lexer) number() (directive.Token, error) {
	text := l.readWhile(func(r rune) bool { return !unicode.IsSpace(r) && r != ',' })
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return directive.Token{}, syntaxErr("invalid number %q", text)
	}
	return directive.Token{Type: directive.TokenNumber, Text: text, Value: f}, nil
}

func (l *lexer) expression() (directive.Token, error) {
	start := l.pos
	l.pos += len(exprPrefix)
	depth := 1
	var quote rune
	for !l.eof() {
		c := l.src[l.pos]
		l.pos++
		if quote != 0 {
			if c == '\\' && !l.eof() {
				l.pos++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				body := string(l.src[start+len(exprPrefix) : l.pos-1])
				return directive.Token{
					Type:  directive.TokenExpression,
					Text:  string(l.src[start:l.pos]),
					Value: strings.TrimSpace(body),
				}, nil
			}
		}
	}
	return directive.Token{}, syntaxErr("unterminated expression block")
}

func (l *lexer) word() (directive.Token, error) {
	w := l.readWhile(func(r rune) bool { return !unicode.IsSpace(r) })
	switch w {
	case "true":
		return directive.Token{Type: directive.TokenBool, Text: w, Value: true}, nil
	case "false":
		return directive.Token{Type: directive.TokenBool, Text: w, Value: false}, nil
	}
	if !isIdentifier(w) {
		return directive.Token{}, syntaxErr("unexpected %q", w)
	}
	return directive.Token{Type: directive.TokenIdentifier, Text: w, Value: w}, nil
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if i == 0 && !(unicode.IsLetter(r) || r == '_') {
			return false
		}
		if !isNameRune(r) {
			return false
		}
	}
	return s != ""
}

func isNumberStart(rs []rune) bool {
	if len(rs) == 0 {
		return false
	}
	c := rs[0]
	if c == '-' || c == '+' || c == '.' {
		return len(rs) > 1 && unicode.IsDigit(rs[1])
	}
	return unicode.IsDigit(c)
}

type lexError struct{ msg string }

func (e *lexError) Error() string { return e.msg }

func syntaxErr(format string, args ...any) error {
	return &lexError{msg: fmt.Sprintf(format, args...)}
}
