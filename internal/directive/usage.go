package directive

import (
	"fmt"
	"strings"
)

// Param is one positional parameter of a directive.
type Param struct {
	Name     string
	Type     TokenType
	Optional bool
}

// Usage is the argument schema of a directive. Optional parameters must
// trail the required ones.
type Usage struct {
	Directive string
	Params    []Param
}

// NewUsage starts a usage definition for the named directive.
func NewUsage(name string) *Usage { return &Usage{Directive: name} }

func (u *Usage) Define(name string, t TokenType) *Usage {
	u.Params = append(u.Params, Param{Name: name, Type: t})
	return u
}

func (u *Usage) Optional(name string, t TokenType) *Usage {
	u.Params = append(u.Params, Param{Name: name, Type: t, Optional: true})
	return u
}

// Required is the number of non-optional parameters.
func (u *Usage) Required() int {
	n := 0
	for _, p := range u.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// Accepts reports whether a token of type got can bind to a parameter of
// type want. Single columns and texts promote to their list forms.
func Accepts(want, got TokenType) bool {
	if want == got {
		return true
	}
	switch want {
	case TokenColumnList:
		return got == TokenColumn
	case TokenTextList:
		return got == TokenText
	}
	return false
}

// String renders the usage as it would appear in a recipe, for example
// "copy <source:column> <destination:column> [<force:bool>]".
func (u *Usage) String() string {
	var b strings.Builder
	b.WriteString(u.Directive)
	for _, p := range u.Params {
		arg := fmt.Sprintf("<%s:%s>", p.Name, p.Type)
		if p.Optional {
			arg = "[" + arg + "]"
		}
		b.WriteByte(' ')
		b.WriteString(arg)
	}
	return b.String()
}
