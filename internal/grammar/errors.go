package grammar

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax            = errors.New("syntax error")
	ErrUnknownDirective  = errors.New("unknown directive")
	ErrExcludedDirective = errors.New("directive is excluded")
	ErrArity             = errors.New("wrong number of arguments")
	ErrArgumentType      = errors.New("wrong argument type")
)

// ParseError identifies the recipe statement that failed to compile.
// Index is 1-based over non-comment statements.
type ParseError struct {
	Index     int
	Statement string
	Reason    string
	Err       error
}

func (e *ParseError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("error at statement %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("error at statement %d '%s': %s", e.Index, e.Statement, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
