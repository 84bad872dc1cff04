// Package directive defines the contract between the recipe pipeline and the
// directive implementations it runs. A directive is a named, parameterized
// operation over a row set; implementations are registered by name as
// factories and instantiated once per compiled recipe step.
package directive

import (
	"context"

	"txservice/internal/row"
)

// Directive is one behaviour unit of a recipe.
//
// Define describes the accepted arguments and is consulted by the parser
// before Initialize. Initialize validates and stores the bound arguments; it
// must not touch rows or the transient store. Execute receives the current
// row set and returns the next one.
type Directive interface {
	Define() *Usage
	Initialize(args *Arguments) error
	Execute(ctx context.Context, rows []*row.Row, ectx ExecutorContext) ([]*row.Row, error)
}

// Factory builds a fresh Directive instance.
type Factory func() Directive

// Scope tells where a registry entry came from.
type Scope string

const (
	ScopeSystem Scope = "system"
	ScopeUser   Scope = "user"
)

// Info is a registry entry.
type Info struct {
	Name        string
	Description string
	Scope       Scope
	Factory     Factory
}

// Usage returns the argument definition of the directive.
func (i *Info) Usage() *Usage {
	return i.Factory().Define()
}

// Invocation is a parsed directive statement: the resolved name and its
// bound arguments. It is not modified after parsing.
type Invocation struct {
	Name string
	Args *Arguments
}
