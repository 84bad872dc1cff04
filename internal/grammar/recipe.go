package grammar

import (
	"strings"

	"txservice/internal/directive"
)

// Step is one compiled statement: the invocation and the directive instance
// initialized with its arguments.
type Step struct {
	Index      int
	Statement  string
	Invocation directive.Invocation
	Directive  directive.Directive
}

// Recipe is a compiled, registry-bound directive sequence. Its steps are
// fixed once Parse returns.
type Recipe struct {
	Name           string
	Version        string
	LoadDirectives []string
	steps          []Step
}

func (r *Recipe) Len() int { return len(r.steps) }

// Steps returns the steps in execution order.
func (r *Recipe) Steps() []Step { return append([]Step(nil), r.steps...) }

// Canonical renders the compiled recipe back into canonical text, one
// statement per line, with aliases resolved.
func (r *Recipe) Canonical() string {
	lines := make([]string, 0, len(r.steps))
	for _, s := range r.steps {
		line := s.Invocation.Name
		if s.Invocation.Args.Len() > 0 {
			line += " " + s.Invocation.Args.Canonical()
		}
		lines = append(lines, line+";")
	}
	return strings.Join(lines, "\n")
}
