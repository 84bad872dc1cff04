// Package directives holds the built-in directive implementations.
package directives

import (
	"strings"

	"txservice/internal/directive"
)

// Builtins returns fresh metadata for every system directive, sorted by
// name.
func Builtins() []*directive.Info {
	return []*directive.Info{
		system("copy", "Copies a column's value into another column.",
			func() directive.Directive { return &copyColumn{} }),
		system("drop", "Removes the listed columns.",
			func() directive.Directive { return &drop{} }),
		system("fill-null-or-empty", "Fills null or empty values of a column with a fixed text.",
			func() directive.Directive { return &fillNullOrEmpty{} }),
		system("filter-row", "Removes rows for which the condition equals the flag.",
			func() directive.Directive { return &filterRow{} }),
		system("increment-variable", "Increments a transient counter for every (matching) row.",
			func() directive.Directive { return &incrementVariable{} }),
		system("keep", "Keeps only the listed columns.",
			func() directive.Directive { return &keep{} }),
		system("lowercase", "Lowercases a text column.",
			newStringOp("lowercase", strings.ToLower)),
		system("parse-as-json", "Parses a JSON text column, flattening objects into columns.",
			func() directive.Directive { return &parseAsJSON{} }),
		system("parse-number", "Parses a text column into a number.",
			func() directive.Directive { return &parseNumber{} }),
		system("rename", "Renames a column.",
			func() directive.Directive { return &rename{} }),
		system("set-column", "Sets a column to the result of an expression.",
			func() directive.Directive { return &setColumn{} }),
		system("set-variable", "Stores an expression result in the transient store.",
			func() directive.Directive { return &setVariable{} }),
		system("split-to-columns", "Splits a text column on a regular expression into numbered columns.",
			func() directive.Directive { return &splitToColumns{} }),
		system("split-to-rows", "Splits a text column on a separator into one row per piece.",
			func() directive.Directive { return &splitToRows{} }),
		system("trim", "Trims surrounding whitespace from a text column.",
			newStringOp("trim", strings.TrimSpace)),
		system("uppercase", "Uppercases a text column.",
			newStringOp("uppercase", strings.ToUpper)),
	}
}

func system(name, desc string, f directive.Factory) *directive.Info {
	return &directive.Info{Name: name, Description: desc, Scope: directive.ScopeSystem, Factory: f}
}
