package grammar

import (
	"strings"
)

// VersionPragma marks recipe text that is already in the current grammar.
const VersionPragma = "#pragma version 2.0"

type legacyRewrite func(args []string) (string, bool)

// legacy maps directive commands of the older, whitespace-separated grammar
// (bare column names, free-text trailing arguments) to a rewrite producing
// the canonical form without the command name.
var legacy = map[string]legacyRewrite{
	"uppercase":           oneColumn("uppercase"),
	"lowercase":           oneColumn("lowercase"),
	"trim":                oneColumn("trim"),
	"parse-number":        oneColumn("parse-number"),
	"rename":              twoColumns("rename"),
	"copy":                copyColumn,
	"drop":                columnList("drop"),
	"keep":                columnList("keep"),
	"split-to-rows":       columnAndText("split-to-rows"),
	"split-to-columns":    columnAndText("split-to-columns"),
	"fill-null-or-empty":  columnAndText("fill-null-or-empty"),
	"parse-as-json":       parseAsJSON,
	"set":                 setColumn,
	"set-column":          columnAndExpr("set-column"),
	"set-variable":        nameAndExpr("set-variable"),
	"filter-row-if-true":  filterRow(true),
	"filter-row-if-false": filterRow(false),
}

// exprCommands take a free-form trailing expression that may itself contain
// quotes, so only an exp:{} block marks them as canonical.
var exprCommands = map[string]bool{
	"set":                 true,
	"set-column":          true,
	"set-variable":        true,
	"filter-row-if-true":  true,
	"filter-row-if-false": true,
}

// Migrate rewrites a recipe written in the legacy grammar into the canonical
// grammar. It never fails: anything it cannot rewrite is passed through for
// the parser to judge. Text that already carries the version pragma is
// returned unchanged, and every rewrite starts with that pragma, so
// Migrate(Migrate(x)) == Migrate(x).
func Migrate(recipe string) string {
	stmts, err := splitStatements(recipe)
	if err != nil || hasVersionPragma(stmts) {
		return recipe
	}
	if len(stmts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(stmts)+1)
	lines = append(lines, VersionPragma+";")
	for _, s := range stmts {
		lines = append(lines, migrateStatement(s)+";")
	}
	return strings.Join(lines, "\n")
}

// hasVersionPragma reports whether a statement, not a comment or quoted
// text, declares the current grammar version.
func hasVersionPragma(stmts []string) bool {
	want := strings.Fields(VersionPragma)
	for _, s := range stmts {
		if !isPragma(s) {
			continue
		}
		f := strings.Fields(s)
		if len(f) == len(want) && f[1] == want[1] && f[2] == want[2] {
			return true
		}
	}
	return false
}

func migrateStatement(stmt string) string {
	if isPragma(stmt) || isCanonical(stmt) {
		return stmt
	}
	fields := strings.Fields(stmt)
	rewrite, ok := legacy[fields[0]]
	if !ok {
		return stmt
	}
	out, ok := rewrite(fields[1:])
	if !ok {
		return stmt
	}
	return out
}

// isCanonical reports whether a statement already uses current-grammar
// argument syntax: a ':column', quoted text or an expression block.
func isCanonical(stmt string) bool {
	if strings.Contains(stmt, exprPrefix) {
		return true
	}
	fields := strings.Fields(stmt)
	if exprCommands[fields[0]] {
		return false
	}
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, ":") || strings.HasPrefix(f, "'") || strings.HasPrefix(f, `"`) {
			return true
		}
	}
	return false
}

func col(name string) string {
	if strings.HasPrefix(name, ":") {
		return name
	}
	return ":" + name
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func oneColumn(cmd string) legacyRewrite {
	return func(a []string) (string, bool) {
		if len(a) != 1 {
			return "", false
		}
		return cmd + " " + col(a[0]), true
	}
}

func twoColumns(cmd string) legacyRewrite {
	return func(a []string) (string, bool) {
		if len(a) != 2 {
			return "", false
		}
		return cmd + " " + col(a[0]) + " " + col(a[1]), true
	}
}

func columnList(cmd string) legacyRewrite {
	return func(a []string) (string, bool) {
		if len(a) == 0 {
			return "", false
		}
		var cols []string
		for _, c := range strings.Split(strings.Join(a, ""), ",") {
			if c != "" {
				cols = append(cols, col(c))
			}
		}
		return cmd + " " + strings.Join(cols, ","), true
	}
}

func columnAndText(cmd string) legacyRewrite {
	return func(a []string) (string, bool) {
		if len(a) < 2 {
			return "", false
		}
		return cmd + " " + col(a[0]) + " " + quote(strings.Join(a[1:], " ")), true
	}
}

func columnAndExpr(cmd string) legacyRewrite {
	return func(a []string) (string, bool) {
		if len(a) < 2 {
			return "", false
		}
		return cmd + " " + col(a[0]) + " " + exprPrefix + strings.Join(a[1:], " ") + "}", true
	}
}

func nameAndExpr(cmd string) legacyRewrite {
	return func(a []string) (string, bool) {
		if len(a) < 2 {
			return "", false
		}
		return cmd + " " + a[0] + " " + exprPrefix + strings.Join(a[1:], " ") + "}", true
	}
}

func filterRow(flag bool) legacyRewrite {
	f := "false"
	if flag {
		f = "true"
	}
	return func(a []string) (string, bool) {
		if len(a) == 0 {
			return "", false
		}
		return "filter-row " + exprPrefix + strings.Join(a, " ") + "} " + f, true
	}
}

func copyColumn(a []string) (string, bool) {
	switch len(a) {
	case 2:
		return "copy " + col(a[0]) + " " + col(a[1]), true
	case 3:
		return "copy " + col(a[0]) + " " + col(a[1]) + " " + a[2], true
	}
	return "", false
}

func parseAsJSON(a []string) (string, bool) {
	switch len(a) {
	case 1:
		return "parse-as-json " + col(a[0]), true
	case 2:
		return "parse-as-json " + col(a[0]) + " " + a[1], true
	}
	return "", false
}

// setColumn handles the legacy "set column <name> <expr>" form.
func setColumn(a []string) (string, bool) {
	if len(a) >= 3 && a[0] == "column" {
		return columnAndExpr("set-column")(a[1:])
	}
	return "", false
}
