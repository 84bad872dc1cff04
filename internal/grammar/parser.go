package grammar

import (
	"errors"
	"fmt"
	"strings"

	"txservice/internal/directive"
	"txservice/internal/registry"
)

// Config holds parser initialization options: directive aliases (alias ->
// directive name) and names that recipes may not use.
type Config struct {
	Aliases    map[string]string `koanf:"aliases" yaml:"aliases"`
	Exclusions []string          `koanf:"exclusions" yaml:"exclusions"`
}

// Parser compiles canonical recipe text against a registry. It keeps no
// per-parse state and may be shared.
type Parser struct {
	registry registry.Registry
	aliases  map[string]string
	excluded map[string]struct{}
}

func NewParser(reg registry.Registry, cfg Config) *Parser {
	p := &Parser{
		registry: reg,
		aliases:  make(map[string]string, len(cfg.Aliases)),
		excluded: make(map[string]struct{}, len(cfg.Exclusions)),
	}
	for k, v := range cfg.Aliases {
		p.aliases[k] = v
	}
	for _, name := range cfg.Exclusions {
		p.excluded[name] = struct{}{}
	}
	return p
}

// Parse compiles text in a single left-to-right pass. Each directive is
// instantiated and initialized with its arguments but never executed.
func (p *Parser) Parse(name, text string) (*Recipe, error) {
	stmts, err := splitStatements(text)
	if err != nil {
		return nil, err
	}
	r := &Recipe{Name: name}
	for i, stmt := range stmts {
		idx := i + 1
		if isPragma(stmt) {
			if err := p.pragma(r, idx, stmt); err != nil {
				return nil, err
			}
			continue
		}
		step, err := p.statement(idx, stmt)
		if err != nil {
			return nil, err
		}
		r.steps = append(r.steps, step)
	}
	return r, nil
}

func (p *Parser) statement(idx int, stmt string) (Step, error) {
	fail := func(err error, format string, args ...any) (Step, error) {
		return Step{}, &ParseError{Index: idx, Statement: stmt, Reason: fmt.Sprintf(format, args...), Err: err}
	}

	toks, err := tokenize(stmt)
	if err != nil {
		return fail(ErrSyntax, "%v", err)
	}
	if toks[0].Type != directive.TokenIdentifier {
		return fail(ErrSyntax, "statement must start with a directive name, found %s %q", toks[0].Type, toks[0].Text)
	}

	info, err := p.resolve(toks[0].Text)
	if err != nil {
		return fail(err, "%v", err)
	}

	d := info.Factory()
	usage := d.Define()
	args, err := bind(usage, toks[1:])
	if err != nil {
		return fail(err, "%v; usage: %s", err, usage)
	}
	if err := d.Initialize(args); err != nil {
		if errors.Is(err, directive.ErrInvalidArgument) {
			return fail(err, "%v", err)
		}
		return fail(err, "initializing %s: %v", info.Name, err)
	}
	return Step{
		Index:      idx,
		Statement:  stmt,
		Invocation: directive.Invocation{Name: info.Name, Args: args},
		Directive:  d,
	}, nil
}

func (p *Parser) resolve(name string) (*directive.Info, error) {
	if _, ok := p.excluded[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrExcludedDirective, name)
	}
	target := name
	if alias, ok := p.aliases[name]; ok {
		target = alias
	}
	if _, ok := p.excluded[target]; ok {
		return nil, fmt.Errorf("%w: %q", ErrExcludedDirective, target)
	}
	info, ok := p.registry.Get(target)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDirective, name)
	}
	return info, nil
}

func bind(u *directive.Usage, toks []directive.Token) (*directive.Arguments, error) {
	if len(toks) < u.Required() {
		return nil, fmt.Errorf("%w: %s expects at least %d, got %d", ErrArity, u.Directive, u.Required(), len(toks))
	}
	if len(toks) > len(u.Params) {
		return nil, fmt.Errorf("%w: %s expects at most %d, got %d", ErrArity, u.Directive, len(u.Params), len(toks))
	}
	args := directive.NewArguments()
	for i, tok := range toks {
		param := u.Params[i]
		if !directive.Accepts(param.Type, tok.Type) {
			return nil, fmt.Errorf("%w: argument %q expects %s, found %s %q",
				ErrArgumentType, param.Name, param.Type, tok.Type, tok.Text)
		}
		if param.Type != tok.Type {
			tok = directive.Token{Type: param.Type, Text: tok.Text, Value: []string{tok.Value.(string)}}
		}
		args.Bind(param.Name, tok)
	}
	return args, nil
}

func (p *Parser) pragma(r *Recipe, idx int, stmt string) error {
	fields := strings.Fields(strings.TrimPrefix(stmt, "#pragma"))
	fail := func(err error, format string, args ...any) error {
		return &ParseError{Index: idx, Statement: stmt, Reason: fmt.Sprintf(format, args...), Err: err}
	}
	if len(fields) == 0 {
		return fail(ErrSyntax, "empty pragma")
	}
	switch fields[0] {
	case "version":
		if len(fields) != 2 {
			return fail(ErrSyntax, "pragma version expects one value")
		}
		r.Version = fields[1]
	case "load-directives":
		names := strings.Split(strings.Join(fields[1:], ""), ",")
		for _, n := range names {
			if n == "" {
				continue
			}
			info, err := p.resolve(n)
			if err != nil {
				return fail(err, "%v", err)
			}
			r.LoadDirectives = append(r.LoadDirectives, info.Name)
		}
	default:
		return fail(ErrSyntax, "unknown pragma %q", fields[0])
	}
	return nil
}
