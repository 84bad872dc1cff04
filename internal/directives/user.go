package directives

import (
	"context"

	"txservice/internal/directive"
	"txservice/internal/row"
)

// UserDefinition describes a directive supplied by configuration rather than
// code. It takes one column argument and replaces that column's value with
// the result of Expression, evaluated with value bound to the old value.
type UserDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Expression  string `yaml:"expression"`
}

// UserFactory compiles def once and returns a factory for it.
func UserFactory(def UserDefinition) (directive.Factory, error) {
	expr, err := CompileExpression(def.Expression)
	if err != nil {
		return nil, err
	}
	return func() directive.Directive {
		return &userDirective{name: def.Name, expr: expr}
	}, nil
}

type userDirective struct {
	name   string
	expr   *Expression
	column string
}

func (d *userDirective) Define() *directive.Usage {
	return directive.NewUsage(d.name).Define("column", directive.TokenColumn)
}

func (d *userDirective) Initialize(args *directive.Arguments) error {
	d.column = args.String("column")
	return nil
}

func (d *userDirective) Execute(ctx context.Context, rows []*row.Row, ectx directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		i := r.Find(d.column)
		if i < 0 {
			return nil, directive.Errorf(d.name, "column '%s' not found", d.column)
		}
		v, err := d.expr.Eval(ctx, r, r.ValueAt(i), ectx)
		if err != nil {
			return nil, directive.Wrap(d.name, err, "evaluating '%s'", d.expr.Source)
		}
		r.SetValueAt(i, v)
	}
	return rows, nil
}
