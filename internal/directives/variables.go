package directives

import (
	"context"
	"math"

	"txservice/internal/directive"
	"txservice/internal/row"
)

// setVariable stores the expression result for each row under name in the
// local scope; the last row wins.
type setVariable struct {
	name string
	expr *Expression
}

func (d *setVariable) Define() *directive.Usage {
	return directive.NewUsage("set-variable").
		Define("name", directive.TokenIdentifier).
		Define("expression", directive.TokenExpression)
}

func (d *setVariable) Initialize(args *directive.Arguments) (err error) {
	d.name = args.String("name")
	d.expr, err = CompileExpression(args.String("expression"))
	return err
}

func (d *setVariable) Execute(ctx context.Context, rows []*row.Row, ectx directive.ExecutorContext) ([]*row.Row, error) {
	st := ectx.TransientStore()
	if st == nil {
		return nil, directive.Errorf("set-variable", "no transient store configured")
	}
	for _, r := range rows {
		v, err := d.expr.Eval(ctx, r, nil, ectx)
		if err != nil {
			return nil, directive.Wrap("set-variable", err, "evaluating '%s'", d.name)
		}
		if err := st.Set(ctx, directive.ScopeLocal, d.name, v); err != nil {
			return nil, directive.Wrap("set-variable", err, "storing '%s'", d.name)
		}
	}
	return rows, nil
}

// incrementVariable adds delta to a global counter once per row, or once per
// row matching the optional condition.
type incrementVariable struct {
	name  string
	delta int64
	cond  *Expression
}

func (d *incrementVariable) Define() *directive.Usage {
	return directive.NewUsage("increment-variable").
		Define("name", directive.TokenIdentifier).
		Define("delta", directive.TokenNumber).
		Optional("condition", directive.TokenExpression)
}

func (d *incrementVariable) Initialize(args *directive.Arguments) error {
	d.name = args.String("name")
	delta := args.Number("delta", 1)
	if delta != math.Trunc(delta) {
		return directive.InvalidArgf("delta for '%s' must be an integer, got %v", d.name, delta)
	}
	d.delta = int64(delta)
	if args.Has("condition") {
		expr, err := CompileExpression(args.String("condition"))
		if err != nil {
			return err
		}
		d.cond = expr
	}
	return nil
}

func (d *incrementVariable) Execute(ctx context.Context, rows []*row.Row, ectx directive.ExecutorContext) ([]*row.Row, error) {
	st := ectx.TransientStore()
	if st == nil {
		return nil, directive.Errorf("increment-variable", "no transient store configured")
	}
	for _, r := range rows {
		if d.cond != nil {
			ok, err := d.cond.EvalBool(ctx, r, ectx)
			if err != nil {
				return nil, directive.Wrap("increment-variable", err, "evaluating condition")
			}
			if !ok {
				continue
			}
		}
		if _, err := st.Increment(ctx, directive.ScopeGlobal, d.name, d.delta); err != nil {
			return nil, directive.Wrap("increment-variable", err, "incrementing '%s'", d.name)
		}
	}
	return rows, nil
}
