package directives

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"txservice/internal/directive"
	"txservice/internal/row"
)

type setColumn struct {
	column string
	expr   *Expression
}

func (d *setColumn) Define() *directive.Usage {
	return directive.NewUsage("set-column").
		Define("column", directive.TokenColumn).
		Define("expression", directive.TokenExpression)
}

func (d *setColumn) Initialize(args *directive.Arguments) (err error) {
	d.column = args.String("column")
	d.expr, err = CompileExpression(args.String("expression"))
	return err
}

func (d *setColumn) Execute(ctx context.Context, rows []*row.Row, ectx directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		cur, _ := r.Value(d.column)
		v, err := d.expr.Eval(ctx, r, cur, ectx)
		if err != nil {
			return nil, directive.Wrap("set-column", err, "evaluating expression for '%s'", d.column)
		}
		r.Set(d.column, v)
	}
	return rows, nil
}

// filterRow removes the rows for which the condition equals the flag. With
// no flag, matching rows are removed.
type filterRow struct {
	cond *Expression
	flag bool
}

func (d *filterRow) Define() *directive.Usage {
	return directive.NewUsage("filter-row").
		Define("condition", directive.TokenExpression).
		Optional("flag", directive.TokenBool)
}

func (d *filterRow) Initialize(args *directive.Arguments) (err error) {
	d.flag = args.Bool("flag", true)
	d.cond, err = CompileExpression(args.String("condition"))
	return err
}

func (d *filterRow) Execute(ctx context.Context, rows []*row.Row, ectx directive.ExecutorContext) ([]*row.Row, error) {
	out := make([]*row.Row, 0, len(rows))
	for _, r := range rows {
		ok, err := d.cond.EvalBool(ctx, r, ectx)
		if err != nil {
			return nil, directive.Wrap("filter-row", err, "evaluating condition")
		}
		if ok != d.flag {
			out = append(out, r)
		}
	}
	return out, nil
}

// splitToRows emits one copy of the row per separator-delimited piece of a
// text column.
type splitToRows struct {
	column    string
	separator string
}

func (d *splitToRows) Define() *directive.Usage {
	return directive.NewUsage("split-to-rows").
		Define("column", directive.TokenColumn).
		Define("separator", directive.TokenText)
}

func (d *splitToRows) Initialize(args *directive.Arguments) error {
	d.column, d.separator = args.String("column"), args.String("separator")
	if d.separator == "" {
		return directive.InvalidArgf("separator for '%s' must not be empty", d.column)
	}
	return nil
}

func (d *splitToRows) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	out := make([]*row.Row, 0, len(rows))
	for _, r := range rows {
		i := r.Find(d.column)
		if i < 0 {
			out = append(out, r)
			continue
		}
		s, ok := r.ValueAt(i).(string)
		if !ok {
			out = append(out, r)
			continue
		}
		for _, part := range strings.Split(s, d.separator) {
			c := r.Clone()
			c.SetValueAt(i, part)
			out = append(out, c)
		}
	}
	return out, nil
}

// splitToColumns splits a text column on a regular expression into
// <column>_1 .. <column>_n.
type splitToColumns struct {
	column string
	re     *regexp.Regexp
}

func (d *splitToColumns) Define() *directive.Usage {
	return directive.NewUsage("split-to-columns").
		Define("column", directive.TokenColumn).
		Define("regex", directive.TokenText)
}

func (d *splitToColumns) Initialize(args *directive.Arguments) (err error) {
	d.column = args.String("column")
	d.re, err = regexp.Compile(args.String("regex"))
	if err != nil {
		return directive.InvalidArgf("regex for '%s': %v", d.column, err)
	}
	return nil
}

func (d *splitToColumns) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		v, ok := r.Value(d.column)
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, directive.Errorf("split-to-columns", "column '%s' holds %T, expected string", d.column, v)
		}
		for n, part := range d.re.Split(s, -1) {
			r.Set(d.column+"_"+strconv.Itoa(n+1), part)
		}
	}
	return rows, nil
}
