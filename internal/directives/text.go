package directives

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"txservice/internal/directive"
	"txservice/internal/row"
)

// stringOp applies fn to a string column. Rows without the column are left
// alone; non-string values are an error.
type stringOp struct {
	name   string
	fn     func(string) string
	column string
}

func newStringOp(name string, fn func(string) string) directive.Factory {
	return func() directive.Directive { return &stringOp{name: name, fn: fn} }
}

func (d *stringOp) Define() *directive.Usage {
	return directive.NewUsage(d.name).Define("column", directive.TokenColumn)
}

func (d *stringOp) Initialize(args *directive.Arguments) error {
	d.column = args.String("column")
	return nil
}

func (d *stringOp) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		i := r.Find(d.column)
		if i < 0 {
			continue
		}
		switch v := r.ValueAt(i).(type) {
		case nil:
		case string:
			r.SetValueAt(i, d.fn(v))
		case []byte:
			r.SetValueAt(i, d.fn(string(v)))
		default:
			return nil, directive.Errorf(d.name, "column '%s' holds %T, expected string", d.column, v)
		}
	}
	return rows, nil
}

// parseNumber converts a text column to int64 when integral, float64
// otherwise.
type parseNumber struct {
	column string
}

func (d *parseNumber) Define() *directive.Usage {
	return directive.NewUsage("parse-number").Define("column", directive.TokenColumn)
}

func (d *parseNumber) Initialize(args *directive.Arguments) error {
	d.column = args.String("column")
	return nil
}

func (d *parseNumber) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		i := r.Find(d.column)
		if i < 0 {
			return nil, directive.Errorf("parse-number", "column '%s' not found", d.column)
		}
		var s string
		switch v := r.ValueAt(i).(type) {
		case nil, int, int64, float64:
			continue
		case string:
			s = v
		case []byte:
			s = string(v)
		default:
			return nil, directive.Errorf("parse-number", "column '%s' holds %T, expected string", d.column, v)
		}
		n, err := parseNumeric(strings.TrimSpace(s))
		if err != nil {
			return nil, directive.Errorf("parse-number", "value '%s' in column '%s' could not be parsed as a number", s, d.column)
		}
		r.SetValueAt(i, n)
	}
	return rows, nil
}

func parseNumeric(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}
