package directives

import (
	"context"

	"txservice/internal/directive"
	"txservice/internal/row"
)

type rename struct {
	from, to string
}

func (d *rename) Define() *directive.Usage {
	return directive.NewUsage("rename").
		Define("source", directive.TokenColumn).
		Define("destination", directive.TokenColumn)
}

func (d *rename) Initialize(args *directive.Arguments) error {
	d.from, d.to = args.String("source"), args.String("destination")
	return nil
}

func (d *rename) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	if d.from == d.to {
		return rows, nil
	}
	for _, r := range rows {
		i := r.Find(d.from)
		if i < 0 {
			return nil, directive.Errorf("rename", "column '%s' not found", d.from)
		}
		if r.Find(d.to) >= 0 {
			return nil, directive.Errorf("rename", "column '%s' already exists", d.to)
		}
		r.Rename(i, d.to)
	}
	return rows, nil
}

// drop removes every field whose name is listed; absent names are ignored.
type drop struct {
	columns map[string]struct{}
}

func (d *drop) Define() *directive.Usage {
	return directive.NewUsage("drop").Define("columns", directive.TokenColumnList)
}

func (d *drop) Initialize(args *directive.Arguments) error {
	d.columns = set(args.Strings("columns"))
	return nil
}

func (d *drop) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		for i := r.Width() - 1; i >= 0; i-- {
			if _, ok := d.columns[r.NameAt(i)]; ok {
				r.Remove(i)
			}
		}
	}
	return rows, nil
}

// keep removes every field whose name is not listed.
type keep struct {
	columns map[string]struct{}
}

func (d *keep) Define() *directive.Usage {
	return directive.NewUsage("keep").Define("columns", directive.TokenColumnList)
}

func (d *keep) Initialize(args *directive.Arguments) error {
	d.columns = set(args.Strings("columns"))
	return nil
}

func (d *keep) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		for i := r.Width() - 1; i >= 0; i-- {
			if _, ok := d.columns[r.NameAt(i)]; !ok {
				r.Remove(i)
			}
		}
	}
	return rows, nil
}

type copyColumn struct {
	from, to string
	force    bool
}

func (d *copyColumn) Define() *directive.Usage {
	return directive.NewUsage("copy").
		Define("source", directive.TokenColumn).
		Define("destination", directive.TokenColumn).
		Optional("force", directive.TokenBool)
}

func (d *copyColumn) Initialize(args *directive.Arguments) error {
	d.from, d.to = args.String("source"), args.String("destination")
	d.force = args.Bool("force", false)
	return nil
}

func (d *copyColumn) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		i := r.Find(d.from)
		if i < 0 {
			return nil, directive.Errorf("copy", "column '%s' not found", d.from)
		}
		if r.Find(d.to) >= 0 && !d.force {
			return nil, directive.Errorf("copy", "column '%s' already exists; pass force to overwrite", d.to)
		}
		r.Set(d.to, r.ValueAt(i))
	}
	return rows, nil
}

// fillNullOrEmpty replaces null and empty-string values. A missing column
// counts as null.
type fillNullOrEmpty struct {
	column string
	value  string
}

func (d *fillNullOrEmpty) Define() *directive.Usage {
	return directive.NewUsage("fill-null-or-empty").
		Define("column", directive.TokenColumn).
		Define("value", directive.TokenText)
}

func (d *fillNullOrEmpty) Initialize(args *directive.Arguments) error {
	d.column, d.value = args.String("column"), args.String("value")
	if d.value == "" {
		return directive.InvalidArgf("fill value for '%s' must not be empty", d.column)
	}
	return nil
}

func (d *fillNullOrEmpty) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		i := r.Find(d.column)
		if i < 0 {
			r.Add(d.column, d.value)
			continue
		}
		switch v := r.ValueAt(i).(type) {
		case nil:
			r.SetValueAt(i, d.value)
		case string:
			if v == "" {
				r.SetValueAt(i, d.value)
			}
		}
	}
	return rows, nil
}

func set(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}
