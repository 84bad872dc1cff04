package directives

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"txservice/internal/directive"
	"txservice/internal/row"
)

// parseAsJSON decodes a text column. Objects are flattened into
// <column>_<key> fields down to depth levels, keys in sorted order, and the
// source column is removed. Any other JSON value replaces the column value.
type parseAsJSON struct {
	column string
	depth  int
}

func (d *parseAsJSON) Define() *directive.Usage {
	return directive.NewUsage("parse-as-json").
		Define("column", directive.TokenColumn).
		Optional("depth", directive.TokenNumber)
}

func (d *parseAsJSON) Initialize(args *directive.Arguments) error {
	d.column = args.String("column")
	depth := args.Number("depth", 1)
	if depth < 1 || depth != math.Trunc(depth) {
		return directive.InvalidArgf("depth must be a positive integer, got %v", depth)
	}
	d.depth = int(depth)
	return nil
}

func (d *parseAsJSON) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	for _, r := range rows {
		i := r.Find(d.column)
		if i < 0 {
			continue
		}
		var raw []byte
		switch v := r.ValueAt(i).(type) {
		case nil:
			continue
		case string:
			raw = []byte(v)
		case []byte:
			raw = v
		default:
			return nil, directive.Errorf("parse-as-json", "column '%s' holds %T, expected string", d.column, v)
		}
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, directive.Wrap("parse-as-json", err, "column '%s' is not valid JSON", d.column)
		}
		obj, ok := parsed.(map[string]any)
		if !ok {
			r.SetValueAt(i, parsed)
			continue
		}
		r.Remove(i)
		flatten(r, d.column, obj, d.depth)
	}
	return rows, nil
}

func flatten(r *row.Row, prefix string, obj map[string]any, depth int) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := prefix + "_" + k
		if nested, ok := obj[k].(map[string]any); ok && depth > 1 {
			flatten(r, name, nested, depth-1)
			continue
		}
		r.Set(name, obj[k])
	}
}
