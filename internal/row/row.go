// Package row defines the record that flows through a recipe: an ordered
// list of named fields. Names may repeat; lookups return the first match.
package row

import (
	"bytes"
	"encoding/json"
)

type Field struct {
	Name  string
	Value any
}

type Row struct {
	fields []Field
}

// New returns a row holding a single field.
func New(name string, value any) *Row {
	return &Row{fields: []Field{{Name: name, Value: value}}}
}

// FromFields copies fs into a new row.
func FromFields(fs ...Field) *Row {
	return &Row{fields: append([]Field(nil), fs...)}
}

func (r *Row) Width() int { return len(r.fields) }

// Fields returns the backing slice; callers must not retain it across mutations.
func (r *Row) Fields() []Field { return r.fields }

// Find returns the index of the first field called name, or -1.
func (r *Row) Find(name string) int {
	for i, f := range r.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (r *Row) Value(name string) (any, bool) {
	if i := r.Find(name); i >= 0 {
		return r.fields[i].Value, true
	}
	return nil, false
}

func (r *Row) NameAt(i int) string     { return r.fields[i].Name }
func (r *Row) ValueAt(i int) any       { return r.fields[i].Value }
func (r *Row) SetValueAt(i int, v any) { r.fields[i].Value = v }

// Set replaces the value of the first field called name, appending a new
// field when none exists.
func (r *Row) Set(name string, v any) {
	if i := r.Find(name); i >= 0 {
		r.fields[i].Value = v
		return
	}
	r.Add(name, v)
}

func (r *Row) Add(name string, v any) {
	r.fields = append(r.fields, Field{Name: name, Value: v})
}

func (r *Row) Remove(i int) {
	r.fields = append(r.fields[:i], r.fields[i+1:]...)
}

// Rename changes the name of field i in place, keeping its position.
func (r *Row) Rename(i int, name string) { r.fields[i].Name = name }

// Clone is shallow: values are shared, the field list is not.
func (r *Row) Clone() *Row {
	return FromFields(r.fields...)
}

// Map flattens the row into a map; the first occurrence of a name wins.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		if _, dup := m[f.Name]; !dup {
			m[f.Name] = f.Value
		}
	}
	return m
}

// MarshalJSON writes the row as an object whose keys keep field order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	seen := make(map[string]struct{}, len(r.fields))
	buf.WriteByte('{')
	n := 0
	for _, f := range r.fields {
		if _, dup := seen[f.Name]; dup {
			continue
		}
		seen[f.Name] = struct{}{}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		n++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
