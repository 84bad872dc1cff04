// Package registry resolves directive names to factories. Registries are
// built once and never mutated, so lookups need no locking.
package registry

import (
	"fmt"
	"sort"

	"txservice/internal/directive"
	"txservice/internal/directives"
)

// Registry is a read-only name -> directive table.
type Registry interface {
	Get(name string) (*directive.Info, bool)
	// List returns every entry sorted by name.
	List() []*directive.Info
}

type table struct {
	entries map[string]*directive.Info
}

func newTable(infos []*directive.Info) (*table, error) {
	t := &table{entries: make(map[string]*directive.Info, len(infos))}
	for _, info := range infos {
		if _, dup := t.entries[info.Name]; dup {
			return nil, fmt.Errorf("registry: directive %q registered twice", info.Name)
		}
		t.entries[info.Name] = info
	}
	return t, nil
}

func (t *table) Get(name string) (*directive.Info, bool) {
	info, ok := t.entries[name]
	return info, ok
}

func (t *table) List() []*directive.Info {
	out := make([]*directive.Info, 0, len(t.entries))
	for _, info := range t.entries {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewSystem returns the registry of built-in directives.
func NewSystem() Registry {
	t, err := newTable(directives.Builtins())
	if err != nil {
		panic(err)
	}
	return t
}
