// Package store provides transient variable stores for recipe runs.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"txservice/internal/directive"
)

// Memory is an in-process store. It is safe for concurrent use. Views
// returned by ForRun share the global scope and keep their own local scope,
// so one instance can back every request when the service runs in shared
// mode.
type Memory struct {
	global *vars
	local  *vars
}

type vars struct {
	mu sync.RWMutex
	m  map[string]any
}

func newVars() *vars { return &vars{m: map[string]any{}} }

func NewMemory() *Memory {
	return &Memory{global: newVars(), local: newVars()}
}

// ForRun returns a view sharing m's global scope with an empty local scope
// of its own.
func (m *Memory) ForRun(string) *Memory {
	return &Memory{global: m.global, local: newVars()}
}

func (m *Memory) Get(_ context.Context, name string) (any, bool, error) {
	if v, ok := m.local.get(name); ok {
		return v, true, nil
	}
	v, ok := m.global.get(name)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, scope directive.StoreScope, name string, value any) error {
	vs, err := m.scope(scope)
	if err != nil {
		return err
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.m[name] = value
	return nil
}

func (m *Memory) Increment(_ context.Context, scope directive.StoreScope, name string, delta int64) (int64, error) {
	vs, err := m.scope(scope)
	if err != nil {
		return 0, err
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	cur, err := asInt64(vs.m[name])
	if err != nil {
		return 0, fmt.Errorf("store: increment %q: %w", name, err)
	}
	cur += delta
	vs.m[name] = cur
	return cur, nil
}

func (m *Memory) Reset(_ context.Context, scope directive.StoreScope) error {
	vs, err := m.scope(scope)
	if err != nil {
		return err
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.m = map[string]any{}
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	for _, vs := range []*vars{m.local, m.global} {
		vs.mu.RLock()
		for k := range vs.m {
			seen[k] = struct{}{}
		}
		vs.mu.RUnlock()
	}
	return sortedKeys(seen), nil
}

func (m *Memory) scope(s directive.StoreScope) (*vars, error) {
	switch s {
	case directive.ScopeGlobal:
		return m.global, nil
	case directive.ScopeLocal:
		return m.local, nil
	}
	return nil, fmt.Errorf("store: unknown scope %q", s)
}

func (vs *vars) get(name string) (any, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	v, ok := vs.m[name]
	return v, ok
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("value of type %T is not numeric", v)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
