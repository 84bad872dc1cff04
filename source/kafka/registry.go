package kafka

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an unconfigured Adapter.
type Factory func() Adapter

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register is called from each driver's init.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// NewAdapter returns a driver by name ("sarama", ...).
func NewAdapter(name string) (Adapter, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("kafka: unsupported driver %q (have %v)", name, Drivers())
	}
	return f(), nil
}

func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
