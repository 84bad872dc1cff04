// Package sink receives the rows a stream pipeline produces.
package sink

import (
	"context"
	"fmt"
	"sort"

	"txservice/internal/row"
)

// Record is the output of one source message.
type Record struct {
	Key     []byte
	Headers map[string][]byte
	Rows    []*row.Row
}

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	// Configure takes the driver's own config struct.
	Configure(any) error
	Push(ctx context.Context, rec Record) error
	// Close flushes pending output and is idempotent.
	Close() error
}

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q (have %v)", name, Names())
}

func Names() []string {
	out := make([]string, 0, len(reg))
	for name := range reg {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
