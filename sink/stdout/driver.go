// Package stdout writes pipeline rows as JSON lines.
package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"txservice/sink"
)

type Config struct {
	DelayMS      int  `yaml:"delay_ms"`      // artificial per-record delay
	PrintCounter bool `yaml:"print_counter"` // prepend seq#
}

type driver struct {
	cfg Config

	mu  sync.Mutex // guards out+seq
	out io.Writer
	seq uint64
}

func newDriver(w io.Writer) *driver { return &driver{out: w} }

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(ctx context.Context, rec sink.Record) error {
	if d.cfg.DelayMS > 0 {
		select {
		case <-time.After(time.Duration(d.cfg.DelayMS) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range rec.Rows {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("stdout-sink: %w", err)
		}
		if d.cfg.PrintCounter {
			d.seq++
			if _, err := fmt.Fprintf(d.out, "[sink %06d] ", d.seq); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(d.out, "%s\n", b); err != nil {
			return err
		}
	}
	return nil
}

func (d *driver) Close() error { return nil }

func init() {
	sink.Register("stdout", func() sink.Adapter { return newDriver(os.Stdout) })
}
