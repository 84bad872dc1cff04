package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"txservice/internal/grammar"
	"txservice/internal/registry"
	"txservice/internal/telemetry"
	"txservice/internal/wrangle"
	"txservice/sink"
	"txservice/source/kafka"
)

type fakeSource struct {
	msgs       []*kafka.Message
	configured kafka.Config
	emitErr    error
	closed     bool
}

func (f *fakeSource) Configure(c kafka.Config) error {
	f.configured = c
	return nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) Run(ctx context.Context, emit kafka.EmitFunc) error {
	for _, m := range f.msgs {
		if err := emit(ctx, m); err != nil {
			f.emitErr = err
			return err
		}
	}
	return nil
}

type captureSink struct {
	mu     sync.Mutex
	pushed []sink.Record
	fail   error
}

func (c *captureSink) Configure(any) error { return nil }
func (c *captureSink) Close() error        { return nil }
func (c *captureSink) Push(_ context.Context, rec sink.Record) error {
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	c.pushed = append(c.pushed, rec)
	c.mu.Unlock()
	return nil
}

func newRunner(t *testing.T, name, recipe string) *Runner {
	t.Helper()
	svc, err := wrangle.New(wrangle.Options{Registry: registry.NewSystem()})
	if err != nil {
		t.Fatalf("wrangle.New: %v", err)
	}
	r, err := svc.Compile(name, recipe)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return NewRunner(name, svc, r)
}

func msg(v string) *kafka.Message {
	return &kafka.Message{Topic: "in", Value: []byte(v), Key: []byte("k")}
}

func rowsJSON(t *testing.T, rec sink.Record) string {
	t.Helper()
	b, err := json.Marshal(rec.Rows)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestRunner_FansOutToEverySink(t *testing.T) {
	r := newRunner(t, "fanout", "uppercase :body; split-to-rows :body ','")
	a, b := &captureSink{}, &captureSink{}
	r.AddSink(a)
	r.AddSink(b)
	r.SetSource(&fakeSource{msgs: []*kafka.Message{msg("x,y")}})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range []*captureSink{a, b} {
		if len(s.pushed) != 1 {
			t.Fatalf("want 1 record per sink, got %d", len(s.pushed))
		}
		if got := rowsJSON(t, s.pushed[0]); got != `[{"body":"X"},{"body":"Y"}]` {
			t.Fatalf("rows = %s", got)
		}
		if string(s.pushed[0].Key) != "k" {
			t.Fatalf("key not carried: %q", s.pushed[0].Key)
		}
	}
}

func TestRunner_RecipeErrorSkipsMessage(t *testing.T) {
	r := newRunner(t, "skip", "parse-number :body")
	cs := &captureSink{}
	r.AddSink(cs)
	r.SetSource(&fakeSource{msgs: []*kafka.Message{msg("abc"), msg("12")}})

	before := testutil.ToFloat64(telemetry.StreamMessages.WithLabelValues("skip", "recipe_error"))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cs.pushed) != 1 || rowsJSON(t, cs.pushed[0]) != `[{"body":12}]` {
		t.Fatalf("pushed = %+v", cs.pushed)
	}
	if got := testutil.ToFloat64(telemetry.StreamMessages.WithLabelValues("skip", "recipe_error")); got-before != 1 {
		t.Fatalf("recipe_error delta = %v", got-before)
	}
}

func TestRunner_FilteredMessageNotPushed(t *testing.T) {
	r := newRunner(t, "filter", `filter-row exp:{row.body == "noise"} true`)
	cs := &captureSink{}
	r.AddSink(cs)
	r.SetSource(&fakeSource{msgs: []*kafka.Message{msg("noise"), msg("signal")}})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cs.pushed) != 1 || rowsJSON(t, cs.pushed[0]) != `[{"body":"signal"}]` {
		t.Fatalf("pushed = %+v", cs.pushed)
	}
}

func TestRunner_SinkErrorStopsSource(t *testing.T) {
	r := newRunner(t, "broken", "trim :body")
	boom := errors.New("disk full")
	r.AddSink(&captureSink{fail: boom})
	src := &fakeSource{msgs: []*kafka.Message{msg("a"), msg("b")}}
	r.SetSource(src)

	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want %v", err, boom)
	}
}

func TestRunner_NoSource(t *testing.T) {
	if err := newRunner(t, "none", "").Run(context.Background()); err == nil {
		t.Fatal("expected error without source")
	}
}

func TestCompile(t *testing.T) {
	src := &fakeSource{}
	kafka.Register("fake", func() kafka.Adapter { return src })

	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return p
	}
	write("kafka.yml", "brokers: [b:9092]\ntopics: [in]\ngroup_id: g\n")
	path := write("pipeline.yml", `name: upper
recipe: uppercase body
source: { kind: kafka, driver: fake, config: kafka.yml }
sinks: [stdout]
`)

	svc, err := wrangle.New(wrangle.Options{Registry: registry.NewSystem()})
	if err != nil {
		t.Fatalf("wrangle.New: %v", err)
	}
	r, err := Compile(path, svc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if r.Name() != "upper" || len(r.sinks) != 1 {
		t.Fatalf("runner = %+v", r)
	}
	if src.configured.GroupID != "g" {
		t.Fatalf("source not configured: %+v", src.configured)
	}
	if err := r.Close(); err != nil || !src.closed {
		t.Fatalf("Close: %v closed=%v", err, src.closed)
	}
}

func TestCompile_RejectsBadRecipe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	body := "recipe: frobnicate :body\nsource: { kind: kafka, driver: sarama }\nsinks: [stdout]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	svc, err := wrangle.New(wrangle.Options{Registry: registry.NewSystem()})
	if err != nil {
		t.Fatalf("wrangle.New: %v", err)
	}
	_, err = Compile(path, svc)
	if !errors.Is(err, grammar.ErrUnknownDirective) {
		t.Fatalf("err = %v, want unknown directive", err)
	}
}
