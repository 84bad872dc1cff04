package executor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"txservice/internal/directive"
	"txservice/internal/directives"
	"txservice/internal/execctx"
	"txservice/internal/grammar"
	"txservice/internal/row"
	"txservice/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testRegistry is the built-ins plus a few directives that misbehave on
// purpose.
type testRegistry struct {
	entries map[string]*directive.Info
}

func (r *testRegistry) Get(name string) (*directive.Info, bool) {
	i, ok := r.entries[name]
	return i, ok
}

func (r *testRegistry) List() []*directive.Info {
	var out []*directive.Info
	for _, i := range r.entries {
		out = append(out, i)
	}
	return out
}

type stub struct {
	name string
	fn   func(rows []*row.Row) ([]*row.Row, error)
}

func (s *stub) Define() *directive.Usage              { return directive.NewUsage(s.name) }
func (s *stub) Initialize(*directive.Arguments) error { return nil }
func (s *stub) Execute(_ context.Context, rows []*row.Row, _ directive.ExecutorContext) ([]*row.Row, error) {
	return s.fn(rows)
}

func newRegistry(calls *int) *testRegistry {
	r := &testRegistry{entries: map[string]*directive.Info{}}
	for _, i := range directives.Builtins() {
		r.entries[i.Name] = i
	}
	add := func(name string, fn func([]*row.Row) ([]*row.Row, error)) {
		r.entries[name] = &directive.Info{Name: name, Factory: func() directive.Directive {
			return &stub{name: name, fn: fn}
		}}
	}
	add("fail", func([]*row.Row) ([]*row.Row, error) {
		return nil, directive.Errorf("fail", "boom")
	})
	add("explode", func([]*row.Row) ([]*row.Row, error) {
		panic("kaboom")
	})
	add("count", func(rows []*row.Row) ([]*row.Row, error) {
		*calls++
		return rows, nil
	})
	return r
}

func compile(t *testing.T, text string, calls *int) *grammar.Recipe {
	t.Helper()
	r, err := grammar.NewParser(newRegistry(calls), grammar.Config{}).Parse("test", text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return r
}

func run(t *testing.T, text string, ectx directive.ExecutorContext, rows ...*row.Row) ([]*row.Row, error) {
	t.Helper()
	var calls int
	e := New()
	if err := e.Initialize(compile(t, text, &calls), ectx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e.Execute(context.Background(), rows)
}

func asJSON(t *testing.T, rows []*row.Row) string {
	t.Helper()
	b, err := json.Marshal(rows)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestEmptyRecipeIsIdentity(t *testing.T) {
	in := []*row.Row{row.New("body", "x"), row.New("body", 1)}
	out, err := run(t, "", nil, in...)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("rows changed: %v", asJSON(t, out))
	}
}

func TestUppercaseBody(t *testing.T) {
	out, err := run(t, "uppercase :body", nil, row.New("body", "hello"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := asJSON(t, out); got != `[{"body":"HELLO"}]` {
		t.Fatalf("got %s", got)
	}
}

func TestDeterministic(t *testing.T) {
	text := "parse-as-json :body 2; set-column :total exp:{row.body_a * 2.0}"
	var results []string
	for i := 0; i < 3; i++ {
		out, err := run(t, text, nil, row.New("body", `{"b":{"y":1,"x":2},"a":3}`))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		results = append(results, asJSON(t, out))
	}
	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatalf("non deterministic: %s vs %s", r, results[0])
		}
	}
	if results[0] != `[{"body_a":3,"body_b_x":2,"body_b_y":1,"total":6}]` {
		t.Fatalf("got %s", results[0])
	}
}

func TestOrderMatters(t *testing.T) {
	a, err := run(t, "copy :a :b; uppercase :a", nil, row.New("a", "x"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	b, err := run(t, "uppercase :a; copy :a :b", nil, row.New("a", "x"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if asJSON(t, a) != `[{"a":"X","b":"x"}]` || asJSON(t, b) != `[{"a":"X","b":"X"}]` {
		t.Fatalf("unexpected: %s / %s", asJSON(t, a), asJSON(t, b))
	}
}

func TestFailFast(t *testing.T) {
	var calls int
	e := New()
	if err := e.Initialize(compile(t, "count; fail; count", &calls), nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	out, err := e.Execute(context.Background(), []*row.Row{row.New("a", 1)})
	if out != nil {
		t.Fatalf("partial result returned: %v", out)
	}
	var rerr *RecipeExecutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %T %v", err, err)
	}
	if rerr.Directive != "fail" || rerr.Index != 2 || rerr.Statement != "fail" {
		t.Fatalf("unexpected error fields: %+v", rerr)
	}
	var derr *directive.ExecutionError
	if !errors.As(err, &derr) || derr.Message != "boom" {
		t.Fatalf("cause not wrapped: %v", err)
	}
	if calls != 1 {
		t.Fatalf("steps after the failure ran: calls = %d", calls)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	_, err := run(t, "uppercase :a; explode", nil, row.New("a", "x"))
	var rerr *RecipeExecutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v", err)
	}
	if rerr.Directive != "explode" || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseNumberFailureMessage(t *testing.T) {
	_, err := run(t, "parse-number :body", nil, row.New("body", "notanumber"))
	if err == nil || !strings.Contains(err.Error(), "could not be parsed as a number") {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelledContextStopsBeforeNextStep(t *testing.T) {
	var calls int
	e := New()
	if err := e.Initialize(compile(t, "count; count", &calls), nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Execute(ctx, []*row.Row{row.New("a", 1)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestLocalScopeResetBetweenRuns(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	ectx := execctx.New(execctx.WithStore(st))

	if _, err := run(t, "set-variable last exp:{row.a}; increment-variable seen 1", ectx, row.New("a", "x")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v, ok, _ := st.Get(ctx, "last"); !ok || v != "x" {
		t.Fatalf("last = %v %v", v, ok)
	}

	if _, err := run(t, "increment-variable seen 1", ectx, row.New("a", "y")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "last"); ok {
		t.Fatalf("local variable survived a new run")
	}
	if v, _, _ := st.Get(ctx, "seen"); v != int64(2) {
		t.Fatalf("global counter = %v, want 2", v)
	}
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *recordingMetrics) Count(name string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name] += delta
}

func (m *recordingMetrics) Gauge(string, float64) {}

func TestStepMetrics(t *testing.T) {
	m := &recordingMetrics{counts: map[string]int{}}
	ectx := execctx.New(execctx.WithMetrics(m))
	if _, err := run(t, "split-to-rows :a ','; uppercase :a", ectx, row.New("a", "x,y,z")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if m.counts["split-to-rows.rows.out"] != 3 || m.counts["uppercase.rows.out"] != 3 {
		t.Fatalf("counts = %v", m.counts)
	}
}

func TestExecuteBeforeInitialize(t *testing.T) {
	if _, err := New().Execute(context.Background(), nil); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v", err)
	}
}
