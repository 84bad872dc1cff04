// Package wrangle drives the recipe pipeline: migrate, parse, then execute
// against a fresh execution context. Every entry point (HTTP, gRPC, CLI and
// the stream runner) goes through a Service.
package wrangle

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"txservice/internal/directive"
	"txservice/internal/execctx"
	"txservice/internal/executor"
	"txservice/internal/grammar"
	"txservice/internal/logging"
	"txservice/internal/registry"
	"txservice/internal/row"
	"txservice/internal/store"
)

// BodyField is the column a request payload is placed in.
const BodyField = "body"

// StoreFunc returns the transient store for one run.
type StoreFunc func(runID string) directive.TransientStore

// PerRequestStore gives every run its own empty memory store.
func PerRequestStore() StoreFunc {
	return func(string) directive.TransientStore { return store.NewMemory() }
}

// SharedStore shares m's global scope between runs. Each run gets a local
// scope of its own.
func SharedStore(m *store.Memory) StoreFunc {
	return func(runID string) directive.TransientStore { return m.ForRun(runID) }
}

// RedisStore shares the global scope through Redis and keeps each run's
// local scope under its own key.
func RedisStore(r *store.Redis) StoreFunc {
	return func(runID string) directive.TransientStore { return r.ForRun(runID) }
}

type Options struct {
	Registry    registry.Registry
	Parser      grammar.Config
	Environment directive.Environment
	Namespace   string
	Metrics     directive.Metrics
	Store       StoreFunc
	Resolver    *execctx.URLResolver
	Properties  map[string]string
}

type Service struct {
	parser *grammar.Parser
	reg    registry.Registry
	opts   Options
}

func New(opts Options) (*Service, error) {
	if opts.Registry == nil {
		return nil, errors.New("wrangle: registry is required")
	}
	if opts.Environment == "" {
		opts.Environment = directive.EnvMicroservice
	}
	if opts.Namespace == "" {
		opts.Namespace = execctx.DefaultNamespace
	}
	if opts.Metrics == nil {
		opts.Metrics = directive.NoopMetrics
	}
	if opts.Store == nil {
		opts.Store = PerRequestStore()
	}
	return &Service{
		parser: grammar.NewParser(opts.Registry, opts.Parser),
		reg:    opts.Registry,
		opts:   opts,
	}, nil
}

// Compile migrates recipe text to the current grammar and parses it.
func (s *Service) Compile(name, recipe string) (*grammar.Recipe, error) {
	return s.parser.Parse(name, grammar.Migrate(recipe))
}

// NewContext builds the execution context for one run.
func (s *Service) NewContext(runID string) *execctx.Context {
	opts := []execctx.Option{
		execctx.WithEnvironment(s.opts.Environment),
		execctx.WithNamespace(s.opts.Namespace),
		execctx.WithName(runID),
		execctx.WithMetrics(s.opts.Metrics),
		execctx.WithStore(s.opts.Store(runID)),
		execctx.WithProperties(s.opts.Properties),
	}
	if s.opts.Resolver != nil {
		opts = append(opts, execctx.WithResolver(s.opts.Resolver))
	}
	return execctx.New(opts...)
}

// Run executes an already compiled recipe in a fresh context. The run's
// local scope is released when it returns.
func (s *Service) Run(ctx context.Context, r *grammar.Recipe, rows []*row.Row) ([]*row.Row, error) {
	ectx := s.NewContext(uuid.NewString())
	e := executor.New()
	if err := e.Initialize(r, ectx); err != nil {
		return nil, err
	}
	defer releaseLocal(ctx, ectx)
	return e.Execute(ctx, rows)
}

func releaseLocal(ctx context.Context, ectx *execctx.Context) {
	st := ectx.TransientStore()
	if st == nil {
		return
	}
	if err := st.Reset(context.WithoutCancel(ctx), directive.ScopeLocal); err != nil {
		logging.L().Warn("release local variables",
			zap.String("run", ectx.ContextName()), zap.Error(err))
	}
}

// Transform compiles and runs recipe over rows.
func (s *Service) Transform(ctx context.Context, recipe string, rows []*row.Row) ([]*row.Row, error) {
	r, err := s.Compile("request", recipe)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, r, rows)
}

// Directives lists what recipes may call.
func (s *Service) Directives() []*directive.Info { return s.reg.List() }
