package wrangle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"txservice/internal/config"
	"txservice/internal/directive"
	"txservice/internal/execctx"
	"txservice/internal/grammar"
	"txservice/internal/logging"
	"txservice/internal/registry"
	"txservice/internal/store"
)

// FromConfig wires a Service from the service configuration. The returned
// close func releases the Redis connection when one was opened.
func FromConfig(ctx context.Context, cfg config.Config, metrics directive.Metrics) (*Service, func() error, error) {
	closer := func() error { return nil }

	user, err := registry.LoadUser(cfg.Directives.UserFile)
	if err != nil {
		return nil, closer, err
	}
	env, err := directive.ParseEnvironment(cfg.Environment)
	if err != nil {
		return nil, closer, err
	}

	opts := Options{
		Registry:    registry.NewComposite(registry.NewSystem(), user),
		Parser:      grammar.Config{Aliases: cfg.Directives.Aliases, Exclusions: cfg.Directives.Exclusions},
		Environment: env,
		Namespace:   cfg.Namespace,
		Metrics:     metrics,
	}

	if cfg.Services.BaseURL != "" {
		if opts.Resolver, err = execctx.NewURLResolver(cfg.Services.BaseURL); err != nil {
			return nil, closer, err
		}
	}

	switch cfg.Store.Mode {
	case config.StoreShared:
		opts.Store = SharedStore(store.NewMemory())
	case config.StoreRedis:
		r, err := store.NewRedis(cfg.Store.Redis)
		if err != nil {
			return nil, closer, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			_ = r.Close()
			return nil, closer, fmt.Errorf("store: redis ping: %w", err)
		}
		opts.Store = RedisStore(r)
		closer = r.Close
	default:
		opts.Store = PerRequestStore()
	}

	svc, err := New(opts)
	if err != nil {
		_ = closer()
		return nil, func() error { return nil }, err
	}
	logging.L().Info("recipe service ready",
		zap.String("environment", string(env)),
		zap.String("namespace", cfg.Namespace),
		zap.String("store", string(cfg.Store.Mode)),
		zap.Int("directives", len(svc.Directives())))
	return svc, closer, nil
}
