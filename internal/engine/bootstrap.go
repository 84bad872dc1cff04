// Package engine assembles the configured surfaces around one recipe
// service and runs them until shutdown.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"txservice/internal/config"
	"txservice/internal/logging"
	"txservice/internal/pipeline"
	"txservice/internal/service"
	"txservice/internal/telemetry"
	"txservice/internal/transport"
	"txservice/internal/wrangle"
)

func Bootstrap(ctx context.Context, cfg config.Config) (*Engine, error) {
	logging.Configure(cfg.Log)

	// 1. recipe service
	svc, closeStore, err := wrangle.FromConfig(ctx, cfg, telemetry.Metrics{})
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	e := &Engine{
		cfg:        cfg,
		svc:        svc,
		closeStore: closeStore,
		http:       service.NewServer(cfg.HTTP, service.NewHandler(svc, cfg.Charset)),
	}

	// 2. gRPC transport
	if cfg.GRPC.Enabled {
		e.grpc = transport.NewServer(svc)
	}

	// 3. stream pipeline
	if cfg.Stream.Pipeline != "" {
		if e.runner, err = pipeline.Compile(cfg.Stream.Pipeline, svc); err != nil {
			_ = closeStore()
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	// 4. metrics
	e.metrics = telemetry.Expose(cfg.Metrics.Port)

	logging.L().Info("engine ready",
		zap.String("http", cfg.HTTP.Addr),
		zap.Bool("grpc", e.grpc != nil),
		zap.Bool("stream", e.runner != nil),
		zap.Int("metricsPort", cfg.Metrics.Port))
	return e, nil
}

// Service is the recipe service every surface shares.
func (e *Engine) Service() *wrangle.Service { return e.svc }
