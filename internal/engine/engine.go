package engine

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"txservice/internal/config"
	"txservice/internal/logging"
	"txservice/internal/pipeline"
	"txservice/internal/service"
	"txservice/internal/transport"
	"txservice/internal/wrangle"
)

type Engine struct {
	cfg        config.Config
	svc        *wrangle.Service
	http       *service.Server
	grpc       *transport.Server
	runner     *pipeline.Runner
	metrics    *http.Server
	closeStore func() error
}

// Run serves until ctx is cancelled or a component fails, then shuts every
// component down within http.shutdown_timeout.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(e.http.Start)
	if e.grpc != nil {
		g.Go(func() error { return e.grpc.Listen(e.cfg.GRPC.Addr) })
	}
	if e.runner != nil {
		g.Go(func() error { return e.runner.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return e.shutdown()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) shutdown() error {
	logging.L().Info("engine shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	errs = append(errs, e.http.Stop(ctx))
	if e.grpc != nil {
		e.grpc.Stop()
	}
	if e.runner != nil {
		errs = append(errs, e.runner.Close())
	}
	if e.metrics != nil {
		errs = append(errs, e.metrics.Shutdown(ctx))
	}
	errs = append(errs, e.closeStore())

	err := errors.Join(errs...)
	if err != nil {
		logging.L().Error("engine shutdown", zap.Error(err))
	}
	return err
}
