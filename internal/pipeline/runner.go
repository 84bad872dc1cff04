package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"txservice/internal/grammar"
	"txservice/internal/logging"
	"txservice/internal/row"
	"txservice/internal/telemetry"
	"txservice/internal/wrangle"
	"txservice/sink"
	"txservice/source/kafka"
)

// Runner applies one compiled recipe to every source message and pushes
// the resulting rows to each sink in order.
type Runner struct {
	name   string
	svc    *wrangle.Service
	recipe *grammar.Recipe

	source kafka.Adapter
	sinks  []sink.Adapter

	// sarama runs one ConsumeClaim per partition; executions are serialized.
	mu sync.Mutex
}

func NewRunner(name string, svc *wrangle.Service, recipe *grammar.Recipe) *Runner {
	return &Runner{name: name, svc: svc, recipe: recipe}
}

func (r *Runner) Name() string              { return r.name }
func (r *Runner) AddSink(s sink.Adapter)    { r.sinks = append(r.sinks, s) }
func (r *Runner) SetSource(s kafka.Adapter) { r.source = s }

// handle returns an error only when the message must not be acknowledged.
// A recipe failure is logged and the message skipped.
func (r *Runner) handle(ctx context.Context, msg *kafka.Message) error {
	r.mu.Lock()
	out, err := r.svc.Run(ctx, r.recipe, []*row.Row{row.New(wrangle.BodyField, string(msg.Value))})
	r.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.count("recipe_error")
		logging.L().Warn("stream recipe failed",
			zap.String("pipeline", r.name),
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}
	if len(out) == 0 {
		r.count("filtered")
		return nil
	}

	rec := sink.Record{Key: msg.Key, Headers: msg.Headers, Rows: out}
	for _, s := range r.sinks {
		if err := s.Push(ctx, rec); err != nil {
			r.count("sink_error")
			return fmt.Errorf("pipeline %s: sink: %w", r.name, err)
		}
	}
	r.count("ok")
	return nil
}

func (r *Runner) count(outcome string) {
	telemetry.StreamMessages.WithLabelValues(r.name, outcome).Inc()
}

// Run consumes until ctx is done or the source fails.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	logging.L().Info("stream pipeline started", zap.String("pipeline", r.name), zap.Int("sinks", len(r.sinks)))
	return r.source.Run(ctx, r.handle)
}

func (r *Runner) Close() error {
	var errs []error
	if r.source != nil {
		errs = append(errs, r.source.Close())
	}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
