// Package executor runs a compiled recipe over a row set.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"txservice/internal/directive"
	"txservice/internal/execctx"
	"txservice/internal/grammar"
	"txservice/internal/logging"
	"txservice/internal/row"
)

var ErrNotInitialized = errors.New("executor: not initialized")

// RecipeExecutionError reports the step that stopped a run.
type RecipeExecutionError struct {
	Directive string
	Index     int
	Statement string
	Err       error
}

func (e *RecipeExecutionError) Error() string {
	return fmt.Sprintf("error executing '%s' at statement %d: %v", e.Directive, e.Index, e.Err)
}

func (e *RecipeExecutionError) Unwrap() error { return e.Err }

// Executor binds a recipe to an execution context. An Executor is not safe
// for concurrent Execute calls; callers sharing one must serialize.
type Executor struct {
	recipe *grammar.Recipe
	ectx   directive.ExecutorContext
}

func New() *Executor { return &Executor{} }

// Initialize binds the recipe and context. A nil context gets the defaults
// of execctx.New.
func (e *Executor) Initialize(r *grammar.Recipe, ectx directive.ExecutorContext) error {
	if r == nil {
		return errors.New("executor: nil recipe")
	}
	if ectx == nil {
		ectx = execctx.New()
	}
	e.recipe, e.ectx = r, ectx
	return nil
}

// Execute applies every step in order to the full current row set. The
// first failing step ends the run and no partial result is returned. ctx is
// consulted between steps only.
func (e *Executor) Execute(ctx context.Context, rows []*row.Row) ([]*row.Row, error) {
	if e.recipe == nil {
		return nil, ErrNotInitialized
	}
	if st := e.ectx.TransientStore(); st != nil {
		if err := st.Reset(ctx, directive.ScopeLocal); err != nil {
			return nil, fmt.Errorf("executor: reset local scope: %w", err)
		}
	}

	log := logging.L().With(zap.String("recipe", e.recipe.Name))
	cur := rows
	for _, step := range e.recipe.Steps() {
		if err := ctx.Err(); err != nil {
			return nil, &RecipeExecutionError{
				Directive: step.Invocation.Name,
				Index:     step.Index,
				Statement: step.Statement,
				Err:       err,
			}
		}
		start := time.Now()
		next, err := e.run(ctx, step, cur)
		if err != nil {
			return nil, err
		}
		e.ectx.Metrics().Count(step.Invocation.Name+".rows.out", len(next))
		log.Debug("step done",
			zap.Int("index", step.Index),
			zap.String("directive", step.Invocation.Name),
			zap.Int("rows_in", len(cur)),
			zap.Int("rows_out", len(next)),
			zap.Duration("took", time.Since(start)))
		cur = next
	}
	return cur, nil
}

func (e *Executor) run(ctx context.Context, step grammar.Step, rows []*row.Row) (out []*row.Row, err error) {
	defer func() {
		if p := recover(); p != nil {
			logging.L().Error("directive panicked",
				zap.String("directive", step.Invocation.Name),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			out = nil
			err = &RecipeExecutionError{
				Directive: step.Invocation.Name,
				Index:     step.Index,
				Statement: step.Statement,
				Err:       fmt.Errorf("panic: %v", p),
			}
		}
	}()
	out, err = step.Directive.Execute(ctx, rows, e.ectx)
	if err != nil {
		return nil, &RecipeExecutionError{
			Directive: step.Invocation.Name,
			Index:     step.Index,
			Statement: step.Statement,
			Err:       err,
		}
	}
	return out, nil
}
