package extensions

import (
	"context"
	"time"

	pumped "github.com/pumped-run/pumped-go"
	"go.uber.org/zap"
)

// ZapExtension is LoggingExtension's zap-backed counterpart, for hosts
// that already standardize on zap rather than slog.
type ZapExtension struct {
	pumped.BaseExtension
	log *zap.Logger
}

// NewZapExtension creates a zap-backed logging extension. A nil logger
// falls back to zap.NewNop().
func NewZapExtension(log *zap.Logger) *ZapExtension {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapExtension{
		BaseExtension: pumped.NewBaseExtension("ziplog"),
		log:           log,
	}
}

func (e *ZapExtension) Wrap(ctx context.Context, next func() (any, error), op *pumped.Operation) (any, error) {
	start := time.Now()
	name := pumped.ExecutorName(op.Executor)

	result, err := next()

	elapsed := time.Since(start)
	if err != nil {
		e.log.Error("operation failed",
			zap.String("kind", string(op.Kind)),
			zap.String("executor", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	} else {
		e.log.Debug("operation completed",
			zap.String("kind", string(op.Kind)),
			zap.String("executor", name),
			zap.Duration("elapsed", elapsed))
	}
	return result, err
}

func (e *ZapExtension) OnFlowEnd(execCtx *pumped.ExecutionCtx, result any, err error) error {
	name := flowNameOf(execCtx)
	if err != nil {
		e.log.Error("flow failed", zap.String("name", name), zap.Error(err))
	} else {
		e.log.Debug("flow completed", zap.String("name", name))
	}
	return nil
}

func (e *ZapExtension) OnFlowPanic(execCtx *pumped.ExecutionCtx, recovered any, stack []byte) error {
	e.log.Error("flow panicked", zap.String("name", flowNameOf(execCtx)), zap.Any("recovered", recovered))
	return nil
}
