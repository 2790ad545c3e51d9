// Package extensions provides cross-cutting Extension implementations:
// structured logging (slog, zap) and a dependency-graph debug renderer.
package extensions

import (
	"context"
	"log/slog"
	"time"

	pumped "github.com/pumped-run/pumped-go"
)

// LoggingExtension logs every resolve/update operation and flow
// execution through slog.
type LoggingExtension struct {
	pumped.BaseExtension
	log *slog.Logger
}

// NewLoggingExtension creates a logging extension. A nil logger falls
// back to slog.Default().
func NewLoggingExtension(log *slog.Logger) *LoggingExtension {
	if log == nil {
		log = slog.Default()
	}
	return &LoggingExtension{
		BaseExtension: pumped.NewBaseExtension("logging"),
		log:           log,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *pumped.Operation) (any, error) {
	start := time.Now()
	name := pumped.ExecutorName(op.Executor)
	e.log.Debug("operation starting", "kind", op.Kind, "executor", name)

	result, err := next()

	elapsed := time.Since(start)
	if err != nil {
		e.log.Error("operation failed", "kind", op.Kind, "executor", name, "elapsed", elapsed, "error", err)
	} else {
		e.log.Debug("operation completed", "kind", op.Kind, "executor", name, "elapsed", elapsed)
	}
	return result, err
}

func (e *LoggingExtension) OnFlowStart(execCtx *pumped.ExecutionCtx, flow pumped.AnyFlow) error {
	e.log.Debug("flow starting", "name", flowNameOf(execCtx))
	return nil
}

func (e *LoggingExtension) OnFlowEnd(execCtx *pumped.ExecutionCtx, result any, err error) error {
	if err != nil {
		e.log.Error("flow failed", "name", flowNameOf(execCtx), "error", err)
	} else {
		e.log.Debug("flow completed", "name", flowNameOf(execCtx))
	}
	return nil
}

func (e *LoggingExtension) OnFlowPanic(execCtx *pumped.ExecutionCtx, recovered any, stack []byte) error {
	e.log.Error("flow panicked", "name", flowNameOf(execCtx), "recovered", recovered)
	return nil
}

func (e *LoggingExtension) OnCleanupError(cerr *pumped.CleanupError) bool {
	e.log.Error("cleanup failed", "executor", cerr.ExecutorName, "context", cerr.Context, "error", cerr.Err)
	return true
}

func flowNameOf(execCtx *pumped.ExecutionCtx) string {
	name, _ := pumped.GetTyped(execCtx, pumped.FlowName())
	return name
}
