package refloop

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
)

// LoggerFromContext returns the logger stored in ctx, or a discard logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return ctxlog.From(ctx)
}

// ContextWithLogger stores logger in ctx for the agent, the reflection
// controller, and the providers.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return ctxlog.With(ctx, logger)
}
