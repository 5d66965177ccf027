package trace

import "context"

// Handler is the interface for trace backends.
// Implementations receive lifecycle events of a reflection run and can
// record, export, or forward them as needed.
type Handler interface {
	// StartReflection starts the root span of a reflection run.
	StartReflection(ctx context.Context, data *ReflectionData) context.Context
	// EndReflection ends the root span with the run outcome.
	EndReflection(ctx context.Context, result *ReflectionResult, err error)

	// StartRound starts a round span as a child of the current span.
	StartRound(ctx context.Context, round int) context.Context
	// EndRound ends the round span with the evaluation of that round.
	EndRound(ctx context.Context, data *RoundData, err error)

	// StartLLMCall starts an LLM call span.
	StartLLMCall(ctx context.Context) context.Context
	// EndLLMCall ends an LLM call span with the given data.
	EndLLMCall(ctx context.Context, data *LLMCallData, err error)

	// AddEvent adds an event to the current span.
	AddEvent(ctx context.Context, kind string, data any)

	// Finish completes the trace and performs any final operations.
	Finish(ctx context.Context) error
}
