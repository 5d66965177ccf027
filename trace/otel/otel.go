// Package otel provides an OpenTelemetry trace handler for reflection runs.
//
// A run becomes a "reflection.process" span with one "reflection.round" child
// per round; evaluator and regeneration calls become "llm_call" spans.
//
//	tp := sdktrace.NewTracerProvider(...)
//	ctx = trace.WithHandler(ctx, otel.New(otel.WithTracerProvider(tp)))
//	history, err := reflection.Reflect(ctx, agent, policy)
package otel

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/refloop/trace"
	otelAPI "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/m-mizutani/refloop"
)

// Option is a functional option for configuring the OTel handler.
type Option func(*handler)

// WithTracerProvider sets an explicit TracerProvider.
// If not set, the global TracerProvider is used.
func WithTracerProvider(tp otelTrace.TracerProvider) Option {
	return func(h *handler) {
		h.tracerProvider = tp
	}
}

type handler struct {
	tracerProvider otelTrace.TracerProvider
	tracer         otelTrace.Tracer
}

// New creates a new OTel trace handler.
func New(opts ...Option) trace.Handler {
	h := &handler{}
	for _, opt := range opts {
		opt(h)
	}

	if h.tracerProvider == nil {
		h.tracerProvider = otelAPI.GetTracerProvider()
	}
	h.tracer = h.tracerProvider.Tracer(tracerName)

	return h
}

func (h *handler) StartReflection(ctx context.Context, data *trace.ReflectionData) context.Context {
	ctx, span := h.tracer.Start(ctx, "reflection.process",
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	if data != nil {
		span.SetAttributes(
			agentIDAttr(data.AgentID),
			agentNameAttr(data.AgentName),
			taskAttr(data.Task),
			maxRoundAttr(data.MaxRound),
			minRoundAttr(data.MinRound),
		)
		if data.Criteria != "" {
			span.SetAttributes(criteriaAttr(data.Criteria))
		}
	}
	return ctx
}

func (h *handler) EndReflection(ctx context.Context, result *trace.ReflectionResult, err error) {
	span := otelTrace.SpanFromContext(ctx)
	if result != nil {
		span.SetAttributes(
			statusAttr(result.Status),
			totalRoundsAttr(result.TotalRounds),
			finalScoreAttr(result.FinalScore),
			tokenCountAttr(result.TotalTokens),
			totalDurationAttr(result.DurationMS),
			averageImprovementRateAttr(result.AverageImprovementRate),
			scoreProgressionAttr(result.ScoreProgression),
		)
		if result.BestRound > 0 {
			span.SetAttributes(bestRoundAttr(result.BestRound), bestScoreAttr(result.BestScore))
		}
	}
	endSpan(span, err)
}

func (h *handler) StartRound(ctx context.Context, round int) context.Context {
	ctx, span := h.tracer.Start(ctx, "reflection.round",
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	span.SetAttributes(roundAttr(round))
	return ctx
}

func (h *handler) EndRound(ctx context.Context, data *trace.RoundData, err error) {
	span := otelTrace.SpanFromContext(ctx)
	if data != nil {
		span.SetAttributes(
			scoreAttr(data.Score),
			passAttr(data.Pass),
			confidenceAttr(data.Confidence),
			shouldContinueAttr(data.ShouldContinue),
			strengthsAttr(data.Strengths),
			weaknessesAttr(data.Weaknesses),
			suggestionsAttr(data.Suggestions),
			tokenCountAttr(data.TokensUsed),
		)
		if data.TerminationReason != "" {
			span.SetAttributes(terminationReasonAttr(data.TerminationReason))
		}
	}
	endSpan(span, err)
}

func (h *handler) StartLLMCall(ctx context.Context) context.Context {
	ctx, _ = h.tracer.Start(ctx, "llm_call",
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
	)
	return ctx
}

func (h *handler) EndLLMCall(ctx context.Context, data *trace.LLMCallData, err error) {
	span := otelTrace.SpanFromContext(ctx)
	if data != nil {
		span.SetAttributes(
			llmModelAttr(data.Model),
			llmCallerAttr(data.Caller),
			llmInputTokensAttr(data.InputTokens),
			llmOutputTokensAttr(data.OutputTokens),
		)
	}
	endSpan(span, err)
}

func (h *handler) AddEvent(ctx context.Context, kind string, data any) {
	span := otelTrace.SpanFromContext(ctx)
	if data == nil {
		span.AddEvent(kind)
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		span.AddEvent(kind)
		return
	}
	span.AddEvent(kind, otelTrace.WithAttributes(eventDataAttr(string(b))))
}

// Finish is a no-op; spans are exported by the TracerProvider's SpanProcessor.
func (h *handler) Finish(_ context.Context) error {
	return nil
}

func endSpan(span otelTrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
