// Package logger provides a trace.Handler that writes reflection trace events
// to a slog.Logger.
package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/refloop/trace"
)

// Event represents a trace event class that can be selectively enabled.
type Event int

const (
	// Reflection enables logging of reflection run start/end.
	Reflection Event = iota
	// Round enables logging of round end with the evaluation.
	Round
	// LLMRequest enables logging of LLM request messages.
	LLMRequest
	// LLMResponse enables logging of LLM response text and token usage.
	LLMResponse
	// CustomEvent enables logging of events added with AddEvent.
	CustomEvent

	eventCount // sentinel for iteration
)

type config struct {
	logger *slog.Logger
	events map[Event]bool
}

// Option configures the logger handler.
type Option func(*config)

// WithLogger sets a custom slog.Logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithEvents enables only the specified event classes.
// When not specified, all events are enabled.
func WithEvents(events ...Event) Option {
	return func(c *config) {
		c.events = make(map[Event]bool, len(events))
		for _, e := range events {
			c.events[e] = true
		}
	}
}

type handler struct {
	cfg config
}

// New creates a trace.Handler that logs trace events via slog.
func New(opts ...Option) trace.Handler {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.events == nil {
		cfg.events = make(map[Event]bool, eventCount)
		for i := Event(0); i < eventCount; i++ {
			cfg.events[i] = true
		}
	}

	return &handler{cfg: cfg}
}

func (h *handler) logger() *slog.Logger {
	if h.cfg.logger != nil {
		return h.cfg.logger
	}
	return slog.Default()
}

func (h *handler) enabled(e Event) bool {
	return h.cfg.events[e]
}

type startTimeKey struct{}

func withStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

func startTimeFrom(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey{}).(time.Time)
	return t
}

type agentNameKey struct{}

func (h *handler) StartReflection(ctx context.Context, data *trace.ReflectionData) context.Context {
	ctx = withStartTime(ctx, time.Now())
	if data == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, agentNameKey{}, data.AgentName)

	if h.enabled(Reflection) {
		h.logger().InfoContext(ctx, "reflection started",
			slog.String("agent", data.AgentName),
			slog.String("agent_id", data.AgentID),
			slog.Int("max_round", data.MaxRound),
			slog.Int("min_round", data.MinRound),
		)
	}
	return ctx
}

func (h *handler) EndReflection(ctx context.Context, result *trace.ReflectionResult, err error) {
	if !h.enabled(Reflection) {
		return
	}

	name, _ := ctx.Value(agentNameKey{}).(string)
	attrs := []any{
		slog.String("agent", name),
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}
	if result != nil {
		attrs = append(attrs,
			slog.String("status", result.Status),
			slog.Int("total_rounds", result.TotalRounds),
			slog.Int("final_score", result.FinalScore),
			slog.Int64("total_tokens", result.TotalTokens),
		)
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	h.logger().InfoContext(ctx, "reflection ended", attrs...)
}

func (h *handler) StartRound(ctx context.Context, round int) context.Context {
	return withStartTime(ctx, time.Now())
}

func (h *handler) EndRound(ctx context.Context, data *trace.RoundData, err error) {
	if !h.enabled(Round) {
		return
	}

	attrs := []any{
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}
	if data != nil {
		attrs = append(attrs,
			slog.Int("round", data.Round),
			slog.Int("score", data.Score),
			slog.Bool("pass", data.Pass),
			slog.Bool("should_continue", data.ShouldContinue),
			slog.Any("weaknesses", data.Weaknesses),
		)
		if data.TerminationReason != "" {
			attrs = append(attrs, slog.String("termination_reason", data.TerminationReason))
		}
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	h.logger().InfoContext(ctx, "reflection round", attrs...)
}

func (h *handler) StartLLMCall(ctx context.Context) context.Context {
	return withStartTime(ctx, time.Now())
}

// EndLLMCall logs the call when either LLMRequest or LLMResponse is enabled.
// Model, caller and token usage are always included.
func (h *handler) EndLLMCall(ctx context.Context, data *trace.LLMCallData, err error) {
	reqEnabled := h.enabled(LLMRequest)
	respEnabled := h.enabled(LLMResponse)
	if !reqEnabled && !respEnabled {
		return
	}

	attrs := []any{
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}

	if data != nil {
		attrs = append(attrs,
			slog.String("model", data.Model),
			slog.String("caller", data.Caller),
			slog.Int64("input_tokens", data.InputTokens),
			slog.Int64("output_tokens", data.OutputTokens),
		)

		if reqEnabled && data.Request != nil {
			attrs = append(attrs, slog.Any("request", data.Request))
		}
		if respEnabled && data.Response != nil {
			attrs = append(attrs, slog.Any("response", data.Response))
		}
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	h.logger().InfoContext(ctx, "llm call", attrs...)
}

func (h *handler) AddEvent(ctx context.Context, kind string, data any) {
	if !h.enabled(CustomEvent) {
		return
	}

	h.logger().InfoContext(ctx, "event",
		slog.String("kind", kind),
		slog.Any("data", data),
	)
}

// Finish is a no-op. Persistence is the Recorder's responsibility.
func (h *handler) Finish(_ context.Context) error {
	return nil
}
