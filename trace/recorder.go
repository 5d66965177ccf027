package trace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Option is a functional option for configuring a Recorder.
type Option func(*Recorder)

// WithRepository sets the repository for persisting trace data.
func WithRepository(repo Repository) Option {
	return func(r *Recorder) {
		r.repo = repo
	}
}

// WithMetadata sets the metadata for the trace.
func WithMetadata(meta TraceMetadata) Option {
	return func(r *Recorder) {
		r.metadata = meta
	}
}

// WithTraceID sets a custom trace ID.
// If not set or set to an empty string, a UUID v7 is generated automatically.
func WithTraceID(id string) Option {
	return func(r *Recorder) {
		r.traceID = id
	}
}

// Recorder collects tracing data of one reflection run into an in-memory Trace.
// It implements the Handler interface and exposes the collected Trace via Trace().
type Recorder struct {
	trace    *Trace
	mu       sync.Mutex
	repo     Repository
	metadata TraceMetadata
	traceID  string
}

// New creates a new Recorder with the given options.
func New(opts ...Option) *Recorder {
	r := &Recorder{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// context key types
type handlerKey struct{}
type currentSpanKey struct{}

// WithHandler stores the Handler in the context.
func WithHandler(ctx context.Context, h Handler) context.Context {
	return context.WithValue(ctx, handlerKey{}, h)
}

// HandlerFrom retrieves the Handler from the context. Returns nil if not set.
func HandlerFrom(ctx context.Context) Handler {
	h, _ := ctx.Value(handlerKey{}).(Handler)
	return h
}

func withCurrentSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, currentSpanKey{}, span)
}

func currentSpanFrom(ctx context.Context) *Span {
	s, _ := ctx.Value(currentSpanKey{}).(*Span)
	return s
}

func newSpanID() string {
	return uuid.New().String()
}

// StartReflection starts the root reflection span.
func (r *Recorder) StartReflection(ctx context.Context, data *ReflectionData) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	name := "reflection"
	if data != nil && data.AgentName != "" {
		name = "reflection:" + data.AgentName
	}

	span := &Span{
		SpanID:     newSpanID(),
		Kind:       SpanKindReflection,
		Name:       name,
		StartedAt:  now,
		Status:     SpanStatusOK,
		Reflection: data,
	}

	traceID := r.traceID
	if traceID == "" {
		traceID = uuid.Must(uuid.NewV7()).String()
	}

	r.trace = &Trace{
		TraceID:   traceID,
		RootSpan:  span,
		Metadata:  r.metadata,
		StartedAt: now,
	}

	return withCurrentSpan(ctx, span)
}

// EndReflection ends the root reflection span.
func (r *Recorder) EndReflection(ctx context.Context, result *ReflectionResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindReflection {
		return
	}

	now := time.Now()
	closeSpan(span, now, err)
	span.Result = result

	if r.trace != nil {
		r.trace.EndedAt = now
	}
}

// StartRound starts a round span as a child of the current span.
func (r *Recorder) StartRound(ctx context.Context, round int) context.Context {
	return r.startChildSpan(ctx, SpanKindRound, fmt.Sprintf("round:%d", round))
}

// EndRound ends the round span.
func (r *Recorder) EndRound(ctx context.Context, data *RoundData, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindRound {
		return
	}

	closeSpan(span, time.Now(), err)
	span.Round = data
}

// StartLLMCall starts an llm_call span as a child of the current span.
func (r *Recorder) StartLLMCall(ctx context.Context) context.Context {
	return r.startChildSpan(ctx, SpanKindLLMCall, "llm_call")
}

// EndLLMCall ends the llm_call span with the given data.
func (r *Recorder) EndLLMCall(ctx context.Context, data *LLMCallData, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindLLMCall {
		return
	}

	closeSpan(span, time.Now(), err)
	span.LLMCall = data
}

// AddEvent adds an event span as a child of the current span.
func (r *Recorder) AddEvent(ctx context.Context, kind string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := currentSpanFrom(ctx)
	if parent == nil {
		return
	}

	now := time.Now()
	parent.Children = append(parent.Children, &Span{
		SpanID:    newSpanID(),
		ParentID:  parent.SpanID,
		Kind:      SpanKindEvent,
		Name:      kind,
		StartedAt: now,
		EndedAt:   now,
		Status:    SpanStatusOK,
		Event: &EventData{
			Kind: kind,
			Data: data,
		},
	})
}

// Finish persists the trace to the Repository, if any.
func (r *Recorder) Finish(ctx context.Context) error {
	r.mu.Lock()
	trace := r.trace
	repo := r.repo
	r.mu.Unlock()

	if trace == nil || repo == nil {
		return nil
	}

	return repo.Save(ctx, trace)
}

// Trace returns the current trace data. Returns nil if no trace is active.
func (r *Recorder) Trace() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace
}

func (r *Recorder) startChildSpan(ctx context.Context, kind SpanKind, name string) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := currentSpanFrom(ctx)
	if parent == nil {
		return ctx
	}

	span := &Span{
		SpanID:    newSpanID(),
		ParentID:  parent.SpanID,
		Kind:      kind,
		Name:      name,
		StartedAt: time.Now(),
		Status:    SpanStatusOK,
	}

	parent.Children = append(parent.Children, span)
	return withCurrentSpan(ctx, span)
}

func closeSpan(span *Span, now time.Time, err error) {
	span.EndedAt = now
	span.Duration = now.Sub(span.StartedAt)
	if err != nil {
		span.Status = SpanStatusError
		span.Error = err.Error()
	}
}
