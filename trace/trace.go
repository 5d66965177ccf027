package trace

import (
	"time"
)

// SpanKind represents the type of a span.
type SpanKind string

const (
	SpanKindReflection SpanKind = "reflection"
	SpanKindRound      SpanKind = "round"
	SpanKindLLMCall    SpanKind = "llm_call"
	SpanKindEvent      SpanKind = "event"
)

// SpanStatus represents the status of a span.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// Trace represents the root tracing data for a reflection run.
type Trace struct {
	TraceID   string        `json:"trace_id"`
	RootSpan  *Span         `json:"root_span"`
	Metadata  TraceMetadata `json:"metadata"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}

// TraceMetadata holds metadata for a trace.
type TraceMetadata struct {
	Model    string            `json:"model,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Span represents a single unit of operation in the trace hierarchy.
type Span struct {
	SpanID    string        `json:"span_id"`
	ParentID  string        `json:"parent_id,omitempty"`
	Kind      SpanKind      `json:"kind"`
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	Status    SpanStatus    `json:"status"`
	Error     string        `json:"error,omitempty"`
	Children  []*Span       `json:"children,omitempty"`

	// Kind-specific data (only the ones matching Kind are non-nil)
	Reflection *ReflectionData   `json:"reflection,omitempty"`
	Result     *ReflectionResult `json:"result,omitempty"`
	Round      *RoundData        `json:"round,omitempty"`
	LLMCall    *LLMCallData      `json:"llm_call,omitempty"`
	Event      *EventData        `json:"event,omitempty"`
}

// Find returns spans of the given kind in depth-first order.
func (s *Span) Find(kind SpanKind) []*Span {
	if s == nil {
		return nil
	}
	var found []*Span
	if s.Kind == kind {
		found = append(found, s)
	}
	for _, c := range s.Children {
		found = append(found, c.Find(kind)...)
	}
	return found
}
