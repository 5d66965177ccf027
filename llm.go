package refloop

import "context"

// ResponseFormat selects the shape of the text an LLM is asked to produce.
type ResponseFormat int

const (
	// ResponseFormatText is free form text.
	ResponseFormatText ResponseFormat = iota
	// ResponseFormatJSON requests a single JSON object. Providers map it to their
	// native JSON mode when one exists.
	ResponseFormatJSON
)

// String returns the string representation of the response format.
func (x ResponseFormat) String() string {
	switch x {
	case ResponseFormatJSON:
		return "json"
	default:
		return "text"
	}
}

// TokenUsage is the number of tokens consumed by one or more LLM calls.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (x TokenUsage) Total() int64 {
	return x.InputTokens + x.OutputTokens
}

// Add returns the sum of x and other.
func (x TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  x.InputTokens + other.InputTokens,
		OutputTokens: x.OutputTokens + other.OutputTokens,
	}
}

// Sub returns x minus other. It is used to compute per call deltas from running totals.
func (x TokenUsage) Sub(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  x.InputTokens - other.InputTokens,
		OutputTokens: x.OutputTokens - other.OutputTokens,
	}
}

// CompletionRequest is a single non-streaming chat completion request.
type CompletionRequest struct {
	Messages []Message

	// Model overrides the client's default model when not empty.
	Model string

	// Temperature overrides the client's default temperature when not nil.
	Temperature *float64

	Format ResponseFormat

	// Name identifies the caller (e.g. "writer-evaluator") for logging and tracing.
	Name string
}

// CompletionResponse is the result of a CompletionRequest.
type CompletionResponse struct {
	Text  string
	Usage TokenUsage
	Model string
}

// LLMClient issues chat completions. Implementations must not retry failed calls;
// errors are returned to the caller as is.
//
//go:generate go tool moq -out mock/llm.go -pkg mock . LLMClient
type LLMClient interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// Float returns a pointer to v. It is a helper for CompletionRequest.Temperature.
func Float(v float64) *float64 {
	return &v
}
