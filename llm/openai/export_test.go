package openai

import "github.com/sashabaranov/go-openai"

var (
	TokenLimitErrorOptions = tokenLimitErrorOptions
	EstimateUsage          = estimateUsage
)

// Export for testing
type APIClient = apiClient

// NewWithAPIClient creates a client with a custom API client for testing
func NewWithAPIClient(client apiClient, options ...Option) *Client {
	c := newClient(options...)
	c.apiClient = client
	return c
}

// Messages is a helper to build SDK messages in tests.
func Messages(msgs ...openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	return msgs
}
