// Package openai implements refloop.LLMClient for the OpenAI chat completion API
// and compatible endpoints.
package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop"
	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

var (
	// openaiPromptScope is the logging scope for OpenAI prompts
	openaiPromptScope = ctxlog.NewScope("openai_prompt", ctxlog.EnabledBy("REFLOOP_LOGGING_OPENAI_PROMPT"))

	// openaiResponseScope is the logging scope for OpenAI responses
	openaiResponseScope = ctxlog.NewScope("openai_response", ctxlog.EnabledBy("REFLOOP_LOGGING_OPENAI_RESPONSE"))
)

const (
	DefaultModel = "gpt-4o"

	// fallbackEncoding is used by tiktoken when the model has no known encoding.
	fallbackEncoding = "cl100k_base"
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature is used when the request does not set one. nil leaves it to the API.
	Temperature *float32

	// MaxTokens limits the number of tokens to generate. 0 means no limit.
	MaxTokens int
}

// Client is a client for the OpenAI API.
type Client struct {
	apiClient apiClient

	// defaultModel is used when CompletionRequest.Model is empty.
	defaultModel string

	// baseURL is the custom base URL for the OpenAI API.
	baseURL string

	params generationParameters
}

var _ refloop.LLMClient = (*Client)(nil)

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model. See [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the default temperature. A temperature in the
// CompletionRequest takes precedence.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.params.Temperature = &temp
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// WithBaseURL sets the custom base URL for the OpenAI API.
// Allows usage with compatible endpoints, proxies, or self-hosted instances.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// New creates a new client for the OpenAI API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.Wrap(refloop.ErrInvalidConfig, "OpenAI API key is required", goerr.Tag(refloop.ErrTagConfig))
	}

	client := newClient(options...)

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = client.baseURL
	}
	client.apiClient = &realAPIClient{client: openai.NewClientWithConfig(config)}

	return client, nil
}

func newClient(options ...Option) *Client {
	client := &Client{
		defaultModel: DefaultModel,
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// Complete sends the messages as one chat completion. JSON format is mapped to
// the json_object response format.
func (c *Client) Complete(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
	openaiReq := c.createRequest(req)
	c.logPrompt(ctx, req.Name, openaiReq)

	resp, err := c.apiClient.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		opts := append(tokenLimitErrorOptions(err),
			goerr.V("model", openaiReq.Model),
			goerr.Tag(refloop.ErrTagProvider),
		)
		return nil, goerr.Wrap(err, "failed to create chat completion", opts...)
	}

	result := &refloop.CompletionResponse{
		Model: resp.Model,
		Usage: refloop.TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}
	var finishReason openai.FinishReason
	if len(resp.Choices) > 0 {
		result.Text = resp.Choices[0].Message.Content
		finishReason = resp.Choices[0].FinishReason
	}

	if result.Usage.Total() == 0 {
		// Some compatible endpoints do not report usage.
		usage, err := estimateUsage(openaiReq.Model, openaiReq.Messages, result.Text)
		if err != nil {
			ctxlog.From(ctx).Warn("failed to estimate token usage", "error", err)
		} else {
			result.Usage = usage
		}
	}

	responseLogger := ctxlog.From(ctx, openaiResponseScope)
	if responseLogger.Enabled(ctx, slog.LevelInfo) {
		responseLogger.Info("OpenAI response",
			"caller", req.Name,
			"model", resp.Model,
			"finish_reason", finishReason,
			"usage", result.Usage,
			"content", result.Text,
		)
	}

	return result, nil
}

func (c *Client) createRequest(req *refloop.CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: c.params.MaxTokens,
	}

	switch {
	case req.Temperature != nil:
		openaiReq.Temperature = float32(*req.Temperature)
	case c.params.Temperature != nil:
		openaiReq.Temperature = *c.params.Temperature
	}

	if req.Format == refloop.ResponseFormatJSON {
		openaiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return openaiReq
}

func convertMessage(m refloop.Message) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	switch m.Role {
	case refloop.RoleSystem:
		role = openai.ChatMessageRoleSystem
	case refloop.RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	}
	return openai.ChatCompletionMessage{
		Role:    role,
		Content: m.Content,
		Name:    m.Name,
	}
}

func (c *Client) logPrompt(ctx context.Context, caller string, req openai.ChatCompletionRequest) {
	// Log prompts if REFLOOP_LOGGING_OPENAI_PROMPT is set
	logger := ctxlog.From(ctx, openaiPromptScope)
	if !logger.Enabled(ctx, slog.LevelInfo) {
		return
	}

	var messages []map[string]string
	for _, msg := range req.Messages {
		messages = append(messages, map[string]string{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}
	logger.Info("OpenAI prompt",
		"caller", caller,
		"model", req.Model,
		"messages", messages,
	)
}

// estimateUsage counts tokens locally with tiktoken.
func estimateUsage(model string, messages []openai.ChatCompletionMessage, output string) (refloop.TokenUsage, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return refloop.TokenUsage{}, goerr.Wrap(err, "failed to get encoding")
		}
	}

	// Per message overhead follows the OpenAI cookbook.
	const tokensPerMessage = 3
	var input int
	for _, m := range messages {
		input += tokensPerMessage
		input += len(encoding.Encode(m.Role, nil, nil))
		input += len(encoding.Encode(m.Content, nil, nil))
		if m.Name != "" {
			input += len(encoding.Encode(m.Name, nil, nil)) + 1
		}
	}
	input += 3 // reply priming

	return refloop.TokenUsage{
		InputTokens:  int64(input),
		OutputTokens: int64(len(encoding.Encode(output, nil, nil))),
	}, nil
}

// tokenLimitErrorOptions checks if the error is a token limit exceeded error
// and returns goerr.Option to tag the error with ErrTagTokenExceeded.
// Returns nil if the error is not a token limit exceeded error.
//
// Detection logic:
// - Error must be *openai.APIError
// - Type must be "invalid_request_error"
// - Code must be "context_length_exceeded" (as string)
func tokenLimitErrorOptions(err error) []goerr.Option {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.Type != "invalid_request_error" {
		return nil
	}

	codeStr, ok := apiErr.Code.(string)
	if !ok {
		return nil
	}

	if codeStr == "context_length_exceeded" {
		return []goerr.Option{goerr.Tag(refloop.ErrTagTokenExceeded)}
	}

	return nil
}
