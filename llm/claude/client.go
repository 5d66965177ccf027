// Package claude implements refloop.LLMClient for Anthropic's Messages API.
package claude

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop"
)

var (
	claudePromptScope   = ctxlog.NewScope("claude_prompt", ctxlog.EnabledBy("REFLOOP_LOGGING_CLAUDE_PROMPT"))
	claudeResponseScope = ctxlog.NewScope("claude_response", ctxlog.EnabledBy("REFLOOP_LOGGING_CLAUDE_RESPONSE"))
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature is used when the request does not set one. nil leaves it to the API.
	Temperature *float64

	// MaxTokens is required by the Messages API.
	MaxTokens int64
}

// Client is a client for the Claude API.
type Client struct {
	apiClient apiClient

	defaultModel string
	params       generationParameters
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

// WithTemperature sets the default temperature. Range: 0.0 to 1.0
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.params.Temperature = &temp
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
// Default: 4096
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// New creates a new client for the Claude API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.Wrap(refloop.ErrInvalidConfig, "Claude API key is required", goerr.Tag(refloop.ErrTagConfig))
	}

	client := newClient(options...)
	client.apiClient = &realAPIClient{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
	return client, nil
}

func newClient(options ...Option) *Client {
	client := &Client{
		defaultModel: DefaultModel,
		params: generationParameters{
			MaxTokens: DefaultMaxTokens,
		},
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// Complete sends the messages to the Messages API. Claude has no JSON mode, so
// for JSON format the JSON value is extracted from the reply text.
func (c *Client) Complete(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
	params := c.createParams(req)
	c.logPrompt(ctx, req.Name, params)

	resp, err := c.apiClient.MessagesNew(ctx, params)
	if err != nil {
		opts := append(tokenLimitErrorOptions(err),
			goerr.V("model", params.Model),
			goerr.Tag(refloop.ErrTagProvider),
		)
		return nil, goerr.Wrap(err, "failed to create message", opts...)
	}

	var texts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	text := strings.Join(texts, "")
	if req.Format == refloop.ResponseFormatJSON {
		text = extractJSONFromResponse(text)
	}

	result := &refloop.CompletionResponse{
		Text:  text,
		Model: string(resp.Model),
		Usage: refloop.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}

	responseLogger := ctxlog.From(ctx, claudeResponseScope)
	if responseLogger.Enabled(ctx, slog.LevelInfo) {
		responseLogger.Info("Claude response",
			"caller", req.Name,
			"model", result.Model,
			"stop_reason", resp.StopReason,
			"usage", result.Usage,
			"content", result.Text,
		)
	}

	return result, nil
}

func (c *Client) createParams(req *refloop.CompletionRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	system, rest := refloop.SplitSystem(req.Messages)

	messages := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == refloop.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.params.MaxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	switch {
	case req.Temperature != nil:
		params.Temperature = anthropic.Float(*req.Temperature)
	case c.params.Temperature != nil:
		params.Temperature = anthropic.Float(*c.params.Temperature)
	}

	return params
}

func (c *Client) logPrompt(ctx context.Context, caller string, params anthropic.MessageNewParams) {
	logger := ctxlog.From(ctx, claudePromptScope)
	if !logger.Enabled(ctx, slog.LevelInfo) {
		return
	}

	var system string
	for _, s := range params.System {
		system += s.Text
	}

	var messages []map[string]string
	for _, msg := range params.Messages {
		var content string
		for _, block := range msg.Content {
			if block.OfText != nil {
				content += block.OfText.Text
			}
		}
		messages = append(messages, map[string]string{
			"role":    string(msg.Role),
			"content": content,
		})
	}

	logger.Info("Claude prompt",
		"caller", caller,
		"model", params.Model,
		"system", system,
		"messages", messages,
	)
}

// tokenLimitErrorOptions tags a "prompt is too long" rejection with
// ErrTagTokenExceeded. Returns nil for any other error.
func tokenLimitErrorOptions(err error) []goerr.Option {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.StatusCode != http.StatusBadRequest {
		return nil
	}

	if strings.Contains(apiErr.RawJSON(), "prompt is too long") {
		return []goerr.Option{goerr.Tag(refloop.ErrTagTokenExceeded)}
	}

	return nil
}
