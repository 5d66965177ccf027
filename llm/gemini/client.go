// Package gemini implements refloop.LLMClient for Gemini, either through the
// Gemini API with an API key or through Vertex AI.
package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop"
	"google.golang.org/genai"
)

var (
	// geminiPromptScope is the logging scope for Gemini prompts
	geminiPromptScope = ctxlog.NewScope("gemini_prompt", ctxlog.EnabledBy("REFLOOP_LOGGING_GEMINI_PROMPT"))

	// geminiResponseScope is the logging scope for Gemini responses
	geminiResponseScope = ctxlog.NewScope("gemini_response", ctxlog.EnabledBy("REFLOOP_LOGGING_GEMINI_RESPONSE"))
)

const (
	DefaultModel = "gemini-2.5-flash"
)

// Client is a client for the Gemini API.
type Client struct {
	apiClient apiClient

	defaultModel string

	// temperature is used when the request does not set one.
	temperature *float32
	maxTokens   int32

	// thinkingBudget is passed as is when set. Zero disables thinking on flash models.
	thinkingBudget *int32
}

var _ refloop.LLMClient = (*Client)(nil)

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model. See [DefaultModel].
func WithModel(model string) Option {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithTemperature sets the default temperature.
// Range: 0.0 to 2.0
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.temperature = &temp
	}
}

// WithMaxTokens sets the maximum number of output tokens.
func WithMaxTokens(maxTokens int32) Option {
	return func(c *Client) {
		c.maxTokens = maxTokens
	}
}

// WithThinkingBudget sets the thinking token budget.
func WithThinkingBudget(budget int32) Option {
	return func(c *Client) {
		c.thinkingBudget = &budget
	}
}

// New creates a client that calls Gemini through Vertex AI.
func New(ctx context.Context, projectID, location string, options ...Option) (*Client, error) {
	if projectID == "" {
		return nil, goerr.Wrap(refloop.ErrInvalidConfig, "projectID is required", goerr.Tag(refloop.ErrTagConfig))
	}
	if location == "" {
		return nil, goerr.Wrap(refloop.ErrInvalidConfig, "location is required", goerr.Tag(refloop.ErrTagConfig))
	}

	return newGenAIClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}, options...)
}

// NewWithAPIKey creates a client that calls the Gemini API with an API key.
func NewWithAPIKey(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.Wrap(refloop.ErrInvalidConfig, "Gemini API key is required", goerr.Tag(refloop.ErrTagConfig))
	}

	return newGenAIClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, options...)
}

func newGenAIClient(ctx context.Context, config *genai.ClientConfig, options ...Option) (*Client, error) {
	client := newClient(options...)

	genaiClient, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client", goerr.V("backend", config.Backend), goerr.Tag(refloop.ErrTagConfig))
	}
	client.apiClient = &realAPIClient{client: genaiClient}

	return client, nil
}

func newClient(options ...Option) *Client {
	var budget int32
	client := &Client{
		defaultModel:   DefaultModel,
		thinkingBudget: &budget,
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// Complete sends the messages to GenerateContent. JSON format is mapped to the
// application/json response MIME type.
func (c *Client) Complete(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	contents, config := c.createRequest(req)

	promptLogger := ctxlog.From(ctx, geminiPromptScope)
	if promptLogger.Enabled(ctx, slog.LevelInfo) {
		promptLogger.Info("Gemini prompt",
			"caller", req.Name,
			"model", model,
			"messages", req.Messages,
		)
	}

	resp, err := c.apiClient.GenerateContent(ctx, model, contents, config)
	if err != nil {
		opts := append(tokenLimitErrorOptions(err),
			goerr.V("model", model),
			goerr.Tag(refloop.ErrTagProvider),
		)
		return nil, goerr.Wrap(err, "failed to generate content", opts...)
	}

	result := &refloop.CompletionResponse{
		Text:  resp.Text(),
		Model: resp.ModelVersion,
	}
	if result.Model == "" {
		result.Model = model
	}
	if resp.UsageMetadata != nil {
		result.Usage = refloop.TokenUsage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	responseLogger := ctxlog.From(ctx, geminiResponseScope)
	if responseLogger.Enabled(ctx, slog.LevelInfo) {
		var finishReason genai.FinishReason
		if len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason
		}
		responseLogger.Info("Gemini response",
			"caller", req.Name,
			"model", result.Model,
			"finish_reason", finishReason,
			"usage", result.Usage,
			"content", result.Text,
		)
	}

	return result, nil
}

func (c *Client) createRequest(req *refloop.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, rest := refloop.SplitSystem(req.Messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		var role genai.Role = genai.RoleUser
		if m.Role == refloop.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: c.maxTokens,
	}
	if c.thinkingBudget != nil {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: c.thinkingBudget}
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	switch {
	case req.Temperature != nil:
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	case c.temperature != nil:
		config.Temperature = genai.Ptr(*c.temperature)
	}

	if req.Format == refloop.ResponseFormatJSON {
		config.ResponseMIMEType = "application/json"
	}

	return contents, config
}

// tokenLimitErrorOptions tags a rejected oversized prompt with ErrTagTokenExceeded.
// Returns nil for any other error.
func tokenLimitErrorOptions(err error) []goerr.Option {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.Code != http.StatusBadRequest {
		return nil
	}

	msg := strings.ToLower(apiErr.Message)
	if strings.Contains(msg, "exceeds the maximum number of tokens") || strings.Contains(msg, "token count") {
		return []goerr.Option{goerr.Tag(refloop.ErrTagTokenExceeded)}
	}

	return nil
}
