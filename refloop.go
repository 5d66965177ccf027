// Package refloop provides a conversational LLM agent whose output can be
// refined by the reflection loop in the reflection package.
package refloop

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop/prompt"
	"github.com/m-mizutani/refloop/trace"
)

const (
	DefaultMaxRound = 1
	DefaultName     = "agent"
)

// Agent holds one conversation with an LLM and the latest output it produced.
type Agent struct {
	llm LLMClient

	agentConfig

	mu           sync.Mutex
	input        string
	output       string
	round        int
	conversation []Message
	usage        TokenUsage
}

type agentConfig struct {
	id           string
	name         string
	systemPrompt string
	model        string
	temperature  *float64
	maxRound     int
	terminations []Termination
	variables    map[string]any
	renderer     *prompt.Renderer
	logger       *slog.Logger
}

// Option is the type for the options of the agent.
type Option func(*agentConfig)

// WithID sets the agent ID. Default is a random UUID.
func WithID(id string) Option {
	return func(c *agentConfig) {
		c.id = id
	}
}

// WithName sets the agent name. It also names the evaluator ("<name>-evaluator").
func WithName(name string) Option {
	return func(c *agentConfig) {
		c.name = name
	}
}

// WithSystemPrompt sets the system prompt. It is rendered with the agent variables
// every time the conversation is sent, so it may contain placeholders like {{.language}}.
func WithSystemPrompt(systemPrompt string) Option {
	return func(c *agentConfig) {
		c.systemPrompt = systemPrompt
	}
}

// WithModel sets the model passed in each CompletionRequest. Empty means the
// client's default model.
func WithModel(model string) Option {
	return func(c *agentConfig) {
		c.model = model
	}
}

// WithTemperature sets the sampling temperature passed in each CompletionRequest.
func WithTemperature(temperature float64) Option {
	return func(c *agentConfig) {
		c.temperature = &temperature
	}
}

// WithMaxRound sets the maximum round count visible to termination predicates.
// Default is DefaultMaxRound.
func WithMaxRound(maxRound int) Option {
	return func(c *agentConfig) {
		c.maxRound = maxRound
	}
}

// WithTerminations appends termination predicates.
func WithTerminations(terminations ...Termination) Option {
	return func(c *agentConfig) {
		c.terminations = append(c.terminations, terminations...)
	}
}

// WithVariables sets template variables for the system prompt.
func WithVariables(vars map[string]any) Option {
	return func(c *agentConfig) {
		maps.Copy(c.variables, vars)
	}
}

// WithRenderer sets the prompt renderer. Default is prompt.Default().
func WithRenderer(r *prompt.Renderer) Option {
	return func(c *agentConfig) {
		c.renderer = r
	}
}

// WithLogger sets the logger for agent lifecycle messages. Completion logs use
// the logger in the context.
func WithLogger(logger *slog.Logger) Option {
	return func(c *agentConfig) {
		c.logger = logger
	}
}

// New creates a new agent.
func New(llmClient LLMClient, options ...Option) *Agent {
	a := &Agent{
		llm: llmClient,
		agentConfig: agentConfig{
			id:        uuid.New().String(),
			name:      DefaultName,
			maxRound:  DefaultMaxRound,
			variables: map[string]any{},
			renderer:  prompt.Default(),
			logger:    slog.New(slog.DiscardHandler),
		},
	}

	for _, opt := range options {
		opt(&a.agentConfig)
	}

	a.logger.Debug("agent created",
		"id", a.id,
		"name", a.name,
		"model", a.model,
		"max_round", a.maxRound,
		"terminations", len(a.terminations),
	)

	return a
}

func (x *Agent) ID() string            { return x.id }
func (x *Agent) Name() string          { return x.name }
func (x *Agent) Model() string         { return x.model }
func (x *Agent) LLMClient() LLMClient  { return x.llm }
func (x *Agent) Temperature() *float64 { return x.temperature }

// MaxRound returns the round ceiling seen by termination predicates.
func (x *Agent) MaxRound() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.maxRound
}

// SetMaxRound changes the round ceiling.
func (x *Agent) SetMaxRound(n int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.maxRound = n
}

// Input returns the task given to the last Run.
func (x *Agent) Input() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.input
}

// Output returns the latest assistant reply.
func (x *Agent) Output() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.output
}

// Round returns the current round number. It is driven by the reflection controller.
func (x *Agent) Round() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.round
}

// SetRound sets the current round number.
func (x *Agent) SetRound(round int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.round = round
}

// Terminations returns a copy of the termination predicates.
func (x *Agent) Terminations() []Termination {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Termination(nil), x.terminations...)
}

// NotTerminated reports whether no termination predicate is satisfied. An agent
// without predicates is never terminated.
func (x *Agent) NotTerminated() bool {
	for _, t := range x.Terminations() {
		if t.Terminate(x) {
			x.logger.Debug("termination satisfied", "agent", x.name, "termination", t.Name())
			return false
		}
	}
	return true
}

// EnsureReflectionTerminations makes the agent stoppable by reflection: the
// round ceiling is set to maxRound, and MaxRoundTermination and
// StopMessageTermination are added unless present.
func (x *Agent) EnsureReflectionTerminations(maxRound int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.maxRound = maxRound
	var hasMax, hasStop bool
	for _, t := range x.terminations {
		switch t.(type) {
		case *MaxRoundTermination:
			hasMax = true
		case *StopMessageTermination:
			hasStop = true
		}
	}
	if !hasMax {
		x.terminations = append(x.terminations, NewMaxRoundTermination())
	}
	if !hasStop {
		x.terminations = append(x.terminations, NewStopMessageTermination(""))
	}
}

// AddTokenUsage adds usage to the running total. It is safe for concurrent use.
func (x *Agent) AddTokenUsage(usage TokenUsage) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.usage = x.usage.Add(usage)
}

// TokenUsage returns the running total of consumed tokens.
func (x *Agent) TokenUsage() TokenUsage {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.usage
}

// Conversation returns a copy of the main conversation, excluding the system prompt.
func (x *Agent) Conversation() []Message {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Message(nil), x.conversation...)
}

// Run starts a new conversation with input and returns the first reply.
func (x *Agent) Run(ctx context.Context, input string) (string, error) {
	x.mu.Lock()
	x.input = input
	x.conversation = []Message{UserMessage(input)}
	x.mu.Unlock()

	return x.complete(ctx)
}

// Regenerate appends prompt to the conversation as a user turn and replaces the
// output with the new reply. vars are merged into the system prompt variables.
func (x *Agent) Regenerate(ctx context.Context, prompt string, vars map[string]any) error {
	x.mu.Lock()
	maps.Copy(x.variables, vars)
	x.conversation = append(x.conversation, UserMessage(prompt))
	x.mu.Unlock()

	_, err := x.complete(ctx)
	return err
}

func (x *Agent) complete(ctx context.Context) (string, error) {
	logger := LoggerFromContext(ctx)

	messages, err := x.buildMessages()
	if err != nil {
		return "", err
	}

	req := &CompletionRequest{
		Messages:    messages,
		Model:       x.model,
		Temperature: x.temperature,
		Format:      ResponseFormatText,
		Name:        x.name,
	}

	logger.Debug("agent completion", "agent", x.name, "messages", len(messages))
	resp, err := x.call(ctx, req)
	if err != nil {
		return "", goerr.Wrap(err, "agent completion failed",
			goerr.V("agent", x.name),
			goerr.V("model", x.model),
			goerr.Tag(ErrTagProvider),
		)
	}
	if resp.Text == "" {
		return "", goerr.Wrap(ErrEmptyResponse, "agent received empty output", goerr.V("agent", x.name))
	}

	x.mu.Lock()
	x.usage = x.usage.Add(resp.Usage)
	x.output = resp.Text
	x.conversation = append(x.conversation, AssistantMessage(resp.Text))
	x.mu.Unlock()

	logger.Debug("agent output updated", "agent", x.name, "usage", resp.Usage)
	return resp.Text, nil
}

func (x *Agent) buildMessages() ([]Message, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	messages := make([]Message, 0, len(x.conversation)+1)
	if x.systemPrompt != "" {
		system, err := x.renderer.Render(x.systemPrompt, x.variables)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to render system prompt", goerr.V("agent", x.name))
		}
		messages = append(messages, Message{Role: RoleSystem, Content: system, Name: x.name})
	}
	return append(messages, x.conversation...), nil
}

// call issues the request, wrapping it in an llm_call span when a trace
// handler is present in ctx.
func (x *Agent) call(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	h := trace.HandlerFrom(ctx)
	if h == nil {
		return x.llm.Complete(ctx, req)
	}

	ctx = h.StartLLMCall(ctx)
	resp, err := x.llm.Complete(ctx, req)

	data := &trace.LLMCallData{
		Model:   req.Model,
		Caller:  req.Name,
		Request: &trace.LLMRequest{Format: req.Format.String()},
	}
	for _, m := range req.Messages {
		data.Request.Messages = append(data.Request.Messages, trace.Message{Role: string(m.Role), Content: m.Content})
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Response = &trace.LLMResponse{Text: resp.Text}
	}
	h.EndLLMCall(ctx, data, err)

	return resp, err
}
