package reflection

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop"
	"github.com/m-mizutani/refloop/prompt"
	"github.com/m-mizutani/refloop/trace"
)

// Evaluator judges a candidate solution with one LLM call. The call carries
// only the evaluator system prompt and the solution; the agent conversation
// is never sent.
type Evaluator struct {
	renderer *prompt.Renderer
}

// NewEvaluator creates an evaluator. A nil renderer means prompt.Default().
func NewEvaluator(renderer *prompt.Renderer) *Evaluator {
	if renderer == nil {
		renderer = prompt.Default()
	}
	return &Evaluator{renderer: renderer}
}

// EvaluatorName returns the participant name used for the evaluator of agentName.
func EvaluatorName(agentName string) string {
	return agentName + "-evaluator"
}

// Evaluate returns the raw evaluator reply and the tokens it consumed. It does
// not parse the reply. Errors from the LLM client are returned unmodified.
func (x *Evaluator) Evaluate(ctx context.Context, agent Agent, solution string, policy *Policy, vars map[string]any) (string, refloop.TokenUsage, error) {
	messages, err := x.buildMessages(agent, solution, policy, vars)
	if err != nil {
		return "", refloop.TokenUsage{}, err
	}

	req := &refloop.CompletionRequest{
		Messages:    messages,
		Model:       agent.Model(),
		Temperature: agent.Temperature(),
		Format:      refloop.ResponseFormatJSON,
		Name:        EvaluatorName(agent.Name()),
	}

	var resp *refloop.CompletionResponse
	if h := trace.HandlerFrom(ctx); h != nil {
		callCtx := h.StartLLMCall(ctx)
		resp, err = agent.LLMClient().Complete(callCtx, req)
		h.EndLLMCall(callCtx, llmCallData(req, resp), err)
	} else {
		resp, err = agent.LLMClient().Complete(ctx, req)
	}
	if err != nil {
		return "", refloop.TokenUsage{}, err
	}

	return resp.Text, resp.Usage, nil
}

func (x *Evaluator) buildMessages(agent Agent, solution string, policy *Policy, vars map[string]any) ([]refloop.Message, error) {
	data := make(map[string]any, len(vars)+2)
	for k, v := range vars {
		data[k] = v
	}
	data["task"] = agent.Input()
	data["evaluationCriteria"] = policy.EvaluationCriteria()

	system, err := x.renderer.Render(policy.PromptTemplate(), data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to render evaluator prompt", goerr.V("agent", agent.Name()))
	}

	return []refloop.Message{
		{Role: refloop.RoleSystem, Content: system, Name: EvaluatorName(agent.Name())},
		refloop.UserMessage(evaluationRequest(solution)),
	}, nil
}

func llmCallData(req *refloop.CompletionRequest, resp *refloop.CompletionResponse) *trace.LLMCallData {
	data := &trace.LLMCallData{
		Model:  req.Model,
		Caller: req.Name,
		Request: &trace.LLMRequest{
			Format:   req.Format.String(),
			Messages: make([]trace.Message, 0, len(req.Messages)),
		},
	}
	for _, m := range req.Messages {
		data.Request.Messages = append(data.Request.Messages, trace.Message{Role: string(m.Role), Content: m.Content})
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Response = &trace.LLMResponse{Text: resp.Text}
		if resp.Model != "" {
			data.Model = resp.Model
		}
	}
	return data
}
