package reflection_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/refloop"
	"github.com/m-mizutani/refloop/internal"
	"github.com/m-mizutani/refloop/mock"
	"github.com/m-mizutani/refloop/reflection"
	"github.com/m-mizutani/refloop/trace"
)

var (
	evalUsage  = refloop.TokenUsage{InputTokens: 10, OutputTokens: 5}
	agentUsage = refloop.TokenUsage{InputTokens: 20, OutputTokens: 10}
)

// scriptedClient answers evaluator (JSON) requests from evaluations and agent
// (text) requests from outputs, in order.
type scriptedClient struct {
	*mock.LLMClientMock

	mu          sync.Mutex
	evaluations []string
	outputs     []string
	evalErr     error
}

func newScriptedClient(outputs []string, evaluations ...string) *scriptedClient {
	c := &scriptedClient{evaluations: evaluations, outputs: outputs}
	c.LLMClientMock = &mock.LLMClientMock{
		CompleteFunc: func(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
			c.mu.Lock()
			defer c.mu.Unlock()

			if req.Format == refloop.ResponseFormatJSON {
				if c.evalErr != nil {
					return nil, c.evalErr
				}
				if len(c.evaluations) == 0 {
					return nil, errors.New("no more evaluations")
				}
				text := c.evaluations[0]
				c.evaluations = c.evaluations[1:]
				return &refloop.CompletionResponse{Text: text, Usage: evalUsage}, nil
			}

			if len(c.outputs) == 0 {
				return nil, errors.New("no more outputs")
			}
			text := c.outputs[0]
			c.outputs = c.outputs[1:]
			return &refloop.CompletionResponse{Text: text, Usage: agentUsage}, nil
		},
	}
	return c
}

func (c *scriptedClient) requests(format refloop.ResponseFormat) []*refloop.CompletionRequest {
	var reqs []*refloop.CompletionRequest
	for _, call := range c.CompleteCalls() {
		if call.Req.Format == format {
			reqs = append(reqs, call.Req)
		}
	}
	return reqs
}

func evalJSON(score int, pass, shouldContinue bool) string {
	return fmt.Sprintf(`{"score": %d, "pass": %t, "should_continue": %t, "strengths": ["clear"], "weaknesses": ["too short"], "suggestions": ["add detail"]}`,
		score, pass, shouldContinue)
}

func setupAgent(t *testing.T, client refloop.LLMClient) *refloop.Agent {
	t.Helper()
	agent := refloop.New(client,
		refloop.WithName("writer"),
		refloop.WithModel("test-model"),
		refloop.WithTerminations(refloop.NewStopMessageTermination("")),
	)
	_, err := agent.Run(testContext(), "write a poem")
	gt.NoError(t, err)
	return agent
}

func testContext() context.Context {
	return refloop.ContextWithLogger(context.Background(), internal.TestLogger())
}

func mustPolicy(t *testing.T, opts ...reflection.PolicyOption) *reflection.Policy {
	t.Helper()
	p, err := reflection.NewPolicy(opts...)
	gt.NoError(t, err)
	return p
}

func TestImproveUntilScoreAchieved(t *testing.T) {
	client := newScriptedClient([]string{"draft", "improved"},
		evalJSON(6, false, true),
		evalJSON(9, true, false),
	)
	agent := setupAgent(t, client)
	observer := &mock.ObserverMock{}

	ctrl := reflection.NewController(agent,
		mustPolicy(t, reflection.WithMaxRound(3), reflection.WithMinRound(1)),
		reflection.WithObserver(observer),
	)
	gt.NoError(t, ctrl.Execute(testContext()))

	history := ctrl.History()
	gt.Equal(t, history.Status(), reflection.StatusCompletedSuccess)
	gt.Equal(t, history.TotalRounds(), 2)
	gt.Equal(t, history.ScoreProgression(), []int{6, 9})
	gt.Equal(t, history.FinalScore(), 9)
	gt.True(t, history.HasContinuousImprovement())
	gt.Equal(t, agent.Output(), "improved")

	rounds := history.Rounds()
	gt.Equal(t, rounds[0].EvaluationInput, "draft")
	gt.Equal(t, rounds[1].EvaluationInput, "improved")
	gt.Equal(t, rounds[1].EvaluationOutputRaw, evalJSON(9, true, false))

	gt.A(t, client.requests(refloop.ResponseFormatJSON)).Length(2)
	gt.A(t, client.requests(refloop.ResponseFormatText)).Length(2) // Run + one regeneration

	gt.A(t, observer.OnReflectionStartCalls()).Length(1)
	gt.A(t, observer.OnBeforeRoundCalls()).Length(2)
	gt.A(t, observer.OnAfterRoundCalls()).Length(1)
	gt.Equal(t, observer.OnAfterRoundCalls()[0].Output, "improved")
	gt.A(t, observer.OnScoreAchievedCalls()).Length(1)
	gt.Equal(t, observer.OnScoreAchievedCalls()[0].Score, 9)
	gt.Equal(t, observer.OnScoreAchievedCalls()[0].Round, 2)
	gt.A(t, observer.OnReflectionCompleteCalls()).Length(1)
	gt.A(t, observer.OnErrorCalls()).Length(0)
	gt.A(t, observer.OnMaxRoundsReachedCalls()).Length(0)
}

func TestMaxRoundsReached(t *testing.T) {
	client := newScriptedClient([]string{"v0", "v1", "v2"},
		evalJSON(5, false, true),
		evalJSON(5, false, true),
	)
	agent := setupAgent(t, client)
	observer := &mock.ObserverMock{}

	ctrl := reflection.NewController(agent,
		mustPolicy(t, reflection.WithMaxRound(2), reflection.WithMinRound(1)),
		reflection.WithObserver(observer),
	)
	gt.NoError(t, ctrl.Execute(testContext()))

	history := ctrl.History()
	gt.Equal(t, history.Status(), reflection.StatusCompletedMaxRounds)
	gt.Equal(t, history.TotalRounds(), 2)
	gt.Equal(t, agent.Round(), 3)
	gt.Equal(t, agent.Output(), "v2")
	gt.False(t, history.HasContinuousImprovement())

	gt.A(t, observer.OnMaxRoundsReachedCalls()).Length(1)
	gt.Equal(t, observer.OnMaxRoundsReachedCalls()[0].LastScore, 5)
	gt.A(t, observer.OnAfterRoundCalls()).Length(2)
}

func TestAtMostMaxRoundRounds(t *testing.T) {
	for maxRound := 1; maxRound <= 4; maxRound++ {
		t.Run(fmt.Sprintf("max %d", maxRound), func(t *testing.T) {
			outputs := make([]string, maxRound+1)
			evals := make([]string, maxRound+1)
			for i := range outputs {
				outputs[i] = fmt.Sprintf("v%d", i)
				evals[i] = evalJSON(3, false, true)
			}
			client := newScriptedClient(outputs, evals...)
			agent := setupAgent(t, client)

			ctrl := reflection.NewController(agent, mustPolicy(t, reflection.WithMaxRound(maxRound), reflection.WithMinRound(1)))
			gt.NoError(t, ctrl.Execute(testContext()))
			gt.Equal(t, ctrl.History().TotalRounds(), maxRound)
			gt.A(t, client.requests(refloop.ResponseFormatJSON)).Length(maxRound)
		})
	}
}

func TestNoImprovementStopsRegardlessOfScore(t *testing.T) {
	client := newScriptedClient([]string{"draft"}, evalJSON(3, false, false))
	agent := setupAgent(t, client)
	observer := &mock.ObserverMock{}

	ctrl := reflection.NewController(agent, mustPolicy(t), reflection.WithObserver(observer))
	gt.NoError(t, ctrl.Execute(testContext()))

	gt.Equal(t, ctrl.History().Status(), reflection.StatusCompletedNoImprovement)
	gt.Equal(t, ctrl.History().TotalRounds(), 1)
	gt.A(t, observer.OnNoImprovementCalls()).Length(1)
	gt.Equal(t, observer.OnNoImprovementCalls()[0].Score, 3)
	gt.A(t, client.requests(refloop.ResponseFormatText)).Length(1)
}

func TestGoodEnoughAfterMinRound(t *testing.T) {
	client := newScriptedClient([]string{"draft", "better"},
		evalJSON(7, false, true),
		evalJSON(7, false, true),
	)
	agent := setupAgent(t, client)
	observer := &mock.ObserverMock{}

	ctrl := reflection.NewController(agent,
		mustPolicy(t, reflection.WithMaxRound(3), reflection.WithMinRound(2)),
		reflection.WithObserver(observer),
	)
	gt.NoError(t, ctrl.Execute(testContext()))

	history := ctrl.History()
	gt.Equal(t, history.TotalRounds(), 2)
	gt.Equal(t, history.Status(), reflection.StatusCompletedSuccess)
	gt.A(t, observer.OnScoreAchievedCalls()).Length(0)
	gt.A(t, observer.OnNoImprovementCalls()).Length(0)
}

func TestGoodEnoughWithoutPass(t *testing.T) {
	client := newScriptedClient([]string{"draft"}, evalJSON(7, false, true))
	agent := setupAgent(t, client)

	ctrl := reflection.NewController(agent, mustPolicy(t, reflection.WithMaxRound(3), reflection.WithMinRound(1)))
	gt.NoError(t, ctrl.Execute(testContext()))
	gt.Equal(t, ctrl.History().TotalRounds(), 1)
	gt.A(t, client.requests(refloop.ResponseFormatText)).Length(1)
}

func TestScoreOutOfRangeFails(t *testing.T) {
	for _, score := range []int{0, 11} {
		t.Run(fmt.Sprintf("score %d", score), func(t *testing.T) {
			client := newScriptedClient([]string{"draft"}, evalJSON(score, true, false))
			agent := setupAgent(t, client)
			observer := &mock.ObserverMock{}

			ctrl := reflection.NewController(agent, mustPolicy(t), reflection.WithObserver(observer))
			err := ctrl.Execute(testContext())
			gt.Error(t, err)
			gt.True(t, errors.Is(err, reflection.ErrScoreOutOfRange))

			gt.Equal(t, ctrl.History().Status(), reflection.StatusFailed)
			gt.Equal(t, ctrl.History().TotalRounds(), 0)
			gt.A(t, observer.OnErrorCalls()).Length(1)
			gt.A(t, observer.OnReflectionCompleteCalls()).Length(0)
		})
	}
}

func TestMalformedEvaluationFails(t *testing.T) {
	client := newScriptedClient([]string{"draft"}, "I think it is fine.")
	agent := setupAgent(t, client)

	ctrl := reflection.NewController(agent, mustPolicy(t))
	err := ctrl.Execute(testContext())
	gt.True(t, errors.Is(err, reflection.ErrEvaluationDecode))
	gt.Equal(t, ctrl.History().Status(), reflection.StatusFailed)
	gt.A(t, client.requests(refloop.ResponseFormatJSON)).Length(1)
}

func TestStrictEvaluation(t *testing.T) {
	bare := `{"score": 6, "pass": false, "should_continue": true}`

	t.Run("strict rejects", func(t *testing.T) {
		client := newScriptedClient([]string{"draft"}, bare)
		agent := setupAgent(t, client)

		ctrl := reflection.NewController(agent, mustPolicy(t, reflection.WithStrictEvaluation(true)))
		err := ctrl.Execute(testContext())
		gt.True(t, errors.Is(err, reflection.ErrMalformedEvaluation))
		gt.Equal(t, ctrl.History().Status(), reflection.StatusFailed)
	})

	t.Run("default accepts", func(t *testing.T) {
		client := newScriptedClient([]string{"draft", "better"}, bare, evalJSON(9, true, false))
		agent := setupAgent(t, client)

		ctrl := reflection.NewController(agent, mustPolicy(t))
		gt.NoError(t, ctrl.Execute(testContext()))
		gt.Equal(t, ctrl.History().TotalRounds(), 2)
	})
}

func TestConfigurationErrors(t *testing.T) {
	t.Run("minRound above maxRound", func(t *testing.T) {
		_, err := reflection.NewPolicy(reflection.WithMinRound(3), reflection.WithMaxRound(1))
		gt.Error(t, err)
		gt.True(t, errors.Is(err, refloop.ErrInvalidConfig))
		gt.True(t, goerr.HasTag(err, refloop.ErrTagConfig))
	})

	t.Run("no termination", func(t *testing.T) {
		client := newScriptedClient(nil)
		agent := refloop.New(client)

		ctrl := reflection.NewController(agent, mustPolicy(t))
		err := ctrl.Execute(testContext())
		gt.True(t, errors.Is(err, refloop.ErrNoTermination))
		gt.True(t, goerr.HasTag(err, refloop.ErrTagConfig))
		gt.Value(t, ctrl.History()).Nil()
		gt.A(t, client.CompleteCalls()).Length(0)
	})
}

func TestExecuteOnlyOnce(t *testing.T) {
	client := newScriptedClient([]string{"draft"}, evalJSON(9, true, false))
	agent := setupAgent(t, client)

	ctrl := reflection.NewController(agent, mustPolicy(t))
	gt.NoError(t, ctrl.Execute(testContext()))

	err := ctrl.Execute(testContext())
	gt.True(t, errors.Is(err, reflection.ErrAlreadyExecuted))
	gt.Equal(t, ctrl.History().Status(), reflection.StatusCompletedSuccess)
}

func TestObserverErrorAbortsRun(t *testing.T) {
	client := newScriptedClient([]string{"draft"}, evalJSON(9, true, false))
	agent := setupAgent(t, client)
	errHook := errors.New("hook failed")
	observer := &mock.ObserverMock{
		OnBeforeRoundFunc: func(ctx context.Context, round int, output string) error {
			return errHook
		},
	}

	ctrl := reflection.NewController(agent, mustPolicy(t), reflection.WithObserver(observer))
	err := ctrl.Execute(testContext())
	gt.True(t, errors.Is(err, errHook))
	gt.Equal(t, ctrl.History().Status(), reflection.StatusFailed)
	gt.A(t, client.requests(refloop.ResponseFormatJSON)).Length(0)
	gt.A(t, observer.OnErrorCalls()).Length(1)
	gt.True(t, errors.Is(observer.OnErrorCalls()[0].Err, errHook))
}

func TestCompleteObserverErrorFails(t *testing.T) {
	client := newScriptedClient([]string{"draft"}, evalJSON(9, true, false))
	agent := setupAgent(t, client)
	errHook := errors.New("sink unavailable")
	observer := &mock.ObserverMock{
		OnReflectionCompleteFunc: func(ctx context.Context, history *reflection.History) error {
			return errHook
		},
	}

	ctrl := reflection.NewController(agent, mustPolicy(t), reflection.WithObserver(observer))
	err := ctrl.Execute(testContext())
	gt.True(t, errors.Is(err, errHook))
	gt.Equal(t, ctrl.History().Status(), reflection.StatusFailed)
	gt.False(t, ctrl.History().EndTime().IsZero())
	gt.A(t, ctrl.History().Rounds()).Length(1)
	gt.A(t, observer.OnErrorCalls()).Length(1)
	gt.Equal(t, observer.OnErrorCalls()[0].History.Status(), reflection.StatusFailed)
}

func TestProviderErrorFails(t *testing.T) {
	client := newScriptedClient([]string{"draft"})
	errProvider := errors.New("503 service unavailable")
	client.evalErr = errProvider
	agent := setupAgent(t, client)

	ctrl := reflection.NewController(agent, mustPolicy(t))
	err := ctrl.Execute(testContext())
	gt.True(t, errors.Is(err, errProvider))
	gt.Equal(t, ctrl.History().Status(), reflection.StatusFailed)
}

func TestCanceledProviderCallFails(t *testing.T) {
	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		t.Run(cause.Error(), func(t *testing.T) {
			client := newScriptedClient([]string{"draft"})
			client.evalErr = cause
			agent := setupAgent(t, client)

			ctrl := reflection.NewController(agent, mustPolicy(t))
			err := ctrl.Execute(testContext())
			gt.True(t, errors.Is(err, cause))
			gt.Equal(t, ctrl.History().Status(), reflection.StatusFailed)
		})
	}
}

func TestEvaluationIsIsolated(t *testing.T) {
	client := newScriptedClient([]string{"draft", "improved"},
		`{"score": 4, "pass": false, "should_continue": true, "weaknesses": ["no rhyme"], "suggestions": ["add rhyme", "shorten"]}`,
		evalJSON(9, true, false),
	)
	agent := setupAgent(t, client)

	ctrl := reflection.NewController(agent,
		mustPolicy(t, reflection.WithEvaluationCriteria("must rhyme")),
		reflection.WithVariables(map[string]any{"audience": "kids"}),
	)
	gt.NoError(t, ctrl.Execute(testContext()))

	evalReqs := client.requests(refloop.ResponseFormatJSON)
	gt.A(t, evalReqs).Length(2)
	for _, req := range evalReqs {
		gt.A(t, req.Messages).Length(2)
		gt.Equal(t, req.Messages[0].Role, refloop.RoleSystem)
		gt.Equal(t, req.Messages[0].Name, "writer-evaluator")
		gt.S(t, req.Messages[0].Content).Contains("write a poem")
		gt.S(t, req.Messages[0].Content).Contains("must rhyme")
		gt.Equal(t, req.Messages[1].Role, refloop.RoleUser)
		gt.Equal(t, req.Name, "writer-evaluator")
		gt.Equal(t, req.Model, "test-model")
	}
	gt.Equal(t, evalReqs[0].Messages[1].Content, reflection.EvaluationRequest("draft"))
	gt.Equal(t, evalReqs[1].Messages[1].Content, reflection.EvaluationRequest("improved"))

	conversation := agent.Conversation()
	gt.A(t, conversation).Length(4)
	gt.Equal(t, conversation[0].Content, "write a poem")
	gt.Equal(t, conversation[1].Content, "draft")
	gt.Equal(t, conversation[2].Content, "Based on the evaluation feedback, please improve your solution.\n\n"+
		"**Evaluation Feedback:**\n"+
		`{"score": 4, "pass": false, "should_continue": true, "weaknesses": ["no rhyme"], "suggestions": ["add rhyme", "shorten"]}`+"\n\n"+
		"**Key Issues to Address:**\n- no rhyme\n\n"+
		"**Improvement Suggestions:**\n- add rhyme\n- shorten\n\n"+
		"Please provide an improved solution that addresses these points.")
	gt.Equal(t, conversation[3].Content, "improved")
	for _, m := range conversation {
		gt.False(t, strings.Contains(m.Content, "expert evaluator"))
	}
}

func TestAgentTerminatedBeforeEvaluation(t *testing.T) {
	client := newScriptedClient([]string{"done. TERMINATE"})
	agent := setupAgent(t, client)

	ctrl := reflection.NewController(agent, mustPolicy(t))
	gt.NoError(t, ctrl.Execute(testContext()))
	gt.Equal(t, ctrl.History().TotalRounds(), 0)
	gt.Equal(t, ctrl.History().Status(), reflection.StatusCompletedSuccess)
	gt.A(t, client.requests(refloop.ResponseFormatJSON)).Length(0)
}

func TestTokenAccounting(t *testing.T) {
	client := newScriptedClient([]string{"draft", "better"},
		evalJSON(5, false, true),
		evalJSON(9, true, false),
	)
	agent := setupAgent(t, client)
	initial := agent.TokenUsage().Total()

	ctrl := reflection.NewController(agent, mustPolicy(t))
	gt.NoError(t, ctrl.Execute(testContext()))

	rounds := ctrl.History().Rounds()
	gt.A(t, rounds).Length(2)
	gt.Equal(t, rounds[0].TokensUsed, evalUsage.Total()+agentUsage.Total())
	gt.Equal(t, rounds[1].TokensUsed, evalUsage.Total())
	gt.Equal(t, rounds[0].CumulativeTokens, initial+rounds[0].TokensUsed)
	gt.Equal(t, rounds[1].CumulativeTokens, rounds[0].CumulativeTokens+rounds[1].TokensUsed)
	gt.Equal(t, ctrl.History().TotalTokensUsed(), rounds[0].TokensUsed+rounds[1].TokensUsed)
	gt.Equal(t, agent.TokenUsage().Total(), rounds[1].CumulativeTokens)
}

func TestReflect(t *testing.T) {
	t.Run("disabled policy", func(t *testing.T) {
		client := newScriptedClient(nil)
		history, err := reflection.Reflect(testContext(), refloop.New(client), mustPolicy(t, reflection.WithEnabled(false)))
		gt.NoError(t, err)
		gt.Value(t, history).Nil()
		gt.A(t, client.CompleteCalls()).Length(0)
	})

	t.Run("installs terminations", func(t *testing.T) {
		client := newScriptedClient([]string{"draft"}, evalJSON(8, true, false))
		agent := refloop.New(client, refloop.WithName("writer"))
		_, err := agent.Run(testContext(), "task")
		gt.NoError(t, err)
		gt.A(t, agent.Terminations()).Length(0)

		history, err := reflection.Reflect(testContext(), agent, mustPolicy(t, reflection.WithMaxRound(2)))
		gt.NoError(t, err)
		gt.Equal(t, history.Status(), reflection.StatusCompletedSuccess)
		gt.A(t, agent.Terminations()).Length(2)
		gt.Equal(t, agent.MaxRound(), 2)
	})
}

func TestTraceRecording(t *testing.T) {
	client := newScriptedClient([]string{"draft", "better"},
		evalJSON(5, false, true),
		evalJSON(9, true, false),
	)
	agent := setupAgent(t, client)
	rec := trace.New()
	ctx := trace.WithHandler(testContext(), rec)

	ctrl := reflection.NewController(agent, mustPolicy(t))
	gt.NoError(t, ctrl.Execute(ctx))

	root := rec.Trace().RootSpan
	gt.Equal(t, root.Kind, trace.SpanKindReflection)
	gt.Equal(t, root.Name, "reflection:writer")
	gt.Equal(t, root.Result.Status, string(reflection.StatusCompletedSuccess))
	gt.Equal(t, root.Result.ScoreProgression, []int{5, 9})
	gt.Equal(t, root.Result.BestRound, 2)

	var rounds []*trace.Span
	var events []string
	for _, child := range root.Children {
		switch child.Kind {
		case trace.SpanKindRound:
			rounds = append(rounds, child)
		case trace.SpanKindEvent:
			events = append(events, child.Name)
		}
	}
	gt.Equal(t, events, []string{"reflection_start", "reflection_complete"})
	gt.A(t, rounds).Length(2)
	gt.Equal(t, rounds[0].Round.Score, 5)
	gt.Equal(t, rounds[0].Round.TerminationReason, "")
	gt.Equal(t, rounds[1].Round.TerminationReason, reflection.ReasonScoreAchieved)

	// round 1: evaluator call, evaluation_parsed, agent call, regenerated
	var kinds []string
	for _, child := range rounds[0].Children {
		kinds = append(kinds, child.Name)
	}
	gt.Equal(t, kinds, []string{"llm_call", "evaluation_parsed", "llm_call", "regenerated"})
	gt.Equal(t, rounds[0].Children[0].LLMCall.Caller, "writer-evaluator")
	gt.Equal(t, rounds[0].Children[2].LLMCall.Caller, "writer")
}
