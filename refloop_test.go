package refloop_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/refloop"
	"github.com/m-mizutani/refloop/internal"
	"github.com/m-mizutani/refloop/mock"
)

func replyingClient(replies ...string) *mock.LLMClientMock {
	var n int
	return &mock.LLMClientMock{
		CompleteFunc: func(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
			text := replies[min(n, len(replies)-1)]
			n++
			return &refloop.CompletionResponse{
				Text:  text,
				Usage: refloop.TokenUsage{InputTokens: 10, OutputTokens: 5},
			}, nil
		},
	}
}

func TestAgentRun(t *testing.T) {
	ctx := refloop.ContextWithLogger(context.Background(), internal.TestLogger())
	client := replyingClient("first answer")

	agent := refloop.New(client,
		refloop.WithName("writer"),
		refloop.WithModel("test-model"),
		refloop.WithTemperature(0.2),
		refloop.WithSystemPrompt("You write in {{.language}}."),
		refloop.WithVariables(map[string]any{"language": "English"}),
	)

	out, err := agent.Run(ctx, "Write a haiku")
	gt.NoError(t, err)
	gt.Equal(t, out, "first answer")
	gt.Equal(t, agent.Output(), "first answer")
	gt.Equal(t, agent.Input(), "Write a haiku")
	gt.Equal(t, agent.TokenUsage().Total(), int64(15))

	calls := client.CompleteCalls()
	gt.A(t, calls).Length(1)
	req := calls[0].Req
	gt.Equal(t, req.Model, "test-model")
	gt.Equal(t, *req.Temperature, 0.2)
	gt.Equal(t, req.Format, refloop.ResponseFormatText)
	gt.A(t, req.Messages).Length(2)
	gt.Equal(t, req.Messages[0].Role, refloop.RoleSystem)
	gt.Equal(t, req.Messages[0].Content, "You write in English.")
	gt.Equal(t, req.Messages[1].Content, "Write a haiku")
}

func TestAgentRegenerate(t *testing.T) {
	ctx := context.Background()
	client := replyingClient("v1", "v2")
	agent := refloop.New(client, refloop.WithSystemPrompt("lang={{.language}}"))

	_, err := agent.Run(ctx, "task")
	gt.NoError(t, err)

	gt.NoError(t, agent.Regenerate(ctx, "please improve", map[string]any{"language": "Go"}))
	gt.Equal(t, agent.Output(), "v2")

	conv := agent.Conversation()
	gt.A(t, conv).Length(4)
	gt.Equal(t, conv[0].Content, "task")
	gt.Equal(t, conv[1], refloop.AssistantMessage("v1"))
	gt.Equal(t, conv[2], refloop.UserMessage("please improve"))
	gt.Equal(t, conv[3], refloop.AssistantMessage("v2"))

	// The whole conversation is sent on regeneration.
	req := client.CompleteCalls()[1].Req
	gt.A(t, req.Messages).Length(4)
	gt.Equal(t, req.Messages[0].Content, "lang=Go")
	gt.Equal(t, agent.TokenUsage().Total(), int64(30))
}

func TestAgentCompletionError(t *testing.T) {
	errAPI := errors.New("api down")
	client := &mock.LLMClientMock{
		CompleteFunc: func(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
			return nil, errAPI
		},
	}

	agent := refloop.New(client)
	_, err := agent.Run(context.Background(), "task")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, errAPI))
	gt.True(t, goerr.HasTag(err, refloop.ErrTagProvider))
	gt.Equal(t, agent.Output(), "")
}

func TestAgentEmptyResponse(t *testing.T) {
	agent := refloop.New(replyingClient(""))
	_, err := agent.Run(context.Background(), "task")
	gt.True(t, errors.Is(err, refloop.ErrEmptyResponse))
}

func TestAgentTokenUsageConcurrent(t *testing.T) {
	agent := refloop.New(replyingClient("x"))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agent.AddTokenUsage(refloop.TokenUsage{InputTokens: 1, OutputTokens: 1})
		}()
	}
	wg.Wait()

	gt.Equal(t, agent.TokenUsage(), refloop.TokenUsage{InputTokens: 50, OutputTokens: 50})
}

func TestEnsureReflectionTerminations(t *testing.T) {
	agent := refloop.New(replyingClient("x"), refloop.WithTerminations(refloop.NewStopMessageTermination("DONE")))
	agent.EnsureReflectionTerminations(3)

	gt.Equal(t, agent.MaxRound(), 3)
	gt.A(t, agent.Terminations()).Length(2)

	// Idempotent
	agent.EnsureReflectionTerminations(3)
	gt.A(t, agent.Terminations()).Length(2)
}

func TestSplitSystem(t *testing.T) {
	system, rest := refloop.SplitSystem([]refloop.Message{
		refloop.SystemMessage("a"),
		refloop.UserMessage("q"),
		refloop.SystemMessage("b"),
	})
	gt.Equal(t, system, "a\n\nb")
	gt.A(t, rest).Length(1)
	gt.Equal(t, rest[0].Content, "q")
}
