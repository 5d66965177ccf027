package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/refloop"
	"github.com/m-mizutani/refloop/llm/ratelimit"
	"github.com/m-mizutani/refloop/mock"
	"golang.org/x/time/rate"
)

func newMock() *mock.LLMClientMock {
	return &mock.LLMClientMock{
		CompleteFunc: func(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
			return &refloop.CompletionResponse{Text: "ok"}, nil
		},
	}
}

func TestForwardsRequest(t *testing.T) {
	next := newMock()
	client := ratelimit.New(next, 100, 1)

	resp, err := client.Complete(context.Background(), &refloop.CompletionRequest{Name: "writer"})
	gt.NoError(t, err)
	gt.Equal(t, resp.Text, "ok")
	gt.A(t, next.CompleteCalls()).Length(1)
	gt.Equal(t, next.CompleteCalls()[0].Req.Name, "writer")
}

func TestPacesCalls(t *testing.T) {
	next := newMock()
	client := ratelimit.New(next, 20, 1)

	start := time.Now()
	for range 3 {
		_, err := client.Complete(context.Background(), &refloop.CompletionRequest{})
		gt.NoError(t, err)
	}

	// the first call uses the burst, the next two wait ~50ms each
	gt.True(t, time.Since(start) >= 80*time.Millisecond)
	gt.A(t, next.CompleteCalls()).Length(3)
}

func TestContextDeadlineSkipsProvider(t *testing.T) {
	next := newMock()
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	client := ratelimit.NewWithLimiter(next, limiter)

	_, err := client.Complete(context.Background(), &refloop.CompletionRequest{})
	gt.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = client.Complete(ctx, &refloop.CompletionRequest{})
	gt.Error(t, err)
	gt.A(t, next.CompleteCalls()).Length(1)
}

func TestCanceledContext(t *testing.T) {
	next := newMock()
	client := ratelimit.New(next, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, &refloop.CompletionRequest{})
	gt.True(t, errors.Is(err, context.Canceled))
	gt.A(t, next.CompleteCalls()).Length(0)
}

func TestProviderErrorPassesThrough(t *testing.T) {
	providerErr := errors.New("rate limited upstream")
	next := &mock.LLMClientMock{
		CompleteFunc: func(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
			return nil, providerErr
		},
	}
	client := ratelimit.New(next, 100, 1)

	_, err := client.Complete(context.Background(), &refloop.CompletionRequest{})
	gt.Equal(t, err, providerErr)
	gt.A(t, next.CompleteCalls()).Length(1)
}
