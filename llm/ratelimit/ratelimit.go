// Package ratelimit paces calls to a refloop.LLMClient with a token bucket.
//
// The decorator only waits; it never retries. A call that cannot get a token
// before the context ends returns the context error without reaching the
// provider.
package ratelimit

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop"
	"golang.org/x/time/rate"
)

// Client wraps an LLMClient and waits on a limiter before each call.
type Client struct {
	next    refloop.LLMClient
	limiter *rate.Limiter
}

var _ refloop.LLMClient = (*Client)(nil)

// New returns a client allowing rps calls per second with the given burst.
// A burst below 1 is raised to 1.
func New(next refloop.LLMClient, rps float64, burst int) *Client {
	if burst < 1 {
		burst = 1
	}
	return NewWithLimiter(next, rate.NewLimiter(rate.Limit(rps), burst))
}

// NewWithLimiter wraps next with an existing limiter, so several clients can
// share one budget.
func NewWithLimiter(next refloop.LLMClient, limiter *rate.Limiter) *Client {
	return &Client{next: next, limiter: limiter}
}

// Complete waits for a token and forwards the request.
func (c *Client) Complete(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait failed", goerr.V("caller", req.Name))
	}
	ctxlog.From(ctx).Debug("rate limiter passed", "caller", req.Name, "tokens", c.limiter.Tokens())

	return c.next.Complete(ctx, req)
}
