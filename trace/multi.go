package trace

import (
	"context"
	"errors"
)

// multiHandler fans out trace events to multiple Handler implementations.
// Each handler receives its own context so that handlers storing state under
// the same context key (e.g. two Recorders) do not see each other's spans.
type multiHandler struct {
	handlers []Handler
}

// Multi creates a Handler that forwards all events to the given handlers.
func Multi(handlers ...Handler) Handler {
	return &multiHandler{handlers: handlers}
}

type multiCtxKey struct{}

// contexts returns per-handler contexts stored in ctx, or ctx for every handler.
func (m *multiHandler) contexts(ctx context.Context) []context.Context {
	if v, ok := ctx.Value(multiCtxKey{}).([]context.Context); ok && len(v) == len(m.handlers) {
		return v
	}
	ctxs := make([]context.Context, len(m.handlers))
	for i := range ctxs {
		ctxs[i] = ctx
	}
	return ctxs
}

// start runs fn for each handler with its own parent context and stores the
// resulting child contexts in a new context derived from ctx.
func (m *multiHandler) start(ctx context.Context, fn func(h Handler, ctx context.Context) context.Context) context.Context {
	parents := m.contexts(ctx)
	children := make([]context.Context, len(m.handlers))
	for i, h := range m.handlers {
		children[i] = fn(h, parents[i])
	}
	return context.WithValue(ctx, multiCtxKey{}, children)
}

func (m *multiHandler) each(ctx context.Context, fn func(h Handler, ctx context.Context)) {
	ctxs := m.contexts(ctx)
	for i, h := range m.handlers {
		fn(h, ctxs[i])
	}
}

func (m *multiHandler) StartReflection(ctx context.Context, data *ReflectionData) context.Context {
	return m.start(ctx, func(h Handler, c context.Context) context.Context {
		return h.StartReflection(c, data)
	})
}

func (m *multiHandler) EndReflection(ctx context.Context, result *ReflectionResult, err error) {
	m.each(ctx, func(h Handler, c context.Context) { h.EndReflection(c, result, err) })
}

func (m *multiHandler) StartRound(ctx context.Context, round int) context.Context {
	return m.start(ctx, func(h Handler, c context.Context) context.Context {
		return h.StartRound(c, round)
	})
}

func (m *multiHandler) EndRound(ctx context.Context, data *RoundData, err error) {
	m.each(ctx, func(h Handler, c context.Context) { h.EndRound(c, data, err) })
}

func (m *multiHandler) StartLLMCall(ctx context.Context) context.Context {
	return m.start(ctx, func(h Handler, c context.Context) context.Context {
		return h.StartLLMCall(c)
	})
}

func (m *multiHandler) EndLLMCall(ctx context.Context, data *LLMCallData, err error) {
	m.each(ctx, func(h Handler, c context.Context) { h.EndLLMCall(c, data, err) })
}

func (m *multiHandler) AddEvent(ctx context.Context, kind string, data any) {
	m.each(ctx, func(h Handler, c context.Context) { h.AddEvent(c, kind, data) })
}

func (m *multiHandler) Finish(ctx context.Context) error {
	var errs []error
	for _, h := range m.handlers {
		if err := h.Finish(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
