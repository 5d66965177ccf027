package reflection

import "context"

// Observer receives lifecycle events of a reflection run. Methods are called
// synchronously on the controller goroutine; a returned error aborts the run.
//
//go:generate go tool moq -stub -out ../mock/observer.go -pkg mock . Observer
type Observer interface {
	OnReflectionStart(ctx context.Context, history *History) error
	OnBeforeRound(ctx context.Context, round int, output string) error
	OnAfterRound(ctx context.Context, round int, output string, eval *Evaluation) error
	OnScoreAchieved(ctx context.Context, score, round int) error
	OnNoImprovement(ctx context.Context, score, round int) error
	OnMaxRoundsReached(ctx context.Context, lastScore int) error
	OnReflectionComplete(ctx context.Context, history *History) error
	OnError(ctx context.Context, history *History, err error)
}

// NopObserver implements Observer with no-ops. Embed it to override only some events.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) OnReflectionStart(context.Context, *History) error            { return nil }
func (NopObserver) OnBeforeRound(context.Context, int, string) error             { return nil }
func (NopObserver) OnAfterRound(context.Context, int, string, *Evaluation) error { return nil }
func (NopObserver) OnScoreAchieved(context.Context, int, int) error              { return nil }
func (NopObserver) OnNoImprovement(context.Context, int, int) error              { return nil }
func (NopObserver) OnMaxRoundsReached(context.Context, int) error                { return nil }
func (NopObserver) OnReflectionComplete(context.Context, *History) error         { return nil }
func (NopObserver) OnError(context.Context, *History, error)                     {}

type multiObserver []Observer

// Observers combines observers. Events are delivered in order and delivery
// stops at the first error.
func Observers(observers ...Observer) Observer {
	return multiObserver(observers)
}

func (m multiObserver) each(fn func(Observer) error) error {
	for _, o := range m {
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}

func (m multiObserver) OnReflectionStart(ctx context.Context, h *History) error {
	return m.each(func(o Observer) error { return o.OnReflectionStart(ctx, h) })
}

func (m multiObserver) OnBeforeRound(ctx context.Context, round int, output string) error {
	return m.each(func(o Observer) error { return o.OnBeforeRound(ctx, round, output) })
}

func (m multiObserver) OnAfterRound(ctx context.Context, round int, output string, eval *Evaluation) error {
	return m.each(func(o Observer) error { return o.OnAfterRound(ctx, round, output, eval) })
}

func (m multiObserver) OnScoreAchieved(ctx context.Context, score, round int) error {
	return m.each(func(o Observer) error { return o.OnScoreAchieved(ctx, score, round) })
}

func (m multiObserver) OnNoImprovement(ctx context.Context, score, round int) error {
	return m.each(func(o Observer) error { return o.OnNoImprovement(ctx, score, round) })
}

func (m multiObserver) OnMaxRoundsReached(ctx context.Context, lastScore int) error {
	return m.each(func(o Observer) error { return o.OnMaxRoundsReached(ctx, lastScore) })
}

func (m multiObserver) OnReflectionComplete(ctx context.Context, h *History) error {
	return m.each(func(o Observer) error { return o.OnReflectionComplete(ctx, h) })
}

// OnError is delivered to every observer.
func (m multiObserver) OnError(ctx context.Context, h *History, err error) {
	for _, o := range m {
		o.OnError(ctx, h, err)
	}
}
