package reflection_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/refloop/mock"
	"github.com/m-mizutani/refloop/reflection"
)

type countingObserver struct {
	reflection.NopObserver
	completed int
}

func (x *countingObserver) OnReflectionComplete(ctx context.Context, h *reflection.History) error {
	x.completed++
	return nil
}

func TestObserversDeliverInOrder(t *testing.T) {
	var order []string
	first := &mock.ObserverMock{
		OnBeforeRoundFunc: func(ctx context.Context, round int, output string) error {
			order = append(order, "first")
			return nil
		},
	}
	second := &mock.ObserverMock{
		OnBeforeRoundFunc: func(ctx context.Context, round int, output string) error {
			order = append(order, "second")
			return nil
		},
	}

	o := reflection.Observers(first, second)
	gt.NoError(t, o.OnBeforeRound(context.Background(), 1, "x"))
	gt.Equal(t, order, []string{"first", "second"})
}

func TestObserversStopAtFirstError(t *testing.T) {
	errStop := errors.New("stop")
	failing := &mock.ObserverMock{
		OnScoreAchievedFunc: func(ctx context.Context, score, round int) error {
			return errStop
		},
	}
	next := &mock.ObserverMock{}

	o := reflection.Observers(failing, next)
	gt.True(t, errors.Is(o.OnScoreAchieved(context.Background(), 9, 1), errStop))
	gt.A(t, next.OnScoreAchievedCalls()).Length(0)

	o.OnError(context.Background(), nil, errStop)
	gt.A(t, failing.OnErrorCalls()).Length(1)
	gt.A(t, next.OnErrorCalls()).Length(1)
}

func TestNopObserverEmbedding(t *testing.T) {
	client := newScriptedClient([]string{"draft"}, evalJSON(9, true, false))
	agent := setupAgent(t, client)
	counter := &countingObserver{}

	ctrl := reflection.NewController(agent, mustPolicy(t), reflection.WithObserver(counter))
	gt.NoError(t, ctrl.Execute(testContext()))
	gt.Equal(t, counter.completed, 1)
}
