package metrics_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/refloop"
	"github.com/m-mizutani/refloop/metrics"
	"github.com/m-mizutani/refloop/mock"
	"github.com/m-mizutani/refloop/reflection"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newAgent(t *testing.T, evaluations ...string) *refloop.Agent {
	t.Helper()
	var n int
	client := &mock.LLMClientMock{
		CompleteFunc: func(ctx context.Context, req *refloop.CompletionRequest) (*refloop.CompletionResponse, error) {
			if req.Format != refloop.ResponseFormatJSON {
				return &refloop.CompletionResponse{Text: "answer"}, nil
			}
			if n >= len(evaluations) {
				return nil, errors.New("unavailable")
			}
			text := evaluations[n]
			n++
			return &refloop.CompletionResponse{Text: text}, nil
		},
	}

	agent := refloop.New(client, refloop.WithTerminations(refloop.NewStopMessageTermination("")))
	_, err := agent.Run(context.Background(), "task")
	gt.NoError(t, err)
	return agent
}

func TestObserverRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := metrics.NewObserver(reg)
	policy := reflection.DefaultPolicy()
	ctx := context.Background()

	_, err := reflection.Reflect(ctx, newAgent(t,
		`{"score": 4, "should_continue": true}`,
		`{"score": 9, "pass": true}`,
	), policy, reflection.WithObserver(obs))
	gt.NoError(t, err)

	_, err = reflection.Reflect(ctx, newAgent(t, `{"score": 42}`), policy, reflection.WithObserver(obs))
	gt.Error(t, err)

	_, err = reflection.Reflect(ctx, newAgent(t), policy, reflection.WithObserver(obs))
	gt.Error(t, err)

	gt.Equal(t, testutil.ToFloat64(obs.RunsCounter().WithLabelValues("COMPLETED_SUCCESS")), 1.0)
	gt.Equal(t, testutil.ToFloat64(obs.RunsCounter().WithLabelValues("FAILED")), 2.0)
	gt.Equal(t, testutil.ToFloat64(obs.RoundsCounter()), 2.0)
	count, err := testutil.GatherAndCount(reg,
		"refloop_reflection_runs_total",
		"refloop_reflection_rounds_total",
		"refloop_reflection_score",
		"refloop_reflection_rounds_per_run",
		"refloop_reflection_round_duration_seconds",
	)
	gt.NoError(t, err)
	gt.Equal(t, count, 6)

	stats := obs.Stats()
	gt.Equal(t, stats.TotalRuns, 3)
	gt.Equal(t, stats.SuccessfulRuns, 1)
	gt.Equal(t, stats.FailedRuns, 2)
	gt.Equal(t, stats.TotalRounds, 2)
	gt.Equal(t, stats.AverageFinalScore(), 3.0)
	gt.Equal(t, stats.AverageRounds(), 2.0/3.0)
}

func TestObserverReclassifiesFailedCompletion(t *testing.T) {
	obs := metrics.NewObserver(prometheus.NewRegistry())
	failing := &mock.ObserverMock{
		OnReflectionCompleteFunc: func(ctx context.Context, h *reflection.History) error {
			return errors.New("sink down")
		},
	}

	_, err := reflection.Reflect(context.Background(), newAgent(t, `{"score": 9, "pass": true}`),
		reflection.DefaultPolicy(), reflection.WithObserver(reflection.Observers(obs, failing)))
	gt.Error(t, err)

	stats := obs.Stats()
	gt.Equal(t, stats.TotalRuns, 1)
	gt.Equal(t, stats.SuccessfulRuns, 0)
	gt.Equal(t, stats.FailedRuns, 1)
	gt.Equal(t, stats.TotalRounds, 1)
}

func TestEmptyStats(t *testing.T) {
	var stats metrics.Stats
	gt.Equal(t, stats.AverageRounds(), 0.0)
	gt.Equal(t, stats.AverageFinalScore(), 0.0)
}
