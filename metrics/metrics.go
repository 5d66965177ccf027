// Package metrics exports reflection runs as Prometheus metrics.
package metrics

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/refloop/reflection"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer is a reflection.Observer that records finished runs.
type Observer struct {
	reflection.NopObserver

	runs          *prometheus.CounterVec
	rounds        prometheus.Counter
	scores        prometheus.Histogram
	roundsPerRun  prometheus.Histogram
	roundDuration prometheus.Histogram

	mu    sync.Mutex
	stats Stats
	// completed holds recently completed runs so that a run failed by a
	// later completion hook is moved from successful to failed.
	completed *lru.Cache[*reflection.History, struct{}]
}

const completedCacheSize = 1024

var _ reflection.Observer = (*Observer)(nil)

// Stats is an aggregate of the runs seen by an Observer.
type Stats struct {
	TotalRuns int
	// SuccessfulRuns counts runs that ended with any COMPLETED_* status.
	SuccessfulRuns int
	FailedRuns     int
	TotalRounds    int
	totalScore     int
}

// AverageRounds returns the mean number of rounds per run.
func (s Stats) AverageRounds() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.TotalRounds) / float64(s.TotalRuns)
}

// AverageFinalScore returns the mean final score per run.
func (s Stats) AverageFinalScore() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.totalScore) / float64(s.TotalRuns)
}

// NewObserver creates an Observer and registers its collectors to reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	x := &Observer{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refloop_reflection_runs_total",
			Help: "Finished reflection runs by status",
		}, []string{"status"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refloop_reflection_rounds_total",
			Help: "Recorded reflection rounds",
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "refloop_reflection_score",
			Help:    "Evaluation score of each round",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		roundsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "refloop_reflection_rounds_per_run",
			Help:    "Number of rounds of each run",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "refloop_reflection_round_duration_seconds",
			Help:    "Duration of each round in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	completed, err := lru.New[*reflection.History, struct{}](completedCacheSize)
	if err != nil {
		panic(err)
	}
	x.completed = completed

	reg.MustRegister(x.runs, x.rounds, x.scores, x.roundsPerRun, x.roundDuration)
	return x
}

// OnReflectionComplete records a run that reached a terminal status.
func (x *Observer) OnReflectionComplete(ctx context.Context, h *reflection.History) error {
	x.record(h)
	x.completed.Add(h, struct{}{})
	return nil
}

// OnError records a failed run. A run already recorded by
// OnReflectionComplete is reclassified as failed in Stats only.
func (x *Observer) OnError(ctx context.Context, h *reflection.History, err error) {
	if h == nil || h.Status() != reflection.StatusFailed {
		return
	}
	if x.completed.Remove(h) {
		x.mu.Lock()
		defer x.mu.Unlock()
		x.stats.SuccessfulRuns--
		x.stats.FailedRuns++
		return
	}
	x.record(h)
}

// Stats returns a snapshot of the aggregates.
func (x *Observer) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.stats
}

func (x *Observer) record(h *reflection.History) {
	status := h.Status()
	rounds := h.Rounds()

	x.runs.WithLabelValues(string(status)).Inc()
	x.rounds.Add(float64(len(rounds)))
	x.roundsPerRun.Observe(float64(len(rounds)))
	for _, r := range rounds {
		x.scores.Observe(float64(r.Score()))
		x.roundDuration.Observe(r.Duration.Seconds())
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.stats.TotalRuns++
	x.stats.TotalRounds += len(rounds)
	x.stats.totalScore += h.FinalScore()
	if status == reflection.StatusFailed {
		x.stats.FailedRuns++
	} else {
		x.stats.SuccessfulRuns++
	}
}
