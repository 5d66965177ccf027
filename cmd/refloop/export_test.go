package main

import (
	"context"
	"io"

	"github.com/m-mizutani/refloop"
	"github.com/m-mizutani/refloop/reflection"
)

var (
	NewApp           = newApp
	NewLogger        = newLogger
	LoadDotEnv       = loadDotEnv
	ReadPolicyFile   = readPolicyFile
	WritePolicy      = writePolicy
	CollectTasks     = collectTasks
	WriteMetrics     = writeMetrics
	NewTraceStore    = newTraceStore
	PrintTrace       = printTrace
	ErrTraceNotFound = errTraceNotFound
)

// NewLLMClient builds a provider client from a name and an API key.
func NewLLMClient(ctx context.Context, provider, apiKey string, rps float64) (refloop.LLMClient, error) {
	return newLLMClient(ctx, providerConfig{name: provider, apiKey: apiKey, rps: rps, burst: 1})
}

type RunnerConfig struct {
	Policy       *reflection.Policy
	SystemPrompt string
	Concurrency  int
	TraceDir     string
	Observer     reflection.Observer
}

type TaskResult struct {
	Task    string
	Output  string
	History *reflection.History
	Err     error
}

// RunTasks runs tasks and prints the results to w. It returns the results in
// task order and the number of failed tasks.
func RunTasks(ctx context.Context, w io.Writer, client refloop.LLMClient, cfg RunnerConfig, tasks []string) ([]TaskResult, int) {
	observer := cfg.Observer
	if observer == nil {
		observer = &progressObserver{}
	}
	r := &runner{
		client:       client,
		policy:       cfg.Policy,
		provider:     "mock",
		systemPrompt: cfg.SystemPrompt,
		concurrency:  cfg.Concurrency,
		traceDir:     cfg.TraceDir,
		observer:     observer,
	}

	results := r.run(ctx, tasks)
	failed := printResults(w, results)

	out := make([]TaskResult, len(results))
	for i, res := range results {
		out[i] = TaskResult{Task: res.task, Output: res.output, History: res.history, Err: res.err}
	}
	return out, failed
}

// TraceIDs returns the IDs of a listed page.
func (l *traceList) TraceIDs() []string {
	ids := make([]string, len(l.traces))
	for i, t := range l.traces {
		ids[i] = t.TraceID
	}
	return ids
}

func (l *traceList) NextPageToken() string {
	return l.nextPageToken
}
