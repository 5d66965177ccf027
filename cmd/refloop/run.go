package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop"
	"github.com/m-mizutani/refloop/metrics"
	"github.com/m-mizutani/refloop/reflection"
	"github.com/m-mizutani/refloop/trace"
	traceOtel "github.com/m-mizutani/refloop/trace/otel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

func runCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "task",
			Aliases: []string{"t"},
			Usage:   "Task given to the agent. Repeatable",
		},
		&cli.StringFlag{
			Name:  "tasks-file",
			Usage: "File with one task per line. Blank lines and lines starting with # are skipped",
		},
		&cli.StringFlag{
			Name:    "system-prompt",
			Sources: cli.EnvVars("REFLOOP_SYSTEM_PROMPT"),
			Usage:   "System prompt of the agent. Go template syntax with reflection variables",
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Value:   1,
			Sources: cli.EnvVars("REFLOOP_CONCURRENCY"),
			Usage:   "Number of tasks processed in parallel",
		},
		&cli.StringFlag{
			Name:    "trace-dir",
			Sources: cli.EnvVars("REFLOOP_TRACE_DIR"),
			Usage:   "Directory to write one JSON trace per task",
		},
		&cli.BoolFlag{
			Name:  "otel",
			Usage: "Export OpenTelemetry spans to stderr",
		},
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "Print Prometheus metrics after all tasks finish",
		},
	}
	flags = append(flags, providerFlags()...)
	flags = append(flags, policyFlags()...)

	return &cli.Command{
		Name:   "run",
		Usage:  "Run tasks through generation and reflection",
		Flags:  flags,
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	tasks, err := collectTasks(cmd.StringSlice("task"), cmd.String("tasks-file"))
	if err != nil {
		return err
	}

	policy, err := policyFromCommand(cmd)
	if err != nil {
		return err
	}

	pcfg := providerConfigFromCommand(cmd)
	client, err := newLLMClient(ctx, pcfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metricsObserver := metrics.NewObserver(reg)

	r := &runner{
		client:       client,
		policy:       policy,
		provider:     pcfg.name,
		model:        pcfg.model,
		systemPrompt: cmd.String("system-prompt"),
		concurrency:  cmd.Int("concurrency"),
		traceDir:     cmd.String("trace-dir"),
		observer:     reflection.Observers(metricsObserver, &progressObserver{}),
	}

	if cmd.Bool("otel") {
		handler, shutdown, err := newOTelHandler(os.Stderr)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				ctxlog.From(ctx).Warn("failed to shutdown tracer provider", "error", err)
			}
		}()
		r.otelHandler = handler
	}

	results := r.run(ctx, tasks)

	w := cmd.Root().Writer
	failed := printResults(w, results)

	if cmd.Bool("metrics") {
		if err := writeMetrics(w, reg, metricsObserver.Stats()); err != nil {
			return err
		}
	}

	if failed > 0 {
		return goerr.New("some tasks failed", goerr.V("failed", failed), goerr.V("total", len(results)))
	}
	return nil
}

// collectTasks merges --task values and the lines of the tasks file.
func collectTasks(tasks []string, path string) ([]string, error) {
	var result []string
	for _, t := range tasks {
		if t = strings.TrimSpace(t); t != "" {
			result = append(result, t)
		}
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open tasks file", goerr.V("path", path))
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			result = append(result, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, goerr.Wrap(err, "failed to read tasks file", goerr.V("path", path))
		}
	}

	if len(result) == 0 {
		return nil, goerr.New("no task given, use --task or --tasks-file")
	}
	return result, nil
}

func newOTelHandler(w io.Writer) (trace.Handler, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create stdout trace exporter")
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return traceOtel.New(traceOtel.WithTracerProvider(tp)), tp.Shutdown, nil
}

type runner struct {
	client       refloop.LLMClient
	policy       *reflection.Policy
	provider     string
	model        string
	systemPrompt string
	concurrency  int
	traceDir     string
	otelHandler  trace.Handler
	observer     reflection.Observer
}

type taskResult struct {
	index   int
	task    string
	output  string
	history *reflection.History
	err     error
}

// run processes all tasks. A failed task does not stop the others.
func (r *runner) run(ctx context.Context, tasks []string) []taskResult {
	results := make([]taskResult, len(tasks))

	var eg errgroup.Group
	eg.SetLimit(max(r.concurrency, 1))
	for i, task := range tasks {
		eg.Go(func() error {
			results[i] = r.runTask(ctx, i, task)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func (r *runner) runTask(ctx context.Context, index int, task string) taskResult {
	name := fmt.Sprintf("task-%d", index+1)
	result := taskResult{index: index, task: task}
	logger := ctxlog.From(ctx).With("agent", name)
	ctx = ctxlog.With(ctx, logger)

	agent := refloop.New(r.client,
		refloop.WithName(name),
		refloop.WithModel(r.model),
		refloop.WithSystemPrompt(r.systemPrompt),
		refloop.WithVariables(map[string]any{"task": task}),
	)

	if _, err := agent.Run(ctx, task); err != nil {
		result.err = err
		return result
	}
	result.output = agent.Output()

	var handlers []trace.Handler
	var recorder *trace.Recorder
	if r.traceDir != "" {
		recorder = trace.New(
			trace.WithRepository(trace.NewFileRepository(r.traceDir)),
			trace.WithMetadata(trace.TraceMetadata{
				Model:    r.model,
				Provider: r.provider,
				Labels:   map[string]string{"task_index": strconv.Itoa(index + 1)},
			}),
		)
		handlers = append(handlers, recorder)
	}
	if r.otelHandler != nil {
		handlers = append(handlers, r.otelHandler)
	}
	if len(handlers) > 0 {
		ctx = trace.WithHandler(ctx, trace.Multi(handlers...))
	}

	history, err := reflection.Reflect(ctx, agent, r.policy, reflection.WithObserver(r.observer))
	result.history = history
	result.output = agent.Output()
	result.err = err

	if recorder != nil {
		if err := recorder.Finish(ctx); err != nil {
			logger.Warn("failed to save trace", "error", err)
		}
	}

	return result
}

// progressObserver logs why each run stopped.
type progressObserver struct {
	reflection.NopObserver
}

func (x *progressObserver) OnBeforeRound(ctx context.Context, round int, _ string) error {
	ctxlog.From(ctx).Info("reflection round started", "round", round)
	return nil
}

func (x *progressObserver) OnScoreAchieved(ctx context.Context, score, round int) error {
	ctxlog.From(ctx).Info("target score achieved", "score", score, "round", round)
	return nil
}

func (x *progressObserver) OnNoImprovement(ctx context.Context, score, round int) error {
	ctxlog.From(ctx).Info("evaluator sees no further improvement", "score", score, "round", round)
	return nil
}

func (x *progressObserver) OnMaxRoundsReached(ctx context.Context, lastScore int) error {
	ctxlog.From(ctx).Info("max rounds reached", "last_score", lastScore)
	return nil
}

func statusColor(status reflection.Status) *color.Color {
	switch status {
	case reflection.StatusCompletedSuccess:
		return color.New(color.FgGreen, color.Bold)
	case reflection.StatusCompletedMaxRounds, reflection.StatusCompletedNoImprovement:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// printResults writes one block per task in task order and returns the number
// of failed tasks.
func printResults(w io.Writer, results []taskResult) int {
	results = slices.Clone(results)
	slices.SortFunc(results, func(a, b taskResult) int { return a.index - b.index })

	var failed int
	for _, res := range results {
		header := fmt.Sprintf("=== Task %d ===", res.index+1)

		switch {
		case res.err != nil:
			failed++
			status := reflection.StatusFailed
			if res.history != nil {
				status = res.history.Status()
			}
			statusColor(status).Fprintf(w, "%s %s\n", header, status)
			fmt.Fprintf(w, "Task: %s\nError: %v\n\n", res.task, res.err)

		case res.history == nil:
			color.New(color.FgCyan, color.Bold).Fprintf(w, "%s REFLECTION DISABLED\n", header)
			fmt.Fprintf(w, "Task: %s\n\n%s\n\n", res.task, res.output)

		default:
			statusColor(res.history.Status()).Fprintf(w, "%s %s\n", header, res.history.Status())
			fmt.Fprintf(w, "%s\n\n%s\n\n", res.history.Summary(), res.output)
		}
	}
	return failed
}

// writeMetrics prints the gathered counters and histograms in a compact
// "name{labels} value" form followed by the aggregate stats.
func writeMetrics(w io.Writer, reg prometheus.Gatherer, stats metrics.Stats) error {
	families, err := reg.Gather()
	if err != nil {
		return goerr.Wrap(err, "failed to gather metrics")
	}

	fmt.Fprintln(w, "=== Metrics ===")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}

			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s count=%d sum=%g\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}

	fmt.Fprintf(w, "runs=%d successful=%d failed=%d avg_rounds=%.2f avg_final_score=%.2f\n",
		stats.TotalRuns, stats.SuccessfulRuns, stats.FailedRuns, stats.AverageRounds(), stats.AverageFinalScore())
	return nil
}
