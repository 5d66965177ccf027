// Package reflection implements the self-reflection loop of an agent: the
// current output is judged by an independent evaluator call, and the agent is
// asked to regenerate until the evaluation is good enough or the round
// ceiling is reached.
//
// Basic usage:
//
//	agent := refloop.New(client, refloop.WithName("writer"))
//	if _, err := agent.Run(ctx, "Write a haiku about Go"); err != nil {
//	    return err
//	}
//
//	policy, err := reflection.NewPolicy(reflection.WithMaxRound(3))
//	if err != nil {
//	    return err
//	}
//	history, err := reflection.Reflect(ctx, agent, policy)
//	fmt.Println(history.Summary())
package reflection

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop"
	"github.com/m-mizutani/refloop/prompt"
	"github.com/m-mizutani/refloop/trace"
)

// Controller runs one reflection over one agent. It is not reusable: Execute
// may be called only once.
type Controller struct {
	agent     Agent
	policy    *Policy
	evaluator *Evaluator
	observer  Observer
	variables map[string]any
	renderer  *prompt.Renderer
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	executed bool
	history  *History
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver sets the lifecycle observer. Use Observers to combine several.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithVariables sets template variables passed to the evaluator prompt and to
// the agent on regeneration.
func WithVariables(vars map[string]any) Option {
	return func(c *Controller) {
		maps.Copy(c.variables, vars)
	}
}

// WithRenderer sets the renderer of the evaluator prompt. Default is prompt.Default().
func WithRenderer(r *prompt.Renderer) Option {
	return func(c *Controller) {
		c.renderer = r
	}
}

// WithLogger sets the logger. It is also stored in the context given to the
// agent and the LLM client. Default is the logger in the Execute context.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates a controller. A nil policy means DefaultPolicy().
func NewController(agent Agent, policy *Policy, opts ...Option) *Controller {
	if policy == nil {
		policy = DefaultPolicy()
	}
	c := &Controller{
		agent:     agent,
		policy:    policy,
		observer:  NopObserver{},
		variables: map[string]any{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.evaluator = NewEvaluator(c.renderer)
	return c
}

// Policy returns the policy the controller runs with.
func (c *Controller) Policy() *Policy {
	return c.policy
}

// History returns the history of the run. It is nil before Execute and when
// Execute failed validation.
func (c *Controller) History() *History {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history
}

// Reflect validates policy, installs the default terminations on agents that
// support it and runs a Controller. A disabled policy returns nil without
// calling the LLM.
func Reflect(ctx context.Context, agent Agent, policy *Policy, opts ...Option) (*History, error) {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if !policy.Enabled() {
		return nil, nil
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if e, ok := agent.(terminationEnsurer); ok {
		e.EnsureReflectionTerminations(policy.MaxRound())
	}

	c := NewController(agent, policy, opts...)
	err := c.Execute(ctx)
	return c.History(), err
}

// Execute runs the loop until a termination rule matches, the agent reports
// itself terminated, or the round ceiling is passed. On failure the history is
// closed as FAILED and the error is returned.
func (c *Controller) Execute(ctx context.Context) error {
	c.mu.Lock()
	if c.executed {
		c.mu.Unlock()
		return goerr.Wrap(ErrAlreadyExecuted, "Execute must be called only once", goerr.V("agent", c.agent.Name()))
	}
	c.executed = true
	c.mu.Unlock()

	if err := c.validate(); err != nil {
		return err
	}

	if c.logger != nil {
		ctx = refloop.ContextWithLogger(ctx, c.logger)
	}
	logger := refloop.LoggerFromContext(ctx).With("agent", c.agent.Name())

	history := newHistory(c.agent, c.policy.EvaluationCriteria(), c.now)
	c.mu.Lock()
	c.history = history
	c.mu.Unlock()

	h := trace.HandlerFrom(ctx)
	if h != nil {
		ctx = h.StartReflection(ctx, &trace.ReflectionData{
			AgentID:   c.agent.ID(),
			AgentName: c.agent.Name(),
			Task:      c.agent.Input(),
			Criteria:  c.policy.EvaluationCriteria(),
			MaxRound:  c.policy.MaxRound(),
			MinRound:  c.policy.MinRound(),
		})
		h.AddEvent(ctx, "reflection_start", &ReflectionStartEvent{
			AgentName: c.agent.Name(),
			MaxRound:  c.policy.MaxRound(),
			MinRound:  c.policy.MinRound(),
			Strict:    c.policy.Strict(),
		})
	}

	logger.Info("reflection started",
		"max_round", c.policy.MaxRound(),
		"min_round", c.policy.MinRound(),
	)

	status, err := c.loop(ctx, logger)
	if err == nil {
		history.complete(status)
		err = c.observer.OnReflectionComplete(ctx, history)
	}
	if err != nil {
		err = c.fail(ctx, logger, err)
	} else {
		logger.Info("reflection completed",
			"status", history.Status(),
			"rounds", history.TotalRounds(),
			"final_score", history.FinalScore(),
		)
	}

	if h != nil {
		h.AddEvent(ctx, "reflection_complete", &ReflectionCompleteEvent{
			Status:      history.Status(),
			TotalRounds: history.TotalRounds(),
			FinalScore:  history.FinalScore(),
		})
		h.EndReflection(ctx, reflectionResult(history), err)
	}
	return err
}

func (c *Controller) validate() error {
	if len(c.agent.Terminations()) == 0 {
		return goerr.Wrap(refloop.ErrNoTermination, "reflection requires at least one termination",
			goerr.V("agent", c.agent.Name()),
			goerr.Tag(refloop.ErrTagConfig))
	}
	return c.policy.Validate()
}

// fail closes the history as FAILED, notifies the observer and wraps err.
// It overrides a status set by an earlier completion.
func (c *Controller) fail(ctx context.Context, logger *slog.Logger, err error) error {
	c.history.fail()

	logger.Error("reflection failed",
		"error", err,
		"status", c.history.Status(),
		"round", c.agent.Round(),
	)
	c.observer.OnError(ctx, c.history, err)

	return goerr.Wrap(err, "reflection execution failed",
		goerr.V("agent", c.agent.Name()),
		goerr.V("round", c.agent.Round()),
		goerr.V("status", c.history.Status()),
	)
}

func (c *Controller) loop(ctx context.Context, logger *slog.Logger) (Status, error) {
	if err := c.observer.OnReflectionStart(ctx, c.history); err != nil {
		return "", err
	}

	var last *Evaluation
	c.agent.SetRound(1)
	for {
		round := c.agent.Round()

		if round > c.policy.MaxRound() {
			logger.Info("max rounds reached", "round", round, "max_round", c.policy.MaxRound())
			c.addEvent(ctx, "termination", &TerminationEvent{Round: round, Reason: ReasonMaxRounds, Score: c.history.FinalScore()})
			if err := c.observer.OnMaxRoundsReached(ctx, c.history.FinalScore()); err != nil {
				return "", err
			}
			break
		}
		if !c.agent.NotTerminated() {
			logger.Info("agent terminated", "round", round)
			c.addEvent(ctx, "termination", &TerminationEvent{Round: round, Reason: ReasonAgentTerminated})
			break
		}

		eval, done, err := c.runRound(ctx, logger, round)
		if err != nil {
			return "", err
		}
		last = eval
		if done {
			break
		}

		c.agent.SetRound(round + 1)
	}

	return c.finalStatus(last), nil
}

func (c *Controller) finalStatus(last *Evaluation) Status {
	if c.agent.Round() > c.policy.MaxRound() {
		return StatusCompletedMaxRounds
	}
	if last == nil {
		return StatusCompletedSuccess
	}
	switch {
	case last.Pass && last.Score >= passScore:
		return StatusCompletedSuccess
	case !last.ShouldContinue:
		return StatusCompletedNoImprovement
	}
	return StatusCompletedSuccess
}

// runRound evaluates the current output and either stops or asks the agent to
// regenerate. done is true when a termination rule matched.
func (c *Controller) runRound(ctx context.Context, logger *slog.Logger, round int) (eval *Evaluation, done bool, err error) {
	start := c.now()
	before := c.agent.TokenUsage()
	data := &trace.RoundData{Round: round}

	if h := trace.HandlerFrom(ctx); h != nil {
		ctx = h.StartRound(ctx, round)
		defer func() {
			data.TokensUsed = c.agent.TokenUsage().Sub(before).Total()
			if err != nil {
				data.TerminationReason = ReasonError
			}
			h.EndRound(ctx, data, err)
		}()
	}

	if err := c.observer.OnBeforeRound(ctx, round, c.agent.Output()); err != nil {
		return nil, false, err
	}

	solution := c.agent.Output()
	logger.Debug("evaluating round", "round", round, "solution_length", len(solution))

	raw, usage, err := c.evaluator.Evaluate(ctx, c.agent, solution, c.policy, c.variables)
	if err != nil {
		return nil, false, err
	}
	c.agent.AddTokenUsage(usage)

	eval, err = ParseEvaluation(raw)
	if err != nil {
		return nil, false, goerr.Wrap(err, "invalid evaluation", goerr.V("round", round))
	}
	if c.policy.Strict() && !eval.IsWellFormed() {
		return nil, false, goerr.Wrap(ErrMalformedEvaluation, "evaluation must list weaknesses and suggestions",
			goerr.V("round", round),
			goerr.V("weaknesses", len(eval.Weaknesses)),
			goerr.V("suggestions", len(eval.Suggestions)),
			goerr.Tag(ErrTagEvaluationContract))
	}

	setRoundData(data, eval)
	logger.Info("evaluation parsed",
		"round", round,
		"score", eval.Score,
		"pass", eval.Pass,
		"should_continue", eval.ShouldContinue,
		"weaknesses", len(eval.Weaknesses),
		"suggestions", len(eval.Suggestions),
	)
	c.addEvent(ctx, "evaluation_parsed", &EvaluationParsedEvent{
		Round:          round,
		Score:          eval.Score,
		Pass:           eval.Pass,
		ShouldContinue: eval.ShouldContinue,
		Confidence:     eval.Confidence,
		WellFormed:     eval.IsWellFormed(),
	})

	if rule := matchTermination(eval, round, c.policy.MinRound()); rule != nil {
		c.record(round, solution, raw, eval, start, before)
		data.TerminationReason = rule.reason
		logger.Info("reflection terminated", "round", round, "reason", rule.reason, "score", eval.Score)
		c.addEvent(ctx, "termination", &TerminationEvent{Round: round, Reason: rule.reason, Score: eval.Score})

		if rule.notify != nil {
			if err := rule.notify(ctx, c.observer, eval, round); err != nil {
				return eval, true, err
			}
		}
		return eval, true, nil
	}

	if err := c.agent.Regenerate(ctx, improvementPrompt(raw, eval), c.variables); err != nil {
		return nil, false, err
	}
	output := c.agent.Output()
	c.addEvent(ctx, "regenerated", &RegeneratedEvent{Round: round, OutputLength: len(output)})

	c.record(round, solution, raw, eval, start, before)
	if err := c.observer.OnAfterRound(ctx, round, output, eval); err != nil {
		return eval, false, err
	}
	return eval, false, nil
}

func (c *Controller) record(round int, solution, raw string, eval *Evaluation, start time.Time, before refloop.TokenUsage) {
	cumulative := c.agent.TokenUsage()
	c.history.addRound(Round{
		Number:              round,
		EvaluationInput:     solution,
		EvaluationOutputRaw: raw,
		Evaluation:          eval,
		Duration:            c.now().Sub(start),
		TokensUsed:          cumulative.Sub(before).Total(),
		CumulativeTokens:    cumulative.Total(),
	})
}

func (c *Controller) addEvent(ctx context.Context, kind string, data any) {
	if h := trace.HandlerFrom(ctx); h != nil {
		h.AddEvent(ctx, kind, data)
	}
}

const (
	passScore       = 8
	goodEnoughScore = 7
)

// terminationRule is one stop condition. Rules are checked in order and the
// first match wins.
type terminationRule struct {
	reason string
	match  func(eval *Evaluation, round, minRound int) bool
	notify func(ctx context.Context, o Observer, eval *Evaluation, round int) error
}

var terminationRules = []terminationRule{
	{
		reason: ReasonScoreAchieved,
		match: func(eval *Evaluation, _, _ int) bool {
			return eval.Pass && eval.Score >= passScore
		},
		notify: func(ctx context.Context, o Observer, eval *Evaluation, round int) error {
			return o.OnScoreAchieved(ctx, eval.Score, round)
		},
	},
	{
		reason: ReasonNoImprovement,
		match: func(eval *Evaluation, _, _ int) bool {
			return !eval.ShouldContinue
		},
		notify: func(ctx context.Context, o Observer, eval *Evaluation, round int) error {
			return o.OnNoImprovement(ctx, eval.Score, round)
		},
	},
	{
		reason: ReasonGoodEnough,
		match: func(eval *Evaluation, round, minRound int) bool {
			return round >= minRound && eval.Score >= goodEnoughScore
		},
	},
}

func matchTermination(eval *Evaluation, round, minRound int) *terminationRule {
	for i := range terminationRules {
		if terminationRules[i].match(eval, round, minRound) {
			return &terminationRules[i]
		}
	}
	return nil
}

func setRoundData(data *trace.RoundData, eval *Evaluation) {
	data.Score = eval.Score
	data.Pass = eval.Pass
	data.Confidence = eval.Confidence
	data.ShouldContinue = eval.ShouldContinue
	data.Strengths = eval.Strengths
	data.Weaknesses = eval.Weaknesses
	data.Suggestions = eval.Suggestions
}

func reflectionResult(h *History) *trace.ReflectionResult {
	result := &trace.ReflectionResult{
		Status:                 string(h.Status()),
		TotalRounds:            h.TotalRounds(),
		FinalScore:             h.FinalScore(),
		ScoreProgression:       h.ScoreProgression(),
		TotalTokens:            h.TotalTokensUsed(),
		AverageImprovementRate: h.AverageImprovementRate(),
		DurationMS:             h.TotalDuration().Milliseconds(),
	}
	if best, ok := h.BestRound(); ok {
		result.BestRound = best.Number
		result.BestScore = best.Score()
	}
	return result
}
