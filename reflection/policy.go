package reflection

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop"
)

const (
	DefaultMaxRound = 3
	DefaultMinRound = 1
)

// Policy holds the parameters of a reflection run. It is immutable after
// construction; use the With* methods to derive a modified copy.
type Policy struct {
	enabled            bool
	maxRound           int
	minRound           int
	promptTemplate     string
	evaluationCriteria string
	strict             bool
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithEnabled turns reflection on or off. Default is true.
func WithEnabled(enabled bool) PolicyOption {
	return func(p *Policy) {
		p.enabled = enabled
	}
}

// WithMaxRound sets the round ceiling. Default is DefaultMaxRound.
func WithMaxRound(n int) PolicyOption {
	return func(p *Policy) {
		p.maxRound = n
	}
}

// WithMinRound sets the round from which a "good enough" score ends the run.
// Default is DefaultMinRound.
func WithMinRound(n int) PolicyOption {
	return func(p *Policy) {
		p.minRound = n
	}
}

// WithPromptTemplate sets the evaluator system prompt template. The template
// receives the run variables plus {{.task}} and {{.evaluationCriteria}}.
func WithPromptTemplate(tmpl string) PolicyOption {
	return func(p *Policy) {
		p.promptTemplate = tmpl
	}
}

// WithEvaluationCriteria sets the criteria text given to the evaluator.
func WithEvaluationCriteria(criteria string) PolicyOption {
	return func(p *Policy) {
		p.evaluationCriteria = criteria
	}
}

// WithStrictEvaluation makes an evaluation without weaknesses or suggestions
// fatal. By default such evaluations are accepted.
func WithStrictEvaluation(strict bool) PolicyOption {
	return func(p *Policy) {
		p.strict = strict
	}
}

// NewPolicy creates a validated policy. Unset values fall back to DefaultPolicy.
func NewPolicy(opts ...PolicyOption) (*Policy, error) {
	p := DefaultPolicy()
	for _, opt := range opts {
		opt(p)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultPolicy returns an enabled policy with three rounds, a minimum of one
// round and the default evaluator prompt.
func DefaultPolicy() *Policy {
	return &Policy{
		enabled:        true,
		maxRound:       DefaultMaxRound,
		minRound:       DefaultMinRound,
		promptTemplate: DefaultPromptTemplate,
	}
}

func (p *Policy) Enabled() bool              { return p.enabled }
func (p *Policy) MaxRound() int              { return p.maxRound }
func (p *Policy) MinRound() int              { return p.minRound }
func (p *Policy) PromptTemplate() string     { return p.promptTemplate }
func (p *Policy) EvaluationCriteria() string { return p.evaluationCriteria }
func (p *Policy) Strict() bool               { return p.strict }

// WithCriteria returns a copy of p with the given evaluation criteria.
func (p *Policy) WithCriteria(criteria string) *Policy {
	cp := *p
	cp.evaluationCriteria = criteria
	return &cp
}

// Validate checks the round bounds. It never corrects them.
func (p *Policy) Validate() error {
	if p.maxRound < 1 {
		return goerr.Wrap(refloop.ErrInvalidConfig, "maxRound must be at least 1",
			goerr.V("max_round", p.maxRound), goerr.Tag(refloop.ErrTagConfig))
	}
	if p.minRound < 0 {
		return goerr.Wrap(refloop.ErrInvalidConfig, "minRound must not be negative",
			goerr.V("min_round", p.minRound), goerr.Tag(refloop.ErrTagConfig))
	}
	if p.minRound > p.maxRound {
		return goerr.Wrap(refloop.ErrInvalidConfig, "minRound must not exceed maxRound",
			goerr.V("min_round", p.minRound),
			goerr.V("max_round", p.maxRound),
			goerr.Tag(refloop.ErrTagConfig))
	}
	if p.promptTemplate == "" {
		return goerr.Wrap(refloop.ErrInvalidConfig, "prompt template is empty", goerr.Tag(refloop.ErrTagConfig))
	}
	return nil
}

// PolicyConfig is the serialized form of a Policy, used by configuration files.
// Zero values mean "use the default".
type PolicyConfig struct {
	Enabled            *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	MaxRound           int    `yaml:"max_round,omitempty" json:"max_round,omitempty"`
	MinRound           *int   `yaml:"min_round,omitempty" json:"min_round,omitempty"`
	PromptTemplate     string `yaml:"prompt_template,omitempty" json:"prompt_template,omitempty"`
	EvaluationCriteria string `yaml:"evaluation_criteria,omitempty" json:"evaluation_criteria,omitempty"`
	Strict             bool   `yaml:"strict,omitempty" json:"strict,omitempty"`
}

// Options converts the config into policy options.
func (c PolicyConfig) Options() []PolicyOption {
	var opts []PolicyOption
	if c.Enabled != nil {
		opts = append(opts, WithEnabled(*c.Enabled))
	}
	if c.MaxRound != 0 {
		opts = append(opts, WithMaxRound(c.MaxRound))
	}
	if c.MinRound != nil {
		opts = append(opts, WithMinRound(*c.MinRound))
	}
	if c.PromptTemplate != "" {
		opts = append(opts, WithPromptTemplate(c.PromptTemplate))
	}
	if c.EvaluationCriteria != "" {
		opts = append(opts, WithEvaluationCriteria(c.EvaluationCriteria))
	}
	if c.Strict {
		opts = append(opts, WithStrictEvaluation(true))
	}
	return opts
}

// Config returns the serialized form of p.
func (p *Policy) Config() PolicyConfig {
	enabled := p.enabled
	minRound := p.minRound
	return PolicyConfig{
		Enabled:            &enabled,
		MaxRound:           p.maxRound,
		MinRound:           &minRound,
		PromptTemplate:     p.promptTemplate,
		EvaluationCriteria: p.evaluationCriteria,
		Strict:             p.strict,
	}
}
