package reflection

import (
	"context"

	"github.com/m-mizutani/refloop"
)

// Agent is the conversational agent whose output is refined. *refloop.Agent
// implements it.
type Agent interface {
	ID() string
	Name() string
	Input() string
	Output() string

	Round() int
	SetRound(round int)
	MaxRound() int

	Model() string
	Temperature() *float64
	LLMClient() refloop.LLMClient

	Terminations() []refloop.Termination
	NotTerminated() bool

	AddTokenUsage(usage refloop.TokenUsage)
	TokenUsage() refloop.TokenUsage

	// Regenerate sends prompt as a new user turn of the main conversation and
	// replaces Output with the reply.
	Regenerate(ctx context.Context, prompt string, vars map[string]any) error
}

var _ Agent = (*refloop.Agent)(nil)

// terminationEnsurer is implemented by agents that can install default
// terminations before a run.
type terminationEnsurer interface {
	EnsureReflectionTerminations(maxRound int)
}
