package refloop

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrInvalidConfig is returned for invalid option values.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoTermination is returned when an agent has no termination predicate
	// but a caller requires one.
	ErrNoTermination = errors.New("agent has no termination")

	// ErrEmptyResponse is returned when an LLM returns no text.
	ErrEmptyResponse = errors.New("empty response from LLM")
)

var (
	// ErrTagConfig marks configuration errors. They are raised before any LLM call.
	ErrTagConfig = goerr.NewTag("config")

	// ErrTagProvider marks errors returned by an LLM provider.
	ErrTagProvider = goerr.NewTag("provider")

	// ErrTagTokenExceeded marks provider errors caused by the context window limit.
	ErrTagTokenExceeded = goerr.NewTag("token_exceeded")
)
