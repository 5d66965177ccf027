package main

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop"
	"github.com/m-mizutani/refloop/llm/claude"
	"github.com/m-mizutani/refloop/llm/gemini"
	"github.com/m-mizutani/refloop/llm/openai"
	"github.com/m-mizutani/refloop/llm/ratelimit"
	"github.com/urfave/cli/v3"
)

const (
	providerOpenAI = "openai"
	providerClaude = "claude"
	providerGemini = "gemini"
)

// providerAPIKeyEnv is consulted when --api-key is not given.
var providerAPIKeyEnv = map[string]string{
	providerOpenAI: "OPENAI_API_KEY",
	providerClaude: "ANTHROPIC_API_KEY",
	providerGemini: "GEMINI_API_KEY",
}

type providerConfig struct {
	name     string
	model    string
	apiKey   string
	baseURL  string
	project  string
	location string

	// rps of 0 disables rate limiting.
	rps   float64
	burst int
}

func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "provider",
			Aliases: []string{"p"},
			Value:   providerOpenAI,
			Sources: cli.EnvVars("REFLOOP_PROVIDER"),
			Usage:   "LLM provider (openai, claude, gemini)",
		},
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Sources: cli.EnvVars("REFLOOP_MODEL"),
			Usage:   "Model name. Empty uses the provider default",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Sources: cli.EnvVars("REFLOOP_API_KEY"),
			Usage:   "API key. Falls back to OPENAI_API_KEY, ANTHROPIC_API_KEY or GEMINI_API_KEY",
		},
		&cli.StringFlag{
			Name:    "base-url",
			Sources: cli.EnvVars("REFLOOP_OPENAI_BASE_URL"),
			Usage:   "Base URL of an OpenAI compatible endpoint",
		},
		&cli.StringFlag{
			Name:    "gcp-project",
			Sources: cli.EnvVars("REFLOOP_GCP_PROJECT"),
			Usage:   "Google Cloud project for Gemini on Vertex AI",
		},
		&cli.StringFlag{
			Name:    "gcp-location",
			Value:   "us-central1",
			Sources: cli.EnvVars("REFLOOP_GCP_LOCATION"),
			Usage:   "Google Cloud location for Gemini on Vertex AI",
		},
		&cli.FloatFlag{
			Name:    "rps",
			Sources: cli.EnvVars("REFLOOP_RPS"),
			Usage:   "Maximum LLM requests per second. 0 means unlimited",
		},
	}
}

func providerConfigFromCommand(cmd *cli.Command) providerConfig {
	cfg := providerConfig{
		name:     cmd.String("provider"),
		model:    cmd.String("model"),
		apiKey:   cmd.String("api-key"),
		baseURL:  cmd.String("base-url"),
		project:  cmd.String("gcp-project"),
		location: cmd.String("gcp-location"),
		rps:      cmd.Float("rps"),
		burst:    1,
	}
	if cfg.apiKey == "" {
		if env, ok := providerAPIKeyEnv[cfg.name]; ok {
			cfg.apiKey = os.Getenv(env)
		}
	}
	return cfg
}

func newLLMClient(ctx context.Context, cfg providerConfig) (refloop.LLMClient, error) {
	var client refloop.LLMClient

	switch cfg.name {
	case providerOpenAI:
		var opts []openai.Option
		if cfg.model != "" {
			opts = append(opts, openai.WithModel(cfg.model))
		}
		if cfg.baseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.baseURL))
		}
		c, err := openai.New(ctx, cfg.apiKey, opts...)
		if err != nil {
			return nil, err
		}
		client = c

	case providerClaude:
		var opts []claude.Option
		if cfg.model != "" {
			opts = append(opts, claude.WithModel(cfg.model))
		}
		c, err := claude.New(ctx, cfg.apiKey, opts...)
		if err != nil {
			return nil, err
		}
		client = c

	case providerGemini:
		var opts []gemini.Option
		if cfg.model != "" {
			opts = append(opts, gemini.WithModel(cfg.model))
		}
		var c *gemini.Client
		var err error
		if cfg.project != "" {
			c, err = gemini.New(ctx, cfg.project, cfg.location, opts...)
		} else {
			c, err = gemini.NewWithAPIKey(ctx, cfg.apiKey, opts...)
		}
		if err != nil {
			return nil, err
		}
		client = c

	default:
		return nil, goerr.Wrap(refloop.ErrInvalidConfig, "unknown provider",
			goerr.V("provider", cfg.name),
			goerr.Tag(refloop.ErrTagConfig))
	}

	if cfg.rps > 0 {
		client = ratelimit.New(client, cfg.rps, cfg.burst)
	}
	return client, nil
}
