package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop/reflection"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const defaultEnvFile = ".env"

func envFilePath() string {
	if path := os.Getenv("REFLOOP_ENV_FILE"); path != "" {
		return path
	}
	return defaultEnvFile
}

// loadDotEnv sets variables from path without overriding the environment.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return goerr.Wrap(err, "failed to load env file", goerr.V("path", path))
	}
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return nil, goerr.Wrap(err, "invalid log level", goerr.V("level", level))
	}
	opts := &slog.HandlerOptions{Level: lv}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, goerr.New("invalid log format", goerr.V("format", format))
	}
}

// policyFlags are shared by the commands that build a reflection policy.
func policyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "policy",
			Sources: cli.EnvVars("REFLOOP_POLICY"),
			Usage:   "YAML file with the reflection policy",
		},
		&cli.IntFlag{
			Name:  "max-round",
			Usage: "Maximum number of reflection rounds (overrides the policy file)",
		},
		&cli.IntFlag{
			Name:  "min-round",
			Usage: "Rounds before a good enough score may stop reflection (overrides the policy file)",
		},
		&cli.StringFlag{
			Name:  "criteria",
			Usage: "Evaluation criteria (overrides the policy file)",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Fail the run on evaluations missing strengths, weaknesses or suggestions",
		},
		&cli.BoolFlag{
			Name:  "disable",
			Usage: "Disable reflection and only print the first answer",
		},
	}
}

// readPolicyFile decodes a policy file. An empty path yields an empty config.
func readPolicyFile(path string) (reflection.PolicyConfig, error) {
	var cfg reflection.PolicyConfig
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, goerr.Wrap(err, "failed to open policy file", goerr.V("path", path))
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, goerr.Wrap(err, "failed to decode policy file", goerr.V("path", path))
	}
	return cfg, nil
}

// policyFromCommand merges the policy file with the flags set on cmd. Flags win.
func policyFromCommand(cmd *cli.Command) (*reflection.Policy, error) {
	cfg, err := readPolicyFile(cmd.String("policy"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("max-round") {
		cfg.MaxRound = cmd.Int("max-round")
	}
	if cmd.IsSet("min-round") {
		n := cmd.Int("min-round")
		cfg.MinRound = &n
	}
	if cmd.IsSet("criteria") {
		cfg.EvaluationCriteria = cmd.String("criteria")
	}
	if cmd.IsSet("strict") {
		cfg.Strict = cmd.Bool("strict")
	}
	if cmd.Bool("disable") {
		enabled := false
		cfg.Enabled = &enabled
	}

	return reflection.NewPolicy(cfg.Options()...)
}

func policyCommand() *cli.Command {
	return &cli.Command{
		Name:  "policy",
		Usage: "Print the effective reflection policy as YAML",
		Flags: policyFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			policy, err := policyFromCommand(cmd)
			if err != nil {
				return err
			}
			return writePolicy(cmd.Root().Writer, policy)
		},
	}
}

func writePolicy(w io.Writer, policy *reflection.Policy) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(policy.Config()); err != nil {
		return goerr.Wrap(err, "failed to encode policy")
	}
	return encoder.Close()
}
