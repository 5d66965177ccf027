package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := loadDotEnv(envFilePath()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "refloop",
		Usage: "Generate answers with an LLM and refine them through self-reflection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Sources: cli.EnvVars("REFLOOP_LOG_LEVEL"),
				Usage:   "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Sources: cli.EnvVars("REFLOOP_LOG_FORMAT"),
				Usage:   "Log format (text, json)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logger, err := newLogger(os.Stderr, cmd.String("log-level"), cmd.String("log-format"))
			if err != nil {
				return ctx, err
			}
			slog.SetDefault(logger)
			return ctxlog.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			runCommand(),
			policyCommand(),
			traceCommand(),
		},
	}
}
