package cli

import (
	"context"

	"github.com/m-mizutani/prompter/pkg/cli/config"
	"github.com/m-mizutani/prompter/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg config.Logger
	var sentryCfg config.Sentry
	var closers []func()

	app := &cli.Command{
		Name:    "prompter",
		Usage:   "Conversation memory and resilient LLM pipeline for the desktop assistant",
		Version: version,
		Flags:   append(loggerCfg.Flags(), sentryCfg.Flags()...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logClose, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closers = append(closers, logClose)

			sentryClose, err := sentryCfg.Configure(version)
			if err != nil {
				return ctx, err
			}
			closers = append(closers, sentryClose)

			logging.Default().Info("Starting prompter", "version", version)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdChat(),
			cmdDoctor(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}
