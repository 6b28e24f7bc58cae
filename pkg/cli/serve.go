package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/m-mizutani/prompter/pkg/cli/config"
	httpctrl "github.com/m-mizutani/prompter/pkg/controller/http"
	"github.com/m-mizutani/prompter/pkg/utils/async"
	"github.com/m-mizutani/prompter/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var activeSkill string
	var geminiCfg config.Gemini
	var memoryCfg config.Memory
	var skillsCfg config.Skills
	var chatCfg config.Chat

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       "127.0.0.1:8737",
			Sources:     cli.EnvVars("PROMPTER_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "skill",
			Usage:       "Initially active skill",
			Sources:     cli.EnvVars("PROMPTER_SKILL"),
			Destination: &activeSkill,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, memoryCfg.Flags()...)
	flags = append(flags, skillsCfg.Flags()...)
	flags = append(flags, chatCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the local HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			chat, eventLog, err := newChatUseCase(ctx, &geminiCfg, &memoryCfg, &skillsCfg, &chatCfg, activeSkill)
			if err != nil {
				return err
			}

			// Probe the backend in the background; the server starts
			// regardless, requests just go through the fallback chain.
			async.Dispatch(ctx, func(ctx context.Context) error {
				if err := chat.TestConnectivity(ctx); err != nil {
					logging.From(ctx).Warn("backend connectivity check failed", "error", err.Error())
					return nil
				}
				logging.From(ctx).Info("backend reachable")
				return nil
			})

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(chat, eventLog),
				ReadHeaderTimeout: 30 * time.Second,
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var eg errgroup.Group
			eg.Go(func() error {
				logging.Default().Info("Starting HTTP server", "addr", addr, "skill", chat.ActiveSkill())
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return goerr.Wrap(err, "failed to start server")
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}
				return nil
			})

			if err := eg.Wait(); err != nil {
				return err
			}
			logging.Default().Info("Server shutdown completed")
			return nil
		},
	}
}
