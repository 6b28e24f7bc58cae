package config

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Sentry holds error tracking configuration
type Sentry struct {
	dsn string
	env string
}

// Flags returns CLI flags for Sentry configuration
func (s *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for error tracking (empty disables it)",
			Sources:     cli.EnvVars("PROMPTER_SENTRY_DSN"),
			Destination: &s.dsn,
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment name",
			Value:       "production",
			Sources:     cli.EnvVars("PROMPTER_SENTRY_ENV"),
			Destination: &s.env,
		},
	}
}

// LogAttrs returns log attributes for the Sentry configuration
func (s *Sentry) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Bool("enabled", s.dsn != ""),
		slog.String("env", s.env),
	}
}

// Configure initializes the Sentry SDK when a DSN is given. The returned
// closer flushes buffered events before exit.
func (s *Sentry) Configure(version string) (func(), error) {
	if s.dsn == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         s.dsn,
		Environment: s.env,
		Release:     version,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize sentry")
	}

	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}
