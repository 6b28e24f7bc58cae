package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/prompter/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Chat holds the request orchestrator configuration
type Chat struct {
	maxRetries          int
	attemptTimeout      time.Duration
	historyLimit        int
	noTransportFallback bool
	noLocalFallback     bool
	temperature         float64
}

// Flags returns CLI flags for the request orchestrator
func (c *Chat) Flags() []cli.Flag {
	def := usecase.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-retries",
			Usage:       "Attempts through the primary transport per request",
			Value:       def.MaxRetries,
			Sources:     cli.EnvVars("PROMPTER_MAX_RETRIES"),
			Destination: &c.maxRetries,
		},
		&cli.DurationFlag{
			Name:        "attempt-timeout",
			Usage:       "Timeout of a single backend attempt",
			Value:       def.AttemptTimeout,
			Sources:     cli.EnvVars("PROMPTER_ATTEMPT_TIMEOUT"),
			Destination: &c.attemptTimeout,
		},
		&cli.IntFlag{
			Name:        "history-limit",
			Usage:       "Prior conversation entries projected into each request",
			Value:       def.HistoryLimit,
			Sources:     cli.EnvVars("PROMPTER_HISTORY_LIMIT"),
			Destination: &c.historyLimit,
		},
		&cli.BoolFlag{
			Name:        "no-transport-fallback",
			Usage:       "Disable the REST fallback attempt after network failures",
			Sources:     cli.EnvVars("PROMPTER_NO_TRANSPORT_FALLBACK"),
			Destination: &c.noTransportFallback,
		},
		&cli.BoolFlag{
			Name:        "no-local-fallback",
			Usage:       "Return errors instead of degraded local answers",
			Sources:     cli.EnvVars("PROMPTER_NO_LOCAL_FALLBACK"),
			Destination: &c.noLocalFallback,
		},
		&cli.FloatFlag{
			Name:        "temperature",
			Usage:       "Generation temperature",
			Value:       def.Generation.Temperature,
			Sources:     cli.EnvVars("PROMPTER_TEMPERATURE"),
			Destination: &c.temperature,
		},
	}
}

// LogAttrs returns log attributes for the orchestrator configuration
func (c *Chat) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("max_retries", c.maxRetries),
		slog.Duration("attempt_timeout", c.attemptTimeout),
		slog.Int("history_limit", c.historyLimit),
		slog.Bool("transport_fallback", !c.noTransportFallback),
		slog.Bool("local_fallback", !c.noLocalFallback),
	}
}

// Configure returns the orchestrator configuration built from the flags
func (c *Chat) Configure() usecase.Config {
	cfg := usecase.DefaultConfig()
	cfg.MaxRetries = c.maxRetries
	cfg.AttemptTimeout = c.attemptTimeout
	cfg.HistoryLimit = c.historyLimit
	cfg.TransportFallback = !c.noTransportFallback
	cfg.LocalFallback = !c.noLocalFallback
	cfg.Generation.Temperature = c.temperature
	return cfg
}
