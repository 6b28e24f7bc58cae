package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/prompter/pkg/repository/memory"
	"github.com/urfave/cli/v3"
)

// Memory holds the event store maintenance policy configuration
type Memory struct {
	maxEvents           int
	compressThreshold   int
	systemRetention     time.Duration
	consolidationWindow time.Duration
	compressAfter       time.Duration
}

// Flags returns CLI flags for the event store configuration
func (m *Memory) Flags() []cli.Flag {
	def := memory.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-events",
			Usage:       "Hard ceiling on stored conversation events",
			Value:       def.MaxEvents,
			Sources:     cli.EnvVars("PROMPTER_MAX_EVENTS"),
			Destination: &m.maxEvents,
		},
		&cli.IntFlag{
			Name:        "compress-threshold",
			Usage:       "Event count that triggers the compression-only pass",
			Value:       def.CompressThreshold,
			Sources:     cli.EnvVars("PROMPTER_COMPRESS_THRESHOLD"),
			Destination: &m.compressThreshold,
		},
		&cli.DurationFlag{
			Name:        "system-retention",
			Usage:       "How long system-category events survive maintenance",
			Value:       def.SystemRetention,
			Sources:     cli.EnvVars("PROMPTER_SYSTEM_RETENTION"),
			Destination: &m.systemRetention,
		},
		&cli.DurationFlag{
			Name:        "consolidation-window",
			Usage:       "Max time span of an event run collapsed into one event",
			Value:       def.ConsolidationWindow,
			Sources:     cli.EnvVars("PROMPTER_CONSOLIDATION_WINDOW"),
			Destination: &m.consolidationWindow,
		},
		&cli.DurationFlag{
			Name:        "compress-after",
			Usage:       "Age beyond which long event content is truncated",
			Value:       def.CompressAfter,
			Sources:     cli.EnvVars("PROMPTER_COMPRESS_AFTER"),
			Destination: &m.compressAfter,
		},
	}
}

// LogAttrs returns log attributes for the event store configuration
func (m *Memory) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("max_events", m.maxEvents),
		slog.Int("compress_threshold", m.compressThreshold),
		slog.Duration("system_retention", m.systemRetention),
	}
}

// Configure returns the event store configuration built from the flags
func (m *Memory) Configure() memory.Config {
	cfg := memory.DefaultConfig()
	cfg.MaxEvents = m.maxEvents
	cfg.CompressThreshold = m.compressThreshold
	cfg.SystemRetention = m.systemRetention
	cfg.ConsolidationWindow = m.consolidationWindow
	cfg.CompressAfter = m.compressAfter
	return cfg
}
