package config

import (
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/prompter/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Logger holds logging configuration
type Logger struct {
	level  string
	format string
	output string
}

// Flags returns CLI flags for logging configuration
func (l *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("PROMPTER_LOG_LEVEL"),
			Destination: &l.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("PROMPTER_LOG_FORMAT"),
			Destination: &l.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output (stdout, stderr, or a file path)",
			Value:       "stderr",
			Sources:     cli.EnvVars("PROMPTER_LOG_OUTPUT"),
			Destination: &l.output,
		},
	}
}

// LogAttrs returns log attributes for the logging configuration
func (l *Logger) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("level", l.level),
		slog.String("format", l.format),
		slog.String("output", l.output),
	}
}

// Configure builds and installs the process-wide logger. The returned
// closer releases the output file, if one was opened.
func (l *Logger) Configure() (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.level)); err != nil {
		return nil, goerr.Wrap(err, "invalid log level", goerr.V("level", l.level))
	}

	var format logging.Format
	switch l.format {
	case "console":
		format = logging.FormatConsole
	case "json":
		format = logging.FormatJSON
	default:
		return nil, goerr.New("invalid log format", goerr.V("format", l.format))
	}

	closer := func() {}
	var w io.Writer
	switch l.output {
	case "stdout", "-":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(l.output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open log file", goerr.V("path", l.output))
		}
		w = f
		closer = func() { _ = f.Close() }
	}

	logging.SetDefault(logging.New(w, level, format))
	return closer, nil
}
