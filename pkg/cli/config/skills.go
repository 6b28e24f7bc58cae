package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/prompter/pkg/service/skill"
	"github.com/urfave/cli/v3"
)

// Skills holds the skill registry configuration
type Skills struct {
	path string
}

// Flags returns CLI flags for the skill registry
func (s *Skills) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "skills-file",
			Usage:       "TOML file replacing the built-in skill registry",
			Sources:     cli.EnvVars("PROMPTER_SKILLS_FILE"),
			Destination: &s.path,
		},
	}
}

// LogAttrs returns log attributes for the skill registry configuration
func (s *Skills) LogAttrs() []slog.Attr {
	path := s.path
	if path == "" {
		path = "(embedded)"
	}
	return []slog.Attr{
		slog.String("skills_file", path),
	}
}

// Configure loads the skill registry from the configured file, or the
// embedded defaults when no file is given.
func (s *Skills) Configure() (*skill.Registry, error) {
	if s.path == "" {
		registry, err := skill.New()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load embedded skill registry")
		}
		return registry, nil
	}

	registry, err := skill.Load(s.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load skill registry", goerr.V("path", s.path))
	}
	return registry, nil
}
