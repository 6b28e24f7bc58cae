package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/prompter/pkg/service/llm"
	"github.com/urfave/cli/v3"
)

// Gemini holds configuration for both backend transports: the gollem
// client (primary) and the raw REST endpoint (fallback).
type Gemini struct {
	projectID string
	location  string
	apiKey    string
	model     string
}

// Flags returns CLI flags for Gemini configuration
func (g *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for the Gemini API",
			Sources:     cli.EnvVars("PROMPTER_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for the Gemini API",
			Value:       "us-central1",
			Sources:     cli.EnvVars("PROMPTER_GEMINI_LOCATION"),
			Destination: &g.location,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "API key for the REST fallback transport",
			Sources:     cli.EnvVars("PROMPTER_GEMINI_API_KEY"),
			Destination: &g.apiKey,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Value:       "gemini-2.0-flash",
			Sources:     cli.EnvVars("PROMPTER_GEMINI_MODEL"),
			Destination: &g.model,
		},
	}
}

// LogAttrs returns log attributes for the Gemini configuration (secrets hidden)
func (g *Gemini) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
		slog.String("model", g.model),
		slog.Bool("has_api_key", g.apiKey != ""),
	}
}

// Configure creates the LLM client. The primary transport is enabled when
// a project ID is configured, the REST fallback when an API key is; a
// client with neither still works and reports classifiable errors.
func (g *Gemini) Configure(ctx context.Context) (*llm.Client, error) {
	opts := []llm.Option{
		llm.WithModel(g.model),
	}
	if g.apiKey != "" {
		opts = append(opts, llm.WithAPIKey(g.apiKey))
	}

	if g.projectID != "" {
		client, err := gemini.New(ctx, g.projectID, g.location)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		opts = append(opts, llm.WithPrimary(client))
	}

	return llm.New(opts...), nil
}
