package interfaces

import (
	"context"

	"github.com/m-mizutani/prompter/pkg/domain/model"
)

// LLMClient abstracts the language-model backend for the orchestrator.
// Generate is the primary transport; GenerateFallback delivers the same
// request payload through a lower-level mechanism and is used once when
// the primary path fails with a network-class error.
type LLMClient interface {
	Generate(ctx context.Context, req *model.ChatRequest) (string, error)
	GenerateFallback(ctx context.Context, req *model.ChatRequest) (string, error)

	// SetCredential replaces the backend credential without restart; it is
	// re-validated lazily on the next call.
	SetCredential(apiKey string)

	// Ping is a best-effort reachability probe used only for diagnostics
	Ping(ctx context.Context) error
}
