package llm

import "github.com/m-mizutani/prompter/pkg/domain/model"

// RenderSystemPrompt exposes the transcript rendering to tests
func RenderSystemPrompt(req *model.ChatRequest) string {
	return renderSystemPrompt(req)
}
