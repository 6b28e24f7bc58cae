package cli

import (
	"context"

	"github.com/m-mizutani/prompter/pkg/cli/config"
	"github.com/m-mizutani/prompter/pkg/repository/memory"
	"github.com/m-mizutani/prompter/pkg/usecase"
	"github.com/m-mizutani/prompter/pkg/utils/logging"
)

// newChatUseCase wires the full stack shared by the serve, chat and
// doctor commands: skill registry, seeded event log, LLM client and the
// chat use case on top.
func newChatUseCase(ctx context.Context, geminiCfg *config.Gemini, memoryCfg *config.Memory, skillsCfg *config.Skills, chatCfg *config.Chat, activeSkill string) (*usecase.Chat, *memory.EventLog, error) {
	registry, err := skillsCfg.Configure()
	if err != nil {
		return nil, nil, err
	}

	eventLog := memory.New(memoryCfg.Configure(), registry.Instructions())

	llmClient, err := geminiCfg.Configure(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := []usecase.Option{
		usecase.WithConfig(chatCfg.Configure()),
	}
	if activeSkill != "" {
		opts = append(opts, usecase.WithActiveSkill(activeSkill))
	}
	chat := usecase.NewChat(eventLog, registry, llmClient, opts...)

	var attrs []any
	for _, a := range geminiCfg.LogAttrs() {
		attrs = append(attrs, a)
	}
	for _, a := range memoryCfg.LogAttrs() {
		attrs = append(attrs, a)
	}
	logging.Default().Debug("configured chat use case", attrs...)

	return chat, eventLog, nil
}
