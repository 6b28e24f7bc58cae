package model

import "github.com/m-mizutani/prompter/pkg/domain/types"

// Turn is one ordered message of a model request. Only user and model
// roles are valid here.
type Turn struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

// GenerationConfig is the numeric generation configuration forwarded to
// the backend.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
}

// DefaultGenerationConfig returns the generation settings used unless a
// caller overrides them.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		MaxOutputTokens: 2048,
		TopK:            40,
		TopP:            0.95,
	}
}

// ChatRequest is a fully assembled model request: projected history plus
// the new user turn, with an optional system instruction attached by the
// prompt memory policy.
type ChatRequest struct {
	Skill             types.Skill      `json:"skill"`
	SystemInstruction string           `json:"systemInstruction,omitempty"`
	Turns             []Turn           `json:"turns"`
	Generation        GenerationConfig `json:"generation"`

	// UsingMemory is true when the skill instruction was already delivered
	// earlier in this session and is therefore not re-attached.
	UsingMemory bool `json:"usingMemory"`
}

// UserMessage returns the content of the final (new) user turn
func (x *ChatRequest) UserMessage() string {
	if len(x.Turns) == 0 {
		return ""
	}
	return x.Turns[len(x.Turns)-1].Content
}

// PriorTurns returns all turns before the new user turn
func (x *ChatRequest) PriorTurns() []Turn {
	if len(x.Turns) == 0 {
		return nil
	}
	return x.Turns[:len(x.Turns)-1]
}
