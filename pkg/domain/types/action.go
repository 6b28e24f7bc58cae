package types

import "strings"

// Action is a free-form classifier of what produced an event. Well-known
// values are defined below, but collaborators may pass their own.
type Action string

const (
	ActionChatInput           Action = "chat_input"
	ActionLLMResponse         Action = "llm_response"
	ActionSkillPromptInit     Action = "skill_prompt_initialization"
	ActionSkillChange         Action = "skill_change"
	ActionScreenshotCapture   Action = "screenshot_capture"
	ActionOCRExtraction       Action = "ocr_extraction"
	ActionSpeechTranscription Action = "speech_transcription"
	ActionWindowMove          Action = "window_move"
)

// String returns the string representation of Action
func (x Action) String() string {
	return string(x)
}

// Category classifies events for projection and maintenance. It is derived
// once from the action at event creation and never recomputed.
type Category string

const (
	CategoryCapture    Category = "capture"
	CategorySpeech     Category = "speech"
	CategoryLLM        Category = "llm"
	CategoryNavigation Category = "navigation"
	CategorySystem     Category = "system"
)

// String returns the string representation of Category
func (x Category) String() string {
	return string(x)
}

// Category derives the event category from the action name
func (x Action) Category() Category {
	a := strings.ToLower(string(x))
	switch {
	case strings.Contains(a, "screenshot"), strings.Contains(a, "capture"), strings.Contains(a, "ocr"):
		return CategoryCapture
	case strings.Contains(a, "speech"), strings.Contains(a, "voice"), strings.Contains(a, "transcription"):
		return CategorySpeech
	case strings.Contains(a, "llm"), strings.Contains(a, "chat"), strings.Contains(a, "response"):
		return CategoryLLM
	case strings.Contains(a, "skill_change"), strings.Contains(a, "window"), strings.Contains(a, "navigation"):
		return CategoryNavigation
	default:
		return CategorySystem
	}
}
