package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/prompter/pkg/domain/types"
)

// Metadata keys shared between the event store, the prompt memory policy
// and the request orchestrator.
const (
	MetaSkillUsed          = "skillUsed"
	MetaPromptSentAsMemory = "promptSentAsMemory"
	MetaConsolidatedCount  = "consolidatedCount"
	MetaTimeSpan           = "timeSpan"
	MetaProcessingTimeMs   = "processingTimeMs"
	MetaAttempts           = "attempts"
	MetaUsedFallback       = "usedFallback"
	MetaErrorClass         = "errorClass"
)

// TimeSpan marks the range covered by a consolidated event
type TimeSpan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ConversationEvent is one atomic record of conversation activity: user
// text, model text, or a system marker. Events are immutable once stored;
// only the maintenance compression step replaces Content and sets
// Compressed.
type ConversationEvent struct {
	ID             types.EventID  `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	Role           types.Role     `json:"role"`
	Content        string         `json:"content"`
	Skill          types.Skill    `json:"skill"`
	Action         types.Action   `json:"action"`
	Category       types.Category `json:"category"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ContextSummary string         `json:"contextSummary"`
	Compressed     bool           `json:"compressed"`
}

// EventInput carries the caller-supplied fields of a new event
type EventInput struct {
	Role     types.Role
	Content  string
	Skill    types.Skill
	Action   types.Action
	Metadata map[string]any
}

// NewConversationEvent builds an event from caller input. ID, timestamp,
// category and context summary are computed here, once.
func NewConversationEvent(in EventInput) *ConversationEvent {
	role := in.Role
	if role == "" {
		role = types.RoleUser
	}
	skill := in.Skill
	if skill == "" {
		skill = types.DefaultSkill
	}
	action := in.Action
	if action == "" {
		action = types.ActionChatInput
	}

	ev := &ConversationEvent{
		ID:        types.NewEventID(),
		Timestamp: time.Now().UTC(),
		Role:      role,
		Content:   in.Content,
		Skill:     skill,
		Action:    action,
		Category:  action.Category(),
	}
	if len(in.Metadata) > 0 {
		ev.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			ev.Metadata[k] = v
		}
	}
	ev.ContextSummary = buildContextSummary(ev)
	return ev
}

// Clone returns a deep copy, so projections never hand out live references
func (x *ConversationEvent) Clone() *ConversationEvent {
	copied := *x
	if x.Metadata != nil {
		copied.Metadata = make(map[string]any, len(x.Metadata))
		for k, v := range x.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}

// IsInitialization reports whether the event is a per-skill system
// instruction marker. These exist for bookkeeping only and must never be
// projected as literal history lines.
func (x *ConversationEvent) IsInitialization() bool {
	return x.Action == types.ActionSkillPromptInit
}

const summaryContentLimit = 48

func buildContextSummary(ev *ConversationEvent) string {
	content := strings.TrimSpace(ev.Content)
	content = strings.Join(strings.Fields(content), " ")
	if len(content) > summaryContentLimit {
		cut := summaryContentLimit
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "..."
	}
	return fmt.Sprintf("[%s] %s/%s: %s", ev.Skill, ev.Role, ev.Action, content)
}
