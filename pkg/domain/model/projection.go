package model

import (
	"time"

	"github.com/m-mizutani/prompter/pkg/domain/types"
)

// EventDigest is the summarized read-only view of an event handed to
// display surfaces. It deliberately omits the raw metadata map.
type EventDigest struct {
	ID         types.EventID  `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Role       types.Role     `json:"role"`
	Skill      types.Skill    `json:"skill"`
	Action     types.Action   `json:"action"`
	Category   types.Category `json:"category"`
	Summary    string         `json:"summary"`
	Compressed bool           `json:"compressed,omitempty"`
}

// NewEventDigest reduces an event to its digest view
func NewEventDigest(ev *ConversationEvent) EventDigest {
	return EventDigest{
		ID:         ev.ID,
		Timestamp:  ev.Timestamp,
		Role:       ev.Role,
		Skill:      ev.Skill,
		Action:     ev.Action,
		Category:   ev.Category,
		Summary:    ev.ContextSummary,
		Compressed: ev.Compressed,
	}
}

// HistoryEntry is the reduced conversational view fed to the orchestrator
// and to model-facing consumers.
type HistoryEntry struct {
	Role      types.Role   `json:"role"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	Skill     types.Skill  `json:"skill"`
	Action    types.Action `json:"action"`
}

// ModelRole normalizes the role for backends that only understand two
// roles: anything that is not a model turn is forwarded as a user turn.
func (x HistoryEntry) ModelRole() types.Role {
	if x.Role == types.RoleModel {
		return types.RoleModel
	}
	return types.RoleUser
}

// SkillContext is the per-skill view: the instruction marker content (if
// still present in the store) plus the most recent events for that skill.
type SkillContext struct {
	Skill          types.Skill    `json:"skill"`
	Instruction    string         `json:"instruction,omitempty"`
	HasInstruction bool           `json:"hasInstruction"`
	Events         []HistoryEntry `json:"events"`
}
