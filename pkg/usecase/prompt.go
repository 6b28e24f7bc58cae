package usecase

import (
	"context"

	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/domain/types"
	"github.com/m-mizutani/prompter/pkg/service/skill"
	"github.com/m-mizutani/prompter/pkg/utils/logging"
)

// InstructionDecision is the outcome of the prompt memory policy for one
// turn: either an instruction to attach, or confirmation that the backend
// already holds it as memory.
type InstructionDecision struct {
	Instruction string
	Inject      bool

	// UsingMemory is true when the instruction was delivered earlier in
	// this session and must not be repeated.
	UsingMemory bool
}

// PromptMemory decides, per skill, whether the system instruction must be
// (re-)injected into the next model call. The delivery record lives in
// the event store itself (the user event's metadata), so the policy holds
// no state of its own: when maintenance evicts or trims the record, the
// skill is treated as first-time again, and Clear forgets all deliveries
// by reseeding the store.
type PromptMemory struct {
	registry *skill.Registry
}

// NewPromptMemory creates the policy over the given registry
func NewPromptMemory(registry *skill.Registry) *PromptMemory {
	return &PromptMemory{registry: registry}
}

// ShouldInjectInstruction reports whether the skill's instruction must be
// attached to the next request. True on the first turn ever, or when no
// stored event records the instruction as already sent — which also
// covers the case where maintenance evicted an aged initialization
// marker: the skill is then first-time again.
func (x *PromptMemory) ShouldInjectInstruction(s types.Skill, hist []*model.ConversationEvent) bool {
	if len(hist) == 0 {
		return true
	}

	for _, ev := range hist {
		if ev.Metadata == nil {
			continue
		}
		used, _ := ev.Metadata[model.MetaSkillUsed].(string)
		delivered, _ := ev.Metadata[model.MetaPromptSentAsMemory].(bool)
		if used == s.String() && delivered {
			return false
		}
	}
	return true
}

// BuildInstructionDecision resolves the instruction for this turn. The
// delivery itself is recorded by the caller as metadata on the stored
// user event, so a turn that fails validation before reaching the store
// leaves the skill undelivered. A skill that needs injection but has no
// registry entry is a recoverable condition: the request proceeds without
// a system instruction.
func (x *PromptMemory) BuildInstructionDecision(ctx context.Context, s types.Skill, hist []*model.ConversationEvent) *InstructionDecision {
	if !x.ShouldInjectInstruction(s, hist) {
		return &InstructionDecision{UsingMemory: true}
	}

	instruction, ok := x.registry.Instruction(s)
	if !ok {
		logging.From(ctx).Warn("no instruction registered for skill, proceeding without one",
			"skill", s)
		return &InstructionDecision{}
	}

	return &InstructionDecision{
		Instruction: instruction,
		Inject:      true,
	}
}
