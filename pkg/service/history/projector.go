package history

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/prompter/pkg/domain/interfaces"
	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/domain/types"
)

const skillContextEventLimit = 10

// Projector builds read-only views over the event log for the request
// orchestrator and display surfaces. It never mutates the log.
type Projector struct {
	log interfaces.EventLog
}

// New creates a Projector over the given event log
func New(log interfaces.EventLog) *Projector {
	return &Projector{log: log}
}

// RecentEvents returns the last n events, newest last, in summarized form
func (x *Projector) RecentEvents(ctx context.Context, n int) ([]model.EventDigest, error) {
	events, err := x.log.Events(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read events")
	}

	events = tail(events, n)
	result := make([]model.EventDigest, len(events))
	for i, ev := range events {
		result[i] = model.NewEventDigest(ev)
	}
	return result, nil
}

// ImportantEvents returns the last n capture and llm category events
func (x *Projector) ImportantEvents(ctx context.Context, n int) ([]model.EventDigest, error) {
	events, err := x.log.Events(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read events")
	}

	var important []*model.ConversationEvent
	for _, ev := range events {
		if ev.Category == types.CategoryCapture || ev.Category == types.CategoryLLM {
			important = append(important, ev)
		}
	}

	important = tail(important, n)
	result := make([]model.EventDigest, len(important))
	for i, ev := range important {
		result[i] = model.NewEventDigest(ev)
	}
	return result, nil
}

// ConversationHistory returns the last maxEntries conversational events,
// excluding initialization markers, reduced to the model-facing shape.
func (x *Projector) ConversationHistory(ctx context.Context, maxEntries int) ([]model.HistoryEntry, error) {
	events, err := x.log.Events(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read events")
	}

	var conversational []*model.ConversationEvent
	for _, ev := range events {
		if ev.IsInitialization() {
			continue
		}
		conversational = append(conversational, ev)
	}

	conversational = tail(conversational, maxEntries)
	result := make([]model.HistoryEntry, len(conversational))
	for i, ev := range conversational {
		result[i] = model.HistoryEntry{
			Role:      ev.Role,
			Content:   ev.Content,
			Timestamp: ev.Timestamp,
			Skill:     ev.Skill,
			Action:    ev.Action,
		}
	}
	return result, nil
}

// SkillContext returns the initialization content for a skill (if its
// marker is still stored) plus the most recent events for that skill.
func (x *Projector) SkillContext(ctx context.Context, skill types.Skill) (*model.SkillContext, error) {
	events, err := x.log.Events(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read events")
	}

	result := &model.SkillContext{Skill: skill}
	var matched []*model.ConversationEvent
	for _, ev := range events {
		if ev.Skill != skill {
			continue
		}
		if ev.IsInitialization() {
			result.Instruction = ev.Content
			result.HasInstruction = true
			continue
		}
		matched = append(matched, ev)
	}

	matched = tail(matched, skillContextEventLimit)
	result.Events = make([]model.HistoryEntry, len(matched))
	for i, ev := range matched {
		result.Events[i] = model.HistoryEntry{
			Role:      ev.Role,
			Content:   ev.Content,
			Timestamp: ev.Timestamp,
			Skill:     ev.Skill,
			Action:    ev.Action,
		}
	}
	return result, nil
}

// SessionSummary aggregates category counts, the session time span and
// the top-3 skills by event count.
func (x *Projector) SessionSummary(ctx context.Context) (*model.SessionSummary, error) {
	events, err := x.log.Events(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read events")
	}

	summary := &model.SessionSummary{
		EventCount:     len(events),
		CategoryCounts: make(map[types.Category]int),
	}

	skillCounts := make(map[types.Skill]int)
	for i, ev := range events {
		summary.CategoryCounts[ev.Category]++
		skillCounts[ev.Skill]++
		if i == 0 || ev.Timestamp.Before(summary.StartedAt) {
			summary.StartedAt = ev.Timestamp
		}
		if i == 0 || ev.Timestamp.After(summary.EndedAt) {
			summary.EndedAt = ev.Timestamp
		}
	}

	for s, n := range skillCounts {
		summary.TopSkills = append(summary.TopSkills, model.SkillCount{Skill: s, Count: n})
	}
	sort.Slice(summary.TopSkills, func(i, j int) bool {
		if summary.TopSkills[i].Count != summary.TopSkills[j].Count {
			return summary.TopSkills[i].Count > summary.TopSkills[j].Count
		}
		return summary.TopSkills[i].Skill < summary.TopSkills[j].Skill
	})
	if len(summary.TopSkills) > 3 {
		summary.TopSkills = summary.TopSkills[:3]
	}

	return summary, nil
}

func tail[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}
