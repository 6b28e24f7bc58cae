package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/domain/types"
)

// Config holds the maintenance policy knobs of the event log
type Config struct {
	// MaxEvents is the hard ceiling. Exceeding it triggers full
	// maintenance, which brings the store back at or below it.
	MaxEvents int

	// CompressThreshold is the lower soft limit that triggers the
	// compression-only pass.
	CompressThreshold int

	// SystemRetention is how long system-category events (including
	// per-skill initialization markers) are kept during full maintenance.
	SystemRetention time.Duration

	// ConsolidationWindow bounds the time span of a run of identical
	// category+action events that is collapsed into one event.
	ConsolidationWindow time.Duration

	// CompressAfter is the age beyond which long event content is
	// truncated.
	CompressAfter time.Duration

	// CompressMinLength and CompressPrefixLen control which contents are
	// truncated and how much of them survives.
	CompressMinLength int
	CompressPrefixLen int
}

// DefaultConfig returns the maintenance policy used unless overridden
func DefaultConfig() Config {
	return Config{
		MaxEvents:           1000,
		CompressThreshold:   700,
		SystemRetention:     24 * time.Hour,
		ConsolidationWindow: time.Minute,
		CompressAfter:       2 * time.Hour,
		CompressMinLength:   500,
		CompressPrefixLen:   200,
	}
}

const compressionMarker = " ... [compressed]"

// EventLog is the in-memory append-only conversation log. All mutation
// goes through Append/Maintain/Clear under a single mutex; reads hand out
// copies so concurrent readers never observe maintenance in progress.
type EventLog struct {
	mu           sync.RWMutex
	cfg          Config
	instructions map[types.Skill]string
	events       []*model.ConversationEvent
}

// New creates an event log seeded with one initialization marker per
// registered skill. A nil instruction map seeds nothing; the store still
// works, and the prompt memory policy treats every skill as first-time.
func New(cfg Config, instructions map[types.Skill]string) *EventLog {
	def := DefaultConfig()
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}
	if cfg.CompressThreshold <= 0 {
		cfg.CompressThreshold = def.CompressThreshold
	}
	if cfg.SystemRetention <= 0 {
		cfg.SystemRetention = def.SystemRetention
	}
	if cfg.ConsolidationWindow <= 0 {
		cfg.ConsolidationWindow = def.ConsolidationWindow
	}
	if cfg.CompressAfter <= 0 {
		cfg.CompressAfter = def.CompressAfter
	}
	if cfg.CompressMinLength <= 0 {
		cfg.CompressMinLength = def.CompressMinLength
	}
	if cfg.CompressPrefixLen <= 0 {
		cfg.CompressPrefixLen = def.CompressPrefixLen
	}

	log := &EventLog{
		cfg:          cfg,
		instructions: instructions,
	}
	log.seedLocked()
	return log
}

// seedLocked appends one initialization marker per skill, in stable order
func (x *EventLog) seedLocked() {
	skills := make([]types.Skill, 0, len(x.instructions))
	for s := range x.instructions {
		skills = append(skills, s)
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i] < skills[j] })

	for _, s := range skills {
		ev := model.NewConversationEvent(model.EventInput{
			Role:    types.RoleSystem,
			Content: x.instructions[s],
			Skill:   s,
			Action:  types.ActionSkillPromptInit,
			Metadata: map[string]any{
				model.MetaSkillUsed: s.String(),
			},
		})
		x.events = append(x.events, ev)
	}
}

// Append stores a new event and evaluates maintenance as a side effect
func (x *EventLog) Append(ctx context.Context, in model.EventInput) (*model.ConversationEvent, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	ev := model.NewConversationEvent(in)
	x.events = append(x.events, ev)

	if len(x.events) > x.cfg.MaxEvents {
		x.maintainLocked(nil)
	} else if len(x.events) > x.cfg.CompressThreshold {
		x.compressLocked(nil)
	}

	return ev.Clone(), nil
}

// Events returns all events in insertion order, as copies
func (x *EventLog) Events(ctx context.Context) ([]*model.ConversationEvent, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	result := make([]*model.ConversationEvent, len(x.events))
	for i, ev := range x.events {
		result[i] = ev.Clone()
	}
	return result, nil
}

// Maintain forces a full maintenance pass regardless of thresholds
func (x *EventLog) Maintain(ctx context.Context) (*model.MaintenanceReport, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	report := &model.MaintenanceReport{}
	x.maintainLocked(report)
	return report, nil
}

// Clear empties the store and re-seeds skill initialization markers
func (x *EventLog) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.events = nil
	x.seedLocked()
	return nil
}

// EventCount returns the current number of stored events
func (x *EventLog) EventCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.events)
}

// MemoryUsage reports count, approximate serialized size and percent of
// the ceiling
func (x *EventLog) MemoryUsage(ctx context.Context) (*model.MemoryUsage, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	approx := 0
	if data, err := json.Marshal(x.events); err == nil {
		approx = len(data)
	}

	return &model.MemoryUsage{
		EventCount:  len(x.events),
		ApproxBytes: approx,
		PercentUsed: float64(len(x.events)) / float64(x.cfg.MaxEvents) * 100,
	}, nil
}

// maintainLocked runs eviction, consolidation, compression and the final
// trim to the ceiling. The report may be nil.
func (x *EventLog) maintainLocked(report *model.MaintenanceReport) {
	if report == nil {
		report = &model.MaintenanceReport{}
	}
	now := time.Now().UTC()

	report.Evicted = x.evictLocked(now)
	report.Consolidated = x.consolidateLocked()
	report.Compressed = x.compressLockedAt(now)
	report.Trimmed = x.trimLocked()
}

// evictLocked drops system-category events older than the retention
// window. Initialization markers are eligible too: once a skill's marker
// ages out, the prompt memory policy treats the skill as first-time again.
func (x *EventLog) evictLocked(now time.Time) int {
	cutoff := now.Add(-x.cfg.SystemRetention)
	kept := x.events[:0]
	evicted := 0
	for _, ev := range x.events {
		if ev.Category == types.CategorySystem && ev.Timestamp.Before(cutoff) {
			evicted++
			continue
		}
		kept = append(kept, ev)
	}
	x.events = kept
	return evicted
}

// consolidateLocked collapses runs of events with identical
// category+action whose timestamps fall within the consolidation window
// into a single representative: the first event's identity and content,
// the last event's timestamp, plus count and time span metadata.
// Initialization markers are exempt; merging them would break the
// one-marker-per-skill invariant.
func (x *EventLog) consolidateLocked() int {
	if len(x.events) < 2 {
		return 0
	}

	removed := 0
	result := make([]*model.ConversationEvent, 0, len(x.events))
	i := 0
	for i < len(x.events) {
		first := x.events[i]
		if first.IsInitialization() {
			result = append(result, first)
			i++
			continue
		}

		j := i + 1
		for j < len(x.events) {
			next := x.events[j]
			if next.IsInitialization() ||
				next.Category != first.Category ||
				next.Action != first.Action ||
				next.Timestamp.Sub(first.Timestamp) > x.cfg.ConsolidationWindow {
				break
			}
			j++
		}

		run := x.events[i:j]
		if len(run) < 2 {
			result = append(result, first)
			i = j
			continue
		}

		last := run[len(run)-1]
		count := 0
		for _, ev := range run {
			count += consolidatedCount(ev)
		}

		rep := first.Clone()
		span := model.TimeSpan{Start: first.Timestamp, End: last.Timestamp}
		if prev, ok := first.Metadata[model.MetaTimeSpan].(model.TimeSpan); ok {
			span.Start = prev.Start
		}
		rep.Timestamp = last.Timestamp
		if rep.Metadata == nil {
			rep.Metadata = make(map[string]any, 2)
		}
		rep.Metadata[model.MetaConsolidatedCount] = count
		rep.Metadata[model.MetaTimeSpan] = span

		result = append(result, rep)
		removed += len(run) - 1
		i = j
	}

	x.events = result
	return removed
}

func consolidatedCount(ev *model.ConversationEvent) int {
	if n, ok := ev.Metadata[model.MetaConsolidatedCount].(int); ok && n > 0 {
		return n
	}
	return 1
}

// compressLocked runs the compression-only pass triggered by the soft
// threshold
func (x *EventLog) compressLocked(report *model.MaintenanceReport) {
	n := x.compressLockedAt(time.Now().UTC())
	if report != nil {
		report.Compressed = n
	}
}

// compressLockedAt truncates long content of events older than the
// compression window. Identity and timestamp are preserved; only Content
// and the Compressed flag change.
func (x *EventLog) compressLockedAt(now time.Time) int {
	cutoff := now.Add(-x.cfg.CompressAfter)
	compressed := 0
	for _, ev := range x.events {
		if ev.Compressed || !ev.Timestamp.Before(cutoff) {
			continue
		}
		if len(ev.Content) <= x.cfg.CompressMinLength {
			continue
		}
		cut := x.cfg.CompressPrefixLen
		for cut > 0 && !utf8.RuneStart(ev.Content[cut]) {
			cut--
		}
		ev.Content = ev.Content[:cut] + compressionMarker
		ev.Compressed = true
		compressed++
	}
	return compressed
}

// trimLocked drops the oldest events until the store fits the ceiling
func (x *EventLog) trimLocked() int {
	if len(x.events) <= x.cfg.MaxEvents {
		return 0
	}
	over := len(x.events) - x.cfg.MaxEvents
	x.events = append(x.events[:0], x.events[over:]...)
	return over
}
