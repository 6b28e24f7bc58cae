package memory_test

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/domain/types"
	"github.com/m-mizutani/prompter/pkg/repository/memory"
)

var testInstructions = map[types.Skill]string{
	"dsa":     "You are a DSA coach.",
	"general": "You are a helpful assistant.",
}

func TestSeededInitializationMarkers(t *testing.T) {
	log := memory.New(memory.Config{}, testInstructions)

	events, err := log.Events(context.Background())
	gt.NoError(t, err).Required()
	gt.Array(t, events).Length(2)

	// Seeding order is stable: sorted by skill ID.
	gt.Value(t, events[0].Skill).Equal(types.Skill("dsa"))
	gt.Value(t, events[1].Skill).Equal(types.Skill("general"))

	for _, ev := range events {
		gt.Value(t, ev.Role).Equal(types.RoleSystem)
		gt.Value(t, ev.Action).Equal(types.ActionSkillPromptInit)
		gt.Value(t, ev.Content).Equal(testInstructions[ev.Skill])
		gt.Value(t, ev.Metadata[model.MetaSkillUsed]).Equal(ev.Skill.String())
	}
}

func TestAppendBoundedGrowth(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{
		MaxEvents:         50,
		CompressThreshold: 40,
	}, testInstructions)

	for i := 0; i < 120; i++ {
		// Alternate actions so consolidation cannot collapse the whole run.
		action := types.ActionChatInput
		if i%2 == 0 {
			action = types.ActionSpeechTranscription
		}
		_, err := log.Append(ctx, model.EventInput{
			Content: "event",
			Action:  action,
		})
		gt.NoError(t, err)
	}

	gt.Bool(t, log.EventCount() <= 50).True()

	usage, err := log.MemoryUsage(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, usage.EventCount).Equal(log.EventCount())
	gt.Bool(t, usage.ApproxBytes > 0).True()
	gt.Bool(t, usage.PercentUsed <= 100).True()
}

func TestMaintainConsolidatesRuns(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{}, testInstructions)

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, model.EventInput{
			Role:    types.RoleSystem,
			Content: "frame",
			Action:  types.ActionScreenshotCapture,
		})
		gt.NoError(t, err)
	}
	_, err := log.Append(ctx, model.EventInput{Content: "question"})
	gt.NoError(t, err)

	report, err := log.Maintain(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Consolidated).Equal(4)

	events, err := log.Events(ctx)
	gt.NoError(t, err).Required()

	var captures []*model.ConversationEvent
	for _, ev := range events {
		if ev.Action == types.ActionScreenshotCapture {
			captures = append(captures, ev)
		}
	}
	gt.Array(t, captures).Length(1)
	if len(captures) != 1 {
		t.Fatal("expected a single consolidated capture event")
	}

	rep := captures[0]
	gt.Value(t, rep.Content).Equal("frame")
	gt.Value(t, rep.Metadata[model.MetaConsolidatedCount]).Equal(5)

	span, ok := rep.Metadata[model.MetaTimeSpan].(model.TimeSpan)
	gt.Bool(t, ok).True()
	gt.Bool(t, span.End.Before(span.Start)).False()

	// The unrelated chat event survives untouched.
	gt.Value(t, events[len(events)-1].Content).Equal("question")
}

func TestMaintainKeepsInitializationMarkers(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{}, testInstructions)

	// Both markers share category and action and were seeded within the
	// consolidation window, but they must never be merged.
	report, err := log.Maintain(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Consolidated).Equal(0)

	events, err := log.Events(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, events).Length(2)
}

func TestMaintainCompressesOldContent(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{}, testInstructions)

	long := strings.Repeat("x", 600)
	ev, err := log.Append(ctx, model.EventInput{Content: long})
	gt.NoError(t, err).Required()

	log.BackdateEvent(ev.ID, time.Now().UTC().Add(-3*time.Hour))

	report, err := log.Maintain(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Compressed).Equal(1)

	events, err := log.Events(ctx)
	gt.NoError(t, err).Required()

	var got *model.ConversationEvent
	for _, e := range events {
		if e.ID == ev.ID {
			got = e
		}
	}
	if got == nil {
		t.Fatal("compressed event disappeared from the store")
	}
	gt.Bool(t, got.Compressed).True()
	gt.Bool(t, strings.HasSuffix(got.Content, " ... [compressed]")).True()
	gt.Bool(t, strings.HasPrefix(got.Content, "xxxx")).True()
	gt.Bool(t, len(got.Content) < len(long)).True()
}

func TestCompressionKeepsValidUTF8(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{}, testInstructions)

	// Multi-byte runes straddling the prefix length must not be split.
	ev, err := log.Append(ctx, model.EventInput{Content: strings.Repeat("面", 300)})
	gt.NoError(t, err).Required()
	log.BackdateEvent(ev.ID, time.Now().UTC().Add(-3*time.Hour))

	report, err := log.Maintain(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Compressed).Equal(1)

	events, err := log.Events(ctx)
	gt.NoError(t, err).Required()
	for _, e := range events {
		if e.ID != ev.ID {
			continue
		}
		gt.Bool(t, e.Compressed).True()
		gt.Bool(t, utf8.ValidString(e.Content)).True()
		gt.Bool(t, strings.HasSuffix(e.Content, " ... [compressed]")).True()
	}
}

func TestMaintainDoesNotRecompress(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{}, testInstructions)

	ev, err := log.Append(ctx, model.EventInput{Content: strings.Repeat("y", 600)})
	gt.NoError(t, err).Required()
	log.BackdateEvent(ev.ID, time.Now().UTC().Add(-3*time.Hour))

	_, err = log.Maintain(ctx)
	gt.NoError(t, err).Required()

	report, err := log.Maintain(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Compressed).Equal(0)
}

func TestMaintainEvictsStaleSystemEvents(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{}, testInstructions)

	ev, err := log.Append(ctx, model.EventInput{
		Role:    types.RoleSystem,
		Content: "periodic health check",
		Action:  "health_check",
	})
	gt.NoError(t, err).Required()
	gt.Value(t, ev.Category).Equal(types.CategorySystem)

	log.BackdateEvent(ev.ID, time.Now().UTC().Add(-25*time.Hour))

	report, err := log.Maintain(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Evicted).Equal(1)

	events, err := log.Events(ctx)
	gt.NoError(t, err).Required()
	for _, e := range events {
		gt.Value(t, e.ID).NotEqual(ev.ID)
	}
}

func TestEvictionIncludesAgedInitMarkers(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{}, testInstructions)

	events, err := log.Events(ctx)
	gt.NoError(t, err).Required()
	log.BackdateEvent(events[0].ID, time.Now().UTC().Add(-25*time.Hour))

	report, err := log.Maintain(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Evicted).Equal(1)
	gt.Value(t, log.EventCount()).Equal(1)
}

func TestClearReseeds(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{}, testInstructions)

	for i := 0; i < 10; i++ {
		_, err := log.Append(ctx, model.EventInput{Content: "chatter"})
		gt.NoError(t, err)
	}

	gt.NoError(t, log.Clear(ctx))

	events, err := log.Events(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, events).Length(2)
	for _, ev := range events {
		gt.Bool(t, ev.IsInitialization()).True()
	}
}

func TestEventsReturnsCopies(t *testing.T) {
	ctx := context.Background()
	log := memory.New(memory.Config{}, testInstructions)

	events, err := log.Events(ctx)
	gt.NoError(t, err).Required()
	events[0].Content = "tampered"

	again, err := log.Events(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, again[0].Content).Equal(testInstructions[again[0].Skill])
}
