package usecase

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/domain/types"
	"github.com/m-mizutani/prompter/pkg/utils/errutil"
	"github.com/m-mizutani/prompter/pkg/utils/logging"
)

// HandleMessage runs one full conversation turn: resolve the skill,
// decide instruction injection, assemble the request from projected
// history, execute it with retries and fallbacks, and record both sides
// of the exchange in the event log. Turns are serialized so their
// resulting model events land in request order.
func (x *Chat) HandleMessage(ctx context.Context, message, skillName string) (*model.ChatResponse, error) {
	x.turnMu.Lock()
	defer x.turnMu.Unlock()

	start := time.Now()
	sk := x.ResolveSkill(skillName)

	events, err := x.log.Events(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read event log")
	}
	decision := x.policy.BuildInstructionDecision(ctx, sk, events)

	hist, err := x.projector.ConversationHistory(ctx, x.cfg.HistoryLimit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to project conversation history")
	}

	req, err := BuildRequest(message, sk, hist, decision, x.cfg.Generation)
	if err != nil {
		return nil, err
	}

	if _, err := x.log.Append(ctx, model.EventInput{
		Role:    types.RoleUser,
		Content: req.UserMessage(),
		Skill:   sk,
		Action:  types.ActionChatInput,
		Metadata: map[string]any{
			model.MetaSkillUsed:          sk.String(),
			model.MetaPromptSentAsMemory: decision.Inject,
		},
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to record user input")
	}

	text, attempts, transport, execErr := x.execute(ctx, req)
	if execErr != nil {
		class := ClassifyError(execErr)
		_ = errutil.Handle(ctx, execErr, "chat request failed")

		if !x.cfg.LocalFallback {
			return nil, execErr
		}

		text = degradedAnswer(sk)
		if _, err := x.log.Append(ctx, model.EventInput{
			Role:    types.RoleModel,
			Content: text,
			Skill:   sk,
			Action:  types.ActionLLMResponse,
			Metadata: map[string]any{
				model.MetaUsedFallback: true,
				model.MetaAttempts:     attempts,
				model.MetaErrorClass:   class.String(),
			},
		}); err != nil {
			return nil, goerr.Wrap(err, "failed to record degraded response")
		}

		return &model.ChatResponse{
			Text:             text,
			Skill:            sk,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Attempts:         attempts,
			Transport:        model.TransportLocal,
			UsedFallback:     true,
		}, nil
	}

	elapsed := time.Since(start).Milliseconds()
	if _, err := x.log.Append(ctx, model.EventInput{
		Role:    types.RoleModel,
		Content: text,
		Skill:   sk,
		Action:  types.ActionLLMResponse,
		Metadata: map[string]any{
			model.MetaProcessingTimeMs: elapsed,
			model.MetaAttempts:         attempts,
		},
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to record model response")
	}

	return &model.ChatResponse{
		Text:             text,
		Skill:            sk,
		ProcessingTimeMs: elapsed,
		Attempts:         attempts,
		Transport:        transport,
	}, nil
}

// BuildRequest assembles the ordered message turns: projected history
// (normalized to user/model roles, chronological) followed by the new
// user turn. An empty trimmed message is a validation failure and is
// surfaced immediately, never retried.
func BuildRequest(message string, sk types.Skill, hist []model.HistoryEntry, decision *InstructionDecision, gen model.GenerationConfig) (*model.ChatRequest, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil, goerr.Wrap(ErrEmptyMessage, "cannot build chat request", goerr.V("skill", sk))
	}

	turns := make([]model.Turn, 0, len(hist)+1)
	for _, entry := range hist {
		turns = append(turns, model.Turn{Role: entry.ModelRole(), Content: entry.Content})
	}
	turns = append(turns, model.Turn{Role: types.RoleUser, Content: trimmed})

	req := &model.ChatRequest{
		Skill:       sk,
		Turns:       turns,
		Generation:  gen,
		UsingMemory: decision.UsingMemory,
	}
	if decision.Inject {
		req.SystemInstruction = decision.Instruction
	}
	return req, nil
}

// execute runs the retry loop: up to MaxRetries primary attempts with
// class-dependent backoff, then a single fallback-transport attempt when
// the path died with a network-class failure.
func (x *Chat) execute(ctx context.Context, req *model.ChatRequest) (string, int, model.Transport, error) {
	logger := logging.From(ctx)

	var lastErr error
	var lastClass types.ErrorClass

	attempts := 0
	for attempt := 1; attempt <= x.cfg.MaxRetries; attempt++ {
		attempts = attempt
		text, err := x.attempt(ctx, req, attempt, x.llm.Generate)
		if err == nil {
			return text, attempts, model.TransportPrimary, nil
		}
		if ctx.Err() != nil {
			return "", attempts, "", goerr.Wrap(err, "request canceled")
		}

		lastErr = err
		lastClass = ClassifyError(err)
		logger.Warn("chat attempt failed",
			"attempt", attempt,
			"class", lastClass,
			"error", err.Error(),
		)

		if attempt < x.cfg.MaxRetries {
			if err := x.wait(ctx, lastClass, attempt); err != nil {
				return "", attempts, "", err
			}
		}
	}

	if x.cfg.TransportFallback && (lastClass == types.ErrClassNetwork || lastClass == types.ErrClassTimeout) {
		attempts++
		logger.Info("retrying through fallback transport", "attempt", attempts)
		text, err := x.attempt(ctx, req, attempts, x.llm.GenerateFallback)
		if err == nil {
			return text, attempts, model.TransportFallback, nil
		}
		lastErr = err
		lastClass = ClassifyError(err)
	}

	return "", attempts, "", goerr.Wrap(lastErr, "all attempts exhausted",
		goerr.V("attempts", attempts),
		goerr.V("class", lastClass.String()),
	)
}

type attemptResult struct {
	text string
	err  error
}

// attempt races one backend call against the attempt timeout. The loser
// of the race is abandoned, not aborted: the result channel is buffered,
// so a late write is dropped and can never mutate shared state.
func (x *Chat) attempt(ctx context.Context, req *model.ChatRequest, n int, call func(context.Context, *model.ChatRequest) (string, error)) (string, error) {
	ch := make(chan attemptResult, 1)
	go func() {
		text, err := call(ctx, req)
		ch <- attemptResult{text: text, err: err}
	}()

	timer := time.NewTimer(x.cfg.AttemptTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", goerr.Wrap(r.err, "backend call failed", goerr.V("attempt", n))
		}
		return r.text, nil
	case <-timer.C:
		return "", goerr.New("backend call timed out",
			goerr.V("attempt", n),
			goerr.V("timeout", x.cfg.AttemptTimeout.String()),
		)
	case <-ctx.Done():
		return "", goerr.Wrap(ctx.Err(), "request canceled", goerr.V("attempt", n))
	}
}

// wait suspends between attempts. Network and timeout failures back off
// from a larger base; delay grows linearly with the attempt number plus
// random jitter.
func (x *Chat) wait(ctx context.Context, class types.ErrorClass, attempt int) error {
	base := x.cfg.BackoffBase
	if class == types.ErrClassNetwork || class == types.ErrClassTimeout {
		base = x.cfg.NetworkBackoffBase
	}

	delay := base * time.Duration(attempt)
	if x.cfg.BackoffJitter > 0 {
		delay += rand.N(x.cfg.BackoffJitter) //nolint:gosec // jitter, not for security use
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "request canceled during backoff")
	}
}

// RecordEvent appends a collaborator-produced event (capture, speech,
// manual input). Empty trimmed content is rejected here so it never
// reaches the store.
func (x *Chat) RecordEvent(ctx context.Context, in model.EventInput) (*model.ConversationEvent, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, goerr.Wrap(ErrEmptyMessage, "event content must not be empty", goerr.V("action", in.Action))
	}
	in.Skill = x.registry.Normalize(in.Skill.String())

	ev, err := x.log.Append(ctx, in)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to append event")
	}
	return ev, nil
}

// Clear resets the event log, which re-seeds skill initializations.
// Delivery records live in the store, so clearing it also forgets them.
func (x *Chat) Clear(ctx context.Context) error {
	if err := x.log.Clear(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear event log")
	}
	return nil
}

// TestConnectivity probes the backend host. Diagnostics only; it shares
// nothing with the retry pipeline and never blocks a real request.
func (x *Chat) TestConnectivity(ctx context.Context) error {
	return x.llm.Ping(ctx)
}

// ResolveSkill maps a caller-supplied skill name to its canonical
// identifier, falling back to the active skill when the name is blank.
func (x *Chat) ResolveSkill(name string) types.Skill {
	if strings.TrimSpace(name) == "" {
		return x.ActiveSkill()
	}
	return x.registry.Normalize(name)
}
