package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/prompter/pkg/domain/types"
)

// ErrEmptyMessage marks validation failures; never retried
var ErrEmptyMessage = goerr.New("user message is empty after trimming")

// ClassifyError derives the machine-readable failure class from an
// error. The backend reports failures as human-readable messages, so the
// classification is a substring match over known patterns.
func ClassifyError(err error) types.ErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrEmptyMessage) {
		return types.ErrClassValidation
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "unauthorized", "unauthenticated", "api key", "invalid key", "permission denied", "401", "403"):
		return types.ErrClassAuth
	case containsAny(msg, "rate limit", "quota", "resource exhausted", "too many requests", "429"):
		return types.ErrClassRateLimit
	case containsAny(msg, "timed out", "timeout", "deadline exceeded"):
		return types.ErrClassTimeout
	case containsAny(msg, "network", "connection", "unreachable", "refused", "no such host", "dns", "unavailable", "reset by peer", "broken pipe", "502", "503"):
		return types.ErrClassNetwork
	default:
		return types.ErrClassUnknown
	}
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// UserFacingMessage renders a short skill-aware failure message. Root
// causes for auth and network failures stay in logs, never in the UI.
func UserFacingMessage(class types.ErrorClass, skill types.Skill) string {
	switch class {
	case types.ErrClassValidation:
		return "Please type a question first."
	case types.ErrClassAuth:
		return "The assistant backend rejected the credential. Check the API key in settings."
	case types.ErrClassRateLimit:
		return "The assistant is being rate limited. Give it a few seconds and try again."
	case types.ErrClassTimeout, types.ErrClassNetwork:
		return fmt.Sprintf("The %s assistant could not reach its backend. It will retry on your next message.", skill)
	default:
		return fmt.Sprintf("The %s assistant hit an unexpected error. Please try again.", skill)
	}
}

// degradedAnswers are the canned local responses returned when every
// attempt failed and local fallback is enabled.
var degradedAnswers = map[types.Skill]string{
	"dsa":           "I can't reach the backend right now. Meanwhile: restate the problem, start from a brute force, then look for a data structure that removes the bottleneck.",
	"system-design": "I can't reach the backend right now. Meanwhile: clarify requirements, estimate scale, sketch the high-level components, then dig into the hardest one.",
	"data-science":  "I can't reach the backend right now. Meanwhile: check your data distributions and baselines before reaching for a more complex model.",
	"behavioral":    "I can't reach the backend right now. Meanwhile: structure your answer as Situation, Task, Action, Result and lead with the outcome.",
}

const degradedAnswerDefault = "I can't reach the assistant backend right now. Your question was saved; please try again in a moment."

func degradedAnswer(skill types.Skill) string {
	if answer, ok := degradedAnswers[skill]; ok {
		return answer
	}
	return degradedAnswerDefault
}
