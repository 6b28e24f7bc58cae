package usecase_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/prompter/pkg/domain/types"
	"github.com/m-mizutani/prompter/pkg/usecase"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want types.ErrorClass
	}{
		{"empty message sentinel", goerr.Wrap(usecase.ErrEmptyMessage, "cannot build request"), types.ErrClassValidation},
		{"connection refused", goerr.New("dial tcp: connection refused"), types.ErrClassNetwork},
		{"unreachable host", goerr.New("backend host is unreachable"), types.ErrClassNetwork},
		{"status 503", goerr.New("backend returned status 503"), types.ErrClassNetwork},
		{"timed out", goerr.New("backend call timed out"), types.ErrClassTimeout},
		{"deadline exceeded", goerr.New("context deadline exceeded"), types.ErrClassTimeout},
		{"status 401", goerr.New("backend returned status 401"), types.ErrClassAuth},
		{"bad api key", goerr.New("API key not valid"), types.ErrClassAuth},
		{"status 429", goerr.New("backend returned status 429"), types.ErrClassRateLimit},
		{"quota", goerr.New("quota exceeded for project"), types.ErrClassRateLimit},
		{"mystery", goerr.New("something odd happened"), types.ErrClassUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Value(t, usecase.ClassifyError(tc.err)).Equal(tc.want)
		})
	}

	gt.Value(t, usecase.ClassifyError(nil)).Equal(types.ErrorClass(""))
}

func TestClassifyWrappedErrors(t *testing.T) {
	inner := goerr.New("connection reset by peer")
	wrapped := goerr.Wrap(goerr.Wrap(inner, "backend call failed"), "all attempts exhausted")

	gt.Value(t, usecase.ClassifyError(wrapped)).Equal(types.ErrClassNetwork)
}

func TestUserFacingMessage(t *testing.T) {
	msg := usecase.UserFacingMessage(types.ErrClassNetwork, "dsa")
	gt.Bool(t, strings.Contains(msg, "dsa")).True()

	authMsg := usecase.UserFacingMessage(types.ErrClassAuth, "dsa")
	gt.Bool(t, strings.Contains(authMsg, "API key")).True()

	gt.String(t, usecase.UserFacingMessage(types.ErrClassValidation, "dsa")).NotEqual("")
	gt.String(t, usecase.UserFacingMessage(types.ErrClassUnknown, "general")).NotEqual("")
}

func TestDegradedAnswersPerSkill(t *testing.T) {
	skills := []types.Skill{"dsa", "system-design", "data-science", "behavioral"}
	seen := map[string]bool{}
	for _, sk := range skills {
		answer := usecase.DegradedAnswer(sk)
		gt.String(t, answer).NotEqual("")
		gt.Bool(t, seen[answer]).False()
		seen[answer] = true
	}

	gt.String(t, usecase.DegradedAnswer("unknown-skill")).NotEqual("")
}
