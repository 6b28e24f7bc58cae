package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/prompter/pkg/domain/interfaces"
	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/domain/types"
	"github.com/m-mizutani/prompter/pkg/service/history"
	"github.com/m-mizutani/prompter/pkg/usecase"
	"github.com/m-mizutani/prompter/pkg/utils/errutil"
)

const (
	defaultEventListLimit = 20
	defaultHistoryLimit   = 50
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func chatHandler(chat *usecase.Chat) http.HandlerFunc {
	type request struct {
		Message string `json:"message"`
		Skill   string `json:"skill"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid chat request body"), http.StatusBadRequest)
			return
		}

		resp, err := chat.HandleMessage(r.Context(), req.Message, req.Skill)
		if err != nil {
			class := usecase.ClassifyError(err)
			status := http.StatusBadGateway
			if class == types.ErrClassValidation {
				status = http.StatusBadRequest
			}

			// Root causes go to logs; the client gets the short message.
			_ = errutil.Handle(r.Context(), err, "chat request failed")
			sk := chat.ResolveSkill(req.Skill)
			writeError(w, r, status, usecase.UserFacingMessage(class, sk))
			return
		}

		respondJSON(w, r, http.StatusOK, resp)
	}
}

func recordEventHandler(chat *usecase.Chat) http.HandlerFunc {
	type request struct {
		Role     string         `json:"role"`
		Content  string         `json:"content"`
		Skill    string         `json:"skill"`
		Action   string         `json:"action"`
		Metadata map[string]any `json:"metadata"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid event body"), http.StatusBadRequest)
			return
		}

		role := types.Role(req.Role)
		if req.Role != "" {
			if err := role.Validate(); err != nil {
				errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
				return
			}
		}

		ev, err := chat.RecordEvent(r.Context(), model.EventInput{
			Role:     role,
			Content:  req.Content,
			Skill:    types.Skill(req.Skill),
			Action:   types.Action(req.Action),
			Metadata: req.Metadata,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if usecase.ClassifyError(err) == types.ErrClassValidation {
				status = http.StatusBadRequest
			}
			errutil.HandleHTTP(r.Context(), w, err, status)
			return
		}

		respondJSON(w, r, http.StatusCreated, ev)
	}
}

func recentEventsHandler(projector *history.Projector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := projector.RecentEvents(r.Context(), queryInt(r, "n", defaultEventListLimit))
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"events": events})
	}
}

func importantEventsHandler(projector *history.Projector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := projector.ImportantEvents(r.Context(), queryInt(r, "n", defaultEventListLimit))
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"events": events})
	}
}

func historyHandler(projector *history.Projector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := projector.ConversationHistory(r.Context(), queryInt(r, "limit", defaultHistoryLimit))
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"history": entries})
	}
}

func skillContextHandler(projector *history.Projector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sk := types.Skill(strings.ToLower(chi.URLParam(r, "skill")))
		if err := sk.Validate(); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
			return
		}

		sc, err := projector.SkillContext(r.Context(), sk)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, r, http.StatusOK, sc)
	}
}

func summaryHandler(projector *history.Projector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := projector.SessionSummary(r.Context())
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, r, http.StatusOK, summary)
	}
}

func statsHandler(eventLog interfaces.EventLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usage, err := eventLog.MemoryUsage(r.Context())
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, r, http.StatusOK, usage)
	}
}

func maintenanceHandler(eventLog interfaces.EventLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := eventLog.Maintain(r.Context())
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		respondJSON(w, r, http.StatusOK, report)
	}
}

func clearHandler(chat *usecase.Chat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := chat.Clear(r.Context()); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func settingsHandler(chat *usecase.Chat) http.HandlerFunc {
	type request struct {
		APIKey string `json:"apiKey"`
		Skill  string `json:"skill"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid settings body"), http.StatusBadRequest)
			return
		}

		if req.APIKey != "" {
			chat.SetCredential(req.APIKey)
		}
		active := chat.ActiveSkill()
		if req.Skill != "" {
			active = chat.SetActiveSkill(req.Skill)
		}

		respondJSON(w, r, http.StatusOK, map[string]any{"activeSkill": active})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, r, status, map[string]any{
		"error":     msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
