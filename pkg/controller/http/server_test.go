package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/domain/types"
	"github.com/m-mizutani/prompter/pkg/repository/memory"
	"github.com/m-mizutani/prompter/pkg/service/skill"
	"github.com/m-mizutani/prompter/pkg/usecase"

	httpctrl "github.com/m-mizutani/prompter/pkg/controller/http"
)

type mockLLM struct {
	mu         sync.Mutex
	generateFn func(ctx context.Context, req *model.ChatRequest) (string, error)
	credential string
}

func (m *mockLLM) Generate(ctx context.Context, req *model.ChatRequest) (string, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return "mock answer", nil
}

func (m *mockLLM) GenerateFallback(ctx context.Context, req *model.ChatRequest) (string, error) {
	return "", goerr.New("fallback transport requires an API key")
}

func (m *mockLLM) SetCredential(apiKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = apiKey
}

func (m *mockLLM) Ping(ctx context.Context) error { return nil }

func newTestServer(t *testing.T, llm *mockLLM, mod func(*usecase.Config)) *httptest.Server {
	t.Helper()

	registry, err := skill.New()
	gt.NoError(t, err).Required()

	log := memory.New(memory.Config{}, registry.Instructions())

	cfg := usecase.DefaultConfig()
	cfg.BackoffBase = 0
	cfg.NetworkBackoffBase = 0
	cfg.BackoffJitter = 0
	if mod != nil {
		mod(&cfg)
	}
	chat := usecase.NewChat(log, registry, llm, usecase.WithConfig(cfg))

	srv := httptest.NewServer(httpctrl.New(chat, log))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	gt.NoError(t, err).Required()

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	gt.NoError(t, err).Required()
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(out)).Required()
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &mockLLM{}, nil)

	resp, err := http.Get(srv.URL + "/health")
	gt.NoError(t, err).Required()
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

	var body map[string]string
	decodeJSON(t, resp, &body)
	gt.Value(t, body["status"]).Equal("ok")
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockLLM{}, nil)

	resp := postJSON(t, srv.URL+"/api/v1/chat", map[string]string{
		"message": "explain heaps",
		"skill":   "dsa",
	})
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

	var body model.ChatResponse
	decodeJSON(t, resp, &body)
	gt.Value(t, body.Text).Equal("mock answer")
	gt.Value(t, body.Skill).Equal(types.Skill("dsa"))
	gt.Value(t, body.Transport).Equal(model.TransportPrimary)
}

func TestChatEmptyMessage(t *testing.T) {
	srv := newTestServer(t, &mockLLM{}, nil)

	resp := postJSON(t, srv.URL+"/api/v1/chat", map[string]string{"message": "   "})
	gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)

	var body map[string]any
	decodeJSON(t, resp, &body)
	gt.String(t, body["error"].(string)).NotEqual("")
	gt.String(t, body["timestamp"].(string)).NotEqual("")
}

func TestChatBackendFailure(t *testing.T) {
	llm := &mockLLM{
		generateFn: func(ctx context.Context, req *model.ChatRequest) (string, error) {
			return "", goerr.New("dial tcp: connection refused")
		},
	}
	srv := newTestServer(t, llm, func(cfg *usecase.Config) {
		cfg.MaxRetries = 1
		cfg.LocalFallback = false
		cfg.TransportFallback = false
	})

	resp := postJSON(t, srv.URL+"/api/v1/chat", map[string]string{"message": "hello"})
	gt.Value(t, resp.StatusCode).Equal(http.StatusBadGateway)

	var body map[string]any
	decodeJSON(t, resp, &body)
	gt.String(t, body["error"].(string)).NotEqual("")
}

func TestChatErrorNamesCanonicalSkill(t *testing.T) {
	llm := &mockLLM{
		generateFn: func(ctx context.Context, req *model.ChatRequest) (string, error) {
			return "", goerr.New("dial tcp: connection refused")
		},
	}
	srv := newTestServer(t, llm, func(cfg *usecase.Config) {
		cfg.MaxRetries = 1
		cfg.LocalFallback = false
		cfg.TransportFallback = false
	})

	resp := postJSON(t, srv.URL+"/api/v1/chat", map[string]string{
		"message": "hello",
		"skill":   "leetcode",
	})
	gt.Value(t, resp.StatusCode).Equal(http.StatusBadGateway)

	var body map[string]any
	decodeJSON(t, resp, &body)
	msg := body["error"].(string)
	gt.Bool(t, strings.Contains(msg, "dsa")).True()
	gt.Bool(t, strings.Contains(msg, "leetcode")).False()
}

func TestRecordEvent(t *testing.T) {
	srv := newTestServer(t, &mockLLM{}, nil)

	resp := postJSON(t, srv.URL+"/api/v1/events", map[string]any{
		"role":    "system",
		"content": "text from screen",
		"skill":   "leetcode",
		"action":  "ocr_extraction",
	})
	gt.Value(t, resp.StatusCode).Equal(http.StatusCreated)

	var ev model.ConversationEvent
	decodeJSON(t, resp, &ev)
	gt.Value(t, ev.Skill).Equal(types.Skill("dsa"))
	gt.Value(t, ev.Category).Equal(types.CategoryCapture)
	gt.String(t, ev.ID.String()).NotEqual("")
}

func TestRecordEventValidation(t *testing.T) {
	srv := newTestServer(t, &mockLLM{}, nil)

	resp := postJSON(t, srv.URL+"/api/v1/events", map[string]any{"content": "   "})
	gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
	_ = resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/events", map[string]any{
		"role":    "assistant",
		"content": "hello",
	})
	gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
	_ = resp.Body.Close()
}

func TestEventQueries(t *testing.T) {
	srv := newTestServer(t, &mockLLM{}, nil)

	resp := postJSON(t, srv.URL+"/api/v1/chat", map[string]string{"message": "explain heaps", "skill": "dsa"})
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	_ = resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/events/recent?n=2")
	gt.NoError(t, err).Required()
	var recent struct {
		Events []model.EventDigest `json:"events"`
	}
	decodeJSON(t, resp, &recent)
	gt.Array(t, recent.Events).Length(2)

	resp, err = http.Get(srv.URL + "/api/v1/history")
	gt.NoError(t, err).Required()
	var hist struct {
		History []model.HistoryEntry `json:"history"`
	}
	decodeJSON(t, resp, &hist)
	gt.Array(t, hist.History).Length(2)
	gt.Value(t, hist.History[0].Content).Equal("explain heaps")

	resp, err = http.Get(srv.URL + "/api/v1/summary")
	gt.NoError(t, err).Required()
	var summary model.SessionSummary
	decodeJSON(t, resp, &summary)
	gt.Bool(t, summary.EventCount > 0).True()

	resp, err = http.Get(srv.URL + "/api/v1/stats")
	gt.NoError(t, err).Required()
	var usage model.MemoryUsage
	decodeJSON(t, resp, &usage)
	gt.Bool(t, usage.EventCount > 0).True()
	gt.Bool(t, usage.ApproxBytes > 0).True()
}

func TestSkillContextEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockLLM{}, nil)

	resp, err := http.Get(srv.URL + "/api/v1/context/dsa")
	gt.NoError(t, err).Required()
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

	var sc model.SkillContext
	decodeJSON(t, resp, &sc)
	gt.Bool(t, sc.HasInstruction).True()
	gt.Value(t, sc.Skill).Equal(types.Skill("dsa"))

	resp, err = http.Get(srv.URL + "/api/v1/context/bad_skill")
	gt.NoError(t, err).Required()
	gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
	_ = resp.Body.Close()
}

func TestSettings(t *testing.T) {
	llm := &mockLLM{}
	srv := newTestServer(t, llm, nil)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/settings",
		bytes.NewReader([]byte(`{"apiKey": "rotated", "skill": "leetcode"}`)))
	gt.NoError(t, err).Required()

	resp, err := http.DefaultClient.Do(req)
	gt.NoError(t, err).Required()
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

	var body map[string]any
	decodeJSON(t, resp, &body)
	gt.Value(t, body["activeSkill"]).Equal("dsa")

	llm.mu.Lock()
	defer llm.mu.Unlock()
	gt.Value(t, llm.credential).Equal("rotated")
}

func TestMaintenanceAndClear(t *testing.T) {
	srv := newTestServer(t, &mockLLM{}, nil)

	resp := postJSON(t, srv.URL+"/api/v1/chat", map[string]string{"message": "hello"})
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	_ = resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/maintenance", map[string]any{})
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	var report model.MaintenanceReport
	decodeJSON(t, resp, &report)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/events", nil)
	gt.NoError(t, err).Required()
	resp, err = http.DefaultClient.Do(req)
	gt.NoError(t, err).Required()
	gt.Value(t, resp.StatusCode).Equal(http.StatusNoContent)
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/history")
	gt.NoError(t, err).Required()
	var hist struct {
		History []model.HistoryEntry `json:"history"`
	}
	decodeJSON(t, resp, &hist)
	gt.Array(t, hist.History).Length(0)
}
