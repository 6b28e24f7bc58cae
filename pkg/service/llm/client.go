package llm

import (
	"bytes"
	"context"
	_ "embed"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/utils/safe"
)

//go:embed prompt/transcript.md
var transcriptTmpl string

var transcriptPrompt = template.Must(template.New("transcript").Parse(transcriptTmpl))

const (
	defaultModel    = "gemini-2.0-flash"
	defaultEndpoint = "https://generativelanguage.googleapis.com"
	pingTimeout     = 5 * time.Second
)

// Client delivers chat requests to the Gemini backend. The primary
// transport goes through gollem; the fallback transport posts the same
// payload to the generateContent REST endpoint directly.
type Client struct {
	mu         sync.Mutex
	primary    gollem.LLMClient
	httpClient *http.Client
	apiKey     string
	model      string
	endpoint   string
}

// Option configures the Client
type Option func(*Client)

// WithPrimary sets the gollem client used as the primary transport
func WithPrimary(c gollem.LLMClient) Option {
	return func(x *Client) {
		x.primary = c
	}
}

// WithAPIKey sets the credential used by the REST fallback transport
func WithAPIKey(key string) Option {
	return func(x *Client) {
		x.apiKey = key
	}
}

// WithModel overrides the backend model name
func WithModel(name string) Option {
	return func(x *Client) {
		x.model = name
	}
}

// WithHTTPClient overrides the HTTP client of the fallback transport
func WithHTTPClient(c *http.Client) Option {
	return func(x *Client) {
		x.httpClient = c
	}
}

// WithEndpoint overrides the REST endpoint base URL (tests)
func WithEndpoint(baseURL string) Option {
	return func(x *Client) {
		x.endpoint = strings.TrimSuffix(baseURL, "/")
	}
}

// New creates a Client. Both transports are optional; calls through an
// unconfigured transport fail with a classifiable error instead of
// panicking.
func New(opts ...Option) *Client {
	x := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		model:      defaultModel,
		endpoint:   defaultEndpoint,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Generate sends the request through the primary gollem transport. Prior
// turns travel inside the system prompt as a rendered transcript; the new
// user turn is the generation input.
func (x *Client) Generate(ctx context.Context, req *model.ChatRequest) (string, error) {
	x.mu.Lock()
	primary := x.primary
	x.mu.Unlock()

	if primary == nil {
		return "", goerr.New("primary transport unavailable: gemini client is not configured")
	}

	var opts []gollem.SessionOption
	if sys := renderSystemPrompt(req); sys != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(sys))
	}

	session, err := primary.NewSession(ctx, opts...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(req.UserMessage()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("backend returned an empty response")
	}

	return strings.Join(resp.Texts, "\n"), nil
}

// SetCredential replaces the REST transport credential; it is validated
// lazily on the next fallback call.
func (x *Client) SetCredential(apiKey string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.apiKey = apiKey
}

// Ping probes backend reachability. Any HTTP response counts as
// reachable; only transport-level failures are reported.
func (x *Client) Ping(ctx context.Context) error {
	x.mu.Lock()
	endpoint := x.endpoint
	hc := x.httpClient
	x.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to build ping request")
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return goerr.Wrap(err, "backend host is unreachable", goerr.V("endpoint", endpoint))
	}
	safe.Close(ctx, resp.Body)
	return nil
}

type transcriptData struct {
	Instruction string
	Turns       []model.Turn
}

func renderSystemPrompt(req *model.ChatRequest) string {
	data := transcriptData{
		Instruction: req.SystemInstruction,
		Turns:       req.PriorTurns(),
	}
	if data.Instruction == "" && len(data.Turns) == 0 {
		return ""
	}

	var buf bytes.Buffer
	if err := transcriptPrompt.Execute(&buf, data); err != nil {
		// The template only ranges over plain strings; fall back to the
		// bare instruction if it somehow fails.
		return req.SystemInstruction
	}
	return strings.TrimSpace(buf.String())
}
