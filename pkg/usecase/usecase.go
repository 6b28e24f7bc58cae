package usecase

import (
	"sync"
	"time"

	"github.com/m-mizutani/prompter/pkg/domain/interfaces"
	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/domain/types"
	"github.com/m-mizutani/prompter/pkg/service/history"
	"github.com/m-mizutani/prompter/pkg/service/skill"
)

// Config holds the request orchestrator knobs
type Config struct {
	// MaxRetries is the number of attempts through the primary transport
	MaxRetries int

	// AttemptTimeout bounds each attempt; the backend call races against
	// it and the loser is abandoned.
	AttemptTimeout time.Duration

	// BackoffBase and NetworkBackoffBase are the per-class backoff bases;
	// network and timeout failures wait longer between attempts.
	BackoffBase        time.Duration
	NetworkBackoffBase time.Duration
	BackoffJitter      time.Duration

	// TransportFallback enables one extra attempt through the raw REST
	// transport after a network-class exhaustion.
	TransportFallback bool

	// LocalFallback turns exhausted failures into a degraded canned
	// answer instead of an error.
	LocalFallback bool

	// HistoryLimit is how many prior conversational entries are projected
	// into each request.
	HistoryLimit int

	Generation model.GenerationConfig
}

// DefaultConfig returns the orchestrator settings used unless overridden
func DefaultConfig() Config {
	return Config{
		MaxRetries:         3,
		AttemptTimeout:     30 * time.Second,
		BackoffBase:        300 * time.Millisecond,
		NetworkBackoffBase: time.Second,
		BackoffJitter:      250 * time.Millisecond,
		TransportFallback:  true,
		LocalFallback:      true,
		HistoryLimit:       20,
		Generation:         model.DefaultGenerationConfig(),
	}
}

// Chat orchestrates a conversation turn: prompt memory decision, request
// assembly, resilient execution and event log bookkeeping.
type Chat struct {
	log       interfaces.EventLog
	projector *history.Projector
	registry  *skill.Registry
	policy    *PromptMemory
	llm       interfaces.LLMClient
	cfg       Config

	// turnMu serializes whole conversation turns so model events land in
	// the log in request order.
	turnMu sync.Mutex

	mu          sync.Mutex
	activeSkill types.Skill
}

// Option configures the Chat use case
type Option func(*Chat)

// WithConfig overrides the orchestrator configuration
func WithConfig(cfg Config) Option {
	return func(x *Chat) {
		x.cfg = cfg
	}
}

// WithActiveSkill sets the skill used when a request does not name one
func WithActiveSkill(name string) Option {
	return func(x *Chat) {
		x.activeSkill = x.registry.Normalize(name)
	}
}

// NewChat creates the Chat use case. Initialization order matters:
// the registry must be loaded and the event log seeded before this point.
func NewChat(log interfaces.EventLog, registry *skill.Registry, llmClient interfaces.LLMClient, opts ...Option) *Chat {
	x := &Chat{
		log:         log,
		projector:   history.New(log),
		registry:    registry,
		policy:      NewPromptMemory(registry),
		llm:         llmClient,
		cfg:         DefaultConfig(),
		activeSkill: registry.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Projector exposes the read-only history views built over the same log
func (x *Chat) Projector() *history.Projector {
	return x.projector
}

// SetActiveSkill updates the skill used for requests that do not name one
func (x *Chat) SetActiveSkill(name string) types.Skill {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.activeSkill = x.registry.Normalize(name)
	return x.activeSkill
}

// ActiveSkill returns the currently selected skill
func (x *Chat) ActiveSkill() types.Skill {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.activeSkill
}

// SetCredential rotates the backend credential without restart
func (x *Chat) SetCredential(apiKey string) {
	x.llm.SetCredential(apiKey)
}
