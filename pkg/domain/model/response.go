package model

import "github.com/m-mizutani/prompter/pkg/domain/types"

// Transport identifies which delivery mechanism produced a response
type Transport string

const (
	TransportPrimary  Transport = "primary"
	TransportFallback Transport = "fallback"
	TransportLocal    Transport = "local"
)

// ChatResponse is what the display surface receives for a completed turn
type ChatResponse struct {
	Text             string      `json:"text"`
	Skill            types.Skill `json:"skill"`
	ProcessingTimeMs int64       `json:"processingTimeMs"`
	Attempts         int         `json:"attempts"`
	Transport        Transport   `json:"transport"`

	// UsedFallback marks a locally generated degraded answer returned
	// despite backend failure.
	UsedFallback bool `json:"usedFallback"`
}
