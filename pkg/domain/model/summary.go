package model

import (
	"time"

	"github.com/m-mizutani/prompter/pkg/domain/types"
)

// MemoryUsage reports how full the event store is
type MemoryUsage struct {
	EventCount  int     `json:"eventCount"`
	ApproxBytes int     `json:"approxBytes"`
	PercentUsed float64 `json:"percentUsed"`
}

// SkillCount pairs a skill with its event count
type SkillCount struct {
	Skill types.Skill `json:"skill"`
	Count int         `json:"count"`
}

// SessionSummary is the aggregate view of the current session
type SessionSummary struct {
	EventCount     int                    `json:"eventCount"`
	CategoryCounts map[types.Category]int `json:"categoryCounts"`
	StartedAt      time.Time              `json:"startedAt"`
	EndedAt        time.Time              `json:"endedAt"`
	TopSkills      []SkillCount           `json:"topSkills"`
}

// MaintenanceReport describes what a maintenance pass did
type MaintenanceReport struct {
	Evicted      int `json:"evicted"`
	Consolidated int `json:"consolidated"`
	Compressed   int `json:"compressed"`
	Trimmed      int `json:"trimmed"`
}

// Total returns the number of events affected by the pass
func (x *MaintenanceReport) Total() int {
	return x.Evicted + x.Consolidated + x.Compressed + x.Trimmed
}
