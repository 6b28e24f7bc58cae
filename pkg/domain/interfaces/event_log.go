package interfaces

import (
	"context"

	"github.com/m-mizutani/prompter/pkg/domain/model"
)

// EventLog is the append-only bounded conversation log. It owns all
// mutation and the maintenance policy; reads hand out copies only.
type EventLog interface {
	// Append stores a new event and evaluates maintenance as a side
	// effect. It does not fail under normal operation.
	Append(ctx context.Context, in model.EventInput) (*model.ConversationEvent, error)

	// Events returns all events in insertion order, as copies
	Events(ctx context.Context) ([]*model.ConversationEvent, error)

	// Maintain forces a full maintenance pass (eviction, consolidation,
	// compression, trim to ceiling)
	Maintain(ctx context.Context) (*model.MaintenanceReport, error)

	// Clear empties the store and re-seeds per-skill initialization markers
	Clear(ctx context.Context) error

	// MemoryUsage reports count, approximate serialized size and percent
	// of the configured ceiling
	MemoryUsage(ctx context.Context) (*model.MemoryUsage, error)
}
