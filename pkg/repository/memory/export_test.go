package memory

import (
	"time"

	"github.com/m-mizutani/prompter/pkg/domain/types"
)

// BackdateEvent rewrites an event's timestamp so tests can exercise the
// age-based maintenance windows without sleeping.
func (x *EventLog) BackdateEvent(id types.EventID, ts time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, ev := range x.events {
		if ev.ID == id {
			ev.Timestamp = ts
			return
		}
	}
}
