package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// EventID is a UUIDv7-based identifier for a conversation event.
// UUIDv7 is time-ordered with a random suffix, so IDs created in the
// same instant are still strictly distinguishable.
type EventID string

// NewEventID generates a new UUIDv7 EventID
func NewEventID() EventID {
	return EventID(uuid.Must(uuid.NewV7()).String())
}

// String returns the string representation of EventID
func (x EventID) String() string {
	return string(x)
}

// Role represents who produced a conversation event
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Validate checks if the Role is one of the known values
func (x Role) Validate() error {
	switch x {
	case RoleUser, RoleModel, RoleSystem:
		return nil
	default:
		return goerr.New("invalid role", goerr.V("role", x))
	}
}

// String returns the string representation of Role
func (x Role) String() string {
	return string(x)
}
