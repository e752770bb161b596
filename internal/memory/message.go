package memory

import (
	"errors"
	"time"
)

// ErrNotFound is returned for an unknown message id.
var ErrNotFound = errors.New("message not found")

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one conversation turn. Messages are not modified once written.
type Message struct {
	// ID is a per-window ordinal in short-term memory and the store-assigned
	// identifier in long-term memory.
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
