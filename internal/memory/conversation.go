package memory

import (
	"context"
	"time"
)

// Conversation is the memory of one session: a short-term window and an
// optional long-term store shared by all sessions.
type Conversation struct {
	sessionID string
	window    *Window
	store     Store
	lastUsed  time.Time
}

// NewConversation returns a conversation with a window of windowSize. store
// may be nil, in which case nothing is persisted.
func NewConversation(sessionID string, windowSize int, store Store) *Conversation {
	return &Conversation{
		sessionID: sessionID,
		window:    NewWindow(windowSize),
		store:     store,
		lastUsed:  time.Now(),
	}
}

// SessionID returns the session identifier.
func (c *Conversation) SessionID() string { return c.sessionID }

// Record appends a message to the short-term window and returns it.
func (c *Conversation) Record(role Role, content string) Message {
	return c.window.Append(Message{
		SessionID: c.sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

// Persist appends msgs to the long-term store in order.
func (c *Conversation) Persist(ctx context.Context, msgs ...Message) error {
	if c.store == nil || len(msgs) == 0 {
		return nil
	}
	_, err := c.store.Append(ctx, msgs...)
	return err
}

// Window returns the short-term messages, oldest first.
func (c *Conversation) Window() []Message { return c.window.Messages() }
