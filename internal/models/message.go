package models

import (
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system" // only used for prompts sent to the model, never stored
)

// Message represents a single message in a conversation.
// Messages are stored in the JSONB messages column of the 'conversations' table
// and are never modified once appended.
type Message struct {
	Role      Role                   `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Conversation is the chat transcript for one widget session.
type Conversation struct {
	SessionID     string    `json:"session_id"`
	TenantID      string    `json:"tenant_id"`
	LeadID        *string   `json:"lead_id,omitempty"`
	Messages      []Message `json:"messages"`
	Summary       *string   `json:"summary,omitempty"`
	Language      string    `json:"language"`
	UserAgent     string    `json:"user_agent,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// NewConversation starts an empty conversation for a session.
func NewConversation(sessionID, tenantID, language string, now time.Time) *Conversation {
	return &Conversation{
		SessionID:     sessionID,
		TenantID:      tenantID,
		Messages:      []Message{},
		Language:      language,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
}

// Clone returns a copy whose message slice can be appended to without
// affecting the receiver.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages), len(c.Messages)+2)
	copy(cp.Messages, c.Messages)
	return &cp
}

// Append adds a message at the end of the transcript.
func (c *Conversation) Append(role Role, content string, at time.Time) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: at})
	c.UpdatedAt = at
}

// UserTurns counts the messages authored by the user.
func (c *Conversation) UserTurns() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Last returns at most the n most recent messages, oldest first.
func (c *Conversation) Last(n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}
