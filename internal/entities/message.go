package entities

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is an append-only entry in a conversation log.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ExternalID     string         `json:"external_id,omitempty"` // provider message id for delivery correlation
	CreatedAt      time.Time      `json:"created_at"`
}

// InboundMessage is a channel-neutral message received from a provider
// (WhatsApp Cloud webhook or whatsmeow device events).
type InboundMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Name      string    `json:"name,omitempty"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	ImageID   string    `json:"image_id,omitempty"`
	FromMe    bool      `json:"from_me,omitempty"`
	Channel   Channel   `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}
