package entities

import (
	"fmt"
	"time"
)

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWidget   Channel = "widget"
	ChannelOther    Channel = "other"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelWidget, ChannelOther:
		return true
	}
	return false
}

type ConversationStatus string

const (
	StatusActive   ConversationStatus = "active"
	StatusResolved ConversationStatus = "resolved"
	StatusClosed   ConversationStatus = "closed"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusActive, StatusResolved, StatusClosed:
		return true
	}
	return false
}

type Conversation struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customer_id"`
	Channel    Channel            `json:"channel"`
	Status     ConversationStatus `json:"status"`
	ThreadID   string             `json:"thread_id,omitempty"`
	WindowKey  string             `json:"-"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// WindowKey buckets creation time so that a unique index over
// (customer_id, channel, window_key) rejects a second conversation
// created for the same pair inside one window.
func WindowKey(channel Channel, now time.Time, window time.Duration) string {
	if window <= 0 {
		return fmt.Sprintf("%s:%d", channel, now.UnixNano())
	}
	return fmt.Sprintf("%s:%d", channel, now.UnixNano()/int64(window))
}
