package entities

import "time"

// BotConfig is one runtime setting editable from the dashboard.
type BotConfig struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DailyUsage struct {
	Date             time.Time `json:"date"`
	Channel          Channel   `json:"channel"`
	MessagesReceived int       `json:"messages_received"`
	MessagesSent     int       `json:"messages_sent"`
}
