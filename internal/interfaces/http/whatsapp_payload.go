package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"supportdesk/internal/entities"
)

// WhatsApp Cloud API webhook envelope, reduced to the fields we read.
type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []webhookContact  `json:"contacts"`
	Messages         []webhookMessage  `json:"messages"`
	Statuses         []webhookStatus   `json:"statuses"`
	Metadata         map[string]string `json:"metadata"`
}

type webhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type webhookMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image *struct {
		ID      string `json:"id"`
		Caption string `json:"caption"`
	} `json:"image"`
	Button *struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

type webhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
	Timestamp   string `json:"timestamp"`
}

const unsupportedTypeText = "[Mensaje de tipo %s no soportado]"

// inboundMessages flattens the payload into channel-neutral messages in
// document order, attaching contact names. Messages sent from the business
// number itself are marked FromMe.
func (p webhookPayload) inboundMessages() []entities.InboundMessage {
	var out []entities.InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			own := digitsOf(change.Value.Metadata["display_phone_number"])
			for _, m := range change.Value.Messages {
				in := m.toInbound(names[m.From])
				in.FromMe = own != "" && digitsOf(m.From) == own
				out = append(out, in)
			}
		}
	}
	return out
}

func (p webhookPayload) statuses() []webhookStatus {
	var out []webhookStatus
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			out = append(out, change.Value.Statuses...)
		}
	}
	return out
}

func (m webhookMessage) toInbound(name string) entities.InboundMessage {
	in := entities.InboundMessage{
		ID:        m.ID,
		From:      m.From,
		Name:      name,
		Type:      m.Type,
		Channel:   entities.ChannelWhatsApp,
		Timestamp: parseUnix(m.Timestamp),
	}
	switch m.Type {
	case "text":
		if m.Text != nil {
			in.Text = m.Text.Body
		}
	case "image":
		if m.Image != nil {
			in.Text = m.Image.Caption
			in.ImageID = m.Image.ID
		}
		if strings.TrimSpace(in.Text) == "" {
			in.Text = "[Imagen]"
		}
	case "button":
		if m.Button != nil {
			in.Text = m.Button.Text
		}
	case "interactive":
		if m.Interactive != nil {
			switch {
			case m.Interactive.ButtonReply != nil:
				in.Text = m.Interactive.ButtonReply.Title
			case m.Interactive.ListReply != nil:
				in.Text = m.Interactive.ListReply.Title
			}
		}
	default:
		in.Text = fmt.Sprintf(unsupportedTypeText, m.Type)
	}
	return in
}

func digitsOf(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
