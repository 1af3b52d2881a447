package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
	"supportdesk/internal/usecases"
)

// Evolution API webhook body for messages.upsert, reduced to what we read.
type evolutionPayload struct {
	Event    string        `json:"event"`
	Instance string        `json:"instance"`
	APIKey   string        `json:"apikey"`
	Data     evolutionData `json:"data"`
}

type evolutionData struct {
	Key struct {
		RemoteJid string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	PushName    string `json:"pushName"`
	MessageType string `json:"messageType"`
	Message     *struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage *struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
		ImageMessage *struct {
			Caption string `json:"caption"`
		} `json:"imageMessage"`
	} `json:"message"`
	MessageTimestamp json.RawMessage `json:"messageTimestamp"`
}

func isUpsertEvent(event string) bool {
	return event == "" || strings.EqualFold(strings.ReplaceAll(event, "_", "."), "messages.upsert")
}

// toInbound returns false for anything that is not a direct chat message.
func (d evolutionData) toInbound() (entities.InboundMessage, bool) {
	jid := d.Key.RemoteJid
	if d.Key.ID == "" || jid == "" || strings.HasSuffix(jid, "@g.us") || strings.HasSuffix(jid, "@broadcast") {
		return entities.InboundMessage{}, false
	}
	from, _, _ := strings.Cut(jid, "@")
	from, _, _ = strings.Cut(from, ":")
	in := entities.InboundMessage{
		ID:        d.Key.ID,
		From:      from,
		Name:      d.PushName,
		Type:      "text",
		Channel:   entities.ChannelWhatsApp,
		FromMe:    d.Key.FromMe,
		Timestamp: parseUnix(strings.Trim(string(d.MessageTimestamp), `"`)),
	}
	switch m := d.Message; {
	case m == nil:
		in.Type = d.MessageType
		in.Text = fmt.Sprintf(unsupportedTypeText, d.MessageType)
	case m.Conversation != "":
		in.Text = m.Conversation
	case m.ExtendedTextMessage != nil:
		in.Text = m.ExtendedTextMessage.Text
	case m.ImageMessage != nil:
		in.Type = "image"
		in.Text = m.ImageMessage.Caption
		if strings.TrimSpace(in.Text) == "" {
			in.Text = "[Imagen]"
		}
	default:
		in.Type = d.MessageType
		in.Text = fmt.Sprintf(unsupportedTypeText, d.MessageType)
	}
	return in, true
}

// ReceiveEvolution takes Evolution API deliveries. Like Receive it always
// answers 200 and leaves processing to the work queue.
func (h *WebhookHandler) ReceiveEvolution(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read evolution webhook body")
		c.JSON(http.StatusOK, received)
		return
	}

	var payload evolutionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Err(err).Msg("malformed evolution webhook payload")
		c.JSON(http.StatusOK, received)
		return
	}
	if key := h.cfg.EvolutionAPIKey; key != "" {
		got := c.GetHeader("apikey")
		if got == "" {
			got = payload.APIKey
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			log.Warn().Str("ip", c.ClientIP()).Msg("evolution webhook api key mismatch, payload dropped")
			c.JSON(http.StatusOK, received)
			return
		}
	}
	if !isUpsertEvent(payload.Event) {
		log.Debug().Str("event", payload.Event).Msg("ignoring evolution event")
		c.JSON(http.StatusOK, received)
		return
	}

	in, ok := payload.Data.toInbound()
	if !ok || in.FromMe {
		c.JSON(http.StatusOK, received)
		return
	}
	job := &usecases.InboundJob{Message: in}
	if err := h.jobs.Submit(job); err != nil {
		log.Error().Err(err).Str("message_id", in.ID).Msg("could not queue inbound message")
		h.jobs.Reject(context.WithoutCancel(c.Request.Context()), job, err)
	} else {
		log.Info().Str("message_id", in.ID).Str("from", in.From).Str("instance", payload.Instance).Msg("inbound message queued")
	}
	c.JSON(http.StatusOK, received)
}
