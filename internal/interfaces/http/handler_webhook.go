package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/usecases"
)

// JobQueue is the inbound work queue as seen by the webhook.
type JobQueue interface {
	Submit(job *usecases.InboundJob) error
	Reject(ctx context.Context, job *usecases.InboundJob, cause error)
}

type WebhookConfig struct {
	VerifyToken      string
	AppSecret        string
	EnforceSignature bool
	// EvolutionAPIKey, when set, must match the apikey sent with
	// Evolution API deliveries.
	EvolutionAPIKey string
}

type WebhookHandler struct {
	cfg  WebhookConfig
	jobs JobQueue
}

func NewWebhookHandler(cfg WebhookConfig, jobs JobQueue) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, jobs: jobs}
}

var received = gin.H{"received": true}

// Verify answers the Meta subscription handshake.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")
	if mode == "subscribe" && h.cfg.VerifyToken != "" && token == h.cfg.VerifyToken {
		log.Info().Msg("whatsapp webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	log.Warn().Str("mode", mode).Msg("whatsapp webhook verification failed")
	c.Status(http.StatusForbidden)
}

// Receive acknowledges every delivery with 200 so Meta does not retry;
// processing happens on the work queue.
func (h *WebhookHandler) Receive(c *gin.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("webhook handler panicked")
			c.JSON(http.StatusOK, received)
		}
	}()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read webhook body")
		c.JSON(http.StatusOK, received)
		return
	}

	if !usecases.VerifySignature(body, c.GetHeader("X-Hub-Signature-256"), h.cfg.AppSecret) {
		if h.cfg.EnforceSignature {
			log.Warn().Str("ip", c.ClientIP()).Msg("invalid webhook signature, payload dropped")
			c.JSON(http.StatusOK, received)
			return
		}
		log.Warn().Str("ip", c.ClientIP()).Msg("invalid webhook signature, processing anyway")
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Err(err).Msg("malformed webhook payload")
		c.JSON(http.StatusOK, received)
		return
	}
	if payload.Object != "whatsapp_business_account" {
		log.Debug().Str("object", payload.Object).Msg("ignoring webhook object")
		c.JSON(http.StatusOK, received)
		return
	}

	for _, st := range payload.statuses() {
		log.Debug().Str("message_id", st.ID).Str("status", st.Status).Str("recipient", st.RecipientID).Msg("delivery status")
	}

	for _, in := range payload.inboundMessages() {
		if in.FromMe {
			continue
		}
		job := &usecases.InboundJob{Message: in}
		if err := h.jobs.Submit(job); err != nil {
			log.Error().Err(err).Str("message_id", in.ID).Msg("could not queue inbound message")
			h.jobs.Reject(context.WithoutCancel(c.Request.Context()), job, err)
			continue
		}
		log.Info().Str("message_id", in.ID).Str("from", in.From).Str("type", in.Type).Msg("inbound message queued")
	}

	c.JSON(http.StatusOK, received)
}
