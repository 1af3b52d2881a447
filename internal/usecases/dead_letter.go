package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

const SourceWhatsApp = "whatsapp"

// DeadLetterRecorder persists inbound jobs that could not be processed and
// optionally alerts an operator. It is used as a queue sink.
type DeadLetterRecorder struct {
	store   interfaces.DeadLetterStore
	alerter interfaces.Alerter
	source  string
}

func NewDeadLetterRecorder(store interfaces.DeadLetterStore, alerter interfaces.Alerter) *DeadLetterRecorder {
	return &DeadLetterRecorder{store: store, alerter: alerter, source: SourceWhatsApp}
}

func (r *DeadLetterRecorder) DeadLetter(ctx context.Context, job *InboundJob, attempts int, cause error) {
	payload, err := json.Marshal(job)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode dead letter payload")
		return
	}
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	dl := &entities.DeadLetter{
		Source:   r.source,
		Payload:  payload,
		Error:    reason,
		Attempts: attempts,
	}
	if r.store != nil {
		if err := r.store.Store(ctx, dl); err != nil {
			log.Error().Err(err).Str("message_id", job.Message.ID).Msg("failed to store dead letter")
		}
	}
	if r.alerter != nil {
		text := fmt.Sprintf("⚠️ Mensaje sin procesar de %s (%s) tras %d intentos: %s\nDead letter #%d",
			job.Message.From, job.Message.ID, attempts, reason, dl.ID)
		if err := r.alerter.Alert(ctx, text); err != nil {
			log.Warn().Err(err).Msg("failed to send dead letter alert")
		}
	}
}
