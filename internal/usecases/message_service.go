package usecases

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

// InboundJob is the unit of work on the inbound queue. Reply is filled once
// the agent has answered so a retry only re-attempts delivery.
type InboundJob struct {
	Message        entities.InboundMessage `json:"message"`
	ConversationID string                  `json:"conversation_id,omitempty"`
	Reply          string                  `json:"reply,omitempty"`
	// ReplyMessageID is the stored row the reply was saved as, if any.
	ReplyMessageID string `json:"reply_message_id,omitempty"`
}

// MessageService runs the inbound pipeline for WhatsApp: resolve the
// customer and conversation, run the agent, push the reply back.
type MessageService struct {
	resolver   *Resolver
	dispatcher *Dispatcher
	messages   interfaces.MessageStore
	messenger  interfaces.Messenger
	locks      interfaces.Locker
	usage      interfaces.UsageRecorder
}

func NewMessageService(resolver *Resolver, dispatcher *Dispatcher, messages interfaces.MessageStore, messenger interfaces.Messenger, locks interfaces.Locker, usage interfaces.UsageRecorder) *MessageService {
	return &MessageService{
		resolver:   resolver,
		dispatcher: dispatcher,
		messages:   messages,
		messenger:  messenger,
		locks:      locks,
		usage:      usage,
	}
}

// Process handles one job. Returned errors are retryable: either nothing was
// stored yet, or the reply is stored on the job and only delivery failed.
func (s *MessageService) Process(ctx context.Context, job *InboundJob) error {
	in := job.Message
	if in.FromMe || in.From == "" {
		return nil
	}
	channel := in.Channel
	if channel == "" {
		channel = entities.ChannelWhatsApp
	}
	logger := log.With().Str("from", in.From).Str("message_id", in.ID).Logger()

	unlock := s.locks.Lock(NormalizePhone(in.From))
	defer unlock()

	if job.Reply == "" {
		if in.ID != "" {
			seen, err := s.messages.ExistsByExternalID(ctx, in.ID)
			if err != nil {
				logger.Warn().Err(err).Msg("duplicate check failed")
			} else if seen {
				logger.Info().Msg("message already processed, skipping")
				return nil
			}
		}

		customer, err := s.resolver.ResolveCustomerByPhone(ctx, in.From, in.Name)
		if err != nil {
			return fmt.Errorf("resolve customer: %w", err)
		}
		if email := ExtractEmail(in.Text); email != "" {
			if err := s.resolver.AttachEmail(ctx, customer, email); err != nil {
				logger.Warn().Err(err).Msg("failed to attach email")
			}
		}
		s.resolver.LinkCommerceCustomer(ctx, customer)
		conv, err := s.resolver.ResolveConversation(ctx, customer.ID, channel)
		if err != nil {
			return fmt.Errorf("resolve conversation: %w", err)
		}

		meta := map[string]any{}
		if in.Type != "" && in.Type != "text" {
			meta["type"] = in.Type
		}
		if in.ImageID != "" {
			meta["image_id"] = in.ImageID
		}
		result, err := s.dispatcher.Dispatch(ctx, DispatchInput{
			Conversation: conv,
			Customer:     customer,
			Text:         in.Text,
			Metadata:     meta,
			ExternalID:   in.ID,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("sending apology")
		}
		job.ConversationID = conv.ID
		job.Reply = result.Text
		job.ReplyMessageID = result.MessageID
		s.recordUsage(ctx, channel, 1, 0)
		logger.Info().Str("conversation_id", conv.ID).Strs("tools", result.Tools).Dur("took", result.Elapsed).Msg("reply ready")
	}

	externalID, err := s.messenger.SendMessage(ctx, in.From, job.Reply)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	s.recordUsage(ctx, channel, 0, 1)
	if job.ReplyMessageID != "" && externalID != "" {
		if err := s.messages.SetExternalID(ctx, job.ReplyMessageID, externalID); err != nil {
			logger.Warn().Err(err).Str("external_id", externalID).Msg("failed to store reply external id")
		}
	}
	logger.Info().Str("conversation_id", job.ConversationID).Str("external_id", externalID).Msg("reply sent")
	return nil
}

func (s *MessageService) recordUsage(ctx context.Context, channel entities.Channel, received, sent int) {
	if s.usage == nil {
		return
	}
	if err := s.usage.IncrementUsage(ctx, channel, received, sent); err != nil {
		log.Warn().Err(err).Msg("failed to record usage")
	}
}
