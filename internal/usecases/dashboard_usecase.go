package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

var (
	ErrEmptyReply      = errors.New("reply text is required")
	ErrNotReplayable   = errors.New("dead letter already replayed")
	ErrNoRecipient     = errors.New("conversation has no reachable recipient")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPromo    = errors.New("promotion title is required")
	ErrSettingRequired = errors.New("config key is required")
)

// JobSubmitter accepts replayed inbound jobs.
type JobSubmitter interface {
	Submit(job *InboundJob) error
}

// DashboardUsecase backs the operator dashboard.
type DashboardUsecase struct {
	Conversations interfaces.ConversationStore
	Messages      interfaces.MessageStore
	Customers     interfaces.CustomerStore
	Returns       interfaces.ReturnStore
	Promotions    interfaces.PromotionAdminStore
	DeadLetters   interfaces.DeadLetterStore
	Config        interfaces.ConfigAdminStore
	Usage         interfaces.UsageReader
	Messenger     interfaces.Messenger
	Jobs          JobSubmitter
	now           func() time.Time
}

func NewDashboardUsecase(d DashboardUsecase) *DashboardUsecase {
	d.now = time.Now
	return &d
}

func (u *DashboardUsecase) ListConversations(ctx context.Context, f interfaces.ConversationFilter) ([]entities.Conversation, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return u.Conversations.List(ctx, f)
}

func (u *DashboardUsecase) ConversationMessages(ctx context.Context, id string, limit int) ([]entities.Message, error) {
	if _, err := u.conversation(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return u.Messages.ListByConversation(ctx, id, limit)
}

func (u *DashboardUsecase) UpdateConversationStatus(ctx context.Context, id string, status entities.ConversationStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if _, err := u.conversation(ctx, id); err != nil {
		return err
	}
	return u.Conversations.UpdateStatus(ctx, id, status)
}

// HumanReply sends an operator message to the customer and records it with
// sent_by "admin". Widget conversations are recorded only; the widget
// picks them up from history.
func (u *DashboardUsecase) HumanReply(ctx context.Context, conversationID, text, operator string) (*entities.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyReply
	}
	conv, err := u.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	externalID := ""
	if conv.Channel == entities.ChannelWhatsApp {
		customer, err := u.Customers.GetByID(ctx, conv.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("load customer: %w", err)
		}
		if customer == nil || customer.Phone == "" || u.Messenger == nil {
			return nil, ErrNoRecipient
		}
		if externalID, err = u.Messenger.SendMessage(ctx, customer.Phone, text); err != nil {
			return nil, fmt.Errorf("send reply: %w", err)
		}
	}

	msg := &entities.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           entities.RoleAssistant,
		Content:        text,
		Metadata: map[string]any{
			"channel":  string(conv.Channel),
			"sent_by":  "admin",
			"operator": operator,
		},
		ExternalID: externalID,
		CreatedAt:  u.now(),
	}
	if err := u.Messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("save reply: %w", err)
	}
	if err := u.Conversations.Touch(ctx, conv.ID); err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("failed to touch conversation")
	}
	return msg, nil
}

func (u *DashboardUsecase) conversation(ctx context.Context, id string) (*entities.Conversation, error) {
	conv, err := u.Conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, entities.ErrNotFound
	}
	return conv, nil
}

func (u *DashboardUsecase) ListReturns(ctx context.Context, status entities.ReturnStatus, limit int) ([]entities.ReturnRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return u.Returns.List(ctx, status, limit)
}

// TransitionReturn moves a return request along its state machine.
func (u *DashboardUsecase) TransitionReturn(ctx context.Context, id string, next entities.ReturnStatus) (*entities.ReturnRequest, error) {
	rma, err := u.Returns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rma == nil {
		return nil, entities.ErrNotFound
	}
	if !rma.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", entities.ErrInvalidTransition, rma.Status, next)
	}
	if err := u.Returns.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	rma.Status = next
	rma.UpdatedAt = u.now()
	log.Info().Str("return_id", id).Str("status", string(next)).Msg("return request updated")
	return rma, nil
}

func (u *DashboardUsecase) ListPromotions(ctx context.Context) ([]entities.Promotion, error) {
	return u.Promotions.List(ctx)
}

func (u *DashboardUsecase) SavePromotion(ctx context.Context, p *entities.Promotion) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	if p.Title == "" {
		return ErrInvalidPromo
	}
	if p.ID == 0 {
		p.CreatedAt = u.now()
		return u.Promotions.Create(ctx, p)
	}
	return u.Promotions.Update(ctx, p)
}

func (u *DashboardUsecase) DeletePromotion(ctx context.Context, id int) error {
	return u.Promotions.Delete(ctx, id)
}

func (u *DashboardUsecase) ListDeadLetters(ctx context.Context, limit int) ([]entities.DeadLetter, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return u.DeadLetters.List(ctx, limit)
}

// ReplayDeadLetter puts a dead-lettered inbound job back on the queue.
func (u *DashboardUsecase) ReplayDeadLetter(ctx context.Context, id int) error {
	dl, err := u.DeadLetters.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if dl == nil {
		return entities.ErrNotFound
	}
	if dl.ReplayedAt != nil {
		return ErrNotReplayable
	}
	var job InboundJob
	if err := json.Unmarshal(dl.Payload, &job); err != nil {
		return fmt.Errorf("decode dead letter %d: %w", id, err)
	}
	if err := u.Jobs.Submit(&job); err != nil {
		return fmt.Errorf("requeue dead letter %d: %w", id, err)
	}
	if err := u.DeadLetters.MarkReplayed(ctx, id); err != nil {
		log.Warn().Err(err).Int("dead_letter_id", id).Msg("failed to mark dead letter replayed")
	}
	return nil
}

func (u *DashboardUsecase) Configs(ctx context.Context) ([]entities.BotConfig, error) {
	return u.Config.GetAllConfigs(ctx)
}

func (u *DashboardUsecase) SetConfig(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrSettingRequired
	}
	return u.Config.SetConfig(ctx, key, value)
}

func (u *DashboardUsecase) UsageHistory(ctx context.Context, days int) ([]entities.DailyUsage, error) {
	if days <= 0 || days > 90 {
		days = 30
	}
	return u.Usage.UsageHistory(ctx, days)
}
