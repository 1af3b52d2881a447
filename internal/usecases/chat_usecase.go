package usecases

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

var (
	ErrMissingText  = errors.New("message text is required")
	ErrMissingEmail = errors.New("customer email is required")

	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// ExtractEmail returns the first email address found in text, lowercased.
func ExtractEmail(text string) string {
	return NormalizeEmail(emailPattern.FindString(text))
}

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages       []ChatTurn `json:"messages"`
	Message        string     `json:"message"`
	CustomerEmail  string     `json:"customerEmail"`
	ConversationID string     `json:"conversationId"`
}

// Text is the message to answer: Message, or else the last user turn.
func (r ChatRequest) Text() string {
	if t := strings.TrimSpace(r.Message); t != "" {
		return t
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == string(entities.RoleUser) {
			return strings.TrimSpace(r.Messages[i].Content)
		}
	}
	return ""
}

type ChatResponse struct {
	Message        string `json:"message"`
	Model          string `json:"model"`
	ConversationID string `json:"conversationId"`
	EmailUpdated   bool   `json:"emailUpdated,omitempty"`
	NewEmail       string `json:"newEmail,omitempty"`
}

// ChatUsecase serves the web widget, where the customer is identified by email.
type ChatUsecase struct {
	resolver   *Resolver
	dispatcher *Dispatcher
	locks      interfaces.Locker
	usage      interfaces.UsageRecorder
}

func NewChatUsecase(resolver *Resolver, dispatcher *Dispatcher, locks interfaces.Locker, usage interfaces.UsageRecorder) *ChatUsecase {
	return &ChatUsecase{resolver: resolver, dispatcher: dispatcher, locks: locks, usage: usage}
}

// Chat answers one widget turn. On agent failure the response still
// carries the apology and err wraps ErrAgentUnavailable.
func (u *ChatUsecase) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	text := req.Text()
	if text == "" {
		return nil, ErrMissingText
	}
	email := NormalizeEmail(req.CustomerEmail)
	resp := &ChatResponse{}
	if inline := ExtractEmail(text); inline != "" && inline != email {
		email = inline
		resp.EmailUpdated = true
		resp.NewEmail = inline
	}
	if email == "" {
		return nil, ErrMissingEmail
	}

	unlock := u.locks.Lock("email:" + email)
	defer unlock()

	customer, err := u.resolver.ResolveCustomerByEmail(ctx, email, "")
	if err != nil {
		return nil, err
	}
	u.resolver.LinkCommerceCustomer(ctx, customer)

	conv, err := u.resolver.ConversationFor(ctx, req.ConversationID, customer.ID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", req.ConversationID).Msg("conversation lookup failed")
	}
	if conv == nil {
		if conv, err = u.resolver.ResolveConversation(ctx, customer.ID, entities.ChannelWidget); err != nil {
			return nil, err
		}
	}
	resp.ConversationID = conv.ID

	result, err := u.dispatcher.Dispatch(ctx, DispatchInput{
		Conversation: conv,
		Customer:     customer,
		Text:         text,
	})
	resp.Message = result.Text
	resp.Model = result.Model
	if u.usage != nil {
		if uerr := u.usage.IncrementUsage(ctx, entities.ChannelWidget, 1, 1); uerr != nil {
			log.Warn().Err(uerr).Msg("failed to record usage")
		}
	}
	return resp, err
}
