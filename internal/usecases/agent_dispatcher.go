package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

const (
	defaultHistoryLimit = 30

	// SystemPromptKey is the bot_config key that overrides the configured prompt.
	SystemPromptKey = "system_prompt"

	ApologyText = "Lo siento, en este momento no puedo procesar tu mensaje. Por favor intenta de nuevo en unos minutos."
)

var ErrAgentUnavailable = errors.New("agent unavailable")

// BuildHistory orders persisted messages by created_at (stable for equal
// timestamps) and appends the pending, not yet stored, message last.
func BuildHistory(persisted []entities.Message, pending *entities.Message) []entities.Message {
	out := make([]entities.Message, 0, len(persisted)+1)
	out = append(out, persisted...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if pending != nil {
		out = append(out, *pending)
	}
	return out
}

type Dispatcher struct {
	agent         interfaces.Agent
	conversations interfaces.ConversationStore
	messages      interfaces.MessageStore
	settings      interfaces.SettingsStore
	systemPrompt  string
	historyLimit  int
	now           func() time.Time
}

func NewDispatcher(agent interfaces.Agent, conversations interfaces.ConversationStore, messages interfaces.MessageStore, settings interfaces.SettingsStore, systemPrompt string) *Dispatcher {
	return &Dispatcher{
		agent:         agent,
		conversations: conversations,
		messages:      messages,
		settings:      settings,
		systemPrompt:  systemPrompt,
		historyLimit:  defaultHistoryLimit,
		now:           time.Now,
	}
}

type DispatchInput struct {
	Conversation *entities.Conversation
	Customer     *entities.Customer
	Text         string
	// Metadata is merged into the stored user message.
	Metadata   map[string]any
	ExternalID string
}

type DispatchResult struct {
	Text      string
	Model     string
	Tools     []string
	Guardrail bool
	MessageID string
	Elapsed   time.Duration
}

// Dispatch stores the user message, runs one agent turn over the history and
// stores the outcome. It always returns a result with text to show the
// customer; err is ErrAgentUnavailable when that text is the apology.
func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error) {
	conv := in.Conversation
	start := d.now()

	persisted, err := d.messages.ListByConversation(ctx, conv.ID, d.historyLimit)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("failed to load history")
		persisted = nil
	}

	userMeta := map[string]any{"channel": string(conv.Channel)}
	for k, v := range in.Metadata {
		userMeta[k] = v
	}
	pending := &entities.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           entities.RoleUser,
		Content:        in.Text,
		Metadata:       userMeta,
		ExternalID:     in.ExternalID,
		CreatedAt:      start,
	}
	history := BuildHistory(persisted, pending)
	d.append(ctx, pending, "user message saved")
	if err := d.conversations.Touch(ctx, conv.ID); err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("failed to touch conversation")
	}

	req := interfaces.AgentRequest{
		History:      history,
		ThreadID:     conv.ThreadID,
		SystemPrompt: d.prompt(ctx),
		Channel:      conv.Channel,
	}
	if in.Customer != nil {
		req.CustomerEmail = in.Customer.Email
		req.CustomerName = in.Customer.Name
	}

	reply, err := d.agent.Run(ctx, req)
	elapsed := d.now().Sub(start)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("agent run failed")
		d.append(ctx, &entities.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           entities.RoleSystem,
			Content:        err.Error(),
			Metadata: map[string]any{
				"channel":      string(conv.Channel),
				"error":        true,
				"execution_ms": elapsed.Milliseconds(),
			},
			CreatedAt: d.now(),
		}, "agent error recorded")
		return &DispatchResult{Text: ApologyText, Elapsed: elapsed}, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}

	if reply.Guardrail {
		log.Warn().Str("conversation_id", conv.ID).Msg("guardrail tripped")
		msg := &entities.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           entities.RoleSystem,
			Content:        reply.Text,
			Metadata: map[string]any{
				"channel":          string(conv.Channel),
				"guardrail":        true,
				"guardrail_result": reply.GuardrailResult,
				"execution_ms":     elapsed.Milliseconds(),
			},
			CreatedAt: d.now(),
		}
		d.append(ctx, msg, "guardrail message saved")
		return &DispatchResult{Text: reply.Text, Model: reply.Model, Guardrail: true, MessageID: msg.ID, Elapsed: elapsed}, nil
	}

	if reply.ThreadID != "" && reply.ThreadID != conv.ThreadID {
		if err := d.conversations.UpdateThreadID(ctx, conv.ID, reply.ThreadID); err != nil {
			log.Error().Err(err).Str("conversation_id", conv.ID).Msg("failed to save thread id")
		} else {
			conv.ThreadID = reply.ThreadID
			log.Debug().Str("conversation_id", conv.ID).Str("thread_id", reply.ThreadID).Msg("thread updated")
		}
	}

	tools := reply.Tools
	if tools == nil {
		tools = []string{}
	}
	msg := &entities.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           entities.RoleAssistant,
		Content:        reply.Text,
		Metadata: map[string]any{
			"channel":      string(conv.Channel),
			"model":        reply.Model,
			"execution_ms": elapsed.Milliseconds(),
			"sent_by":      "agent",
			"tools":        tools,
		},
		CreatedAt: d.now(),
	}
	d.append(ctx, msg, "assistant message saved")

	return &DispatchResult{
		Text:      reply.Text,
		Model:     reply.Model,
		Tools:     tools,
		MessageID: msg.ID,
		Elapsed:   elapsed,
	}, nil
}

// append stores m and only logs on failure.
func (d *Dispatcher) append(ctx context.Context, m *entities.Message, what string) {
	if err := d.messages.Append(ctx, m); err != nil {
		log.Error().Err(err).Str("conversation_id", m.ConversationID).Str("role", string(m.Role)).Msg("failed to save message")
		return
	}
	log.Debug().Str("conversation_id", m.ConversationID).Str("message_id", m.ID).Msg(what)
}

func (d *Dispatcher) prompt(ctx context.Context) string {
	if d.settings == nil {
		return d.systemPrompt
	}
	v, err := d.settings.GetConfig(ctx, SystemPromptKey)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read system prompt override")
		return d.systemPrompt
	}
	if v != "" {
		return v
	}
	return d.systemPrompt
}
