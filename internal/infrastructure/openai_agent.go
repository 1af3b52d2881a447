package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
	"supportdesk/internal/tools"
)

const guardrailReply = "Por tu seguridad no puedo procesar datos de tarjetas ni contenido de ese tipo. Por favor no compartas esa información por este medio. ¿Te puedo ayudar con algo más?"

// chatClient is the part of *openai.Client the agent uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	Moderations(ctx context.Context, req openai.ModerationRequest) (openai.ModerationResponse, error)
}

// ThreadStore persists agent transcripts by thread handle. LoadThread
// returns nil, nil for an unknown handle.
type ThreadStore interface {
	LoadThread(ctx context.Context, id string) ([]byte, error)
	SaveThread(ctx context.Context, id string, transcript []byte) error
}

// maxThreadMessages bounds a stored transcript.
const maxThreadMessages = 60

// agentThread is what a thread handle points at: every message the model
// has seen on the thread, tool calls and results included, and the
// created_at of the newest history row already folded in.
type agentThread struct {
	Messages []openai.ChatCompletionMessage `json:"messages"`
	Through  time.Time                      `json:"through"`
}

type OpenAIAgentConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Moderation    bool
	MaxToolRounds int
}

// OpenAIAgent runs a support turn on the chat completions API, letting the
// model call the tool registry for up to MaxToolRounds rounds.
type OpenAIAgent struct {
	client     chatClient
	registry   *tools.Registry
	model      string
	moderation bool
	maxRounds  int
	defs       []openai.Tool
	threads    ThreadStore
}

func NewOpenAIAgent(cfg OpenAIAgentConfig, registry *tools.Registry, threads ThreadStore) *OpenAIAgent {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAIAgent(openai.NewClientWithConfig(clientCfg), cfg, registry, threads)
}

func newOpenAIAgent(client chatClient, cfg OpenAIAgentConfig, registry *tools.Registry, threads ThreadStore) *OpenAIAgent {
	rounds := cfg.MaxToolRounds
	if rounds <= 0 {
		rounds = 5
	}
	a := &OpenAIAgent{
		client:     client,
		registry:   registry,
		model:      cfg.Model,
		moderation: cfg.Moderation,
		maxRounds:  rounds,
		threads:    threads,
	}
	for _, t := range registry.Tools() {
		a.defs = append(a.defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return a
}

// Run answers one turn. With a known thread handle the request continues the
// stored transcript and only history rows newer than it are added; otherwise
// the transcript is rebuilt from history and a new handle is issued.
func (a *OpenAIAgent) Run(ctx context.Context, req interfaces.AgentRequest) (*interfaces.AgentReply, error) {
	threadID := req.ThreadID
	var thread *agentThread
	if threadID != "" {
		thread = a.loadThread(ctx, threadID)
	} else {
		threadID = "thread_" + uuid.NewString()
	}
	through := newestAt(req.History)

	if tripped, result := a.guard(ctx, lastUserText(req.History)); tripped {
		if thread != nil {
			// the flagged message must never be folded into the thread
			thread.Through = through
			a.saveThread(ctx, threadID, thread)
		}
		return &interfaces.AgentReply{
			Text:            guardrailReply,
			Model:           a.model,
			ThreadID:        threadID,
			Guardrail:       true,
			GuardrailResult: result,
		}, nil
	}

	var convo []openai.ChatCompletionMessage
	if thread != nil {
		convo = append(convo, thread.Messages...)
		convo = append(convo, historyMessages(req.History, thread.Through)...)
	} else {
		convo = historyMessages(req.History, time.Time{})
	}
	msgs := append([]openai.ChatCompletionMessage{systemMessage(req)}, convo...)
	var used []string
	model := a.model

	for round := 0; ; round++ {
		creq := openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: msgs,
		}
		if round < a.maxRounds && len(a.defs) > 0 {
			creq.Tools = a.defs
		}
		resp, err := a.client.CreateChatCompletion(ctx, creq)
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("chat completion: no choices returned")
		}
		if resp.Model != "" {
			model = resp.Model
		}
		choice := resp.Choices[0].Message
		if len(choice.ToolCalls) == 0 || creq.Tools == nil {
			choice.Role = openai.ChatMessageRoleAssistant
			choice.ToolCalls = nil
			a.saveThread(ctx, threadID, &agentThread{
				Messages: trimTranscript(append(msgs[1:len(msgs):len(msgs)], choice)),
				Through:  through,
			})
			return &interfaces.AgentReply{
				Text:     strings.TrimSpace(choice.Content),
				Model:    model,
				ThreadID: threadID,
				Tools:    used,
			}, nil
		}

		msgs = append(msgs, choice)
		for _, call := range choice.ToolCalls {
			used = append(used, call.Function.Name)
			res := a.registry.Call(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			body, err := json.Marshal(res)
			if err != nil {
				body = []byte(`{"success":false,"error":"resultado ilegible"}`)
			}
			log.Debug().Str("tool", call.Function.Name).Bool("success", res.Success).Str("thread_id", threadID).Msg("agent tool call")
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(body),
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}
}

// loadThread returns nil when the handle is unknown or unreadable; the turn
// then falls back to the stored history.
func (a *OpenAIAgent) loadThread(ctx context.Context, id string) *agentThread {
	if a.threads == nil {
		return nil
	}
	raw, err := a.threads.LoadThread(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", id).Msg("failed to load thread")
		return nil
	}
	if raw == nil {
		return nil
	}
	var t agentThread
	if err := json.Unmarshal(raw, &t); err != nil {
		log.Warn().Err(err).Str("thread_id", id).Msg("corrupt thread transcript, rebuilding from history")
		return nil
	}
	return &t
}

func (a *OpenAIAgent) saveThread(ctx context.Context, id string, t *agentThread) {
	if a.threads == nil {
		return
	}
	raw, err := json.Marshal(t)
	if err == nil {
		err = a.threads.SaveThread(ctx, id, raw)
	}
	if err != nil {
		log.Warn().Err(err).Str("thread_id", id).Msg("failed to save thread")
	}
}

// guard runs the PII detector and, when enabled, the moderation endpoint.
// A moderation outage does not block the turn.
func (a *OpenAIAgent) guard(ctx context.Context, text string) (bool, map[string]any) {
	if text == "" {
		return false, nil
	}
	result := map[string]any{}
	tripped := false
	if pii := DetectPII(text); len(pii) > 0 {
		result["pii"] = pii
		tripped = true
	}
	if a.moderation {
		resp, err := a.client.Moderations(ctx, openai.ModerationRequest{Input: text})
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("moderation check failed, continuing")
		case len(resp.Results) > 0 && resp.Results[0].Flagged:
			result["moderation"] = resp.Results[0]
			tripped = true
		}
	}
	if !tripped {
		return false, nil
	}
	return true, result
}

func lastUserText(history []entities.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == entities.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

func systemMessage(req interfaces.AgentRequest) openai.ChatCompletionMessage {
	var sys strings.Builder
	sys.WriteString(req.SystemPrompt)
	sys.WriteString("\n\nContexto de la conversación:\n")
	fmt.Fprintf(&sys, "- Canal: %s\n", req.Channel)
	if req.CustomerName != "" {
		fmt.Fprintf(&sys, "- Nombre del cliente: %s\n", req.CustomerName)
	}
	if req.CustomerEmail != "" {
		fmt.Fprintf(&sys, "- Correo del cliente: %s\n", req.CustomerEmail)
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: sys.String()}
}

// historyMessages converts history rows created after since. System rows and
// user rows carrying card data are never sent. When continuing a thread the
// agent's own replies are already in the transcript, so only operator
// replies are taken.
func historyMessages(history []entities.Message, since time.Time) []openai.ChatCompletionMessage {
	continuing := !since.IsZero()
	var out []openai.ChatCompletionMessage
	for _, m := range history {
		if continuing && !m.CreatedAt.After(since) {
			continue
		}
		switch m.Role {
		case entities.RoleUser:
			if len(DetectPII(m.Content)) > 0 {
				continue
			}
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case entities.RoleAssistant:
			if continuing && m.Metadata["sent_by"] == "agent" {
				continue
			}
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		}
	}
	return out
}

func newestAt(history []entities.Message) time.Time {
	var t time.Time
	for _, m := range history {
		if m.CreatedAt.After(t) {
			t = m.CreatedAt
		}
	}
	return t
}

// trimTranscript keeps the newest messages, starting at a user turn so no
// tool result is left without its call.
func trimTranscript(msgs []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if len(msgs) <= maxThreadMessages {
		return msgs
	}
	msgs = msgs[len(msgs)-maxThreadMessages:]
	for i, m := range msgs {
		if m.Role == openai.ChatMessageRoleUser {
			return msgs[i:]
		}
	}
	return nil
}
