package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

type pipelineFixture struct {
	customers     *memCustomers
	conversations *memConversations
	messages      *memMessages
	agent         *fakeAgent
	messenger     *fakeMessenger
	usage         *countingUsage
	service       *MessageService
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		customers:     newMemCustomers(),
		conversations: newMemConversations(),
		messages:      &memMessages{},
		agent:         &fakeAgent{reply: interfaces.AgentReply{Text: "Tu pedido está en camino.", Model: "gpt-4o-mini"}},
		messenger:     &fakeMessenger{},
		usage:         &countingUsage{},
	}
	resolver := newTestResolver(f.customers, f.conversations)
	dispatcher := NewDispatcher(f.agent, f.conversations, f.messages, nil, "prompt")
	dispatcher.now = func() time.Time { return testNow }
	f.service = NewMessageService(resolver, dispatcher, f.messages, f.messenger, &keyedMutex{}, f.usage)
	return f
}

func inboundJob(id, text string) *InboundJob {
	return &InboundJob{Message: entities.InboundMessage{
		ID:      id,
		From:    "5491155551234",
		Name:    "Ana",
		Type:    "text",
		Text:    text,
		Channel: entities.ChannelWhatsApp,
	}}
}

func TestProcessRepliesAndRecords(t *testing.T) {
	f := newPipelineFixture()
	job := inboundJob("wamid.1", "¿Dónde está mi pedido 1234? mi correo es Ana@Example.com")

	require.NoError(t, f.service.Process(context.Background(), job))

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, "5491155551234", f.messenger.sent[0].To)
	assert.Equal(t, "Tu pedido está en camino.", f.messenger.sent[0].Content)
	assert.NotEmpty(t, job.ConversationID)

	customer, _ := f.customers.FindByPhone(context.Background(), "5491155551234")
	require.NotNil(t, customer)
	assert.Equal(t, "ana@example.com", customer.Email)
	assert.Equal(t, "Ana", customer.Name)

	assert.Equal(t, 1, f.usage.received)
	assert.Equal(t, 1, f.usage.sent)
}

func TestProcessSkipsRedeliveredMessage(t *testing.T) {
	f := newPipelineFixture()
	require.NoError(t, f.service.Process(context.Background(), inboundJob("wamid.1", "hola")))
	require.NoError(t, f.service.Process(context.Background(), inboundJob("wamid.1", "hola")))

	assert.Equal(t, 1, f.agent.calls())
	assert.Len(t, f.messenger.sent, 1)
}

func TestProcessRetryOnlyResends(t *testing.T) {
	f := newPipelineFixture()
	f.messenger.err = errors.New("graph api 500")
	job := inboundJob("wamid.2", "hola")

	err := f.service.Process(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, "Tu pedido está en camino.", job.Reply)

	f.messenger.err = nil
	require.NoError(t, f.service.Process(context.Background(), job))
	assert.Equal(t, 1, f.agent.calls())
	assert.Len(t, f.messenger.sent, 1)
}

func TestProcessIgnoresOwnMessages(t *testing.T) {
	f := newPipelineFixture()
	job := inboundJob("wamid.3", "eco")
	job.Message.FromMe = true

	require.NoError(t, f.service.Process(context.Background(), job))
	assert.Zero(t, f.agent.calls())
	assert.Zero(t, f.customers.count())
}

func TestProcessSendsApologyOnAgentFailure(t *testing.T) {
	f := newPipelineFixture()
	f.agent.err = errors.New("timeout")

	require.NoError(t, f.service.Process(context.Background(), inboundJob("wamid.4", "hola")))
	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, ApologyText, f.messenger.sent[0].Content)
}

func TestProcessKeepsConversationAcrossMessages(t *testing.T) {
	f := newPipelineFixture()
	first := inboundJob("wamid.5", "hola")
	second := inboundJob("wamid.6", "sigo acá")
	require.NoError(t, f.service.Process(context.Background(), first))
	require.NoError(t, f.service.Process(context.Background(), second))

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Len(t, f.agent.requests[1].History, 3)
}

func TestProcessStoresEveryDeliveryFromSameNumber(t *testing.T) {
	f := newPipelineFixture()
	require.NoError(t, f.service.Process(context.Background(), inboundJob("wamid.7", "hola")))
	require.NoError(t, f.service.Process(context.Background(), inboundJob("wamid.8", "¿tienen envío a Rosario?")))

	users := f.messages.byRole(entities.RoleUser)
	require.Len(t, users, 2)
	assert.Equal(t, "wamid.7", users[0].ExternalID)
	assert.Equal(t, "hola", users[0].Content)
	assert.Equal(t, "wamid.8", users[1].ExternalID)
	assert.Equal(t, "¿tienen envío a Rosario?", users[1].Content)
	assert.Equal(t, users[0].ConversationID, users[1].ConversationID)
	assert.Equal(t, 1, f.customers.count())
}

func TestProcessStoresReplyExternalID(t *testing.T) {
	f := newPipelineFixture()
	job := inboundJob("wamid.9", "hola")

	require.NoError(t, f.service.Process(context.Background(), job))

	assistant := f.messages.byRole(entities.RoleAssistant)
	require.Len(t, assistant, 1)
	assert.Equal(t, job.ReplyMessageID, assistant[0].ID)
	assert.Equal(t, "wamid.out", assistant[0].ExternalID)
}

func TestProcessRetryStoresReplyExternalID(t *testing.T) {
	f := newPipelineFixture()
	f.messenger.err = errors.New("graph api 500")
	job := inboundJob("wamid.10", "hola")
	require.Error(t, f.service.Process(context.Background(), job))

	assistant := f.messages.byRole(entities.RoleAssistant)
	require.Len(t, assistant, 1)
	assert.Empty(t, assistant[0].ExternalID)

	f.messenger.err = nil
	require.NoError(t, f.service.Process(context.Background(), job))
	assert.Equal(t, "wamid.out", f.messages.byRole(entities.RoleAssistant)[0].ExternalID)
}
