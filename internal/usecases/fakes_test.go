package usecases

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

type memCustomers struct {
	mu   sync.Mutex
	rows map[string]*entities.Customer
}

func newMemCustomers() *memCustomers {
	return &memCustomers{rows: map[string]*entities.Customer{}}
}

func (m *memCustomers) GetByID(_ context.Context, id string) (*entities.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memCustomers) find(match func(*entities.Customer) bool) *entities.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if match(c) {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (m *memCustomers) FindByPhone(_ context.Context, phone string) (*entities.Customer, error) {
	return m.find(func(c *entities.Customer) bool { return c.Phone != "" && c.Phone == phone }), nil
}

func (m *memCustomers) FindByEmail(_ context.Context, email string) (*entities.Customer, error) {
	return m.find(func(c *entities.Customer) bool { return c.Email != "" && c.Email == email }), nil
}

func (m *memCustomers) Create(_ context.Context, c *entities.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if (c.Phone != "" && existing.Phone == c.Phone) || (c.Email != "" && existing.Email == c.Email) {
			return entities.ErrDuplicate
		}
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memCustomers) UpdateEmail(_ context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.ID != id && existing.Email == email {
			return entities.ErrDuplicate
		}
	}
	if c, ok := m.rows[id]; ok {
		c.Email = email
		return nil
	}
	return entities.ErrNotFound
}

func (m *memCustomers) UpdateExternalID(_ context.Context, id string, externalID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok {
		c.ExternalID = externalID
		return nil
	}
	return entities.ErrNotFound
}

func (m *memCustomers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memConversations struct {
	mu            sync.Mutex
	rows          map[string]*entities.Conversation
	threadUpdates int
	failThread    bool
	touched       int
}

func newMemConversations() *memConversations {
	return &memConversations{rows: map[string]*entities.Conversation{}}
}

func (m *memConversations) GetByID(_ context.Context, id string) (*entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, entities.ErrNotFound
}

func (m *memConversations) FindActive(_ context.Context, customerID string, channel entities.Channel, since time.Time) (*entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *entities.Conversation
	for _, c := range m.rows {
		if c.CustomerID != customerID || c.Channel != channel || c.Status != entities.StatusActive || c.UpdatedAt.Before(since) {
			continue
		}
		if best == nil || c.UpdatedAt.After(best.UpdatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *memConversations) Create(_ context.Context, c *entities.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Status == entities.StatusActive && existing.CustomerID == c.CustomerID && existing.Channel == c.Channel && existing.WindowKey == c.WindowKey {
			return entities.ErrDuplicate
		}
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memConversations) put(c *entities.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.rows[c.ID] = &cp
}

func (m *memConversations) UpdateThreadID(_ context.Context, id, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failThread {
		return errors.New("db down")
	}
	m.threadUpdates++
	if c, ok := m.rows[id]; ok {
		c.ThreadID = threadID
	}
	return nil
}

func (m *memConversations) UpdateStatus(_ context.Context, id string, status entities.ConversationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok {
		c.Status = status
		return nil
	}
	return entities.ErrNotFound
}

func (m *memConversations) Touch(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched++
	return nil
}

func (m *memConversations) touches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touched
}

func (m *memConversations) List(context.Context, interfaces.ConversationFilter) ([]entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.Conversation{}
	for _, c := range m.rows {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memConversations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memMessages struct {
	mu         sync.Mutex
	rows       []entities.Message
	failAppend bool
	failList   bool
}

func (m *memMessages) Append(_ context.Context, msg *entities.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errors.New("db down")
	}
	m.rows = append(m.rows, *msg)
	return nil
}

func (m *memMessages) ListByConversation(_ context.Context, id string, limit int) ([]entities.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errors.New("db down")
	}
	var out []entities.Message
	for _, msg := range m.rows {
		if msg.ConversationID == id {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memMessages) ExistsByExternalID(_ context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.rows {
		if msg.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memMessages) SetExternalID(_ context.Context, id, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].ExternalID = externalID
			return nil
		}
	}
	return entities.ErrNotFound
}

func (m *memMessages) byRole(role entities.Role) []entities.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Message
	for _, msg := range m.rows {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

type fakeAgent struct {
	mu       sync.Mutex
	reply    interfaces.AgentReply
	err      error
	requests []interfaces.AgentRequest
}

func (a *fakeAgent) Run(_ context.Context, req interfaces.AgentRequest) (*interfaces.AgentReply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.err != nil {
		return nil, a.err
	}
	r := a.reply
	return &r, nil
}

func (a *fakeAgent) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

type sentMessage struct {
	To, Content string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeMessenger) SendMessage(_ context.Context, to, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{To: to, Content: content})
	return "wamid.out", nil
}

type mapSettings map[string]string

func (s mapSettings) GetConfig(_ context.Context, key string) (string, error) {
	return s[key], nil
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}

type countingUsage struct {
	mu             sync.Mutex
	received, sent int
}

func (c *countingUsage) IncrementUsage(_ context.Context, _ entities.Channel, received, sent int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received += received
	c.sent += sent
	return nil
}
