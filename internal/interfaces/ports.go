package interfaces

import (
	"context"
	"time"

	"supportdesk/internal/entities"
)

// Messenger pushes an outbound text to a channel address and returns the
// provider message id when one is available.
type Messenger interface {
	SendMessage(ctx context.Context, to, content string) (string, error)
}

// CustomerStore lookups return (nil, nil) when nothing matches.
// Create returns entities.ErrDuplicate on a unique-constraint violation.
type CustomerStore interface {
	GetByID(ctx context.Context, id string) (*entities.Customer, error)
	FindByPhone(ctx context.Context, phone string) (*entities.Customer, error)
	FindByEmail(ctx context.Context, email string) (*entities.Customer, error)
	Create(ctx context.Context, c *entities.Customer) error
	UpdateEmail(ctx context.Context, id, email string) error
	UpdateExternalID(ctx context.Context, id string, externalID int64) error
}

type ConversationStore interface {
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)
	FindActive(ctx context.Context, customerID string, channel entities.Channel, updatedSince time.Time) (*entities.Conversation, error)
	Create(ctx context.Context, c *entities.Conversation) error
	UpdateThreadID(ctx context.Context, id, threadID string) error
	UpdateStatus(ctx context.Context, id string, status entities.ConversationStatus) error
	Touch(ctx context.Context, id string) error
	List(ctx context.Context, filter ConversationFilter) ([]entities.Conversation, error)
}

type ConversationFilter struct {
	Status  entities.ConversationStatus
	Channel entities.Channel
	Limit   int
	Offset  int
}

type MessageStore interface {
	Append(ctx context.Context, m *entities.Message) error
	// ListByConversation returns the newest limit messages in created_at ascending order.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]entities.Message, error)
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	// SetExternalID records the provider id of a message sent after it was stored.
	SetExternalID(ctx context.Context, id, externalID string) error
}

type ReturnStore interface {
	Create(ctx context.Context, r *entities.ReturnRequest) error
	GetByID(ctx context.Context, id string) (*entities.ReturnRequest, error)
	List(ctx context.Context, status entities.ReturnStatus, limit int) ([]entities.ReturnRequest, error)
	UpdateStatus(ctx context.Context, id string, status entities.ReturnStatus) error
}

type PromotionStore interface {
	ListActive(ctx context.Context, now time.Time) ([]entities.Promotion, error)
}

type DeadLetterStore interface {
	Store(ctx context.Context, dl *entities.DeadLetter) error
	List(ctx context.Context, limit int) ([]entities.DeadLetter, error)
	GetByID(ctx context.Context, id int) (*entities.DeadLetter, error)
	MarkReplayed(ctx context.Context, id int) error
}

// SettingsStore reads bot_config values; a missing key is "" with a nil error.
type SettingsStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
}

type UsageRecorder interface {
	IncrementUsage(ctx context.Context, channel entities.Channel, received, sent int) error
}

// AgentRequest is one turn for the LLM runtime. History is in created_at
// order and ends with the new user message.
type AgentRequest struct {
	History       []entities.Message
	ThreadID      string
	SystemPrompt  string
	Channel       entities.Channel
	CustomerEmail string
	CustomerName  string
}

type AgentReply struct {
	Text     string
	Model    string
	ThreadID string
	Tools    []string
	// Guardrail is set when a safety check short-circuited the turn.
	Guardrail       bool
	GuardrailResult map[string]any
}

type Agent interface {
	Run(ctx context.Context, req AgentRequest) (*AgentReply, error)
}

// Commerce is the subset of the WooCommerce REST API the tools use.
// Missing resources are reported as entities.ErrNotFound.
type Commerce interface {
	SearchProducts(ctx context.Context, q entities.ProductQuery) ([]entities.Product, error)
	GetProduct(ctx context.Context, id int64) (*entities.Product, error)
	ListVariations(ctx context.Context, productID int64) ([]entities.Variation, error)
	ListReviews(ctx context.Context, productID int64, limit int) ([]entities.Review, error)
	GetOrder(ctx context.Context, id int64) (*entities.Order, error)
	ListOrders(ctx context.Context, q entities.OrderQuery) ([]entities.Order, error)
	UpdateOrder(ctx context.Context, id int64, update entities.OrderUpdate) (*entities.Order, error)
	AddOrderNote(ctx context.Context, id int64, note string, customerVisible bool) error
	ListCoupons(ctx context.Context) ([]entities.Coupon, error)
	FindCustomerByEmail(ctx context.Context, email string) (*entities.CommerceCustomer, error)
}

// Locker serializes work per key (a sender phone, a customer id).
type Locker interface {
	Lock(key string) (unlock func())
}

type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	Create(ctx context.Context, u *entities.User) error
	List(ctx context.Context) ([]entities.User, error)
}

type ConfigAdminStore interface {
	SettingsStore
	SetConfig(ctx context.Context, key, value string) error
	GetAllConfigs(ctx context.Context) ([]entities.BotConfig, error)
}

type PromotionAdminStore interface {
	PromotionStore
	List(ctx context.Context) ([]entities.Promotion, error)
	Create(ctx context.Context, p *entities.Promotion) error
	Update(ctx context.Context, p *entities.Promotion) error
	Delete(ctx context.Context, id int) error
}

type UsageReader interface {
	UsageHistory(ctx context.Context, days int) ([]entities.DailyUsage, error)
}

// Alerter notifies a human operator (Telegram chat) about failures.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}
