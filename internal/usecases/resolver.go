package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

const defaultConversationWindow = 24 * time.Hour

// Resolver maps an inbound identity to a customer row and the customer's
// current conversation. Creation races are settled by unique indexes: the
// loser of an insert re-reads the winner's row.
type Resolver struct {
	customers     interfaces.CustomerStore
	conversations interfaces.ConversationStore
	windows       map[entities.Channel]time.Duration
	commerce      interfaces.Commerce
	now           func() time.Time
}

func NewResolver(customers interfaces.CustomerStore, conversations interfaces.ConversationStore, windows map[entities.Channel]time.Duration) *Resolver {
	w := make(map[entities.Channel]time.Duration, len(windows))
	for ch, d := range windows {
		w[ch] = d
	}
	return &Resolver{
		customers:     customers,
		conversations: conversations,
		windows:       w,
		now:           time.Now,
	}
}

// WithCommerce enables linking customers to their WooCommerce account.
func (r *Resolver) WithCommerce(c interfaces.Commerce) *Resolver {
	r.commerce = c
	return r
}

// Window is the freshness window for channel; 24h unless configured.
func (r *Resolver) Window(channel entities.Channel) time.Duration {
	if d, ok := r.windows[channel]; ok && d > 0 {
		return d
	}
	return defaultConversationWindow
}

// NormalizePhone keeps digits only; WhatsApp ids arrive without "+".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Resolver) ResolveCustomerByPhone(ctx context.Context, phone, name string) (*entities.Customer, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, errors.New("empty phone")
	}
	return r.resolveCustomer(ctx, func(ctx context.Context) (*entities.Customer, error) {
		return r.customers.FindByPhone(ctx, phone)
	}, &entities.Customer{Phone: phone, Name: strings.TrimSpace(name)})
}

func (r *Resolver) ResolveCustomerByEmail(ctx context.Context, email, name string) (*entities.Customer, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("empty email")
	}
	return r.resolveCustomer(ctx, func(ctx context.Context) (*entities.Customer, error) {
		return r.customers.FindByEmail(ctx, email)
	}, &entities.Customer{Email: email, Name: strings.TrimSpace(name)})
}

func (r *Resolver) resolveCustomer(ctx context.Context, find func(context.Context) (*entities.Customer, error), fresh *entities.Customer) (*entities.Customer, error) {
	existing, err := find(ctx)
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := r.now()
	fresh.ID = uuid.NewString()
	fresh.CreatedAt = now
	fresh.UpdatedAt = now
	err = r.customers.Create(ctx, fresh)
	if errors.Is(err, entities.ErrDuplicate) {
		// lost the insert race
		existing, err = find(ctx)
		if err != nil {
			return nil, fmt.Errorf("refetch customer: %w", err)
		}
		if existing == nil {
			return nil, errors.New("customer vanished after duplicate insert")
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	log.Info().Str("customer_id", fresh.ID).Msg("customer created")
	return fresh, nil
}

// ResolveConversation returns the freshest active conversation for the pair
// within the channel window, or starts a new one.
func (r *Resolver) ResolveConversation(ctx context.Context, customerID string, channel entities.Channel) (*entities.Conversation, error) {
	now := r.now()
	window := r.Window(channel)
	since := now.Add(-window)

	existing, err := r.conversations.FindActive(ctx, customerID, channel, since)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	conv := &entities.Conversation{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Channel:    channel,
		Status:     entities.StatusActive,
		WindowKey:  entities.WindowKey(channel, now, window),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = r.conversations.Create(ctx, conv)
	if errors.Is(err, entities.ErrDuplicate) {
		existing, err = r.conversations.FindActive(ctx, customerID, channel, since)
		if err != nil {
			return nil, fmt.Errorf("refetch conversation: %w", err)
		}
		if existing == nil {
			return nil, errors.New("conversation vanished after duplicate insert")
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	log.Info().Str("conversation_id", conv.ID).Str("channel", string(channel)).Msg("conversation started")
	return conv, nil
}

// ConversationFor returns the conversation with id if it belongs to
// customerID, or nil.
func (r *Resolver) ConversationFor(ctx context.Context, id, customerID string) (*entities.Conversation, error) {
	if id == "" {
		return nil, nil
	}
	conv, err := r.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if conv == nil || conv.CustomerID != customerID {
		return nil, nil
	}
	return conv, nil
}

// AttachEmail records an email discovered mid-conversation on a customer
// that has none. Emails already owned by another customer are left alone.
func (r *Resolver) AttachEmail(ctx context.Context, c *entities.Customer, email string) error {
	email = NormalizeEmail(email)
	if c == nil || email == "" || c.Email != "" {
		return nil
	}
	owner, err := r.customers.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find customer by email: %w", err)
	}
	if owner != nil && owner.ID != c.ID {
		log.Info().Str("customer_id", c.ID).Str("owner_id", owner.ID).Msg("email already belongs to another customer")
		return nil
	}
	if err := r.customers.UpdateEmail(ctx, c.ID, email); err != nil {
		if errors.Is(err, entities.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("update customer email: %w", err)
	}
	c.Email = email
	return nil
}

// LinkCommerceCustomer stores the WooCommerce customer id for a customer with
// a known email. Best effort: guests have no WooCommerce account.
func (r *Resolver) LinkCommerceCustomer(ctx context.Context, c *entities.Customer) {
	if r.commerce == nil || c == nil || c.Email == "" || c.ExternalID != 0 {
		return
	}
	wc, err := r.commerce.FindCustomerByEmail(ctx, c.Email)
	if err != nil {
		if !errors.Is(err, entities.ErrNotFound) {
			log.Warn().Err(err).Str("customer_id", c.ID).Msg("woocommerce customer lookup failed")
		}
		return
	}
	if wc == nil || wc.ID == 0 {
		return
	}
	if err := r.customers.UpdateExternalID(ctx, c.ID, wc.ID); err != nil {
		log.Warn().Err(err).Str("customer_id", c.ID).Msg("failed to store woocommerce customer id")
		return
	}
	c.ExternalID = wc.ID
}
