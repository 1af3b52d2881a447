package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

var testNow = time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

func newTestResolver(customers *memCustomers, conversations *memConversations) *Resolver {
	r := NewResolver(customers, conversations, map[entities.Channel]time.Duration{
		entities.ChannelWidget: 2 * time.Hour,
	})
	r.now = func() time.Time { return testNow }
	return r
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "5491155551234", NormalizePhone("+54 9 11 5555-1234"))
	assert.Equal(t, "", NormalizePhone("abc"))
}

func TestResolveCustomerByPhoneIsIdempotent(t *testing.T) {
	customers := newMemCustomers()
	r := newTestResolver(customers, newMemConversations())

	first, err := r.ResolveCustomerByPhone(context.Background(), "+5491155551234", "Ana")
	require.NoError(t, err)
	second, err := r.ResolveCustomerByPhone(context.Background(), "5491155551234", "Ana P.")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "5491155551234", first.Phone)
	assert.Equal(t, 1, customers.count())
}

func TestResolveCustomerConcurrentCreatesOneRow(t *testing.T) {
	customers := newMemCustomers()
	r := newTestResolver(customers, newMemConversations())

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.ResolveCustomerByEmail(context.Background(), "Ana@Example.com ", "")
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, customers.count())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestResolveConversationReusesWithinWindow(t *testing.T) {
	conversations := newMemConversations()
	r := newTestResolver(newMemCustomers(), conversations)
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.ResolveConversation(ctx, "cust-1", entities.ChannelWhatsApp)
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, conversations.count())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	widget, err := r.ResolveConversation(ctx, "cust-1", entities.ChannelWidget)
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], widget.ID)
}

func TestResolveConversationSkipsStaleRows(t *testing.T) {
	conversations := newMemConversations()
	stale := &entities.Conversation{
		ID:         "old",
		CustomerID: "cust-1",
		Channel:    entities.ChannelWhatsApp,
		Status:     entities.StatusActive,
		WindowKey:  entities.WindowKey(entities.ChannelWhatsApp, testNow.Add(-25*time.Hour), 24*time.Hour),
		CreatedAt:  testNow.Add(-25 * time.Hour),
		UpdatedAt:  testNow.Add(-25 * time.Hour),
	}
	conversations.put(stale)
	r := newTestResolver(newMemCustomers(), conversations)

	conv, err := r.ResolveConversation(context.Background(), "cust-1", entities.ChannelWhatsApp)
	require.NoError(t, err)
	assert.NotEqual(t, "old", conv.ID)
	assert.Equal(t, entities.StatusActive, conv.Status)
}

func TestResolveConversationIgnoresClosed(t *testing.T) {
	conversations := newMemConversations()
	conversations.put(&entities.Conversation{
		ID: "closed", CustomerID: "cust-1", Channel: entities.ChannelWhatsApp,
		Status: entities.StatusClosed, WindowKey: "x", UpdatedAt: testNow.Add(-time.Minute),
	})
	r := newTestResolver(newMemCustomers(), conversations)

	conv, err := r.ResolveConversation(context.Background(), "cust-1", entities.ChannelWhatsApp)
	require.NoError(t, err)
	assert.NotEqual(t, "closed", conv.ID)
}

func TestConversationForChecksOwner(t *testing.T) {
	conversations := newMemConversations()
	conversations.put(&entities.Conversation{ID: "c1", CustomerID: "cust-1", Channel: entities.ChannelWidget, Status: entities.StatusActive})
	r := newTestResolver(newMemCustomers(), conversations)
	ctx := context.Background()

	conv, err := r.ConversationFor(ctx, "c1", "cust-1")
	require.NoError(t, err)
	require.NotNil(t, conv)

	conv, err = r.ConversationFor(ctx, "c1", "cust-2")
	require.NoError(t, err)
	assert.Nil(t, conv)

	conv, err = r.ConversationFor(ctx, "missing", "cust-1")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestAttachEmail(t *testing.T) {
	customers := newMemCustomers()
	r := newTestResolver(customers, newMemConversations())
	ctx := context.Background()

	owner, err := r.ResolveCustomerByEmail(ctx, "taken@example.com", "")
	require.NoError(t, err)
	c, err := r.ResolveCustomerByPhone(ctx, "5491100000000", "")
	require.NoError(t, err)

	require.NoError(t, r.AttachEmail(ctx, c, "taken@example.com"))
	assert.Empty(t, c.Email)

	require.NoError(t, r.AttachEmail(ctx, c, " New@Example.com"))
	assert.Equal(t, "new@example.com", c.Email)
	stored, _ := customers.GetByID(ctx, c.ID)
	assert.Equal(t, "new@example.com", stored.Email)

	require.NoError(t, r.AttachEmail(ctx, c, "other@example.com"))
	assert.Equal(t, "new@example.com", c.Email)
	assert.NotEqual(t, owner.ID, c.ID)
}

type customerLookup struct {
	interfaces.Commerce
	byEmail map[string]*entities.CommerceCustomer
	calls   int
}

func (c *customerLookup) FindCustomerByEmail(_ context.Context, email string) (*entities.CommerceCustomer, error) {
	c.calls++
	if wc, ok := c.byEmail[email]; ok {
		return wc, nil
	}
	return nil, entities.ErrNotFound
}

func TestLinkCommerceCustomer(t *testing.T) {
	customers := newMemCustomers()
	lookup := &customerLookup{byEmail: map[string]*entities.CommerceCustomer{
		"ana@example.com": {ID: 812, Email: "ana@example.com"},
	}}
	r := newTestResolver(customers, newMemConversations()).WithCommerce(lookup)
	ctx := context.Background()

	c, err := r.ResolveCustomerByEmail(ctx, "Ana@Example.com", "")
	require.NoError(t, err)
	r.LinkCommerceCustomer(ctx, c)
	assert.Equal(t, int64(812), c.ExternalID)
	stored, _ := customers.GetByID(ctx, c.ID)
	assert.Equal(t, int64(812), stored.ExternalID)

	r.LinkCommerceCustomer(ctx, c)
	assert.Equal(t, 1, lookup.calls, "already linked customers are not looked up again")

	guest, err := r.ResolveCustomerByEmail(ctx, "guest@example.com", "")
	require.NoError(t, err)
	r.LinkCommerceCustomer(ctx, guest)
	assert.Zero(t, guest.ExternalID)
}

func TestResolveConversationAfterResolveInSameWindow(t *testing.T) {
	conversations := newMemConversations()
	r := newTestResolver(newMemCustomers(), conversations)
	ctx := context.Background()

	first, err := r.ResolveConversation(ctx, "cust-1", entities.ChannelWhatsApp)
	require.NoError(t, err)
	require.NoError(t, conversations.UpdateStatus(ctx, first.ID, entities.StatusResolved))

	second, err := r.ResolveConversation(ctx, "cust-1", entities.ChannelWhatsApp)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.WindowKey, second.WindowKey)
}
