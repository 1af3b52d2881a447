package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/entities"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func orderFixture(id int64, status, email string, created time.Time) *entities.Order {
	return &entities.Order{
		ID:          id,
		Number:      "1001",
		Status:      status,
		Currency:    "ARS",
		Total:       "15999.00",
		DateCreated: wooTime(created),
		Billing:     entities.Address{FirstName: "Ana", LastName: "Pérez", Email: email},
		Shipping:    entities.Address{Address1: "Av. Siempre Viva 742", City: "Rosario", Country: "AR"},
		LineItems:   []entities.LineItem{{ID: 1, Name: "Zapatilla Run", ProductID: 7, Quantity: 1, Total: "15999.00"}},
	}
}

func newTestToolset(fc *fakeCommerce, opts ...Option) *Registry {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewToolset(fc, opts...).Registry()
}

func call(t *testing.T, r *Registry, name string, args map[string]any) Result {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return r.Call(context.Background(), name, raw)
}

func TestOrderToolsRejectForeignEmail(t *testing.T) {
	fc := newFakeCommerce()
	fc.orders[10] = orderFixture(10, "processing", "ana@example.com", fixedNow.AddDate(0, 0, -2))
	fc.orders[10].MetaData = []entities.MetaData{{Key: "_tracking_number", Value: "AR123"}}
	r := newTestToolset(fc, WithReturnStore(&memReturns{}))

	cases := map[string]map[string]any{
		"get_order_details": {"order_id": 10, "email": "intruso@example.com"},
		"get_tracking_info": {"order_id": 10, "email": "intruso@example.com"},
		"create_return_request": {
			"order_id": 10, "email": "intruso@example.com",
			"reason": "talla", "description": "me queda chico",
		},
		"update_shipping_address": {
			"order_id": 10, "email": "intruso@example.com",
			"new_address": map[string]any{"address_1": "Otra 1", "city": "Córdoba"},
		},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			res := call(t, r, name, args)
			require.False(t, res.Success)
			assert.Equal(t, http.StatusForbidden, res.HTTPStatus())
			assert.Nil(t, res.Data)

			b, err := json.Marshal(res)
			require.NoError(t, err)
			assert.NotContains(t, string(b), "AR123")
			assert.NotContains(t, string(b), "Siempre Viva")
		})
	}
	assert.Empty(t, fc.notes[10])
	assert.Empty(t, fc.updates)
}

func TestOrderDetailsIgnoresEmailCase(t *testing.T) {
	fc := newFakeCommerce()
	fc.orders[10] = orderFixture(10, "processing", "Ana@Example.com", fixedNow)
	r := newTestToolset(fc)

	res := call(t, r, "get_order_details", map[string]any{"order_id": "10", "email": "ana@example.COM"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "En preparación", res.Data["status_label"])
	assert.Equal(t, "Ana Pérez", res.Data["customer_name"])
	assert.Equal(t, "Av. Siempre Viva 742, Rosario, AR", res.Data["shipping_address"])
}

func TestOrderNotFound(t *testing.T) {
	r := newTestToolset(newFakeCommerce())
	res := call(t, r, "get_order_details", map[string]any{"order_id": 99, "email": "ana@example.com"})
	require.False(t, res.Success)
	assert.Equal(t, http.StatusNotFound, res.HTTPStatus())
}

func TestGetCustomerOrdersFiltersByOwner(t *testing.T) {
	fc := newFakeCommerce()
	fc.orders[1] = orderFixture(1, "completed", "ana@example.com", fixedNow)
	fc.orders[2] = orderFixture(2, "completed", "otra@example.com", fixedNow)
	fc.orders[3] = orderFixture(3, "processing", "ANA@example.com", fixedNow)
	r := newTestToolset(fc)

	res := call(t, r, "get_customer_orders", map[string]any{"email": "ana@example.com"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Data["count"])
	assert.Equal(t, "ana@example.com", fc.lastOrderQuery.Search)

	res = call(t, r, "get_customer_orders", map[string]any{"email": "nadie@example.com"})
	require.True(t, res.Success)
	assert.Equal(t, 0, res.Data["count"])
	assert.NotEmpty(t, res.Data["message"])
}

func TestTrackingInfo(t *testing.T) {
	fc := newFakeCommerce()
	fc.orders[10] = orderFixture(10, "completed", "ana@example.com", fixedNow)
	r := newTestToolset(fc)

	res := call(t, r, "get_tracking_info", map[string]any{"order_id": 10, "email": "ana@example.com"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, false, res.Data["has_tracking"])

	fc.orders[10].MetaData = []entities.MetaData{
		{Key: "_wc_shipment_tracking_items", Value: []any{
			map[string]any{"tracking_number": "OCA-778", "tracking_provider": "OCA", "custom_tracking_link": "https://oca.example/778"},
		}},
	}
	res = call(t, r, "get_tracking_info", map[string]any{"order_id": 10, "email": "ana@example.com"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, true, res.Data["has_tracking"])
	assert.Equal(t, "OCA-778", res.Data["tracking_number"])
	assert.Equal(t, "OCA", res.Data["carrier"])
	assert.Equal(t, "https://oca.example/778", res.Data["tracking_url"])
}

func TestExtractTrackingAliases(t *testing.T) {
	o := &entities.Order{MetaData: []entities.MetaData{
		{Key: "_aftership_tracking_number", Value: float64(445566)},
		{Key: "tracking_provider", Value: "Andreani"},
	}}
	tr := extractTracking(o)
	assert.Equal(t, "445566", tr.Number)
	assert.Equal(t, "Andreani", tr.Provider)
	assert.Empty(t, tr.URL)

	assert.Empty(t, extractTracking(&entities.Order{}).Number)
}

func TestUpdateShippingAddress(t *testing.T) {
	fc := newFakeCommerce()
	fc.orders[10] = orderFixture(10, "processing", "ana@example.com", fixedNow)
	r := newTestToolset(fc)

	res := call(t, r, "update_shipping_address", map[string]any{
		"order_id": 10,
		"email":    "ana@example.com",
		"new_address": map[string]any{
			"address_1": "Bv. Oroño 1200",
			"city":      "Rosario",
			"postcode":  "2000",
			"country":   "ar",
		},
	})
	require.True(t, res.Success, res.Error)
	require.NotNil(t, fc.updates[10].Shipping)
	assert.Equal(t, "Bv. Oroño 1200", fc.updates[10].Shipping.Address1)
	assert.Equal(t, "AR", fc.updates[10].Shipping.Country)
	require.Len(t, fc.notes[10], 1)
	assert.Contains(t, fc.notes[10][0], "Av. Siempre Viva 742")
}

func TestUpdateShippingAddressLockedAfterShipping(t *testing.T) {
	fc := newFakeCommerce()
	fc.orders[10] = orderFixture(10, "completed", "ana@example.com", fixedNow)
	r := newTestToolset(fc)

	res := call(t, r, "update_shipping_address", map[string]any{
		"order_id":    10,
		"email":       "ana@example.com",
		"new_address": map[string]any{"address_1": "Bv. Oroño 1200", "city": "Rosario"},
	})
	require.False(t, res.Success)
	assert.Equal(t, http.StatusBadRequest, res.HTTPStatus())
	assert.True(t, strings.Contains(res.Error, "Completado"))
	assert.Empty(t, fc.updates)
}
