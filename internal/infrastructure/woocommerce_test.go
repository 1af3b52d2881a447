package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/entities"
)

func newTestWoo(t *testing.T, h http.HandlerFunc) *WooCommerceClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewWooCommerceClient(srv.URL, "ck_test", "cs_test", time.Second, 2)
}

func TestWooSearchProductsQuery(t *testing.T) {
	c := newTestWoo(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "ck_test", user)
		assert.Equal(t, "cs_test", pass)
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "zapatillas", q.Get("search"))
		assert.Equal(t, "15", q.Get("category"))
		assert.Equal(t, "49.9", q.Get("max_price"))
		assert.Equal(t, "instock", q.Get("stock_status"))
		assert.Equal(t, "publish", q.Get("status"))
		assert.Equal(t, "5", q.Get("per_page"))
		w.Write([]byte(`[{"id":7,"name":"Runner","price":"39.90","stock_quantity":null}]`))
	})

	products, err := c.SearchProducts(context.Background(), entities.ProductQuery{
		Search: "zapatillas", CategoryID: 15, MaxPrice: 49.9, InStock: true, PerPage: 5,
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Runner", products[0].Name)
	assert.Nil(t, products[0].StockQuantity)
}

func TestWooListOrdersPaging(t *testing.T) {
	c := newTestWoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ana@example.com", q.Get("search"))
		assert.Equal(t, "completed", q.Get("status"))
		assert.Equal(t, "100", q.Get("per_page"))
		assert.Equal(t, "2", q.Get("page"))
		w.Write([]byte(`[{"id":101,"status":"completed"}]`))
	})

	orders, err := c.ListOrders(context.Background(), entities.OrderQuery{
		Search: "ana@example.com", Status: "completed", PerPage: 100, Page: 2,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(101), orders[0].ID)
}

func TestWooGetOrderNotFound(t *testing.T) {
	c := newTestWoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"woocommerce_rest_shop_order_invalid_id","message":"ID inválido."}`))
	})
	_, err := c.GetOrder(context.Background(), 99)
	require.ErrorIs(t, err, entities.ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "woocommerce_rest_shop_order_invalid_id", apiErr.Code)
}

func TestWooGetOrderDecodesDates(t *testing.T) {
	c := newTestWoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":10,"status":"completed","date_created":"2025-03-01T10:00:00","date_completed":null,
			"billing":{"email":"ana@example.com"},"meta_data":[{"id":1,"key":"_tracking_number","value":"AR123"}]}`))
	})
	o, err := c.GetOrder(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2025, o.DateCreated.Year())
	assert.True(t, o.DateCompleted.IsZero())
	v, ok := o.Meta("_tracking_number")
	require.True(t, ok)
	assert.Equal(t, "AR123", v)
}

func TestWooReadsAreRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestWoo(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	})
	coupons, err := c.ListCoupons(context.Background())
	require.NoError(t, err)
	assert.Empty(t, coupons)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWooWritesAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestWoo(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	err := c.AddOrderNote(context.Background(), 10, "nota", false)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWooUpdateOrderAndNote(t *testing.T) {
	var body map[string]any
	c := newTestWoo(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/wp-json/wc/v3/orders/10":
			assert.Equal(t, http.MethodPut, r.Method)
			w.Write([]byte(`{"id":10,"shipping":{"city":"Rosario"}}`))
		case "/wp-json/wc/v3/orders/10/notes":
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":5}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	o, err := c.UpdateOrder(context.Background(), 10, entities.OrderUpdate{Shipping: &entities.Address{City: "Rosario"}})
	require.NoError(t, err)
	assert.Equal(t, "Rosario", o.Shipping.City)
	assert.Equal(t, "Rosario", body["shipping"].(map[string]any)["city"])

	require.NoError(t, c.AddOrderNote(context.Background(), 10, "Dirección actualizada", false))
	assert.Equal(t, false, body["customer_note"])
}

func TestWooFindCustomerByEmail(t *testing.T) {
	c := newTestWoo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "ana@example.com" {
			w.Write([]byte(`[{"id":812,"email":"ana@example.com"}]`))
			return
		}
		w.Write([]byte(`[]`))
	})
	wc, err := c.FindCustomerByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(812), wc.ID)

	_, err = c.FindCustomerByEmail(context.Background(), "guest@example.com")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}
