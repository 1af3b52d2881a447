package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
)

// WooCommerceClient talks to the WooCommerce REST API (wc/v3) with consumer
// key/secret basic auth. Reads are retried; writes are sent once.
type WooCommerceClient struct {
	baseURL string
	key     string
	secret  string
	http    *retryablehttp.Client
}

func NewWooCommerceClient(baseURL, key, secret string, timeout time.Duration, retryMax int) *WooCommerceClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = retryLogger{log.Logger.With().Str("component", "woocommerce").Logger()}
	return &WooCommerceClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/wp-json/wc/v3",
		key:     key,
		secret:  secret,
		http:    rc,
	}
}

// retryLogger adapts zerolog to retryablehttp.LeveledLogger.
type retryLogger struct {
	l zerolog.Logger
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.l.Error().Fields(kv).Msg(msg) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.l.Debug().Fields(kv).Msg(msg) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.l.Trace().Fields(kv).Msg(msg) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.l.Warn().Fields(kv).Msg(msg) }

// APIError is a non-2xx WooCommerce response.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("woocommerce: status %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("woocommerce: status %d", e.Status)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return entities.ErrNotFound
	}
	return nil
}

func (c *WooCommerceClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build woocommerce request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("woocommerce GET %s: %w", path, err)
	}
	return decodeWoo(resp, out)
}

func (c *WooCommerceClient) send(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode woocommerce body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build woocommerce request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("woocommerce %s %s: %w", method, path, err)
	}
	return decodeWoo(resp, out)
}

func decodeWoo(resp *http.Response, out any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read woocommerce response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode woocommerce response: %w", err)
	}
	return nil
}

func (c *WooCommerceClient) SearchProducts(ctx context.Context, q entities.ProductQuery) ([]entities.Product, error) {
	v := url.Values{}
	v.Set("status", "publish")
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.CategoryID > 0 {
		v.Set("category", strconv.FormatInt(q.CategoryID, 10))
	}
	if q.MaxPrice > 0 {
		v.Set("max_price", strconv.FormatFloat(q.MaxPrice, 'f', -1, 64))
	}
	if q.InStock {
		v.Set("stock_status", "instock")
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	var products []entities.Product
	if err := c.get(ctx, "/products", v, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *WooCommerceClient) GetProduct(ctx context.Context, id int64) (*entities.Product, error) {
	var p entities.Product
	if err := c.get(ctx, fmt.Sprintf("/products/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *WooCommerceClient) ListVariations(ctx context.Context, productID int64) ([]entities.Variation, error) {
	v := url.Values{"per_page": {"100"}}
	var out []entities.Variation
	if err := c.get(ctx, fmt.Sprintf("/products/%d/variations", productID), v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WooCommerceClient) ListReviews(ctx context.Context, productID int64, limit int) ([]entities.Review, error) {
	v := url.Values{}
	v.Set("product", strconv.FormatInt(productID, 10))
	v.Set("status", "approved")
	if limit > 0 {
		v.Set("per_page", strconv.Itoa(limit))
	}
	var out []entities.Review
	if err := c.get(ctx, "/products/reviews", v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WooCommerceClient) GetOrder(ctx context.Context, id int64) (*entities.Order, error) {
	var o entities.Order
	if err := c.get(ctx, fmt.Sprintf("/orders/%d", id), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *WooCommerceClient) ListOrders(ctx context.Context, q entities.OrderQuery) ([]entities.Order, error) {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.CustomerID > 0 {
		v.Set("customer", strconv.FormatInt(q.CustomerID, 10))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	var out []entities.Order
	if err := c.get(ctx, "/orders", v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WooCommerceClient) UpdateOrder(ctx context.Context, id int64, update entities.OrderUpdate) (*entities.Order, error) {
	var o entities.Order
	if err := c.send(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", id), update, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *WooCommerceClient) AddOrderNote(ctx context.Context, id int64, note string, customerVisible bool) error {
	body := map[string]any{"note": note, "customer_note": customerVisible}
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/notes", id), body, nil)
}

func (c *WooCommerceClient) ListCoupons(ctx context.Context) ([]entities.Coupon, error) {
	v := url.Values{"per_page": {"50"}}
	var out []entities.Coupon
	if err := c.get(ctx, "/coupons", v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindCustomerByEmail returns ErrNotFound for guests without an account.
func (c *WooCommerceClient) FindCustomerByEmail(ctx context.Context, email string) (*entities.CommerceCustomer, error) {
	v := url.Values{"email": {email}, "role": {"all"}}
	var out []entities.CommerceCustomer
	if err := c.get(ctx, "/customers", v, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, entities.ErrNotFound
	}
	return &out[0], nil
}

// Ping checks credentials with a one-product listing.
func (c *WooCommerceClient) Ping(ctx context.Context) error {
	return c.get(ctx, "/products", url.Values{"per_page": {"1"}}, nil)
}
