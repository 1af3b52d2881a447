package entities

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// WooTime decodes WooCommerce timestamps, which are emitted without a zone
// ("2006-01-02T15:04:05") and may be null.
type WooTime struct {
	time.Time
}

var wooTimeLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *WooTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range wooTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	_, err := time.Parse(wooTimeLayouts[0], s)
	return err
}

func (t WooTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(wooTimeLayouts[0]))
}

type ProductCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type ProductImage struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

type ProductAttribute struct {
	Name    string   `json:"name"`
	Option  string   `json:"option,omitempty"`  // set on variations
	Options []string `json:"options,omitempty"` // set on parent products
}

type Product struct {
	ID               int64              `json:"id"`
	Name             string             `json:"name"`
	Type             string             `json:"type"` // simple, variable, grouped, external
	Status           string             `json:"status"`
	Permalink        string             `json:"permalink"`
	Description      string             `json:"description"`
	ShortDescription string             `json:"short_description"`
	SKU              string             `json:"sku"`
	Price            string             `json:"price"`
	RegularPrice     string             `json:"regular_price"`
	SalePrice        string             `json:"sale_price"`
	OnSale           bool               `json:"on_sale"`
	StockStatus      string             `json:"stock_status"`
	StockQuantity    *int               `json:"stock_quantity"`
	ManageStock      bool               `json:"manage_stock"`
	AverageRating    string             `json:"average_rating"`
	RatingCount      int                `json:"rating_count"`
	Categories       []ProductCategory  `json:"categories"`
	Images           []ProductImage     `json:"images"`
	Attributes       []ProductAttribute `json:"attributes"`
}

type Variation struct {
	ID            int64              `json:"id"`
	SKU           string             `json:"sku"`
	Price         string             `json:"price"`
	StockStatus   string             `json:"stock_status"`
	StockQuantity *int               `json:"stock_quantity"`
	Attributes    []ProductAttribute `json:"attributes"`
}

type Review struct {
	ID          int64   `json:"id"`
	Reviewer    string  `json:"reviewer"`
	Review      string  `json:"review"`
	Rating      int     `json:"rating"`
	Verified    bool    `json:"verified"`
	DateCreated WooTime `json:"date_created"`
}

type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1,omitempty"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type LineItem struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total"`
}

type MetaData struct {
	ID    int64  `json:"id,omitempty"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type Order struct {
	ID                 int64      `json:"id"`
	Number             string     `json:"number"`
	Status             string     `json:"status"`
	Currency           string     `json:"currency"`
	Total              string     `json:"total"`
	ShippingTotal      string     `json:"shipping_total"`
	CustomerID         int64      `json:"customer_id"`
	PaymentMethodTitle string     `json:"payment_method_title"`
	DateCreated        WooTime    `json:"date_created"`
	DateCompleted      WooTime    `json:"date_completed"`
	Billing            Address    `json:"billing"`
	Shipping           Address    `json:"shipping"`
	LineItems          []LineItem `json:"line_items"`
	MetaData           []MetaData `json:"meta_data"`
}

// Meta returns the first meta value stored under key.
func (o *Order) Meta(key string) (any, bool) {
	for _, m := range o.MetaData {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

type Coupon struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	Amount        string  `json:"amount"`
	DiscountType  string  `json:"discount_type"` // percent, fixed_cart, fixed_product
	Description   string  `json:"description"`
	DateExpires   WooTime `json:"date_expires"`
	UsageCount    int     `json:"usage_count"`
	UsageLimit    *int    `json:"usage_limit"`
	MinimumAmount string  `json:"minimum_amount"`
}

// Usable reports whether the coupon is unexpired and has uses left.
func (c Coupon) Usable(now time.Time) bool {
	if !c.DateExpires.IsZero() && !c.DateExpires.After(now) {
		return false
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false
	}
	return true
}

type CommerceCustomer struct {
	ID        int64   `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Billing   Address `json:"billing"`
}

type ProductQuery struct {
	Search     string
	CategoryID int64
	MaxPrice   float64
	PerPage    int
	InStock    bool
}

type OrderQuery struct {
	Search     string
	Status     string
	CustomerID int64
	PerPage    int
	// Page is 1-based; zero means the first page.
	Page int
}

type OrderUpdate struct {
	Status   string   `json:"status,omitempty"`
	Shipping *Address `json:"shipping,omitempty"`
}

// SameEmail compares two addresses ignoring case and surrounding space.
func SameEmail(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
