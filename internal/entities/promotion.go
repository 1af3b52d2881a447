package entities

import "time"

// Promotion is a campaign managed from the dashboard. Coupons fetched from
// WooCommerce are merged with these at read time.
type Promotion struct {
	ID          int        `json:"id"`
	Code        string     `json:"code,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Discount    string     `json:"discount,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (p Promotion) Live(now time.Time) bool {
	if !p.Active {
		return false
	}
	return p.ValidUntil == nil || p.ValidUntil.After(now)
}
