package entities

import "time"

// Customer is identified by phone or email; not always both.
type Customer struct {
	ID         string    `json:"id"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	ExternalID int64     `json:"external_id,omitempty"` // WooCommerce customer id
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
