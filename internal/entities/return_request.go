package entities

import (
	"fmt"
	"time"
)

type ReturnStatus string

const (
	ReturnRequested ReturnStatus = "requested"
	ReturnApproved  ReturnStatus = "approved"
	ReturnShipped   ReturnStatus = "shipped"
	ReturnRefunded  ReturnStatus = "refunded"
	ReturnRejected  ReturnStatus = "rejected"
)

var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnRequested: {ReturnApproved, ReturnRejected},
	ReturnApproved:  {ReturnShipped, ReturnRejected},
	ReturnShipped:   {ReturnRefunded},
}

// CanTransition reports whether a return may move from s to next.
func (s ReturnStatus) CanTransition(next ReturnStatus) bool {
	for _, allowed := range returnTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ReturnRequest struct {
	ID          string       `json:"id"`
	OrderID     int64        `json:"order_id"`
	Email       string       `json:"email"`
	Reason      string       `json:"reason"`
	Description string       `json:"description"`
	HasPhotos   bool         `json:"has_photos"`
	Status      ReturnStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ReturnID formats the RMA identifier for an order at the given instant.
func ReturnID(orderID int64, at time.Time) string {
	return fmt.Sprintf("RMA-%d-%d", orderID, at.UnixMilli())
}
