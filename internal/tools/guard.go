package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
)

// VerifyOrderOwnership is the single authorization rule for order access:
// the claimed email must match the billing email, ignoring case.
func VerifyOrderOwnership(order *entities.Order, email string) error {
	if order == nil || !entities.SameEmail(order.Billing.Email, email) {
		return entities.ErrOwnershipMismatch
	}
	return nil
}

// ownedOrder loads an order and applies VerifyOrderOwnership. Every
// order-scoped tool goes through here; on mismatch no order data is returned.
func (t *Toolset) ownedOrder(ctx context.Context, tool string, orderID int64, email string) (*entities.Order, Result, bool) {
	order, err := t.commerce.GetOrder(ctx, orderID)
	if errors.Is(err, entities.ErrNotFound) || (err == nil && order == nil) {
		return nil, Fail(KindNotFound, fmt.Sprintf(msgOrderNotFound, orderID)), false
	}
	if err != nil {
		return nil, t.upstream(tool, err), false
	}
	if err := VerifyOrderOwnership(order, email); err != nil {
		log.Warn().Str("tool", tool).Int64("order_id", orderID).Msg("order ownership check failed")
		return nil, Fail(KindForbidden, msgOwnership), false
	}
	return order, Result{}, true
}
