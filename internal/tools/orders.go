package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
)

const (
	defaultOrdersLimit = 5
	maxOrdersLimit     = 20
)

var statusLabels = map[string]string{
	"pending":    "Pendiente de pago",
	"processing": "En preparación",
	"on-hold":    "En espera",
	"completed":  "Completado",
	"cancelled":  "Cancelado",
	"refunded":   "Reembolsado",
	"failed":     "Fallido",
	"shipped":    "Enviado",
}

func statusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

type CustomerOrdersInput struct {
	Email  string `json:"email" validate:"required,email"`
	Status string `json:"status" validate:"omitempty,oneof=pending processing on-hold completed cancelled refunded failed any"`
	Limit  int    `json:"limit" validate:"gte=0"`
}

func (t *Toolset) GetCustomerOrders(ctx context.Context, in CustomerOrdersInput) Result {
	limit := clamp(in.Limit, defaultOrdersLimit, maxOrdersLimit)
	status := in.Status
	if status == "any" {
		status = ""
	}

	orders, err := t.commerce.ListOrders(ctx, entities.OrderQuery{
		Search:  strings.TrimSpace(in.Email),
		Status:  status,
		PerPage: maxOrdersLimit,
	})
	if err != nil {
		return t.upstream("get_customer_orders", err)
	}

	// search matches any field; keep only the customer's own orders
	list := make([]map[string]any, 0, limit)
	for i := range orders {
		if VerifyOrderOwnership(&orders[i], in.Email) != nil {
			continue
		}
		list = append(list, summarizeOrder(orders[i]))
		if len(list) == limit {
			break
		}
	}

	data := map[string]any{
		"orders": list,
		"count":  len(list),
	}
	if len(list) == 0 {
		data["message"] = "No encontré pedidos asociados a ese correo electrónico."
	}
	return OK(data)
}

type OrderInput struct {
	OrderID FlexInt `json:"order_id" validate:"required,gt=0"`
	Email   string  `json:"email" validate:"required,email"`
}

func (t *Toolset) GetOrderDetails(ctx context.Context, in OrderInput) Result {
	order, res, ok := t.ownedOrder(ctx, "get_order_details", int64(in.OrderID), in.Email)
	if !ok {
		return res
	}

	items := make([]map[string]any, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		items = append(items, map[string]any{
			"name":       li.Name,
			"product_id": li.ProductID,
			"quantity":   li.Quantity,
			"total":      li.Total,
		})
	}

	data := summarizeOrder(*order)
	data["items"] = items
	data["shipping_total"] = order.ShippingTotal
	data["payment_method"] = order.PaymentMethodTitle
	data["shipping_address"] = formatAddress(order.Shipping)
	data["customer_name"] = strings.TrimSpace(order.Billing.FirstName + " " + order.Billing.LastName)
	if tr := extractTracking(order); tr.Number != "" {
		data["tracking"] = tr.toMap()
	}
	return OK(data)
}

func (t *Toolset) GetTrackingInfo(ctx context.Context, in OrderInput) Result {
	order, res, ok := t.ownedOrder(ctx, "get_tracking_info", int64(in.OrderID), in.Email)
	if !ok {
		return res
	}

	data := map[string]any{
		"order_id":     order.ID,
		"status":       order.Status,
		"status_label": statusLabel(order.Status),
	}
	tr := extractTracking(order)
	if tr.Number == "" {
		data["has_tracking"] = false
		data["message"] = fmt.Sprintf(msgNoTracking, order.ID)
		return OK(data)
	}
	data["has_tracking"] = true
	for k, v := range tr.toMap() {
		data[k] = v
	}
	return OK(data)
}

type AddressInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1" validate:"required,max=200"`
	Address2  string `json:"address_2" validate:"max=200"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state"`
	Postcode  string `json:"postcode" validate:"max=20"`
	Country   string `json:"country" validate:"omitempty,len=2"`
	Phone     string `json:"phone"`
}

type UpdateAddressInput struct {
	OrderID    FlexInt      `json:"order_id" validate:"required,gt=0"`
	Email      string       `json:"email" validate:"required,email"`
	NewAddress AddressInput `json:"new_address"`
}

var addressEditable = map[string]bool{
	"pending":    true,
	"processing": true,
	"on-hold":    true,
}

func (t *Toolset) UpdateShippingAddress(ctx context.Context, in UpdateAddressInput) Result {
	order, res, ok := t.ownedOrder(ctx, "update_shipping_address", int64(in.OrderID), in.Email)
	if !ok {
		return res
	}
	if !addressEditable[order.Status] {
		return Fail(KindValidation, fmt.Sprintf(msgAddressLocked, order.ID, statusLabel(order.Status)))
	}

	shipping := mergeAddress(order.Shipping, in.NewAddress)
	updated, err := t.commerce.UpdateOrder(ctx, order.ID, entities.OrderUpdate{Shipping: &shipping})
	if err != nil {
		return t.upstream("update_shipping_address", err)
	}
	if updated != nil {
		shipping = updated.Shipping
	}

	note := fmt.Sprintf("Dirección de envío actualizada por el cliente (%s) mediante el asistente virtual.\nAnterior: %s\nNueva: %s",
		in.Email, formatAddress(order.Shipping), formatAddress(shipping))
	if err := t.commerce.AddOrderNote(ctx, order.ID, note, false); err != nil {
		log.Warn().Err(err).Int64("order_id", order.ID).Msg("failed to add address change note")
	}

	return OK(map[string]any{
		"order_id":         order.ID,
		"shipping_address": formatAddress(shipping),
		"message":          fmt.Sprintf("La dirección de envío del pedido #%d fue actualizada.", order.ID),
	})
}

func mergeAddress(base entities.Address, in AddressInput) entities.Address {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&base.FirstName, in.FirstName)
	set(&base.LastName, in.LastName)
	set(&base.Address1, in.Address1)
	base.Address2 = strings.TrimSpace(in.Address2)
	set(&base.City, in.City)
	set(&base.State, in.State)
	set(&base.Postcode, in.Postcode)
	set(&base.Country, strings.ToUpper(in.Country))
	set(&base.Phone, in.Phone)
	return base
}

func formatAddress(a entities.Address) string {
	parts := []string{}
	for _, p := range []string{a.Address1, a.Address2, a.City, a.State, a.Postcode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func summarizeOrder(o entities.Order) map[string]any {
	items := make([]string, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, fmt.Sprintf("%s x%d", li.Name, li.Quantity))
	}
	out := map[string]any{
		"order_id":     o.ID,
		"number":       o.Number,
		"status":       o.Status,
		"status_label": statusLabel(o.Status),
		"total":        o.Total,
		"currency":     o.Currency,
		"items":        items,
	}
	if !o.DateCreated.IsZero() {
		out["date_created"] = o.DateCreated.Format("2006-01-02")
	}
	return out
}

type tracking struct {
	Number   string
	Provider string
	URL      string
}

func (tr tracking) toMap() map[string]any {
	out := map[string]any{"tracking_number": tr.Number}
	if tr.Provider != "" {
		out["carrier"] = tr.Provider
	}
	if tr.URL != "" {
		out["tracking_url"] = tr.URL
	}
	return out
}

// Meta key aliases written by the tracking plugins we have seen, in
// priority order.
var (
	trackingNumberKeys   = []string{"_tracking_number", "tracking_number", "_aftership_tracking_number", "_wc_shipment_tracking_items"}
	trackingProviderKeys = []string{"_tracking_provider", "tracking_provider", "_aftership_tracking_provider"}
	trackingURLKeys      = []string{"_tracking_url", "tracking_url", "_aftership_tracking_url"}
)

func extractTracking(o *entities.Order) tracking {
	var tr tracking
	for _, key := range trackingNumberKeys {
		v, ok := o.Meta(key)
		if !ok {
			continue
		}
		if key == "_wc_shipment_tracking_items" {
			if item := firstShipmentItem(v); item.Number != "" {
				tr = item
				break
			}
			continue
		}
		if s := metaString(v); s != "" {
			tr.Number = s
			break
		}
	}
	if tr.Number == "" {
		return tr
	}
	if tr.Provider == "" {
		tr.Provider = firstMeta(o, trackingProviderKeys)
	}
	if tr.URL == "" {
		tr.URL = firstMeta(o, trackingURLKeys)
	}
	return tr
}

func firstShipmentItem(v any) tracking {
	items, ok := v.([]any)
	if !ok {
		return tracking{}
	}
	for _, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		tr := tracking{Number: metaString(m["tracking_number"])}
		if tr.Number == "" {
			continue
		}
		tr.Provider = metaString(m["tracking_provider"])
		if tr.Provider == "" {
			tr.Provider = metaString(m["custom_tracking_provider"])
		}
		tr.URL = metaString(m["custom_tracking_link"])
		return tr
	}
	return tracking{}
}

func firstMeta(o *entities.Order, keys []string) string {
	for _, key := range keys {
		if v, ok := o.Meta(key); ok {
			if s := metaString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func metaString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	}
	return ""
}
