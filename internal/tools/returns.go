package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
)

const returnWindowDays = 30

var nonReturnable = map[string]bool{
	"cancelled": true,
	"refunded":  true,
	"failed":    true,
}

type ReturnRequestInput struct {
	OrderID     FlexInt `json:"order_id" validate:"required,gt=0"`
	Email       string  `json:"email" validate:"required,email"`
	Reason      string  `json:"reason" validate:"required,max=200"`
	Description string  `json:"description" validate:"required,max=2000"`
	HasPhotos   bool    `json:"has_photos"`
}

func (t *Toolset) CreateReturnRequest(ctx context.Context, in ReturnRequestInput) Result {
	order, res, ok := t.ownedOrder(ctx, "create_return_request", int64(in.OrderID), in.Email)
	if !ok {
		return res
	}
	if nonReturnable[order.Status] {
		return Fail(KindValidation, fmt.Sprintf(msgReturnStatus, order.ID, statusLabel(order.Status)))
	}

	now := t.now()
	if !order.DateCreated.IsZero() {
		days := int(now.Sub(order.DateCreated.Time).Hours() / 24)
		if days > returnWindowDays {
			return Fail(KindValidation, fmt.Sprintf(msgReturnTooOld, order.ID, days, returnWindowDays))
		}
	}

	rma := &entities.ReturnRequest{
		ID:          entities.ReturnID(order.ID, now),
		OrderID:     order.ID,
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Reason:      strings.TrimSpace(in.Reason),
		Description: strings.TrimSpace(in.Description),
		HasPhotos:   in.HasPhotos,
		Status:      entities.ReturnRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := t.commerce.AddOrderNote(ctx, order.ID, returnNote(rma), false); err != nil {
		return t.upstream("create_return_request", err)
	}
	if t.returns != nil {
		if err := t.returns.Create(ctx, rma); err != nil {
			// the order note already carries the request
			log.Error().Err(err).Str("return_id", rma.ID).Msg("failed to persist return request")
		}
	}

	nextSteps := "Nuestro equipo revisará tu solicitud y te contactará por correo en un plazo de 48 horas hábiles."
	if in.HasPhotos {
		nextSteps += " Ten a mano las fotos del producto, te las pediremos en ese correo."
	}
	return OK(map[string]any{
		"return_id":  rma.ID,
		"order_id":   order.ID,
		"status":     string(rma.Status),
		"message":    fmt.Sprintf("Registré tu solicitud de devolución con el número %s.", rma.ID),
		"next_steps": nextSteps,
	})
}

func returnNote(r *entities.ReturnRequest) string {
	photos := "no"
	if r.HasPhotos {
		photos = "sí"
	}
	return fmt.Sprintf("Solicitud de devolución %s\nMotivo: %s\nDescripción: %s\nFotos disponibles: %s\nSolicitado por: %s",
		r.ID, r.Reason, r.Description, photos, r.Email)
}
