package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

type NoInput struct{}

func (t *Toolset) GetActivePromotions(ctx context.Context, _ NoInput) Result {
	now := t.now()
	promos := []map[string]any{}

	coupons, couponErr := t.commerce.ListCoupons(ctx)
	if couponErr != nil {
		log.Warn().Err(couponErr).Msg("failed to fetch coupons")
	}
	for _, c := range coupons {
		if !c.Usable(now) {
			continue
		}
		p := map[string]any{
			"source":      "coupon",
			"code":        strings.ToUpper(c.Code),
			"description": stripHTML(c.Description),
			"discount":    discountLabel(c.DiscountType, c.Amount),
		}
		if !c.DateExpires.IsZero() {
			p["valid_until"] = c.DateExpires.Format("2006-01-02")
		}
		if c.UsageLimit != nil {
			p["remaining_uses"] = *c.UsageLimit - c.UsageCount
		}
		if c.MinimumAmount != "" && c.MinimumAmount != "0.00" {
			p["minimum_amount"] = c.MinimumAmount
		}
		promos = append(promos, p)
	}

	var campaignErr error
	if t.promotions != nil {
		campaigns, err := t.promotions.ListActive(ctx, now)
		campaignErr = err
		if err != nil {
			log.Warn().Err(err).Msg("failed to load promotions")
		}
		for _, c := range campaigns {
			if !c.Live(now) {
				continue
			}
			p := map[string]any{
				"source":      "campaign",
				"title":       c.Title,
				"description": c.Description,
			}
			if c.Code != "" {
				p["code"] = strings.ToUpper(c.Code)
			}
			if c.Discount != "" {
				p["discount"] = c.Discount
			}
			if c.ValidUntil != nil {
				p["valid_until"] = c.ValidUntil.Format("2006-01-02")
			}
			promos = append(promos, p)
		}
	}

	if couponErr != nil && (t.promotions == nil || campaignErr != nil) {
		return t.upstream("get_active_promotions", couponErr)
	}

	data := map[string]any{
		"promotions": promos,
		"count":      len(promos),
	}
	if len(promos) == 0 {
		data["message"] = "En este momento no hay promociones vigentes."
	}
	return OK(data)
}

func discountLabel(kind, amount string) string {
	a := amount
	if f, err := strconv.ParseFloat(amount, 64); err == nil {
		a = strconv.FormatFloat(f, 'f', -1, 64)
	}
	if kind == "percent" {
		return a + "%"
	}
	return "$" + a
}
