package tools

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/entities"
)

func TestGetActivePromotionsMergesCouponsAndCampaigns(t *testing.T) {
	fc := newFakeCommerce()
	fc.coupons = []entities.Coupon{
		{Code: "verano10", Amount: "10.00", DiscountType: "percent", DateExpires: wooTime(fixedNow.AddDate(0, 1, 0)), UsageLimit: intPtr(100), UsageCount: 40},
		{Code: "vencido", Amount: "500", DiscountType: "fixed_cart", DateExpires: wooTime(fixedNow.AddDate(0, 0, -1))},
		{Code: "agotado", Amount: "5", DiscountType: "percent", UsageLimit: intPtr(1), UsageCount: 1},
	}
	until := fixedNow.AddDate(0, 0, 7)
	promos := &memPromotions{promos: []entities.Promotion{
		{Title: "Envío gratis", Description: "En compras mayores a $50.000", Active: true, ValidUntil: &until},
		{Title: "Apagada", Active: false},
	}}
	r := newTestToolset(fc, WithPromotionStore(promos))

	res := call(t, r, "get_active_promotions", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Data["count"])

	list := res.Data["promotions"].([]map[string]any)
	assert.Equal(t, "VERANO10", list[0]["code"])
	assert.Equal(t, "10%", list[0]["discount"])
	assert.Equal(t, 60, list[0]["remaining_uses"])
	assert.Equal(t, "campaign", list[1]["source"])
	assert.Equal(t, "Envío gratis", list[1]["title"])
}

func TestGetActivePromotionsFallsBackToCampaigns(t *testing.T) {
	fc := newFakeCommerce()
	fc.couponErr = errors.New("401")

	res := call(t, newTestToolset(fc), "get_active_promotions", nil)
	require.False(t, res.Success)
	assert.Equal(t, http.StatusInternalServerError, res.HTTPStatus())

	res = call(t, newTestToolset(fc, WithPromotionStore(&memPromotions{})), "get_active_promotions", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 0, res.Data["count"])
	assert.NotEmpty(t, res.Data["message"])
}

func TestDiscountLabel(t *testing.T) {
	assert.Equal(t, "15%", discountLabel("percent", "15.00"))
	assert.Equal(t, "$2500.5", discountLabel("fixed_cart", "2500.50"))
}
