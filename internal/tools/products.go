package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 10
	maxReviews         = 5
)

type SearchProductsInput struct {
	Query    string  `json:"query" validate:"required,max=200"`
	Category string  `json:"category"`
	MaxPrice float64 `json:"max_price" validate:"gte=0"`
	Limit    int     `json:"limit" validate:"gte=0"`
}

func (t *Toolset) SearchProducts(ctx context.Context, in SearchProductsInput) Result {
	limit := clamp(in.Limit, defaultSearchLimit, maxSearchLimit)
	q := entities.ProductQuery{
		Search:   strings.TrimSpace(in.Query),
		MaxPrice: in.MaxPrice,
		PerPage:  limit,
		InStock:  true,
	}
	if in.Category != "" {
		if id, ok := t.categories[strings.ToLower(strings.TrimSpace(in.Category))]; ok {
			q.CategoryID = id
		}
	}

	products, err := t.commerce.SearchProducts(ctx, q)
	if err != nil {
		return t.upstream("search_products", err)
	}

	results := make([]map[string]any, 0, limit)
	for _, p := range products {
		if p.StockStatus != "" && p.StockStatus != "instock" {
			continue
		}
		if in.MaxPrice > 0 {
			if price, err := strconv.ParseFloat(p.Price, 64); err == nil && price > in.MaxPrice {
				continue
			}
		}
		results = append(results, summarizeProduct(p))
		if len(results) == limit {
			break
		}
	}

	data := map[string]any{
		"products": results,
		"count":    len(results),
		"query":    q.Search,
	}
	if len(results) == 0 {
		data["message"] = msgNoProducts
	}
	return OK(data)
}

type ProductIDInput struct {
	ProductID FlexInt `json:"product_id" validate:"required,gt=0"`
}

func (t *Toolset) CheckStock(ctx context.Context, in ProductIDInput) Result {
	id := int64(in.ProductID)
	product, res, ok := t.loadProduct(ctx, "check_stock", id)
	if !ok {
		return res
	}

	if product.Type != "variable" {
		data := map[string]any{
			"product_id":   product.ID,
			"name":         product.Name,
			"type":         product.Type,
			"stock_status": product.StockStatus,
			"in_stock":     product.StockStatus == "instock",
		}
		if product.StockQuantity != nil {
			data["stock_quantity"] = *product.StockQuantity
		}
		return OK(data)
	}

	variations, err := t.commerce.ListVariations(ctx, id)
	if err != nil {
		return t.upstream("check_stock", err)
	}

	total := 0
	inStock := false
	sizes := make([]map[string]any, 0, len(variations))
	for _, v := range variations {
		qty := 0
		if v.StockQuantity != nil && *v.StockQuantity > 0 {
			qty = *v.StockQuantity
		}
		total += qty
		available := v.StockStatus == "instock"
		if available {
			inStock = true
		}
		sizes = append(sizes, map[string]any{
			"variation_id":   v.ID,
			"size":           sizeOf(v),
			"stock_quantity": qty,
			"stock_status":   v.StockStatus,
			"in_stock":       available,
		})
	}

	return OK(map[string]any{
		"product_id":      product.ID,
		"name":            product.Name,
		"type":            product.Type,
		"total_stock":     total,
		"in_stock":        inStock,
		"sizes":           sizes,
		"variation_count": len(variations),
	})
}

// sizeOf finds the size option of a variation: the attribute whose name
// contains "talla" or "size", case-insensitively.
func sizeOf(v entities.Variation) string {
	for _, a := range v.Attributes {
		name := strings.ToLower(a.Name)
		if strings.Contains(name, "talla") || strings.Contains(name, "size") {
			return a.Option
		}
	}
	opts := make([]string, 0, len(v.Attributes))
	for _, a := range v.Attributes {
		if a.Option != "" {
			opts = append(opts, a.Option)
		}
	}
	if len(opts) == 0 {
		return "Única"
	}
	return strings.Join(opts, " / ")
}

func (t *Toolset) GetProductDetails(ctx context.Context, in ProductIDInput) Result {
	id := int64(in.ProductID)
	product, res, ok := t.loadProduct(ctx, "get_product_details", id)
	if !ok {
		return res
	}

	// Reviews are best effort.
	reviews, err := t.commerce.ListReviews(ctx, id, maxReviews)
	if err != nil {
		log.Warn().Err(err).Int64("product_id", id).Msg("failed to fetch reviews")
		reviews = nil
	}
	if len(reviews) > maxReviews {
		reviews = reviews[:maxReviews]
	}
	reviewList := make([]map[string]any, 0, len(reviews))
	for _, r := range reviews {
		item := map[string]any{
			"reviewer": r.Reviewer,
			"rating":   r.Rating,
			"review":   truncate(stripHTML(r.Review), 300),
			"verified": r.Verified,
		}
		if !r.DateCreated.IsZero() {
			item["date"] = r.DateCreated.Format("2006-01-02")
		}
		reviewList = append(reviewList, item)
	}

	attributes := make([]map[string]any, 0, len(product.Attributes))
	for _, a := range product.Attributes {
		attributes = append(attributes, map[string]any{"name": a.Name, "options": a.Options})
	}

	data := summarizeProduct(*product)
	data["description"] = truncate(stripHTML(product.Description), 1500)
	data["sku"] = product.SKU
	data["type"] = product.Type
	data["attributes"] = attributes
	data["average_rating"] = product.AverageRating
	data["rating_count"] = product.RatingCount
	data["reviews"] = reviewList
	return OK(data)
}

func (t *Toolset) loadProduct(ctx context.Context, tool string, id int64) (*entities.Product, Result, bool) {
	product, err := t.commerce.GetProduct(ctx, id)
	if errors.Is(err, entities.ErrNotFound) || (err == nil && product == nil) {
		return nil, Fail(KindNotFound, fmt.Sprintf(msgProductNotFound, id)), false
	}
	if err != nil {
		return nil, t.upstream(tool, err), false
	}
	return product, Result{}, true
}

func summarizeProduct(p entities.Product) map[string]any {
	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		categories = append(categories, c.Name)
	}
	out := map[string]any{
		"id":                p.ID,
		"name":              p.Name,
		"price":             p.Price,
		"regular_price":     p.RegularPrice,
		"sale_price":        p.SalePrice,
		"on_sale":           p.OnSale,
		"stock_status":      p.StockStatus,
		"permalink":         p.Permalink,
		"categories":        categories,
		"short_description": truncate(stripHTML(p.ShortDescription), 200),
	}
	if p.StockQuantity != nil {
		out["stock_quantity"] = *p.StockQuantity
	}
	if len(p.Images) > 0 {
		out["image"] = p.Images[0].Src
	}
	return out
}

// clamp applies a default for zero and an upper bound.
func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
