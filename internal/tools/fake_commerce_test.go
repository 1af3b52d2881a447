package tools

import (
	"context"
	"errors"
	"sort"
	"time"

	"supportdesk/internal/entities"
)

type fakeCommerce struct {
	products   map[int64]*entities.Product
	variations map[int64][]entities.Variation
	reviews    map[int64][]entities.Review
	reviewErr  error
	orders     map[int64]*entities.Order
	coupons    []entities.Coupon
	couponErr  error
	searchErr  error

	lastProductQuery entities.ProductQuery
	lastOrderQuery   entities.OrderQuery
	orderPages       int
	notes            map[int64][]string
	updates          map[int64]entities.OrderUpdate
}

func newFakeCommerce() *fakeCommerce {
	return &fakeCommerce{
		products:   map[int64]*entities.Product{},
		variations: map[int64][]entities.Variation{},
		reviews:    map[int64][]entities.Review{},
		orders:     map[int64]*entities.Order{},
		notes:      map[int64][]string{},
		updates:    map[int64]entities.OrderUpdate{},
	}
}

func (f *fakeCommerce) SearchProducts(_ context.Context, q entities.ProductQuery) ([]entities.Product, error) {
	f.lastProductQuery = q
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []entities.Product
	for _, id := range sortedKeys(f.products) {
		out = append(out, *f.products[id])
	}
	return out, nil
}

func (f *fakeCommerce) GetProduct(_ context.Context, id int64) (*entities.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return p, nil
}

func (f *fakeCommerce) ListVariations(_ context.Context, productID int64) ([]entities.Variation, error) {
	return f.variations[productID], nil
}

func (f *fakeCommerce) ListReviews(_ context.Context, productID int64, limit int) ([]entities.Review, error) {
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	return f.reviews[productID], nil
}

func (f *fakeCommerce) GetOrder(_ context.Context, id int64) (*entities.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeCommerce) ListOrders(_ context.Context, q entities.OrderQuery) ([]entities.Order, error) {
	f.lastOrderQuery = q
	f.orderPages++
	var out []entities.Order
	for _, id := range sortedKeys(f.orders) {
		o := f.orders[id]
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		out = append(out, *o)
	}
	if q.PerPage <= 0 {
		return out, nil
	}
	start := (max(q.Page, 1) - 1) * q.PerPage
	if start >= len(out) {
		return nil, nil
	}
	return out[start:min(start+q.PerPage, len(out))], nil
}

func (f *fakeCommerce) UpdateOrder(_ context.Context, id int64, u entities.OrderUpdate) (*entities.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	f.updates[id] = u
	if u.Shipping != nil {
		o.Shipping = *u.Shipping
	}
	return o, nil
}

func (f *fakeCommerce) AddOrderNote(_ context.Context, id int64, note string, _ bool) error {
	f.notes[id] = append(f.notes[id], note)
	return nil
}

func (f *fakeCommerce) ListCoupons(context.Context) ([]entities.Coupon, error) {
	return f.coupons, f.couponErr
}

func (f *fakeCommerce) FindCustomerByEmail(context.Context, string) (*entities.CommerceCustomer, error) {
	return nil, errors.New("not implemented")
}

type memReturns struct {
	created []entities.ReturnRequest
}

func (m *memReturns) Create(_ context.Context, r *entities.ReturnRequest) error {
	m.created = append(m.created, *r)
	return nil
}

func (m *memReturns) GetByID(context.Context, string) (*entities.ReturnRequest, error) {
	return nil, nil
}

func (m *memReturns) List(context.Context, entities.ReturnStatus, int) ([]entities.ReturnRequest, error) {
	return m.created, nil
}

func (m *memReturns) UpdateStatus(context.Context, string, entities.ReturnStatus) error {
	return nil
}

type memPromotions struct {
	promos []entities.Promotion
}

func (m *memPromotions) ListActive(context.Context, time.Time) ([]entities.Promotion, error) {
	return m.promos, nil
}

func intPtr(v int) *int { return &v }

func wooTime(t time.Time) entities.WooTime { return entities.WooTime{Time: t} }

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
