package services

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/firestore"
	"github.com/foodhub/api/internal/repositories"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return string(rune('A'+n-1)) + "01"
	}
}

func ptr[T any](v T) *T { return &v }

type memItems struct {
	mu    sync.Mutex
	items map[string]domain.Item
}

func newMemItems(items ...domain.Item) *memItems {
	m := &memItems{items: map[string]domain.Item{}}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *memItems) Insert(_ context.Context, item domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *memItems) Update(_ context.Context, item domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return firestore.NotFound("items.update", "item")
	}
	m.items[item.ID] = item
	return nil
}

func (m *memItems) FindByID(_ context.Context, id string) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.Item{}, firestore.NotFound("items.get", "item")
	}
	return item, nil
}

func (m *memItems) FindByIDs(_ context.Context, ids []string) (map[string]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.Item{}
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (m *memItems) ListByVendor(_ context.Context, filter repositories.ItemListFilter) (domain.CursorPage[domain.Item], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var page domain.CursorPage[domain.Item]
	for _, item := range m.items {
		if item.VendorID == filter.VendorID && (!filter.ActiveOnly || item.Active) {
			page.Items = append(page.Items, item)
		}
	}
	slices.SortFunc(page.Items, func(a, b domain.Item) int { return cmp.Compare(a.ID, b.ID) })
	return page, nil
}

type memAreas struct {
	areas map[string]domain.DeliveryArea
}

func newMemAreas(areas ...domain.DeliveryArea) *memAreas {
	m := &memAreas{areas: map[string]domain.DeliveryArea{}}
	for _, area := range areas {
		m.areas[area.ID] = area
	}
	return m
}

func (m *memAreas) Insert(_ context.Context, area domain.DeliveryArea) error {
	for _, existing := range m.areas {
		if existing.Name == area.Name {
			return firestore.Conflict("areas.insert", "name taken")
		}
	}
	m.areas[area.ID] = area
	return nil
}

func (m *memAreas) FindByID(_ context.Context, id string) (domain.DeliveryArea, error) {
	area, ok := m.areas[id]
	if !ok {
		return domain.DeliveryArea{}, firestore.NotFound("areas.get", "delivery area")
	}
	return area, nil
}

func (m *memAreas) List(_ context.Context, activeOnly bool) ([]domain.DeliveryArea, error) {
	var out []domain.DeliveryArea
	for _, area := range m.areas {
		if !activeOnly || area.Active {
			out = append(out, area)
		}
	}
	return out, nil
}

type memCoupons struct {
	coupons map[string]domain.Coupon
}

func newMemCoupons(coupons ...domain.Coupon) *memCoupons {
	m := &memCoupons{coupons: map[string]domain.Coupon{}}
	for _, c := range coupons {
		m.coupons[c.ID] = c
	}
	return m
}

func (m *memCoupons) Insert(_ context.Context, c domain.Coupon) error {
	m.coupons[c.ID] = c
	return nil
}

func (m *memCoupons) Update(_ context.Context, c domain.Coupon) error {
	m.coupons[c.ID] = c
	return nil
}

func (m *memCoupons) FindByID(_ context.Context, id string) (domain.Coupon, error) {
	c, ok := m.coupons[id]
	if !ok {
		return domain.Coupon{}, firestore.NotFound("coupons.get", "coupon")
	}
	return c, nil
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	for _, c := range m.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return domain.Coupon{}, firestore.NotFound("coupons.byCode", "coupon")
}

func (m *memCoupons) List(context.Context, domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
	var page domain.CursorPage[domain.Coupon]
	for _, c := range m.coupons {
		page.Items = append(page.Items, c)
	}
	return page, nil
}

type memOrders struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	counters  map[string]int64
	couponUse map[string]int64
	// coupons, when set, receives the cap re-check and usage increment on Create.
	coupons   *memCoupons
	createErr error
	updates   []repositories.OrderVersion
}

func newMemOrders(orders ...domain.Order) *memOrders {
	m := &memOrders{orders: map[string]domain.Order{}, counters: map[string]int64{}, couponUse: map[string]int64{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memOrders) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return domain.Order{}, m.createErr
	}
	if order.CouponID != nil && m.coupons != nil {
		if err := m.consumeCouponLocked(*order.CouponID, order.CustomerID); err != nil {
			return domain.Order{}, err
		}
	}
	m.counters[order.VendorID]++
	order.Number = m.counters[order.VendorID]
	m.orders[order.ID] = order
	return order, nil
}

func (m *memOrders) consumeCouponLocked(couponID, customerID string) error {
	coupon, ok := m.coupons.coupons[couponID]
	if !ok || !coupon.Active {
		return repositories.NewCouponUsageError(couponID, repositories.CouponUsageInactive, "coupon was deactivated")
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return repositories.NewCouponUsageError(couponID, repositories.CouponUsageExhausted, "coupon usage limit reached")
	}
	if coupon.PerUserLimit > 0 {
		var used int64
		for _, o := range m.orders {
			if o.CouponID != nil && *o.CouponID == couponID && o.CustomerID == customerID {
				used++
			}
		}
		if used >= coupon.PerUserLimit {
			return repositories.NewCouponUsageError(couponID, repositories.CouponUsagePerUserExhausted, "per-user limit reached")
		}
	}
	coupon.UsedCount++
	m.coupons.coupons[couponID] = coupon
	return nil
}

func (m *memOrders) Update(_ context.Context, order domain.Order, expected repositories.OrderVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return firestore.NotFound("orders.update", "order")
	}
	if stored.Status != expected.Status || !equalPtr(stored.DriverID, expected.DriverID) {
		return firestore.Conflict("orders.update", "order changed")
	}
	m.updates = append(m.updates, expected)
	m.orders[order.ID] = order
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, firestore.NotFound("orders.get", "order")
	}
	return o, nil
}

func (m *memOrders) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var page domain.CursorPage[domain.Order]
	for _, o := range m.orders {
		switch {
		case filter.CustomerID != "" && o.CustomerID != filter.CustomerID,
			filter.VendorID != "" && o.VendorID != filter.VendorID,
			filter.DriverID != "" && !o.AssignedTo(filter.DriverID),
			len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, o.Status),
			filter.Unassigned && o.DriverID != nil,
			filter.ExcludePickup && o.Pickup:
			continue
		}
		page.Items = append(page.Items, o)
	}
	slices.SortFunc(page.Items, func(a, b domain.Order) int { return cmp.Compare(a.ID, b.ID) })
	return page, nil
}

func (m *memOrders) CountByCouponAndCustomer(_ context.Context, couponID, customerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.couponUse[couponID+"|"+customerID]; ok {
		return n, nil
	}
	var n int64
	for _, o := range m.orders {
		if o.CouponID != nil && *o.CouponID == couponID && o.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

type memVendors struct {
	mu      sync.Mutex
	vendors map[string]domain.Vendor
	ratings map[string]domain.RatingSummary
}

func newMemVendors(vendors ...domain.Vendor) *memVendors {
	m := &memVendors{vendors: map[string]domain.Vendor{}, ratings: map[string]domain.RatingSummary{}}
	for _, v := range vendors {
		m.vendors[v.ID] = v
	}
	return m
}

func (m *memVendors) FindByID(_ context.Context, id string) (domain.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[id]
	if !ok {
		return domain.Vendor{}, firestore.NotFound("vendors.get", "vendor")
	}
	return v, nil
}

func (m *memVendors) FindByOwner(_ context.Context, ownerID string) (domain.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vendors {
		if v.OwnerID == ownerID {
			return v, nil
		}
	}
	return domain.Vendor{}, firestore.NotFound("vendors.byOwner", "vendor")
}

func (m *memVendors) UpdateRating(_ context.Context, vendorID string, summary domain.RatingSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[vendorID] = summary
	return nil
}

type memUsers struct {
	mu      sync.Mutex
	users   map[string]domain.User
	removed map[string][]string
}

func newMemUsers(users ...domain.User) *memUsers {
	m := &memUsers{users: map[string]domain.User{}, removed: map[string][]string{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) FindByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, firestore.NotFound("users.get", "user")
	}
	return u, nil
}

func (m *memUsers) FindByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) ListByType(_ context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.User
	for _, u := range m.users {
		if filter.Type == "" || u.Type == filter.Type {
			all = append(all, u)
		}
	}
	slices.SortFunc(all, func(a, b domain.User) int { return cmp.Compare(a.ID, b.ID) })
	start := 0
	if filter.Pagination.PageToken != "" {
		start = slices.IndexFunc(all, func(u domain.User) bool { return u.ID == filter.Pagination.PageToken }) + 1
	}
	size := filter.Pagination.PageSize
	if size <= 0 {
		size = len(all)
	}
	end := min(start+size, len(all))
	page := domain.CursorPage[domain.User]{Items: all[start:end]}
	if end < len(all) {
		page.NextPageToken = all[end-1].ID
	}
	return page, nil
}

func (m *memUsers) AddFCMToken(_ context.Context, userID, token string, max int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, firestore.NotFound("users.addToken", "user")
	}
	tokens := slices.DeleteFunc(slices.Clone(u.FCMTokens), func(t string) bool { return t == token })
	tokens = append(tokens, token)
	if len(tokens) > max {
		tokens = tokens[len(tokens)-max:]
	}
	u.FCMTokens = tokens
	m.users[userID] = u
	return tokens, nil
}

func (m *memUsers) RemoveFCMTokens(_ context.Context, userID string, tokens []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed[userID] = append(m.removed[userID], tokens...)
	u := m.users[userID]
	u.FCMTokens = slices.DeleteFunc(slices.Clone(u.FCMTokens), func(t string) bool { return slices.Contains(tokens, t) })
	m.users[userID] = u
	return nil
}

type memAddresses struct {
	addrs map[string]domain.Address
}

func newMemAddresses(addrs ...domain.Address) *memAddresses {
	m := &memAddresses{addrs: map[string]domain.Address{}}
	for _, a := range addrs {
		m.addrs[a.ID] = a
	}
	return m
}

func (m *memAddresses) Save(_ context.Context, addr domain.Address) (domain.Address, error) {
	if addr.IsDefault {
		m.clearDefault(addr.UserID)
	}
	m.addrs[addr.ID] = addr
	return addr, nil
}

func (m *memAddresses) SetDefault(_ context.Context, userID, id string) (domain.Address, error) {
	addr, ok := m.addrs[id]
	if !ok || addr.UserID != userID {
		return domain.Address{}, firestore.NotFound("addresses.setDefault", "address")
	}
	m.clearDefault(userID)
	addr.IsDefault = true
	m.addrs[id] = addr
	return addr, nil
}

func (m *memAddresses) clearDefault(userID string) {
	for id, a := range m.addrs {
		if a.UserID == userID && a.IsDefault {
			a.IsDefault = false
			m.addrs[id] = a
		}
	}
}

func (m *memAddresses) Delete(_ context.Context, userID, id string) error {
	if a, ok := m.addrs[id]; !ok || a.UserID != userID {
		return firestore.NotFound("addresses.delete", "address")
	}
	delete(m.addrs, id)
	return nil
}

func (m *memAddresses) FindByID(_ context.Context, userID, id string) (domain.Address, error) {
	a, ok := m.addrs[id]
	if !ok || a.UserID != userID {
		return domain.Address{}, firestore.NotFound("addresses.get", "address")
	}
	return a, nil
}

func (m *memAddresses) ListByUser(_ context.Context, userID string) ([]domain.Address, error) {
	var out []domain.Address
	for _, a := range m.addrs {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Address) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

type memRates struct {
	rates map[string]domain.Rate
}

func newMemRates() *memRates { return &memRates{rates: map[string]domain.Rate{}} }

func (m *memRates) Upsert(_ context.Context, rate domain.Rate) (domain.Rate, error) {
	if existing, ok := m.rates[rate.ID]; ok {
		rate.CreatedAt = existing.CreatedAt
	}
	m.rates[rate.ID] = rate
	return rate, nil
}

func (m *memRates) Delete(_ context.Context, vendorID, userID string) error {
	delete(m.rates, RateID(vendorID, userID))
	return nil
}

func (m *memRates) Find(_ context.Context, vendorID, userID string) (domain.Rate, error) {
	r, ok := m.rates[RateID(vendorID, userID)]
	if !ok {
		return domain.Rate{}, firestore.NotFound("rates.get", "rate")
	}
	return r, nil
}

func (m *memRates) Summarize(_ context.Context, vendorID string) (domain.RatingSummary, error) {
	var sum, count int64
	for _, r := range m.rates {
		if r.VendorID == vendorID {
			sum += int64(r.Value)
			count++
		}
	}
	if count == 0 {
		return domain.RatingSummary{}, nil
	}
	return domain.RatingSummary{Average: float64(sum) / float64(count), Count: count}, nil
}

// recordingDispatcher captures notifications synchronously.
type recordingDispatcher struct {
	mu         sync.Mutex
	sent       []Notification
	broadcasts []BroadcastCommand
	reject     bool
}

func (r *recordingDispatcher) Dispatch(_ context.Context, n Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return false
	}
	r.sent = append(r.sent, n)
	return true
}

func (r *recordingDispatcher) Broadcast(_ context.Context, cmd BroadcastCommand) error {
	r.broadcasts = append(r.broadcasts, cmd)
	return nil
}

func (r *recordingDispatcher) Start(context.Context)       {}
func (r *recordingDispatcher) Close(context.Context) error { return nil }

func (r *recordingDispatcher) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Event)
	}
	return out
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
