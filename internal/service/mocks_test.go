package service

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

type mockRepository struct {
	m       sync.RWMutex
	carts   map[string]domain.Cart
	err     error
	gets    int
	deletes int
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: make(map[string]domain.Cart)}
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return &c, nil
}

func (m *mockRepository) SaveCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.carts[c.UserID] = *c
	return nil
}

func (m *mockRepository) DeleteCart(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.deletes++
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

func (m *mockRepository) stored(userID string) (domain.Cart, bool) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[userID]
	return c, ok
}

func (m *mockRepository) getCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.gets
}

type mockCache struct {
	m         sync.RWMutex
	cart      *domain.Cart
	err       error
	fillDelay time.Duration
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return m.err
}

func (m *mockCache) Fill(_ context.Context, _ string, cart *domain.Cart) (bool, error) {
	m.m.RLock()
	delay := m.fillDelay
	m.m.RUnlock()
	time.Sleep(delay)

	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.cart != nil {
		return false, nil
	}
	m.cart = cart
	return true, nil
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return m.err
}

func (m *mockCache) getCart() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

type mockBackend struct {
	m      sync.Mutex
	items  map[int64]domain.MenuItem
	groups map[int64][]domain.OptionGroup
	err    error

	orderErr    error
	orderCode   string
	orderCalls  int
	lastOrder   domain.PlaceOrderRequest
	lastToken   string
	beforeOrder func()
	afterFetch  func()
}

func (m *mockBackend) ListMenuItems(_ context.Context, token string) ([]domain.MenuItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.lastToken = token
	if m.err != nil {
		return nil, m.err
	}
	items := make([]domain.MenuItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	return items, nil
}

func (m *mockBackend) GetMenuItem(_ context.Context, token string, id int64) (domain.MenuItem, error) {
	m.m.Lock()
	m.lastToken = token
	item, ok := m.items[id]
	err := m.err
	hook := m.afterFetch
	m.m.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return domain.MenuItem{}, err
	}
	if !ok {
		return domain.MenuItem{}, errNotFoundBackend
	}
	return item, nil
}

func (m *mockBackend) ListOptionGroups(_ context.Context, _ string, menuItemID int64) ([]domain.OptionGroup, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.groups[menuItemID], nil
}

func (m *mockBackend) PlaceOrder(_ context.Context, token string, req domain.PlaceOrderRequest) (domain.PlaceOrderResult, error) {
	m.m.Lock()
	hook := m.beforeOrder
	m.m.Unlock()
	if hook != nil {
		hook()
	}

	m.m.Lock()
	defer m.m.Unlock()
	m.orderCalls++
	m.lastOrder = req
	m.lastToken = token
	if m.orderErr != nil {
		return domain.PlaceOrderResult{}, m.orderErr
	}
	return domain.PlaceOrderResult{OrderCode: m.orderCode}, nil
}

func (m *mockBackend) calls() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.orderCalls
}

type mockReceipts struct {
	m        sync.Mutex
	receipts map[string]domain.OrderReceipt
	saveErr  error
}

func newMockReceipts() *mockReceipts {
	return &mockReceipts{receipts: make(map[string]domain.OrderReceipt)}
}

func (m *mockReceipts) SaveReceipt(_ context.Context, r *domain.OrderReceipt) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.receipts[r.IdempotencyKey]; ok {
		return orders.ErrDuplicateKey
	}
	m.receipts[r.IdempotencyKey] = *r
	return nil
}

func (m *mockReceipts) GetByIdempotencyKey(_ context.Context, key string) (*domain.OrderReceipt, error) {
	m.m.Lock()
	defer m.m.Unlock()
	r, ok := m.receipts[key]
	if !ok {
		return nil, orders.ErrReceiptNotFound
	}
	return &r, nil
}

func (m *mockReceipts) ListByUser(_ context.Context, userID string, limit int) ([]domain.OrderReceipt, error) {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]domain.OrderReceipt, 0)
	for _, r := range m.receipts {
		if r.UserID == userID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}
