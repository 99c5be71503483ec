package service

import (
	"context"
	"sync"
	"time"

	"github.com/trainbites/trainbites/internal/cache"
	"github.com/trainbites/trainbites/internal/catalog"
	"github.com/trainbites/trainbites/internal/domain"
	"github.com/trainbites/trainbites/internal/events"
	"github.com/trainbites/trainbites/internal/payment"
	"github.com/trainbites/trainbites/internal/repository"
)

// mockCartRepo implements repository.CartRepository over an in-memory map.
type mockCartRepo struct {
	m     sync.Mutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: map[string]*domain.Cart{}}
}

func (r *mockCartRepo) GetCart(_ context.Context, customerID string) (*domain.Cart, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	cart, ok := r.carts[customerID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *cart
	cp.Items = append([]domain.CartItem(nil), cart.Items...)
	return &cp, nil
}

func (r *mockCartRepo) UpsertCart(_ context.Context, cart *domain.Cart) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *cart
	cp.Items = append([]domain.CartItem(nil), cart.Items...)
	r.carts[cart.CustomerID] = &cp
	return nil
}

func (r *mockCartRepo) AddItem(_ context.Context, customerID string, item domain.CartItem) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	cart, ok := r.carts[customerID]
	if !ok {
		cart = &domain.Cart{CustomerID: customerID, CreatedAt: time.Now()}
		r.carts[customerID] = cart
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i].Quantity += item.Quantity
			cart.Items[i].UnitPrice = item.UnitPrice
			return nil
		}
	}
	cart.Items = append(cart.Items, item)
	return nil
}

func (r *mockCartRepo) SetItemQuantity(_ context.Context, customerID, productID string, quantity int) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	cart, ok := r.carts[customerID]
	if !ok {
		return repository.ErrCartNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (r *mockCartRepo) RemoveItem(_ context.Context, customerID, productID string) error {
	return r.RemoveItems(context.Background(), customerID, []string{productID})
}

func (r *mockCartRepo) RemoveItems(_ context.Context, customerID string, productIDs []string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	cart, ok := r.carts[customerID]
	if !ok {
		return nil
	}
	drop := map[string]bool{}
	for _, id := range productIDs {
		drop[id] = true
	}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if !drop[item.ProductID] {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	return nil
}

func (r *mockCartRepo) ClearCart(_ context.Context, customerID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	if cart, ok := r.carts[customerID]; ok {
		cart.Items = []domain.CartItem{}
	}
	return nil
}

// mockCache implements cache.CartCache.
type mockCache struct {
	m     sync.Mutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (c *mockCache) Get(_ context.Context, customerID string) (*domain.Cart, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	cart, ok := c.carts[customerID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (c *mockCache) Set(_ context.Context, customerID string, cart *domain.Cart) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.carts[customerID] = cart
	return c.err
}

func (c *mockCache) Delete(_ context.Context, customerID string) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.carts, customerID)
	return c.err
}

func (c *mockCache) getCart(customerID string) *domain.Cart {
	c.m.Lock()
	defer c.m.Unlock()
	return c.carts[customerID]
}

// mockCatalog implements catalog.Catalog over a fixed product map.
type mockCatalog struct {
	products map[string]*catalog.Product
	err      error
}

func (c *mockCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	product, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return product, nil
}

func (c *mockCatalog) GetProducts(_ context.Context, ids []string) (map[string]*catalog.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	found := map[string]*catalog.Product{}
	for _, id := range ids {
		if product, ok := c.products[id]; ok {
			found[id] = product
		}
	}
	return found, nil
}

// mockOrderRepo implements repository.OrderRepository with the same
// compare-and-set semantics as the real store, so races can be exercised
// with plain goroutines.
type mockOrderRepo struct {
	m         sync.Mutex
	orders    map[string]*domain.Order
	createErr error
	updateErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: map[string]*domain.Order{}}
}

func (r *mockOrderRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.orders {
		if existing.CustomerID == order.CustomerID && existing.IdempotencyKey == order.IdempotencyKey {
			return repository.ErrDuplicateIdempotencyKey
		}
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *mockOrderRepo) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *mockOrderRepo) GetOrderByIdempotencyKey(_ context.Context, customerID, key string) (*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, order := range r.orders {
		if order.CustomerID == customerID && order.IdempotencyKey == key {
			cp := *order
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (r *mockOrderRepo) GetOrderByPaymentRef(_ context.Context, ref string) (*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, order := range r.orders {
		if order.PaymentRef == ref {
			cp := *order
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (r *mockOrderRepo) ListOrdersByCustomer(_ context.Context, customerID string) ([]*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	var out []*domain.Order
	for _, order := range r.orders {
		if order.CustomerID == customerID {
			cp := *order
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockOrderRepo) ListOrdersByRestaurant(_ context.Context, restaurantID string, statuses []domain.OrderStatus) ([]*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	var out []*domain.Order
	for _, order := range r.orders {
		if order.RestaurantID != restaurantID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if order.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		cp := *order
		out = append(out, &cp)
	}
	return out, nil
}

func (r *mockOrderRepo) ListAvailableOrders(_ context.Context, excludeIDs []string) ([]*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	excluded := map[string]bool{}
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var out []*domain.Order
	for _, order := range r.orders {
		if order.Status == domain.StatusReadyForPickup && order.AgentID == "" && !excluded[order.ID] {
			cp := *order
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockOrderRepo) SetPaymentHandle(_ context.Context, orderID, paymentRef, handle string) error {
	r.m.Lock()
	defer r.m.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.PaymentRef = paymentRef
	order.PaymentHandle = handle
	return nil
}

func (r *mockOrderRepo) UpdateOrderStatus(_ context.Context, orderID string, update repository.StatusUpdate) (*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	order, ok := r.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	matched := false
	for _, from := range update.From {
		if order.Status == from {
			matched = true
		}
	}
	if !matched || (update.AssignAgentID != "" && order.AgentID != "") {
		return nil, repository.ErrStatusConflict
	}
	order.Status = update.To
	if update.AssignAgentID != "" {
		order.AgentID = update.AssignAgentID
	}
	if update.Proof != nil {
		order.Proof = update.Proof
	}
	if update.CancellationReason != "" {
		order.CancellationReason = update.CancellationReason
	}
	if order.StatusTimestamps == nil {
		order.StatusTimestamps = map[domain.OrderStatus]time.Time{}
	}
	order.StatusTimestamps[update.To] = time.Now()
	order.UpdatedAt = time.Now()
	cp := *order
	return &cp, nil
}

func (r *mockOrderRepo) CancelStalePendingPayments(_ context.Context, before time.Time, reason string) (int64, error) {
	r.m.Lock()
	defer r.m.Unlock()
	var n int64
	for _, order := range r.orders {
		if order.Status == domain.StatusPendingPayment && order.CreatedAt.Before(before) {
			order.Status = domain.StatusCancelled
			order.CancellationReason = reason
			n++
		}
	}
	return n, nil
}

func (r *mockOrderRepo) getOrder(id string) *domain.Order {
	r.m.Lock()
	defer r.m.Unlock()
	if order, ok := r.orders[id]; ok {
		cp := *order
		return &cp
	}
	return nil
}

func (r *mockOrderRepo) putOrder(order *domain.Order) {
	r.m.Lock()
	defer r.m.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
}

// mockAgentRepo implements repository.AgentRepository with the claim CAS
// guarded by the same mutex the order repo uses for its updates.
type mockAgentRepo struct {
	m      sync.Mutex
	agents map[string]*domain.Agent
}

func newMockAgentRepo() *mockAgentRepo {
	return &mockAgentRepo{agents: map[string]*domain.Agent{}}
}

func (r *mockAgentRepo) GetAgent(_ context.Context, id string) (*domain.Agent, error) {
	r.m.Lock()
	defer r.m.Unlock()
	agent, ok := r.agents[id]
	if !ok {
		return nil, repository.ErrAgentNotFound
	}
	cp := *agent
	return &cp, nil
}

func (r *mockAgentRepo) UpsertAgent(_ context.Context, agent *domain.Agent) error {
	r.m.Lock()
	defer r.m.Unlock()
	cp := *agent
	r.agents[agent.ID] = &cp
	return nil
}

func (r *mockAgentRepo) SetAvailability(_ context.Context, id string, available bool) error {
	r.m.Lock()
	defer r.m.Unlock()
	agent, ok := r.agents[id]
	if !ok {
		return repository.ErrAgentNotFound
	}
	agent.IsAvailable = available
	return nil
}

func (r *mockAgentRepo) ClaimActiveOrder(_ context.Context, agentID, orderID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return repository.ErrAgentNotFound
	}
	if !agent.IsAvailable || agent.ActiveOrderID != "" {
		return repository.ErrAgentBusy
	}
	agent.ActiveOrderID = orderID
	return nil
}

func (r *mockAgentRepo) ReleaseActiveOrder(_ context.Context, agentID, orderID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return repository.ErrAgentNotFound
	}
	if agent.ActiveOrderID == orderID {
		agent.ActiveOrderID = ""
	}
	return nil
}

func (r *mockAgentRepo) RecordDecline(_ context.Context, agentID string, decline domain.Decline) error {
	r.m.Lock()
	defer r.m.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return repository.ErrAgentNotFound
	}
	decline.DeclinedAt = time.Now()
	agent.Declines = append(agent.Declines, decline)
	return nil
}

func (r *mockAgentRepo) getAgent(id string) *domain.Agent {
	r.m.Lock()
	defer r.m.Unlock()
	if agent, ok := r.agents[id]; ok {
		cp := *agent
		return &cp
	}
	return nil
}

// mockPaymentProvider implements payment.Provider and records every
// intent it creates.
type mockPaymentProvider struct {
	m       sync.Mutex
	intents []string
	err     error
}

func (p *mockPaymentProvider) CreateIntent(_ context.Context, orderID string, _ int64, _ string) (*payment.Intent, error) {
	p.m.Lock()
	defer p.m.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.intents = append(p.intents, orderID)
	return &payment.Intent{
		Reference:    "pi_" + orderID,
		ClientSecret: "pi_" + orderID + "_secret",
	}, nil
}

func (p *mockPaymentProvider) intentCount() int {
	p.m.Lock()
	defer p.m.Unlock()
	return len(p.intents)
}

// capturePublisher records published events.
type capturePublisher struct {
	m      sync.Mutex
	events []*events.OrderEvent
}

func (p *capturePublisher) PublishOrderEvent(_ context.Context, event *events.OrderEvent) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) published() []*events.OrderEvent {
	p.m.Lock()
	defer p.m.Unlock()
	return append([]*events.OrderEvent(nil), p.events...)
}
