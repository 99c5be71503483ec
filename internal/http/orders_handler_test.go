package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trainbites/trainbites/internal/domain"
	"github.com/trainbites/trainbites/internal/service"
)

type mockFulfillmentService struct {
	order  *domain.Order
	orders []*domain.Order
	err    error

	lastTrigger  domain.Trigger
	lastOpts     service.TransitionOptions
	lastStatuses []domain.OrderStatus
}

func (m *mockFulfillmentService) GetOrder(_ context.Context, _ domain.Actor, _ string) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockFulfillmentService) ListCustomerOrders(context.Context, domain.Actor) ([]*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

func (m *mockFulfillmentService) ListRestaurantOrders(_ context.Context, _ domain.Actor, statuses []domain.OrderStatus) ([]*domain.Order, error) {
	m.lastStatuses = statuses
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

func (m *mockFulfillmentService) ApplyTrigger(_ context.Context, _ domain.Actor, _ string, trigger domain.Trigger, opts service.TransitionOptions) (*domain.Order, error) {
	m.lastTrigger = trigger
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func ordersRouter(fulfillment FulfillmentService) *chi.Mux {
	handler := NewOrdersHandler(fulfillment, 5*time.Second)
	r := chi.NewRouter()
	r.Use(ActorMiddleware)
	r.Get("/orders", handler.ListOrders)
	r.Get("/orders/{order_id}", handler.GetOrder)
	r.Post("/orders/{order_id}/status", handler.UpdateStatus)
	r.Get("/restaurant/orders", handler.ListRestaurantOrders)
	return r
}

func asSeller(req *http.Request) *http.Request {
	req.Header.Set("X-User-ID", "rest-1")
	req.Header.Set("X-User-Role", "seller")
	return req
}

func TestOrdersHandler_GetOrder(t *testing.T) {
	fulfillment := &mockFulfillmentService{order: &domain.Order{ID: "order-1", Status: domain.StatusConfirmed}}
	router := ordersRouter(fulfillment)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, asCustomer(httptest.NewRequest("GET", "/orders/order-1", nil)))

	require.Equal(t, http.StatusOK, recorder.Code)

	var response domain.Order
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "order-1", response.ID)
}

func TestOrdersHandler_GetOrder_ForbiddenFor403(t *testing.T) {
	router := ordersRouter(&mockFulfillmentService{err: service.ErrUnauthorized})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, asCustomer(httptest.NewRequest("GET", "/orders/order-1", nil)))

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestOrdersHandler_ListOrders(t *testing.T) {
	fulfillment := &mockFulfillmentService{orders: []*domain.Order{
		{ID: "order-1"}, {ID: "order-2"},
	}}
	router := ordersRouter(fulfillment)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, asCustomer(httptest.NewRequest("GET", "/orders", nil)))

	require.Equal(t, http.StatusOK, recorder.Code)

	var response OrdersResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Len(t, response.Orders, 2)
}

func TestOrdersHandler_ListRestaurantOrders_StatusFilter(t *testing.T) {
	fulfillment := &mockFulfillmentService{orders: []*domain.Order{{ID: "order-1"}}}
	router := ordersRouter(fulfillment)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, asSeller(
		httptest.NewRequest("GET", "/restaurant/orders?status=CONFIRMED,%20PREPARING", nil)))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []domain.OrderStatus{domain.StatusConfirmed, domain.StatusPreparing}, fulfillment.lastStatuses)
}

func TestOrdersHandler_UpdateStatus(t *testing.T) {
	fulfillment := &mockFulfillmentService{order: &domain.Order{ID: "order-1", Status: domain.StatusPreparing}}
	router := ordersRouter(fulfillment)

	body, _ := json.Marshal(StatusUpdateRequestDTO{Trigger: "START_PREPARING"})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, asSeller(
		httptest.NewRequest("POST", "/orders/order-1/status", bytes.NewReader(body))))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, domain.TriggerStartPreparing, fulfillment.lastTrigger)
}

func TestOrdersHandler_UpdateStatus_CarriesProofAndReason(t *testing.T) {
	fulfillment := &mockFulfillmentService{order: &domain.Order{ID: "order-1"}}
	router := ordersRouter(fulfillment)

	body, _ := json.Marshal(StatusUpdateRequestDTO{
		Trigger: "DELIVERED",
		Proof:   &domain.DeliveryProof{Note: "left with coach attendant"},
	})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, asSeller(
		httptest.NewRequest("POST", "/orders/order-1/status", bytes.NewReader(body))))

	require.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, fulfillment.lastOpts.Proof)
	assert.Equal(t, "left with coach attendant", fulfillment.lastOpts.Proof.Note)

	body, _ = json.Marshal(StatusUpdateRequestDTO{Trigger: "CANCEL", Reason: "kitchen closed"})
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, asSeller(
		httptest.NewRequest("POST", "/orders/order-1/status", bytes.NewReader(body))))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "kitchen closed", fulfillment.lastOpts.Reason)
}

func TestOrdersHandler_UpdateStatus_MissingTrigger(t *testing.T) {
	router := ordersRouter(&mockFulfillmentService{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, asSeller(
		httptest.NewRequest("POST", "/orders/order-1/status", bytes.NewReader([]byte(`{}`)))))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestOrdersHandler_UpdateStatus_ConflictMapping(t *testing.T) {
	for _, err := range []error{service.ErrInvalidStateTransition, service.ErrConflict} {
		router := ordersRouter(&mockFulfillmentService{err: err})

		body, _ := json.Marshal(StatusUpdateRequestDTO{Trigger: "MARK_READY"})
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, asSeller(
			httptest.NewRequest("POST", "/orders/order-1/status", bytes.NewReader(body))))

		assert.Equal(t, http.StatusConflict, recorder.Code)
	}
}
