package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) cart(args mock.Arguments) (*model.CartResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CartResponse), args.Error(1)
}

func (m *MockCartService) Get(ctx context.Context, sessionID string) (*model.CartResponse, error) {
	return m.cart(m.Called(ctx, sessionID))
}

func (m *MockCartService) AddItem(ctx context.Context, sessionID, productRef string, quantity int) (*model.CartResponse, error) {
	return m.cart(m.Called(ctx, sessionID, productRef, quantity))
}

func (m *MockCartService) UpdateQuantity(ctx context.Context, sessionID, productRef string, quantity int) (*model.CartResponse, error) {
	return m.cart(m.Called(ctx, sessionID, productRef, quantity))
}

func (m *MockCartService) RemoveItem(ctx context.Context, sessionID, productRef string) (*model.CartResponse, error) {
	return m.cart(m.Called(ctx, sessionID, productRef))
}

func (m *MockCartService) Clear(ctx context.Context, sessionID string) (*model.CartResponse, error) {
	return m.cart(m.Called(ctx, sessionID))
}

func (m *MockCartService) Watch(ctx context.Context, sessionID string) (<-chan *model.CartResponse, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *model.CartResponse), args.Error(1)
}

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Checkout(ctx context.Context, customerRef, sessionID string) (*model.CheckoutResponse, error) {
	args := m.Called(ctx, customerRef, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutResponse), args.Error(1)
}

func (m *MockCheckoutService) Confirm(ctx context.Context, customerRef, sessionID, gatewaySessionRef string) (*model.Order, error) {
	args := m.Called(ctx, customerRef, sessionID, gatewaySessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockCheckoutService) Cancel(ctx context.Context, customerRef, gatewaySessionRef string) (*model.Order, error) {
	args := m.Called(ctx, customerRef, gatewaySessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockCheckoutService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	args := m.Called(ctx, payload, signature)
	return args.Error(0)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) order(args mock.Arguments) (*model.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) RecordPending(ctx context.Context, customerRef string, items []model.OrderItem, totals model.Totals, gatewaySessionRef string) (*model.Order, error) {
	return m.order(m.Called(ctx, customerRef, items, totals, gatewaySessionRef))
}

func (m *MockOrderService) ConfirmPaid(ctx context.Context, gatewaySessionRef string) (*model.Order, error) {
	return m.order(m.Called(ctx, gatewaySessionRef))
}

func (m *MockOrderService) Cancel(ctx context.Context, gatewaySessionRef string) (*model.Order, error) {
	return m.order(m.Called(ctx, gatewaySessionRef))
}

func (m *MockOrderService) FindByCustomer(ctx context.Context, customerRef string) ([]model.Order, error) {
	args := m.Called(ctx, customerRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, customerRef string, id uuid.UUID) (*model.Order, error) {
	return m.order(m.Called(ctx, customerRef, id))
}

func (m *MockOrderService) GetBySessionRef(ctx context.Context, gatewaySessionRef string) (*model.Order, error) {
	return m.order(m.Called(ctx, gatewaySessionRef))
}

func (m *MockOrderService) HasPurchased(ctx context.Context, customerRef, productRef string) (bool, error) {
	args := m.Called(ctx, customerRef, productRef)
	return args.Bool(0), args.Error(1)
}

// MockReviewService is a mock implementation of ReviewService.
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Submit(ctx context.Context, customerRef string, req *model.ReviewRequest) (*model.Review, error) {
	args := m.Called(ctx, customerRef, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *MockReviewService) Moderate(ctx context.Context, id uuid.UUID, req *model.ModerationRequest) (*model.Review, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *MockReviewService) ListForProduct(ctx context.Context, productRef string, limit, offset int) ([]model.Review, error) {
	args := m.Called(ctx, productRef, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Review), args.Error(1)
}

func (m *MockReviewService) ListFeatured(ctx context.Context, limit int) ([]model.Review, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Review), args.Error(1)
}

// testRequest describes a request as the router would hand it to a handler.
type testRequest struct {
	method   string
	target   string
	body     string
	params   map[string]string
	customer string
	session  string
}

// build returns the request with chi URL params, identity and a request id
// already in its context.
func (tr testRequest) build() *http.Request {
	var body io.Reader
	if tr.body != "" {
		body = strings.NewReader(tr.body)
	}
	req := httptest.NewRequest(tr.method, tr.target, body)

	rctx := chi.NewRouteContext()
	for key, value := range tr.params {
		rctx.URLParams.Add(key, value)
	}

	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, chimw.RequestIDKey, "req-1")
	ctx = middleware.WithIdentity(ctx, tr.customer, tr.session)
	return req.WithContext(ctx)
}
