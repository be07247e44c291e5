package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront-cart/internal/domain"
	cartsvc "storefront-cart/internal/service/cart"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret = "test-secret"
	testUserID = "3c9b8f0e-6a59-4f7d-9a51-0f3b1c2d4e5f"
)

type stubCartService struct {
	getFn            func(ctx context.Context, userID string) (*domain.Cart, error)
	addFn            func(ctx context.Context, userID string, in cartsvc.AddInput) (*domain.CartLine, error)
	incFn            func(ctx context.Context, userID string, in cartsvc.ItemInput) (*domain.CartLine, error)
	decFn            func(ctx context.Context, userID string, in cartsvc.ItemInput) (*domain.CartLine, error)
	removeFn         func(ctx context.Context, userID string, in cartsvc.ItemInput) error
	clearFn          func(ctx context.Context, userID string) error
	deleteFn         func(ctx context.Context, userID string) error
	applyFn          func(ctx context.Context, userID string, in cartsvc.DiscountInput) (*domain.DiscountCode, error)
	removeDiscountFn func(ctx context.Context, userID string, in cartsvc.DiscountInput) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if s.getFn == nil {
		return &domain.Cart{UserID: userID}, nil
	}
	return s.getFn(ctx, userID)
}

func (s *stubCartService) AddToCart(ctx context.Context, userID string, in cartsvc.AddInput) (*domain.CartLine, error) {
	if s.addFn == nil {
		return &domain.CartLine{UserID: userID, ItemID: in.ItemID, Quantity: in.Quantity}, nil
	}
	return s.addFn(ctx, userID, in)
}

func (s *stubCartService) Increment(ctx context.Context, userID string, in cartsvc.ItemInput) (*domain.CartLine, error) {
	if s.incFn == nil {
		return &domain.CartLine{ItemID: in.ItemID, Quantity: 1}, nil
	}
	return s.incFn(ctx, userID, in)
}

func (s *stubCartService) Decrement(ctx context.Context, userID string, in cartsvc.ItemInput) (*domain.CartLine, error) {
	if s.decFn == nil {
		return nil, nil
	}
	return s.decFn(ctx, userID, in)
}

func (s *stubCartService) Remove(ctx context.Context, userID string, in cartsvc.ItemInput) error {
	if s.removeFn == nil {
		return nil
	}
	return s.removeFn(ctx, userID, in)
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFn == nil {
		return nil
	}
	return s.clearFn(ctx, userID)
}

func (s *stubCartService) DeleteCart(ctx context.Context, userID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, userID)
}

func (s *stubCartService) ApplyDiscount(ctx context.Context, userID string, in cartsvc.DiscountInput) (*domain.DiscountCode, error) {
	if s.applyFn == nil {
		return &domain.DiscountCode{Code: in.Code}, nil
	}
	return s.applyFn(ctx, userID, in)
}

func (s *stubCartService) RemoveDiscount(ctx context.Context, userID string, in cartsvc.DiscountInput) error {
	if s.removeDiscountFn == nil {
		return nil
	}
	return s.removeDiscountFn(ctx, userID, in)
}

type stubItemService struct {
	items []domain.Item
	err   error
}

func (s *stubItemService) List(context.Context) ([]domain.Item, error) { return s.items, s.err }

func (s *stubItemService) Get(_ context.Context, id string) (*domain.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, it := range s.items {
		if it.ID == id {
			return &it, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubItemService) Search(_ context.Context, q string) ([]domain.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	if strings.TrimSpace(q) == "" {
		return nil, domain.ErrInvalidInput
	}
	var out []domain.Item
	for _, it := range s.items {
		if strings.Contains(strings.ToLower(it.Title), strings.ToLower(q)) {
			out = append(out, it)
		}
	}
	return out, nil
}

type memoryIdempotency struct {
	mu        sync.Mutex
	keys      map[string]bool
	err       error
	forgotten []string
}

func (m *memoryIdempotency) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotency) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	m.forgotten = append(m.forgotten, key)
	return nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, deps Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.CartSvc == nil {
		deps.CartSvc = &stubCartService{}
	}
	if deps.ItemSvc == nil {
		deps.ItemSvc = &stubItemService{}
	}
	if deps.JWTSecret == "" {
		deps.JWTSecret = testSecret
	}
	router, err := buildRouter(zap.NewNop(), deps)
	require.NoError(t, err)
	return router
}

func signToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func authed(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, testUserID, time.Hour)}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
