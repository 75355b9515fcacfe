package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/commerce"
	"storefront/internal/domain"
	"storefront/internal/reconcile"
	"storefront/internal/session"
)

type stubCommerce struct {
	mu sync.Mutex

	activeOrders []*domain.Order
	activeCalls  int
	activeErr    error

	removed   []string
	adjusted  map[string]int
	adjustErr map[string]error

	addOrder     *domain.Order
	addErr       error
	transitioned *domain.Order
	transitErr   error
}

func (s *stubCommerce) Token() string { return "commerce-tok" }

func (s *stubCommerce) ActiveOrder(context.Context) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	idx := s.activeCalls
	if idx >= len(s.activeOrders) {
		idx = len(s.activeOrders) - 1
	}
	s.activeCalls++
	if idx < 0 || s.activeOrders[idx] == nil {
		return nil, domain.ErrNoActiveOrder
	}
	return s.activeOrders[idx], nil
}

func (s *stubCommerce) AddItem(context.Context, string, int) (*domain.Order, error) {
	return s.addOrder, s.addErr
}

func (s *stubCommerce) AdjustLine(_ context.Context, lineID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adjusted == nil {
		s.adjusted = make(map[string]int)
	}
	s.adjusted[lineID] = quantity
	return s.adjustErr[lineID]
}

func (s *stubCommerce) RemoveLine(_ context.Context, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, lineID)
	return nil
}

func (s *stubCommerce) TransitionToPayment(context.Context) (*domain.Order, error) {
	return s.transitioned, s.transitErr
}

func (s *stubCommerce) Products(context.Context, int, int) ([]domain.Product, error) {
	return nil, nil
}

func (s *stubCommerce) ProductBySlug(context.Context, string) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}

type stubSessions struct {
	session *session.Session
}

func (s *stubSessions) Issue(context.Context) (*session.Session, error) {
	return &session.Session{Token: "fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubSessions) Resolve(_ context.Context, token string) (*session.Session, error) {
	if s.session == nil || s.session.Token != token {
		return nil, domain.ErrNotFound
	}
	return s.session, nil
}

func (s *stubSessions) Bind(_ context.Context, sess *session.Session, commerceToken, orderID string) error {
	if commerceToken != "" {
		sess.CommerceToken = commerceToken
	}
	if orderID != "" {
		sess.ActiveOrderID = &orderID
	}
	return nil
}

type stubContent struct {
	posts []domain.Post
}

func (s *stubContent) Posts(context.Context, int, int) ([]domain.Post, error) { return s.posts, nil }
func (s *stubContent) PostBySlug(context.Context, string) (*domain.Post, error) {
	return nil, domain.ErrNotFound
}
func (s *stubContent) PageBySlug(context.Context, string) (*domain.Page, error) {
	return nil, domain.ErrNotFound
}

func cartOrder(lines map[string]int) *domain.Order {
	order := &domain.Order{ID: "order-1", State: domain.OrderStateAddingItems}
	for _, id := range []string{"A", "B", "C"} {
		if quantity, ok := lines[id]; ok {
			order.Lines = append(order.Lines, domain.LineItem{ID: id, Quantity: quantity})
		}
	}
	return order
}

func newTestRouter(t *testing.T, sc *stubCommerce, sessions *stubSessions) (*gin.Engine, cache.OrderCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	orders := cache.NewMemory(time.Minute)
	deps := Deps{
		Commerce:   func(string) CommerceSession { return sc },
		Sessions:   sessions,
		Orders:     orders,
		Reconciler: reconcile.New(orders, zap.NewNop()),
		Content:    &stubContent{},
	}
	router, err := buildRouter(zap.NewNop(), nil, deps, []string{"http://localhost:3000"})
	require.NoError(t, err)
	return router, orders
}

func doRequest(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSession(t *testing.T) {
	router, _ := newTestRouter(t, &stubCommerce{}, &stubSessions{})

	rec := doRequest(router, http.MethodPost, "/api/session", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fresh", resp.Token)
}

func TestGetCart_RequiresSession(t *testing.T) {
	router, _ := newTestRouter(t, &stubCommerce{}, &stubSessions{})
	rec := doRequest(router, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/cart", "unknown", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetCart_CacheAside(t *testing.T) {
	sc := &stubCommerce{activeOrders: []*domain.Order{cartOrder(map[string]int{"A": 2})}}
	sessions := &stubSessions{session: &session.Session{Token: "s1", ExpiresAt: time.Now().Add(time.Hour)}}
	router, _ := newTestRouter(t, sc, sessions)

	rec := doRequest(router, http.MethodGet, "/api/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sc.activeCalls)
	require.NotNil(t, sessions.session.ActiveOrderID)
	assert.Equal(t, "order-1", *sessions.session.ActiveOrderID)
	assert.Equal(t, "commerce-tok", sessions.session.CommerceToken)

	// Second read is served from the cache.
	rec = doRequest(router, http.MethodGet, "/api/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sc.activeCalls)
}

func TestGetCart_NoActiveOrder(t *testing.T) {
	sc := &stubCommerce{}
	sessions := &stubSessions{session: &session.Session{Token: "s1", ExpiresAt: time.Now().Add(time.Hour)}}
	router, _ := newTestRouter(t, sc, sessions)

	rec := doRequest(router, http.MethodGet, "/api/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"order": null}`, rec.Body.String())
}

func TestUpdateCart_ReconcilesAndRefetches(t *testing.T) {
	before := cartOrder(map[string]int{"A": 2, "B": 1})
	after := cartOrder(map[string]int{"A": 5})
	sc := &stubCommerce{activeOrders: []*domain.Order{before, after}}
	sessions := &stubSessions{session: &session.Session{Token: "s1", ExpiresAt: time.Now().Add(time.Hour)}}
	router, _ := newTestRouter(t, sc, sessions)

	rec := doRequest(router, http.MethodPut, "/api/cart", "s1", map[string]interface{}{
		"lines": map[string]interface{}{"A": 5},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"B"}, sc.removed)
	assert.Equal(t, map[string]int{"A": 5}, sc.adjusted)
	assert.Equal(t, 2, sc.activeCalls, "success refetches the authoritative order")

	var resp struct {
		OK    bool `json:"ok"`
		Order *domain.Order
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
}

func TestUpdateCart_CoercesJunkQuantitiesToRemoval(t *testing.T) {
	sc := &stubCommerce{activeOrders: []*domain.Order{cartOrder(map[string]int{"A": 2, "B": 1, "C": 3})}}
	sessions := &stubSessions{session: &session.Session{Token: "s1", ExpiresAt: time.Now().Add(time.Hour)}}
	router, _ := newTestRouter(t, sc, sessions)

	// Non-numeric and fractional quantities are both removals, never adjusts.
	rec := doRequest(router, http.MethodPut, "/api/cart", "s1", map[string]interface{}{
		"lines": map[string]interface{}{"A": "oops", "B": 1, "C": 2.5},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"A", "C"}, sc.removed)
	assert.Empty(t, sc.adjusted)
}

func TestUpdateCart_DomainFailure(t *testing.T) {
	sc := &stubCommerce{
		activeOrders: []*domain.Order{cartOrder(map[string]int{"A": 1})},
		adjustErr: map[string]error{
			"A": &commerce.DomainError{Code: commerce.ErrCodeInsufficientStock, Message: "only 1 left"},
		},
	}
	sessions := &stubSessions{session: &session.Session{Token: "s1", ExpiresAt: time.Now().Add(time.Hour)}}
	router, _ := newTestRouter(t, sc, sessions)

	rec := doRequest(router, http.MethodPut, "/api/cart", "s1", map[string]interface{}{
		"lines": map[string]interface{}{"A": 3},
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, userMessages[commerce.ErrCodeInsufficientStock], resp.Message)
}

func TestAddCartLine_Validation(t *testing.T) {
	sessions := &stubSessions{session: &session.Session{Token: "s1", ExpiresAt: time.Now().Add(time.Hour)}}
	router, _ := newTestRouter(t, &stubCommerce{}, sessions)

	rec := doRequest(router, http.MethodPost, "/api/cart/lines", "s1", map[string]interface{}{
		"quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/cart/lines", "s1", map[string]interface{}{
		"productVariantId": "v1", "quantity": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddCartLine_CachesAndBinds(t *testing.T) {
	order := cartOrder(map[string]int{"A": 1})
	sc := &stubCommerce{addOrder: order}
	sessions := &stubSessions{session: &session.Session{Token: "s1", ExpiresAt: time.Now().Add(time.Hour)}}
	router, orders := newTestRouter(t, sc, sessions)

	rec := doRequest(router, http.MethodPost, "/api/cart/lines", "s1", map[string]interface{}{
		"productVariantId": "v1", "quantity": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cached, err := orders.Get(t.Context(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, order, cached)
	require.NotNil(t, sessions.session.ActiveOrderID)
}

func TestCheckout_ReconcilesThenTransitions(t *testing.T) {
	before := cartOrder(map[string]int{"A": 2})
	placed := cartOrder(map[string]int{"A": 3})
	placed.State = domain.OrderStateArrangingPayment
	sc := &stubCommerce{activeOrders: []*domain.Order{before}, transitioned: placed}
	sessions := &stubSessions{session: &session.Session{Token: "s1", ExpiresAt: time.Now().Add(time.Hour)}}
	router, _ := newTestRouter(t, sc, sessions)

	rec := doRequest(router, http.MethodPost, "/api/checkout", "s1", map[string]interface{}{
		"lines": map[string]interface{}{"A": 3},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"A": 3}, sc.adjusted)

	var resp struct {
		OK    bool `json:"ok"`
		Order struct {
			State string `json:"state"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, domain.OrderStateArrangingPayment, resp.Order.State)
}

func TestContentRoutes(t *testing.T) {
	router, _ := newTestRouter(t, &stubCommerce{}, &stubSessions{})

	rec := doRequest(router, http.MethodGet, "/api/content/posts/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/content/posts", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t, &stubCommerce{}, &stubSessions{})
	rec := doRequest(router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
