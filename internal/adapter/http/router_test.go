package http_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aq2208/stitch-order-api/configs"
	httpapi "github.com/aq2208/stitch-order-api/internal/adapter/http"
	"github.com/aq2208/stitch-order-api/internal/adapter/http/middleware"
	"github.com/aq2208/stitch-order-api/internal/adapter/repo"
	"github.com/aq2208/stitch-order-api/internal/draft"
	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type files struct{}

func (files) Put(_ context.Context, key string, _ usecase.Upload) (string, error) {
	return "https://files.test/" + key, nil
}

type approver struct{}

func (approver) Assess(context.Context, usecase.Upload) (usecase.Verdict, error) {
	return usecase.Verdict{Approved: true}, nil
}

type idem struct {
	mu   sync.Mutex
	seen map[string]string
}

func (s *idem) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[scope+"|"+key]; ok {
		return false, nil
	}
	s.seen[scope+"|"+key] = ""
	return true, nil
}

func (s *idem) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[scope+"|"+key] = value
	return nil
}

func (s *idem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.seen[scope+"|"+key]
	return v, ok && v != "", nil
}

func testConfig() configs.Config {
	var cfg configs.Config
	cfg.Security.JWTSecret = "test-secret"
	cfg.Security.Issuer = "stitch-order-api"
	cfg.Security.Audience = "stitch-clients"
	cfg.Security.TTL = time.Hour
	cfg.Security.DevTokens = true
	cfg.HTTP.MaxBodyBytes = 1 << 20
	return cfg
}

func seedOrder() *entity.Order {
	item := func(id, group string) entity.OrderItem {
		return entity.OrderItem{
			ID: id, OrderID: "o1", GroupID: group, SKU: "HOODIE", Quantity: 1,
			Slots: []entity.EmbroiderySlot{{ID: id + "-s0", ItemID: id, Status: entity.SlotEmpty}},
		}
	}
	return &entity.Order{
		ID:        "o1",
		Customer:  entity.Customer{Name: "Ana", Email: "ana@example.com"},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Status:    entity.StatusPendingUpload,
		Items:     []entity.OrderItem{item("i1", "g"), item("i2", "g")},
	}
}

func newRouter(t *testing.T, cfg configs.Config) *gin.Engine {
	t.Helper()
	store := repo.NewMemoryStore()
	store.AddStaff(
		entity.StaffMember{ID: "designer-1", Role: entity.RoleDesigner},
		entity.StaffMember{ID: "embroiderer-1", Role: entity.RoleEmbroiderer},
	)
	require.NoError(t, store.CreateOrder(context.Background(), seedOrder()))

	coord := usecase.NewCoordinator(usecase.Deps{
		Store:    store,
		Staff:    store,
		Files:    files{},
		Assessor: approver{},
	})
	return httpapi.NewRouter(httpapi.RouterDeps{
		Config:      cfg,
		Orders:      httpapi.NewOrderHandler(coord, usecase.NewOrderQuery(store, nil), usecase.NewDrafts(coord, draft.NewRegistry()), 0, 0),
		Tokens:      httpapi.NewTokenHandler(cfg),
		Authz:       middleware.NewAuthz(cfg, usecase.NewIdentityResolver(store, nil, 0)),
		Idempotency: &idem{seen: map[string]string{}},
	})
}

func do(r http.Handler, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func tokenFor(t *testing.T, r http.Handler, subject, email string) string {
	t.Helper()
	w := do(r, http.MethodPost, "/v1/token", "", map[string]string{"subject": subject, "email": email})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tok, _ := decode(t, w)["access_token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

var dataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))

func TestHealthz(t *testing.T) {
	r := newRouter(t, testConfig())
	w := do(r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	r := newRouter(t, testConfig())
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/v1/orders", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/v1/orders", "not-a-jwt", nil).Code)
}

func TestTokenEndpointOnlyInDevMode(t *testing.T) {
	cfg := testConfig()
	cfg.Security.DevTokens = false
	r := newRouter(t, cfg)
	w := do(r, http.MethodPost, "/v1/token", "", map[string]string{"subject": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomerUploadFlow(t *testing.T) {
	r := newRouter(t, testConfig())
	tok := tokenFor(t, r, "cust-1", "ana@example.com")

	w := do(r, http.MethodGet, "/v1/orders", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders, _ := decode(t, w)["orders"].([]any)
	assert.Len(t, orders, 1)

	w = do(r, http.MethodPost, "/v1/orders/o1/slots/i1-s0/photo", tok, map[string]string{"image": dataURI})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, string(entity.StatusWaitingForDesign), body["orderStatus"])
	verdict, _ := body["verdict"].(map[string]any)
	assert.Equal(t, true, verdict["approved"])

	w = do(r, http.MethodGet, "/v1/orders/o1", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode(t, w)
	assert.Equal(t, "designer-1", order["designerId"])
	assert.Contains(t, order, "sleeveCredits")
	readiness, _ := order["readiness"].(map[string]any)
	assert.Equal(t, "all-approved", readiness["i1"])
	assert.Equal(t, "all-approved", readiness["i2"])
}

func TestErrorMapping(t *testing.T) {
	r := newRouter(t, testConfig())
	cust := tokenFor(t, r, "cust-1", "ana@example.com")
	other := tokenFor(t, r, "cust-2", "bo@example.com")
	designer := tokenFor(t, r, "designer-1", "")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"bad data uri", http.MethodPost, "/v1/orders/o1/slots/i1-s0/photo", cust, map[string]string{"image": "%%%"}, http.StatusBadRequest},
		{"unknown position", http.MethodPatch, "/v1/orders/o1/slots/i1-s0", cust, map[string]string{"position": "ELBOW"}, http.StatusUnprocessableEntity},
		{"designer uploads", http.MethodPost, "/v1/orders/o1/slots/i1-s0/photo", designer, map[string]string{"image": dataURI}, http.StatusForbidden},
		{"foreign order hidden", http.MethodGet, "/v1/orders/o1", other, nil, http.StatusNotFound},
		{"review without verdict", http.MethodPost, "/v1/orders/o1/review", cust, map[string]string{"feedback": "hm"}, http.StatusBadRequest},
		{"dispatch too early", http.MethodPost, "/v1/orders/o1/status", designer, map[string]string{"status": "DISPATCHED"}, http.StatusForbidden},
		{"bad evidence slot", http.MethodPost, "/v1/orders/o1/evidence/x", designer, map[string]string{"image": dataURI}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestIdempotencyKeyReplay(t *testing.T) {
	r := newRouter(t, testConfig())
	tok := tokenFor(t, r, "cust-1", "ana@example.com")
	body := map[string]any{"petName": "Rex"}

	w := do(r, http.MethodPatch, "/v1/orders/o1/slots/i1-s0", tok, body, middleware.IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPatch, "/v1/orders/o1/slots/i1-s0", tok, body, middleware.IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.EqualValues(t, http.StatusOK, decode(t, w)["previousStatus"])

	w = do(r, http.MethodPatch, "/v1/orders/o1/slots/i1-s0", tok, body, middleware.IdempotencyHeader, "k-2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDraftEndpoints(t *testing.T) {
	r := newRouter(t, testConfig())
	tok := tokenFor(t, r, "cust-1", "ana@example.com")

	w := do(r, http.MethodPatch, "/v1/orders/o1/draft/slots/i1-s0", tok, map[string]string{"petName": "Rex"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["hasPendingChanges"])

	w = do(r, http.MethodPost, "/v1/orders/o1/finalize", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodDelete, "/v1/orders/o1/draft", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "discard needs confirmation")

	w = do(r, http.MethodPost, "/v1/orders/o1/draft/commit", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["hasPendingChanges"])

	w = do(r, http.MethodGet, "/v1/orders/o1", tok, nil)
	items, _ := decode(t, w)["items"].([]any)
	require.Len(t, items, 2)
	for _, it := range items {
		slots, _ := it.(map[string]any)["slots"].([]any)
		require.Len(t, slots, 1)
		assert.Equal(t, "Rex", slots[0].(map[string]any)["petName"])
	}

	w = do(r, http.MethodDelete, "/v1/orders/o1/draft?confirm=true", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
