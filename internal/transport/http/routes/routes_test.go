package routes_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
	"github.com/arklim/maintenance-service/internal/infra/config"
	"github.com/arklim/maintenance-service/internal/infra/security"
	"github.com/arklim/maintenance-service/internal/transport/http/middleware"
	httproutes "github.com/arklim/maintenance-service/internal/transport/http/routes"
	"github.com/arklim/maintenance-service/internal/usecase"
)

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := zap.NewDevelopment()
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	r := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: logger,
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

type failingChecker struct{}

func (failingChecker) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadinessReportsUnavailableDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(httproutes.Dependencies{
		Config:   &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger:   zaptest.NewLogger(t),
		Database: failingChecker{},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "connection refused") {
		t.Fatalf("expected failing check in body, got %s", w.Body.String())
	}
}

// memStore is a minimal in-memory repository for a single resource type.
type memStore[T any, PT interface {
	*T
	domain.Owned
}] struct {
	mu    sync.Mutex
	items map[string]T
	apply func(*T, domain.Patch)
}

func newMemStore[T any, PT interface {
	*T
	domain.Owned
}](apply func(*T, domain.Patch), seed ...T) *memStore[T, PT] {
	s := &memStore[T, PT]{items: make(map[string]T), apply: apply}
	for i := range seed {
		item := seed[i]
		s.items[PT(&item).ResourceID()] = item
	}
	return s
}

func (s *memStore[T, PT]) FindByID(_ context.Context, id string) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (s *memStore[T, PT]) FindAllByOwner(_ context.Context, ownerID string) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0)
	for _, item := range s.items {
		item := item
		if PT(&item).OwnerOf() == ownerID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *memStore[T, PT]) FindAll(_ context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out, nil
}

func (s *memStore[T, PT]) Insert(_ context.Context, payload *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[PT(payload).ResourceID()] = *payload
	return nil
}

func (s *memStore[T, PT]) Update(_ context.Context, id string, patch domain.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.apply != nil {
		s.apply(&item, patch)
	}
	s.items[id] = item
	return nil
}

func (s *memStore[T, PT]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *memStore[T, PT]) OwnerOf(ctx context.Context, id string) (string, error) {
	item, err := s.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return PT(item).OwnerOf(), nil
}

type workOrderStore struct {
	*memStore[domain.WorkOrder, *domain.WorkOrder]
}

func (s workOrderStore) ListScheduledBetween(ctx context.Context, ownerID string, rng domain.ScheduleRange) ([]domain.WorkOrder, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return usecase.FilterScheduled(all, ownerID, rng), nil
}

func (s workOrderStore) Schedule(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if order.Status.Terminal() {
		return domain.ErrTerminalWorkOrder
	}
	order.ScheduledAt = &at
	order.Status = domain.WorkOrderApproved
	s.items[id] = order
	return nil
}

type discardAudit struct {
	mu    sync.Mutex
	count int
}

func (d *discardAudit) Record(context.Context, string, string, string, map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
}

func (d *discardAudit) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

type testServer struct {
	router   *gin.Engine
	verifier *security.TokenVerifier
	audit    *discardAudit
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	verifier, err := security.NewTokenVerifier(config.JWTSettings{Secret: "routes-test-secret"})
	if err != nil {
		t.Fatalf("NewTokenVerifier returned error: %v", err)
	}

	audit := &discardAudit{}
	gate := usecase.NewGate(audit, log)
	filter, err := usecase.NewIsolationFilter(audit, log).WithOwnerCache(32)
	if err != nil {
		t.Fatalf("WithOwnerCache returned error: %v", err)
	}

	scheduled := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	orders := workOrderStore{newMemStore[domain.WorkOrder, *domain.WorkOrder](func(w *domain.WorkOrder, p domain.Patch) {
		if status, ok := p["status"].(string); ok {
			w.Status = domain.WorkOrderStatus(status)
		}
		if title, ok := p["title"].(string); ok {
			w.Title = title
		}
	},
		domain.WorkOrder{ID: "42", OwnerID: "client-a", Title: "Boiler", Status: domain.WorkOrderPending, ScheduledAt: &scheduled},
		domain.WorkOrder{ID: "43", OwnerID: "tech-a", Title: "Done", Status: domain.WorkOrderCompleted},
	)}

	equipment := newMemStore[domain.Equipment, *domain.Equipment](func(e *domain.Equipment, p domain.Patch) {
		if name, ok := p["name"].(string); ok {
			e.Name = name
		}
	}, domain.Equipment{ID: "eq-1", OwnerID: "tech-a", Name: "Chiller"})

	services := httproutes.ServiceSet{
		Gate:       gate,
		WorkOrders: usecase.NewResourceService[domain.WorkOrder, *domain.WorkOrder](domain.ResourceWorkOrder, orders, gate, filter, audit, log),
		Equipment:  usecase.NewResourceService[domain.Equipment, *domain.Equipment](domain.ResourceEquipment, equipment, gate, filter, audit, log),
		Schedule:   usecase.NewSchedulingService(orders, gate, filter, audit, time.UTC, log),
	}

	router := httproutes.Register(httproutes.Dependencies{
		Config:   &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger:   log,
		Verifier: verifier,
		Services: services,
	})

	return &testServer{router: router, verifier: verifier, audit: audit}
}

func (s *testServer) do(t *testing.T, method, path string, actor *domain.Actor, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if actor != nil {
		token, err := s.verifier.Issue(*actor, time.Hour)
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestWorkOrderAccessOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	clientA := &domain.Actor{ID: "client-a", Role: domain.RoleClient}
	adminB := &domain.Actor{ID: "admin-b", Role: domain.RoleAdmin}

	if w := srv.do(t, http.MethodGet, "/api/v1/work-orders/42", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous request: expected 401, got %d", w.Code)
	}

	if w := srv.do(t, http.MethodGet, "/api/v1/work-orders/42", clientA, ""); w.Code != http.StatusForbidden {
		t.Fatalf("client on read:work-orders: expected 403, got %d", w.Code)
	}
	if got := srv.audit.Count(); got != 1 {
		t.Fatalf("expected exactly one audit record, got %d", got)
	}

	w := srv.do(t, http.MethodGet, "/api/v1/my/work-orders/42", clientA, "")
	if w.Code != http.StatusOK {
		t.Fatalf("client on own work order: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var order domain.WorkOrder
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("decode work order: %v", err)
	}
	if order.ID != "42" || order.OwnerID != "client-a" {
		t.Fatalf("unexpected work order %+v", order)
	}

	if w := srv.do(t, http.MethodGet, "/api/v1/work-orders/42", adminB, ""); w.Code != http.StatusOK {
		t.Fatalf("admin read: expected 200, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/api/v1/work-orders/missing", adminB, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing record: expected 404, got %d", w.Code)
	}
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	techB := &domain.Actor{ID: "tech-b", Role: domain.RoleTechnician}

	w := srv.do(t, http.MethodGet, "/api/v1/equipment", techB, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var list struct {
		Items []domain.Equipment `json:"items"`
		Count int                `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 0 || len(list.Items) != 0 {
		t.Fatalf("tech-b must not see tech-a's equipment, got %+v", list.Items)
	}

	if w := srv.do(t, http.MethodPatch, "/api/v1/equipment/eq-1", techB, `{"name":"mine"}`); w.Code != http.StatusForbidden {
		t.Fatalf("foreign patch: expected 403, got %d", w.Code)
	}

	w = srv.do(t, http.MethodPost, "/api/v1/equipment", techB, `{"owner_id":"tech-a","name":"Pump","client_id":"c-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created domain.Equipment
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.OwnerID != "tech-b" || created.ID == "" {
		t.Fatalf("create must be owned by the caller, got %+v", created)
	}

	if w := srv.do(t, http.MethodPatch, "/api/v1/equipment/"+created.ID, techB, `{"owner_id":"tech-a"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("ownership-only patch: expected 400, got %d", w.Code)
	}
}

func TestScheduleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	techA := &domain.Actor{ID: "tech-a", Role: domain.RoleTechnician}
	admin := &domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	w := srv.do(t, http.MethodGet, "/api/v1/schedule?date=2025-03-10", admin, "")
	if w.Code != http.StatusOK {
		t.Fatalf("by date: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"count":1`) {
		t.Fatalf("expected one scheduled work order, got %s", w.Body.String())
	}

	if w := srv.do(t, http.MethodGet, "/api/v1/schedule?date=10/03/2025", admin, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/api/v1/schedule/range?start=2025-03-11&end=2025-03-10", admin, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: expected 400, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/api/v1/schedule/range?start=2025-03-11&end=2025-03-10", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous inverted range: expected 401, got %d", w.Code)
	}

	w = srv.do(t, http.MethodGet, "/api/v1/schedule/stats?start=2025-03-01&end=2025-03-31", techA, "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total":0`) || !strings.Contains(w.Body.String(), `"completion_rate":0`) {
		t.Fatalf("expected empty stats for tech-a, got %s", w.Body.String())
	}

	if w := srv.do(t, http.MethodPost, "/api/v1/schedule/43", techA, `{"scheduled_at":"2025-03-12T10:00:00Z"}`); w.Code != http.StatusConflict {
		t.Fatalf("terminal work order: expected 409, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodPost, "/api/v1/schedule/42", admin, `{"scheduled_at":"2025-03-12T10:00:00Z"}`); w.Code != http.StatusOK {
		t.Fatalf("admin schedule: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestWorkOrderLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	techA := &domain.Actor{ID: "tech-a", Role: domain.RoleTechnician}

	if w := srv.do(t, http.MethodPatch, "/api/v1/work-orders/43", techA, `{"status":"pending"}`); w.Code != http.StatusConflict {
		t.Fatalf("reopening a completed order: expected 409, got %d: %s", w.Code, w.Body.String())
	}
	w := srv.do(t, http.MethodGet, "/api/v1/work-orders/43", techA, "")
	if !strings.Contains(w.Body.String(), `"status":"completed"`) {
		t.Fatalf("completed order must stay completed, got %s", w.Body.String())
	}

	if w := srv.do(t, http.MethodPatch, "/api/v1/work-orders/43", techA, `{"scheduled_at":"2025-04-01T09:00:00Z"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("patching the schedule date: expected 400, got %d", w.Code)
	}

	w = srv.do(t, http.MethodPost, "/api/v1/work-orders", techA,
		`{"client_id":"c-1","title":"Chiller","status":"completed","scheduled_at":"2025-04-01T09:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created domain.WorkOrder
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Status != domain.WorkOrderPending || created.ScheduledAt != nil {
		t.Fatalf("new work orders must start pending and unscheduled, got %+v", created)
	}
}

type fixedWindowStore struct {
	mu    sync.Mutex
	count map[string]int
}

func (f *fixedWindowStore) Admit(_ context.Context, key string, limit int, _ time.Duration, _ time.Time) (port.WindowUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count[key] >= limit {
		return port.WindowUsage{Count: f.count[key]}, nil
	}
	f.count[key]++
	return port.WindowUsage{Admitted: true, Count: f.count[key]}, nil
}

func TestRateLimitUsesRoleBudgets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	verifier, err := security.NewTokenVerifier(config.JWTSettings{Secret: "routes-test-secret"})
	if err != nil {
		t.Fatalf("NewTokenVerifier returned error: %v", err)
	}
	audit := &discardAudit{}
	limiter := middleware.NewRateLimiter(&fixedWindowStore{count: make(map[string]int)}, log).WithAudit(audit)

	cfg := &config.AppConfig{
		App: config.AppSettings{Env: "test"},
		RateLimit: config.RateLimitSettings{
			Enabled:        true,
			WindowDuration: time.Minute,
			MaxRequests:    10,
			Roles:          config.RoleLimits{Admin: 3, Client: 1},
		},
	}
	router := httproutes.Register(httproutes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Verifier:    verifier,
		RateLimiter: limiter,
		Services:    httproutes.ServiceSet{Gate: usecase.NewGate(audit, log)},
	})

	call := func(actor domain.Actor) *httptest.ResponseRecorder {
		token, err := verifier.Issue(actor, time.Hour)
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me/permissions", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	client := domain.Actor{ID: "client-a", Role: domain.RoleClient}
	if w := call(client); w.Code != http.StatusOK || w.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("first client request: expected 200 with limit 1, got %d %q", w.Code, w.Header().Get("X-RateLimit-Limit"))
	}
	if w := call(client); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second client request: expected 429, got %d", w.Code)
	}
	if audit.Count() != 1 {
		t.Fatalf("expected the throttled client to be audited once, got %d", audit.Count())
	}

	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	for i := 0; i < 3; i++ {
		if w := call(admin); w.Code != http.StatusOK {
			t.Fatalf("admin request %d: expected 200, got %d", i+1, w.Code)
		}
	}
	if w := call(domain.Actor{ID: "tech-a", Role: domain.RoleTechnician}); w.Header().Get("X-RateLimit-Limit") != "10" {
		t.Fatalf("technicians without a budget of their own should get max_requests, got %q", w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestAccessEndpoints(t *testing.T) {
	srv := newTestServer(t)
	tech := &domain.Actor{ID: "tech-a", Role: domain.RoleTechnician}
	admin := &domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	w := srv.do(t, http.MethodGet, "/api/v1/me/permissions", tech, "")
	if w.Code != http.StatusOK {
		t.Fatalf("me/permissions: expected 200, got %d", w.Code)
	}
	var perms struct {
		Role        string   `json:"role"`
		Rank        int      `json:"rank"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &perms); err != nil {
		t.Fatalf("decode permissions: %v", err)
	}
	if perms.Role != "technician" || perms.Rank != 2 || len(perms.Permissions) == 0 {
		t.Fatalf("unexpected permissions payload %+v", perms)
	}

	if w := srv.do(t, http.MethodGet, "/api/v1/me/permissions", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous me/permissions: expected 401, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/api/v1/admin/roles", tech, ""); w.Code != http.StatusForbidden {
		t.Fatalf("technician on admin group: expected 403, got %d", w.Code)
	}
	w = srv.do(t, http.MethodGet, "/api/v1/admin/roles", admin, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":4`) {
		t.Fatalf("admin roles: expected 4 roles, got %d %s", w.Code, w.Body.String())
	}
}
