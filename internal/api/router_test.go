package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventease/internal/api/handlers"
	"github.com/Togather-Foundation/eventease/internal/api/middleware"
	"github.com/Togather-Foundation/eventease/internal/audit"
	"github.com/Togather-Foundation/eventease/internal/auth"
	"github.com/Togather-Foundation/eventease/internal/config"
	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/Togather-Foundation/eventease/internal/domain/users"
	"github.com/Togather-Foundation/eventease/internal/metrics"
	"github.com/Togather-Foundation/eventease/internal/storage/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	server *httptest.Server
	users  *users.Service
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Config{
		Environment: "test",
		Server:      config.ServerConfig{MaxBodyBytes: 4 << 10},
		RateLimit: config.RateLimitConfig{
			PublicPerMinute:   1000,
			UserPerMinute:     1000,
			AdminPerMinute:    1000,
			LoginPer15Minutes: 100,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "router.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zerolog.Nop()
	validator := events.NewValidator(time.UTC, time.Now)
	engine := moderation.NewEngine(store, validator, logger, moderation.WithObserver(metrics.ModerationObserver{}))
	auditLogger := audit.NewLoggerWithZerolog(logger)
	jwtManager := auth.NewJWTManager([]byte("router-test-secret-0123456789abcdef"), time.Hour, "eventease-test")
	userService := users.NewService(store.Users(), logger).WithBcryptCost(bcrypt.MinCost)
	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	t.Cleanup(limiter.Stop)

	router := NewRouter(Dependencies{
		Config:      cfg,
		Logger:      logger,
		Build:       BuildInfo{Version: "test"},
		JWTManager:  jwtManager,
		RateLimiter: limiter,
		Health:      handlers.NewHealthChecker("test", "unknown").Register("database", store),
		Events:      handlers.NewEventsHandler(events.NewService(store.Events(), validator, logger), engine, validator, store.Users(), auditLogger, cfg.Environment),
		Approvals:   handlers.NewApprovalsHandler(engine, auditLogger, cfg.Environment),
		Users:       handlers.NewUsersHandler(userService, jwtManager, auditLogger, cfg.Environment),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testServer{server: server, users: userService}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var payload []byte
	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		var err error
		payload, err = json.Marshal(v)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[struct {
		Token string `json:"token"`
	}](t, resp).Token
}

func (s *testServer) signUp(t *testing.T, username string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/users", "", map[string]string{"username": username, "password": "long-enough-pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return s.login(t, username, "long-enough-pw")
}

func (s *testServer) bootstrapAdmin(t *testing.T) string {
	t.Helper()
	_, err := s.users.EnsureAdmin(context.Background(), users.RegisterParams{Username: "root", Password: "admin-password"})
	require.NoError(t, err)
	return s.login(t, "root", "admin-password")
}

type idBody struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	EventID string `json:"event_id"`
}

func TestModeratedCreateEndToEnd(t *testing.T) {
	s := newTestServer(t, nil)
	userToken := s.signUp(t, "alice")
	adminToken := s.bootstrapAdmin(t)

	resp := s.do(t, http.MethodPost, "/api/v1/events", userToken, map[string]string{
		"title":       "Demo Event",
		"description": "A sample demo event.",
		"venue":       "Pune",
		"date":        "2030-01-01",
		"time":        "10:00:00",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	approval := decode[idBody](t, resp)
	assert.Equal(t, "pending", approval.State)

	resp = s.do(t, http.MethodGet, "/api/v1/events", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[struct {
		Items []idBody `json:"items"`
	}](t, resp).Items)

	resp = s.do(t, http.MethodGet, "/api/v1/admin/approvals?state=pending", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	queue := decode[struct {
		Items []idBody `json:"items"`
	}](t, resp)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, approval.ID, queue.Items[0].ID)

	resp = s.do(t, http.MethodPost, "/api/v1/admin/approvals/"+approval.ID+"/decision", adminToken, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decided := decode[idBody](t, resp)
	require.NotEmpty(t, decided.EventID)

	resp = s.do(t, http.MethodGet, "/api/v1/events/"+decided.EventID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/approvals", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine := decode[struct {
		Items []idBody `json:"items"`
	}](t, resp)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, "approved", mine.Items[0].State)
}

func TestRouterAccessControl(t *testing.T) {
	s := newTestServer(t, nil)
	userToken := s.signUp(t, "alice")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous create", http.MethodPost, "/api/v1/events", "", http.StatusUnauthorized},
		{"anonymous own approvals", http.MethodGet, "/api/v1/approvals", "", http.StatusUnauthorized},
		{"anonymous attendee list", http.MethodGet, "/api/v1/events/01HZZ8K3Q9V7X2M4N6P8R0S2ZZ/attendees", "", http.StatusUnauthorized},
		{"attendees of missing event", http.MethodGet, "/api/v1/events/01HZZ8K3Q9V7X2M4N6P8R0S2ZZ/attendees", userToken, http.StatusNotFound},
		{"user on review queue", http.MethodGet, "/api/v1/admin/approvals", userToken, http.StatusForbidden},
		{"user deciding", http.MethodPost, "/api/v1/admin/approvals/01HZZ8K3Q9V7X2M4N6P8R0S2ZZ/decision", userToken, http.StatusForbidden},
		{"forged token", http.MethodGet, "/api/v1/users/me", "not-a-jwt", http.StatusUnauthorized},
		{"public list", http.MethodGet, "/api/v1/events", "", http.StatusOK},
		{"unsupported method", http.MethodPatch, "/api/v1/events", "", http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/api/v2/events", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRouterSetsRequestIDAndSecurityHeaders(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp = s.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[handlers.HealthCheck](t, resp)
	assert.Equal(t, "pass", ready.Checks["database"].Status)
}

func TestRouterRateLimitsLogin(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.RateLimit.LoginPer15Minutes = 2 })

	for i := 0; i < 2; i++ {
		resp := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "ghost", "password": "whatever-pw"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "ghost", "password": "whatever-pw"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "180", resp.Header.Get("Retry-After"))
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Server.MaxBodyBytes = 64 })

	body := `{"username":"` + strings.Repeat("a", 200) + `","password":"long-enough-pw"}`
	resp := s.do(t, http.MethodPost, "/api/v1/users", "", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRouterExposesMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodGet, "/api/v1/events", "", nil)

	resp := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `eventease_http_requests_total{method="GET",path="/api/v1/events",status="200"}`)
}
