package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventease/internal/api/middleware"
	"github.com/Togather-Foundation/eventease/internal/api/problem"
	"github.com/Togather-Foundation/eventease/internal/audit"
	"github.com/Togather-Foundation/eventease/internal/auth"
	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/Togather-Foundation/eventease/internal/domain/ids"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/Togather-Foundation/eventease/internal/domain/users"
	"github.com/Togather-Foundation/eventease/internal/storage/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminID = "01HZZ8K3Q9V7X2M4N6P8R0S2A1"
	aliceID = "01HZZ8K3Q9V7X2M4N6P8R0S2B1"
	bobID   = "01HZZ8K3Q9V7X2M4N6P8R0S2C1"

	testEnv = "test"
)

type fixture struct {
	store     *sqlite.Store
	jwt       *auth.JWTManager
	events    *EventsHandler
	approvals *ApprovalsHandler
	users     *UsersHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zerolog.Nop()
	validator := events.NewValidator(time.UTC, time.Now)
	engine := moderation.NewEngine(store, validator, logger)
	auditLogger := audit.NewLoggerWithZerolog(logger)
	jwtManager := auth.NewJWTManager([]byte("handlers-test-secret-0123456789abcdef"), time.Hour, "eventease-test")
	userService := users.NewService(store.Users(), logger).WithBcryptCost(bcrypt.MinCost)

	return &fixture{
		store:     store,
		jwt:       jwtManager,
		events:    NewEventsHandler(events.NewService(store.Events(), validator, logger), engine, validator, store.Users(), auditLogger, testEnv),
		approvals: NewApprovalsHandler(engine, auditLogger, testEnv),
		users:     NewUsersHandler(userService, jwtManager, auditLogger, testEnv),
	}
}

// seedEvent publishes an event owned by organizerID directly in the catalog.
func (f *fixture) seedEvent(t *testing.T, organizerID, title string) *events.Event {
	t.Helper()
	id, err := ids.NewULID()
	require.NoError(t, err)
	event, err := f.store.Events().Create(context.Background(), events.EventCreateParams{
		ID: id,
		EventFields: events.EventFields{
			Title:       title,
			Description: title + " description",
			Venue:       "Pune",
			Date:        "2030-01-01",
			Time:        "10:00:00",
		},
		OrganizerID: organizerID,
	})
	require.NoError(t, err)
	return event
}

func claimsFor(subject string, role auth.Role) *auth.Claims {
	return &auth.Claims{
		Role:             string(role),
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}
}

func asAdmin() *auth.Claims { return claimsFor(adminID, auth.RoleAdmin) }
func asAlice() *auth.Claims { return claimsFor(aliceID, auth.RoleUser) }
func asBob() *auth.Claims   { return claimsFor(bobID, auth.RoleUser) }

type requestOption func(*http.Request) *http.Request

func withClaims(claims *auth.Claims) requestOption {
	return func(r *http.Request) *http.Request {
		return r.WithContext(middleware.ContextWithClaims(r.Context(), claims))
	}
}

func withPathID(id string) requestOption {
	return func(r *http.Request) *http.Request {
		r.SetPathValue("id", id)
		return r
	}
}

func newRequest(t *testing.T, method, target string, body any, opts ...requestOption) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		req = opt(req)
	}
	return req
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func requireProblem(t *testing.T, rec *httptest.ResponseRecorder, status int, typ string) problem.ProblemDetails {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	details := decodeBody[problem.ProblemDetails](t, rec)
	require.Equal(t, typ, details.Type)
	return details
}

func demoEventBody() map[string]string {
	return map[string]string{
		"title":       "Demo Event",
		"description": "A sample demo event.",
		"venue":       "Pune",
		"date":        "2030-01-01",
		"time":        "10:00",
	}
}
