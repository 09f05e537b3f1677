package api

import (
	"net/http"

	"github.com/Togather-Foundation/eventease/internal/api/handlers"
	"github.com/Togather-Foundation/eventease/internal/api/middleware"
	"github.com/Togather-Foundation/eventease/internal/auth"
	"github.com/Togather-Foundation/eventease/internal/config"
	"github.com/Togather-Foundation/eventease/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// BuildInfo is stamped into the binary with ldflags.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// Dependencies are the assembled services the router exposes. RateLimiter
// may be nil to disable rate limiting.
type Dependencies struct {
	Config      config.Config
	Logger      zerolog.Logger
	Build       BuildInfo
	JWTManager  *auth.JWTManager
	RateLimiter *middleware.RateLimiter
	Health      *handlers.HealthChecker
	Events      *handlers.EventsHandler
	Approvals   *handlers.ApprovalsHandler
	Users       *handlers.UsersHandler
}

func NewRouter(deps Dependencies) http.Handler {
	env := deps.Config.Environment
	requireAuth := middleware.RequireAuth(env)
	requireAdmin := middleware.RequireRole(env, auth.RoleAdmin)
	limited := func(h http.HandlerFunc) http.Handler {
		if deps.RateLimiter == nil {
			return h
		}
		return deps.RateLimiter.Middleware(h)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", handlers.Healthz())
	if deps.Health != nil {
		mux.Handle("GET /readyz", deps.Health.Readyz())
	}
	mux.Handle("GET /version", VersionHandler(deps.Build))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /api/v1/openapi.json", OpenAPIHandler())

	users := deps.Users
	mux.Handle("POST /api/v1/users", limited(users.Register))
	mux.Handle("POST /api/v1/auth/login", middleware.WithRateLimitTierHandler(middleware.TierLogin)(limited(users.Login)))
	mux.Handle("GET /api/v1/users/me", requireAuth(limited(users.Me)))

	ev := deps.Events
	mux.Handle("GET /api/v1/events", limited(ev.List))
	mux.Handle("GET /api/v1/events/{id}", limited(ev.Get))
	mux.Handle("POST /api/v1/events", requireAuth(limited(ev.Create)))
	mux.Handle("PUT /api/v1/events/{id}", requireAuth(limited(ev.Update)))
	mux.Handle("DELETE /api/v1/events/{id}", requireAuth(limited(ev.Delete)))
	mux.Handle("GET /api/v1/events/{id}/attendees", requireAuth(limited(ev.Attendees)))
	mux.Handle("POST /api/v1/events/{id}/attendees", requireAuth(limited(ev.Register)))
	mux.Handle("DELETE /api/v1/events/{id}/attendees", requireAuth(limited(ev.Unregister)))

	ap := deps.Approvals
	mux.Handle("GET /api/v1/approvals", requireAuth(limited(ap.Mine)))
	mux.Handle("GET /api/v1/approvals/{id}", requireAuth(limited(ap.MineGet)))
	mux.Handle("GET /api/v1/admin/approvals", requireAdmin(limited(ap.List)))
	mux.Handle("GET /api/v1/admin/approvals/{id}", requireAdmin(limited(ap.Get)))
	mux.Handle("POST /api/v1/admin/approvals/{id}/decision", requireAdmin(limited(ap.Decide)))

	var handler http.Handler = metrics.HTTPMiddleware(mux)
	handler = middleware.Tracing(handler)
	handler = middleware.RequestSize(deps.Config.Server.MaxBodyBytes)(handler)
	handler = middleware.JWTAuth(deps.JWTManager, env)(handler)
	handler = middleware.RequestLogging()(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	handler = middleware.SecurityHeaders(env == "production")(handler)
	return handler
}
