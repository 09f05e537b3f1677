package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthCheck represents the readiness of the server.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Pinger is a dependency the server needs in order to serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthChecker struct {
	deps      map[string]Pinger
	version   string
	gitCommit string
	timeout   time.Duration
}

func NewHealthChecker(version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		deps:      make(map[string]Pinger),
		version:   version,
		gitCommit: gitCommit,
		timeout:   2 * time.Second,
	}
}

// Register adds a named dependency to the readiness check.
func (h *HealthChecker) Register(name string, dep Pinger) *HealthChecker {
	h.deps[name] = dep
	return h
}

// Readyz pings every registered dependency concurrently, each under its own
// timeout, and reports 503 if any of them fails.
func (h *HealthChecker) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		names := make([]string, 0, len(h.deps))
		for name := range h.deps {
			names = append(names, name)
		}
		sort.Strings(names)

		results := make([]CheckResult, len(names))
		var group errgroup.Group
		for i, name := range names {
			group.Go(func() error {
				results[i] = h.check(r.Context(), h.deps[name])
				return nil
			})
		}
		_ = group.Wait()

		status := "ready"
		code := http.StatusOK
		checks := make(map[string]CheckResult, len(names))
		for i, name := range names {
			if results[i].Status == "fail" {
				status = "unavailable"
				code = http.StatusServiceUnavailable
			}
			checks[name] = results[i]
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(HealthCheck{
			Status:    status,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})
}

func (h *HealthChecker) check(ctx context.Context, dep Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := dep.Ping(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			message = "timed out after " + h.timeout.String()
		}
		return CheckResult{Status: "fail", Message: message, LatencyMs: latency}
	}
	return CheckResult{Status: "pass", LatencyMs: latency}
}

// Healthz returns a lightweight liveness response.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
