package problem

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWrite_DevIncludesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusInternalServerError, TypeServerError, "boom", errors.New("db down"), "development")

	if got := res.Result().Header.Get("Content-Type"); got != "application/problem+json" {
		t.Fatalf("expected content type problem+json, got %s", got)
	}

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != "db down" {
		t.Fatalf("expected detail, got %s", body.Detail)
	}
	if body.Instance != "/api/v1/events" {
		t.Fatalf("expected instance /api/v1/events, got %s", body.Instance)
	}
}

func TestWrite_ProdSanitizesServerErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusInternalServerError, TypeServerError, "boom", errors.New("db password wrong"), "production")

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("expected sanitized detail, got %s", body.Detail)
	}
}

func TestWrite_ProdKeepsClientErrorDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeInvalidRequest, "Invalid request", errors.New("title is required"), "production")

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != "title is required" {
		t.Fatalf("expected client detail, got %s", body.Detail)
	}
}

func TestWrite_LogsServerErrorsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req = req.WithContext(logger.WithContext(req.Context()))

	Write(httptest.NewRecorder(), req, http.StatusInternalServerError, TypeServerError, "boom", errors.New("db down"), "test")

	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error-level log, got %s", buf.String())
	}
}
