package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventease/internal/api/pagination"
	"github.com/Togather-Foundation/eventease/internal/api/problem"
	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/Togather-Foundation/eventease/internal/domain/users"
)

var errInvalidBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.PathValue(key))
}

// decodeJSON reads exactly one JSON object into dst. Unknown fields are
// rejected so a misspelled field is not silently dropped from a proposal.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: body is required", errInvalidBody)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: body is required", errInvalidBody)
		}
		return fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", errInvalidBody)
	}
	return nil
}

// writeError maps a domain error onto its problem response.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var (
		maxBytes     *http.MaxBytesError
		validation   events.ValidationError
		filter       events.FilterError
		invalidField users.InvalidFieldError
	)

	switch {
	case errors.As(err, &maxBytes):
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", err, env)
	case errors.As(err, &validation):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid event", err, env,
			problem.WithErrors(fieldErrors(validation.Field, validation.Message)))
	case errors.As(err, &filter):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid query", err, env,
			problem.WithErrors(fieldErrors(filter.Field, filter.Message)))
	case errors.As(err, &invalidField):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid user", err, env,
			problem.WithErrors(fieldErrors(invalidField.Field, invalidField.Message)))
	case errors.Is(err, users.ErrPasswordTooShort), errors.Is(err, users.ErrPasswordTooLong):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid user", err, env,
			problem.WithErrors(fieldErrors("password", err.Error())))
	case errors.Is(err, pagination.ErrInvalidCursor),
		errors.Is(err, errInvalidBody),
		errors.Is(err, events.ErrInvalidParams),
		errors.Is(err, moderation.ErrInvalidRequest):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeInvalidRequest, "Invalid request", err, env)
	case errors.Is(err, users.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid credentials", err, env)
	case errors.Is(err, moderation.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, env)
	case errors.Is(err, moderation.ErrNotFound),
		errors.Is(err, events.ErrNotFound),
		errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env)
	case errors.Is(err, moderation.ErrConflict),
		errors.Is(err, events.ErrConflict),
		errors.Is(err, users.ErrUsernameTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}

func fieldErrors(field, message string) map[string]any {
	if field == "" {
		field = "body"
	}
	return map[string]any{field: message}
}
