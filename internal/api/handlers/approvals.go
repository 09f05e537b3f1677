package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventease/internal/api/middleware"
	"github.com/Togather-Foundation/eventease/internal/api/problem"
	"github.com/Togather-Foundation/eventease/internal/audit"
	"github.com/Togather-Foundation/eventease/internal/auth"
	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/Togather-Foundation/eventease/internal/domain/ids"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
)

// ApprovalsHandler exposes the approval ledger: the review queue and
// decisions for administrators, and each user's own requests.
type ApprovalsHandler struct {
	Engine *moderation.Engine
	Audit  *audit.Logger
	Env    string
}

func NewApprovalsHandler(engine *moderation.Engine, auditLogger *audit.Logger, env string) *ApprovalsHandler {
	return &ApprovalsHandler{Engine: engine, Audit: auditLogger, Env: env}
}

type decisionRequest struct {
	Action string `json:"action"`
}

// List handles GET /api/v1/admin/approvals.
func (h *ApprovalsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := parseApprovalFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	h.list(w, r, filters)
}

// Get handles GET /api/v1/admin/approvals/{id}.
func (h *ApprovalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newApprovalDetailResponse(detail))
}

// Decide handles POST /api/v1/admin/approvals/{id}/decision. Repeating the
// decision a request already carries succeeds without side effects.
func (h *ApprovalsHandler) Decide(w http.ResponseWriter, r *http.Request) {
	claims := middleware.UserClaims(r)
	if claims == nil || !auth.IsAdmin(claims.Role) {
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}
	id, ok := h.approvalID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	decision, err := moderation.ParseDecision(req.Action)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	result, err := h.Engine.Decide(r.Context(), moderation.DecideParams{
		ApprovalID: id,
		Decision:   decision,
		DecidedBy:  claims.Subject,
	})
	details := map[string]string{"decision": string(decision)}
	if result != nil {
		details["action"] = string(result.Kind)
		details["event_id"] = result.EventID
		details["replayed"] = strconv.FormatBool(result.Replayed)
	}
	h.Audit.LogFromRequest(r, actorOf(claims), "approval.decide", "approval", id, details, err)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, decisionResponse{
		ApprovalID: result.ApprovalID,
		Action:     result.Kind,
		State:      result.State,
		EventID:    result.EventID,
		Replayed:   result.Replayed,
	})
}

// Mine handles GET /api/v1/approvals: the caller's own requests.
func (h *ApprovalsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.UserClaims(r)
	if claims == nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, h.Env)
		return
	}
	filters, err := parseApprovalFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	filters.RequestedBy = claims.Subject
	h.list(w, r, filters)
}

// MineGet handles GET /api/v1/approvals/{id}. Requests of other users are
// reported as missing.
func (h *ApprovalsHandler) MineGet(w http.ResponseWriter, r *http.Request) {
	claims := middleware.UserClaims(r)
	if claims == nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, h.Env)
		return
	}
	detail, ok := h.load(w, r)
	if !ok {
		return
	}
	if detail.Request.RequestedBy != claims.Subject {
		writeError(w, r, moderation.ErrNotFound, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newApprovalDetailResponse(detail))
}

func (h *ApprovalsHandler) list(w http.ResponseWriter, r *http.Request, filters moderation.ApprovalFilters) {
	result, err := h.Engine.ListApprovals(r.Context(), filters)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newApprovalListResponse(result))
}

func (h *ApprovalsHandler) load(w http.ResponseWriter, r *http.Request) (*moderation.ApprovalDetail, bool) {
	id, ok := h.approvalID(w, r)
	if !ok {
		return nil, false
	}
	detail, err := h.Engine.GetApproval(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return nil, false
	}
	return detail, true
}

func (h *ApprovalsHandler) approvalID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := pathParam(r, "id")
	if err := ids.ValidateULID(id); err != nil {
		writeError(w, r, events.FilterError{Field: "id", Message: "invalid ULID"}, h.Env)
		return "", false
	}
	return ids.Normalize(id), true
}

// parseApprovalFilters reads state, action, requested_by, created_from,
// created_to (RFC 3339), limit and after.
func parseApprovalFilters(values url.Values) (moderation.ApprovalFilters, error) {
	filters := moderation.ApprovalFilters{Limit: 50}

	if raw := strings.TrimSpace(values.Get("state")); raw != "" {
		state, err := moderation.ParseState(raw)
		if err != nil {
			return filters, events.FilterError{Field: "state", Message: "must be pending, approved or rejected"}
		}
		filters.State = state
	}
	if raw := strings.TrimSpace(values.Get("action")); raw != "" {
		kind, err := moderation.ParseKind(raw)
		if err != nil {
			return filters, events.FilterError{Field: "action", Message: "must be post, put or delete"}
		}
		filters.Kind = kind
	}
	if raw := strings.TrimSpace(values.Get("requested_by")); raw != "" {
		if err := ids.ValidateULID(raw); err != nil {
			return filters, events.FilterError{Field: "requested_by", Message: "invalid ULID"}
		}
		filters.RequestedBy = ids.Normalize(raw)
	}

	var err error
	if filters.CreatedFrom, err = parseTimestamp("created_from", values.Get("created_from")); err != nil {
		return filters, err
	}
	if filters.CreatedTo, err = parseTimestamp("created_to", values.Get("created_to")); err != nil {
		return filters, err
	}
	if filters.CreatedFrom != nil && filters.CreatedTo != nil && !filters.CreatedTo.After(*filters.CreatedFrom) {
		return filters, events.FilterError{Field: "created_to", Message: "must be after created_from"}
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			return filters, events.FilterError{Field: "limit", Message: "must be between 1 and 200"}
		}
		filters.Limit = limit
	}
	filters.After = strings.TrimSpace(values.Get("after"))
	return filters, nil
}

func parseTimestamp(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, events.FilterError{Field: field, Message: fmt.Sprintf("must be RFC 3339, got %q", raw)}
	}
	utc := parsed.UTC()
	return &utc, nil
}
