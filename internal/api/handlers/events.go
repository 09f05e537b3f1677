package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Togather-Foundation/eventease/internal/api/middleware"
	"github.com/Togather-Foundation/eventease/internal/api/problem"
	"github.com/Togather-Foundation/eventease/internal/audit"
	"github.com/Togather-Foundation/eventease/internal/auth"
	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/Togather-Foundation/eventease/internal/domain/ids"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/Togather-Foundation/eventease/internal/domain/users"
)

// UserLookup resolves account ids to users.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
}

// EventsHandler serves the catalog. Administrators mutate events directly;
// any other authenticated caller has their mutation staged for approval.
type EventsHandler struct {
	Service   *events.Service
	Engine    *moderation.Engine
	Validator *events.Validator
	Users     UserLookup
	Audit     *audit.Logger
	Env       string
}

func NewEventsHandler(service *events.Service, engine *moderation.Engine, validator *events.Validator, userLookup UserLookup, auditLogger *audit.Logger, env string) *EventsHandler {
	return &EventsHandler{
		Service:   service,
		Engine:    engine,
		Validator: validator,
		Users:     userLookup,
		Audit:     auditLogger,
		Env:       env,
	}
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, pagination, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	result, err := h.Service.List(r.Context(), filters, pagination)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	items := make([]eventResponse, 0, len(result.Events))
	for i := range result.Events {
		items = append(items, newEventResponse(&result.Events[i]))
	}
	writeJSON(w, http.StatusOK, eventListResponse{Items: items, NextCursor: result.NextCursor})
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	event, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(event))
}

// Create handles POST /api/v1/events.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	var input events.EventInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	if auth.IsAdmin(claims.Role) {
		event, err := h.Service.Create(r.Context(), claims.Subject, input)
		h.Audit.LogFromRequest(r, actorOf(claims), "event.create", "event", eventIDOf(event), nil, err)
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		w.Header().Set("Location", "/api/v1/events/"+event.ID)
		writeJSON(w, http.StatusCreated, newEventResponse(event))
		return
	}

	fields, err := h.Validator.ValidateCreate(input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	payload := inputOf(fields)
	h.propose(w, r, claims, moderation.Proposal{Kind: moderation.KindPost, Payload: &payload})
}

// Update handles PUT /api/v1/events/{id}. The payload is partial: omitted
// fields keep their stored values.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	var input events.EventInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	if auth.IsAdmin(claims.Role) {
		event, err := h.Service.Update(r.Context(), id, input)
		h.Audit.LogFromRequest(r, actorOf(claims), "event.update", "event", id, nil, err)
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		writeJSON(w, http.StatusOK, newEventResponse(event))
		return
	}

	normalized, err := h.Validator.ValidatePatch(input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	h.propose(w, r, claims, moderation.Proposal{Kind: moderation.KindPut, EventID: id, Payload: &normalized})
}

// Delete handles DELETE /api/v1/events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	if auth.IsAdmin(claims.Role) {
		err := h.Service.Delete(r.Context(), id)
		h.Audit.LogFromRequest(r, actorOf(claims), "event.delete", "event", id, nil, err)
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.propose(w, r, claims, moderation.Proposal{Kind: moderation.KindDelete, EventID: id})
}

// Attendees handles GET /api/v1/events/{id}/attendees. Accounts that no
// longer resolve are listed with an empty username.
func (h *EventsHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	event, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	list := make([]attendeeResponse, 0, len(event.Attendees))
	for _, userID := range event.Attendees {
		entry := attendeeResponse{ID: userID}
		user, err := h.Users.GetByID(r.Context(), userID)
		switch {
		case err == nil:
			entry.Username = user.Username
		case !errors.Is(err, users.ErrNotFound):
			writeError(w, r, err, h.Env)
			return
		}
		list = append(list, entry)
	}
	writeJSON(w, http.StatusOK, attendeeListResponse{EventID: event.ID, Attendees: list})
}

// Register handles POST /api/v1/events/{id}/attendees for the caller.
func (h *EventsHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, h.Service.Register)
}

// Unregister handles DELETE /api/v1/events/{id}/attendees for the caller.
func (h *EventsHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, h.Service.Unregister)
}

func (h *EventsHandler) attendance(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, eventID, userID string) (*events.Event, error)) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}
	event, err := apply(r.Context(), id, claims.Subject)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(event))
}

func (h *EventsHandler) propose(w http.ResponseWriter, r *http.Request, claims *auth.Claims, proposal moderation.Proposal) {
	proposal.ActorID = claims.Subject
	req, err := h.Engine.Propose(r.Context(), proposal)
	resourceID := ""
	if req != nil {
		resourceID = req.ID
	}
	h.Audit.LogFromRequest(r, actorOf(claims), "approval.propose", "approval", resourceID,
		map[string]string{"action": string(proposal.Kind), "event_id": proposal.EventID}, err)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.Header().Set("Location", "/api/v1/approvals/"+req.ID)
	writeJSON(w, http.StatusAccepted, newApprovalResponse(req))
}

func (h *EventsHandler) claims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims := middleware.UserClaims(r)
	if claims == nil || claims.Subject == "" {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, h.Env)
		return nil, false
	}
	return claims, true
}

func (h *EventsHandler) eventID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := pathParam(r, "id")
	if err := ids.ValidateULID(id); err != nil {
		writeError(w, r, events.FilterError{Field: "id", Message: "invalid ULID"}, h.Env)
		return "", false
	}
	return ids.Normalize(id), true
}

func actorOf(claims *auth.Claims) audit.Actor {
	return audit.Actor{ID: claims.Subject, Role: claims.Role}
}

func eventIDOf(event *events.Event) string {
	if event == nil {
		return ""
	}
	return event.ID
}

func inputOf(fields events.EventFields) events.EventInput {
	return events.EventInput{
		Title:       &fields.Title,
		Description: &fields.Description,
		Venue:       &fields.Venue,
		Date:        &fields.Date,
		Time:        &fields.Time,
	}
}
