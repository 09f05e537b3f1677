package handlers

import (
	"time"

	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/Togather-Foundation/eventease/internal/domain/users"
)

type eventResponse struct {
	ID string `json:"id"`
	events.EventFields
	OrganizerID string    `json:"organizer_id"`
	Attendees   []string  `json:"attendees"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newEventResponse(event *events.Event) eventResponse {
	attendees := event.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	return eventResponse{
		ID:          event.ID,
		EventFields: event.EventFields,
		OrganizerID: event.OrganizerID,
		Attendees:   attendees,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

type attendeeResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type attendeeListResponse struct {
	EventID   string             `json:"event_id"`
	Attendees []attendeeResponse `json:"attendees"`
}

type eventListResponse struct {
	Items      []eventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type stagedResponse struct {
	ID            string `json:"id"`
	TargetEventID string `json:"target_event_id,omitempty"`
	events.EventFields
	RequestedBy string    `json:"requested_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// approvalResponse exposes the action as a kind plus the id it points at:
// the staged snapshot for post and put, the catalog event for delete.
type approvalResponse struct {
	ID          string           `json:"id"`
	Action      moderation.Kind  `json:"action"`
	Target      string           `json:"target"`
	RequestedBy string           `json:"requested_by"`
	State       moderation.State `json:"state"`
	EventID     string           `json:"event_id,omitempty"`
	DecidedBy   string           `json:"decided_by,omitempty"`
	DecidedAt   *time.Time       `json:"decided_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Staged      *stagedResponse  `json:"staged,omitempty"`
}

func newApprovalResponse(req *moderation.ApprovalRequest) approvalResponse {
	resp := approvalResponse{
		ID:          req.ID,
		RequestedBy: req.RequestedBy,
		State:       req.State,
		EventID:     req.EventID,
		DecidedBy:   req.DecidedBy,
		DecidedAt:   req.DecidedAt,
		CreatedAt:   req.CreatedAt,
	}
	if req.Action != nil {
		resp.Action = req.Action.Kind()
		resp.Target = req.Action.Target()
	}
	return resp
}

func newApprovalDetailResponse(detail *moderation.ApprovalDetail) approvalResponse {
	resp := newApprovalResponse(&detail.Request)
	if staged := detail.Staged; staged != nil {
		resp.Staged = &stagedResponse{
			ID:            staged.ID,
			TargetEventID: staged.TargetEventID,
			EventFields:   staged.EventFields,
			RequestedBy:   staged.RequestedBy,
			CreatedAt:     staged.CreatedAt,
		}
	}
	return resp
}

type approvalListResponse struct {
	Items      []approvalResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func newApprovalListResponse(result moderation.ApprovalListResult) approvalListResponse {
	items := make([]approvalResponse, 0, len(result.Approvals))
	for i := range result.Approvals {
		items = append(items, newApprovalResponse(&result.Approvals[i]))
	}
	return approvalListResponse{Items: items, NextCursor: result.NextCursor}
}

type decisionResponse struct {
	ApprovalID string           `json:"approval_id"`
	Action     moderation.Kind  `json:"action"`
	State      moderation.State `json:"state"`
	EventID    string           `json:"event_id,omitempty"`
	Replayed   bool             `json:"replayed"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(user *users.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
