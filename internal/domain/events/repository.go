package events

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("event not found")

var ErrConflict = errors.New("event conflict")

// EventFields are the user-editable fields of a catalog event. Date is a
// calendar date (YYYY-MM-DD) and Time a wall-clock time (HH:MM:SS), both in
// the catalog's configured time zone.
type EventFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

type Event struct {
	ID string
	EventFields
	OrganizerID string
	Attendees   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasAttendee reports whether userID is registered for the event.
func (e *Event) HasAttendee(userID string) bool {
	for _, attendee := range e.Attendees {
		if attendee == userID {
			return true
		}
	}
	return false
}

type EventCreateParams struct {
	ID string
	EventFields
	OrganizerID string
}

// When splits the catalog around the current instant. Upcoming events start
// strictly after it; every other event is past.
type When string

const (
	WhenAny      When = ""
	WhenUpcoming When = "upcoming"
	WhenPast     When = "past"
)

type Filters struct {
	StartDate   string
	EndDate     string
	Venue       string
	OrganizerID string
	AttendeeID  string
	Query       string
	When        When
	// Now is the catalog-local instant When is measured against. Repositories
	// compare its wall-clock date and time with the stored schedule.
	Now time.Time
}

type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Events     []Event
	NextCursor string
}

// Repository is the catalog store. Update and Delete report the number of
// rows affected so callers can distinguish a missing event from a no-op.
type Repository interface {
	List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	Create(ctx context.Context, params EventCreateParams) (*Event, error)
	Update(ctx context.Context, id string, fields EventFields) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	AddAttendee(ctx context.Context, eventID string, userID string) (int64, error)
	RemoveAttendee(ctx context.Context, eventID string, userID string) (int64, error)
}
