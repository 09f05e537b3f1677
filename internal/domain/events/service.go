package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventease/internal/domain/ids"
	"github.com/rs/zerolog"
)

var ErrInvalidParams = errors.New("invalid event parameters")

// Service serves catalog reads, attendee registration, and the direct
// (unmoderated) mutations available to administrators.
type Service struct {
	repo      Repository
	validator *Validator
	newID     ids.Generator
	logger    zerolog.Logger
}

func NewService(repo Repository, validator *Validator, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		newID:     ids.NewULID,
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

func (s *Service) List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error) {
	if filters.When != WhenAny && filters.Now.IsZero() {
		filters.Now = s.validator.Now()
	}
	return s.repo.List(ctx, filters, pagination)
}

func (s *Service) GetByID(ctx context.Context, id string) (*Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidParams
	}
	return s.repo.GetByID(ctx, ids.Normalize(id))
}

// Create publishes a new event immediately with organizerID as its owner.
func (s *Service) Create(ctx context.Context, organizerID string, input EventInput) (*Event, error) {
	if strings.TrimSpace(organizerID) == "" {
		return nil, ErrInvalidParams
	}
	fields, err := s.validator.ValidateCreate(input)
	if err != nil {
		return nil, err
	}
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("mint event id: %w", err)
	}
	event, err := s.repo.Create(ctx, EventCreateParams{
		ID:          id,
		EventFields: fields,
		OrganizerID: organizerID,
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info().Str("event_id", event.ID).Str("organizer_id", organizerID).Msg("event created")
	return event, nil
}

// Update applies a partial update. Fields not present in input keep their
// stored values, including the half of the schedule that was not supplied.
func (s *Service) Update(ctx context.Context, id string, input EventInput) (*Event, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.validator.ValidateUpdate(existing.EventFields, input)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.Update(ctx, existing.ID, fields)
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", existing.ID, err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	s.logger.Info().Str("event_id", existing.ID).Msg("event updated")
	return s.repo.GetByID(ctx, existing.ID)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidParams
	}
	id = ids.Normalize(id)
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.logger.Info().Str("event_id", id).Msg("event deleted")
	return nil
}

// Register adds userID to the event's attendees. Registering twice is a no-op.
func (s *Service) Register(ctx context.Context, eventID, userID string) (*Event, error) {
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidParams
	}
	event, err := s.repo.GetByID(ctx, ids.Normalize(eventID))
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.AddAttendee(ctx, event.ID, userID); err != nil {
		return nil, fmt.Errorf("register attendee: %w", err)
	}
	return s.repo.GetByID(ctx, event.ID)
}

// Unregister removes userID from the event's attendees. Removing an absent
// attendee is a no-op.
func (s *Service) Unregister(ctx context.Context, eventID, userID string) (*Event, error) {
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidParams
	}
	event, err := s.repo.GetByID(ctx, ids.Normalize(eventID))
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.RemoveAttendee(ctx, event.ID, userID); err != nil {
		return nil, fmt.Errorf("unregister attendee: %w", err)
	}
	return s.repo.GetByID(ctx, event.ID)
}

type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{}
	pagination := Pagination{Limit: 50}

	startDate, err := parseDate("startDate", values.Get("startDate"))
	if err != nil {
		return filters, pagination, err
	}
	endDate, err := parseDate("endDate", values.Get("endDate"))
	if err != nil {
		return filters, pagination, err
	}
	if startDate != "" && endDate != "" && endDate < startDate {
		return filters, pagination, FilterError{Field: "endDate", Message: "must be on or after startDate"}
	}
	filters.StartDate = startDate
	filters.EndDate = endDate

	switch when := When(strings.ToLower(strings.TrimSpace(values.Get("when")))); when {
	case WhenAny, WhenUpcoming, WhenPast:
		filters.When = when
	default:
		return filters, pagination, FilterError{Field: "when", Message: "must be upcoming or past"}
	}

	filters.Venue = strings.TrimSpace(values.Get("venue"))
	filters.Query = strings.TrimSpace(values.Get("q"))

	filters.OrganizerID = strings.TrimSpace(values.Get("organizerId"))
	if filters.OrganizerID != "" {
		if err := ids.ValidateULID(filters.OrganizerID); err != nil {
			return filters, pagination, FilterError{Field: "organizerId", Message: "invalid ULID"}
		}
		filters.OrganizerID = ids.Normalize(filters.OrganizerID)
	}
	filters.AttendeeID = strings.TrimSpace(values.Get("attendeeId"))
	if filters.AttendeeID != "" {
		if err := ids.ValidateULID(filters.AttendeeID); err != nil {
			return filters, pagination, FilterError{Field: "attendeeId", Message: "invalid ULID"}
		}
		filters.AttendeeID = ids.Normalize(filters.AttendeeID)
	}

	limit, err := parseLimit(values)
	if err != nil {
		return filters, pagination, err
	}
	pagination.Limit = limit
	pagination.After = strings.TrimSpace(values.Get("after"))

	return filters, pagination, nil
}

func parseDate(field string, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", FilterError{Field: field, Message: "must be ISO8601 date"}
	}
	return parsed.Format(DateLayout), nil
}

func parseLimit(values url.Values) (int, error) {
	limit := 50
	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit == "" {
		return limit, nil
	}
	parsed, err := strconv.Atoi(rawLimit)
	if err != nil {
		return 0, FilterError{Field: "limit", Message: "must be a number"}
	}
	if parsed < 1 || parsed > 200 {
		return 0, FilterError{Field: "limit", Message: "must be between 1 and 200"}
	}
	return parsed, nil
}
