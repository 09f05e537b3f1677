package events

import (
	"context"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	events      map[string]*Event
	lastFilters Filters
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: map[string]*Event{}}
}

func (f *fakeRepo) List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error) {
	f.lastFilters = filters
	out := make([]Event, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return ListResult{Events: out}, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *e
	copied.Attendees = append([]string(nil), e.Attendees...)
	return &copied, nil
}

func (f *fakeRepo) Create(ctx context.Context, params EventCreateParams) (*Event, error) {
	e := &Event{ID: params.ID, EventFields: params.EventFields, OrganizerID: params.OrganizerID}
	f.events[e.ID] = e
	return f.GetByID(ctx, e.ID)
}

func (f *fakeRepo) Update(ctx context.Context, id string, fields EventFields) (int64, error) {
	e, ok := f.events[id]
	if !ok {
		return 0, nil
	}
	e.EventFields = fields
	return 1, nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) (int64, error) {
	if _, ok := f.events[id]; !ok {
		return 0, nil
	}
	delete(f.events, id)
	return 1, nil
}

func (f *fakeRepo) AddAttendee(ctx context.Context, eventID, userID string) (int64, error) {
	e, ok := f.events[eventID]
	if !ok {
		return 0, nil
	}
	if e.HasAttendee(userID) {
		return 0, nil
	}
	e.Attendees = append(e.Attendees, userID)
	return 1, nil
}

func (f *fakeRepo) RemoveAttendee(ctx context.Context, eventID, userID string) (int64, error) {
	e, ok := f.events[eventID]
	if !ok {
		return 0, nil
	}
	for i, a := range e.Attendees {
		if a == userID {
			e.Attendees = append(e.Attendees[:i], e.Attendees[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

const organizer = "01HYX3KQW7ERTV9XNBM2P8QJZF"

func newTestService(repo Repository) *Service {
	svc := NewService(repo, newTestValidator(), zerolog.Nop())
	next := 0
	svc.newID = func() (string, error) {
		next++
		return []string{"01J0000000000000000000000A", "01J0000000000000000000000B", "01J0000000000000000000000C"}[next-1], nil
	}
	return svc
}

func TestServiceCreate(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	event, err := svc.Create(context.Background(), organizer, demoInput())

	require.NoError(t, err)
	require.Equal(t, "01J0000000000000000000000A", event.ID)
	require.Equal(t, organizer, event.OrganizerID)
	require.Equal(t, "Pune", event.Venue)
	require.Len(t, repo.events, 1)
}

func TestServiceCreateValidationFailsWithoutWrite(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	input := demoInput()
	input.Title = nil

	_, err := svc.Create(context.Background(), organizer, input)

	assertValidationError(t, err, "title")
	require.Empty(t, repo.events)
}

func TestServiceUpdatePartial(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	created, err := svc.Create(context.Background(), organizer, demoInput())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, EventInput{Venue: strPtr("Mumbai")})

	require.NoError(t, err)
	require.Equal(t, "Mumbai", updated.Venue)
	require.Equal(t, created.Title, updated.Title)
	require.Equal(t, created.Date, updated.Date)
	require.Equal(t, created.Time, updated.Time)
}

func TestServiceUpdateMissing(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.Update(context.Background(), "01J0000000000000000000000Z", EventInput{Venue: strPtr("Mumbai")})

	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDelete(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	created, err := svc.Create(context.Background(), organizer, demoInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), created.ID), ErrNotFound)
	require.ErrorIs(t, svc.Delete(context.Background(), ""), ErrInvalidParams)
}

func TestServiceRegisterIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	created, err := svc.Create(context.Background(), organizer, demoInput())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), created.ID, "user-1")
	require.NoError(t, err)
	event, err := svc.Register(context.Background(), created.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"user-1"}, event.Attendees)

	event, err = svc.Unregister(context.Background(), created.ID, "user-1")
	require.NoError(t, err)
	require.Empty(t, event.Attendees)

	_, err = svc.Register(context.Background(), "01J0000000000000000000000Z", "user-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseFiltersDefaults(t *testing.T) {
	filters, pagination, err := ParseFilters(url.Values{})

	require.NoError(t, err)
	require.Equal(t, 50, pagination.Limit)
	require.Empty(t, pagination.After)
	require.Equal(t, Filters{}, filters)
}

func TestParseFiltersTrimsFields(t *testing.T) {
	values := url.Values{}
	values.Set("venue", "  Pune  ")
	values.Set("q", "  jazz night ")
	values.Set("organizerId", " 01hyx3kqw7ertv9xnbm2p8qjzf ")

	filters, _, err := ParseFilters(values)

	require.NoError(t, err)
	require.Equal(t, "Pune", filters.Venue)
	require.Equal(t, "jazz night", filters.Query)
	require.Equal(t, organizer, filters.OrganizerID)
}

func TestParseFiltersDateValidation(t *testing.T) {
	values := url.Values{}
	values.Set("startDate", "2024-01-02")
	values.Set("endDate", "2024-01-01")

	_, _, err := ParseFilters(values)

	assertFilterError(t, err, "endDate", "must be on or after startDate")

	values = url.Values{}
	values.Set("startDate", "01-02-2024")
	_, _, err = ParseFilters(values)

	assertFilterError(t, err, "startDate", "must be ISO8601 date")
}

func TestParseFiltersLimit(t *testing.T) {
	values := url.Values{}
	values.Set("limit", "500")
	_, _, err := ParseFilters(values)
	assertFilterError(t, err, "limit", "must be between 1 and 200")

	values.Set("limit", "abc")
	_, _, err = ParseFilters(values)
	assertFilterError(t, err, "limit", "must be a number")

	values.Set("limit", "10")
	_, pagination, err := ParseFilters(values)
	require.NoError(t, err)
	require.Equal(t, 10, pagination.Limit)
}

func TestParseFiltersParticipantIDs(t *testing.T) {
	values := url.Values{}
	values.Set("organizerId", "01hzz8k3q9v7x2m4n6p8r0s2t4")
	values.Set("attendeeId", " 01HZZ8K3Q9V7X2M4N6P8R0S2T5 ")

	filters, _, err := ParseFilters(values)
	require.NoError(t, err)
	require.Equal(t, "01HZZ8K3Q9V7X2M4N6P8R0S2T4", filters.OrganizerID)
	require.Equal(t, "01HZZ8K3Q9V7X2M4N6P8R0S2T5", filters.AttendeeID)

	values.Set("attendeeId", "not-a-ulid")
	_, _, err = ParseFilters(values)
	assertFilterError(t, err, "attendeeId", "invalid ULID")
}

func TestParseFiltersWhen(t *testing.T) {
	for raw, want := range map[string]When{"": WhenAny, "upcoming": WhenUpcoming, " PAST ": WhenPast} {
		values := url.Values{}
		values.Set("when", raw)
		filters, _, err := ParseFilters(values)
		require.NoError(t, err, raw)
		require.Equal(t, want, filters.When, raw)
	}

	values := url.Values{}
	values.Set("when", "tomorrow")
	_, _, err := ParseFilters(values)
	assertFilterError(t, err, "when", "must be upcoming or past")
}

func TestServiceListStampsCatalogClockForWhen(t *testing.T) {
	repo := newFakeRepo()
	ist := time.FixedZone("IST", 5*3600+1800)
	svc := NewService(repo, NewValidator(ist, func() time.Time { return fixedNow }), zerolog.Nop())

	_, err := svc.List(context.Background(), Filters{When: WhenUpcoming}, Pagination{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, "2026-06-01", repo.lastFilters.Now.Format(DateLayout))
	require.Equal(t, "17:30:00", repo.lastFilters.Now.Format(TimeLayout))

	_, err = svc.List(context.Background(), Filters{}, Pagination{Limit: 10})
	require.NoError(t, err)
	require.True(t, repo.lastFilters.Now.IsZero())
}

func assertFilterError(t *testing.T, err error, field, message string) {
	t.Helper()
	require.Error(t, err)
	var filterErr FilterError
	require.ErrorAs(t, err, &filterErr)
	require.Equal(t, field, filterErr.Field)
	require.Equal(t, message, filterErr.Message)
}
