package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/eventease/internal/api/pagination"
	"github.com/Togather-Foundation/eventease/internal/domain/events"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	store *Store
}

const eventColumns = `
SELECT id, title, description, venue, event_date, event_time, organizer_id, created_at, updated_at
  FROM events e
`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (events.Event, error) {
	var (
		event     events.Event
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Venue,
		&event.Date,
		&event.Time,
		&event.OrganizerID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return events.Event{}, err
	}
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)
	return event, nil
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, paginationArgs events.Pagination) (events.ListResult, error) {
	var cursor pagination.EventCursor
	if strings.TrimSpace(paginationArgs.After) != "" {
		decoded, err := pagination.DecodeEventCursor(paginationArgs.After)
		if err != nil {
			return events.ListResult{}, err
		}
		cursor = decoded
	}

	var nowDate, nowTime string
	if filters.When != events.WhenAny {
		nowDate = filters.Now.Format(events.DateLayout)
		nowTime = filters.Now.Format(events.TimeLayout)
	}

	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 50
	}
	limitPlusOne := limit + 1

	rows, err := r.store.queryer().QueryContext(ctx, eventColumns+`
 WHERE (?1 = '' OR e.event_date >= ?1)
   AND (?2 = '' OR e.event_date <= ?2)
   AND (?3 = '' OR e.venue LIKE '%' || ?3 || '%')
   AND (?4 = '' OR e.organizer_id = ?4)
   AND (?5 = '' OR EXISTS (
         SELECT 1 FROM event_attendees x WHERE x.event_id = e.id AND x.user_id = ?5))
   AND (?6 = '' OR e.title LIKE '%' || ?6 || '%' OR e.description LIKE '%' || ?6 || '%')
   AND (?7 = '' OR (e.event_date, e.event_time, e.id) > (?7, ?8, ?9))
   AND (?10 = ''
        OR (?10 = 'upcoming' AND (e.event_date, e.event_time) > (?11, ?12))
        OR (?10 = 'past' AND (e.event_date, e.event_time) <= (?11, ?12)))
 ORDER BY e.event_date ASC, e.event_time ASC, e.id ASC
 LIMIT ?13
`,
		filters.StartDate,
		filters.EndDate,
		filters.Venue,
		filters.OrganizerID,
		filters.AttendeeID,
		filters.Query,
		cursor.Date,
		cursor.Time,
		cursor.ID,
		string(filters.When),
		nowDate,
		nowTime,
		limitPlusOne,
	)
	if err != nil {
		return events.ListResult{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]events.Event, 0, limitPlusOne)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return events.ListResult{}, fmt.Errorf("scan events: %w", err)
		}
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return events.ListResult{}, fmt.Errorf("iterate events: %w", err)
	}
	_ = rows.Close()

	result := events.ListResult{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		result.NextCursor = pagination.EncodeEventCursor(last.Date, last.Time, last.ID)
	}
	for i := range items {
		attendees, err := r.attendees(ctx, items[i].ID)
		if err != nil {
			return events.ListResult{}, err
		}
		items[i].Attendees = attendees
	}
	result.Events = items
	return result, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	event, err := scanEvent(r.store.queryer().QueryRowContext(ctx, eventColumns+` WHERE e.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	attendees, err := r.attendees(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	event.Attendees = attendees
	return &event, nil
}

func (r *EventRepository) attendees(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.store.queryer().QueryContext(ctx, `
SELECT user_id FROM event_attendees WHERE event_id = ? ORDER BY registered_at, user_id
`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	attendees := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		attendees = append(attendees, userID)
	}
	return attendees, rows.Err()
}

func (r *EventRepository) Create(ctx context.Context, params events.EventCreateParams) (*events.Event, error) {
	now := r.store.nowMillis()
	_, err := r.store.queryer().ExecContext(ctx, `
INSERT INTO events (id, title, description, venue, event_date, event_time, organizer_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		params.ID,
		params.Title,
		params.Description,
		params.Venue,
		params.Date,
		params.Time,
		params.OrganizerID,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create event %s: %w", params.ID, events.ErrConflict)
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	return r.GetByID(ctx, params.ID)
}

func (r *EventRepository) Update(ctx context.Context, id string, fields events.EventFields) (int64, error) {
	result, err := r.store.queryer().ExecContext(ctx, `
UPDATE events
   SET title = ?, description = ?, venue = ?, event_date = ?, event_time = ?, updated_at = ?
 WHERE id = ?
`,
		fields.Title,
		fields.Description,
		fields.Venue,
		fields.Date,
		fields.Time,
		r.store.nowMillis(),
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("update event: %w", err)
	}
	return rowsAffected(result)
}

func (r *EventRepository) Delete(ctx context.Context, id string) (int64, error) {
	result, err := r.store.queryer().ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete event: %w", err)
	}
	return rowsAffected(result)
}

func (r *EventRepository) AddAttendee(ctx context.Context, eventID string, userID string) (int64, error) {
	result, err := r.store.queryer().ExecContext(ctx, `
INSERT INTO event_attendees (event_id, user_id, registered_at)
VALUES (?, ?, ?)
ON CONFLICT (event_id, user_id) DO NOTHING
`, eventID, userID, r.store.nowMillis())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, events.ErrNotFound
		}
		return 0, fmt.Errorf("add attendee: %w", err)
	}
	return rowsAffected(result)
}

func (r *EventRepository) RemoveAttendee(ctx context.Context, eventID string, userID string) (int64, error) {
	result, err := r.store.queryer().ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = ? AND user_id = ?`, eventID, userID)
	if err != nil {
		return 0, fmt.Errorf("remove attendee: %w", err)
	}
	return rowsAffected(result)
}
