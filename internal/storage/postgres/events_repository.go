package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/eventease/internal/api/pagination"
	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const eventColumns = `
SELECT e.id, e.title, e.description, e.venue, e.event_date, e.event_time,
       e.organizer_id, e.created_at, e.updated_at,
       COALESCE(array_agg(a.user_id ORDER BY a.registered_at, a.user_id)
                FILTER (WHERE a.user_id IS NOT NULL), '{}') AS attendees
  FROM events e
  LEFT JOIN event_attendees a ON a.event_id = e.id
`

type eventRow struct {
	ID          string
	Title       string
	Description string
	Venue       string
	Date        pgtype.Date
	Time        pgtype.Time
	OrganizerID string
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
	Attendees   []string
}

func scanEvent(row pgx.Row) (events.Event, error) {
	var data eventRow
	if err := row.Scan(
		&data.ID,
		&data.Title,
		&data.Description,
		&data.Venue,
		&data.Date,
		&data.Time,
		&data.OrganizerID,
		&data.CreatedAt,
		&data.UpdatedAt,
		&data.Attendees,
	); err != nil {
		return events.Event{}, err
	}
	return events.Event{
		ID: data.ID,
		EventFields: events.EventFields{
			Title:       data.Title,
			Description: data.Description,
			Venue:       data.Venue,
			Date:        fromPgDate(data.Date),
			Time:        fromPgTime(data.Time),
		},
		OrganizerID: data.OrganizerID,
		Attendees:   data.Attendees,
		CreatedAt:   timestamp(data.CreatedAt),
		UpdatedAt:   timestamp(data.UpdatedAt),
	}, nil
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, paginationArgs events.Pagination) (events.ListResult, error) {
	queryer := r.queryer()

	var (
		cursorDate pgtype.Date
		cursorTime pgtype.Time
		cursorID   string
	)
	if strings.TrimSpace(paginationArgs.After) != "" {
		cursor, err := pagination.DecodeEventCursor(paginationArgs.After)
		if err != nil {
			return events.ListResult{}, err
		}
		if cursorDate, cursorTime, err = scheduleArgs(events.EventFields{Date: cursor.Date, Time: cursor.Time}); err != nil {
			return events.ListResult{}, pagination.ErrInvalidCursor
		}
		cursorID = cursor.ID
	}

	startDate, err := toPgDate(filters.StartDate)
	if err != nil {
		return events.ListResult{}, err
	}
	endDate, err := toPgDate(filters.EndDate)
	if err != nil {
		return events.ListResult{}, err
	}

	var (
		nowDate pgtype.Date
		nowTime pgtype.Time
	)
	if filters.When != events.WhenAny {
		if nowDate, nowTime, err = scheduleArgs(events.EventFields{
			Date: filters.Now.Format(events.DateLayout),
			Time: filters.Now.Format(events.TimeLayout),
		}); err != nil {
			return events.ListResult{}, err
		}
	}

	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 50
	}
	limitPlusOne := limit + 1

	rows, err := queryer.Query(ctx, eventColumns+`
 WHERE ($1::date IS NULL OR e.event_date >= $1::date)
   AND ($2::date IS NULL OR e.event_date <= $2::date)
   AND ($3 = '' OR e.venue ILIKE '%' || $3 || '%')
   AND ($4 = '' OR e.organizer_id = $4)
   AND ($5 = '' OR EXISTS (
         SELECT 1 FROM event_attendees x WHERE x.event_id = e.id AND x.user_id = $5))
   AND ($6 = '' OR e.title ILIKE '%' || $6 || '%' OR e.description ILIKE '%' || $6 || '%')
   AND ($7::date IS NULL OR (e.event_date, e.event_time, e.id) > ($7::date, $8::time, $9::text))
   AND ($10::text = ''
        OR ($10::text = 'upcoming' AND (e.event_date, e.event_time) > ($11::date, $12::time))
        OR ($10::text = 'past' AND (e.event_date, e.event_time) <= ($11::date, $12::time)))
 GROUP BY e.id
 ORDER BY e.event_date ASC, e.event_time ASC, e.id ASC
 LIMIT $13
`,
		startDate,
		endDate,
		filters.Venue,
		filters.OrganizerID,
		filters.AttendeeID,
		filters.Query,
		cursorDate,
		cursorTime,
		cursorID,
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

	result := events.ListResult{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		result.NextCursor = pagination.EncodeEventCursor(last.Date, last.Time, last.ID)
	}
	result.Events = items
	return result, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, eventColumns+`
 WHERE e.id = $1
 GROUP BY e.id
`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

func (r *EventRepository) Create(ctx context.Context, params events.EventCreateParams) (*events.Event, error) {
	date, clock, err := scheduleArgs(params.EventFields)
	if err != nil {
		return nil, err
	}
	_, err = r.queryer().Exec(ctx, `
INSERT INTO events (id, title, description, venue, event_date, event_time, organizer_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`,
		params.ID,
		params.Title,
		params.Description,
		params.Venue,
		date,
		clock,
		params.OrganizerID,
	)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return nil, fmt.Errorf("create event %s: %w", params.ID, events.ErrConflict)
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	return r.GetByID(ctx, params.ID)
}

func (r *EventRepository) Update(ctx context.Context, id string, fields events.EventFields) (int64, error) {
	date, clock, err := scheduleArgs(fields)
	if err != nil {
		return 0, err
	}
	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET title = $2,
       description = $3,
       venue = $4,
       event_date = $5,
       event_time = $6,
       updated_at = now()
 WHERE id = $1
`,
		id,
		fields.Title,
		fields.Description,
		fields.Venue,
		date,
		clock,
	)
	if err != nil {
		return 0, fmt.Errorf("update event: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete event: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *EventRepository) AddAttendee(ctx context.Context, eventID string, userID string) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `
INSERT INTO event_attendees (event_id, user_id)
VALUES ($1, $2)
ON CONFLICT (event_id, user_id) DO NOTHING
`, eventID, userID)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return 0, events.ErrNotFound
		}
		return 0, fmt.Errorf("add attendee: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *EventRepository) RemoveAttendee(ctx context.Context, eventID string, userID string) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM event_attendees WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return 0, fmt.Errorf("remove attendee: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *EventRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}
