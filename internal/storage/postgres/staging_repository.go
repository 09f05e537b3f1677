package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ moderation.StagingRepository = (*StagingRepository)(nil)

type StagingRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const stagedColumns = `
SELECT id, target_event_id, title, description, venue, event_date, event_time,
       requested_by, created_at
  FROM staged_events
`

func scanStaged(row pgx.Row) (moderation.StagedEvent, error) {
	var (
		staged    moderation.StagedEvent
		target    pgtype.Text
		date      pgtype.Date
		clock     pgtype.Time
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&staged.ID,
		&target,
		&staged.Title,
		&staged.Description,
		&staged.Venue,
		&date,
		&clock,
		&staged.RequestedBy,
		&createdAt,
	); err != nil {
		return moderation.StagedEvent{}, err
	}
	staged.TargetEventID = target.String
	staged.Date = fromPgDate(date)
	staged.Time = fromPgTime(clock)
	staged.CreatedAt = timestamp(createdAt)
	return staged, nil
}

func (r *StagingRepository) Insert(ctx context.Context, params moderation.StagedEventCreateParams) (*moderation.StagedEvent, error) {
	date, clock, err := scheduleArgs(params.EventFields)
	if err != nil {
		return nil, err
	}
	_, err = r.queryer().Exec(ctx, `
INSERT INTO staged_events (id, target_event_id, title, description, venue, event_date, event_time, requested_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`,
		params.ID,
		nullableText(params.TargetEventID),
		params.Title,
		params.Description,
		params.Venue,
		date,
		clock,
		params.RequestedBy,
	)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return nil, fmt.Errorf("insert staged event %s: %w", params.ID, moderation.ErrConflict)
		}
		return nil, fmt.Errorf("insert staged event: %w", err)
	}
	return r.Get(ctx, params.ID)
}

func (r *StagingRepository) Get(ctx context.Context, id string) (*moderation.StagedEvent, error) {
	staged, err := scanStaged(r.queryer().QueryRow(ctx, stagedColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("staged event %s: %w", id, moderation.ErrNotFound)
		}
		return nil, fmt.Errorf("get staged event: %w", err)
	}
	return &staged, nil
}

func (r *StagingRepository) Delete(ctx context.Context, id string) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM staged_events WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete staged event: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *StagingRepository) List(ctx context.Context, filters moderation.StagedFilters) ([]moderation.StagedEvent, error) {
	rows, err := r.queryer().Query(ctx, stagedColumns+`
 WHERE ($1 = '' OR requested_by = $1)
   AND ($2 = '' OR target_event_id = $2)
 ORDER BY id ASC
`, filters.RequestedBy, filters.TargetEventID)
	if err != nil {
		return nil, fmt.Errorf("list staged events: %w", err)
	}
	defer rows.Close()

	var items []moderation.StagedEvent
	for rows.Next() {
		staged, err := scanStaged(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staged event: %w", err)
		}
		items = append(items, staged)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staged events: %w", err)
	}
	return items, nil
}

func (r *StagingRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}
