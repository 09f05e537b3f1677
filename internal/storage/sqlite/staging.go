package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
)

var _ moderation.StagingRepository = (*StagingRepository)(nil)

type StagingRepository struct {
	store *Store
}

const stagedColumns = `
SELECT id, target_event_id, title, description, venue, event_date, event_time, requested_by, created_at
  FROM staged_events
`

func scanStaged(row scanner) (moderation.StagedEvent, error) {
	var (
		staged    moderation.StagedEvent
		target    sql.NullString
		createdAt int64
	)
	if err := row.Scan(
		&staged.ID,
		&target,
		&staged.Title,
		&staged.Description,
		&staged.Venue,
		&staged.Date,
		&staged.Time,
		&staged.RequestedBy,
		&createdAt,
	); err != nil {
		return moderation.StagedEvent{}, err
	}
	staged.TargetEventID = target.String
	staged.CreatedAt = fromMillis(createdAt)
	return staged, nil
}

func (r *StagingRepository) Insert(ctx context.Context, params moderation.StagedEventCreateParams) (*moderation.StagedEvent, error) {
	_, err := r.store.queryer().ExecContext(ctx, `
INSERT INTO staged_events (id, target_event_id, title, description, venue, event_date, event_time, requested_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		params.ID,
		nullString(params.TargetEventID),
		params.Title,
		params.Description,
		params.Venue,
		params.Date,
		params.Time,
		params.RequestedBy,
		r.store.nowMillis(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert staged event %s: %w", params.ID, moderation.ErrConflict)
		}
		return nil, fmt.Errorf("insert staged event: %w", err)
	}
	return r.Get(ctx, params.ID)
}

func (r *StagingRepository) Get(ctx context.Context, id string) (*moderation.StagedEvent, error) {
	staged, err := scanStaged(r.store.queryer().QueryRowContext(ctx, stagedColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("staged event %s: %w", id, moderation.ErrNotFound)
		}
		return nil, fmt.Errorf("get staged event: %w", err)
	}
	return &staged, nil
}

func (r *StagingRepository) Delete(ctx context.Context, id string) (int64, error) {
	result, err := r.store.queryer().ExecContext(ctx, `DELETE FROM staged_events WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete staged event: %w", err)
	}
	return rowsAffected(result)
}

func (r *StagingRepository) List(ctx context.Context, filters moderation.StagedFilters) ([]moderation.StagedEvent, error) {
	rows, err := r.store.queryer().QueryContext(ctx, stagedColumns+`
 WHERE (?1 = '' OR requested_by = ?1)
   AND (?2 = '' OR target_event_id = ?2)
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
