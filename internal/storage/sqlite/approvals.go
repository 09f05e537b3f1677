package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/eventease/internal/api/pagination"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
)

var _ moderation.ApprovalRepository = (*ApprovalRepository)(nil)

type ApprovalRepository struct {
	store *Store
}

const approvalColumns = `
SELECT id, action, target_id, requested_by, state, event_id, decided_by, decided_at, created_at
  FROM approval_requests
`

func scanApproval(row scanner) (moderation.ApprovalRequest, error) {
	var (
		req       moderation.ApprovalRequest
		action    string
		target    string
		state     string
		eventID   sql.NullString
		decidedBy sql.NullString
		decidedAt sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(
		&req.ID,
		&action,
		&target,
		&req.RequestedBy,
		&state,
		&eventID,
		&decidedBy,
		&decidedAt,
		&createdAt,
	); err != nil {
		return moderation.ApprovalRequest{}, err
	}

	parsedAction, err := moderation.ActionFromRecord(action, target)
	if err != nil {
		return moderation.ApprovalRequest{}, fmt.Errorf("approval %s: %w", req.ID, err)
	}
	parsedState, err := moderation.ParseState(state)
	if err != nil {
		return moderation.ApprovalRequest{}, fmt.Errorf("approval %s: %w", req.ID, err)
	}
	req.Action = parsedAction
	req.State = parsedState
	req.EventID = eventID.String
	req.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		value := fromMillis(decidedAt.Int64)
		req.DecidedAt = &value
	}
	req.CreatedAt = fromMillis(createdAt)
	return req, nil
}

func (r *ApprovalRepository) Insert(ctx context.Context, params moderation.ApprovalCreateParams) (*moderation.ApprovalRequest, error) {
	if params.Action == nil {
		return nil, fmt.Errorf("%w: approval without action", moderation.ErrInvalidRequest)
	}
	_, err := r.store.queryer().ExecContext(ctx, `
INSERT INTO approval_requests (id, action, target_id, requested_by, event_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		params.ID,
		string(params.Action.Kind()),
		params.Action.Target(),
		params.RequestedBy,
		nullString(params.EventID),
		r.store.nowMillis(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert approval %s: %w", params.ID, moderation.ErrConflict)
		}
		return nil, fmt.Errorf("insert approval: %w", err)
	}
	return r.Get(ctx, params.ID)
}

func (r *ApprovalRepository) Get(ctx context.Context, id string) (*moderation.ApprovalRequest, error) {
	req, err := scanApproval(r.store.queryer().QueryRowContext(ctx, approvalColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("approval %s: %w", id, moderation.ErrNotFound)
		}
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return &req, nil
}

// Resolve only updates a row that is still pending.
func (r *ApprovalRepository) Resolve(ctx context.Context, id string, params moderation.ResolveParams) (int64, error) {
	result, err := r.store.queryer().ExecContext(ctx, `
UPDATE approval_requests
   SET state = ?, decided_by = ?, decided_at = ?, event_id = COALESCE(?, event_id)
 WHERE id = ? AND state = 'pending'
`,
		string(params.State),
		nullString(params.DecidedBy),
		params.DecidedAt.UTC().UnixMilli(),
		nullString(params.EventID),
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("resolve approval: %w", err)
	}
	return rowsAffected(result)
}

func (r *ApprovalRepository) List(ctx context.Context, filters moderation.ApprovalFilters) (moderation.ApprovalListResult, error) {
	var after string
	if strings.TrimSpace(filters.After) != "" {
		id, err := pagination.DecodeApprovalCursor(filters.After)
		if err != nil {
			return moderation.ApprovalListResult{}, err
		}
		after = id
	}

	var createdFrom, createdTo sql.NullInt64
	if filters.CreatedFrom != nil {
		createdFrom = sql.NullInt64{Int64: filters.CreatedFrom.UTC().UnixMilli(), Valid: true}
	}
	if filters.CreatedTo != nil {
		createdTo = sql.NullInt64{Int64: filters.CreatedTo.UTC().UnixMilli(), Valid: true}
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	limitPlusOne := limit + 1

	rows, err := r.store.queryer().QueryContext(ctx, approvalColumns+`
 WHERE (?1 = '' OR state = ?1)
   AND (?2 = '' OR action = ?2)
   AND (?3 = '' OR requested_by = ?3)
   AND (?4 IS NULL OR created_at >= ?4)
   AND (?5 IS NULL OR created_at < ?5)
   AND (?6 = '' OR id > ?6)
 ORDER BY id ASC
 LIMIT ?7
`,
		string(filters.State),
		string(filters.Kind),
		filters.RequestedBy,
		createdFrom,
		createdTo,
		after,
		limitPlusOne,
	)
	if err != nil {
		return moderation.ApprovalListResult{}, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	items := make([]moderation.ApprovalRequest, 0, limitPlusOne)
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return moderation.ApprovalListResult{}, fmt.Errorf("scan approval: %w", err)
		}
		items = append(items, req)
	}
	if err := rows.Err(); err != nil {
		return moderation.ApprovalListResult{}, fmt.Errorf("iterate approvals: %w", err)
	}

	result := moderation.ApprovalListResult{}
	if len(items) > limit {
		items = items[:limit]
		result.NextCursor = pagination.EncodeApprovalCursor(items[len(items)-1].ID)
	}
	result.Approvals = items
	return result, nil
}
