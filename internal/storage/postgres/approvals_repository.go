package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/eventease/internal/api/pagination"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ moderation.ApprovalRepository = (*ApprovalRepository)(nil)

type ApprovalRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const approvalColumns = `
SELECT id, action, target_id, requested_by, state, event_id, decided_by, decided_at, created_at
  FROM approval_requests
`

func scanApproval(row pgx.Row) (moderation.ApprovalRequest, error) {
	var (
		req       moderation.ApprovalRequest
		action    string
		target    string
		state     string
		eventID   pgtype.Text
		decidedBy pgtype.Text
		decidedAt pgtype.Timestamptz
		createdAt pgtype.Timestamptz
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
		value := decidedAt.Time.UTC()
		req.DecidedAt = &value
	}
	req.CreatedAt = timestamp(createdAt)
	return req, nil
}

func (r *ApprovalRepository) Insert(ctx context.Context, params moderation.ApprovalCreateParams) (*moderation.ApprovalRequest, error) {
	if params.Action == nil {
		return nil, fmt.Errorf("%w: approval without action", moderation.ErrInvalidRequest)
	}
	_, err := r.queryer().Exec(ctx, `
INSERT INTO approval_requests (id, action, target_id, requested_by, event_id)
VALUES ($1, $2, $3, $4, $5)
`,
		params.ID,
		string(params.Action.Kind()),
		params.Action.Target(),
		params.RequestedBy,
		nullableText(params.EventID),
	)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return nil, fmt.Errorf("insert approval %s: %w", params.ID, moderation.ErrConflict)
		}
		return nil, fmt.Errorf("insert approval: %w", err)
	}
	return r.Get(ctx, params.ID)
}

func (r *ApprovalRepository) Get(ctx context.Context, id string) (*moderation.ApprovalRequest, error) {
	req, err := scanApproval(r.queryer().QueryRow(ctx, approvalColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("approval %s: %w", id, moderation.ErrNotFound)
		}
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return &req, nil
}

// Resolve is the compare-and-swap that serializes decisions: only a row that
// is still pending is updated.
func (r *ApprovalRepository) Resolve(ctx context.Context, id string, params moderation.ResolveParams) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE approval_requests
   SET state = $2,
       decided_by = $3,
       decided_at = $4,
       event_id = COALESCE($5, event_id)
 WHERE id = $1
   AND state = 'pending'
`,
		id,
		string(params.State),
		nullableText(params.DecidedBy),
		params.DecidedAt,
		nullableText(params.EventID),
	)
	if err != nil {
		return 0, fmt.Errorf("resolve approval: %w", err)
	}
	return tag.RowsAffected(), nil
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

	var createdFrom, createdTo pgtype.Timestamptz
	if filters.CreatedFrom != nil {
		createdFrom = pgtype.Timestamptz{Time: *filters.CreatedFrom, Valid: true}
	}
	if filters.CreatedTo != nil {
		createdTo = pgtype.Timestamptz{Time: *filters.CreatedTo, Valid: true}
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	limitPlusOne := limit + 1

	rows, err := r.queryer().Query(ctx, approvalColumns+`
 WHERE ($1 = '' OR state = $1)
   AND ($2 = '' OR action = $2)
   AND ($3 = '' OR requested_by = $3)
   AND ($4::timestamptz IS NULL OR created_at >= $4::timestamptz)
   AND ($5::timestamptz IS NULL OR created_at < $5::timestamptz)
   AND ($6 = '' OR id > $6)
 ORDER BY id ASC
 LIMIT $7
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

func (r *ApprovalRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}
