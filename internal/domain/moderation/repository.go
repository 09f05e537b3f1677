package moderation

import (
	"context"
	"time"

	"github.com/Togather-Foundation/eventease/internal/domain/events"
)

// StagedEvent is a complete, directly applicable event snapshot awaiting a
// decision. TargetEventID is empty for a proposed new event.
type StagedEvent struct {
	ID            string
	TargetEventID string
	events.EventFields
	RequestedBy string
	CreatedAt   time.Time
}

type StagedEventCreateParams struct {
	ID            string
	TargetEventID string
	events.EventFields
	RequestedBy string
}

// ApprovalRequest links a proposed action to its decision. EventID is the
// catalog event the request concerns: the target for put and delete, and the
// newly created event once a post is approved.
type ApprovalRequest struct {
	ID          string
	Action      Action
	RequestedBy string
	State       State
	EventID     string
	DecidedBy   string
	DecidedAt   *time.Time
	CreatedAt   time.Time
}

type ApprovalCreateParams struct {
	ID          string
	Action      Action
	RequestedBy string
	EventID     string
}

// ResolveParams records a terminal decision.
type ResolveParams struct {
	State     State
	DecidedBy string
	DecidedAt time.Time
	EventID   string
}

type ApprovalFilters struct {
	State       State
	Kind        Kind
	RequestedBy string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	After       string
}

type ApprovalListResult struct {
	Approvals  []ApprovalRequest
	NextCursor string
}

type StagedFilters struct {
	RequestedBy   string
	TargetEventID string
}

// StagingRepository holds proposed event snapshots. Rows are immutable: they
// are inserted at proposal time and deleted when the request is decided.
type StagingRepository interface {
	Insert(ctx context.Context, params StagedEventCreateParams) (*StagedEvent, error)
	Get(ctx context.Context, id string) (*StagedEvent, error)
	Delete(ctx context.Context, id string) (int64, error)
	List(ctx context.Context, filters StagedFilters) ([]StagedEvent, error)
}

// ApprovalRepository is the approval ledger. Resolve must only transition a
// request that is still pending (UPDATE ... WHERE state = 'pending') and
// report the number of rows it changed.
type ApprovalRepository interface {
	Insert(ctx context.Context, params ApprovalCreateParams) (*ApprovalRequest, error)
	Get(ctx context.Context, id string) (*ApprovalRequest, error)
	Resolve(ctx context.Context, id string, params ResolveParams) (int64, error)
	List(ctx context.Context, filters ApprovalFilters) (ApprovalListResult, error)
}

// Store groups the three stores the engine works against. WithTx runs fn as
// one atomic unit: every write made through the Store passed to fn commits
// together or not at all.
type Store interface {
	Events() events.Repository
	Staging() StagingRepository
	Approvals() ApprovalRepository
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
