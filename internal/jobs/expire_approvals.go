package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventease/internal/audit"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/Togather-Foundation/eventease/internal/metrics"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

// SystemDecider is recorded as DecidedBy for expired requests.
const SystemDecider = "system"

const expireBatchSize = 100

// ApprovalDecider is the part of the moderation engine the sweep needs.
type ApprovalDecider interface {
	ListApprovals(ctx context.Context, filters moderation.ApprovalFilters) (moderation.ApprovalListResult, error)
	Decide(ctx context.Context, p moderation.DecideParams) (*moderation.Result, error)
}

// ApprovalExpirer rejects requests that have been pending longer than
// MaxAge. Rejection goes through the engine so staged rows are removed in
// the same transaction as the ledger update.
type ApprovalExpirer struct {
	Engine ApprovalDecider
	MaxAge time.Duration
	Audit  *audit.Logger
	Logger zerolog.Logger
	Now    func() time.Time
}

// SweepResult summarises one expiry pass.
type SweepResult struct {
	Expired int
	Skipped int
	Failed  int
}

// Sweep processes every stale pending request once. Requests decided
// concurrently by an administrator are skipped. Failures are collected and
// returned together after the pass so one bad row does not block the rest.
func (e *ApprovalExpirer) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if e.Engine == nil {
		return result, fmt.Errorf("approval engine not configured")
	}
	if e.MaxAge <= 0 {
		return result, nil
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	cutoff := now().Add(-e.MaxAge)

	var (
		failures []error
		after    string
	)
	for {
		page, err := e.Engine.ListApprovals(ctx, moderation.ApprovalFilters{
			State:     moderation.StatePending,
			CreatedTo: &cutoff,
			Limit:     expireBatchSize,
			After:     after,
		})
		if err != nil {
			return result, fmt.Errorf("list stale approvals: %w", err)
		}

		for _, req := range page.Approvals {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			_, err := e.Engine.Decide(ctx, moderation.DecideParams{
				ApprovalID: req.ID,
				Decision:   moderation.DecisionReject,
				DecidedBy:  SystemDecider,
			})
			switch {
			case err == nil:
				result.Expired++
				metrics.ExpiredApprovals.WithLabelValues("expired").Inc()
			case errors.Is(err, moderation.ErrConflict):
				result.Skipped++
				metrics.ExpiredApprovals.WithLabelValues("skipped").Inc()
			default:
				result.Failed++
				metrics.ExpiredApprovals.WithLabelValues("failed").Inc()
				failures = append(failures, fmt.Errorf("expire %s: %w", req.ID, err))
			}
			e.Audit.Record(audit.SystemActor, "approval.expire", "approval", req.ID, "",
				map[string]string{"action": string(req.Action.Kind()), "requested_by": req.RequestedBy}, err)
		}

		if page.NextCursor == "" {
			break
		}
		after = page.NextCursor
	}

	e.Logger.Info().
		Int("expired", result.Expired).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Time("cutoff", cutoff).
		Msg("approval expiry sweep finished")
	return result, errors.Join(failures...)
}

// RunEvery sweeps on a ticker until ctx is done. It is used by backends
// without a job queue.
func (e *ApprovalExpirer) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 || e.MaxAge <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := e.Sweep(ctx); err != nil && ctx.Err() == nil {
			e.Logger.Error().Err(err).Msg("approval expiry sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type ExpireApprovalsArgs struct{}

func (ExpireApprovalsArgs) Kind() string { return JobKindExpireApprovals }

// ExpireApprovalsWorker runs the sweep as a periodic River job.
type ExpireApprovalsWorker struct {
	river.WorkerDefaults[ExpireApprovalsArgs]
	Expirer *ApprovalExpirer
}

func (ExpireApprovalsWorker) Kind() string { return JobKindExpireApprovals }

func (w ExpireApprovalsWorker) Work(ctx context.Context, job *river.Job[ExpireApprovalsArgs]) error {
	if w.Expirer == nil {
		return fmt.Errorf("approval expirer not configured")
	}
	_, err := w.Expirer.Sweep(ctx)
	return err
}

// NewWorkers registers every worker the server runs.
func NewWorkers(expirer *ApprovalExpirer) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker(workers, ExpireApprovalsWorker{Expirer: expirer})
	return workers
}
