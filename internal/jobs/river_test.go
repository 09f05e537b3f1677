package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

func TestRetryPolicy_NextRetry(t *testing.T) {
	policy := NewRetryPolicy()
	now := time.Now()

	tests := []struct {
		name          string
		kind          string
		attempt       int
		expectedDelay time.Duration
	}{
		{name: "expiry first attempt", kind: JobKindExpireApprovals, attempt: 1, expectedDelay: 1 * time.Minute},
		{name: "expiry second attempt", kind: JobKindExpireApprovals, attempt: 2, expectedDelay: 2 * time.Minute},
		{name: "expiry capped", kind: JobKindExpireApprovals, attempt: 8, expectedDelay: 10 * time.Minute},
		{name: "unknown kind uses default", kind: "unknown", attempt: 1, expectedDelay: 30 * time.Second},
		{name: "zero attempt treated as first", kind: JobKindExpireApprovals, attempt: 0, expectedDelay: 1 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &rivertype.JobRow{Kind: tt.kind, Attempt: tt.attempt, AttemptedAt: &now}

			if got := policy.NextRetry(job).Sub(now); got != tt.expectedDelay {
				t.Errorf("NextRetry() delay = %v, want %v", got, tt.expectedDelay)
			}
		})
	}
}

func TestInsertOptsForKind(t *testing.T) {
	if got := InsertOptsForKind(JobKindExpireApprovals).MaxAttempts; got != ExpireApprovalsMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", got, ExpireApprovalsMaxAttempts)
	}
	if got := InsertOptsForKind("unknown-kind").MaxAttempts; got != 5 {
		t.Errorf("MaxAttempts = %d, want default 5", got)
	}
}

func TestNewPeriodicJobs(t *testing.T) {
	if jobs := NewPeriodicJobs(0); jobs != nil {
		t.Errorf("NewPeriodicJobs(0) = %d jobs, want none", len(jobs))
	}
	jobs := NewPeriodicJobs(15 * time.Minute)
	if len(jobs) != 1 || jobs[0] == nil {
		t.Fatalf("NewPeriodicJobs() returned %v, want one job", jobs)
	}
}

func TestNewClientConfig(t *testing.T) {
	handler := NewAlertingErrorHandler(zerolog.Nop(), nil)
	config := NewClientConfig(NewWorkers(&ApprovalExpirer{}), nil, handler, nil, NewPeriodicJobs(time.Minute))

	if config.RetryPolicy == nil {
		t.Fatal("retry policy not installed")
	}
	if config.ErrorHandler != handler {
		t.Fatal("error handler not installed")
	}
	if len(config.PeriodicJobs) != 1 {
		t.Fatalf("periodic jobs = %d, want 1", len(config.PeriodicJobs))
	}
}

func TestAlertingErrorHandlerNotifies(t *testing.T) {
	var notified []error
	handler := NewAlertingErrorHandler(zerolog.Nop(), func(ctx context.Context, job *rivertype.JobRow, err error) {
		notified = append(notified, err)
	})
	job := &rivertype.JobRow{ID: 7, Kind: JobKindExpireApprovals, Attempt: 1}

	handler.HandleError(context.Background(), job, errors.New("db down"))
	handler.HandlePanic(context.Background(), job, "boom", "trace")

	if len(notified) != 2 {
		t.Fatalf("notified %d times, want 2", len(notified))
	}
	if notified[1].Error() != "panic: boom" {
		t.Errorf("panic error = %v", notified[1])
	}
}
