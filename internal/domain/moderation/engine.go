package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/Togather-Foundation/eventease/internal/domain/ids"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Togather-Foundation/eventease/internal/domain/moderation"

// ScheduleChecker enforces that an event is scheduled in the future.
type ScheduleChecker interface {
	CheckSchedule(date, clock string) error
}

// Observer is notified after every proposal and decision, successful or not.
type Observer interface {
	Proposed(kind Kind, err error)
	Decided(kind Kind, decision Decision, result *Result, err error)
}

// Proposal is a non-privileged user's request to mutate the catalog.
// EventID is required for put and delete; Payload for post and put.
type Proposal struct {
	Kind    Kind
	ActorID string
	EventID string
	Payload *events.EventInput
}

type DecideParams struct {
	ApprovalID string
	Decision   Decision
	DecidedBy  string
}

// Result describes a resolved request. Replayed is set when the request had
// already been decided the same way and nothing was written.
type Result struct {
	ApprovalID string
	Kind       Kind
	State      State
	EventID    string
	Replayed   bool
}

// ApprovalDetail is an approval request with its staged snapshot, if any.
type ApprovalDetail struct {
	Request ApprovalRequest
	Staged  *StagedEvent
}

// Engine stages proposed catalog mutations and applies or discards them when
// an administrator decides. Role checks happen before the engine is called.
type Engine struct {
	store    Store
	schedule ScheduleChecker
	newID    ids.Generator
	now      func() time.Time
	observer Observer
	tracer   trace.Tracer
	logger   zerolog.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(gen ids.Generator) Option {
	return func(e *Engine) { e.newID = gen }
}

func WithObserver(observer Observer) Option {
	return func(e *Engine) { e.observer = observer }
}

// WithTracerProvider overrides the global OpenTelemetry provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = provider.Tracer(tracerName) }
}

func NewEngine(store Store, schedule ScheduleChecker, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		schedule: schedule,
		newID:    ids.NewULID,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
		logger:   logger.With().Str("component", "moderation").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propose stages a mutation and records a pending approval request. The
// catalog is not touched.
func (e *Engine) Propose(ctx context.Context, p Proposal) (*ApprovalRequest, error) {
	ctx, span := e.tracer.Start(ctx, "moderation.Propose", trace.WithAttributes(
		attribute.String("moderation.action", string(p.Kind)),
		attribute.String("moderation.actor_id", p.ActorID),
	))
	defer span.End()

	req, err := e.propose(ctx, p)
	if e.observer != nil {
		e.observer.Proposed(p.Kind, err)
	}
	if err != nil {
		endSpan(span, err)
		e.logger.Warn().Err(err).Str("action", string(p.Kind)).Str("actor_id", p.ActorID).Msg("proposal failed")
		return nil, err
	}
	e.logger.Info().
		Str("approval_id", req.ID).
		Str("action", string(p.Kind)).
		Str("actor_id", p.ActorID).
		Str("event_id", req.EventID).
		Msg("proposal staged")
	span.SetAttributes(attribute.String("moderation.approval_id", req.ID))
	endSpan(span, nil)
	return req, nil
}

func (e *Engine) propose(ctx context.Context, p Proposal) (*ApprovalRequest, error) {
	if err := validateProposal(p); err != nil {
		return nil, err
	}

	var req *ApprovalRequest
	err := e.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		var err error
		switch p.Kind {
		case KindPost:
			req, err = e.proposePost(ctx, tx, p)
		case KindPut:
			req, err = e.proposePut(ctx, tx, p)
		case KindDelete:
			req, err = e.proposeDelete(ctx, tx, p)
		default:
			err = fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, p.Kind)
		}
		return err
	})
	if err != nil {
		return nil, storeErr("propose "+string(p.Kind), err)
	}
	return req, nil
}

func validateProposal(p Proposal) error {
	if strings.TrimSpace(p.ActorID) == "" {
		return fmt.Errorf("%w: actor id is required", ErrInvalidRequest)
	}
	switch p.Kind {
	case KindPost:
		if p.Payload == nil || !p.Payload.IsComplete() {
			return fmt.Errorf("%w: post requires every event field", ErrInvalidRequest)
		}
	case KindPut:
		if strings.TrimSpace(p.EventID) == "" {
			return fmt.Errorf("%w: event id is required", ErrInvalidRequest)
		}
		if p.Payload == nil || p.Payload.IsEmpty() {
			return fmt.Errorf("%w: put requires at least one field", ErrInvalidRequest)
		}
	case KindDelete:
		if strings.TrimSpace(p.EventID) == "" {
			return fmt.Errorf("%w: event id is required", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, p.Kind)
	}
	return nil
}

func (e *Engine) proposePost(ctx context.Context, tx Store, p Proposal) (*ApprovalRequest, error) {
	fields := events.Overlay(events.EventFields{}, *p.Payload)
	if e.schedule != nil {
		if err := e.schedule.CheckSchedule(fields.Date, fields.Time); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	staged, err := e.insertStaged(ctx, tx, "", fields, p.ActorID)
	if err != nil {
		return nil, err
	}
	return e.insertApproval(ctx, tx, PostAction{StagedID: staged.ID}, p.ActorID, "")
}

func (e *Engine) proposePut(ctx context.Context, tx Store, p Proposal) (*ApprovalRequest, error) {
	current, err := ownedEvent(ctx, tx, p.EventID, p.ActorID)
	if err != nil {
		return nil, err
	}
	fields := events.Overlay(current.EventFields, *p.Payload)
	if p.Payload.TouchesSchedule() && e.schedule != nil {
		if err := e.schedule.CheckSchedule(fields.Date, fields.Time); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	staged, err := e.insertStaged(ctx, tx, current.ID, fields, p.ActorID)
	if err != nil {
		return nil, err
	}
	return e.insertApproval(ctx, tx, PutAction{StagedID: staged.ID}, p.ActorID, current.ID)
}

func (e *Engine) proposeDelete(ctx context.Context, tx Store, p Proposal) (*ApprovalRequest, error) {
	current, err := ownedEvent(ctx, tx, p.EventID, p.ActorID)
	if err != nil {
		return nil, err
	}
	return e.insertApproval(ctx, tx, DeleteAction{EventID: current.ID}, p.ActorID, current.ID)
}

// ownedEvent loads the target event and checks that actorID organizes it.
func ownedEvent(ctx context.Context, tx Store, eventID, actorID string) (*events.Event, error) {
	id := ids.Normalize(eventID)
	current, err := tx.Events().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("load event "+id, err)
	}
	if current.OrganizerID != actorID {
		return nil, fmt.Errorf("event %s is not organized by %s: %w", id, actorID, ErrForbidden)
	}
	return current, nil
}

func (e *Engine) insertStaged(ctx context.Context, tx Store, target string, fields events.EventFields, actorID string) (*StagedEvent, error) {
	id, err := e.newID()
	if err != nil {
		return nil, fmt.Errorf("mint staged id: %w", err)
	}
	staged, err := tx.Staging().Insert(ctx, StagedEventCreateParams{
		ID:            id,
		TargetEventID: target,
		EventFields:   fields,
		RequestedBy:   actorID,
	})
	if err != nil {
		return nil, storeErr("insert staged event", err)
	}
	return staged, nil
}

func (e *Engine) insertApproval(ctx context.Context, tx Store, action Action, actorID, eventID string) (*ApprovalRequest, error) {
	id, err := e.newID()
	if err != nil {
		return nil, fmt.Errorf("mint approval id: %w", err)
	}
	req, err := tx.Approvals().Insert(ctx, ApprovalCreateParams{
		ID:          id,
		Action:      action,
		RequestedBy: actorID,
		EventID:     eventID,
	})
	if err != nil {
		return nil, storeErr("insert approval", err)
	}
	return req, nil
}

// Decide resolves a pending request. The ledger transition, the catalog
// effect, and removal of the staged snapshot commit together; on any failure
// the request stays pending and the decision can be retried.
func (e *Engine) Decide(ctx context.Context, p DecideParams) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "moderation.Decide", trace.WithAttributes(
		attribute.String("moderation.approval_id", p.ApprovalID),
		attribute.String("moderation.decision", string(p.Decision)),
	))
	defer span.End()

	var kind Kind
	result, err := e.decide(ctx, p, &kind)
	if e.observer != nil {
		e.observer.Decided(kind, p.Decision, result, err)
	}
	span.SetAttributes(attribute.String("moderation.action", string(kind)))
	if err != nil {
		endSpan(span, err)
		e.logger.Warn().Err(err).
			Str("approval_id", p.ApprovalID).
			Str("decision", string(p.Decision)).
			Msg("decision failed")
		return nil, err
	}
	e.logger.Info().
		Str("approval_id", result.ApprovalID).
		Str("action", string(result.Kind)).
		Str("state", string(result.State)).
		Str("event_id", result.EventID).
		Bool("replayed", result.Replayed).
		Str("decided_by", p.DecidedBy).
		Msg("approval decided")
	span.SetAttributes(attribute.Bool("moderation.replayed", result.Replayed))
	endSpan(span, nil)
	return result, nil
}

func (e *Engine) decide(ctx context.Context, p DecideParams, kind *Kind) (*Result, error) {
	if strings.TrimSpace(p.ApprovalID) == "" {
		return nil, fmt.Errorf("%w: approval id is required", ErrInvalidRequest)
	}
	if p.Decision != DecisionApprove && p.Decision != DecisionReject {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidRequest, p.Decision)
	}
	id := ids.Normalize(p.ApprovalID)

	var result *Result
	err := e.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		req, err := tx.Approvals().Get(ctx, id)
		if err != nil {
			return storeErr("load approval "+id, err)
		}
		*kind = req.Action.Kind()
		if req.State.Terminal() {
			result, err = replay(req, p.Decision)
			return err
		}
		result, err = e.resolve(ctx, tx, req, p)
		return err
	})
	if err != nil {
		return nil, storeErr("decide approval "+id, err)
	}
	return result, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// replay answers a decision on an already-terminal request without writing.
func replay(req *ApprovalRequest, decision Decision) (*Result, error) {
	if req.State != decision.State() {
		return nil, fmt.Errorf("approval %s is already %s: %w", req.ID, req.State, ErrConflict)
	}
	return &Result{
		ApprovalID: req.ID,
		Kind:       req.Action.Kind(),
		State:      req.State,
		EventID:    req.EventID,
		Replayed:   true,
	}, nil
}

func (e *Engine) resolve(ctx context.Context, tx Store, req *ApprovalRequest, p DecideParams) (*Result, error) {
	var (
		eventID string
		err     error
	)
	switch action := req.Action.(type) {
	case PostAction:
		eventID, err = e.resolvePost(ctx, tx, req, action, p)
	case PutAction:
		eventID, err = e.resolvePut(ctx, tx, req, action, p)
	case DeleteAction:
		eventID, err = e.resolveDelete(ctx, tx, req, action, p)
	default:
		err = fmt.Errorf("%w: unsupported action %T", ErrInvalidRequest, action)
	}
	if err != nil {
		return nil, err
	}
	return &Result{
		ApprovalID: req.ID,
		Kind:       req.Action.Kind(),
		State:      p.Decision.State(),
		EventID:    eventID,
	}, nil
}

func (e *Engine) resolvePost(ctx context.Context, tx Store, req *ApprovalRequest, action PostAction, p DecideParams) (string, error) {
	if p.Decision == DecisionReject {
		if err := e.claim(ctx, tx, req.ID, p, ""); err != nil {
			return "", err
		}
		return "", e.discardStaged(ctx, tx, action.StagedID)
	}

	staged, err := tx.Staging().Get(ctx, action.StagedID)
	if err != nil {
		return "", storeErr("load staged event "+action.StagedID, err)
	}
	if err := e.checkSchedule(staged.EventFields); err != nil {
		return "", err
	}
	eventID, err := e.newID()
	if err != nil {
		return "", fmt.Errorf("mint event id: %w", err)
	}
	if err := e.claim(ctx, tx, req.ID, p, eventID); err != nil {
		return "", err
	}
	if _, err := tx.Events().Create(ctx, events.EventCreateParams{
		ID:          eventID,
		EventFields: staged.EventFields,
		OrganizerID: staged.RequestedBy,
	}); err != nil {
		return "", storeErr("create event", err)
	}
	if err := e.consumeStaged(ctx, tx, staged.ID); err != nil {
		return "", err
	}
	return eventID, nil
}

func (e *Engine) resolvePut(ctx context.Context, tx Store, req *ApprovalRequest, action PutAction, p DecideParams) (string, error) {
	if p.Decision == DecisionReject {
		if err := e.claim(ctx, tx, req.ID, p, req.EventID); err != nil {
			return "", err
		}
		return req.EventID, e.discardStaged(ctx, tx, action.StagedID)
	}

	staged, err := tx.Staging().Get(ctx, action.StagedID)
	if err != nil {
		return "", storeErr("load staged event "+action.StagedID, err)
	}
	target := staged.TargetEventID
	current, err := tx.Events().GetByID(ctx, target)
	if err != nil {
		return "", storeErr("load event "+target, err)
	}
	if current.Date != staged.Date || current.Time != staged.Time {
		if err := e.checkSchedule(staged.EventFields); err != nil {
			return "", err
		}
	}
	if err := e.claim(ctx, tx, req.ID, p, target); err != nil {
		return "", err
	}
	n, err := tx.Events().Update(ctx, target, staged.EventFields)
	if err != nil {
		return "", storeErr("update event "+target, err)
	}
	if n == 0 {
		return "", fmt.Errorf("update event %s: %w", target, ErrNotFound)
	}
	if err := e.consumeStaged(ctx, tx, staged.ID); err != nil {
		return "", err
	}
	return target, nil
}

func (e *Engine) resolveDelete(ctx context.Context, tx Store, req *ApprovalRequest, action DeleteAction, p DecideParams) (string, error) {
	if err := e.claim(ctx, tx, req.ID, p, action.EventID); err != nil {
		return "", err
	}
	if p.Decision == DecisionReject {
		return action.EventID, nil
	}
	n, err := tx.Events().Delete(ctx, action.EventID)
	if err != nil {
		return "", storeErr("delete event "+action.EventID, err)
	}
	if n == 0 {
		return "", fmt.Errorf("delete event %s: %w", action.EventID, ErrNotFound)
	}
	return action.EventID, nil
}

// claim moves the request out of pending. Zero affected rows means another
// decision got there first.
func (e *Engine) claim(ctx context.Context, tx Store, approvalID string, p DecideParams, eventID string) error {
	n, err := tx.Approvals().Resolve(ctx, approvalID, ResolveParams{
		State:     p.Decision.State(),
		DecidedBy: p.DecidedBy,
		DecidedAt: e.now().UTC(),
		EventID:   eventID,
	})
	if err != nil {
		return storeErr("resolve approval "+approvalID, err)
	}
	if n == 0 {
		return fmt.Errorf("approval %s was decided concurrently: %w", approvalID, ErrConflict)
	}
	return nil
}

// consumeStaged deletes a snapshot that was just applied. It must still exist.
func (e *Engine) consumeStaged(ctx context.Context, tx Store, stagedID string) error {
	n, err := tx.Staging().Delete(ctx, stagedID)
	if err != nil {
		return storeErr("delete staged event "+stagedID, err)
	}
	if n == 0 {
		return fmt.Errorf("staged event %s was consumed concurrently: %w", stagedID, ErrConflict)
	}
	return nil
}

// discardStaged deletes a rejected snapshot. A snapshot that is already gone
// must not block the rejection.
func (e *Engine) discardStaged(ctx context.Context, tx Store, stagedID string) error {
	n, err := tx.Staging().Delete(ctx, stagedID)
	if err != nil {
		return storeErr("delete staged event "+stagedID, err)
	}
	if n == 0 {
		e.logger.Warn().Str("staged_id", stagedID).Msg("rejected proposal had no staged snapshot")
	}
	return nil
}

func (e *Engine) checkSchedule(fields events.EventFields) error {
	if e.schedule == nil {
		return nil
	}
	if err := e.schedule.CheckSchedule(fields.Date, fields.Time); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// GetApproval returns a request together with its staged snapshot, which is
// present while a post or put is pending.
func (e *Engine) GetApproval(ctx context.Context, approvalID string) (*ApprovalDetail, error) {
	if strings.TrimSpace(approvalID) == "" {
		return nil, fmt.Errorf("%w: approval id is required", ErrInvalidRequest)
	}
	id := ids.Normalize(approvalID)
	req, err := e.store.Approvals().Get(ctx, id)
	if err != nil {
		return nil, storeErr("load approval "+id, err)
	}
	detail := &ApprovalDetail{Request: *req}
	if req.State != StatePending {
		return detail, nil
	}
	switch action := req.Action.(type) {
	case PostAction:
		detail.Staged, err = e.store.Staging().Get(ctx, action.StagedID)
	case PutAction:
		detail.Staged, err = e.store.Staging().Get(ctx, action.StagedID)
	}
	if err != nil {
		return nil, storeErr("load staged event", err)
	}
	return detail, nil
}

func (e *Engine) ListApprovals(ctx context.Context, filters ApprovalFilters) (ApprovalListResult, error) {
	if filters.Limit <= 0 || filters.Limit > 200 {
		filters.Limit = 50
	}
	result, err := e.store.Approvals().List(ctx, filters)
	if err != nil {
		return ApprovalListResult{}, storeErr("list approvals", err)
	}
	return result, nil
}
