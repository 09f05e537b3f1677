package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Togather-Foundation/eventease/internal/domain/events"
)

var errInjected = errors.New("injected failure")

type memData struct {
	events    map[string]events.Event
	staged    map[string]StagedEvent
	approvals map[string]ApprovalRequest
}

func (d *memData) clone() *memData {
	out := &memData{
		events:    make(map[string]events.Event, len(d.events)),
		staged:    make(map[string]StagedEvent, len(d.staged)),
		approvals: make(map[string]ApprovalRequest, len(d.approvals)),
	}
	for k, v := range d.events {
		v.Attendees = append([]string(nil), v.Attendees...)
		out.events[k] = v
	}
	for k, v := range d.staged {
		out.staged[k] = v
	}
	for k, v := range d.approvals {
		out.approvals[k] = v
	}
	return out
}

// memStore is an in-memory Store. WithTx works on a copy of the data and
// swaps it in only when fn succeeds.
type memStore struct {
	root *memStore
	data *memData

	mu         sync.Mutex
	fail       map[string]error
	staleClaim bool
	now        time.Time
}

func newMemStore() *memStore {
	s := &memStore{
		data: &memData{
			events:    map[string]events.Event{},
			staged:    map[string]StagedEvent{},
			approvals: map[string]ApprovalRequest{},
		},
		fail: map[string]error{},
		now:  time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	s.root = s
	return s
}

func (s *memStore) failOn(op string, err error) { s.root.fail[op] = err }

func (s *memStore) clearFailures() { s.root.fail = map[string]error{} }

func (s *memStore) check(op string) error { return s.root.fail[op] }

// snapshot returns a copy of the committed data.
func (s *memStore) snapshot() *memData {
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	return s.root.data.clone()
}

func (s *memStore) seedEvent(e events.Event) {
	s.root.data.events[e.ID] = e
}

func (s *memStore) Events() events.Repository     { return memEvents{s} }
func (s *memStore) Staging() StagingRepository     { return memStaging{s} }
func (s *memStore) Approvals() ApprovalRepository { return memApprovals{s} }

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.root != s {
		return fn(ctx, s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("begin"); err != nil {
		return err
	}
	tx := &memStore{root: s, data: s.data.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := s.check("commit"); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

type memEvents struct{ s *memStore }

func (r memEvents) List(ctx context.Context, filters events.Filters, pagination events.Pagination) (events.ListResult, error) {
	if err := r.s.check("events.list"); err != nil {
		return events.ListResult{}, err
	}
	out := make([]events.Event, 0, len(r.s.data.events))
	for _, e := range r.s.data.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return events.ListResult{Events: out}, nil
}

func (r memEvents) GetByID(ctx context.Context, id string) (*events.Event, error) {
	if err := r.s.check("events.get"); err != nil {
		return nil, err
	}
	e, ok := r.s.data.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	e.Attendees = append([]string(nil), e.Attendees...)
	return &e, nil
}

func (r memEvents) Create(ctx context.Context, params events.EventCreateParams) (*events.Event, error) {
	if err := r.s.check("events.create"); err != nil {
		return nil, err
	}
	if _, ok := r.s.data.events[params.ID]; ok {
		return nil, events.ErrConflict
	}
	now := r.s.root.now
	r.s.data.events[params.ID] = events.Event{
		ID:          params.ID,
		EventFields: params.EventFields,
		OrganizerID: params.OrganizerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.GetByID(ctx, params.ID)
}

func (r memEvents) Update(ctx context.Context, id string, fields events.EventFields) (int64, error) {
	if err := r.s.check("events.update"); err != nil {
		return 0, err
	}
	e, ok := r.s.data.events[id]
	if !ok {
		return 0, nil
	}
	e.EventFields = fields
	r.s.data.events[id] = e
	return 1, nil
}

func (r memEvents) Delete(ctx context.Context, id string) (int64, error) {
	if err := r.s.check("events.delete"); err != nil {
		return 0, err
	}
	if _, ok := r.s.data.events[id]; !ok {
		return 0, nil
	}
	delete(r.s.data.events, id)
	return 1, nil
}

func (r memEvents) AddAttendee(ctx context.Context, eventID, userID string) (int64, error) {
	e, ok := r.s.data.events[eventID]
	if !ok || e.HasAttendee(userID) {
		return 0, nil
	}
	e.Attendees = append(e.Attendees, userID)
	r.s.data.events[eventID] = e
	return 1, nil
}

func (r memEvents) RemoveAttendee(ctx context.Context, eventID, userID string) (int64, error) {
	e, ok := r.s.data.events[eventID]
	if !ok {
		return 0, nil
	}
	for i, a := range e.Attendees {
		if a == userID {
			e.Attendees = append(e.Attendees[:i:i], e.Attendees[i+1:]...)
			r.s.data.events[eventID] = e
			return 1, nil
		}
	}
	return 0, nil
}

type memStaging struct{ s *memStore }

func (r memStaging) Insert(ctx context.Context, params StagedEventCreateParams) (*StagedEvent, error) {
	if err := r.s.check("staging.insert"); err != nil {
		return nil, err
	}
	staged := StagedEvent{
		ID:            params.ID,
		TargetEventID: params.TargetEventID,
		EventFields:   params.EventFields,
		RequestedBy:   params.RequestedBy,
		CreatedAt:     r.s.root.now,
	}
	r.s.data.staged[staged.ID] = staged
	return &staged, nil
}

func (r memStaging) Get(ctx context.Context, id string) (*StagedEvent, error) {
	staged, ok := r.s.data.staged[id]
	if !ok {
		return nil, fmt.Errorf("staged event %s: %w", id, ErrNotFound)
	}
	return &staged, nil
}

func (r memStaging) Delete(ctx context.Context, id string) (int64, error) {
	if err := r.s.check("staging.delete"); err != nil {
		return 0, err
	}
	if _, ok := r.s.data.staged[id]; !ok {
		return 0, nil
	}
	delete(r.s.data.staged, id)
	return 1, nil
}

func (r memStaging) List(ctx context.Context, filters StagedFilters) ([]StagedEvent, error) {
	var out []StagedEvent
	for _, staged := range r.s.data.staged {
		if filters.RequestedBy != "" && staged.RequestedBy != filters.RequestedBy {
			continue
		}
		if filters.TargetEventID != "" && staged.TargetEventID != filters.TargetEventID {
			continue
		}
		out = append(out, staged)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memApprovals struct{ s *memStore }

func (r memApprovals) Insert(ctx context.Context, params ApprovalCreateParams) (*ApprovalRequest, error) {
	if err := r.s.check("approvals.insert"); err != nil {
		return nil, err
	}
	req := ApprovalRequest{
		ID:          params.ID,
		Action:      params.Action,
		RequestedBy: params.RequestedBy,
		State:       StatePending,
		EventID:     params.EventID,
		CreatedAt:   r.s.root.now,
	}
	r.s.data.approvals[req.ID] = req
	return &req, nil
}

func (r memApprovals) Get(ctx context.Context, id string) (*ApprovalRequest, error) {
	if err := r.s.check("approvals.get"); err != nil {
		return nil, err
	}
	req, ok := r.s.data.approvals[id]
	if !ok {
		return nil, fmt.Errorf("approval %s: %w", id, ErrNotFound)
	}
	return &req, nil
}

func (r memApprovals) Resolve(ctx context.Context, id string, params ResolveParams) (int64, error) {
	if err := r.s.check("approvals.resolve"); err != nil {
		return 0, err
	}
	req, ok := r.s.data.approvals[id]
	if !ok || req.State != StatePending || r.s.root.staleClaim {
		return 0, nil
	}
	decidedAt := params.DecidedAt
	req.State = params.State
	req.DecidedBy = params.DecidedBy
	req.DecidedAt = &decidedAt
	if params.EventID != "" {
		req.EventID = params.EventID
	}
	r.s.data.approvals[id] = req
	return 1, nil
}

func (r memApprovals) List(ctx context.Context, filters ApprovalFilters) (ApprovalListResult, error) {
	var out []ApprovalRequest
	for _, req := range r.s.data.approvals {
		if filters.State != "" && req.State != filters.State {
			continue
		}
		if filters.Kind != "" && req.Action.Kind() != filters.Kind {
			continue
		}
		if filters.RequestedBy != "" && req.RequestedBy != filters.RequestedBy {
			continue
		}
		if filters.After != "" && req.ID <= filters.After {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	var next string
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
		next = out[len(out)-1].ID
	}
	return ApprovalListResult{Approvals: out, NextCursor: next}, nil
}
