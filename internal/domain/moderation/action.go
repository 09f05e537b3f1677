package moderation

import (
	"fmt"
	"strings"
)

// Kind names a moderated mutation as it is persisted and exposed over the API.
type Kind string

const (
	KindPost   Kind = "post"
	KindPut    Kind = "put"
	KindDelete Kind = "delete"
)

func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindPost:
		return KindPost, nil
	case KindPut:
		return KindPut, nil
	case KindDelete:
		return KindDelete, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, value)
	}
}

// Action is the closed set of moderated mutations. Post and Put point at the
// staged snapshot to apply; Delete points straight at the catalog event.
type Action interface {
	Kind() Kind
	// Target is the persisted reference: a staged event id for post and put,
	// an event id for delete.
	Target() string
	sealed()
}

type PostAction struct {
	StagedID string
}

type PutAction struct {
	StagedID string
}

type DeleteAction struct {
	EventID string
}

func (PostAction) Kind() Kind   { return KindPost }
func (PutAction) Kind() Kind    { return KindPut }
func (DeleteAction) Kind() Kind { return KindDelete }

func (a PostAction) Target() string   { return a.StagedID }
func (a PutAction) Target() string    { return a.StagedID }
func (a DeleteAction) Target() string { return a.EventID }

func (PostAction) sealed()   {}
func (PutAction) sealed()    {}
func (DeleteAction) sealed() {}

// ActionFromRecord rebuilds an Action from its persisted kind and target.
func ActionFromRecord(kind string, target string) (Action, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: %s action without target", ErrInvalidRequest, k)
	}
	switch k {
	case KindPost:
		return PostAction{StagedID: target}, nil
	case KindPut:
		return PutAction{StagedID: target}, nil
	default:
		return DeleteAction{EventID: target}, nil
	}
}

// State is the decision state of an approval request.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

func ParseState(value string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(value))) {
	case StatePending:
		return StatePending, nil
	case StateApproved:
		return StateApproved, nil
	case StateRejected:
		return StateRejected, nil
	default:
		return "", fmt.Errorf("%w: unknown state %q", ErrInvalidRequest, value)
	}
}

// Decision is an administrator's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(value string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(value))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", ErrInvalidRequest, value)
	}
}

// State returns the terminal state the decision leads to.
func (d Decision) State() State {
	if d == DecisionApprove {
		return StateApproved
	}
	return StateRejected
}
